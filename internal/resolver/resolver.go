// Package resolver gathers the auxiliary context spliced into a prompt.
package resolver

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"foodieqa/internal/extract"
	"foodieqa/internal/knowledge"
	"foodieqa/internal/model"
	"foodieqa/internal/repository"
)

// MaxPredictedDishes bounds how many predicted names are looked up
const MaxPredictedDishes = 3

// Resolver resolves a ContextRecord per question. Lookup failures degrade to
// empty or placeholder context; Resolve never fails.
type Resolver struct {
	store       knowledge.Store
	dishes      repository.DishStore
	predictions map[string]model.DishPrediction
	topK        int
	logger      *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithKnowledgeStore sets the store used for snippet context
func WithKnowledgeStore(s knowledge.Store) Option {
	return func(r *Resolver) { r.store = s }
}

// WithDishStore sets the store used for structured context
func WithDishStore(s repository.DishStore) Option {
	return func(r *Resolver) { r.dishes = s }
}

// WithPredictions sets the dish-identification output, keyed by question id
func WithPredictions(p []model.DishPrediction) Option {
	return func(r *Resolver) {
		r.predictions = make(map[string]model.DishPrediction, len(p))
		for _, pred := range p {
			r.predictions[pred.QuestionID] = pred
		}
	}
}

// WithTopK sets how many hits a snippet search asks for
func WithTopK(k int) Option {
	return func(r *Resolver) {
		if k > 0 {
			r.topK = k
		}
	}
}

// New creates a resolver. Missing stores behave as always-empty ones.
func New(logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{topK: 3, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the context for q under mode
func (r *Resolver) Resolve(ctx context.Context, q *model.Question, mode model.AugmentationMode, lang model.Language) model.ContextRecord {
	switch mode {
	case model.AugmentSnippet:
		return model.SnippetContext{Text: r.snippet(ctx, q.ID, q.DishName)}
	case model.AugmentStructured:
		return r.structured(ctx, q.ID, q.DishName)
	case model.AugmentPredictedDish:
		return r.predicted(ctx, q, lang)
	}
	return model.NoContext{}
}

func (r *Resolver) snippet(ctx context.Context, questionID, dishName string) string {
	if r.store == nil || strings.TrimSpace(dishName) == "" {
		return ""
	}
	results, err := r.store.Search(ctx, dishName, r.topK)
	if err != nil {
		r.logger.Warn("Knowledge search failed, using empty context",
			zap.String("question_id", questionID),
			zap.String("dish", dishName),
			zap.Error(err))
		return ""
	}
	if len(results) == 0 {
		return ""
	}
	return results[0].Text
}

func (r *Resolver) structured(ctx context.Context, questionID, dishName string) model.StructuredContext {
	if r.dishes == nil || strings.TrimSpace(dishName) == "" {
		return model.NewStructuredContext(dishName, nil)
	}
	rec, err := r.dishes.Get(ctx, dishName)
	if err != nil {
		r.logger.Warn("Dish lookup failed, using placeholder",
			zap.String("question_id", questionID),
			zap.String("dish", dishName),
			zap.Error(err))
		return model.NewStructuredContext(dishName, nil)
	}
	return model.NewStructuredContext(dishName, rec)
}

func (r *Resolver) predicted(ctx context.Context, q *model.Question, lang model.Language) model.PredictedDishContext {
	pred, ok := r.predictions[q.ID]
	if !ok {
		r.logger.Debug("No dish prediction for question", zap.String("question_id", q.ID))
		return model.PredictedDishContext{}
	}

	names := make([]string, 0, MaxPredictedDishes)
	for _, name := range pred.PredictedDishes {
		name = strings.TrimSpace(name)
		if name == "" || extract.IsPlaceholderDish(name) {
			continue
		}
		names = append(names, name)
		if len(names) == MaxPredictedDishes {
			break
		}
	}

	c := model.PredictedDishContext{PredictedNames: names, Rationale: pred.FullResponse}
	for _, name := range names {
		c.Retrieved = append(c.Retrieved, r.structured(ctx, q.ID, name).Render(lang))
		if text := r.snippet(ctx, q.ID, name); text != "" {
			c.Retrieved = append(c.Retrieved, text)
		}
	}
	return c
}
