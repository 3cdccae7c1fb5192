package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"foodieqa/internal/extract"
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
)

// identifySentinel is the closing line the identification prompt requires
const identifySentinel = "Selected dishes:"

const identifyUser = "Please analyze this food image and identify exactly three dishes from the provided list that this image most likely represents, in order of probability."

// IdentifierService asks the model for the three most likely catalog dishes
// of each question image. Its output feeds the predicted-dish context.
type IdentifierService struct {
	model  ModelService
	images ImageSource
	logger *zap.Logger
}

// NewIdentifierService creates a new identifier service
func NewIdentifierService(m ModelService, images ImageSource, logger *zap.Logger) *IdentifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentifierService{model: m, images: images, logger: logger}
}

// CatalogPrompt renders the candidate list, cuisines sorted by name
func CatalogPrompt(catalog *model.DishCatalog) string {
	var b strings.Builder
	b.WriteString("Available dishes by cuisine type:\n\n")
	if catalog == nil {
		return b.String()
	}
	cuisines := make([]string, 0, len(catalog.DishesByCuisine))
	for c, dishes := range catalog.DishesByCuisine {
		if len(dishes) > 0 {
			cuisines = append(cuisines, c)
		}
	}
	sort.Strings(cuisines)
	for _, c := range cuisines {
		b.WriteString(c + ":\n")
		for _, d := range catalog.DishesByCuisine[c] {
			b.WriteString("- " + d + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// IdentifyPrompt builds the system and user halves for one image
func IdentifyPrompt(catalog *model.DishCatalog) prompt.Prompt {
	system := `You are a helpful chef AI assistant analyzing Chinese dishes.

IMPORTANT: You must ONLY select dishes from the following list. Do not suggest any dishes not in this list:

` + CatalogPrompt(catalog) + `
Please examine this food image carefully and:
1. List visible ingredients and components
2. Note cooking methods and techniques visible
3. Observe presentation style and regional characteristics
4. Based on these observations, select exactly three dishes from the provided list above

Your response MUST end with exactly this format:
` + identifySentinel + ` [dish1, dish2, dish3]

Where dish1, dish2, and dish3 are chosen from the provided list.`
	return prompt.Prompt{System: system, User: identifyUser}
}

// IdentifyOne predicts dishes for q. Failures yield the error placeholder
// names with the error text as the response; it never returns an error.
func (s *IdentifierService) IdentifyOne(ctx context.Context, q *model.Question, p prompt.Prompt, useWeb bool) model.DishPrediction {
	pred := model.DishPrediction{QuestionID: q.ID, ActualDish: q.DishName}
	fail := func(err error) model.DishPrediction {
		s.logger.Warn("Dish identification failed", zap.String("question_id", q.ID), zap.Error(err))
		pred.PredictedDishes = []string{extract.ErrorDish, extract.ErrorDish, extract.ErrorDish}
		pred.FullResponse = err.Error()
		return pred
	}

	img, err := s.images.Load(q, useWeb)
	if err != nil {
		return fail(err)
	}
	raw, err := s.model.Complete(ctx, p, img)
	if err != nil {
		return fail(err)
	}
	pred.FullResponse = raw
	pred.PredictedDishes = extract.Dishes(raw)
	s.logger.Debug("Dishes identified",
		zap.String("question_id", q.ID),
		zap.String("actual", q.DishName),
		zap.Strings("predicted", pred.PredictedDishes))
	return pred
}

// Identify runs every question in order. onEach, when set, sees the
// predictions accumulated so far after each question.
func (s *IdentifierService) Identify(ctx context.Context, questions []model.Question, catalog *model.DishCatalog, useWeb bool, onEach func([]model.DishPrediction)) ([]model.DishPrediction, error) {
	p := IdentifyPrompt(catalog)
	preds := make([]model.DishPrediction, 0, len(questions))
	for i := range questions {
		if err := ctx.Err(); err != nil {
			return preds, fmt.Errorf("identification interrupted after %d questions: %w", len(preds), err)
		}
		preds = append(preds, s.IdentifyOne(ctx, &questions[i], p, useWeb))
		if onEach != nil {
			onEach(preds)
		}
	}
	s.logger.Info("Dish identification finished", zap.Int("questions", len(preds)))
	return preds, nil
}
