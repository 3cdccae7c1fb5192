package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"foodieqa/internal/cache"
	"foodieqa/internal/dataset"
	"foodieqa/internal/extract"
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
	"foodieqa/internal/repository"
	"foodieqa/internal/resolver"
	"foodieqa/internal/resultlog"
	"foodieqa/internal/score"
)

// ImageSource loads the picture for a question
type ImageSource interface {
	Load(q *model.Question, useWeb bool) (*dataset.Image, error)
}

// Message types sent through the Broadcaster
const (
	MsgAnswerRecorded = "answer_recorded"
	MsgRunFinished    = "run_finished"
)

// AnswerEvent is the payload of MsgAnswerRecorded
type AnswerEvent struct {
	Index    int               `json:"index"`
	Total    int               `json:"total"`
	Category model.Category    `json:"category,omitempty"`
	Answer   model.ModelAnswer `json:"answer"`
}

// RunOptions selects what one run evaluates
type RunOptions struct {
	RunID            string
	Variant          prompt.Variant
	Adaptive         bool // Pick the variant per question through Policy
	Policy           resolver.Policy
	Language         model.Language
	AugmentationMode model.AugmentationMode // Empty means the variant's default
	ShowDishName     bool
	UseWebImage      bool
	Workers          int
	Log              *resultlog.Writer
	Categories       score.CategoryMap
}

// EvaluatorService runs questions through resolve, compose, complete,
// extract and score
type EvaluatorService struct {
	model     ModelService
	registry  *prompt.Registry
	resolver  *resolver.Resolver
	images    ImageSource
	runs      repository.RunRepo
	progress  cache.ProgressCache
	broadcast Broadcaster
	logger    *zap.Logger
}

// EvaluatorOption configures optional sinks of an EvaluatorService
type EvaluatorOption func(*EvaluatorService)

// WithRunRepo persists summaries and answers
func WithRunRepo(r repository.RunRepo) EvaluatorOption {
	return func(s *EvaluatorService) { s.runs = r }
}

// WithProgressCache records live counters
func WithProgressCache(c cache.ProgressCache) EvaluatorOption {
	return func(s *EvaluatorService) { s.progress = c }
}

// WithBroadcaster streams per-answer events
func WithBroadcaster(b Broadcaster) EvaluatorOption {
	return func(s *EvaluatorService) { s.broadcast = b }
}

// NewEvaluatorService creates a new evaluator service
func NewEvaluatorService(m ModelService, reg *prompt.Registry, res *resolver.Resolver, images ImageSource, logger *zap.Logger, opts ...EvaluatorOption) *EvaluatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prompt.Default()
	}
	if res == nil {
		res = resolver.New(logger)
	}
	s := &EvaluatorService{
		model:    m,
		registry: reg,
		resolver: res,
		images:   images,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run evaluates every question and returns the summary plus one answer per
// question in input order. Per-question failures never abort the run; the
// error is non-nil only when ctx is cancelled or the options are invalid.
func (s *EvaluatorService) Run(ctx context.Context, questions []model.Question, opts RunOptions) (*model.RunSummary, []model.ModelAnswer, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Language == "" {
		opts.Language = model.LanguageZH
	}
	if !opts.Language.Valid() {
		return nil, nil, fmt.Errorf("unsupported language %q", opts.Language)
	}
	if opts.AugmentationMode != "" && !opts.AugmentationMode.Valid() {
		return nil, nil, fmt.Errorf("unknown augmentation mode %q", opts.AugmentationMode)
	}
	spec, err := s.registry.Lookup(opts.Variant)
	if err != nil && !opts.Adaptive {
		return nil, nil, err
	}
	if opts.Adaptive && opts.Policy.IsZero() {
		opts.Policy = resolver.DefaultPolicy()
	}
	if opts.Categories == nil {
		opts.Categories = dataset.CategoryMapFromQuestions(questions)
	}

	summary := &model.RunSummary{
		RunID:            opts.RunID,
		Variant:          int(opts.Variant),
		VariantName:      spec.Name,
		Adaptive:         opts.Adaptive,
		Language:         opts.Language,
		AugmentationMode: string(opts.AugmentationMode),
		ShowDishName:     opts.ShowDishName,
		UseWebImage:      opts.UseWebImage,
		Model:            s.model.Name(),
		TotalQuestions:   len(questions),
		Status:           model.RunStatusRunning,
		StartedAt:        time.Now().UTC(),
	}
	if opts.Adaptive {
		summary.VariantName = "adaptive"
	}
	if summary.AugmentationMode == "" && !opts.Adaptive {
		summary.AugmentationMode = string(spec.Augmentation)
	}
	s.saveSummary(ctx, summary)

	s.logger.Info("Run started",
		zap.String("run_id", opts.RunID),
		zap.Int("questions", len(questions)),
		zap.Int("template", summary.Variant),
		zap.Bool("adaptive", opts.Adaptive),
		zap.String("model", summary.Model))

	answers := make([]model.ModelAnswer, len(questions))
	reached := make([]bool, len(questions))
	tally := score.NewTally()
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range questions {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := s.answerOne(gctx, &questions[i], opts)
			a.RunID = opts.RunID
			answers[i] = a
			reached[i] = true
			s.record(gctx, opts, tally, i, len(questions), a)
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	finished := time.Now().UTC()
	summary.FinishedAt = &finished
	summary.Report = tally.Report()
	summary.Unmapped = tally.Unmapped()
	summary.Skipped = tally.Skipped()
	overall := summary.Report.Overall()
	summary.TotalCorrect = overall.Correct
	summary.Accuracy = overall.Accuracy
	for _, a := range answers {
		if a.Error != "" && !a.Skipped {
			summary.Failed++
		}
	}

	done := answers
	if runErr != nil {
		summary.Status = model.RunStatusFailed
		done = answered(answers, reached)
	} else {
		summary.Status = model.RunStatusFinished
	}

	// Sinks outlive a cancelled run context so partial results are kept
	sinkCtx := context.WithoutCancel(ctx)
	if opts.Log != nil {
		if err := opts.Log.Rewrite(done); err != nil {
			s.logger.Warn("Failed to rewrite result log", zap.String("path", opts.Log.Path()), zap.Error(err))
		}
	}
	if s.runs != nil {
		if err := s.runs.SaveAnswers(sinkCtx, opts.RunID, done); err != nil {
			s.logger.Warn("Failed to save answers", zap.String("run_id", opts.RunID), zap.Error(err))
		}
	}
	s.saveSummary(sinkCtx, summary)
	if s.broadcast != nil {
		s.broadcast.BroadcastToRun(opts.RunID, MsgRunFinished, summary)
		s.broadcast.CloseRun(opts.RunID)
	}

	s.logger.Info("Run finished",
		zap.String("run_id", opts.RunID),
		zap.String("status", summary.Status),
		zap.Int("correct", summary.TotalCorrect),
		zap.Float64("accuracy", summary.Accuracy),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	if runErr != nil {
		return summary, done, fmt.Errorf("run %s interrupted: %w", opts.RunID, runErr)
	}
	return summary, answers, nil
}

// answered drops slots never reached by a cancelled run
func answered(answers []model.ModelAnswer, reached []bool) []model.ModelAnswer {
	out := make([]model.ModelAnswer, 0, len(answers))
	for i, a := range answers {
		if reached[i] {
			out = append(out, a)
		}
	}
	return out
}

// Answer evaluates a single question with opts
func (s *EvaluatorService) Answer(ctx context.Context, q *model.Question, opts RunOptions) model.ModelAnswer {
	if opts.Language == "" {
		opts.Language = model.LanguageZH
	}
	return s.answerOne(ctx, q, opts)
}

func (s *EvaluatorService) answerOne(ctx context.Context, q *model.Question, opts RunOptions) model.ModelAnswer {
	variant := opts.Variant
	if opts.Adaptive {
		variant = opts.Policy.Variant(q.Category)
	}
	spec, err := s.registry.Lookup(variant)
	if err != nil {
		return model.FailureAnswer(q, int(variant), err)
	}

	if err := q.Validate(opts.Language); err != nil {
		a := model.FailureAnswer(q, int(variant), err)
		a.Skipped = true
		s.logger.Warn("Skipping malformed question", zap.String("question_id", q.ID), zap.Error(err))
		return a
	}

	var img *dataset.Image
	if s.images != nil {
		img, err = s.images.Load(q, opts.UseWebImage)
		if err != nil {
			s.logger.Warn("Image unavailable", zap.String("question_id", q.ID), zap.Error(err))
			return model.FailureAnswer(q, int(variant), err)
		}
	}

	mode := spec.Augmentation
	if opts.AugmentationMode != "" && !opts.Adaptive {
		mode = opts.AugmentationMode
	}
	ctxRecord := s.resolver.Resolve(ctx, q, mode, opts.Language)

	p, err := s.registry.Compose(q, ctxRecord, variant, prompt.Options{
		Language:     opts.Language,
		ShowDishName: opts.ShowDishName,
	})
	if err != nil {
		return model.FailureAnswer(q, int(variant), err)
	}

	raw, err := s.model.Complete(ctx, p, img)
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			s.logger.Warn("Model call failed",
				zap.String("question_id", q.ID),
				zap.String("model", se.Model),
				zap.Error(se.Err))
		}
		return model.FailureAnswer(q, int(variant), err)
	}

	letter := extract.Extract(spec.Extraction, raw)
	truth := q.AnswerLetter()
	return model.ModelAnswer{
		QuestionID:      q.ID,
		Variant:         int(variant),
		RawResponse:     raw,
		ExtractedLetter: letter,
		GroundTruth:     truth,
		IsCorrect:       letter != model.LetterNone && letter == truth,
	}
}

// record feeds one answer to every sink. Sink failures are logged only.
func (s *EvaluatorService) record(ctx context.Context, opts RunOptions, tally *score.Tally, index, total int, a model.ModelAnswer) {
	cat, known := opts.Categories.Lookup(a.QuestionID)
	tally.Add(a, cat, known)

	if opts.Log != nil {
		if err := opts.Log.Append(a); err != nil {
			s.logger.Warn("Failed to append result", zap.String("question_id", a.QuestionID), zap.Error(err))
		}
	}
	if s.progress != nil {
		if !known {
			cat = ""
		}
		if err := s.progress.Record(ctx, opts.RunID, cat, a); err != nil {
			s.logger.Warn("Failed to record progress", zap.String("run_id", opts.RunID), zap.Error(err))
		}
	}
	if s.broadcast != nil {
		s.broadcast.BroadcastToRun(opts.RunID, MsgAnswerRecorded, AnswerEvent{
			Index:    index,
			Total:    total,
			Category: cat,
			Answer:   a,
		})
	}
	s.logger.Debug("Answer recorded",
		zap.String("question_id", a.QuestionID),
		zap.String("response", string(a.ExtractedLetter)),
		zap.String("ground_truth", string(a.GroundTruth)),
		zap.Bool("correct", a.IsCorrect))
}

func (s *EvaluatorService) saveSummary(ctx context.Context, summary *model.RunSummary) {
	if s.runs == nil {
		return
	}
	if err := s.runs.SaveSummary(ctx, summary); err != nil {
		s.logger.Warn("Failed to save run summary", zap.String("run_id", summary.RunID), zap.Error(err))
	}
}
