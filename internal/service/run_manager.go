package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foodieqa/internal/config"
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
	"foodieqa/internal/repository"
	"foodieqa/internal/resultlog"
	"foodieqa/internal/score"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrBadRequest  = errors.New("invalid run request")
)

// RunManager starts evaluation runs in the background for the HTTP API
type RunManager struct {
	evaluator  *EvaluatorService
	runs       repository.RunRepo
	registry   *prompt.Registry
	questions  []model.Question
	categories score.CategoryMap
	defaults   config.RunConfig
	outputDir  string
	logger     *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	base    context.Context
	stop    context.CancelFunc
}

// NewRunManager creates a manager over a loaded dataset. Every run writes
// its log under outputDir/<runId>/.
func NewRunManager(evaluator *EvaluatorService, runs repository.RunRepo, questions []model.Question, categories score.CategoryMap, defaults config.RunConfig, outputDir string, logger *zap.Logger) *RunManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runs == nil {
		runs = repository.NewMemoryRunRepo()
	}
	base, stop := context.WithCancel(context.Background())
	return &RunManager{
		evaluator:  evaluator,
		runs:       runs,
		registry:   evaluator.registry,
		questions:  questions,
		categories: categories,
		defaults:   defaults,
		outputDir:  outputDir,
		logger:     logger,
		cancels:    make(map[string]context.CancelFunc),
		base:       base,
		stop:       stop,
	}
}

// Options converts a request into run options over the configured defaults
func (m *RunManager) Options(req model.StartRunRequest) (RunOptions, error) {
	opts := RunOptions{
		Variant:          prompt.Variant(m.defaults.TemplateVariant),
		Adaptive:         m.defaults.Adaptive,
		Language:         model.Language(m.defaults.Language),
		AugmentationMode: model.AugmentationMode(m.defaults.AugmentationMode),
		ShowDishName:     m.defaults.ShowDishNameInQuestion,
		UseWebImage:      m.defaults.UseWebImage,
		Workers:          m.defaults.Workers,
		Categories:       m.categories,
	}
	if req.Variant != nil {
		opts.Variant = prompt.Variant(*req.Variant)
	}
	if req.Language != "" {
		opts.Language = model.Language(req.Language)
	}
	if req.AugmentationMode != "" {
		opts.AugmentationMode = model.AugmentationMode(req.AugmentationMode)
	}
	if req.ShowDishName != nil {
		opts.ShowDishName = *req.ShowDishName
	}
	if req.UseWebImage != nil {
		opts.UseWebImage = *req.UseWebImage
	}
	if req.Adaptive != nil {
		opts.Adaptive = *req.Adaptive
	}

	if !opts.Language.Valid() {
		return opts, fmt.Errorf("%w: unsupported language %q", ErrBadRequest, opts.Language)
	}
	if opts.AugmentationMode != "" && !opts.AugmentationMode.Valid() {
		return opts, fmt.Errorf("%w: unknown augmentation mode %q", ErrBadRequest, opts.AugmentationMode)
	}
	if !opts.Adaptive {
		if _, err := m.registry.Lookup(opts.Variant); err != nil {
			return opts, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	if req.Limit < 0 {
		return opts, fmt.Errorf("%w: negative limit", ErrBadRequest)
	}
	return opts, nil
}

// StartRun validates req and launches the run. The returned summary is the
// initial running state.
func (m *RunManager) StartRun(req model.StartRunRequest) (*model.RunSummary, error) {
	opts, err := m.Options(req)
	if err != nil {
		return nil, err
	}
	opts.RunID = uuid.New().String()

	questions := m.questions
	if req.Limit > 0 && req.Limit < len(questions) {
		questions = questions[:req.Limit]
	}

	logPath := filepath.Join(m.outputDir, opts.RunID, resultlog.LogName(int(opts.Variant), opts.Adaptive))
	w, err := resultlog.Create(logPath)
	if err != nil {
		return nil, err
	}
	opts.Log = w

	ctx, cancel := context.WithCancel(m.base)
	m.mu.Lock()
	m.cancels[opts.RunID] = cancel
	m.mu.Unlock()

	initial := &model.RunSummary{
		RunID:          opts.RunID,
		Variant:        int(opts.Variant),
		Adaptive:       opts.Adaptive,
		Language:       opts.Language,
		TotalQuestions: len(questions),
		Status:         model.RunStatusRunning,
		StartedAt:      time.Now().UTC(),
	}
	if err := m.runs.SaveSummary(ctx, initial); err != nil {
		m.logger.Warn("Failed to save initial summary", zap.String("run_id", opts.RunID), zap.Error(err))
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.forget(opts.RunID)
		defer w.Close()

		summary, _, err := m.evaluator.Run(ctx, questions, opts)
		if err != nil {
			m.logger.Warn("Run ended early", zap.String("run_id", opts.RunID), zap.Error(err))
			return
		}
		summaryPath := filepath.Join(m.outputDir, opts.RunID, resultlog.SummaryName(int(opts.Variant), opts.Adaptive))
		if err := resultlog.WriteSummary(summaryPath, summary); err != nil {
			m.logger.Warn("Failed to write summary", zap.String("path", summaryPath), zap.Error(err))
		}
	}()

	return initial, nil
}

// Cancel stops a running run
func (m *RunManager) Cancel(runID string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[runID]
	m.mu.Unlock()
	if !ok {
		return ErrRunNotFound
	}
	cancel()
	return nil
}

// Active reports whether runID is still executing
func (m *RunManager) Active(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cancels[runID]
	return ok
}

// Runs returns the repository runs are persisted to
func (m *RunManager) Runs() repository.RunRepo { return m.runs }

// Registry returns the prompt variants runs may use
func (m *RunManager) Registry() *prompt.Registry { return m.registry }

// Wait blocks until every started run has returned
func (m *RunManager) Wait() { m.wg.Wait() }

// Shutdown cancels all runs and waits for them
func (m *RunManager) Shutdown() {
	m.stop()
	m.wg.Wait()
}

func (m *RunManager) forget(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[runID]; ok {
		cancel()
		delete(m.cancels, runID)
	}
}
