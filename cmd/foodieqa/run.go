package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodieqa/internal/cache"
	"foodieqa/internal/config"
	"foodieqa/internal/dataset"
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
	"foodieqa/internal/repository"
	"foodieqa/internal/resultlog"
	"foodieqa/internal/service"
)

var (
	runTemplate     int
	runAdaptive     bool
	runLanguage     string
	runAugmentation string
	runShowDishName bool
	runWebImage     bool
	runWorkers      int
	runLimit        int
	runModel        string
	runPersist      bool
)

// runCmd evaluates the model over the question set
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate the model on every question and report accuracy",
	Long: `Runs one prompt variant over the question set, appending each answer to
the result log as it is produced, then writes the run summary and prints
per-category accuracy.

Examples:
  foodieqa run --template 14
  foodieqa run --adaptive --workers 4
  foodieqa run --template 1 --augmentation structured --language en`,
	Args: cobra.NoArgs,
	RunE: runEvaluation,
}

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runTemplate, "template", "t", 0, "Prompt variant id (see foodieqa variants)")
	f.BoolVar(&runAdaptive, "adaptive", false, "Pick the variant per question category")
	f.StringVarP(&runLanguage, "language", "l", "", "Question language: zh or en")
	f.StringVar(&runAugmentation, "augmentation", "", "Override the variant's context source: none, snippet, structured, predicted-dish")
	f.BoolVar(&runShowDishName, "show-food-name", false, "Include the dish name in the question")
	f.BoolVar(&runWebImage, "web-image", false, "Use the web image instead of the local photo")
	f.IntVarP(&runWorkers, "workers", "j", 1, "Questions evaluated concurrently")
	f.IntVarP(&runLimit, "limit", "n", 0, "Evaluate only the first N questions")
	f.StringVar(&runModel, "model", "", "Answer model name (overrides ai.models.answer)")
	f.BoolVar(&runPersist, "persist", false, "Save the run to MongoDB and live progress to Redis")
}

// applyRunFlags overlays the flags the user actually set
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("template") {
		cfg.Run.TemplateVariant = runTemplate
	}
	if f.Changed("adaptive") {
		cfg.Run.Adaptive = runAdaptive
	}
	if f.Changed("language") {
		cfg.Run.Language = runLanguage
	}
	if f.Changed("augmentation") {
		cfg.Run.AugmentationMode = runAugmentation
	}
	if f.Changed("show-food-name") {
		cfg.Run.ShowDishNameInQuestion = runShowDishName
	}
	if f.Changed("web-image") {
		cfg.Run.UseWebImage = runWebImage
	}
	if f.Changed("workers") {
		cfg.Run.Workers = runWorkers
	}
	if f.Changed("model") {
		cfg.AI.Models.Answer = runModel
	}
}

func runEvaluation(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(func(cfg *config.Config) { applyRunFlags(cmd, cfg) })
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.Config

	if runLimit < 0 {
		return errors.New("--limit must not be negative")
	}
	if err := a.ConnectRedis(ctx); err != nil {
		logger.Warn("Redis unavailable; running without the search cache", zap.Error(err))
	}

	questions, categories, err := a.LoadQuestions()
	if err != nil {
		return err
	}
	if runLimit > 0 && runLimit < len(questions) {
		questions = questions[:runLimit]
	}

	res, err := a.Resolver(ctx)
	if err != nil {
		return err
	}
	svc, err := service.NewModelService(ctx, &cfg.AI, cfg.AI.Models.Answer)
	if err != nil {
		return err
	}

	var evalOpts []service.EvaluatorOption
	if runPersist {
		if err := a.ConnectMongo(ctx); err != nil {
			return err
		}
		runs := repository.NewRunRepo(a.DB)
		if err := runs.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to create run indexes", zap.Error(err))
		}
		evalOpts = append(evalOpts, service.WithRunRepo(runs))
		if a.Redis != nil {
			evalOpts = append(evalOpts, service.WithProgressCache(cache.NewProgressCache(a.Redis)))
		}
	}
	evaluator := service.NewEvaluatorService(svc, prompt.Default(), res, dataset.ImageDir(cfg.Data.DataDir), logger, evalOpts...)

	variant := prompt.Variant(cfg.Run.TemplateVariant)
	logPath := cfg.OutputPath(resultlog.LogName(int(variant), cfg.Run.Adaptive))
	w, err := resultlog.Create(logPath)
	if err != nil {
		return err
	}
	defer w.Close()

	opts := service.RunOptions{
		RunID:            uuid.New().String(),
		Variant:          variant,
		Adaptive:         cfg.Run.Adaptive,
		Language:         model.Language(cfg.Run.Language),
		AugmentationMode: model.AugmentationMode(cfg.Run.AugmentationMode),
		ShowDishName:     cfg.Run.ShowDishNameInQuestion,
		UseWebImage:      cfg.Run.UseWebImage,
		Workers:          cfg.Run.Workers,
		Log:              w,
		Categories:       categories,
	}
	logger.Info("Starting run",
		zap.String("run_id", opts.RunID),
		zap.Int("template", int(variant)),
		zap.Bool("adaptive", opts.Adaptive),
		zap.String("model", svc.Name()),
		zap.Int("questions", len(questions)),
		zap.String("log", logPath))

	summary, _, runErr := evaluator.Run(ctx, questions, opts)
	if summary == nil {
		return runErr
	}

	summaryPath := cfg.OutputPath(resultlog.SummaryName(int(variant), cfg.Run.Adaptive))
	if err := resultlog.WriteSummary(summaryPath, summary); err != nil {
		return errors.Join(runErr, fmt.Errorf("write summary: %w", err))
	}
	printSummary(os.Stdout, summary)
	logger.Info("Run finished",
		zap.String("run_id", summary.RunID),
		zap.String("status", summary.Status),
		zap.Float64("accuracy", summary.Accuracy),
		zap.String("summary", summaryPath))
	return runErr
}
