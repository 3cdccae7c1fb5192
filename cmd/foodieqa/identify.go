package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodieqa/internal/config"
	"foodieqa/internal/dataset"
	"foodieqa/internal/model"
	"foodieqa/internal/service"
)

var (
	identifyModel  string
	identifyLimit  int
	identifyOutput string
	identifyWeb    bool
)

// identifyCmd produces the dish predictions used by the predicted-dish variant
var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Guess three candidate dishes per question image",
	Long: `Shows the model every question image together with the dish catalog and
asks for its three best guesses. The predictions file is rewritten after
each question, so an interrupted pass keeps what it finished.

The output feeds template 100 (predicted-dish context).`,
	Args: cobra.NoArgs,
	RunE: runIdentify,
}

func init() {
	identifyCmd.Flags().StringVar(&identifyModel, "model", "", "Identification model name (overrides ai.models.identify)")
	identifyCmd.Flags().IntVarP(&identifyLimit, "limit", "n", 0, "Identify only the first N questions")
	identifyCmd.Flags().StringVarP(&identifyOutput, "output", "o", "", "Predictions file (default: data.predictions_file)")
	identifyCmd.Flags().BoolVar(&identifyWeb, "web-image", false, "Use the web image instead of the local photo")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(func(cfg *config.Config) {
		if cmd.Flags().Changed("model") {
			cfg.AI.Models.Identify = identifyModel
		}
		if cmd.Flags().Changed("web-image") {
			cfg.Run.UseWebImage = identifyWeb
		}
	})
	if err != nil {
		return err
	}
	cfg := a.Config

	catalog, err := dataset.LoadDishCatalog(cfg.DataPath(cfg.Data.DishCatalogFile))
	if err != nil {
		return err
	}
	questions, _, err := a.LoadQuestions()
	if err != nil {
		return err
	}
	if identifyLimit > 0 && identifyLimit < len(questions) {
		questions = questions[:identifyLimit]
	}

	svc, err := service.NewModelService(ctx, &cfg.AI, cfg.AI.Models.Identify)
	if err != nil {
		return err
	}

	out := identifyOutput
	if out == "" {
		out = cfg.DataPath(cfg.Data.PredictionsFile)
	}
	logger.Info("Starting dish identification",
		zap.String("model", svc.Name()),
		zap.Int("questions", len(questions)),
		zap.String("output", out))

	identifier := service.NewIdentifierService(svc, dataset.ImageDir(cfg.Data.DataDir), logger)
	preds, err := identifier.Identify(ctx, questions, catalog, cfg.Run.UseWebImage, func(sofar []model.DishPrediction) {
		if werr := dataset.WritePredictions(out, sofar); werr != nil {
			logger.Warn("Failed to write predictions", zap.String("path", out), zap.Error(werr))
		}
	})
	if err != nil {
		return err
	}
	return dataset.WritePredictions(out, preds)
}
