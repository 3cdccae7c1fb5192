package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodieqa/internal/app"
	"foodieqa/internal/config"
	"foodieqa/internal/dataset"
	"foodieqa/internal/repository"
)

var (
	configPath  string
	recipesFile string
)

// seedCmd loads all_recipes.json into the MongoDB dishes collection so runs
// can use storage.dish_source: mongo
var seedCmd = &cobra.Command{
	Use:          "seed",
	Short:        "Load dish records into MongoDB",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()
		return seed(configPath, recipesFile, logger)
	},
}

func main() {
	seedCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	seedCmd.Flags().StringVar(&recipesFile, "recipes", "", "Recipes file (default: data.recipes_file)")
	if err := seedCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seed(configPath, recipesFile string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if recipesFile != "" {
		cfg.Data.RecipesFile = recipesFile
	}

	recs, err := dataset.LoadRecipes(cfg.DataPath(cfg.Data.RecipesFile))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a := app.New(cfg, logger)
	defer a.Close()
	if err := a.ConnectMongo(ctx); err != nil {
		return err
	}

	dishes := repository.NewDishRepo(a.DB)
	if err := dishes.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("create dish indexes: %w", err)
	}
	for name := range recs {
		rec := recs[name]
		if err := dishes.Upsert(ctx, &rec); err != nil {
			return fmt.Errorf("upsert %s: %w", name, err)
		}
	}

	count, err := dishes.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("Seeded dish records", zap.Int("records", len(recs)), zap.Int64("collection_size", count))
	return nil
}
