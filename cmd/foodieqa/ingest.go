package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodieqa/internal/config"
	"foodieqa/internal/dataset"
	"foodieqa/internal/knowledge"
	"foodieqa/internal/model"
)

var (
	ingestRecipes string
	ingestDB      string
)

// ingestCmd builds the knowledge store used for snippet context
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index dish records into the knowledge store",
	Long: `Embeds one document per dish record from all_recipes.json into the SQLite
knowledge store. Documents are content addressed, so running ingest again
only adds what changed.

Embeddings come from Gemini when an API key is configured and from the
offline hash embedder otherwise. Query with the same embedder you ingested
with.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRecipes, "recipes", "", "Recipes file (default: data.recipes_file)")
	ingestCmd.Flags().StringVar(&ingestDB, "db", "", "Knowledge database (default: storage.knowledge_db)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(func(cfg *config.Config) {
		if ingestRecipes != "" {
			cfg.Data.RecipesFile = ingestRecipes
		}
		if ingestDB != "" {
			cfg.Storage.KnowledgeDB = ingestDB
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := dataset.LoadRecipes(a.Config.DataPath(a.Config.Data.RecipesFile))
	if err != nil {
		return err
	}
	store, err := a.OpenKnowledge(ctx)
	if err != nil {
		return err
	}

	n, err := knowledge.IngestDishes(ctx, store, sortedRecords(recs))
	if err != nil {
		return err
	}
	logger.Info("Ingested dish records", zap.Int("documents", n), zap.Int("records", len(recs)))
	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d dish records\n", n)
	return nil
}

// sortedRecords orders records by name so ingestion is reproducible
func sortedRecords(recs map[string]model.DishRecord) []model.DishRecord {
	names := make([]string, 0, len(recs))
	for name := range recs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]model.DishRecord, 0, len(names))
	for _, name := range names {
		out = append(out, recs[name])
	}
	return out
}
