package knowledge

import (
	"context"
	"fmt"

	"foodieqa/internal/model"
)

// DishDocument is the indexed text of a dish record
func DishDocument(rec *model.DishRecord) string {
	return model.NewStructuredContext(rec.DishName, rec).Render(model.LanguageZH)
}

// IngestDishes adds one document per record and returns how many were stored.
// Records without a name are skipped.
func IngestDishes(ctx context.Context, store Store, recs []model.DishRecord) (int, error) {
	n := 0
	for i := range recs {
		rec := &recs[i]
		if rec.DishName == "" {
			continue
		}
		meta := map[string]string{"dish_name": rec.DishName}
		if rec.CuisineType != "" {
			meta["cuisine_type"] = rec.CuisineType
		}
		if rec.Source != "" {
			meta["source"] = rec.Source
		}
		if rec.URL != "" {
			meta["url"] = rec.URL
		}
		if _, err := store.Add(ctx, DishDocument(rec), meta); err != nil {
			return n, fmt.Errorf("ingest %s: %w", rec.DishName, err)
		}
		n++
	}
	return n, nil
}
