package repository

import (
	"context"
	"sort"

	"foodieqa/internal/model"
)

// MapDishStore serves dish records from memory, keyed by exact name
type MapDishStore struct {
	records map[string]model.DishRecord
}

// NewMapDishStore indexes records by name. Later duplicates win.
func NewMapDishStore(records map[string]model.DishRecord) *MapDishStore {
	m := make(map[string]model.DishRecord, len(records))
	for key, rec := range records {
		if rec.DishName == "" {
			rec.DishName = key
		}
		m[key] = rec
	}
	return &MapDishStore{records: m}
}

func (s *MapDishStore) Get(_ context.Context, name string) (*model.DishRecord, error) {
	rec, ok := s.records[name]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Records returns every record ordered by name
func (s *MapDishStore) Records() []model.DishRecord {
	out := make([]model.DishRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DishName < out[j].DishName })
	return out
}

// Len returns the number of records
func (s *MapDishStore) Len() int { return len(s.records) }
