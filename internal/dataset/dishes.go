package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"foodieqa/internal/model"
)

// LoadPredictions reads dish_identification_results.jsonl. Blank lines are
// ignored; a bad line fails the load with its line number.
func LoadPredictions(path string) ([]model.DishPrediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions %s: %w", path, err)
	}
	defer f.Close()
	return ReadPredictions(f)
}

// ReadPredictions decodes JSONL dish predictions from r
func ReadPredictions(r io.Reader) ([]model.DishPrediction, error) {
	var out []model.DishPrediction
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var p model.DishPrediction
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, fmt.Errorf("predictions line %d: %w", line, err)
		}
		out = append(out, p)
	}
	return out, sc.Err()
}

// WritePredictions writes predictions as JSONL
func WritePredictions(path string, preds []model.DishPrediction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, p := range preds {
		if err := enc.Encode(p); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadDishCatalog reads dishes_data.json
func LoadDishCatalog(path string) (*model.DishCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dish catalog %s: %w", path, err)
	}
	var c model.DishCatalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse dish catalog %s: %w", path, err)
	}
	if len(c.DishesByCuisine) == 0 {
		return nil, errors.New("dish catalog has no dishes_by_cuisine entries")
	}
	return &c, nil
}

// LoadRecipes reads all_recipes.json, a map of dish name to record
func LoadRecipes(path string) (map[string]model.DishRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipes %s: %w", path, err)
	}
	var recs map[string]model.DishRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse recipes %s: %w", path, err)
	}
	for name, rec := range recs {
		if rec.DishName == "" {
			rec.DishName = name
			recs[name] = rec
		}
	}
	return recs, nil
}
