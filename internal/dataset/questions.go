// Package dataset reads the benchmark's file inputs.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"foodieqa/internal/model"
	"foodieqa/internal/score"
)

// rawQuestion is one record of sivqa_tidy.json
type rawQuestion struct {
	QuestionID   string          `json:"question_id"`
	Question     string          `json:"question"`
	QuestionEN   string          `json:"question_en"`
	Choices      []string        `json:"choices"`
	ChoicesEN    []string        `json:"choices_en"`
	Answer       json.RawMessage `json:"answer"`
	QuestionType string          `json:"question_type"`
	FoodName     string          `json:"food_name"`
	FoodMeta     struct {
		FoodFile string `json:"food_file"`
		WebFile  string `json:"web_file"`
	} `json:"food_meta"`
}

// LoadQuestions reads the question file. A record that cannot be decoded is
// kept with LoadError set so the run can log it as skipped.
func LoadQuestions(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions %s: %w", path, err)
	}
	return ParseQuestions(data)
}

// ParseQuestions decodes a JSON array of question records
func ParseQuestions(data []byte) ([]model.Question, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}

	questions := make([]model.Question, 0, len(records))
	for i, rec := range records {
		q, err := decodeQuestion(rec)
		if err != nil {
			q.LoadError = fmt.Sprintf("record %d: %v", i, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func decodeQuestion(data json.RawMessage) (model.Question, error) {
	var raw rawQuestion
	if err := json.Unmarshal(data, &raw); err != nil {
		// the id is still worth keeping for the log line
		var idOnly struct {
			QuestionID json.RawMessage `json:"question_id"`
		}
		_ = json.Unmarshal(data, &idOnly)
		return model.Question{ID: strings.Trim(string(idOnly.QuestionID), `"`)}, err
	}

	q := model.Question{
		ID:        raw.QuestionID,
		Text:      raw.Question,
		TextEN:    raw.QuestionEN,
		Choices:   raw.Choices,
		ChoicesEN: raw.ChoicesEN,
		Category:  model.Category(raw.QuestionType),
		DishName:  raw.FoodName,
		Image:     model.ImageRef{File: raw.FoodMeta.FoodFile, WebFile: raw.FoodMeta.WebFile},
	}
	idx, err := parseAnswer(raw.Answer)
	if err != nil {
		return q, err
	}
	q.AnswerIndex = idx
	return q, nil
}

// parseAnswer accepts 2 or "2"
func parseAnswer(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing answer")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("answer %s is neither a number nor a string", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("answer %q is not numeric", s)
	}
	return n, nil
}

// LoadCategoryMap reads question_type_analysis.json
func LoadCategoryMap(path string) (score.CategoryMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category map %s: %w", path, err)
	}
	var doc struct {
		Mappings map[string]string `json:"question_id_mappings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse category map %s: %w", path, err)
	}
	m := make(score.CategoryMap, len(doc.Mappings))
	for id, cat := range doc.Mappings {
		m[id] = model.Category(cat)
	}
	return m, nil
}

// CategoryMapFromQuestions derives categories from the question records
func CategoryMapFromQuestions(questions []model.Question) score.CategoryMap {
	m := make(score.CategoryMap, len(questions))
	for _, q := range questions {
		if q.ID != "" && q.Category != "" {
			m[q.ID] = q.Category
		}
	}
	return m
}

// MergeCategoryMaps overlays override on base into a new map
func MergeCategoryMaps(base, override score.CategoryMap) score.CategoryMap {
	out := make(score.CategoryMap, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
