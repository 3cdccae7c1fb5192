package model

import "time"

// OverallKey is the reserved report key aggregating every scored answer
const OverallKey = "overall"

// CategoryStats is the accuracy of one category (or overall)
type CategoryStats struct {
	Correct  int     `json:"correct" bson:"correct"`
	Total    int     `json:"total" bson:"total"`
	Accuracy float64 `json:"accuracy" bson:"accuracy"` // Percent, 2 decimals
}

// AccuracyReport maps category name (plus "overall") to its stats.
// Categories with zero total are never present.
type AccuracyReport map[string]CategoryStats

// Overall returns the overall entry, zero if absent
func (r AccuracyReport) Overall() CategoryStats {
	return r[OverallKey]
}

// RunSummary is written once at the end of a run
type RunSummary struct {
	RunID            string         `json:"run_id" bson:"runId"`
	Variant          int            `json:"template" bson:"template"`
	VariantName      string         `json:"template_name" bson:"templateName"`
	Adaptive         bool           `json:"adaptive,omitempty" bson:"adaptive,omitempty"`
	Language         Language       `json:"language" bson:"language"`
	AugmentationMode string         `json:"augmentation_mode" bson:"augmentationMode"`
	ShowDishName     bool           `json:"show_food_name" bson:"showFoodName"`
	UseWebImage      bool           `json:"use_web_image" bson:"useWebImage"`
	Model            string         `json:"model" bson:"model"`
	TotalQuestions   int            `json:"total_questions" bson:"totalQuestions"`
	TotalCorrect     int            `json:"total_correct" bson:"totalCorrect"`
	Accuracy         float64        `json:"accuracy" bson:"accuracy"` // Percent, 2 decimals
	Skipped          int            `json:"skipped" bson:"skipped"`   // Malformed input records
	Failed           int            `json:"failed" bson:"failed"`     // Service or image errors
	Unmapped         int            `json:"unmapped" bson:"unmapped"` // Answers with no known category
	Report           AccuracyReport `json:"report" bson:"report"`
	Status           string         `json:"status" bson:"status"` // "running", "finished", "failed"
	StartedAt        time.Time      `json:"started_at" bson:"startedAt"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty" bson:"finishedAt,omitempty"`
}

const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)
