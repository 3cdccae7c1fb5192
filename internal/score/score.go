// Package score folds answers into per-category and overall accuracy.
package score

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"foodieqa/internal/model"
)

// CategoryMap maps question id to its category
type CategoryMap map[string]model.Category

// Lookup returns the category of a question; ok is false for unmapped ids
func (m CategoryMap) Lookup(questionID string) (model.Category, bool) {
	c, ok := m[questionID]
	if !ok || c == "" {
		return "", false
	}
	return c, true
}

// Result is the outcome of one fold
type Result struct {
	Report   model.AccuracyReport
	Unmapped int // Answers left out because their question has no category
	Skipped  int // Malformed-input entries, never scored
}

// Score folds answers into an accuracy report. Skipped entries are ignored;
// answers with no category are excluded from every total, including overall,
// and reported once through logger.
func Score(answers []model.ModelAnswer, categories CategoryMap, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := NewTally()
	var firstUnmapped string
	for _, a := range answers {
		cat, ok := categories.Lookup(a.QuestionID)
		if !t.Add(a, cat, ok) && !ok && !a.Skipped && firstUnmapped == "" {
			firstUnmapped = a.QuestionID
		}
	}
	res := Result{Report: t.Report(), Unmapped: t.Unmapped(), Skipped: t.Skipped()}
	if res.Unmapped > 0 {
		logger.Warn("Answers without a category were left out of the report",
			zap.Int("count", res.Unmapped),
			zap.String("first_question_id", firstUnmapped))
	}
	return res
}

// Accuracy is 100*correct/total rounded to two decimals; zero for no total
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*100*100) / 100
}

// FromCounts builds a report from raw per-category counters. Categories with
// zero total are omitted; overall is the sum of what remains.
func FromCounts(correct, total map[string]int) model.AccuracyReport {
	report := make(model.AccuracyReport)
	var allCorrect, allTotal int
	for cat, n := range total {
		if n <= 0 || cat == model.OverallKey {
			continue
		}
		c := correct[cat]
		report[cat] = model.CategoryStats{Correct: c, Total: n, Accuracy: Accuracy(c, n)}
		allCorrect += c
		allTotal += n
	}
	if allTotal > 0 {
		report[model.OverallKey] = model.CategoryStats{
			Correct:  allCorrect,
			Total:    allTotal,
			Accuracy: Accuracy(allCorrect, allTotal),
		}
	}
	return report
}

// Categories returns the report keys without overall, sorted
func Categories(r model.AccuracyReport) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k != model.OverallKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

type counter struct {
	correct, total int
}

// Tally accumulates scored answers. Safe for concurrent use; Add and Merge
// commute, so workers may fold in any order.
type Tally struct {
	mu       sync.Mutex
	counts   map[model.Category]counter
	unmapped int
	skipped  int
}

// NewTally creates an empty tally
func NewTally() *Tally {
	return &Tally{counts: make(map[model.Category]counter)}
}

// Add folds one answer under cat and reports whether it was counted.
// known=false marks the answer unmapped.
func (t *Tally) Add(a model.ModelAnswer, cat model.Category, known bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case a.Skipped:
		t.skipped++
		return false
	case !known:
		t.unmapped++
		return false
	}
	c := t.counts[cat]
	c.total++
	if a.IsCorrect {
		c.correct++
	}
	t.counts[cat] = c
	return true
}

// Merge adds every counter of other into t
func (t *Tally) Merge(other *Tally) {
	if other == nil || other == t {
		return
	}
	other.mu.Lock()
	counts := make(map[model.Category]counter, len(other.counts))
	for k, v := range other.counts {
		counts[k] = v
	}
	unmapped, skipped := other.unmapped, other.skipped
	other.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range counts {
		c := t.counts[k]
		c.correct += v.correct
		c.total += v.total
		t.counts[k] = c
	}
	t.unmapped += unmapped
	t.skipped += skipped
}

// Report renders the current counters
func (t *Tally) Report() model.AccuracyReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	correct := make(map[string]int, len(t.counts))
	total := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		correct[string(k)] = v.correct
		total[string(k)] = v.total
	}
	return FromCounts(correct, total)
}

func (t *Tally) Unmapped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unmapped
}

func (t *Tally) Skipped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.skipped
}
