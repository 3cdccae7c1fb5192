package repository

import (
	"context"
	"sort"
	"sync"

	"foodieqa/internal/model"
)

// MemoryRunRepo keeps runs in process memory. Used by serve when no MongoDB
// is configured, and by tests.
type MemoryRunRepo struct {
	mu        sync.RWMutex
	summaries map[string]model.RunSummary
	answers   map[string][]model.ModelAnswer
}

// NewMemoryRunRepo creates an empty repository
func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{
		summaries: make(map[string]model.RunSummary),
		answers:   make(map[string][]model.ModelAnswer),
	}
}

func (r *MemoryRunRepo) SaveSummary(_ context.Context, summary *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[summary.RunID] = copySummary(summary)
	return nil
}

func (r *MemoryRunRepo) GetSummary(_ context.Context, runID string) (*model.RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.summaries[runID]
	if !ok {
		return nil, nil
	}
	out := copySummary(&s)
	return &out, nil
}

// ListSummaries returns the newest runs first
func (r *MemoryRunRepo) ListSummaries(_ context.Context, limit int64) ([]*model.RunSummary, error) {
	r.mu.RLock()
	out := make([]*model.RunSummary, 0, len(r.summaries))
	for _, s := range r.summaries {
		c := copySummary(&s)
		out = append(out, &c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRunRepo) SaveAnswers(_ context.Context, runID string, answers []model.ModelAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers[runID] = append([]model.ModelAnswer(nil), answers...)
	return nil
}

func (r *MemoryRunRepo) GetAnswers(_ context.Context, runID string) ([]model.ModelAnswer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.ModelAnswer(nil), r.answers[runID]...), nil
}

func (r *MemoryRunRepo) EnsureIndexes(context.Context) error { return nil }

func copySummary(s *model.RunSummary) model.RunSummary {
	c := *s
	if s.Report != nil {
		c.Report = make(model.AccuracyReport, len(s.Report))
		for k, v := range s.Report {
			c.Report[k] = v
		}
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
