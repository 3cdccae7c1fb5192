package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"foodieqa/internal/model"
	"foodieqa/internal/score"
)

// ProgressCache keeps live per-run counters in a Redis hash
type ProgressCache interface {
	Record(ctx context.Context, runID string, cat model.Category, a model.ModelAnswer) error
	Progress(ctx context.Context, runID string) (*Progress, error)
	Clear(ctx context.Context, runID string) error
}

// Progress is a snapshot of a running evaluation
type Progress struct {
	RunID    string               `json:"runId"`
	Answered int                  `json:"answered"`
	Skipped  int                  `json:"skipped"`
	Failed   int                  `json:"failed"`
	Unmapped int                  `json:"unmapped"`
	Report   model.AccuracyReport `json:"report"`
}

type progressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressCache creates a new progress cache
func NewProgressCache(client *redis.Client) ProgressCache {
	return &progressCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *progressCache) key(runID string) string {
	return fmt.Sprintf("run:%s:progress", runID)
}

const (
	fieldAnswered = "answered"
	fieldSkipped  = "skipped"
	fieldFailed   = "failed"
	fieldUnmapped = "unmapped"

	suffixCorrect = ":correct"
	suffixTotal   = ":total"
)

// progressFields lists the HINCRBY increments for one answer. cat may be
// empty for an unmapped question.
func progressFields(cat model.Category, a model.ModelAnswer) map[string]int64 {
	fields := map[string]int64{fieldAnswered: 1}
	if a.Skipped {
		fields[fieldSkipped] = 1
		return fields
	}
	if a.Error != "" {
		fields[fieldFailed] = 1
	}
	if cat == "" {
		fields[fieldUnmapped] = 1
		return fields
	}
	fields["cat:"+string(cat)+suffixTotal] = 1
	if a.IsCorrect {
		fields["cat:"+string(cat)+suffixCorrect] = 1
	}
	return fields
}

func (c *progressCache) Record(ctx context.Context, runID string, cat model.Category, a model.ModelAnswer) error {
	key := c.key(runID)
	pipe := c.client.TxPipeline()
	for field, n := range progressFields(cat, a) {
		pipe.HIncrBy(ctx, key, field, n)
	}
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *progressCache) Progress(ctx context.Context, runID string) (*Progress, error) {
	data, err := c.client.HGetAll(ctx, c.key(runID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return parseProgress(runID, data), nil
}

func (c *progressCache) Clear(ctx context.Context, runID string) error {
	return c.client.Del(ctx, c.key(runID)).Err()
}

func parseProgress(runID string, data map[string]string) *Progress {
	p := &Progress{RunID: runID}
	correct := make(map[string]int)
	total := make(map[string]int)
	for field, raw := range data {
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		switch {
		case field == fieldAnswered:
			p.Answered = n
		case field == fieldSkipped:
			p.Skipped = n
		case field == fieldFailed:
			p.Failed = n
		case field == fieldUnmapped:
			p.Unmapped = n
		case strings.HasPrefix(field, "cat:") && strings.HasSuffix(field, suffixTotal):
			total[strings.TrimSuffix(strings.TrimPrefix(field, "cat:"), suffixTotal)] = n
		case strings.HasPrefix(field, "cat:") && strings.HasSuffix(field, suffixCorrect):
			correct[strings.TrimSuffix(strings.TrimPrefix(field, "cat:"), suffixCorrect)] = n
		}
	}
	p.Report = score.FromCounts(correct, total)
	return p
}
