package cache

import (
	"context"
	"strconv"
	"sync"

	"foodieqa/internal/model"
)

// memoryProgress keeps the same hash fields as the Redis cache in process
// memory, for serve without Redis and for tests
type memoryProgress struct {
	mu   sync.Mutex
	runs map[string]map[string]int64
}

// NewMemoryProgressCache creates an in-process progress cache
func NewMemoryProgressCache() ProgressCache {
	return &memoryProgress{runs: make(map[string]map[string]int64)}
}

func (c *memoryProgress) Record(_ context.Context, runID string, cat model.Category, a model.ModelAnswer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields := c.runs[runID]
	if fields == nil {
		fields = make(map[string]int64)
		c.runs[runID] = fields
	}
	for field, n := range progressFields(cat, a) {
		fields[field] += n
	}
	return nil
}

func (c *memoryProgress) Progress(_ context.Context, runID string) (*Progress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields, ok := c.runs[runID]
	if !ok {
		return nil, nil
	}
	data := make(map[string]string, len(fields))
	for k, v := range fields {
		data[k] = strconv.FormatInt(v, 10)
	}
	return parseProgress(runID, data), nil
}

func (c *memoryProgress) Clear(_ context.Context, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runs, runID)
	return nil
}
