package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"foodieqa/internal/knowledge"
)

// SearchCache memoises knowledge-store searches in Redis. Cache failures
// fall through to the wrapped store.
type SearchCache struct {
	client *redis.Client
	store  knowledge.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewSearchCache wraps store with a Redis read-through cache
func NewSearchCache(client *redis.Client, store knowledge.Store, ttl time.Duration, logger *zap.Logger) *SearchCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchCache{client: client, store: store, ttl: ttl, logger: logger}
}

func searchKey(query string, k int) string {
	return fmt.Sprintf("kb:search:%d:%s", k, knowledge.DocumentID(query))
}

// Add writes through to the store. Cached searches may be stale until they
// expire.
func (c *SearchCache) Add(ctx context.Context, text string, metadata map[string]string) (string, error) {
	return c.store.Add(ctx, text, metadata)
}

func (c *SearchCache) Search(ctx context.Context, query string, k int) ([]knowledge.SearchResult, error) {
	key := searchKey(query, k)
	data, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var results []knowledge.SearchResult
		if err := json.Unmarshal([]byte(data), &results); err == nil {
			return results, nil
		}
		c.logger.Warn("Discarding unreadable cached search", zap.String("key", key))
	case err != redis.Nil:
		c.logger.Warn("Search cache read failed", zap.String("key", key), zap.Error(err))
	}

	results, err := c.store.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(results); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Search cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return results, nil
}
