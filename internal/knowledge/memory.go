package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type memoryDocument struct {
	text      string
	metadata  map[string]string
	embedding []float32
}

// MemoryStore ranks documents with brute-force cosine similarity. Nothing is
// persisted.
type MemoryStore struct {
	mu       sync.RWMutex
	embedder Embedder
	docs     map[string]memoryDocument
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{
		embedder: embedder,
		docs:     make(map[string]memoryDocument),
	}
}

// Add stores text under its content address. Re-adding the same text
// replaces its metadata.
func (m *MemoryStore) Add(ctx context.Context, text string, metadata map[string]string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed document: %w", err)
	}
	id := DocumentID(text)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = memoryDocument{text: text, metadata: metadata, embedding: emb}
	return id, nil
}

// Search returns up to k documents closest to query
func (m *MemoryStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}
	q, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.docs))
	for id, d := range m.docs {
		results = append(results, SearchResult{
			ID:       id,
			Text:     d.text,
			Metadata: d.metadata,
			Score:    cosineSimilarity(q, d.embedding),
		})
	}
	return rank(results, k), nil
}

// Len returns the number of stored documents
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
