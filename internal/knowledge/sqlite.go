package knowledge

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func init() {
	// Register sqlite-vec with the mattn/go-sqlite3 driver for every new connection
	vec.Auto()
}

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	metadata TEXT,
	embedding BLOB NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore persists documents and their embeddings in a SQLite file.
// Ranking runs in SQL through vec_distance_cosine when sqlite-vec is loaded,
// otherwise in Go over every stored row.
type SQLiteStore struct {
	db        *sql.DB
	embedder  Embedder
	logger    *zap.Logger
	vectorExt bool
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string, embedder Embedder, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("Failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec(documentsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, embedder: embedder, logger: logger}
	s.detectVecExtension()
	if s.vectorExt {
		logger.Debug("sqlite-vec extension detected", zap.String("path", path))
	} else {
		logger.Warn("sqlite-vec extension not available; ranking in process", zap.String("path", path))
	}
	return s, nil
}

func (s *SQLiteStore) detectVecExtension() {
	var version string
	s.vectorExt = s.db.QueryRow("SELECT vec_version()").Scan(&version) == nil
}

// VectorExtension reports whether ranking is pushed down to sqlite-vec
func (s *SQLiteStore) VectorExtension() bool { return s.vectorExt }

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add stores text under its content address, replacing an earlier copy
func (s *SQLiteStore) Add(ctx context.Context, text string, metadata map[string]string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed document: %w", err)
	}
	blob, err := vec.SerializeFloat32(emb)
	if err != nil {
		return "", fmt.Errorf("serialize embedding: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("serialize metadata: %w", err)
	}

	id := DocumentID(text)
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO documents (doc_id, content, metadata, embedding) VALUES (?, ?, ?, ?)",
		id, text, string(metaJSON), blob,
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// Search returns up to k documents closest to query
func (s *SQLiteStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}
	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	blob, err := vec.SerializeFloat32(q)
	if err != nil {
		return nil, fmt.Errorf("serialize query: %w", err)
	}
	if s.vectorExt {
		return s.searchVec(ctx, blob, k)
	}
	return s.searchScan(ctx, q, len(blob), k)
}

func (s *SQLiteStore) searchVec(ctx context.Context, query []byte, k int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, content, metadata, vec_distance_cosine(embedding, ?) AS distance
		FROM documents
		WHERE length(embedding) = ?
		ORDER BY distance ASC, doc_id ASC
		LIMIT ?`, query, len(query), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r        SearchResult
			meta     sql.NullString
			distance float64
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &distance); err != nil {
			return nil, err
		}
		r.Metadata = decodeMetadata(meta)
		r.Score = 1 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) searchScan(ctx context.Context, query []float32, blobLen, k int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc_id, content, metadata, embedding FROM documents WHERE length(embedding) = ?", blobLen)
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			meta sql.NullString
			emb  []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &emb); err != nil {
			return nil, err
		}
		r.Metadata = decodeMetadata(meta)
		r.Score = cosineSimilarity(query, decodeFloat32(emb))
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rank(results, k), nil
}

// Count returns the number of stored documents
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

func decodeMetadata(meta sql.NullString) map[string]string {
	if !meta.Valid || meta.String == "" || meta.String == "null" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(meta.String), &m); err != nil {
		return nil
	}
	return m
}

// decodeFloat32 reads the little-endian layout written by vec.SerializeFloat32
func decodeFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
