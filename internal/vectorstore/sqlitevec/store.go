// Package sqlitevec provides a vector store backed by SQLite with
// embeddings held in BLOB columns and cosine similarity computed in
// process.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/conciergehq/concierge/internal/vectorstore"
	"github.com/conciergehq/concierge/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Store implements vectorstore.Store using SQLite.
type Store struct {
	db        *sql.DB
	dimension int
}

var _ vectorstore.Store = (*Store)(nil)

// Config contains configuration for the SQLite store.
type Config struct {
	Path      string // Path to SQLite database file, ":memory:" for in-process
	Dimension int    // Embedding dimension
}

// New opens the database and prepares the schema.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 768 // nomic-embed-text:v1.5
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dimension: cfg.Dimension}
	if err := s.EnsureIndex(context.Background(), cfg.Dimension); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureIndex creates the passages table and its indexes. CREATE IF NOT
// EXISTS makes repeated calls a no-op, so "already exists" is success.
func (s *Store) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension > 0 {
		s.dimension = dimension
	}

	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS passages (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata TEXT,
			fingerprint TEXT NOT NULL,
			embedding BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create passages table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_passages_fingerprint ON passages(fingerprint)",
		"CREATE INDEX IF NOT EXISTS idx_passages_created ON passages(created_at)",
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// HasFingerprint reports whether a chunk with the fingerprint exists.
func (s *Store) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM passages WHERE fingerprint = ? LIMIT 1", fingerprint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fingerprint lookup failed: %w", err)
	}
	return true, nil
}

// Upsert stores chunks with their embeddings in a single transaction.
func (s *Store) Upsert(ctx context.Context, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after a successful commit returns sql.ErrTxDone; either
	// way the error carries nothing worth surfacing.
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO passages (id, content, metadata, fingerprint, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now()
		}
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			chunk.Content,
			string(metadata),
			chunk.Metadata[models.FingerprintKey],
			encodeEmbedding(chunk.Embedding),
			chunk.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

// Search finds the k most similar passages using cosine similarity.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = 5
	}

	rows, err := s.db.QueryContext(ctx, "SELECT content, metadata, embedding FROM passages")
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var content, metadataJSON string
		var blob []byte
		if err := rows.Scan(&content, &metadataJSON, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var metadata map[string]string
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		score := cosineSimilarity(embedding, decodeEmbedding(blob))
		results = append(results, models.SearchResult{
			Content:  content,
			Score:    score,
			Metadata: metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortByScoreDesc(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeEmbedding converts []float32 to bytes for storage.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

// decodeEmbedding converts bytes back to []float32.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// cosineSimilarity returns similarity in [0,1], clamping negative cosine
// values to zero so callers can treat scores uniformly as relevance.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// sortByScoreDesc sorts results by score in descending order.
func sortByScoreDesc(results []models.SearchResult) {
	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[i].Score {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
}
