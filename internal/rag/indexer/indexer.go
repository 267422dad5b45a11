// Package indexer coordinates the RAG indexing pipeline: chunking,
// content-hash deduplication, embedding, and batched storage.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/conciergehq/concierge/internal/embeddings"
	"github.com/conciergehq/concierge/internal/rag/chunker"
	"github.com/conciergehq/concierge/internal/vectorstore"
	"github.com/conciergehq/concierge/pkg/models"
	"github.com/google/uuid"
)

// Indexer splits documents into chunks and upserts the ones not already
// present in the vector store.
type Indexer struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	logger   *slog.Logger
}

// New creates an indexer and prepares the store index for the embedder's
// dimension.
func New(ctx context.Context, store vectorstore.Store, embedder embeddings.Provider, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.EnsureIndex(ctx, embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	return &Indexer{
		store:    store,
		embedder: embedder,
		logger:   logger.With("component", "indexer"),
	}, nil
}

// Result summarizes one indexing pass.
type Result struct {
	// ChunksIndexed is the number of new chunks inserted.
	ChunksIndexed int

	// ChunksSkipped is the number of chunks already present (by fingerprint).
	ChunksSkipped int

	// Duration is the total indexing time.
	Duration time.Duration
}

// Index chunks the documents and upserts the chunks whose fingerprint is
// not already stored. The upsert is a single batch: a store failure aborts
// the whole pass without partial application, and a pass with no new
// chunks performs no writes at all. Indexing the same documents twice
// therefore inserts nothing on the second pass.
func (ix *Indexer) Index(ctx context.Context, docs []models.Document, chunkSize, chunkOverlap int) (*Result, error) {
	start := time.Now()
	splitter := chunker.NewRecursiveCharacterTextSplitter(chunker.Config{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	})

	var staged []*models.DocumentChunk
	skipped := 0

	for _, doc := range docs {
		for _, text := range splitter.Split(doc.Content) {
			metadata := map[string]string{"document": doc.Name}
			for k, v := range doc.Metadata {
				metadata[k] = v
			}

			fingerprint := Fingerprint(text, metadata)
			exists, err := ix.store.HasFingerprint(ctx, fingerprint)
			if err != nil {
				return nil, fmt.Errorf("indexing aborted: fingerprint lookup: %w", err)
			}
			if exists {
				skipped++
				continue
			}

			metadata[models.FingerprintKey] = fingerprint
			staged = append(staged, &models.DocumentChunk{
				ID:        uuid.New().String(),
				Content:   text,
				Metadata:  metadata,
				CreatedAt: time.Now(),
			})
		}
	}

	if len(staged) > 0 {
		if err := ix.embedChunks(ctx, staged); err != nil {
			return nil, fmt.Errorf("indexing aborted: %w", err)
		}
		if err := ix.store.Upsert(ctx, staged); err != nil {
			return nil, fmt.Errorf("indexing aborted: upsert: %w", err)
		}
	}

	result := &Result{
		ChunksIndexed: len(staged),
		ChunksSkipped: skipped,
		Duration:      time.Since(start),
	}
	ix.logger.Info("indexing pass complete",
		"documents", len(docs),
		"indexed", result.ChunksIndexed,
		"skipped", result.ChunksSkipped,
		"duration", result.Duration)
	return result, nil
}

// embedChunks generates embeddings for chunks in provider-sized batches.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []*models.DocumentChunk) error {
	batchSize := ix.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Content
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		for j, chunk := range batch {
			chunk.Embedding = vectors[j]
		}
	}
	return nil
}

// Fingerprint computes a deterministic content hash over a chunk's text
// and metadata. Metadata keys are visited in sorted order so two maps
// with the same entries always hash identically, regardless of insertion
// order. The generated chunk id never participates.
func Fingerprint(content string, metadata map[string]string) string {
	h := sha256.New()
	h.Write([]byte(content))

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if k == models.FingerprintKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(metadata[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
