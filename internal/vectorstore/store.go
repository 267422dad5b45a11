// Package vectorstore defines the vector store collaborator contract.
package vectorstore

import (
	"context"

	"github.com/conciergehq/concierge/pkg/models"
)

// Store is the interface for chunk storage and similarity search.
//
// Search scores follow the cosine similarity convention: values in [0,1]
// with higher meaning more similar. Backends that report distances must
// convert before returning.
type Store interface {
	// EnsureIndex prepares the backing index for the given embedding
	// dimension. Idempotent: an already existing index is success.
	EnsureIndex(ctx context.Context, dimension int) error

	// HasFingerprint reports whether a chunk with the given content
	// fingerprint is already stored.
	HasFingerprint(ctx context.Context, fingerprint string) (bool, error)

	// Upsert inserts chunks with their embeddings as one batch. The batch
	// is applied atomically: a failure leaves the store unchanged.
	Upsert(ctx context.Context, chunks []*models.DocumentChunk) error

	// Search returns the k nearest passages to the embedding, ordered by
	// descending score.
	Search(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error)

	// Close releases resources.
	Close() error
}
