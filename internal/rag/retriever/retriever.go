// Package retriever assembles relevance-filtered context for prompts.
package retriever

import (
	"context"
	"log/slog"
	"strings"

	"github.com/conciergehq/concierge/internal/embeddings"
	"github.com/conciergehq/concierge/internal/vectorstore"
)

// Retriever embeds a query and pulls the most similar passages from the
// vector store.
type Retriever struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	logger   *slog.Logger
}

// New creates a retriever.
func New(store vectorstore.Store, embedder embeddings.Provider, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		logger:   logger.With("component", "retriever"),
	}
}

// Retrieve returns the passages scoring at or above threshold for the
// query, joined by blank lines in descending score order. Retrieval is
// best effort: embedding or store failures are logged and yield an empty
// context rather than an error, so the caller can still answer from the
// model alone.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, threshold float32) string {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, answering without context", "error", err)
		return ""
	}

	results, err := r.store.Search(ctx, embedding, k)
	if err != nil {
		r.logger.Warn("vector search failed, answering without context", "error", err)
		return ""
	}

	var passages []string
	for _, res := range results {
		if res.Score >= threshold {
			passages = append(passages, res.Content)
		}
	}
	if len(passages) == 0 {
		r.logger.Debug("no passages above threshold", "results", len(results), "threshold", threshold)
		return ""
	}
	return strings.Join(passages, "\n\n")
}
