package driven

import (
	"context"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// SparseIndex is the search store holding encoded chunks.
// Backed by Elasticsearch rank_features; an in-memory implementation exists
// for tests and offline runs.
//
// Failures are returned as *domain.StoreError.
type SparseIndex interface {
	// EnsureIndex creates the index with its schema if it does not exist.
	// Calling it on an existing index is a no-op.
	EnsureIndex(ctx context.Context) error

	// BulkIndex upserts chunks keyed by chunk ID in a single request.
	// Chunks without a sparse vector are skipped. Returns the number of
	// chunks written.
	BulkIndex(ctx context.Context, chunks []domain.Chunk) (int, error)

	// Search returns the top k contexts for a sparse query, best first.
	// An empty query returns no contexts and no error.
	Search(ctx context.Context, query domain.SparseVector, k int) ([]domain.ScoredContext, error)

	// Ping validates the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
