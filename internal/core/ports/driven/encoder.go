package driven

import (
	"context"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// SparseEncoder turns text into a sparse term-weight vector by calling an
// external encoder service.
//
// Failures are returned as *domain.EncodingError. Implementations never
// retry; retry and skip policy belongs to the caller.
type SparseEncoder interface {
	// Encode returns the sparse vector for one text.
	Encode(ctx context.Context, text string) (domain.SparseVector, error)

	// EncodeBatch encodes texts sequentially. The result is parallel to texts.
	EncodeBatch(ctx context.Context, texts []string) ([]domain.SparseVector, error)

	// Ping validates the encoder is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
