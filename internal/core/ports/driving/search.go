package driving

import (
	"context"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// SearchService answers questions from the indexed corpus.
type SearchService interface {
	// Retrieve encodes the query and returns the top k contexts.
	Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredContext, error)

	// Search retrieves contexts and generates a complete answer.
	// Encoding and store failures are returned; generation failures are
	// reported inside the answer text.
	Search(ctx context.Context, query string, topK int) (*domain.Answer, error)

	// SearchStream retrieves contexts and streams the answer. The first
	// event carries the sources; the channel is always closed. Cancelling
	// ctx stops generation.
	SearchStream(ctx context.Context, query string, topK int) <-chan domain.StreamEvent
}
