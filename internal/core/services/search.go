package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driving"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultTopK is used when a caller passes a non-positive top k.
const DefaultTopK = 5

// SearchService retrieves contexts by sparse similarity and answers
// questions from them.
type SearchService struct {
	encoder   driven.SparseEncoder
	index     driven.SparseIndex
	generator driven.Generator
	prompts   driven.PromptStore
	metrics   driven.Metrics
}

// NewSearchService creates a new search service.
// The prompts and metrics parameters are optional (can be nil).
func NewSearchService(
	encoder driven.SparseEncoder,
	index driven.SparseIndex,
	generator driven.Generator,
	prompts driven.PromptStore,
	metrics driven.Metrics,
) *SearchService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &SearchService{
		encoder:   encoder,
		index:     index,
		generator: generator,
		prompts:   prompts,
		metrics:   metrics,
	}
}

// Retrieve encodes the query and returns the topK best contexts.
// Encoding failures are returned as *domain.EncodingError and store
// failures as *domain.StoreError; an empty result is not an error.
func (s *SearchService) Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredContext, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := s.encoder.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	logger.Debug("Query encoded to %d terms", len(vec))

	contexts, err := s.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	if contexts == nil {
		contexts = []domain.ScoredContext{}
	}
	logger.Debug("Retrieved %d contexts for %q", len(contexts), query)
	return contexts, nil
}
