// Package memory provides in-memory implementations of driven ports for
// tests and offline runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

// Ensure SparseIndex implements the interface.
var _ driven.SparseIndex = (*SparseIndex)(nil)

// SparseIndex is an in-memory implementation of driven.SparseIndex.
// Scoring matches the Elasticsearch adapter: the dot product of query and
// chunk weights over shared terms.
type SparseIndex struct {
	mu     sync.RWMutex
	chunks map[string]domain.Chunk
}

// NewSparseIndex creates an empty index.
func NewSparseIndex() *SparseIndex {
	return &SparseIndex{
		chunks: make(map[string]domain.Chunk),
	}
}

// EnsureIndex is a no-op.
func (s *SparseIndex) EnsureIndex(_ context.Context) error {
	return nil
}

// BulkIndex stores or replaces chunks by ID. Chunks without a vector are
// skipped.
func (s *SparseIndex) BulkIndex(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &domain.StoreError{Op: "bulk", Cause: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range chunks {
		if !c.Indexable() {
			continue
		}
		vec := make(domain.SparseVector, len(c.SparseVector))
		for term, w := range c.SparseVector {
			vec[term] = w
		}
		c.SparseVector = vec
		s.chunks[c.ID] = c
		n++
	}
	return n, nil
}

// Search ranks stored chunks against the query and returns the top k.
// Chunks sharing no term with the query are not returned.
func (s *SparseIndex) Search(ctx context.Context, query domain.SparseVector, k int) ([]domain.ScoredContext, error) {
	results := []domain.ScoredContext{}
	if len(query) == 0 || k <= 0 {
		return results, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.StoreError{Op: "search", Cause: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		id    string
		score float64
	}
	var hits []scored
	for id, c := range s.chunks {
		var score float64
		for term, qw := range query {
			score += qw * c.SparseVector[term]
		}
		if score > 0 {
			hits = append(hits, scored{id: id, score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	for _, h := range hits {
		c := s.chunks[h.id]
		results = append(results, domain.ScoredContext{
			Score:   h.score,
			Title:   c.Title,
			Text:    c.Text,
			URL:     c.URL,
			Updated: c.Updated,
		})
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *SparseIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Get returns a stored chunk by ID.
func (s *SparseIndex) Get(id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// Ping always succeeds.
func (s *SparseIndex) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *SparseIndex) Close() error {
	return nil
}
