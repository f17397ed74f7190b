package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

// mockEncoder returns a one-term vector per text, or an error/empty vector
// for configured texts.
type mockEncoder struct {
	mu       sync.Mutex
	fail     map[string]bool
	empty    map[string]bool
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newMockEncoder() *mockEncoder {
	return &mockEncoder{fail: map[string]bool{}, empty: map[string]bool{}}
}

func (m *mockEncoder) Encode(ctx context.Context, text string) (domain.SparseVector, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, &domain.EncodingError{Cause: ctx.Err()}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[text] {
		return nil, &domain.EncodingError{Cause: errors.New("encoder unavailable")}
	}
	if m.empty[text] {
		return domain.SparseVector{}, nil
	}
	return domain.SparseVector{strings.ToLower(text): 1}, nil
}

func (m *mockEncoder) EncodeBatch(ctx context.Context, texts []string) ([]domain.SparseVector, error) {
	out := make([]domain.SparseVector, len(texts))
	for i, t := range texts {
		v, err := m.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEncoder) Ping(_ context.Context) error { return nil }
func (m *mockEncoder) Close() error                 { return nil }

// mockIndex records bulk calls and returns canned search results.
type mockIndex struct {
	mu          sync.Mutex
	ensureErr   error
	bulkErrs    []error
	bulkCalls   [][]domain.Chunk
	stored      map[string]domain.Chunk
	results     []domain.ScoredContext
	searchErr   error
	searchCalls int
	lastQuery   domain.SparseVector
	lastK       int
}

func newMockIndex() *mockIndex {
	return &mockIndex{stored: map[string]domain.Chunk{}}
}

func (m *mockIndex) EnsureIndex(_ context.Context) error { return m.ensureErr }

func (m *mockIndex) BulkIndex(_ context.Context, chunks []domain.Chunk) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.bulkCalls)
	m.bulkCalls = append(m.bulkCalls, append([]domain.Chunk(nil), chunks...))
	if call < len(m.bulkErrs) && m.bulkErrs[call] != nil {
		return 0, m.bulkErrs[call]
	}
	for _, c := range chunks {
		m.stored[c.ID] = c
	}
	return len(chunks), nil
}

func (m *mockIndex) Search(_ context.Context, query domain.SparseVector, k int) ([]domain.ScoredContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	m.lastQuery = query
	m.lastK = k
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.results, nil
}

func (m *mockIndex) Ping(_ context.Context) error { return nil }
func (m *mockIndex) Close() error                 { return nil }

// mockGenerator returns a fixed answer or streams fixed tokens.
type mockGenerator struct {
	answer    string
	err       error
	tokens    []string
	streamErr error
	prompts   []string
	// block makes GenerateStream wait for ctx after the first token.
	block bool
	calls atomic.Int32
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.calls.Add(1)
	m.prompts = append(m.prompts, prompt)
	return m.answer, m.err
}

func (m *mockGenerator) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error {
	m.calls.Add(1)
	m.prompts = append(m.prompts, prompt)
	for _, tok := range m.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
		if m.block {
			<-ctx.Done()
			return ctx.Err()
		}
	}
	return m.streamErr
}

func (m *mockGenerator) ModelName() string            { return "mock" }
func (m *mockGenerator) Ping(_ context.Context) error { return nil }
func (m *mockGenerator) Close() error                 { return nil }

// mockMetrics counts observations.
type mockMetrics struct {
	mu        sync.Mutex
	encodedOK int
	encodedKO int
	batches   []int
	batchKO   int
	progress  [][2]int
	runsOK    int
	runsKO    int
	searches  map[[2]bool]int
}

func (m *mockMetrics) ChunkEncoded(ok bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.encodedOK++
	} else {
		m.encodedKO++
	}
}

func (m *mockMetrics) BatchIndexed(n int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.batches = append(m.batches, n)
	} else {
		m.batchKO++
	}
}

func (m *mockMetrics) Progress(_ string, processed, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, [2]int{processed, total})
}

func (m *mockMetrics) RunFinished(ok bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.runsOK++
	} else {
		m.runsKO++
	}
}

func (m *mockMetrics) SearchServed(stream, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searches == nil {
		m.searches = map[[2]bool]int{}
	}
	m.searches[[2]bool{stream, ok}]++
}

// staticPrompts serves one template for every name.
type staticPrompts struct {
	template string
	err      error
}

func (p staticPrompts) Load(string) (string, error) { return p.template, p.err }
func (p staticPrompts) Reload()                     {}

var (
	_ driven.SparseEncoder = (*mockEncoder)(nil)
	_ driven.SparseIndex   = (*mockIndex)(nil)
	_ driven.Generator     = (*mockGenerator)(nil)
	_ driven.Metrics       = (*mockMetrics)(nil)
	_ driven.PromptStore   = staticPrompts{}
)
