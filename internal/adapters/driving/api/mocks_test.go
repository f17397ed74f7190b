package api

import (
	"context"
	"sync"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driving"
)

type mockIngest struct {
	mu       sync.Mutex
	projects []*domain.Project
	runs     map[string]*driving.IngestStatus
}

func (m *mockIngest) Ingest(_ context.Context, p *domain.Project) (*domain.IngestReport, error) {
	return &domain.IngestReport{Project: p.Name}, nil
}

func (m *mockIngest) IngestAsync(p *domain.Project) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append(m.projects, p)
	return "run-1"
}

func (m *mockIngest) Status(id string) (*driving.IngestStatus, bool) {
	s, ok := m.runs[id]
	return s, ok
}

func (m *mockIngest) Runs() []string { return nil }

type mockSearch struct {
	answer   *domain.Answer
	err      error
	events   []domain.StreamEvent
	lastTopK int
	streamed chan struct{}
}

func (m *mockSearch) Retrieve(_ context.Context, _ string, topK int) ([]domain.ScoredContext, error) {
	m.lastTopK = topK
	if m.err != nil {
		return nil, m.err
	}
	return m.answer.Sources, nil
}

func (m *mockSearch) Search(_ context.Context, _ string, topK int) (*domain.Answer, error) {
	m.lastTopK = topK
	return m.answer, m.err
}

func (m *mockSearch) SearchStream(ctx context.Context, _ string, topK int) <-chan domain.StreamEvent {
	m.lastTopK = topK
	ch := make(chan domain.StreamEvent)
	go func() {
		defer close(ch)
		if m.streamed != nil {
			defer close(m.streamed)
		}
		for _, ev := range m.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
