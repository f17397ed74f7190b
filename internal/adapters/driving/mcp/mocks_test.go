package mcp

import (
	"context"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	contexts []domain.ScoredContext
	answer   string
	err      error
	lastTopK int
}

func (m *mockSearchService) Retrieve(_ context.Context, _ string, topK int) ([]domain.ScoredContext, error) {
	m.lastTopK = topK
	return m.contexts, m.err
}

func (m *mockSearchService) Search(_ context.Context, _ string, topK int) (*domain.Answer, error) {
	m.lastTopK = topK
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Answer{Answer: m.answer, Sources: m.contexts}, nil
}

func (m *mockSearchService) SearchStream(_ context.Context, _ string, _ int) <-chan domain.StreamEvent {
	ch := make(chan domain.StreamEvent)
	close(ch)
	return ch
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	runs map[string]*driving.IngestStatus
	ids  []string
}

func (m *mockIngestService) Ingest(_ context.Context, _ *domain.Project) (*domain.IngestReport, error) {
	return &domain.IngestReport{}, nil
}

func (m *mockIngestService) IngestAsync(_ *domain.Project) string { return "run-1" }

func (m *mockIngestService) Status(runID string) (*driving.IngestStatus, bool) {
	s, ok := m.runs[runID]
	return s, ok
}

func (m *mockIngestService) Runs() []string { return m.ids }
