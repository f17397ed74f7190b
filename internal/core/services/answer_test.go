package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

func collect(t *testing.T, events <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var out []domain.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream was not closed")
			return out
		}
	}
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(sampleContexts())

	assert.Equal(t,
		"Source: Go (https://scrapbox.io/p/Go)\nContent: Go is a language\n\n"+
			"Source: Rust (https://scrapbox.io/p/Rust)\nContent: Rust is too",
		got)
	assert.Empty(t, BuildContext(nil))
}

func TestBuildPrompt_Default(t *testing.T) {
	s := NewSearchService(newMockEncoder(), newMockIndex(), &mockGenerator{}, nil, nil)

	prompt := s.BuildPrompt("Goとは?", sampleContexts()[:1])

	assert.True(t, strings.HasPrefix(prompt, "<start_of_turn>user\n"))
	assert.Contains(t, prompt, "情報:\nSource: Go (https://scrapbox.io/p/Go)\nContent: Go is a language\n\n質問: Goとは?<end_of_turn>")
	assert.True(t, strings.HasSuffix(prompt, "<start_of_turn>model\n"))
}

func TestBuildPrompt_FromStore(t *testing.T) {
	s := NewSearchService(newMockEncoder(), newMockIndex(), &mockGenerator{},
		staticPrompts{template: "C=%s Q=%s"}, nil)

	assert.Equal(t, "C=Source: Go (https://scrapbox.io/p/Go)\nContent: Go is a language Q=why",
		s.BuildPrompt("why", sampleContexts()[:1]))
}

func TestBuildPrompt_BadTemplateFallsBack(t *testing.T) {
	for name, store := range map[string]staticPrompts{
		"load error":         {err: errors.New("missing")},
		"wrong placeholders": {template: "only %s"},
	} {
		t.Run(name, func(t *testing.T) {
			s := NewSearchService(newMockEncoder(), newMockIndex(), &mockGenerator{}, store, nil)

			prompt := s.BuildPrompt("q", nil)

			assert.True(t, strings.HasPrefix(prompt, "<start_of_turn>user"))
		})
	}
}

func TestSearch_ReturnsAnswerAndSources(t *testing.T) {
	idx := newMockIndex()
	idx.results = sampleContexts()
	gen := &mockGenerator{answer: "Goは言語です。"}
	metrics := &mockMetrics{}
	s := NewSearchService(newMockEncoder(), idx, gen, nil, metrics)

	answer, err := s.Search(context.Background(), "Go", 2)

	require.NoError(t, err)
	assert.Equal(t, "Goは言語です。", answer.Answer)
	assert.Equal(t, sampleContexts(), answer.Sources)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Content: Rust is too")
	assert.Equal(t, 1, metrics.searches[[2]bool{false, true}])
}

func TestSearch_NoContextsSkipsModel(t *testing.T) {
	gen := &mockGenerator{answer: "unused"}
	s := NewSearchService(newMockEncoder(), newMockIndex(), gen, nil, nil)

	answer, err := s.Search(context.Background(), "unknown topic", 5)

	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, answer.Answer)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, gen.calls.Load())
}

func TestSearch_GenerationFailureBecomesAnswer(t *testing.T) {
	idx := newMockIndex()
	idx.results = sampleContexts()
	gen := &mockGenerator{err: &domain.GenerationError{Cause: errors.New("connection refused")}}
	s := NewSearchService(newMockEncoder(), idx, gen, nil, nil)

	answer, err := s.Search(context.Background(), "Go", 5)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer.Answer, "エラーが発生しました: "))
	assert.Contains(t, answer.Answer, "connection refused")
	assert.Len(t, answer.Sources, 2)
}

func TestSearch_EmptyModelResponse(t *testing.T) {
	idx := newMockIndex()
	idx.results = sampleContexts()
	s := NewSearchService(newMockEncoder(), idx, &mockGenerator{answer: "  "}, nil, nil)

	answer, err := s.Search(context.Background(), "Go", 5)

	require.NoError(t, err)
	assert.Equal(t, EmptyAnswer, answer.Answer)
}

func TestSearch_EncodingErrorReturned(t *testing.T) {
	enc := newMockEncoder()
	enc.fail["Go"] = true
	metrics := &mockMetrics{}
	gen := &mockGenerator{}
	s := NewSearchService(enc, newMockIndex(), gen, nil, metrics)

	answer, err := s.Search(context.Background(), "Go", 5)

	assert.Nil(t, answer)
	assert.True(t, errors.Is(err, domain.ErrEncoding))
	assert.Zero(t, gen.calls.Load())
	assert.Equal(t, 1, metrics.searches[[2]bool{false, false}])
}

func TestSearchStream_SourcesThenTokens(t *testing.T) {
	idx := newMockIndex()
	idx.results = sampleContexts()
	gen := &mockGenerator{tokens: []string{"Hi", "!"}}
	s := NewSearchService(newMockEncoder(), idx, gen, nil, nil)

	events := collect(t, s.SearchStream(context.Background(), "Go", 2))

	require.Len(t, events, 3)
	assert.True(t, events[0].IsSources())
	assert.Equal(t, sampleContexts(), events[0].Sources)
	assert.Equal(t, "Hi", events[1].Token)
	assert.Equal(t, "!", events[2].Token)
	for _, ev := range events[1:] {
		assert.False(t, ev.IsSources())
		assert.NoError(t, ev.Err)
	}
}

func TestSearchStream_NoContexts(t *testing.T) {
	gen := &mockGenerator{tokens: []string{"unused"}}
	s := NewSearchService(newMockEncoder(), newMockIndex(), gen, nil, nil)

	events := collect(t, s.SearchStream(context.Background(), "q", 5))

	require.Len(t, events, 2)
	assert.True(t, events[0].IsSources())
	assert.Empty(t, events[0].Sources)
	assert.Equal(t, NoInformationAnswer, events[1].Token)
	assert.Zero(t, gen.calls.Load())
}

func TestSearchStream_RetrievalFailure(t *testing.T) {
	idx := newMockIndex()
	idx.searchErr = &domain.StoreError{Op: "search", Cause: errors.New("down")}
	s := NewSearchService(newMockEncoder(), idx, &mockGenerator{}, nil, nil)

	events := collect(t, s.SearchStream(context.Background(), "q", 5))

	require.Len(t, events, 1)
	assert.False(t, events[0].IsSources())
	assert.True(t, errors.Is(events[0].Err, domain.ErrStore))
}

func TestSearchStream_MidStreamFailureIsTerminal(t *testing.T) {
	idx := newMockIndex()
	idx.results = sampleContexts()
	gen := &mockGenerator{
		tokens:    []string{"partial"},
		streamErr: &domain.GenerationError{Cause: errors.New("connection reset")},
	}
	s := NewSearchService(newMockEncoder(), idx, gen, nil, nil)

	events := collect(t, s.SearchStream(context.Background(), "q", 5))

	require.Len(t, events, 3)
	assert.Equal(t, "partial", events[1].Token)
	last := events[2]
	assert.True(t, errors.Is(last.Err, domain.ErrGeneration))
	assert.True(t, strings.HasPrefix(last.Token, "\n[Error: "))
	assert.Contains(t, last.Token, "connection reset")
}

func TestSearchStream_CancelStopsGeneration(t *testing.T) {
	idx := newMockIndex()
	idx.results = sampleContexts()
	gen := &mockGenerator{tokens: []string{"first", "never"}, block: true}
	s := NewSearchService(newMockEncoder(), idx, gen, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := s.SearchStream(ctx, "q", 5)

	first := <-events
	assert.True(t, first.IsSources())
	tok := <-events
	assert.Equal(t, "first", tok.Token)

	cancel()

	for ev := range events {
		assert.NotEqual(t, "never", ev.Token)
		assert.NoError(t, ev.Err)
	}
}

func TestSearchStream_ConsumerGoneDoesNotLeak(t *testing.T) {
	idx := newMockIndex()
	idx.results = sampleContexts()
	gen := &mockGenerator{tokens: []string{"a", "b", "c"}}
	s := NewSearchService(newMockEncoder(), idx, gen, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := s.SearchStream(ctx, "q", 5)
	<-events
	cancel()

	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not exit after cancellation")
	}
}
