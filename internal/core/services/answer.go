package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
)

// Fixed answers.
const (
	// NoInformationAnswer is returned when retrieval finds nothing.
	NoInformationAnswer = "関連する情報が見つかりませんでした。"

	// EmptyAnswer replaces an empty model response.
	EmptyAnswer = "回答を生成できませんでした。"

	errorAnswerPrefix = "エラーが発生しました: "
)

// defaultAnswerPrompt is the fallback when no PromptStore is configured or
// the stored template is unusable.
const defaultAnswerPrompt = `<start_of_turn>user
提供されたScrapboxの情報のみに基づいて、質問に答えてください。
回答は日本語で、根拠となった情報のタイトルとURLを含めてください。

情報:
%s

質問: %s<end_of_turn>
<start_of_turn>model
`

// BuildContext renders contexts as the block the prompt embeds.
func BuildContext(contexts []domain.ScoredContext) string {
	parts := make([]string, 0, len(contexts))
	for _, c := range contexts {
		parts = append(parts, fmt.Sprintf("Source: %s (%s)\nContent: %s", c.Title, c.URL, c.Text))
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt fills the answer template with the context block and query.
func (s *SearchService) BuildPrompt(query string, contexts []domain.ScoredContext) string {
	return fmt.Sprintf(s.answerTemplate(), BuildContext(contexts), query)
}

func (s *SearchService) answerTemplate() string {
	if s.prompts == nil {
		return defaultAnswerPrompt
	}
	tpl, err := s.prompts.Load(driven.PromptAnswer)
	if err != nil {
		logger.Warn("Load answer prompt: %v, using default", err)
		return defaultAnswerPrompt
	}
	if strings.Count(tpl, "%s") != 2 {
		logger.Warn("Answer prompt must contain exactly two %%s placeholders, using default")
		return defaultAnswerPrompt
	}
	return tpl
}

// Search retrieves contexts and generates a complete answer. Generation
// failures never surface as errors: the answer text reports them.
func (s *SearchService) Search(ctx context.Context, query string, topK int) (*domain.Answer, error) {
	contexts, err := s.Retrieve(ctx, query, topK)
	if err != nil {
		s.metrics.SearchServed(false, false)
		return nil, err
	}
	s.metrics.SearchServed(false, true)

	if len(contexts) == 0 {
		return &domain.Answer{Answer: NoInformationAnswer, Sources: contexts}, nil
	}

	text, err := s.generator.Generate(ctx, s.BuildPrompt(query, contexts))
	switch {
	case err != nil:
		logger.Error("Error calling LLM: %v", err)
		text = errorAnswerPrefix + err.Error()
	case strings.TrimSpace(text) == "":
		text = EmptyAnswer
	}
	return &domain.Answer{Answer: text, Sources: contexts}, nil
}

// SearchStream retrieves contexts and streams the answer. The channel is
// unbuffered: each token is handed over before the next is read from the
// model. A retrieval failure yields a single Err event. Otherwise the
// first event carries the sources, and a generation failure ends the
// stream with an event that carries both Err and an error token.
// Cancelling ctx closes the model connection; the channel is always closed.
func (s *SearchService) SearchStream(ctx context.Context, query string, topK int) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)

	go func() {
		defer close(events)

		send := func(ev domain.StreamEvent) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		contexts, err := s.Retrieve(ctx, query, topK)
		if err != nil {
			s.metrics.SearchServed(true, false)
			_ = send(domain.StreamEvent{Err: err})
			return
		}
		s.metrics.SearchServed(true, true)

		if err := send(domain.StreamEvent{Sources: contexts}); err != nil {
			return
		}

		if len(contexts) == 0 {
			_ = send(domain.StreamEvent{Token: NoInformationAnswer})
			return
		}

		err = s.generator.GenerateStream(ctx, s.BuildPrompt(query, contexts), func(token string) error {
			return send(domain.StreamEvent{Token: token})
		})
		if err == nil || ctx.Err() != nil {
			return
		}

		logger.Error("Error in LLM stream: %v", err)
		_ = send(domain.StreamEvent{
			Token: fmt.Sprintf("\n[Error: %v]", err),
			Err:   err,
		})
	}()

	return events
}
