package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// defaultTopK mirrors the HTTP API default.
const defaultTopK = 5

// QueryInput is the input schema shared by the retrieve and ask tools.
type QueryInput struct {
	Query string `json:"query" jsonschema:"the question or search query"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of contexts to retrieve (default 5)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Contexts []ContextOutput `json:"contexts"`
	Count    int             `json:"count"`
}

// ContextOutput is a single retrieved chunk.
type ContextOutput struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
	Updated int64   `json:"updated"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string          `json:"answer"`
	Sources []ContextOutput `json:"sources"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Retrieve the Scrapbox passages most relevant to a query",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed Scrapbox project, citing sources",
	}, s.handleAsk)
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	contexts, err := s.ports.Search.Retrieve(ctx, input.Query, topK(input.TopK))
	if err != nil {
		return nil, RetrieveOutput{}, err
	}
	out := toOutputs(contexts)
	return nil, RetrieveOutput{Contexts: out, Count: len(out)}, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Search.Search(ctx, input.Query, topK(input.TopK))
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{Answer: answer.Answer, Sources: toOutputs(answer.Sources)}, nil
}

func topK(k int) int {
	if k <= 0 {
		return defaultTopK
	}
	return k
}

func toOutputs(contexts []domain.ScoredContext) []ContextOutput {
	out := make([]ContextOutput, len(contexts))
	for i, c := range contexts {
		out[i] = ContextOutput{
			Title:   c.Title,
			URL:     c.URL,
			Score:   c.Score,
			Text:    c.Text,
			Updated: c.Updated,
		}
	}
	return out
}
