// Package ollama provides a Generator adapter using Ollama.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.Generator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:11434"
	DefaultModel         = "gemma3:4b"
	DefaultTimeout       = 120 * time.Second
	DefaultHeaderTimeout = 30 * time.Second
	DefaultTemperature   = 0.1
	DefaultTopP          = 0.9
)

// Config holds configuration for the Ollama generator.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model to use (default: gemma3:4b).
	Model string

	// Timeout bounds a whole non-streaming request (default: 120s).
	// Streaming requests are bounded by the caller's context and
	// HeaderTimeout only.
	Timeout time.Duration

	// HeaderTimeout bounds the wait for response headers (default: 30s).
	HeaderTimeout time.Duration

	// Temperature and TopP are sampling options (defaults: 0.1, 0.9).
	Temperature float64
	TopP        float64
}

// Generator produces answers using Ollama's /api/generate endpoint.
type Generator struct {
	client       *http.Client
	streamClient *http.Client
	baseURL      string
	model        string
	options      options
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options options `json:"options"`
}

// options holds generation parameters.
type options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// generateResponse is the Ollama /api/generate response format. Streaming
// responses send one per line.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewGenerator creates a new Ollama generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HeaderTimeout == 0 {
		cfg.HeaderTimeout = DefaultHeaderTimeout
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopP == 0 {
		cfg.TopP = DefaultTopP
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.HeaderTimeout

	return &Generator{
		client:       &http.Client{Timeout: cfg.Timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		baseURL:      cfg.BaseURL,
		model:        cfg.Model,
		options: options{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		},
	}
}

// Generate returns the complete answer for a prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.post(ctx, g.client, prompt, false)
	if err != nil {
		return "", &domain.GenerationError{Op: "generate", Cause: err}
	}
	defer resp.Body.Close()

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", &domain.GenerationError{Op: "generate", Cause: fmt.Errorf("decode response: %w", err)}
	}
	if genResp.Error != "" {
		return "", &domain.GenerationError{Op: "generate", Cause: errors.New(genResp.Error)}
	}
	return genResp.Response, nil
}

// GenerateStream relays each response fragment to onToken until Ollama
// reports done or closes the stream. Empty fragments are not relayed.
func (g *Generator) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error {
	resp, err := g.post(ctx, g.streamClient, prompt, true)
	if err != nil {
		return &domain.GenerationError{Op: "stream", Cause: err}
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec generateResponse
		if err := json.Unmarshal(line, &rec); err != nil {
			return &domain.GenerationError{Op: "stream", Cause: fmt.Errorf("decode stream record: %w", err)}
		}
		if rec.Error != "" {
			return &domain.GenerationError{Op: "stream", Cause: errors.New(rec.Error)}
		}
		if rec.Response != "" {
			if err := onToken(rec.Response); err != nil {
				return err
			}
		}
		if rec.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &domain.GenerationError{Op: "stream", Cause: fmt.Errorf("read stream: %w", err)}
	}
	return nil
}

func (g *Generator) post(ctx context.Context, client *http.Client, prompt string, stream bool) (*http.Response, error) {
	jsonBody, err := json.Marshal(generateRequest{
		Model:   g.model,
		Prompt:  prompt,
		Stream:  stream,
		Options: g.options,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return nil, fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, domain.Excerpt(string(body), 200))
	}
	return resp, nil
}

// ModelName returns the name of the model being used.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (g *Generator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &domain.GenerationError{Op: "ping", Cause: fmt.Errorf("ollama: ping failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.GenerationError{Op: "ping", Cause: fmt.Errorf("ollama: API returned status %d", resp.StatusCode)}
	}
	return nil
}

// Close releases idle connections.
func (g *Generator) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
