// Package splade provides a sparse encoder adapter for a SPLADE HTTP service.
package splade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

// Ensure Encoder implements the interface.
var _ driven.SparseEncoder = (*Encoder)(nil)

// Default configuration values.
const (
	DefaultURL     = "http://localhost:8001/encode"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the SPLADE encoder client.
type Config struct {
	// URL is the encode endpoint (default: http://localhost:8001/encode).
	URL string

	// Timeout bounds each encode call (default: 30s).
	Timeout time.Duration

	// RateLimit caps encode calls per second. Zero disables throttling.
	RateLimit float64

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Encoder calls the encoder service. It holds no per-call state and is safe
// for concurrent use.
type Encoder struct {
	client  *http.Client
	url     string
	limiter *rate.Limiter
}

// encodeRequest is the encoder request format.
type encodeRequest struct {
	Text string `json:"text"`
}

// NewEncoder creates a new encoder client.
func NewEncoder(cfg Config) *Encoder {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	e := &Encoder{
		client: client,
		url:    cfg.URL,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return e
}

// Encode returns the sparse vector for text.
func (e *Encoder) Encode(ctx context.Context, text string) (domain.SparseVector, error) {
	vec, err := e.encode(ctx, text)
	if err != nil {
		return nil, &domain.EncodingError{Op: "encode", Cause: err}
	}
	return vec, nil
}

func (e *Encoder) encode(ctx context.Context, text string) (domain.SparseVector, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	jsonBody, err := json.Marshal(encodeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("encoder error (status %d): %s", resp.StatusCode, domain.Excerpt(string(body), 200))
	}

	return DecodeVector(body)
}

// DecodeVector parses an encoder response. The body must be a JSON object
// that is either a term -> weight mapping or wraps one under "vector".
// Non-positive weights are dropped; any other shape is rejected.
func DecodeVector(body []byte) (domain.SparseVector, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("decode response: expected JSON object: %w", err)
	}
	if top == nil {
		return nil, errors.New("decode response: expected JSON object, got null")
	}

	mapping := top
	if raw, ok := top["vector"]; ok {
		mapping = nil
		if err := json.Unmarshal(raw, &mapping); err != nil || mapping == nil {
			return nil, errors.New(`decode response: "vector" is not an object`)
		}
	}

	vec := make(domain.SparseVector, len(mapping))
	for token, raw := range mapping {
		var w float64
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode response: weight for %q is not a number", token)
		}
		vec[token] = w
	}
	return vec.Prune(), nil
}

// EncodeBatch encodes texts one after another. Concurrency is the caller's
// responsibility.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([]domain.SparseVector, error) {
	vectors := make([]domain.SparseVector, len(texts))
	for i, text := range texts {
		vec, err := e.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("encode text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Ping validates the service is reachable by encoding a short text.
func (e *Encoder) Ping(ctx context.Context) error {
	if _, err := e.Encode(ctx, "ping"); err != nil {
		return fmt.Errorf("splade: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (e *Encoder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
