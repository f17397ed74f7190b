// Package ai builds the encoder, generator and search store adapters from
// resolved settings and checks that they are reachable.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/encoder/splade"
	ollamallm "github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/search/elasticsearch"
	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for each connectivity check.
const pingTimeout = 5 * time.Second

// InitResult holds the adapters the services are composed from.
type InitResult struct {
	Encoder   driven.SparseEncoder
	Generator driven.Generator
	Index     driven.SparseIndex
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Encoder != nil {
		r.Encoder.Close()
	}
	if r.Generator != nil {
		r.Generator.Close()
	}
	if r.Index != nil {
		r.Index.Close()
	}
}

// Init creates every adapter. On error, adapters created so far are closed.
func Init(settings *domain.AppSettings) (*InitResult, error) {
	result := &InitResult{Encoder: CreateEncoder(&settings.Encoder)}

	gen, err := CreateGenerator(&settings.LLM)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.Generator = gen

	idx, err := CreateIndex(settings.Store, &settings.Elasticsearch)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.Index = idx

	return result, nil
}

// Check pings each adapter and returns one warning per unreachable backend.
// Failures never abort startup: backends may come up after the server.
func (r *InitResult) Check(ctx context.Context) []string {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"encoder", r.Encoder.Ping},
		{"llm", r.Generator.Ping},
		{"search store", r.Index.Ping},
	}

	var warnings []string
	for _, c := range checks {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := c.ping(pingCtx)
		cancel()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s unreachable: %v", c.name, err))
		}
	}
	return warnings
}

// CreateEncoder creates the SPLADE encoder client.
func CreateEncoder(settings *domain.EncoderSettings) driven.SparseEncoder {
	return splade.NewEncoder(splade.Config{
		URL:       settings.URL,
		Timeout:   time.Duration(settings.TimeoutSeconds) * time.Second,
		RateLimit: settings.RateLimit,
	})
}

// CreateGenerator creates the answer generator for the configured provider.
func CreateGenerator(settings *domain.LLMSettings) (driven.Generator, error) {
	switch settings.Provider {
	case domain.LLMOllama, "":
		return ollamallm.NewGenerator(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.LLMOpenAI:
		gen, err := openaillm.NewGenerator(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("%w. Run 'scrapbox-rag settings set llm.api_key <key>' to fix", err)
		}
		return gen, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// CreateIndex creates the sparse index for the configured backend.
func CreateIndex(backend domain.StoreBackend, settings *domain.ElasticsearchSettings) (driven.SparseIndex, error) {
	switch backend {
	case domain.StoreElasticsearch, "":
		var addrs []string
		if settings.Host != "" {
			addrs = []string{settings.Host}
		}
		return elasticsearch.NewIndex(elasticsearch.Config{
			Addresses:  addrs,
			Username:   settings.User,
			Password:   settings.Password,
			Index:      settings.Index,
			MaxClauses: settings.MaxClauses,
		})

	case domain.StoreMemory:
		return memory.NewSparseIndex(), nil

	default:
		return nil, fmt.Errorf("unsupported store: %s", backend)
	}
}
