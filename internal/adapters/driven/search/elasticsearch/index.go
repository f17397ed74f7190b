// Package elasticsearch provides a SparseIndex backed by an Elasticsearch
// rank_features field.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	esv8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.SparseIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultAddress    = "http://localhost:9200"
	DefaultIndex      = "scrapbox-rag"
	DefaultMaxClauses = 1024
)

// Config holds configuration for the Elasticsearch index.
type Config struct {
	// Addresses lists the cluster nodes (default: http://localhost:9200).
	Addresses []string

	// Username and Password enable basic auth when Username is set.
	Username string
	Password string

	// Index is the index name (default: scrapbox-rag).
	Index string

	// MaxClauses caps the query terms sent per search (default: 1024).
	MaxClauses int

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper
}

// Index writes and searches chunks in one Elasticsearch index.
type Index struct {
	client     *esv8.Client
	transport  http.RoundTripper
	index      string
	maxClauses int
}

// NewIndex creates a client for the configured cluster. No request is made.
func NewIndex(cfg Config) (*Index, error) {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []string{DefaultAddress}
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.MaxClauses <= 0 {
		cfg.MaxClauses = DefaultMaxClauses
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	esCfg := esv8.Config{
		Addresses: cfg.Addresses,
		Transport: cfg.Transport,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := esv8.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Index{
		client:     client,
		transport:  cfg.Transport,
		index:      cfg.Index,
		maxClauses: cfg.MaxClauses,
	}, nil
}

// Name returns the index name.
func (x *Index) Name() string {
	return x.index
}

// EnsureIndex creates the index with the kuromoji analyzer and the chunk
// mapping unless it already exists.
func (x *Index) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists(
		[]string{x.index},
		x.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return &domain.StoreError{Op: "check index", Cause: err}
	}
	drain(res)

	switch res.StatusCode {
	case http.StatusOK:
		logger.Debug("Index %s already exists", x.index)
		return nil
	case http.StatusNotFound:
	default:
		return &domain.StoreError{Op: "check index", Cause: fmt.Errorf("unexpected status %d", res.StatusCode)}
	}

	res, err = x.client.Indices.Create(
		x.index,
		x.client.Indices.Create.WithBody(strings.NewReader(IndexDefinition)),
		x.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return &domain.StoreError{Op: "create index", Cause: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// Another process created it between the two calls.
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return &domain.StoreError{Op: "create index", Cause: responseError(res.StatusCode, body)}
	}

	logger.Info("Created index %s", x.index)
	return nil
}

// BulkIndex upserts the chunks that carry a vector in one _bulk request.
// When some items fail, the count of written items is returned together
// with a StoreError naming the failed chunk IDs.
func (x *Index) BulkIndex(ctx context.Context, chunks []domain.Chunk) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	n := 0
	for i := range chunks {
		c := &chunks[i]
		if !c.Indexable() {
			continue
		}
		action := map[string]any{"index": map[string]any{"_id": c.ID}}
		if err := enc.Encode(action); err != nil {
			return 0, &domain.StoreError{Op: "bulk", Cause: err}
		}
		if err := enc.Encode(newDocument(c)); err != nil {
			return 0, &domain.StoreError{Op: "bulk", Cause: err}
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}

	res, err := x.client.Bulk(
		&buf,
		x.client.Bulk.WithIndex(x.index),
		x.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return 0, &domain.StoreError{Op: "bulk", Cause: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, &domain.StoreError{Op: "bulk", Cause: err}
	}
	if res.IsError() {
		return 0, &domain.StoreError{Op: "bulk", Cause: responseError(res.StatusCode, body)}
	}

	var br bulkResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return 0, &domain.StoreError{Op: "bulk", Cause: fmt.Errorf("decode response: %w", err)}
	}
	if !br.Errors {
		return n, nil
	}

	var failed []string
	for _, item := range br.Items {
		for _, result := range item {
			if result.Status >= 300 || result.Error != nil {
				failed = append(failed, result.ID)
			}
		}
	}
	return n - len(failed), &domain.StoreError{
		Op:    "bulk",
		Cause: fmt.Errorf("%d of %d documents failed: %s", len(failed), n, strings.Join(failed, ", ")),
	}
}

// Search returns the k best chunks for the sparse query. Scores are the
// dot product of query and document weights over shared terms.
func (x *Index) Search(ctx context.Context, query domain.SparseVector, k int) ([]domain.ScoredContext, error) {
	if len(query) == 0 || k <= 0 {
		return []domain.ScoredContext{}, nil
	}

	body, err := json.Marshal(BuildQuery(query, k, x.maxClauses))
	if err != nil {
		return nil, &domain.StoreError{Op: "search", Cause: err}
	}

	res, err := x.client.Search(
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(bytes.NewReader(body)),
		x.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "search", Cause: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &domain.StoreError{Op: "search", Cause: err}
	}
	if res.IsError() {
		return nil, &domain.StoreError{Op: "search", Cause: responseError(res.StatusCode, raw)}
	}

	var sr searchResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, &domain.StoreError{Op: "search", Cause: fmt.Errorf("decode response: %w", err)}
	}

	contexts := make([]domain.ScoredContext, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		contexts = append(contexts, domain.ScoredContext{
			Score:   hit.Score,
			Title:   hit.Source.Title,
			Text:    hit.Source.Text,
			URL:     hit.Source.URL,
			Updated: hit.Source.Updated,
		})
	}
	return contexts, nil
}

// Ping validates the cluster is reachable.
func (x *Index) Ping(ctx context.Context) error {
	res, err := x.client.Ping(x.client.Ping.WithContext(ctx))
	if err != nil {
		return &domain.StoreError{Op: "ping", Cause: err}
	}
	drain(res)
	if res.IsError() {
		return &domain.StoreError{Op: "ping", Cause: fmt.Errorf("unexpected status %d", res.StatusCode)}
	}
	return nil
}

// Close releases idle connections held by the transport.
func (x *Index) Close() error {
	if t, ok := x.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

func drain(res *esapi.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}

func responseError(status int, body []byte) error {
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Type != "" {
		return fmt.Errorf("status %d: %s: %s", status, er.Error.Type, domain.Excerpt(er.Error.Reason, 200))
	}
	return fmt.Errorf("status %d: %s", status, domain.Excerpt(string(body), 200))
}
