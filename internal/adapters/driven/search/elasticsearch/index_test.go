package elasticsearch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// fakeCluster records requests and answers with canned responses.
type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request, body []byte)
}

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

func (f *fakeCluster) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newFakeCluster(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body []byte)) (*fakeCluster, *Index) {
	t.Helper()
	f := &fakeCluster{handle: handle}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		f.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		f.handle(w, r, body)
	}))
	t.Cleanup(srv.Close)

	idx, err := NewIndex(Config{Addresses: []string{srv.URL}, Index: "test-index"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return f, idx
}

func chunk(id string, vec domain.SparseVector) domain.Chunk {
	return domain.Chunk{
		ID:           id,
		PageID:       "p1",
		Title:        "Title",
		Text:         "text " + id,
		URL:          "https://scrapbox.io/proj/Title",
		Updated:      1700000000,
		SparseVector: vec,
	}
}

func TestNewIndex_Defaults(t *testing.T) {
	idx, err := NewIndex(Config{})

	require.NoError(t, err)
	assert.Equal(t, DefaultIndex, idx.Name())
	assert.Equal(t, DefaultMaxClauses, idx.maxClauses)
}

func TestIndexDefinition_IsValid(t *testing.T) {
	var def map[string]any
	require.NoError(t, json.Unmarshal([]byte(IndexDefinition), &def))

	props := def["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "rank_features", props["sparse_vector"].(map[string]any)["type"])
	assert.Equal(t, "keyword", props["page_id"].(map[string]any)["type"])
	assert.Equal(t, false, props["url"].(map[string]any)["index"])
	assert.Equal(t, "epoch_second", props["updated"].(map[string]any)["format"])
	assert.Equal(t, "kuromoji_analyzer", props["text"].(map[string]any)["analyzer"])
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	f, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged": true}`))
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))

	calls := f.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPut, calls[1].Method)
	assert.Equal(t, "/test-index", calls[1].Path)
	assert.Contains(t, string(calls[1].Body), "rank_features")
}

func TestEnsureIndex_ExistingIsNoop(t *testing.T) {
	f, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.NoError(t, idx.EnsureIndex(context.Background()))

	for _, c := range f.calls() {
		assert.Equal(t, http.MethodHead, c.Method)
	}
}

func TestEnsureIndex_AlreadyExistsRace(t *testing.T) {
	_, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"type": "resource_already_exists_exception", "reason": "exists"}}`))
	})

	assert.NoError(t, idx.EnsureIndex(context.Background()))
}

func TestEnsureIndex_CreateFailure(t *testing.T) {
	_, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"type": "illegal_argument_exception", "reason": "unknown tokenizer [kuromoji_tokenizer]"}}`))
	})

	err := idx.EnsureIndex(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStore))
	assert.Contains(t, err.Error(), "kuromoji_tokenizer")
}

func TestBulkIndex_WritesNDJSON(t *testing.T) {
	f, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"took": 3, "errors": false, "items": []}`))
	})

	chunks := []domain.Chunk{
		chunk("p1_0", domain.SparseVector{"101": 1.2, "a.b": 0.5}),
		chunk("p1_1", nil),
		chunk("p1_2", domain.SparseVector{"7": 0.3}),
	}
	n, err := idx.BulkIndex(context.Background(), chunks)

	require.NoError(t, err)
	assert.Equal(t, 2, n)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/test-index/_bulk", calls[0].Path)

	var lines []map[string]any
	sc := bufio.NewScanner(strings.NewReader(string(calls[0].Body)))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 4)
	assert.Equal(t, "p1_0", lines[0]["index"].(map[string]any)["_id"])
	assert.Equal(t, "p1_2", lines[2]["index"].(map[string]any)["_id"])

	doc := lines[1]
	assert.Equal(t, "p1", doc["page_id"])
	assert.Equal(t, float64(1700000000), doc["updated"])
	vec := doc["sparse_vector"].(map[string]any)
	assert.Equal(t, 1.2, vec["101"])
	assert.Equal(t, 0.5, vec["a_b"])
}

func TestBulkIndex_NothingIndexable(t *testing.T) {
	f, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		t.Error("no request expected")
	})

	n, err := idx.BulkIndex(context.Background(), []domain.Chunk{chunk("p1_0", domain.SparseVector{})})

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.calls())
}

func TestBulkIndex_PartialFailure(t *testing.T) {
	_, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"errors": true, "items": [
			{"index": {"_id": "p1_0", "status": 201}},
			{"index": {"_id": "p1_1", "status": 400, "error": {"type": "mapper_parsing_exception", "reason": "bad"}}}
		]}`))
	})

	n, err := idx.BulkIndex(context.Background(), []domain.Chunk{
		chunk("p1_0", domain.SparseVector{"1": 1}),
		chunk("p1_1", domain.SparseVector{"2": 1}),
	})

	assert.Equal(t, 1, n)
	require.Error(t, err)
	var storeErr *domain.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "bulk", storeErr.Op)
	assert.Contains(t, err.Error(), "p1_1")
	assert.NotContains(t, err.Error(), "p1_0")
}

func TestBulkIndex_RequestRejected(t *testing.T) {
	_, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"type": "cluster_block_exception", "reason": "read-only"}}`))
	})

	n, err := idx.BulkIndex(context.Background(), []domain.Chunk{chunk("p1_0", domain.SparseVector{"1": 1})})

	assert.Zero(t, n)
	assert.True(t, errors.Is(err, domain.ErrStore))
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(domain.SparseVector{"101": 1.5, "x.y": 0.5}, 3, 1024)

	assert.Equal(t, 3, q["size"])
	assert.Equal(t, []string{"title", "text", "url", "updated"}, q["_source"])

	should := q["query"].(map[string]any)["bool"].(map[string]any)["should"].([]map[string]any)
	require.Len(t, should, 2)

	first := should[0]["rank_feature"].(map[string]any)
	assert.Equal(t, "sparse_vector.101", first["field"])
	assert.Equal(t, 1.5, first["boost"])
	assert.Contains(t, first, "linear")

	second := should[1]["rank_feature"].(map[string]any)
	assert.Equal(t, "sparse_vector.x_y", second["field"])
}

func TestBuildQuery_MergesCollidingFeatureNames(t *testing.T) {
	for i := 0; i < 20; i++ {
		q := BuildQuery(domain.SparseVector{"a.b": 1, "a_b": 3}, 5, 1024)

		should := q["query"].(map[string]any)["bool"].(map[string]any)["should"].([]map[string]any)
		require.Len(t, should, 1)
		clause := should[0]["rank_feature"].(map[string]any)
		assert.Equal(t, "sparse_vector.a_b", clause["field"])
		assert.Equal(t, 3.0, clause["boost"])
	}
}

func TestNewDocument_MergesCollidingFeatureNames(t *testing.T) {
	for i := 0; i < 20; i++ {
		c := chunk("p1_0", domain.SparseVector{"a.b": 1, "a_b": 3, "c": 0.5})

		doc := newDocument(&c)

		assert.Equal(t, map[string]float64{"a_b": 3, "c": 0.5}, doc.SparseVector)
	}
}

func TestBuildQuery_CapsClausesByWeight(t *testing.T) {
	vec := domain.SparseVector{"a": 0.1, "b": 0.9, "c": 0.5, "d": 0.7}

	q := BuildQuery(vec, 5, 2)

	should := q["query"].(map[string]any)["bool"].(map[string]any)["should"].([]map[string]any)
	require.Len(t, should, 2)
	assert.Equal(t, "sparse_vector.b", should[0]["rank_feature"].(map[string]any)["field"])
	assert.Equal(t, "sparse_vector.d", should[1]["rank_feature"].(map[string]any)["field"])
}

func TestSearch_ParsesHits(t *testing.T) {
	f, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"hits": {"hits": [
			{"_id": "p1_0", "_score": 2.5, "_source": {"title": "A", "text": "alpha", "url": "u1", "updated": 10}},
			{"_id": "p2_0", "_score": 1.0, "_source": {"title": "B", "text": "beta", "url": "u2", "updated": 20}}
		]}}`))
	})

	contexts, err := idx.Search(context.Background(), domain.SparseVector{"1": 1}, 2)

	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, domain.ScoredContext{Score: 2.5, Title: "A", Text: "alpha", URL: "u1", Updated: 10}, contexts[0])
	assert.Equal(t, "B", contexts[1].Title)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/test-index/_search", calls[0].Path)
	var body map[string]any
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	assert.Equal(t, float64(2), body["size"])
}

func TestSearch_EmptyVectorMakesNoRequest(t *testing.T) {
	f, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		t.Error("no request expected")
	})

	contexts, err := idx.Search(context.Background(), domain.SparseVector{}, 5)

	require.NoError(t, err)
	assert.NotNil(t, contexts)
	assert.Empty(t, contexts)
	assert.Empty(t, f.calls())
}

func TestSearch_StoreFailure(t *testing.T) {
	_, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "index_not_found_exception", "reason": "no such index"}}`))
	})

	contexts, err := idx.Search(context.Background(), domain.SparseVector{"1": 1}, 5)

	assert.Nil(t, contexts)
	var storeErr *domain.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "search", storeErr.Op)
	assert.Contains(t, err.Error(), "index_not_found_exception")
}

func TestResponseError_MultibyteBodyStaysValidUTF8(t *testing.T) {
	body := "a" + strings.Repeat("あ", 300)

	err := responseError(http.StatusInternalServerError, []byte(body))

	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), "status 500")
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}

func TestResponseError_UsesTypedReason(t *testing.T) {
	err := responseError(http.StatusBadRequest, []byte(`{"error": {"type": "parsing_exception", "reason": "`+strings.Repeat("é", 300)+`"}}`))

	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), "status 400: parsing_exception: ")
}

func TestPing(t *testing.T) {
	_, idx := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, idx.Ping(context.Background()))

	_, down := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	assert.True(t, errors.Is(down.Ping(context.Background()), domain.ErrStore))
}
