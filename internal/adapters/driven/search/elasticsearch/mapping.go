package elasticsearch

import (
	"strings"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// IndexDefinition is the body sent when creating the index. Titles and text
// are analysed with kuromoji; the sparse vector is a rank_features field
// with one feature per term.
const IndexDefinition = `{
  "settings": {
    "analysis": {
      "analyzer": {
        "kuromoji_analyzer": {
          "type": "custom",
          "tokenizer": "kuromoji_tokenizer"
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "page_id": {"type": "keyword"},
      "title": {
        "type": "text",
        "analyzer": "kuromoji_analyzer",
        "fields": {"keyword": {"type": "keyword"}}
      },
      "text": {"type": "text", "analyzer": "kuromoji_analyzer"},
      "url": {"type": "keyword", "index": false},
      "updated": {"type": "date", "format": "epoch_second"},
      "sparse_vector": {"type": "rank_features"}
    }
  }
}`

// document is the stored form of a chunk.
type document struct {
	PageID       string             `json:"page_id"`
	Title        string             `json:"title"`
	Text         string             `json:"text"`
	URL          string             `json:"url"`
	Updated      int64              `json:"updated"`
	SparseVector map[string]float64 `json:"sparse_vector"`
}

func newDocument(c *domain.Chunk) document {
	return document{
		PageID:       c.PageID,
		Title:        c.Title,
		Text:         c.Text,
		URL:          c.URL,
		Updated:      c.Updated,
		SparseVector: featureVector(c.SparseVector),
	}
}

// FeatureName maps a term to a rank_features key. A dot would be read as
// an object path, so it is replaced.
func FeatureName(term string) string {
	return strings.ReplaceAll(term, ".", "_")
}

// featureVector rekeys v by FeatureName. Terms that map to the same feature
// keep the highest weight.
func featureVector(v domain.SparseVector) domain.SparseVector {
	out := make(domain.SparseVector, len(v))
	for term, w := range v {
		name := FeatureName(term)
		if cur, ok := out[name]; !ok || w > cur {
			out[name] = w
		}
	}
	return out
}

// BuildQuery returns the search body for a sparse query: one linear
// rank_feature clause per feature, boosted by the query weight, keeping only
// the maxClauses highest-weighted terms.
func BuildQuery(query domain.SparseVector, k, maxClauses int) map[string]any {
	terms := featureVector(query).Top(maxClauses)
	should := make([]map[string]any, 0, len(terms))
	for _, t := range terms {
		should = append(should, map[string]any{
			"rank_feature": map[string]any{
				"field":  "sparse_vector." + t.Token,
				"boost":  t.Weight,
				"linear": map[string]any{},
			},
		})
	}
	return map[string]any{
		"size": k,
		"query": map[string]any{
			"bool": map[string]any{"should": should},
		},
		"_source": []string{"title", "text", "url", "updated"},
	}
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Title   string `json:"title"`
				Text    string `json:"text"`
				URL     string `json:"url"`
				Updated int64  `json:"updated"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}
