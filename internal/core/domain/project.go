package domain

import "fmt"

// Project is a Scrapbox project export: the document collection the
// ingestion pipeline consumes. Unknown JSON fields are ignored.
type Project struct {
	// Name is the project slug used in page URLs.
	Name string `json:"name"`

	// DisplayName is the human-readable project name.
	DisplayName string `json:"displayName"`

	// Pages are the project's pages in export order.
	Pages []Page `json:"pages"`
}

// Page is a single wiki page.
type Page struct {
	// ID is the opaque page identifier.
	ID string `json:"id"`

	// Title is the page title; it also names the page URL.
	Title string `json:"title"`

	// Lines is the raw page body, one entry per line, markup included.
	Lines []string `json:"lines"`

	// Updated is the last update time in epoch seconds.
	Updated int64 `json:"updated"`

	// Pin is non-zero when the page is pinned.
	Pin int `json:"pin"`
}

// Validate checks that a project can be ingested.
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	for i := range p.Pages {
		if p.Pages[i].ID == "" {
			return fmt.Errorf("%w: page %d (%q) has no id", ErrInvalidInput, i, p.Pages[i].Title)
		}
	}
	return nil
}

// Chunk is a bounded-length contiguous slice of a page's content.
// It is created by the chunker and receives its sparse vector exactly once
// during ingestion.
type Chunk struct {
	// ID is "{page_id}_{index}", deterministic for identical input.
	ID string `json:"id"`

	// PageID links to the originating page.
	PageID string `json:"page_id"`

	// Title is the originating page title.
	Title string `json:"title"`

	// Text is the cleaned chunk body.
	Text string `json:"text"`

	// URL is the canonical page URL.
	URL string `json:"url"`

	// Updated is the page update time in epoch seconds.
	Updated int64 `json:"updated"`

	// SparseVector is nil until the chunk has been encoded.
	SparseVector SparseVector `json:"sparse_vector,omitempty"`
}

// ChunkID builds the deterministic identity of the index-th chunk of a page.
func ChunkID(pageID string, index int) string {
	return fmt.Sprintf("%s_%d", pageID, index)
}

// Indexable reports whether the chunk carries a non-empty sparse vector.
func (c *Chunk) Indexable() bool {
	return len(c.SparseVector) > 0
}
