// Package chunker splits Scrapbox pages into bounded-length text chunks.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// DefaultMaxChars is the buffered length, in characters, after which a
// chunk is closed.
const DefaultMaxChars = 500

// DefaultBaseURL is the Scrapbox host used to build page URLs.
const DefaultBaseURL = "https://scrapbox.io"

// bracketPattern matches single-level bracket markup: links, images, icons
// and decorations. Nested brackets are not special-cased.
var bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// Processor splits pages into chunks.
type Processor struct {
	maxChars int
	baseURL  string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxChars sets the chunk length threshold in characters.
func WithMaxChars(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxChars = n
		}
	}
}

// WithBaseURL sets the host used to build page URLs.
func WithBaseURL(u string) Option {
	return func(p *Processor) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxChars: DefaultMaxChars,
		baseURL:  DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// MaxChars returns the configured threshold.
func (p *Processor) MaxChars() int {
	return p.maxChars
}

// ChunkProject chunks every page and flattens the result in page order.
func (p *Processor) ChunkProject(project *domain.Project) []domain.Chunk {
	var chunks []domain.Chunk
	for i := range project.Pages {
		chunks = append(chunks, p.ChunkPage(&project.Pages[i], project.Name)...)
	}
	return chunks
}

// ChunkPage splits one page into chunks.
//
// Blank lines are skipped only while the current chunk is still empty, so
// interior blank lines survive as separators. A chunk is closed as soon as
// its buffered length exceeds the threshold. A page without any non-blank
// line yields no chunks.
func (p *Processor) ChunkPage(page *domain.Page, project string) []domain.Chunk {
	url := PageURL(p.baseURL, project, page.Title)

	var chunks []domain.Chunk
	var buf []string
	length := 0

	flush := func() {
		chunks = append(chunks, domain.Chunk{
			ID:      domain.ChunkID(page.ID, len(chunks)),
			PageID:  page.ID,
			Title:   page.Title,
			Text:    strings.Join(buf, "\n"),
			URL:     url,
			Updated: page.Updated,
		})
		buf = nil
		length = 0
	}

	for _, line := range page.Lines {
		if len(buf) == 0 && strings.TrimSpace(line) == "" {
			continue
		}

		clean := CleanText(line)
		buf = append(buf, clean)
		length += utf8.RuneCountInString(clean)

		if length > p.maxChars {
			flush()
		}
	}

	if len(buf) > 0 {
		flush()
	}

	return chunks
}

// CleanText strips bracket markup, keeping the inner text, and trims
// surrounding whitespace.
func CleanText(text string) string {
	return strings.TrimSpace(bracketPattern.ReplaceAllString(text, "$1"))
}

// PageURL builds the canonical URL of a page. Spaces in the title become
// underscores; the result is for display only.
func PageURL(baseURL, project, title string) string {
	return baseURL + "/" + project + "/" + strings.ReplaceAll(title, " ", "_")
}
