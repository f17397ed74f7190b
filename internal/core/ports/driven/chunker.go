package driven

import "github.com/custodia-labs/scrapbox-rag/internal/core/domain"

// Chunker splits project pages into indexable chunks.
// Implementations must be pure and deterministic: the same project always
// yields the same chunk IDs in the same order.
type Chunker interface {
	// ChunkProject returns the chunks of every page, in page order.
	ChunkProject(project *domain.Project) []domain.Chunk
}
