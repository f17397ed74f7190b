package driven

import "time"

// Metrics observes ingestion and search activity.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ChunkEncoded records one encode call and its outcome.
	ChunkEncoded(ok bool, elapsed time.Duration)

	// BatchIndexed records one bulk write of n chunks.
	BatchIndexed(n int, ok bool)

	// Progress reports processed/total chunks after each batch.
	Progress(project string, processed, total int)

	// RunFinished records the end of an ingestion run.
	RunFinished(ok bool, elapsed time.Duration)

	// SearchServed records one search request and whether it failed.
	SearchServed(stream bool, ok bool)
}
