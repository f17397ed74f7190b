package driving

import (
	"context"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// IngestService chunks, encodes and indexes projects.
type IngestService interface {
	// Ingest runs a full ingestion synchronously and returns its summary.
	// Per-chunk encoding failures are skipped, not returned.
	Ingest(ctx context.Context, project *domain.Project) (*domain.IngestReport, error)

	// IngestAsync starts an ingestion in the background and returns its run
	// ID immediately. The run is detached from the caller's lifetime.
	IngestAsync(project *domain.Project) string

	// Status returns the state of a run started by this process.
	Status(runID string) (*IngestStatus, bool)

	// Runs lists the IDs of known runs, newest first.
	Runs() []string
}

// IngestStatus represents the current state of an ingestion run.
type IngestStatus struct {
	// Report holds the counters so far.
	domain.IngestReport

	// Running indicates if the run is still in progress.
	Running bool `json:"running"`

	// Error is set when the run aborted.
	Error string `json:"error,omitempty"`
}
