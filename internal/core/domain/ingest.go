package domain

import "time"

// IngestReport summarises one ingestion run.
type IngestReport struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// Project is the ingested project name.
	Project string `json:"project"`

	// TotalChunks is the number of chunks produced by the chunker.
	TotalChunks int `json:"total_chunks"`

	// Processed is the number of chunks whose batch has been handled.
	Processed int `json:"processed"`

	// Indexed is the number of chunks written to the store.
	Indexed int `json:"indexed"`

	// Failed is the number of chunks skipped because encoding failed or
	// returned an empty vector.
	Failed int `json:"failed"`

	// BatchErrors is the number of bulk writes that failed.
	BatchErrors int `json:"batch_errors"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Duration returns the run time, or zero while the run is in progress.
func (r *IngestReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
