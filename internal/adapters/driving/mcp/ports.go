package mcp

import (
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server needs.
type Ports struct {
	// Search answers questions and retrieves contexts.
	Search driving.SearchService

	// Ingest exposes ingestion run status. Optional.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
