package driven

import (
	"context"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// ProjectSource produces a project export. Both a local export file and a
// remote wiki crawl reduce to this contract.
type ProjectSource interface {
	// Fetch returns the full project.
	Fetch(ctx context.Context) (*domain.Project, error)
}
