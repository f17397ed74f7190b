package scrapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

// Ensure FileSource implements the interface.
var _ driven.ProjectSource = (*FileSource)(nil)

// FileSource reads a project from an exported JSON file.
type FileSource struct {
	path string
}

// NewFileSource creates a source for the export at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the export file path.
func (s *FileSource) Path() string {
	return s.path
}

// Fetch reads and decodes the export file.
func (s *FileSource) Fetch(ctx context.Context) (*domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return DecodeProject(f)
}

// DecodeProject parses a Scrapbox export document and validates it.
// Unknown fields are ignored.
func DecodeProject(r io.Reader) (*domain.Project, error) {
	var project domain.Project
	if err := json.NewDecoder(r).Decode(&project); err != nil {
		return nil, fmt.Errorf("%w: decode export: %v", domain.ErrInvalidInput, err)
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	return &project, nil
}
