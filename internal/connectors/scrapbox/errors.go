package scrapbox

import (
	"errors"
	"fmt"
)

var (
	// ErrProjectRequired indicates the crawler was built without a project name.
	ErrProjectRequired = errors.New("scrapbox: project name is required")

	// ErrProjectNotFound indicates the project does not exist or is private
	// and no valid session cookie was given.
	ErrProjectNotFound = errors.New("scrapbox: project not found or not accessible")
)

// APIError represents a non-2xx Scrapbox API response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scrapbox: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsNotFound checks if the error indicates a missing page or project.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return errors.Is(err, ErrProjectNotFound)
}
