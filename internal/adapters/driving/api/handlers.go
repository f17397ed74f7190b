package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/scrapbox-rag/internal/connectors/scrapbox"
	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

// SearchRequest is the body of both search endpoints.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// IngestResponse acknowledges a background ingestion.
type IngestResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

func (s *Server) handleIngest(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	project, err := scrapbox.DecodeProject(f)
	if err != nil {
		return err
	}

	runID := s.ingest.IngestAsync(project)
	return c.JSON(http.StatusOK, IngestResponse{
		Message: "Ingestion started in background",
		RunID:   runID,
	})
}

func (s *Server) handleIngestStatus(c echo.Context) error {
	status, ok := s.ingest.Status(c.Param("id"))
	if !ok {
		return fmt.Errorf("ingest run %q: %w", c.Param("id"), domain.ErrNotFound)
	}
	return c.JSON(http.StatusOK, status)
}

func bindSearch(c echo.Context) (*SearchRequest, error) {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	return &req, nil
}

func (s *Server) handleSearch(c echo.Context) error {
	req, err := bindSearch(c)
	if err != nil {
		return err
	}
	answer, err := s.search.Search(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}

// streamFrame is one SSE data payload. Exactly one field is set.
type streamFrame struct {
	Sources *[]domain.ScoredContext `json:"sources,omitempty"`
	Answer  *string                 `json:"answer,omitempty"`
	Error   *string                 `json:"error,omitempty"`
}

// handleSearchStream relays the answer stream as server-sent events:
// sources first, then one frame per token, and an error frame if the
// stream failed. Client disconnect cancels generation.
func (s *Server) handleSearchStream(c echo.Context) error {
	req, err := bindSearch(c)
	if err != nil {
		return err
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	sentSources := false
	for ev := range s.search.SearchStream(ctx, req.Query, req.TopK) {
		var frame streamFrame
		switch {
		case ev.Err != nil:
			msg := streamError(ev.Err, sentSources)
			frame.Error = &msg
		case ev.IsSources():
			sources := ev.Sources
			frame.Sources = &sources
			sentSources = true
		default:
			token := ev.Token
			frame.Answer = &token
		}
		if err := writeFrame(resp, frame); err != nil {
			// Client went away; ctx is cancelled, the stream drains and closes.
			continue
		}
		flusher.Flush()
	}
	return nil
}

// streamError labels a stream failure by the stage that produced it.
func streamError(err error, afterSources bool) string {
	switch {
	case afterSources || errors.Is(err, domain.ErrGeneration):
		return "Generation error: " + err.Error()
	case errors.Is(err, domain.ErrEncoding):
		return "Encoder error: " + err.Error()
	case errors.Is(err, domain.ErrStore):
		return "Search error: " + err.Error()
	}
	return err.Error()
}

func writeFrame(w http.ResponseWriter, frame streamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
