// Package api exposes the ingestion and answering services over HTTP.
// Routes follow the /api/v1 layout of the Scrapbox RAG backend, with SSE
// for streamed answers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driving"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8000"

	// DefaultMaxUploadBytes caps the export upload size.
	DefaultMaxUploadBytes = 256 << 20

	shutdownTimeout = 10 * time.Second
)

// ErrMissingService is returned when a required service is not provided.
var ErrMissingService = errors.New("api: ingest and search services are required")

// Config holds the server settings.
type Config struct {
	Addr           string
	CORSOrigins    []string
	MaxUploadBytes int64

	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP facade over the core services.
type Server struct {
	echo   *echo.Echo
	ingest driving.IngestService
	search driving.SearchService
	cfg    Config
}

// NewServer builds the router. It does not start listening.
func NewServer(ingest driving.IngestService, search driving.SearchService, cfg Config) (*Server, error) {
	if ingest == nil || search == nil {
		return nil, ErrMissingService
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{echo: echo.New(), ingest: ingest, search: search, cfg: cfg}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError
	s.echo.Use(middleware.Recover())
	s.echo.Use(accessLog)
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Scrapbox RAG API is running"})
	})
	s.echo.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.cfg.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.cfg.Metrics))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/ingest", s.handleIngest, middleware.BodyLimit(fmt.Sprintf("%dB", s.cfg.MaxUploadBytes)))
	v1.GET("/ingest/:id", s.handleIngestStatus)
	v1.POST("/search", s.handleSearch)
	v1.POST("/search/stream", s.handleSearchStream)
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// handleError renders every failure as {"detail": message}.
func (s *Server) handleError(err error, c echo.Context) {
	code, msg := errorStatus(err)
	req := c.Request()
	if code >= http.StatusInternalServerError {
		logger.Error("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	} else {
		logger.Debug("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	}
	if c.Response().Committed {
		return
	}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"detail": msg})
}

// errorStatus maps service errors onto HTTP status codes and messages.
func errorStatus(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrEncoding):
		return http.StatusInternalServerError, "Encoder error: " + err.Error()
	case errors.Is(err, domain.ErrStore):
		return http.StatusInternalServerError, "Search error: " + err.Error()
	case errors.Is(err, domain.ErrGeneration):
		return http.StatusInternalServerError, "Generation error: " + err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

func accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		req := c.Request()
		logger.Debug("%s %s %d %s", req.Method, req.URL.Path, c.Response().Status, time.Since(start))
		return err
	}
}
