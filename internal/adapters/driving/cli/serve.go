package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driving/api"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API:

  POST /api/v1/ingest          upload an export (multipart field "file")
  GET  /api/v1/ingest/:id      ingestion progress
  POST /api/v1/search          {"query": "...", "top_k": 5}
  POST /api/v1/search/stream   same body, answer as server-sent events
  GET  /metrics                Prometheus metrics

Unreachable backends are reported at startup but do not stop the server.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings, :8000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestService == nil || searchService == nil {
		return fmt.Errorf("serve: %w", errNotConfigured)
	}
	settings := currentSettings()
	logger.SetTimestamps(true)

	addr := serveAddr
	if addr == "" {
		addr = settings.HTTP.Addr
	}
	cfg := api.Config{Addr: addr, CORSOrigins: settings.HTTP.CORSOrigins}
	if metrics != nil {
		cfg.Metrics = metrics.Handler()
	}
	server, err := api.NewServer(ingestService, searchService, cfg)
	if err != nil {
		return err
	}

	if backends != nil {
		for _, w := range backends.Check(cmd.Context()) {
			logger.Warn("%s", w)
		}
	}

	cmd.Printf("Listening on %s\n", server.Addr())
	return server.Run(cmd.Context())
}

