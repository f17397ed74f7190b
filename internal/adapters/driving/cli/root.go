// Package cli implements the scrapbox-rag command line. root.go is the
// composition root: it resolves settings and wires adapters into services.
package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/config/file"
	prommetrics "github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driving"
	"github.com/custodia-labs/scrapbox-rag/internal/core/services"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
	"github.com/custodia-labs/scrapbox-rag/internal/postprocessors/chunker"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

var (
	verbose   bool
	configDir string
)

// Services wired by initServices, or injected by tests.
var (
	settingsService driving.SettingsService
	ingestService   driving.IngestService
	importService   driving.IngestService
	searchService   driving.SearchService
	appSettings     *domain.AppSettings
	backends        *ai.InitResult
	metrics         *prommetrics.Metrics
	closers         []func()
)

var rootCmd = &cobra.Command{
	Use:   "scrapbox-rag",
	Short: "Question answering over a Scrapbox project",
	Long: `scrapbox-rag indexes a Scrapbox project into Elasticsearch with SPLADE
sparse vectors and answers questions from it with a local language model.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.scrapbox-rag)")
}

// Execute runs the root command and releases resources afterwards.
// Cancelling ctx stops long-running commands such as serve and import --watch.
func Execute(ctx context.Context) error {
	defer shutdown()
	return rootCmd.ExecuteContext(ctx)
}

// noSetup replaces setup for commands that need no services.
func noSetup(*cobra.Command, []string) error { return nil }

func setup(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	if verbose {
		logger.SetVerbose(true)
	}
	if settingsService != nil {
		return nil
	}
	return initServices()
}

// initServices resolves settings and builds every service from them.
func initServices() error {
	dir := configDir
	if dir == "" {
		var err error
		if dir, err = file.DefaultDir(); err != nil {
			logger.Warn("Cannot locate home directory: %v", err)
		}
	}

	var store driven.ConfigStore
	fileStore, err := file.NewConfigStore(dir)
	if err != nil {
		logger.Warn("Config file unavailable (%v), using in-memory settings", err)
		store = memory.NewConfigStore(nil)
	} else {
		store = fileStore
	}

	settingsSvc := services.NewSettingsService(store)
	settings, err := settingsSvc.Get()
	if err != nil {
		return err
	}
	if settings.Verbose {
		logger.SetVerbose(true)
	}

	result, err := ai.Init(settings)
	if err != nil {
		return err
	}

	var prompts driven.PromptStore
	if dir != "" {
		if ps, err := file.NewPromptStore(filepath.Join(dir, "prompts")); err == nil {
			prompts = ps
		}
	}

	m := prommetrics.New()
	chunks := chunker.New(
		chunker.WithMaxChars(settings.Ingest.ChunkMaxChars),
		chunker.WithBaseURL(settings.Scrapbox.BaseURL),
	)
	live := services.NewIngestService(result.Index, result.Encoder, chunks, m, services.IngestOptions{
		BatchSize:   settings.Ingest.BatchSize,
		Concurrency: settings.Ingest.Concurrency,
	})
	bulk := services.NewIngestService(result.Index, result.Encoder, chunks, m, services.IngestOptions{
		BatchSize:   settings.Ingest.ImportBatchSize,
		Concurrency: settings.Ingest.Concurrency,
	})

	settingsService = settingsSvc
	appSettings = settings
	backends = result
	metrics = m
	ingestService = live
	importService = bulk
	searchService = services.NewSearchService(result.Encoder, result.Index, result.Generator, prompts, m)
	closers = append(closers,
		func() { _ = live.Close() },
		func() { _ = bulk.Close() },
		result.Close,
	)
	return nil
}

// shutdown closes services in reverse order of creation.
func shutdown() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
}

// currentSettings returns the resolved settings, falling back to defaults
// when services were injected without them.
func currentSettings() *domain.AppSettings {
	if appSettings != nil {
		return appSettings
	}
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			return s
		}
	}
	d := domain.DefaultAppSettings()
	return &d
}

var errNotConfigured = errors.New("services not configured")
