package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scrapbox-rag/internal/connectors/scrapbox"
	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
)

var (
	importProject string
	importWatch   bool
)

var importCmd = &cobra.Command{
	Use:   "import [export.json]",
	Short: "Index a Scrapbox project",
	Long: `Chunks, encodes and indexes a Scrapbox project, then prints a summary.

The project is read from a JSON export file, or crawled from the Scrapbox
API with --project (private projects need scrapbox.connect_sid or
SCRAPBOX_COOKIE_CONNECT_SID). Re-importing overwrites chunks in place.

With --watch the export file is re-imported whenever it changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importProject, "project", "p", "", "crawl this project from the Scrapbox API")
	importCmd.Flags().BoolVarP(&importWatch, "watch", "w", false, "re-import the export file when it changes")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return fmt.Errorf("import: %w", errNotConfigured)
	}

	source, err := importSource(args)
	if err != nil {
		return err
	}
	fileSource, isFile := source.(*scrapbox.FileSource)
	if importWatch && !isFile {
		return fmt.Errorf("%w: --watch needs an export file", domain.ErrInvalidInput)
	}
	ctx := cmd.Context()

	if err := importOnce(ctx, cmd, source); err != nil {
		return err
	}
	if !importWatch {
		return nil
	}

	changes, err := fileSource.Watch(ctx, scrapbox.DefaultDebounce)
	if err != nil {
		return err
	}
	cmd.Printf("Watching %s for changes (Ctrl+C to stop)\n", fileSource.Path())
	for range changes {
		if err := importOnce(ctx, cmd, source); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("Re-import failed: %v", err)
		}
	}
	return nil
}

// importSource picks the export file argument or an API crawl.
func importSource(args []string) (driven.ProjectSource, error) {
	if len(args) == 1 && importProject != "" {
		return nil, fmt.Errorf("%w: give an export file or --project, not both", domain.ErrInvalidInput)
	}
	if len(args) == 1 {
		return scrapbox.NewFileSource(args[0]), nil
	}

	settings := currentSettings()
	project := importProject
	if project == "" {
		project = settings.Scrapbox.Project
	}
	if project == "" {
		return nil, fmt.Errorf("%w: an export file or --project is required", domain.ErrInvalidInput)
	}
	return scrapbox.NewCrawler(scrapbox.CrawlerConfig{
		BaseURL:    settings.Scrapbox.BaseURL,
		Project:    project,
		ConnectSID: settings.Scrapbox.ConnectSID,
		Rate:       settings.Scrapbox.RateLimit,
	})
}

func importOnce(ctx context.Context, cmd *cobra.Command, source driven.ProjectSource) error {
	project, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	cmd.Printf("Importing %s (%d pages)...\n", project.Name, len(project.Pages))

	report, err := importService.Ingest(ctx, project)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.Printf("Indexed %d of %d chunks in %s\n",
		report.Indexed, report.TotalChunks, report.Duration().Round(time.Millisecond))
	if report.Failed > 0 || report.BatchErrors > 0 {
		cmd.Println(warnStyle.Render(fmt.Sprintf("  %d chunks skipped, %d batches failed", report.Failed, report.BatchErrors)))
	}
	return nil
}
