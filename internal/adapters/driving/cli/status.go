package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the encoder, language model and search store",
	Long:  `Pings every backend the pipeline depends on and prints the active settings.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if backends == nil {
		return fmt.Errorf("status: %w", errNotConfigured)
	}
	settings := currentSettings()

	cmd.Println(headingStyle.Render("Backends"))
	cmd.Printf("  Encoder:      %s\n", settings.Encoder.URL)
	cmd.Printf("  LLM:          %s %s\n", settings.LLM.Provider, settings.LLM.Model)
	cmd.Printf("  Search store: %s", settings.Store)
	if settings.Store == domain.StoreElasticsearch {
		cmd.Printf(" %s/%s", settings.Elasticsearch.Host, settings.Elasticsearch.Index)
	}
	cmd.Println()
	cmd.Println()

	warnings := backends.Check(cmd.Context())
	if len(warnings) == 0 {
		cmd.Println("All backends reachable.")
		return nil
	}
	for _, w := range warnings {
		cmd.Println(warnStyle.Render("  ! " + w))
	}
	return fmt.Errorf("%d backend(s) unreachable", len(warnings))
}
