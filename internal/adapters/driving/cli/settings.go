package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in ~/.scrapbox-rag/config.toml.

Environment variables (ES_HOST, SPLADE_API_URL, LLM_MODEL, ...) and a .env
file in the working directory override stored values.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Persist one setting",
	Long: `Persist one setting. Secret keys prompt for the value without echo
when it is not given on the command line.

Run 'scrapbox-rag settings keys' to list accepted keys.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

// secretKeys are masked in output and read without echo.
var secretKeys = map[string]bool{
	"es.password":          true,
	"llm.api_key":          true,
	"scrapbox.connect_sid": true,
}

// passwordReader reads a secret from the terminal. Replaced in tests.
var passwordReader = readPassword

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Search Store]")
	cmd.Printf("  Backend: %s\n", settings.Store)
	cmd.Printf("  Host: %s\n", settings.Elasticsearch.Host)
	cmd.Printf("  Index: %s\n", settings.Elasticsearch.Index)
	if settings.Elasticsearch.User != "" {
		cmd.Printf("  User: %s\n", settings.Elasticsearch.User)
		cmd.Printf("  Password: %s\n", maskSecret(settings.Elasticsearch.Password))
	}
	cmd.Printf("  Max Clauses: %d\n", settings.Elasticsearch.MaxClauses)
	cmd.Println()

	cmd.Println("[Encoder]")
	cmd.Printf("  URL: %s\n", settings.Encoder.URL)
	cmd.Printf("  Timeout: %ds\n", settings.Encoder.TimeoutSeconds)
	if settings.Encoder.RateLimit > 0 {
		cmd.Printf("  Rate Limit: %.1f/s\n", settings.Encoder.RateLimit)
	}
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider)
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.APIKey != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(settings.LLM.APIKey))
	}
	cmd.Println()

	cmd.Println("[Ingest]")
	cmd.Printf("  Chunk Size: %d chars\n", settings.Ingest.ChunkMaxChars)
	cmd.Printf("  Batch Size: %d (import %d)\n", settings.Ingest.BatchSize, settings.Ingest.ImportBatchSize)
	cmd.Printf("  Concurrency: %d\n", settings.Ingest.Concurrency)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Top K: %d\n", settings.Search.TopK)
	cmd.Println()

	cmd.Println("[Scrapbox]")
	cmd.Printf("  Base URL: %s\n", settings.Scrapbox.BaseURL)
	if settings.Scrapbox.Project != "" {
		cmd.Printf("  Project: %s\n", settings.Scrapbox.Project)
	}
	if settings.Scrapbox.ConnectSID != "" {
		cmd.Printf("  Session: %s\n", maskSecret(settings.Scrapbox.ConnectSID))
	}
	cmd.Println()

	cmd.Println("[HTTP]")
	cmd.Printf("  Address: %s\n", settings.HTTP.Addr)
	cmd.Printf("  CORS Origins: %s\n", strings.Join(settings.HTTP.CORSOrigins, ", "))

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case secretKeys[key]:
		cmd.Printf("Enter %s: ", key)
		value = passwordReader(cmd.InOrStdin())
		cmd.Println()
	default:
		return fmt.Errorf("a value is required for %s", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if secretKeys[key] {
		shown = maskSecret(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, k := range settingsService.Keys() {
		cmd.Println(k)
	}
	return nil
}

// readPassword reads without echo from a terminal, or one line otherwise.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	input, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "****"
}
