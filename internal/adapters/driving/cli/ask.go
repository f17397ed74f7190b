package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
)

var (
	askTopK   int
	askStream bool
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed project",
	Long: `Encodes the question with SPLADE, retrieves the best matching chunks
from the index and asks the language model to answer from them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from settings)")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer as it is generated")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output answer and sources as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return fmt.Errorf("search: %w", errNotConfigured)
	}
	query := strings.Join(args, " ")
	topK := askTopK
	if topK <= 0 {
		topK = currentSettings().Search.TopK
	}

	if askStream && !askJSON {
		return streamAnswer(cmd, query, topK)
	}

	answer, err := searchService.Search(cmd.Context(), query, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(headingStyle.Render("Answer"))
	cmd.Println(answerStyle.Render(answer.Answer))
	printSources(cmd, answer.Sources)
	return nil
}

func streamAnswer(cmd *cobra.Command, query string, topK int) error {
	var sources []domain.ScoredContext
	var streamErr error
	started := false

	for ev := range searchService.SearchStream(cmd.Context(), query, topK) {
		switch {
		case ev.Err != nil && !started && ev.Token == "":
			return fmt.Errorf("search failed: %w", ev.Err)
		case ev.IsSources():
			sources = ev.Sources
			cmd.Println(headingStyle.Render("Answer"))
			started = true
		default:
			cmd.Print(ev.Token)
			if ev.Err != nil {
				streamErr = ev.Err
			}
		}
	}
	cmd.Println()

	if err := cmd.Context().Err(); err != nil {
		return err
	}
	printSources(cmd, sources)
	if streamErr != nil {
		return fmt.Errorf("generation failed: %w", streamErr)
	}
	return nil
}

func printSources(cmd *cobra.Command, sources []domain.ScoredContext) {
	if len(sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(headingStyle.Render("Sources"))
	for i, s := range sources {
		cmd.Printf("  [%d] %s %s\n", i+1, titleStyle.Render(s.Title), mutedStyle.Render(fmt.Sprintf("(%.2f)", s.Score)))
		cmd.Printf("      %s\n", mutedStyle.Render(s.URL))
	}
}
