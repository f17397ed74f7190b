package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Expose retrieval and answering to AI assistants over the Model Context Protocol.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start a Model Context Protocol server over the indexed project.

Tools:
  retrieve   top-k page excerpts for a query, with URLs and scores
  ask        a generated answer and the excerpts it was based on

Resources:
  scrapbox-rag://runs           ingestion runs started by this process
  scrapbox-rag://runs/{runId}   progress of one run

JSON-RPC over stdio by default; --port serves streamable HTTP instead.

Examples:
  scrapbox-rag mcp serve
  scrapbox-rag mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	server, err := mcp.NewServer(&mcp.Ports{Search: searchService, Ingest: ingestService})
	if err != nil {
		return err
	}

	if port <= 0 {
		// stdout carries the protocol; say nothing on it.
		return server.Run(cmd.Context())
	}
	addr := fmt.Sprintf(":%d", port)
	cmd.PrintErrf("MCP server listening on http://localhost%s\n", addr)
	return server.RunHTTP(cmd.Context(), addr)
}
