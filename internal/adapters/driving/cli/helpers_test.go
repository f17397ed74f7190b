package cli

import (
	"bytes"
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/ai"
	prommetrics "github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/scrapbox-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/scrapbox-rag/internal/connectors/scrapbox"
	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/services"
	"github.com/custodia-labs/scrapbox-rag/internal/postprocessors/chunker"
)

// wordEncoder gives every distinct lowercase word a weight of 1.
type wordEncoder struct{ err error }

func (e *wordEncoder) Encode(_ context.Context, text string) (domain.SparseVector, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := domain.SparseVector{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		vec[strings.Trim(w, ".,?!")] = 1
	}
	return vec, nil
}

func (e *wordEncoder) EncodeBatch(ctx context.Context, texts []string) ([]domain.SparseVector, error) {
	out := make([]domain.SparseVector, len(texts))
	for i, t := range texts {
		v, err := e.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *wordEncoder) Ping(context.Context) error { return e.err }
func (e *wordEncoder) Close() error               { return nil }

// echoGenerator answers with a fixed string, streamed word by word.
type echoGenerator struct {
	answer string
	err    error
}

func (g *echoGenerator) Generate(context.Context, string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *echoGenerator) GenerateStream(_ context.Context, _ string, onToken func(string) error) error {
	if g.err != nil {
		return g.err
	}
	for _, w := range strings.SplitAfter(g.answer, " ") {
		if err := onToken(w); err != nil {
			return err
		}
	}
	return nil
}

func (g *echoGenerator) ModelName() string          { return "echo" }
func (g *echoGenerator) Ping(context.Context) error { return g.err }
func (g *echoGenerator) Close() error               { return nil }

type testEnv struct {
	index     *memory.SparseIndex
	encoder   *wordEncoder
	generator *echoGenerator
	store     *memory.ConfigStore
}

// setupTestEnv injects in-memory services into the command globals and
// returns a cleanup function that clears them and resets flag values.
func setupTestEnv() (*testEnv, func()) {
	env := &testEnv{
		index:     memory.NewSparseIndex(),
		encoder:   &wordEncoder{},
		generator: &echoGenerator{answer: "Go is a programming language"},
		store:     memory.NewConfigStore(map[string]any{"store": "memory"}),
	}

	settingsSvc := services.NewSettingsService(env.store)
	settings, err := settingsSvc.Get()
	if err != nil {
		panic(err)
	}
	m := prommetrics.New()
	chunks := chunker.New()
	live := services.NewIngestService(env.index, env.encoder, chunks, m, services.IngestOptions{BatchSize: 2})
	bulk := services.NewIngestService(env.index, env.encoder, chunks, m, services.IngestOptions{BatchSize: 20})

	settingsService = settingsSvc
	appSettings = settings
	metrics = m
	ingestService = live
	importService = bulk
	searchService = services.NewSearchService(env.encoder, env.index, env.generator, nil, m)
	backends = &ai.InitResult{Encoder: env.encoder, Generator: env.generator, Index: env.index}

	return env, func() {
		_ = live.Close()
		_ = bulk.Close()
		clearServices()
		resetFlags()
	}
}

func clearServices() {
	settingsService = nil
	ingestService = nil
	importService = nil
	searchService = nil
	appSettings = nil
	backends = nil
	metrics = nil
}

// resetFlags restores flag variables, which persist across Execute calls.
func resetFlags() {
	askTopK, askStream, askJSON = 0, false, false
	importProject, importWatch = "", false
	serveAddr = ""
	configDir = ""
	verbose = false
	_ = mcpServeCmd.Flags().Set("port", "0")
}

// execute runs the root command with args and returns everything it printed.
func execute(ctx context.Context, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	// cobra only hands the context to subcommands that have none yet.
	setContextAll(ctx, rootCmd)
	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

func setContextAll(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContextAll(ctx, c)
	}
}

// ingestFixture indexes testExport through the import service.
func ingestFixture(ctx context.Context) error {
	project, err := scrapbox.DecodeProject(strings.NewReader(testExport))
	if err != nil {
		return err
	}
	_, err = importService.Ingest(ctx, project)
	return err
}

const testExport = `{
  "name": "demo",
  "displayName": "Demo",
  "pages": [
    {"id": "p1", "title": "Go", "lines": ["Go", "Go is a programming language made at Google"], "updated": 1700000000},
    {"id": "p2", "title": "Rust", "lines": ["Rust", "Rust is a systems language"], "updated": 1700000001}
  ]
}`
