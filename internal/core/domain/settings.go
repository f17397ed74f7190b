package domain

import "fmt"

// StoreBackend selects the SparseIndex implementation.
type StoreBackend string

// Store backends.
const (
	StoreElasticsearch StoreBackend = "elasticsearch"
	StoreMemory        StoreBackend = "memory"
)

// IsValid reports whether the backend is known.
func (b StoreBackend) IsValid() bool {
	return b == StoreElasticsearch || b == StoreMemory
}

// LLMProvider selects the Generator implementation.
type LLMProvider string

// LLM providers.
const (
	LLMOllama LLMProvider = "ollama"
	LLMOpenAI LLMProvider = "openai"
)

// IsValid reports whether the provider is known.
func (p LLMProvider) IsValid() bool {
	return p == LLMOllama || p == LLMOpenAI
}

// AppSettings is the resolved configuration of the service.
type AppSettings struct {
	Store         StoreBackend          `json:"store"`
	Elasticsearch ElasticsearchSettings `json:"elasticsearch"`
	Encoder       EncoderSettings       `json:"encoder"`
	LLM           LLMSettings           `json:"llm"`
	Ingest        IngestSettings        `json:"ingest"`
	Search        SearchSettings        `json:"search"`
	Scrapbox      ScrapboxSettings      `json:"scrapbox"`
	HTTP          HTTPSettings          `json:"http"`
	Verbose       bool                  `json:"verbose"`
}

// ElasticsearchSettings configures the search store.
type ElasticsearchSettings struct {
	Host       string `json:"host"`
	User       string `json:"user,omitempty"`
	Password   string `json:"-"`
	Index      string `json:"index"`
	MaxClauses int    `json:"max_clauses"`
}

// EncoderSettings configures the sparse encoder client.
type EncoderSettings struct {
	URL            string  `json:"url"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	RateLimit      float64 `json:"rate_limit"`
}

// LLMSettings configures the answer generator.
type LLMSettings struct {
	Provider LLMProvider `json:"provider"`
	Model    string      `json:"model"`
	BaseURL  string      `json:"base_url"`
	APIKey   string      `json:"-"`
}

// IngestSettings configures chunking and the encode pool.
type IngestSettings struct {
	ChunkMaxChars   int `json:"chunk_max_chars"`
	BatchSize       int `json:"batch_size"`
	ImportBatchSize int `json:"import_batch_size"`
	Concurrency     int `json:"concurrency"`
}

// SearchSettings configures retrieval.
type SearchSettings struct {
	TopK int `json:"top_k"`
}

// ScrapboxSettings configures page URLs and the remote crawl.
type ScrapboxSettings struct {
	BaseURL    string  `json:"base_url"`
	Project    string  `json:"project,omitempty"`
	ConnectSID string  `json:"-"`
	RateLimit  float64 `json:"rate_limit"`
}

// HTTPSettings configures the API server.
type HTTPSettings struct {
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`
}

// DefaultAppSettings returns the built-in defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Store: StoreElasticsearch,
		Elasticsearch: ElasticsearchSettings{
			Host:       "http://localhost:9200",
			Index:      "scrapbox-rag",
			MaxClauses: 1024,
		},
		Encoder: EncoderSettings{
			URL:            "http://localhost:8001/encode",
			TimeoutSeconds: 30,
		},
		LLM: LLMSettings{
			Provider: LLMOllama,
			Model:    "gemma3:4b",
			BaseURL:  "http://localhost:11434",
		},
		Ingest: IngestSettings{
			ChunkMaxChars:   500,
			BatchSize:       10,
			ImportBatchSize: 20,
			Concurrency:     5,
		},
		Search: SearchSettings{TopK: 5},
		Scrapbox: ScrapboxSettings{
			BaseURL:   "https://scrapbox.io",
			RateLimit: 2,
		},
		HTTP: HTTPSettings{
			Addr:        ":8000",
			CORSOrigins: []string{"*"},
		},
	}
}

// Validate checks that the settings can drive the pipeline.
func (s *AppSettings) Validate() error {
	if !s.Store.IsValid() {
		return fmt.Errorf("%w: unknown store %q", ErrInvalidInput, s.Store)
	}
	if !s.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidInput, s.LLM.Provider)
	}
	if s.LLM.Provider == LLMOpenAI && s.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm provider openai requires an API key", ErrInvalidInput)
	}
	positive := map[string]int{
		"ingest.chunk_max_chars":   s.Ingest.ChunkMaxChars,
		"ingest.batch_size":        s.Ingest.BatchSize,
		"ingest.import_batch_size": s.Ingest.ImportBatchSize,
		"ingest.concurrency":       s.Ingest.Concurrency,
		"search.top_k":             s.Search.TopK,
		"es.max_clauses":           s.Elasticsearch.MaxClauses,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidInput, key, v)
		}
	}
	return nil
}
