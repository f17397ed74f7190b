package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStore              = "store"
	keyESHost             = "es.host"
	keyESUser             = "es.user"
	keyESPassword         = "es.password"
	keyESIndex            = "es.index"
	keyESMaxClauses       = "es.max_clauses"
	keyEncoderURL         = "encoder.url"
	keyEncoderTimeout     = "encoder.timeout_seconds"
	keyEncoderRateLimit   = "encoder.rate_limit"
	keyLLMProvider        = "llm.provider"
	keyLLMModel           = "llm.model"
	keyLLMBaseURL         = "llm.base_url"
	keyLLMAPIKey          = "llm.api_key"
	keyChunkMaxChars      = "ingest.chunk_max_chars"
	keyBatchSize          = "ingest.batch_size"
	keyImportBatchSize    = "ingest.import_batch_size"
	keyConcurrency        = "ingest.concurrency"
	keyTopK               = "search.top_k"
	keyScrapboxBaseURL    = "scrapbox.base_url"
	keyScrapboxProject    = "scrapbox.project"
	keyScrapboxConnectSID = "scrapbox.connect_sid"
	keyScrapboxRateLimit  = "scrapbox.rate_limit"
	keyHTTPAddr           = "http.addr"
	keyHTTPCORSOrigins    = "http.cors_origins"
	keyLogVerbose         = "log.verbose"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindBool
	kindStrings
)

var settingKeys = map[string]keyKind{
	keyStore:              kindString,
	keyESHost:             kindString,
	keyESUser:             kindString,
	keyESPassword:         kindString,
	keyESIndex:            kindString,
	keyESMaxClauses:       kindInt,
	keyEncoderURL:         kindString,
	keyEncoderTimeout:     kindInt,
	keyEncoderRateLimit:   kindFloat,
	keyLLMProvider:        kindString,
	keyLLMModel:           kindString,
	keyLLMBaseURL:         kindString,
	keyLLMAPIKey:          kindString,
	keyChunkMaxChars:      kindInt,
	keyBatchSize:          kindInt,
	keyImportBatchSize:    kindInt,
	keyConcurrency:        kindInt,
	keyTopK:               kindInt,
	keyScrapboxBaseURL:    kindString,
	keyScrapboxProject:    kindString,
	keyScrapboxConnectSID: kindString,
	keyScrapboxRateLimit:  kindFloat,
	keyHTTPAddr:           kindString,
	keyHTTPCORSOrigins:    kindStrings,
	keyLogVerbose:         kindBool,
}

// Environment variables that override file values.
//
//nolint:gosec // G101: These are variable names, not credentials.
var envOverrides = []struct {
	name  string
	apply func(s *domain.AppSettings, v string)
}{
	{"ES_HOST", func(s *domain.AppSettings, v string) { s.Elasticsearch.Host = v }},
	{"ES_USER", func(s *domain.AppSettings, v string) { s.Elasticsearch.User = v }},
	{"ES_PASSWORD", func(s *domain.AppSettings, v string) { s.Elasticsearch.Password = v }},
	{"ES_INDEX", func(s *domain.AppSettings, v string) { s.Elasticsearch.Index = v }},
	{"SPLADE_API_URL", func(s *domain.AppSettings, v string) { s.Encoder.URL = v }},
	{"LLM_MODEL", func(s *domain.AppSettings, v string) { s.LLM.Model = v }},
	{"OLLAMA_BASE_URL", func(s *domain.AppSettings, v string) {
		if s.LLM.Provider == domain.LLMOllama {
			s.LLM.BaseURL = v
		}
	}},
	{"OPENAI_API_KEY", func(s *domain.AppSettings, v string) { s.LLM.APIKey = v }},
	{"SCRAPBOX_PROJECT", func(s *domain.AppSettings, v string) { s.Scrapbox.Project = v }},
	{"SCRAPBOX_COOKIE_CONNECT_SID", func(s *domain.AppSettings, v string) { s.Scrapbox.ConnectSID = v }},
}

// SettingsService resolves application settings from the config store and
// the environment.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service reading the process
// environment.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// Get returns the effective settings. Missing or mistyped file values fall
// back to defaults; non-empty environment variables win over the file.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Store: s.getStore(d.Store),
		Elasticsearch: domain.ElasticsearchSettings{
			Host:       s.getString(keyESHost, d.Elasticsearch.Host),
			User:       s.configStore.GetString(keyESUser),
			Password:   s.configStore.GetString(keyESPassword),
			Index:      s.getString(keyESIndex, d.Elasticsearch.Index),
			MaxClauses: s.getInt(keyESMaxClauses, d.Elasticsearch.MaxClauses),
		},
		Encoder: domain.EncoderSettings{
			URL:            s.getString(keyEncoderURL, d.Encoder.URL),
			TimeoutSeconds: s.getInt(keyEncoderTimeout, d.Encoder.TimeoutSeconds),
			RateLimit:      s.getFloat(keyEncoderRateLimit, d.Encoder.RateLimit),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(d.LLM.Provider),
			Model:    s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Ingest: domain.IngestSettings{
			ChunkMaxChars:   s.getInt(keyChunkMaxChars, d.Ingest.ChunkMaxChars),
			BatchSize:       s.getInt(keyBatchSize, d.Ingest.BatchSize),
			ImportBatchSize: s.getInt(keyImportBatchSize, d.Ingest.ImportBatchSize),
			Concurrency:     s.getInt(keyConcurrency, d.Ingest.Concurrency),
		},
		Search: domain.SearchSettings{
			TopK: s.getInt(keyTopK, d.Search.TopK),
		},
		Scrapbox: domain.ScrapboxSettings{
			BaseURL:    s.getString(keyScrapboxBaseURL, d.Scrapbox.BaseURL),
			Project:    s.configStore.GetString(keyScrapboxProject),
			ConnectSID: s.configStore.GetString(keyScrapboxConnectSID),
			RateLimit:  s.getFloat(keyScrapboxRateLimit, d.Scrapbox.RateLimit),
		},
		HTTP: domain.HTTPSettings{
			Addr:        s.getString(keyHTTPAddr, d.HTTP.Addr),
			CORSOrigins: s.getStrings(keyHTTPCORSOrigins, d.HTTP.CORSOrigins),
		},
		Verbose: s.configStore.GetBool(keyLogVerbose),
	}

	// The base URL default depends on the provider.
	if settings.LLM.BaseURL == "" && settings.LLM.Provider == domain.LLMOllama {
		settings.LLM.BaseURL = d.LLM.BaseURL
	}

	for _, o := range envOverrides {
		if v, ok := s.lookupEnv(o.name); ok && v != "" {
			o.apply(settings, v)
		}
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case kindString:
		parsed = value
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer: %v", domain.ErrInvalidInput, key, err)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number: %v", domain.ErrInvalidInput, key, err)
		}
		parsed = f
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false: %v", domain.ErrInvalidInput, key, err)
		}
		parsed = b
	case kindStrings:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		parsed = items
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys lists the config keys Set accepts, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getStrings(key string, defaultVal []string) []string {
	val := s.configStore.GetStringSlice(key)
	if len(val) == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getStore(defaultVal domain.StoreBackend) domain.StoreBackend {
	b := domain.StoreBackend(s.configStore.GetString(keyStore))
	if !b.IsValid() {
		return defaultVal
	}
	return b
}

func (s *SettingsService) getProvider(defaultVal domain.LLMProvider) domain.LLMProvider {
	p := domain.LLMProvider(s.configStore.GetString(keyLLMProvider))
	if !p.IsValid() {
		return defaultVal
	}
	return p
}
