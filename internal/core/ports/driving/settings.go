package driving

import "github.com/custodia-labs/scrapbox-rag/internal/core/domain"

// SettingsService resolves and persists application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, then the config file,
	// then environment variables.
	Get() (*domain.AppSettings, error)

	// Set persists one config key, validating the key and value type.
	Set(key, value string) error

	// Keys lists the config keys Set accepts.
	Keys() []string
}
