package driven

// ConfigStore holds persisted settings as flat dot keys ("es.host",
// "ingest.batch_size"). Typed getters return the zero value when a key is
// missing or holds another type; SettingsService applies the defaults.
type ConfigStore interface {
	// Get returns the raw value and whether the key is present.
	Get(key string) (any, bool)

	GetString(key string) string

	// GetInt truncates floating-point values.
	GetInt(key string) int

	// GetFloat accepts integers too.
	GetFloat(key string) float64

	GetBool(key string) bool

	GetStringSlice(key string) []string

	// Set stores one value and persists it immediately.
	Set(key string, value any) error

	Save() error

	// Load replaces in-memory values with the persisted ones.
	Load() error

	// Path is the backing file, ":memory:" for the in-memory store.
	Path() string
}
