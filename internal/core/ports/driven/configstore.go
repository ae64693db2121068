package driven

// ConfigStore is flat key/value access to persisted settings. Keys are
// dot-separated ("llm.model"); how they nest on disk is up to the store.
type ConfigStore interface {
	// Get returns the raw value and whether the key exists.
	Get(key string) (any, bool)

	// GetString returns "" when the key is missing or not a string.
	GetString(key string) string

	// GetInt returns 0 when the key is missing or not numeric.
	GetInt(key string) int

	// GetFloat returns the value as float64. ok is false when the key is
	// missing or not numeric, so an explicit 0 can be told from unset.
	GetFloat(key string) (value float64, ok bool)

	// GetStringSlice returns nil when the key is missing or not a list.
	GetStringSlice(key string) []string

	// Set stores a value and persists it immediately.
	Set(key string, value any) error

	// Save persists the current values.
	Save() error

	// Load re-reads values from storage.
	Load() error

	// Path identifies where values are stored.
	Path() string
}
