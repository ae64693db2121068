package services

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMRate           = "llm.requests_per_second"
	keyStorageBackend    = "storage.backend"
	keyStoragePostgres   = "storage.postgres_url"
	keyGraphURI          = "graph.uri"
	keyGraphUser         = "graph.username"
	keyGraphPassword     = "graph.password"
	keyMaxThemes         = "discovery.max_themes"
	keyMinClusterSize    = "discovery.min_cluster_size"
	keySeed              = "discovery.seed"
	keySynthLevel        = "synthesis.level"
	keySynthChunks       = "synthesis.chunks_per_chapter"
	keySynthFormats      = "synthesis.formats"
	keySynthAuthor       = "synthesis.author"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// Environment variables that take precedence over stored values.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvPostgresURL  = "SERCHA_SYNTH_PG_URL"
	EnvNeo4jURI     = "SERCHA_SYNTH_NEO4J_URI"
	EnvNeo4jUser    = "SERCHA_SYNTH_NEO4J_USER"
	EnvNeo4jPass    = "SERCHA_SYNTH_NEO4J_PASSWORD"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves current application settings, with environment overrides applied.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:             s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			RequestsPerSecond: s.getFloat(keyLLMRate, defaults.LLM.RequestsPerSecond),
		},
		Storage: domain.StorageSettings{
			Backend:     s.getBackend(defaults.Storage.Backend),
			PostgresURL: s.configStore.GetString(keyStoragePostgres),
		},
		Graph: domain.GraphSettings{
			URI:      s.configStore.GetString(keyGraphURI),
			Username: s.configStore.GetString(keyGraphUser),
			Password: s.configStore.GetString(keyGraphPassword),
		},
		Discovery: domain.DiscoverySettings{
			MaxThemes:      s.getInt(keyMaxThemes, defaults.Discovery.MaxThemes),
			MinClusterSize: s.getInt(keyMinClusterSize, defaults.Discovery.MinClusterSize),
			Seed:           uint64(s.getInt(keySeed, int(defaults.Discovery.Seed))), //nolint:gosec // seed is non-negative
		},
		Synthesis: domain.SynthesisConfig{
			Level:            s.getLevel(defaults.Synthesis.Level),
			ChunksPerChapter: s.getInt(keySynthChunks, defaults.Synthesis.ChunksPerChapter),
			OutputFormats:    s.getFormats(defaults.Synthesis.OutputFormats),
			Author:           s.configStore.GetString(keySynthAuthor),
		},
	}

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv overlays API keys and connection strings from the environment.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	keyFor := map[domain.AIProvider]string{
		domain.AIProviderOpenAI:    EnvOpenAIKey,
		domain.AIProviderAnthropic: EnvAnthropicKey,
		domain.AIProviderGemini:    EnvGeminiKey,
	}
	if env, ok := keyFor[settings.LLM.Provider]; ok {
		if v, ok := s.lookupEnv(env); ok && v != "" {
			settings.LLM.APIKey = v
		}
	}
	if env, ok := keyFor[settings.Embedding.Provider]; ok {
		if v, ok := s.lookupEnv(env); ok && v != "" {
			settings.Embedding.APIKey = v
		}
	}
	if v, ok := s.lookupEnv(EnvPostgresURL); ok && v != "" {
		settings.Storage.PostgresURL = v
	}
	if v, ok := s.lookupEnv(EnvNeo4jURI); ok && v != "" {
		settings.Graph.URI = v
	}
	if v, ok := s.lookupEnv(EnvNeo4jUser); ok && v != "" {
		settings.Graph.Username = v
	}
	if v, ok := s.lookupEnv(EnvNeo4jPass); ok && v != "" {
		settings.Graph.Password = v
	}
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMRate, settings.LLM.RequestsPerSecond},
		{keyStorageBackend, settings.Storage.Backend.String()},
		{keyStoragePostgres, settings.Storage.PostgresURL},
		{keyGraphURI, settings.Graph.URI},
		{keyGraphUser, settings.Graph.Username},
		{keyMaxThemes, settings.Discovery.MaxThemes},
		{keyMinClusterSize, settings.Discovery.MinClusterSize},
		{keySeed, int(settings.Discovery.Seed)}, //nolint:gosec // seed fits in int
		{keySynthLevel, settings.Synthesis.Level.String()},
		{keySynthChunks, settings.Synthesis.ChunksPerChapter},
		{keySynthFormats, formatStrings(settings.Synthesis.OutputFormats)},
		{keySynthAuthor, settings.Synthesis.Author},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set, so an env-provided key is never persisted as empty.
	secrets := map[string]string{
		keyEmbedAPIKey:   settings.Embedding.APIKey,
		keyLLMAPIKey:     settings.LLM.APIKey,
		keyGraphPassword: settings.Graph.Password,
	}
	for key, v := range secrets {
		if v == "" {
			continue
		}
		if err := s.configStore.Set(key, v); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetStorageBackend selects the chunk store.
func (s *SettingsService) SetStorageBackend(backend domain.StorageBackend, postgresURL string) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid storage backend: %s", backend)
	}
	if backend == domain.StoragePGVector && postgresURL == "" {
		return fmt.Errorf("postgres URL required for %s", backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Storage.Backend = backend
	if postgresURL != "" {
		settings.Storage.PostgresURL = postgresURL
	}
	return s.Save(settings)
}

// Validate checks that discovery and synthesis can run with the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %q is not configured", settings.LLM.Provider)
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if settings.Storage.Backend == domain.StoragePGVector && settings.Storage.PostgresURL == "" {
		return fmt.Errorf("storage backend %q requires a postgres URL", settings.Storage.Backend)
	}
	if err := settings.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis settings: %w", err)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// settingKind is the value type stored under a settings key.
type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindList
)

// settableKeys lists the keys SetValue accepts.
var settableKeys = map[string]settingKind{
	keyEmbedProvider:   kindString,
	keyEmbedModel:      kindString,
	keyEmbedBaseURL:    kindString,
	keyEmbedAPIKey:     kindString,
	keyLLMProvider:     kindString,
	keyLLMModel:        kindString,
	keyLLMBaseURL:      kindString,
	keyLLMAPIKey:       kindString,
	keyLLMRate:         kindFloat,
	keyStorageBackend:  kindString,
	keyStoragePostgres: kindString,
	keyGraphURI:        kindString,
	keyGraphUser:       kindString,
	keyGraphPassword:   kindString,
	keyMaxThemes:       kindInt,
	keyMinClusterSize:  kindInt,
	keySeed:            kindInt,
	keySynthLevel:      kindString,
	keySynthChunks:     kindInt,
	keySynthFormats:    kindList,
	keySynthAuthor:     kindString,
}

// Keys returns the keys accepted by SetValue, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetValue parses raw according to the key's type and stores it.
// Lists are comma-separated.
func (s *SettingsService) SetValue(key, raw string) error {
	kind, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	raw = strings.TrimSpace(raw)

	var value any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		value = n
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		value = f
	case kindList:
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		value = items
	default:
		value = raw
	}

	if err := checkEnumValue(key, raw, value); err != nil {
		return err
	}
	return s.configStore.Set(key, value)
}

// checkEnumValue rejects values outside the fixed sets some keys allow.
func checkEnumValue(key, raw string, value any) error {
	valid := true
	switch key {
	case keyEmbedProvider:
		valid = slices.Contains(domain.AllEmbeddingProviders(), domain.AIProvider(raw))
	case keyLLMProvider:
		valid = domain.AIProvider(raw).IsValid()
	case keyStorageBackend:
		valid = domain.StorageBackend(raw).IsValid()
	case keySynthLevel:
		valid = domain.SynthesisLevel(raw).IsValid()
	case keySynthChunks:
		valid = value.(int) > 0
	case keySynthFormats:
		for _, f := range value.([]string) {
			if !domain.OutputFormat(f).IsValid() {
				return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, f)
			}
		}
	}
	if !valid {
		return fmt.Errorf("%w: invalid value %q for %s", domain.ErrInvalidInput, raw, key)
	}
	return nil
}

// Helper methods for reading config with defaults.

func modelOrDefault(model, def string) string {
	if model != "" {
		return model
	}
	return def
}

func baseURLFor(provider domain.AIProvider, current string) string {
	if !provider.IsLocal() {
		return ""
	}
	if current == "" {
		return defaultOllamaBaseURL
	}
	return current
}

func formatStrings(formats []domain.OutputFormat) []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = string(f)
	}
	return out
}

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
	if val, ok := s.configStore.GetFloat(key); ok {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	backend := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getLevel(defaultVal domain.SynthesisLevel) domain.SynthesisLevel {
	level := domain.SynthesisLevel(s.configStore.GetString(keySynthLevel))
	if !level.IsValid() {
		return defaultVal
	}
	return level
}

func (s *SettingsService) getFormats(defaultVal []domain.OutputFormat) []domain.OutputFormat {
	raw := s.configStore.GetStringSlice(keySynthFormats)
	if len(raw) == 0 {
		return defaultVal
	}
	formats := make([]domain.OutputFormat, 0, len(raw))
	for _, r := range raw {
		if f := domain.OutputFormat(r); f.IsValid() {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return defaultVal
	}
	return formats
}
