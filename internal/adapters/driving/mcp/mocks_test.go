package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result   *domain.QueryResult
	err      error
	question string
	opts     driving.QueryOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, _ string, _ int, _ domain.SearchFilters,
) ([]domain.RetrievedChunk, error) {
	return nil, m.err
}

func (m *mockRetrievalService) BuildContext(_ []domain.RetrievedChunk, _ bool) string {
	return ""
}

func (m *mockRetrievalService) Generate(_ context.Context, _, _ string, _ float64) (string, error) {
	return "", m.err
}

func (m *mockRetrievalService) GenerateStream(
	_ context.Context, _, _ string, _ float64, _ func(string) error,
) error {
	return m.err
}

func (m *mockRetrievalService) Query(
	_ context.Context, question string, opts driving.QueryOptions,
) (*domain.QueryResult, error) {
	m.question = question
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.QueryResult{}, nil
	}
	return m.result, nil
}

// mockCollectionService is a mock implementation of driving.CollectionService.
type mockCollectionService struct {
	themes       []domain.Theme
	err          error
	discoverOpts driving.DiscoverOptions
}

func (m *mockCollectionService) Discover(_ context.Context, opts driving.DiscoverOptions) ([]domain.Theme, error) {
	m.discoverOpts = opts
	return m.themes, m.err
}

func (m *mockCollectionService) Themes(_ context.Context) ([]domain.Theme, error) {
	return m.themes, m.err
}

func (m *mockCollectionService) Refine(_ context.Context, _ string, _, _ *string) (*domain.Theme, error) {
	return nil, m.err
}

func (m *mockCollectionService) Merge(_ context.Context, _ []string, _ string) (*domain.Theme, error) {
	return nil, m.err
}

func (m *mockCollectionService) Publish(_ context.Context) error {
	return m.err
}

// mockCacheService is a mock implementation of driving.CacheService.
type mockCacheService struct {
	cache  *domain.SynthesisCache
	result *driving.SynthesizeResult
	valid  bool
	err    error
	req    driving.SynthesizeRequest
}

func (m *mockCacheService) IsCacheValid(_ *domain.SynthesisCache, _ domain.SynthesisConfig, _ []string) bool {
	return m.valid
}

func (m *mockCacheService) ExportFromCache(
	_ context.Context, _ domain.SynthesisCache, _ domain.SynthesisConfig, _ string,
) ([]string, error) {
	return nil, m.err
}

func (m *mockCacheService) Status(_ context.Context) (*domain.SynthesisCache, error) {
	return m.cache, m.err
}

func (m *mockCacheService) Synthesize(_ context.Context, req driving.SynthesizeRequest) (*driving.SynthesizeResult, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings domain.AppSettings
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return nil }

func (m *mockSettingsService) SetEmbeddingProvider(_ domain.AIProvider, _, _ string) error {
	return nil
}

func (m *mockSettingsService) SetLLMProvider(_ domain.AIProvider, _, _ string) error { return nil }

func (m *mockSettingsService) SetStorageBackend(_ domain.StorageBackend, _ string) error {
	return nil
}

func (m *mockSettingsService) SetValue(_, _ string) error { return nil }
func (m *mockSettingsService) Keys() []string             { return nil }
func (m *mockSettingsService) Validate() error            { return nil }

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error       { return nil }
