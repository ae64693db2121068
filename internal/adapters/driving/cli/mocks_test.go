package cli

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

// mockChunkService implements driving.ChunkService.
type mockChunkService struct {
	imported []domain.Chunk
	result   *driving.ImportResult
	stats    *driving.CollectionStats
	err      error
}

func (m *mockChunkService) Import(
	_ context.Context, chunks []domain.Chunk, progress domain.ProgressFunc,
) (*driving.ImportResult, error) {
	m.imported = chunks
	progress.Report(domain.StageDone, 100, "imported")
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &driving.ImportResult{Added: len(chunks)}, nil
}

func (m *mockChunkService) Stats(_ context.Context) (*driving.CollectionStats, error) {
	return m.stats, m.err
}

// mockRetrievalService implements driving.RetrievalService.
type mockRetrievalService struct {
	result    *domain.QueryResult
	fragments []string
	err       error
	opts      driving.QueryOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, _ string, _ int, _ domain.SearchFilters,
) ([]domain.RetrievedChunk, error) {
	return nil, m.err
}

func (m *mockRetrievalService) BuildContext(_ []domain.RetrievedChunk, _ bool) string { return "" }

func (m *mockRetrievalService) Generate(_ context.Context, _, _ string, _ float64) (string, error) {
	return "", m.err
}

func (m *mockRetrievalService) GenerateStream(
	_ context.Context, _, _ string, _ float64, _ func(string) error,
) error {
	return m.err
}

func (m *mockRetrievalService) Query(
	_ context.Context, _ string, opts driving.QueryOptions,
) (*domain.QueryResult, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	if opts.OnFragment != nil {
		for _, f := range m.fragments {
			if err := opts.OnFragment(f); err != nil {
				return nil, err
			}
		}
	}
	return m.result, nil
}

// mockCollectionService implements driving.CollectionService.
type mockCollectionService struct {
	themes       []domain.Theme
	err          error
	discoverOpts driving.DiscoverOptions
	refineLabel  *string
	refineDesc   *string
	mergeIDs     []string
	mergeLabel   string
	published    bool
}

func (m *mockCollectionService) Discover(_ context.Context, opts driving.DiscoverOptions) ([]domain.Theme, error) {
	m.discoverOpts = opts
	return m.themes, m.err
}

func (m *mockCollectionService) Themes(_ context.Context) ([]domain.Theme, error) {
	return m.themes, m.err
}

func (m *mockCollectionService) Refine(
	_ context.Context, id string, newLabel, newDescription *string,
) (*domain.Theme, error) {
	m.refineLabel = newLabel
	m.refineDesc = newDescription
	if m.err != nil {
		return nil, m.err
	}
	theme := domain.Theme{ID: id, Label: "unchanged"}
	if newLabel != nil {
		theme.Label = *newLabel
	}
	return &theme, nil
}

func (m *mockCollectionService) Merge(_ context.Context, ids []string, newLabel string) (*domain.Theme, error) {
	m.mergeIDs = ids
	m.mergeLabel = newLabel
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Theme{ID: "merged-theme-id", Label: newLabel, ChunkIDs: []string{"a", "b", "c"}}, nil
}

func (m *mockCollectionService) Publish(_ context.Context) error {
	m.published = true
	return m.err
}

// mockCacheService implements driving.CacheService.
type mockCacheService struct {
	cache  *domain.SynthesisCache
	result *driving.SynthesizeResult
	err    error
	req    driving.SynthesizeRequest
}

func (m *mockCacheService) IsCacheValid(_ *domain.SynthesisCache, _ domain.SynthesisConfig, _ []string) bool {
	return false
}

func (m *mockCacheService) ExportFromCache(
	_ context.Context, _ domain.SynthesisCache, _ domain.SynthesisConfig, _ string,
) ([]string, error) {
	return nil, m.err
}

func (m *mockCacheService) Status(_ context.Context) (*domain.SynthesisCache, error) {
	return m.cache, m.err
}

func (m *mockCacheService) Synthesize(
	_ context.Context, req driving.SynthesizeRequest,
) (*driving.SynthesizeResult, error) {
	m.req = req
	return m.result, m.err
}

// mockSettingsService implements driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error
	setKey      string
	setValue    string
	setErr      error
	embedding   domain.AIProvider
	llm         domain.AIProvider
	backend     domain.StorageBackend
}

func newMockSettings() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, _, _ string) error {
	m.embedding = provider
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, _, _ string) error {
	m.llm = provider
	return nil
}

func (m *mockSettingsService) SetStorageBackend(backend domain.StorageBackend, _ string) error {
	m.backend = backend
	return nil
}

func (m *mockSettingsService) SetValue(key, value string) error {
	m.setKey = key
	m.setValue = value
	return m.setErr
}

func (m *mockSettingsService) Keys() []string {
	return []string{"llm.model", "llm.provider"}
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.pingErr }
func (m *mockSettingsService) ValidateLLMConfig() error       { return m.pingErr }
