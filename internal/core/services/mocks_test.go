package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

// --- Mock implementations ---

// mockLLM implements driven.LLMService. respond decides the answer per prompt.
type mockLLM struct {
	mu      sync.Mutex
	respond func(prompt string, opts driven.GenerateOptions) (string, error)
	prompts []string
	opts    []driven.GenerateOptions
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	respond := m.respond
	m.mu.Unlock()
	if respond == nil {
		return "", errors.New("no response configured")
	}
	return respond(prompt, opts)
}

func (m *mockLLM) GenerateStream(
	ctx context.Context, prompt string, opts driven.GenerateOptions, onFragment func(string) error,
) error {
	resp, err := m.Generate(ctx, prompt, opts)
	if err != nil {
		return err
	}
	for _, word := range strings.SplitAfter(resp, " ") {
		if err := onFragment(word); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockLLM) ModelName() string            { return "mock" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// callsMatching counts prompts containing substr.
func (m *mockLLM) callsMatching(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

// promptsMatching returns prompts containing substr.
func (m *mockLLM) promptsMatching(substr string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.prompts {
		if strings.Contains(p, substr) {
			out = append(out, p)
		}
	}
	return out
}

// mockEmbedder implements driven.EmbeddingService.
type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	return m.vector, m.err
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return len(m.vector) }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// failingStore implements driven.VectorStore and fails every call.
type failingStore struct {
	err error
}

func (f *failingStore) Count(_ context.Context) (int, error) { return 0, f.err }
func (f *failingStore) AllChunks(_ context.Context) ([]domain.Chunk, error) {
	return nil, f.err
}
func (f *failingStore) GetByID(_ context.Context, _ string) (*domain.Chunk, error) {
	return nil, f.err
}
func (f *failingStore) Search(
	_ context.Context, _ []float32, _ int, _ domain.SearchFilters,
) ([]domain.RetrievedChunk, error) {
	return nil, f.err
}
func (f *failingStore) Close() error { return nil }

// mockExporter implements driven.Exporter and records requests.
type mockExporter struct {
	format   domain.OutputFormat
	requests []driven.ExportRequest
	err      error
}

func (m *mockExporter) Format() domain.OutputFormat { return m.format }

func (m *mockExporter) Export(_ context.Context, req driven.ExportRequest) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.requests = append(m.requests, req)
	return req.OutDir + "/book." + m.format.Extension(), nil
}

// mockSynthesis implements driving.SynthesisService with canned chapters.
type mockSynthesis struct {
	chapters []domain.Chapter
	err      error
	calls    int
	lastReq  driving.BookRequest
}

func (m *mockSynthesis) PlanChapters(
	_ context.Context, themes []domain.Theme, _, _ string,
) ([]domain.Theme, error) {
	return themes, nil
}

func (m *mockSynthesis) GenerateChapter(
	_ context.Context, _ driving.ChapterRequest, _ domain.ProgressFunc,
) (*domain.Chapter, error) {
	return nil, errors.New("not used")
}

func (m *mockSynthesis) GenerateBook(_ context.Context, req driving.BookRequest) ([]domain.Chapter, error) {
	m.calls++
	m.lastReq = req
	return m.chapters, m.err
}

// mockGraph implements driven.ThemeGraph.
type mockGraph struct {
	themes []domain.Theme
	chunks []domain.Chunk
	err    error
}

func (m *mockGraph) PublishThemes(_ context.Context, themes []domain.Theme, chunks []domain.Chunk) error {
	m.themes = themes
	m.chunks = chunks
	return m.err
}

func (m *mockGraph) Close(_ context.Context) error { return nil }

// mockPromptStore implements driven.PromptStore.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// --- Helpers ---

// newChunkStore returns a memory store holding chunks.
func newChunkStore(chunks ...domain.Chunk) *memory.VectorStore {
	store := memory.NewVectorStore()
	_ = store.AddChunks(context.Background(), chunks)
	return store
}

// words returns n space-separated words.
func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}
