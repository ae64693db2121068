package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure VectorStore implements the interfaces.
var (
	_ driven.VectorStore   = (*VectorStore)(nil)
	_ driven.ChunkWriter   = (*VectorStore)(nil)
	_ driven.ThemeAssigner = (*VectorStore)(nil)
)

// VectorStore is an in-memory chunk collection with brute-force cosine search.
type VectorStore struct {
	mu     sync.RWMutex
	order  []string
	chunks map[string]domain.Chunk
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		chunks: make(map[string]domain.Chunk),
	}
}

// AddChunks inserts or replaces chunks by ID. New chunks keep insertion order.
func (s *VectorStore) AddChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if _, exists := s.chunks[c.ID]; !exists {
			s.order = append(s.order, c.ID)
		}
		s.chunks[c.ID] = c
	}
	return nil
}

// Count returns the number of chunks.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// AllChunks returns every chunk in insertion order.
func (s *VectorStore) AllChunks(_ context.Context) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chunk, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.chunks[id])
	}
	return out, nil
}

// GetByID retrieves a chunk by ID.
func (s *VectorStore) GetByID(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// Search returns the k nearest chunks by cosine distance.
func (s *VectorStore) Search(
	ctx context.Context, query []float32, k int, filters domain.SearchFilters,
) ([]domain.RetrievedChunk, error) {
	all, err := s.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	return vecmath.TopK(all, query, k, filters), nil
}

// AssignThemes sets each chunk's theme, clearing it for chunks not in the map.
func (s *VectorStore) AssignThemes(_ context.Context, chunkToTheme map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		c.ThemeID = chunkToTheme[id]
		s.chunks[id] = c
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *VectorStore) Close() error {
	return nil
}
