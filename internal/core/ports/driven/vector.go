package driven

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// VectorStore is read access to an embedded chunk collection.
// The core only reads; chunk insertion goes through ChunkWriter.
type VectorStore interface {
	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int, error)

	// AllChunks returns every chunk, with embeddings, in insertion order.
	AllChunks(ctx context.Context) ([]domain.Chunk, error)

	// GetByID returns a single chunk. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.Chunk, error)

	// Search returns up to k chunks nearest to query, closest first.
	Search(ctx context.Context, query []float32, k int, filters domain.SearchFilters) ([]domain.RetrievedChunk, error)

	// Close releases resources.
	Close() error
}

// ChunkWriter is implemented by stores that accept new chunks.
type ChunkWriter interface {
	// AddChunks inserts or replaces chunks by ID.
	AddChunks(ctx context.Context, chunks []domain.Chunk) error
}

// ThemeAssigner is implemented by stores that record each chunk's theme.
type ThemeAssigner interface {
	// AssignThemes sets ThemeID for the given chunk IDs and clears it for all others.
	AssignThemes(ctx context.Context, chunkToTheme map[string]string) error
}
