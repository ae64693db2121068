package driving

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// ImportResult reports the outcome of a chunk import.
type ImportResult struct {
	// Added is the number of chunks written to the store.
	Added int

	// Embedded is the number of chunks that arrived without an embedding
	// and were embedded during import.
	Embedded int
}

// CollectionStats summarises the stored chunk collection.
type CollectionStats struct {
	Chunks     int
	Documents  int
	Embedded   int
	Dimensions int
	Themed     int
}

// ChunkService feeds externally produced chunks into the collection.
type ChunkService interface {
	// Import embeds chunks lacking a vector and writes them all to the store.
	Import(ctx context.Context, chunks []domain.Chunk, progress domain.ProgressFunc) (*ImportResult, error)

	// Stats summarises the collection.
	Stats(ctx context.Context) (*CollectionStats, error)
}
