package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// Ensure ChunkService implements the interface.
var _ driving.ChunkService = (*ChunkService)(nil)

// importEmbedBatch is how many texts are sent per EmbedBatch call.
const importEmbedBatch = 64

// ChunkService writes chunks into the vector store.
type ChunkService struct {
	store    driven.VectorStore
	writer   driven.ChunkWriter
	embedder driven.EmbeddingService
}

// NewChunkService creates a chunk service. writer is usually the same
// value as store. embedder may be nil when every imported chunk carries
// its own embedding.
func NewChunkService(
	store driven.VectorStore,
	writer driven.ChunkWriter,
	embedder driven.EmbeddingService,
) *ChunkService {
	return &ChunkService{store: store, writer: writer, embedder: embedder}
}

// Import validates chunks, embeds those without a vector and stores them.
// Missing embeddings are filled in place. Nothing is written if any chunk
// is invalid or embedding fails.
func (s *ChunkService) Import(
	ctx context.Context, chunks []domain.Chunk, progress domain.ProgressFunc,
) (*driving.ImportResult, error) {
	if s.writer == nil {
		return nil, fmt.Errorf("import: %w: store is read-only", domain.ErrVectorStoreUnavailable)
	}
	if len(chunks) == 0 {
		return &driving.ImportResult{}, nil
	}

	pending := make([]int, 0)
	dims := 0
	for i := range chunks {
		c := &chunks[i]
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("import: chunk %d: %w: missing id", i+1, domain.ErrInvalidInput)
		}
		if strings.TrimSpace(c.Content) == "" {
			return nil, fmt.Errorf("import: chunk %s: %w: empty content", c.ID, domain.ErrInvalidInput)
		}
		if !c.HasEmbedding() {
			pending = append(pending, i)
			continue
		}
		if dims == 0 {
			dims = len(c.Embedding)
		} else if len(c.Embedding) != dims {
			return nil, fmt.Errorf("import: chunk %s: %w: embedding has %d dimensions, expected %d",
				c.ID, domain.ErrInvalidInput, len(c.Embedding), dims)
		}
	}

	if len(pending) > 0 {
		if s.embedder == nil {
			return nil, fmt.Errorf("import: %d chunks need embeddings: %w", len(pending), domain.ErrEmbeddingUnavailable)
		}
		if err := s.embedPending(ctx, chunks, pending, progress); err != nil {
			return nil, err
		}
	}

	if err := s.writer.AddChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("import: %w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	logger.Info("Imported %d chunks (%d embedded)", len(chunks), len(pending))
	progress.Report(domain.StageDone, 100, fmt.Sprintf("imported %d chunks", len(chunks)))

	return &driving.ImportResult{Added: len(chunks), Embedded: len(pending)}, nil
}

func (s *ChunkService) embedPending(
	ctx context.Context, chunks []domain.Chunk, pending []int, progress domain.ProgressFunc,
) error {
	for start := 0; start < len(pending); start += importEmbedBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+importEmbedBatch, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, idx := range batch {
			texts[i] = chunks[idx].Content
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("import: %w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("import: %w: got %d embeddings for %d texts",
				domain.ErrEmbeddingUnavailable, len(vectors), len(batch))
		}
		for i, idx := range batch {
			chunks[idx].Embedding = vectors[i]
		}

		logger.Debug("Embedded %d/%d chunks", end, len(pending))
		progress.Report(domain.StageBatch, float64(end)/float64(len(pending))*100,
			fmt.Sprintf("embedded %d/%d chunks", end, len(pending)))
	}
	return nil
}

// Stats counts chunks, documents, embedded chunks and theme assignments.
func (s *ChunkService) Stats(ctx context.Context) (*driving.CollectionStats, error) {
	chunks, err := s.store.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w: %w", domain.ErrVectorStoreUnavailable, err)
	}

	stats := &driving.CollectionStats{Chunks: len(chunks)}
	docs := make(map[string]struct{})
	for i := range chunks {
		docs[chunks[i].DocumentID] = struct{}{}
		if chunks[i].HasEmbedding() {
			stats.Embedded++
			if stats.Dimensions == 0 {
				stats.Dimensions = len(chunks[i].Embedding)
			}
		}
		if chunks[i].ThemeID != "" {
			stats.Themed++
		}
	}
	stats.Documents = len(docs)
	return stats, nil
}
