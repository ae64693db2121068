// Package pgvector provides a PostgreSQL chunk store using the pgvector extension.
//
// Chunks live in a single table with an unconstrained vector column, so one
// database can hold collections embedded at any dimension. Nearest-neighbour
// search uses the cosine distance operator <=>.
package pgvector

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.VectorStore   = (*Store)(nil)
	_ driven.ChunkWriter   = (*Store)(nil)
	_ driven.ThemeAssigner = (*Store)(nil)
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS synth_chunks (
    seq         BIGSERIAL,
    id          TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    content     TEXT NOT NULL,
    page        INTEGER NOT NULL DEFAULT 0,
    chunk_index INTEGER NOT NULL DEFAULT 0,
    start_char  INTEGER NOT NULL DEFAULT 0,
    end_char    INTEGER NOT NULL DEFAULT 0,
    token_count INTEGER NOT NULL DEFAULT 0,
    embedding   vector,
    theme_id    TEXT
);

CREATE INDEX IF NOT EXISTS idx_synth_chunks_document ON synth_chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_synth_chunks_theme ON synth_chunks(theme_id);
`

const chunkColumns = `id, document_id, content, page, chunk_index, start_char, end_char,
	token_count, embedding, theme_id`

// Store is a pgvector-backed chunk store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pgvector: connection URL is required: %w", domain.ErrInvalidInput)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// vectorParam returns a query parameter for an embedding, NULL when empty.
func vectorParam(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// AddChunks inserts or replaces chunks by ID in one batch.
func (s *Store) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO synth_chunks (`+chunkColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				content = EXCLUDED.content,
				page = EXCLUDED.page,
				chunk_index = EXCLUDED.chunk_index,
				start_char = EXCLUDED.start_char,
				end_char = EXCLUDED.end_char,
				token_count = EXCLUDED.token_count,
				embedding = EXCLUDED.embedding,
				theme_id = EXCLUDED.theme_id
		`, c.ID, c.DocumentID, c.Content, c.Page, c.Index, c.StartChar, c.EndChar,
			c.TokenCount, vectorParam(c.Embedding), nullable(c.ThemeID))
	}

	results := s.pool.SendBatch(ctx, batch)
	for _, c := range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM synth_chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// AllChunks returns every chunk in insertion order.
func (s *Store) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+chunkColumns+" FROM synth_chunks ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetByID retrieves a chunk by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+chunkColumns+" FROM synth_chunks WHERE id = $1", id)
	c, err := scanChunk(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// Search returns the k chunks nearest to query by cosine distance.
func (s *Store) Search(
	ctx context.Context, query []float32, k int, filters domain.SearchFilters,
) ([]domain.RetrievedChunk, error) {
	if k <= 0 || len(query) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	args := []any{pgvector.NewVector(query), k}
	where := "embedding IS NOT NULL AND vector_dims(embedding) = $3"
	args = append(args, len(query))
	if filters.ThemeID != "" {
		args = append(args, filters.ThemeID)
		where += fmt.Sprintf(" AND theme_id = $%d", len(args))
	}
	if len(filters.DocumentIDs) > 0 {
		args = append(args, filters.DocumentIDs)
		where += fmt.Sprintf(" AND document_id = ANY($%d)", len(args))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+chunkColumns+`, (embedding <=> $1::vector) AS distance
		FROM synth_chunks
		WHERE `+where+`
		ORDER BY embedding <=> $1::vector, seq
		LIMIT $2
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := []domain.RetrievedChunk{}
	for rows.Next() {
		var (
			c        domain.Chunk
			emb      *pgvector.Vector
			themeID  *string
			distance float64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Page, &c.Index, &c.StartChar,
			&c.EndChar, &c.TokenCount, &emb, &themeID, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		fill(&c, emb, themeID)
		results = append(results, domain.RetrievedChunk{Chunk: c, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating similar chunks: %w", err)
	}
	return results, nil
}

// AssignThemes sets each chunk's theme, clearing it for chunks not in the map.
func (s *Store) AssignThemes(ctx context.Context, chunkToTheme map[string]string) error {
	ids := make([]string, 0, len(chunkToTheme))
	themes := make([]string, 0, len(chunkToTheme))
	for id, theme := range chunkToTheme {
		ids = append(ids, id)
		themes = append(themes, theme)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "UPDATE synth_chunks SET theme_id = NULL WHERE theme_id IS NOT NULL"); err != nil {
			return fmt.Errorf("clearing themes: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE synth_chunks AS c SET theme_id = NULLIF(a.theme_id, '')
			FROM unnest($1::text[], $2::text[]) AS a(chunk_id, theme_id)
			WHERE c.id = a.chunk_id
		`, ids, themes)
		if err != nil {
			return fmt.Errorf("assigning themes: %w", err)
		}
		return nil
	})
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fill(c *domain.Chunk, emb *pgvector.Vector, themeID *string) {
	if emb != nil {
		c.Embedding = emb.Slice()
	}
	if themeID != nil {
		c.ThemeID = *themeID
	}
}

func scanChunk(row pgx.Row) (*domain.Chunk, error) {
	var (
		c       domain.Chunk
		emb     *pgvector.Vector
		themeID *string
	)
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Page, &c.Index, &c.StartChar,
		&c.EndChar, &c.TokenCount, &emb, &themeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	fill(&c, emb, themeID)
	return &c, nil
}
