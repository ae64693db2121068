package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interfaces.
var (
	_ driven.VectorStore   = (*ChunkStore)(nil)
	_ driven.ChunkWriter   = (*ChunkStore)(nil)
	_ driven.ThemeAssigner = (*ChunkStore)(nil)
)

const chunkColumns = `id, document_id, content, page, chunk_index, start_char, end_char,
	token_count, embedding, theme_id`

// ChunkStore persists embedded chunks in SQLite.
type ChunkStore struct {
	db *sql.DB
}

// AddChunks inserts or replaces chunks by ID. Replaced chunks keep their
// original position in insertion order.
func (s *ChunkStore) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			page = excluded.page,
			chunk_index = excluded.chunk_index,
			start_char = excluded.start_char,
			end_char = excluded.end_char,
			token_count = excluded.token_count,
			embedding = excluded.embedding,
			theme_id = excluded.theme_id
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Content, c.Page, c.Index,
			c.StartChar, c.EndChar, c.TokenCount, float32SliceToBytes(c.Embedding),
			nullString(c.ThemeID)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// AllChunks returns every chunk in insertion order.
func (s *ChunkStore) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	return s.query(ctx, "SELECT "+chunkColumns+" FROM chunks ORDER BY seq")
}

// GetByID retrieves a chunk by ID.
func (s *ChunkStore) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Search returns the k nearest chunks by cosine distance. Filters narrow
// the candidate rows in SQL before ranking.
func (s *ChunkStore) Search(
	ctx context.Context, query []float32, k int, filters domain.SearchFilters,
) ([]domain.RetrievedChunk, error) {
	var (
		where []string
		args  []any
	)
	if filters.ThemeID != "" {
		where = append(where, "theme_id = ?")
		args = append(args, filters.ThemeID)
	}
	if len(filters.DocumentIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filters.DocumentIDs)), ",")
		where = append(where, "document_id IN ("+placeholders+")")
		for _, id := range filters.DocumentIDs {
			args = append(args, id)
		}
	}

	q := "SELECT " + chunkColumns + " FROM chunks"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq"

	candidates, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return vecmath.TopK(candidates, query, k, filters), nil
}

// AssignThemes sets each chunk's theme, clearing it for chunks not in the map.
func (s *ChunkStore) AssignThemes(ctx context.Context, chunkToTheme map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "UPDATE chunks SET theme_id = NULL"); err != nil {
		return fmt.Errorf("clearing themes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "UPDATE chunks SET theme_id = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for chunkID, themeID := range chunkToTheme {
		if _, err := stmt.ExecContext(ctx, nullString(themeID), chunkID); err != nil {
			return fmt.Errorf("assigning theme to chunk %s: %w", chunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close is a no-op; the owning Store closes the database.
func (s *ChunkStore) Close() error {
	return nil
}

func (s *ChunkStore) query(ctx context.Context, q string, args ...any) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
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

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var (
		c         domain.Chunk
		embedding []byte
		themeID   sql.NullString
	)
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Page, &c.Index,
		&c.StartChar, &c.EndChar, &c.TokenCount, &embedding, &themeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Embedding = bytesToFloat32Slice(embedding)
	c.ThemeID = themeID.String
	return &c, nil
}
