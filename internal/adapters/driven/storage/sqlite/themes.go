package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure ThemeStore implements the interfaces.
var (
	_ driven.ThemeStore = (*ThemeStore)(nil)
	_ driven.CacheStore = (*ThemeStore)(nil)
)

const themeColumns = `id, label, description, chunk_ids, keywords, importance,
	chapter_order, merged_from, created_at`

// ThemeStore persists the theme set and the synthesis cache in SQLite.
type ThemeStore struct {
	db *sql.DB
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ReplaceThemes swaps the stored theme set in a single transaction.
func (s *ThemeStore) ReplaceThemes(ctx context.Context, themes []domain.Theme) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM themes"); err != nil {
		return fmt.Errorf("clearing themes: %w", err)
	}
	for _, t := range themes {
		if err := upsertTheme(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveTheme inserts or updates a theme. Updates keep the original position.
func (s *ThemeStore) SaveTheme(ctx context.Context, theme domain.Theme) error {
	return upsertTheme(ctx, s.db, theme)
}

func upsertTheme(ctx context.Context, db execer, t domain.Theme) error {
	chunkIDs, err := marshalStrings(t.ChunkIDs)
	if err != nil {
		return fmt.Errorf("marshalling chunk ids: %w", err)
	}
	keywords, err := marshalStrings(t.Keywords)
	if err != nil {
		return fmt.Errorf("marshalling keywords: %w", err)
	}
	mergedFrom, err := marshalStrings(t.MergedFrom)
	if err != nil {
		return fmt.Errorf("marshalling merged from: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO themes (seq, `+themeColumns+`)
		VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM themes), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			description = excluded.description,
			chunk_ids = excluded.chunk_ids,
			keywords = excluded.keywords,
			importance = excluded.importance,
			chapter_order = excluded.chapter_order,
			merged_from = excluded.merged_from,
			created_at = excluded.created_at
	`, t.ID, t.Label, t.Description, chunkIDs, keywords, t.Importance,
		t.ChapterOrder, mergedFrom, t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving theme %s: %w", t.ID, err)
	}
	return nil
}

// DeleteThemes removes themes by ID.
func (s *ThemeStore) DeleteThemes(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM themes WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting theme %s: %w", id, err)
		}
	}
	return nil
}

// GetTheme retrieves a theme by ID.
func (s *ThemeStore) GetTheme(ctx context.Context, id string) (*domain.Theme, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+themeColumns+" FROM themes WHERE id = ?", id)
	t, err := scanTheme(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListThemes returns themes by importance, highest first, then insertion order.
func (s *ThemeStore) ListThemes(ctx context.Context) ([]domain.Theme, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+themeColumns+" FROM themes ORDER BY importance DESC, seq ASC")
	if err != nil {
		return nil, fmt.Errorf("querying themes: %w", err)
	}
	defer rows.Close()

	themes := []domain.Theme{}
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		themes = append(themes, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating themes: %w", err)
	}
	return themes, nil
}

func scanTheme(row rowScanner) (*domain.Theme, error) {
	var (
		t                              domain.Theme
		chunkIDs, keywords, mergedFrom string
		createdAt                      time.Time
	)
	if err := row.Scan(&t.ID, &t.Label, &t.Description, &chunkIDs, &keywords,
		&t.Importance, &t.ChapterOrder, &mergedFrom, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning theme: %w", err)
	}

	var err error
	if t.ChunkIDs, err = unmarshalStrings(chunkIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk ids: %w", err)
	}
	if t.Keywords, err = unmarshalStrings(keywords); err != nil {
		return nil, fmt.Errorf("unmarshaling keywords: %w", err)
	}
	if t.MergedFrom, err = unmarshalStrings(mergedFrom); err != nil {
		return nil, fmt.Errorf("unmarshaling merged from: %w", err)
	}
	t.CreatedAt = createdAt.UTC()
	return &t, nil
}

// LoadCache returns the stored synthesis cache, or nil if none exists.
func (s *ThemeStore) LoadCache(ctx context.Context) (*domain.SynthesisCache, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM synthesis_cache WHERE slot = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cache: %w", err)
	}

	var cache domain.SynthesisCache
	if err := json.Unmarshal([]byte(payload), &cache); err != nil {
		return nil, fmt.Errorf("unmarshaling cache: %w", err)
	}
	return &cache, nil
}

// SaveCache replaces the stored synthesis cache.
func (s *ThemeStore) SaveCache(ctx context.Context, cache domain.SynthesisCache) error {
	payload, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("marshalling cache: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO synthesis_cache (slot, id, generated_at, payload)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			id = excluded.id,
			generated_at = excluded.generated_at,
			payload = excluded.payload
	`, cache.ID, cache.GeneratedAt.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("saving cache: %w", err)
	}
	return nil
}

// ClearCache removes the stored synthesis cache.
func (s *ThemeStore) ClearCache(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM synthesis_cache"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
