package driven

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// ThemeStore persists the current theme set of the collection.
type ThemeStore interface {
	// ReplaceThemes swaps the stored theme set for themes.
	ReplaceThemes(ctx context.Context, themes []domain.Theme) error

	// SaveTheme inserts or updates a single theme.
	SaveTheme(ctx context.Context, theme domain.Theme) error

	// DeleteThemes removes themes by ID. Missing IDs are ignored.
	DeleteThemes(ctx context.Context, ids []string) error

	// GetTheme returns a theme by ID. Returns domain.ErrNotFound if absent.
	GetTheme(ctx context.Context, id string) (*domain.Theme, error)

	// ListThemes returns themes ordered by importance, highest first.
	ListThemes(ctx context.Context) ([]domain.Theme, error)
}

// CacheStore persists the last synthesis run.
type CacheStore interface {
	// LoadCache returns the stored cache, or nil if none exists.
	LoadCache(ctx context.Context) (*domain.SynthesisCache, error)

	// SaveCache replaces the stored cache.
	SaveCache(ctx context.Context, cache domain.SynthesisCache) error

	// ClearCache removes the stored cache.
	ClearCache(ctx context.Context) error
}
