package driving

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// DiscoverOptions configures a theme discovery run.
type DiscoverOptions struct {
	// NThemes fixes the cluster count. Zero selects it by silhouette score.
	NThemes int

	// MaxThemes bounds the automatic search. Zero uses the default.
	MaxThemes int

	// MinClusterSize discards smaller clusters. Zero uses the default.
	MinClusterSize int

	// Seed makes clustering reproducible.
	Seed uint64

	// Progress receives progress events. May be nil.
	Progress domain.ProgressFunc
}

// ThemeService discovers and curates themes.
type ThemeService interface {
	// DiscoverThemes clusters the embedded chunks into themes.
	// Fewer than three embedded chunks yields an empty list, not an error.
	DiscoverThemes(ctx context.Context, chunks []domain.Chunk, opts DiscoverOptions) ([]domain.Theme, error)

	// RefineTheme returns a copy of theme with a new label and/or description.
	RefineTheme(theme domain.Theme, newLabel, newDescription *string) domain.Theme

	// MergeThemes combines themes into one new theme.
	MergeThemes(themes []domain.Theme, newLabel string, totalChunks int) (domain.Theme, error)

	// State returns the state of the most recent discovery run.
	State() domain.DiscoveryState
}

// CollectionService ties theme discovery and curation to persistence.
type CollectionService interface {
	// Discover loads all chunks, discovers themes, stores them and drops the synthesis cache.
	Discover(ctx context.Context, opts DiscoverOptions) ([]domain.Theme, error)

	// Themes returns the stored themes.
	Themes(ctx context.Context) ([]domain.Theme, error)

	// Refine relabels a stored theme.
	Refine(ctx context.Context, id string, newLabel, newDescription *string) (*domain.Theme, error)

	// Merge replaces stored themes with their merge.
	Merge(ctx context.Context, ids []string, newLabel string) (*domain.Theme, error)

	// Publish writes the stored themes to the theme graph.
	Publish(ctx context.Context) error
}
