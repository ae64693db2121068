package driven

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// ThemeGraph publishes themes and their chunk memberships to a graph database.
type ThemeGraph interface {
	// PublishThemes writes theme, chunk and document nodes plus their relationships.
	// Themes previously published but absent from themes are removed.
	PublishThemes(ctx context.Context, themes []domain.Theme, chunks []domain.Chunk) error

	// Close releases resources.
	Close(ctx context.Context) error
}
