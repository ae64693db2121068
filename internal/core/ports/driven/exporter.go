package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// ExportRequest carries everything an exporter needs to render a book.
type ExportRequest struct {
	Title       string
	Author      string
	Chapters    []domain.Chapter
	Level       domain.SynthesisLevel
	GeneratedAt time.Time

	// OutDir is the directory the artifact is written to.
	OutDir string
}

// Exporter renders chapters to a single artifact in one format.
type Exporter interface {
	// Format returns the output format handled by this exporter.
	Format() domain.OutputFormat

	// Export writes the artifact and returns its path.
	Export(ctx context.Context, req ExportRequest) (string, error)
}
