package driving

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// SynthesizeRequest is the outer synthesis entry point used by the CLI and MCP.
type SynthesizeRequest struct {
	Config domain.SynthesisConfig

	// OutDir is where exported artifacts are written.
	OutDir string

	// Force regenerates even when the cache is valid.
	Force bool

	Progress domain.ProgressFunc
}

// SynthesizeResult reports what a synthesis run produced.
type SynthesizeResult struct {
	Cache     domain.SynthesisCache
	Artifacts []string

	// FromCache is true when no generation happened.
	FromCache bool
}

// CacheService decides when a synthesis can be reused and re-exports it.
type CacheService interface {
	// IsCacheValid reports whether cache can serve cfg for the current theme set.
	IsCacheValid(cache *domain.SynthesisCache, cfg domain.SynthesisConfig, currentThemeIDs []string) bool

	// ExportFromCache renders cached chapters in every format of cfg without calling the LLM.
	ExportFromCache(ctx context.Context, cache domain.SynthesisCache, cfg domain.SynthesisConfig, outDir string) ([]string, error)

	// Status returns the stored cache, or nil.
	Status(ctx context.Context) (*domain.SynthesisCache, error)

	// Synthesize reuses the cache when valid, otherwise generates, stores and exports a new book.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error)
}
