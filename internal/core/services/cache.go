package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// Ensure CacheService implements the interface.
var _ driving.CacheService = (*CacheService)(nil)

// CacheService reuses a stored synthesis when it still matches the request
// and re-exports it in any format without calling the LLM.
type CacheService struct {
	themes    driven.ThemeStore
	caches    driven.CacheStore
	synthesis driving.SynthesisService
	exporters map[domain.OutputFormat]driven.Exporter

	now   func() time.Time
	newID func() string
}

// NewCacheService creates a cache service with the given exporters.
func NewCacheService(
	themes driven.ThemeStore,
	caches driven.CacheStore,
	synthesis driving.SynthesisService,
	exporters ...driven.Exporter,
) *CacheService {
	byFormat := make(map[domain.OutputFormat]driven.Exporter, len(exporters))
	for _, e := range exporters {
		byFormat[e.Format()] = e
	}
	return &CacheService{
		themes:    themes,
		caches:    caches,
		synthesis: synthesis,
		exporters: byFormat,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// IsCacheValid reports whether cache can serve cfg. The theme ID sets must be
// equal and the level and chunks-per-chapter must match. The output format is
// not compared: a different format is served by re-exporting.
func (s *CacheService) IsCacheValid(
	cache *domain.SynthesisCache, cfg domain.SynthesisConfig, currentThemeIDs []string,
) bool {
	if cache == nil {
		logger.Debug("Cache invalid: no cache")
		return false
	}
	if !sameIDSet(cache.ThemeIDs, currentThemeIDs) {
		logger.Debug("Cache invalid: theme set changed")
		return false
	}
	if cache.Config.Level != cfg.Level {
		logger.Debug("Cache invalid: level %s != %s", cache.Config.Level, cfg.Level)
		return false
	}
	if cache.Config.ChunksPerChapter != cfg.ChunksPerChapter {
		logger.Debug("Cache invalid: chunks per chapter %d != %d", cache.Config.ChunksPerChapter, cfg.ChunksPerChapter)
		return false
	}
	return true
}

func sameIDSet(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	other := make(map[string]struct{}, len(b))
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
		other[id] = struct{}{}
	}
	return len(set) == len(other)
}

// ExportFromCache renders the cached chapters in every format of cfg.
// Title and author come from cfg so they can change without regenerating.
func (s *CacheService) ExportFromCache(
	ctx context.Context, cache domain.SynthesisCache, cfg domain.SynthesisConfig, outDir string,
) ([]string, error) {
	if words, cites := domain.TotalWords(cache.Chapters), domain.TotalCitations(cache.Chapters); words != cache.TotalWords || cites != cache.TotalCitations {
		logger.Warn("Cached totals differ from chapters: words %d/%d, citations %d/%d",
			cache.TotalWords, words, cache.TotalCitations, cites)
	}
	return s.export(ctx, cache.Chapters, cfg, cache.GeneratedAt, outDir)
}

func (s *CacheService) export(
	ctx context.Context, chapters []domain.Chapter, cfg domain.SynthesisConfig, at time.Time, outDir string,
) ([]string, error) {
	formats := cfg.OutputFormats
	if len(formats) == 0 {
		formats = []domain.OutputFormat{domain.OutputFormatMarkdown}
	}

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		exporter, ok := s.exporters[f]
		if !ok {
			return paths, fmt.Errorf("export %s: %w", f, domain.ErrUnsupportedFormat)
		}
		path, err := exporter.Export(ctx, driven.ExportRequest{
			Title:       cfg.Title,
			Author:      cfg.Author,
			Chapters:    chapters,
			Level:       cfg.Level,
			GeneratedAt: at,
			OutDir:      outDir,
		})
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", f, err)
		}
		logger.Info("Exported %s to %s", f, path)
		paths = append(paths, path)
	}
	return paths, nil
}

// Status returns the stored cache, or nil if there is none.
func (s *CacheService) Status(ctx context.Context) (*domain.SynthesisCache, error) {
	cache, err := s.caches.LoadCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	return cache, nil
}

// Synthesize serves the request from cache when valid, otherwise generates a
// new book, stores it and exports it. A cancelled run exports the chapters
// finished so far but does not store them, and returns the context error
// alongside the result.
func (s *CacheService) Synthesize(ctx context.Context, req driving.SynthesizeRequest) (*driving.SynthesizeResult, error) {
	logger.Section("Synthesis")
	cfg := req.Config
	if cfg.ChunksPerChapter <= 0 {
		cfg.ChunksPerChapter = domain.DefaultChunksPerChapter
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	themes, err := s.themes.ListThemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("synthesize: list themes: %w", err)
	}
	if len(themes) == 0 {
		return nil, fmt.Errorf("synthesize: %w", domain.ErrNoThemes)
	}
	themeIDs := domain.ThemeIDs(themes)

	cache, err := s.caches.LoadCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("synthesize: load cache: %w", err)
	}
	if !req.Force && s.IsCacheValid(cache, cfg, themeIDs) {
		logger.Info("Synthesis cache is valid, exporting from cache")
		req.Progress.Report(domain.StageExport, 90, "Exporting cached synthesis")
		paths, err := s.ExportFromCache(ctx, *cache, cfg, req.OutDir)
		if err != nil {
			return nil, fmt.Errorf("synthesize: %w", err)
		}
		req.Progress.Report(domain.StageDone, 100, "Exported cached synthesis")
		return &driving.SynthesizeResult{Cache: *cache, Artifacts: paths, FromCache: true}, nil
	}

	chapters, genErr := s.synthesis.GenerateBook(ctx, driving.BookRequest{
		Themes:              themes,
		Title:               cfg.Title,
		Objective:           cfg.Objective,
		TargetChapterLength: cfg.Level.TargetWords(),
		MaxChunksPerChapter: cfg.ChunksPerChapter,
		Progress:            req.Progress,
	})
	cancelled := genErr != nil && (errors.Is(genErr, context.Canceled) || errors.Is(genErr, context.DeadlineExceeded))
	if genErr != nil && !cancelled {
		return nil, fmt.Errorf("synthesize: %w", genErr)
	}

	result := domain.NewSynthesisCache(s.newID(), chapters, themeIDs, cfg, s.now())
	result.Partial = cancelled
	if !cancelled {
		if err := s.caches.SaveCache(ctx, result); err != nil {
			return nil, fmt.Errorf("synthesize: save cache: %w", err)
		}
	}

	exportCtx := context.WithoutCancel(ctx)
	req.Progress.Report(domain.StageExport, 99, "Exporting synthesis")
	paths, err := s.export(exportCtx, result.Chapters, cfg, result.GeneratedAt, req.OutDir)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	out := &driving.SynthesizeResult{Cache: result, Artifacts: paths}
	if cancelled {
		logger.Warn("Synthesis cancelled, exported %d partial chapters", len(result.Chapters))
		return out, fmt.Errorf("synthesize: %w", genErr)
	}
	return out, nil
}
