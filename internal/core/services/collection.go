package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// Ensure CollectionService implements the interface.
var _ driving.CollectionService = (*CollectionService)(nil)

// CollectionService runs theme discovery and curation against the stored
// collection. Any change to the theme set drops the synthesis cache.
type CollectionService struct {
	store  driven.VectorStore
	themes driven.ThemeStore
	caches driven.CacheStore
	engine driving.ThemeService
	graph  driven.ThemeGraph
}

// NewCollectionService creates a collection service. graph may be nil.
func NewCollectionService(
	store driven.VectorStore,
	themes driven.ThemeStore,
	caches driven.CacheStore,
	engine driving.ThemeService,
	graph driven.ThemeGraph,
) *CollectionService {
	return &CollectionService{
		store:  store,
		themes: themes,
		caches: caches,
		engine: engine,
		graph:  graph,
	}
}

// Discover loads every chunk, discovers themes and replaces the stored set.
// A cancelled discovery is returned but not stored.
func (s *CollectionService) Discover(ctx context.Context, opts driving.DiscoverOptions) ([]domain.Theme, error) {
	chunks, err := s.store.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover: %w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	logger.Debug("Loaded %d chunks", len(chunks))

	themes, err := s.engine.DiscoverThemes(ctx, chunks, opts)
	if err != nil {
		return themes, err
	}
	if err := s.replace(ctx, themes); err != nil {
		return nil, err
	}
	return themes, nil
}

func (s *CollectionService) replace(ctx context.Context, themes []domain.Theme) error {
	if err := s.themes.ReplaceThemes(ctx, themes); err != nil {
		return fmt.Errorf("store themes: %w", err)
	}
	if err := s.invalidate(ctx); err != nil {
		return err
	}
	return s.assign(ctx)
}

// invalidate drops the synthesis cache after the theme set changed.
func (s *CollectionService) invalidate(ctx context.Context) error {
	if err := s.caches.ClearCache(ctx); err != nil {
		return fmt.Errorf("clear synthesis cache: %w", err)
	}
	logger.Debug("Synthesis cache cleared")
	return nil
}

// assign records each chunk's theme when the store supports it.
func (s *CollectionService) assign(ctx context.Context) error {
	assigner, ok := s.store.(driven.ThemeAssigner)
	if !ok {
		return nil
	}
	themes, err := s.themes.ListThemes(ctx)
	if err != nil {
		return fmt.Errorf("list themes: %w", err)
	}
	mapping := make(map[string]string)
	for _, t := range themes {
		for _, id := range t.ChunkIDs {
			mapping[id] = t.ID
		}
	}
	if err := assigner.AssignThemes(ctx, mapping); err != nil {
		return fmt.Errorf("assign themes: %w", err)
	}
	return nil
}

// Themes returns the stored themes.
func (s *CollectionService) Themes(ctx context.Context) ([]domain.Theme, error) {
	themes, err := s.themes.ListThemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	return themes, nil
}

// Refine relabels a stored theme. The theme set is unchanged so the cache is kept.
func (s *CollectionService) Refine(
	ctx context.Context, id string, newLabel, newDescription *string,
) (*domain.Theme, error) {
	theme, err := s.themes.GetTheme(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("refine theme %s: %w", id, err)
	}
	refined := s.engine.RefineTheme(*theme, newLabel, newDescription)
	if err := s.themes.SaveTheme(ctx, refined); err != nil {
		return nil, fmt.Errorf("refine theme %s: %w", id, err)
	}
	return &refined, nil
}

// Merge replaces the given stored themes with their merge. The stored set is
// swapped in one ReplaceThemes call, so a failed write leaves it unchanged.
func (s *CollectionService) Merge(ctx context.Context, ids []string, newLabel string) (*domain.Theme, error) {
	current, err := s.themes.ListThemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge themes: %w", err)
	}
	byID := make(map[string]domain.Theme, len(current))
	for _, t := range current {
		byID[t.ID] = t
	}

	sources := make(map[string]struct{}, len(ids))
	themes := make([]domain.Theme, 0, len(ids))
	for _, id := range ids {
		if _, dup := sources[id]; dup {
			continue
		}
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("merge themes: %s: %w", id, domain.ErrNotFound)
		}
		sources[id] = struct{}{}
		themes = append(themes, t)
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge themes: %w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	merged, err := s.engine.MergeThemes(themes, newLabel, total)
	if err != nil {
		return nil, err
	}

	next := make([]domain.Theme, 0, len(current)-len(themes)+1)
	placed := false
	for _, t := range current {
		if _, ok := sources[t.ID]; !ok {
			next = append(next, t)
			continue
		}
		if !placed {
			next = append(next, merged)
			placed = true
		}
	}
	if err := s.replace(ctx, next); err != nil {
		return nil, fmt.Errorf("merge themes: %w", err)
	}
	return &merged, nil
}

// Publish writes the stored themes and their chunks to the theme graph.
func (s *CollectionService) Publish(ctx context.Context) error {
	if s.graph == nil {
		return fmt.Errorf("publish: %w", domain.ErrGraphUnavailable)
	}
	themes, err := s.themes.ListThemes(ctx)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if len(themes) == 0 {
		return fmt.Errorf("publish: %w", domain.ErrNoThemes)
	}

	members := make(map[string]struct{})
	for _, t := range themes {
		for _, id := range t.ChunkIDs {
			members[id] = struct{}{}
		}
	}
	all, err := s.store.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("publish: %w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	chunks := make([]domain.Chunk, 0, len(members))
	for _, c := range all {
		if _, ok := members[c.ID]; ok {
			c.Embedding = nil
			chunks = append(chunks, c)
		}
	}

	if err := s.graph.PublishThemes(ctx, themes, chunks); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("publish: %w", err)
	}
	logger.Info("Published %d themes and %d chunks to graph", len(themes), len(chunks))
	return nil
}
