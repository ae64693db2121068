package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure ThemeStore implements the interfaces.
var (
	_ driven.ThemeStore = (*ThemeStore)(nil)
	_ driven.CacheStore = (*ThemeStore)(nil)
)

// ThemeStore is an in-memory implementation of driven.ThemeStore and driven.CacheStore.
type ThemeStore struct {
	mu     sync.RWMutex
	themes map[string]domain.Theme
	seq    map[string]int
	next   int
	cache  *domain.SynthesisCache
}

// NewThemeStore creates a new in-memory theme store.
func NewThemeStore() *ThemeStore {
	return &ThemeStore{
		themes: make(map[string]domain.Theme),
		seq:    make(map[string]int),
	}
}

// ReplaceThemes swaps the stored theme set.
func (s *ThemeStore) ReplaceThemes(_ context.Context, themes []domain.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themes = make(map[string]domain.Theme, len(themes))
	s.seq = make(map[string]int, len(themes))
	for _, t := range themes {
		s.put(t)
	}
	return nil
}

// SaveTheme inserts or updates a theme.
func (s *ThemeStore) SaveTheme(_ context.Context, theme domain.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(theme)
	return nil
}

func (s *ThemeStore) put(t domain.Theme) {
	if _, ok := s.seq[t.ID]; !ok {
		s.seq[t.ID] = s.next
		s.next++
	}
	s.themes[t.ID] = t.Clone()
}

// DeleteThemes removes themes by ID.
func (s *ThemeStore) DeleteThemes(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.themes, id)
		delete(s.seq, id)
	}
	return nil
}

// GetTheme retrieves a theme by ID.
func (s *ThemeStore) GetTheme(_ context.Context, id string) (*domain.Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.themes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := t.Clone()
	return &c, nil
}

// ListThemes returns themes by importance, highest first, then insertion order.
func (s *ThemeStore) ListThemes(_ context.Context) ([]domain.Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Theme, 0, len(s.themes))
	for _, t := range s.themes {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out, nil
}

// LoadCache returns the stored cache, or nil.
func (s *ThemeStore) LoadCache(_ context.Context) (*domain.SynthesisCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil {
		return nil, nil
	}
	c := *s.cache
	return &c, nil
}

// SaveCache replaces the stored cache.
func (s *ThemeStore) SaveCache(_ context.Context, cache domain.SynthesisCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = &cache
	return nil
}

// ClearCache removes the stored cache.
func (s *ThemeStore) ClearCache(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
	return nil
}
