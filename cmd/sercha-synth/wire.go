package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/export"
	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/graph/neo4j"
	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-synth/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/services"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// chunkStore is what the services need from a chunk backend.
type chunkStore interface {
	driven.VectorStore
	driven.ChunkWriter
}

// themeStore holds themes and the synthesis cache.
type themeStore interface {
	driven.ThemeStore
	driven.CacheStore
}

// stores is the storage selected by the settings.
type stores struct {
	chunks  chunkStore
	themes  themeStore
	closers []func() error
}

func (s *stores) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// bootstrap builds every service from the settings file and environment.
func bootstrap(ctx context.Context) (*cli.Services, error) {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	st, err := openStores(ctx, settings.Storage)
	if err != nil {
		return nil, err
	}

	aiServices := ai.Init(settings)
	warnings := append([]string(nil), aiServices.Warnings...)

	var graph driven.ThemeGraph
	if settings.Graph.IsConfigured() {
		neoGraph, err := neo4j.NewGraph(ctx, neo4j.Config{
			URI:      settings.Graph.URI,
			Username: settings.Graph.Username,
			Password: settings.Graph.Password,
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("theme graph unavailable: %v", err))
		} else {
			graph = neoGraph
			st.closers = append(st.closers, func() error {
				return neoGraph.Close(context.Background())
			})
		}
	}

	prompts, err := file.NewPromptStore("")
	if err != nil {
		aiServices.Close()
		_ = st.close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("open prompts: %w", err)
	}

	themeService := services.NewThemeService(aiServices.LLMService)
	themeService.SetPromptStore(prompts)
	retrievalService := services.NewRetrievalService(st.chunks, aiServices.EmbeddingService, aiServices.LLMService)
	retrievalService.SetPromptStore(prompts)
	synthesisService := services.NewSynthesisService(aiServices.LLMService, st.chunks)
	synthesisService.SetPromptStore(prompts)

	return &cli.Services{
		Chunks:     services.NewChunkService(st.chunks, st.chunks, aiServices.EmbeddingService),
		Retrieval:  retrievalService,
		Collection: services.NewCollectionService(st.chunks, st.themes, st.themes, themeService, graph),
		Cache:      services.NewCacheService(st.themes, st.themes, synthesisService, export.All()...),
		Settings:   settingsService,
		WatchPrompts: func(ctx context.Context) error {
			return prompts.Watch(ctx, func(name string) {
				logger.Info("Reloaded prompt %s", name)
			})
		},
		Warnings: warnings,
		Close: func() error {
			aiServices.Close()
			return st.close()
		},
	}, nil
}

// openStores opens the chunk and theme stores for the configured backend.
// The pgvector backend keeps themes and the synthesis cache in SQLite.
func openStores(ctx context.Context, cfg domain.StorageSettings) (*stores, error) {
	switch cfg.Backend {
	case domain.StorageMemory:
		return &stores{chunks: memory.NewVectorStore(), themes: memory.NewThemeStore()}, nil

	case domain.StoragePGVector:
		pg, err := pgvector.NewStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open pgvector: %w", err)
		}
		lite, err := sqlite.NewStore("")
		if err != nil {
			_ = pg.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &stores{
			chunks:  pg,
			themes:  lite.Themes(),
			closers: []func() error{pg.Close, lite.Close},
		}, nil

	default:
		lite, err := sqlite.NewStore("")
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &stores{
			chunks:  lite.Chunks(),
			themes:  lite.Themes(),
			closers: []func() error{lite.Close},
		}, nil
	}
}
