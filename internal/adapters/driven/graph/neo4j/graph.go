// Package neo4j publishes the theme set to a Neo4j graph.
//
// The graph holds (:Theme)-[:HAS_CHUNK]->(:Chunk)<-[:CONTAINS]-(:Document).
// Merged themes carry the IDs they were merged from as a property.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure Graph implements the interface.
var _ driven.ThemeGraph = (*Graph)(nil)

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Graph writes themes to Neo4j.
type Graph struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewGraph creates a driver and verifies connectivity.
func NewGraph(ctx context.Context, cfg Config) (*Graph, error) {
	if cfg.URI == "" {
		return nil, domain.ErrGraphUnavailable
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("%w: %w", domain.ErrGraphUnavailable, err)
	}
	return &Graph{driver: driver, database: cfg.Database}, nil
}

// themeParams is the parameter map for one theme and its member chunks.
func themeParams(theme domain.Theme, chunks map[string]domain.Chunk) map[string]any {
	members := make([]map[string]any, 0, len(theme.ChunkIDs))
	for _, id := range theme.ChunkIDs {
		c, ok := chunks[id]
		if !ok {
			continue
		}
		members = append(members, map[string]any{
			"id":          c.ID,
			"document_id": c.DocumentID,
			"page":        int64(c.Page),
			"index":       int64(c.Index),
		})
	}

	return map[string]any{
		"id":            theme.ID,
		"label":         theme.Label,
		"description":   theme.Description,
		"keywords":      nonNil(theme.Keywords),
		"importance":    theme.Importance,
		"chapter_order": int64(theme.ChapterOrder),
		"merged_from":   nonNil(theme.MergedFrom),
		"chunks":        members,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// PublishThemes replaces the published theme set with themes.
// Chunk and document nodes are shared across themes and kept.
func (g *Graph) PublishThemes(ctx context.Context, themes []domain.Theme, chunks []domain.Chunk) error {
	byID := make(map[string]domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (t:Theme)
			WHERE NOT t.id IN $ids
			DETACH DELETE t
		`, map[string]any{"ids": domain.ThemeIDs(themes)}); err != nil {
			return nil, fmt.Errorf("remove stale themes: %w", err)
		}

		for _, theme := range themes {
			params := themeParams(theme, byID)

			if _, err := tx.Run(ctx, `
				MERGE (t:Theme {id: $id})
				SET t.label = $label,
				    t.description = $description,
				    t.keywords = $keywords,
				    t.importance = $importance,
				    t.chapter_order = $chapter_order,
				    t.merged_from = $merged_from,
				    t.updated_at = datetime()
			`, params); err != nil {
				return nil, fmt.Errorf("upsert theme %s: %w", theme.ID, err)
			}

			if _, err := tx.Run(ctx, `
				MATCH (t:Theme {id: $id})-[r:HAS_CHUNK]->(:Chunk)
				DELETE r
			`, map[string]any{"id": theme.ID}); err != nil {
				return nil, fmt.Errorf("clear chunks of theme %s: %w", theme.ID, err)
			}

			if _, err := tx.Run(ctx, `
				MATCH (t:Theme {id: $id})
				UNWIND $chunks AS c
				MERGE (ch:Chunk {id: c.id})
				SET ch.page = c.page, ch.index = c.index
				MERGE (d:Document {id: c.document_id})
				MERGE (d)-[:CONTAINS]->(ch)
				MERGE (t)-[:HAS_CHUNK]->(ch)
			`, params); err != nil {
				return nil, fmt.Errorf("link chunks of theme %s: %w", theme.ID, err)
			}
		}
		return nil, nil
	})
	return err
}

// Close closes the driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
