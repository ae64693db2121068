package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

// defaultQueryK is the number of chunks retrieved when the caller gives none.
const defaultQueryK = 5

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Question       string   `json:"question" jsonschema:"the question to answer from the documents"`
	K              int      `json:"k,omitempty" jsonschema:"number of chunks to retrieve (default 5)"`
	DocumentIDs    []string `json:"document_ids,omitempty" jsonschema:"restrict retrieval to these documents"`
	ThemeID        string   `json:"theme_id,omitempty" jsonschema:"restrict retrieval to chunks of this theme"`
	IncludeSources bool     `json:"include_sources,omitempty" jsonschema:"return the chunks the answer was built from"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Answer  string          `json:"answer"`
	Sources []domain.Source `json:"sources,omitempty"`
}

// DiscoverInput is the input schema for the discover_themes tool.
type DiscoverInput struct {
	NThemes        int    `json:"n_themes,omitempty" jsonschema:"fixed number of themes; 0 picks automatically"`
	MaxThemes      int    `json:"max_themes,omitempty" jsonschema:"upper bound for automatic selection"`
	MinClusterSize int    `json:"min_cluster_size,omitempty" jsonschema:"discard themes with fewer chunks"`
	Seed           uint64 `json:"seed,omitempty" jsonschema:"clustering seed for reproducible results"`
}

// ListThemesInput is the input schema for the list_themes tool.
type ListThemesInput struct{}

// ThemeOutput is one theme in tool results.
type ThemeOutput struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords"`
	Chunks      int      `json:"chunks"`
	Importance  float64  `json:"importance"`
}

// ThemesOutput is the output schema for the theme tools.
type ThemesOutput struct {
	Themes []ThemeOutput `json:"themes"`
	Count  int           `json:"count"`
}

// SynthesizeInput is the input schema for the synthesize tool.
type SynthesizeInput struct {
	Title            string   `json:"title" jsonschema:"title of the synthesized document"`
	Author           string   `json:"author,omitempty" jsonschema:"author shown in exports"`
	Objective        string   `json:"objective,omitempty" jsonschema:"what the document should achieve"`
	Level            string   `json:"level,omitempty" jsonschema:"short, normal or comprehensive"`
	ChunksPerChapter int      `json:"chunks_per_chapter,omitempty" jsonschema:"chunks used per chapter"`
	Formats          []string `json:"formats,omitempty" jsonschema:"export formats: markdown, json, yaml"`
	OutDir           string   `json:"out_dir,omitempty" jsonschema:"directory for exported files (default .)"`
	Force            bool     `json:"force,omitempty" jsonschema:"regenerate even when the cache is valid"`
}

// SynthesizeOutput is the output schema for the synthesize tool.
type SynthesizeOutput struct {
	Artifacts      []string `json:"artifacts"`
	FromCache      bool     `json:"from_cache"`
	Chapters       int      `json:"chapters"`
	TotalWords     int      `json:"total_words"`
	TotalCitations int      `json:"total_citations"`
	Partial        bool     `json:"partial,omitempty"`
}

// CacheStatusInput is the input schema for the cache_status tool.
type CacheStatusInput struct{}

// CacheStatusOutput is the output schema for the cache_status tool.
type CacheStatusOutput struct {
	Present        bool   `json:"present"`
	Valid          bool   `json:"valid"`
	GeneratedAt    string `json:"generated_at,omitempty"`
	Level          string `json:"level,omitempty"`
	Chapters       int    `json:"chapters"`
	TotalWords     int    `json:"total_words"`
	TotalCitations int    `json:"total_citations"`
	Partial        bool   `json:"partial,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Answer a question from the document collection",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "discover_themes",
		Description: "Cluster the collection into labelled themes, replacing the stored set",
	}, s.handleDiscover)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_themes",
		Description: "List the stored themes by importance",
	}, s.handleListThemes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "synthesize",
		Description: "Write a chaptered document from the stored themes and export it",
	}, s.handleSynthesize)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_status",
		Description: "Report on the stored synthesis and whether it is still valid",
	}, s.handleCacheStatus)
}

func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultQueryK
	}

	result, err := s.ports.Retrieval.Query(ctx, input.Question, driving.QueryOptions{
		K:              k,
		Filters:        domain.SearchFilters{DocumentIDs: input.DocumentIDs, ThemeID: input.ThemeID},
		IncludeSources: input.IncludeSources,
	})
	if err != nil {
		return nil, QueryOutput{}, err
	}
	return nil, QueryOutput{Answer: result.Answer, Sources: result.Sources}, nil
}

func (s *Server) handleDiscover(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DiscoverInput,
) (*mcp.CallToolResult, ThemesOutput, error) {
	if s.ports.Collection == nil {
		return nil, ThemesOutput{}, fmt.Errorf("discover_themes: %w", ErrServiceUnavailable)
	}
	themes, err := s.ports.Collection.Discover(ctx, driving.DiscoverOptions{
		NThemes:        input.NThemes,
		MaxThemes:      input.MaxThemes,
		MinClusterSize: input.MinClusterSize,
		Seed:           input.Seed,
	})
	if err != nil {
		return nil, ThemesOutput{}, err
	}
	return nil, themesOutput(themes), nil
}

func (s *Server) handleListThemes(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListThemesInput,
) (*mcp.CallToolResult, ThemesOutput, error) {
	if s.ports.Collection == nil {
		return nil, ThemesOutput{}, fmt.Errorf("list_themes: %w", ErrServiceUnavailable)
	}
	themes, err := s.ports.Collection.Themes(ctx)
	if err != nil {
		return nil, ThemesOutput{}, err
	}
	return nil, themesOutput(themes), nil
}

func (s *Server) handleSynthesize(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SynthesizeInput,
) (*mcp.CallToolResult, SynthesizeOutput, error) {
	if s.ports.Cache == nil {
		return nil, SynthesizeOutput{}, fmt.Errorf("synthesize: %w", ErrServiceUnavailable)
	}

	cfg, err := s.synthesisConfig(input)
	if err != nil {
		return nil, SynthesizeOutput{}, err
	}
	outDir := input.OutDir
	if outDir == "" {
		outDir = "."
	}

	result, err := s.ports.Cache.Synthesize(ctx, driving.SynthesizeRequest{
		Config: cfg,
		OutDir: outDir,
		Force:  input.Force,
	})
	if err != nil {
		return nil, SynthesizeOutput{}, err
	}

	return nil, SynthesizeOutput{
		Artifacts:      result.Artifacts,
		FromCache:      result.FromCache,
		Chapters:       len(result.Cache.Chapters),
		TotalWords:     result.Cache.TotalWords,
		TotalCitations: result.Cache.TotalCitations,
		Partial:        result.Cache.Partial,
	}, nil
}

// synthesisConfig starts from stored defaults and applies the tool input.
func (s *Server) synthesisConfig(input SynthesizeInput) (domain.SynthesisConfig, error) {
	cfg := domain.DefaultSynthesisConfig()
	if s.ports.Settings != nil {
		if settings, err := s.ports.Settings.Get(); err == nil {
			cfg = settings.Synthesis
		}
	}

	cfg.Title = input.Title
	if input.Author != "" {
		cfg.Author = input.Author
	}
	cfg.Objective = input.Objective
	if input.Level != "" {
		cfg.Level = domain.SynthesisLevel(input.Level)
	}
	if input.ChunksPerChapter > 0 {
		cfg.ChunksPerChapter = input.ChunksPerChapter
	}
	if len(input.Formats) > 0 {
		cfg.OutputFormats = make([]domain.OutputFormat, len(input.Formats))
		for i, f := range input.Formats {
			cfg.OutputFormats[i] = domain.OutputFormat(f)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("synthesize: %w", err)
	}
	return cfg, nil
}

func (s *Server) handleCacheStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ CacheStatusInput,
) (*mcp.CallToolResult, CacheStatusOutput, error) {
	if s.ports.Cache == nil {
		return nil, CacheStatusOutput{}, fmt.Errorf("cache_status: %w", ErrServiceUnavailable)
	}

	cache, err := s.ports.Cache.Status(ctx)
	if err != nil {
		return nil, CacheStatusOutput{}, err
	}
	if cache == nil {
		return nil, CacheStatusOutput{}, nil
	}

	out := CacheStatusOutput{
		Present:        true,
		GeneratedAt:    cache.GeneratedAt.Format(time.RFC3339),
		Level:          string(cache.Level),
		Chapters:       len(cache.Chapters),
		TotalWords:     cache.TotalWords,
		TotalCitations: cache.TotalCitations,
		Partial:        cache.Partial,
	}
	if s.ports.Collection != nil {
		themes, err := s.ports.Collection.Themes(ctx)
		if err != nil {
			return nil, CacheStatusOutput{}, err
		}
		out.Valid = s.ports.Cache.IsCacheValid(cache, cache.Config, domain.ThemeIDs(themes))
	}
	return nil, out, nil
}

func themesOutput(themes []domain.Theme) ThemesOutput {
	out := ThemesOutput{
		Themes: make([]ThemeOutput, len(themes)),
		Count:  len(themes),
	}
	for i := range themes {
		out.Themes[i] = ThemeOutput{
			ID:          themes[i].ID,
			Label:       themes[i].Label,
			Description: themes[i].Description,
			Keywords:    themes[i].Keywords,
			Chunks:      themes[i].Size(),
			Importance:  themes[i].Importance,
		}
	}
	return out
}
