package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/export"
)

const (
	// URIScheme is the custom URI scheme for sercha-synth resources.
	uriScheme = "synth://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "themes",
		Name:        "themes",
		Description: "Stored themes with their keywords and member chunks",
		MIMEType:    "application/json",
	}, s.handleThemesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "chapters/{number}",
		Name:        "chapter",
		Description: "A chapter of the stored synthesis as Markdown",
		MIMEType:    "text/markdown",
	}, s.handleChapterResource)
}

// handleThemesResource returns the stored themes as JSON.
func (s *Server) handleThemesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	text := "[]"
	if s.ports.Collection != nil {
		themes, err := s.ports.Collection.Themes(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing themes: %w", err)
		}
		if len(themes) > 0 {
			data, err := json.MarshalIndent(themes, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshalling themes: %w", err)
			}
			text = string(data)
		}
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     text,
		}},
	}, nil
}

// handleChapterResource renders one cached chapter.
func (s *Server) handleChapterResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Cache == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	number := extractChapterNumber(req.Params.URI)
	if number <= 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	cache, err := s.ports.Cache.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading synthesis: %w", err)
	}
	if cache == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	for i := range cache.Chapters {
		if cache.Chapters[i].Number == number {
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{
					URI:      req.Params.URI,
					MIMEType: "text/markdown",
					Text:     export.RenderChapter(cache.Chapters[i]),
				}},
			}, nil
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

// extractChapterNumber parses the number from synth://chapters/{number}.
// Returns 0 if the URI does not match.
func extractChapterNumber(uri string) int {
	const prefix = uriScheme + "chapters/"

	if !strings.HasPrefix(uri, prefix) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return 0
	}
	return n
}
