package mcp

import (
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers questions.
	Retrieval driving.RetrievalService

	// Collection discovers and lists themes.
	Collection driving.CollectionService

	// Cache runs synthesis and reports on the stored result.
	Cache driving.CacheService

	// Settings supplies synthesis defaults. Optional.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	// Collection and Cache are optional; their tools report ErrServiceUnavailable.
	return nil
}
