// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants query the collection, curate themes and run
// synthesis over stdio or HTTP.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrServiceUnavailable is returned by tools whose backing service is not configured.
var ErrServiceUnavailable = errors.New("mcp: service not configured")
