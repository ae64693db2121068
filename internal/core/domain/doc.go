// Package domain defines the core business entities for sercha-synth.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: An embedded span of document text (produced by ingestion)
//   - Theme: A labelled cluster of chunks representing one topic
//   - Chapter: Generated prose for one theme, with citations
//   - SynthesisCache: A stored synthesis run reusable across export formats
//   - ParseResult: Tagged outcome of parsing free-form model output
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
