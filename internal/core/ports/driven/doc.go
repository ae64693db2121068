// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - VectorStore: Read access to embedded chunks and similarity search
//   - LLMService: Text generation for labels, plans, outlines and chapters
//   - ConfigStore: Application configuration
//   - ThemeStore: Persistence for the current theme set
//   - CacheStore: Persistence for the last synthesis run
//   - Exporter: Renders chapters into an output format
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Without it, queries and chunk import embedding are disabled.
//   - PromptStore: Without it, adapters and services use built-in prompts.
//   - ThemeGraph: Without it, themes are not published to a graph database.
//   - ChunkWriter, ThemeAssigner: Optional VectorStore capabilities.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
