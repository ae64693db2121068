package driving

import (
	"context"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// RetrievalService answers questions against the chunk collection.
type RetrievalService interface {
	// Retrieve embeds the query and returns up to k nearest chunks.
	// k is capped to the collection size; an empty collection yields no results.
	Retrieve(ctx context.Context, query string, k int, filters domain.SearchFilters) ([]domain.RetrievedChunk, error)

	// BuildContext joins retrieved chunk texts into one annotated block.
	BuildContext(results []domain.RetrievedChunk, includeMetadata bool) string

	// Generate answers question from context in a single response.
	Generate(ctx context.Context, question, contextText string, temperature float64) (string, error)

	// GenerateStream answers question from context, delivering fragments as they arrive.
	GenerateStream(ctx context.Context, question, contextText string, temperature float64, onFragment func(string) error) error

	// Query runs retrieve, build context and generate in one call.
	Query(ctx context.Context, question string, opts QueryOptions) (*domain.QueryResult, error)
}

// QueryOptions configures a RAG query.
type QueryOptions struct {
	// K is the number of chunks to retrieve.
	K int

	// Filters narrows the search.
	Filters domain.SearchFilters

	// IncludeSources populates QueryResult.Sources.
	IncludeSources bool

	// Temperature for the answer. Zero uses the service default.
	Temperature float64

	// OnFragment, when set, streams the answer as it is generated.
	OnFragment func(string) error
}
