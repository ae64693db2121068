package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Retrieval defaults.
const (
	defaultRetrieveK       = 5
	defaultRAGTemperature  = 0.2
	previewLength          = 200
	contextDelimiter       = "\n\n---\n\n"
	noRelevantInfoResponse = "I could not find any relevant information in the documents to answer this question."
)

// RetrievalService answers questions with retrieval-augmented generation.
type RetrievalService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
	prompts  promptRenderer
}

// NewRetrievalService creates a retrieval service.
// The embedder and llm parameters are optional (can be nil); the operations
// that need them return the matching unavailable error.
func NewRetrievalService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
) *RetrievalService {
	return &RetrievalService{
		store:    store,
		embedder: embedder,
		llm:      llm,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *RetrievalService) SetPromptStore(store driven.PromptStore) {
	s.prompts.store = store
}

// Retrieve embeds the query and returns the k nearest chunks.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, k int, filters domain.SearchFilters,
) ([]domain.RetrievedChunk, error) {
	logger.Section("Retrieval")
	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.RetrievedChunk{}, nil
	}
	if k <= 0 {
		k = defaultRetrieveK
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	if count == 0 {
		logger.Debug("Vector store is empty")
		return []domain.RetrievedChunk{}, nil
	}
	k = min(k, count)

	if s.embedder == nil {
		return nil, fmt.Errorf("retrieve: %w", domain.ErrEmbeddingUnavailable)
	}
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}

	results, err := s.store.Search(ctx, embedding, k, filters)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	logger.Debug("Retrieved %d of %d requested chunks", len(results), k)
	return results, nil
}

// BuildContext concatenates chunk texts. With metadata each chunk is headed by
// [Source N: Document <first 8 of id>, Page <p>].
func (s *RetrievalService) BuildContext(results []domain.RetrievedChunk, includeMetadata bool) string {
	parts := make([]string, len(results))
	for i, r := range results {
		if includeMetadata {
			parts[i] = fmt.Sprintf("[Source %d: Document %s, Page %d]\n%s",
				i+1, r.Chunk.ShortDocumentID(), r.Chunk.Page, r.Chunk.Content)
			continue
		}
		parts[i] = r.Chunk.Content
	}
	return strings.Join(parts, contextDelimiter)
}

// Generate answers question from contextText in one response.
func (s *RetrievalService) Generate(
	ctx context.Context, question, contextText string, temperature float64,
) (string, error) {
	prompt, opts, err := s.ragPrompt(question, contextText, temperature)
	if err != nil {
		return "", err
	}
	answer, err := s.llm.Generate(ctx, prompt, opts)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// GenerateStream answers question from contextText, delivering fragments as they arrive.
func (s *RetrievalService) GenerateStream(
	ctx context.Context, question, contextText string, temperature float64, onFragment func(string) error,
) error {
	prompt, opts, err := s.ragPrompt(question, contextText, temperature)
	if err != nil {
		return err
	}
	if err := s.llm.GenerateStream(ctx, prompt, opts, onFragment); err != nil {
		return fmt.Errorf("stream answer: %w", err)
	}
	return nil
}

func (s *RetrievalService) ragPrompt(
	question, contextText string, temperature float64,
) (string, driven.GenerateOptions, error) {
	if s.llm == nil {
		return "", driven.GenerateOptions{}, domain.ErrLLMUnavailable
	}
	system, err := s.prompts.render(domain.PromptRAGSystem, nil)
	if err != nil {
		return "", driven.GenerateOptions{}, err
	}
	user, err := s.prompts.render(domain.PromptRAGUser, map[string]any{
		"Context":  contextText,
		"Question": question,
	})
	if err != nil {
		return "", driven.GenerateOptions{}, err
	}
	if temperature <= 0 {
		temperature = defaultRAGTemperature
	}
	return user, driven.GenerateOptions{SystemPrompt: system, Temperature: temperature}, nil
}

// Query retrieves, builds context and answers. No retrieved chunks yields a
// fixed answer and no sources rather than an error.
func (s *RetrievalService) Query(
	ctx context.Context, question string, opts driving.QueryOptions,
) (*domain.QueryResult, error) {
	results, err := s.Retrieve(ctx, question, opts.K, opts.Filters)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logger.Info("No relevant chunks for question")
		if opts.OnFragment != nil {
			if err := opts.OnFragment(noRelevantInfoResponse); err != nil {
				return nil, err
			}
		}
		return &domain.QueryResult{Answer: noRelevantInfoResponse, Sources: []domain.Source{}}, nil
	}

	contextText := s.BuildContext(results, true)

	var answer string
	if opts.OnFragment != nil {
		var sb strings.Builder
		err = s.GenerateStream(ctx, question, contextText, opts.Temperature, func(fragment string) error {
			sb.WriteString(fragment)
			return opts.OnFragment(fragment)
		})
		answer = strings.TrimSpace(sb.String())
	} else {
		answer, err = s.Generate(ctx, question, contextText, opts.Temperature)
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	result := &domain.QueryResult{Answer: answer, Sources: []domain.Source{}}
	if opts.IncludeSources {
		result.Sources = toSources(results)
	}
	return result, nil
}

func toSources(results []domain.RetrievedChunk) []domain.Source {
	sources := make([]domain.Source, len(results))
	for i, r := range results {
		sources[i] = domain.Source{
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			Page:       r.Chunk.Page,
			ChunkIndex: r.Chunk.Index,
			Similarity: r.Similarity(),
			Preview:    truncateRunes(r.Chunk.Content, previewLength),
		}
	}
	return sources
}
