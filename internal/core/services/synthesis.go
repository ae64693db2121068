package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// Ensure SynthesisService implements the interface.
var _ driving.SynthesisService = (*SynthesisService)(nil)

// Synthesis tuning.
const (
	planTemperature    = 0.3
	outlineTemperature = 0.4
	contentTemperature = 0.7
	outlineSampleSize  = 5
	outlineExcerptLen  = 300
	batchExcerptLen    = 500
	minBatchSize       = 20
	minBatchDivisor    = 3
	summaryEdgeLength  = 150

	// overrunRatio stops generation once a chapter reaches this share of its target.
	overrunRatio = 1.2
)

// fallbackOutline is used when the model cannot produce an outline.
const fallbackOutline = "1. Overview\n2. Main Points\n3. Conclusion"

// failedContentMarker is appended to the title when every content batch failed.
const failedContentMarker = "[Content generation failed]"

// SynthesisService plans and writes chapters from themes.
type SynthesisService struct {
	llm     driven.LLMService
	store   driven.VectorStore
	prompts promptRenderer

	newID func() string
}

// NewSynthesisService creates a synthesis service.
func NewSynthesisService(llm driven.LLMService, store driven.VectorStore) *SynthesisService {
	return &SynthesisService{
		llm:   llm,
		store: store,
		newID: func() string { return uuid.New().String() },
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *SynthesisService) SetPromptStore(store driven.PromptStore) {
	s.prompts.store = store
}

// PlanChapters asks the model for a reading order. Any answer that is not a
// permutation of every theme leaves the input order untouched.
func (s *SynthesisService) PlanChapters(
	ctx context.Context, themes []domain.Theme, title, objective string,
) ([]domain.Theme, error) {
	if len(themes) <= 1 {
		return themes, nil
	}
	logger.Section("Chapter Planning")

	parsed := s.requestOrder(ctx, themes, title, objective)
	order, ok := parsed.Value()
	if !ok {
		logger.Warn("Chapter planning fell back to original order: %s", parsed.Reason())
		return themes, nil
	}

	planned := make([]domain.Theme, len(order))
	for pos, idx := range order {
		t := themes[idx].Clone()
		t.ChapterOrder = pos + 1
		planned[pos] = t
	}
	logger.Debug("Planned order: %v", order)
	return planned, nil
}

func (s *SynthesisService) requestOrder(
	ctx context.Context, themes []domain.Theme, title, objective string,
) domain.ParseResult[[]int] {
	if s.llm == nil {
		return domain.Fallback[[]int](domain.ErrLLMUnavailable.Error())
	}

	var sb strings.Builder
	for i, t := range themes {
		fmt.Fprintf(&sb, "%d. %s", i+1, t.Label)
		if t.Description != "" {
			fmt.Fprintf(&sb, ": %s", t.Description)
		}
		fmt.Fprintf(&sb, " (%d chunks, importance %.2f)\n", t.Size(), t.Importance)
	}

	prompt, err := s.prompts.render(domain.PromptChapterPlan, map[string]any{
		"Title":     title,
		"Objective": objective,
		"Themes":    strings.TrimSpace(sb.String()),
		"Count":     len(themes),
	})
	if err != nil {
		return domain.Fallback[[]int](err.Error())
	}

	resp, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{Temperature: planTemperature})
	if err != nil {
		return domain.Fallback[[]int](fmt.Sprintf("generate plan: %v", err))
	}
	return parseChapterOrder(resp, len(themes))
}

// GenerateChapter writes one chapter: outline, content batches, then citations.
//
// When ctx is cancelled between batches the chapter is returned with the
// content written so far, consistent word count and citations, together
// with the context error.
func (s *SynthesisService) GenerateChapter(
	ctx context.Context, req driving.ChapterRequest, progress domain.ProgressFunc,
) (*domain.Chapter, error) {
	theme := req.Theme
	logger.Section(fmt.Sprintf("Chapter %d: %s", req.ChapterNumber, theme.Label))

	ch := &domain.Chapter{
		ID:      s.newID(),
		ThemeID: theme.ID,
		Title:   theme.Label,
		Number:  req.ChapterNumber,
		State:   domain.ChapterPlanned,
	}

	outline, err := s.outline(ctx, theme, req)
	if err != nil {
		return nil, err
	}
	ch.Outline = outline
	ch.State = domain.ChapterOutlined

	chunkIDs := theme.ChunkIDs[:min(max(req.MaxChunks, 0), len(theme.ChunkIDs))]
	ch.SourceChunkIDs = append([]string(nil), chunkIDs...)
	ch.State = domain.ChapterContentPending

	content, contentErr := s.content(ctx, theme, req, outline, chunkIDs, progress)
	if contentErr != nil && !isCancellation(contentErr) {
		return nil, contentErr
	}
	ch.SetContent(content.text)
	ch.Generated = !content.allFailed && contentErr == nil
	ch.State = domain.ChapterContentComplete

	// Citations are resolved even after cancellation so the partial chapter stays consistent.
	progress.Report(domain.StageCitations, 100, fmt.Sprintf("Extracting citations for chapter %d", req.ChapterNumber))
	citations, err := s.extractCitations(context.WithoutCancel(ctx), ch.Content, theme.ChunkIDs)
	if err != nil {
		return nil, fmt.Errorf("chapter %d: citation extraction: %w", req.ChapterNumber, err)
	}
	ch.Citations = citations
	ch.State = domain.ChapterCitationsExtracted

	logger.Info("Chapter %d: %d words, %d citations", ch.Number, ch.WordCount, len(ch.Citations))
	return ch, contentErr
}

// outline requests a chapter outline, falling back to a generic one.
func (s *SynthesisService) outline(ctx context.Context, theme domain.Theme, req driving.ChapterRequest) (string, error) {
	sample, err := s.loadChunks(ctx, theme.ChunkIDs[:min(outlineSampleSize, len(theme.ChunkIDs))])
	if err != nil {
		return "", fmt.Errorf("chapter %d: outline: %w", req.ChapterNumber, err)
	}
	if s.llm == nil {
		logger.Warn("Chapter %d: outline: %v, using generic outline", req.ChapterNumber, domain.ErrLLMUnavailable)
		return fallbackOutline, nil
	}

	var sb strings.Builder
	for i, c := range sample {
		if c == nil {
			continue
		}
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, truncateRunes(c.Content, outlineExcerptLen))
	}
	prompt, err := s.prompts.render(domain.PromptChapterOutline, map[string]any{
		"Label":           theme.Label,
		"Description":     theme.Description,
		"Number":          req.ChapterNumber,
		"Excerpts":        strings.TrimSpace(sb.String()),
		"PreviousSummary": req.PreviousSummary,
	})
	if err != nil {
		logger.Warn("Chapter %d: outline: %v, using generic outline", req.ChapterNumber, err)
		return fallbackOutline, nil
	}

	resp, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{Temperature: outlineTemperature})
	if err != nil || strings.TrimSpace(resp) == "" {
		logger.Warn("Chapter %d: outline generation failed, using generic outline: %v", req.ChapterNumber, err)
		return fallbackOutline, nil
	}
	return strings.TrimSpace(resp), nil
}

// contentResult is the accumulated body of a chapter.
type contentResult struct {
	text      string
	allFailed bool
}

// content generates the chapter body in batches. Batches continue until the
// chunks run out or the running word count reaches 120% of the target, checked
// only between batches. Failed batches are skipped.
func (s *SynthesisService) content(
	ctx context.Context,
	theme domain.Theme,
	req driving.ChapterRequest,
	outline string,
	chunkIDs []string,
	progress domain.ProgressFunc,
) (contentResult, error) {
	batchSize := max(minBatchSize, req.MaxChunks/minBatchDivisor)
	batches := splitBatches(len(chunkIDs), batchSize)
	perBatch := req.TargetLength / max(minBatchDivisor, len(batches))
	limit := float64(req.TargetLength) * overrunRatio
	logger.Debug("Chapter %d: %d chunks, %d batches of %d, %d words per batch",
		req.ChapterNumber, len(chunkIDs), len(batches), batchSize, perBatch)

	var (
		results   []domain.ItemResult[string]
		words     int
		cancelErr error
	)
	for b, span := range batches {
		if words > 0 && float64(words) >= limit {
			logger.Debug("Chapter %d: reached %d words (limit %.0f), stopping before batch %d",
				req.ChapterNumber, words, limit, b+1)
			break
		}
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}

		section, err := s.generateBatch(ctx, theme, req, outline, chunkIDs, span, b, len(batches), perBatch)
		if err != nil {
			if isUpstream(err) {
				return contentResult{}, fmt.Errorf("chapter %d: batch %d: %w", req.ChapterNumber, b+1, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				cancelErr = ctxErr
				break
			}
			logger.Warn("Chapter %d: batch %d failed, skipping: %v", req.ChapterNumber, b+1, err)
		}
		results = append(results, domain.ItemResult[string]{Index: b, Value: section, Err: err})
		if err == nil {
			words += domain.CountWords(section)
		}

		progress.Report(domain.StageBatch,
			100*float64(b+1)/float64(len(batches)),
			fmt.Sprintf("Chapter %d: batch %d of %d (%d words)", req.ChapterNumber, b+1, len(batches), words))
	}

	sections := domain.Successes(results)
	if len(sections) == 0 && (cancelErr == nil || domain.AllFailed(results)) {
		logger.Warn("Chapter %d: every content batch failed", req.ChapterNumber)
		return contentResult{text: theme.Label + "\n\n" + failedContentMarker, allFailed: true}, cancelErr
	}
	return contentResult{text: strings.Join(sections, "\n\n")}, cancelErr
}

// batchSpan is a half-open range of chunk positions.
type batchSpan struct{ start, end int }

func splitBatches(n, size int) []batchSpan {
	var spans []batchSpan
	for start := 0; start < n; start += size {
		spans = append(spans, batchSpan{start: start, end: min(start+size, n)})
	}
	return spans
}

// generateBatch writes one section. Chunks are numbered by their position in
// the theme so that markers resolve directly against the theme's chunk list.
func (s *SynthesisService) generateBatch(
	ctx context.Context,
	theme domain.Theme,
	req driving.ChapterRequest,
	outline string,
	chunkIDs []string,
	span batchSpan,
	index, total, targetWords int,
) (string, error) {
	chunks, err := s.loadChunks(ctx, chunkIDs[span.start:span.end])
	if err != nil {
		return "", upstreamError{err}
	}
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}

	var sb strings.Builder
	for i, c := range chunks {
		if c == nil {
			continue
		}
		fmt.Fprintf(&sb, "[%d] %s...\n\n", span.start+i+1, truncateRunes(c.Content, batchExcerptLen))
	}
	prompt, err := s.prompts.render(domain.PromptChapterContent, map[string]any{
		"Label":           theme.Label,
		"Number":          req.ChapterNumber,
		"Outline":         outline,
		"Context":         strings.TrimSpace(sb.String()),
		"TargetWords":     targetWords,
		"PreviousSummary": req.PreviousSummary,
		"Part":            index + 1,
		"Parts":           total,
	})
	if err != nil {
		return "", err
	}

	resp, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		Temperature: contentTemperature,
		MaxTokens:   targetWords * 2,
	})
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", errors.New("empty response")
	}
	return resp, nil
}

// loadChunks fetches chunks by ID. Missing chunks leave a nil slot; other
// store failures are returned.
func (s *SynthesisService) loadChunks(ctx context.Context, ids []string) ([]*domain.Chunk, error) {
	out := make([]*domain.Chunk, len(ids))
	for i, id := range ids {
		c, err := s.store.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug("Chunk %s not found, skipping", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get chunk %s: %w", id, err)
		}
		out[i] = c
	}
	return out, nil
}

// GenerateBook plans the chapter order once and writes every chapter in order,
// passing a short summary of each chapter to the next.
func (s *SynthesisService) GenerateBook(ctx context.Context, req driving.BookRequest) ([]domain.Chapter, error) {
	logger.Section("Book Generation")
	if len(req.Themes) == 0 {
		logger.Warn("No themes to synthesise")
		return []domain.Chapter{}, nil
	}

	req.Progress.Report(domain.StagePlanning, 0, "Planning chapters")
	ordered, err := s.PlanChapters(ctx, req.Themes, req.Title, req.Objective)
	if err != nil {
		return nil, fmt.Errorf("generate book: %w", err)
	}
	req.Progress.Report(domain.StagePlanning, 5, fmt.Sprintf("Planned %d chapters", len(ordered)))

	chapters := make([]domain.Chapter, 0, len(ordered))
	summary := ""
	n := len(ordered)
	for i, theme := range ordered {
		if err := ctx.Err(); err != nil {
			logger.Warn("Book generation cancelled after %d of %d chapters", len(chapters), n)
			return chapters, fmt.Errorf("generate book: %w", err)
		}

		base := 5 + 95*float64(i)/float64(n)
		span := 95 / float64(n)
		req.Progress.Report(domain.StageChapter, base,
			fmt.Sprintf("Chapter %d of %d: %s", i+1, n, theme.Label))

		chapterProgress := func(p domain.Progress) {
			req.Progress.Report(p.Stage, base+span*p.Percent/100, p.Message)
		}
		ch, err := s.GenerateChapter(ctx, driving.ChapterRequest{
			Theme:           theme,
			ChapterNumber:   i + 1,
			TargetLength:    req.TargetChapterLength,
			PreviousSummary: summary,
			MaxChunks:       req.MaxChunksPerChapter,
		}, chapterProgress)
		if ch != nil && (err == nil || strings.TrimSpace(ch.Content) != "") {
			chapters = append(chapters, *ch)
		}
		if err != nil {
			return chapters, fmt.Errorf("generate book: %w", err)
		}
		summary = summarizeChapter(ch.Content)
	}

	req.Progress.Report(domain.StageDone, 100, fmt.Sprintf("Generated %d chapters", len(chapters)))
	return chapters, nil
}

// summarizeChapter returns the first and last 150 characters of content, or
// all of it when it has two paragraphs or fewer.
func summarizeChapter(content string) string {
	paragraphs := 0
	for _, p := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	if paragraphs <= 2 {
		return content
	}
	return truncateRunes(content, summaryEdgeLength) + " ... " + lastRunes(content, summaryEdgeLength)
}

// upstreamError marks a vector store failure inside a batch as fatal.
type upstreamError struct{ err error }

func (e upstreamError) Error() string { return e.err.Error() }
func (e upstreamError) Unwrap() error { return e.err }

func isUpstream(err error) bool {
	var u upstreamError
	return errors.As(err, &u)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
