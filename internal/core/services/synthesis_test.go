package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

const (
	planMarker    = "Propose the most logical reading order"
	outlineMarker = "Write a short outline"
	contentMarker = "You are writing chapter"
)

// bookChunks returns n chunks with IDs prefix-1..prefix-n, two per page.
func bookChunks(prefix string, n int) ([]domain.Chunk, []string) {
	chunks := make([]domain.Chunk, n)
	ids := make([]string, n)
	for i := range chunks {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i+1)
		chunks[i] = domain.Chunk{
			ID:         ids[i],
			DocumentID: "document-" + prefix,
			Content:    fmt.Sprintf("Source text %d of %s.", i+1, prefix),
			Page:       i/2 + 1,
			Index:      i,
		}
	}
	return chunks, ids
}

// scriptedLLM answers plan, outline and content prompts with the given functions.
// A nil function produces an error for that prompt kind.
func scriptedLLM(plan, outline, content func(prompt string) (string, error)) *mockLLM {
	pick := func(f func(string) (string, error), prompt string) (string, error) {
		if f == nil {
			return "", errors.New("not scripted")
		}
		return f(prompt)
	}
	return &mockLLM{respond: func(prompt string, _ driven.GenerateOptions) (string, error) {
		switch {
		case strings.Contains(prompt, planMarker):
			return pick(plan, prompt)
		case strings.Contains(prompt, outlineMarker):
			return pick(outline, prompt)
		case strings.Contains(prompt, contentMarker):
			return pick(content, prompt)
		}
		return "", errors.New("unexpected prompt")
	}}
}

func fixed(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

func newTestSynthesisService(llm driven.LLMService, store driven.VectorStore) *SynthesisService {
	svc := NewSynthesisService(llm, store)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("chapter-%d", n)
	}
	return svc
}

func TestPlanChapters_SingleThemeSkipsModel(t *testing.T) {
	llm := scriptedLLM(nil, nil, nil)
	svc := newTestSynthesisService(llm, newChunkStore())
	themes := []domain.Theme{{ID: "t1", Label: "Only"}}

	got, err := svc.PlanChapters(context.Background(), themes, "Book", "")
	require.NoError(t, err)

	assert.Equal(t, themes, got)
	assert.Empty(t, llm.prompts)
}

func TestPlanChapters_Reorders(t *testing.T) {
	llm := scriptedLLM(fixed("3. Gamma\n1. Alpha\n2. Beta"), nil, nil)
	svc := newTestSynthesisService(llm, newChunkStore())
	themes := []domain.Theme{
		{ID: "a", Label: "Alpha", Description: "first"},
		{ID: "b", Label: "Beta"},
		{ID: "c", Label: "Gamma"},
	}

	got, err := svc.PlanChapters(context.Background(), themes, "My Book", "Explain things")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "a", "b"}, domain.ThemeIDs(got))
	assert.Equal(t, 1, got[0].ChapterOrder)
	assert.Equal(t, 3, got[2].ChapterOrder)
	assert.Zero(t, themes[0].ChapterOrder, "input themes must not be modified")

	prompt := llm.promptsMatching(planMarker)[0]
	assert.Contains(t, prompt, `titled "My Book"`)
	assert.Contains(t, prompt, "Objective: Explain things")
	assert.Contains(t, prompt, "1. Alpha: first")
	assert.Equal(t, planTemperature, llm.opts[0].Temperature)
}

func TestPlanChapters_FallsBackToInputOrder(t *testing.T) {
	themes := []domain.Theme{{ID: "a", Label: "Alpha"}, {ID: "b", Label: "Beta"}, {ID: "c", Label: "Gamma"}}

	tests := []struct {
		name string
		plan func(string) (string, error)
	}{
		{"malformed", fixed("Read them in any order you like.")},
		{"incomplete", fixed("2. Beta\n1. Alpha")},
		{"duplicate", fixed("1. Alpha\n1. Alpha\n2. Beta")},
		{"out of range", fixed("1. Alpha\n2. Beta\n7. Omega")},
		{"error", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestSynthesisService(scriptedLLM(tt.plan, nil, nil), newChunkStore())

			got, err := svc.PlanChapters(context.Background(), themes, "", "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, domain.ThemeIDs(got))
		})
	}
}

func TestGenerateChapter_BatchesAndStates(t *testing.T) {
	chunks, ids := bookChunks("t", 90)
	llm := scriptedLLM(nil, fixed("1. Start\n2. End"), fixed(words(100)))
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	var stages []domain.Stage
	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme:         domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids},
		ChapterNumber: 2,
		TargetLength:  1500,
		MaxChunks:     90,
	}, func(p domain.Progress) { stages = append(stages, p.Stage) })
	require.NoError(t, err)

	// 90 chunks in batches of max(20, 90/3) = 30
	assert.Equal(t, 3, llm.callsMatching(contentMarker))
	assert.Equal(t, "chapter-1", ch.ID)
	assert.Equal(t, "t", ch.ThemeID)
	assert.Equal(t, "Topic", ch.Title)
	assert.Equal(t, 2, ch.Number)
	assert.Equal(t, "1. Start\n2. End", ch.Outline)
	assert.Equal(t, 300, ch.WordCount)
	assert.Equal(t, domain.CountWords(ch.Content), ch.WordCount)
	assert.True(t, ch.Generated)
	assert.Equal(t, domain.ChapterCitationsExtracted, ch.State)
	assert.Equal(t, ids, ch.SourceChunkIDs)
	assert.NotNil(t, ch.Citations)
	assert.Empty(t, ch.Citations)
	assert.Contains(t, stages, domain.StageBatch)
	assert.Contains(t, stages, domain.StageCitations)

	contents := llm.promptsMatching(contentMarker)
	assert.Contains(t, contents[0], "[1] Source text 1 of t.")
	assert.Contains(t, contents[1], "[31] Source text 31 of t.")
	assert.NotContains(t, contents[1], "[30] ")
	assert.Contains(t, contents[2], "part 3 of 3")
	// 1500 words over 3 batches
	assert.Contains(t, contents[0], "about 500 words")
	for i, o := range llm.opts {
		if strings.Contains(llm.prompts[i], contentMarker) {
			assert.Equal(t, 1000, o.MaxTokens)
			assert.Equal(t, contentTemperature, o.Temperature)
		}
	}
}

func TestGenerateChapter_MaxChunksLimitsSources(t *testing.T) {
	chunks, ids := bookChunks("t", 50)
	llm := scriptedLLM(nil, fixed("outline"), fixed(words(10)))
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
		TargetLength: 800, MaxChunks: 30,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, ids[:30], ch.SourceChunkIDs)
	// 30 chunks in batches of max(20, 10) = 20
	assert.Equal(t, 2, llm.callsMatching(contentMarker))
	for _, p := range llm.promptsMatching(contentMarker) {
		assert.NotContains(t, p, "[31]")
	}
}

func TestGenerateChapter_OverrunRule(t *testing.T) {
	// 60 chunks, MaxChunks 60: three batches of 20. Target 100 words, limit 120.
	tests := []struct {
		name         string
		batchWords   int
		wantBatches  int
		wantWordSize int
	}{
		{"below target runs every batch", 30, 3, 90},
		{"reaching target is not enough to stop", 50, 3, 150},
		{"exactly at limit stops", 60, 2, 120},
		{"crossing limit stops and keeps overrun", 70, 2, 140},
		{"single huge batch", 500, 1, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, ids := bookChunks("t", 60)
			llm := scriptedLLM(nil, fixed("outline"), fixed(words(tt.batchWords)))
			svc := newTestSynthesisService(llm, newChunkStore(chunks...))

			ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
				Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
				TargetLength: 100, MaxChunks: 60,
			}, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantBatches, llm.callsMatching(contentMarker))
			assert.Equal(t, tt.wantWordSize, ch.WordCount)
		})
	}
}

func TestGenerateChapter_OutlineFallback(t *testing.T) {
	chunks, ids := bookChunks("t", 5)
	llm := scriptedLLM(nil, nil, fixed("Body text."))
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
		TargetLength: 100, MaxChunks: 30,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, fallbackOutline, ch.Outline)
	assert.Contains(t, llm.promptsMatching(contentMarker)[0], "1. Overview")
}

func TestGenerateChapter_FailedBatchSkipped(t *testing.T) {
	chunks, ids := bookChunks("t", 60)
	llm := scriptedLLM(nil, fixed("outline"), func(prompt string) (string, error) {
		if strings.Contains(prompt, "part 2 of 3") {
			return "", errors.New("rate limited")
		}
		return "Good section.", nil
	})
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
		TargetLength: 1500, MaxChunks: 60,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Good section.\n\nGood section.", ch.Content)
	assert.Equal(t, 4, ch.WordCount)
	assert.True(t, ch.Generated)
}

func TestGenerateChapter_AllBatchesFailed(t *testing.T) {
	chunks, ids := bookChunks("t", 40)
	llm := scriptedLLM(nil, fixed("outline"), nil)
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
		TargetLength: 800, MaxChunks: 40,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Topic\n\n"+failedContentMarker, ch.Content)
	assert.False(t, ch.Generated)
	assert.Equal(t, domain.CountWords(ch.Content), ch.WordCount)
	assert.Empty(t, ch.Citations)
}

func TestGenerateChapter_Citations(t *testing.T) {
	chunks, ids := bookChunks("t", 10)
	llm := scriptedLLM(nil, fixed("outline"),
		fixed("Claims are made [2]. Later evidence [9] agrees with [2]. Unknown [42] and [0]."))
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
		TargetLength: 500, MaxChunks: 30,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.Citation{
		{Marker: 2, ChunkID: "t-2", DocumentID: "document-t", Page: 1},
		{Marker: 9, ChunkID: "t-9", DocumentID: "document-t", Page: 5},
	}, ch.Citations)
}

func TestGenerateChapter_CitationsBeyondMaxChunks(t *testing.T) {
	chunks, ids := bookChunks("t", 40)
	// Only 20 chunks are sent, but markers resolve against the theme's full list.
	llm := scriptedLLM(nil, fixed("outline"), fixed("See [35]."))
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
		TargetLength: 100, MaxChunks: 20,
	}, nil)
	require.NoError(t, err)

	require.Len(t, ch.Citations, 1)
	assert.Equal(t, "t-35", ch.Citations[0].ChunkID)
}

func TestGenerateChapter_MissingChunksSkipped(t *testing.T) {
	chunks, ids := bookChunks("t", 3)
	ids = append(ids, "ghost")
	llm := scriptedLLM(nil, fixed("outline"), fixed("Text [4] and [1]."))
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
		TargetLength: 100, MaxChunks: 30,
	}, nil)
	require.NoError(t, err)

	assert.NotContains(t, llm.promptsMatching(contentMarker)[0], "[4]")
	require.Len(t, ch.Citations, 1)
	assert.Equal(t, 1, ch.Citations[0].Marker)
}

func TestGenerateChapter_StoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	svc := newTestSynthesisService(scriptedLLM(nil, fixed("o"), fixed("text")), &failingStore{err: storeErr})

	ch, err := svc.GenerateChapter(context.Background(), driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: []string{"a"}}, ChapterNumber: 1,
		TargetLength: 100, MaxChunks: 30,
	}, nil)

	assert.Nil(t, ch)
	assert.ErrorIs(t, err, storeErr)
}

func TestGenerateChapter_CancelledBetweenBatches(t *testing.T) {
	chunks, ids := bookChunks("t", 60)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	llm := scriptedLLM(nil, fixed("outline"), func(string) (string, error) {
		cancel()
		return "First part cites [3].", nil
	})
	svc := newTestSynthesisService(llm, newChunkStore(chunks...))

	ch, err := svc.GenerateChapter(ctx, driving.ChapterRequest{
		Theme: domain.Theme{ID: "t", Label: "Topic", ChunkIDs: ids}, ChapterNumber: 1,
		TargetLength: 1500, MaxChunks: 60,
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, ch)
	assert.Equal(t, 1, llm.callsMatching(contentMarker))
	assert.Equal(t, "First part cites [3].", ch.Content)
	assert.Equal(t, 4, ch.WordCount)
	assert.False(t, ch.Generated)
	require.Len(t, ch.Citations, 1)
	assert.Equal(t, "t-3", ch.Citations[0].ChunkID)
}

func TestGenerateBook(t *testing.T) {
	aChunks, aIDs := bookChunks("a", 4)
	bChunks, bIDs := bookChunks("b", 4)
	store := newChunkStore(append(aChunks, bChunks...)...)
	chapterText := map[string]string{
		"Alpha": "Alpha chapter body [1].",
		"Beta":  "Beta chapter body [2].",
	}
	titleRe := regexp.MustCompile(`"(\w+)" \(part`)
	llm := scriptedLLM(fixed("2. Beta\n1. Alpha"), fixed("outline"), func(prompt string) (string, error) {
		return chapterText[titleRe.FindStringSubmatch(prompt)[1]], nil
	})
	svc := newTestSynthesisService(llm, store)

	var percents []float64
	chapters, err := svc.GenerateBook(context.Background(), driving.BookRequest{
		Themes: []domain.Theme{
			{ID: "ta", Label: "Alpha", ChunkIDs: aIDs},
			{ID: "tb", Label: "Beta", ChunkIDs: bIDs},
		},
		Title:               "Book",
		TargetChapterLength: 800,
		MaxChunksPerChapter: 30,
		Progress:            func(p domain.Progress) { percents = append(percents, p.Percent) },
	})
	require.NoError(t, err)
	require.Len(t, chapters, 2)

	assert.Equal(t, "Beta", chapters[0].Title)
	assert.Equal(t, 1, chapters[0].Number)
	assert.Equal(t, "Alpha", chapters[1].Title)
	assert.Equal(t, 2, chapters[1].Number)
	assert.Equal(t, "b-2", chapters[0].Citations[0].ChunkID)
	assert.Equal(t, "a-1", chapters[1].Citations[0].ChunkID)

	// The second chapter sees a summary of the first.
	contents := llm.promptsMatching(contentMarker)
	require.Len(t, contents, 2)
	assert.NotContains(t, contents[0], "Context from the previous chapter")
	assert.Contains(t, contents[1], "Context from the previous chapter:\nBeta chapter body [2].")
	outlines := llm.promptsMatching(outlineMarker)
	assert.Contains(t, outlines[1], "The previous chapter ended with:")

	require.NotEmpty(t, percents)
	assert.Equal(t, 100.0, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestGenerateBook_NoThemes(t *testing.T) {
	llm := scriptedLLM(nil, nil, nil)
	svc := newTestSynthesisService(llm, newChunkStore())

	chapters, err := svc.GenerateBook(context.Background(), driving.BookRequest{})

	require.NoError(t, err)
	assert.NotNil(t, chapters)
	assert.Empty(t, chapters)
	assert.Empty(t, llm.prompts)
}

func TestGenerateBook_CancelledAfterFirstChapter(t *testing.T) {
	aChunks, aIDs := bookChunks("a", 3)
	bChunks, bIDs := bookChunks("b", 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	llm := scriptedLLM(nil, fixed("outline"), func(string) (string, error) {
		cancel()
		return "Finished chapter.", nil
	})
	svc := newTestSynthesisService(llm, newChunkStore(append(aChunks, bChunks...)...))

	chapters, err := svc.GenerateBook(ctx, driving.BookRequest{
		Themes: []domain.Theme{
			{ID: "ta", Label: "Alpha", ChunkIDs: aIDs},
			{ID: "tb", Label: "Beta", ChunkIDs: bIDs},
		},
		TargetChapterLength: 800,
		MaxChunksPerChapter: 30,
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, chapters, 1)
	assert.Equal(t, "Finished chapter.", chapters[0].Content)
	assert.Equal(t, 1, chapters[0].Number)
}

func TestSummarizeChapter(t *testing.T) {
	short := "One paragraph.\n\nTwo paragraphs."
	assert.Equal(t, short, summarizeChapter(short))

	head := strings.Repeat("h", 200)
	tail := strings.Repeat("t", 200)
	long := head + "\n\nmiddle\n\n" + tail
	got := summarizeChapter(long)
	assert.Equal(t, strings.Repeat("h", 150)+" ... "+strings.Repeat("t", 150), got)
}

func TestSplitBatches(t *testing.T) {
	assert.Equal(t, []batchSpan{{0, 20}, {20, 40}, {40, 45}}, splitBatches(45, 20))
	assert.Empty(t, splitBatches(0, 20))
}
