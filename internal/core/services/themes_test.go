package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

var topicWords = []string{"astronomy", "gardening", "banking"}

// topicChunks returns perTopic chunks for each topic. Every topic in topicWords
// owns one axis of a shared space, so separate calls can be combined.
func topicChunks(perTopic int, topics ...string) []domain.Chunk {
	dim := len(topicWords) + 1
	var chunks []domain.Chunk
	for _, topic := range topics {
		axis := topicAxis(topic)
		for i := 0; i < perTopic; i++ {
			emb := make([]float32, dim)
			emb[axis] = 10
			emb[dim-1] = float32(i%4) * 0.05
			chunks = append(chunks, domain.Chunk{
				ID:         fmt.Sprintf("%s-%02d", topic, i),
				DocumentID: "doc-" + topic,
				Content:    fmt.Sprintf("Notes about %s number %d. More %s details.", topic, i, topic),
				Page:       i + 1,
				Index:      i,
				Embedding:  emb,
			})
		}
	}
	return chunks
}

func topicAxis(topic string) int {
	for i, w := range topicWords {
		if w == topic {
			return i
		}
	}
	panic("unknown topic " + topic)
}

// labellingLLM names each cluster after the topic word found in its excerpts.
func labellingLLM() *mockLLM {
	return &mockLLM{respond: func(prompt string, _ driven.GenerateOptions) (string, error) {
		for _, w := range topicWords {
			if strings.Contains(prompt, w) {
				return fmt.Sprintf("Theme: %s\nDescription: All about %s.", strings.ToUpper(w[:1])+w[1:], w), nil
			}
		}
		return "", errors.New("unknown topic")
	}}
}

func newTestThemeService(llm driven.LLMService) *ThemeService {
	svc := NewThemeService(llm)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("theme-%d", n)
	}
	return svc
}

func TestDiscoverThemes_TooFewChunks(t *testing.T) {
	llm := labellingLLM()
	svc := newTestThemeService(llm)

	chunks := topicChunks(1, "astronomy", "gardening")
	chunks = append(chunks, domain.Chunk{ID: "no-embedding", Content: "text"})

	themes, err := svc.DiscoverThemes(context.Background(), chunks, driving.DiscoverOptions{})

	require.NoError(t, err)
	assert.NotNil(t, themes)
	assert.Empty(t, themes)
	assert.Empty(t, llm.prompts)
}

func TestDiscoverThemes_ThreeTopics(t *testing.T) {
	llm := labellingLLM()
	svc := newTestThemeService(llm)
	chunks := topicChunks(10, topicWords...)

	var mu sync.Mutex
	var events []domain.Progress
	themes, err := svc.DiscoverThemes(context.Background(), chunks, driving.DiscoverOptions{
		Seed: 42,
		Progress: func(p domain.Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.Len(t, themes, 3)

	labels := map[string]bool{}
	members := map[string]bool{}
	for _, th := range themes {
		labels[th.Label] = true
		assert.Len(t, th.ChunkIDs, 10)
		assert.InDelta(t, 1.0/3.0, th.Importance, 1e-9)
		assert.NotEmpty(t, th.Description)
		assert.LessOrEqual(t, len(th.Keywords), domain.MaxKeywords)
		assert.False(t, th.CreatedAt.IsZero())

		prefix := strings.SplitN(th.ChunkIDs[0], "-", 2)[0]
		for _, id := range th.ChunkIDs {
			assert.True(t, strings.HasPrefix(id, prefix), "theme %s mixes topics", th.Label)
			assert.False(t, members[id], "chunk %s in two themes", id)
			members[id] = true
		}
		assert.Contains(t, th.Keywords, prefix)
	}
	assert.Equal(t, map[string]bool{"Astronomy": true, "Gardening": true, "Banking": true}, labels)
	assert.InDelta(t, 1.0, domain.TotalImportance(themes), 1e-9)
	assert.Equal(t, domain.DiscoveryDone, svc.State())

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.StageDone, last.Stage)
	assert.Equal(t, 100.0, last.Percent)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
	}
}

func TestDiscoverThemes_RankedByImportance(t *testing.T) {
	svc := newTestThemeService(labellingLLM())
	chunks := append(topicChunks(4, "astronomy"), topicChunks(12, "banking")...)
	chunks = append(chunks, topicChunks(8, "gardening")...)

	themes, err := svc.DiscoverThemes(context.Background(), chunks, driving.DiscoverOptions{NThemes: 3, Seed: 1})
	require.NoError(t, err)
	require.Len(t, themes, 3)

	assert.Equal(t, "Banking", themes[0].Label)
	assert.Equal(t, "Gardening", themes[1].Label)
	assert.Equal(t, "Astronomy", themes[2].Label)
	assert.InDelta(t, 0.5, themes[0].Importance, 1e-9)
}

func TestDiscoverThemes_SameSeedSameThemes(t *testing.T) {
	chunks := topicChunks(6, topicWords...)

	run := func() []domain.Theme {
		themes, err := newTestThemeService(labellingLLM()).DiscoverThemes(
			context.Background(), chunks, driving.DiscoverOptions{Seed: 9})
		require.NoError(t, err)
		return themes
	}
	a, b := run(), run()

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Label, b[i].Label)
		assert.Equal(t, a[i].ChunkIDs, b[i].ChunkIDs)
	}
}

func TestDiscoverThemes_DiscardsSmallClusters(t *testing.T) {
	svc := newTestThemeService(labellingLLM())
	chunks := append(topicChunks(10, "astronomy", "gardening"), topicChunks(2, "banking")...)

	themes, err := svc.DiscoverThemes(context.Background(), chunks, driving.DiscoverOptions{
		NThemes:        3,
		MinClusterSize: 3,
		Seed:           5,
	})
	require.NoError(t, err)

	require.Len(t, themes, 2)
	for _, th := range themes {
		assert.NotEqual(t, "Banking", th.Label)
		// importance is relative to the retained chunks
		assert.InDelta(t, 0.5, th.Importance, 1e-9)
	}
}

func TestDiscoverThemes_LabelFallback(t *testing.T) {
	llm := &mockLLM{respond: func(prompt string, _ driven.GenerateOptions) (string, error) {
		if strings.Contains(prompt, "astronomy") {
			return "Theme: Astronomy", nil
		}
		if strings.Contains(prompt, "gardening") {
			return "no idea", nil
		}
		return "", errors.New("model offline")
	}}
	svc := newTestThemeService(llm)

	themes, err := svc.DiscoverThemes(context.Background(), topicChunks(5, topicWords...),
		driving.DiscoverOptions{NThemes: 3, Seed: 2})
	require.NoError(t, err)
	require.Len(t, themes, 3)

	var labels []string
	for _, th := range themes {
		labels = append(labels, th.Label)
	}
	assert.Contains(t, labels, "Astronomy")
	defaults := 0
	for _, l := range labels {
		if strings.HasPrefix(l, "Theme ") {
			defaults++
		}
	}
	assert.Equal(t, 2, defaults)
}

func TestDiscoverThemes_NilLLMUsesDefaultLabels(t *testing.T) {
	svc := newTestThemeService(nil)

	themes, err := svc.DiscoverThemes(context.Background(), topicChunks(4, "astronomy", "banking"),
		driving.DiscoverOptions{NThemes: 2, Seed: 1})
	require.NoError(t, err)
	require.Len(t, themes, 2)

	assert.ElementsMatch(t, []string{"Theme 1", "Theme 2"}, []string{themes[0].Label, themes[1].Label})
}

func TestDiscoverThemes_LabelPromptSamples(t *testing.T) {
	llm := labellingLLM()
	svc := newTestThemeService(llm)

	_, err := svc.DiscoverThemes(context.Background(), topicChunks(8, "astronomy", "banking"),
		driving.DiscoverOptions{NThemes: 2, Seed: 1})
	require.NoError(t, err)

	prompts := llm.promptsMatching("Identify the common theme")
	require.Len(t, prompts, 2)
	for _, p := range prompts {
		assert.Contains(t, p, "[5]")
		assert.NotContains(t, p, "[6]")
	}
	for _, o := range llm.opts {
		assert.Equal(t, labelTemperature, o.Temperature)
		assert.Equal(t, labelMaxTokens, o.MaxTokens)
	}
}

func TestDiscoverThemes_MismatchedDimensions(t *testing.T) {
	svc := newTestThemeService(nil)
	chunks := topicChunks(3, "astronomy")
	chunks[1].Embedding = []float32{1, 2, 3, 4, 5}

	_, err := svc.DiscoverThemes(context.Background(), chunks, driving.DiscoverOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDiscoverThemes_CancelledDuringClustering(t *testing.T) {
	svc := newTestThemeService(labellingLLM())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	themes, err := svc.DiscoverThemes(ctx, topicChunks(5, topicWords...), driving.DiscoverOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, themes)
}

func TestDiscoverThemes_CancelledDuringCountSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	llm := labellingLLM()
	svc := newTestThemeService(llm)

	themes, err := svc.DiscoverThemes(ctx, topicChunks(10, topicWords...), driving.DiscoverOptions{
		Seed: 42,
		Progress: func(p domain.Progress) {
			if p.Stage == domain.StageClustering && p.Percent > 0 {
				// Stop after the first cluster count trial.
				cancel()
			}
		},
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, themes, 2)
	assert.Empty(t, llm.prompts)
	assert.ElementsMatch(t, []string{"Theme 1", "Theme 2"}, []string{themes[0].Label, themes[1].Label})
	assert.InDelta(t, 1.0, domain.TotalImportance(themes), 1e-9)
}

func TestDiscoverThemes_CancelledDuringLabelling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	llm := &mockLLM{respond: func(prompt string, _ driven.GenerateOptions) (string, error) {
		// The first label succeeds, then the run is cancelled.
		cancel()
		return "Theme: First", nil
	}}
	svc := newTestThemeService(llm)

	themes, err := svc.DiscoverThemes(ctx, topicChunks(5, topicWords...), driving.DiscoverOptions{NThemes: 3, Seed: 4})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, themes, 3)
	assert.Len(t, llm.prompts, 1)
	var labels []string
	for _, th := range themes {
		labels = append(labels, th.Label)
	}
	assert.Contains(t, labels, "First")
	assert.InDelta(t, 1.0, domain.TotalImportance(themes), 1e-9)
}

func TestRefineTheme(t *testing.T) {
	svc := newTestThemeService(nil)
	orig := domain.Theme{ID: "t1", Label: "Old", Description: "Old desc", ChunkIDs: []string{"a"}}

	label := "  New Label "
	refined := svc.RefineTheme(orig, &label, nil)

	assert.Equal(t, "New Label", refined.Label)
	assert.Equal(t, "Old desc", refined.Description)
	assert.Equal(t, "t1", refined.ID)
	assert.Equal(t, "Old", orig.Label)

	refined.ChunkIDs[0] = "changed"
	assert.Equal(t, "a", orig.ChunkIDs[0])

	desc := "New desc"
	refined = svc.RefineTheme(orig, nil, &desc)
	assert.Equal(t, "Old", refined.Label)
	assert.Equal(t, "New desc", refined.Description)
}

func TestMergeThemes(t *testing.T) {
	svc := newTestThemeService(nil)
	a := domain.Theme{
		ID: "a", Label: "Solar", Description: "Sun power.",
		ChunkIDs: []string{"c1", "c2", "c3"}, Keywords: []string{"solar", "panels"},
	}
	b := domain.Theme{
		ID: "b", Label: "Wind", Description: "Wind power.",
		ChunkIDs: []string{"c3", "c4"}, Keywords: []string{"wind", "solar"},
	}

	merged, err := svc.MergeThemes([]domain.Theme{a, b}, "Renewables", 10)
	require.NoError(t, err)

	assert.Equal(t, "Renewables", merged.Label)
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, merged.ChunkIDs)
	assert.Equal(t, []string{"solar", "panels", "wind"}, merged.Keywords)
	assert.Equal(t, []string{"a", "b"}, merged.MergedFrom)
	assert.Equal(t, "Sun power. Wind power.", merged.Description)
	assert.InDelta(t, 0.4, merged.Importance, 1e-9)
	assert.Equal(t, "theme-1", merged.ID)
}

func TestMergeThemes_EmptyLabelKeepsFirst(t *testing.T) {
	svc := newTestThemeService(nil)
	themes := []domain.Theme{{ID: "a", Label: "Alpha"}, {ID: "b", Label: "Beta"}}

	merged, err := svc.MergeThemes(themes, "  ", 5)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", merged.Label)
}

func TestMergeThemes_InvalidInput(t *testing.T) {
	svc := newTestThemeService(nil)

	_, err := svc.MergeThemes([]domain.Theme{{ID: "a"}}, "x", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.MergeThemes([]domain.Theme{{ID: "a"}, {ID: "b"}}, "x", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.MergeThemes([]domain.Theme{{ID: "a"}, {ID: "a"}}, "x", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
