package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChapter_SetContentRecomputesWordCount(t *testing.T) {
	var ch Chapter
	ch.SetContent("alpha beta\n\ngamma")
	assert.Equal(t, 3, ch.WordCount)

	ch.SetContent("")
	assert.Equal(t, 0, ch.WordCount)
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one  two\tthree\nfour", 4},
		{"[1] cited text.", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountWords(tt.in), tt.in)
	}
}

func TestTotals(t *testing.T) {
	chapters := []Chapter{
		{Content: "a b", WordCount: 99, Citations: []Citation{{}, {}}},
		{Content: "c"},
	}
	// Stale stored counts are ignored.
	assert.Equal(t, 3, TotalWords(chapters))
	assert.Equal(t, 2, TotalCitations(chapters))
}
