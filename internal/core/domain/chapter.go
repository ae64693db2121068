package domain

import "strings"

// Citation points a chapter back at a source location.
type Citation struct {
	// Marker is the bracketed number found in the content.
	Marker int `json:"marker"`

	// ChunkID is the chunk the marker resolved to.
	ChunkID string `json:"chunk_id"`

	// DocumentID is the owning document of the cited chunk.
	DocumentID string `json:"document_id"`

	// Page is the page of the cited chunk.
	Page int `json:"page"`
}

// ChapterState tracks how far generation of a chapter has progressed.
type ChapterState string

// Chapter states, in the order they are reached.
const (
	ChapterPlanned            ChapterState = "planned"
	ChapterOutlined           ChapterState = "outlined"
	ChapterContentPending     ChapterState = "content_pending"
	ChapterContentComplete    ChapterState = "content_complete"
	ChapterCitationsExtracted ChapterState = "citations_extracted"
)

// Chapter is generated prose for one theme.
type Chapter struct {
	ID      string `json:"id"`
	ThemeID string `json:"theme_id"`
	Title   string `json:"title"`
	Number  int    `json:"number"`

	// Content is empty until generation completes.
	Content string `json:"content"`
	Outline string `json:"outline"`

	SourceChunkIDs []string   `json:"source_chunk_ids"`
	Citations      []Citation `json:"citations"`

	// WordCount is derived from Content. Use SetContent to keep it current.
	WordCount int  `json:"word_count"`
	Generated bool `json:"generated"`

	State ChapterState `json:"state"`
}

// SetContent replaces the content and recomputes the word count.
func (c *Chapter) SetContent(content string) {
	c.Content = content
	c.WordCount = CountWords(content)
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// TotalWords sums chapter word counts, recomputed from content.
func TotalWords(chapters []Chapter) int {
	total := 0
	for _, c := range chapters {
		total += CountWords(c.Content)
	}
	return total
}

// TotalCitations sums chapter citation counts.
func TotalCitations(chapters []Chapter) int {
	total := 0
	for _, c := range chapters {
		total += len(c.Citations)
	}
	return total
}
