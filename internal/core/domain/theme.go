package domain

import "time"

// MaxKeywords bounds the keyword list carried by a theme.
const MaxKeywords = 10

// Theme is a labelled cluster of chunks representing one topic.
// Themes are superseded, not mutated, when the underlying documents change.
type Theme struct {
	// ID is the unique identifier for the theme.
	ID string `json:"id"`

	// Label is the human-readable name, cleaned of markup and prefixes.
	Label string `json:"label"`

	// Description is an optional one or two sentence summary.
	Description string `json:"description,omitempty"`

	// ChunkIDs are the member chunks. Never empty for a retained theme.
	ChunkIDs []string `json:"chunk_ids"`

	// Keywords are frequency-ranked terms, at most MaxKeywords.
	Keywords []string `json:"keywords"`

	// Importance is member count divided by the total member count of the run.
	Importance float64 `json:"importance"`

	// ChapterOrder is the 1-based chapter position once planned. Zero if unplanned.
	ChapterOrder int `json:"chapter_order,omitempty"`

	// MergedFrom lists the theme IDs this theme was merged from.
	MergedFrom []string `json:"merged_from,omitempty"`

	// CreatedAt is when the theme was produced.
	CreatedAt time.Time `json:"created_at"`
}

// Size returns the number of member chunks.
func (t Theme) Size() int {
	return len(t.ChunkIDs)
}

// Clone returns a deep copy so callers can derive new records safely.
func (t Theme) Clone() Theme {
	c := t
	c.ChunkIDs = append([]string(nil), t.ChunkIDs...)
	c.Keywords = append([]string(nil), t.Keywords...)
	c.MergedFrom = append([]string(nil), t.MergedFrom...)
	return c
}

// ThemeIDs returns the identifiers of the given themes in order.
func ThemeIDs(themes []Theme) []string {
	ids := make([]string, len(themes))
	for i, t := range themes {
		ids[i] = t.ID
	}
	return ids
}

// TotalImportance sums the importance scores of the given themes.
func TotalImportance(themes []Theme) float64 {
	var sum float64
	for _, t := range themes {
		sum += t.Importance
	}
	return sum
}
