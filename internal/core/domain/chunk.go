package domain

// Chunk is a bounded span of document text with a precomputed embedding.
// Chunks are produced outside this module and consumed read-only.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string `json:"id"`

	// DocumentID links to the owning document.
	DocumentID string `json:"document_id"`

	// Content is the text content of this chunk.
	Content string `json:"content"`

	// Page is the 1-based page number the chunk starts on. Zero when unknown.
	Page int `json:"page"`

	// Index is the sequential position of the chunk within its document.
	Index int `json:"index"`

	// StartChar and EndChar are character offsets into the document text.
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`

	// TokenCount is an estimate of the number of tokens in Content.
	TokenCount int `json:"token_count"`

	// Embedding is the vector representation. All chunks of one collection
	// share the same embedding length.
	Embedding []float32 `json:"embedding,omitempty"`

	// ThemeID is the theme this chunk was assigned to by the last discovery run.
	ThemeID string `json:"theme_id,omitempty"`
}

// HasEmbedding reports whether the chunk carries a non-empty embedding.
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// ShortDocumentID returns the first 8 characters of the document identifier.
func (c Chunk) ShortDocumentID() string {
	return ShortID(c.DocumentID)
}

// ShortID truncates an identifier to 8 characters for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Metadata returns the chunk's locating fields as a flat map,
// the shape vector stores hand back alongside search hits.
func (c Chunk) Metadata() map[string]any {
	md := map[string]any{
		"document_id": c.DocumentID,
		"page":        c.Page,
		"chunk_index": c.Index,
		"start_char":  c.StartChar,
		"end_char":    c.EndChar,
		"token_count": c.TokenCount,
	}
	if c.ThemeID != "" {
		md["theme_id"] = c.ThemeID
	}
	return md
}
