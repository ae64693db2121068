package domain

// SearchFilters narrows a vector search. Empty fields are ignored.
type SearchFilters struct {
	// DocumentIDs restricts results to chunks of these documents.
	DocumentIDs []string

	// ThemeID restricts results to chunks assigned to this theme.
	ThemeID string
}

// IsEmpty reports whether no filter is set.
func (f SearchFilters) IsEmpty() bool {
	return len(f.DocumentIDs) == 0 && f.ThemeID == ""
}

// Matches reports whether a chunk passes the filters.
func (f SearchFilters) Matches(c *Chunk) bool {
	if f.ThemeID != "" && c.ThemeID != f.ThemeID {
		return false
	}
	if len(f.DocumentIDs) == 0 {
		return true
	}
	for _, id := range f.DocumentIDs {
		if id == c.DocumentID {
			return true
		}
	}
	return false
}

// RetrievedChunk is one ranked hit from the vector store.
type RetrievedChunk struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Distance is the cosine distance to the query (0 = identical).
	Distance float64
}

// Similarity returns 1 - Distance.
func (r RetrievedChunk) Similarity() float64 {
	return 1 - r.Distance
}

// Source is a citation-ready view of a retrieved chunk returned by a query.
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

// QueryResult is the answer to a RAG question.
type QueryResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
