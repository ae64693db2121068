// Package vecmath holds the brute-force similarity search shared by the
// stores that keep embeddings in process.
package vecmath

import (
	"math"
	"sort"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// CosineDistance returns 1 - cosine similarity. Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := range n {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// TopK ranks candidates by distance to query and returns the k closest.
// Candidates without embeddings or rejected by filters are skipped.
// Equal distances keep candidate order.
func TopK(candidates []domain.Chunk, query []float32, k int, filters domain.SearchFilters) []domain.RetrievedChunk {
	hits := make([]domain.RetrievedChunk, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if !c.HasEmbedding() || !filters.Matches(c) {
			continue
		}
		hits = append(hits, domain.RetrievedChunk{Chunk: *c, Distance: CosineDistance(query, c.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
