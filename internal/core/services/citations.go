package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// citationMarkers returns the distinct bracketed numbers in content, in order of first appearance.
func citationMarkers(content string) []int {
	seen := make(map[int]bool)
	var markers []int
	for _, m := range citationMarker.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		markers = append(markers, n)
	}
	return markers
}

// extractCitations resolves each distinct [n] marker to the n-th chunk of
// chunkIDs (1-based) and looks up its document and page. Markers outside the
// list are ignored. Distinct markers pointing at the same page each produce
// their own citation.
func (s *SynthesisService) extractCitations(
	ctx context.Context, content string, chunkIDs []string,
) ([]domain.Citation, error) {
	citations := []domain.Citation{}
	for _, n := range citationMarkers(content) {
		if n < 1 || n > len(chunkIDs) {
			logger.Debug("Ignoring citation [%d], only %d sources", n, len(chunkIDs))
			continue
		}
		id := chunkIDs[n-1]
		c, err := s.store.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Citation [%d] points at missing chunk %s", n, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve citation [%d]: %w", n, err)
		}
		citations = append(citations, domain.Citation{
			Marker:     n,
			ChunkID:    id,
			DocumentID: c.DocumentID,
			Page:       c.Page,
		})
	}
	return citations, nil
}
