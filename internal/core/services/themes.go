package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// Ensure ThemeService implements the interface.
var _ driving.ThemeService = (*ThemeService)(nil)

// Discovery tuning.
const (
	minEmbeddedChunks  = 3
	labelSampleSize    = 5
	labelExcerptLength = 500
	labelTemperature   = 0.3
	labelMaxTokens     = 200
)

// ThemeService groups embedded chunks into labelled themes.
// A single instance must not run two discoveries at once.
type ThemeService struct {
	llm     driven.LLMService
	prompts promptRenderer

	mu    sync.Mutex
	state domain.DiscoveryState

	now   func() time.Time
	newID func() string
}

// NewThemeService creates a theme service. llm may be nil, in which case
// every theme gets its positional default label.
func NewThemeService(llm driven.LLMService) *ThemeService {
	return &ThemeService{
		llm:   llm,
		state: domain.DiscoveryIdle,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *ThemeService) SetPromptStore(store driven.PromptStore) {
	s.prompts.store = store
}

// State returns the state of the most recent discovery run.
func (s *ThemeService) State() domain.DiscoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ThemeService) setState(state domain.DiscoveryState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	logger.Debug("Discovery state: %s", state)
}

// cluster is a retained group of chunks before labelling.
type cluster struct {
	chunks []domain.Chunk
}

// DiscoverThemes clusters the embedded chunks into themes ranked by importance.
//
// Fewer than three embedded chunks is not an error: the result is empty.
// If ctx is cancelled during the cluster count search, the best partition
// found so far is kept; cancellation before any partition exists returns
// nothing. Clusters not yet labelled get their default labels and the themes
// are returned together with the context error.
func (s *ThemeService) DiscoverThemes(
	ctx context.Context, chunks []domain.Chunk, opts driving.DiscoverOptions,
) ([]domain.Theme, error) {
	logger.Section("Theme Discovery")
	s.setState(domain.DiscoveryIdle)

	embedded, err := embeddedChunks(chunks)
	if err != nil {
		return nil, fmt.Errorf("discover themes: %w", err)
	}
	if len(embedded) < minEmbeddedChunks {
		logger.Warn("Only %d embedded chunks, need at least %d for theme discovery", len(embedded), minEmbeddedChunks)
		return []domain.Theme{}, nil
	}

	maxThemes := opts.MaxThemes
	if maxThemes <= 0 {
		maxThemes = domain.DefaultMaxThemes
	}
	minSize := opts.MinClusterSize
	if minSize <= 0 {
		minSize = domain.DefaultMinClusterSize
	}

	s.setState(domain.DiscoveryClustering)
	best, err := s.cluster(ctx, embedded, opts, maxThemes)
	if err != nil {
		if !isCancellation(err) || best.labels == nil {
			return nil, fmt.Errorf("discover themes: %w", err)
		}
		logger.Warn("Clustering cancelled, keeping best partition so far (k=%d)", best.k)
	}

	clusters := groupClusters(embedded, best.labels, best.k, minSize)
	logger.Info("Kept %d of %d clusters (min size %d)", len(clusters), best.k, minSize)

	s.setState(domain.DiscoveryLabeling)
	themes, labelErr := s.labelClusters(ctx, clusters, opts.Progress)

	s.setState(domain.DiscoveryRanking)
	opts.Progress.Report(domain.StageRanking, 95, "Ranking themes")
	rankThemes(themes)

	s.setState(domain.DiscoveryDone)
	opts.Progress.Report(domain.StageDone, 100, fmt.Sprintf("Discovered %d themes", len(themes)))
	if labelErr != nil {
		return themes, fmt.Errorf("discover themes: %w", labelErr)
	}
	if err != nil {
		return themes, fmt.Errorf("discover themes: %w", err)
	}
	return themes, nil
}

// embeddedChunks keeps chunks with embeddings and checks their lengths agree.
func embeddedChunks(chunks []domain.Chunk) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0, len(chunks))
	dim := 0
	for _, c := range chunks {
		if !c.HasEmbedding() {
			continue
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return nil, fmt.Errorf("%w: chunk %s has embedding length %d, expected %d",
				domain.ErrInvalidInput, c.ID, len(c.Embedding), dim)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *ThemeService) cluster(
	ctx context.Context, chunks []domain.Chunk, opts driving.DiscoverOptions, maxThemes int,
) (clustering, error) {
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vectors[i] = c.Embedding
	}
	points := toFloat64(vectors)
	copts := ClusterOptions{Seed: opts.Seed}

	if opts.NThemes > 0 {
		k := min(opts.NThemes, len(points))
		logger.Debug("Clustering into fixed k=%d", k)
		opts.Progress.Report(domain.StageClustering, 10, fmt.Sprintf("Clustering into %d groups", k))
		return kMeans(ctx, points, k, copts)
	}

	maxK := min(maxThemes, len(points)/2)
	logger.Debug("Selecting k in [2, %d] by silhouette score", maxK)
	return selectClusterCount(ctx, points, maxK, copts, func(k, trial, trials int, score float64) {
		logger.Debug("k=%d silhouette=%.4f", k, score)
		opts.Progress.Report(domain.StageClustering,
			60*float64(trial)/float64(trials),
			fmt.Sprintf("Evaluated %d clusters (score %.3f)", k, score))
	})
}

// groupClusters collects members per cluster in chunk order and drops small clusters.
func groupClusters(chunks []domain.Chunk, labels []int, k, minSize int) []cluster {
	groups := make([]cluster, k)
	for i, l := range labels {
		groups[l].chunks = append(groups[l].chunks, chunks[i])
	}
	kept := groups[:0]
	for i, g := range groups {
		if len(g.chunks) < minSize {
			logger.Debug("Discarding cluster %d with %d members", i, len(g.chunks))
			continue
		}
		kept = append(kept, g)
	}
	return kept
}

// labelClusters turns clusters into themes. Labelling failures never abort the run.
func (s *ThemeService) labelClusters(
	ctx context.Context, clusters []cluster, progress domain.ProgressFunc,
) ([]domain.Theme, error) {
	total := 0
	for _, c := range clusters {
		total += len(c.chunks)
	}

	var cancelErr error
	results := make([]domain.ItemResult[themeLabel], len(clusters))
	themes := make([]domain.Theme, 0, len(clusters))
	for i, c := range clusters {
		if cancelErr == nil {
			cancelErr = ctx.Err()
		}
		if cancelErr != nil {
			results[i] = domain.ItemResult[themeLabel]{Index: i, Err: cancelErr}
		} else {
			label, err := s.labelCluster(ctx, c)
			results[i] = domain.ItemResult[themeLabel]{Index: i, Value: label, Err: err}
		}

		lbl := themeLabel{Label: defaultThemeLabel(i + 1)}
		if results[i].Failed() {
			logger.Warn("Labelling cluster %d failed, using %q: %v", i+1, lbl.Label, results[i].Err)
		} else {
			lbl = results[i].Value
		}

		texts := make([]string, len(c.chunks))
		ids := make([]string, len(c.chunks))
		for j, ch := range c.chunks {
			texts[j] = ch.Content
			ids[j] = ch.ID
		}
		themes = append(themes, domain.Theme{
			ID:          s.newID(),
			Label:       lbl.Label,
			Description: lbl.Description,
			ChunkIDs:    ids,
			Keywords:    extractKeywords(texts, domain.MaxKeywords),
			Importance:  float64(len(c.chunks)) / float64(total),
			CreatedAt:   s.now(),
		})
		progress.Report(domain.StageLabeling,
			60+35*float64(i+1)/float64(len(clusters)),
			fmt.Sprintf("Labelled theme %d of %d: %s", i+1, len(clusters), lbl.Label))
	}
	return themes, cancelErr
}

// labelCluster asks the model to name one cluster.
func (s *ThemeService) labelCluster(ctx context.Context, c cluster) (themeLabel, error) {
	if s.llm == nil {
		return themeLabel{}, domain.ErrLLMUnavailable
	}

	var sb strings.Builder
	for i, ch := range c.chunks[:min(labelSampleSize, len(c.chunks))] {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, truncateRunes(ch.Content, labelExcerptLength))
	}
	prompt, err := s.prompts.render(domain.PromptThemeLabel, map[string]any{
		"Excerpts": strings.TrimSpace(sb.String()),
	})
	if err != nil {
		return themeLabel{}, err
	}

	resp, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		Temperature: labelTemperature,
		MaxTokens:   labelMaxTokens,
	})
	if err != nil {
		return themeLabel{}, fmt.Errorf("generate label: %w", err)
	}

	parsed := parseThemeLabel(resp)
	label, ok := parsed.Value()
	if !ok {
		return themeLabel{}, errors.New(parsed.Reason())
	}
	return label, nil
}

// rankThemes sorts by importance, highest first, keeping encounter order for ties.
func rankThemes(themes []domain.Theme) {
	sort.SliceStable(themes, func(i, j int) bool {
		return themes[i].Importance > themes[j].Importance
	})
}

// RefineTheme returns a copy of theme with the given fields replaced.
// Nil arguments leave the field unchanged.
func (s *ThemeService) RefineTheme(theme domain.Theme, newLabel, newDescription *string) domain.Theme {
	out := theme.Clone()
	if newLabel != nil {
		out.Label = strings.TrimSpace(*newLabel)
	}
	if newDescription != nil {
		out.Description = strings.TrimSpace(*newDescription)
	}
	return out
}

// MergeThemes combines themes into a new theme. Member chunks and keywords are
// unioned without duplicates, and importance is recomputed against totalChunks,
// the size of the whole collection.
func (s *ThemeService) MergeThemes(themes []domain.Theme, newLabel string, totalChunks int) (domain.Theme, error) {
	themes = distinctThemes(themes)
	if len(themes) < 2 {
		return domain.Theme{}, fmt.Errorf("merge themes: %w: need at least two distinct themes", domain.ErrInvalidInput)
	}
	if totalChunks <= 0 {
		return domain.Theme{}, fmt.Errorf("merge themes: %w: total chunk count must be positive", domain.ErrInvalidInput)
	}

	seen := make(map[string]struct{})
	var chunkIDs []string
	keywordLists := make([][]string, len(themes))
	descriptions := make([]string, 0, len(themes))
	mergedFrom := make([]string, len(themes))
	for i, t := range themes {
		mergedFrom[i] = t.ID
		keywordLists[i] = t.Keywords
		if t.Description != "" {
			descriptions = append(descriptions, t.Description)
		}
		for _, id := range t.ChunkIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			chunkIDs = append(chunkIDs, id)
		}
	}

	label := strings.TrimSpace(newLabel)
	if label == "" {
		label = themes[0].Label
	}

	return domain.Theme{
		ID:          s.newID(),
		Label:       label,
		Description: strings.Join(descriptions, " "),
		ChunkIDs:    chunkIDs,
		Keywords:    mergeKeywords(domain.MaxKeywords, keywordLists...),
		Importance:  float64(len(chunkIDs)) / float64(totalChunks),
		MergedFrom:  mergedFrom,
		CreatedAt:   s.now(),
	}, nil
}

// distinctThemes drops repeated theme IDs, keeping the first occurrence.
func distinctThemes(themes []domain.Theme) []domain.Theme {
	seen := make(map[string]struct{}, len(themes))
	out := make([]domain.Theme, 0, len(themes))
	for _, t := range themes {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
