package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// Clustering defaults.
const (
	defaultRestarts = 20
	defaultMaxIter  = 300
)

// ClusterOptions configures k-means. The same Seed always yields the same partition.
type ClusterOptions struct {
	// Seed drives centroid initialisation.
	Seed uint64

	// Restarts is the number of independent initialisations per k.
	Restarts int

	// MaxIter bounds Lloyd iterations per restart.
	MaxIter int
}

func (o ClusterOptions) withDefaults() ClusterOptions {
	if o.Restarts <= 0 {
		o.Restarts = defaultRestarts
	}
	if o.MaxIter <= 0 {
		o.MaxIter = defaultMaxIter
	}
	return o
}

// clustering is one partition of the embedding set.
type clustering struct {
	k       int
	labels  []int
	inertia float64
	score   float64
}

// kMeans partitions points into k clusters, keeping the restart with the lowest
// inertia. Restarts run concurrently but each owns a generator derived from
// (Seed, restart), and ties go to the lowest restart, so the result is deterministic.
func kMeans(ctx context.Context, points [][]float64, k int, opts ClusterOptions) (clustering, error) {
	opts = opts.withDefaults()
	if k <= 0 || k > len(points) {
		return clustering{}, fmt.Errorf("kmeans: k=%d out of range for %d points", k, len(points))
	}

	runs := make([]clustering, opts.Restarts)
	g, gctx := errgroup.WithContext(ctx)
	for r := range opts.Restarts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(r)))
			labels, inertia := lloyd(points, k, rng, opts.MaxIter)
			runs[r] = clustering{k: k, labels: labels, inertia: inertia}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return clustering{}, err
	}

	best := runs[0]
	for _, run := range runs[1:] {
		if run.inertia < best.inertia {
			best = run
		}
	}
	return best, nil
}

// lloyd runs one k-means++ initialisation followed by Lloyd iterations.
func lloyd(points [][]float64, k int, rng *rand.Rand, maxIter int) ([]int, float64) {
	n := len(points)
	dim := len(points[0])
	centers := seedCenters(points, k, rng)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	for range maxIter {
		changed := false
		for i, p := range points {
			c := nearest(p, centers)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := labels[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += v
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				// Re-seed an empty cluster at the point farthest from its centre.
				far := farthestPoint(points, labels, centers)
				copy(centers[c], points[far])
				labels[far] = c
				continue
			}
			for d := range sums[c] {
				centers[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	var inertia float64
	for i, p := range points {
		inertia += sqDist(p, centers[labels[i]])
	}
	return labels, inertia
}

// seedCenters picks k initial centres with k-means++ weighting.
func seedCenters(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centers := make([][]float64, 0, k)
	centers = append(centers, clonePoint(points[rng.IntN(n)]))

	d2 := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i, p := range points {
			d2[i] = sqDist(p, centers[nearest(p, centers)])
			total += d2[i]
		}
		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, w := range d2 {
				acc += w
				if acc >= target {
					next = i
					break
				}
			}
		}
		centers = append(centers, clonePoint(points[next]))
	}
	return centers
}

func nearest(p []float64, centers [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(p, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func farthestPoint(points [][]float64, labels []int, centers [][]float64) int {
	far, farDist := 0, -1.0
	for i, p := range points {
		if labels[i] < 0 {
			continue
		}
		if d := sqDist(p, centers[labels[i]]); d > farDist {
			far, farDist = i, d
		}
	}
	return far
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clonePoint(p []float64) []float64 {
	return append([]float64(nil), p...)
}

// distanceMatrix holds pairwise Euclidean distances, computed once per run
// and shared by every silhouette evaluation.
type distanceMatrix struct {
	n    int
	dist []float32
}

func newDistanceMatrix(points [][]float64) *distanceMatrix {
	n := len(points)
	m := &distanceMatrix{n: n, dist: make([]float32, n*n)}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := float32(math.Sqrt(sqDist(points[i], points[j])))
			m.dist[i*n+j] = d
			m.dist[j*n+i] = d
		}
	}
	return m
}

func (m *distanceMatrix) at(i, j int) float64 {
	return float64(m.dist[i*m.n+j])
}

// silhouette returns the mean silhouette coefficient of labels.
// Points alone in their cluster score 0. Fewer than two non-empty clusters score -1.
func silhouette(m *distanceMatrix, labels []int, k int) float64 {
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	nonEmpty := 0
	for _, s := range sizes {
		if s > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return -1
	}

	var total float64
	sums := make([]float64, k)
	for i, li := range labels {
		clear(sums)
		for j, lj := range labels {
			if i != j {
				sums[lj] += m.at(i, j)
			}
		}
		if sizes[li] <= 1 {
			continue
		}
		a := sums[li] / float64(sizes[li]-1)
		b := math.Inf(1)
		for c := range k {
			if c == li || sizes[c] == 0 {
				continue
			}
			if mean := sums[c] / float64(sizes[c]); mean < b {
				b = mean
			}
		}
		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(len(labels))
}

// selectClusterCount tries every k in [2, maxK] and keeps the partition with
// the highest silhouette score. Ties keep the smaller k. onTrial is called after
// each k with the trial index (1-based) and total trial count.
func selectClusterCount(
	ctx context.Context,
	points [][]float64,
	maxK int,
	opts ClusterOptions,
	onTrial func(k, trial, trials int, score float64),
) (clustering, error) {
	if maxK < 2 {
		maxK = 2
	}
	if maxK > len(points) {
		maxK = len(points)
	}

	dm := newDistanceMatrix(points)
	trials := maxK - 1
	var best clustering
	found := false
	for k := 2; k <= maxK; k++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}
		c, err := kMeans(ctx, points, k, opts)
		if err != nil {
			return best, err
		}
		c.score = silhouette(dm, c.labels, k)
		if !found || c.score > best.score {
			best = c
			found = true
		}
		if onTrial != nil {
			onTrial(k, k-1, trials, c.score)
		}
	}
	return best, nil
}

// toFloat64 converts embeddings for clustering arithmetic.
func toFloat64(vectors [][]float32) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		p := make([]float64, len(v))
		for j, x := range v {
			p[j] = float64(x)
		}
		out[i] = p
	}
	return out
}
