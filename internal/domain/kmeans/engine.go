// Package kmeans implements Lloyd's k-means over dense float vectors with
// Euclidean distance.
package kmeans

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/okian/spendseg/pkg/logger"
)

// Default engine configuration constants.
const (
	DefaultTolerance     = 1e-4
	DefaultMaxIterations = 300
)

// Point is a position in feature space.
type Point = []float64

// Result is the outcome of a single run. Assignments are 0-based centroid
// indices aligned with the input points.
type Result struct {
	K           int       `json:"k"`
	Centroids   []Point   `json:"centroids"`
	Assignments []int     `json:"assignments"`
	Clusters    [][]int   `json:"clusters"`  // member point indices per centroid
	Distances   []float64 `json:"distances"` // point to its assigned centroid
	Inertia     float64   `json:"inertia"`
	Iterations  int       `json:"iterations"`
	Converged   bool      `json:"converged"`
	// InertiaTrace holds the inertia measured after each in-loop assignment,
	// against the centroids that produced it.
	InertiaTrace []float64 `json:"inertia_trace"`
}

// Engine runs k-means. It owns a random source and is not safe for
// concurrent use; create one engine per run.
type Engine struct {
	rng           *rand.Rand
	tolerance     float64
	maxIterations int
	logger        logger.Logger
}

// NewEngine creates an Engine. Without WithSeed or WithRand the random
// source is seeded from the clock.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
		logger:        logger.Default().Named("kmeans"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // clustering, not crypto
	}
	return e
}

// Tolerance returns the configured convergence tolerance.
func (e *Engine) Tolerance() float64 { return e.tolerance }

// MaxIterations returns the configured iteration cap.
func (e *Engine) MaxIterations() int { return e.maxIterations }

// Run clusters points into k groups. Points are used as given; normalizing
// them is the caller's job.
func (e *Engine) Run(ctx context.Context, points []Point, k int) (*Result, error) {
	if err := validate(points, k); err != nil {
		return nil, err
	}

	centroids, err := e.InitializeCentroids(points, k)
	if err != nil {
		return nil, err
	}

	var (
		trace     = make([]float64, 0, e.maxIterations)
		iteration int
		converged bool
	)
	for iteration < e.maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("kmeans run interrupted at iteration %d: %w", iteration, err)
		}
		iteration++

		assignments := e.Assign(points, centroids)
		trace = append(trace, Inertia(points, centroids, assignments))

		next := e.Update(points, assignments, centroids)
		done := e.Converged(centroids, next)
		centroids = next
		if done {
			converged = true
			break
		}
	}

	// Final pass so the returned assignments match the returned centroids.
	assignments := e.Assign(points, centroids)
	distances := make([]float64, len(points))
	inertia := 0.0
	for i, p := range points {
		sq := squaredDistance(p, centroids[assignments[i]])
		distances[i] = math.Sqrt(sq)
		inertia += sq
	}

	e.logger.Debug(ctx, "kmeans run finished",
		logger.Int("k", k),
		logger.Int("points", len(points)),
		logger.Int("iterations", iteration),
		logger.Bool("converged", converged),
		logger.Float64("inertia", inertia),
	)

	return &Result{
		K:            k,
		Centroids:    centroids,
		Assignments:  assignments,
		Clusters:     Group(assignments, k),
		Distances:    distances,
		Inertia:      inertia,
		Iterations:   iteration,
		Converged:    converged,
		InertiaTrace: trace,
	}, nil
}

// InitializeCentroids picks k distinct points, uniformly and without
// replacement, as starting centroids. The returned centroids are copies.
func (e *Engine) InitializeCentroids(points []Point, k int) ([]Point, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if k > len(points) {
		return nil, fmt.Errorf("%w: k=%d, points=%d", ErrTooFewPoints, k, len(points))
	}

	idx := e.rng.Perm(len(points))[:k]
	centroids := make([]Point, k)
	for c, i := range idx {
		centroids[c] = clone(points[i])
	}
	return centroids, nil
}

// Assign maps every point to its nearest centroid. Ties go to the lowest
// centroid index.
func (e *Engine) Assign(points []Point, centroids []Point) []int {
	assignments := make([]int, len(points))
	for i, p := range points {
		best := 0
		bestDist := math.Inf(1)
		for c, centroid := range centroids {
			if d := squaredDistance(p, centroid); d < bestDist {
				bestDist = d
				best = c
			}
		}
		assignments[i] = best
	}
	return assignments
}

// Update recomputes each centroid as the mean of its members. A centroid with
// no members keeps its previous position.
func (e *Engine) Update(points []Point, assignments []int, previous []Point) []Point {
	k := len(previous)
	sums := make([]Point, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make(Point, len(previous[c]))
	}

	for i, p := range points {
		c := assignments[i]
		counts[c]++
		for d, v := range p {
			sums[c][d] += v
		}
	}

	next := make([]Point, k)
	for c := range sums {
		if counts[c] == 0 {
			next[c] = clone(previous[c])
			continue
		}
		for d := range sums[c] {
			sums[c][d] /= float64(counts[c])
		}
		next[c] = sums[c]
	}
	return next
}

// Converged reports whether every centroid moved less than the tolerance.
// A centroid that did not move at all always counts as converged, so a zero
// tolerance stops only when centroids repeat exactly.
func (e *Engine) Converged(old, next []Point) bool {
	if len(old) != len(next) {
		return false
	}
	for c := range old {
		shift := math.Sqrt(squaredDistance(old[c], next[c]))
		if shift != 0 && shift >= e.tolerance {
			return false
		}
	}
	return true
}

// Inertia is the sum of squared distances from points to their assigned centroids.
func Inertia(points []Point, centroids []Point, assignments []int) float64 {
	total := 0.0
	for i, p := range points {
		total += squaredDistance(p, centroids[assignments[i]])
	}
	return total
}

// Distance is the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

// Group collects point indices per cluster, preserving input order.
func Group(assignments []int, k int) [][]int {
	clusters := make([][]int, k)
	for c := range clusters {
		clusters[c] = []int{}
	}
	for i, c := range assignments {
		clusters[c] = append(clusters[c], i)
	}
	return clusters
}

func validate(points []Point, k int) error {
	if len(points) == 0 {
		return ErrEmptyInput
	}
	if k <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if k > len(points) {
		return fmt.Errorf("%w: k=%d, points=%d", ErrTooFewPoints, k, len(points))
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return fmt.Errorf("%w: point %d has %d, want %d", ErrDimensionMismatch, i, len(p), dim)
		}
	}
	return nil
}

func squaredDistance(a, b Point) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone(p Point) Point {
	out := make(Point, len(p))
	copy(out, p)
	return out
}
