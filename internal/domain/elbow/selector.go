// Package elbow picks a cluster count for k-means with the elbow heuristic.
// The result is an approximation: it finds where extra clusters stop paying
// off, which is not guaranteed to be the best k.
package elbow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/spendseg/internal/domain/kmeans"
	"github.com/okian/spendseg/pkg/logger"
)

// Default selector configuration constants.
const (
	MinK              = 2
	DefaultMaxK       = 6
	DefaultK          = 3
	DefaultThreshold  = 0.10
	DefaultIterations = 100
	pointsPerCluster  = 3
)

// Reasons reported in Selection.Reason.
const (
	ReasonShortCircuit = "short_circuit"
	ReasonElbow        = "elbow"
	ReasonDefault      = "default"
	// ReasonDefaultReplaced means the default k failed and a finite candidate
	// was used instead.
	ReasonDefaultReplaced = "default_replaced"
)

// Candidate is one evaluated k.
type Candidate struct {
	K          int
	Inertia    float64 // +Inf when the run failed
	Iterations int
	Converged  bool
	Rate       float64
	Drop       float64
	Err        error
}

// Failed reports whether the candidate run did not produce a usable inertia.
func (c Candidate) Failed() bool { return math.IsInf(c.Inertia, 1) }

// MarshalJSON encodes a failed candidate's inertia as null.
func (c Candidate) MarshalJSON() ([]byte, error) {
	out := struct {
		K          int      `json:"k"`
		Inertia    *float64 `json:"inertia"`
		Iterations int      `json:"iterations"`
		Converged  bool     `json:"converged"`
		Rate       float64  `json:"rate"`
		Drop       float64  `json:"drop"`
		Error      string   `json:"error,omitempty"`
	}{
		K:          c.K,
		Iterations: c.Iterations,
		Converged:  c.Converged,
		Rate:       c.Rate,
		Drop:       c.Drop,
	}
	if !c.Failed() {
		inertia := c.Inertia
		out.Inertia = &inertia
	}
	if c.Err != nil {
		out.Error = c.Err.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a candidate written by MarshalJSON.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var in struct {
		K          int      `json:"k"`
		Inertia    *float64 `json:"inertia"`
		Iterations int      `json:"iterations"`
		Converged  bool     `json:"converged"`
		Rate       float64  `json:"rate"`
		Drop       float64  `json:"drop"`
		Error      string   `json:"error"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Candidate{
		K:          in.K,
		Inertia:    math.Inf(1),
		Iterations: in.Iterations,
		Converged:  in.Converged,
		Rate:       in.Rate,
		Drop:       in.Drop,
	}
	if in.Inertia != nil {
		c.Inertia = *in.Inertia
	}
	if in.Error != "" {
		c.Err = errors.New(in.Error)
	}
	return nil
}

// Selection is the chosen k together with the evidence behind it.
type Selection struct {
	K          int         `json:"k"`
	Reason     string      `json:"reason"`
	Drop       float64     `json:"drop"`
	Threshold  float64     `json:"threshold"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Selector evaluates candidate cluster counts.
type Selector struct {
	maxK       int
	defaultK   int
	threshold  float64
	iterations int
	tolerance  float64
	seed       int64
	seeded     bool
	parallel   bool
	run        Runner
	logger     logger.Logger
}

// NewSelector creates a Selector. Without WithSeed the base seed comes from
// the clock.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{
		maxK:       DefaultMaxK,
		defaultK:   DefaultK,
		threshold:  DefaultThreshold,
		iterations: DefaultIterations,
		tolerance:  kmeans.DefaultTolerance,
		logger:     logger.Default().Named("elbow"),
	}
	s.run = s.runKMeans
	for _, opt := range opts {
		opt(s)
	}
	if !s.seeded {
		s.seed = time.Now().UnixNano()
	}
	return s
}

// Select returns a k of at least 2. Candidate failures never abort the
// search; the only error is a done context.
func (s *Selector) Select(ctx context.Context, points []kmeans.Point) (Selection, error) {
	n := len(points)
	if n < pointsPerCluster {
		return Selection{K: MinK, Reason: ReasonShortCircuit, Threshold: s.threshold}, nil
	}

	upper := min(s.maxK, n/pointsPerCluster)
	if upper < MinK {
		return Selection{K: s.fallbackK(n), Reason: ReasonDefault, Threshold: s.threshold}, nil
	}

	candidates, err := s.evaluateAll(ctx, points, upper)
	if err != nil {
		return Selection{}, err
	}
	computeRates(candidates)

	sel := Selection{Threshold: s.threshold, Candidates: candidates}
	best := -1
	for i := 1; i < len(candidates)-1; i++ {
		if candidates[i].Failed() {
			continue
		}
		if best == -1 || candidates[i].Drop > candidates[best].Drop {
			best = i
		}
	}
	if best != -1 && candidates[best].Drop > s.threshold {
		sel.K = candidates[best].K
		sel.Drop = candidates[best].Drop
		sel.Reason = ReasonElbow
	} else {
		if best != -1 {
			sel.Drop = candidates[best].Drop
		}
		sel.K, sel.Reason = s.fallback(n, candidates)
	}

	s.logger.Debug(ctx, "cluster count selected",
		logger.Int("k", sel.K),
		logger.String("reason", sel.Reason),
		logger.Float64("drop", sel.Drop),
		logger.Int("candidates", len(candidates)),
	)
	return sel, nil
}

func (s *Selector) evaluateAll(ctx context.Context, points []kmeans.Point, upper int) ([]Candidate, error) {
	candidates := make([]Candidate, upper-MinK+1)

	if !s.parallel {
		for i := range candidates {
			candidates[i] = s.evaluate(ctx, points, MinK+i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i := range candidates {
			g.Go(func() error {
				candidates[i] = s.evaluate(gctx, points, MinK+i)
				return nil
			})
		}
		_ = g.Wait() // candidates never return errors
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("elbow selection interrupted: %w", err)
	}
	return candidates, nil
}

// evaluate runs one candidate. Errors and panics become +Inf inertia.
func (s *Selector) evaluate(ctx context.Context, points []kmeans.Point, k int) (c Candidate) {
	c = Candidate{K: k, Inertia: math.Inf(1)}
	defer func() {
		if r := recover(); r != nil {
			c.Inertia = math.Inf(1)
			c.Err = fmt.Errorf("%w: k=%d: %v", ErrCandidatePanic, k, r)
		}
		if c.Err != nil {
			s.logger.Warn(ctx, "candidate run failed", logger.Int("k", k), logger.Error(c.Err))
		}
	}()

	res, err := s.run(ctx, points, k, s.seed+int64(k))
	if err != nil {
		c.Err = err
		return c
	}
	if res == nil || math.IsNaN(res.Inertia) {
		c.Err = fmt.Errorf("k=%d: no usable inertia", k)
		return c
	}
	c.Inertia = res.Inertia
	c.Iterations = res.Iterations
	c.Converged = res.Converged
	return c
}

// fallback resolves the default k against the evaluated candidates.
func (s *Selector) fallback(n int, candidates []Candidate) (int, string) {
	k := s.fallbackK(n)
	for _, c := range candidates {
		if c.K != k || !c.Failed() {
			continue
		}
		for _, alt := range candidates {
			if !alt.Failed() {
				return alt.K, ReasonDefaultReplaced
			}
		}
		return MinK, ReasonDefaultReplaced
	}
	return k, ReasonDefault
}

func (s *Selector) fallbackK(n int) int {
	return max(MinK, min(s.defaultK, n))
}

func (s *Selector) runKMeans(ctx context.Context, points []kmeans.Point, k int, seed int64) (*kmeans.Result, error) {
	engine := kmeans.NewEngine(
		kmeans.WithSeed(seed),
		kmeans.WithMaxIterations(s.iterations),
		kmeans.WithTolerance(s.tolerance),
		kmeans.WithLogger(s.logger),
	)
	return engine.Run(ctx, points, k)
}

// computeRates fills Rate for every candidate after the first and Drop for
// every candidate that has a successor.
func computeRates(candidates []Candidate) {
	for i := 1; i < len(candidates); i++ {
		candidates[i].Rate = ReductionRate(candidates[i-1].Inertia, candidates[i].Inertia)
	}
	for i := 1; i < len(candidates)-1; i++ {
		candidates[i].Drop = candidates[i].Rate - candidates[i+1].Rate
	}
}

// ReductionRate is the relative inertia decrease from prev to cur. It is zero
// when prev is zero or either value is infinite.
func ReductionRate(prev, cur float64) float64 {
	if prev == 0 || math.IsInf(prev, 0) || math.IsInf(cur, 0) {
		return 0
	}
	return (prev - cur) / prev
}
