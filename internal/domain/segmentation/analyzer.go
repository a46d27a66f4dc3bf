// Package segmentation runs the full clustering pipeline: feature vectors,
// cluster count selection, k-means, labeling and insights.
package segmentation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/spendseg/internal/domain/elbow"
	"github.com/okian/spendseg/internal/domain/features"
	"github.com/okian/spendseg/internal/domain/insights"
	"github.com/okian/spendseg/internal/domain/kmeans"
	"github.com/okian/spendseg/internal/domain/labeling"
	"github.com/okian/spendseg/internal/domain/model"
	"github.com/okian/spendseg/pkg/logger"
)

// Analyzer turns transactions into labeled segments. It holds only
// configuration, so one Analyzer may serve concurrent calls.
type Analyzer struct {
	maxIterations         int
	exploratoryIterations int
	tolerance             float64
	maxK                  int
	defaultK              int
	threshold             float64
	parallelSelection     bool
	seed                  *int64
	features              []string
	policy                string
	labeling              string
	categoryTable         string
	normalizeLog          bool
	logger                logger.Logger
}

// NewAnalyzer creates an Analyzer with the package defaults.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		maxIterations:         kmeans.DefaultMaxIterations,
		exploratoryIterations: elbow.DefaultIterations,
		tolerance:             kmeans.DefaultTolerance,
		maxK:                  elbow.DefaultMaxK,
		defaultK:              elbow.DefaultK,
		threshold:             elbow.DefaultThreshold,
		features:              features.DefaultFeatures(),
		policy:                insights.PolicyStrict,
		labeling:              string(labeling.StrategyAggregate),
		categoryTable:         features.TableDefault,
		logger:                logger.Default().Named("segmentation"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// runSettings is a request resolved against the analyzer defaults.
type runSettings struct {
	features      []string
	maxIterations int
	seed          int64
	table         *features.CategoryTable
	policy        insights.Policy
	strategy      labeling.Strategy
}

// Analyze runs the pipeline on req. It fails only for requests that cannot be
// clustered at all; degenerate data still produces a result.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	n := len(req.Records)
	if n == 0 {
		return nil, ErrInsufficientData
	}
	if req.K < 0 || req.K > n {
		return nil, fmt.Errorf("%w: k=%d, records=%d", ErrInvalidK, req.K, n)
	}

	rs, err := a.resolve(req)
	if err != nil {
		return nil, err
	}

	builder := features.NewBuilder(
		features.WithCategoryTable(rs.table),
		features.WithNormalizedLogAmount(a.normalizeLog),
		features.WithLogger(a.logger),
	)
	vectors, norm, err := builder.Build(ctx, req.Records, rs.features)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}

	k := req.K
	var selection *elbow.Selection
	if k == 0 {
		sel, err := a.selector(rs.seed).Select(ctx, vectors)
		if err != nil {
			return nil, fmt.Errorf("select k: %w", err)
		}
		selection = &sel
		// With fewer than two records the forced k=2 cannot be honored.
		k = min(sel.K, n)
	}

	engine := kmeans.NewEngine(
		kmeans.WithSeed(rs.seed),
		kmeans.WithMaxIterations(rs.maxIterations),
		kmeans.WithTolerance(a.tolerance),
		kmeans.WithLogger(a.logger),
	)
	run, err := engine.Run(ctx, vectors, k)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	res := &Result{
		ID:          uuid.New(),
		CreatedAt:   time.Now().UTC(),
		Records:     n,
		Centroids:   run.Centroids,
		Assignments: assignments(req.Records, run),
		Clusters:    a.summarize(req.Records, run, rs),
		Metadata: Metadata{
			K:                k,
			AutoSelected:     req.K == 0,
			Inertia:          run.Inertia,
			Iterations:       run.Iterations,
			Converged:        run.Converged,
			InertiaTrace:     run.InertiaTrace,
			AlgorithmVersion: AlgorithmVersion,
			Features:         rs.features,
			Seed:             rs.seed,
			Policy:           rs.policy.Name,
			Labeling:         string(rs.strategy),
			Selection:        selection,
			Normalization:    norm,
		},
	}

	gen := insights.NewGenerator(insights.WithPolicy(rs.policy), insights.WithLogger(a.logger))
	res.Insights = gen.Generate(ctx, insightInput(res.Clusters))
	res.Metadata.Duration = time.Since(start)

	a.logger.Info(ctx, "analysis completed",
		logger.String("id", res.ID.String()),
		logger.Int("records", n),
		logger.Int("k", k),
		logger.Bool("auto_selected", res.Metadata.AutoSelected),
		logger.Int("iterations", run.Iterations),
		logger.Bool("converged", run.Converged),
		logger.Int("insights", len(res.Insights)),
		logger.Duration("duration", res.Metadata.Duration),
	)
	return res, nil
}

func (a *Analyzer) resolve(req Request) (runSettings, error) {
	rs := runSettings{
		features:      req.Features,
		maxIterations: a.maxIterations,
	}
	if rs.features == nil {
		rs.features = append([]string(nil), a.features...)
	}
	if len(rs.features) == 0 {
		return rs, ErrNoFeatures
	}
	if req.MaxIterations > 0 {
		rs.maxIterations = req.MaxIterations
	}

	switch {
	case req.Seed != nil:
		rs.seed = *req.Seed
	case a.seed != nil:
		rs.seed = *a.seed
	default:
		rs.seed = time.Now().UnixNano()
	}

	var err error
	if rs.table, err = features.TableByName(firstNonEmpty(req.CategoryTable, a.categoryTable)); err != nil {
		return rs, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if rs.policy, err = insights.PolicyByName(firstNonEmpty(req.Policy, a.policy)); err != nil {
		return rs, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if rs.strategy, err = labeling.ParseStrategy(firstNonEmpty(req.Labeling, a.labeling)); err != nil {
		return rs, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return rs, nil
}

func (a *Analyzer) selector(seed int64) *elbow.Selector {
	return elbow.NewSelector(
		elbow.WithSeed(seed),
		elbow.WithMaxK(a.maxK),
		elbow.WithDefaultK(a.defaultK),
		elbow.WithThreshold(a.threshold),
		elbow.WithIterations(a.exploratoryIterations),
		elbow.WithTolerance(a.tolerance),
		elbow.WithParallel(a.parallelSelection),
		elbow.WithLogger(a.logger),
	)
}

func (a *Analyzer) summarize(records []model.Transaction, run *kmeans.Result, rs runSettings) []ClusterSummary {
	labeler := labeling.NewLabeler(
		labeling.WithStrategy(rs.strategy),
		labeling.WithCategoryTable(rs.table),
	)

	out := make([]ClusterSummary, len(run.Clusters))
	for c, idx := range run.Clusters {
		members := make([]model.Transaction, len(idx))
		ids := make([]string, len(idx))
		for j, i := range idx {
			members[j] = records[i]
			ids[j] = records[i].ID
		}
		st := labeling.Summarize(members, rs.table)
		out[c] = ClusterSummary{
			ClusterID:        c + 1,
			Label:            labeler.LabelCluster(st, members),
			Count:            st.Count,
			Total:            st.Total,
			Average:          st.Average,
			DominantCategory: st.DominantCategory,
			Centroid:         run.Centroids[c],
			Members:          ids,
		}
	}
	return out
}

func assignments(records []model.Transaction, run *kmeans.Result) []Assignment {
	out := make([]Assignment, len(records))
	for i, r := range records {
		out[i] = Assignment{
			RecordID:  r.ID,
			Index:     i,
			ClusterID: run.Assignments[i] + 1,
			Distance:  run.Distances[i],
		}
	}
	return out
}

func insightInput(clusters []ClusterSummary) []insights.Cluster {
	out := make([]insights.Cluster, len(clusters))
	for i, c := range clusters {
		out[i] = insights.Cluster{
			ID:    c.ClusterID,
			Label: c.Label,
			Stats: labeling.Stats{
				Count:            c.Count,
				Total:            c.Total,
				Average:          c.Average,
				DominantCategory: c.DominantCategory,
			},
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
