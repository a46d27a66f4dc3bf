package service

import (
	"context"
	"time"

	"github.com/okian/spendseg/internal/config"
	"github.com/okian/spendseg/internal/domain/segmentation"
	"github.com/okian/spendseg/pkg/logger"
	"github.com/okian/spendseg/pkg/metrics"
)

// NewAnalyzer builds the clustering pipeline from configuration. The CLI uses
// it too, so both entry points share one set of defaults.
func NewAnalyzer(cfg *config.Config) *segmentation.Analyzer {
	opts := []segmentation.Option{
		segmentation.WithMaxIterations(cfg.MaxIterations),
		segmentation.WithExploratoryIterations(cfg.ExploratoryIterations),
		segmentation.WithTolerance(cfg.Tolerance),
		segmentation.WithSelection(cfg.MaxK, cfg.DefaultK, cfg.ElbowThreshold),
		segmentation.WithParallelSelection(cfg.ParallelSelection),
		segmentation.WithDefaultFeatures(cfg.Features),
		segmentation.WithDefaultPolicy(cfg.InsightPolicy),
		segmentation.WithDefaultLabeling(cfg.Labeling),
		segmentation.WithDefaultCategoryTable(cfg.CategoryTable),
		segmentation.WithNormalizedLogAmount(cfg.NormalizeLogAmount),
		segmentation.WithLogger(logger.Default().Named("segmentation")),
	}
	if cfg.Seed != nil {
		opts = append(opts, segmentation.WithSeed(*cfg.Seed))
	}
	return segmentation.NewAnalyzer(opts...)
}

// instrumentedAnalyzer records pipeline metrics around each analysis.
type instrumentedAnalyzer struct {
	analyzer *segmentation.Analyzer
	mode     string
}

func (a *instrumentedAnalyzer) Analyze(ctx context.Context, req segmentation.Request) (*segmentation.Result, error) {
	start := time.Now()
	res, err := a.analyzer.Analyze(ctx, req)
	metrics.RecordAnalysisDuration(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordAnalysis(metrics.OutcomeError, a.mode)
		return nil, err
	}
	RecordResult(res, a.mode)
	return res, nil
}

// RecordResult publishes the metrics derived from a finished analysis.
func RecordResult(res *segmentation.Result, mode string) {
	metrics.RecordAnalysis(metrics.OutcomeSuccess, mode)
	metrics.RecordAnalysisRecords(res.Records)

	md := res.Metadata
	metrics.RecordKMeansRun(md.K, md.Iterations, md.Inertia, md.Converged)
	if md.Selection != nil {
		failed := 0
		for _, c := range md.Selection.Candidates {
			if c.Failed() {
				failed++
			}
		}
		metrics.RecordSelection(md.Selection.Reason, failed)
	}
	for _, in := range res.Insights {
		metrics.RecordInsight(in.Kind)
	}
}
