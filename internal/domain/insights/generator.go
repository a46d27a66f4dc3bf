// Package insights derives heuristic findings and recommendations from
// labeled clusters. Confidence values are fixed per rule and carry no
// statistical meaning.
package insights

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okian/spendseg/internal/domain/labeling"
	"github.com/okian/spendseg/pkg/logger"
)

// Severity ranks how much attention an insight deserves.
type Severity string

// Severities.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Insight kinds.
const (
	KindHighValueCluster       = "high_value_cluster"
	KindFrequentShopping       = "frequent_shopping"
	KindFrequentSmallPurchases = "frequent_small_purchases"
	KindReviewHighSpending     = "review_high_spending"
	KindSimplifyCategories     = "simplify_categories"
)

// Fixed confidences per kind.
const (
	ConfidenceHighValue     = 0.85
	ConfidenceShopping      = 0.75
	ConfidenceSmallPurchase = 0.70
	ConfidenceReview        = 0.80
	ConfidenceSimplify      = 0.60
)

// ShoppingCategory is the category watched by the frequent shopping rule.
const ShoppingCategory = "Shopping"

// MaxClustersBeforeSimplify is the cluster count above which fewer
// categories are recommended.
const MaxClustersBeforeSimplify = 4

var (
	highValueAverage = decimal.NewFromInt(3000)
	smallAverage     = decimal.NewFromInt(500)
)

// Cluster is the labeled cluster summary the rules read.
type Cluster struct {
	ID    int
	Label string
	labeling.Stats
}

// Insight is one finding or recommendation. ClusterID is 0 for
// portfolio-wide recommendations.
type Insight struct {
	Kind           string   `json:"kind"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	Confidence     float64  `json:"confidence"`
	ClusterID      int      `json:"cluster_id,omitempty"`
	Recommendation bool     `json:"recommendation"`
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithPolicy sets the significance policy.
func WithPolicy(p Policy) Option {
	return func(g *Generator) {
		if p.Name != "" {
			g.policy = p
		}
	}
}

// WithLogger sets a custom logger for the generator.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// Generator applies the insight rules.
type Generator struct {
	policy Policy
	logger logger.Logger
}

// NewGenerator creates a Generator with StrictInsightPolicy.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		policy: StrictInsightPolicy(),
		logger: logger.Default().Named("insights"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the configured policy.
func (g *Generator) Policy() Policy { return g.policy }

// Generate evaluates every rule against every cluster, then appends the
// portfolio-wide recommendations. Output order follows cluster order.
func (g *Generator) Generate(ctx context.Context, clusters []Cluster) []Insight {
	out := []Insight{}
	patterns := 0

	for _, c := range clusters {
		found := g.clusterInsights(c)
		patterns += len(found)
		out = append(out, found...)
	}

	if patterns > 0 {
		out = append(out, Insight{
			Kind:           KindReviewHighSpending,
			Title:          "Review high spending clusters",
			Description:    fmt.Sprintf("%d spending pattern(s) stand out; review the flagged clusters for savings.", patterns),
			Severity:       SeverityMedium,
			Confidence:     ConfidenceReview,
			Recommendation: true,
		})
	}
	// Every cluster the run produced counts, including ones left empty.
	if len(clusters) > MaxClustersBeforeSimplify {
		out = append(out, Insight{
			Kind:           KindSimplifyCategories,
			Title:          "Simplify expense categories",
			Description:    fmt.Sprintf("Spending splits into %d groups; consolidating categories would make budgets easier to track.", len(clusters)),
			Severity:       SeverityLow,
			Confidence:     ConfidenceSimplify,
			Recommendation: true,
		})
	}

	g.logger.Debug(ctx, "insights generated",
		logger.String("policy", g.policy.Name),
		logger.Int("clusters", len(clusters)),
		logger.Int("patterns", patterns),
		logger.Int("insights", len(out)),
	)
	return out
}

func (g *Generator) clusterInsights(c Cluster) []Insight {
	var out []Insight

	if c.Count > g.policy.HighValueMinCount && c.Average.GreaterThan(highValueAverage) {
		out = append(out, Insight{
			Kind:        KindHighValueCluster,
			Title:       "High-value spending cluster",
			Description: fmt.Sprintf("%s: %d transactions averaging %s.", c.Label, c.Count, c.Average.StringFixed(2)),
			Severity:    SeverityHigh,
			Confidence:  ConfidenceHighValue,
			ClusterID:   c.ID,
		})
	}
	if c.DominantCategory == ShoppingCategory && c.Count > g.policy.ShoppingMinCount {
		out = append(out, Insight{
			Kind:        KindFrequentShopping,
			Title:       "Frequent shopping pattern",
			Description: fmt.Sprintf("%s: %d shopping transactions totalling %s.", c.Label, c.Count, c.Total.StringFixed(2)),
			Severity:    SeverityMedium,
			Confidence:  ConfidenceShopping,
			ClusterID:   c.ID,
		})
	}
	if c.Count > g.policy.SmallPurchaseMinCount && c.Average.LessThan(smallAverage) {
		out = append(out, Insight{
			Kind:        KindFrequentSmallPurchases,
			Title:       "Frequent small purchases",
			Description: fmt.Sprintf("%s: %d small transactions add up to %s.", c.Label, c.Count, c.Total.StringFixed(2)),
			Severity:    SeverityMedium,
			Confidence:  ConfidenceSmallPurchase,
			ClusterID:   c.ID,
		})
	}
	return out
}
