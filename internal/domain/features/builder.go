// Package features turns transactions into normalized numeric vectors for
// clustering.
package features

import (
	"context"
	"math"
	"time"

	"github.com/okian/spendseg/internal/domain/model"
	"github.com/okian/spendseg/pkg/logger"
)

// Feature names understood by the builder. Any other name is treated as
// FeatureAmount.
const (
	FeatureAmount    = "amount"
	FeatureCategory  = "category"
	FeatureDate      = "date"
	FeatureLogAmount = "log_amount"
)

// Widths used for degenerate ranges: one currency unit and one day in seconds.
const (
	amountWidening = 1.0
	dateWidening   = float64(24 * time.Hour / time.Second)
)

// DefaultFeatures returns the feature list used when the caller gives none.
func DefaultFeatures() []string {
	return []string{FeatureAmount, FeatureCategory, FeatureDate}
}

// Vector is one transaction in feature space.
type Vector = []float64

// NormalizationContext holds the per-run bounds used to build every vector.
type NormalizationContext struct {
	MinAmount float64 `json:"min_amount"`
	MaxAmount float64 `json:"max_amount"`
	// Unix seconds.
	MinDate float64 `json:"min_date"`
	MaxDate float64 `json:"max_date"`

	MinLogAmount float64 `json:"min_log_amount"`
	MaxLogAmount float64 `json:"max_log_amount"`

	// SeenCategories assigns 1-based codes in order of first appearance.
	SeenCategories map[string]int `json:"seen_categories"`
	CategoryTable  string         `json:"category_table"`

	AmountWidened bool `json:"amount_widened"`
	DateWidened   bool `json:"date_widened"`
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithCategoryTable sets the table used by the category feature.
func WithCategoryTable(t *CategoryTable) Option {
	return func(b *Builder) {
		if t != nil {
			b.table = t
		}
	}
}

// WithNormalizedLogAmount rescales log_amount to [0,1] using the run's bounds.
// Off by default: log_amount is emitted raw.
func WithNormalizedLogAmount(enabled bool) Option {
	return func(b *Builder) {
		b.normalizeLog = enabled
	}
}

// WithLogger sets a custom logger for the builder.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder converts transactions into feature vectors.
type Builder struct {
	table        *CategoryTable
	normalizeLog bool
	logger       logger.Logger
}

// NewBuilder creates a Builder with the default category table.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		table:  DefaultCategories(),
		logger: logger.Default().Named("features"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns one vector per record, in record order, and the context used
// to normalize them. An empty record list yields no vectors and a nil context.
// A nil names slice selects DefaultFeatures; an empty non-nil slice is an
// error when there are records to encode.
func (b *Builder) Build(ctx context.Context, records []model.Transaction, names []string) ([]Vector, *NormalizationContext, error) {
	if len(records) == 0 {
		return []Vector{}, nil, nil
	}
	if names == nil {
		names = DefaultFeatures()
	}
	if len(names) == 0 {
		return nil, nil, ErrNoFeatures
	}

	nc := b.scan(records)

	vectors := make([]Vector, len(records))
	for i, r := range records {
		v := make(Vector, len(names))
		for j, name := range names {
			v[j] = b.feature(nc, r, name)
		}
		vectors[i] = v
	}

	b.logger.Debug(ctx, "feature vectors built",
		logger.Int("records", len(records)),
		logger.Strings("features", names),
		logger.Bool("amount_widened", nc.AmountWidened),
		logger.Bool("date_widened", nc.DateWidened),
	)
	return vectors, nc, nil
}

// scan is the first pass: bounds and first-seen category codes.
func (b *Builder) scan(records []model.Transaction) *NormalizationContext {
	nc := &NormalizationContext{
		MinAmount:      math.Inf(1),
		MaxAmount:      math.Inf(-1),
		MinDate:        math.Inf(1),
		MaxDate:        math.Inf(-1),
		SeenCategories: make(map[string]int),
		CategoryTable:  b.table.Name(),
	}

	for _, r := range records {
		amount := r.AmountFloat()
		nc.MinAmount = math.Min(nc.MinAmount, amount)
		nc.MaxAmount = math.Max(nc.MaxAmount, amount)

		ts := unixSeconds(r.Date)
		nc.MinDate = math.Min(nc.MinDate, ts)
		nc.MaxDate = math.Max(nc.MaxDate, ts)

		cat := r.CategoryOrOther()
		if _, ok := nc.SeenCategories[cat]; !ok {
			nc.SeenCategories[cat] = len(nc.SeenCategories) + 1
		}
	}

	// Widen symmetrically so a constant dimension lands on 0.5.
	if nc.MaxAmount == nc.MinAmount {
		nc.MinAmount -= amountWidening / 2
		nc.MaxAmount += amountWidening / 2
		nc.AmountWidened = true
	}
	if nc.MaxDate == nc.MinDate {
		nc.MinDate -= dateWidening / 2
		nc.MaxDate += dateWidening / 2
		nc.DateWidened = true
	}

	nc.MinLogAmount = logAmount(nc.MinAmount)
	nc.MaxLogAmount = logAmount(nc.MaxAmount)
	return nc
}

func (b *Builder) feature(nc *NormalizationContext, r model.Transaction, name string) float64 {
	switch name {
	case FeatureCategory:
		return float64(b.table.Code(r.CategoryOrOther())) / float64(b.table.Size())
	case FeatureDate:
		if nc.DateWidened {
			return 0.5
		}
		return (unixSeconds(r.Date) - nc.MinDate) / (nc.MaxDate - nc.MinDate)
	case FeatureLogAmount:
		v := logAmount(r.AmountFloat())
		if !b.normalizeLog {
			return v
		}
		span := nc.MaxLogAmount - nc.MinLogAmount
		if span == 0 {
			return 0.5
		}
		return (v - nc.MinLogAmount) / span
	default:
		// A widened range is centred on the only value, which rounding can
		// miss by a few ulps.
		if nc.AmountWidened {
			return 0.5
		}
		return (r.AmountFloat() - nc.MinAmount) / (nc.MaxAmount - nc.MinAmount)
	}
}

// logAmount is ln(1+amount); negative amounts are clamped to zero so refunds
// cannot produce NaN coordinates.
func logAmount(amount float64) float64 {
	return math.Log1p(math.Max(amount, 0))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
