// Package labeling names clusters from their spending magnitude and category.
package labeling

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okian/spendseg/internal/domain/features"
	"github.com/okian/spendseg/internal/domain/model"
)

// Strategy selects which amount and category a cluster label is derived from.
type Strategy string

// Labeling strategies.
const (
	// StrategyAggregate labels from the cluster average and dominant category.
	StrategyAggregate Strategy = "aggregate"
	// StrategyRepresentative labels from the first member in input order.
	StrategyRepresentative Strategy = "representative"
)

// ParseStrategy maps a configuration value to a Strategy. Empty selects
// StrategyAggregate.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyAggregate:
		return StrategyAggregate, nil
	case StrategyRepresentative:
		return StrategyRepresentative, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Bracket names every amount strictly above Floor, unless an earlier bracket matched.
type Bracket struct {
	Floor decimal.Decimal
	Name  string
}

// SmallExpenses is the label for amounts no bracket claims.
const SmallExpenses = "Small Expenses"

// DefaultBrackets returns the amount brackets, highest first.
func DefaultBrackets() []Bracket {
	return []Bracket{
		{Floor: decimal.NewFromInt(5000), Name: "Premium Expenses"},
		{Floor: decimal.NewFromInt(2000), Name: "High-Value Purchases"},
		{Floor: decimal.NewFromInt(1000), Name: "Regular Expenses"},
		{Floor: decimal.NewFromInt(500), Name: "Daily Essentials"},
	}
}

// Stats aggregates one cluster's members.
type Stats struct {
	Count            int             `json:"count"`
	Total            decimal.Decimal `json:"total"`
	Average          decimal.Decimal `json:"average"`
	DominantCategory string          `json:"dominant_category"`
}

// Summarize computes Stats over members. Categories are resolved through
// table, so unrecognized names count as "Other". The most frequent category
// wins; ties go to the one seen first.
func Summarize(members []model.Transaction, table *features.CategoryTable) Stats {
	st := Stats{Total: decimal.Zero, Average: decimal.Zero, DominantCategory: model.OtherCategory}
	if len(members) == 0 {
		return st
	}

	counts := make(map[string]int)
	var order []string
	for _, m := range members {
		st.Total = st.Total.Add(m.Amount)
		cat := table.Canonical(m.CategoryOrOther())
		if counts[cat] == 0 {
			order = append(order, cat)
		}
		counts[cat]++
	}
	st.Count = len(members)
	st.Average = st.Total.Div(decimal.NewFromInt(int64(st.Count)))

	best := 0
	for _, cat := range order {
		if counts[cat] > best {
			best = counts[cat]
			st.DominantCategory = cat
		}
	}
	return st
}

// Option applies a configuration option to the Labeler.
type Option func(*Labeler)

// WithStrategy sets the cluster labeling strategy.
func WithStrategy(s Strategy) Option {
	return func(l *Labeler) {
		if s != "" {
			l.strategy = s
		}
	}
}

// WithBrackets replaces the amount brackets. They must be ordered highest first.
func WithBrackets(b []Bracket) Option {
	return func(l *Labeler) {
		if len(b) > 0 {
			l.brackets = b
		}
	}
}

// WithCategoryTable sets the table used to recognize categories.
func WithCategoryTable(t *features.CategoryTable) Option {
	return func(l *Labeler) {
		if t != nil {
			l.table = t
		}
	}
}

// Labeler produces human-readable cluster names.
type Labeler struct {
	strategy Strategy
	brackets []Bracket
	table    *features.CategoryTable
}

// NewLabeler creates a Labeler using StrategyAggregate and DefaultBrackets.
func NewLabeler(opts ...Option) *Labeler {
	l := &Labeler{
		strategy: StrategyAggregate,
		brackets: DefaultBrackets(),
		table:    features.DefaultCategories(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Strategy returns the configured strategy.
func (l *Labeler) Strategy() Strategy { return l.strategy }

// Label names a single amount and category, e.g. "Premium Expenses (Travel)".
func (l *Labeler) Label(amount decimal.Decimal, category string) string {
	name := SmallExpenses
	for _, b := range l.brackets {
		if amount.GreaterThan(b.Floor) {
			name = b.Name
			break
		}
	}
	if cat := l.table.Canonical(category); cat != model.OtherCategory {
		return name + " (" + cat + ")"
	}
	return name
}

// LabelCluster names a cluster. With StrategyRepresentative the first member
// decides; otherwise, or when the cluster is empty, stats decide.
func (l *Labeler) LabelCluster(stats Stats, members []model.Transaction) string {
	if l.strategy == StrategyRepresentative && len(members) > 0 {
		first := members[0]
		return l.Label(first.Amount, first.CategoryOrOther())
	}
	return l.Label(stats.Average, stats.DominantCategory)
}
