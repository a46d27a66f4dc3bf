// Package sampledata generates realistic, reproducible transaction histories
// for demos, load tests and the CLI.
package sampledata

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/spendseg/internal/domain/model"
)

// profile describes one recurring spending habit.
type profile struct {
	category      string
	minAmount     float64
	amountRange   float64
	weight        int
	paymentMethod string
	descriptions  []string
}

// Spending habits, weighted by how often they occur.
var profiles = []profile{ //nolint:gochecknoglobals // read-only table
	{"Groceries", 15, 70, 30, "debit_card", []string{"Supermarket", "Farmers market", "Corner shop"}},
	{"Food & Dining", 8, 40, 25, "credit_card", []string{"Lunch", "Coffee", "Dinner out"}},
	{"Transportation", 2, 30, 15, "debit_card", []string{"Metro", "Fuel", "Taxi"}},
	{"Shopping", 30, 170, 10, "credit_card", []string{"Clothes", "Electronics", "Home goods"}},
	{"Entertainment", 10, 60, 8, "credit_card", []string{"Cinema", "Concert", "Streaming"}},
	{"Bills & Utilities", 60, 140, 5, "bank_transfer", []string{"Electricity", "Internet", "Phone"}},
	{"Travel", 400, 1600, 3, "credit_card", []string{"Flight", "Hotel", "Car rental"}},
	{"Rent", 1200, 300, 2, "bank_transfer", []string{"Monthly rent"}},
	{"Healthcare", 20, 180, 2, "debit_card", []string{"Pharmacy", "Dentist"}},
}

// Generator produces transactions. It is not safe for concurrent use.
type Generator struct {
	rng   *rand.Rand
	start time.Time
	span  time.Duration
	total int
}

// Option configures a Generator.
type Option func(*Generator)

// WithStart sets the earliest transaction date.
func WithStart(t time.Time) Option {
	return func(g *Generator) {
		if !t.IsZero() {
			g.start = t.UTC()
		}
	}
}

// WithSpan sets the period the transactions are spread over.
func WithSpan(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.span = d
		}
	}
}

// New returns a Generator; the same seed always yields the same sequence.
func New(seed int64, opts ...Option) *Generator {
	g := &Generator{
		rng:   rand.New(rand.NewSource(seed)), //nolint:gosec // reproducible sample data, not security
		start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		span:  90 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, p := range profiles {
		g.total += p.weight
	}
	return g
}

// Transactions returns n transactions ordered by date.
func (g *Generator) Transactions(n int) []model.Transaction {
	out := make([]model.Transaction, n)
	step := g.span / time.Duration(max(n, 1))
	for i := range out {
		p := g.pick()
		cents := int64((p.minAmount + g.rng.Float64()*p.amountRange) * 100)
		jitter := time.Duration(g.rng.Int63n(max(int64(step), 1)))
		out[i] = model.Transaction{
			ID:            fmt.Sprintf("tx-%05d", i+1),
			Amount:        decimal.New(cents, -2),
			Category:      p.category,
			Date:          g.start.Add(step*time.Duration(i) + jitter),
			PaymentMethod: p.paymentMethod,
			Description:   p.descriptions[g.rng.Intn(len(p.descriptions))],
		}
	}
	return out
}

func (g *Generator) pick() profile {
	n := g.rng.Intn(g.total)
	for _, p := range profiles {
		if n < p.weight {
			return p
		}
		n -= p.weight
	}
	return profiles[0]
}

// Transactions is a shortcut for New(seed).Transactions(n).
func Transactions(seed int64, n int) []model.Transaction {
	return New(seed).Transactions(n)
}
