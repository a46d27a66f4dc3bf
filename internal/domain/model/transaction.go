// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OtherCategory is the catch-all category for unrecognized names.
const OtherCategory = "Other"

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// ErrInvalidDate is returned when a date string matches none of the accepted layouts.
var ErrInvalidDate = errors.New("invalid date")

// Transaction is a single expense record supplied by the caller.
// It is read-only for the clustering pipeline.
type Transaction struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`        // expected > 0, not enforced
	Category      string          `json:"category"`      // matched case-sensitively
	Date          time.Time       `json:"date"`          // only the instant matters
	PaymentMethod string          `json:"payment_method"`
	Description   string          `json:"description"`
}

// AmountFloat returns the amount as float64 for numeric work.
func (t Transaction) AmountFloat() float64 {
	return t.Amount.InexactFloat64()
}

// CategoryOrOther returns the category, or OtherCategory when blank.
func (t Transaction) CategoryOrOther() string {
	if strings.TrimSpace(t.Category) == "" {
		return OtherCategory
	}
	return t.Category
}

// ParseDate parses s using the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseAmount parses a decimal amount, accepting a comma as decimal separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Amounts returns the float amounts of records in order.
func Amounts(records []Transaction) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.AmountFloat()
	}
	return out
}
