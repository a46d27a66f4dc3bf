package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/spendseg/internal/domain/model"
	"github.com/okian/spendseg/internal/domain/segmentation"
)

// transactionRequest is one transaction as posted by clients. The amount may
// be a JSON number or string; the date accepts the layouts model.ParseDate does.
type transactionRequest struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	Description   string          `json:"description"`
}

// analysisRequest mirrors the body of POST /analyses.
type analysisRequest struct {
	RequestID     string               `json:"request_id"`
	Async         bool                 `json:"async"`
	Transactions  []transactionRequest `json:"transactions"`
	Features      []string             `json:"features"`
	K             int                  `json:"k"`
	MaxIterations int                  `json:"max_iterations"`
	Seed          *int64               `json:"seed"`
	Policy        string               `json:"policy"`
	Labeling      string               `json:"labeling"`
	CategoryTable string               `json:"category_table"`
}

// limits bounds the accepted transaction count.
type limits struct {
	minRecords int
	maxRecords int
}

func (r analysisRequest) validate(l limits) error {
	n := len(r.Transactions)
	switch {
	case n < l.minRecords:
		return fmt.Errorf("%w: got %d, need at least %d", ErrTooFewRecords, n, l.minRecords)
	case l.maxRecords > 0 && n > l.maxRecords:
		return fmt.Errorf("%w: got %d, limit is %d", ErrTooManyRecords, n, l.maxRecords)
	case r.K < 0:
		return errors.New("k must not be negative")
	case r.MaxIterations < 0:
		return errors.New("max_iterations must not be negative")
	case r.Features != nil && len(r.Features) == 0:
		return errors.New("features must not be empty when given")
	}
	for i, t := range r.Transactions {
		if strings.TrimSpace(t.Date) == "" {
			return fmt.Errorf("transaction %d: missing date", i)
		}
	}
	return nil
}

// toSegmentation converts the body into a pipeline request. Missing IDs are
// replaced by the 1-based position.
func (r analysisRequest) toSegmentation() (segmentation.Request, error) {
	records := make([]model.Transaction, len(r.Transactions))
	for i, t := range r.Transactions {
		date, err := model.ParseDate(t.Date)
		if err != nil {
			return segmentation.Request{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		id := strings.TrimSpace(t.ID)
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		records[i] = model.Transaction{
			ID:            id,
			Amount:        t.Amount,
			Category:      strings.TrimSpace(t.Category),
			Date:          date,
			PaymentMethod: t.PaymentMethod,
			Description:   t.Description,
		}
	}
	return segmentation.Request{
		Records:       records,
		Features:      r.Features,
		K:             r.K,
		MaxIterations: r.MaxIterations,
		Seed:          r.Seed,
		Policy:        r.Policy,
		Labeling:      r.Labeling,
		CategoryTable: r.CategoryTable,
	}, nil
}
