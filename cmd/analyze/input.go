package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/spendseg/internal/domain/model"
)

// Input formats accepted by -format.
const (
	formatAuto = "auto"
	formatJSON = "json"
	formatCSV  = "csv"
)

var errNoTransactions = errors.New("no transactions in input")

// jsonTransaction accepts the same shape as the HTTP API.
type jsonTransaction struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	Description   string          `json:"description"`
}

// readTransactions decodes r as JSON or CSV. Auto detection looks at the
// first non-space byte.
func readTransactions(r io.Reader, format string) ([]model.Transaction, error) {
	br := bufio.NewReader(r)
	if format == formatAuto {
		format = detectFormat(br)
	}

	var (
		records []model.Transaction
		err     error
	)
	switch format {
	case formatJSON:
		records, err = readJSON(br)
	case formatCSV:
		records, err = readCSV(br)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errNoTransactions
	}
	return records, nil
}

func detectFormat(br *bufio.Reader) string {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return formatJSON
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		case '[', '{':
			return formatJSON
		default:
			return formatCSV
		}
	}
}

// readJSON accepts a bare array or an object with a "transactions" array.
func readJSON(r io.Reader) ([]model.Transaction, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var items []jsonTransaction
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Transactions []jsonTransaction `json:"transactions"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		items = wrapped.Transactions
	} else if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	out := make([]model.Transaction, len(items))
	for i, it := range items {
		date, err := model.ParseDate(it.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out[i] = model.Transaction{
			ID:            idOrIndex(it.ID, i),
			Amount:        it.Amount,
			Category:      strings.TrimSpace(it.Category),
			Date:          date,
			PaymentMethod: it.PaymentMethod,
			Description:   it.Description,
		}
	}
	return out, nil
}

// readCSV expects a header row naming at least amount and date. Columns are
// matched by name so their order does not matter.
func readCSV(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errNoTransactions
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"amount", "date"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv header is missing %q", required)
		}
	}
	field := func(row []string, name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var out []model.Transaction
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		amount, err := model.ParseAmount(field(row, "amount"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := model.ParseDate(field(row, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, model.Transaction{
			ID:            idOrIndex(field(row, "id"), len(out)),
			Amount:        amount,
			Category:      field(row, "category"),
			Date:          date,
			PaymentMethod: field(row, "payment_method"),
			Description:   field(row, "description"),
		})
	}
	return out, nil
}

func idOrIndex(id string, i int) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return strconv.Itoa(i + 1)
}
