package features

import (
	"fmt"

	"github.com/okian/spendseg/internal/domain/model"
)

// Category table names accepted by TableByName.
const (
	TableDefault = "default"
	TableCompact = "compact"
)

// CategoryTable maps category names to fixed 1-based semantic codes.
// The last entry is always the fallback used for unrecognized names.
type CategoryTable struct {
	name  string
	names []string
	codes map[string]int
}

// NewCategoryTable builds a table from ordered names. "Other" is appended as
// the fallback when it is not already the final entry.
func NewCategoryTable(name string, names ...string) *CategoryTable {
	ordered := make([]string, 0, len(names)+1)
	codes := make(map[string]int, len(names)+1)
	for _, n := range names {
		if n == model.OtherCategory {
			continue
		}
		if _, dup := codes[n]; dup {
			continue
		}
		ordered = append(ordered, n)
		codes[n] = len(ordered)
	}
	ordered = append(ordered, model.OtherCategory)
	codes[model.OtherCategory] = len(ordered)

	return &CategoryTable{name: name, names: ordered, codes: codes}
}

// DefaultCategories returns the 14-entry table used for the category feature.
func DefaultCategories() *CategoryTable {
	return NewCategoryTable(TableDefault,
		"Food & Dining",
		"Transportation",
		"Shopping",
		"Entertainment",
		"Bills & Utilities",
		"Healthcare",
		"Education",
		"Travel",
		"Groceries",
		"Rent",
		"Insurance",
		"Investments",
		"Gifts & Donations",
	)
}

// CompactCategories returns the 11-entry table used by the expense-history view.
func CompactCategories() *CategoryTable {
	return NewCategoryTable(TableCompact,
		"Food & Dining",
		"Transportation",
		"Shopping",
		"Entertainment",
		"Bills & Utilities",
		"Healthcare",
		"Education",
		"Travel",
		"Groceries",
		"Personal Care",
	)
}

// TableByName returns a fresh copy of a named preset.
func TableByName(name string) (*CategoryTable, error) {
	switch name {
	case "", TableDefault:
		return DefaultCategories(), nil
	case TableCompact:
		return CompactCategories(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategoryTable, name)
	}
}

// Name returns the preset name.
func (t *CategoryTable) Name() string { return t.name }

// Size returns the number of codes, fallback included.
func (t *CategoryTable) Size() int { return len(t.names) }

// Names returns the category names in code order.
func (t *CategoryTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Code returns the 1-based code for category, or the fallback code.
func (t *CategoryTable) Code(category string) int {
	if c, ok := t.codes[category]; ok {
		return c
	}
	return len(t.names)
}

// Canonical returns category when recognized and "Other" otherwise.
func (t *CategoryTable) Canonical(category string) string {
	if _, ok := t.codes[category]; ok {
		return category
	}
	return model.OtherCategory
}

// Recognized reports whether category has its own code.
func (t *CategoryTable) Recognized(category string) bool {
	c, ok := t.codes[category]
	return ok && c != len(t.names)
}
