// Package model defines the records shared by the importer, ledger and classification engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Uncategorized is the display name for a transaction without a category.
const Uncategorized = "Uncategorized"

// Transaction is a single imported or manually entered money movement.
type Transaction struct {
	ID          string
	Date        time.Time       // calendar date, UTC midnight
	Description string
	Amount      decimal.Decimal // negative = expense, positive = income
	AccountID   string
	Category    string // empty = uncategorized
	Transfer    string // counterpart account ID for internal transfers
	RawFields   map[string]string
}

// IsCategorized reports whether a category has been assigned.
func (t Transaction) IsCategorized() bool {
	return t.Category != ""
}

// CategoryOrDefault returns the category, or Uncategorized when unset.
func (t Transaction) CategoryOrDefault() string {
	if t.Category == "" {
		return Uncategorized
	}
	return t.Category
}

// Raw returns the original import column value and whether it was present.
func (t Transaction) Raw(column string) (string, bool) {
	if t.RawFields == nil {
		return "", false
	}
	v, ok := t.RawFields[column]
	return v, ok
}
