package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
)

// Document is the JSON export written by "tally export".
type Document struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	Transactions []ExportTransaction `json:"transactions"`
	Results      []model.Result      `json:"results,omitempty"`
}

// ExportTransaction is the JSON shape of a transaction.
type ExportTransaction struct {
	ID          string            `json:"id"`
	Date        string            `json:"date"`
	AccountID   string            `json:"account_id"`
	Description string            `json:"description"`
	Amount      decimal.Decimal   `json:"amount"`
	Category    string            `json:"category,omitempty"`
	Transfer    string            `json:"transfer,omitempty"`
	RawFields   map[string]string `json:"raw_fields,omitempty"`
}

// NewDocument builds an export of txns and, optionally, the results that categorized them.
func NewDocument(now time.Time, txns []model.Transaction, results []model.Result) Document {
	doc := Document{
		GeneratedAt:  now.UTC(),
		Transactions: make([]ExportTransaction, len(txns)),
		Results:      results,
	}
	for i, txn := range txns {
		doc.Transactions[i] = ExportTransaction{
			ID:          txn.ID,
			Date:        txn.Date.Format("2006-01-02"),
			AccountID:   txn.AccountID,
			Description: txn.Description,
			Amount:      txn.Amount,
			Category:    txn.Category,
			Transfer:    txn.Transfer,
			RawFields:   txn.RawFields,
		}
	}
	return doc
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}
