// Package ledger stores transactions as one CSV file per account under transactions/.
package ledger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
)

// Header is the CSV header for transactions/<account>.csv.
const Header = "id,date,account_id,description,amount,category,transfer,raw"

const (
	numFields   = 8
	dateFormat  = "2006-01-02"
	colID       = 0
	colDate     = 1
	colAcctID   = 2
	colDesc     = 3
	colAmount   = 4
	colCategory = 5
	colTransfer = 6
	colRaw      = 7
)

// ReadTransactions reads all transactions from a ledger CSV reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	// Skip header row.
	var txns []model.Transaction
	for i, rec := range records[1:] {
		txn, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// WriteTransactions writes transactions to a ledger CSV writer (including header).
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, txn := range txns {
		row, err := MarshalTransaction(txn)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(txn model.Transaction) ([]string, error) {
	row := make([]string, numFields)
	row[colID] = txn.ID
	row[colDate] = txn.Date.Format(dateFormat)
	row[colAcctID] = txn.AccountID
	row[colDesc] = txn.Description
	row[colAmount] = txn.Amount.StringFixed(2)
	row[colCategory] = txn.Category
	row[colTransfer] = txn.Transfer

	if len(txn.RawFields) > 0 {
		// encoding/json sorts map keys, so the column is stable across writes.
		raw, err := json.Marshal(txn.RawFields)
		if err != nil {
			return nil, fmt.Errorf("encoding raw fields: %w", err)
		}
		row[colRaw] = string(raw)
	}
	return row, nil
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	var date time.Time
	if record[colDate] != "" {
		d, err := time.Parse(dateFormat, record[colDate])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
		}
		date = d
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var raw map[string]string
	if record[colRaw] != "" {
		if err := json.Unmarshal([]byte(record[colRaw]), &raw); err != nil {
			return model.Transaction{}, fmt.Errorf("parsing raw %q: %w", record[colRaw], err)
		}
	}

	return model.Transaction{
		ID:          record[colID],
		Date:        date,
		AccountID:   record[colAcctID],
		Description: record[colDesc],
		Amount:      amount,
		Category:    record[colCategory],
		Transfer:    record[colTransfer],
		RawFields:   raw,
	}, nil
}
