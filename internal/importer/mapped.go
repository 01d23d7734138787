package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/id"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/validation"
)

// DefaultDateFormat is used when a mapping does not name one.
const DefaultDateFormat = "2006-01-02"

// ColumnMapping tells MappedParser which CSV columns hold which transaction fields.
// Either Amount or both Debit and Credit must be set.
type ColumnMapping struct {
	ID           string   `yaml:"id,omitempty"`
	Account      string   `yaml:"account,omitempty"`
	Date         string   `yaml:"date" validate:"required"`
	DateFormat   string   `yaml:"date_format,omitempty"`
	Description  []string `yaml:"description" validate:"required,min=1,dive,required"`
	Amount       string   `yaml:"amount,omitempty" validate:"required_without_all=Debit Credit,excluded_with=Debit Credit"`
	Debit        string   `yaml:"debit,omitempty" validate:"required_with=Credit"`
	Credit       string   `yaml:"credit,omitempty" validate:"required_with=Debit"`
	DecimalComma bool     `yaml:"decimal_comma,omitempty"`
	Delimiter    string   `yaml:"delimiter,omitempty" validate:"omitempty,len=1"`
}

// Validate checks that the mapping names enough columns to build a transaction.
func (m ColumnMapping) Validate() error {
	err := validation.Struct(m)
	if err == nil {
		return nil
	}
	verrs, ok := validation.Failures(err)
	if !ok {
		return fmt.Errorf("invalid column mapping: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("invalid column mapping: %s", strings.Join(msgs, ", "))
}

// MappedParser parses any CSV with a header row using a ColumnMapping.
type MappedParser struct {
	Name    string
	Mapping ColumnMapping
}

// Format returns the parser name.
func (p *MappedParser) Format() string { return p.Name }

// Parse reads a CSV and returns its transactions. Rows take their account from the
// mapped account column and fall back to accountID when it is unmapped or blank.
// Rows without an id column get a deterministic id from their date and description.
func (p *MappedParser) Parse(r io.Reader, accountID string) ([]model.Transaction, error) {
	m := p.Mapping
	if err := m.Validate(); err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	if m.Delimiter != "" {
		cr.Comma = []rune(m.Delimiter)[0]
	}
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", p.Name, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	header := records[0]
	cols, err := indexColumns(header, m)
	if err != nil {
		return nil, err
	}

	layout := m.DateFormat
	if layout == "" {
		layout = DefaultDateFormat
	}

	seq := id.NewSequencer()
	var txns []model.Transaction
	for i, rec := range records[1:] {
		txn, err := p.parseRow(cols, layout, header, rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if txn.ID == "" {
			txn.ID = seq.Next(id.Reference(txn.Date, txn.Description))
		}
		if txn.AccountID == "" {
			txn.AccountID = accountID
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

type columnIndex struct {
	id, account, date, amount, debit, credit int
	description                              []int
}

func indexColumns(header []string, m ColumnMapping) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}

	var missing []string
	lookup := func(name string) int {
		if name == "" {
			return -1
		}
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	cols := columnIndex{
		id:      lookup(m.ID),
		account: lookup(m.Account),
		date:    lookup(m.Date),
		amount:  lookup(m.Amount),
		debit:   lookup(m.Debit),
		credit:  lookup(m.Credit),
	}
	for _, d := range m.Description {
		cols.description = append(cols.description, lookup(d))
	}

	if len(missing) > 0 {
		return columnIndex{}, fmt.Errorf("CSV has no column %s", strings.Join(quoteAll(missing), ", "))
	}
	return cols, nil
}

func (p *MappedParser) parseRow(cols columnIndex, layout string, header, rec []string) (model.Transaction, error) {
	cell := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := time.Parse(layout, cell(cols.date))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", cell(cols.date), err)
	}

	var amount decimal.Decimal
	if cols.amount >= 0 {
		amount, err = p.parseAmount(cell(cols.amount))
		if err != nil {
			return model.Transaction{}, err
		}
	} else {
		debit, err := p.parseAmount(cell(cols.debit))
		if err != nil {
			return model.Transaction{}, err
		}
		credit, err := p.parseAmount(cell(cols.credit))
		if err != nil {
			return model.Transaction{}, err
		}
		amount = credit.Sub(debit.Abs())
	}

	var parts []string
	for _, i := range cols.description {
		if v := cell(i); v != "" {
			parts = append(parts, v)
		}
	}

	return model.Transaction{
		ID:          cell(cols.id),
		AccountID:   cell(cols.account),
		Date:        date,
		Description: strings.Join(parts, ", "),
		Amount:      amount,
		RawFields:   rawFields(header, rec),
	}, nil
}

// parseAmount reads a bank amount, tolerating thousands separators. Empty cells are zero.
func (p *MappedParser) parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(s, " ", "")
	if clean == "" {
		return decimal.Zero, nil
	}
	if p.Mapping.DecimalComma {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	} else {
		clean = strings.ReplaceAll(clean, ",", "")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}
