package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
)

// DateFormat is the layout of date operands in rule files.
const DateFormat = "2006-01-02"

// Field names the transaction attribute a condition reads.
type Field string

const (
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldDate        Field = "date"
	FieldAccount     Field = "account_id"
)

const rawPrefix = "raw:"

// RawField returns the field for an original import column, e.g. raw:Memo.
func RawField(column string) Field {
	return Field(rawPrefix + column)
}

type fieldKind int

const (
	kindUnknown fieldKind = iota
	kindText
	kindNumeric
	kindDate
)

func (f Field) kind() fieldKind {
	switch f {
	case FieldDescription, FieldAccount:
		return kindText
	case FieldAmount:
		return kindNumeric
	case FieldDate:
		return kindDate
	}
	if col, ok := f.column(); ok && col != "" {
		return kindText
	}
	return kindUnknown
}

func (f Field) column() (string, bool) {
	return strings.CutPrefix(string(f), rawPrefix)
}

// Operator is the comparison a condition applies.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpMatches     Operator = "matches"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpBetween     Operator = "between"
	OpIn          Operator = "in"
)

// Condition is a single validated predicate over one transaction field.
// Only one of the operand slices (or the pattern) is populated, chosen by the field kind.
type Condition struct {
	field   Field
	op      Operator
	text    []string
	amounts []decimal.Decimal
	dates   []time.Time
	pattern *regexp.Regexp
}

// Text builds a condition over a text field (description, account_id or a raw column).
func Text(field Field, op Operator, values ...string) (Condition, error) {
	if field.kind() != kindText {
		return Condition{}, fmt.Errorf("%w: %s is not a text field", ErrInvalidOperand, field)
	}
	c := Condition{field: field, op: op}

	switch op {
	case OpEquals:
		if err := wantCount(op, values, 1); err != nil {
			return Condition{}, err
		}
		c.text = []string{normalize(values[0])}
	case OpContains:
		if err := wantCount(op, values, 1); err != nil {
			return Condition{}, err
		}
		if values[0] == "" {
			return Condition{}, fmt.Errorf("%w: contains needs a non-empty value", ErrInvalidOperand)
		}
		c.text = []string{strings.ToLower(values[0])}
	case OpMatches:
		if err := wantCount(op, values, 1); err != nil {
			return Condition{}, err
		}
		re, err := regexp.Compile(values[0])
		if err != nil {
			return Condition{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, values[0], err)
		}
		c.pattern = re
	case OpIn:
		if len(values) == 0 {
			return Condition{}, fmt.Errorf("%w: in needs at least one value", ErrInvalidOperand)
		}
		c.text = make([]string, len(values))
		for i, v := range values {
			c.text[i] = normalize(v)
		}
	default:
		return Condition{}, fmt.Errorf("%w: %s is not supported on text field %s", ErrInvalidOperand, op, field)
	}
	return c, nil
}

// Amount builds a condition over the transaction amount.
func Amount(op Operator, values ...decimal.Decimal) (Condition, error) {
	c := Condition{field: FieldAmount, op: op}

	switch op {
	case OpEquals, OpGreaterThan, OpLessThan:
		if len(values) != 1 {
			return Condition{}, fmt.Errorf("%w: %s needs exactly 1 value, got %d", ErrInvalidOperand, op, len(values))
		}
	case OpBetween:
		if len(values) != 2 {
			return Condition{}, fmt.Errorf("%w: between needs exactly 2 values, got %d", ErrInvalidOperand, len(values))
		}
		if values[0].GreaterThan(values[1]) {
			return Condition{}, fmt.Errorf("%w: between bounds reversed (%s > %s)", ErrInvalidOperand, values[0], values[1])
		}
	case OpIn:
		if len(values) == 0 {
			return Condition{}, fmt.Errorf("%w: in needs at least one value", ErrInvalidOperand)
		}
	default:
		return Condition{}, fmt.Errorf("%w: %s is not supported on amount", ErrInvalidOperand, op)
	}
	c.amounts = append([]decimal.Decimal(nil), values...)
	return c, nil
}

// Date builds a condition over the transaction date. Operands are compared by calendar day.
func Date(op Operator, values ...time.Time) (Condition, error) {
	c := Condition{field: FieldDate, op: op}

	switch op {
	case OpEquals, OpGreaterThan, OpLessThan:
		if len(values) != 1 {
			return Condition{}, fmt.Errorf("%w: %s needs exactly 1 value, got %d", ErrInvalidOperand, op, len(values))
		}
	case OpBetween:
		if len(values) != 2 {
			return Condition{}, fmt.Errorf("%w: between needs exactly 2 values, got %d", ErrInvalidOperand, len(values))
		}
		if day(values[0]).After(day(values[1])) {
			return Condition{}, fmt.Errorf("%w: between bounds reversed (%s > %s)",
				ErrInvalidOperand, values[0].Format(DateFormat), values[1].Format(DateFormat))
		}
	case OpIn:
		if len(values) == 0 {
			return Condition{}, fmt.Errorf("%w: in needs at least one value", ErrInvalidOperand)
		}
	default:
		return Condition{}, fmt.Errorf("%w: %s is not supported on date", ErrInvalidOperand, op)
	}
	c.dates = make([]time.Time, len(values))
	for i, v := range values {
		c.dates[i] = day(v)
	}
	return c, nil
}

// Parse builds a condition from string operands, converting them to the field's type.
func Parse(field Field, op Operator, values ...string) (Condition, error) {
	switch field.kind() {
	case kindText:
		return Text(field, op, values...)
	case kindNumeric:
		if op == OpContains || op == OpMatches {
			return Condition{}, fmt.Errorf("%w: %s needs a text field, got %s", ErrInvalidOperand, op, field)
		}
		amounts := make([]decimal.Decimal, len(values))
		for i, v := range values {
			d, err := decimal.NewFromString(strings.TrimSpace(v))
			if err != nil {
				return Condition{}, fmt.Errorf("%w: parsing amount %q: %v", ErrInvalidOperand, v, err)
			}
			amounts[i] = d
		}
		return Amount(op, amounts...)
	case kindDate:
		if op == OpContains || op == OpMatches {
			return Condition{}, fmt.Errorf("%w: %s needs a text field, got %s", ErrInvalidOperand, op, field)
		}
		dates := make([]time.Time, len(values))
		for i, v := range values {
			d, err := time.Parse(DateFormat, strings.TrimSpace(v))
			if err != nil {
				return Condition{}, fmt.Errorf("%w: parsing date %q: %v", ErrInvalidOperand, v, err)
			}
			dates[i] = d
		}
		return Date(op, dates...)
	}
	return Condition{}, fmt.Errorf("%w: unknown field %q", ErrInvalidOperand, field)
}

// Field returns the field the condition reads.
func (c Condition) Field() Field { return c.field }

// Operator returns the comparison operator.
func (c Condition) Operator() Operator { return c.op }

// Evaluate tests the condition against a transaction. When the transaction lacks
// the field, the condition does not match and note explains why.
func (c Condition) Evaluate(txn model.Transaction) (matched bool, note string) {
	switch c.field.kind() {
	case kindText:
		v, ok := c.textValue(txn)
		if !ok {
			return false, c.missing()
		}
		return c.matchText(v), ""
	case kindNumeric:
		return c.matchAmount(txn.Amount), ""
	case kindDate:
		if txn.Date.IsZero() {
			return false, c.missing()
		}
		return c.matchDate(day(txn.Date)), ""
	}
	return false, fmt.Sprintf("unknown field %q", c.field)
}

func (c Condition) textValue(txn model.Transaction) (string, bool) {
	switch c.field {
	case FieldDescription:
		return txn.Description, true
	case FieldAccount:
		return txn.AccountID, txn.AccountID != ""
	}
	col, _ := c.field.column()
	return txn.Raw(col)
}

func (c Condition) missing() string {
	if col, ok := c.field.column(); ok {
		return fmt.Sprintf("transaction has no raw column %q", col)
	}
	return fmt.Sprintf("transaction has no %s", c.field)
}

func (c Condition) matchText(v string) bool {
	switch c.op {
	case OpEquals:
		return normalize(v) == c.text[0]
	case OpContains:
		return strings.Contains(strings.ToLower(v), c.text[0])
	case OpMatches:
		return c.pattern.MatchString(v)
	case OpIn:
		n := normalize(v)
		for _, want := range c.text {
			if n == want {
				return true
			}
		}
	}
	return false
}

func (c Condition) matchAmount(v decimal.Decimal) bool {
	switch c.op {
	case OpEquals:
		return v.Equal(c.amounts[0])
	case OpGreaterThan:
		return v.GreaterThan(c.amounts[0])
	case OpLessThan:
		return v.LessThan(c.amounts[0])
	case OpBetween:
		return v.GreaterThanOrEqual(c.amounts[0]) && v.LessThanOrEqual(c.amounts[1])
	case OpIn:
		for _, want := range c.amounts {
			if v.Equal(want) {
				return true
			}
		}
	}
	return false
}

func (c Condition) matchDate(v time.Time) bool {
	switch c.op {
	case OpEquals:
		return v.Equal(c.dates[0])
	case OpGreaterThan:
		return v.After(c.dates[0])
	case OpLessThan:
		return v.Before(c.dates[0])
	case OpBetween:
		return !v.Before(c.dates[0]) && !v.After(c.dates[1])
	case OpIn:
		for _, want := range c.dates {
			if v.Equal(want) {
				return true
			}
		}
	}
	return false
}

// String renders the condition the way it is written in a rule file.
func (c Condition) String() string {
	var operands []string
	switch {
	case c.pattern != nil:
		operands = []string{strconv.Quote(c.pattern.String())}
	case c.amounts != nil:
		for _, a := range c.amounts {
			operands = append(operands, a.String())
		}
	case c.dates != nil:
		for _, d := range c.dates {
			operands = append(operands, d.Format(DateFormat))
		}
	default:
		for _, s := range c.text {
			operands = append(operands, strconv.Quote(s))
		}
	}
	if len(operands) == 1 {
		return fmt.Sprintf("%s %s %s", c.field, c.op, operands[0])
	}
	return fmt.Sprintf("%s %s [%s]", c.field, c.op, strings.Join(operands, ", "))
}

func wantCount(op Operator, values []string, n int) error {
	if len(values) != n {
		return fmt.Errorf("%w: %s needs exactly %d value, got %d", ErrInvalidOperand, op, n, len(values))
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
