// Package report aggregates categorized transactions and exports them.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
)

// TransferCategory marks transactions as internal transfers even without a detected counterpart.
const TransferCategory = "Transfer"

// Period is a time bucket for grouping.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodNone  Period = "none"
)

// Kind selects which transactions a report includes.
type Kind string

const (
	KindAll      Kind = "all"
	KindIncome   Kind = "income"
	KindExpense  Kind = "expense"
	KindTransfer Kind = "transfer"
)

// GroupBy selects the second grouping key.
type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupByAccount  GroupBy = "account"
	GroupByNone     GroupBy = "none"
)

// Options controls Summarize. Zero From/To leave the range open.
type Options struct {
	Period  Period
	Kind    Kind
	GroupBy GroupBy
	From    time.Time
	To      time.Time
}

// Row is the total of one (period, group) bucket. When grouping by category,
// uncategorized transactions share the empty group.
type Row struct {
	Period string
	Group  string
	Count  int
	Total  decimal.Decimal
}

// Summary is a full report.
type Summary struct {
	Rows  []Row
	Count int
	Total decimal.Decimal
}

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(s)); p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear, PeriodNone:
		return p, nil
	case "":
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("unknown period %q (want day, week, month, year or none)", s)
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindAll, KindIncome, KindExpense, KindTransfer:
		return k, nil
	case "":
		return KindAll, nil
	}
	return "", fmt.Errorf("unknown kind %q (want income, expense, transfer or all)", s)
}

// ParseGroupBy validates a grouping name.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(s)); g {
	case GroupByCategory, GroupByAccount, GroupByNone:
		return g, nil
	case "":
		return GroupByCategory, nil
	}
	return "", fmt.Errorf("unknown grouping %q (want category, account or none)", s)
}

// IsTransfer reports whether a transaction moves money between the user's own accounts.
func IsTransfer(txn model.Transaction) bool {
	return txn.Transfer != "" || strings.EqualFold(txn.Category, TransferCategory)
}

// Matches reports whether a transaction belongs to kind.
func (k Kind) Matches(txn model.Transaction) bool {
	switch k {
	case KindIncome:
		return txn.Amount.IsPositive() && !IsTransfer(txn)
	case KindExpense:
		return txn.Amount.IsNegative() && !IsTransfer(txn)
	case KindTransfer:
		return IsTransfer(txn)
	}
	return true
}

// PeriodKey returns the bucket label for a date.
func PeriodKey(p Period, t time.Time) string {
	switch p {
	case PeriodDay:
		return t.Format("2006-01-02")
	case PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonth:
		return t.Format("2006-01")
	case PeriodYear:
		return t.Format("2006")
	}
	return "all"
}

// Filter returns the transactions inside the options' date range and kind.
func Filter(txns []model.Transaction, opts Options) []model.Transaction {
	kind := cmp.Or(opts.Kind, KindAll)
	var out []model.Transaction
	for _, txn := range txns {
		if !opts.From.IsZero() && txn.Date.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && txn.Date.After(opts.To) {
			continue
		}
		if !kind.Matches(txn) {
			continue
		}
		out = append(out, txn)
	}
	return out
}

// Summarize totals transactions per (period, group), rows sorted by period then group.
func Summarize(txns []model.Transaction, opts Options) Summary {
	period := cmp.Or(opts.Period, PeriodMonth)
	groupBy := cmp.Or(opts.GroupBy, GroupByCategory)

	type key struct{ period, group string }
	buckets := make(map[key]*Row)
	sum := Summary{Total: decimal.Zero}

	for _, txn := range Filter(txns, opts) {
		k := key{period: PeriodKey(period, txn.Date), group: groupKey(groupBy, txn)}
		row, ok := buckets[k]
		if !ok {
			row = &Row{Period: k.period, Group: k.group, Total: decimal.Zero}
			buckets[k] = row
		}
		row.Count++
		row.Total = row.Total.Add(txn.Amount)
		sum.Count++
		sum.Total = sum.Total.Add(txn.Amount)
	}

	sum.Rows = make([]Row, 0, len(buckets))
	for _, row := range buckets {
		sum.Rows = append(sum.Rows, *row)
	}
	slices.SortFunc(sum.Rows, func(a, b Row) int {
		return cmp.Or(cmp.Compare(a.Period, b.Period), cmp.Compare(a.Group, b.Group))
	})
	return sum
}

func groupKey(g GroupBy, txn model.Transaction) string {
	switch g {
	case GroupByAccount:
		return txn.AccountID
	case GroupByNone:
		return "all"
	}
	return txn.Category
}
