package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/report"
)

type reportOptions struct {
	account string
	period  string
	kind    string
	groupBy string
	from    string
	to      string
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	var ropts reportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize ledger totals per period and category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(cmd, opts, "report")
			if err != nil {
				return err
			}
			return runReport(cmd, p, ropts)
		},
	}

	cmd.Flags().StringVar(&ropts.account, "account", "", "only report this account")
	cmd.Flags().StringVar(&ropts.period, "period", "month", "bucket size: day, week, month, year or none")
	cmd.Flags().StringVar(&ropts.kind, "kind", "all", "income, expense, transfer or all")
	cmd.Flags().StringVar(&ropts.groupBy, "group-by", "category", "category, account or none")
	cmd.Flags().StringVar(&ropts.from, "from", "", "first date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ropts.to, "to", "", "last date to include (YYYY-MM-DD)")

	return cmd
}

func (o reportOptions) options() (report.Options, error) {
	var opts report.Options
	var err error
	if opts.Period, err = report.ParsePeriod(o.period); err != nil {
		return opts, err
	}
	if opts.Kind, err = report.ParseKind(o.kind); err != nil {
		return opts, err
	}
	if opts.GroupBy, err = report.ParseGroupBy(o.groupBy); err != nil {
		return opts, err
	}
	if opts.From, err = parseDateFlag("from", o.from); err != nil {
		return opts, err
	}
	if opts.To, err = parseDateFlag("to", o.to); err != nil {
		return opts, err
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return opts, fmt.Errorf("--to %s is before --from %s", o.to, o.from)
	}
	return opts, nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, value)
	}
	return t, nil
}

func runReport(cmd *cobra.Command, p *project, o reportOptions) error {
	opts, err := o.options()
	if err != nil {
		return err
	}
	txns, err := p.loadTransactions(o.account)
	if err != nil {
		return err
	}

	sum := report.Summarize(txns, opts)

	out := cmd.OutOrStdout()
	s := newStyles(out)
	if sum.Count == 0 {
		fmt.Fprintln(out, "No transactions match.")
		return nil
	}

	tbl := newTable(out, s, "PERIOD", "GROUP", "COUNT", "TOTAL")
	for _, row := range sum.Rows {
		group := row.Group
		if opts.GroupBy == report.GroupByCategory && group == "" {
			group = p.cfg.Classify.DefaultCategory
		}
		tbl.row(row.Period, group, strconv.Itoa(row.Count), row.Total.StringFixed(2))
	}
	tbl.row("", s.title.Render("TOTAL"), strconv.Itoa(sum.Count), sum.Total.StringFixed(2))
	return tbl.flush()
}
