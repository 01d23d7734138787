package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/history"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent classification runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(cmd, opts, "history")
			if err != nil {
				return err
			}
			store, err := p.requireHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No classification runs recorded.")
				return nil
			}

			s := newStyles(out)
			tbl := newTable(out, s, "RUN", "STARTED", "DURATION", "RULES", "TXNS", "MATCHED", strings.ToUpper(p.cfg.Classify.DefaultCategory), "STATUS")
			for _, r := range runs {
				status := "complete"
				if r.Cancelled {
					status = s.warning.Render("cancelled")
				}
				tbl.row(r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Duration.String(),
					strconv.Itoa(r.RuleCount), strconv.Itoa(r.Transactions),
					strconv.Itoa(r.Matched), strconv.Itoa(r.Uncategorized), status)
			}
			return tbl.flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show, 0 for all")
	cmd.AddCommand(newHistoryShowCommand(opts))

	return cmd
}

func newHistoryShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-transaction results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts, "history")
			if err != nil {
				return err
			}
			store, err := p.requireHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			run, err := store.Run(ctx, args[0])
			if err != nil {
				return err
			}
			results, err := store.Results(ctx, run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := newStyles(out)
			fmt.Fprintf(out, "%s %s\n", s.title.Render("Run"), run.ID)
			fmt.Fprintf(out, "  started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  rules:    %d from %s\n", run.RuleCount, run.RulesFile)
			fmt.Fprintf(out, "  matched:  %d of %d\n", run.Matched, run.Transactions)
			if run.Cancelled {
				fmt.Fprintf(out, "  %s\n", s.warning.Render("cancelled before completion"))
			}
			fmt.Fprintln(out)

			tbl := newTable(out, s, "ACCOUNT", "TRANSACTION", "CATEGORY", "RULE", "EVALUATED")
			for _, r := range results {
				tbl.row(r.AccountID, r.TransactionID, p.categoryLabel(r.AssignedCategory),
					r.MatchedRuleID, strings.Join(r.EvaluatedRuleIDs, ","))
			}
			return tbl.flush()
		},
	}
}

func (p *project) requireHistory() (*history.Store, error) {
	store, err := p.openHistory()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("history is disabled in %s", config.FileName)
	}
	return store, nil
}
