package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/classify"
	"github.com/tally-dev/tally/internal/model"
)

func newExplainCommand(opts *rootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "explain <transaction-id>",
		Short: "Show which rules a transaction was tested against and which one matched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts, "explain")
			if err != nil {
				return err
			}
			return runExplain(cmd, p, args[0], account)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account the transaction belongs to")

	return cmd
}

func runExplain(cmd *cobra.Command, p *project, txnID, account string) error {
	txns, err := p.loadTransactions(account)
	if err != nil {
		return err
	}

	var found []model.Transaction
	for _, t := range txns {
		if t.ID == txnID {
			found = append(found, t)
		}
	}
	switch {
	case len(found) == 0:
		return fmt.Errorf("transaction %q not found", txnID)
	case len(found) > 1:
		ids := make([]string, len(found))
		for i, t := range found {
			ids[i] = t.AccountID
		}
		return fmt.Errorf("transaction %q exists in several accounts (%s); pass --account", txnID, strings.Join(ids, ", "))
	}
	txn := found[0]

	set, err := p.loadRules()
	if err != nil {
		return err
	}
	res := classify.Explain(set, txn)

	out := cmd.OutOrStdout()
	s := newStyles(out)

	fmt.Fprintf(out, "%s %s\n", s.title.Render("Transaction"), txn.ID)
	fmt.Fprintf(out, "  account:     %s\n", txn.AccountID)
	fmt.Fprintf(out, "  date:        %s\n", txn.Date.Format("2006-01-02"))
	fmt.Fprintf(out, "  description: %s\n", txn.Description)
	fmt.Fprintf(out, "  amount:      %s\n", txn.Amount.StringFixed(2))
	fmt.Fprintf(out, "  stored:      %s\n", p.categoryLabel(txn.Category))
	fmt.Fprintln(out)

	if len(res.EvaluatedRuleIDs) == 0 {
		fmt.Fprintln(out, "No enabled rules.")
	} else {
		tbl := newTable(out, s, "#", "RULE", "RESULT", "CONDITION")
		for i, ruleID := range res.EvaluatedRuleIDs {
			r, _ := set.Get(ruleID)
			result := "no match"
			if ruleID == res.MatchedRuleID {
				result = s.success.Render("match")
			}
			tbl.row(fmt.Sprint(i+1), ruleID, result, r.String())
		}
		if err := tbl.flush(); err != nil {
			return err
		}
	}

	for _, n := range res.Notes {
		fmt.Fprintf(out, "%s %s: %s\n", s.warning.Render("note"), n.RuleID, n.Message)
	}

	fmt.Fprintln(out)
	if res.Matched() {
		fmt.Fprintf(out, "Category: %s (rule %s)\n", s.success.Render(res.AssignedCategory), res.MatchedRuleID)
	} else {
		fmt.Fprintf(out, "Category: %s (no rule matched)\n", s.warning.Render(p.cfg.Classify.DefaultCategory))
	}
	return nil
}
