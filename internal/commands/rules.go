package commands

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/rules"
	"github.com/tally-dev/tally/internal/runlog"
)

func newRulesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and edit categorization rules",
	}
	cmd.AddCommand(
		newRulesListCommand(opts),
		newRulesCheckCommand(opts),
		newRulesToggleCommand(opts, true),
		newRulesToggleCommand(opts, false),
	)
	return cmd
}

func newRulesListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(cmd, opts, "rules")
			if err != nil {
				return err
			}
			set, err := p.loadRules()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			all := set.All()
			if len(all) == 0 {
				fmt.Fprintf(out, "No rules in %s\n", p.cfg.Classify.RulesFile)
				return nil
			}
			slices.SortStableFunc(all, func(a, b rules.Rule) int {
				return cmp.Compare(a.Priority, b.Priority)
			})

			s := newStyles(out)
			tbl := newTable(out, s, "#", "ID", "PRIORITY", "CATEGORY", "ENABLED", "RULE")
			n := 0
			for _, r := range all {
				pos := "-"
				enabled := s.subtle.Render("no")
				if r.Enabled {
					n++
					pos = strconv.Itoa(n)
					enabled = "yes"
				}
				tbl.row(pos, r.ID, strconv.Itoa(r.Priority), r.Category, enabled, r.String())
			}
			return tbl.flush()
		},
	}
}

func newRulesCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the rule file and report every broken rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(cmd, opts, "rules")
			if err != nil {
				return err
			}
			f, err := rules.ReadFile(p.rulesPath())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := newStyles(out)
			set, err := f.Compile()
			var loadErr *rules.LoadError
			if errors.As(err, &loadErr) {
				for _, e := range loadErr.Errs {
					fmt.Fprintf(out, "%s %v\n", s.failure.Render("✗"), e)
				}
				return fmt.Errorf("%d of %d rules are invalid", len(loadErr.Errs), len(f.Rules))
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s %d rules OK (%d enabled)\n", s.success.Render("✓"), set.Len(), len(set.Ordered()))
			return nil
		},
	}
}

func newRulesToggleCommand(opts *rootOptions, enable bool) *cobra.Command {
	use, short, verb := "disable <rule-id>", "Disable a rule without deleting it", "Disabled"
	if enable {
		use, short, verb = "enable <rule-id>", "Enable a rule", "Enabled"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts, "rules")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ruleID := args[0]

			f, err := rules.ReadFile(p.rulesPath())
			if err != nil {
				return err
			}
			if err := f.SetEnabled(ruleID, enable); err != nil {
				return err
			}
			if _, err := f.Compile(); err != nil {
				return err
			}
			if err := rules.WriteFile(p.rulesPath(), f); err != nil {
				return err
			}

			details := fmt.Sprintf("%s %s", verb, ruleID)
			hash := p.commit(ctx, "rules: "+details, p.cfg.Classify.RulesFile)
			p.record(ctx, runlog.Entry{
				Action:     runlog.ActionRules,
				Details:    details,
				CommitHash: hash,
			})

			fmt.Fprintf(cmd.OutOrStdout(), "%s rule %s\n", verb, ruleID)
			return nil
		},
	}
}
