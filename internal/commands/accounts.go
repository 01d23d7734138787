package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/accounts"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
)

func newAccountsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage bank accounts",
	}
	cmd.AddCommand(newAccountsAddCommand(opts), newAccountsListCommand(opts))
	return cmd
}

func newAccountsAddCommand(opts *rootOptions) *cobra.Command {
	var acct model.Account

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts, "accounts")
			if err != nil {
				return err
			}
			acct.ID = args[0]
			if !ledger.ValidAccountID(acct.ID) {
				return fmt.Errorf("invalid account id %q: use letters, digits, '.', '_' or '-'", acct.ID)
			}
			if acct.Name == "" {
				acct.Name = acct.ID
			}

			svc, err := p.accounts()
			if err != nil {
				return err
			}
			if err := svc.Add(acct); err != nil {
				return err
			}
			if err := svc.Save(p.root); err != nil {
				return err
			}
			p.commit(cmd.Context(), "accounts: Add "+acct.ID, accounts.Path(p.root))

			fmt.Fprintf(cmd.OutOrStdout(), "Added account %s\n", acct.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&acct.Name, "name", "", "display name")
	cmd.Flags().StringVar(&acct.IBAN, "iban", "", "IBAN, used to detect transfers")
	cmd.Flags().StringVar(&acct.Number, "number", "", "account number, used to detect transfers")
	cmd.Flags().StringVar(&acct.Currency, "currency", "", "currency code")
	cmd.Flags().StringVar(&acct.Bank, "bank", "", "bank name")

	return cmd
}

func newAccountsListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(cmd, opts, "accounts")
			if err != nil {
				return err
			}
			svc, err := p.accounts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			all := svc.All()
			if len(all) == 0 {
				fmt.Fprintln(out, "No accounts. Add one with \"tally accounts add <id>\".")
				return nil
			}

			tbl := newTable(out, newStyles(out), "ID", "NAME", "BANK", "CURRENCY", "IBAN", "NUMBER")
			for _, a := range all {
				tbl.row(a.ID, a.Name, a.Bank, a.Currency, a.IBAN, a.Number)
			}
			return tbl.flush()
		},
	}
}
