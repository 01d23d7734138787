package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/report"
)

type exportOptions struct {
	account string
	output  string
	runID   string
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var eopts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(cmd, opts, "export")
			if err != nil {
				return err
			}
			return runExport(cmd, p, eopts)
		},
	}

	cmd.Flags().StringVar(&eopts.account, "account", "", "only export this account")
	cmd.Flags().StringVarP(&eopts.output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&eopts.runID, "run-id", "", "include the classification results of this run from history")

	return cmd
}

func runExport(cmd *cobra.Command, p *project, opts exportOptions) error {
	txns, err := p.loadTransactions(opts.account)
	if err != nil {
		return err
	}

	var results []model.Result
	if opts.runID != "" {
		results, err = p.runResults(cmd, opts.runID)
		if err != nil {
			return err
		}
		if opts.account != "" {
			filtered := results[:0:0]
			for _, r := range results {
				if r.AccountID == opts.account {
					filtered = append(filtered, r)
				}
			}
			results = filtered
		}
	}

	doc := report.NewDocument(p.now(), txns, results)

	if opts.output == "-" {
		return report.WriteJSON(cmd.OutOrStdout(), doc)
	}

	path := p.path(opts.output)
	if err := writeExport(path, doc); err != nil {
		return err
	}
	p.logger.InfoContext(cmd.Context(), "wrote export",
		"path", path,
		"transactions", len(doc.Transactions),
		"results", len(doc.Results))
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(doc.Transactions), path)
	return nil
}

func writeExport(path string, doc report.Document) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing export: %w", cerr)
		}
	}()
	return report.WriteJSON(f, doc)
}

// runResults loads a run's results from history.
func (p *project) runResults(cmd *cobra.Command, runID string) ([]model.Result, error) {
	store, err := p.requireHistory()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if _, err := store.Run(cmd.Context(), runID); err != nil {
		return nil, err
	}
	return store.Results(cmd.Context(), runID)
}
