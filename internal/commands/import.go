package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/importer"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/runlog"
)

type importOptions struct {
	account string
	format  string
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var iopts importOptions

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import bank exports into an account's ledger",
		Long: `Import bank exports into an account's ledger.

With no files, every .csv, .ofx and .qfx file in import/ is imported and then
moved to import/processed/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts, "import")
			if err != nil {
				return err
			}
			return runImport(cmd, p, iopts, args)
		},
	}

	cmd.Flags().StringVar(&iopts.account, "account", "", "account id for rows without a mapped account column (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&iopts.format, "format", "", "parser format (default: chase, or ofx for .ofx/.qfx files)")

	return cmd
}

// importFile is one file queued for import.
type importFile struct {
	name    string
	path    string
	scanned bool
}

func runImport(cmd *cobra.Command, p *project, opts importOptions, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !ledger.ValidAccountID(opts.account) {
		return fmt.Errorf("invalid account id %q", opts.account)
	}
	accts, err := p.accounts()
	if err != nil {
		return err
	}
	if !accts.Exists(opts.account) {
		return fmt.Errorf("unknown account %q; add it with \"tally accounts add %s\"", opts.account, opts.account)
	}

	reg, err := p.registry()
	if err != nil {
		return err
	}

	var files []importFile
	if len(args) == 0 {
		scanned, err := importer.Scan(p.root)
		if err != nil {
			return err
		}
		for _, f := range scanned {
			files = append(files, importFile{name: f.Name, path: f.Path, scanned: true})
		}
	} else {
		for _, a := range args {
			files = append(files, importFile{name: filepath.Base(a), path: a})
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "Nothing to import.")
		return nil
	}

	var all []model.Transaction
	for _, f := range files {
		format := opts.format
		if format == "" {
			format = importer.GuessFormat(f.name)
		}
		if format == "" {
			format = "chase"
		}
		parser := reg.Get(format)
		if parser == nil {
			return fmt.Errorf("unknown format %q (available: %s)", format, strings.Join(reg.Formats(), ", "))
		}

		txns, err := parseFile(parser, f.path, opts.account)
		if err != nil {
			return err
		}
		p.logger.InfoContext(ctx, "parsed import file",
			"file", f.name,
			"format", format,
			"transactions", len(txns))
		all = append(all, txns...)
	}

	all = importer.DetectTransfers(all, accts)

	byAccount := make(map[string][]model.Transaction)
	var order []string
	for _, t := range all {
		if _, ok := byAccount[t.AccountID]; !ok {
			if !ledger.ValidAccountID(t.AccountID) || !accts.Exists(t.AccountID) {
				return fmt.Errorf("unknown account %q in import data; add it with \"tally accounts add\"", t.AccountID)
			}
			order = append(order, t.AccountID)
		}
		byAccount[t.AccountID] = append(byAccount[t.AccountID], t)
	}
	if len(order) == 0 {
		order = append(order, opts.account)
	}

	var res ledger.MergeResult
	for _, acct := range order {
		r, err := p.ledger().Merge(acct, byAccount[acct])
		if err != nil {
			return err
		}
		res.Added += r.Added
		res.Overwritten += r.Overwritten
	}
	accounts := strings.Join(order, ", ")

	for _, f := range files {
		if !f.scanned {
			continue
		}
		if err := importer.MarkProcessed(p.root, f.name); err != nil {
			return err
		}
	}

	transfers := 0
	for _, t := range all {
		if t.Transfer != "" {
			transfers++
		}
	}

	runID := uuid.NewString()
	hash := p.commit(ctx,
		fmt.Sprintf("import: %d transactions into %s", len(all), accounts),
		ledger.Dir, "import")
	p.record(ctx, runlog.Entry{
		RunID:        runID,
		Action:       runlog.ActionImport,
		Transactions: len(all),
		Details:      fmt.Sprintf("accounts=%s files=%d added=%d overwritten=%d", strings.Join(order, ","), len(files), res.Added, res.Overwritten),
		CommitHash:   hash,
	})

	s := newStyles(out)
	fmt.Fprintf(out, "%s %d transactions into %s (%d new, %d updated)\n",
		s.success.Render("Imported"), len(all), accounts, res.Added, res.Overwritten)
	if transfers > 0 {
		fmt.Fprintf(out, "%s %d internal transfers\n", s.subtle.Render("Detected"), transfers)
	}
	return nil
}

func parseFile(parser importer.Parser, path, accountID string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txns, err := parser.Parse(f, accountID)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return txns, nil
}
