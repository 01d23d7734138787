package commands

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/classify"
	"github.com/tally-dev/tally/internal/history"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/runlog"
)

type classifyOptions struct {
	account  string
	dryRun   bool
	workers  int
	progress bool
}

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	var copts classifyOptions

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Assign categories to ledger transactions using the rule file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(cmd, opts, "classify")
			if err != nil {
				return err
			}
			return runClassify(cmd, p, copts)
		},
	}

	cmd.Flags().StringVar(&copts.account, "account", "", "only classify this account")
	cmd.Flags().BoolVar(&copts.dryRun, "dry-run", false, "print the outcome without writing the ledger")
	cmd.Flags().IntVar(&copts.workers, "workers", 0, "parallel workers (default: classify.workers from tally.yaml)")
	cmd.Flags().BoolVar(&copts.progress, "progress", false, "show a progress bar")

	return cmd
}

// categoryLabel returns the configured display name for an unset category.
func (p *project) categoryLabel(category string) string {
	if category == "" {
		return p.cfg.Classify.DefaultCategory
	}
	return category
}

// loadTransactions reads one account, or every account when accountID is empty.
func (p *project) loadTransactions(accountID string) ([]model.Transaction, error) {
	svc := p.ledger()
	if accountID == "" {
		return svc.ReadAll()
	}
	if !ledger.ValidAccountID(accountID) {
		return nil, fmt.Errorf("invalid account id %q", accountID)
	}
	return svc.Read(accountID)
}

func runClassify(cmd *cobra.Command, p *project, opts classifyOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	set, err := p.loadRules()
	if err != nil {
		return err
	}
	txns, err := p.loadTransactions(opts.account)
	if err != nil {
		return err
	}

	workers := opts.workers
	if workers == 0 {
		workers = p.cfg.Classify.Workers
	}

	reg := prometheus.NewRegistry()
	engineOpts := []classify.Option{
		classify.WithWorkers(workers),
		classify.WithLogger(p.logger),
		classify.WithMetrics(classify.NewMetrics(reg)),
	}
	var bar *progressbar.ProgressBar
	if opts.progress && len(txns) > 0 {
		bar = newProgressBar(cmd.ErrOrStderr(), len(txns))
		engineOpts = append(engineOpts, classify.WithProgress(func() { _ = bar.Add(1) }))
	}

	runID := uuid.NewString()
	started := p.now()
	results, classifyErr := classify.New(engineOpts...).Classify(ctx, set, txns)
	duration := time.Since(started)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	run := history.Summarize(runID, started, duration, len(set.Ordered()), results)
	run.RulesFile = p.cfg.Classify.RulesFile
	run.Cancelled = errors.Is(classifyErr, context.Canceled) || errors.Is(classifyErr, context.DeadlineExceeded)
	if classifyErr != nil && !run.Cancelled {
		return fmt.Errorf("classifying: %w", classifyErr)
	}

	if !opts.dryRun {
		// History is recorded even for cancelled runs; the ledger is only written for complete ones.
		recordCtx := context.WithoutCancel(ctx)
		if err := p.recordHistory(recordCtx, run, results); err != nil {
			return err
		}
		if err := p.writeMetrics(reg); err != nil {
			return err
		}
	}
	if run.Cancelled {
		return fmt.Errorf("classification cancelled after %d of %d transactions: %w", len(results), len(txns), classifyErr)
	}

	changed := 0
	if !opts.dryRun {
		changed, err = p.applyResults(txns, results)
		if err != nil {
			return err
		}
		hash := p.commit(ctx, fmt.Sprintf("classify: %d matched, %d uncategorized", run.Matched, run.Uncategorized), ledger.Dir)
		p.record(ctx, runlog.Entry{
			RunID:         runID,
			Action:        runlog.ActionClassify,
			Transactions:  run.Transactions,
			Matched:       run.Matched,
			Uncategorized: run.Uncategorized,
			Details:       fmt.Sprintf("rules=%d changed=%d", run.RuleCount, changed),
			CommitHash:    hash,
		})
	}

	printClassifySummary(out, p, run, results, changed, opts.dryRun)
	return nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
}

func (p *project) recordHistory(ctx context.Context, run history.Run, results []model.Result) error {
	store, err := p.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	defer store.Close()
	return store.RecordRun(ctx, run, results)
}

func (p *project) writeMetrics(g prometheus.Gatherer) error {
	if p.cfg.Metrics.Textfile == "" {
		return nil
	}
	path := p.path(p.cfg.Metrics.Textfile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// applyResults writes categories back per account and returns how many transactions changed.
func (p *project) applyResults(txns []model.Transaction, results []model.Result) (int, error) {
	applied := classify.Apply(txns, results)

	byAccount := make(map[string][]model.Transaction)
	var order []string
	changed := 0
	for i, txn := range applied {
		if _, ok := byAccount[txn.AccountID]; !ok {
			order = append(order, txn.AccountID)
		}
		byAccount[txn.AccountID] = append(byAccount[txn.AccountID], txn)
		if txn.Category != txns[i].Category {
			changed++
		}
	}

	svc := p.ledger()
	for _, accountID := range order {
		if err := svc.Write(accountID, byAccount[accountID]); err != nil {
			return 0, err
		}
	}
	return changed, nil
}

func printClassifySummary(out io.Writer, p *project, run history.Run, results []model.Result, changed int, dryRun bool) {
	s := newStyles(out)

	title := "Classified"
	if dryRun {
		title = "Dry run:"
	}
	fmt.Fprintf(out, "%s %d transactions with %d rules: %d matched, %d %s\n",
		s.title.Render(title), run.Transactions, run.RuleCount,
		run.Matched, run.Uncategorized, p.cfg.Classify.DefaultCategory)
	if !dryRun {
		fmt.Fprintf(out, "%d transactions changed category\n", changed)
	}

	counts := make(map[string]int)
	notes := 0
	for _, r := range results {
		counts[p.categoryLabel(r.AssignedCategory)]++
		notes += len(r.Notes)
	}
	if len(counts) > 0 {
		categories := make([]string, 0, len(counts))
		for c := range counts {
			categories = append(categories, c)
		}
		slices.SortFunc(categories, func(a, b string) int {
			if c := cmp.Compare(counts[b], counts[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})

		fmt.Fprintln(out)
		tbl := newTable(out, s, "CATEGORY", "COUNT")
		for _, c := range categories {
			tbl.row(c, strconv.Itoa(counts[c]))
		}
		_ = tbl.flush()
	}

	if notes > 0 {
		fmt.Fprintf(out, "\n%s %d conditions could not be evaluated; run \"tally explain <id>\" for details\n",
			s.warning.Render("Note:"), notes)
	}
}
