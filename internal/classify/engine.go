// Package classify applies a rule set to batches of transactions.
package classify

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/rules"
)

// Engine classifies transactions. It holds no state between runs and is safe for concurrent use.
type Engine struct {
	workers  int
	logger   *slog.Logger
	metrics  *Metrics
	progress func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds how many transactions are evaluated in parallel.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for run summaries.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records run statistics into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithProgress calls fn once per classified transaction, from worker goroutines.
func WithProgress(fn func()) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// New creates an Engine. Workers default to GOMAXPROCS.
func New(opts ...Option) *Engine {
	e := &Engine{
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify evaluates the set's enabled rules, in priority order, against each transaction
// and returns one Result per transaction in input order. The first matching rule wins.
//
// The rule order is captured once, so edits to set during the run are not observed.
// If ctx is cancelled, no further transactions are started; the results of those already
// finished are returned in input order together with ctx.Err().
func (e *Engine) Classify(ctx context.Context, set *rules.RuleSet, txns []model.Transaction) ([]model.Result, error) {
	start := time.Now()
	ordered := set.Ordered()

	results := make([]model.Result, len(txns))
	done := make([]bool, len(txns))

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i := range txns {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = evaluate(ordered, txns[i])
			done[i] = true
			if e.progress != nil {
				e.progress()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		partial := make([]model.Result, 0, len(txns))
		for i, ok := range done {
			if ok {
				partial = append(partial, results[i])
			}
		}
		e.logger.WarnContext(ctx, "classification cancelled",
			"completed", len(partial),
			"total", len(txns))
		e.metrics.observe(partial, time.Since(start))
		return partial, err
	}

	e.metrics.observe(results, time.Since(start))
	e.logger.DebugContext(ctx, "classification finished",
		"transactions", len(txns),
		"rules", len(ordered),
		"duration", time.Since(start))
	return results, nil
}

// Explain classifies a single transaction synchronously.
func Explain(set *rules.RuleSet, txn model.Transaction) model.Result {
	return evaluate(set.Ordered(), txn)
}

func evaluate(ordered []rules.Rule, txn model.Transaction) model.Result {
	res := model.Result{
		TransactionID:    txn.ID,
		AccountID:        txn.AccountID,
		EvaluatedRuleIDs: make([]string, 0, len(ordered)),
	}
	for _, r := range ordered {
		res.EvaluatedRuleIDs = append(res.EvaluatedRuleIDs, r.ID)
		ev := r.Evaluate(txn)
		for _, n := range ev.Notes {
			res.Notes = append(res.Notes, model.Note{RuleID: r.ID, Message: n})
		}
		if ev.Matched {
			res.AssignedCategory = r.Category
			res.MatchedRuleID = r.ID
			break
		}
	}
	return res
}

// Apply returns copies of txns with Category set from results, matched by
// (account, transaction id). Unmatched results clear the category. Inputs are not modified.
func Apply(txns []model.Transaction, results []model.Result) []model.Transaction {
	type key struct{ account, id string }
	byKey := make(map[key]model.Result, len(results))
	for _, r := range results {
		byKey[key{r.AccountID, r.TransactionID}] = r
	}

	out := make([]model.Transaction, len(txns))
	for i, t := range txns {
		out[i] = t
		if r, ok := byKey[key{t.AccountID, t.ID}]; ok {
			out[i].Category = r.AssignedCategory
		}
	}
	return out
}
