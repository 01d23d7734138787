package commands_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/history"
	"github.com/tally-dev/tally/internal/runlog"
)

func TestClassify_WritesCategories(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)

	out, err := runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)
	assert.Contains(t, out, "Classified 3 transactions with 2 rules: 2 matched, 1 Uncategorized")
	assert.Contains(t, out, "2 transactions changed category")

	byID := readLedger(t, dir)
	assert.Equal(t, "Subscriptions", byID["t1"].Category)
	assert.Equal(t, "Income", byID["t2"].Category)
	assert.Empty(t, byID["t3"].Category)

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, runlog.ActionClassify, last.Action)
	assert.Equal(t, 3, last.Transactions)
	assert.Equal(t, 2, last.Matched)
	assert.Equal(t, 1, last.Uncategorized)
	assert.Contains(t, last.Details, "rules=2")
}

func TestClassify_Idempotent(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)

	_, err := runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "transactions", "checking.csv"))
	require.NoError(t, err)

	out, err := runTally(t, "--repo", dir, "classify", "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "0 transactions changed category")

	second, err := os.ReadFile(filepath.Join(dir, "transactions", "checking.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestClassify_DryRun(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)

	out, err := runTally(t, "--repo", dir, "classify", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run:")
	assert.Contains(t, out, "Subscriptions")

	for _, txn := range readLedger(t, dir) {
		assert.Empty(t, txn.Category)
	}
	_, err = os.Stat(filepath.Join(dir, ".tally", "history.db"))
	assert.True(t, os.IsNotExist(err), "dry runs are not recorded")
}

func TestClassify_RecordsHistory(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)

	_, err := runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)

	store, err := history.Open(filepath.Join(dir, ".tally", "history.db"))
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Transactions)
	assert.Equal(t, 2, runs[0].Matched)
	assert.Equal(t, "rules/categorization-rules.yaml", runs[0].RulesFile)
	assert.False(t, runs[0].Cancelled)

	results, err := store.Results(t.Context(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"subs", "income"}, results[1].EvaluatedRuleIDs)
}

func TestClassify_MetricsTextfile(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)
	updateConfig(t, dir, func(cfg *config.Config) {
		cfg.Metrics.Textfile = "metrics/tally.prom"
	})

	_, err := runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "metrics", "tally.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `tally_classified_transactions_total{outcome="matched"} 2`)
	assert.Contains(t, string(data), `tally_rule_matches_total{rule_id="subs"} 1`)
}

func TestClassify_HistoryDisabled(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)
	updateConfig(t, dir, func(cfg *config.Config) {
		cfg.History.Enabled = false
	})

	_, err := runTally(t, "--repo", dir, "classify", "--progress")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".tally", "history.db"))
	assert.True(t, os.IsNotExist(err))

	_, err = runTally(t, "--repo", dir, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestClassify_BrokenRules(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)
	broken := "rules:\n  - id: x\n    category: X\n    when:\n      field: amount\n      op: between\n      values: [\"10\", \"5\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules", "categorization-rules.yaml"), []byte(broken), 0o644))

	_, err := runTally(t, "--repo", dir, "classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading rules")
}

func TestExplain(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)

	out, err := runTally(t, "--repo", dir, "explain", "t2")
	require.NoError(t, err)
	assert.Contains(t, out, "Salary")
	assert.Contains(t, out, "IF description contains")
	assert.Contains(t, out, "Category: Income (rule income)")

	out, err = runTally(t, "--repo", dir, "explain", "t3", "--account", "checking")
	require.NoError(t, err)
	assert.Contains(t, out, "Category: Uncategorized (no rule matched)")

	_, err = runTally(t, "--repo", dir, "explain", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
