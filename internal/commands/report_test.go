package commands_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/history"
	"github.com/tally-dev/tally/internal/report"
)

func TestReport_ByMonthAndCategory(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)
	_, err := runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)

	out, err := runTally(t, "--repo", dir, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-01")
	assert.Contains(t, out, "Subscriptions")
	assert.Contains(t, out, "-15.99")
	assert.Contains(t, out, "2025-02")
	assert.Contains(t, out, "1784.01")

	out, err = runTally(t, "--repo", dir, "report", "--kind", "expense", "--period", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "-1215.99")
	assert.NotContains(t, out, "Income")
}

func TestReport_DefaultCategoryLabel(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)
	updateConfig(t, dir, func(cfg *config.Config) {
		cfg.Classify.DefaultCategory = "Unsorted"
	})
	_, err := runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)

	out, err := runTally(t, "--repo", dir, "report", "--period", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "Unsorted")
	assert.NotContains(t, out, "Uncategorized")
}

func TestReport_DateRange(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)

	out, err := runTally(t, "--repo", dir, "report", "--from", "2025-02-01", "--group-by", "account")
	require.NoError(t, err)
	assert.Contains(t, out, "checking")
	assert.Contains(t, out, "-1200.00")
	assert.NotContains(t, out, "2025-01")

	_, err = runTally(t, "--repo", dir, "report", "--from", "2025-02-01", "--to", "2025-01-01")
	assert.Error(t, err)

	_, err = runTally(t, "--repo", dir, "report", "--period", "fortnight")
	assert.Error(t, err)

	out, err = runTally(t, "--repo", dir, "report", "--from", "2030-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions match")
}

func TestExport_File(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)
	_, err := runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)

	out, err := runTally(t, "--repo", dir, "export", "--output", "exports/ledger.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 3 transactions")

	data, err := os.ReadFile(filepath.Join(dir, "exports", "ledger.json"))
	require.NoError(t, err)

	var doc report.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Transactions, 3)
	assert.Empty(t, doc.Results)
	assert.Equal(t, "Subscriptions", doc.Transactions[0].Category)
	assert.Empty(t, doc.Transactions[2].Category)
}

func TestExport_WithRunResults(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)
	_, err := runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)
	runID := latestRunID(t, dir)

	out, err := runTally(t, "--repo", dir, "export", "--run-id", runID)
	require.NoError(t, err)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Results, 3)
	assert.Equal(t, "subs", doc.Results[0].MatchedRuleID)

	_, err = runTally(t, "--repo", dir, "export", "--run-id", "missing")
	assert.ErrorIs(t, err, history.ErrRunNotFound)
}

func TestHistory_ListAndShow(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)

	out, err := runTally(t, "--repo", dir, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No classification runs recorded")

	_, err = runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)
	runID := latestRunID(t, dir)

	out, err = runTally(t, "--repo", dir, "history")
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "complete")

	out, err = runTally(t, "--repo", dir, "history", "show", runID)
	require.NoError(t, err)
	assert.Contains(t, out, "matched:  2 of 3")
	assert.Contains(t, out, "subs,income")

	_, err = runTally(t, "--repo", dir, "history", "show", "missing")
	assert.ErrorIs(t, err, history.ErrRunNotFound)
}

func latestRunID(t *testing.T, dir string) string {
	t.Helper()
	store, err := history.Open(filepath.Join(dir, ".tally", "history.db"))
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return strings.TrimSpace(runs[0].ID)
}
