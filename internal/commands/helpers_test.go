package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/commands"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
)

func runTally(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := commands.NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const netflixSalaryRules = `rules:
  - id: subs
    priority: 1
    category: Subscriptions
    when:
      field: description
      op: contains
      value: netflix
  - id: income
    priority: 2
    category: Income
    when:
      field: amount
      op: gt
      value: "0"
`

// newProject initializes a project without git, with a checking account and the
// Netflix/Salary rules.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runTally(t, "init", dir, "--name", "Test Owner", "--no-git")
	require.NoError(t, err)

	_, err = runTally(t, "--repo", dir, "accounts", "add", "checking", "--name", "Checking", "--number", "11112222")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules", "categorization-rules.yaml"), []byte(netflixSalaryRules), 0o644))
	return dir
}

func ledgerTxn(id, date, desc, amount string) model.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.Transaction{
		ID:          id,
		Date:        d,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		AccountID:   "checking",
	}
}

func seedLedger(t *testing.T, dir string) {
	t.Helper()
	txns := []model.Transaction{
		ledgerTxn("t1", "2025-01-05", "Netflix", "-15.99"),
		ledgerTxn("t2", "2025-01-15", "Salary", "3000.00"),
		ledgerTxn("t3", "2025-02-01", "Rent", "-1200.00"),
	}
	require.NoError(t, ledger.NewService(dir).Write("checking", txns))
}

func readLedger(t *testing.T, dir string) map[string]model.Transaction {
	t.Helper()
	txns, err := ledger.NewService(dir).Read("checking")
	require.NoError(t, err)
	byID := make(map[string]model.Transaction, len(txns))
	for _, txn := range txns {
		byID[txn.ID] = txn
	}
	return byID
}

func updateConfig(t *testing.T, dir string, fn func(*config.Config)) {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	fn(cfg)
	require.NoError(t, config.Save(path, cfg))
}
