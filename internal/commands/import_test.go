package commands_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/importer"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/runlog"
)

const chaseExport = "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" +
	"DEBIT,01/05/2025,NETFLIX.COM,-15.99,ACH_DEBIT,4980.01,\n" +
	"CREDIT,01/15/2025,ACME PAYROLL,3000.00,ACH_CREDIT,7980.01,\n" +
	"DEBIT,01/20/2025,ONLINE TRANSFER TO SAV 9999 8888,-500.00,ACH_DEBIT,7480.01,\n"

const sparkasseExport = "Buchungstag;Verwendungszweck;Betrag\n" +
	"05.01.2025;Miete Januar;-1.200,00\n"

func TestImport_ChaseFile(t *testing.T) {
	dir := newProject(t)
	path := filepath.Join(t.TempDir(), "chase.csv")
	require.NoError(t, os.WriteFile(path, []byte(chaseExport), 0o644))

	out, err := runTally(t, "--repo", dir, "import", path, "--account", "checking")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 transactions into checking (3 new, 0 updated)")

	byID := readLedger(t, dir)
	require.Len(t, byID, 3)
	assert.Equal(t, "-15.99", byID["20250105_NETFLIXCOM"].Amount.StringFixed(2))

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, runlog.ActionImport, last.Action)
	assert.Equal(t, 3, last.Transactions)
	assert.Zero(t, last.Matched)
	assert.NotEmpty(t, last.RunID)
}

func TestImport_Reimport(t *testing.T) {
	dir := newProject(t)
	path := filepath.Join(t.TempDir(), "chase.csv")
	require.NoError(t, os.WriteFile(path, []byte(chaseExport), 0o644))

	_, err := runTally(t, "--repo", dir, "import", path, "--account", "checking")
	require.NoError(t, err)
	out, err := runTally(t, "--repo", dir, "import", path, "--account", "checking")
	require.NoError(t, err)

	assert.Contains(t, out, "(0 new, 3 updated)")
	assert.Len(t, readLedger(t, dir), 3)
}

func TestImport_DetectsTransfers(t *testing.T) {
	dir := newProject(t)
	_, err := runTally(t, "--repo", dir, "accounts", "add", "savings", "--number", "9999 8888")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "chase.csv")
	require.NoError(t, os.WriteFile(path, []byte(chaseExport), 0o644))

	out, err := runTally(t, "--repo", dir, "import", path, "--account", "checking")
	require.NoError(t, err)
	assert.Contains(t, out, "Detected 1 internal transfers")

	transfers := 0
	for _, txn := range readLedger(t, dir) {
		if txn.Transfer == "savings" {
			transfers++
		}
	}
	assert.Equal(t, 1, transfers)
}

func TestImport_ScansImportDir(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "jan.csv"), []byte(chaseExport), 0o644))

	_, err := runTally(t, "--repo", dir, "import", "--account", "checking")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "import", "jan.csv"))
	assert.True(t, os.IsNotExist(err), "imported file leaves import/")
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "jan.csv"))
	assert.NoError(t, err)
	assert.Len(t, readLedger(t, dir), 3)
}

func TestImport_ConfiguredMapping(t *testing.T) {
	dir := newProject(t)
	updateConfig(t, dir, func(cfg *config.Config) {
		cfg.Imports = map[string]importer.ColumnMapping{
			"sparkasse": {
				Date:         "Buchungstag",
				DateFormat:   "02.01.2006",
				Description:  []string{"Verwendungszweck"},
				Amount:       "Betrag",
				DecimalComma: true,
				Delimiter:    ";",
			},
		}
	})

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(sparkasseExport), 0o644))

	_, err := runTally(t, "--repo", dir, "import", path, "--account", "checking", "--format", "sparkasse")
	require.NoError(t, err)

	byID := readLedger(t, dir)
	require.Len(t, byID, 1)
	for _, txn := range byID {
		assert.Equal(t, "-1200.00", txn.Amount.StringFixed(2))
		assert.Equal(t, "Miete Januar", txn.Description)
		assert.Equal(t, "Miete Januar", txn.RawFields["Verwendungszweck"])
	}
}

const aggregatorExport = "Date,Account,Payee,Amount\n" +
	"2025-01-05,savings,Interest,1.20\n" +
	"2025-01-06,,Coffee,-4.50\n"

func aggregatorMapping(cfg *config.Config) {
	cfg.Imports = map[string]importer.ColumnMapping{
		"aggregator": {
			Account:     "Account",
			Date:        "Date",
			Description: []string{"Payee"},
			Amount:      "Amount",
		},
	}
}

func TestImport_AccountColumn(t *testing.T) {
	dir := newProject(t)
	updateConfig(t, dir, aggregatorMapping)
	_, err := runTally(t, "--repo", dir, "accounts", "add", "savings", "--name", "Savings")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(aggregatorExport), 0o644))

	out, err := runTally(t, "--repo", dir, "import", path, "--account", "checking", "--format", "aggregator")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 transactions into savings, checking")

	checking := readLedger(t, dir)
	require.Len(t, checking, 1)
	for _, txn := range checking {
		assert.Equal(t, "Coffee", txn.Description)
	}

	savings, err := ledger.NewService(dir).Read("savings")
	require.NoError(t, err)
	require.Len(t, savings, 1)
	assert.Equal(t, "Interest", savings[0].Description)
	assert.Equal(t, "savings", savings[0].AccountID)
}

func TestImport_AccountColumnUnknownAccount(t *testing.T) {
	dir := newProject(t)
	updateConfig(t, dir, aggregatorMapping)

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(aggregatorExport), 0o644))

	_, err := runTally(t, "--repo", dir, "import", path, "--account", "checking", "--format", "aggregator")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown account "savings"`)
	assert.Empty(t, readLedger(t, dir), "nothing is written when any account is unknown")
}

func TestImport_Errors(t *testing.T) {
	dir := newProject(t)
	path := filepath.Join(t.TempDir(), "chase.csv")
	require.NoError(t, os.WriteFile(path, []byte(chaseExport), 0o644))

	_, err := runTally(t, "--repo", dir, "import", path)
	assert.Error(t, err, "--account is required")

	_, err = runTally(t, "--repo", dir, "import", path, "--account", "brokerage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown account")

	_, err = runTally(t, "--repo", dir, "import", path, "--account", "checking", "--format", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: chase, ofx")

	out, err := runTally(t, "--repo", dir, "import", "--account", "checking")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to import")
}
