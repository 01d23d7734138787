package ledger

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tally-dev/tally/internal/model"
)

// Dir is the ledger directory relative to the repo root.
const Dir = "transactions"

// Service reads and writes per-account transaction files.
type Service struct {
	repoRoot string
}

// NewService creates a ledger Service.
func NewService(repoRoot string) *Service {
	return &Service{repoRoot: repoRoot}
}

// MergeResult reports what a Merge changed.
type MergeResult struct {
	Added       int
	Overwritten int
}

// Path returns the CSV path for an account.
func (s *Service) Path(accountID string) string {
	return filepath.Join(s.repoRoot, Dir, accountID+".csv")
}

// Accounts lists account IDs that have a ledger file, sorted.
func (s *Service) Accounts() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.repoRoot, Dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".csv"))
	}
	slices.Sort(ids)
	return ids, nil
}

// Read returns one account's transactions. A missing file yields no transactions.
func (s *Service) Read(accountID string) ([]model.Transaction, error) {
	if !ValidAccountID(accountID) {
		return nil, fmt.Errorf("invalid account id %q", accountID)
	}
	path := s.Path(accountID)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return txns, nil
}

// ReadAll returns every account's transactions, accounts in sorted order.
func (s *Service) ReadAll() ([]model.Transaction, error) {
	ids, err := s.Accounts()
	if err != nil {
		return nil, err
	}
	var all []model.Transaction
	for _, accountID := range ids {
		txns, err := s.Read(accountID)
		if err != nil {
			return nil, err
		}
		all = append(all, txns...)
	}
	return all, nil
}

// Write validates and replaces one account's ledger, sorted by date then id.
func (s *Service) Write(accountID string, txns []model.Transaction) error {
	if verrs := ValidateTransactions(accountID, txns); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}

	sorted := slices.Clone(txns)
	slices.SortStableFunc(sorted, func(a, b model.Transaction) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	path := s.Path(accountID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}
	if err := WriteTransactions(f, sorted); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing ledger %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

// Merge upserts incoming transactions into the account's ledger by id.
// An incoming transaction without a category keeps the stored one.
func (s *Service) Merge(accountID string, incoming []model.Transaction) (MergeResult, error) {
	existing, err := s.Read(accountID)
	if err != nil {
		return MergeResult{}, err
	}

	index := make(map[string]int, len(existing))
	for i, txn := range existing {
		index[txn.ID] = i
	}

	var res MergeResult
	for _, txn := range incoming {
		if i, ok := index[txn.ID]; ok {
			if txn.Category == "" {
				txn.Category = existing[i].Category
			}
			existing[i] = txn
			res.Overwritten++
			continue
		}
		index[txn.ID] = len(existing)
		existing = append(existing, txn)
		res.Added++
	}

	if err := s.Write(accountID, existing); err != nil {
		return MergeResult{}, err
	}
	return res, nil
}
