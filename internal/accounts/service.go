package accounts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tally-dev/tally/internal/model"
)

// minIdentifierLen keeps short account numbers from matching arbitrary digits in descriptions.
const minIdentifierLen = 4

// Service provides in-memory lookup over the account list.
type Service struct {
	accounts []model.Account
	byID     map[string]model.Account
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account) *Service {
	byID := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return &Service{accounts: accounts, byID: byID}
}

// Path returns the accounts file path under a repo root.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, "accounts", "accounts.csv")
}

// Load reads accounts.csv from a repo root. A missing file yields an empty Service.
func Load(repoRoot string) (*Service, error) {
	path := Path(repoRoot)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewService(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	return NewService(accts), nil
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Get returns an account by ID.
func (s *Service) Get(id string) (model.Account, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Add registers a new account. Duplicate IDs are rejected.
func (s *Service) Add(acct model.Account) error {
	if acct.ID == "" {
		return fmt.Errorf("account has no id")
	}
	if s.Exists(acct.ID) {
		return fmt.Errorf("account %q already exists", acct.ID)
	}
	s.accounts = append(s.accounts, acct)
	s.byID[acct.ID] = acct
	return nil
}

// MatchTransfer returns the first account, other than self, whose IBAN or number
// appears in the description. Spaces and case are ignored.
func (s *Service) MatchTransfer(self, description string) (model.Account, bool) {
	desc := compact(description)
	for _, a := range s.accounts {
		if a.ID == self {
			continue
		}
		for _, ident := range []string{a.IBAN, a.Number} {
			ident = compact(ident)
			if len(ident) >= minIdentifierLen && strings.Contains(desc, ident) {
				return a, true
			}
		}
	}
	return model.Account{}, false
}

func compact(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// Save writes the account list to accounts/accounts.csv.
func (s *Service) Save(repoRoot string) error {
	path := Path(repoRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	return nil
}
