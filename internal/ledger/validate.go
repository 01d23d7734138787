package ledger

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant     int
	TransactionID string
	Description   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.TransactionID, e.Description)
}

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidAccountID reports whether an account ID can name a ledger file.
func ValidAccountID(accountID string) bool {
	return accountIDPattern.MatchString(accountID)
}

// ValidateTransactions enforces the ledger invariants on one account's transactions.
func ValidateTransactions(accountID string, txns []model.Transaction) []ValidationError {
	var errs []ValidationError

	// Invariant 1: Account ID is usable as a file name.
	if !ValidAccountID(accountID) {
		errs = append(errs, ValidationError{
			Invariant:   1,
			Description: fmt.Sprintf("invalid account id %q", accountID),
		})
	}

	hundred := decimal.NewFromInt(100)
	seen := make(map[string]bool, len(txns))
	for _, txn := range txns {
		// Invariant 2: Every transaction has an ID, unique within the account.
		if txn.ID == "" {
			errs = append(errs, ValidationError{
				Invariant:   2,
				Description: fmt.Sprintf("transaction %q on %s has no id", txn.Description, txn.Date.Format(dateFormat)),
			})
		} else if seen[txn.ID] {
			errs = append(errs, ValidationError{
				Invariant:     2,
				TransactionID: txn.ID,
				Description:   "duplicate transaction id",
			})
		}
		seen[txn.ID] = true

		// Invariant 3: Transaction belongs to this account.
		if txn.AccountID != accountID {
			errs = append(errs, ValidationError{
				Invariant:     3,
				TransactionID: txn.ID,
				Description:   fmt.Sprintf("account %q does not match ledger %q", txn.AccountID, accountID),
			})
		}

		// Invariant 4: Date is set.
		if txn.Date.IsZero() {
			errs = append(errs, ValidationError{
				Invariant:     4,
				TransactionID: txn.ID,
				Description:   "missing date",
			})
		}

		// Invariant 5: Exact decimals, no more than 2 decimal places.
		scaled := txn.Amount.Mul(hundred)
		if !scaled.Equal(scaled.Floor()) {
			errs = append(errs, ValidationError{
				Invariant:     5,
				TransactionID: txn.ID,
				Description:   fmt.Sprintf("amount %s has more than 2 decimal places", txn.Amount),
			})
		}
	}

	return errs
}
