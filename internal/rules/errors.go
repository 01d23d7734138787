package rules

import (
	"errors"
	"strings"
)

// Rule construction errors. All of them surface when a rule is built or loaded,
// never while a rule is evaluated against a transaction.
var (
	ErrInvalidRule     = errors.New("invalid rule")
	ErrInvalidOperand  = errors.New("invalid operand")
	ErrInvalidPattern  = errors.New("invalid pattern")
	ErrDuplicateRuleID = errors.New("duplicate rule id")
	ErrRuleNotFound    = errors.New("rule not found")
)

// LoadError collects every rule that failed to load from a rule file.
type LoadError struct {
	Errs []error
}

func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "loading rules: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *LoadError) Unwrap() []error {
	return e.Errs
}
