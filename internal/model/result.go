package model

// Note records an anomaly met while evaluating a rule against a transaction.
type Note struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
}

// Result is the outcome of classifying one transaction.
//
// The JSON encoding is the stable schema consumed by persistence, report and export.
type Result struct {
	TransactionID    string   `json:"transaction_id"`
	AccountID        string   `json:"account_id"`
	AssignedCategory string   `json:"assigned_category,omitempty"`
	MatchedRuleID    string   `json:"matched_rule_id,omitempty"`
	EvaluatedRuleIDs []string `json:"evaluated_rule_ids"`
	Notes            []Note   `json:"notes,omitempty"`
}

// Matched reports whether a rule assigned a category.
func (r Result) Matched() bool {
	return r.MatchedRuleID != ""
}

// CategoryOrDefault returns the assigned category, or Uncategorized when unset.
func (r Result) CategoryOrDefault() string {
	if r.AssignedCategory == "" {
		return Uncategorized
	}
	return r.AssignedCategory
}
