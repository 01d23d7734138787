package rules

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// RuleSet is an insertion-ordered collection of rules with unique ids.
// It is safe for concurrent use; readers always receive copies.
type RuleSet struct {
	mu    sync.RWMutex
	rules []Rule
	index map[string]int
}

// NewRuleSet creates a rule set from rules in insertion order.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	s := &RuleSet{index: make(map[string]int, len(rules))}
	for _, r := range rules {
		if err := s.Add(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a validated rule. Duplicate ids are rejected.
func (s *RuleSet) Add(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[r.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateRuleID, r.ID)
	}
	s.index[r.ID] = len(s.rules)
	s.rules = append(s.rules, r)
	return nil
}

// Remove deletes a rule by id and reports whether it existed.
func (s *RuleSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.rules = slices.Delete(s.rules, i, i+1)
	delete(s.index, id)
	for j := i; j < len(s.rules); j++ {
		s.index[s.rules[j].ID] = j
	}
	return true
}

// SetEnabled toggles a rule. Disabled rules stay in the set but are skipped by Ordered.
func (s *RuleSet) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	s.rules[i].Enabled = enabled
	return nil
}

// Get returns a rule by id.
func (s *RuleSet) Get(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// Len returns the number of rules, enabled or not.
func (s *RuleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// All returns every rule in insertion order.
func (s *RuleSet) All() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rules)
}

// Ordered returns the enabled rules sorted by priority, ties kept in insertion order.
// The returned slice is a snapshot: later edits to the set are not visible through it.
func (s *RuleSet) Ordered() []Rule {
	s.mu.RLock()
	enabled := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(enabled, func(a, b Rule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return enabled
}
