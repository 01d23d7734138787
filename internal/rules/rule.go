package rules

import (
	"fmt"
	"strings"

	"github.com/tally-dev/tally/internal/model"
)

type nodeKind int

const (
	nodeInvalid nodeKind = iota
	nodeCondition
	nodeAll
	nodeAny
	nodeNot
)

// Node is one element of a rule's boolean tree: a condition leaf, or an
// all/any/not combination of child nodes. Nodes are immutable once built.
type Node struct {
	kind     nodeKind
	cond     Condition
	children []Node
}

// Match wraps a condition as a leaf node.
func Match(c Condition) Node {
	return Node{kind: nodeCondition, cond: c}
}

// All matches when every child matches.
func All(children ...Node) Node {
	return Node{kind: nodeAll, children: append([]Node(nil), children...)}
}

// Any matches when at least one child matches.
func Any(children ...Node) Node {
	return Node{kind: nodeAny, children: append([]Node(nil), children...)}
}

// Not negates its child.
func Not(child Node) Node {
	return Node{kind: nodeNot, children: []Node{child}}
}

// IsZero reports whether the node is the empty tree.
func (n Node) IsZero() bool {
	return n.kind == nodeInvalid
}

func (n Node) validate() error {
	switch n.kind {
	case nodeCondition:
		if n.cond.field.kind() == kindUnknown {
			return fmt.Errorf("%w: condition has no field", ErrInvalidRule)
		}
		return nil
	case nodeAll, nodeAny:
		if len(n.children) == 0 {
			return fmt.Errorf("%w: %s needs at least one child", ErrInvalidRule, n.label())
		}
	case nodeNot:
		if len(n.children) != 1 {
			return fmt.Errorf("%w: not needs exactly one child", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: empty condition tree", ErrInvalidRule)
	}
	for _, child := range n.children {
		if err := child.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (n Node) label() string {
	switch n.kind {
	case nodeAll:
		return "all"
	case nodeAny:
		return "any"
	case nodeNot:
		return "not"
	}
	return "condition"
}

// outcome is the three-valued result of evaluating a subtree. unknown means a
// condition could not be evaluated because the transaction lacked its field.
type outcome int

const (
	outFalse outcome = iota
	outTrue
	outUnknown
)

func (n Node) eval(txn model.Transaction, notes *[]string) outcome {
	switch n.kind {
	case nodeCondition:
		ok, note := n.cond.Evaluate(txn)
		if note != "" {
			*notes = append(*notes, fmt.Sprintf("%s: %s", n.cond, note))
			return outUnknown
		}
		if ok {
			return outTrue
		}
		return outFalse
	case nodeAll:
		result := outTrue
		for _, child := range n.children {
			switch child.eval(txn, notes) {
			case outFalse:
				return outFalse
			case outUnknown:
				result = outUnknown
			}
		}
		return result
	case nodeAny:
		result := outFalse
		for _, child := range n.children {
			switch child.eval(txn, notes) {
			case outTrue:
				return outTrue
			case outUnknown:
				result = outUnknown
			}
		}
		return result
	case nodeNot:
		switch n.children[0].eval(txn, notes) {
		case outTrue:
			return outFalse
		case outFalse:
			return outTrue
		}
	}
	return outUnknown
}

// String renders the tree in a compact infix form.
func (n Node) String() string {
	switch n.kind {
	case nodeCondition:
		return n.cond.String()
	case nodeNot:
		return "NOT " + n.children[0].String()
	case nodeAll, nodeAny:
		sep := " AND "
		if n.kind == nodeAny {
			sep = " OR "
		}
		parts := make([]string, len(n.children))
		for i, child := range n.children {
			parts[i] = child.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return "<empty>"
}

// Rule pairs a condition tree with the category it assigns.
type Rule struct {
	ID       string
	Name     string
	Priority int // lower runs first
	Category string
	Enabled  bool
	root     Node
}

// New builds an enabled rule, rejecting empty ids, categories and malformed trees.
func New(id, name string, priority int, root Node, category string) (Rule, error) {
	r := Rule{
		ID:       id,
		Name:     name,
		Priority: priority,
		Category: category,
		Enabled:  true,
		root:     root,
	}
	if r.Name == "" {
		r.Name = id
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate checks the rule's invariants.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("rule %q: %w: missing category", r.ID, ErrInvalidRule)
	}
	if err := r.root.validate(); err != nil {
		return fmt.Errorf("rule %q: %w", r.ID, err)
	}
	return nil
}

// Root returns the rule's condition tree.
func (r Rule) Root() Node {
	return r.root
}

// Evaluation is the outcome of testing one rule against one transaction.
type Evaluation struct {
	Matched bool
	Notes   []string
}

// Evaluate runs the condition tree against a transaction. Conditions that cannot be
// evaluated never cause a match, even beneath a not.
func (r Rule) Evaluate(txn model.Transaction) Evaluation {
	var notes []string
	out := r.root.eval(txn, &notes)
	return Evaluation{Matched: out == outTrue, Notes: notes}
}

// String renders the rule as "IF <tree> THEN <category>".
func (r Rule) String() string {
	return fmt.Sprintf("IF %s THEN %s", r.root, r.Category)
}
