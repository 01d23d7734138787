package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tally-dev/tally/internal/validation"
)

// File is the on-disk rule file (rules/categorization-rules.yaml).
type File struct {
	Rules []Definition `yaml:"rules"`
}

// Definition is one rule as written by the user.
type Definition struct {
	ID       string          `yaml:"id" validate:"required"`
	Name     string          `yaml:"name,omitempty"`
	Priority int             `yaml:"priority"`
	Category string          `yaml:"category" validate:"required"`
	Enabled  *bool           `yaml:"enabled,omitempty"`
	When     *NodeDefinition `yaml:"when" validate:"required"`
}

// NodeDefinition is one node of a rule's condition tree. Exactly one of
// All, Any, Not or Field must be set.
type NodeDefinition struct {
	All    []NodeDefinition `yaml:"all,omitempty"`
	Any    []NodeDefinition `yaml:"any,omitempty"`
	Not    *NodeDefinition  `yaml:"not,omitempty"`
	Field  string           `yaml:"field,omitempty"`
	Op     string           `yaml:"op,omitempty"`
	Value  string           `yaml:"value,omitempty"`
	Values []string         `yaml:"values,omitempty"`
}

// opAliases maps alternate spellings of relations onto operators.
var opAliases = map[string]Operator{
	"is":     OpEquals,
	"one of": OpIn,
	"one_of": OpIn,
	">":      OpGreaterThan,
	"<":      OpLessThan,
}

// ParseFile decodes a rule file without compiling it.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return &f, nil
}

// ReadFile reads and decodes a rule file from disk.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	return ParseFile(data)
}

// WriteFile encodes a rule file to disk.
func WriteFile(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}

// Load reads a rule file and compiles it into a RuleSet.
func Load(path string) (*RuleSet, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Compile()
}

// Compile validates every definition and builds a RuleSet in file order.
// All broken rules are reported together in a *LoadError.
func (f *File) Compile() (*RuleSet, error) {
	set := &RuleSet{index: make(map[string]int, len(f.Rules))}
	var errs []error

	for i, def := range f.Rules {
		r, err := def.Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("rule #%d: %w", i+1, err))
			continue
		}
		if err := set.Add(r); err != nil {
			errs = append(errs, fmt.Errorf("rule #%d: %w", i+1, err))
		}
	}

	if len(errs) > 0 {
		return nil, &LoadError{Errs: errs}
	}
	return set, nil
}

// SetEnabled flips the enabled flag of a definition in place.
func (f *File) SetEnabled(id string, enabled bool) error {
	for i := range f.Rules {
		if f.Rules[i].ID == id {
			f.Rules[i].Enabled = &enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
}

// Build converts a definition into a validated Rule.
func (d Definition) Build() (Rule, error) {
	if err := validation.Struct(d); err != nil {
		return Rule{}, definitionError(d, err)
	}

	root, err := d.When.build()
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", d.ID, err)
	}

	r, err := New(d.ID, d.Name, d.Priority, root, d.Category)
	if err != nil {
		return Rule{}, err
	}
	if d.Enabled != nil {
		r.Enabled = *d.Enabled
	}
	return r, nil
}

func definitionError(d Definition, err error) error {
	verrs, ok := validation.Failures(err)
	if !ok {
		return fmt.Errorf("rule %q: %w: %v", d.ID, ErrInvalidRule, err)
	}
	missing := make([]string, len(verrs))
	for i, fe := range verrs {
		missing[i] = fe.Field()
	}
	if d.ID == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidRule, strings.Join(missing, ", "))
	}
	return fmt.Errorf("rule %q: %w: missing %s", d.ID, ErrInvalidRule, strings.Join(missing, ", "))
}

func (n *NodeDefinition) build() (Node, error) {
	set := 0
	if n.All != nil {
		set++
	}
	if n.Any != nil {
		set++
	}
	if n.Not != nil {
		set++
	}
	if n.Field != "" {
		set++
	}
	switch {
	case set == 0:
		return Node{}, fmt.Errorf("%w: empty condition tree", ErrInvalidRule)
	case set > 1:
		return Node{}, fmt.Errorf("%w: node mixes all, any, not and field", ErrInvalidRule)
	}

	switch {
	case n.All != nil:
		children, err := buildChildren(n.All)
		if err != nil {
			return Node{}, err
		}
		if len(children) == 0 {
			return Node{}, fmt.Errorf("%w: all needs at least one child", ErrInvalidRule)
		}
		return All(children...), nil
	case n.Any != nil:
		children, err := buildChildren(n.Any)
		if err != nil {
			return Node{}, err
		}
		if len(children) == 0 {
			return Node{}, fmt.Errorf("%w: any needs at least one child", ErrInvalidRule)
		}
		return Any(children...), nil
	case n.Not != nil:
		child, err := n.Not.build()
		if err != nil {
			return Node{}, err
		}
		return Not(child), nil
	}

	op := Operator(strings.ToLower(strings.TrimSpace(n.Op)))
	if alias, ok := opAliases[string(op)]; ok {
		op = alias
	}
	if op == "" {
		return Node{}, fmt.Errorf("%w: condition on %s has no op", ErrInvalidRule, n.Field)
	}

	operands := n.Values
	if n.Value != "" {
		operands = append([]string{n.Value}, n.Values...)
	}
	if op == OpContains && len(operands) > 1 {
		return containsAny(Field(n.Field), operands)
	}
	c, err := Parse(Field(n.Field), op, operands...)
	if err != nil {
		return Node{}, err
	}
	return Match(c), nil
}

// containsAny expands a contains with several values into an any of single contains.
func containsAny(field Field, values []string) (Node, error) {
	children := make([]Node, 0, len(values))
	for _, v := range values {
		c, err := Parse(field, OpContains, v)
		if err != nil {
			return Node{}, err
		}
		children = append(children, Match(c))
	}
	return Any(children...), nil
}

func buildChildren(defs []NodeDefinition) ([]Node, error) {
	nodes := make([]Node, 0, len(defs))
	for i := range defs {
		n, err := defs[i].build()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
