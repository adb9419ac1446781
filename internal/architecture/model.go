// Package architecture holds the declared architecture model: the component
// hierarchy, dependency contracts between components, and style rules.
//
// A Model is plain data as produced by a loader or a DSL compiler. Index
// validates it once and builds the lookup structures the analysis engine
// needs: the hierarchy, the contract table, and memoized lifting.
package architecture

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultKind is used for contracts and edges that don't name a kind.
const DefaultKind = "depends_on"

// Wildcard matches any component or kind in a style rule.
const Wildcard = "*"

// Rule is the closed set of contract states a declared edge can carry.
type Rule string

const (
	// RuleAllow expects the dependency and permits it
	RuleAllow Rule = "allow"
	// RuleForbid prohibits the dependency
	RuleForbid Rule = "forbid"
	// RuleOptional permits the dependency without expecting it
	RuleOptional Rule = "optional"
	// RuleMustExist requires the dependency to be observed
	RuleMustExist Rule = "must_exist"
	// RuleDeclared is a declared edge with no explicit constraint; it behaves like allow
	RuleDeclared Rule = "declared"
)

// AllRules lists every rule in a stable order.
var AllRules = []Rule{RuleAllow, RuleForbid, RuleOptional, RuleMustExist, RuleDeclared}

// ParseRule converts a string to a Rule. Dashes and case are normalized, so
// "must-exist" and "MUST_EXIST" both parse.
func ParseRule(s string) (Rule, error) {
	norm := Rule(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if norm == "" {
		return RuleDeclared, nil
	}
	if norm.Valid() {
		return norm, nil
	}
	return "", fmt.Errorf("unknown contract rule %q", s)
}

// Valid reports whether r is one of the declared rules.
func (r Rule) Valid() bool {
	switch r {
	case RuleAllow, RuleForbid, RuleOptional, RuleMustExist, RuleDeclared:
		return true
	}
	return false
}

// Permits reports whether a dependency governed by r is acceptable when observed.
func (r Rule) Permits() bool {
	return r.Valid() && r != RuleForbid
}

// Component is a node of the architecture hierarchy. Name is a single
// segment; Parent is the qualified name of the parent or empty for roots.
type Component struct {
	Name   string `json:"name" toml:"name" yaml:"name"`
	Parent string `json:"parent,omitempty" toml:"parent" yaml:"parent"`
	Doc    string `json:"doc,omitempty" toml:"doc" yaml:"doc"`
}

// QualifiedName is the root-to-node path joined with '.'.
func (c Component) QualifiedName() string {
	if c.Parent == "" {
		return c.Name
	}
	return c.Parent + "." + c.Name
}

// Triple identifies an architecture-level edge.
type Triple struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// String renders the triple as "Source -> Target [kind]".
func (t Triple) String() string {
	return t.Source + " -> " + t.Target + " [" + t.Kind + "]"
}

// Less orders triples by source, target, then kind.
func (t Triple) Less(o Triple) bool {
	if t.Source != o.Source {
		return t.Source < o.Source
	}
	if t.Target != o.Target {
		return t.Target < o.Target
	}
	return t.Kind < o.Kind
}

// SortTriples sorts ts in place by (source, target, kind).
func SortTriples(ts []Triple) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Less(ts[j]) })
}

// Contract is a declared architecture edge with its rule.
type Contract struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Rule   Rule   `json:"rule"`
}

// Triple returns the (source, target, kind) key of the contract.
func (c Contract) Triple() Triple {
	return Triple{Source: c.Source, Target: c.Target, Kind: c.Kind}
}

func (c Contract) String() string {
	return string(c.Rule) + " " + c.Triple().String()
}

// StyleRule is a secondary contract: it caps the number of implementation
// edges behind a reflexion edge. Source, Target and Kind accept Wildcard.
type StyleRule struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Kind     string `json:"kind"`
	MaxEdges int    `json:"maxEdges"`
}

// Matches reports whether the rule applies to t.
func (s StyleRule) Matches(t Triple) bool {
	return matchField(s.Source, t.Source) && matchField(s.Target, t.Target) && matchField(s.Kind, t.Kind)
}

func matchField(pattern, value string) bool {
	return pattern == "" || pattern == Wildcard || pattern == value
}

// Model is the declared architecture as handed to the engine.
type Model struct {
	Components []Component `json:"components"`
	Contracts  []Contract  `json:"contracts"`
	Styles     []StyleRule `json:"styles,omitempty"`
}
