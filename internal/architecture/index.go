package architecture

import (
	"fmt"
	"sort"
)

// Index is a validated model: hierarchy, contract table, style rules and the
// lifting memo. It is owned by one analysis session.
type Index struct {
	hier   *Hierarchy
	rules  map[Triple]Rule
	styles []StyleRule
	lifts  *LiftCache
}

// NewIndex validates m and builds an Index. Validation order: hierarchy,
// contracts, style rules, then duplicate triples. The first failing stage
// determines the error.
func NewIndex(m *Model, limits Limits) (*Index, error) {
	if m == nil {
		m = &Model{}
	}

	hier, err := newHierarchy(m.Components, limits)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		hier:  hier,
		rules: make(map[Triple]Rule, len(m.Contracts)),
		lifts: NewLiftCache(),
	}

	byTriple := make(map[Triple][]Contract, len(m.Contracts))
	for _, c := range m.Contracts {
		if err := idx.CheckContract(c); err != nil {
			return nil, err
		}
		byTriple[c.Triple()] = append(byTriple[c.Triple()], c)
	}

	for _, s := range m.Styles {
		if err := idx.checkStyle(s); err != nil {
			return nil, err
		}
	}

	var conflicts []ContractConflict
	for t, decls := range byTriple {
		if len(decls) > 1 {
			conflicts = append(conflicts, ContractConflict{Triple: t, Declarations: decls})
			continue
		}
		idx.rules[t] = decls[0].Rule
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Triple.Less(conflicts[j].Triple) })
		return nil, &ConflictingContractError{Conflicts: conflicts}
	}

	idx.styles = append([]StyleRule(nil), m.Styles...)
	return idx, nil
}

// CheckContract validates a single contract against the hierarchy without
// looking at the existing contract table.
func (idx *Index) CheckContract(c Contract) error {
	if c.Kind == "" {
		return &InvalidContractError{Declaration: c.String(), Reason: "kind is empty"}
	}
	if !c.Rule.Valid() {
		return &InvalidContractError{Declaration: c.String(), Reason: fmt.Sprintf("unknown rule %q", c.Rule)}
	}
	for _, name := range []string{c.Source, c.Target} {
		if !idx.hier.Has(name) {
			return &UnknownComponentError{Component: name, Context: "contract " + c.Triple().String()}
		}
	}
	if c.Source == c.Target {
		return &InvalidContractError{Declaration: c.String(), Reason: "source and target are the same component"}
	}
	if idx.hier.Nested(c.Source, c.Target) {
		return &InvalidContractError{Declaration: c.String(), Reason: "source and target are nested; edges between them are intra-component"}
	}
	return nil
}

func (idx *Index) checkStyle(s StyleRule) error {
	decl := "style rule " + s.Name
	if s.MaxEdges < 0 {
		return &InvalidContractError{Declaration: decl, Reason: "maxEdges must not be negative"}
	}
	for _, name := range []string{s.Source, s.Target} {
		if name != "" && name != Wildcard && !idx.hier.Has(name) {
			return &UnknownComponentError{Component: name, Context: decl}
		}
	}
	return nil
}

// Hierarchy returns the component tree.
func (idx *Index) Hierarchy() *Hierarchy {
	return idx.hier
}

// Rule returns the contract declared exactly at t.
func (idx *Index) Rule(t Triple) (Rule, bool) {
	r, ok := idx.rules[t]
	return r, ok
}

// Styles returns the style rules in declaration order.
func (idx *Index) Styles() []StyleRule {
	return idx.styles
}

// Contracts returns every contract sorted by triple.
func (idx *Index) Contracts() []Contract {
	out := make([]Contract, 0, len(idx.rules))
	for t, r := range idx.rules {
		out = append(out, Contract{Source: t.Source, Target: t.Target, Kind: t.Kind, Rule: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Triple().Less(out[j].Triple()) })
	return out
}

// Model reconstructs the current model, including contract mutations.
func (idx *Index) Model() *Model {
	return &Model{
		Components: idx.hier.Components(),
		Contracts:  idx.Contracts(),
		Styles:     append([]StyleRule(nil), idx.styles...),
	}
}

// AddContract declares a new contract. The triple must not already have one.
func (idx *Index) AddContract(c Contract) error {
	if err := idx.CheckContract(c); err != nil {
		return err
	}
	if old, ok := idx.rules[c.Triple()]; ok {
		return &ConflictingContractError{Conflicts: []ContractConflict{{
			Triple:       c.Triple(),
			Declarations: []Contract{{Source: c.Source, Target: c.Target, Kind: c.Kind, Rule: old}, c},
		}}}
	}
	idx.rules[c.Triple()] = c.Rule
	idx.lifts.Clear()
	return nil
}

// ChangeContract replaces the rule of an existing contract and returns the old rule.
func (idx *Index) ChangeContract(c Contract) (Rule, error) {
	if err := idx.CheckContract(c); err != nil {
		return "", err
	}
	old, ok := idx.rules[c.Triple()]
	if !ok {
		return "", &InvalidContractError{Declaration: c.String(), Reason: "no contract declared for this triple"}
	}
	idx.rules[c.Triple()] = c.Rule
	idx.lifts.Clear()
	return old, nil
}

// RemoveContract deletes the contract at t and returns its rule.
func (idx *Index) RemoveContract(t Triple) (Rule, error) {
	old, ok := idx.rules[t]
	if !ok {
		return "", &InvalidContractError{Declaration: t.String(), Reason: "no contract declared for this triple"}
	}
	delete(idx.rules, t)
	idx.lifts.Clear()
	return old, nil
}

// Lift finds the contract governing t: candidates pair the i-th ancestor of
// the source with the j-th ancestor of the target (self is ancestor 0),
// visited by increasing i+j, then i. Pairs that collapse onto one component
// are skipped. The first candidate with a contract of the same kind wins, so
// the nearest contract is authoritative.
func (idx *Index) Lift(t Triple) Lifted {
	if l, ok := idx.lifts.Get(t); ok {
		return l
	}

	srcChain := idx.hier.Ancestors(t.Source)
	tgtChain := idx.hier.Ancestors(t.Target)

	var result Lifted
search:
	for sum := 0; sum <= len(srcChain)+len(tgtChain)-2; sum++ {
		for i := 0; i <= sum; i++ {
			j := sum - i
			if i >= len(srcChain) || j >= len(tgtChain) {
				continue
			}
			s, g := srcChain[i], tgtChain[j]
			if s == g {
				continue
			}
			cand := Triple{Source: s, Target: g, Kind: t.Kind}
			if r, ok := idx.rules[cand]; ok {
				result = Lifted{Governing: cand, Rule: r, Found: true}
				break search
			}
		}
	}

	idx.lifts.Set(t, result)
	return result
}

// Beneath reports whether t lies at or below c in the hierarchy: same kind,
// and each endpoint of t is the matching endpoint of c or one of its
// descendants. Only such triples can be governed by a contract at c.
func (idx *Index) Beneath(t, c Triple) bool {
	return t.Kind == c.Kind &&
		idx.hier.IsAncestorOrSelf(c.Source, t.Source) &&
		idx.hier.IsAncestorOrSelf(c.Target, t.Target)
}

// LiftCacheSize returns the number of memoized lifts.
func (idx *Index) LiftCacheSize() int {
	return idx.lifts.Size()
}
