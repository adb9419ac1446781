package reflexion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"reflexion/internal/architecture"
	"reflexion/internal/facts"
)

// CheckedContract is the contract an edge was classified against. Lifted is
// set when it was found at an ancestor pair rather than at the edge itself.
type CheckedContract struct {
	Triple Triple            `json:"triple"`
	Rule   architecture.Rule `json:"rule"`
	Lifted bool              `json:"lifted,omitempty"`
}

// Diagnostic is a style rule finding. It never changes the edge's state.
type Diagnostic struct {
	Style    string `json:"style"`
	Message  string `json:"message"`
	Count    int    `json:"count"`
	MaxEdges int    `json:"maxEdges"`
}

// Edge is a classified architecture edge.
type Edge struct {
	Source   string           `json:"source"`
	Target   string           `json:"target"`
	Kind     string           `json:"kind"`
	State    State            `json:"state"`
	Contract *CheckedContract `json:"contract,omitempty"`
	// Provenance lists the implementation edges behind the verdict, including
	// those of descendant triples this contract governs.
	Provenance  []facts.Edge `json:"provenance,omitempty"`
	LiftedFrom  []Triple     `json:"liftedFrom,omitempty"`
	Trace       []string     `json:"trace"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Triple returns the (source, target, kind) key of the edge.
func (e Edge) Triple() Triple {
	return Triple{Source: e.Source, Target: e.Target, Kind: e.Kind}
}

// decide is the classification precedence. present means a derived edge
// exists at the triple or beneath it under this contract.
func decide(rule architecture.Rule, declared, present bool, lifted architecture.Lifted) State {
	if declared {
		switch rule {
		case architecture.RuleForbid:
			if present {
				return StateDivergent
			}
			return StateAllowedAbsent
		case architecture.RuleAllow, architecture.RuleDeclared:
			if present {
				return StateConvergent
			}
			return StateAbsent
		case architecture.RuleMustExist:
			if present {
				return StateConvergent
			}
			return StateDivergent
		case architecture.RuleOptional:
			return StateAllowed
		}
	}
	if lifted.Found && lifted.Rule.Permits() {
		return StateImplicitlyAllowed
	}
	return StateDivergent
}

// link records that derived triple d is governed by an ancestor contract.
func (g *Graph) link(d Triple) {
	l := g.arch.Lift(d)
	if !l.Found || l.Governing == d {
		return
	}
	set, ok := g.governs[l.Governing]
	if !ok {
		set = make(map[Triple]struct{})
		g.governs[l.Governing] = set
	}
	set[d] = struct{}{}
	g.governedBy[d] = l.Governing
}

// unlink removes d from the governs index and returns its old governor.
func (g *Graph) unlink(d Triple) (Triple, bool) {
	gov, ok := g.governedBy[d]
	if !ok {
		return Triple{}, false
	}
	delete(g.governedBy, d)
	if set := g.governs[gov]; set != nil {
		delete(set, d)
		if len(set) == 0 {
			delete(g.governs, gov)
		}
	}
	return gov, true
}

// classifyTriple computes the reflexion edge for t, or nil when t is neither
// declared nor derived. It only reads the graph.
func (g *Graph) classifyTriple(t Triple) *Edge {
	rule, declared := g.arch.Rule(t)
	own := g.derived[t]

	var liftedFrom []Triple
	if declared {
		for d := range g.governs[t] {
			liftedFrom = append(liftedFrom, d)
		}
		architecture.SortTriples(liftedFrom)
	}
	present := len(own) > 0 || len(liftedFrom) > 0
	if !declared && !present {
		return nil
	}

	var lifted architecture.Lifted
	if !declared {
		lifted = g.arch.Lift(t)
	}

	e := &Edge{
		Source:     t.Source,
		Target:     t.Target,
		Kind:       t.Kind,
		State:      decide(rule, declared, present, lifted),
		LiftedFrom: liftedFrom,
	}

	switch {
	case declared:
		e.Contract = &CheckedContract{Triple: t, Rule: rule}
	case lifted.Found:
		e.Contract = &CheckedContract{Triple: lifted.Governing, Rule: lifted.Rule, Lifted: true}
	}

	provIdx := append([]int(nil), own...)
	for _, d := range liftedFrom {
		provIdx = append(provIdx, g.derived[d]...)
	}
	e.Provenance = g.edgeRefs(provIdx)

	e.Trace = g.trace(e, len(own))
	e.Diagnostics = g.checkStyles(t, len(e.Provenance))
	for _, d := range e.Diagnostics {
		e.Trace = append(e.Trace, "style "+d.Message)
	}
	return e
}

func (g *Graph) trace(e *Edge, own int) []string {
	var tr []string
	if own > 0 {
		tr = append(tr, fmt.Sprintf("derived from %d implementation edge(s)", own))
	} else {
		tr = append(tr, "no implementation edge at this triple")
	}
	for _, d := range e.LiftedFrom {
		tr = append(tr, fmt.Sprintf("lifted %d implementation edge(s) from %s", len(g.derived[d]), d))
	}
	switch {
	case e.Contract == nil:
		tr = append(tr, "no contract at this triple or any ancestor pair")
	case e.Contract.Lifted:
		tr = append(tr, fmt.Sprintf("no contract at this triple; nearest ancestor contract %s %s", e.Contract.Rule, e.Contract.Triple))
	default:
		tr = append(tr, fmt.Sprintf("contract %s declared at this triple", e.Contract.Rule))
	}
	return append(tr, "state "+string(e.State))
}

// checkStyles evaluates style rules against the number of implementation
// edges behind t.
func (g *Graph) checkStyles(t Triple, count int) []Diagnostic {
	var out []Diagnostic
	for _, s := range g.arch.Styles() {
		if !s.Matches(t) || count <= s.MaxEdges {
			continue
		}
		out = append(out, Diagnostic{
			Style:    s.Name,
			Message:  fmt.Sprintf("%s: %d implementation edges exceed the maximum of %d", s.Name, count, s.MaxEdges),
			Count:    count,
			MaxEdges: s.MaxEdges,
		})
	}
	return out
}

// edgeRefs converts arena indexes to edge values, deduplicated and sorted.
func (g *Graph) edgeRefs(idxs []int) []facts.Edge {
	if len(idxs) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(idxs))
	out := make([]facts.Edge, 0, len(idxs))
	for _, idx := range idxs {
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, g.edges[idx].Edge)
	}
	facts.SortEdges(out)
	return out
}

// classifyAll classifies ts, fanning out when there are enough of them. Each
// worker writes only its own result slots.
func (g *Graph) classifyAll(ctx context.Context, ts []Triple) ([]*Edge, error) {
	results := make([]*Edge, len(ts))
	workers := g.opts.Workers
	if len(ts) < g.opts.ParallelThreshold || workers <= 1 {
		for i, t := range ts {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			results[i] = g.classifyTriple(t)
		}
		return results, nil
	}

	chunk := (len(ts) + workers - 1) / workers
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < len(ts); start += chunk {
		start := start
		end := min(start+chunk, len(ts))
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				results[i] = g.classifyTriple(ts[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Classify assigns a reflexion state to every triple that is declared,
// derived, or both. It must run after Propagate.
func (g *Graph) Classify(ctx context.Context) error {
	if g.stage < stagePropagated {
		return errNotPropagated
	}
	start := time.Now()

	g.reflexion = make(map[Triple]*Edge)
	g.governs = make(map[Triple]map[Triple]struct{})
	g.governedBy = make(map[Triple]Triple)
	for d := range g.derived {
		g.link(d)
	}

	set := make(map[Triple]struct{}, len(g.derived))
	for d := range g.derived {
		set[d] = struct{}{}
	}
	for _, c := range g.arch.Contracts() {
		set[c.Triple()] = struct{}{}
	}
	ts := sortedTriples(set)

	results, err := g.classifyAll(ctx, ts)
	if err != nil {
		return err
	}
	for i, e := range results {
		if e != nil {
			g.reflexion[ts[i]] = e
		}
	}

	g.stage = stageClassified
	g.version++
	g.logger.Debug("Classification complete",
		slog.Int("triples", len(ts)),
		slog.Int("reflexionEdges", len(g.reflexion)),
		slog.Int("liftCache", g.arch.LiftCacheSize()),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func sortedTriples(set map[Triple]struct{}) []Triple {
	out := make([]Triple, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
