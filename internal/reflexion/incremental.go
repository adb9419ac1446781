package reflexion

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"reflexion/internal/architecture"
	"reflexion/internal/facts"
	"reflexion/internal/mapping"
)

// Change is a reflexion edge whose state changed. Before is empty when the
// edge appeared, After is empty when it disappeared.
type Change struct {
	Triple Triple `json:"triple"`
	Before State  `json:"before,omitempty"`
	After  State  `json:"after,omitempty"`
	// Edge is the edge after the delta, nil when it disappeared.
	Edge *Edge `json:"edge,omitempty"`
}

// DeltaResult is the outcome of one Recompute.
type DeltaResult struct {
	Version uint64 `json:"version"`
	Delta   Delta  `json:"delta"`
	// Reclassified counts the triples that were classified again.
	Reclassified int      `json:"reclassified"`
	Changes      []Change `json:"changes"`
}

// Recompute applies d to the graph's inputs and re-runs propagation and
// classification for the affected triples only. The resulting reflexion
// edges equal those of a fresh Analyze over the post-delta inputs.
//
// d is validated before anything is mutated; on error the graph is
// unchanged. Cancellation is honored only before the delta is applied.
func (g *Graph) Recompute(ctx context.Context, d Delta) (*DeltaResult, error) {
	if g.stage != stageClassified {
		return nil, errNotAnalyzed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.checkShape(); err != nil {
		return nil, err
	}
	start := time.Now()

	touched, contract, err := g.applyDelta(d)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	var reclassify map[Triple]struct{}
	if contract != nil {
		reclassify = g.contractAffected(*contract)
	} else {
		affected, err := g.repropagate(ctx, touched)
		if err != nil {
			return nil, err
		}
		reclassify = g.relink(affected)
	}

	ts := sortedTriples(reclassify)
	before := make([]State, len(ts))
	for i, t := range ts {
		if e, ok := g.reflexion[t]; ok {
			before[i] = e.State
		}
	}

	results, err := g.classifyAll(ctx, ts)
	if err != nil {
		return nil, err
	}

	res := &DeltaResult{Delta: d, Reclassified: len(ts)}
	for i, t := range ts {
		e := results[i]
		var after State
		if e == nil {
			delete(g.reflexion, t)
		} else {
			g.reflexion[t] = e
			after = e.State
		}
		if before[i] != after {
			res.Changes = append(res.Changes, Change{Triple: t, Before: before[i], After: after, Edge: e})
		}
	}

	g.version++
	res.Version = g.version
	g.logger.Debug("Delta applied",
		slog.String("delta", d.String()),
		slog.Int("touchedEdges", len(touched)),
		slog.Int("reclassified", len(ts)),
		slog.Int("changes", len(res.Changes)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// applyDelta validates and applies d to the inputs. It returns the
// implementation edges whose resolution may have changed, or the contract
// triple for contract deltas.
func (g *Graph) applyDelta(d Delta) ([]int, *Triple, error) {
	switch d.Kind {
	case DeltaAddNode:
		n := *d.Node
		if _, ok := g.nodes[n.ID]; ok {
			return nil, nil, &InvalidDeltaError{Delta: d, Reason: "node already exists"}
		}
		origin, err := g.checkOrigin(d)
		if err != nil {
			return nil, nil, err
		}
		if d.Component != "" && !g.arch.Hierarchy().Has(d.Component) {
			return nil, nil, &architecture.UnknownComponentError{Component: d.Component, Node: n.ID}
		}
		g.nodes[n.ID] = n
		if d.Component != "" {
			g.mapping.SetOverwrite(n.ID, d.Component, origin)
		}
		return nil, nil, nil

	case DeltaRemoveNode:
		id := d.Node.ID
		if _, ok := g.nodes[id]; !ok {
			return nil, nil, &facts.UnknownNodeError{Node: id, Context: "delta " + string(d.Kind)}
		}
		touched := g.incidentEdges(id)
		for _, idx := range touched {
			g.releaseEdge(idx, true)
		}
		g.mapping.Remove(id)
		delete(g.nodes, id)
		return touched, nil, nil

	case DeltaAddEdge:
		e := *d.Edge
		if e.Kind == "" {
			e.Kind = architecture.DefaultKind
		}
		for _, end := range []string{e.Source, e.Target} {
			if _, ok := g.nodes[end]; !ok {
				return nil, nil, &facts.UnknownNodeError{Node: end, Edge: &e}
			}
		}
		return []int{g.insertEdge(e)}, nil, nil

	case DeltaRemoveEdge:
		e := *d.Edge
		if e.Kind == "" {
			e.Kind = architecture.DefaultKind
		}
		idx, ok := g.edgeIndex[e]
		if !ok || !g.edges[idx].Live {
			return nil, nil, &InvalidDeltaError{Delta: d, Reason: "edge is not present"}
		}
		g.releaseEdge(idx, false)
		return []int{idx}, nil, nil

	case DeltaSetMapping:
		id := d.Node.ID
		if _, ok := g.nodes[id]; !ok {
			return nil, nil, &facts.UnknownNodeError{Node: id, Context: "delta " + string(d.Kind)}
		}
		origin, err := g.checkOrigin(d)
		if err != nil {
			return nil, nil, err
		}
		if d.Component != "" && !g.arch.Hierarchy().Has(d.Component) {
			return nil, nil, &architecture.UnknownComponentError{Component: d.Component, Node: id}
		}
		g.mapping.SetOverwrite(id, d.Component, origin)
		return g.incidentEdges(id), nil, nil

	case DeltaAddContract:
		c := contractOf(d)
		if err := g.arch.AddContract(c); err != nil {
			return nil, nil, err
		}
		t := c.Triple()
		return nil, &t, nil

	case DeltaRemoveContract:
		c := contractOf(d)
		if _, err := g.arch.RemoveContract(c.Triple()); err != nil {
			return nil, nil, err
		}
		t := c.Triple()
		return nil, &t, nil

	case DeltaChangeContract:
		c := contractOf(d)
		if _, err := g.arch.ChangeContract(c); err != nil {
			return nil, nil, err
		}
		t := c.Triple()
		return nil, &t, nil
	}
	return nil, nil, &InvalidDeltaError{Delta: d, Reason: "unknown delta kind"}
}

func (g *Graph) checkOrigin(d Delta) (mapping.Origin, error) {
	origin, err := mapping.ParseOrigin(string(d.Origin))
	if err != nil {
		return "", &InvalidDeltaError{Delta: d, Reason: err.Error()}
	}
	return origin, nil
}

func contractOf(d Delta) architecture.Contract {
	c := *d.Contract
	if c.Kind == "" {
		c.Kind = architecture.DefaultKind
	}
	return c
}

func (g *Graph) incidentEdges(id string) []int {
	set := g.incident[id]
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// repropagate clears the derived triples touched edges resolved to before
// and after the delta, then propagates again every edge that contributed to
// them. It returns the affected derived triples.
func (g *Graph) repropagate(ctx context.Context, touched []int) (map[Triple]struct{}, error) {
	affected := make(map[Triple]struct{})
	for _, idx := range touched {
		if t, ok := g.edgeTriple[idx]; ok {
			affected[t] = struct{}{}
		}
		if !g.edges[idx].Live {
			continue
		}
		if t, res := g.resolve(idx); res == resolvedDerived {
			affected[t] = struct{}{}
		}
	}

	candidates := make(map[int]struct{}, len(touched))
	for _, idx := range touched {
		candidates[idx] = struct{}{}
	}
	for t := range affected {
		for _, idx := range g.derived[t] {
			candidates[idx] = struct{}{}
		}
		delete(g.derived, t)
	}

	live := make([]int, 0, len(candidates))
	for idx := range candidates {
		delete(g.edgeTriple, idx)
		delete(g.unmapped, idx)
		if g.edges[idx].Live {
			live = append(live, idx)
		}
	}
	sort.Ints(live)

	parts, err := g.propagateEdges(ctx, live)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		for t := range p.derived {
			affected[t] = struct{}{}
		}
	}
	g.merge(parts)
	return affected, nil
}

// relink refreshes the governs index for the affected derived triples and
// returns every triple whose classification may have changed: the triples
// themselves and their governing contracts before and after.
func (g *Graph) relink(affected map[Triple]struct{}) map[Triple]struct{} {
	out := make(map[Triple]struct{}, len(affected)*2)
	for t := range affected {
		out[t] = struct{}{}
		if gov, ok := g.unlink(t); ok {
			out[gov] = struct{}{}
		}
	}
	for t := range affected {
		if _, ok := g.derived[t]; !ok {
			continue
		}
		g.link(t)
		if gov, ok := g.governedBy[t]; ok {
			out[gov] = struct{}{}
		}
	}
	return out
}

// contractAffected handles a change to the contract at c. Only derived
// triples at or beneath c can change their governing contract.
func (g *Graph) contractAffected(c Triple) map[Triple]struct{} {
	beneath := make(map[Triple]struct{})
	for d := range g.derived {
		if g.arch.Beneath(d, c) {
			beneath[d] = struct{}{}
		}
	}
	out := g.relink(beneath)
	out[c] = struct{}{}
	return out
}
