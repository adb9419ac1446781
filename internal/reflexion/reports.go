package reflexion

import (
	"sort"

	"reflexion/internal/facts"
	"reflexion/internal/output"
)

// DerivedView is a derived architecture edge with its provenance resolved to
// implementation edges.
type DerivedView struct {
	Source     string       `json:"source"`
	Target     string       `json:"target"`
	Kind       string       `json:"kind"`
	Provenance []facts.Edge `json:"provenance"`
}

// UnmappedEdge is an observed edge with at least one unmapped endpoint.
type UnmappedEdge struct {
	Edge           facts.Edge `json:"edge"`
	State          State      `json:"state"`
	SourceUnmapped bool       `json:"sourceUnmapped,omitempty"`
	TargetUnmapped bool       `json:"targetUnmapped,omitempty"`
}

// UnmappedReport lists everything the mapping does not resolve.
type UnmappedReport struct {
	Nodes []string       `json:"nodes"`
	Edges []UnmappedEdge `json:"edges"`
}

// Summary aggregates a snapshot.
type Summary struct {
	ReflexionEdges      int           `json:"reflexionEdges"`
	DerivedEdges        int           `json:"derivedEdges"`
	ImplementationEdges int           `json:"implementationEdges"`
	States              map[State]int `json:"states"`
	Violations          int           `json:"violations"`
	// Conformance is the share of reflexion edges that are not violations.
	Conformance float64 `json:"conformance"`
}

// Snapshot is the complete, deterministic result of an analysis.
type Snapshot struct {
	Version  uint64         `json:"version"`
	Edges    []Edge         `json:"edges"`
	Derived  []DerivedView  `json:"derived"`
	Unmapped UnmappedReport `json:"unmapped"`
	Summary  Summary        `json:"summary"`
}

// ReflexionEdges returns copies of all classified edges sorted by triple.
func (g *Graph) ReflexionEdges() []Edge {
	ts := make([]Triple, 0, len(g.reflexion))
	for t := range g.reflexion {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Less(ts[j]) })

	out := make([]Edge, len(ts))
	for i, t := range ts {
		out[i] = *g.reflexion[t]
	}
	return out
}

// ReflexionEdge returns the classified edge for t.
func (g *Graph) ReflexionEdge(t Triple) (Edge, bool) {
	e, ok := g.reflexion[t]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// DerivedEdges returns the derived edges sorted by triple.
func (g *Graph) DerivedEdges() []DerivedView {
	ts := make([]Triple, 0, len(g.derived))
	for t := range g.derived {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Less(ts[j]) })

	out := make([]DerivedView, len(ts))
	for i, t := range ts {
		out[i] = DerivedView{
			Source:     t.Source,
			Target:     t.Target,
			Kind:       t.Kind,
			Provenance: g.edgeRefs(g.derived[t]),
		}
	}
	return out
}

// UnmappedReport lists unmapped nodes and the edges they leave unresolved.
func (g *Graph) UnmappedReport() UnmappedReport {
	r := UnmappedReport{Nodes: []string{}, Edges: []UnmappedEdge{}}
	for id := range g.nodes {
		if _, ok := g.mapping.Lookup(id); !ok {
			r.Nodes = append(r.Nodes, id)
		}
	}
	sort.Strings(r.Nodes)

	for idx := range g.unmapped {
		e := g.edges[idx].Edge
		_, srcOK := g.mapping.Lookup(e.Source)
		_, tgtOK := g.mapping.Lookup(e.Target)
		r.Edges = append(r.Edges, UnmappedEdge{
			Edge:           e,
			State:          StateUnmapped,
			SourceUnmapped: !srcOK,
			TargetUnmapped: !tgtOK,
		})
	}
	sort.Slice(r.Edges, func(i, j int) bool { return r.Edges[i].Edge.Less(r.Edges[j].Edge) })
	return r
}

// CountViolations returns the number of divergent reflexion edges.
func (g *Graph) CountViolations() int {
	n := 0
	for _, e := range g.reflexion {
		if e.State.IsViolation() {
			n++
		}
	}
	return n
}

// Snapshot collects every report. Encoding it with output.DeterministicEncode
// gives identical bytes for identical inputs, apart from Version.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Version:  g.version,
		Edges:    g.ReflexionEdges(),
		Derived:  g.DerivedEdges(),
		Unmapped: g.UnmappedReport(),
	}

	states := make(map[State]int, len(AllStates))
	for _, e := range s.Edges {
		states[e.State]++
	}
	if n := len(s.Unmapped.Edges); n > 0 {
		states[StateUnmapped] = n
	}
	violations := g.CountViolations()

	live := 0
	for _, slot := range g.edges {
		if slot.Live {
			live++
		}
	}
	s.Summary = Summary{
		ReflexionEdges:      len(s.Edges),
		DerivedEdges:        len(s.Derived),
		ImplementationEdges: live,
		States:              states,
		Violations:          violations,
		Conformance:         output.RoundFloat(output.Ratio(len(s.Edges)-violations, len(s.Edges))),
	}
	return s
}

func sortNodes(ns []facts.Node) {
	sort.Slice(ns, func(i, j int) bool { return ns[i].ID < ns[j].ID })
}
