// Package reflexion compares a declared architecture with observed
// implementation dependencies.
//
// A Graph is the session aggregate: it owns a validated copy of the model,
// the implementation facts, and the mapping, plus everything derived from
// them. Analysis runs in fixed stages:
//
//	Build -> InitStates -> Propagate (ClearPropagatedEdges first) -> Classify
//
// after which Recompute applies single deltas and re-runs both stages on the
// affected triples only. A Graph has a single writer; the exported read
// methods may be called concurrently with each other but not with a stage.
package reflexion

import (
	"log/slog"
	"runtime"

	"reflexion/internal/architecture"
	"reflexion/internal/config"
	"reflexion/internal/facts"
	"reflexion/internal/mapping"
	"reflexion/internal/slogutil"
)

// Triple identifies an architecture-level edge.
type Triple = architecture.Triple

// State is the reflexion verdict for one triple.
type State string

const (
	// StateConvergent: expected and observed
	StateConvergent State = "convergent"
	// StateDivergent: observed against a contract, or required and missing
	StateDivergent State = "divergent"
	// StateAbsent: allowed but not observed
	StateAbsent State = "absent"
	// StateAllowed: optional, observed or not
	StateAllowed State = "allowed"
	// StateAllowedAbsent: forbidden and not observed
	StateAllowedAbsent State = "allowed_absent"
	// StateImplicitlyAllowed: observed, undeclared, permitted by an ancestor contract
	StateImplicitlyAllowed State = "implicitly_allowed"
	// StateUnmapped: observed edge with an endpoint outside the mapping
	StateUnmapped State = "unmapped"
)

// AllStates lists the states in report order.
var AllStates = []State{
	StateConvergent,
	StateDivergent,
	StateAbsent,
	StateAllowed,
	StateAllowedAbsent,
	StateImplicitlyAllowed,
	StateUnmapped,
}

// IsViolation reports whether s counts against conformance.
func (s State) IsViolation() bool {
	return s == StateDivergent
}

// Options tunes a session. Zero values fall back to defaults.
type Options struct {
	// Workers bounds fan-out in propagation and classification.
	Workers int
	// ParallelThreshold is the work size below which stages stay sequential.
	ParallelThreshold int
	Limits            architecture.Limits
	Logger            *slog.Logger
}

// DefaultOptions returns options matching config.DefaultConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig(), nil)
}

// OptionsFromConfig maps the analysis section of cfg onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return Options{
		Workers:           cfg.Analysis.Workers,
		ParallelThreshold: cfg.Analysis.ParallelThreshold,
		Limits:            architecture.DefaultLimits(),
		Logger:            logger,
	}
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ParallelThreshold <= 0 {
		o.ParallelThreshold = config.DefaultConfig().Analysis.ParallelThreshold
	}
	if o.Limits == (architecture.Limits{}) {
		o.Limits = architecture.DefaultLimits()
	}
	if o.Logger == nil {
		o.Logger = slogutil.NewDiscardLogger()
	}
	return o
}

type stage int

const (
	stageBuilt stage = iota
	stagePropagated
	stageClassified
)

// edgeSlot is one row of the implementation-edge arena. Slots are never
// reused for a different edge, so provenance indexes stay stable; a removed
// edge keeps its slot with Live=false and is revived if added again.
type edgeSlot struct {
	Edge  facts.Edge
	Count int
	Live  bool
}

// Graph is the reflexion session aggregate.
type Graph struct {
	opts   Options
	logger *slog.Logger

	arch    *architecture.Index
	nodes   map[string]facts.Node
	mapping *mapping.Table

	edges     []edgeSlot
	edgeIndex map[facts.Edge]int
	incident  map[string]map[int]struct{}

	// derived state
	derived    map[Triple][]int
	edgeTriple map[int]Triple
	unmapped   map[int]struct{}
	reflexion  map[Triple]*Edge
	governs    map[Triple]map[Triple]struct{}
	governedBy map[Triple]Triple

	version uint64
	stage   stage
}

// InitStates resets every derived table to empty. It is the defined
// starting point before propagation.
func (g *Graph) InitStates() {
	g.derived = make(map[Triple][]int)
	g.edgeTriple = make(map[int]Triple)
	g.unmapped = make(map[int]struct{})
	g.reflexion = make(map[Triple]*Edge)
	g.governs = make(map[Triple]map[Triple]struct{})
	g.governedBy = make(map[Triple]Triple)
	g.stage = stageBuilt
}

// Version increases with every stage run and applied delta.
func (g *Graph) Version() uint64 {
	return g.version
}

// Architecture returns the session's contract index.
func (g *Graph) Architecture() *architecture.Index {
	return g.arch
}

// Lift returns the contract triple governing t and whether one exists. The
// nearest ancestor pair with a contract of the same kind wins; a contract at
// t itself governs t.
func (g *Graph) Lift(t Triple) (Triple, bool) {
	l := g.arch.Lift(t)
	return l.Governing, l.Found
}

// Inputs reconstructs the current model, facts and mapping. Analyzing them
// from scratch yields the same reflexion edges as this graph.
func (g *Graph) Inputs() (*architecture.Model, *facts.Facts, *mapping.Table) {
	f := &facts.Facts{
		Nodes: make([]facts.Node, 0, len(g.nodes)),
	}
	for _, n := range g.nodes {
		f.Nodes = append(f.Nodes, n)
	}
	sortNodes(f.Nodes)
	for _, slot := range g.edges {
		for i := 0; slot.Live && i < slot.Count; i++ {
			f.Edges = append(f.Edges, slot.Edge)
		}
	}
	facts.SortEdges(f.Edges)
	return g.arch.Model(), f, g.mapping.Clone()
}

func (g *Graph) addIncident(idx int) {
	e := g.edges[idx].Edge
	for _, id := range []string{e.Source, e.Target} {
		set, ok := g.incident[id]
		if !ok {
			set = make(map[int]struct{})
			g.incident[id] = set
		}
		set[idx] = struct{}{}
	}
}

func (g *Graph) dropIncident(idx int) {
	e := g.edges[idx].Edge
	for _, id := range []string{e.Source, e.Target} {
		if set, ok := g.incident[id]; ok {
			delete(set, idx)
			if len(set) == 0 {
				delete(g.incident, id)
			}
		}
	}
}

// insertEdge adds one occurrence of e and returns its arena index.
func (g *Graph) insertEdge(e facts.Edge) int {
	if idx, ok := g.edgeIndex[e]; ok {
		slot := &g.edges[idx]
		if !slot.Live {
			slot.Live = true
			slot.Count = 0
			g.addIncident(idx)
		}
		slot.Count++
		return idx
	}
	idx := len(g.edges)
	g.edges = append(g.edges, edgeSlot{Edge: e, Count: 1, Live: true})
	g.edgeIndex[e] = idx
	g.addIncident(idx)
	return idx
}

// releaseEdge removes one occurrence, or all of them when all is set, and
// reports whether the edge died.
func (g *Graph) releaseEdge(idx int, all bool) bool {
	slot := &g.edges[idx]
	if all {
		slot.Count = 0
	} else {
		slot.Count--
	}
	if slot.Count > 0 {
		return false
	}
	slot.Live = false
	g.dropIncident(idx)
	return true
}

func (g *Graph) liveEdges() []int {
	out := make([]int, 0, len(g.edges))
	for i, slot := range g.edges {
		if slot.Live {
			out = append(out, i)
		}
	}
	return out
}
