package reflexion

import (
	"context"
	"log/slog"
	"time"

	"reflexion/internal/architecture"
	"reflexion/internal/facts"
	"reflexion/internal/mapping"
)

// Build validates the three inputs and assembles a Graph. The graph holds
// its own copies; callers may reuse the arguments afterwards. Build performs
// no propagation or classification.
//
// Validation order: model (hierarchy, contracts, conflicts), facts (node
// identity, edge endpoints), mapping (entries name ingested nodes and known
// components). The first failure aborts the build.
func Build(model *architecture.Model, f *facts.Facts, m *mapping.Table, opts Options) (*Graph, error) {
	opts = opts.normalized()

	idx, err := architecture.NewIndex(model, opts.Limits)
	if err != nil {
		return nil, err
	}

	in := copyFacts(f)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if m == nil {
		m = mapping.New()
	}
	table := m.Clone()

	g := &Graph{
		opts:      opts,
		logger:    opts.Logger,
		arch:      idx,
		nodes:     make(map[string]facts.Node, len(in.Nodes)),
		mapping:   table,
		edgeIndex: make(map[facts.Edge]int, len(in.Edges)),
		incident:  make(map[string]map[int]struct{}),
	}
	for _, n := range in.Nodes {
		g.nodes[n.ID] = n
	}
	for _, entry := range table.Entries() {
		if err := g.checkMappingEntry(entry.Node, entry.Component); err != nil {
			return nil, err
		}
	}
	for _, e := range in.Edges {
		g.insertEdge(e)
	}

	g.InitStates()
	g.version = 1

	g.logger.Debug("Reflexion graph built",
		slog.Int("components", idx.Hierarchy().Len()),
		slog.Int("contracts", len(idx.Contracts())),
		slog.Int("nodes", len(g.nodes)),
		slog.Int("edges", len(g.edges)),
		slog.Int("mapped", table.Len()),
	)
	return g, nil
}

// Analyze runs Build, Propagate and Classify.
func Analyze(ctx context.Context, model *architecture.Model, f *facts.Facts, m *mapping.Table, opts Options) (*Graph, error) {
	start := time.Now()
	g, err := Build(model, f, m, opts)
	if err != nil {
		return nil, err
	}
	if err := g.Propagate(ctx); err != nil {
		return nil, err
	}
	if err := g.Classify(ctx); err != nil {
		return nil, err
	}
	g.logger.Debug("Analysis complete",
		slog.Int("reflexionEdges", len(g.reflexion)),
		slog.Int("violations", g.CountViolations()),
		slog.Duration("duration", time.Since(start)),
	)
	return g, nil
}

// checkMappingEntry verifies that node was ingested and component, when set,
// is part of the hierarchy.
func (g *Graph) checkMappingEntry(node, component string) error {
	if _, ok := g.nodes[node]; !ok {
		return &facts.UnknownNodeError{Node: node, Context: "mapping"}
	}
	if component != "" && !g.arch.Hierarchy().Has(component) {
		return &architecture.UnknownComponentError{Component: component, Node: node}
	}
	return nil
}

func copyFacts(f *facts.Facts) *facts.Facts {
	if f == nil {
		return &facts.Facts{}
	}
	return &facts.Facts{
		Nodes: append([]facts.Node(nil), f.Nodes...),
		Edges: append([]facts.Edge(nil), f.Edges...),
	}
}
