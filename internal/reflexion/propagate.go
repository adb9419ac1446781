package reflexion

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

type resolution int

const (
	resolvedDerived resolution = iota
	resolvedIntra
	resolvedUnmapped
)

// resolve maps both endpoints of edge idx to components.
func (g *Graph) resolve(idx int) (Triple, resolution) {
	e := g.edges[idx].Edge
	src, okSrc := g.mapping.Lookup(e.Source)
	tgt, okTgt := g.mapping.Lookup(e.Target)
	switch {
	case !okSrc || !okTgt:
		return Triple{}, resolvedUnmapped
	case g.arch.Hierarchy().Nested(src, tgt):
		return Triple{}, resolvedIntra
	}
	return Triple{Source: src, Target: tgt, Kind: e.Kind}, resolvedDerived
}

// partial is one worker's accumulation. Workers never share a partial.
type partial struct {
	derived    map[Triple][]int
	edgeTriple map[int]Triple
	unmapped   []int
	intra      int
}

func newPartial() *partial {
	return &partial{
		derived:    make(map[Triple][]int),
		edgeTriple: make(map[int]Triple),
	}
}

func (g *Graph) propagateRange(idxs []int, p *partial) {
	for _, idx := range idxs {
		t, res := g.resolve(idx)
		switch res {
		case resolvedUnmapped:
			p.unmapped = append(p.unmapped, idx)
		case resolvedIntra:
			p.intra++
		case resolvedDerived:
			p.derived[t] = append(p.derived[t], idx)
			p.edgeTriple[idx] = t
		}
	}
}

// propagateEdges resolves idxs, fanning out over disjoint partitions when
// the input is large enough. The graph is only read here.
func (g *Graph) propagateEdges(ctx context.Context, idxs []int) ([]*partial, error) {
	workers := g.opts.Workers
	if len(idxs) < g.opts.ParallelThreshold || workers <= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := newPartial()
		g.propagateRange(idxs, p)
		return []*partial{p}, nil
	}

	chunk := (len(idxs) + workers - 1) / workers
	parts := make([]*partial, 0, workers)
	for start := 0; start < len(idxs); start += chunk {
		parts = append(parts, newPartial())
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range parts {
		start := i * chunk
		end := min(start+chunk, len(idxs))
		p := parts[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			g.propagateRange(idxs[start:end], p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// merge folds worker partials into the graph. Provenance is a set union, so
// the order partials arrive in does not matter once lists are sorted.
func (g *Graph) merge(parts []*partial) (intra int) {
	touched := make(map[Triple]struct{})
	for _, p := range parts {
		for t, prov := range p.derived {
			g.derived[t] = append(g.derived[t], prov...)
			touched[t] = struct{}{}
		}
		for idx, t := range p.edgeTriple {
			g.edgeTriple[idx] = t
		}
		for _, idx := range p.unmapped {
			g.unmapped[idx] = struct{}{}
		}
		intra += p.intra
	}
	for t := range touched {
		sort.Ints(g.derived[t])
	}
	return intra
}

// ClearPropagatedEdges drops every derived edge, unmapped marker and
// classification result. Propagate calls it first, so re-running on
// unchanged inputs produces identical tables.
func (g *Graph) ClearPropagatedEdges() {
	g.InitStates()
}

// Propagate projects every live implementation edge onto the architecture
// level. An edge with an unmapped endpoint becomes an unmapped marker; an
// edge inside one component is dropped; every other edge joins the derived
// edge for (comp(source), comp(target), kind).
func (g *Graph) Propagate(ctx context.Context) error {
	start := time.Now()
	g.ClearPropagatedEdges()

	parts, err := g.propagateEdges(ctx, g.liveEdges())
	if err != nil {
		return err
	}
	intra := g.merge(parts)

	g.stage = stagePropagated
	g.version++
	g.logger.Debug("Propagation complete",
		slog.Int("derived", len(g.derived)),
		slog.Int("unmappedEdges", len(g.unmapped)),
		slog.Int("intraComponent", intra),
		slog.Int("partitions", len(parts)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
