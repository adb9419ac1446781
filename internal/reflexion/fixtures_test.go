package reflexion

import (
	"context"
	"testing"

	"reflexion/internal/architecture"
	"reflexion/internal/facts"
	"reflexion/internal/mapping"
	"reflexion/internal/output"
)

const kind = architecture.DefaultKind

// testModel is a layered architecture with two nested components:
//
//	UI, Application{Services}, Domain, Infrastructure{Persistence}
func testModel() *architecture.Model {
	return &architecture.Model{
		Components: []architecture.Component{
			{Name: "UI"},
			{Name: "Application"},
			{Name: "Services", Parent: "Application"},
			{Name: "Domain"},
			{Name: "Infrastructure"},
			{Name: "Persistence", Parent: "Infrastructure"},
		},
		Contracts: []architecture.Contract{
			{Source: "UI", Target: "Application", Kind: kind, Rule: architecture.RuleAllow},
			{Source: "Application", Target: "Infrastructure", Kind: kind, Rule: architecture.RuleAllow},
			{Source: "Application", Target: "Domain", Kind: kind, Rule: architecture.RuleMustExist},
			{Source: "Domain", Target: "Infrastructure", Kind: kind, Rule: architecture.RuleForbid},
			{Source: "UI", Target: "Domain", Kind: kind, Rule: architecture.RuleOptional},
		},
	}
}

var testNodes = []facts.Node{
	{ID: "ui/login.go", Kind: "file"},
	{ID: "ui/menu.go", Kind: "file"},
	{ID: "app/core.go", Kind: "file"},
	{ID: "app/service.go", Kind: "file"},
	{ID: "domain/user.go", Kind: "file"},
	{ID: "infra/cache.go", Kind: "file"},
	{ID: "infra/db.go", Kind: "file"},
	{ID: "vendor/x.go", Kind: "file"},
}

func testFacts(edges ...facts.Edge) *facts.Facts {
	return &facts.Facts{
		Nodes: append([]facts.Node(nil), testNodes...),
		Edges: edges,
	}
}

// testMapping maps every node except vendor/x.go.
func testMapping() *mapping.Table {
	m, err := mapping.FromEntries([]mapping.Entry{
		{Node: "ui/login.go", Component: "UI", Origin: mapping.OriginRule},
		{Node: "ui/menu.go", Component: "UI", Origin: mapping.OriginRule},
		{Node: "app/core.go", Component: "Application", Origin: mapping.OriginRule},
		{Node: "app/service.go", Component: "Application.Services", Origin: mapping.OriginManual},
		{Node: "domain/user.go", Component: "Domain", Origin: mapping.OriginRule},
		{Node: "infra/cache.go", Component: "Infrastructure", Origin: mapping.OriginRule},
		{Node: "infra/db.go", Component: "Infrastructure.Persistence", Origin: mapping.OriginManual},
	})
	if err != nil {
		panic(err)
	}
	return m
}

// testEdges covers every classification branch of the fixture model.
func testEdges() []facts.Edge {
	return []facts.Edge{
		edge("ui/login.go", "app/core.go"),
		edge("ui/menu.go", "app/core.go"),
		edge("app/service.go", "infra/db.go"),
		edge("app/service.go", "domain/user.go"),
		edge("domain/user.go", "infra/cache.go"),
		edge("app/core.go", "app/service.go"),
		edge("ui/login.go", "ui/menu.go"),
		edge("ui/login.go", "vendor/x.go"),
		{Source: "infra/db.go", Target: "domain/user.go", Kind: "calls"},
	}
}

func edge(src, tgt string) facts.Edge {
	return facts.Edge{Source: src, Target: tgt, Kind: kind}
}

func triple(src, tgt string) Triple {
	return Triple{Source: src, Target: tgt, Kind: kind}
}

func analyze(t *testing.T, model *architecture.Model, f *facts.Facts, m *mapping.Table, opts Options) *Graph {
	t.Helper()
	g, err := Analyze(context.Background(), model, f, m, opts)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	return g
}

func analyzeFixture(t *testing.T, edges ...facts.Edge) *Graph {
	t.Helper()
	return analyze(t, testModel(), testFacts(edges...), testMapping(), Options{})
}

func stateOf(t *testing.T, g *Graph, tr Triple) State {
	t.Helper()
	e, ok := g.ReflexionEdge(tr)
	if !ok {
		return ""
	}
	return e.State
}

// encode returns the deterministic encoding of everything in a snapshot
// except the version.
func encode(t *testing.T, g *Graph) []byte {
	t.Helper()
	s := g.Snapshot()
	s.Version = 0
	b, err := output.DeterministicEncode(s)
	if err != nil {
		t.Fatalf("DeterministicEncode() error = %v", err)
	}
	return b
}

func assertSameResult(t *testing.T, got, want *Graph) {
	t.Helper()
	a, b := encode(t, got), encode(t, want)
	if ok, diff := output.CompareSnapshots(a, b); !ok {
		t.Fatalf("%s\n got: %s\nwant: %s", diff, a, b)
	}
}
