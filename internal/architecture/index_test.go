package architecture

import (
	"errors"
	"strings"
	"testing"

	rerrors "reflexion/internal/errors"
)

// layeredModel is the hierarchy used across these tests:
//
//	UI
//	Application ── Services, Queries
//	Domain
//	Infrastructure ── Persistence ── Cache
func layeredModel(contracts ...Contract) *Model {
	return &Model{
		Components: []Component{
			{Name: "UI"},
			{Name: "Application"},
			{Name: "Services", Parent: "Application"},
			{Name: "Queries", Parent: "Application"},
			{Name: "Domain"},
			{Name: "Infrastructure"},
			{Name: "Persistence", Parent: "Infrastructure"},
			{Name: "Cache", Parent: "Infrastructure.Persistence"},
		},
		Contracts: contracts,
	}
}

func contract(src, tgt string, rule Rule) Contract {
	return Contract{Source: src, Target: tgt, Kind: DefaultKind, Rule: rule}
}

func mustIndex(t *testing.T, m *Model) *Index {
	t.Helper()
	idx, err := NewIndex(m, DefaultLimits())
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	return idx
}

func TestNewIndex_Hierarchy(t *testing.T) {
	idx := mustIndex(t, layeredModel())
	h := idx.Hierarchy()

	if h.Len() != 8 {
		t.Errorf("Len() = %d, want 8", h.Len())
	}
	if !h.Has("Infrastructure.Persistence.Cache") {
		t.Error("qualified name should be derived from the parent chain")
	}
	if got := strings.Join(h.Ancestors("Infrastructure.Persistence.Cache"), ","); got != "Infrastructure.Persistence.Cache,Infrastructure.Persistence,Infrastructure" {
		t.Errorf("Ancestors() = %s", got)
	}
	if got := strings.Join(h.Children("Application"), ","); got != "Application.Queries,Application.Services" {
		t.Errorf("Children() = %s", got)
	}
	if p, ok := h.Parent("Application.Services"); !ok || p != "Application" {
		t.Errorf("Parent() = %q, %v", p, ok)
	}
	if _, ok := h.Parent("Application"); ok {
		t.Error("roots have no parent")
	}
	if h.Depth("Infrastructure.Persistence.Cache") != 3 {
		t.Errorf("Depth() = %d, want 3", h.Depth("Infrastructure.Persistence.Cache"))
	}
	if !h.IsAncestorOrSelf("Infrastructure", "Infrastructure.Persistence.Cache") || h.IsAncestorOrSelf("Application", "Domain") {
		t.Error("IsAncestorOrSelf() wrong")
	}
	if !h.Nested("Infrastructure.Persistence.Cache", "Infrastructure") || !h.Nested("UI", "UI") || h.Nested("Application.Services", "Application.Queries") {
		t.Error("Nested() wrong")
	}
}

func TestNewIndex_Errors(t *testing.T) {
	tests := []struct {
		name     string
		model    *Model
		limits   Limits
		wantCode rerrors.ErrorCode
		wantText string
	}{
		{
			name:     "duplicate component",
			model:    &Model{Components: []Component{{Name: "A"}, {Name: "A"}}},
			wantCode: rerrors.InvalidHierarchy,
			wantText: "duplicate component",
		},
		{
			name:     "dotted name",
			model:    &Model{Components: []Component{{Name: "A.B"}}},
			wantCode: rerrors.InvalidHierarchy,
		},
		{
			name:     "empty name",
			model:    &Model{Components: []Component{{Name: ""}}},
			wantCode: rerrors.InvalidHierarchy,
		},
		{
			name:     "unknown parent",
			model:    &Model{Components: []Component{{Name: "B", Parent: "A"}}},
			wantCode: rerrors.UnknownComponent,
			wantText: `"A"`,
		},
		{
			name:     "too deep",
			model:    &Model{Components: []Component{{Name: "A"}, {Name: "B", Parent: "A"}, {Name: "C", Parent: "A.B"}}},
			limits:   Limits{MaxDepth: 2},
			wantCode: rerrors.InvalidHierarchy,
			wantText: "depth 3",
		},
		{
			name:     "too many components",
			model:    &Model{Components: []Component{{Name: "A"}, {Name: "B"}}},
			limits:   Limits{MaxComponents: 1},
			wantCode: rerrors.InvalidHierarchy,
		},
		{
			name:     "unknown contract component",
			model:    layeredModel(contract("UI", "Nowhere", RuleAllow)),
			wantCode: rerrors.UnknownComponent,
			wantText: "Nowhere",
		},
		{
			name:     "unknown rule",
			model:    layeredModel(contract("UI", "Application", Rule("maybe"))),
			wantCode: rerrors.InputInvalid,
		},
		{
			name:     "empty kind",
			model:    layeredModel(Contract{Source: "UI", Target: "Application", Rule: RuleAllow}),
			wantCode: rerrors.InputInvalid,
		},
		{
			name:     "self contract",
			model:    layeredModel(contract("UI", "UI", RuleAllow)),
			wantCode: rerrors.InputInvalid,
		},
		{
			name:     "contract into own descendant",
			model:    layeredModel(contract("Infrastructure", "Infrastructure.Persistence.Cache", RuleAllow)),
			wantCode: rerrors.InputInvalid,
			wantText: "nested",
		},
		{
			name:     "contract to own ancestor",
			model:    layeredModel(contract("Application.Services", "Application", RuleForbid)),
			wantCode: rerrors.InputInvalid,
			wantText: "nested",
		},
		{
			name: "conflicting contracts",
			model: layeredModel(
				contract("Domain", "Infrastructure", RuleForbid),
				contract("UI", "Application", RuleAllow),
				contract("Domain", "Infrastructure", RuleAllow),
			),
			wantCode: rerrors.ConflictingContract,
			wantText: "Domain -> Infrastructure [depends_on] declared 2 times (forbid, allow)",
		},
		{
			name: "style rule with unknown component",
			model: func() *Model {
				m := layeredModel()
				m.Styles = []StyleRule{{Name: "fan-in", Source: "*", Target: "Ghost", Kind: "*", MaxEdges: 3}}
				return m
			}(),
			wantCode: rerrors.UnknownComponent,
		},
		{
			name: "style rule with negative limit",
			model: func() *Model {
				m := layeredModel()
				m.Styles = []StyleRule{{Name: "neg", MaxEdges: -1}}
				return m
			}(),
			wantCode: rerrors.InputInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := tt.limits
			if limits == (Limits{}) {
				limits = DefaultLimits()
			}
			_, err := NewIndex(tt.model, limits)
			if err == nil {
				t.Fatal("NewIndex() should fail")
			}
			if got := rerrors.CodeOf(err); got != tt.wantCode {
				t.Errorf("CodeOf() = %s, want %s (%v)", got, tt.wantCode, err)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("Error() = %q, want to contain %q", err.Error(), tt.wantText)
			}
		})
	}
}

func TestNewIndex_ConflictListsAllTriples(t *testing.T) {
	_, err := NewIndex(layeredModel(
		contract("UI", "Domain", RuleForbid),
		contract("Domain", "Infrastructure", RuleForbid),
		contract("UI", "Domain", RuleForbid),
		contract("Domain", "Infrastructure", RuleOptional),
	), DefaultLimits())

	var conflict *ConflictingContractError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want *ConflictingContractError", err)
	}
	if len(conflict.Conflicts) != 2 {
		t.Fatalf("len(Conflicts) = %d, want 2", len(conflict.Conflicts))
	}
	if conflict.Conflicts[0].Triple.Source != "Domain" || conflict.Conflicts[1].Triple.Source != "UI" {
		t.Errorf("conflicts should be sorted by triple: %+v", conflict.Conflicts)
	}
}

func TestIndex_Lift(t *testing.T) {
	kind := DefaultKind
	tests := []struct {
		name      string
		contracts []Contract
		triple    Triple
		want      Triple
		wantRule  Rule
		wantFound bool
	}{
		{
			name:      "exact contract",
			contracts: []Contract{contract("Application.Services", "Infrastructure.Persistence", RuleForbid), contract("Application", "Infrastructure", RuleAllow)},
			triple:    Triple{"Application.Services", "Infrastructure.Persistence", kind},
			want:      Triple{"Application.Services", "Infrastructure.Persistence", kind},
			wantRule:  RuleForbid,
			wantFound: true,
		},
		{
			name:      "lift both sides to ancestors",
			contracts: []Contract{contract("Application", "Infrastructure", RuleAllow)},
			triple:    Triple{"Application.Services", "Infrastructure.Persistence.Cache", kind},
			want:      Triple{"Application", "Infrastructure", kind},
			wantRule:  RuleAllow,
			wantFound: true,
		},
		{
			name: "nearest wins over farther",
			contracts: []Contract{
				contract("Application", "Infrastructure", RuleAllow),
				contract("Application.Services", "Infrastructure", RuleForbid),
			},
			triple:    Triple{"Application.Services", "Infrastructure.Persistence", kind},
			want:      Triple{"Application.Services", "Infrastructure", kind},
			wantRule:  RuleForbid,
			wantFound: true,
		},
		{
			name: "equal distance prefers lifting the target first",
			contracts: []Contract{
				contract("Application", "Infrastructure.Persistence", RuleForbid),
				contract("Application.Services", "Infrastructure", RuleAllow),
			},
			triple:    Triple{"Application.Services", "Infrastructure.Persistence", kind},
			want:      Triple{"Application.Services", "Infrastructure", kind},
			wantRule:  RuleAllow,
			wantFound: true,
		},
		{
			name:      "kind must match",
			contracts: []Contract{{Source: "Application", Target: "Infrastructure", Kind: "calls", Rule: RuleAllow}},
			triple:    Triple{"Application.Services", "Infrastructure.Persistence", kind},
		},
		{
			name:      "both sides lifted one level",
			contracts: []Contract{contract("Infrastructure.Persistence", "Application", RuleForbid)},
			triple:    Triple{"Infrastructure.Persistence.Cache", "Application.Queries", kind},
			want:      Triple{"Infrastructure.Persistence", "Application", kind},
			wantRule:  RuleForbid,
			wantFound: true,
		},
		{
			name:   "no contract anywhere",
			triple: Triple{"UI", "Domain", kind},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := mustIndex(t, layeredModel(tt.contracts...))
			got := idx.Lift(tt.triple)
			if got.Found != tt.wantFound {
				t.Fatalf("Lift(%s).Found = %v, want %v (%+v)", tt.triple, got.Found, tt.wantFound, got)
			}
			if !tt.wantFound {
				return
			}
			if got.Governing != tt.want || got.Rule != tt.wantRule {
				t.Errorf("Lift(%s) = %s %s, want %s %s", tt.triple, got.Rule, got.Governing, tt.wantRule, tt.want)
			}
		})
	}
}

func TestIndex_LiftMemoClearedOnContractChange(t *testing.T) {
	idx := mustIndex(t, layeredModel(contract("Application", "Infrastructure", RuleAllow)))
	child := Triple{"Application.Services", "Infrastructure.Persistence", DefaultKind}

	if got := idx.Lift(child); got.Rule != RuleAllow {
		t.Fatalf("Lift() rule = %s, want allow", got.Rule)
	}
	if idx.LiftCacheSize() != 1 {
		t.Errorf("LiftCacheSize() = %d, want 1", idx.LiftCacheSize())
	}

	if err := idx.AddContract(contract("Application.Services", "Infrastructure", RuleForbid)); err != nil {
		t.Fatalf("AddContract() error = %v", err)
	}
	if idx.LiftCacheSize() != 0 {
		t.Error("AddContract should clear the lift memo")
	}
	if got := idx.Lift(child); got.Rule != RuleForbid {
		t.Errorf("after AddContract Lift() rule = %s, want forbid", got.Rule)
	}

	old, err := idx.ChangeContract(contract("Application.Services", "Infrastructure", RuleOptional))
	if err != nil || old != RuleForbid {
		t.Fatalf("ChangeContract() = %s, %v", old, err)
	}
	if got := idx.Lift(child); got.Rule != RuleOptional {
		t.Errorf("after ChangeContract Lift() rule = %s, want optional", got.Rule)
	}

	if _, err := idx.RemoveContract(Triple{"Application.Services", "Infrastructure", DefaultKind}); err != nil {
		t.Fatalf("RemoveContract() error = %v", err)
	}
	if got := idx.Lift(child); got.Rule != RuleAllow || got.Governing.Source != "Application" {
		t.Errorf("after RemoveContract Lift() = %+v, want ancestor allow", got)
	}
}

func TestIndex_ContractMutationErrors(t *testing.T) {
	idx := mustIndex(t, layeredModel(contract("UI", "Application", RuleAllow)))

	if err := idx.AddContract(contract("UI", "Application", RuleForbid)); rerrors.CodeOf(err) != rerrors.ConflictingContract {
		t.Errorf("AddContract(existing) code = %s", rerrors.CodeOf(err))
	}
	if _, err := idx.ChangeContract(contract("UI", "Domain", RuleForbid)); rerrors.CodeOf(err) != rerrors.InputInvalid {
		t.Errorf("ChangeContract(missing) code = %s", rerrors.CodeOf(err))
	}
	if _, err := idx.RemoveContract(Triple{"UI", "Domain", DefaultKind}); err == nil {
		t.Error("RemoveContract(missing) should fail")
	}
	if err := idx.AddContract(contract("UI", "Ghost", RuleAllow)); rerrors.CodeOf(err) != rerrors.UnknownComponent {
		t.Errorf("AddContract(unknown) code = %s", rerrors.CodeOf(err))
	}
	if rule, _ := idx.Rule(Triple{"UI", "Application", DefaultKind}); rule != RuleAllow {
		t.Errorf("failed mutations must leave the table untouched, rule = %s", rule)
	}
}

func TestIndex_Beneath(t *testing.T) {
	idx := mustIndex(t, layeredModel())
	c := Triple{"Application", "Infrastructure", DefaultKind}

	tests := []struct {
		t    Triple
		want bool
	}{
		{c, true},
		{Triple{"Application.Services", "Infrastructure.Persistence.Cache", DefaultKind}, true},
		{Triple{"Application.Services", "Infrastructure", DefaultKind}, true},
		{Triple{"Application.Services", "Infrastructure", "calls"}, false},
		{Triple{"UI", "Infrastructure", DefaultKind}, false},
		{Triple{"Infrastructure", "Application", DefaultKind}, false},
	}
	for _, tt := range tests {
		if got := idx.Beneath(tt.t, c); got != tt.want {
			t.Errorf("Beneath(%s) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestIndex_ModelRoundTrip(t *testing.T) {
	m := layeredModel(contract("UI", "Application", RuleAllow), contract("Domain", "Infrastructure", RuleForbid))
	m.Styles = []StyleRule{{Name: "narrow", Source: "*", Target: "Domain", Kind: "*", MaxEdges: 2}}
	idx := mustIndex(t, m)

	again := mustIndex(t, idx.Model())
	if len(again.Contracts()) != 2 || len(again.Styles()) != 1 || again.Hierarchy().Len() != 8 {
		t.Errorf("Model() should rebuild an equivalent index")
	}
	if cs := again.Contracts(); cs[0].Source != "Domain" {
		t.Errorf("Contracts() should be sorted, got %v", cs)
	}
}
