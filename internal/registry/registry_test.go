package registry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stageflow/internal/flowerr"
	"stageflow/internal/registry"
	"stageflow/internal/store"
	"stageflow/internal/testsupport"
)

type ruleSet map[string]bool

func (r ruleSet) Has(name string) bool { return r[name] }

func newRegistry(t *testing.T) (*registry.Registry, *store.Store) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return registry.New(st, registry.WithRuleCatalog(ruleSet{"title_required": true})), st
}

func TestScopedStageOverridesGlobal(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	testsupport.SeedLinearWorkflow(t, st, "Draft", "Review", "Done")

	if _, err := reg.AddStage(ctx, &store.Stage{ScopeID: 9, Order: 2, Name: "Legal Review"}); err != nil {
		t.Fatalf("AddStage: %v", err)
	}

	stages, err := reg.Stages(ctx, 9)
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(stages) != 3 || stages[1].Name != "Legal Review" {
		t.Fatalf("expected scoped override at order 2, got %+v", stages)
	}
	global, err := reg.StageByOrder(ctx, 2, 5)
	if err != nil {
		t.Fatalf("StageByOrder: %v", err)
	}
	if global == nil || global.Name != "Review" {
		t.Fatalf("other scopes should see the global stage, got %+v", global)
	}
}

func TestGlobalEdgeFollowsOverriddenStage(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	testsupport.SeedLinearWorkflow(t, st, "Draft", "Review", "Done")
	if _, err := reg.AddStage(ctx, &store.Stage{ScopeID: 9, Order: 2, Name: "Legal Review"}); err != nil {
		t.Fatalf("AddStage: %v", err)
	}

	snap, err := reg.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	edge := snap.Transition(1, 2, 9)
	if edge == nil {
		t.Fatal("expected global edge 1->2 to apply in scope 9")
	}
	if edge.To.Name != "Legal Review" {
		t.Fatalf("edge target should resolve to the scoped stage, got %q", edge.To.Name)
	}
}

func TestScopedTransitionWinsForSamePair(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	wf := testsupport.SeedLinearWorkflow(t, st, "Draft", "Review")

	scoped, err := reg.AddTransition(ctx, &store.Transition{
		ScopeID:      3,
		FromStageID:  wf.Stages[0].ID,
		ToStageID:    wf.Stages[1].ID,
		RequiredRole: "manager",
	})
	if err != nil {
		t.Fatalf("AddTransition: %v", err)
	}

	edge, err := reg.Transition(ctx, wf.Stages[0].ID, wf.Stages[1].ID, 3)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if edge == nil || edge.Transition.ID != scoped.ID {
		t.Fatalf("expected scoped transition, got %+v", edge)
	}
	edge, err = reg.Transition(ctx, wf.Stages[0].ID, wf.Stages[1].ID, 4)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if edge == nil || edge.Transition.ID != wf.Transitions[0].ID {
		t.Fatalf("expected global transition for other scope, got %+v", edge)
	}
}

func TestAddTransitionRejectsInvalidDefinitions(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	wf := testsupport.SeedLinearWorkflow(t, st, "Draft", "Review")

	cases := []struct {
		name string
		tr   *store.Transition
	}{
		{"self loop", &store.Transition{FromStageID: wf.Stages[0].ID, ToStageID: wf.Stages[0].ID}},
		{"unknown stage", &store.Transition{FromStageID: wf.Stages[0].ID, ToStageID: 999}},
		{"bad script", &store.Transition{FromStageID: wf.Stages[1].ID, ToStageID: wf.Stages[0].ID, ConditionScript: "{"}},
		{"bad role", &store.Transition{FromStageID: wf.Stages[1].ID, ToStageID: wf.Stages[0].ID, RequiredRole: "wizard"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := reg.AddTransition(ctx, tc.tr); !errors.Is(err, flowerr.ErrConfigurationInvalid) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestRemoveTransitionHidesEdge(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	wf := testsupport.SeedLinearWorkflow(t, st, "Draft", "Review")

	if err := reg.RemoveTransition(ctx, wf.Transitions[0].ID); err != nil {
		t.Fatalf("RemoveTransition: %v", err)
	}
	edges, err := reg.TransitionsFrom(ctx, wf.Stages[0].ID, 1)
	if err != nil {
		t.Fatalf("TransitionsFrom: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges after removal, got %d", len(edges))
	}
	all, err := reg.ListTransitions(ctx, true)
	if err != nil || len(all) != 1 {
		t.Fatalf("soft-deleted transition should remain stored: %d %v", len(all), err)
	}
}

func TestValidateConfigurationReportsProblems(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	wf := testsupport.SeedLinearWorkflow(t, st, "Draft", "Review", "Approved", "Done")

	// Break the chain at Review -> Approved and open a gap at order 5.
	if err := reg.RemoveTransition(ctx, wf.Transitions[1].ID); err != nil {
		t.Fatalf("RemoveTransition: %v", err)
	}
	if _, err := reg.AddStage(ctx, &store.Stage{Order: 6, Name: "Archived", Terminal: true}); err != nil {
		t.Fatalf("AddStage: %v", err)
	}
	if _, err := reg.AddTransition(ctx, &store.Transition{
		FromStageID:     wf.Stages[0].ID,
		ToStageID:       wf.Stages[2].ID,
		ConditionScript: `{"rules":[{"type":"weather","operator":"equals","value":"sunny"}]}`,
		ValidationRules: []string{"title_required", "budget_approved"},
	}); err != nil {
		t.Fatalf("AddTransition: %v", err)
	}

	report, err := reg.ValidateConfiguration(ctx, 0)
	if err != nil {
		t.Fatalf("ValidateConfiguration: %v", err)
	}
	codes := map[string]int{}
	for _, w := range report.Warnings {
		codes[w.Code]++
	}
	want := map[string]int{
		registry.WarnDeadEndStage:     1, // Review
		registry.WarnUnreachableStage: 1, // Archived
		registry.WarnOrderGap:         1,
		registry.WarnUnknownCondition: 1,
		registry.WarnUnknownRule:      1,
	}
	for code, n := range want {
		if codes[code] != n {
			t.Fatalf("expected %d %s warnings, got %d (%+v)", n, code, codes[code], report.Warnings)
		}
	}
	if report.Valid() {
		t.Fatal("report with warnings should not be valid")
	}
}

func TestValidateConfigurationCleanWorkflow(t *testing.T) {
	reg, st := newRegistry(t)
	testsupport.SeedLinearWorkflow(t, st)
	report, err := reg.ValidateConfiguration(context.Background(), 0)
	if err != nil {
		t.Fatalf("ValidateConfiguration: %v", err)
	}
	if !report.Valid() {
		t.Fatalf("expected no warnings, got %+v", report.Warnings)
	}
}

func TestImportDefinitions(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	doc := `
[[stage]]
order = 1
name = "Intake"

[[stage]]
order = 2
name = "Review"
approval_required = true
approver_role = "Manager"
sla_hours = 24

[[stage]]
order = 3
name = "Closed"
terminal = true

[[transition]]
from = 1
to = 2
auto_delay_minutes = 60

[[transition]]
from = 2
to = 3
required_role = "manager"
validation_rules = ["title_required"]
notify = true
`
	defs, err := registry.ParseDefinitions(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	result, err := reg.Import(ctx, defs)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Stages) != 3 || len(result.Transitions) != 2 {
		t.Fatalf("unexpected import result: %d stages, %d transitions", len(result.Stages), len(result.Transitions))
	}
	if result.Stages[1].ApproverRole != "manager" {
		t.Fatalf("approver role should be normalized, got %q", result.Stages[1].ApproverRole)
	}
	autos, err := reg.AutoTransitions(ctx)
	if err != nil || len(autos) != 1 {
		t.Fatalf("expected one auto transition, got %d (%v)", len(autos), err)
	}
}

func TestParseDefinitionsRejectsUnknownKeys(t *testing.T) {
	_, err := registry.ParseDefinitions(strings.NewReader("[[stage]]\norder = 1\ncolour = \"red\"\n"))
	if !errors.Is(err, flowerr.ErrConfigurationInvalid) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
