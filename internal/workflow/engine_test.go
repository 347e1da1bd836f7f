package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stageflow/internal/flowerr"
	"stageflow/internal/store"
	"stageflow/internal/testsupport"
	"stageflow/internal/workflow"
)

type harness struct {
	t        *testing.T
	ctx      context.Context
	st       *store.Store
	wf       testsupport.Workflow
	clock    *testsupport.Clock
	notifier *testsupport.RecordingNotifier
	engine   *workflow.Engine
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedActors(t, st)
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		st:       st,
		wf:       testsupport.SeedLinearWorkflow(t, st),
		clock:    testsupport.NewClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
		notifier: &testsupport.RecordingNotifier{},
	}
	h.engine = workflow.New(st, workflow.SettingsFromConfig(cfg),
		workflow.WithClock(h.clock.Now),
		workflow.WithNotifier(h.notifier),
	)
	return h
}

// item seeds an active scope-1 item that entered stage `age` ago.
func (h *harness) item(stage int, age time.Duration) *store.WorkItem {
	h.t.Helper()
	return testsupport.NewItem(h.t, h.st, 1, stage, h.clock.Now().Add(-age))
}

func (h *harness) reload(item *store.WorkItem) *store.WorkItem {
	h.t.Helper()
	got, err := h.engine.GetItem(h.ctx, item.ID)
	if err != nil {
		h.t.Fatalf("GetItem: %v", err)
	}
	return got
}

// replaceTransition swaps the seeded edge from -> from+1 for tr.
func (h *harness) replaceTransition(from int, tr *store.Transition) *store.Transition {
	h.t.Helper()
	if err := h.engine.Registry().RemoveTransition(h.ctx, h.wf.Transitions[from-1].ID); err != nil {
		h.t.Fatalf("RemoveTransition: %v", err)
	}
	return h.addTransition(from, from+1, tr)
}

func (h *harness) addTransition(from, to int, tr *store.Transition) *store.Transition {
	h.t.Helper()
	if tr == nil {
		tr = &store.Transition{}
	}
	tr.FromStageID = h.wf.StageByOrder(from).ID
	tr.ToStageID = h.wf.StageByOrder(to).ID
	created, err := h.engine.Registry().AddTransition(h.ctx, tr)
	if err != nil {
		h.t.Fatalf("AddTransition %d->%d: %v", from, to, err)
	}
	return created
}

func (h *harness) updateStage(order int, mutate func(*store.Stage)) {
	h.t.Helper()
	stage := *h.wf.StageByOrder(order)
	mutate(&stage)
	if err := h.engine.Registry().UpdateStage(h.ctx, &stage); err != nil {
		h.t.Fatalf("UpdateStage %d: %v", order, err)
	}
}

func TestCreateItemStartsInInitialStage(t *testing.T) {
	h := newHarness(t)

	item, err := h.engine.CreateItem(h.ctx, workflow.NewItem{
		Title:       "  Quarterly report  ",
		Description: "Collect numbers from every region",
		ScopeID:     1,
		Priority:    3,
	}, "contributor")
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.CurrentStage != 1 || item.Status != store.StatusActive {
		t.Fatalf("expected active item in stage 1, got stage %d status %s", item.CurrentStage, item.Status)
	}
	if item.Title != "Quarterly report" || item.OwnerID != "contributor" {
		t.Fatalf("unexpected title/owner %q/%q", item.Title, item.OwnerID)
	}
	if item.Priority != 1 {
		t.Fatalf("expected priority clamped to 1, got %v", item.Priority)
	}
	entries, err := h.st.ListAuditEntries(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != store.ActionCreated {
		t.Fatalf("expected a single created entry, got %+v", entries)
	}
}

func TestCreateItemRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name  string
		in    workflow.NewItem
		actor string
		want  error
	}{
		{"blank title", workflow.NewItem{Description: "d", ScopeID: 1}, "contributor", flowerr.ErrConfigurationInvalid},
		{"blank description", workflow.NewItem{Title: "x", Description: "  ", ScopeID: 1}, "contributor", flowerr.ErrConfigurationInvalid},
		{"missing scope", workflow.NewItem{Title: "x", Description: "d"}, "contributor", flowerr.ErrConfigurationInvalid},
		{"unknown actor", workflow.NewItem{Title: "x", Description: "d", ScopeID: 1}, "ghost", flowerr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.engine.CreateItem(h.ctx, tc.in, tc.actor); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	items, err := h.st.ListWorkItems(h.ctx, store.ItemFilter{})
	if err != nil {
		t.Fatalf("ListWorkItems: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rejected input must not create items, got %d", len(items))
	}
}

func TestCreatedItemPassesValidationForAdvance(t *testing.T) {
	h := newHarness(t)
	item, err := h.engine.CreateItem(h.ctx, workflow.NewItem{
		Title:       "Onboarding checklist",
		Description: "Accounts and hardware for the new hire",
		ScopeID:     1,
	}, "contributor")
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	decision, err := h.engine.Check(h.ctx, item, 2, "contributor")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected freshly created item to be advanceable, got %+v", decision.Reasons)
	}
}

func TestAdvanceDraftToReview(t *testing.T) {
	h := newHarness(t)
	item := h.item(1, 2*time.Hour)

	updated, err := h.engine.Advance(h.ctx, item, 2, "manager", "ready for review")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if updated.CurrentStage != 2 || !updated.LastStageEntryAt.Equal(h.clock.Now()) {
		t.Fatalf("unexpected updated item %+v", updated)
	}
	if item.CurrentStage != 1 {
		t.Fatalf("caller snapshot mutated: stage %d", item.CurrentStage)
	}
	if stored := h.reload(item); stored.CurrentStage != 2 {
		t.Fatalf("expected stored stage 2, got %d", stored.CurrentStage)
	}

	entries, err := h.st.ListAuditEntries(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	events, err := h.st.ListEvents(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(entries) != 2 || len(events) != 2 {
		t.Fatalf("expected one audit entry and one event per change, got %d entries %d events", len(entries), len(events))
	}
	last := entries[1]
	if last.Action != store.ActionStageChanged || last.OldValue != "Draft" || last.NewValue != "Review" {
		t.Fatalf("unexpected audit entry %+v", last)
	}
	if last.ActorID != "manager" || last.Comments != "ready for review" {
		t.Fatalf("unexpected actor/comment %q/%q", last.ActorID, last.Comments)
	}
	if last.Metadata.TimeInPreviousStageHours != 2 || last.Metadata.Automatic {
		t.Fatalf("unexpected metadata %+v", last.Metadata)
	}
	if events[1].Type != store.EventTransitioned || events[1].AuditEntryID != last.ID {
		t.Fatalf("unexpected event %+v", events[1])
	}
}

func TestAdvanceIntoTerminalStageCompletesItem(t *testing.T) {
	h := newHarness(t)
	item := h.item(3, time.Hour)

	updated, err := h.engine.Advance(h.ctx, item, 4, "contributor", "")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if updated.Status != store.StatusCompleted {
		t.Fatalf("expected completed status, got %s", updated.Status)
	}
	if stored := h.reload(item); stored.Status != store.StatusCompleted {
		t.Fatalf("expected stored completed status, got %s", stored.Status)
	}
}

func TestAdvanceMissingTransition(t *testing.T) {
	h := newHarness(t)
	item := h.item(1, time.Hour)

	_, err := h.engine.Advance(h.ctx, item, 4, "admin", "")
	if !errors.Is(err, flowerr.ErrTransitionNotFound) {
		t.Fatalf("expected ErrTransitionNotFound, got %v", err)
	}
	decision, err := h.engine.Check(h.ctx, item, 4, "admin")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision.Allowed || !decision.Missing || decision.Gate != workflow.GateTransition {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestAdvanceDenials(t *testing.T) {
	h := newHarness(t)
	h.addTransition(1, 3, &store.Transition{RequiredRole: "manager"})
	h.replaceTransition(2, &store.Transition{
		ConditionScript: `{"rules":[{"type":"priority","operator":"greaterOrEqual","value":"high"}]}`,
	})
	h.replaceTransition(3, &store.Transition{
		ValidationRules: []string{"high_priority_requires_manager"},
	})

	draft := h.item(1, time.Hour)
	review := h.item(2, time.Hour)
	urgent := h.item(3, time.Hour)
	if err := h.st.UpdateWorkItemDetails(h.ctx, urgent.ID, urgent.Title, urgent.Description, 0.9); err != nil {
		t.Fatalf("UpdateWorkItemDetails: %v", err)
	}
	urgent = h.reload(urgent)

	cases := []struct {
		name   string
		item   *store.WorkItem
		target int
		actor  string
		gate   string
		reason string
	}{
		{"role below floor", draft, 3, "contributor", workflow.GateRole, "below the required role manager"},
		{"unknown actor", draft, 2, "ghost", workflow.GateActor, `unknown actor "ghost"`},
		{"condition not met", review, 3, "admin", workflow.GateCondition, "condition is not met"},
		{"business rule", urgent, 4, "reviewer", workflow.GateValidation, "can only be moved by a manager"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.Advance(h.ctx, tc.item, tc.target, tc.actor, "")
			if !errors.Is(err, flowerr.ErrTransitionNotAllowed) {
				t.Fatalf("expected ErrTransitionNotAllowed, got %v", err)
			}
			var denied *workflow.DeniedError
			if !errors.As(err, &denied) || denied.ItemID != tc.item.ID || denied.Target != tc.target {
				t.Fatalf("expected DeniedError for item %d, got %v", tc.item.ID, err)
			}
			decision, err := h.engine.Check(h.ctx, tc.item, tc.target, tc.actor)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if decision.Allowed || decision.Gate != tc.gate {
				t.Fatalf("expected gate %s, got %+v", tc.gate, decision)
			}
			if !strings.Contains(strings.Join(decision.Reasons, "; "), tc.reason) {
				t.Fatalf("expected reason containing %q, got %v", tc.reason, decision.Reasons)
			}
			ok, err := h.engine.CanAdvance(h.ctx, tc.item, tc.target, tc.actor)
			if err != nil || ok {
				t.Fatalf("CanAdvance = %v, %v; want false", ok, err)
			}
		})
	}

	if _, err := h.engine.Advance(h.ctx, draft, 3, "manager", ""); err != nil {
		t.Fatalf("manager should pass the role floor: %v", err)
	}
	if _, err := h.engine.Advance(h.ctx, urgent, 4, "manager", ""); err != nil {
		t.Fatalf("manager should satisfy the business rule: %v", err)
	}
}

func TestAdvanceReportsWarningsWithoutBlocking(t *testing.T) {
	h := newHarness(t)
	h.replaceTransition(1, &store.Transition{ValidationRules: []string{"description_min_length", "not_registered"}})
	item := h.item(1, time.Hour)
	if err := h.st.UpdateWorkItemDetails(h.ctx, item.ID, item.Title, "short", 0); err != nil {
		t.Fatalf("UpdateWorkItemDetails: %v", err)
	}
	item = h.reload(item)

	decision, err := h.engine.Check(h.ctx, item, 2, "contributor")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !decision.Allowed || len(decision.Warnings) != 2 {
		t.Fatalf("expected allowed decision with two warnings, got %+v", decision)
	}
}

func TestAdvanceStaleSnapshotConflicts(t *testing.T) {
	h := newHarness(t)
	item := h.item(1, time.Hour)

	if _, err := h.engine.Advance(h.ctx, item, 2, "contributor", "first"); err != nil {
		t.Fatalf("first Advance: %v", err)
	}
	_, err := h.engine.Advance(h.ctx, item, 2, "contributor", "second")
	if !errors.Is(err, flowerr.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
	entries, err := h.st.ListAuditEntries(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("conflicting commit must not append audit, got %d entries", len(entries))
	}
}

func TestAdvanceParallelCallsOnOneSnapshot(t *testing.T) {
	h := newHarness(t)
	item := h.item(1, time.Hour)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(snapshot store.WorkItem) {
			defer wg.Done()
			_, err := h.engine.Advance(h.ctx, &snapshot, 2, "contributor", "race")
			errs <- err
		}(*item)
	}
	wg.Wait()
	close(errs)

	var won, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, flowerr.ErrConcurrencyConflict):
			conflicted++
		default:
			t.Fatalf("unexpected Advance error: %v", err)
		}
	}
	if won != 1 || conflicted != callers-1 {
		t.Fatalf("expected 1 commit and %d conflicts, got %d and %d", callers-1, won, conflicted)
	}
	if stored := h.reload(item); stored.CurrentStage != 2 {
		t.Fatalf("expected item in stage 2, got %d", stored.CurrentStage)
	}
	entries, err := h.st.ListAuditEntries(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected creation plus one transition entry, got %d", len(entries))
	}
}

func TestGetAvailableTransitionsFiltersByRole(t *testing.T) {
	h := newHarness(t)
	h.addTransition(1, 3, &store.Transition{RequiredRole: "manager"})
	item := h.item(1, time.Hour)

	orders := func(actor string) []int {
		stages, err := h.engine.GetAvailableTransitions(h.ctx, item, actor)
		if err != nil {
			t.Fatalf("GetAvailableTransitions(%s): %v", actor, err)
		}
		var out []int
		for _, s := range stages {
			out = append(out, s.Order)
		}
		return out
	}
	if got := orders("contributor"); len(got) != 1 || got[0] != 2 {
		t.Fatalf("contributor targets = %v, want [2]", got)
	}
	if got := orders("manager"); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("manager targets = %v, want [2 3]", got)
	}
	if got := orders("ghost"); len(got) != 0 {
		t.Fatalf("unknown actor targets = %v, want none", got)
	}
}

func TestRemovedTransitionDisappearsButHistoryRemains(t *testing.T) {
	h := newHarness(t)
	moved := h.item(1, time.Hour)
	if _, err := h.engine.Advance(h.ctx, moved, 2, "contributor", ""); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := h.engine.Registry().RemoveTransition(h.ctx, h.wf.Transitions[0].ID); err != nil {
		t.Fatalf("RemoveTransition: %v", err)
	}

	waiting := h.item(1, time.Hour)
	targets, err := h.engine.GetAvailableTransitions(h.ctx, waiting, "admin")
	if err != nil {
		t.Fatalf("GetAvailableTransitions: %v", err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected no targets after removal, got %d", len(targets))
	}
	if _, err := h.engine.Advance(h.ctx, waiting, 2, "admin", ""); !errors.Is(err, flowerr.ErrTransitionNotFound) {
		t.Fatalf("expected ErrTransitionNotFound, got %v", err)
	}

	history, err := h.engine.GetWorkflowHistory(h.ctx, moved.ID)
	if err != nil {
		t.Fatalf("GetWorkflowHistory: %v", err)
	}
	if len(history) != 2 || history[1].StageName != "Review" {
		t.Fatalf("expected history to survive removal, got %+v", history)
	}
}

func TestTransitionNotificationFailureDoesNotFailAdvance(t *testing.T) {
	h := newHarness(t)
	h.replaceTransition(1, &store.Transition{NotificationRequired: true})
	h.notifier.Err = errors.New("ntfy unreachable")
	item := h.item(1, time.Hour)

	if _, err := h.engine.Advance(h.ctx, item, 2, "contributor", "please look"); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if h.notifier.TransitionCount() != 1 {
		t.Fatalf("expected one notification attempt, got %d", h.notifier.TransitionCount())
	}
	sent := h.notifier.Transitions[0]
	if sent.FromStage != "Draft" || sent.ToStage != "Review" || sent.Recipients[0] != "contributor" {
		t.Fatalf("unexpected notification %+v", sent)
	}
	if stored := h.reload(item); stored.CurrentStage != 2 {
		t.Fatalf("expected committed move, stored stage %d", stored.CurrentStage)
	}
}

func TestGetWorkflowStateAndStateAsOf(t *testing.T) {
	h := newHarness(t)
	created := h.clock.Now()
	item, err := h.engine.CreateItem(h.ctx, workflow.NewItem{
		Title:       "Vendor contract",
		Description: "Renewal terms for the hosting vendor",
		ScopeID:     1,
	}, "contributor")
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	h.clock.Advance(3 * time.Hour)
	if _, err := h.engine.Advance(h.ctx, item, 2, "contributor", ""); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	state, err := h.engine.GetWorkflowState(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("GetWorkflowState: %v", err)
	}
	if state.Stage.Name != "Review" || state.Terminal || len(state.Targets) != 1 {
		t.Fatalf("unexpected state %+v", state)
	}

	past, err := h.engine.GetStateAsOf(h.ctx, item.ID, created.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetStateAsOf: %v", err)
	}
	if past == nil || past.StageName != "Draft" || past.Duration != 3*time.Hour {
		t.Fatalf("unexpected past state %+v", past)
	}

	if _, err := h.engine.GetWorkflowState(h.ctx, 9999); !errors.Is(err, flowerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
