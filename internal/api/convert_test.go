package api_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"stageflow/internal/api"
	"stageflow/internal/audit"
	"stageflow/internal/directory"
	"stageflow/internal/registry"
	"stageflow/internal/sla"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestFromWorkItem(t *testing.T) {
	item := &store.WorkItem{
		ID:               7,
		Title:            "Budget",
		ScopeID:          2,
		CurrentStage:     1,
		Priority:         0.9,
		Status:           store.StatusActive,
		CreatedAt:        now.Add(-5 * time.Hour),
		LastStageEntryAt: now.Add(-90 * time.Minute),
	}
	dto := api.FromWorkItem(item, &store.Stage{Name: "Draft"}, now)
	if dto.StageName != "Draft" || dto.TimeInStageHours != 1.5 {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if dto.PriorityLevel != "critical" || dto.Status != "active" {
		t.Fatalf("unexpected level/status %q/%q", dto.PriorityLevel, dto.Status)
	}
	if dto.CreatedAt != "2026-03-02T07:00:00.000Z" {
		t.Fatalf("unexpected createdAt %q", dto.CreatedAt)
	}
	if dto.UpdatedAt != "" {
		t.Fatalf("zero time should be omitted, got %q", dto.UpdatedAt)
	}

	if empty := api.FromWorkItem(nil, nil, now); empty.ID != 0 {
		t.Fatalf("expected zero dto for nil item")
	}
}

func TestFromTransitionResolvesStageNames(t *testing.T) {
	stages := []*store.Stage{
		{ID: 1, Order: 1, Name: "Draft", IsActive: true},
		{ID: 2, Order: 2, Name: "Review", IsActive: true},
	}
	tr := &store.Transition{ID: 9, FromStageID: 1, ToStageID: 2, RequiredRole: directory.RoleReviewer, IsActive: true}
	snap := registry.NewSnapshot(stages, []*store.Transition{tr})

	dto := api.FromTransition(tr, snap)
	if dto.FromStage != "Draft" || dto.ToStage != "Review" || dto.FromOrder != 1 || dto.ToOrder != 2 {
		t.Fatalf("unexpected endpoints %+v", dto)
	}
	if dto.RequiredRole != "reviewer" {
		t.Fatalf("unexpected role %q", dto.RequiredRole)
	}
	if bare := api.FromTransition(tr, nil); bare.FromStage != "" || bare.FromStageID != 1 {
		t.Fatalf("unexpected unresolved dto %+v", bare)
	}
}

func TestFromHistoryReportsOngoingDuration(t *testing.T) {
	exited := now.Add(-2 * time.Hour)
	states := []audit.State{
		{Stage: 1, StageName: "Draft", EnteredAt: now.Add(-5 * time.Hour), ExitedAt: &exited, Duration: 3 * time.Hour},
		{Stage: 2, StageName: "Review", EnteredAt: exited},
	}
	out := api.FromHistory(states, now)
	if len(out) != 2 {
		t.Fatalf("expected 2 states, got %d", len(out))
	}
	if out[0].DurationHours != 3 || out[0].Current {
		t.Fatalf("unexpected closed visit %+v", out[0])
	}
	if out[1].DurationHours != 2 || !out[1].Current || out[1].ExitedAt != "" {
		t.Fatalf("unexpected open visit %+v", out[1])
	}
}

func TestFromSLAStatus(t *testing.T) {
	none := api.FromSLAStatus(sla.Status{State: sla.StateNoSLA, Elapsed: time.Hour})
	if none.Deadline != "" || none.State != "No SLA" {
		t.Fatalf("unexpected no-SLA dto %+v", none)
	}
	risk := api.FromSLAStatus(sla.Status{
		State:     sla.StateAtRisk,
		SLAHours:  24,
		Deadline:  now.Add(time.Hour),
		Remaining: time.Hour,
		Elapsed:   23 * time.Hour,
	})
	if risk.RemainingHours != 1 || risk.ElapsedHours != 23 || risk.Deadline == "" {
		t.Fatalf("unexpected at-risk dto %+v", risk)
	}
}

func TestFromDecisionEncodesEmptyLists(t *testing.T) {
	dto := api.FromDecision(4, 2, workflow.Decision{Allowed: true})
	raw, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"reasons":[]`) || !strings.Contains(string(raw), `"warnings":[]`) {
		t.Fatalf("expected empty arrays, got %s", raw)
	}
}

func TestHoursRounds(t *testing.T) {
	if got := api.Hours(100 * time.Minute); got != 1.67 {
		t.Fatalf("Hours = %v, want 1.67", got)
	}
}
