package sla_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stageflow/internal/registry"
	"stageflow/internal/sla"
	"stageflow/internal/store"
	"stageflow/internal/testsupport"
)

var epoch = time.Date(2026, 4, 6, 8, 0, 0, 0, time.UTC)

func hours(h float64) *float64 { return &h }

func TestStatusStates(t *testing.T) {
	tracker := sla.Tracker{DefaultRatio: 0.25}
	stage := &store.Stage{Name: "Review", SLAHours: hours(24)}
	item := &store.WorkItem{ScopeID: 1, LastStageEntryAt: epoch}

	cases := []struct {
		elapsed time.Duration
		want    sla.State
	}{
		{2 * time.Hour, sla.StateOnTrack},
		{18 * time.Hour, sla.StateAtRisk},
		{23 * time.Hour, sla.StateAtRisk},
		{24 * time.Hour, sla.StateAtRisk},
		{25 * time.Hour, sla.StateViolated},
	}
	for _, tc := range cases {
		got := tracker.Status(stage, item, epoch.Add(tc.elapsed))
		if got.State != tc.want {
			t.Fatalf("after %s expected %s, got %s", tc.elapsed, tc.want, got.State)
		}
	}

	at23 := tracker.Status(stage, item, epoch.Add(23*time.Hour))
	if at23.Remaining != time.Hour || !at23.Deadline.Equal(epoch.Add(24*time.Hour)) {
		t.Fatalf("unexpected deadline/remaining: %+v", at23)
	}
}

func TestStatusIsPure(t *testing.T) {
	tracker := sla.Tracker{DefaultRatio: 0.25}
	stage := &store.Stage{SLAHours: hours(8)}
	item := &store.WorkItem{ScopeID: 1, LastStageEntryAt: epoch}
	now := epoch.Add(7 * time.Hour)

	first := tracker.Status(stage, item, now)
	second := tracker.Status(stage, item, now)
	if first != second {
		t.Fatalf("status should be deterministic: %+v vs %+v", first, second)
	}
	if !item.LastStageEntryAt.Equal(epoch) {
		t.Fatal("status must not mutate the item")
	}
}

func TestStatusWithoutSLA(t *testing.T) {
	got := sla.Tracker{}.Status(&store.Stage{Name: "Backlog"}, &store.WorkItem{LastStageEntryAt: epoch}, epoch.Add(1000*time.Hour))
	if got.State != sla.StateNoSLA || got.HasSLA() {
		t.Fatalf("expected No SLA, got %+v", got)
	}
}

func TestScopeRatioOverride(t *testing.T) {
	tracker := sla.Tracker{DefaultRatio: 0.25, ScopeRatios: map[int64]float64{7: 0.5}}
	stage := &store.Stage{SLAHours: hours(10)}
	now := epoch.Add(6 * time.Hour)

	if got := tracker.Status(stage, &store.WorkItem{ScopeID: 1, LastStageEntryAt: epoch}, now); got.State != sla.StateOnTrack {
		t.Fatalf("default scope should be on track, got %s", got.State)
	}
	if got := tracker.Status(stage, &store.WorkItem{ScopeID: 7, LastStageEntryAt: epoch}, now); got.State != sla.StateAtRisk {
		t.Fatalf("scope 7 should be at risk, got %s", got.State)
	}
}

func TestProcessEscalationsOncePerBreach(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.CreateStage(ctx, &store.Stage{Order: 1, Name: "Triage", SLAHours: hours(4)}); err != nil {
		t.Fatalf("CreateStage: %v", err)
	}
	if _, err := st.CreateStage(ctx, &store.Stage{Order: 2, Name: "Done", Terminal: true}); err != nil {
		t.Fatalf("CreateStage: %v", err)
	}
	late := testsupport.NewItem(t, st, 1, 1, epoch)
	testsupport.NewItem(t, st, 1, 1, epoch.Add(3*time.Hour))
	testsupport.NewItem(t, st, 2, 2, epoch)

	notifier := &testsupport.RecordingNotifier{}
	monitor := sla.NewMonitor(sla.Tracker{DefaultRatio: 0.25}, st, registry.New(st), st, notifier, nil)
	now := epoch.Add(5 * time.Hour)

	violations, err := monitor.ScanViolations(ctx, 0, now)
	if err != nil {
		t.Fatalf("ScanViolations: %v", err)
	}
	if len(violations) != 1 || violations[0].Item.ID != late.ID {
		t.Fatalf("expected only the late item, got %+v", violations)
	}

	report, err := monitor.ProcessEscalations(ctx, 0, now)
	if err != nil {
		t.Fatalf("ProcessEscalations: %v", err)
	}
	if report.Escalated != 1 || report.Scanned != 3 {
		t.Fatalf("unexpected first report %+v", report)
	}
	report, err = monitor.ProcessEscalations(ctx, 0, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("ProcessEscalations: %v", err)
	}
	if report.Escalated != 0 || report.Duplicates != 1 {
		t.Fatalf("breach must escalate once, got %+v", report)
	}
	if notifier.EscalationCount() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.EscalationCount())
	}
	if got := notifier.Escalations[0]; got.Stage != "Triage" || got.Overdue != time.Hour {
		t.Fatalf("unexpected escalation payload %+v", got)
	}
}

// failingRecorder refuses to record escalations for one item.
type failingRecorder struct {
	sla.EscalationRecorder
	failID int64
}

func (r failingRecorder) RecordEscalation(ctx context.Context, esc store.Escalation) (bool, error) {
	if esc.WorkItemID == r.failID {
		return false, errors.New("disk I/O error")
	}
	return r.EscalationRecorder.RecordEscalation(ctx, esc)
}

func TestProcessEscalationsSkipsFailingItem(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.CreateStage(ctx, &store.Stage{Order: 1, Name: "Triage", SLAHours: hours(4)}); err != nil {
		t.Fatalf("CreateStage: %v", err)
	}
	broken := testsupport.NewItem(t, st, 1, 1, epoch)
	first := testsupport.NewItem(t, st, 1, 1, epoch)
	second := testsupport.NewItem(t, st, 1, 1, epoch)

	notifier := &testsupport.RecordingNotifier{}
	recorder := failingRecorder{EscalationRecorder: st, failID: broken.ID}
	monitor := sla.NewMonitor(sla.Tracker{DefaultRatio: 0.25}, st, registry.New(st), recorder, notifier, nil)

	report, err := monitor.ProcessEscalations(ctx, 0, epoch.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("one failing item must not fail the sweep: %v", err)
	}
	if report.Violations != 3 || report.Failed != 1 || report.Escalated != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	escalated := map[int64]bool{}
	for _, e := range notifier.Escalations {
		escalated[e.ItemID] = true
	}
	if !escalated[first.ID] || !escalated[second.ID] || escalated[broken.ID] {
		t.Fatalf("expected items %d and %d escalated, got %+v", first.ID, second.ID, escalated)
	}
}
