package workflow_test

import (
	"errors"
	"testing"
	"time"

	"stageflow/internal/directory"
	"stageflow/internal/flowerr"
	"stageflow/internal/store"
	"stageflow/internal/testsupport"
)

func requireReviewApproval(h *harness) {
	h.updateStage(2, func(s *store.Stage) {
		s.ApprovalRequired = true
		s.ApproverRole = directory.RoleManager
	})
}

func TestApprovalAdvancesToNextStage(t *testing.T) {
	h := newHarness(t)
	requireReviewApproval(h)
	h.addTransition(2, 1, nil)
	item := h.item(2, time.Hour)

	result, err := h.engine.ProcessApprovalWorkflow(h.ctx, item, "manager", true, "looks good")
	if err != nil {
		t.Fatalf("ProcessApprovalWorkflow: %v", err)
	}
	if !result.Approved || !result.Moved || result.ToStage != "Approved" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Item.CurrentStage != 3 {
		t.Fatalf("expected forward move to stage 3, got %d", result.Item.CurrentStage)
	}

	entries, err := h.st.ListAuditEntries(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Metadata.Decision != "approved" || last.ActorID != "manager" {
		t.Fatalf("unexpected approval entry %+v", last)
	}
	if len(h.notifier.Decisions) != 1 || !h.notifier.Decisions[0].Approved {
		t.Fatalf("expected one approval notification, got %+v", h.notifier.Decisions)
	}
}

func TestRejectionKeepsItemInPlace(t *testing.T) {
	h := newHarness(t)
	requireReviewApproval(h)
	item := h.item(2, time.Hour)

	result, err := h.engine.ProcessApprovalWorkflow(h.ctx, item, "admin", false, "needs numbers")
	if err != nil {
		t.Fatalf("ProcessApprovalWorkflow: %v", err)
	}
	if result.Approved || result.Moved || result.ToStage != "Review" {
		t.Fatalf("unexpected result %+v", result)
	}
	if stored := h.reload(item); stored.CurrentStage != 2 || !stored.LastStageEntryAt.Equal(item.LastStageEntryAt) {
		t.Fatalf("rejection must not move the item: %+v", stored)
	}

	entries, err := h.st.ListAuditEntries(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	events, err := h.st.ListEvents(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if entries[len(entries)-1].Action != store.ActionApprovalRejected || entries[len(entries)-1].Comments != "needs numbers" {
		t.Fatalf("expected rejection entry, got %+v", entries[len(entries)-1])
	}
	if events[len(events)-1].Type != store.EventApprovalRejected {
		t.Fatalf("expected rejection event, got %s", events[len(events)-1].Type)
	}
	if len(h.notifier.Decisions) != 1 || h.notifier.Decisions[0].Approved {
		t.Fatalf("expected one rejection notification, got %+v", h.notifier.Decisions)
	}
}

func TestRejectionReturnsToConfiguredStage(t *testing.T) {
	h := newHarness(t, testsupport.WithRejectToStage("draft"))
	requireReviewApproval(h)
	h.addTransition(2, 1, nil)
	item := h.item(2, time.Hour)

	result, err := h.engine.ProcessApprovalWorkflow(h.ctx, item, "manager", false, "start over")
	if err != nil {
		t.Fatalf("ProcessApprovalWorkflow: %v", err)
	}
	if !result.Moved || result.ToStage != "Draft" || result.Item.CurrentStage != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	entries, err := h.st.ListAuditEntries(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Action != store.ActionStageChanged || last.Metadata.Decision != "rejected" {
		t.Fatalf("expected rejected stage change, got %+v", last)
	}
}

func TestRejectionToUnreachableStageStaysInPlace(t *testing.T) {
	h := newHarness(t, testsupport.WithRejectToStage("Draft"))
	requireReviewApproval(h)
	item := h.item(2, time.Hour)

	result, err := h.engine.ProcessApprovalWorkflow(h.ctx, item, "manager", false, "")
	if err != nil {
		t.Fatalf("ProcessApprovalWorkflow: %v", err)
	}
	if result.Moved {
		t.Fatalf("expected item to stay without a back transition, got %+v", result)
	}
	if stored := h.reload(item); stored.CurrentStage != 2 {
		t.Fatalf("expected stage 2, got %d", stored.CurrentStage)
	}
}

func TestApprovalErrors(t *testing.T) {
	h := newHarness(t)
	requireReviewApproval(h)
	draft := h.item(1, time.Hour)
	review := h.item(2, time.Hour)

	if _, err := h.engine.ProcessApprovalWorkflow(h.ctx, draft, "manager", true, ""); !errors.Is(err, flowerr.ErrApprovalNotRequired) {
		t.Fatalf("expected ErrApprovalNotRequired, got %v", err)
	}
	if _, err := h.engine.ProcessApprovalWorkflow(h.ctx, review, "reviewer", true, ""); !errors.Is(err, flowerr.ErrApprovalUnauthorized) {
		t.Fatalf("expected ErrApprovalUnauthorized for reviewer, got %v", err)
	}
	if _, err := h.engine.ProcessApprovalWorkflow(h.ctx, review, "ghost", false, ""); !errors.Is(err, flowerr.ErrApprovalUnauthorized) {
		t.Fatalf("expected ErrApprovalUnauthorized for unknown approver, got %v", err)
	}
	if len(h.notifier.Decisions) != 0 {
		t.Fatalf("failed decisions must not notify, got %d", len(h.notifier.Decisions))
	}
}

func TestApprovalFallsBackToDefaultApproverRole(t *testing.T) {
	h := newHarness(t)
	h.updateStage(2, func(s *store.Stage) { s.ApprovalRequired = true })
	item := h.item(2, time.Hour)

	if _, err := h.engine.ProcessApprovalWorkflow(h.ctx, item, "reviewer", true, ""); !errors.Is(err, flowerr.ErrApprovalUnauthorized) {
		t.Fatalf("expected default approver role manager to reject reviewer, got %v", err)
	}
	if _, err := h.engine.ProcessApprovalWorkflow(h.ctx, item, "manager", true, ""); err != nil {
		t.Fatalf("manager approval: %v", err)
	}
}

func TestGetPendingApprovalsOldestFirst(t *testing.T) {
	h := newHarness(t)
	requireReviewApproval(h)
	newer := h.item(2, time.Hour)
	older := h.item(2, 5*time.Hour)
	h.item(1, 9*time.Hour)

	pending, err := h.engine.GetPendingApprovals(h.ctx, "manager")
	if err != nil {
		t.Fatalf("GetPendingApprovals: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending approvals, got %d", len(pending))
	}
	if pending[0].Item.ID != older.ID || pending[1].Item.ID != newer.ID {
		t.Fatalf("expected oldest first, got %d then %d", pending[0].Item.ID, pending[1].Item.ID)
	}
	if pending[0].Waiting != 5*time.Hour || pending[0].Stage.Name != "Review" {
		t.Fatalf("unexpected pending entry %+v", pending[0])
	}

	none, err := h.engine.GetPendingApprovals(h.ctx, "reviewer")
	if err != nil {
		t.Fatalf("GetPendingApprovals(reviewer): %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("reviewer cannot decide manager approvals, got %d", len(none))
	}
}

func TestRejectionTimestampNeverPrecedesStageEntry(t *testing.T) {
	h := newHarness(t)
	requireReviewApproval(h)
	// Stage entry recorded ahead of the engine clock, as after clock skew
	// between the CLI host and the daemon host.
	item := h.item(2, -30*time.Minute)

	if _, err := h.engine.ProcessApprovalWorkflow(h.ctx, item, "manager", false, "rework"); err != nil {
		t.Fatalf("ProcessApprovalWorkflow: %v", err)
	}
	entries, err := h.st.ListAuditEntries(h.ctx, item.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Fatalf("entry %d at %s precedes entry %d at %s", i, entries[i].Timestamp, i-1, entries[i-1].Timestamp)
		}
	}
	last := entries[len(entries)-1]
	if last.Action != store.ActionApprovalRejected || !last.Timestamp.Equal(item.LastStageEntryAt) {
		t.Fatalf("expected rejection stamped at stage entry %s, got %+v", item.LastStageEntryAt, last)
	}
}
