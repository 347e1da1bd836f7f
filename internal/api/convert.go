package api

import (
	"time"

	"stageflow/internal/audit"
	"stageflow/internal/registry"
	"stageflow/internal/sla"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

// FromWorkItem converts a work item to its API representation. stage may be
// nil when the item's stage is no longer defined.
func FromWorkItem(item *store.WorkItem, stage *store.Stage, now time.Time) WorkItem {
	if item == nil {
		return WorkItem{}
	}
	dto := WorkItem{
		ID:               item.ID,
		Title:            item.Title,
		Description:      item.Description,
		OwnerID:          item.OwnerID,
		ScopeID:          item.ScopeID,
		Stage:            item.CurrentStage,
		Priority:         item.Priority,
		PriorityLevel:    string(item.PriorityLevel()),
		Status:           string(item.Status),
		CreatedAt:        formatTimestamp(item.CreatedAt),
		LastStageEntryAt: formatTimestamp(item.LastStageEntryAt),
		UpdatedAt:        formatTimestamp(item.UpdatedAt),
		TimeInStageHours: Hours(item.TimeInStage(now)),
	}
	if stage != nil {
		dto.StageName = stage.Name
	}
	return dto
}

// FromWorkItems converts items, resolving stage names through snap.
func FromWorkItems(items []*store.WorkItem, snap *registry.Snapshot, now time.Time) []WorkItem {
	out := make([]WorkItem, 0, len(items))
	for _, item := range items {
		var stage *store.Stage
		if snap != nil {
			stage = snap.StageByOrder(item.CurrentStage, item.ScopeID)
		}
		out = append(out, FromWorkItem(item, stage, now))
	}
	return out
}

// FromStage converts a stage definition.
func FromStage(stage *store.Stage) Stage {
	if stage == nil {
		return Stage{}
	}
	return Stage{
		ID:               stage.ID,
		ScopeID:          stage.ScopeID,
		Order:            stage.Order,
		Name:             stage.Name,
		ApprovalRequired: stage.ApprovalRequired,
		ApproverRole:     string(stage.ApproverRole),
		SLAHours:         stage.SLAHours,
		Terminal:         stage.Terminal,
		Active:           stage.IsActive,
	}
}

// FromStages converts a slice of stages.
func FromStages(stages []*store.Stage) []Stage {
	out := make([]Stage, 0, len(stages))
	for _, stage := range stages {
		out = append(out, FromStage(stage))
	}
	return out
}

// FromTransition converts a transition, resolving endpoints through snap when given.
func FromTransition(tr *store.Transition, snap *registry.Snapshot) Transition {
	if tr == nil {
		return Transition{}
	}
	dto := Transition{
		ID:                   tr.ID,
		ScopeID:              tr.ScopeID,
		FromStageID:          tr.FromStageID,
		ToStageID:            tr.ToStageID,
		RequiredRole:         string(tr.RequiredRole),
		Condition:            tr.ConditionScript,
		ValidationRules:      tr.ValidationRules,
		AutoDelayMinutes:     tr.AutoTransitionDelayMinutes,
		NotificationRequired: tr.NotificationRequired,
		NotificationTemplate: tr.NotificationTemplate,
		Active:               tr.IsActive,
	}
	if snap != nil {
		if from := snap.Stage(tr.FromStageID); from != nil {
			dto.FromStage, dto.FromOrder = from.Name, from.Order
		}
		if to := snap.Stage(tr.ToStageID); to != nil {
			dto.ToStage, dto.ToOrder = to.Name, to.Order
		}
	}
	return dto
}

// FromTransitions converts a slice of transitions.
func FromTransitions(transitions []*store.Transition, snap *registry.Snapshot) []Transition {
	out := make([]Transition, 0, len(transitions))
	for _, tr := range transitions {
		out = append(out, FromTransition(tr, snap))
	}
	return out
}

// FromAuditEntries converts an audit trail.
func FromAuditEntries(entries []*store.AuditEntry) []AuditEntry {
	out := make([]AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntry{
			ID:                       e.ID,
			WorkItemID:               e.WorkItemID,
			Action:                   string(e.Action),
			OldStage:                 e.OldStage,
			NewStage:                 e.NewStage,
			OldValue:                 e.OldValue,
			NewValue:                 e.NewValue,
			ActorID:                  e.ActorID,
			Timestamp:                formatTimestamp(e.Timestamp),
			Comments:                 e.Comments,
			TimeInPreviousStageHours: e.Metadata.TimeInPreviousStageHours,
			TransitionID:             e.Metadata.TransitionID,
			Automatic:                e.Metadata.Automatic,
			Decision:                 e.Metadata.Decision,
		})
	}
	return out
}

// FromHistory converts reconstructed stage visits. Ongoing visits report
// their duration up to now.
func FromHistory(states []audit.State, now time.Time) []HistoryState {
	out := make([]HistoryState, 0, len(states))
	for _, s := range states {
		dto := HistoryState{
			Stage:         s.Stage,
			StageName:     s.StageName,
			EnteredAt:     formatTimestamp(s.EnteredAt),
			DurationHours: Hours(s.Duration),
			ActorID:       s.ActorID,
			Comment:       s.Comment,
			Automatic:     s.Automatic,
			Decision:      s.Decision,
			Current:       s.Current(),
		}
		if s.ExitedAt != nil {
			dto.ExitedAt = formatTimestamp(*s.ExitedAt)
		} else {
			dto.DurationHours = Hours(now.Sub(s.EnteredAt))
		}
		out = append(out, dto)
	}
	return out
}

// FromSLAStatus converts an SLA status.
func FromSLAStatus(status sla.Status) SLAStatus {
	dto := SLAStatus{
		State:        string(status.State),
		ElapsedHours: Hours(status.Elapsed),
	}
	if status.HasSLA() {
		dto.SLAHours = status.SLAHours
		dto.Deadline = formatTimestamp(status.Deadline)
		dto.RemainingHours = Hours(status.Remaining)
	}
	return dto
}

// FromDecision converts a transition check.
func FromDecision(itemID int64, target int, d workflow.Decision) Decision {
	return Decision{
		ItemID:   itemID,
		Target:   target,
		Allowed:  d.Allowed,
		Gate:     d.Gate,
		Reasons:  nonNil(d.Reasons),
		Warnings: nonNil(d.Warnings),
	}
}

// FromState converts an item's workflow state.
func FromState(state *workflow.State, now time.Time) ItemState {
	if state == nil {
		return ItemState{}
	}
	item := FromWorkItem(state.Item, state.Stage, now)
	slaDTO := FromSLAStatus(state.SLA)
	item.SLA = &slaDTO
	targets := make([]Stage, 0, len(state.Targets))
	for _, stage := range state.Targets {
		targets = append(targets, FromStage(stage))
	}
	return ItemState{
		Item:             item,
		Terminal:         state.Terminal,
		AwaitingApproval: state.AwaitingApproval,
		Targets:          targets,
	}
}

// FromPendingApprovals converts the approval queue.
func FromPendingApprovals(pending []workflow.PendingApproval, now time.Time) []PendingApproval {
	out := make([]PendingApproval, 0, len(pending))
	for _, p := range pending {
		item := FromWorkItem(p.Item, p.Stage, now)
		slaDTO := FromSLAStatus(p.SLA)
		item.SLA = &slaDTO
		out = append(out, PendingApproval{Item: item, WaitingHours: Hours(p.Waiting)})
	}
	return out
}

// FromViolations converts SLA breaches.
func FromViolations(violations []sla.Violation, now time.Time) []Violation {
	out := make([]Violation, 0, len(violations))
	for _, v := range violations {
		item := FromWorkItem(v.Item, v.Stage, now)
		slaDTO := FromSLAStatus(v.Status)
		item.SLA = &slaDTO
		out = append(out, Violation{Item: item, OverdueHours: Hours(v.Status.Overdue())})
	}
	return out
}

// FromApprovalResult converts an approval outcome.
func FromApprovalResult(result workflow.ApprovalResult, stage *store.Stage, now time.Time) ApprovalResult {
	return ApprovalResult{
		Approved:  result.Approved,
		Moved:     result.Moved,
		FromStage: result.FromStage,
		ToStage:   result.ToStage,
		Item:      FromWorkItem(result.Item, stage, now),
	}
}

// FromAutoSweep converts an auto-transition sweep report.
func FromAutoSweep(report workflow.SweepReport) SweepResult {
	return SweepResult{
		Sweep:      "auto_transitions",
		Scanned:    report.Scanned,
		Advanced:   report.Advanced,
		Failed:     report.Failed,
		DurationMS: report.Duration.Milliseconds(),
	}
}

// FromEscalationSweep converts an escalation sweep report.
func FromEscalationSweep(report sla.EscalationReport) SweepResult {
	return SweepResult{
		Sweep:      "escalations",
		Scanned:    report.Scanned,
		Escalated:  report.Escalated,
		Duplicates: report.Duplicates,
		Failed:     report.Failed,
	}
}
