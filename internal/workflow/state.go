package workflow

import (
	"context"
	"fmt"
	"time"

	"stageflow/internal/audit"
	"stageflow/internal/flowerr"
	"stageflow/internal/logging"
	"stageflow/internal/registry"
	"stageflow/internal/sla"
	"stageflow/internal/store"
)

// State is a point-in-time view of one work item.
type State struct {
	Item             *store.WorkItem
	Stage            *store.Stage
	SLA              sla.Status
	Terminal         bool
	AwaitingApproval bool
	// Targets are the stages reachable by any active transition, regardless of role.
	Targets []*store.Stage
}

// GetItem loads a work item or fails with flowerr.ErrNotFound.
func (e *Engine) GetItem(ctx context.Context, itemID int64) (*store.WorkItem, error) {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, flowerr.Wrap(flowerr.ErrNotFound, "workflow", "get item", fmt.Sprintf("work item %d not found", itemID), nil)
	}
	return item, nil
}

// GetWorkflowState describes where an item is and where it can go.
func (e *Engine) GetWorkflowState(ctx context.Context, itemID int64) (*State, error) {
	item, err := e.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	stage := snap.StageByOrder(item.CurrentStage, item.ScopeID)
	state := &State{Item: item, Stage: stage}
	if stage == nil {
		state.SLA = sla.Status{State: sla.StateNoSLA}
		return state, nil
	}
	state.SLA = e.sla.Tracker().Status(stage, item, e.clock())
	state.Terminal = snap.IsTerminal(stage, item.ScopeID)
	state.AwaitingApproval = stage.ApprovalRequired && item.Status == store.StatusActive
	for _, edge := range snap.TransitionsFrom(stage.Order, item.ScopeID) {
		state.Targets = append(state.Targets, edge.To)
	}
	return state, nil
}

// GetWorkflowHistory reconstructs the stage visits of an item.
func (e *Engine) GetWorkflowHistory(ctx context.Context, itemID int64) ([]audit.State, error) {
	if _, err := e.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return e.audit.History(ctx, itemID)
}

// GetStateAsOf returns the stage visit in effect for an item at t.
func (e *Engine) GetStateAsOf(ctx context.Context, itemID int64, t time.Time) (*audit.State, error) {
	if _, err := e.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return e.audit.StateAsOf(ctx, itemID, t)
}

// ValidateWorkflowConfiguration reports configuration warnings for scope.
func (e *Engine) ValidateWorkflowConfiguration(ctx context.Context, scope int64) (registry.Report, error) {
	return e.registry.ValidateConfiguration(ctx, scope)
}

// GetSLAStatus computes the SLA position of item now.
func (e *Engine) GetSLAStatus(ctx context.Context, item *store.WorkItem) (sla.Status, error) {
	if item == nil {
		return sla.Status{State: sla.StateNoSLA}, nil
	}
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return sla.Status{}, err
	}
	stage := snap.StageByOrder(item.CurrentStage, item.ScopeID)
	return e.sla.Tracker().Status(stage, item, e.clock()), nil
}

// GetSLAViolations lists active items past their deadline in scope (0 for all).
func (e *Engine) GetSLAViolations(ctx context.Context, scope int64) ([]sla.Violation, error) {
	return e.sla.ScanViolations(ctx, scope, e.clock())
}

// ProcessSLANotifications escalates every new breach in scope (0 for all).
func (e *Engine) ProcessSLANotifications(ctx context.Context, scope int64) (sla.EscalationReport, error) {
	started := time.Now()
	ctx = logging.WithSweep(ctx, sweepEscalations)
	report, err := e.sla.ProcessEscalations(ctx, scope, e.clock())
	observeSweep(sweepEscalations, started, map[string]int{
		"escalated": report.Escalated,
		"duplicate": report.Duplicates,
		"failed":    report.Failed,
	})
	if err == nil && report.Escalated > 0 {
		logging.WithContext(ctx, e.logger).Info("escalation sweep finished",
			logging.Int("violations", report.Violations),
			logging.Int("escalated", report.Escalated),
			logging.String(logging.FieldEventType, "escalation_sweep_completed"),
		)
	}
	return report, err
}
