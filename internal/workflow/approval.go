package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stageflow/internal/audit"
	"stageflow/internal/directory"
	"stageflow/internal/flowerr"
	"stageflow/internal/logging"
	"stageflow/internal/notifications"
	"stageflow/internal/registry"
	"stageflow/internal/sla"
	"stageflow/internal/store"
)

// ApprovalResult describes the outcome of an approval decision.
type ApprovalResult struct {
	Approved  bool            `json:"approved"`
	Moved     bool            `json:"moved"`
	FromStage string          `json:"fromStage"`
	ToStage   string          `json:"toStage"`
	Item      *store.WorkItem `json:"item"`
}

// PendingApproval is an item waiting on an approval decision.
type PendingApproval struct {
	Item    *store.WorkItem
	Stage   *store.Stage
	Waiting time.Duration
	SLA     sla.Status
}

func (e *Engine) approverRole(stage *store.Stage) directory.Role {
	if stage.ApproverRole != directory.RoleNone {
		return stage.ApproverRole
	}
	return e.settings.DefaultApproverRole
}

// ProcessApprovalWorkflow records an approval decision on an item that sits
// in an approval-required stage. Approval advances the item along the first
// forward transition the approver may take; rejection keeps the item in
// place unless a reject-to stage is configured and reachable.
func (e *Engine) ProcessApprovalWorkflow(ctx context.Context, item *store.WorkItem, approverID string, approved bool, comment string) (ApprovalResult, error) {
	if item == nil {
		return ApprovalResult{}, flowerr.Wrap(flowerr.ErrNotFound, "workflow", "approval", "work item is required", nil)
	}
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return ApprovalResult{}, err
	}
	stage := snap.StageByOrder(item.CurrentStage, item.ScopeID)
	if stage == nil || !stage.ApprovalRequired {
		return ApprovalResult{}, flowerr.Wrap(flowerr.ErrApprovalNotRequired, "workflow", "approval",
			fmt.Sprintf("item %d is not in an approval stage", item.ID), nil)
	}
	approver, err := e.directory.Actor(ctx, approverID)
	if err != nil {
		return ApprovalResult{}, flowerr.Wrap(flowerr.ErrApprovalUnauthorized, "workflow", "approval",
			fmt.Sprintf("approver %q could not be resolved", approverID), err)
	}
	required := e.approverRole(stage)
	if !approver.Role.AtLeast(required) {
		return ApprovalResult{}, flowerr.Wrap(flowerr.ErrApprovalUnauthorized, "workflow", "approval",
			fmt.Sprintf("role %s cannot decide approvals in %q (requires %s)", approver.Role, stage.Name, required), nil)
	}

	var result ApprovalResult
	if approved {
		result, err = e.approve(ctx, snap, item, stage, approver, comment)
	} else {
		result, err = e.reject(ctx, snap, item, stage, approver, comment)
	}
	if err != nil {
		return ApprovalResult{}, err
	}

	if nerr := e.notifier.NotifyApprovalDecision(ctx, notifications.ApprovalDecision{
		ItemID:     item.ID,
		Title:      item.Title,
		Stage:      stage.Name,
		ApproverID: approver.ID,
		Approved:   approved,
		Comment:    comment,
		Recipients: []string{item.OwnerID},
	}); nerr != nil {
		logging.WarnWithContext(e.itemLogger(ctx, item), "approval notification failed", "notification_failed",
			logging.Error(nerr),
			logging.String(logging.FieldErrorHint, "verify the ntfy topic and network access"),
			logging.String(logging.FieldImpact, "decision recorded without a notification"),
		)
	}
	return result, nil
}

func (e *Engine) approve(ctx context.Context, snap *registry.Snapshot, item *store.WorkItem, stage *store.Stage, approver directory.Actor, comment string) (ApprovalResult, error) {
	edges, err := e.availableEdges(ctx, snap, item, approver.ID)
	if err != nil {
		return ApprovalResult{}, err
	}
	if len(edges) == 0 {
		return ApprovalResult{}, flowerr.Wrap(flowerr.ErrTransitionNotFound, "workflow", "approve",
			fmt.Sprintf("no transition available from %q", stage.Name), nil)
	}
	target := edges[0]
	for _, edge := range edges {
		if edge.To.Order > stage.Order {
			target = edge
			break
		}
	}
	updated, err := e.decide(ctx, snap, item, target.To.Order, approver.ID, comment, kindApproval, audit.DecisionApproved)
	if err != nil {
		return ApprovalResult{}, err
	}
	return ApprovalResult{Approved: true, Moved: true, FromStage: stage.Name, ToStage: target.To.Name, Item: updated}, nil
}

func (e *Engine) reject(ctx context.Context, snap *registry.Snapshot, item *store.WorkItem, stage *store.Stage, approver directory.Actor, comment string) (ApprovalResult, error) {
	logger := e.itemLogger(logging.WithActorID(ctx, approver.ID), item)
	if name := e.settings.RejectToStage; name != "" {
		target := snap.StageByName(name, item.ScopeID)
		if target != nil && target.Order != stage.Order && snap.Transition(stage.Order, target.Order, item.ScopeID) != nil {
			updated, err := e.decide(ctx, snap, item, target.Order, approver.ID, comment, kindRejection, audit.DecisionRejected)
			if err != nil {
				return ApprovalResult{}, err
			}
			return ApprovalResult{Moved: true, FromStage: stage.Name, ToStage: target.Name, Item: updated}, nil
		}
		logging.WarnWithContext(logger, "reject-to stage not reachable; item stays in place", "reject_target_unreachable",
			logging.String("reject_to_stage", name),
			logging.String(logging.FieldStage, stage.Name),
			logging.String(logging.FieldErrorHint, "add a transition to the reject-to stage or clear workflow.reject_to_stage"),
			logging.String(logging.FieldImpact, "rejection recorded without moving the item"),
		)
	}

	if _, err := e.store.AppendRecord(ctx, audit.Rejected(item, stage, approver.ID, comment, e.stampFor(item))); err != nil {
		return ApprovalResult{}, err
	}
	transitionsTotal.WithLabelValues(kindRejection).Inc()
	logger.Info("approval rejected",
		logging.String(logging.FieldStage, stage.Name),
		logging.String(logging.FieldEventType, "approval_rejected"),
	)
	same := *item
	return ApprovalResult{FromStage: stage.Name, ToStage: stage.Name, Item: &same}, nil
}

// decide runs the full gate check for the chosen target and commits with
// the decision recorded in the audit metadata.
func (e *Engine) decide(ctx context.Context, snap *registry.Snapshot, item *store.WorkItem, target int, actorID, comment, kind, label string) (*store.WorkItem, error) {
	decision, err := e.check(ctx, snap, item, target, actorID)
	if err != nil {
		return nil, err
	}
	if err := e.refusal(item, target, decision); err != nil {
		return nil, err
	}
	return e.commit(ctx, snap, item, decision, commitOptions{
		actorID:  actorID,
		comment:  comment,
		kind:     kind,
		decision: label,
	})
}

// GetPendingApprovals lists active items in approval stages that approverID
// may decide, longest waiting first.
func (e *Engine) GetPendingApprovals(ctx context.Context, approverID string) ([]PendingApproval, error) {
	approver, err := e.directory.Actor(ctx, approverID)
	if err != nil {
		return nil, err
	}
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	items, err := e.store.ListWorkItems(ctx, store.ItemFilter{Statuses: []store.Status{store.StatusActive}})
	if err != nil {
		return nil, err
	}
	now := e.clock()
	tracker := e.sla.Tracker()
	var out []PendingApproval
	for _, item := range items {
		stage := snap.StageByOrder(item.CurrentStage, item.ScopeID)
		if stage == nil || !stage.ApprovalRequired || !approver.Role.AtLeast(e.approverRole(stage)) {
			continue
		}
		out = append(out, PendingApproval{
			Item:    item,
			Stage:   stage,
			Waiting: item.TimeInStage(now),
			SLA:     tracker.Status(stage, item, now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Item.LastStageEntryAt.Before(out[j].Item.LastStageEntryAt)
	})
	return out, nil
}
