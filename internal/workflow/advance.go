package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stageflow/internal/audit"
	"stageflow/internal/flowerr"
	"stageflow/internal/logging"
	"stageflow/internal/notifications"
	"stageflow/internal/priority"
	"stageflow/internal/registry"
	"stageflow/internal/store"
)

// NewItem holds the caller-supplied fields of a work item.
type NewItem struct {
	Title       string
	Description string
	OwnerID     string
	ScopeID     int64
	Priority    float64
}

// CreateItem places a new work item in the lowest-order stage of its scope
// and records its creation.
func (e *Engine) CreateItem(ctx context.Context, in NewItem, actorID string) (*store.WorkItem, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "workflow", "create item", "title is required", nil)
	}
	// Validation refuses every manual move of an item without a description.
	if strings.TrimSpace(in.Description) == "" {
		return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "workflow", "create item", "description is required", nil)
	}
	if in.ScopeID <= 0 {
		return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "workflow", "create item", "scope id must be positive", nil)
	}
	if _, err := e.directory.Actor(ctx, actorID); err != nil {
		return nil, err
	}
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	initial := snap.InitialStage(in.ScopeID)
	if initial == nil {
		return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "workflow", "create item",
			fmt.Sprintf("scope %d has no active stages", in.ScopeID), nil)
	}

	owner := strings.TrimSpace(in.OwnerID)
	if owner == "" {
		owner = actorID
	}
	now := e.clock()
	item := &store.WorkItem{
		Title:            strings.TrimSpace(in.Title),
		Description:      strings.TrimSpace(in.Description),
		OwnerID:          owner,
		ScopeID:          in.ScopeID,
		CurrentStage:     initial.Order,
		Priority:         priority.Clamp(in.Priority),
		Status:           store.StatusActive,
		CreatedAt:        now,
		LastStageEntryAt: now,
	}
	created, err := e.store.CreateWorkItem(ctx, item, audit.Created(item, initial, actorID, now))
	if err != nil {
		return nil, err
	}
	e.itemLogger(logging.WithActorID(ctx, actorID), created).Info("work item created",
		logging.String(logging.FieldStage, initial.Name),
		logging.String(logging.FieldEventType, "item_created"),
	)
	return created, nil
}

// Advance moves item to targetOrder on behalf of actorID. item is the
// caller's snapshot; if the stored item has moved since, the commit fails
// with flowerr.ErrConcurrencyConflict.
func (e *Engine) Advance(ctx context.Context, item *store.WorkItem, targetOrder int, actorID, comment string) (*store.WorkItem, error) {
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	decision, err := e.check(ctx, snap, item, targetOrder, actorID)
	if err != nil {
		return nil, err
	}
	if err := e.refusal(item, targetOrder, decision); err != nil {
		return nil, err
	}
	return e.commit(ctx, snap, item, decision, commitOptions{
		actorID: actorID,
		comment: comment,
		kind:    kindManual,
	})
}

func (e *Engine) refusal(item *store.WorkItem, targetOrder int, decision Decision) error {
	if decision.Allowed {
		return nil
	}
	deniedTotal.WithLabelValues(decision.Gate).Inc()
	if decision.Missing {
		var id int64
		if item != nil {
			id = item.ID
		}
		return flowerr.Wrap(flowerr.ErrTransitionNotFound, "workflow", "advance",
			fmt.Sprintf("item %d has no transition to stage %d", id, targetOrder), nil)
	}
	return &DeniedError{ItemID: item.ID, Target: targetOrder, Reasons: decision.Reasons}
}

type commitOptions struct {
	actorID   string
	comment   string
	kind      string
	automatic bool
	decision  string
}

// commit performs the compare-and-swap write for an allowed decision and
// emits notifications. Notification failures are logged only.
func (e *Engine) commit(ctx context.Context, snap *registry.Snapshot, item *store.WorkItem, decision Decision, opts commitOptions) (*store.WorkItem, error) {
	now := e.stampFor(item)
	status := store.StatusActive
	if snap.IsTerminal(decision.To, item.ScopeID) {
		status = store.StatusCompleted
	}
	record := audit.Transitioned(audit.Change{
		Item:         item,
		From:         decision.From,
		To:           decision.To,
		TransitionID: decision.Edge.Transition.ID,
		ActorID:      opts.actorID,
		Comment:      opts.comment,
		Automatic:    opts.automatic,
		Decision:     opts.decision,
		At:           now,
	})

	logger := e.itemLogger(logging.WithActorID(ctx, opts.actorID), item).With(
		logging.Int64(logging.FieldTransitionID, decision.Edge.Transition.ID),
	)
	if _, err := e.store.CommitTransition(ctx, store.Commit{
		ItemID:          item.ID,
		ExpectedStage:   item.CurrentStage,
		ExpectedEntryAt: item.LastStageEntryAt,
		NewStage:        decision.To.Order,
		NewStatus:       status,
		EnteredAt:       now,
		Record:          record,
	}); err != nil {
		if errors.Is(err, flowerr.ErrConcurrencyConflict) {
			conflictsTotal.Inc()
		}
		return nil, err
	}

	dwell := item.TimeInStage(now)
	observeTransition(opts.kind, decision.From.Name, dwell)
	logger.Info("work item advanced",
		logging.String("from_stage", decision.From.Name),
		logging.String(logging.FieldStage, decision.To.Name),
		logging.String(logging.FieldEventType, "item_advanced"),
		logging.Bool("automatic", opts.automatic),
		logging.Duration("time_in_stage", dwell),
	)

	updated := *item
	updated.CurrentStage = decision.To.Order
	updated.LastStageEntryAt = now
	updated.UpdatedAt = now
	updated.Status = status

	if decision.Edge.Transition.NotificationRequired {
		err := e.notifier.NotifyTransition(ctx, notifications.Transition{
			ItemID:     item.ID,
			Title:      item.Title,
			ScopeID:    item.ScopeID,
			FromStage:  decision.From.Name,
			ToStage:    decision.To.Name,
			ActorID:    opts.actorID,
			Comment:    strings.TrimSpace(opts.comment),
			Automatic:  opts.automatic,
			Recipients: []string{item.OwnerID},
			Template:   decision.Edge.Transition.NotificationTemplate,
		})
		if err != nil {
			logging.WarnWithContext(logger, "transition notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify the ntfy topic and network access"),
				logging.String(logging.FieldImpact, "transition committed without a notification"),
			)
		}
	}
	return &updated, nil
}
