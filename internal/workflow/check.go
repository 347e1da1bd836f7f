package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stageflow/internal/condition"
	"stageflow/internal/directory"
	"stageflow/internal/flowerr"
	"stageflow/internal/registry"
	"stageflow/internal/store"
	"stageflow/internal/validation"
)

// Decision is the full outcome of a transition check.
type Decision struct {
	Allowed bool `json:"allowed"`
	// Missing is set when no active transition connects the stages.
	Missing bool `json:"missing"`
	// Gate names the first check that failed.
	Gate     string   `json:"gate,omitempty"`
	Reasons  []string `json:"reasons"`
	Warnings []string `json:"warnings"`

	Edge  *registry.Edge  `json:"-"`
	From  *store.Stage    `json:"-"`
	To    *store.Stage    `json:"-"`
	Actor directory.Actor `json:"-"`
}

// Gates reported in Decision.Gate.
const (
	GateTransition = "transition"
	GateActor      = "actor"
	GateRole       = "role"
	GateCondition  = "condition"
	GateValidation = "validation"
)

func (d *Decision) deny(gate, reason string) {
	d.Allowed = false
	if d.Gate == "" {
		d.Gate = gate
	}
	d.Reasons = append(d.Reasons, reason)
}

// DeniedError reports why a transition was refused. It matches
// flowerr.ErrTransitionNotAllowed.
type DeniedError struct {
	ItemID  int64
	Target  int
	Reasons []string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("transition of item %d to stage %d not allowed: %s",
		e.ItemID, e.Target, strings.Join(e.Reasons, "; "))
}

// Is lets errors.Is match the sentinel.
func (e *DeniedError) Is(target error) bool {
	return target == flowerr.ErrTransitionNotAllowed
}

// CanAdvance reports whether actorID may move item to targetOrder. An error
// is returned only for infrastructure failures.
func (e *Engine) CanAdvance(ctx context.Context, item *store.WorkItem, targetOrder int, actorID string) (bool, error) {
	decision, err := e.Check(ctx, item, targetOrder, actorID)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// Check evaluates every gate for a proposed transition and explains the result.
func (e *Engine) Check(ctx context.Context, item *store.WorkItem, targetOrder int, actorID string) (Decision, error) {
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return Decision{}, err
	}
	return e.check(ctx, snap, item, targetOrder, actorID)
}

func (e *Engine) check(ctx context.Context, snap *registry.Snapshot, item *store.WorkItem, targetOrder int, actorID string) (Decision, error) {
	decision := Decision{Allowed: true}
	if item == nil {
		decision.deny(GateValidation, "work item is required")
		return decision, nil
	}

	decision.From = snap.StageByOrder(item.CurrentStage, item.ScopeID)
	decision.To = snap.StageByOrder(targetOrder, item.ScopeID)
	if decision.From != nil && decision.To != nil {
		decision.Edge = snap.Transition(decision.From.Order, decision.To.Order, item.ScopeID)
	}
	if decision.Edge == nil {
		decision.Missing = true
		decision.deny(GateTransition, fmt.Sprintf("no active transition from stage %d to stage %d", item.CurrentStage, targetOrder))
		return decision, nil
	}

	actor, err := e.directory.Actor(ctx, actorID)
	if err != nil {
		if errors.Is(err, flowerr.ErrNotFound) {
			decision.deny(GateActor, fmt.Sprintf("unknown actor %q", actorID))
			return decision, nil
		}
		return Decision{}, err
	}
	decision.Actor = actor

	tr := decision.Edge.Transition
	if !actor.Role.AtLeast(tr.RequiredRole) {
		decision.deny(GateRole, fmt.Sprintf("role %s is below the required role %s", actor.Role, tr.RequiredRole))
		return decision, nil
	}

	script, err := condition.Parse(tr.ConditionScript)
	if err != nil {
		decision.deny(GateCondition, fmt.Sprintf("condition script is invalid: %v", err))
		return decision, nil
	}
	if !script.Evaluate(e.subject(item, actor)) {
		decision.deny(GateCondition, "transition condition is not met")
	}

	result := e.validator.Validate(validation.Input{
		Transition: tr,
		From:       decision.From,
		To:         decision.To,
		Item:       item,
		Actor:      actor,
	})
	for _, msg := range result.Errors {
		decision.deny(GateValidation, msg)
	}
	decision.Warnings = append(decision.Warnings, result.Warnings...)
	return decision, nil
}

func (e *Engine) subject(item *store.WorkItem, actor directory.Actor) condition.Subject {
	return condition.Subject{
		Priority:    item.Priority,
		Role:        actor.Role,
		ScopeID:     item.ScopeID,
		TimeInStage: item.TimeInStage(e.clock()),
	}
}
