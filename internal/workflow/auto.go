package workflow

import (
	"context"
	"errors"
	"time"

	"stageflow/internal/condition"
	"stageflow/internal/directory"
	"stageflow/internal/flowerr"
	"stageflow/internal/logging"
	"stageflow/internal/registry"
	"stageflow/internal/store"
)

// SweepReport summarizes one auto-transition sweep.
type SweepReport struct {
	Scanned  int           `json:"scanned"`
	Advanced int           `json:"advanced"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// ProcessAutoTransitions advances every active item whose current stage has
// an auto transition that is due and whose condition holds. Each item moves
// at most one step per sweep, under the system identity. Failures are logged
// and the item is skipped; cancellation is honoured between items.
func (e *Engine) ProcessAutoTransitions(ctx context.Context) (SweepReport, error) {
	started := time.Now()
	ctx = logging.WithSweep(ctx, sweepAuto)
	logger := logging.WithContext(ctx, e.logger)

	var report SweepReport
	defer func() {
		report.Duration = time.Since(started)
		observeSweep(sweepAuto, started, map[string]int{
			"advanced": report.Advanced,
			"failed":   report.Failed,
		})
	}()

	snap, err := e.registry.Load(ctx)
	if err != nil {
		return report, err
	}
	if len(snap.AutoTransitions()) == 0 {
		return report, nil
	}
	items, err := e.store.ListWorkItems(ctx, store.ItemFilter{Statuses: []store.Status{store.StatusActive}})
	if err != nil {
		return report, err
	}

	system, err := e.directory.Actor(ctx, e.settings.SystemActor)
	if err != nil {
		return report, err
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		edge, ok := e.dueAutoTransition(snap, item)
		if !ok {
			continue
		}
		from := snap.StageByOrder(item.CurrentStage, item.ScopeID)
		decision := Decision{Allowed: true, Edge: &edge, From: from, To: edge.To, Actor: system}
		_, err := e.commit(ctx, snap, item, decision, commitOptions{
			actorID:   system.ID,
			kind:      kindAutomatic,
			automatic: true,
		})
		if err != nil {
			report.Failed++
			hint := "check database health; the item is retried next sweep"
			if errors.Is(err, flowerr.ErrConcurrencyConflict) {
				hint = "item changed during the sweep; it is re-evaluated next sweep"
			}
			logging.WarnWithContext(e.itemLogger(ctx, item), "auto transition skipped", "auto_transition_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hint),
				logging.String(logging.FieldImpact, "item stays in its current stage"),
			)
			continue
		}
		report.Advanced++
	}
	if report.Advanced > 0 || report.Failed > 0 {
		logger.Info("auto transition sweep finished",
			logging.Int("scanned", report.Scanned),
			logging.Int("advanced", report.Advanced),
			logging.Int("failed", report.Failed),
			logging.String(logging.FieldEventType, "auto_sweep_completed"),
		)
	}
	return report, nil
}

// dueAutoTransition returns the lowest-target auto edge from the item's
// stage whose delay has elapsed and whose condition holds.
func (e *Engine) dueAutoTransition(snap *registry.Snapshot, item *store.WorkItem) (registry.Edge, bool) {
	now := e.clock()
	elapsed := item.TimeInStage(now)
	for _, edge := range snap.TransitionsFrom(item.CurrentStage, item.ScopeID) {
		delay, ok := edge.Transition.AutoDelay()
		if !ok || elapsed < delay {
			continue
		}
		script, err := condition.Parse(edge.Transition.ConditionScript)
		if err != nil {
			continue
		}
		subject := condition.Subject{
			Priority:    item.Priority,
			Role:        directory.RoleSystem,
			ScopeID:     item.ScopeID,
			TimeInStage: elapsed,
		}
		if script.Evaluate(subject) {
			return edge, true
		}
	}
	return registry.Edge{}, false
}
