package sla

import (
	"context"
	"log/slog"
	"time"

	"stageflow/internal/logging"
	"stageflow/internal/notifications"
	"stageflow/internal/registry"
	"stageflow/internal/store"
)

// ItemSource lists work items.
type ItemSource interface {
	ListWorkItems(ctx context.Context, filter store.ItemFilter) ([]*store.WorkItem, error)
}

// EscalationRecorder persists escalations, reporting false for duplicates.
type EscalationRecorder interface {
	RecordEscalation(ctx context.Context, esc store.Escalation) (bool, error)
}

// Definitions loads the stage and transition snapshot.
type Definitions interface {
	Load(ctx context.Context) (*registry.Snapshot, error)
}

// Violation is an active item past its stage deadline.
type Violation struct {
	Item   *store.WorkItem
	Stage  *store.Stage
	Status Status
}

// EscalationReport summarizes one escalation sweep.
type EscalationReport struct {
	Scanned    int
	Violations int
	Escalated  int
	Duplicates int
	Failed     int
}

// Monitor scans for SLA breaches and escalates them.
type Monitor struct {
	tracker     Tracker
	items       ItemSource
	defs        Definitions
	escalations EscalationRecorder
	notifier    notifications.Service
	logger      *slog.Logger
}

// NewMonitor wires the monitor's collaborators. A nil notifier discards messages.
func NewMonitor(tracker Tracker, items ItemSource, defs Definitions, escalations EscalationRecorder, notifier notifications.Service, logger *slog.Logger) *Monitor {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Monitor{
		tracker:     tracker,
		items:       items,
		defs:        defs,
		escalations: escalations,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "sla"),
	}
}

// Tracker returns the thresholds the monitor applies.
func (m *Monitor) Tracker() Tracker {
	return m.tracker
}

// ScanViolations returns active items in scope (0 for all) that are past
// their stage deadline at asOf.
func (m *Monitor) ScanViolations(ctx context.Context, scope int64, asOf time.Time) ([]Violation, error) {
	violations, _, err := m.scan(ctx, scope, asOf)
	return violations, err
}

func (m *Monitor) scan(ctx context.Context, scope int64, asOf time.Time) ([]Violation, int, error) {
	snap, err := m.defs.Load(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, err := m.items.ListWorkItems(ctx, store.ItemFilter{ScopeID: scope, Statuses: []store.Status{store.StatusActive}})
	if err != nil {
		return nil, 0, err
	}
	var out []Violation
	for _, item := range items {
		stage := snap.StageByOrder(item.CurrentStage, item.ScopeID)
		if stage == nil {
			continue
		}
		status := m.tracker.Status(stage, item, asOf)
		if status.State == StateViolated {
			out = append(out, Violation{Item: item, Stage: stage, Status: status})
		}
	}
	return out, len(items), nil
}

// ProcessEscalations records and notifies every new breach in scope (0 for
// all). Breaches already escalated for the same stage visit are skipped;
// per-item failures are logged and skipped.
func (m *Monitor) ProcessEscalations(ctx context.Context, scope int64, now time.Time) (EscalationReport, error) {
	violations, scanned, err := m.scan(ctx, scope, now)
	if err != nil {
		return EscalationReport{}, err
	}
	report := EscalationReport{Scanned: scanned, Violations: len(violations)}
	for _, v := range violations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		itemLogger := m.logger.With(
			logging.Int64(logging.FieldItemID, v.Item.ID),
			logging.String(logging.FieldStage, v.Stage.Name),
			logging.Int64(logging.FieldScopeID, v.Item.ScopeID),
		)
		inserted, err := m.escalations.RecordEscalation(ctx, store.Escalation{
			WorkItemID:     v.Item.ID,
			StageOrder:     v.Item.CurrentStage,
			StageEnteredAt: v.Item.LastStageEntryAt,
			Deadline:       v.Status.Deadline,
			CreatedAt:      now,
		})
		if err != nil {
			report.Failed++
			logging.WarnWithContext(itemLogger, "escalation not recorded", "sla_escalation_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database health; the item is retried next sweep"),
				logging.String(logging.FieldImpact, "breach not escalated yet"),
			)
			continue
		}
		if !inserted {
			report.Duplicates++
			continue
		}
		report.Escalated++
		itemLogger.Info("sla violated",
			logging.String(logging.FieldEventType, "sla_escalated"),
			logging.Duration("overdue", v.Status.Overdue()),
		)
		if err := m.notifier.NotifyEscalation(ctx, notifications.Escalation{
			ItemID:     v.Item.ID,
			Title:      v.Item.Title,
			ScopeID:    v.Item.ScopeID,
			Stage:      v.Stage.Name,
			Deadline:   v.Status.Deadline,
			Overdue:    v.Status.Overdue(),
			Recipients: []string{v.Item.OwnerID},
		}); err != nil {
			logging.WarnWithContext(itemLogger, "escalation notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify the ntfy topic and network access"),
				logging.String(logging.FieldImpact, "escalation recorded without a notification"),
			)
		}
	}
	return report, nil
}
