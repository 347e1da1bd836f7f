// Package sla computes per-stage deadlines for work items and escalates
// breaches exactly once per stage visit.
package sla

import (
	"time"

	"stageflow/internal/config"
	"stageflow/internal/store"
)

// State is the coarse SLA condition of a work item.
type State string

const (
	StateOnTrack  State = "On Track"
	StateAtRisk   State = "At Risk"
	StateViolated State = "Violated"
	StateNoSLA    State = "No SLA"
)

// DefaultAtRiskRatio is the fraction of the SLA window below which an item is at risk.
const DefaultAtRiskRatio = 0.25

// Status is the SLA position of a work item at an instant.
type Status struct {
	State     State
	SLAHours  float64
	Deadline  time.Time
	Remaining time.Duration
	Elapsed   time.Duration
}

// HasSLA reports whether the stage carried an SLA.
func (s Status) HasSLA() bool {
	return s.State != StateNoSLA
}

// Overdue returns how far past the deadline the item is.
func (s Status) Overdue() time.Duration {
	if s.State != StateViolated {
		return 0
	}
	return -s.Remaining
}

// Tracker holds the at-risk thresholds.
type Tracker struct {
	DefaultRatio float64
	ScopeRatios  map[int64]float64
}

// NewTracker reads the thresholds from configuration.
func NewTracker(cfg *config.Config) Tracker {
	if cfg == nil {
		return Tracker{DefaultRatio: DefaultAtRiskRatio}
	}
	return Tracker{DefaultRatio: cfg.SLA.AtRiskRatio, ScopeRatios: cfg.AtRiskRatios()}
}

// Ratio returns the at-risk ratio that applies to scope.
func (t Tracker) Ratio(scope int64) float64 {
	if ratio, ok := t.ScopeRatios[scope]; ok && ratio > 0 && ratio < 1 {
		return ratio
	}
	if t.DefaultRatio > 0 && t.DefaultRatio < 1 {
		return t.DefaultRatio
	}
	return DefaultAtRiskRatio
}

// Status computes the SLA position of item in stage at now. It has no side effects.
func (t Tracker) Status(stage *store.Stage, item *store.WorkItem, now time.Time) Status {
	if item == nil {
		return Status{State: StateNoSLA}
	}
	elapsed := item.TimeInStage(now)
	window, ok := stage.SLA()
	if !ok {
		return Status{State: StateNoSLA, Elapsed: elapsed}
	}
	deadline := item.LastStageEntryAt.Add(window)
	remaining := deadline.Sub(now)
	status := Status{
		SLAHours:  *stage.SLAHours,
		Deadline:  deadline,
		Remaining: remaining,
		Elapsed:   elapsed,
	}
	threshold := time.Duration(t.Ratio(item.ScopeID) * float64(window))
	switch {
	case now.After(deadline):
		status.State = StateViolated
	case remaining <= threshold:
		status.State = StateAtRisk
	default:
		status.State = StateOnTrack
	}
	return status
}
