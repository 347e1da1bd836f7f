package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition kinds used as metric labels.
const (
	kindManual    = "manual"
	kindAutomatic = "automatic"
	kindApproval  = "approval"
	kindRejection = "rejection"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageflow_transitions_total",
		Help: "Committed stage transitions by kind",
	}, []string{"kind"})
	deniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageflow_transitions_denied_total",
		Help: "Transition attempts refused before commit",
	}, []string{"reason"})
	conflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stageflow_concurrency_conflicts_total",
		Help: "Transitions rejected because the item changed since it was read",
	})
	stageDwellHours = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stageflow_stage_dwell_hours",
		Help:    "Hours an item spent in the stage it left",
		Buckets: []float64{0.25, 1, 4, 8, 24, 48, 72, 168, 336},
	}, []string{"stage"})
	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stageflow_sweep_duration_seconds",
		Help:    "Duration of periodic sweeps",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"})
	sweepItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageflow_sweep_items_total",
		Help: "Items handled by periodic sweeps by outcome",
	}, []string{"sweep", "outcome"})
)

const (
	sweepAuto        = "auto_transitions"
	sweepEscalations = "escalations"
)

func observeTransition(kind, stage string, dwell time.Duration) {
	transitionsTotal.WithLabelValues(kind).Inc()
	stageDwellHours.WithLabelValues(stage).Observe(dwell.Hours())
}

func observeSweep(sweep string, started time.Time, outcomes map[string]int) {
	sweepDuration.WithLabelValues(sweep).Observe(time.Since(started).Seconds())
	for outcome, n := range outcomes {
		if n > 0 {
			sweepItems.WithLabelValues(sweep, outcome).Add(float64(n))
		}
	}
}
