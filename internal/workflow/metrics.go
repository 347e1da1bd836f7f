package workflow

import (
	"context"
	"sort"
	"time"

	"stageflow/internal/audit"
	"stageflow/internal/sla"
	"stageflow/internal/store"
)

// StageMetrics aggregates one stage of a scope.
type StageMetrics struct {
	Order int    `json:"order"`
	Name  string `json:"name"`
	// Items counts active items currently in the stage.
	Items int `json:"items"`
	// AverageHours is the mean length of completed visits.
	AverageHours float64 `json:"averageHours"`
	Visits       int     `json:"visits"`
}

// Metrics summarizes workflow throughput for a scope.
type Metrics struct {
	ScopeID           int64          `json:"scopeId"`
	TotalItems        int            `json:"totalItems"`
	ActiveItems       int            `json:"activeItems"`
	CompletedItems    int            `json:"completedItems"`
	Stages            []StageMetrics `json:"stages"`
	Transitions       int            `json:"transitions"`
	AutoTransitions   int            `json:"autoTransitions"`
	Rejections        int            `json:"rejections"`
	SLAViolations     int            `json:"slaViolations"`
	AverageCycleHours float64        `json:"averageCycleHours"`
}

// Bottleneck is a stage where items wait longer than the stuck threshold.
type Bottleneck struct {
	Order            int     `json:"order"`
	Name             string  `json:"name"`
	Items            int     `json:"items"`
	AverageWaitHours float64 `json:"averageWaitHours"`
	Severity         string  `json:"severity"`
}

// Bottleneck severities.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// GetWorkflowMetrics aggregates items and their audit trails for scope (0 for all).
func (e *Engine) GetWorkflowMetrics(ctx context.Context, scope int64) (Metrics, error) {
	metrics := Metrics{ScopeID: scope}
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return metrics, err
	}
	items, err := e.store.ListWorkItems(ctx, store.ItemFilter{ScopeID: scope})
	if err != nil {
		return metrics, err
	}
	entries, err := e.store.ListAuditSince(ctx, scope, time.Time{})
	if err != nil {
		return metrics, err
	}

	now := e.clock()
	tracker := e.sla.Tracker()
	byOrder := make(map[int]*StageMetrics)
	stageFor := func(order int, name string) *StageMetrics {
		m, ok := byOrder[order]
		if !ok {
			m = &StageMetrics{Order: order, Name: name}
			byOrder[order] = m
		}
		if m.Name == "" {
			m.Name = name
		}
		return m
	}
	for _, stage := range snap.Stages(scope) {
		stageFor(stage.Order, stage.Name)
	}

	var cycleTotal time.Duration
	for _, item := range items {
		metrics.TotalItems++
		if item.Status == store.StatusCompleted {
			metrics.CompletedItems++
			cycleTotal += item.LastStageEntryAt.Sub(item.CreatedAt)
			continue
		}
		metrics.ActiveItems++
		stage := snap.StageByOrder(item.CurrentStage, item.ScopeID)
		name := ""
		if stage != nil {
			name = stage.Name
		}
		stageFor(item.CurrentStage, name).Items++
		if tracker.Status(stage, item, now).State == sla.StateViolated {
			metrics.SLAViolations++
		}
	}
	if metrics.CompletedItems > 0 {
		metrics.AverageCycleHours = cycleTotal.Hours() / float64(metrics.CompletedItems)
	}

	grouped := make(map[int64][]*store.AuditEntry)
	var order []int64
	for _, entry := range entries {
		switch entry.Action {
		case store.ActionStageChanged:
			metrics.Transitions++
			if entry.Metadata.Automatic {
				metrics.AutoTransitions++
			}
		case store.ActionApprovalRejected:
			metrics.Rejections++
		}
		if _, ok := grouped[entry.WorkItemID]; !ok {
			order = append(order, entry.WorkItemID)
		}
		grouped[entry.WorkItemID] = append(grouped[entry.WorkItemID], entry)
	}
	totals := make(map[int]time.Duration)
	for _, itemID := range order {
		for _, visit := range audit.BuildHistory(grouped[itemID]) {
			if visit.Current() {
				continue
			}
			m := stageFor(visit.Stage, visit.StageName)
			m.Visits++
			totals[visit.Stage] += visit.Duration
		}
	}

	for stageOrder, m := range byOrder {
		if m.Visits > 0 {
			m.AverageHours = totals[stageOrder].Hours() / float64(m.Visits)
		}
		metrics.Stages = append(metrics.Stages, *m)
	}
	sort.Slice(metrics.Stages, func(i, j int) bool { return metrics.Stages[i].Order < metrics.Stages[j].Order })
	return metrics, nil
}

// IdentifyBottlenecks returns stages whose active items have waited longer
// than the stuck threshold on average, worst first.
func (e *Engine) IdentifyBottlenecks(ctx context.Context, scope int64) ([]Bottleneck, error) {
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	items, err := e.store.ListWorkItems(ctx, store.ItemFilter{ScopeID: scope, Statuses: []store.Status{store.StatusActive}})
	if err != nil {
		return nil, err
	}
	threshold := e.settings.StuckHours
	if threshold <= 0 {
		threshold = 72
	}
	minItems := e.settings.MinStuckItems
	if minItems <= 0 {
		minItems = 1
	}

	type bucket struct {
		name  string
		count int
		wait  time.Duration
	}
	now := e.clock()
	buckets := make(map[int]*bucket)
	for _, item := range items {
		b, ok := buckets[item.CurrentStage]
		if !ok {
			b = &bucket{}
			if stage := snap.StageByOrder(item.CurrentStage, item.ScopeID); stage != nil {
				b.name = stage.Name
			}
			buckets[item.CurrentStage] = b
		}
		b.count++
		b.wait += item.TimeInStage(now)
	}

	var out []Bottleneck
	for stageOrder, b := range buckets {
		avg := b.wait.Hours() / float64(b.count)
		if b.count < minItems || avg <= threshold {
			continue
		}
		severity := SeverityMedium
		if avg > 2*threshold {
			severity = SeverityHigh
		}
		out = append(out, Bottleneck{
			Order:            stageOrder,
			Name:             b.name,
			Items:            b.count,
			AverageWaitHours: avg,
			Severity:         severity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageWaitHours != out[j].AverageWaitHours {
			return out[i].AverageWaitHours > out[j].AverageWaitHours
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}
