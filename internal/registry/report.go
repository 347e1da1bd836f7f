package registry

import (
	"context"
	"fmt"

	"stageflow/internal/condition"
)

// Warning codes reported by ValidateConfiguration.
const (
	WarnDanglingTransition = "dangling_transition"
	WarnUnreachableStage   = "unreachable_stage"
	WarnDeadEndStage       = "dead_end_stage"
	WarnOrderGap           = "order_gap"
	WarnBadCondition       = "invalid_condition"
	WarnUnknownCondition   = "unknown_condition_rule"
	WarnUnknownRule        = "unknown_validation_rule"
	WarnNoStages           = "no_stages"
)

// Warning describes one configuration problem.
type Warning struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	StageID      int64  `json:"stageId,omitempty"`
	TransitionID int64  `json:"transitionId,omitempty"`
}

// Report is the outcome of a configuration check. It never blocks operation.
type Report struct {
	ScopeID  int64     `json:"scopeId"`
	Warnings []Warning `json:"warnings"`
}

// Valid reports whether the configuration produced no warnings.
func (r Report) Valid() bool {
	return len(r.Warnings) == 0
}

func (r *Report) add(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// ValidateConfiguration inspects the effective definitions for scope.
func (r *Registry) ValidateConfiguration(ctx context.Context, scope int64) (Report, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return Report{}, err
	}
	return snap.Validate(scope, r.rules), nil
}

// Validate produces the configuration report for scope. rules may be nil.
func (s *Snapshot) Validate(scope int64, rules RuleCatalog) Report {
	report := Report{ScopeID: scope}

	stages := s.Stages(scope)
	if len(stages) == 0 {
		report.add(Warning{Code: WarnNoStages, Message: "no active stages are defined"})
	}

	for _, tr := range s.transitions {
		if !tr.IsActive || !visible(tr.ScopeID, scope) {
			continue
		}
		for _, id := range []int64{tr.FromStageID, tr.ToStageID} {
			stage := s.byID[id]
			switch {
			case stage == nil:
				report.add(Warning{Code: WarnDanglingTransition, TransitionID: tr.ID,
					Message: fmt.Sprintf("transition %d references unknown stage %d", tr.ID, id)})
			case !stage.IsActive:
				report.add(Warning{Code: WarnDanglingTransition, TransitionID: tr.ID, StageID: id,
					Message: fmt.Sprintf("transition %d references inactive stage %q", tr.ID, stage.Name)})
			}
		}
		script, err := condition.Parse(tr.ConditionScript)
		if err != nil {
			report.add(Warning{Code: WarnBadCondition, TransitionID: tr.ID,
				Message: fmt.Sprintf("transition %d condition does not parse: %v", tr.ID, err)})
		}
		for _, kind := range script.Unknown() {
			report.add(Warning{Code: WarnUnknownCondition, TransitionID: tr.ID,
				Message: fmt.Sprintf("transition %d uses unknown condition type %q; it always passes", tr.ID, kind)})
		}
		if rules == nil {
			continue
		}
		for _, name := range tr.ValidationRules {
			if !rules.Has(name) {
				report.add(Warning{Code: WarnUnknownRule, TransitionID: tr.ID,
					Message: fmt.Sprintf("transition %d names unknown validation rule %q", tr.ID, name)})
			}
		}
	}

	if len(stages) == 0 {
		return report
	}
	incoming := make(map[int]bool)
	outgoing := make(map[int]bool)
	for _, edge := range s.Edges(scope) {
		outgoing[edge.From.Order] = true
		incoming[edge.To.Order] = true
	}
	first, last := stages[0].Order, stages[len(stages)-1].Order
	for i, stage := range stages {
		if stage.Order != first && !incoming[stage.Order] {
			report.add(Warning{Code: WarnUnreachableStage, StageID: stage.ID,
				Message: fmt.Sprintf("stage %q (order %d) has no incoming transition", stage.Name, stage.Order)})
		}
		if stage.Order != last && !stage.Terminal && !outgoing[stage.Order] {
			report.add(Warning{Code: WarnDeadEndStage, StageID: stage.ID,
				Message: fmt.Sprintf("stage %q (order %d) has no outgoing transition", stage.Name, stage.Order)})
		}
		if i > 0 && stage.Order-stages[i-1].Order > 1 {
			report.add(Warning{Code: WarnOrderGap, StageID: stage.ID,
				Message: fmt.Sprintf("stage orders jump from %d to %d", stages[i-1].Order, stage.Order)})
		}
	}
	return report
}
