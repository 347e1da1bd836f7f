package registry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"

	"stageflow/internal/directory"
	"stageflow/internal/flowerr"
	"stageflow/internal/store"
)

// Definitions is the TOML document accepted by Import.
//
//	[[stage]]
//	order = 1
//	name = "Draft"
//
//	[[transition]]
//	from = 1
//	to = 2
//	required_role = "reviewer"
//
// Transition endpoints are stage orders resolved against the transition's scope.
type Definitions struct {
	Stages      []StageDefinition      `toml:"stage"`
	Transitions []TransitionDefinition `toml:"transition"`
}

// StageDefinition is one [[stage]] table.
type StageDefinition struct {
	Scope            int64    `toml:"scope"`
	Order            int      `toml:"order"`
	Name             string   `toml:"name"`
	ApprovalRequired bool     `toml:"approval_required"`
	ApproverRole     string   `toml:"approver_role"`
	SLAHours         *float64 `toml:"sla_hours"`
	Terminal         bool     `toml:"terminal"`
}

// TransitionDefinition is one [[transition]] table.
type TransitionDefinition struct {
	Scope                int64    `toml:"scope"`
	From                 int      `toml:"from"`
	To                   int      `toml:"to"`
	RequiredRole         string   `toml:"required_role"`
	Condition            string   `toml:"condition"`
	ValidationRules      []string `toml:"validation_rules"`
	AutoDelayMinutes     *int     `toml:"auto_delay_minutes"`
	Notify               bool     `toml:"notify"`
	NotificationTemplate string   `toml:"notification_template"`
}

// ImportResult lists what Import created.
type ImportResult struct {
	Stages      []*store.Stage
	Transitions []*store.Transition
}

// ParseDefinitions decodes a definitions document, rejecting unknown keys.
func ParseDefinitions(r io.Reader) (*Definitions, error) {
	var defs Definitions
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&defs); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "registry", "parse definitions", strict.String(), nil)
		}
		return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "registry", "parse definitions", "invalid TOML", err)
	}
	return &defs, nil
}

// Import creates every stage and then every transition in defs. It stops at
// the first failure; definitions created before it remain.
func (r *Registry) Import(ctx context.Context, defs *Definitions) (ImportResult, error) {
	var result ImportResult
	if defs == nil {
		return result, nil
	}
	for _, def := range defs.Stages {
		role, err := directory.ParseRole(def.ApproverRole)
		if err != nil {
			return result, invalid("import stage", err.Error())
		}
		stage, err := r.AddStage(ctx, &store.Stage{
			ScopeID:          def.Scope,
			Order:            def.Order,
			Name:             def.Name,
			ApprovalRequired: def.ApprovalRequired,
			ApproverRole:     role,
			SLAHours:         def.SLAHours,
			Terminal:         def.Terminal,
		})
		if err != nil {
			return result, fmt.Errorf("stage %q: %w", def.Name, err)
		}
		result.Stages = append(result.Stages, stage)
	}

	if len(defs.Transitions) == 0 {
		return result, nil
	}
	snap, err := r.Load(ctx)
	if err != nil {
		return result, err
	}
	for _, def := range defs.Transitions {
		from := snap.StageByOrder(def.From, def.Scope)
		to := snap.StageByOrder(def.To, def.Scope)
		if from == nil || to == nil {
			return result, invalid("import transition",
				fmt.Sprintf("transition %d->%d in scope %d references a missing stage", def.From, def.To, def.Scope))
		}
		tr, err := r.AddTransition(ctx, &store.Transition{
			ScopeID:                    def.Scope,
			FromStageID:                from.ID,
			ToStageID:                  to.ID,
			RequiredRole:               directory.Role(def.RequiredRole),
			ConditionScript:            def.Condition,
			ValidationRules:            def.ValidationRules,
			AutoTransitionDelayMinutes: def.AutoDelayMinutes,
			NotificationRequired:       def.Notify,
			NotificationTemplate:       def.NotificationTemplate,
		})
		if err != nil {
			return result, fmt.Errorf("transition %d->%d: %w", def.From, def.To, err)
		}
		result.Transitions = append(result.Transitions, tr)
	}
	return result, nil
}
