package registry

import (
	"context"
	"fmt"
	"strings"

	"stageflow/internal/condition"
	"stageflow/internal/directory"
	"stageflow/internal/flowerr"
	"stageflow/internal/store"
)

// Backend is the persistence surface the registry needs.
type Backend interface {
	ListStages(ctx context.Context, includeInactive bool) ([]*store.Stage, error)
	GetStage(ctx context.Context, id int64) (*store.Stage, error)
	CreateStage(ctx context.Context, stage *store.Stage) (*store.Stage, error)
	UpdateStage(ctx context.Context, stage *store.Stage) error
	DeactivateStage(ctx context.Context, id int64) error
	ListTransitions(ctx context.Context, includeInactive bool) ([]*store.Transition, error)
	GetTransition(ctx context.Context, id int64) (*store.Transition, error)
	CreateTransition(ctx context.Context, tr *store.Transition) (*store.Transition, error)
	DeactivateTransition(ctx context.Context, id int64) error
}

// RuleCatalog reports whether a business rule name is registered.
type RuleCatalog interface {
	Has(name string) bool
}

// Registry manages stage and transition definitions.
type Registry struct {
	backend Backend
	rules   RuleCatalog
}

// Option configures a Registry.
type Option func(*Registry)

// WithRuleCatalog enables unknown-rule warnings in ValidateConfiguration.
func WithRuleCatalog(rules RuleCatalog) Option {
	return func(r *Registry) {
		r.rules = rules
	}
}

// New constructs a registry over backend.
func New(backend Backend, opts ...Option) *Registry {
	r := &Registry{backend: backend}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads every definition, including inactive rows, into a snapshot.
func (r *Registry) Load(ctx context.Context) (*Snapshot, error) {
	stages, err := r.backend.ListStages(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	transitions, err := r.backend.ListTransitions(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load transitions: %w", err)
	}
	return NewSnapshot(stages, transitions), nil
}

// Stage fetches an active stage by id.
func (r *Registry) Stage(ctx context.Context, id int64) (*store.Stage, error) {
	stage, err := r.backend.GetStage(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage == nil || !stage.IsActive {
		return nil, nil
	}
	return stage, nil
}

// Stages returns the effective stages for scope.
func (r *Registry) Stages(ctx context.Context, scope int64) ([]*store.Stage, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Stages(scope), nil
}

// StageByOrder returns the effective stage at order for scope, or nil.
func (r *Registry) StageByOrder(ctx context.Context, order int, scope int64) (*store.Stage, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.StageByOrder(order, scope), nil
}

// Transition returns the effective edge between two stages, or nil.
func (r *Registry) Transition(ctx context.Context, fromStageID, toStageID int64, scope int64) (*Edge, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	from, to := snap.Stage(fromStageID), snap.Stage(toStageID)
	if from == nil || to == nil {
		return nil, nil
	}
	return snap.Transition(from.Order, to.Order, scope), nil
}

// TransitionsFrom returns effective edges leaving a stage.
func (r *Registry) TransitionsFrom(ctx context.Context, stageID int64, scope int64) ([]Edge, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	stage := snap.Stage(stageID)
	if stage == nil {
		return nil, nil
	}
	return snap.TransitionsFrom(stage.Order, scope), nil
}

// TransitionsTo returns effective edges entering a stage.
func (r *Registry) TransitionsTo(ctx context.Context, stageID int64, scope int64) ([]Edge, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	stage := snap.Stage(stageID)
	if stage == nil {
		return nil, nil
	}
	return snap.TransitionsTo(stage.Order, scope), nil
}

// AutoTransitions returns every active transition with an auto delay.
func (r *Registry) AutoTransitions(ctx context.Context) ([]*store.Transition, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.AutoTransitions(), nil
}

// ListTransitions returns stored transitions, optionally including inactive ones.
func (r *Registry) ListTransitions(ctx context.Context, includeInactive bool) ([]*store.Transition, error) {
	return r.backend.ListTransitions(ctx, includeInactive)
}

// ListStages returns stored stages across all scopes.
func (r *Registry) ListStages(ctx context.Context, includeInactive bool) ([]*store.Stage, error) {
	return r.backend.ListStages(ctx, includeInactive)
}

// AddStage validates and stores a new stage.
func (r *Registry) AddStage(ctx context.Context, stage *store.Stage) (*store.Stage, error) {
	if err := checkStage(stage); err != nil {
		return nil, err
	}
	return r.backend.CreateStage(ctx, stage)
}

// UpdateStage validates and rewrites an existing stage. Order and scope are fixed.
func (r *Registry) UpdateStage(ctx context.Context, stage *store.Stage) error {
	if err := checkStage(stage); err != nil {
		return err
	}
	existing, err := r.backend.GetStage(ctx, stage.ID)
	if err != nil {
		return err
	}
	if existing == nil || !existing.IsActive {
		return flowerr.Wrap(flowerr.ErrNotFound, "registry", "update stage", fmt.Sprintf("stage %d not found", stage.ID), nil)
	}
	if existing.Order != stage.Order || existing.ScopeID != stage.ScopeID {
		return invalid("update stage", "stage order and scope cannot change; remove and re-add the stage")
	}
	return r.backend.UpdateStage(ctx, stage)
}

// RemoveStage soft-deletes a stage together with the transitions touching it.
func (r *Registry) RemoveStage(ctx context.Context, id int64) error {
	return r.backend.DeactivateStage(ctx, id)
}

// AddTransition validates and stores a new transition.
func (r *Registry) AddTransition(ctx context.Context, tr *store.Transition) (*store.Transition, error) {
	if tr == nil {
		return nil, invalid("add transition", "transition is required")
	}
	if tr.FromStageID == tr.ToStageID {
		return nil, invalid("add transition", "a transition cannot start and end at the same stage")
	}
	for _, id := range []int64{tr.FromStageID, tr.ToStageID} {
		stage, err := r.backend.GetStage(ctx, id)
		if err != nil {
			return nil, err
		}
		if stage == nil || !stage.IsActive {
			return nil, invalid("add transition", fmt.Sprintf("stage %d is unknown or inactive", id))
		}
		if !visible(stage.ScopeID, tr.ScopeID) {
			return nil, invalid("add transition", fmt.Sprintf("stage %d belongs to scope %d", id, stage.ScopeID))
		}
	}
	role, err := directory.ParseRole(string(tr.RequiredRole))
	if err != nil {
		return nil, invalid("add transition", err.Error())
	}
	tr.RequiredRole = role
	if _, err := condition.Parse(tr.ConditionScript); err != nil {
		return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "registry", "add transition", "condition script does not parse", err)
	}
	if tr.AutoTransitionDelayMinutes != nil && *tr.AutoTransitionDelayMinutes < 0 {
		return nil, invalid("add transition", "auto transition delay must not be negative")
	}
	return r.backend.CreateTransition(ctx, tr)
}

// RemoveTransition soft-deletes a transition.
func (r *Registry) RemoveTransition(ctx context.Context, id int64) error {
	return r.backend.DeactivateTransition(ctx, id)
}

func checkStage(stage *store.Stage) error {
	if stage == nil {
		return invalid("stage", "stage is required")
	}
	if strings.TrimSpace(stage.Name) == "" {
		return invalid("stage", "stage name is required")
	}
	if stage.Order <= 0 {
		return invalid("stage", "stage order must be positive")
	}
	if stage.ScopeID < 0 {
		return invalid("stage", "scope id must not be negative")
	}
	if stage.SLAHours != nil && *stage.SLAHours <= 0 {
		return invalid("stage", "sla hours must be positive when set")
	}
	role, err := directory.ParseRole(string(stage.ApproverRole))
	if err != nil {
		return invalid("stage", err.Error())
	}
	stage.ApproverRole = role
	return nil
}

func invalid(op, message string) error {
	return flowerr.Wrap(flowerr.ErrConfigurationInvalid, "registry", op, message, nil)
}
