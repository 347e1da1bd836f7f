package workflow

import (
	"context"
	"errors"

	"stageflow/internal/flowerr"
	"stageflow/internal/registry"
	"stageflow/internal/store"
)

// GetAvailableTransitions lists the target stages actorID may move item to,
// considering only the role gate. Targets are ordered by stage order.
func (e *Engine) GetAvailableTransitions(ctx context.Context, item *store.WorkItem, actorID string) ([]*store.Stage, error) {
	snap, err := e.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := e.availableEdges(ctx, snap, item, actorID)
	if err != nil {
		return nil, err
	}
	targets := make([]*store.Stage, 0, len(edges))
	for _, edge := range edges {
		targets = append(targets, edge.To)
	}
	return targets, nil
}

func (e *Engine) availableEdges(ctx context.Context, snap *registry.Snapshot, item *store.WorkItem, actorID string) ([]registry.Edge, error) {
	if item == nil {
		return nil, nil
	}
	actor, err := e.directory.Actor(ctx, actorID)
	if err != nil {
		if errors.Is(err, flowerr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out []registry.Edge
	for _, edge := range snap.TransitionsFrom(item.CurrentStage, item.ScopeID) {
		if actor.Role.AtLeast(edge.Transition.RequiredRole) {
			out = append(out, edge)
		}
	}
	return out, nil
}
