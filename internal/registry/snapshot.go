package registry

import (
	"sort"

	"golang.org/x/text/cases"

	"stageflow/internal/store"
)

// Edge is an effective transition for a scope with its endpoints resolved
// to the scope's effective stages.
type Edge struct {
	Transition *store.Transition
	From       *store.Stage
	To         *store.Stage
}

type orderPair struct {
	from int
	to   int
}

// Snapshot is an immutable view of all definitions loaded at one instant.
type Snapshot struct {
	stages      []*store.Stage
	transitions []*store.Transition
	byID        map[int64]*store.Stage
}

// NewSnapshot indexes the given definitions. Inactive rows are kept so that
// references to them can be reported.
func NewSnapshot(stages []*store.Stage, transitions []*store.Transition) *Snapshot {
	snap := &Snapshot{
		stages:      stages,
		transitions: transitions,
		byID:        make(map[int64]*store.Stage, len(stages)),
	}
	for _, stage := range stages {
		snap.byID[stage.ID] = stage
	}
	return snap
}

// Stage returns a stage by id, including inactive stages.
func (s *Snapshot) Stage(id int64) *store.Stage {
	return s.byID[id]
}

// Stages returns the effective active stages for scope ordered by Order.
func (s *Snapshot) Stages(scope int64) []*store.Stage {
	byOrder := make(map[int]*store.Stage)
	for _, stage := range s.stages {
		if !stage.IsActive || !visible(stage.ScopeID, scope) {
			continue
		}
		existing, ok := byOrder[stage.Order]
		if !ok || (existing.IsGlobal() && !stage.IsGlobal()) {
			byOrder[stage.Order] = stage
		}
	}
	out := make([]*store.Stage, 0, len(byOrder))
	for _, stage := range byOrder {
		out = append(out, stage)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// StageByOrder returns the effective stage at order, or nil.
func (s *Snapshot) StageByOrder(order int, scope int64) *store.Stage {
	var found *store.Stage
	for _, stage := range s.stages {
		if !stage.IsActive || stage.Order != order || !visible(stage.ScopeID, scope) {
			continue
		}
		if found == nil || (found.IsGlobal() && !stage.IsGlobal()) {
			found = stage
		}
	}
	return found
}

// StageByName returns the effective stage whose name matches case-insensitively.
func (s *Snapshot) StageByName(name string, scope int64) *store.Stage {
	fold := cases.Fold()
	want := fold.String(name)
	for _, stage := range s.Stages(scope) {
		if fold.String(stage.Name) == want {
			return stage
		}
	}
	return nil
}

// InitialStage returns the lowest-order effective stage.
func (s *Snapshot) InitialStage(scope int64) *store.Stage {
	stages := s.Stages(scope)
	if len(stages) == 0 {
		return nil
	}
	return stages[0]
}

// IsTerminal reports whether stage ends the workflow for scope: it is
// flagged terminal or it is the highest effective order.
func (s *Snapshot) IsTerminal(stage *store.Stage, scope int64) bool {
	if stage == nil {
		return false
	}
	if stage.Terminal {
		return true
	}
	stages := s.Stages(scope)
	return len(stages) > 0 && stages[len(stages)-1].Order == stage.Order
}

// Edges returns every effective edge for scope ordered by source then
// target order.
func (s *Snapshot) Edges(scope int64) []Edge {
	chosen := make(map[orderPair]*store.Transition)
	for _, tr := range s.transitions {
		if !tr.IsActive || !visible(tr.ScopeID, scope) {
			continue
		}
		from, to := s.byID[tr.FromStageID], s.byID[tr.ToStageID]
		if from == nil || to == nil || !from.IsActive || !to.IsActive {
			continue
		}
		key := orderPair{from: from.Order, to: to.Order}
		existing, ok := chosen[key]
		if !ok || (existing.ScopeID == store.GlobalScope && tr.ScopeID != store.GlobalScope) {
			chosen[key] = tr
		}
	}
	edges := make([]Edge, 0, len(chosen))
	for key, tr := range chosen {
		from := s.StageByOrder(key.from, scope)
		to := s.StageByOrder(key.to, scope)
		if from == nil || to == nil {
			continue
		}
		edges = append(edges, Edge{Transition: tr, From: from, To: to})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From.Order != edges[j].From.Order {
			return edges[i].From.Order < edges[j].From.Order
		}
		return edges[i].To.Order < edges[j].To.Order
	})
	return edges
}

// Transition returns the effective edge between two stage orders, or nil.
func (s *Snapshot) Transition(fromOrder, toOrder int, scope int64) *Edge {
	for _, edge := range s.Edges(scope) {
		if edge.From.Order == fromOrder && edge.To.Order == toOrder {
			e := edge
			return &e
		}
	}
	return nil
}

// TransitionsFrom returns effective edges leaving fromOrder ordered by target order.
func (s *Snapshot) TransitionsFrom(fromOrder int, scope int64) []Edge {
	var out []Edge
	for _, edge := range s.Edges(scope) {
		if edge.From.Order == fromOrder {
			out = append(out, edge)
		}
	}
	return out
}

// TransitionsTo returns effective edges entering toOrder ordered by source order.
func (s *Snapshot) TransitionsTo(toOrder int, scope int64) []Edge {
	var out []Edge
	for _, edge := range s.Edges(scope) {
		if edge.To.Order == toOrder {
			out = append(out, edge)
		}
	}
	return out
}

// AutoTransitions returns every active transition with an auto delay,
// regardless of scope.
func (s *Snapshot) AutoTransitions() []*store.Transition {
	var out []*store.Transition
	for _, tr := range s.transitions {
		if _, ok := tr.AutoDelay(); ok && tr.IsActive {
			out = append(out, tr)
		}
	}
	return out
}

// Scopes returns the distinct non-global scopes that define stages or transitions.
func (s *Snapshot) Scopes() []int64 {
	seen := make(map[int64]struct{})
	for _, stage := range s.stages {
		if stage.IsActive && !stage.IsGlobal() {
			seen[stage.ScopeID] = struct{}{}
		}
	}
	for _, tr := range s.transitions {
		if tr.IsActive && tr.ScopeID != store.GlobalScope {
			seen[tr.ScopeID] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for scope := range seen {
		out = append(out, scope)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func visible(defScope, scope int64) bool {
	return defScope == store.GlobalScope || defScope == scope
}
