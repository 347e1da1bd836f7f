package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"stageflow/internal/flowerr"
)

// Actor is a user or automation identity that performs transitions.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}

// Directory resolves actors by id.
type Directory interface {
	Actor(ctx context.Context, id string) (Actor, error)
}

// System returns the automation identity used for actor-less transitions.
func System(id string) Actor {
	if strings.TrimSpace(id) == "" {
		id = "system"
	}
	return Actor{ID: id, Name: "System", Role: RoleSystem}
}

// Static is an in-memory Directory.
type Static struct {
	mu     sync.RWMutex
	actors map[string]Actor
}

// NewStatic builds a directory seeded with the given actors.
func NewStatic(actors ...Actor) *Static {
	s := &Static{actors: make(map[string]Actor, len(actors))}
	for _, actor := range actors {
		s.actors[actor.ID] = actor
	}
	return s
}

// Put adds or replaces an actor.
func (s *Static) Put(actor Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[actor.ID] = actor
}

// Actor implements Directory.
func (s *Static) Actor(_ context.Context, id string) (Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actor, ok := s.actors[id]
	if !ok {
		return Actor{}, flowerr.Wrap(flowerr.ErrNotFound, "directory", "lookup", fmt.Sprintf("actor %q", id), nil)
	}
	return actor, nil
}

// WithSystem resolves the given system id to the automation identity and
// delegates every other id to base.
func WithSystem(base Directory, systemID string) Directory {
	return systemDirectory{base: base, system: System(systemID)}
}

type systemDirectory struct {
	base   Directory
	system Actor
}

func (d systemDirectory) Actor(ctx context.Context, id string) (Actor, error) {
	if id == d.system.ID {
		return d.system, nil
	}
	return d.base.Actor(ctx, id)
}
