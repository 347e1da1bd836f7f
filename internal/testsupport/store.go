package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stageflow/internal/config"
	"stageflow/internal/directory"
	"stageflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Workflow holds the stages and forward transitions of a seeded pipeline.
type Workflow struct {
	Stages      []*store.Stage
	Transitions []*store.Transition
}

// StageByOrder finds a seeded stage by its order.
func (w Workflow) StageByOrder(order int) *store.Stage {
	for _, stage := range w.Stages {
		if stage.Order == order {
			return stage
		}
	}
	return nil
}

// SeedLinearWorkflow creates global stages 1..len(names) with a forward
// transition between each neighbour. The last stage is terminal.
func SeedLinearWorkflow(t testing.TB, st *store.Store, names ...string) Workflow {
	t.Helper()

	if len(names) == 0 {
		names = []string{"Draft", "Review", "Approved", "Done"}
	}
	ctx := context.Background()
	var wf Workflow
	for i, name := range names {
		stage, err := st.CreateStage(ctx, &store.Stage{
			ScopeID:  store.GlobalScope,
			Order:    i + 1,
			Name:     name,
			Terminal: i == len(names)-1,
		})
		if err != nil {
			t.Fatalf("create stage %s: %v", name, err)
		}
		wf.Stages = append(wf.Stages, stage)
	}
	for i := 0; i+1 < len(wf.Stages); i++ {
		tr, err := st.CreateTransition(ctx, &store.Transition{
			FromStageID: wf.Stages[i].ID,
			ToStageID:   wf.Stages[i+1].ID,
		})
		if err != nil {
			t.Fatalf("create transition %d->%d: %v", i+1, i+2, err)
		}
		wf.Transitions = append(wf.Transitions, tr)
	}
	return wf
}

// SeedActors stores one actor per role, with ids equal to the role name.
func SeedActors(t testing.TB, st *store.Store) {
	t.Helper()

	for _, role := range directory.Roles() {
		if role == directory.RoleNone {
			continue
		}
		actor := directory.Actor{ID: string(role), Name: fmt.Sprintf("Test %s", role), Role: role}
		if err := st.UpsertActor(context.Background(), actor); err != nil {
			t.Fatalf("upsert actor %s: %v", role, err)
		}
	}
}

// NewItem inserts an active work item at the given stage with a bare creation record.
func NewItem(t testing.TB, st *store.Store, scopeID int64, stage int, enteredAt time.Time) *store.WorkItem {
	t.Helper()

	newStage := stage
	item, err := st.CreateWorkItem(context.Background(), &store.WorkItem{
		Title:            fmt.Sprintf("Item in stage %d", stage),
		Description:      "Seeded work item for workflow tests",
		OwnerID:          "contributor",
		ScopeID:          scopeID,
		CurrentStage:     stage,
		Status:           store.StatusActive,
		CreatedAt:        enteredAt,
		LastStageEntryAt: enteredAt,
	}, store.Record{
		Entry: store.AuditEntry{
			Action:    store.ActionCreated,
			NewStage:  &newStage,
			ActorID:   "contributor",
			Timestamp: enteredAt,
			Metadata:  store.TransitionMetadata{ActorID: "contributor"},
		},
		Event: store.Event{
			Type:       store.EventCreated,
			OccurredAt: enteredAt,
			Payload:    store.EventPayload{ScopeID: scopeID, ActorID: "contributor", ToOrder: &newStage},
		},
	})
	if err != nil {
		t.Fatalf("create work item: %v", err)
	}
	return item
}
