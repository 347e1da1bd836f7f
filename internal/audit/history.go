package audit

import (
	"context"
	"time"

	"stageflow/internal/store"
)

// State is one visit of a work item to a stage.
type State struct {
	EntryID   int64      `json:"entryId"`
	Stage     int        `json:"stage"`
	StageName string     `json:"stageName"`
	EnteredAt time.Time  `json:"enteredAt"`
	ExitedAt  *time.Time `json:"exitedAt,omitempty"`
	// Duration is zero while the visit is ongoing.
	Duration  time.Duration `json:"duration"`
	ActorID   string        `json:"actorId"`
	Comment   string        `json:"comment,omitempty"`
	Automatic bool          `json:"automatic,omitempty"`
	Decision  string        `json:"decision,omitempty"`
}

// Current reports whether this is the ongoing visit.
func (s State) Current() bool {
	return s.ExitedAt == nil
}

// Reader lists an item's audit entries in chronological order.
type Reader interface {
	ListAuditEntries(ctx context.Context, itemID int64) ([]*store.AuditEntry, error)
}

// Log replays audit trails.
type Log struct {
	reader Reader
}

// NewLog wraps a reader.
func NewLog(reader Reader) *Log {
	return &Log{reader: reader}
}

// Entries returns the raw trail for an item.
func (l *Log) Entries(ctx context.Context, itemID int64) ([]*store.AuditEntry, error) {
	return l.reader.ListAuditEntries(ctx, itemID)
}

// History reconstructs the stage visits of an item.
func (l *Log) History(ctx context.Context, itemID int64) ([]State, error) {
	entries, err := l.reader.ListAuditEntries(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return BuildHistory(entries), nil
}

// StateAsOf returns the visit in effect at t, or nil when the item did not
// exist yet.
func (l *Log) StateAsOf(ctx context.Context, itemID int64, t time.Time) (*State, error) {
	history, err := l.History(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return StateAt(history, t), nil
}

// BuildHistory turns created and stage_changed entries, already in
// (timestamp, id) order, into stage visits. Each visit ends when the next
// begins; the last visit has no exit.
func BuildHistory(entries []*store.AuditEntry) []State {
	var states []State
	for _, entry := range entries {
		if entry.Action != store.ActionCreated && entry.Action != store.ActionStageChanged {
			continue
		}
		if entry.NewStage == nil {
			continue
		}
		if n := len(states); n > 0 {
			exited := entry.Timestamp
			states[n-1].ExitedAt = &exited
			states[n-1].Duration = exited.Sub(states[n-1].EnteredAt)
		}
		states = append(states, State{
			EntryID:   entry.ID,
			Stage:     *entry.NewStage,
			StageName: entry.NewValue,
			EnteredAt: entry.Timestamp,
			ActorID:   entry.ActorID,
			Comment:   entry.Comments,
			Automatic: entry.Metadata.Automatic,
			Decision:  entry.Metadata.Decision,
		})
	}
	return states
}

// StateAt returns the most recent visit entered at or before t.
func StateAt(history []State, t time.Time) *State {
	var found *State
	for i := range history {
		if history[i].EnteredAt.After(t) {
			break
		}
		s := history[i]
		found = &s
	}
	return found
}
