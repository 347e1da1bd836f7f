package audit

import (
	"strings"
	"time"

	"stageflow/internal/store"
)

// Change describes a committed stage change for Transitioned.
type Change struct {
	Item         *store.WorkItem
	From         *store.Stage
	To           *store.Stage
	TransitionID int64
	ActorID      string
	Comment      string
	Automatic    bool
	Decision     string
	At           time.Time
}

// Created builds the record for a new item entering its initial stage.
func Created(item *store.WorkItem, stage *store.Stage, actorID string, at time.Time) store.Record {
	order := stage.Order
	return store.Record{
		Entry: store.AuditEntry{
			Action:    store.ActionCreated,
			NewValue:  stage.Name,
			NewStage:  &order,
			ActorID:   actorID,
			Timestamp: at,
			Metadata:  store.TransitionMetadata{ActorID: actorID},
		},
		Event: store.Event{
			Type:       store.EventCreated,
			OccurredAt: at,
			Payload: store.EventPayload{
				ToStage: stage.Name,
				ToOrder: &order,
				ScopeID: item.ScopeID,
				ActorID: actorID,
			},
		},
	}
}

// Transitioned builds the record for a stage change. The time spent in the
// previous stage is measured from the item's last entry to c.At.
func Transitioned(c Change) store.Record {
	fromOrder, toOrder := c.From.Order, c.To.Order
	hours := c.Item.TimeInStage(c.At).Hours()
	comment := strings.TrimSpace(c.Comment)
	return store.Record{
		Entry: store.AuditEntry{
			Action:    store.ActionStageChanged,
			OldValue:  c.From.Name,
			NewValue:  c.To.Name,
			OldStage:  &fromOrder,
			NewStage:  &toOrder,
			ActorID:   c.ActorID,
			Timestamp: c.At,
			Comments:  comment,
			Metadata: store.TransitionMetadata{
				TimeInPreviousStageHours: hours,
				TransitionID:             c.TransitionID,
				ActorID:                  c.ActorID,
				Automatic:                c.Automatic,
				Decision:                 c.Decision,
			},
		},
		Event: store.Event{
			Type:       store.EventTransitioned,
			OccurredAt: c.At,
			Payload: store.EventPayload{
				FromStage:                c.From.Name,
				ToStage:                  c.To.Name,
				FromOrder:                &fromOrder,
				ToOrder:                  &toOrder,
				ScopeID:                  c.Item.ScopeID,
				ActorID:                  c.ActorID,
				TransitionID:             c.TransitionID,
				Comment:                  comment,
				TimeInPreviousStageHours: hours,
				Automatic:                c.Automatic,
				Decision:                 c.Decision,
			},
		},
	}
}

// Rejected builds the record for an approval rejection that leaves the item
// in its stage.
func Rejected(item *store.WorkItem, stage *store.Stage, approverID, comment string, at time.Time) store.Record {
	order := stage.Order
	comment = strings.TrimSpace(comment)
	return store.Record{
		Entry: store.AuditEntry{
			WorkItemID: item.ID,
			Action:     store.ActionApprovalRejected,
			OldValue:   stage.Name,
			NewValue:   stage.Name,
			OldStage:   &order,
			NewStage:   &order,
			ActorID:    approverID,
			Timestamp:  at,
			Comments:   comment,
			Metadata: store.TransitionMetadata{
				TimeInPreviousStageHours: item.TimeInStage(at).Hours(),
				ActorID:                  approverID,
				Decision:                 DecisionRejected,
			},
		},
		Event: store.Event{
			WorkItemID: item.ID,
			Type:       store.EventApprovalRejected,
			OccurredAt: at,
			Payload: store.EventPayload{
				FromStage: stage.Name,
				FromOrder: &order,
				ScopeID:   item.ScopeID,
				ActorID:   approverID,
				Comment:   comment,
				Decision:  DecisionRejected,
			},
		},
	}
}

// Approval decisions stored in TransitionMetadata.Decision.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)
