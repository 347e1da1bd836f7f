package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stageflow/internal/flowerr"
)

// Commit describes a compare-and-set stage change. The update applies only
// when the stored item still matches ExpectedStage and ExpectedEntryAt.
type Commit struct {
	ItemID          int64
	ExpectedStage   int
	ExpectedEntryAt time.Time
	NewStage        int
	NewStatus       Status
	EnteredAt       time.Time
	Record          Record
}

// CommitTransition atomically moves a work item and appends its audit entry
// and workflow event. A mismatched snapshot yields ErrConcurrencyConflict.
func (s *Store) CommitTransition(ctx context.Context, commit Commit) (Record, error) {
	var committed Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE work_items SET current_stage = ?, status = ?, last_stage_entry_at = ?, updated_at = ?
             WHERE id = ? AND current_stage = ? AND last_stage_entry_at = ?`,
			commit.NewStage, string(commit.NewStatus), formatTime(commit.EnteredAt), formatTime(commit.EnteredAt),
			commit.ItemID, commit.ExpectedStage, formatTime(commit.ExpectedEntryAt),
		)
		if err != nil {
			return fmt.Errorf("update work item stage: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("work item rows affected: %w", err)
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM work_items WHERE id = ?`, commit.ItemID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return flowerr.Wrap(flowerr.ErrNotFound, "store", "commit transition",
					fmt.Sprintf("work item %d not found", commit.ItemID), nil)
			}
			if err != nil {
				return fmt.Errorf("check work item: %w", err)
			}
			return flowerr.Wrap(flowerr.ErrConcurrencyConflict, "store", "commit transition",
				fmt.Sprintf("work item %d changed since it was read", commit.ItemID), nil)
		}
		rec := commit.Record
		rec.Entry.WorkItemID = commit.ItemID
		rec.Event.WorkItemID = commit.ItemID
		committed, err = insertRecord(ctx, tx, rec)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return committed, nil
}

// AppendRecord writes an audit entry and event without moving the item.
func (s *Store) AppendRecord(ctx context.Context, record Record) (Record, error) {
	var committed Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM work_items WHERE id = ?`, record.Entry.WorkItemID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return flowerr.Wrap(flowerr.ErrNotFound, "store", "append record",
				fmt.Sprintf("work item %d not found", record.Entry.WorkItemID), nil)
		}
		if err != nil {
			return fmt.Errorf("check work item: %w", err)
		}
		rec := record
		rec.Event.WorkItemID = record.Entry.WorkItemID
		committed, err = insertRecord(ctx, tx, rec)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return committed, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, record Record) (Record, error) {
	entry := record.Entry
	if entry.Timestamp.IsZero() {
		entry.Timestamp = nowUTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO audit_entries (work_item_id, action, old_value, new_value, old_stage_order, new_stage_order, actor_id,
            occurred_at, comments, time_in_previous_stage_hours, transition_id, automatic, decision)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.WorkItemID, string(entry.Action), nullableString(entry.OldValue), nullableString(entry.NewValue),
		nullableInt(entry.OldStage), nullableInt(entry.NewStage), entry.ActorID, formatTime(entry.Timestamp),
		nullableString(entry.Comments), entry.Metadata.TimeInPreviousStageHours, nullableID(entry.Metadata.TransitionID),
		boolToInt(entry.Metadata.Automatic), nullableString(entry.Metadata.Decision),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert audit entry: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("audit entry last insert id: %w", err)
	}
	entry.Timestamp = entry.Timestamp.UTC()
	entry.Metadata.ActorID = entry.ActorID

	event := record.Event
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = entry.Timestamp
	}
	event.OccurredAt = event.OccurredAt.UTC()
	event.AuditEntryID = entry.ID
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("encode event payload: %w", err)
	}
	res, err = tx.ExecContext(ctx,
		`INSERT INTO workflow_events (id, work_item_id, audit_entry_id, event_type, payload, occurred_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.WorkItemID, event.AuditEntryID, string(event.Type), string(payload), formatTime(event.OccurredAt),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert workflow event: %w", err)
	}
	event.Sequence, err = res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("event last insert id: %w", err)
	}
	return Record{Entry: entry, Event: event}, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
