package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordEscalation stores an escalation for one stage visit. It reports false
// when that visit was already escalated.
func (s *Store) RecordEscalation(ctx context.Context, esc Escalation) (bool, error) {
	if esc.ID == "" {
		esc.ID = uuid.NewString()
	}
	if esc.CreatedAt.IsZero() {
		esc.CreatedAt = nowUTC()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO escalations (id, work_item_id, stage_order, stage_entered_at, deadline, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		esc.ID, esc.WorkItemID, esc.StageOrder, formatTime(esc.StageEnteredAt), formatTime(esc.Deadline), formatTime(esc.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert escalation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("escalation rows affected: %w", err)
	}
	return n > 0, nil
}

// ListEscalations returns escalations for an item (0 for all) newest first.
func (s *Store) ListEscalations(ctx context.Context, itemID int64) ([]Escalation, error) {
	query := `SELECT id, work_item_id, stage_order, stage_entered_at, deadline, created_at FROM escalations`
	var args []any
	if itemID != 0 {
		query += ` WHERE work_item_id = ?`
		args = append(args, itemID)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	var out []Escalation
	for rows.Next() {
		var (
			esc                                 Escalation
			enteredRaw, deadlineRaw, createdRaw string
		)
		if err := rows.Scan(&esc.ID, &esc.WorkItemID, &esc.StageOrder, &enteredRaw, &deadlineRaw, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		esc.StageEnteredAt = mustTime(enteredRaw)
		esc.Deadline = mustTime(deadlineRaw)
		esc.CreatedAt = mustTime(createdRaw)
		out = append(out, esc)
	}
	return out, rows.Err()
}

// CountEscalations counts escalations recorded at or after since.
func (s *Store) CountEscalations(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(*) FROM escalations WHERE created_at >= ?`, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count escalations: %w", err)
	}
	return n, nil
}
