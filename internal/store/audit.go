package store

import (
	"context"
	"fmt"
	"time"
)

// ListAuditEntries returns an item's audit trail in chronological order.
func (s *Store) ListAuditEntries(ctx context.Context, itemID int64) ([]*AuditEntry, error) {
	return s.queryAudit(ctx,
		`SELECT `+auditColumns+` FROM audit_entries WHERE work_item_id = ? ORDER BY occurred_at, id`, itemID)
}

const auditColumnsAliased = "a.id, a.work_item_id, a.action, a.old_value, a.new_value, a.old_stage_order, a.new_stage_order, a.actor_id, a.occurred_at, a.comments, a.time_in_previous_stage_hours, a.transition_id, a.automatic, a.decision"

// ListAuditSince returns audit entries for items in scope (0 for all scopes)
// recorded at or after since.
func (s *Store) ListAuditSince(ctx context.Context, scopeID int64, since time.Time) ([]*AuditEntry, error) {
	query := `SELECT ` + auditColumnsAliased + ` FROM audit_entries a
        JOIN work_items w ON w.id = a.work_item_id
        WHERE a.occurred_at >= ?`
	args := []any{formatTime(since)}
	if scopeID != 0 {
		query += ` AND w.scope_id = ?`
		args = append(args, scopeID)
	}
	query += ` ORDER BY a.occurred_at, a.id`
	return s.queryAudit(ctx, query, args...)
}

func (s *Store) queryAudit(ctx context.Context, query string, args ...any) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListEvents returns an item's workflow events in sequence order.
func (s *Store) ListEvents(ctx context.Context, itemID int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+eventColumns+` FROM workflow_events WHERE work_item_id = ? ORDER BY sequence`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
