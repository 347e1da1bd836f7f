package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateTransition inserts a new active transition definition.
func (s *Store) CreateTransition(ctx context.Context, tr *Transition) (*Transition, error) {
	if tr == nil {
		return nil, errors.New("transition is nil")
	}
	rules, err := encodeRules(tr.ValidationRules)
	if err != nil {
		return nil, err
	}
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`INSERT INTO transitions (scope_id, from_stage_id, to_stage_id, required_role, condition_script, validation_rules,
            auto_delay_minutes, notification_required, notification_template, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		nullableScope(tr.ScopeID), tr.FromStageID, tr.ToStageID, nullableString(string(tr.RequiredRole)),
		nullableString(tr.ConditionScript), rules, nullableInt(tr.AutoTransitionDelayMinutes),
		boolToInt(tr.NotificationRequired), nullableString(tr.NotificationTemplate), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("transition last insert id: %w", err)
	}
	return s.GetTransition(ctx, id)
}

// DeactivateTransition soft-deletes a transition.
func (s *Store) DeactivateTransition(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE transitions SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate transition: %w", err)
	}
	return requireAffected(res, "transition", id)
}

// GetTransition fetches a transition by id. Missing rows return nil without error.
func (s *Store) GetTransition(ctx context.Context, id int64) (*Transition, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+transitionColumns+` FROM transitions WHERE id = ?`, id)
	tr, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transition: %w", err)
	}
	return tr, nil
}

// ListTransitions returns transitions ordered by id.
func (s *Store) ListTransitions(ctx context.Context, includeInactive bool) ([]*Transition, error) {
	query := `SELECT ` + transitionColumns + ` FROM transitions`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ensureContext(ctx), query)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []*Transition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
