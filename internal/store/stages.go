package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stageflow/internal/flowerr"
)

// CreateStage inserts a new active stage definition.
func (s *Store) CreateStage(ctx context.Context, stage *Stage) (*Stage, error) {
	if stage == nil {
		return nil, errors.New("stage is nil")
	}
	name := strings.TrimSpace(stage.Name)
	if name == "" {
		return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "store", "create stage", "stage name is required", nil)
	}
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`INSERT INTO stages (scope_id, stage_order, name, approval_required, approver_role, sla_hours, terminal, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		nullableScope(stage.ScopeID), stage.Order, name, boolToInt(stage.ApprovalRequired),
		nullableString(string(stage.ApproverRole)), nullableFloat(stage.SLAHours), boolToInt(stage.Terminal), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, flowerr.Wrap(flowerr.ErrConfigurationInvalid, "store", "create stage",
				fmt.Sprintf("stage order %d already defined for scope %d", stage.Order, stage.ScopeID), err)
		}
		return nil, fmt.Errorf("insert stage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("stage last insert id: %w", err)
	}
	return s.GetStage(ctx, id)
}

// UpdateStage rewrites the mutable attributes of an existing stage.
func (s *Store) UpdateStage(ctx context.Context, stage *Stage) error {
	if stage == nil {
		return errors.New("stage is nil")
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE stages SET name = ?, approval_required = ?, approver_role = ?, sla_hours = ?, terminal = ?, updated_at = ?
         WHERE id = ?`,
		strings.TrimSpace(stage.Name), boolToInt(stage.ApprovalRequired), nullableString(string(stage.ApproverRole)),
		nullableFloat(stage.SLAHours), boolToInt(stage.Terminal), formatTime(time.Now()), stage.ID,
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return requireAffected(res, "stage", stage.ID)
}

// DeactivateStage soft-deletes a stage and every transition touching it.
func (s *Store) DeactivateStage(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE stages SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`, now, id)
		if err != nil {
			return fmt.Errorf("deactivate stage: %w", err)
		}
		if err := requireAffected(res, "stage", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transitions SET is_active = 0, updated_at = ? WHERE is_active = 1 AND (from_stage_id = ? OR to_stage_id = ?)`,
			now, id, id,
		); err != nil {
			return fmt.Errorf("deactivate stage transitions: %w", err)
		}
		return nil
	})
}

// GetStage fetches a stage by id. Missing stages return nil without error.
func (s *Store) GetStage(ctx context.Context, id int64) (*Stage, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+stageColumns+` FROM stages WHERE id = ?`, id)
	stage, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return stage, nil
}

// ListStages returns every stage ordered by scope then order.
func (s *Store) ListStages(ctx context.Context, includeInactive bool) ([]*Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM stages`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY COALESCE(scope_id, 0), stage_order, id`
	rows, err := s.db.QueryContext(ensureContext(ctx), query)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []*Stage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

func requireAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", kind, err)
	}
	if n == 0 {
		return flowerr.Wrap(flowerr.ErrNotFound, "store", kind, fmt.Sprintf("%s %d not found", kind, id), nil)
	}
	return nil
}
