package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ItemFilter narrows ListWorkItems. Zero values match everything.
type ItemFilter struct {
	ScopeID  int64
	Statuses []Status
	Stage    *int
}

// CreateWorkItem inserts a work item together with its creation record.
// The record's WorkItemID fields are filled in with the new id.
func (s *Store) CreateWorkItem(ctx context.Context, item *WorkItem, record Record) (*WorkItem, error) {
	if item == nil {
		return nil, errors.New("work item is nil")
	}
	if strings.TrimSpace(item.Title) == "" {
		return nil, errors.New("work item title is required")
	}
	status := item.Status
	if status == "" {
		status = StatusActive
	}
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO work_items (title, description, owner_id, scope_id, current_stage, priority, status, created_at, last_stage_entry_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			strings.TrimSpace(item.Title), item.Description, nullableString(item.OwnerID), item.ScopeID, item.CurrentStage,
			item.Priority, string(status), formatTime(item.CreatedAt), formatTime(item.LastStageEntryAt), formatTime(item.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert work item: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("work item last insert id: %w", err)
		}
		rec := record
		rec.Entry.WorkItemID = id
		rec.Event.WorkItemID = id
		_, err = insertRecord(ctx, tx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetWorkItem(ctx, id)
}

// GetWorkItem fetches a work item. Missing items return nil without error.
func (s *Store) GetWorkItem(ctx context.Context, id int64) (*WorkItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+workItemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanWorkItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

// ListWorkItems returns items matching filter ordered by id.
func (s *Store) ListWorkItems(ctx context.Context, filter ItemFilter) ([]*WorkItem, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ScopeID != 0 {
		clauses = append(clauses, "scope_id = ?")
		args = append(args, filter.ScopeID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if filter.Stage != nil {
		clauses = append(clauses, "current_stage = ?")
		args = append(args, *filter.Stage)
	}
	query := `SELECT ` + workItemColumns + ` FROM work_items`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateWorkItemDetails changes descriptive attributes that do not affect
// workflow position.
func (s *Store) UpdateWorkItemDetails(ctx context.Context, id int64, title, description string, priority float64) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("work item title is required")
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET title = ?, description = ?, priority = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(title), description, priority, formatTime(nowUTC()), id,
	)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	return requireAffected(res, "work item", id)
}
