package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stageflow/internal/directory"
	"stageflow/internal/flowerr"
)

// UpsertActor inserts or replaces a directory actor.
func (s *Store) UpsertActor(ctx context.Context, actor directory.Actor) error {
	id := strings.TrimSpace(actor.ID)
	if id == "" {
		return errors.New("actor id is required")
	}
	now := formatTime(time.Now())
	_, err := s.execWithRetry(ctx,
		`INSERT INTO actors (id, name, role, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role, email = excluded.email, updated_at = excluded.updated_at`,
		id, actor.Name, string(actor.Role), nullableString(actor.Email), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert actor: %w", err)
	}
	return nil
}

// Actor resolves an actor by id, satisfying directory.Directory.
func (s *Store) Actor(ctx context.Context, id string) (directory.Actor, error) {
	var (
		actor directory.Actor
		role  string
		email sql.NullString
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, name, role, email FROM actors WHERE id = ?`, id,
	).Scan(&actor.ID, &actor.Name, &role, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Actor{}, flowerr.Wrap(flowerr.ErrNotFound, "directory", "lookup actor", fmt.Sprintf("actor %q not found", id), nil)
	}
	if err != nil {
		return directory.Actor{}, fmt.Errorf("get actor: %w", err)
	}
	actor.Role = directory.Role(role)
	actor.Email = email.String
	return actor, nil
}

// ListActors returns every actor ordered by id.
func (s *Store) ListActors(ctx context.Context) ([]directory.Actor, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, name, role, email FROM actors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var actors []directory.Actor
	for rows.Next() {
		var (
			actor directory.Actor
			role  string
			email sql.NullString
		)
		if err := rows.Scan(&actor.ID, &actor.Name, &role, &email); err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		actor.Role = directory.Role(role)
		actor.Email = email.String
		actors = append(actors, actor)
	}
	return actors, rows.Err()
}
