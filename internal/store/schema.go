package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var baseSchema string

// migrations holds one script per schema version, applied in order. The
// database records how many have run in PRAGMA user_version. Append new
// scripts; never edit one that has shipped.
var migrations = []string{
	baseSchema,
}

// ErrSchemaMismatch is returned when the database was written by a newer
// build than this one.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// SchemaVersion reports the version this build migrates databases to.
func SchemaVersion() int {
	return len(migrations)
}

func (s *Store) initSchema(ctx context.Context) error {
	current, err := userVersion(ctx, s.db)
	if err != nil {
		return err
	}
	target := SchemaVersion()
	switch {
	case current == target:
		return nil
	case current > target:
		return fmt.Errorf("%w: database is at version %d, this build supports up to %d", ErrSchemaMismatch, current, target)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for version := current + 1; version <= target; version++ {
		if _, err := tx.ExecContext(ctx, migrations[version-1]); err != nil {
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
