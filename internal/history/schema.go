package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

const journalVersion = 1

// ErrSchemaMismatch is returned when history.db was written by a different
// journal layout.
var ErrSchemaMismatch = errors.New("flash journal layout not supported")

// ensureJournal creates the flash_runs tables on first use and rejects a
// database stamped with another journal version.
func (s *Store) ensureJournal(ctx context.Context) error {
	version, err := s.journalVersion(ctx)
	if err != nil {
		return err
	}
	switch version {
	case 0:
		return s.createJournal(ctx)
	case journalVersion:
		return nil
	default:
		return fmt.Errorf("%w: %s is version %d, this build writes version %d (remove it to start a new journal)",
			ErrSchemaMismatch, s.path, version, journalVersion)
	}
}

// journalVersion returns 0 for a database without a stamp.
func (s *Store) journalVersion(ctx context.Context) (int, error) {
	var tables int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("inspect flash journal: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read flash journal version: %w", err)
	}
	return version, nil
}

func (s *Store) createJournal(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal setup: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create flash journal tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", journalVersion); err != nil {
		return fmt.Errorf("stamp flash journal version: %w", err)
	}
	return tx.Commit()
}
