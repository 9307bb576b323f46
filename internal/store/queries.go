package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Get returns the adhoc query stored for environment, or "" when none was
// saved yet.
func (s *SQLiteStore) Get(ctx context.Context, environment string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	var query string
	err := s.db.QueryRowContext(ctx,
		`SELECT query FROM adhoc_queries WHERE environment = ?`, environment,
	).Scan(&query)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get adhoc query: %w", err)
	}
	return query, nil
}

// Set saves the adhoc query for environment.
func (s *SQLiteStore) Set(ctx context.Context, environment, query string) error {
	return s.upsert(ctx, environment, "query", query)
}

// LoadSession returns the engine and execution last recorded for environment.
func (s *SQLiteStore) LoadSession(ctx context.Context, environment string) (engineID, executionID string, err error) {
	if err := s.ready(); err != nil {
		return "", "", err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT engine_id, execution_id FROM adhoc_queries WHERE environment = ?`, environment,
	).Scan(&engineID, &executionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load session: %w", err)
	}
	return engineID, executionID, nil
}

// SetEngine records the selected engine for environment.
func (s *SQLiteStore) SetEngine(ctx context.Context, environment, engineID string) error {
	return s.upsert(ctx, environment, "engine_id", engineID)
}

// SetExecution records the current execution for environment. An empty id
// dismisses it.
func (s *SQLiteStore) SetExecution(ctx context.Context, environment, executionID string) error {
	return s.upsert(ctx, environment, "execution_id", executionID)
}

// upsert writes one column of the environment's row. column is never user
// input.
func (s *SQLiteStore) upsert(ctx context.Context, environment, column, value string) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.logger.Debug("saving adhoc state", slog.String("environment", environment), slog.String("field", column))

	stmt := fmt.Sprintf(
		`INSERT INTO adhoc_queries (environment, %[1]s, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(environment) DO UPDATE SET %[1]s = excluded.%[1]s, updated_at = excluded.updated_at`,
		column,
	)
	if _, err := s.db.ExecContext(ctx, stmt, environment, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save adhoc %s: %w", column, err)
	}
	return nil
}
