package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CreateExecution records a newly submitted query in the running state.
func (s *SQLiteStore) CreateExecution(ctx context.Context, engineID, query string) (*Execution, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	exec := &Execution{
		ID:        generateID(),
		EngineID:  engineID,
		Query:     query,
		Status:    ExecutionRunning,
		CreatedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating execution", slog.String("id", exec.ID), slog.String("engine", engineID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, engine_id, query, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		exec.ID, exec.EngineID, exec.Query, exec.Status, exec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}
	return exec, nil
}

// CompleteExecution stores the outcome of an execution. A non-empty errMsg
// marks it failed.
func (s *SQLiteStore) CompleteExecution(ctx context.Context, id string, result *Result, errMsg string) error {
	if err := s.ready(); err != nil {
		return err
	}

	status := ExecutionDone
	if errMsg != "" {
		status = ExecutionFailed
	}

	var payload sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, result = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, payload, nullString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetExecution retrieves an execution by id.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	exec := &Execution{}
	var (
		payload     sql.NullString
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, engine_id, query, status, result, error, created_at, completed_at
		 FROM executions WHERE id = ?`, id,
	).Scan(&exec.ID, &exec.EngineID, &exec.Query, &exec.Status, &payload, &errMsg, &exec.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	if payload.Valid {
		exec.Result = &Result{}
		if err := json.Unmarshal([]byte(payload.String), exec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}
	if errMsg.Valid {
		exec.Error = errMsg.String
	}
	if completedAt.Valid {
		exec.CompletedAt = &completedAt.Time
	}
	return exec, nil
}

// RecentExecutions lists the newest executions first.
func (s *SQLiteStore) RecentExecutions(ctx context.Context, limit int) ([]*Execution, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, engine_id, query, status, error, created_at FROM executions
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Execution
	for rows.Next() {
		exec := &Execution{}
		var errMsg sql.NullString
		if err := rows.Scan(&exec.ID, &exec.EngineID, &exec.Query, &exec.Status, &errMsg, &exec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		exec.Error = errMsg.String
		out = append(out, exec)
	}
	return out, rows.Err()
}
