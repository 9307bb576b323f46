package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/querycomposer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, s.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	version, err := s.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	for _, table := range []string{"adhoc_queries", "executions", "data_docs", "data_cells"} {
		rows, err := s.DB().QueryContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1")
		require.NoError(t, err, "table %s", table)
		_ = rows.Close()
	}

	// Migrating twice is a no-op.
	require.NoError(t, s.Migrate(ctx))
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	s := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := s.Get(ctx, "default")
	require.Error(t, err)
	require.Error(t, s.Set(ctx, "default", "x"))
	require.NoError(t, s.Close())
}

func TestSQLiteStore_FilePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	s := NewSQLiteStore(nil)
	require.NoError(t, s.Open(ctx, path))
	require.NoError(t, s.Set(ctx, "prod", "select 1"))
	require.NoError(t, s.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(ctx, path))
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, "select 1", got)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_AdhocSession(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	got, err := s.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "", got, "missing environment reads as empty")

	engineID, executionID, err := s.LoadSession(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, engineID)
	assert.Empty(t, executionID)

	require.NoError(t, s.Set(ctx, "default", "select 1"))
	require.NoError(t, s.SetEngine(ctx, "default", "duck"))
	require.NoError(t, s.SetExecution(ctx, "default", "exec-1"))
	require.NoError(t, s.Set(ctx, "default", "select 2"))

	got, err = s.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "select 2", got)

	engineID, executionID, err = s.LoadSession(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "duck", engineID)
	assert.Equal(t, "exec-1", executionID)

	require.NoError(t, s.SetExecution(ctx, "default", ""))
	_, executionID, err = s.LoadSession(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, executionID)

	// Environments are independent.
	got, err = s.Get(ctx, "staging")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_ExecutionLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		errMsg string
		verify func(t *testing.T, exec *Execution)
	}{
		{
			name:   "success with rows",
			result: &Result{Columns: []string{"n"}, Rows: [][]any{{float64(1)}, {float64(2)}}},
			verify: func(t *testing.T, exec *Execution) {
				assert.Equal(t, ExecutionDone, exec.Status)
				require.NotNil(t, exec.Result)
				assert.Equal(t, []string{"n"}, exec.Result.Columns)
				assert.Len(t, exec.Result.Rows, 2)
				assert.Empty(t, exec.Error)
				assert.NotNil(t, exec.CompletedAt)
			},
		},
		{
			name:   "failure",
			errMsg: "syntax error",
			verify: func(t *testing.T, exec *Execution) {
				assert.Equal(t, ExecutionFailed, exec.Status)
				assert.Nil(t, exec.Result)
				assert.Equal(t, "syntax error", exec.Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)
			ctx := context.Background()

			exec, err := s.CreateExecution(ctx, "duck", "select 1")
			require.NoError(t, err)
			assert.NotEmpty(t, exec.ID)
			assert.Equal(t, ExecutionRunning, exec.Status)

			require.NoError(t, s.CompleteExecution(ctx, exec.ID, tt.result, tt.errMsg))

			got, err := s.GetExecution(ctx, exec.ID)
			require.NoError(t, err)
			assert.Equal(t, "select 1", got.Query)
			assert.Equal(t, "duck", got.EngineID)
			tt.verify(t, got)
		})
	}
}

func TestSQLiteStore_ExecutionNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetExecution(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.CompleteExecution(ctx, "missing", nil, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_RecentExecutions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, q := range []string{"select 1", "select 2", "select 3"} {
		exec, err := s.CreateExecution(ctx, "duck", q)
		require.NoError(t, err)
		ids = append(ids, exec.ID)
	}

	recent, err := s.RecentExecutions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)
}

func TestSQLiteStore_DataDocs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t.Run("from text", func(t *testing.T) {
		id, err := s.CreateFromText(ctx, "select 1", "duck")
		require.NoError(t, err)

		doc, err := s.GetDataDoc(ctx, id)
		require.NoError(t, err)
		require.Len(t, doc.Cells, 1)
		assert.Equal(t, CellQuery, doc.Cells[0].Type)
		assert.Equal(t, "select 1", doc.Cells[0].Context)
		assert.Equal(t, "duck", doc.Cells[0].EngineID)
		assert.Empty(t, doc.Cells[0].ExecutionID)
	})

	t.Run("from execution", func(t *testing.T) {
		exec, err := s.CreateExecution(ctx, "duck", "select 2")
		require.NoError(t, err)

		id, err := s.CreateFromExecution(ctx, exec.ID, "duck", "select 2")
		require.NoError(t, err)

		doc, err := s.GetDataDoc(ctx, id)
		require.NoError(t, err)
		require.Len(t, doc.Cells, 1)
		assert.Equal(t, exec.ID, doc.Cells[0].ExecutionID)
	})

	t.Run("unknown execution", func(t *testing.T) {
		_, err := s.CreateFromExecution(ctx, "missing", "duck", "select 3")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown doc", func(t *testing.T) {
		_, err := s.GetDataDoc(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
