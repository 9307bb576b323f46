// Package executor runs composer queries against the configured engines and
// records every execution in the state store.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/querycomposer/internal/registry"
	"github.com/leapstack-labs/querycomposer/internal/statement"
	"github.com/leapstack-labs/querycomposer/internal/store"
)

// DefaultMaxRows caps the rows kept per result.
const DefaultMaxRows = 1000

// Recorder persists executions.
type Recorder interface {
	CreateExecution(ctx context.Context, engineID, query string) (*store.Execution, error)
	CompleteExecution(ctx context.Context, id string, result *store.Result, errMsg string) error
	GetExecution(ctx context.Context, id string) (*store.Execution, error)
}

// Config configures an Executor.
type Config struct {
	Engines  *registry.EngineRegistry
	Recorder Recorder
	MaxRows  int
	// Open overrides driver lookup, mainly for tests.
	Open   func(driver, dsn string) (*sql.DB, error)
	Logger *slog.Logger
}

// Executor submits queries and runs them in the background. The returned
// execution id can be waited on or looked up in the store.
type Executor struct {
	engines  *registry.EngineRegistry
	recorder Recorder
	maxRows  int
	open     func(driver, dsn string) (*sql.DB, error)
	splitter *statement.Splitter
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	conns   map[string]*sql.DB
	pending map[string]chan struct{}
}

// New creates an Executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Engines == nil {
		return nil, errors.New("executor: engine registry is required")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("executor: recorder is required")
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.Open == nil {
		cfg.Open = Open
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		engines:  cfg.Engines,
		recorder: cfg.Recorder,
		maxRows:  cfg.MaxRows,
		open:     cfg.Open,
		splitter: statement.NewSplitter(),
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[string]*sql.DB),
		pending:  make(map[string]chan struct{}),
	}, nil
}

// Submit records an execution of text on engineID and starts it. It fails
// only when the execution cannot be started; query errors are recorded on
// the execution.
func (e *Executor) Submit(ctx context.Context, text, engineID string) (string, error) {
	engine, ok := e.engines.Get(engineID)
	if !ok {
		return "", fmt.Errorf("engine %q is not registered", engineID)
	}

	db, err := e.conn(ctx, engine)
	if err != nil {
		return "", err
	}

	exec, err := e.recorder.CreateExecution(ctx, engineID, text)
	if err != nil {
		return "", err
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.pending[exec.ID] = done
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.pending, exec.ID)
			e.mu.Unlock()
			close(done)
		}()
		e.execute(exec.ID, db, text)
	}()

	e.logger.Debug("execution started", slog.String("id", exec.ID), slog.String("engine", engineID))
	return exec.ID, nil
}

// Wait blocks until the execution finishes and returns its record.
func (e *Executor) Wait(ctx context.Context, id string) (*store.Execution, error) {
	e.mu.Lock()
	done := e.pending[id]
	e.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.recorder.GetExecution(ctx, id)
}

// Close cancels running executions, waits for them and closes every engine
// connection.
func (e *Executor) Close() error {
	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for id, db := range e.conns {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close engine %s: %w", id, err))
		}
		delete(e.conns, id)
	}
	return errors.Join(errs...)
}

func (e *Executor) conn(ctx context.Context, engine registry.Engine) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if db, ok := e.conns[engine.ID]; ok {
		return db, nil
	}

	setup, err := SetupStatements(engine.Driver, engine.Options)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", engine.ID, err)
	}

	db, err := e.open(engine.Driver, engine.DSN)
	if err != nil {
		return nil, err
	}
	if len(setup) > 0 {
		// Session settings apply per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to engine %s: %w", engine.ID, err)
	}
	for _, stmt := range setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure engine %s: %w", engine.ID, err)
		}
	}
	e.conns[engine.ID] = db
	return db, nil
}

// execute runs every statement of text, keeping the rows of the last one.
func (e *Executor) execute(id string, db *sql.DB, text string) {
	result, err := e.run(e.ctx, db, text)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		e.logger.Info("execution failed", slog.String("id", id), slog.String("error", errMsg))
	} else {
		e.logger.Debug("execution finished", slog.String("id", id), slog.Int("rows", len(result.Rows)))
	}

	// Record the outcome even when the executor is shutting down.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), persistTimeout)
	defer cancel()
	if err := e.recorder.CompleteExecution(ctx, id, result, errMsg); err != nil {
		e.logger.Error("failed to record execution", slog.String("id", id), slog.String("error", err.Error()))
	}
}

func (e *Executor) run(ctx context.Context, db *sql.DB, text string) (*store.Result, error) {
	stmts := []string{text}
	if ranges, err := e.splitter.Split(text); err == nil && len(ranges) > 0 {
		stmts = stmts[:0]
		runes := []rune(text)
		for _, r := range ranges {
			stmts = append(stmts, string(runes[r.From:r.To]))
		}
	}

	last := len(stmts) - 1
	for _, stmt := range stmts[:last] {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
	}

	rows, err := db.QueryContext(ctx, stmts[last])
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collect(rows, e.maxRows)
}
