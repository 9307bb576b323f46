package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/leapstack-labs/querycomposer/internal/cli/config"
	"github.com/leapstack-labs/querycomposer/internal/cli/output"
	"github.com/leapstack-labs/querycomposer/internal/composer"
	"github.com/leapstack-labs/querycomposer/internal/executor"
	"github.com/leapstack-labs/querycomposer/internal/registry"
	"github.com/leapstack-labs/querycomposer/internal/store"
	"github.com/spf13/cobra"
)

// App holds the wired composer dependencies shared by commands.
type App struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *store.SQLiteStore
	Engines  *registry.EngineRegistry
	Executor *executor.Executor
	Session  *composer.Session
	Renderer *output.Renderer
}

// NewApp opens the state database and builds a composer session for the
// configured environment. The returned cleanup flushes the session and
// closes everything; it must be called (typically via defer).
func NewApp(cmd *cobra.Command) (*App, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.GetConfig(ctx)
	logger := config.GetLogger(ctx)

	engines, err := registry.NewEngineRegistry(cfg.Engines...)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	st := store.NewSQLiteStore(logger)
	if err := st.Open(ctx, cfg.StatePath); err != nil {
		return nil, nil, fmt.Errorf("failed to open state database: %w", err)
	}

	exec, err := executor.New(executor.Config{
		Engines:  engines,
		Recorder: st,
		MaxRows:  cfg.MaxRows,
		Logger:   logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	session, err := composer.New(ctx, composer.Config{
		Key:           cfg.Environment,
		Engines:       engines,
		DefaultEngine: cfg.DefaultEngine,
		Keys:          cfg.Keymap,
		UDFLanguages:  cfg.UDFLanguages,
		Debounce:      cfg.Timing.Debounce,
		RunThrottle:   runThrottle(cfg.Timing.RunThrottle),
		Store:         st,
		Executor:      exec,
		Documents:     st,
		Logger:        logger,
	})
	if err != nil {
		_ = exec.Close()
		_ = st.Close()
		return nil, nil, err
	}

	app := &App{
		Cfg:      cfg,
		Logger:   logger,
		Store:    st,
		Engines:  engines,
		Executor: exec,
		Session:  session,
		Renderer: newRenderer(cmd, cfg),
	}

	cleanup := func() {
		session.Close()
		if err := errors.Join(exec.Close(), st.Close()); err != nil {
			logger.Warn("cleanup failed", slog.String("error", err.Error()))
		}
	}
	return app, cleanup, nil
}

// runThrottle maps a configured zero throttle to "disabled"; the session
// treats zero as "use the default".
func runThrottle(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(cfg.OutputFormat))
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return output.IsTerminal(f)
}
