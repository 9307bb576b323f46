package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/querycomposer/internal/store"
	"github.com/spf13/cobra"
)

// errExecutionFailed is returned after a failed execution has been rendered.
var errExecutionFailed = errors.New("execution failed")

// RunOptions holds options for the run command.
type RunOptions struct {
	Input     string
	Selection string
	Use       string
	IDOnly    bool
	Timeout   time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [SQL]",
		Short: "Run the query buffer or a selection of it",
		Long: `Run the composer's query buffer on the selected engine.

SQL given as arguments, with --input or on stdin replaces the buffer first.
With --selection only the statements touching the selected range are run;
the range is given in character offsets as from:to.`,
		Example: `  # Run the current buffer
  composer run

  # Replace the buffer and run it
  composer run "SELECT 1; SELECT 2;"

  # Run only the statement under offsets 12..14
  composer run --selection 12:14

  # Run a file on a specific engine
  composer run -i report.sql --use warehouse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file (- for stdin)")
	cmd.Flags().StringVarP(&opts.Selection, "selection", "s", "", "Run the statements touching from:to")
	cmd.Flags().StringVarP(&opts.Use, "use", "u", "", "Select this engine before running")
	cmd.Flags().BoolVar(&opts.IDOnly, "id-only", false, "Print only the execution id once it finishes")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Give up waiting for results after this long")

	return cmd
}

func runRun(cmd *cobra.Command, args []string, opts *RunOptions) error {
	text, hasInput, err := readInput(cmd, args, opts.Input)
	if err != nil {
		return err
	}

	app, cleanup, err := NewApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	session := app.Session

	if hasInput {
		session.Edit(text)
	}
	if opts.Use != "" {
		if selected := session.SelectEngine(opts.Use); selected != opts.Use {
			app.Renderer.Warning("Unknown engine %q, using %s", opts.Use, selected)
		}
	}
	if opts.Selection != "" {
		sel, err := parseRange(opts.Selection)
		if err != nil {
			return err
		}
		session.SetSelection(&sel)
	}

	id, err := session.Run(ctx)
	if err != nil {
		return err
	}
	if opts.IDOnly {
		exec, err := waitFor(ctx, app, id, opts.Timeout)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
		if exec.Error != "" {
			return fmt.Errorf("%w: %s", errExecutionFailed, exec.Error)
		}
		return nil
	}

	return waitAndRender(ctx, app, id, opts.Timeout)
}

// waitFor blocks until the execution finishes. A zero timeout waits for as
// long as ctx allows.
func waitFor(ctx context.Context, app *App, id string, timeout time.Duration) (*store.Execution, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	app.Logger.Debug("waiting for execution", "id", id)

	exec, err := app.Executor.Wait(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("waiting for execution %s: %w", id, err)
	}
	return exec, nil
}

// waitAndRender waits for an execution and renders it.
func waitAndRender(ctx context.Context, app *App, id string, timeout time.Duration) error {
	exec, err := waitFor(ctx, app, id, timeout)
	if err != nil {
		return err
	}
	if err := app.Renderer.Execution(exec); err != nil {
		return err
	}
	if exec.Error != "" {
		return errExecutionFailed
	}
	return nil
}
