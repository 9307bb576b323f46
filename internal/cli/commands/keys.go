package commands

import (
	"fmt"

	"github.com/leapstack-labs/querycomposer/internal/keymap"
	"github.com/spf13/cobra"
)

// NewKeysCommand creates the keys command.
func NewKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List the composer key bindings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return renderKeys(app)
		},
	}
	cmd.AddCommand(newKeysPressCommand())
	return cmd
}

func newKeysPressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "press KEY",
		Short: "Trigger the action bound to KEY",
		Example: `  # Switch to the second engine
  composer keys press Alt-2

  # Run the buffer
  composer keys press Shift-Enter`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return pressKey(cmd, app, args[0])
		},
	}
}

func renderKeys(app *App) error {
	bindings := app.Session.Keymap().Bindings()
	rows := make([][]any, 0, len(bindings))
	for _, b := range bindings {
		rows = append(rows, []any{b.Key, b.Action, b.EngineID})
	}
	return app.Renderer.Table([]string{"key", "action", "engine"}, rows)
}

// pressKey dispatches key and reports the result. A run key waits for the
// execution it started.
func pressKey(cmd *cobra.Command, app *App, key string) error {
	before := app.Session.ExecutionID()
	if !app.Session.Keymap().Dispatch(key) {
		return fmt.Errorf("key %q is not bound (see 'composer keys')", key)
	}

	if binding, ok := app.Session.Keymap().Binding(key); ok && binding.Action == keymap.ActionChangeEngine {
		app.Renderer.Success("Engine set to %s", app.Session.EngineID())
		return nil
	}

	after := app.Session.ExecutionID()
	if after == "" || after == before {
		app.Renderer.Warning("Run did not start")
		return nil
	}
	return waitAndRender(cmd.Context(), app, after, 0)
}
