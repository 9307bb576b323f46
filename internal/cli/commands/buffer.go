package commands

import (
	"fmt"

	"github.com/leapstack-labs/querycomposer/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the query buffer, engine and last execution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return renderSession(cmd, app)
		},
	}
}

// sessionView is the JSON shape of the show command.
type sessionView struct {
	Environment string `json:"environment"`
	EngineID    string `json:"engineId"`
	ExecutionID string `json:"executionId,omitempty"`
	Query       string `json:"query"`
}

func renderSession(cmd *cobra.Command, app *App) error {
	s := app.Session
	view := sessionView{
		Environment: app.Cfg.Environment,
		EngineID:    s.EngineID(),
		ExecutionID: s.ExecutionID(),
		Query:       s.Buffer(),
	}
	if app.Renderer.Mode() == output.ModeJSON {
		return app.Renderer.JSON(view)
	}

	engine := view.EngineID
	if e, ok := s.Engine(); ok {
		engine = fmt.Sprintf("%s (%s)", e.DisplayName(), e.ID)
	}
	app.Renderer.Muted("environment: %s", view.Environment)
	app.Renderer.Muted("engine: %s", engine)
	if view.ExecutionID != "" {
		app.Renderer.Muted("execution: %s", view.ExecutionID)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), view.Query)
	return nil
}

// NewEditCommand creates the edit command.
func NewEditCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "edit [SQL]",
		Short: "Replace the query buffer",
		Long: `Replace the query buffer with SQL from arguments, a file or stdin.

Any pending search results are recomputed against the new text.`,
		Example: `  composer edit "SELECT * FROM events LIMIT 10;"
  cat report.sql | composer edit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, ok, err := readInput(cmd, args, input)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no SQL given (pass it as an argument, with --input or on stdin)")
			}

			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			app.Session.Edit(text)
			app.Renderer.Success("Query updated")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Read SQL from file (- for stdin)")
	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the query buffer and forget the last execution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			app.Session.Clear()
			app.Renderer.Success("Cleared")
			return nil
		},
	}
}

// NewFormatCommand creates the format command.
func NewFormatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "format",
		Short: "Format the query buffer",
		Long: `Rewrite the query buffer as formatted SQL and print it.

Keywords are upper-cased, major clauses start on their own line and
subqueries are indented. Comments and quoted text are kept as written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Session.Format(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), app.Session.Buffer())
			return nil
		},
	}
}
