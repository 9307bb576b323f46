package commands

import (
	"strings"
	"time"

	"github.com/leapstack-labs/querycomposer/internal/cli/output"
	"github.com/leapstack-labs/querycomposer/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent query executions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			execs, err := app.Store.RecentExecutions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderHistory(app, execs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of executions to list")
	cmd.AddCommand(newHistoryShowCommand())
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [EXECUTION_ID]",
		Short: "Show an execution and its result (default: the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			id := app.Session.ExecutionID()
			if len(args) > 0 {
				id = args[0]
			}
			if id == "" {
				app.Renderer.Muted("No current execution")
				return nil
			}
			return waitAndRender(cmd.Context(), app, id, 0)
		},
	}
}

func renderHistory(app *App, execs []*store.Execution) error {
	if len(execs) == 0 {
		app.Renderer.Muted("No executions yet")
		return nil
	}
	if app.Renderer.Mode() == output.ModeJSON {
		return app.Renderer.JSON(execs)
	}

	titleCaser := cases.Title(language.English)
	rows := make([][]any, 0, len(execs))
	for _, e := range execs {
		rows = append(rows, []any{e.ID, e.EngineID, titleCaser.String(string(e.Status)), e.CreatedAt.Local().Format(time.DateTime), summarize(e.Query, 60)})
	}
	return app.Renderer.Table([]string{"id", "engine", "status", "created", "query"}, rows)
}

// summarize flattens whitespace and truncates s to n runes.
func summarize(s string, n int) string {
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-1]) + "…"
}
