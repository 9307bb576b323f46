package commands

import (
	"github.com/leapstack-labs/querycomposer/internal/keymap"
	"github.com/spf13/cobra"
)

// NewEnginesCommand creates the engines command.
func NewEnginesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List query engines and their shortcut keys",
		Long: `List the configured query engines in shortcut order.

The first nine engines get a numeric change-engine key. The current engine
is marked with *.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return renderEngines(app)
		},
	}
	cmd.AddCommand(newEnginesUseCommand())
	return cmd
}

func newEnginesUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use ENGINE",
		Short: "Select the engine queries run on",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return engineIDs(cmd), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			selected := app.Session.SelectEngine(args[0])
			if selected != args[0] {
				app.Renderer.Warning("Unknown engine %q, using %s", args[0], selected)
				return nil
			}
			app.Renderer.Success("Engine set to %s", selected)
			return nil
		},
	}
}

func renderEngines(app *App) error {
	current := app.Session.EngineID()
	engines := app.Engines.List()

	rows := make([][]any, 0, len(engines))
	for i, e := range engines {
		key := ""
		if i < keymap.MaxEngineShortcuts {
			key = app.Cfg.Keymap.EngineKey(i + 1)
		}
		marker := ""
		if e.ID == current {
			marker = "*"
		}
		rows = append(rows, []any{marker, e.ID, e.DisplayName(), e.Language, e.Driver, key})
	}
	return app.Renderer.Table([]string{"", "id", "name", "language", "driver", "key"}, rows)
}

// engineIDs lists configured engine ids for shell completion.
func engineIDs(cmd *cobra.Command) []string {
	app, cleanup, err := NewApp(cmd)
	if err != nil {
		return nil
	}
	defer cleanup()

	var ids []string
	for _, e := range app.Engines.List() {
		ids = append(ids, e.ID)
	}
	return ids
}
