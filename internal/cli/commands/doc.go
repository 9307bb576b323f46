package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/querycomposer/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewDocCommand creates the doc command.
func NewDocCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Create a data document from the composer",
		Long: `Create a data document from the composer.

When the composer has a current execution the document is built from it,
otherwise from the query buffer. The document path is printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			path, err := app.Session.CreateDocument(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.AddCommand(newDocShowCommand())
	return cmd
}

func newDocShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show DOC",
		Short: "Show a data document by id or path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			doc, err := app.Store.GetDataDoc(cmd.Context(), docID(args[0]))
			if err != nil {
				return err
			}
			if app.Renderer.Mode() == output.ModeJSON {
				return app.Renderer.JSON(doc)
			}

			app.Renderer.Muted("document %s (%s)", doc.ID, doc.Title)
			rows := make([][]any, 0, len(doc.Cells))
			for _, c := range doc.Cells {
				rows = append(rows, []any{c.Position, string(c.Type), c.EngineID, c.ExecutionID, summarize(c.Context, 60)})
			}
			return app.Renderer.Table([]string{"position", "type", "engine", "execution", "query"}, rows)
		},
	}
}

// docID accepts either a bare id or a document path.
func docID(s string) string {
	s = strings.TrimPrefix(s, "/datadoc/")
	return strings.TrimSuffix(s, "/")
}
