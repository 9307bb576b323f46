package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/querycomposer/internal/composer"
	"github.com/spf13/cobra"
)

// NewUDFCommand creates the udf command.
func NewUDFCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "udf [SCRIPT]",
		Short: "Prepend a user defined function script to the query buffer",
		Long: `Prepend a user defined function script to the query buffer.

Only engines whose language supports UDFs accept scripts; see
udf_languages in composer.yaml.`,
		Example: `  composer udf -i functions/parse_ua.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, ok, err := readInput(cmd, args, input)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no UDF script given")
			}

			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.Session.InsertUDF(script); err != nil {
				if errors.Is(err, composer.ErrUDFUnsupported) {
					return fmt.Errorf("%w\nHint: select an engine with one of the languages %v", err, app.Cfg.UDFLanguages)
				}
				return err
			}
			app.Renderer.Success("UDF Added!")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Read the script from file (- for stdin)")
	return cmd
}
