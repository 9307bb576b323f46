package commands

import (
	"fmt"

	"github.com/leapstack-labs/querycomposer/internal/cli/config"
	"github.com/leapstack-labs/querycomposer/internal/cli/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the configuration after merging defaults, composer.yaml,
COMPOSER_* environment variables and flags. Credentials are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetConfig(cmd.Context())
			r := newRenderer(cmd, cfg)
			eff := cfg.Effective()

			if r.Mode() == output.ModeJSON {
				return r.JSON(eff)
			}

			if used := config.GetConfigFileUsed(); used != "" {
				r.Muted("# %s", used)
			} else {
				r.Muted("# no config file, using defaults")
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(eff); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}
