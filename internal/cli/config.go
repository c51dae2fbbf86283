package cli

import (
	"github.com/spf13/cobra"

	"github.com/sakif/intelligence-platform/internal/report"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after every layer is applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			// A config has no table form; text falls back to YAML.
			format := rootOpts.Format
			if format == "text" {
				format = "yaml"
			}
			return report.New(format, cmd.OutOrStdout()).Render(cfg)
		},
	})

	return cmd
}
