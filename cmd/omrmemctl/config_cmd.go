package main

import (
	"github.com/spf13/cobra"

	"github.com/eclipse-openj9/openj9-omr-sub008/config"
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `The config command prints the configuration after defaults, the --config
file and the OMR_HEAP_SIZE / OMR_COMMIT_INCREMENT environment overrides have
been applied.

Example:
  omrmemctl config
  omrmemctl config --config omrport.toml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			return config.Encode(cmd.OutOrStdout(), cfg)
		},
	}
}
