package main

import (
	"github.com/spf13/cobra"

	"iaptool/internal/services/probers"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWithOptions()
}

// newRootCommandWithOptions builds the command tree. opts are applied to
// every probe-rs client the commands construct.
func newRootCommandWithOptions(opts ...probers.Option) *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags, opts...)

	rootCmd := &cobra.Command{
		Use:           "iaptool",
		Short:         "Firmware catalog and probe-rs flashing tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&flags.admin, "admin", false, "Enable catalog editing for this invocation")
	rootCmd.PersistentFlags().BoolVar(&flags.json, "json", false, "Write machine readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newCatalogCommand(ctx))
	rootCmd.AddCommand(newProbesCommand(ctx))
	rootCmd.AddCommand(newTargetsCommand(ctx))
	rootCmd.AddCommand(newFlashCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))

	return rootCmd
}
