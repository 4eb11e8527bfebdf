package main

import (
	"github.com/spf13/cobra"

	"github.com/aishuidedabai/whistle/internal/lifecycle"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var noColorFlag bool

	ctx := newCommandContext(&configFlag, &logLevelFlag, &noColorFlag)

	rootCmd := &cobra.Command{
		Use:           "w2",
		Short:         "Run, start, restart and stop the whistle proxy",
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

	// No shorthand: -c belongs to the dnsCache option.
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(newLifecycleCommand(ctx, lifecycle.OpRun, "Start the proxy in the foreground"))
	rootCmd.AddCommand(newLifecycleCommand(ctx, lifecycle.OpStart, "Start the proxy in the background"))
	rootCmd.AddCommand(newLifecycleCommand(ctx, lifecycle.OpRestart, "Restart the background proxy"))
	rootCmd.AddCommand(newLifecycleCommand(ctx, lifecycle.OpStop, "Stop the background proxy"))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
