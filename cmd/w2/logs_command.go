package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aishuidedabai/whistle/internal/config"
	"github.com/aishuidedabai/whistle/internal/daemonctl"
	"github.com/aishuidedabai/whistle/internal/logs"
	"github.com/aishuidedabai/whistle/internal/options"
)

const logFollowInterval = 250 * time.Millisecond

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var binding *options.Binding

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the output of the background proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := daemonctl.LogPath(cfg.Paths.RunDir, options.Target(cfg.Engine.Command, binding.Options()))

			tail, pos, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tail) == 0 && !follow {
				fmt.Fprintf(out, "No output recorded at %s\n", path)
				return nil
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = logs.Follow(followCtx, path, pos, logFollowInterval, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new output")
	binding = options.Bind(cmd.Flags(), options.Select(options.Schema(schemaDefaults(config.Default())), options.NameStorage))
	return cmd
}
