package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aishuidedabai/whistle/internal/config"
	"github.com/aishuidedabai/whistle/internal/console"
	"github.com/aishuidedabai/whistle/internal/daemonctl"
	"github.com/aishuidedabai/whistle/internal/deps"
	"github.com/aishuidedabai/whistle/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine availability and recorded instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			instances, err := daemonctl.Instances(cfg.Paths.RunDir)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := !ctx.noColor() && console.ShouldColorize(stdout)
			for _, line := range statusReport(cfg, instances, time.Now(), colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
}

func statusReport(cfg *config.Config, instances []daemonctl.InstanceStatus, now time.Time, colorize bool) []string {
	lines := renderSectionHeader("Engine", colorize)
	checks := deps.CheckBinaries(deps.EngineRequirements(cfg))
	if cfg.Engine.Runtime != "" {
		checks = append(checks, deps.ResolveRuntime(cfg.Engine.Command, cfg.Engine.Runtime))
	}
	lines = append(lines, dependencyLines(checks, colorize)...)
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Paths", colorize)...)
	for _, result := range preflight.RunAll(cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Instances", colorize)...)
	if len(instances) == 0 {
		lines = append(lines, renderStatusLine(cfg.Product.Name, statusInfo, "No recorded instances (run `w2 start`)", colorize))
		return lines
	}
	rows := make([][]string, 0, len(instances))
	for _, inst := range instances {
		state := "stopped"
		if inst.Running {
			state = "running"
		}
		rows = append(rows, []string{
			inst.Target,
			strconv.Itoa(inst.PID),
			inst.Mode,
			strconv.Itoa(inst.Port),
			state,
			humanize.RelTime(inst.StartedAt, now, "ago", "from now"),
		})
	}
	lines = append(lines, renderTable(
		[]string{"Instance", "PID", "Mode", "Port", "State", "Started"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
		colorize,
	))
	return lines
}
