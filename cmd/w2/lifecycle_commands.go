package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aishuidedabai/whistle/internal/config"
	"github.com/aishuidedabai/whistle/internal/lifecycle"
	"github.com/aishuidedabai/whistle/internal/options"
)

// errOperationFailed sets a non-zero exit status after a failure outcome has
// already been rendered.
var errOperationFailed = errors.New("operation failed")

func newLifecycleCommand(ctx *commandContext, op lifecycle.Operation, short string) *cobra.Command {
	var binding *options.Binding
	cmd := &cobra.Command{
		Use:   op.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if op == lifecycle.OpRun {
				var stop context.CancelFunc
				runCtx, stop = signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
			}

			orchestrator := lifecycle.New(lifecycle.Config{
				Presenter: ctx.presenter(runCtx, cfg, logger),
				Product:   cfg.Product.Name,
				Command:   cmd.Root().Name(),
				Out:       ctx.writer(cmd),
				Logger:    logger,
			})
			outcome := orchestrator.Execute(runCtx, op, newManager(cfg, logger), buildRequest(cfg, binding.Options()))
			if outcome.Kind == lifecycle.KindFailure {
				return errOperationFailed
			}
			return nil
		},
	}
	binding = options.Bind(cmd.Flags(), options.Schema(schemaDefaults(config.Default())))
	cmd.Flags().SortFlags = false
	return cmd
}

// schemaDefaults feeds help texts. Flags are registered before any
// configuration file is read, so help shows the compiled-in defaults.
func schemaDefaults(cfg config.Config) options.Defaults {
	return options.Defaults{
		Name:        cfg.Product.Name,
		Port:        cfg.Proxy.Port,
		LocalUIHost: cfg.Proxy.LocalUIHost,
		Sockets:     cfg.Proxy.Sockets,
		TimeoutMS:   cfg.Proxy.TimeoutMS,
		DNSCacheMS:  cfg.Proxy.DNSCacheMS,
	}
}

// buildRequest resolves the engine command line. The configured port and base
// directory are passed to the engine when the operator did not set them, so the
// engine listens where the banner says it does.
func buildRequest(cfg *config.Config, opts options.Options) lifecycle.Request {
	engineOpts := opts
	if !engineOpts.IsSet(options.NamePort) {
		if next, err := engineOpts.With(options.NamePort, cfg.Proxy.Port); err == nil {
			engineOpts = next
		}
	}
	if !engineOpts.IsSet(options.NameBaseDir) && cfg.Paths.BaseDir != "" {
		if next, err := engineOpts.With(options.NameBaseDir, cfg.Paths.BaseDir); err == nil {
			engineOpts = next
		}
	}
	args := append([]string(nil), cfg.Engine.Args...)
	args = append(args, engineOpts.EngineArgs()...)
	return lifecycle.Request{
		Options: opts,
		Target:  options.Target(cfg.Engine.Command, opts),
		Command: cfg.Engine.Command,
		Args:    args,
	}
}
