package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/aishuidedabai/whistle/internal/config"
	"github.com/aishuidedabai/whistle/internal/console"
	"github.com/aishuidedabai/whistle/internal/daemonctl"
	"github.com/aishuidedabai/whistle/internal/deps"
	"github.com/aishuidedabai/whistle/internal/lifecycle"
	"github.com/aishuidedabai/whistle/internal/logging"
	"github.com/aishuidedabai/whistle/internal/netaddr"
	"github.com/aishuidedabai/whistle/internal/usage"
)

// Replaced in tests.
var (
	newManager = func(cfg *config.Config, logger *slog.Logger) lifecycle.Manager {
		return daemonctl.New(cfg, logger)
	}
	interfaceAddresses = netaddr.IPv4
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	noColorFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, noColorFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		noColorFlag:  noColorFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		level := ""
		if c.logLevelFlag != nil {
			level = *c.logLevelFlag
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg, level)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) noColor() bool {
	return c.noColorFlag != nil && *c.noColorFlag
}

func (c *commandContext) writer(cmd *cobra.Command) *console.Writer {
	return console.NewWriter(cmd.OutOrStdout(), c.noColor())
}

func (c *commandContext) presenter(ctx context.Context, cfg *config.Config, logger *slog.Logger) *usage.Presenter {
	return &usage.Presenter{
		Name:            cfg.Product.Name,
		Version:         cfg.Product.Version,
		DocsURL:         cfg.Product.DocsURL,
		DefaultPort:     cfg.Proxy.Port,
		DefaultUIHost:   cfg.Proxy.LocalUIHost,
		Addresses:       interfaceAddresses,
		RuntimeMajor:    runtimeProbe(ctx, cfg, logger),
		MinRuntimeMajor: cfg.Engine.MinRuntimeMajor,
		Logger:          logging.NewComponentLogger(logger, "usage"),
	}
}

// runtimeProbe reports the major version of the runtime the engine will use.
// An unconfigured or missing runtime skips the version warning.
func runtimeProbe(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() (int, bool) {
	return func() (int, bool) {
		status := deps.ResolveRuntime(cfg.Engine.Command, cfg.Engine.Runtime)
		if !status.Available {
			return 0, false
		}
		major, err := deps.RuntimeMajor(ctx, status.Command)
		if err != nil {
			logger.Debug("runtime version probe failed", logging.Error(err),
				logging.String("runtime", status.Command))
			return 0, false
		}
		return major, true
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
