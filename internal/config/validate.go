package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProxy(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProxy() error {
	if c.Proxy.Port < 0 || c.Proxy.Port > 65535 {
		return fmt.Errorf("proxy.port must be between 0 and 65535, got %d", c.Proxy.Port)
	}
	if strings.ContainsAny(c.Proxy.LocalUIHost, "/ ") {
		return fmt.Errorf("proxy.local_ui_host must be a bare hostname, got %q", c.Proxy.LocalUIHost)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if strings.TrimSpace(c.Engine.Command) == "" {
		return errors.New("engine.command must be set")
	}
	if c.Engine.MinRuntimeMajor < 0 {
		return errors.New("engine.min_runtime_major must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"engine.start_timeout_seconds": c.Engine.StartTimeoutSeconds,
		"engine.stop_timeout_seconds":  c.Engine.StopTimeoutSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
