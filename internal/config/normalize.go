package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeProduct()
	if err := c.normalizeProxy(); err != nil {
		return err
	}
	c.normalizeEngine()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeProduct() {
	c.Product.Name = strings.TrimSpace(c.Product.Name)
	if c.Product.Name == "" {
		c.Product.Name = defaultProductName
	}
	c.Product.Version = strings.TrimSpace(c.Product.Version)
	if c.Product.Version == "" {
		c.Product.Version = defaultProductVersion
	}
	c.Product.DocsURL = strings.TrimSpace(c.Product.DocsURL)
	if c.Product.DocsURL == "" {
		c.Product.DocsURL = defaultDocsURL
	}
}

func (c *Config) normalizeProxy() error {
	if value, ok := os.LookupEnv("WHISTLE_PORT"); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("WHISTLE_PORT: %w", err)
		}
		c.Proxy.Port = port
	}
	c.Proxy.LocalUIHost = strings.TrimSpace(c.Proxy.LocalUIHost)
	if c.Proxy.LocalUIHost == "" {
		c.Proxy.LocalUIHost = defaultLocalUIHost
	}
	if c.Proxy.Sockets <= 0 {
		c.Proxy.Sockets = defaultSockets
	}
	if c.Proxy.TimeoutMS <= 0 {
		c.Proxy.TimeoutMS = defaultTimeoutMS
	}
	if c.Proxy.DNSCacheMS <= 0 {
		c.Proxy.DNSCacheMS = defaultDNSCacheMS
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.Command = strings.TrimSpace(c.Engine.Command)
	if c.Engine.Command == "" {
		c.Engine.Command = defaultEngineCommand
	}
	args := c.Engine.Args[:0]
	for _, arg := range c.Engine.Args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Engine.Args = args
	c.Engine.Runtime = strings.TrimSpace(c.Engine.Runtime)
	if c.Engine.StartTimeoutSeconds <= 0 {
		c.Engine.StartTimeoutSeconds = defaultStartTimeoutSeconds
	}
	if c.Engine.StopTimeoutSeconds <= 0 {
		c.Engine.StopTimeoutSeconds = defaultStopTimeoutSeconds
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		c.Paths.BaseDir = defaultBaseDir
	}
	if c.Paths.BaseDir, err = expandPath(c.Paths.BaseDir); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RunDir) == "" {
		c.Paths.RunDir = defaultRunDir
	}
	if c.Paths.RunDir, err = expandPath(c.Paths.RunDir); err != nil {
		return fmt.Errorf("paths.run_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
