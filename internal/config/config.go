package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Product describes the proxy product shown in operator guidance.
type Product struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	DocsURL string `toml:"docs_url"`
}

// Proxy contains the compiled-in defaults for options the operator may omit.
type Proxy struct {
	Port        int    `toml:"port"`
	LocalUIHost string `toml:"local_ui_host"`
	Sockets     int    `toml:"sockets"`
	TimeoutMS   int    `toml:"timeout_ms"`
	DNSCacheMS  int    `toml:"dns_cache_ms"`
}

// Engine describes the opaque proxy engine launched by the lifecycle commands.
type Engine struct {
	Command             string   `toml:"command"`
	Args                []string `toml:"args"`
	Runtime             string   `toml:"runtime"`
	MinRuntimeMajor     int      `toml:"min_runtime_major"`
	StartTimeoutSeconds int      `toml:"start_timeout_seconds"`
	StopTimeoutSeconds  int      `toml:"stop_timeout_seconds"`
}

// Paths contains directory configuration.
type Paths struct {
	BaseDir string `toml:"base_dir"`
	RunDir  string `toml:"run_dir"`
}

// Logging contains configuration for diagnostic log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the w2 CLI.
//
// Configuration sections by subsystem:
//   - Product: name, version and documentation link used in guidance text
//   - Proxy: default port, local UI host and engine tuning defaults
//   - Engine: the proxy engine command, its runtime and lifecycle timeouts
//   - Paths: engine data directory and instance bookkeeping directory
//   - Logging: log format and level
type Config struct {
	Product Product `toml:"product"`
	Proxy   Proxy   `toml:"proxy"`
	Engine  Engine  `toml:"engine"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/whistle/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("whistle.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the lifecycle commands write to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RunDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StartTimeout is how long a launch waits for the engine to accept connections.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.Engine.StartTimeoutSeconds) * time.Second
}

// StopTimeout is how long a stop waits before escalating to SIGKILL.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Engine.StopTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
