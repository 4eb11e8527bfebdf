package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/aishuidedabai/whistle/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the run directory and, when configured, the engine base
// directory. A base directory that does not exist yet passes because the
// engine creates it on first start.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{CheckDirectoryAccess("Run dir", cfg.Paths.RunDir)}
	if cfg.Paths.BaseDir != "" {
		result := CheckDirectoryAccess("Base dir", cfg.Paths.BaseDir)
		if _, err := os.Stat(cfg.Paths.BaseDir); os.IsNotExist(err) {
			result = Result{Name: "Base dir", Passed: true, Detail: fmt.Sprintf("%s (created on first start)", cfg.Paths.BaseDir)}
		}
		results = append(results, result)
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
