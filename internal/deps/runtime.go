package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// versionProbeTimeout bounds `<runtime> --version`.
const versionProbeTimeout = 3 * time.Second

var majorPattern = regexp.MustCompile(`v?(\d+)(?:\.\d+)*`)

// ResolveRuntime reports the runtime binary the engine will execute.
//
// Package managers install the engine's launcher script next to the runtime
// it was installed with, and the launcher prefers that copy over PATH. The
// lookup mirrors that order so status output and version checks match what
// the engine actually uses.
func ResolveRuntime(engineCommand, runtimeName string) Status {
	name := strings.TrimSpace(runtimeName)
	result := Status{
		Name:        "Runtime",
		Description: "Runtime the proxy engine runs on",
		Optional:    true,
	}
	if name == "" {
		result.Detail = "runtime not configured"
		return result
	}

	if engine := strings.TrimSpace(engineCommand); engine != "" {
		if resolved, err := exec.LookPath(engine); err == nil {
			candidate := filepath.Join(filepath.Dir(resolved), executableName(name))
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Available = true
				return result
			}
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		result.Command = path
		result.Available = true
		return result
	}

	result.Command = name
	result.Detail = fmt.Sprintf("binary %q not found", name)
	return result
}

// RuntimeMajor runs `<command> --version` and returns the leading major
// version number, e.g. 18 for "v18.19.0".
func RuntimeMajor(ctx context.Context, command string) (int, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return 0, fmt.Errorf("runtime command is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, command, "--version").Output()
	if err != nil {
		return 0, fmt.Errorf("probe %s version: %w", command, err)
	}
	return ParseMajor(string(out))
}

// ParseMajor extracts the major version from version output.
func ParseMajor(output string) (int, error) {
	match := majorPattern.FindStringSubmatch(strings.TrimSpace(output))
	if match == nil {
		return 0, fmt.Errorf("no version number in %q", strings.TrimSpace(output))
	}
	major, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("parse major version %q: %w", match[1], err)
	}
	return major, nil
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
