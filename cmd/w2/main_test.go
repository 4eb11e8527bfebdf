package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aishuidedabai/whistle/internal/config"
	"github.com/aishuidedabai/whistle/internal/daemonctl"
	"github.com/aishuidedabai/whistle/internal/diagnose"
	"github.com/aishuidedabai/whistle/internal/lifecycle"
)

type fakeManager struct {
	outcome lifecycle.Outcome
	calls   []string
	reqs    []lifecycle.Request
}

func (f *fakeManager) record(op string, req lifecycle.Request, notify lifecycle.Notify) error {
	f.calls = append(f.calls, op)
	f.reqs = append(f.reqs, req)
	notify(f.outcome)
	return nil
}

func (f *fakeManager) Run(_ context.Context, req lifecycle.Request, n lifecycle.Notify) error {
	return f.record("run", req, n)
}

func (f *fakeManager) Start(_ context.Context, req lifecycle.Request, n lifecycle.Notify) error {
	return f.record("start", req, n)
}

func (f *fakeManager) Restart(_ context.Context, req lifecycle.Request, n lifecycle.Notify) error {
	return f.record("restart", req, n)
}

func (f *fakeManager) Stop(_ context.Context, req lifecycle.Request, n lifecycle.Notify) error {
	return f.record("stop", req, n)
}

type cliTestEnv struct {
	configPath string
	baseDir    string
	runDir     string
	manager    *fakeManager
}

func setupCLITestEnv(t *testing.T, outcome lifecycle.Outcome) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("WHISTLE_PORT", "")

	env := &cliTestEnv{
		configPath: filepath.Join(base, "config.toml"),
		baseDir:    filepath.Join(base, "data"),
		runDir:     filepath.Join(base, "run"),
		manager:    &fakeManager{outcome: outcome},
	}
	writeTestConfig(t, env)

	prevManager, prevAddrs := newManager, interfaceAddresses
	newManager = func(*config.Config, *slog.Logger) lifecycle.Manager { return env.manager }
	interfaceAddresses = func() ([]string, error) { return []string{"127.0.0.1", "10.1.2.3"}, nil }
	t.Cleanup(func() {
		newManager = prevManager
		interfaceAddresses = prevAddrs
	})
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[engine]
command = "whistle-engine"
runtime = ""

[paths]
base_dir = %q
run_dir = %q

[logging]
level = "error"
`, env.baseDir, env.runDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

func TestStartAlreadyRunningShowsBanner(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(true))
	out, _, err := runCLI(t, []string{"start"}, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "[!] whistle@1.0.0 is running")
	requireContains(t, out, "    http://127.0.0.1:8899/")
	requireContains(t, out, "    http://10.1.2.3:8899/")
	requireContains(t, out, "visit http://local.whistlejs.com/ to get started")
}

func TestStartForwardsOptions(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	out, _, err := runCLI(t, []string{"start", "-p", "9000", "-S", "dev", "--ATS"}, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "[i] whistle@1.0.0 started")
	requireContains(t, out, "    http://10.1.2.3:9000/")

	if diff := cmp.Diff([]string{"start"}, env.manager.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	req := env.manager.reqs[0]
	if req.Target != "whistle-engine#dev#" {
		t.Fatalf("target = %q", req.Target)
	}
	if req.Command != "whistle-engine" {
		t.Fatalf("command = %q", req.Command)
	}
	want := []string{"--baseDir", env.baseDir, "--ATS", "--storage", "dev", "--port", "9000"}
	if diff := cmp.Diff(want, req.Args); diff != "" {
		t.Fatalf("engine args mismatch (-want +got):\n%s", diff)
	}
}

func TestStartPassesConfiguredPortToEngine(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	if _, _, err := runCLI(t, []string{"start"}, env.configPath); err != nil {
		t.Fatalf("start: %v", err)
	}
	req := env.manager.reqs[0]
	if _, ok := req.Options.Port(); ok {
		t.Fatal("operator options should not report an explicit port")
	}
	want := []string{"--baseDir", env.baseDir, "--port", "8899"}
	if diff := cmp.Diff(want, req.Args); diff != "" {
		t.Fatalf("engine args mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSuccessShowsCtrlC(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Press [Ctrl+C] to stop whistle...")
}

func TestStopNotRunning(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.NotRunning())
	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if out != "[!] No running whistle\n" {
		t.Fatalf("unexpected stop output %q", out)
	}
}

func TestStopKilled(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Killed())
	out, _, err := runCLI(t, []string{"stop", "-S", "dev"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "[i] whistle killed.")
	if env.manager.reqs[0].Target != "whistle-engine#dev#" {
		t.Fatalf("stop target = %q", env.manager.reqs[0].Target)
	}
}

func TestRestartPortConflictFails(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Failed(&diagnose.Cause{Code: "EADDRINUSE", Message: "listen EADDRINUSE :::8080"}))
	out, _, err := runCLI(t, []string{"restart", "-p", "8080"}, env.configPath)
	if !errors.Is(err, errOperationFailed) {
		t.Fatalf("expected errOperationFailed, got %v", err)
	}
	requireContains(t, out, "[!] Failed to bind proxy port 8080: The port is already in use")
	requireContains(t, out, "restart whistle with `w2 restart`")
	requireContains(t, out, "`w2 start -p newPort`")
}

func TestLifecycleRejectsArguments(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	if _, _, err := runCLI(t, []string{"start", "extra"}, env.configPath); err == nil {
		t.Fatal("expected error for positional argument")
	}
	if len(env.manager.calls) != 0 {
		t.Fatalf("manager called despite bad arguments: %v", env.manager.calls)
	}
}

func TestInvalidConfigIsReported(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	if err := os.WriteFile(env.configPath, []byte("[proxy]\nport = 70000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"start"}, env.configPath); err == nil {
		t.Fatal("expected config error")
	}
	if len(env.manager.calls) != 0 {
		t.Fatalf("manager called despite invalid config: %v", env.manager.calls)
	}
}

func TestStatusWithoutInstances(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Engine ==")
	requireContains(t, out, `[ERROR] binary "whistle-engine" not found`)
	requireContains(t, out, "== Paths ==")
	requireContains(t, out, env.runDir+" (read/write ok)")
	requireContains(t, out, env.baseDir+" (created on first start)")
	requireContains(t, out, "No recorded instances")
}

func TestStatusListsInstances(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	if err := os.MkdirAll(env.runDir, 0o755); err != nil {
		t.Fatalf("mkdir run dir: %v", err)
	}
	meta := daemonctl.Metadata{
		Key:       daemonctl.InstanceKey("whistle-engine"),
		Target:    "whistle-engine",
		PID:       os.Getpid(),
		Port:      8899,
		Mode:      "background",
		StartedAt: time.Now().Add(-2 * time.Hour),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.runDir, meta.Key+".json"), data, 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "whistle-engine")
	requireContains(t, out, "running")
	requireContains(t, out, "2 hours ago")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Engine", statusError, "missing", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Engine:", "[ERROR] missing")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil, false)
	requireContains(t, out, "only")
	if lines := strings.Split(out, "\n"); len(lines) != 5 {
		t.Fatalf("expected 5 table lines, got %d:\n%s", len(lines), out)
	}
}

func TestLogsPrintsTrailingLinesForStorage(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	if err := os.MkdirAll(env.runDir, 0o755); err != nil {
		t.Fatalf("mkdir run dir: %v", err)
	}
	path := daemonctl.LogPath(env.runDir, "whistle-engine#dev#")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-S", "dev", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}

func TestLogsWithoutOutput(t *testing.T) {
	env := setupCLITestEnv(t, lifecycle.Succeeded(false))
	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No output recorded at "+daemonctl.LogPath(env.runDir, "whistle-engine"))
}
