package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aishuidedabai/whistle/internal/console"
	"github.com/aishuidedabai/whistle/internal/diagnose"
	"github.com/aishuidedabai/whistle/internal/options"
	"github.com/aishuidedabai/whistle/internal/usage"
)

var schema = options.Schema(options.Defaults{Name: "whistle", Port: 8899, LocalUIHost: "local.whistlejs.com"})

func newTestOrchestrator(t *testing.T) (*Orchestrator, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	presenter := &usage.Presenter{
		Name:          "whistle",
		Version:       "1.0.0",
		DocsURL:       "https://github.com/avwo/whistle",
		DefaultPort:   8899,
		DefaultUIHost: "local.whistlejs.com",
		Addresses:     func() ([]string, error) { return []string{"127.0.0.1", "192.168.1.20"}, nil },
	}
	o := New(Config{
		Presenter: presenter,
		Product:   "whistle",
		Command:   "w2",
		Out:       console.NewPlainWriter(&buf),
		Now:       func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local) },
	})
	return o, &buf
}

func outputLines(buf *bytes.Buffer) []string {
	text := strings.TrimRight(buf.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func mustOptions(t *testing.T, values map[string]any) options.Options {
	t.Helper()
	opts, err := options.FromMap(schema, values)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	return opts
}

func addrInUse() error {
	return &net.OpError{Op: "listen", Net: "tcp", Err: os.NewSyscallError("bind", syscall.EADDRINUSE)}
}

func TestStartAlreadyRunningRendersWarningBanner(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleStart(Succeeded(true), mustOptions(t, map[string]any{options.NamePort: 8899}))

	lines := outputLines(buf)
	if lines[0] != "[!] whistle@1.0.0 is running" {
		t.Fatalf("status line = %q", lines[0])
	}
	for _, want := range []string{"    http://127.0.0.1:8899/", "    http://192.168.1.20:8899/"} {
		if !containsLine(lines, want) {
			t.Fatalf("missing %q in:\n%s", want, buf.String())
		}
	}
}

func TestStartFreshRendersStarted(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleStart(Succeeded(false), mustOptions(t, nil))
	if lines := outputLines(buf); lines[0] != "[i] whistle@1.0.0 started" {
		t.Fatalf("status line = %q", lines[0])
	}
}

func TestRunSuccessAddsCtrlCHint(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleRun(Succeeded(true), mustOptions(t, nil))
	lines := outputLines(buf)
	if lines[0] != "[i] whistle@1.0.0 started" {
		t.Fatalf("run treats already-running as %q", lines[0])
	}
	if last := lines[len(lines)-1]; last != "Press [Ctrl+C] to stop whistle..." {
		t.Fatalf("last line = %q", last)
	}
}

func TestRestartSuccessRendersRestarted(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleRestart(Succeeded(false), mustOptions(t, nil))
	if lines := outputLines(buf); lines[0] != "[i] whistle@1.0.0 restarted" {
		t.Fatalf("status line = %q", lines[0])
	}
}

func TestStopNotRunningIsSingleWarning(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleStop(NotRunning(), mustOptions(t, nil))
	want := []string{"[!] No running whistle"}
	if diff := cmp.Diff(want, outputLines(buf)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestStopOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    []string
	}{
		{name: "killed", outcome: Killed(), want: []string{"[i] whistle killed."}},
		{
			name:    "permission",
			outcome: Failed(os.NewSyscallError("kill", syscall.EPERM)),
			want:    []string{"[!] Cannot kill whistle owned by root", "[i] Try to run command with `sudo`"},
		},
		{name: "generic", outcome: Failed(errors.New("pid file unreadable")), want: []string{"[!] pid file unreadable"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, buf := newTestOrchestrator(t)
			o.HandleStop(tt.outcome, mustOptions(t, nil))
			if diff := cmp.Diff(tt.want, outputLines(buf)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRestartPortConflictUsesBackgroundPhrasing(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleRestart(Failed(&diagnose.Cause{Code: "EADDRINUSE", Message: "bind failed"}), mustOptions(t, map[string]any{options.NamePort: 8080}))

	out := buf.String()
	for _, want := range []string{
		"[!] Failed to bind proxy port 8080: The port is already in use",
		"restart whistle with `w2 restart`",
		"`w2 start -p newPort`",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "w2 stop") || strings.Contains(out, "w2 run -p") {
		t.Fatalf("restart output uses foreground phrasing:\n%s", out)
	}
}

func TestRunPortConflictUsesForegroundPhrasing(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleRun(Failed(addrInUse()), mustOptions(t, nil))
	out := buf.String()
	for _, want := range []string{
		"[!] Failed to bind proxy port 8899: The port is already in use",
		"stop whistle with `w2 stop` first",
		"`w2 run -p newPort`",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestStartUnclassifiedDumpsDetail(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleStart(Failed(errors.New("engine crashed")), mustOptions(t, nil))
	want := []string{"Date: 2024-03-01 12:00:00", "engine crashed"}
	if diff := cmp.Diff(want, outputLines(buf)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlersReportInapplicableOutcome(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	o.HandleStart(Killed(), mustOptions(t, nil))
	if !strings.Contains(buf.String(), "unexpected result: killed") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

type fakeManager struct {
	notify func(Notify)
	err    error
	calls  []Operation
	req    Request
}

func (f *fakeManager) do(op Operation, req Request, notify Notify) error {
	f.calls = append(f.calls, op)
	f.req = req
	if f.notify != nil {
		f.notify(notify)
	}
	return f.err
}

func (f *fakeManager) Run(_ context.Context, req Request, n Notify) error {
	return f.do(OpRun, req, n)
}

func (f *fakeManager) Start(_ context.Context, req Request, n Notify) error {
	return f.do(OpStart, req, n)
}

func (f *fakeManager) Restart(_ context.Context, req Request, n Notify) error {
	return f.do(OpRestart, req, n)
}

func (f *fakeManager) Stop(_ context.Context, req Request, n Notify) error {
	return f.do(OpStop, req, n)
}

func TestExecuteDispatchesToManager(t *testing.T) {
	for _, op := range []Operation{OpRun, OpStart, OpRestart, OpStop} {
		t.Run(op.String(), func(t *testing.T) {
			o, _ := newTestOrchestrator(t)
			m := &fakeManager{notify: func(n Notify) { n(Killed()) }}
			req := Request{Options: mustOptions(t, nil), Target: "whistle-engine"}
			o.Execute(context.Background(), op, m, req)
			if diff := cmp.Diff([]Operation{op}, m.calls); diff != "" {
				t.Fatalf("calls mismatch (-want +got):\n%s", diff)
			}
			if m.req.Target != "whistle-engine" {
				t.Fatalf("request not forwarded: %+v", m.req)
			}
		})
	}
}

func TestExecuteDeliversExactlyOnce(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	m := &fakeManager{notify: func(n Notify) {
		n(Killed())
		n(NotRunning())
		n(Failed(errors.New("late")))
	}}
	got := o.Execute(context.Background(), OpStop, m, Request{Options: mustOptions(t, nil)})
	if got.Kind != KindKilled {
		t.Fatalf("outcome = %v, want killed", got.Kind)
	}
	want := []string{"[i] whistle killed."}
	if diff := cmp.Diff(want, outputLines(buf)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteFallsBackToManagerError(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	m := &fakeManager{err: errors.New("lock unavailable")}
	got := o.Execute(context.Background(), OpStop, m, Request{Options: mustOptions(t, nil)})
	if got.Kind != KindFailure {
		t.Fatalf("outcome = %v, want failure", got.Kind)
	}
	want := []string{"[!] lock unavailable"}
	if diff := cmp.Diff(want, outputLines(buf)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteWithoutOutcomeOrError(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	got := o.Execute(context.Background(), OpStart, &fakeManager{}, Request{Options: mustOptions(t, nil)})
	if got.Kind != KindFailure || !errors.Is(got.Err, ErrNoOutcome) {
		t.Fatalf("outcome = %+v, want ErrNoOutcome failure", got)
	}
}

func TestExecuteIgnoresErrorAfterOutcome(t *testing.T) {
	o, buf := newTestOrchestrator(t)
	m := &fakeManager{notify: func(n Notify) { n(Succeeded(false)) }, err: errors.New("engine exited")}
	got := o.Execute(context.Background(), OpStart, m, Request{Options: mustOptions(t, nil)})
	if got.Kind != KindSuccess {
		t.Fatalf("outcome = %v, want success", got.Kind)
	}
	if strings.Contains(buf.String(), "engine exited") {
		t.Fatalf("manager error rendered after outcome:\n%s", buf.String())
	}
}

func containsLine(lines []string, want string) bool {
	for _, line := range lines {
		if line == want {
			return true
		}
	}
	return false
}
