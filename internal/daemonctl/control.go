package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/aishuidedabai/whistle/internal/config"
	"github.com/aishuidedabai/whistle/internal/diagnose"
	"github.com/aishuidedabai/whistle/internal/lifecycle"
	"github.com/aishuidedabai/whistle/internal/logging"
)

var (
	// ErrEngineExited means the engine stopped before it accepted connections.
	ErrEngineExited = errors.New("engine exited before it was ready")
	// ErrStartTimeout means the engine did not accept connections in time.
	ErrStartTimeout = errors.New("engine did not become ready")
	// ErrInstanceBusy means another w2 invocation holds the instance lock.
	ErrInstanceBusy = errors.New("another w2 command is operating on this instance")
	// ErrAlreadyRunning means run found a live background instance.
	ErrAlreadyRunning = errors.New("engine is already running")
)

const (
	modeForeground = "foreground"
	modeBackground = "background"
)

// Controller launches, supervises and stops engine processes. It implements
// lifecycle.Manager.
type Controller struct {
	runDir       string
	defaultPort  int
	startTimeout time.Duration
	stopTimeout  time.Duration
	pollInterval time.Duration
	stdout       io.Writer
	stderr       io.Writer
	logger       *slog.Logger
	now          func() time.Time
}

var _ lifecycle.Manager = (*Controller)(nil)

// New builds a Controller from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Controller {
	return &Controller{
		runDir:       cfg.Paths.RunDir,
		defaultPort:  cfg.Proxy.Port,
		startTimeout: cfg.StartTimeout(),
		stopTimeout:  cfg.StopTimeout(),
		pollInterval: 200 * time.Millisecond,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		logger:       logging.NewComponentLogger(logger, "daemonctl"),
		now:          time.Now,
	}
}

// SetOutput redirects the output of foreground engines.
func (c *Controller) SetOutput(stdout, stderr io.Writer) {
	c.stdout = stdout
	c.stderr = stderr
}

// Instances lists the instances recorded in the run directory.
func (c *Controller) Instances() ([]InstanceStatus, error) {
	return Instances(c.runDir)
}

// Start launches the engine in the background and reports once it accepts
// connections. A live instance for the same target is reported as already
// running.
func (c *Controller) Start(ctx context.Context, req lifecycle.Request, notify lifecycle.Notify) error {
	inst := newInstance(c.runDir, req.Target)
	logger := c.logger.With(logging.String(logging.FieldInstance, inst.key))

	lock, err := inst.acquire()
	if err != nil {
		return err
	}
	defer unlock(lock, logger)

	if pid, alive := inst.livePID(); alive {
		logger.Info("engine already running", logging.Int(logging.FieldPID, pid))
		notify(lifecycle.Succeeded(true))
		return nil
	}
	inst.clear()

	host, port := c.endpoint(req)
	if err := probePort(host, port); err != nil {
		notify(lifecycle.Failed(err))
		return nil
	}

	logFile, err := os.OpenFile(inst.logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		notify(lifecycle.Failed(fmt.Errorf("open engine log: %w", err)))
		return nil
	}
	defer logFile.Close()

	cmd, err := engineCommand(req)
	if err != nil {
		notify(lifecycle.Failed(err))
		return nil
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		notify(lifecycle.Failed(fmt.Errorf("launch engine: %w", err)))
		return nil
	}
	exited := waitAsync(cmd)
	logger.Info("engine launched",
		logging.Int(logging.FieldPID, cmd.Process.Pid),
		logging.String("log", inst.logPath),
	)

	if err := inst.record(c.metadata(inst, cmd, host, port, modeBackground)); err != nil {
		_ = cmd.Process.Kill()
		notify(lifecycle.Failed(err))
		return nil
	}

	if err := c.awaitReady(ctx, exited, host, port, inst.logTail); err != nil {
		if !errors.Is(err, ErrEngineExited) {
			_ = cmd.Process.Kill()
		}
		inst.clear()
		logger.Warn("engine start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "engine_start_failed"),
			logging.String(logging.FieldErrorHint, "inspect "+inst.logPath),
		)
		notify(lifecycle.Failed(err))
		return nil
	}
	notify(lifecycle.Succeeded(false))
	return nil
}

// Run launches the engine attached to the terminal, reports once it is ready,
// then blocks until the engine exits or ctx is cancelled. On cancellation the
// engine is terminated.
func (c *Controller) Run(ctx context.Context, req lifecycle.Request, notify lifecycle.Notify) error {
	inst := newInstance(c.runDir, req.Target)
	logger := c.logger.With(logging.String(logging.FieldInstance, inst.key))

	lock, err := inst.acquire()
	if err != nil {
		return err
	}
	locked := true
	release := func() {
		if locked {
			unlock(lock, logger)
			locked = false
		}
	}
	defer release()

	host, port := c.endpoint(req)
	if err := probePort(host, port); err != nil {
		notify(lifecycle.Failed(err))
		return nil
	}
	if pid, alive := inst.livePID(); alive {
		notify(lifecycle.Failed(fmt.Errorf("pid %d: %w", pid, ErrAlreadyRunning)))
		return nil
	}

	cmd, err := engineCommand(req)
	if err != nil {
		notify(lifecycle.Failed(err))
		return nil
	}
	tail := &tailBuffer{}
	cmd.Stdin = os.Stdin
	cmd.Stdout = io.MultiWriter(c.stdout, tail)
	cmd.Stderr = io.MultiWriter(c.stderr, tail)
	if err := cmd.Start(); err != nil {
		notify(lifecycle.Failed(fmt.Errorf("launch engine: %w", err)))
		return nil
	}
	exited := waitAsync(cmd)
	pid := cmd.Process.Pid
	logger = logger.With(logging.Int(logging.FieldPID, pid))
	logger.Info("engine launched in foreground")

	if err := inst.record(c.metadata(inst, cmd, host, port, modeForeground)); err != nil {
		_ = cmd.Process.Kill()
		<-exited
		notify(lifecycle.Failed(err))
		return nil
	}
	defer inst.clear()
	release()

	if err := c.awaitReady(ctx, exited, host, port, tail.String); err != nil {
		if !errors.Is(err, ErrEngineExited) {
			c.terminate(cmd.Process, exited, logger)
		}
		notify(lifecycle.Failed(err))
		return nil
	}
	notify(lifecycle.Succeeded(false))

	select {
	case err := <-exited:
		if err != nil {
			logger.Warn("engine exited", logging.Error(err),
				logging.String(logging.FieldEventType, "engine_exited"))
			return fmt.Errorf("engine exited: %w", err)
		}
		logger.Info("engine exited")
		return nil
	case <-ctx.Done():
		logger.Info("stopping foreground engine")
		c.terminate(cmd.Process, exited, logger)
		return nil
	}
}

// Stop terminates the recorded engine for the request's target.
func (c *Controller) Stop(ctx context.Context, req lifecycle.Request, notify lifecycle.Notify) error {
	inst := newInstance(c.runDir, req.Target)
	logger := c.logger.With(logging.String(logging.FieldInstance, inst.key))

	lock, err := inst.acquire()
	if err != nil {
		return err
	}
	defer unlock(lock, logger)

	notify(c.stop(ctx, inst, logger))
	return nil
}

// Restart stops any running instance and starts a new one.
func (c *Controller) Restart(ctx context.Context, req lifecycle.Request, notify lifecycle.Notify) error {
	inst := newInstance(c.runDir, req.Target)
	logger := c.logger.With(logging.String(logging.FieldInstance, inst.key))

	lock, err := inst.acquire()
	if err != nil {
		return err
	}
	stopped := c.stop(ctx, inst, logger)
	unlock(lock, logger)
	if stopped.Kind == lifecycle.KindFailure {
		notify(stopped)
		return nil
	}
	logger.Debug("restart stop phase finished", logging.String("outcome", stopped.Kind.String()))

	var started lifecycle.Outcome
	err = c.Start(ctx, req, func(o lifecycle.Outcome) { started = o })
	if err != nil {
		return err
	}
	if started.Kind == lifecycle.KindSuccess {
		started = lifecycle.Succeeded(false)
	}
	notify(started)
	return nil
}

func (c *Controller) stop(ctx context.Context, inst instance, logger *slog.Logger) lifecycle.Outcome {
	pid, err := inst.readPID()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("discarding unreadable pid file", logging.Error(err),
				logging.String(logging.FieldEventType, "pid_file_invalid"))
		}
		inst.clear()
		return lifecycle.NotRunning()
	}
	if pid == os.Getpid() {
		return lifecycle.Failed(fmt.Errorf("refusing to stop current process (pid %d)", pid))
	}
	logger = logger.With(logging.Int(logging.FieldPID, pid))
	if !processAlive(pid) {
		logger.Info("removing stale instance files")
		inst.clear()
		return lifecycle.NotRunning()
	}
	if inst.reused(pid) {
		logger.Warn("recorded pid now belongs to another process",
			logging.String(logging.FieldEventType, "pid_reused"))
		inst.clear()
		return lifecycle.NotRunning()
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			inst.clear()
			return lifecycle.NotRunning()
		}
		return lifecycle.Failed(os.NewSyscallError("kill", err))
	}
	if !c.waitGone(ctx, pid, c.stopTimeout) {
		logger.Warn("engine ignored SIGTERM, sending SIGKILL",
			logging.Duration("timeout", c.stopTimeout),
			logging.String(logging.FieldEventType, "engine_force_kill"))
		if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return lifecycle.Failed(os.NewSyscallError("kill", err))
		}
		if !c.waitGone(ctx, pid, c.stopTimeout) {
			return lifecycle.Failed(fmt.Errorf("engine pid %d still alive after SIGKILL", pid))
		}
	}
	inst.clear()
	logger.Info("engine stopped")
	return lifecycle.Killed()
}

func (c *Controller) waitGone(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		if !processAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !processAlive(pid)
		case <-deadline.C:
			return !processAlive(pid)
		case <-ticker.C:
		}
	}
}

// terminate sends SIGTERM to a child we are waiting on, escalating to SIGKILL.
func (c *Controller) terminate(proc *os.Process, exited <-chan error, logger *slog.Logger) {
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		logger.Debug("signal engine", logging.Error(err))
	}
	timer := time.NewTimer(c.stopTimeout)
	defer timer.Stop()
	select {
	case <-exited:
		return
	case <-timer.C:
	}
	logger.Warn("engine ignored SIGTERM, sending SIGKILL",
		logging.String(logging.FieldEventType, "engine_force_kill"))
	_ = proc.Kill()
	<-exited
}

// awaitReady waits until the engine accepts connections on port. With port 0
// the engine picks its own port, so surviving one poll interval counts as ready.
func (c *Controller) awaitReady(ctx context.Context, exited <-chan error, host string, port int, tail func() string) error {
	deadline := time.NewTimer(c.startTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-exited:
			return engineExitCause(err, tail())
		case <-deadline.C:
			return fmt.Errorf("%w within %s", ErrStartTimeout, c.startTimeout)
		case <-ticker.C:
			if port == 0 || dialable(host, port) {
				return nil
			}
		}
	}
}

func engineExitCause(waitErr error, output string) error {
	cause := diagnose.ParseOutput(output)
	if cause.Err == nil {
		if waitErr != nil {
			cause.Err = fmt.Errorf("%w: %w", ErrEngineExited, waitErr)
		} else {
			cause.Err = ErrEngineExited
		}
	}
	return cause
}

func (c *Controller) endpoint(req lifecycle.Request) (string, int) {
	port := c.defaultPort
	if p, ok := req.Options.Port(); ok {
		port = p
	}
	host, _ := req.Options.Host()
	return strings.TrimSpace(host), port
}

func (c *Controller) metadata(inst instance, cmd *exec.Cmd, host string, port int, mode string) Metadata {
	ticks, _ := processStartTicks(cmd.Process.Pid)
	return Metadata{
		Key:        inst.key,
		Target:     inst.target,
		PID:        cmd.Process.Pid,
		Host:       host,
		Port:       port,
		Mode:       mode,
		StartedAt:  c.now().UTC(),
		Command:    append([]string(nil), cmd.Args...),
		StartTicks: ticks,
	}
}

func engineCommand(req lifecycle.Request) (*exec.Cmd, error) {
	command := strings.TrimSpace(req.Command)
	if command == "" {
		return nil, errors.New("engine command is not configured")
	}
	return exec.Command(command, req.Args...), nil
}

func waitAsync(cmd *exec.Cmd) <-chan error {
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()
	return exited
}

// probePort binds host:port briefly so a conflict surfaces as the kernel's
// own error before the engine is launched.
func probePort(host string, port int) error {
	if port == 0 {
		return nil
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return ln.Close()
}

func dialable(host string, port int) bool {
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func unlock(lock interface{ Unlock() error }, logger *slog.Logger) {
	if err := lock.Unlock(); err != nil {
		logger.Warn("failed to release instance lock", logging.Error(err))
	}
}

// tailBytes bounds how much foreground engine output is kept for diagnostics.
const tailBytes = 8 << 10

// tailBuffer keeps the last tailBytes of foreground engine output.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - tailBytes; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
