package daemonctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/aishuidedabai/whistle/internal/logs"
)

var instanceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/avwo/whistle#w2"))

// InstanceKey returns the stable file-name key for an engine target.
func InstanceKey(target string) string {
	return uuid.NewSHA1(instanceNamespace, []byte(target)).String()
}

// Metadata is the bookkeeping written next to a running engine's pid file.
type Metadata struct {
	Key       string    `json:"key"`
	Target    string    `json:"target"`
	PID       int       `json:"pid"`
	Host      string    `json:"host,omitempty"`
	Port      int       `json:"port"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	Command   []string  `json:"command"`

	// StartTicks is the kernel start time of PID, used to detect pid reuse.
	StartTicks uint64 `json:"start_ticks,omitempty"`
}

// InstanceStatus is one entry of Instances.
type InstanceStatus struct {
	Metadata
	Running bool
}

type instance struct {
	key      string
	target   string
	pidPath  string
	lockPath string
	logPath  string
	metaPath string
}

func newInstance(runDir, target string) instance {
	key := InstanceKey(target)
	base := filepath.Join(runDir, key)
	return instance{
		key:      key,
		target:   target,
		pidPath:  base + ".pid",
		lockPath: base + ".lock",
		logPath:  base + ".log",
		metaPath: base + ".json",
	}
}

// acquire serializes w2 invocations on one instance.
func (in instance) acquire() (*flock.Flock, error) {
	lock := flock.New(in.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", in.target, ErrInstanceBusy)
	}
	return lock, nil
}

func (in instance) readPID() (int, error) {
	data, err := os.ReadFile(in.pidPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %q: invalid content %q", in.pidPath, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// livePID returns the recorded pid when that process still exists and is
// still the process that was launched.
func (in instance) livePID() (int, bool) {
	pid, err := in.readPID()
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid) && !in.reused(pid)
}

func (in instance) readMeta() (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(in.metaPath)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode instance metadata: %w", err)
	}
	return meta, nil
}

// reused reports whether pid now belongs to a different process than the one
// recorded. Without a recorded start time the pid is trusted.
func (in instance) reused(pid int) bool {
	meta, err := in.readMeta()
	if err != nil || meta.PID != pid {
		return false
	}
	return meta.recycled()
}

func (m Metadata) recycled() bool {
	if m.StartTicks == 0 {
		return false
	}
	ticks, ok := processStartTicks(m.PID)
	return ok && ticks != m.StartTicks
}

func (in instance) record(meta Metadata) error {
	if err := os.WriteFile(in.pidPath, []byte(strconv.Itoa(meta.PID)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode instance metadata: %w", err)
	}
	if err := os.WriteFile(in.metaPath, data, 0o644); err != nil {
		return fmt.Errorf("write instance metadata: %w", err)
	}
	return nil
}

// clear removes pid and metadata. The log is kept for inspection.
func (in instance) clear() {
	for _, path := range []string{in.pidPath, in.metaPath} {
		_ = os.Remove(path)
	}
}

// logTailLines bounds the engine output handed to diagnostics.
const logTailLines = 50

func (in instance) logTail() string {
	lines, _, err := logs.Last(in.logPath, logTailLines)
	if err != nil {
		return ""
	}
	return strings.Join(lines, "\n")
}

// LogPath returns the background engine log for target.
func LogPath(runDir, target string) string {
	return newInstance(runDir, target).logPath
}

// processAlive reports whether pid exists. A process owned by another user
// counts as alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Instances lists every recorded instance in runDir.
func Instances(runDir string) ([]InstanceStatus, error) {
	matches, err := filepath.Glob(filepath.Join(runDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	statuses := make([]InstanceStatus, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		running := processAlive(meta.PID) && !meta.recycled()
		statuses = append(statuses, InstanceStatus{Metadata: meta, Running: running})
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].StartedAt.Before(statuses[j].StartedAt)
	})
	return statuses, nil
}
