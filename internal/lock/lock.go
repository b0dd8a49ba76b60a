// Package lock guards a run against concurrent execution on one host with a
// PID file per run. It is not a distributed lock: two hosts sharing a store
// can still run the same run id at once.
package lock

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrLockHeld reports that a live process already owns the run.
	ErrLockHeld = errors.New("run already in progress")
	// ErrInvalidRunID reports a run id that cannot name a lock file.
	ErrInvalidRunID = errors.New("invalid run id for lock")
)

// HeldError identifies the process holding a run's lock.
type HeldError struct {
	RunID string
	PID   int
	Path  string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("run %s already in progress (pid %d, lock %s)", e.RunID, e.PID, e.Path)
}

// Is matches ErrLockHeld.
func (e *HeldError) Is(target error) bool {
	return target == ErrLockHeld
}

// Manager creates lock files under a directory.
type Manager struct {
	dir    string
	pid    int
	alive  func(pid int) bool
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPID overrides the PID written to lock files.
func WithPID(pid int) Option {
	return func(m *Manager) { m.pid = pid }
}

// WithLiveness overrides the process liveness check.
func WithLiveness(alive func(pid int) bool) Option {
	return func(m *Manager) { m.alive = alive }
}

// New creates a Manager rooted at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	m := &Manager{
		dir:    dir,
		pid:    os.Getpid(),
		alive:  processAlive,
		logger: logger.With("system", "lock"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Path returns the lock file path for runID.
func (m *Manager) Path(runID string) string {
	return filepath.Join(m.dir, runID+".lock")
}

// Handle is an acquired lock. Release is safe to call more than once.
type Handle struct {
	runID string
	path  string
	pid   int
	once  sync.Once
	err   error
}

// RunID returns the locked run.
func (h *Handle) RunID() string { return h.runID }

// Release removes the lock file if it still names this process.
func (h *Handle) Release() error {
	h.once.Do(func() {
		pid, err := readPID(h.path)
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil || pid != h.pid {
			h.err = fmt.Errorf("lock %s no longer owned by pid %d", h.path, h.pid)
			return
		}
		if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.err = fmt.Errorf("remove lock: %w", err)
		}
	})
	return h.err
}

// Acquire takes the lock for runID. An existing lock whose owner is still
// alive fails with a *HeldError. A lock left by a dead process, or one whose
// contents cannot be read as a PID, is reclaimed and acquisition retried.
func (m *Manager) Acquire(runID string) (*Handle, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}

	path := m.Path(runID)

	for attempt := 0; attempt < 3; attempt++ {
		err := m.create(path)
		if err == nil {
			m.logger.Debug("lock acquired", "run_id", runID, "pid", m.pid, "path", path)
			return &Handle{runID: runID, path: path, pid: m.pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock: %w", err)
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read lock: %w", err)
		}
		owner, perr := parsePID(data)
		if perr == nil && m.alive(owner) {
			return nil, &HeldError{RunID: runID, PID: owner, Path: path}
		}

		if err := m.reclaim(path, data); err != nil {
			return nil, err
		}
		m.logger.Warn("stale lock reclaimed", "run_id", runID, "owner_pid", owner, "path", path)
	}

	owner, _ := readPID(path)
	return nil, &HeldError{RunID: runID, PID: owner, Path: path}
}

const (
	reclaimTries    = 50
	reclaimInterval = 10 * time.Millisecond
	reclaimStale    = 5 * time.Second
)

// reclaim removes the lock at path only while it still holds stale. The
// check and removal run under an exclusive guard file, so a lock published
// by another process after stale was read is never removed.
func (m *Manager) reclaim(path string, stale []byte) error {
	guard := path + ".reclaim"

	var g *os.File
	for try := 0; ; try++ {
		f, err := os.OpenFile(guard, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			g = f
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create reclaim guard: %w", err)
		}
		if info, err := os.Stat(guard); err == nil && time.Since(info.ModTime()) > reclaimStale {
			m.logger.Warn("removing abandoned reclaim guard", "path", guard)
			os.Remove(guard)
			continue
		}
		if try == reclaimTries {
			return fmt.Errorf("%w: reclaim of %s in progress", ErrLockHeld, path)
		}
		time.Sleep(reclaimInterval)
	}
	defer func() {
		g.Close()
		os.Remove(guard)
	}()

	current, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock: %w", err)
	}
	if !bytes.Equal(current, stale) {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale lock: %w", err)
	}
	return nil
}

// create publishes a fully written lock file with a hard link, so a reader
// never observes an empty lock from a process still writing its PID.
func (m *Manager) create(path string) error {
	tmp, err := os.CreateTemp(m.dir, ".lock-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.WriteString(strconv.Itoa(m.pid) + "\n")
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}

	return os.Link(tmp.Name(), path)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := parsePID(data)
	if err != nil {
		return 0, fmt.Errorf("malformed lock %s", path)
	}
	return pid, nil
}

func parsePID(data []byte) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d", pid)
	}
	return pid, nil
}
