package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DaemonStatusValue represents the health state of the daemon.
type DaemonStatusValue string

const (
	// StatusRunning means the PID file exists and the process is alive.
	StatusRunning DaemonStatusValue = "running"
	// StatusStopped means no PID file exists.
	StatusStopped DaemonStatusValue = "stopped"
	// StatusStale means the PID file exists but the process is dead.
	StatusStale DaemonStatusValue = "stale"
)

// ErrAlreadyRunning is returned by AcquirePIDFile when a live daemon owns
// the PID file.
var ErrAlreadyRunning = errors.New("irgate already running")

// errStopTimeout is returned when the daemon outlives the stop wait.
var errStopTimeout = errors.New("daemon did not exit in time")

// AcquirePIDFile creates the PID file exclusively and writes pid into it.
// A file left behind by a dead process is replaced. The returned release
// removes the file; it is safe to call more than once.
func AcquirePIDFile(path string, pid int) (release func(), err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create PID dir: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // PID file path is controlled by the application
		if errors.Is(err, os.ErrExist) {
			owner, rerr := ReadPIDFile(path)
			if rerr == nil && owner != pid && IsProcessAlive(owner) {
				return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, owner)
			}
			if err := RemovePIDFile(path); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create PID file %s: %w", path, err)
		}
		_, werr := f.WriteString(strconv.Itoa(pid))
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(path)
			return nil, fmt.Errorf("write PID file %s: %w", path, werr)
		}
		return func() { _ = RemovePIDFile(path) }, nil
	}
	return nil, fmt.Errorf("create PID file %s: %w", path, os.ErrExist)
}

// ReadPIDFile reads and parses the PID from the given file path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // PID file path is controlled by the application
	if err != nil {
		return 0, fmt.Errorf("read PID file %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID from %s: %w", path, err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file. It is idempotent.
func RemovePIDFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove PID file %s: %w", path, err)
	}
	return nil
}

// IsProcessAlive checks whether a process with the given PID is running.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 only checks for existence.
	return proc.Signal(syscall.Signal(0)) == nil
}

// DaemonStatus checks the daemon PID file and process liveness.
// Returns the status, the PID (0 if stopped), and any unexpected error.
func DaemonStatus(pidPath string) (status DaemonStatusValue, pid int, err error) {
	pid, err = ReadPIDFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StatusStopped, 0, nil
		}
		return StatusStopped, 0, fmt.Errorf("daemon status: %w", err)
	}
	if IsProcessAlive(pid) {
		return StatusRunning, pid, nil
	}
	return StatusStale, pid, nil
}

// StopDaemon sends SIGTERM to the daemon named by the PID file and waits
// up to wait for it to exit.
func StopDaemon(pidPath string, wait time.Duration) (int, error) {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return 0, fmt.Errorf("stop daemon: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return pid, fmt.Errorf("send SIGTERM to PID %d: %w", pid, err)
	}

	deadline := time.Now().Add(wait)
	for IsProcessAlive(pid) {
		if time.Now().After(deadline) {
			return pid, fmt.Errorf("%w: pid %d", errStopTimeout, pid)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return pid, nil
}

// SetupSignalHandler cancels the returned context on SIGTERM or SIGINT.
// SIGHUP calls onHangup, if set, and keeps running. stop releases the
// signal handlers; callers should defer it.
func SetupSignalHandler(parent context.Context, onHangup func()) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					if onHangup != nil {
						onHangup()
					}
					continue
				}
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return ctx, cancel
}
