package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"
)

// deadPID is far above pid_max on any Linux host.
const deadPID = 99999999

func TestAcquirePIDFile(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "run", "irgate.pid")

	t.Run("creates the directory and writes the pid", func(t *testing.T) {
		release, err := AcquirePIDFile(pidFile, os.Getpid())
		if err != nil {
			t.Fatalf("AcquirePIDFile failed: %v", err)
		}
		data, err := os.ReadFile(pidFile) //nolint:gosec // test file, path is from t.TempDir
		if err != nil {
			t.Fatalf("reading PID file: %v", err)
		}
		if got, _ := strconv.Atoi(string(data)); got != os.Getpid() {
			t.Errorf("PID file contains %d, want %d", got, os.Getpid())
		}
		release()
		release()
		if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
			t.Errorf("PID file still present after release: %v", err)
		}
	})

	t.Run("refuses a live owner", func(t *testing.T) {
		// The test process itself plays the running daemon.
		if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}
		defer os.Remove(pidFile)

		_, err := AcquirePIDFile(pidFile, os.Getpid()+1)
		if !errors.Is(err, ErrAlreadyRunning) {
			t.Fatalf("AcquirePIDFile err = %v, want ErrAlreadyRunning", err)
		}
	})

	t.Run("replaces a stale file", func(t *testing.T) {
		if err := os.WriteFile(pidFile, []byte(strconv.Itoa(deadPID)), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}
		release, err := AcquirePIDFile(pidFile, os.Getpid())
		if err != nil {
			t.Fatalf("AcquirePIDFile over stale file: %v", err)
		}
		defer release()
		if got, _ := ReadPIDFile(pidFile); got != os.Getpid() {
			t.Errorf("PID file contains %d, want %d", got, os.Getpid())
		}
	})

	t.Run("replaces garbage", func(t *testing.T) {
		if err := os.WriteFile(pidFile, []byte("notanumber"), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}
		release, err := AcquirePIDFile(pidFile, os.Getpid())
		if err != nil {
			t.Fatalf("AcquirePIDFile over garbage: %v", err)
		}
		release()
	})
}

func TestPIDFileHelpers(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("ReadPIDFile tolerates a trailing newline", func(t *testing.T) {
		path := filepath.Join(tmpDir, "nl.pid")
		if err := os.WriteFile(path, []byte("12345\n"), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}
		got, err := ReadPIDFile(path)
		if err != nil {
			t.Fatalf("ReadPIDFile failed: %v", err)
		}
		if got != 12345 {
			t.Errorf("ReadPIDFile = %d, want 12345", got)
		}
	})

	t.Run("ReadPIDFile rejects non-numeric content", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bad.pid")
		if err := os.WriteFile(path, []byte("notanumber"), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}
		if _, err := ReadPIDFile(path); err == nil {
			t.Fatal("expected error for non-numeric PID")
		}
	})

	t.Run("RemovePIDFile is idempotent", func(t *testing.T) {
		if err := RemovePIDFile(filepath.Join(tmpDir, "missing.pid")); err != nil {
			t.Errorf("RemovePIDFile on missing file: %v", err)
		}
	})

	t.Run("IsProcessAlive", func(t *testing.T) {
		if !IsProcessAlive(os.Getpid()) {
			t.Error("own process reported dead")
		}
		if IsProcessAlive(0) || IsProcessAlive(-1) || IsProcessAlive(deadPID) {
			t.Error("invalid pid reported alive")
		}
	})
}

func TestDaemonStatus(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "irgate.pid")

	status, pid, err := DaemonStatus(pidFile)
	if err != nil || status != StatusStopped || pid != 0 {
		t.Errorf("missing file: got (%s, %d, %v), want stopped", status, pid, err)
	}

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		t.Fatal(err)
	}
	status, pid, err = DaemonStatus(pidFile)
	if err != nil || status != StatusRunning || pid != os.Getpid() {
		t.Errorf("own pid: got (%s, %d, %v), want running", status, pid, err)
	}

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(deadPID)), 0o600); err != nil {
		t.Fatal(err)
	}
	status, _, err = DaemonStatus(pidFile)
	if err != nil || status != StatusStale {
		t.Errorf("dead pid: got (%s, %v), want stale", status, err)
	}

	if _, err := StopDaemon(filepath.Join(tmpDir, "none.pid"), time.Second); err == nil {
		t.Error("StopDaemon without a PID file should fail")
	}
}

func TestSetupSignalHandler(t *testing.T) {
	hangups := make(chan struct{}, 1)
	ctx, stop := SetupSignalHandler(context.Background(), func() { hangups <- struct{}{} })
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatal(err)
	}
	select {
	case <-hangups:
	case <-time.After(2 * time.Second):
		t.Fatal("SIGHUP did not reach onHangup")
	}
	if ctx.Err() != nil {
		t.Fatal("SIGHUP cancelled the context")
	}

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("SIGTERM did not cancel the context")
	}
}

func TestSetupSignalHandlerStop(t *testing.T) {
	ctx, stop := SetupSignalHandler(context.Background(), nil)
	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by stop")
	}
}
