package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func withTempPIDPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wikibridge", "daemon.pid")
	orig := PIDPath
	PIDPath = func() string { return path }
	t.Cleanup(func() { PIDPath = orig })
	return path
}

func TestWriteAndReadPID(t *testing.T) {
	withTempPIDPath(t)

	if err := WritePID(); err != nil {
		t.Fatalf("WritePID failed: %v", err)
	}
	pid, err := ReadPID()
	if err != nil {
		t.Fatalf("ReadPID failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestReadPIDMissing(t *testing.T) {
	withTempPIDPath(t)

	if _, err := ReadPID(); err == nil {
		t.Error("ReadPID should fail when no PID file exists")
	}
}

func TestReadPIDInvalid(t *testing.T) {
	path := withTempPIDPath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadPID(); err == nil {
		t.Error("ReadPID should fail on garbage content")
	}
}

func TestRemovePID(t *testing.T) {
	path := withTempPIDPath(t)

	if err := WritePID(); err != nil {
		t.Fatalf("WritePID failed: %v", err)
	}
	if err := RemovePID(); err != nil {
		t.Fatalf("RemovePID failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("PID file should be gone, stat err = %v", err)
	}
	if err := RemovePID(); err != nil {
		t.Errorf("RemovePID on missing file should be a no-op, got %v", err)
	}
}

func TestIsRunningCurrentProcess(t *testing.T) {
	withTempPIDPath(t)

	if err := WritePID(); err != nil {
		t.Fatalf("WritePID failed: %v", err)
	}
	running, pid, started := IsRunning()
	if !running {
		t.Fatal("IsRunning should report the current process as alive")
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	if started.IsZero() {
		t.Error("start time should come from the PID file mtime")
	}
}

func TestIsRunningCleansStalePIDFile(t *testing.T) {
	path := withTempPIDPath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	// Beyond the kernel's default pid_max, so no such process exists.
	if err := os.WriteFile(path, []byte("99999999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	running, _, _ := IsRunning()
	if running {
		t.Fatal("a dead PID should not count as running")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("stale PID file should be removed, stat err = %v", err)
	}
}
