// Package daemon manages the background interval-sync process through a PID
// file: one daemon per user, stopped with SIGTERM.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
)

// PIDPath returns the PID file location
// Uses the XDG state directory
// Can be overridden for testing
var PIDPath = func() string {
	return filepath.Join(xdg.StateHome, "wikibridge", "daemon.pid")
}

// WritePID claims the PID file for the current process.
func WritePID() error {
	path := PIDPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	content := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// ReadPID reads the daemon PID from the PID file.
func ReadPID() (int, error) {
	content, err := os.ReadFile(PIDPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("daemon not running (PID file not found)")
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// RemovePID removes the PID file. Missing is not an error.
func RemovePID() error {
	if err := os.Remove(PIDPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the daemon process is alive, with its PID and an
// approximate start time taken from the PID file. A PID file whose process is
// gone is stale and gets cleaned up.
func IsRunning() (bool, int, time.Time) {
	pid, err := ReadPID()
	if err != nil {
		return false, 0, time.Time{}
	}

	if !processAlive(pid) {
		if err := RemovePID(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to remove stale PID file: %v\n", err)
		}
		return false, 0, time.Time{}
	}

	var started time.Time
	if info, err := os.Stat(PIDPath()); err == nil {
		started = info.ModTime()
	}
	return true, pid, started
}

// processAlive probes pid with signal 0, which tests existence without
// delivering anything.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Stop asks the running daemon to shut down with SIGTERM.
func Stop() error {
	running, pid, _ := IsRunning()
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}
	return nil
}

// Daemonize re-executes the current binary detached from the terminal with
// the given arguments.
func Daemonize(args []string) error {
	if running, pid, _ := IsRunning(); running {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to release daemon process: %w", err)
	}
	return nil
}
