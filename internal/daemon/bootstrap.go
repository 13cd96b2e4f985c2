package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartDetached re-executes the current binary with args in a new
// session, detached from the terminal. Output goes to logPath when set.
// Returns the child PID.
func StartDetached(logPath string, args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	cmd.Stdin = nil

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return 0, fmt.Errorf("open daemon log: %w", err)
		}
		defer f.Close()
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The child outlives us; don't keep a handle to reap it.
	_ = cmd.Process.Release()
	return pid, nil
}

// StopProcess asks pid to shut down with SIGTERM.
func StopProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
