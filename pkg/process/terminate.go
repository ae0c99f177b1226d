package process

import (
	"os"
	"syscall"
	"time"
)

// Terminate asks a process to exit with SIGTERM and escalates to SIGKILL if
// it is still alive when the timeout elapses. Returns nil once the process is
// gone (or was already gone).
func Terminate(pid int, timeout time.Duration) error {
	if !Alive(pid) {
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Already exited between the liveness check and the signal.
		if !Alive(pid) {
			return nil
		}
		return err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return Kill(pid)
}

// Kill sends SIGKILL to the process's group when possible, falling back to
// the single process. Agent CLIs spawn children (shells, MCP servers) that
// should die with the session.
func Kill(pid int) error {
	if !Alive(pid) {
		return nil
	}

	// Negative pid targets the process group. Launches made by warden run
	// in their own group via Setsid.
	if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil {
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Kill(); err != nil && Alive(pid) {
		return err
	}
	return nil
}
