package process

import (
	"errors"
	"os"
	"syscall"
)

// Alive reports whether pid names a live process. Signal 0 probes
// existence without delivering anything.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		// FindProcess only fails on Windows.
		return false
	}

	switch err := proc.Signal(syscall.Signal(0)); {
	case err == nil:
		return true
	case errors.Is(err, os.ErrProcessDone):
		return false
	default:
		// EPERM still proves existence, as for an agent running under
		// another uid.
		return errors.Is(err, syscall.EPERM)
	}
}
