// Package pidfile provides PID file management for wardend.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/pkg/process"
)

// Acquire writes the current PID to the file. A live PID already in the
// file means another daemon owns it; a dead one is cleaned up.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	if pid, err := Read(path); err == nil {
		if process.Alive(pid) {
			return errors.New(errors.ErrCodeDaemonRunning,
				fmt.Sprintf("daemon already running with PID %d", pid)).
				WithDetail("pid", pid)
		}
		// Stale file from a dead daemon.
		_ = os.Remove(path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the PID file. A missing file is not an error; shutdown
// paths may release twice.
func Release(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Read returns the PID recorded in the file.
func Read(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}

// IsRunning reports whether the daemon named by the pidfile is alive,
// returning its PID when the file parses.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	switch {
	case os.IsNotExist(err):
		return false, 0, nil
	case err != nil:
		return false, 0, err
	}
	return process.Alive(pid), pid, nil
}
