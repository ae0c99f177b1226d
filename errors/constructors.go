package errors

import (
	stderrors "errors"
	"fmt"
	"os/exec"
)

// AlreadyLocked creates an error for a manual lock request on a directory that
// already holds a manual lock. The existing owner and reason ride along as details
// so callers can surface them.
func AlreadyLocked(dir, by, reason string) *WardenError {
	err := New(ErrCodeAlreadyLocked, fmt.Sprintf("directory already manually locked: %s", dir)).
		WithDetail("directory", dir)
	if by != "" {
		err = err.WithDetail("by", by)
	}
	if reason != "" {
		err = err.WithDetail("reason", reason)
	}
	return err
}

// NoManualLock creates an error for a manual unlock on a directory with no manual lock.
func NoManualLock(dir string) *WardenError {
	return New(ErrCodeNoManualLock, fmt.Sprintf("no manual lock on directory: %s", dir)).
		WithDetail("directory", dir)
}

// AdapterUnavailable creates an error for an adapter whose discovery call failed.
func AdapterUnavailable(adapter string, cause error) *WardenError {
	return Wrap(cause, ErrCodeAdapterUnavailable, fmt.Sprintf("adapter '%s' unavailable", adapter)).
		WithDetail("adapter", adapter)
}

// UnknownAdapter creates an error for a reference to an adapter kind that is not registered.
func UnknownAdapter(adapter string) *WardenError {
	return New(ErrCodeAdapterUnknown, fmt.Sprintf("unknown adapter '%s'", adapter)).
		WithDetail("adapter", adapter)
}

// SessionNotFound creates an error for an operation on a session id nobody tracks.
func SessionNotFound(id string) *WardenError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("session '%s' not found", id)).
		WithDetail("session_id", id)
}

// StateCorrupt creates an error for a persisted document that failed to parse.
func StateCorrupt(document string, cause error) *WardenError {
	return Wrap(cause, ErrCodeStateCorrupt, fmt.Sprintf("persisted document %s is corrupt", document)).
		WithDetail("document", document)
}

// FuseNotFound creates an error for a fuse operation on a directory with no armed fuse.
func FuseNotFound(dir string) *WardenError {
	return New(ErrCodeFuseNotFound, fmt.Sprintf("no fuse armed for directory: %s", dir)).
		WithDetail("directory", dir)
}

// FuseActionFailed creates an error for an expiry action that did not complete.
// These are logged and swallowed, never propagated.
func FuseActionFailed(kind, dir string, cause error) *WardenError {
	return Wrap(cause, ErrCodeFuseActionFailed, fmt.Sprintf("fuse %s action failed for %s", kind, dir)).
		WithDetail("action", kind).
		WithDetail("directory", dir)
}

// DaemonUnavailable creates an error for a command that needs the daemon when it is not running.
func DaemonUnavailable(cause error) *WardenError {
	return Wrap(cause, ErrCodeDaemonUnavailable, "warden daemon is not running")
}

// LaunchFailed creates an error for an agent launch that did not start.
func LaunchFailed(adapter string, cause error) *WardenError {
	return Wrap(cause, ErrCodeLaunchFailed, fmt.Sprintf("failed to launch '%s' session", adapter)).
		WithDetail("adapter", adapter)
}

// ConfigNotFound creates an error for a config path with no file behind it.
func ConfigNotFound(path string) *WardenError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("no config file at %s", path)).
		WithDetail("path", path)
}

// CommandFailed creates an error for an external command that exited badly.
// The exit code rides along as a detail when one exists.
func CommandFailed(cmd string, cause error) *WardenError {
	err := Wrap(cause, ErrCodeCommandFailed, fmt.Sprintf("command '%s' failed", cmd)).
		WithDetail("command", cmd)
	var exitErr *exec.ExitError
	if stderrors.As(cause, &exitErr) {
		err = err.WithDetail("exit_code", exitErr.ExitCode())
	}
	return err
}
