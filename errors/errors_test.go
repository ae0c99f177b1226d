package errors

import (
	"fmt"
	"testing"
)

func TestWardenError(t *testing.T) {
	err := New(ErrCodeSessionNotFound, "session not found")
	if err.Code != ErrCodeSessionNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeSessionNotFound, err.Code)
	}

	cause := fmt.Errorf("socket gone")
	wrapped := Wrap(cause, ErrCodeAdapterUnavailable, "adapter unavailable")
	if wrapped.Unwrap() != cause {
		t.Error("Unwrap lost the cause")
	}

	if !Is(wrapped, ErrCodeAdapterUnavailable) {
		t.Error("Is missed the wrapped code")
	}
	if Is(wrapped, ErrCodeSessionNotFound) {
		t.Error("Is matched a foreign code")
	}

	detailed := err.WithDetail("session_id", "abc").WithDetail("pid", 4242)
	if detailed.Details["session_id"] != "abc" {
		t.Error("WithDetail dropped the detail")
	}
}

func TestErrorConstructors(t *testing.T) {
	// AlreadyLocked carries the owner and reason as details.
	err := AlreadyLocked("/w/repo", "matt", "manual QA")
	if err.Code != ErrCodeAlreadyLocked {
		t.Errorf("expected code %s, got %s", ErrCodeAlreadyLocked, err.Code)
	}
	if err.Details["by"] != "matt" {
		t.Error("AlreadyLocked should include the owner detail")
	}
	if err.Details["reason"] != "manual QA" {
		t.Error("AlreadyLocked should include the reason detail")
	}

	// Empty owner and reason stay out of the details map.
	err = AlreadyLocked("/w/repo", "", "")
	if _, ok := err.Details["by"]; ok {
		t.Error("AlreadyLocked should omit empty owner")
	}

	err = NoManualLock("/w/repo")
	if err.Code != ErrCodeNoManualLock {
		t.Errorf("expected code %s, got %s", ErrCodeNoManualLock, err.Code)
	}
	if err.Details["directory"] != "/w/repo" {
		t.Error("NoManualLock should include directory detail")
	}

	// AdapterUnavailable preserves the cause for unwrapping.
	cause := fmt.Errorf("connect: no such file")
	err = AdapterUnavailable("claude", cause)
	if err.Unwrap() != cause {
		t.Error("AdapterUnavailable should wrap the cause")
	}
	if GetCode(err) != ErrCodeAdapterUnavailable {
		t.Errorf("GetCode = %s, want %s", GetCode(err), ErrCodeAdapterUnavailable)
	}

	// CommandFailed records the command; a plain cause has no exit code
	// worth recording.
	err = CommandFailed("tmux kill-server", fmt.Errorf("exec: not found"))
	if err.Details["command"] != "tmux kill-server" {
		t.Error("CommandFailed should record the command")
	}
	if _, ok := err.Details["exit_code"]; ok {
		t.Error("CommandFailed invented an exit code for a plain cause")
	}
}
