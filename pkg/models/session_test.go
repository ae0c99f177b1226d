package models

import (
	"testing"
	"time"
)

func TestPlaceholderIDs(t *testing.T) {
	id := NewPlaceholderID()
	if !IsPlaceholderID(id) {
		t.Errorf("Expected %q to be recognized as a placeholder", id)
	}

	other := NewPlaceholderID()
	if id == other {
		t.Error("Expected placeholder ids to be unique")
	}

	if IsPlaceholderID("claude-abc123") {
		t.Error("Expected a real session id not to be a placeholder")
	}

	record := SessionRecord{ID: id}
	if !record.IsPlaceholder() {
		t.Error("Expected record with placeholder id to report IsPlaceholder")
	}
}

func TestSessionStatusIsTerminal(t *testing.T) {
	terminal := []SessionStatus{StatusStopped, StatusCompleted, StatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	live := []SessionStatus{StatusRunning, StatusIdle, StatusPending, StatusError}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}
}

func TestSessionRecordClone(t *testing.T) {
	stopped := time.Now()
	exitCode := 1
	original := &SessionRecord{
		ID:        "claude-abc",
		Adapter:   "claude",
		Status:    StatusStopped,
		StoppedAt: &stopped,
		ExitCode:  &exitCode,
		Tokens:    &TokenUsage{In: 100, Out: 200},
		Metadata:  map[string]interface{}{"branch": "main"},
	}

	clone := original.Clone()

	if clone == original {
		t.Fatal("Clone returned the same pointer")
	}

	// Mutating the clone must not leak back into the original.
	*clone.StoppedAt = stopped.Add(time.Hour)
	*clone.ExitCode = 2
	clone.Tokens.In = 999
	clone.Metadata["branch"] = "other"

	if !original.StoppedAt.Equal(stopped) {
		t.Error("Clone shares StoppedAt with the original")
	}
	if *original.ExitCode != 1 {
		t.Error("Clone shares ExitCode with the original")
	}
	if original.Tokens.In != 100 {
		t.Error("Clone shares Tokens with the original")
	}
	if original.Metadata["branch"] != "main" {
		t.Error("Clone shares Metadata with the original")
	}
}

func TestFuseTimerRemaining(t *testing.T) {
	now := time.Now()
	fuse := &FuseTimer{ExpiresAt: now.Add(10 * time.Minute)}

	if got := fuse.Remaining(now); got != 10*time.Minute {
		t.Errorf("Expected 10m remaining, got %v", got)
	}

	overdue := &FuseTimer{ExpiresAt: now.Add(-time.Minute)}
	if got := overdue.Remaining(now); got >= 0 {
		t.Errorf("Expected negative remaining for an overdue fuse, got %v", got)
	}
}
