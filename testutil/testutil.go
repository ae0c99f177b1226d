// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os/exec"
	"testing"
	"time"
)

// RequireTmux skips the test if no tmux binary is on PATH.
func RequireTmux(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available")
	}
}

// DeadPID returns a pid that belonged to an already-reaped process, so
// liveness probes against it fail.
func DeadPID(t *testing.T) int {
	t.Helper()

	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start child: %v", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	return pid
}

// RandomString returns n hex characters for names that must not collide
// across parallel test runs, such as tmux socket names.
func RandomString(n int) string {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)[:n]
}

// WaitFor polls cond until it returns true or the timeout passes, then fails
// the test with msg. Use it for assertions about goroutine side effects.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}
