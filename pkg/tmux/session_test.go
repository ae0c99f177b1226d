package tmux

import (
	"context"
	"testing"
	"time"

	"github.com/wardentools/warden/pkg/process"
	"github.com/wardentools/warden/testutil"
)

// Round trip against a real tmux server on a dedicated socket. The socket
// name is random so parallel test runs never share a server.
func TestSessionRoundTrip(t *testing.T) {
	testutil.RequireTmux(t)

	client, err := NewClientWithSocket("warden-test-" + testutil.RandomString(8))
	if err != nil {
		t.Fatalf("NewClientWithSocket failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	t.Cleanup(func() {
		if err := client.KillServer(context.Background()); err != nil {
			t.Logf("kill-server: %v", err)
		}
	})

	name := SanitizeSessionName("Round Trip " + testutil.RandomString(6))
	pid, err := client.NewSession(ctx, LaunchSpec{
		SessionName: name,
		Directory:   t.TempDir(),
		Command:     []string{"sleep", "30"},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("Expected a positive pane pid, got %d", pid)
	}
	if !process.Alive(pid) {
		t.Errorf("Pane process %d should be alive", pid)
	}

	exists, err := client.SessionExists(ctx, name)
	if err != nil {
		t.Fatalf("SessionExists failed: %v", err)
	}
	if !exists {
		t.Error("Session should exist after creation")
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	found := false
	for _, s := range sessions {
		if s == name {
			found = true
		}
	}
	if !found {
		t.Errorf("ListSessions should include %q, got %v", name, sessions)
	}

	if err := client.KillSession(ctx, name); err != nil {
		t.Fatalf("KillSession failed: %v", err)
	}
	exists, err = client.SessionExists(ctx, name)
	if err != nil {
		t.Fatalf("SessionExists after kill failed: %v", err)
	}
	if exists {
		t.Error("Session should be gone after KillSession")
	}
}
