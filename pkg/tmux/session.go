package tmux

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// LaunchSpec describes a detached session to create.
type LaunchSpec struct {
	SessionName string
	Directory   string
	Env         []string // KEY=VALUE pairs set in the new session's environment
	Command     []string // argv run in the first pane; empty starts a shell
}

// NewSession creates a detached session and returns the PID of the process
// running in its first pane.
func (c *Client) NewSession(ctx context.Context, spec LaunchSpec) (int, error) {
	if spec.SessionName == "" {
		return 0, fmt.Errorf("session name is required")
	}

	args := []string{"new-session", "-d", "-P", "-F", "#{pane_pid}", "-s", spec.SessionName}
	if spec.Directory != "" {
		args = append(args, "-c", spec.Directory)
	}
	for _, e := range spec.Env {
		args = append(args, "-e", e)
	}
	args = append(args, spec.Command...)

	output, err := c.run(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil {
		return 0, fmt.Errorf("parse pane pid from %q: %w", output, err)
	}
	return pid, nil
}

// SessionExists reports whether a session with exactly this name is alive.
// The = prefix stops tmux from prefix-matching the name.
func (c *Client) SessionExists(ctx context.Context, name string) (bool, error) {
	_, err := c.run(ctx, "has-session", "-t", "="+name)
	switch {
	case err == nil:
		return true, nil
	case strings.Contains(err.Error(), "exit status 1"):
		// has-session exits 1 for an unknown name.
		return false, nil
	}
	return false, err
}

func (c *Client) KillSession(ctx context.Context, name string) error {
	_, err := c.run(ctx, "kill-session", "-t", "="+name)
	return err
}

// CapturePane returns the pane's current content. ANSI sequences are kept
// so peeked output renders with the agent's own colors.
func (c *Client) CapturePane(ctx context.Context, target string) (string, error) {
	return c.run(ctx, "capture-pane", "-e", "-p", "-t", target)
}

func (c *Client) SendKeys(ctx context.Context, target string, keys ...string) error {
	args := append([]string{"send-keys", "-t", target}, keys...)
	_, err := c.run(ctx, args...)
	return err
}

// ListSessions returns the names of all sessions on this server. A missing
// server means no sessions, not an error.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	output, err := c.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if strings.Contains(err.Error(), "no server running") ||
			strings.Contains(err.Error(), "exit status 1") {
			return []string{}, nil
		}
		return nil, err
	}
	return strings.Split(strings.TrimSpace(output), "\n"), nil
}

// PanePID returns the PID of the process in a session's active pane. After
// a pane respawn this is the live process, not the one launched first.
func (c *Client) PanePID(ctx context.Context, name string) (int, error) {
	output, err := c.run(ctx, "display-message", "-p", "-t", "="+name, "#{pane_pid}")
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil {
		return 0, fmt.Errorf("parse pane pid from %q: %w", output, err)
	}
	return pid, nil
}
