// Package tmux wraps the tmux CLI for launching and inspecting agent
// sessions. Everything shells out through the command builder; a dedicated
// server socket (-L) keeps warden's sessions off the user's default server
// when one is configured.
package tmux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/wardentools/warden/command"
	"github.com/wardentools/warden/errors"
)

// Client shells out to one tmux server, addressed by socket name.
type Client struct {
	builder *command.SafeBuilder
	socket  string
}

// NewClient connects to the default server, or to WARDEN_TMUX_SOCKET when
// set. Tests set the variable so spawned sessions land on the isolated
// server the test controls.
func NewClient() (*Client, error) {
	return NewClientWithSocket(os.Getenv("WARDEN_TMUX_SOCKET"))
}

// NewClientWithSocket connects to the dedicated server named by socket. An
// empty socket means the default server.
func NewClientWithSocket(socket string) (*Client, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, fmt.Errorf("tmux not found in PATH: %w", err)
	}
	return &Client{builder: command.NewSafeBuilder(), socket: socket}, nil
}

// Socket returns the server socket name, empty for the default server.
func (c *Client) Socket() string { return c.socket }

// KillServer shuts down this client's tmux server. On the default socket
// that is the user's own server, so callers stick to dedicated sockets.
func (c *Client) KillServer(ctx context.Context) error {
	out, err := c.run(ctx, "kill-server")
	if err != nil && strings.Contains(out, "no server running") {
		return nil
	}
	return err
}

// run executes one tmux command and returns its combined output. Failures
// come back coded, with the trimmed output attached as a detail.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	if c.socket != "" {
		args = append([]string{"-L", c.socket}, args...)
	}

	cmd, err := c.builder.Build(ctx, "tmux", args...)
	if err != nil {
		return "", err
	}

	out, err := cmd.Exec().CombinedOutput()
	if err != nil {
		return string(out), errors.CommandFailed("tmux "+strings.Join(args, " "), err).
			WithDetail("output", strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
