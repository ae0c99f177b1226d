// Package adapter defines how warden talks to one kind of agent CLI.
//
// An Adapter owns discovery and lifecycle for a single agent tool (claude,
// codex, ...). The daemon treats adapters as unreliable: discovery calls get
// a deadline, a failure is recorded rather than propagated, and an empty
// report is meaningful (no sessions) while an error means nothing can be
// concluded from it.
package adapter

import (
	"context"
	"time"

	"github.com/wardentools/warden/pkg/models"
)

// Adapter is the contract one agent kind implements.
type Adapter interface {
	// Name returns the adapter's configured name, the key under adapters:
	// in warden.yml.
	Name() string

	// Discover reports every session the agent tooling knows about, running
	// or recently stopped. An empty slice means none exist; an error means
	// the report could not be produced and existing records must stand.
	Discover(ctx context.Context) ([]models.DiscoveredSession, error)

	// IsAlive probes whether the session's process is still running.
	IsAlive(ctx context.Context, sessionID string) (bool, error)

	// Launch starts a new agent session. The returned ID is the agent's
	// native session id when it is knowable at spawn time, otherwise a
	// placeholder the tracker resolves once the agent writes its own id.
	Launch(ctx context.Context, opts LaunchOptions) (*LaunchResult, error)

	// Stop terminates a session's process.
	Stop(ctx context.Context, sessionID string, opts StopOptions) error

	// Resume delivers a follow-up message to an existing session.
	Resume(ctx context.Context, sessionID, message string) error

	// Peek returns the tail of the session's transcript.
	Peek(ctx context.Context, sessionID string, opts PeekOptions) ([]string, error)

	// Events streams lifecycle events parsed from session transcripts. The
	// stream starts lazily on first call and the channel closes when ctx is
	// cancelled.
	Events(ctx context.Context) (<-chan SessionEvent, error)
}

// LaunchOptions carries everything a launch request may specify.
type LaunchOptions struct {
	Directory string
	Prompt    string
	Model     string
	Spec      string
	Group     string

	// Args are extra CLI arguments appended after the adapter's configured ones.
	Args []string

	// Tmux forces a tmux launch even when the adapter default is a detached
	// process.
	Tmux bool
}

// LaunchResult reports what a launch produced.
type LaunchResult struct {
	ID  string
	PID int

	// TmuxTarget names the tmux session when the launch went through tmux.
	TmuxTarget string
}

// StopOptions controls how a session is terminated.
type StopOptions struct {
	// Force skips the graceful signal and kills immediately.
	Force bool

	// Grace is the wait between SIGTERM and SIGKILL. Zero means the
	// adapter's configured grace.
	Grace time.Duration
}

// PeekOptions controls how much transcript Peek returns.
type PeekOptions struct {
	// Lines is the number of lines from the end. Zero means DefaultPeekLines.
	Lines int
}

// DefaultPeekLines is how much transcript Peek returns when the caller does
// not say.
const DefaultPeekLines = 40

// SessionEvent is one lifecycle observation parsed from an agent transcript.
type SessionEvent struct {
	Adapter   string
	SessionID string
	Type      models.EventType
	Timestamp time.Time

	// Detail carries a short human-readable qualifier (result subtype,
	// error text).
	Detail string
}
