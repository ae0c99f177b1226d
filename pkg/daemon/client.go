// Package daemon provides a client for talking to wardend. It implements a
// transparent fallback pattern: when the daemon is running, calls go over
// its unix socket; when it is not, reads fall back to direct library calls
// and mutations report the daemon as unavailable.
package daemon

import (
	"context"

	"github.com/wardentools/warden/pkg/models"
)

// Client is the daemon surface the CLI and TUI program against. Both
// RemoteClient (HTTP over the unix socket) and LocalClient (in-process
// reads) implement it.
type Client interface {
	// Health reports the daemon's liveness and version.
	Health(ctx context.Context) (*models.HealthResponse, error)

	// State returns the full snapshot: sessions, locks, fuses, version.
	State(ctx context.Context) (*models.StateResponse, error)

	// Sessions returns all tracked sessions, newest first.
	Sessions(ctx context.Context) ([]models.SessionRecord, error)

	// Locks returns all directory locks.
	Locks(ctx context.Context) ([]models.Lock, error)

	// Fuses returns all armed fuses.
	Fuses(ctx context.Context) ([]models.FuseTimer, error)

	// Metrics returns the daemon's counters snapshot.
	Metrics(ctx context.Context) (*models.MetricsSnapshot, error)

	// Launch starts an agent session through the daemon.
	Launch(ctx context.Context, req models.LaunchRequest) (*models.SessionRecord, error)

	// Stop terminates a session.
	Stop(ctx context.Context, req models.StopRequest) (*models.SessionRecord, error)

	// Resume sends a follow-up message into a session.
	Resume(ctx context.Context, req models.ResumeRequest) (*models.SessionRecord, error)

	// Peek returns the tail of a session's transcript.
	Peek(ctx context.Context, sessionID string, lines int) ([]string, error)

	// Resolve asks for one placeholder id to be resolved now.
	Resolve(ctx context.Context, sessionID string) (*models.ResolveResponse, error)

	// ManualLock places an operator lock on a directory.
	ManualLock(ctx context.Context, req models.ManualLockRequest) (*models.Lock, error)

	// ManualUnlock removes an operator lock.
	ManualUnlock(ctx context.Context, directory string) error

	// SetFuse arms (or replaces) a fuse.
	SetFuse(ctx context.Context, req models.FuseSetRequest) (*models.FuseTimer, error)

	// ExtendFuse re-arms an existing fuse.
	ExtendFuse(ctx context.Context, req models.FuseExtendRequest) (*models.FuseTimer, error)

	// CancelFuse disarms and removes a fuse.
	CancelFuse(ctx context.Context, directory string) error

	// StreamState subscribes to real-time updates. The channel closes when
	// the context is cancelled or the connection drops. Only available
	// against a running daemon.
	StreamState(ctx context.Context) (<-chan StateUpdate, error)

	// IsRunning reports whether a daemon is available and responding.
	IsRunning() bool

	// Close releases client resources.
	Close() error
}

// StateUpdate is one frame of the daemon's stream: a full snapshot on
// connect, then one frame per bus event.
type StateUpdate struct {
	Type  string                `json:"type"`
	State *models.StateResponse `json:"state,omitempty"`
	Event *models.Event         `json:"event,omitempty"`
}
