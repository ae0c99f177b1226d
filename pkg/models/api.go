package models

import (
	"time"
)

// LaunchRequest asks the daemon to start a new agent session.
type LaunchRequest struct {
	Adapter   string   `json:"adapter"`
	Directory string   `json:"directory"`
	Prompt    string   `json:"prompt,omitempty"`
	Model     string   `json:"model,omitempty"`
	Spec      string   `json:"spec,omitempty"`
	Group     string   `json:"group,omitempty"`
	Args      []string `json:"args,omitempty"`
	// Tmux forces a tmux launch even when the adapter config leaves it off.
	Tmux bool `json:"tmux,omitempty"`
}

// LaunchResponse returns the freshly created record. The id is usually a
// placeholder until discovery resolves the agent's own session id.
type LaunchResponse struct {
	Session SessionRecord `json:"session"`
}

// StopRequest asks the daemon to stop a session.
type StopRequest struct {
	SessionID string `json:"session_id"`
	// Force skips the graceful TERM-then-KILL escalation and kills outright.
	Force bool `json:"force,omitempty"`
}

// ResumeRequest sends a follow-up message into an existing session.
type ResumeRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// PeekResponse carries the tail of one session's transcript.
type PeekResponse struct {
	SessionID string   `json:"session_id"`
	Lines     []string `json:"lines"`
}

// ManualLockRequest places an operator lock on a directory.
type ManualLockRequest struct {
	Directory string `json:"directory"`
	By        string `json:"by,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ManualUnlockRequest removes an operator lock.
type ManualUnlockRequest struct {
	Directory string `json:"directory"`
}

// FuseSetRequest arms (or replaces) the fuse for a directory. TTL is a
// duration string ("30m", "2h"); empty means the configured default.
type FuseSetRequest struct {
	Directory string       `json:"directory"`
	SessionID string       `json:"session_id,omitempty"`
	TTL       string       `json:"ttl,omitempty"`
	Label     string       `json:"label,omitempty"`
	OnExpire  *FuseActions `json:"on_expire,omitempty"`
}

// FuseExtendRequest re-arms an existing fuse. Empty TTL reuses the fuse's
// previous TTL.
type FuseExtendRequest struct {
	Directory string `json:"directory"`
	TTL       string `json:"ttl,omitempty"`
}

// FuseCancelRequest disarms and removes a fuse.
type FuseCancelRequest struct {
	Directory string `json:"directory"`
}

// ResolveRequest asks the daemon to try resolving one placeholder id on
// demand, ahead of the periodic sweep.
type ResolveRequest struct {
	SessionID string `json:"session_id"`
}

// ResolveResponse reports the outcome of a resolution attempt.
type ResolveResponse struct {
	Resolved bool   `json:"resolved"`
	OldID    string `json:"old_id,omitempty"`
	NewID    string `json:"new_id,omitempty"`
}

// StateResponse is the full daemon state snapshot served to clients.
type StateResponse struct {
	Sessions []SessionRecord `json:"sessions"`
	Locks    []Lock          `json:"locks"`
	Fuses    []FuseTimer     `json:"fuses"`
	Version  int             `json:"version"`
}

// HealthResponse answers the daemon health probe.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// MetricsSnapshot aggregates counters for the metrics endpoint.
type MetricsSnapshot struct {
	SessionsTotal   int `json:"sessions_total"`
	SessionsRunning int `json:"sessions_running"`
	SessionsPending int `json:"sessions_pending"`
	SessionsStopped int `json:"sessions_stopped"`

	LocksManual int `json:"locks_manual"`
	LocksAuto   int `json:"locks_auto"`

	FusesActive int `json:"fuses_active"`

	ReconcileRounds int64          `json:"reconcile_rounds"`
	AdapterErrors   map[string]int `json:"adapter_errors,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}
