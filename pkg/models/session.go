package models

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionStatus describes the lifecycle state of a supervised agent session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusIdle      SessionStatus = "idle"
	StatusPending   SessionStatus = "pending"
	StatusStopped   SessionStatus = "stopped"
	StatusError     SessionStatus = "error"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// IsTerminal reports whether the status marks a session that will not come back.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusStopped, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// PlaceholderPrefix marks session ids the daemon invented at launch time,
// before the agent's own session id could be read from its output.
const PlaceholderPrefix = "pending-"

// NewPlaceholderID returns a fresh synthetic session id for a launch whose
// real id has not resolved yet.
func NewPlaceholderID() string {
	return PlaceholderPrefix + ulid.Make().String()
}

// IsPlaceholderID reports whether id is a daemon-invented placeholder.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// TokenUsage counts tokens consumed by a session.
type TokenUsage struct {
	In  int64 `json:"input"`
	Out int64 `json:"output"`
}

// SessionRecord is the daemon's durable view of one agent session. Adapter
// discovery is authoritative for the live fields (status, pid, directory,
// usage); the launch metadata fields survive as fallback when an adapter does
// not report them.
type SessionRecord struct {
	ID      string        `json:"id"`
	Adapter string        `json:"adapter"`
	Status  SessionStatus `json:"status"`

	PID       int        `json:"pid,omitempty"`
	Directory string     `json:"directory,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`

	Model  string      `json:"model,omitempty"`
	Prompt string      `json:"prompt,omitempty"`
	Spec   string      `json:"spec,omitempty"`
	Group  string      `json:"group,omitempty"`
	Tokens *TokenUsage `json:"tokens,omitempty"`
	Cost   float64     `json:"cost,omitempty"`

	// DaemonLaunched marks records created by warden's own launch path, as
	// opposed to sessions first seen through discovery. Only these are
	// eligible for the dead-launch sweep.
	DaemonLaunched bool `json:"daemon_launched,omitempty"`

	// TmuxTarget names the tmux session warden launched this agent into,
	// when tmux launch is configured for the adapter.
	TmuxTarget string `json:"tmux_target,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IsPlaceholder reports whether the record still carries a synthetic launch id.
func (s *SessionRecord) IsPlaceholder() bool {
	return IsPlaceholderID(s.ID)
}

// Clone returns a deep copy so callers can hand records out without exposing
// internal state to mutation.
func (s *SessionRecord) Clone() *SessionRecord {
	if s == nil {
		return nil
	}
	clone := *s
	if s.StoppedAt != nil {
		t := *s.StoppedAt
		clone.StoppedAt = &t
	}
	if s.ExitCode != nil {
		c := *s.ExitCode
		clone.ExitCode = &c
	}
	if s.Tokens != nil {
		u := *s.Tokens
		clone.Tokens = &u
	}
	if s.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// DiscoveredSession is one entry of an adapter's discovery report: what the
// agent tooling itself says is (or was) running.
type DiscoveredSession struct {
	ID        string        `json:"id"`
	Adapter   string        `json:"adapter"`
	Status    SessionStatus `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Directory string        `json:"directory,omitempty"`
	Model     string        `json:"model,omitempty"`
	Prompt    string        `json:"prompt,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	StoppedAt *time.Time    `json:"stopped_at,omitempty"`
	Tokens    *TokenUsage   `json:"tokens,omitempty"`
	Cost      float64       `json:"cost,omitempty"`

	// NativeMetadata carries adapter-specific fields warden does not model.
	NativeMetadata map[string]interface{} `json:"native_metadata,omitempty"`
}
