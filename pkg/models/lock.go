package models

import "time"

// LockType distinguishes daemon-managed session locks from operator locks.
type LockType string

const (
	// LockAuto is held on a session's working directory for the session's
	// lifetime and released when the session stops.
	LockAuto LockType = "auto"
	// LockManual is placed by an operator and survives until explicitly
	// removed. A manual lock dominates any auto locks on the same directory.
	LockManual LockType = "manual"
)

// Lock guards one canonicalized directory against concurrent agent work.
// Auto locks carry the owning session id; manual locks carry who placed
// them and why.
type Lock struct {
	Directory string   `json:"directory"`
	Type      LockType `json:"type"`

	SessionID string `json:"session_id,omitempty"`

	By     string `json:"by,omitempty"`
	Reason string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
