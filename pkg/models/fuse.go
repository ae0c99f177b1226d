package models

import "time"

// FuseActions lists what happens when a fuse burns down. Each configured
// action runs independently and best-effort.
type FuseActions struct {
	// Run is a shell command executed with the fuse's directory as working
	// directory.
	Run string `json:"run,omitempty"`
	// Webhook receives a POST with a FuseExpiredPayload body.
	Webhook string `json:"webhook,omitempty"`
	// Event is published on the daemon event bus under this name.
	Event string `json:"event,omitempty"`
}

// FuseTimer is a persisted per-directory TTL timer. At most one fuse exists
// per directory; re-arming replaces the previous one.
type FuseTimer struct {
	Directory string        `json:"directory"`
	SessionID string        `json:"session_id,omitempty"`
	Label     string        `json:"label,omitempty"`
	TTL       time.Duration `json:"ttl"`
	ExpiresAt time.Time     `json:"expires_at"`
	CreatedAt time.Time     `json:"created_at"`
	OnExpire  *FuseActions  `json:"on_expire,omitempty"`
}

// Remaining returns how long until the fuse fires, measured from now.
// Negative values mean the fuse is overdue.
func (f *FuseTimer) Remaining(now time.Time) time.Duration {
	return f.ExpiresAt.Sub(now)
}

// Clone returns a copy safe to hand to callers.
func (f *FuseTimer) Clone() *FuseTimer {
	if f == nil {
		return nil
	}
	clone := *f
	if f.OnExpire != nil {
		actions := *f.OnExpire
		clone.OnExpire = &actions
	}
	return &clone
}

// FuseExpiredPayload is the webhook body sent when a fuse fires.
type FuseExpiredPayload struct {
	Type      string    `json:"type"`
	Directory string    `json:"directory"`
	SessionID string    `json:"session_id,omitempty"`
	Label     string    `json:"label,omitempty"`
	ExpiredAt time.Time `json:"expired_at"`
}
