package models

import "time"

// EventType names a daemon lifecycle event.
type EventType string

const (
	EventSessionStarted      EventType = "session.started"
	EventSessionStopped      EventType = "session.stopped"
	EventSessionIdle         EventType = "session.idle"
	EventSessionError        EventType = "session.error"
	EventSessionTransitioned EventType = "session.transitioned"
	EventSessionResolved     EventType = "session.resolved"

	EventLockAcquired EventType = "lock.acquired"
	EventLockReleased EventType = "lock.released"

	EventFuseSet      EventType = "fuse.set"
	EventFuseExtended EventType = "fuse.extended"
	EventFuseExpired  EventType = "fuse.expired"

	EventStateUpdated   EventType = "state.updated"
	EventConfigReloaded EventType = "config.reloaded"
	EventDaemonStarted  EventType = "daemon.started"
	EventDaemonStopping EventType = "daemon.stopping"
)

// Event is the envelope published on the daemon event bus and streamed to
// clients over SSE and websocket connections.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	SessionID string `json:"session_id,omitempty"`
	Directory string `json:"directory,omitempty"`

	// Data carries event-specific fields (old/new ids for a resolution,
	// lock owner, fuse label, ...).
	Data map[string]interface{} `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType) Event {
	return Event{Type: eventType, Timestamp: time.Now()}
}

// WithSession attaches a session id.
func (e Event) WithSession(id string) Event {
	e.SessionID = id
	return e
}

// WithDirectory attaches a directory.
func (e Event) WithDirectory(dir string) Event {
	e.Directory = dir
	return e
}

// WithData attaches one data field, allocating the map on first use.
func (e Event) WithData(key string, value interface{}) Event {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}
