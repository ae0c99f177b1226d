// Package state owns the daemon's durable view of sessions, locks, and fuse
// timers. The three collections live in separate documents inside one state
// directory and are rewritten independently, so a corrupt file costs only its
// own collection.
package state

import (
	"github.com/wardentools/warden/pkg/models"
)

const (
	// SchemaVersion is written into state.json and bumped when the
	// persisted session format changes shape.
	SchemaVersion = 1

	// SessionsFileName holds the session map plus the schema version.
	SessionsFileName = "state.json"

	// LocksFileName holds the flat list of directory locks.
	LocksFileName = "locks.json"

	// FusesFileName holds the flat list of armed fuse timers.
	FusesFileName = "fuses.json"
)

// sessionsDoc is the on-disk shape of state.json.
type sessionsDoc struct {
	Sessions map[string]*models.SessionRecord `json:"sessions"`
	Version  int                              `json:"version"`
}
