package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
)

// Manager is the daemon's in-memory state with debounced persistence.
// Mutators apply synchronously and arm a short quiescence timer; once no
// further mutation arrives, all three documents are written in one pass.
// Accessors hand out copies, so callers can never reach the live
// structures.
type Manager struct {
	mu  sync.Mutex
	dir string

	sessions map[string]*models.SessionRecord
	locks    []models.Lock
	fuses    []models.FuseTimer
	version  int

	debounce      *time.Timer
	debounceDelay time.Duration

	// persistMu serializes whole persist passes so a slow write can
	// never land on top of a newer one.
	persistMu sync.Mutex

	log *logrus.Entry
}

// Load reads the three state documents from dir, creating the directory if
// needed. Each document degrades independently: a missing or corrupt file
// starts that collection empty while the others load normally, so the
// daemon always comes up.
func Load(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	m := &Manager{
		dir:           dir,
		sessions:      make(map[string]*models.SessionRecord),
		version:       SchemaVersion,
		debounceDelay: DefaultDebounce,
		log:           logging.NewLogger("state"),
	}

	var doc sessionsDoc
	if m.loadDoc(SessionsFileName, &doc) && doc.Sessions != nil {
		m.sessions = doc.Sessions
		if doc.Version > 0 {
			m.version = doc.Version
		}
	}

	var locks []models.Lock
	if m.loadDoc(LocksFileName, &locks) {
		m.locks = locks
	}

	var fuses []models.FuseTimer
	if m.loadDoc(FusesFileName, &fuses) {
		m.fuses = fuses
	}

	return m, nil
}

// loadDoc reads and parses one document into v. Absent files are normal
// (first run); unreadable or corrupt files are logged and treated as
// empty. Returns true only when v was populated.
func (m *Manager) loadDoc(name string, v interface{}) bool {
	path := filepath.Join(m.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.WithError(err).WithField("file", name).Warn("Failed to read state document, starting empty")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		m.log.WithError(err).WithField("file", name).Warn("State document is corrupt, starting empty")
		return false
	}
	return true
}

// Dir returns the state directory the manager persists into.
func (m *Manager) Dir() string {
	return m.dir
}

// Version returns the schema version carried in state.json.
func (m *Manager) Version() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Session returns a copy of the record for id.
func (m *Manager) Session(id string) (*models.SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Sessions returns copies of all session records.
func (m *Manager) Sessions() []*models.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*models.SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		result = append(result, rec.Clone())
	}
	return result
}

// SetSession inserts or replaces a session record. The stored copy is
// detached from the caller's.
func (m *Manager) SetSession(rec *models.SessionRecord) {
	if rec == nil || rec.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.ID] = rec.Clone()
	m.scheduleFlushLocked()
}

// RemoveSession deletes the record for id, reporting whether it existed.
func (m *Manager) RemoveSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	m.scheduleFlushLocked()
	return true
}

// RenameSession replaces the record stored under oldID with rec (stored
// under rec.ID) in one step, so no reader observes the session as both
// present twice or absent entirely. Used when a placeholder id resolves
// to the agent's real id.
func (m *Manager) RenameSession(oldID string, rec *models.SessionRecord) bool {
	if rec == nil || rec.ID == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[oldID]; !ok {
		return false
	}
	delete(m.sessions, oldID)
	m.sessions[rec.ID] = rec.Clone()
	m.scheduleFlushLocked()
	return true
}

// Locks returns a copy of the lock list.
func (m *Manager) Locks() []models.Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.Lock, len(m.locks))
	copy(result, m.locks)
	return result
}

// AddLock appends a lock entry.
func (m *Manager) AddLock(l models.Lock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, l)
	m.scheduleFlushLocked()
}

// RemoveLocks deletes every lock matching pred, returning how many went.
func (m *Manager) RemoveLocks(pred func(models.Lock) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.locks[:0]
	removed := 0
	for _, l := range m.locks {
		if pred(l) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	if removed > 0 {
		m.locks = kept
		m.scheduleFlushLocked()
	}
	return removed
}

// Fuses returns copies of all fuse timers in stored order.
func (m *Manager) Fuses() []models.FuseTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.FuseTimer, 0, len(m.fuses))
	for i := range m.fuses {
		result = append(result, *m.fuses[i].Clone())
	}
	return result
}

// FuseFor returns a copy of the fuse armed on directory, if any.
func (m *Manager) FuseFor(directory string) (*models.FuseTimer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.fuses {
		if m.fuses[i].Directory == directory {
			return m.fuses[i].Clone(), true
		}
	}
	return nil, false
}

// PutFuse installs t as the fuse for its directory, replacing any prior
// entry in place. Replacement happens under one lock acquisition, so a
// concurrent reader never sees the directory fuse-less mid-swap.
func (m *Manager) PutFuse(t models.FuseTimer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.fuses {
		if m.fuses[i].Directory == t.Directory {
			m.fuses[i] = *t.Clone()
			m.scheduleFlushLocked()
			return
		}
	}
	m.fuses = append(m.fuses, *t.Clone())
	m.scheduleFlushLocked()
}

// RemoveFuse deletes the fuse for directory, reporting whether it existed.
func (m *Manager) RemoveFuse(directory string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.fuses {
		if m.fuses[i].Directory == directory {
			m.fuses = append(m.fuses[:i], m.fuses[i+1:]...)
			m.scheduleFlushLocked()
			return true
		}
	}
	return false
}
