// Package locks implements directory mutual exclusion for agent sessions.
// Auto-locks follow session lifecycles; manual locks are operator-placed
// and outrank them. Directories are keyed canonically, so differently
// spelled paths to the same location share one lock entry.
package locks

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/internal/event"
	"github.com/wardentools/warden/internal/state"
	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/util/pathutil"
)

// Manager guards the lock collection. All check-then-act sequences run
// under one mutex, so concurrent callers cannot interleave between a
// lookup and the mutation it justifies.
type Manager struct {
	mu    sync.Mutex
	state *state.Manager
	bus   *event.Bus
	log   *logrus.Entry
}

// New creates a lock manager over the given state.
func New(st *state.Manager, bus *event.Bus) *Manager {
	return &Manager{
		state: st,
		bus:   bus,
		log:   logging.NewLogger("locks"),
	}
}

// Check reports the effective lock on a directory: the manual lock when
// one exists, otherwise the first auto-lock, otherwise nil.
func (m *Manager) Check(directory string) (*models.Lock, error) {
	key, err := pathutil.NormalizeForLookup(directory)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.effectiveLocked(key), nil
}

// effectiveLocked returns the dominating lock for a canonical key.
// Callers hold m.mu.
func (m *Manager) effectiveLocked(key string) *models.Lock {
	var auto *models.Lock
	for _, l := range m.state.Locks() {
		if l.Directory != key {
			continue
		}
		if l.Type == models.LockManual {
			manual := l
			return &manual
		}
		if auto == nil {
			first := l
			auto = &first
		}
	}
	return auto
}

// AutoLock records that a session is working in a directory. Idempotent
// per (directory, session); distinct sessions may each hold their own
// auto-lock on the same directory.
func (m *Manager) AutoLock(directory, sessionID string) error {
	key, err := pathutil.NormalizeForLookup(directory)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.state.Locks() {
		if l.Type == models.LockAuto && l.Directory == key && l.SessionID == sessionID {
			return nil
		}
	}

	m.state.AddLock(models.Lock{
		Directory: key,
		Type:      models.LockAuto,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	})

	m.log.WithFields(logrus.Fields{"directory": key, "session": sessionID}).Debug("Auto-lock acquired")
	m.bus.Publish(models.NewEvent(models.EventLockAcquired).
		WithDirectory(key).
		WithSession(sessionID).
		WithData("lock_type", string(models.LockAuto)))
	return nil
}

// AutoUnlock releases every auto-lock owned by a session, across all
// directories. Manual locks are never touched. Returns how many locks
// were released.
func (m *Manager) AutoUnlock(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var released []string
	for _, l := range m.state.Locks() {
		if l.Type == models.LockAuto && l.SessionID == sessionID {
			released = append(released, l.Directory)
		}
	}

	removed := m.state.RemoveLocks(func(l models.Lock) bool {
		return l.Type == models.LockAuto && l.SessionID == sessionID
	})

	for _, dir := range released {
		m.bus.Publish(models.NewEvent(models.EventLockReleased).
			WithDirectory(dir).
			WithSession(sessionID).
			WithData("lock_type", string(models.LockAuto)))
	}
	if removed > 0 {
		m.log.WithFields(logrus.Fields{"session": sessionID, "count": removed}).Debug("Auto-locks released")
	}
	return removed
}

// ManualLock places an operator lock on a directory. Fails when a manual
// lock already exists, carrying the current owner and reason; existing
// auto-locks do not block it.
func (m *Manager) ManualLock(directory, by, reason string) (*models.Lock, error) {
	key, err := pathutil.NormalizeForLookup(directory)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.state.Locks() {
		if l.Type == models.LockManual && l.Directory == key {
			return nil, errors.AlreadyLocked(key, l.By, l.Reason)
		}
	}

	lock := models.Lock{
		Directory: key,
		Type:      models.LockManual,
		By:        by,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	m.state.AddLock(lock)

	m.log.WithFields(logrus.Fields{"directory": key, "by": by}).Info("Manual lock acquired")
	m.bus.Publish(models.NewEvent(models.EventLockAcquired).
		WithDirectory(key).
		WithData("lock_type", string(models.LockManual)).
		WithData("by", by).
		WithData("reason", reason))
	return &lock, nil
}

// ManualUnlock removes the manual lock on a directory. Fails when none
// exists; auto-locks are never removed this way.
func (m *Manager) ManualUnlock(directory string) error {
	key, err := pathutil.NormalizeForLookup(directory)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.state.RemoveLocks(func(l models.Lock) bool {
		return l.Type == models.LockManual && l.Directory == key
	})
	if removed == 0 {
		return errors.NoManualLock(key)
	}

	m.log.WithField("directory", key).Info("Manual lock released")
	m.bus.Publish(models.NewEvent(models.EventLockReleased).
		WithDirectory(key).
		WithData("lock_type", string(models.LockManual)))
	return nil
}

// List returns a copy of every lock entry.
func (m *Manager) List() []models.Lock {
	return m.state.Locks()
}
