// Package fuse implements per-directory TTL timers. A fuse is armed on a
// directory, persists across daemon restarts, and burns down to a set of
// configured expiry actions. At most one fuse exists per directory; arming
// again replaces the previous timer atomically.
package fuse

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/internal/event"
	"github.com/wardentools/warden/internal/state"
	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/util/pathutil"
)

// DefaultTTL applies when neither the caller nor the configuration names
// a fuse duration.
const DefaultTTL = 30 * time.Minute

// SetParams describes a fuse to arm.
type SetParams struct {
	Directory string
	SessionID string
	// TTL of zero means the engine default.
	TTL      time.Duration
	Label    string
	OnExpire *models.FuseActions
}

// Engine owns the in-memory timers over the persisted fuse collection.
// One native timer backs each active fuse; cardinality is bounded by
// concurrently-active working directories, not request volume.
type Engine struct {
	mu     sync.Mutex
	state  *state.Manager
	bus    *event.Bus
	timers map[string]*time.Timer

	defaultTTL time.Duration
	runner     *actionRunner
	now        func() time.Time
	log        *logrus.Entry
}

// New creates a fuse engine over the given state. A non-positive
// defaultTTL falls back to DefaultTTL.
func New(st *state.Manager, bus *event.Bus, defaultTTL time.Duration) *Engine {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Engine{
		state:      st,
		bus:        bus,
		timers:     make(map[string]*time.Timer),
		defaultTTL: defaultTTL,
		runner:     newActionRunner(bus),
		now:        time.Now,
		log:        logging.NewLogger("fuse"),
	}
}

// Set arms a fuse on a directory, replacing any existing one. The old
// timer is cleared and the new persisted entry installed as one step, so
// a concurrent reader never sees the directory fuse-less mid-replace.
func (e *Engine) Set(p SetParams) (*models.FuseTimer, error) {
	key, err := pathutil.NormalizeForLookup(p.Directory)
	if err != nil {
		return nil, err
	}

	ttl := p.TTL
	if ttl <= 0 {
		ttl = e.defaultTTL
	}

	e.mu.Lock()
	e.stopTimerLocked(key)

	now := e.now()
	timer := models.FuseTimer{
		Directory: key,
		SessionID: p.SessionID,
		Label:     p.Label,
		TTL:       ttl,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if p.OnExpire != nil {
		actions := *p.OnExpire
		timer.OnExpire = &actions
	}
	e.state.PutFuse(timer)
	e.armLocked(timer)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"directory": key,
		"ttl":       ttl.String(),
		"session":   p.SessionID,
	}).Info("Fuse armed")
	e.bus.Publish(models.NewEvent(models.EventFuseSet).
		WithDirectory(key).
		WithSession(p.SessionID).
		WithData("ttl", ttl.String()).
		WithData("expires_at", timer.ExpiresAt).
		WithData("label", p.Label))
	return timer.Clone(), nil
}

// Extend re-arms an existing fuse with a fresh TTL. A zero ttl reuses the
// fuse's previous one. Reports false when no fuse is armed on the
// directory.
func (e *Engine) Extend(directory string, ttl time.Duration) (*models.FuseTimer, bool) {
	key, err := pathutil.NormalizeForLookup(directory)
	if err != nil {
		return nil, false
	}

	e.mu.Lock()
	existing, ok := e.state.FuseFor(key)
	if !ok {
		e.mu.Unlock()
		return nil, false
	}

	if ttl <= 0 {
		ttl = existing.TTL
	}
	if ttl <= 0 {
		ttl = e.defaultTTL
	}

	e.stopTimerLocked(key)
	updated := *existing.Clone()
	updated.TTL = ttl
	updated.ExpiresAt = e.now().Add(ttl)
	e.state.PutFuse(updated)
	e.armLocked(updated)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"directory": key, "ttl": ttl.String()}).Info("Fuse extended")
	e.bus.Publish(models.NewEvent(models.EventFuseExtended).
		WithDirectory(key).
		WithSession(updated.SessionID).
		WithData("ttl", ttl.String()).
		WithData("expires_at", updated.ExpiresAt))
	return updated.Clone(), true
}

// Cancel clears the in-memory timer for a directory. With persist the
// stored entry is removed too; persist=false exists so Set and Extend
// can swap timers without ever exposing a fuse-less window. Reports
// whether anything was cleared.
func (e *Engine) Cancel(directory string, persist bool) bool {
	key, err := pathutil.NormalizeForLookup(directory)
	if err != nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existed := e.stopTimerLocked(key)
	if persist {
		if e.state.RemoveFuse(key) {
			existed = true
		}
	}
	if existed {
		e.log.WithField("directory", key).Info("Fuse cancelled")
	}
	return existed
}

// Resume restores timers after a daemon restart. Already-expired fuses
// fire synchronously in stored order before anything is armed for the
// future, so overdue work happens promptly rather than waiting out a
// fresh TTL.
func (e *Engine) Resume() (fired, armed int) {
	now := e.now()
	for _, timer := range e.state.Fuses() {
		if !timer.ExpiresAt.After(now) {
			e.fire(timer.Directory, timer.ExpiresAt)
			fired++
			continue
		}
		e.mu.Lock()
		e.armLocked(timer)
		e.mu.Unlock()
		armed++
	}
	if fired > 0 || armed > 0 {
		e.log.WithFields(logrus.Fields{"fired": fired, "armed": armed}).Info("Fuse timers resumed")
	}
	return fired, armed
}

// Stop cancels every armed timer without touching persisted entries;
// they re-arm via Resume on the next start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
	}
}

// List returns copies of all persisted fuses in stored order.
func (e *Engine) List() []models.FuseTimer {
	return e.state.Fuses()
}

// Get returns a copy of the fuse armed on directory, if any.
func (e *Engine) Get(directory string) (*models.FuseTimer, bool) {
	key, err := pathutil.NormalizeForLookup(directory)
	if err != nil {
		return nil, false
	}
	return e.state.FuseFor(key)
}

// armLocked installs a native timer for the fuse. Callers hold e.mu.
func (e *Engine) armLocked(timer models.FuseTimer) {
	key := timer.Directory
	expected := timer.ExpiresAt
	d := expected.Sub(e.now())
	if d < 0 {
		d = 0
	}
	e.timers[key] = time.AfterFunc(d, func() {
		e.fire(key, expected)
	})
}

// stopTimerLocked stops and forgets the timer for key, reporting whether
// one existed. Callers hold e.mu.
func (e *Engine) stopTimerLocked(key string) bool {
	t, ok := e.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(e.timers, key)
	return true
}

// fire burns a fuse down. Bookkeeping completes first: the timer handle
// and persisted entry are removed before any action runs, so firing can
// never duplicate or leave a dangling entry. The expected expiry guards
// against a stale callback racing a concurrent Set or Extend.
func (e *Engine) fire(directory string, expected time.Time) {
	e.mu.Lock()
	entry, ok := e.state.FuseFor(directory)
	if !ok || !entry.ExpiresAt.Equal(expected) {
		// Cancelled or replaced while this callback was in flight.
		e.mu.Unlock()
		return
	}
	e.stopTimerLocked(directory)
	e.state.RemoveFuse(directory)
	e.mu.Unlock()

	expiredAt := e.now()
	e.log.WithFields(logrus.Fields{
		"directory": directory,
		"session":   entry.SessionID,
		"label":     entry.Label,
	}).Info("Fuse expired")
	e.bus.Publish(models.NewEvent(models.EventFuseExpired).
		WithDirectory(directory).
		WithSession(entry.SessionID).
		WithData("label", entry.Label).
		WithData("expired_at", expiredAt))

	e.runner.runAll(*entry, expiredAt)
}
