// Package engine orchestrates the daemon's background collectors and owns
// the compound session operations (launch, stop, resume) that touch records,
// locks and fuses together. Collectors do their blocking work concurrently
// and funnel every mutation through one apply goroutine.
package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/internal/adapter"
	"github.com/wardentools/warden/internal/event"
	"github.com/wardentools/warden/internal/fuse"
	"github.com/wardentools/warden/internal/locks"
	"github.com/wardentools/warden/internal/state"
	"github.com/wardentools/warden/internal/tracker"
	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
)

// autoFuseLabel marks fuses the daemon armed on its own at session exit.
// Operator-armed fuses carry their own label (or none) and are never
// disarmed by returning agent activity.
const autoFuseLabel = "session-idle"

// Engine wires the tracker, lock manager and fuse engine together and runs
// the collectors.
type Engine struct {
	cfg      *config.Config
	state    *state.Manager
	registry *adapter.Registry
	tracker  *tracker.Tracker
	locks    *locks.Manager
	fuses    *fuse.Engine
	bus      *event.Bus

	collectors []Collector
	kick       chan struct{}
	exclude    *patternmatcher.PatternMatcher
	log        *logrus.Entry
}

// New creates an engine over already-constructed components.
func New(cfg *config.Config, st *state.Manager, reg *adapter.Registry, tr *tracker.Tracker, lm *locks.Manager, fe *fuse.Engine, bus *event.Bus) *Engine {
	e := &Engine{
		cfg:      cfg,
		state:    st,
		registry: reg,
		tracker:  tr,
		locks:    lm,
		fuses:    fe,
		bus:      bus,
		kick:     make(chan struct{}, 1),
		log:      logging.NewLogger("engine"),
	}
	if cfg.Fuses != nil && len(cfg.Fuses.Exclude) > 0 {
		pm, err := patternmatcher.New(cfg.Fuses.Exclude)
		if err != nil {
			// Validation rejects bad patterns at load; a failure here only
			// happens with a hand-fed config.
			e.log.WithError(err).Warn("fuses.exclude patterns ignored")
		} else {
			e.exclude = pm
		}
	}
	return e
}

// Register adds a collector to the engine.
func (e *Engine) Register(c Collector) {
	e.collectors = append(e.collectors, c)
}

// RegisterDefaults installs the periodic reconcile, pending-resolution and
// dead-launch collectors plus the adapter event forwarder, with intervals
// from the daemon config.
func (e *Engine) RegisterDefaults() {
	d := e.cfg.Daemon
	e.Register(newReconcileCollector(e, d.ReconcileIntervalOrDefault()))
	e.Register(newResolveCollector(e, d.ResolveIntervalOrDefault()))
	e.Register(newCleanupCollector(e, d.CleanupIntervalOrDefault()))
	e.Register(newEventsCollector(e))
}

// Start runs the apply consumer and all collectors, blocking until ctx is
// cancelled and every collector has returned.
func (e *Engine) Start(ctx context.Context) {
	applies := make(chan Apply, 100)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case apply := <-applies:
				apply()
			}
		}
	}()

	for _, c := range e.collectors {
		wg.Add(1)
		go func(col Collector) {
			defer wg.Done()
			e.log.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(ctx, applies); err != nil {
				e.log.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
			}
		}(c)
	}

	wg.Wait()
}

// RequestReconcile nudges the reconcile collector to run a pass soon rather
// than waiting out its interval. Non-blocking; a pending nudge absorbs
// further ones.
func (e *Engine) RequestReconcile() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Bus returns the daemon event bus.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Tracker returns the session tracker.
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

// Locks returns the lock manager.
func (e *Engine) Locks() *locks.Manager { return e.locks }

// Fuses returns the fuse engine.
func (e *Engine) Fuses() *fuse.Engine { return e.fuses }

// Config returns the loaded configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// applyReconcile merges one discovery report, ensures every live session
// holds its directory's auto-lock, and runs the transition followup.
func (e *Engine) applyReconcile(discovered []models.DiscoveredSession, succeeded map[string]bool) {
	out := e.tracker.ReconcileAndEnrich(discovered, succeeded)
	for _, rec := range out.Sessions {
		if rec.Directory == "" || rec.Status.IsTerminal() {
			continue
		}
		if err := e.locks.AutoLock(rec.Directory, rec.ID); err != nil {
			e.log.WithError(err).WithField("session", rec.ID).Debug("Auto-lock not acquired")
		}
	}
	e.afterTransitions(out.Transitioned)
}

// afterTransitions releases what freshly stopped sessions held and arms the
// idle fuse on their directories.
func (e *Engine) afterTransitions(ids []string) {
	for _, id := range ids {
		e.locks.AutoUnlock(id)
		rec, ok := e.tracker.Session(id)
		if !ok {
			// Superseded placeholder; the successor keeps the directory.
			continue
		}
		if rec.Directory != "" {
			e.armIdleFuse(rec)
		}
	}
}

// afterResolutions re-keys auto-locks from placeholder ids to resolved ids.
func (e *Engine) afterResolutions(pairs []tracker.ResolvedPair) {
	for _, pair := range pairs {
		e.locks.AutoUnlock(pair.OldID)
		rec, ok := e.tracker.Session(pair.NewID)
		if !ok || rec.Directory == "" || rec.Status.IsTerminal() {
			continue
		}
		if err := e.locks.AutoLock(rec.Directory, pair.NewID); err != nil {
			e.log.WithError(err).WithField("session", pair.NewID).Debug("Auto-lock not re-acquired")
		}
	}
}

// armIdleFuse schedules the post-session cleanup countdown for a record's
// directory. An existing fuse only gets its countdown refreshed, keeping
// its TTL and actions; a fresh one is armed with the configured defaults.
func (e *Engine) armIdleFuse(rec *models.SessionRecord) {
	if !e.cfg.Fuses.AutoArmEnabled() || rec.Directory == "" {
		return
	}
	if e.excluded(rec.Directory) {
		return
	}
	if _, ok := e.fuses.Extend(rec.Directory, 0); ok {
		return
	}

	params := fuse.SetParams{
		Directory: rec.Directory,
		SessionID: rec.ID,
		Label:     autoFuseLabel,
	}
	if e.cfg.Fuses != nil && e.cfg.Fuses.OnExpire != nil {
		params.OnExpire = &models.FuseActions{
			Run:     e.cfg.Fuses.OnExpire.Run,
			Webhook: e.cfg.Fuses.OnExpire.Webhook,
			Event:   e.cfg.Fuses.OnExpire.Event,
		}
	}
	if _, err := e.fuses.Set(params); err != nil {
		e.log.WithError(err).WithField("directory", rec.Directory).Warn("Idle fuse not armed")
	}
}

// disarmIdleFuse cancels a daemon-armed idle fuse when agent activity
// returns to the directory.
func (e *Engine) disarmIdleFuse(dir string) {
	f, ok := e.fuses.Get(dir)
	if !ok || f.Label != autoFuseLabel {
		return
	}
	e.fuses.Cancel(dir, true)
}

// excluded reports whether a directory matches the fuses.exclude patterns.
func (e *Engine) excluded(dir string) bool {
	if e.exclude == nil {
		return false
	}
	matched, err := e.exclude.MatchesOrParentMatches(dir)
	if err != nil {
		e.log.WithError(err).WithField("directory", dir).Debug("Exclude match failed")
		return false
	}
	return matched
}

// Launch starts an agent session through the named adapter, records it, and
// takes the directory's auto-lock. A manual lock on the directory refuses
// the launch.
func (e *Engine) Launch(ctx context.Context, req models.LaunchRequest) (*models.SessionRecord, error) {
	a, err := e.registry.Get(req.Adapter)
	if err != nil {
		return nil, err
	}
	if req.Directory == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "launch requires a directory")
	}
	dir, err := filepath.Abs(req.Directory)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "launch directory is not resolvable")
	}

	lock, err := e.locks.Check(dir)
	if err != nil {
		return nil, err
	}
	if lock != nil && lock.Type == models.LockManual {
		return nil, errors.AlreadyLocked(lock.Directory, lock.By, lock.Reason)
	}

	result, err := a.Launch(ctx, adapter.LaunchOptions{
		Directory: dir,
		Prompt:    req.Prompt,
		Model:     req.Model,
		Spec:      req.Spec,
		Group:     req.Group,
		Args:      req.Args,
		Tmux:      req.Tmux,
	})
	if err != nil {
		return nil, err
	}

	rec := &models.SessionRecord{
		ID:             result.ID,
		Adapter:        req.Adapter,
		Status:         models.StatusRunning,
		PID:            result.PID,
		Directory:      dir,
		StartedAt:      time.Now(),
		Model:          req.Model,
		Prompt:         req.Prompt,
		Spec:           req.Spec,
		Group:          req.Group,
		DaemonLaunched: true,
		TmuxTarget:     result.TmuxTarget,
	}
	e.state.SetSession(rec)

	if err := e.locks.AutoLock(dir, rec.ID); err != nil {
		e.log.WithError(err).WithField("session", rec.ID).Warn("Auto-lock not acquired")
	}
	e.disarmIdleFuse(dir)

	e.log.WithFields(logrus.Fields{
		"session": rec.ID,
		"adapter": rec.Adapter,
		"pid":     rec.PID,
	}).Info("Session launched")
	e.bus.Publish(models.NewEvent(models.EventSessionStarted).
		WithSession(rec.ID).
		WithDirectory(dir).
		WithData("adapter", rec.Adapter))
	return rec, nil
}

// Stop ends a session. The record is marked stopped immediately, its locks
// release and its directory's idle fuse arms right away rather than on the
// next reconcile pass.
func (e *Engine) Stop(ctx context.Context, req models.StopRequest) (*models.SessionRecord, error) {
	rec, ok := e.tracker.Session(req.SessionID)
	if !ok {
		return nil, errors.SessionNotFound(req.SessionID)
	}
	a, err := e.registry.Get(rec.Adapter)
	if err != nil {
		return nil, err
	}
	if err := a.Stop(ctx, rec.ID, adapter.StopOptions{Force: req.Force}); err != nil {
		return nil, err
	}

	if !rec.Status.IsTerminal() {
		stoppedAt := time.Now()
		rec.Status = models.StatusStopped
		rec.StoppedAt = &stoppedAt
		e.state.SetSession(rec)
	}
	e.locks.AutoUnlock(rec.ID)
	e.armIdleFuse(rec)

	e.log.WithFields(logrus.Fields{"session": rec.ID, "force": req.Force}).Info("Session stopped")
	e.bus.Publish(models.NewEvent(models.EventSessionStopped).
		WithSession(rec.ID).
		WithDirectory(rec.Directory).
		WithData("forced", req.Force))
	return rec, nil
}

// Resume sends a follow-up message into a session, reviving its record,
// lock and fuse state when it had already stopped.
func (e *Engine) Resume(ctx context.Context, req models.ResumeRequest) (*models.SessionRecord, error) {
	rec, ok := e.tracker.Session(req.SessionID)
	if !ok {
		return nil, errors.SessionNotFound(req.SessionID)
	}
	a, err := e.registry.Get(rec.Adapter)
	if err != nil {
		return nil, err
	}
	if err := a.Resume(ctx, rec.ID, req.Message); err != nil {
		return nil, err
	}

	rec.Status = models.StatusRunning
	rec.StoppedAt = nil
	e.state.SetSession(rec)
	if rec.Directory != "" {
		if err := e.locks.AutoLock(rec.Directory, rec.ID); err != nil {
			e.log.WithError(err).WithField("session", rec.ID).Debug("Auto-lock not re-acquired")
		}
		e.disarmIdleFuse(rec.Directory)
	}
	// A detached resume spawns a fresh process; let discovery pick up the
	// new pid promptly.
	e.RequestReconcile()

	e.bus.Publish(models.NewEvent(models.EventSessionStarted).
		WithSession(rec.ID).
		WithDirectory(rec.Directory).
		WithData("resumed", true))
	return rec, nil
}

// Peek returns the tail of a session's transcript.
func (e *Engine) Peek(ctx context.Context, id string, lines int) ([]string, error) {
	rec, ok := e.tracker.Session(id)
	if !ok {
		return nil, errors.SessionNotFound(id)
	}
	a, err := e.registry.Get(rec.Adapter)
	if err != nil {
		return nil, err
	}
	return a.Peek(ctx, rec.ID, adapter.PeekOptions{Lines: lines})
}

// Resolve tries resolving one placeholder id on demand, ahead of the
// periodic sweep.
func (e *Engine) Resolve(ctx context.Context, id string) (*models.ResolveResponse, error) {
	pair, err := e.tracker.ResolvePendingSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return &models.ResolveResponse{}, nil
	}
	e.afterResolutions([]tracker.ResolvedPair{*pair})
	return &models.ResolveResponse{Resolved: true, OldID: pair.OldID, NewID: pair.NewID}, nil
}

// Snapshot returns the full state view served to clients.
func (e *Engine) Snapshot() models.StateResponse {
	resp := models.StateResponse{
		Locks:   e.state.Locks(),
		Fuses:   e.state.Fuses(),
		Version: e.state.Version(),
	}
	for _, rec := range e.tracker.Sessions() {
		resp.Sessions = append(resp.Sessions, *rec)
	}
	return resp
}

// Metrics assembles a point-in-time counters snapshot.
func (e *Engine) Metrics() models.MetricsSnapshot {
	snap := models.MetricsSnapshot{CollectedAt: time.Now()}
	for _, rec := range e.state.Sessions() {
		snap.SessionsTotal++
		switch {
		case rec.Status.IsTerminal():
			snap.SessionsStopped++
		case rec.IsPlaceholder():
			snap.SessionsPending++
		default:
			snap.SessionsRunning++
		}
	}
	for _, l := range e.state.Locks() {
		if l.Type == models.LockManual {
			snap.LocksManual++
		} else {
			snap.LocksAuto++
		}
	}
	snap.FusesActive = len(e.state.Fuses())

	rounds, adapterErrors := e.tracker.Stats()
	snap.ReconcileRounds = rounds
	if len(adapterErrors) > 0 {
		snap.AdapterErrors = adapterErrors
	}
	return snap
}
