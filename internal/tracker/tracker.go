// Package tracker reconciles the daemon's durable session records with what
// the adapters actually report. It owns no collection of its own: every pass
// reads the adapter world, merges it into the state manager, and tells the
// caller which sessions left the living set so locks and fuses can follow.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/internal/adapter"
	"github.com/wardentools/warden/internal/event"
	"github.com/wardentools/warden/internal/state"
	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/pkg/process"
)

// DefaultLaunchGrace is how long a daemon-launched record survives without
// appearing in discovery before reconciliation declares it stopped. Fresh
// launches take a few seconds to write the files discovery reads.
const DefaultLaunchGrace = 30 * time.Second

// Reconciliation is the outcome of one reconcile pass: the merged session
// view plus the ids that left the living set this round. The caller releases
// auto-locks and arms fuses for the transitioned ids.
type Reconciliation struct {
	Sessions     []*models.SessionRecord
	Transitioned []string
}

// ResolvedPair reports one placeholder id renamed to the adapter-native id
// discovered for the same process.
type ResolvedPair struct {
	OldID string
	NewID string
}

// Tracker merges adapter discovery into the persisted session records. All
// mutating passes are serialized on one mutex; only the discovery calls
// themselves run outside it.
type Tracker struct {
	mu       sync.Mutex
	state    *state.Manager
	registry *adapter.Registry
	bus      *event.Bus

	timeout time.Duration
	grace   time.Duration
	probe   func(pid int) bool
	now     func() time.Time
	log     *logrus.Entry

	statsMu       sync.Mutex
	rounds        int64
	adapterErrors map[string]int
}

// New creates a tracker over the given state and adapters. A non-positive
// adapterTimeout falls back to the configured default.
func New(st *state.Manager, reg *adapter.Registry, bus *event.Bus, adapterTimeout time.Duration) *Tracker {
	if adapterTimeout <= 0 {
		adapterTimeout = config.DefaultAdapterTimeout
	}
	return &Tracker{
		state:         st,
		registry:      reg,
		bus:           bus,
		timeout:       adapterTimeout,
		grace:         DefaultLaunchGrace,
		probe:         process.Alive,
		now:           time.Now,
		log:           logging.NewLogger("tracker"),
		adapterErrors: make(map[string]int),
	}
}

// Stats reports how many reconcile rounds have run and how often each
// adapter's discovery has failed since the tracker was created.
func (t *Tracker) Stats() (rounds int64, adapterErrors map[string]int) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	errs := make(map[string]int, len(t.adapterErrors))
	for name, n := range t.adapterErrors {
		errs[name] = n
	}
	return t.rounds, errs
}

// Sessions returns the tracked records, newest launches first.
func (t *Tracker) Sessions() []*models.SessionRecord {
	records := t.state.Sessions()
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records
}

// Session returns a copy of one tracked record.
func (t *Tracker) Session(id string) (*models.SessionRecord, bool) {
	return t.state.Session(id)
}

// Reconcile runs one full pass: discover across every adapter, then merge
// the report into the stored records.
func (t *Tracker) Reconcile(ctx context.Context) *Reconciliation {
	discovered, succeeded := t.DiscoverAll(ctx)
	return t.ReconcileAndEnrich(discovered, succeeded)
}

// DiscoverAll fans one Discover call out per adapter and collects the
// results in registry order. Each call gets its own deadline and panic
// guard; an adapter that fails or times out is absent from the succeeded
// set for this round and its sessions are not reported. Callers that need
// the merge serialized elsewhere run this first and feed the report to
// ReconcileAndEnrich.
func (t *Tracker) DiscoverAll(ctx context.Context) ([]models.DiscoveredSession, map[string]bool) {
	adapters := t.registry.All()

	type report struct {
		name     string
		sessions []models.DiscoveredSession
		err      error
	}
	results := make(chan report, len(adapters))
	for _, a := range adapters {
		go func(a adapter.Adapter) {
			r := report{name: a.Name()}
			defer func() {
				if p := recover(); p != nil {
					r.err = fmt.Errorf("discover panicked: %v", p)
				}
				results <- r
			}()
			dctx, cancel := context.WithTimeout(ctx, t.timeout)
			defer cancel()
			r.sessions, r.err = a.Discover(dctx)
		}(a)
	}

	byName := make(map[string][]models.DiscoveredSession, len(adapters))
	succeeded := make(map[string]bool, len(adapters))
	for range adapters {
		r := <-results
		if r.err != nil {
			t.log.WithError(r.err).WithField("adapter", r.name).Warn("Adapter discovery failed")
			t.statsMu.Lock()
			t.adapterErrors[r.name]++
			t.statsMu.Unlock()
			continue
		}
		succeeded[r.name] = true
		byName[r.name] = r.sessions
	}

	var discovered []models.DiscoveredSession
	for _, a := range adapters {
		discovered = append(discovered, byName[a.Name()]...)
	}
	return discovered, succeeded
}

// ReconcileAndEnrich merges a discovery report into the stored records and
// returns the combined view. Adapter-reported fields win; stored launch
// metadata fills in what the adapter left blank. A stored record missing
// from the report is kept, superseded, or declared stopped depending on why
// it is missing: its adapter may not have answered, its pid may now belong
// to a resolved id, or it may simply be too fresh to show up yet.
func (t *Tracker) ReconcileAndEnrich(discovered []models.DiscoveredSession, succeeded map[string]bool) *Reconciliation {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.statsMu.Lock()
	t.rounds++
	t.statsMu.Unlock()

	now := t.now()
	out := &Reconciliation{}
	byPID := indexByPID(discovered)

	seen := make(map[string]*models.SessionRecord, len(discovered))
	for _, ds := range discovered {
		if _, dup := seen[ds.ID]; dup {
			continue
		}
		rec, transitioned := t.mergeLocked(ds, now)
		seen[ds.ID] = rec
		out.Sessions = append(out.Sessions, rec)
		if transitioned {
			out.Transitioned = append(out.Transitioned, rec.ID)
		}
	}

	records := t.state.Sessions()
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	for _, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		switch {
		case !succeeded[rec.Adapter]:
			// The owning adapter did not answer this round, so absence
			// says nothing about the session.
			out.Sessions = append(out.Sessions, rec)

		case t.supersededLocked(rec, byPID, seen):
			out.Transitioned = append(out.Transitioned, rec.ID)

		case now.Sub(rec.StartedAt) < t.grace:
			// Too fresh to judge: the agent may not have written the
			// files discovery reads yet.
			out.Sessions = append(out.Sessions, rec)

		default:
			stoppedAt := now
			rec.Status = models.StatusStopped
			rec.StoppedAt = &stoppedAt
			t.state.SetSession(rec)
			out.Sessions = append(out.Sessions, rec)
			out.Transitioned = append(out.Transitioned, rec.ID)
			t.log.WithFields(logrus.Fields{
				"session": rec.ID,
				"adapter": rec.Adapter,
			}).Info("Session no longer reported; marked stopped")
			t.publishTransitioned(rec, "not_discovered")
		}
	}
	return out
}

// mergeLocked folds one discovered session into its stored record, storing
// and returning the merged copy. The second result reports a crossing into
// a terminal status this pass. Callers hold t.mu.
func (t *Tracker) mergeLocked(ds models.DiscoveredSession, now time.Time) (*models.SessionRecord, bool) {
	rec, existed := t.state.Session(ds.ID)
	if !existed {
		rec = &models.SessionRecord{ID: ds.ID}
	}
	wasTerminal := rec.Status.IsTerminal()

	rec.Adapter = ds.Adapter
	rec.Status = ds.Status
	rec.PID = ds.PID
	if ds.Directory != "" {
		rec.Directory = ds.Directory
	}
	if !ds.StartedAt.IsZero() {
		rec.StartedAt = ds.StartedAt
	} else if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	if ds.StoppedAt != nil {
		stopped := *ds.StoppedAt
		rec.StoppedAt = &stopped
	}
	if ds.Model != "" {
		rec.Model = ds.Model
	}
	if ds.Prompt != "" {
		rec.Prompt = ds.Prompt
	}
	if ds.Tokens != nil {
		usage := *ds.Tokens
		rec.Tokens = &usage
	}
	if ds.Cost != 0 {
		rec.Cost = ds.Cost
	}
	applyNativeMetadata(rec, ds.NativeMetadata)

	if !rec.Status.IsTerminal() {
		// A session can come back (resume after stop); a stale stop time
		// must not survive that.
		rec.StoppedAt = nil
	} else if rec.StoppedAt == nil {
		stoppedAt := now
		rec.StoppedAt = &stoppedAt
	}
	t.state.SetSession(rec)

	transitioned := existed && !wasTerminal && rec.Status.IsTerminal()
	if transitioned {
		t.log.WithFields(logrus.Fields{
			"session": rec.ID,
			"adapter": rec.Adapter,
			"status":  string(rec.Status),
		}).Info("Session reported stopped")
		t.publishTransitioned(rec, "discovered_"+string(rec.Status))
	}
	return rec, transitioned
}

// supersededLocked handles a stored placeholder whose pid the report now
// lists under a different id: the real id arrived through another path and
// this record is the stale duplicate. The successor inherits any launch
// metadata it lacks, the placeholder is removed, and the pair is announced
// as resolved. Only a same-adapter, non-placeholder discovered id counts;
// pid equality alone could stitch two unrelated sessions together. Callers
// hold t.mu.
func (t *Tracker) supersededLocked(rec *models.SessionRecord, byPID map[int]models.DiscoveredSession, seen map[string]*models.SessionRecord) bool {
	if !rec.IsPlaceholder() || rec.PID <= 0 {
		return false
	}
	ds, ok := byPID[rec.PID]
	if !ok || ds.ID == rec.ID || ds.Adapter != rec.Adapter || models.IsPlaceholderID(ds.ID) {
		return false
	}

	if successor := seen[ds.ID]; successor != nil {
		graftLaunchMetadata(successor, rec)
		t.state.SetSession(successor)
	}
	t.state.RemoveSession(rec.ID)
	t.log.WithFields(logrus.Fields{
		"old_id": rec.ID,
		"new_id": ds.ID,
	}).Info("Placeholder superseded by resolved session")
	t.publishResolved(rec.ID, ds.ID)
	return true
}

// ResolvePendingSessions tries to replace placeholder ids with the owning
// adapter's native ids. Placeholders are grouped by adapter so each adapter
// is asked to discover once per call; a placeholder whose pid shows up in
// the report under a real id is renamed in place.
func (t *Tracker) ResolvePendingSessions(ctx context.Context) []ResolvedPair {
	pending := make(map[string][]*models.SessionRecord)
	for _, rec := range t.state.Sessions() {
		if rec.IsPlaceholder() {
			pending[rec.Adapter] = append(pending[rec.Adapter], rec)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)

	var resolved []ResolvedPair
	for _, name := range names {
		records := pending[name]
		sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

		a, err := t.registry.Get(name)
		if err != nil {
			t.log.WithError(err).WithField("adapter", name).Warn("Cannot resolve pending sessions")
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, t.timeout)
		discovered, err := a.Discover(dctx)
		cancel()
		if err != nil {
			t.log.WithError(err).WithField("adapter", name).Warn("Discovery failed while resolving pending sessions")
			continue
		}

		byPID := indexByPID(discovered)
		for _, rec := range records {
			if pair, ok := t.resolveOne(rec, byPID); ok {
				resolved = append(resolved, pair)
			}
		}
	}
	return resolved
}

// ResolvePendingSession is the single-session variant, for callers that want
// one specific launch resolved now rather than on the next sweep. A nil pair
// with nil error means the session is still unresolved, which is normal: the
// agent may simply not have written its id yet.
func (t *Tracker) ResolvePendingSession(ctx context.Context, id string) (*ResolvedPair, error) {
	rec, ok := t.state.Session(id)
	if !ok {
		return nil, errors.SessionNotFound(id)
	}
	if !rec.IsPlaceholder() {
		return nil, nil
	}

	a, err := t.registry.Get(rec.Adapter)
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithTimeout(ctx, t.timeout)
	discovered, err := a.Discover(dctx)
	cancel()
	if err != nil {
		return nil, errors.AdapterUnavailable(rec.Adapter, err)
	}

	if pair, done := t.resolveOne(rec, indexByPID(discovered)); done {
		return &pair, nil
	}
	return nil, nil
}

// resolveOne renames a single placeholder when the discovery index pairs its
// pid with a native id. Pid equality alone is not trusted: the discovered
// entry must come from the same adapter, carry a non-placeholder id, and the
// pid must still answer a liveness probe. Pids are recycled, and a match
// against a dead process proves nothing.
func (t *Tracker) resolveOne(rec *models.SessionRecord, byPID map[int]models.DiscoveredSession) (ResolvedPair, bool) {
	if rec.PID <= 0 {
		return ResolvedPair{}, false
	}
	ds, ok := byPID[rec.PID]
	if !ok || ds.ID == rec.ID || ds.Adapter != rec.Adapter || models.IsPlaceholderID(ds.ID) {
		return ResolvedPair{}, false
	}
	if !t.probe(rec.PID) {
		return ResolvedPair{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	current, exists := t.state.Session(rec.ID)
	if !exists {
		// Resolved or removed by a concurrent pass.
		return ResolvedPair{}, false
	}

	if successor, taken := t.state.Session(ds.ID); taken {
		// The resolved id is already tracked. Fold the launch metadata in
		// and drop the placeholder rather than overwrite the fresher record.
		graftLaunchMetadata(successor, current)
		t.state.SetSession(successor)
		t.state.RemoveSession(current.ID)
	} else {
		renamed := current
		renamed.ID = ds.ID
		if !t.state.RenameSession(current.ID, renamed) {
			return ResolvedPair{}, false
		}
	}

	t.log.WithFields(logrus.Fields{
		"old_id":  rec.ID,
		"new_id":  ds.ID,
		"adapter": rec.Adapter,
	}).Info("Pending session resolved")
	t.publishResolved(rec.ID, ds.ID)
	return ResolvedPair{OldID: rec.ID, NewID: ds.ID}, true
}

// CleanupDeadLaunches probes the pid of every live daemon-launched record
// and marks the dead ones stopped. No adapter is consulted; this is the
// cheap sweep that bounds how long a lock can outlive its process between
// full reconcile passes. Returns the ids marked stopped.
func (t *Tracker) CleanupDeadLaunches() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	records := t.state.Sessions()
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	var transitioned []string
	for _, rec := range records {
		if !rec.DaemonLaunched || rec.Status.IsTerminal() || rec.PID <= 0 {
			continue
		}
		if t.probe(rec.PID) {
			continue
		}
		stoppedAt := now
		rec.Status = models.StatusStopped
		rec.StoppedAt = &stoppedAt
		t.state.SetSession(rec)
		transitioned = append(transitioned, rec.ID)
		t.log.WithFields(logrus.Fields{
			"session": rec.ID,
			"pid":     rec.PID,
		}).Info("Launched process died; session marked stopped")
		t.publishTransitioned(rec, "pid_dead")
	}
	return transitioned
}

func (t *Tracker) publishTransitioned(rec *models.SessionRecord, reason string) {
	t.bus.Publish(models.NewEvent(models.EventSessionTransitioned).
		WithSession(rec.ID).
		WithDirectory(rec.Directory).
		WithData("status", string(rec.Status)).
		WithData("reason", reason))
}

func (t *Tracker) publishResolved(oldID, newID string) {
	t.bus.Publish(models.NewEvent(models.EventSessionResolved).
		WithSession(newID).
		WithData("old_id", oldID).
		WithData("new_id", newID))
}

// indexByPID builds a pid lookup over a discovery report. On a pid collision
// the first entry wins.
func indexByPID(discovered []models.DiscoveredSession) map[int]models.DiscoveredSession {
	byPID := make(map[int]models.DiscoveredSession, len(discovered))
	for _, ds := range discovered {
		if ds.PID <= 0 {
			continue
		}
		if _, dup := byPID[ds.PID]; !dup {
			byPID[ds.PID] = ds
		}
	}
	return byPID
}

// applyNativeMetadata folds adapter-specific fields into the record. Keys
// warden models directly (spec, group, tmux_target) land in their fields;
// everything else goes into the metadata bag.
func applyNativeMetadata(rec *models.SessionRecord, native map[string]interface{}) {
	for key, value := range native {
		s, isString := value.(string)
		switch {
		case key == "spec" && isString && s != "":
			rec.Spec = s
		case key == "group" && isString && s != "":
			rec.Group = s
		case key == "tmux_target" && isString && s != "":
			rec.TmuxTarget = s
		default:
			if rec.Metadata == nil {
				rec.Metadata = make(map[string]interface{})
			}
			rec.Metadata[key] = value
		}
	}
}

// graftLaunchMetadata copies launch-time fields the successor record lacks
// from the placeholder it replaces.
func graftLaunchMetadata(successor, placeholder *models.SessionRecord) {
	if successor.Prompt == "" {
		successor.Prompt = placeholder.Prompt
	}
	if successor.Spec == "" {
		successor.Spec = placeholder.Spec
	}
	if successor.Group == "" {
		successor.Group = placeholder.Group
	}
	if successor.Model == "" {
		successor.Model = placeholder.Model
	}
	if successor.Directory == "" {
		successor.Directory = placeholder.Directory
	}
	if successor.TmuxTarget == "" {
		successor.TmuxTarget = placeholder.TmuxTarget
	}
	if placeholder.DaemonLaunched {
		successor.DaemonLaunched = true
	}
}
