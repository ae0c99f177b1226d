package daemon

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/internal/adapter"
	"github.com/wardentools/warden/internal/state"
	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/pkg/paths"
)

// LocalClient implements Client without a daemon. Reads load the persisted
// state documents and overlay a fresh in-process discovery pass; nothing is
// written back, so a daemon starting later owns the files untouched.
// Mutations need the daemon and report it unavailable.
type LocalClient struct {
	cfg      *config.Config
	state    *state.Manager
	registry *adapter.Registry
	log      *logrus.Entry
}

// NewLocalClient creates a LocalClient over the configured adapters and the
// state directory.
func NewLocalClient(cfg *config.Config) (*LocalClient, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	st, err := state.Load(paths.StateDir())
	if err != nil {
		return nil, err
	}
	reg, err := adapter.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &LocalClient{
		cfg:      cfg,
		state:    st,
		registry: reg,
		log:      logging.NewLogger("local-client"),
	}, nil
}

func (c *LocalClient) Health(ctx context.Context) (*models.HealthResponse, error) {
	return nil, errors.DaemonUnavailable(nil)
}

func (c *LocalClient) State(ctx context.Context) (*models.StateResponse, error) {
	sessions, err := c.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	return &models.StateResponse{
		Sessions: sessions,
		Locks:    c.state.Locks(),
		Fuses:    c.state.Fuses(),
		Version:  c.state.Version(),
	}, nil
}

// Sessions merges the persisted records with a live discovery pass. The
// merge is view-only: absent sessions are shown as last persisted, never
// marked stopped, because transitions are the daemon's call.
func (c *LocalClient) Sessions(ctx context.Context) ([]models.SessionRecord, error) {
	byID := make(map[string]*models.SessionRecord)
	for _, rec := range c.state.Sessions() {
		byID[rec.ID] = rec
	}

	for _, ds := range c.discover(ctx) {
		rec, ok := byID[ds.ID]
		if !ok {
			rec = &models.SessionRecord{
				ID:        ds.ID,
				Adapter:   ds.Adapter,
				StartedAt: ds.StartedAt,
			}
			if rec.StartedAt.IsZero() {
				rec.StartedAt = time.Now()
			}
			byID[ds.ID] = rec
		}
		rec.Status = ds.Status
		if ds.PID > 0 {
			rec.PID = ds.PID
		}
		if ds.Directory != "" {
			rec.Directory = ds.Directory
		}
		if ds.Model != "" {
			rec.Model = ds.Model
		}
		if ds.Prompt != "" && rec.Prompt == "" {
			rec.Prompt = ds.Prompt
		}
		if ds.StoppedAt != nil {
			rec.StoppedAt = ds.StoppedAt
		}
	}

	sessions := make([]models.SessionRecord, 0, len(byID))
	for _, rec := range byID {
		sessions = append(sessions, *rec)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

// discover runs every adapter once with the configured timeout. Failures
// only cost that adapter's sessions in the view.
func (c *LocalClient) discover(ctx context.Context) []models.DiscoveredSession {
	timeout := c.cfg.Daemon.AdapterTimeoutOrDefault()

	var discovered []models.DiscoveredSession
	for _, a := range c.registry.All() {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		sessions, err := a.Discover(callCtx)
		cancel()
		if err != nil {
			c.log.WithError(err).WithField("adapter", a.Name()).Debug("Discovery failed")
			continue
		}
		discovered = append(discovered, sessions...)
	}
	return discovered
}

func (c *LocalClient) Locks(ctx context.Context) ([]models.Lock, error) {
	return c.state.Locks(), nil
}

func (c *LocalClient) Fuses(ctx context.Context) ([]models.FuseTimer, error) {
	return c.state.Fuses(), nil
}

// Metrics counts what the persisted state shows. Reconcile counters need
// the daemon.
func (c *LocalClient) Metrics(ctx context.Context) (*models.MetricsSnapshot, error) {
	snap := models.MetricsSnapshot{CollectedAt: time.Now()}
	sessions, err := c.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range sessions {
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
	for _, l := range c.state.Locks() {
		if l.Type == models.LockManual {
			snap.LocksManual++
		} else {
			snap.LocksAuto++
		}
	}
	snap.FusesActive = len(c.state.Fuses())
	return &snap, nil
}

func (c *LocalClient) Launch(ctx context.Context, req models.LaunchRequest) (*models.SessionRecord, error) {
	return nil, errors.DaemonUnavailable(nil)
}

func (c *LocalClient) Stop(ctx context.Context, req models.StopRequest) (*models.SessionRecord, error) {
	return nil, errors.DaemonUnavailable(nil)
}

func (c *LocalClient) Resume(ctx context.Context, req models.ResumeRequest) (*models.SessionRecord, error) {
	return nil, errors.DaemonUnavailable(nil)
}

// Peek works without the daemon: the transcript is on disk and reading it
// mutates nothing.
func (c *LocalClient) Peek(ctx context.Context, sessionID string, lines int) ([]string, error) {
	sessions, err := c.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range sessions {
		if rec.ID != sessionID {
			continue
		}
		a, err := c.registry.Get(rec.Adapter)
		if err != nil {
			return nil, err
		}
		return a.Peek(ctx, sessionID, adapter.PeekOptions{Lines: lines})
	}
	return nil, errors.SessionNotFound(sessionID)
}

func (c *LocalClient) Resolve(ctx context.Context, sessionID string) (*models.ResolveResponse, error) {
	return nil, errors.DaemonUnavailable(nil)
}

func (c *LocalClient) ManualLock(ctx context.Context, req models.ManualLockRequest) (*models.Lock, error) {
	return nil, errors.DaemonUnavailable(nil)
}

func (c *LocalClient) ManualUnlock(ctx context.Context, directory string) error {
	return errors.DaemonUnavailable(nil)
}

func (c *LocalClient) SetFuse(ctx context.Context, req models.FuseSetRequest) (*models.FuseTimer, error) {
	return nil, errors.DaemonUnavailable(nil)
}

func (c *LocalClient) ExtendFuse(ctx context.Context, req models.FuseExtendRequest) (*models.FuseTimer, error) {
	return nil, errors.DaemonUnavailable(nil)
}

func (c *LocalClient) CancelFuse(ctx context.Context, directory string) error {
	return errors.DaemonUnavailable(nil)
}

// StreamState needs a running daemon.
func (c *LocalClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	return nil, errors.DaemonUnavailable(nil)
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
