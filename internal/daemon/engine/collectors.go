package engine

import (
	"context"
	"sync"
	"time"

	"github.com/wardentools/warden/internal/adapter"
	"github.com/wardentools/warden/pkg/models"
)

// Apply is one serialized state mutation. Collectors do their slow work
// (discovery, probes) on their own goroutines and hand the resulting
// mutation to the engine's single consumer as an Apply.
type Apply func()

// Collector is a background worker that schedules state mutations.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run blocks until ctx is cancelled, emitting applies on the channel.
	Run(ctx context.Context, applies chan<- Apply) error
}

// reconcileCollector drives the periodic discovery-and-merge pass. Discovery
// runs here, outside the apply loop; only the merge and its lock/fuse
// followup are serialized.
type reconcileCollector struct {
	engine   *Engine
	interval time.Duration
}

func newReconcileCollector(e *Engine, interval time.Duration) *reconcileCollector {
	return &reconcileCollector{engine: e, interval: interval}
}

func (c *reconcileCollector) Name() string { return "reconcile" }

func (c *reconcileCollector) Run(ctx context.Context, applies chan<- Apply) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	pass := func() {
		discovered, succeeded := c.engine.tracker.DiscoverAll(ctx)
		select {
		case applies <- func() { c.engine.applyReconcile(discovered, succeeded) }:
		case <-ctx.Done():
		}
	}

	pass()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pass()
		case <-c.engine.kick:
			pass()
		}
	}
}

// resolveCollector periodically tries to replace placeholder session ids
// with adapter-native ones.
type resolveCollector struct {
	engine   *Engine
	interval time.Duration
}

func newResolveCollector(e *Engine, interval time.Duration) *resolveCollector {
	return &resolveCollector{engine: e, interval: interval}
}

func (c *resolveCollector) Name() string { return "resolve" }

func (c *resolveCollector) Run(ctx context.Context, applies chan<- Apply) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pairs := c.engine.tracker.ResolvePendingSessions(ctx)
			if len(pairs) == 0 {
				continue
			}
			select {
			case applies <- func() { c.engine.afterResolutions(pairs) }:
			case <-ctx.Done():
			}
		}
	}
}

// cleanupCollector sweeps daemon-launched sessions whose processes died
// between reconcile passes.
type cleanupCollector struct {
	engine   *Engine
	interval time.Duration
}

func newCleanupCollector(e *Engine, interval time.Duration) *cleanupCollector {
	return &cleanupCollector{engine: e, interval: interval}
}

func (c *cleanupCollector) Name() string { return "cleanup" }

func (c *cleanupCollector) Run(ctx context.Context, applies chan<- Apply) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case applies <- func() { c.engine.afterTransitions(c.engine.tracker.CleanupDeadLaunches()) }:
			case <-ctx.Done():
			}
		}
	}
}

// eventsCollector forwards adapter transcript events onto the daemon bus
// and nudges a reconcile pass when a session reaches a terminal event, so
// stops surface faster than the interval.
type eventsCollector struct {
	engine *Engine
}

func newEventsCollector(e *Engine) *eventsCollector {
	return &eventsCollector{engine: e}
}

func (c *eventsCollector) Name() string { return "events" }

func (c *eventsCollector) Run(ctx context.Context, _ chan<- Apply) error {
	var wg sync.WaitGroup
	for _, a := range c.engine.registry.All() {
		ch, err := a.Events(ctx)
		if err != nil {
			c.engine.log.WithError(err).WithField("adapter", a.Name()).Warn("Event stream unavailable")
			continue
		}
		wg.Add(1)
		go func(name string, ch <-chan adapter.SessionEvent) {
			defer wg.Done()
			for ev := range ch {
				out := models.NewEvent(ev.Type).
					WithSession(ev.SessionID).
					WithData("adapter", name)
				if ev.Detail != "" {
					out = out.WithData("detail", ev.Detail)
				}
				c.engine.bus.Publish(out)
				if ev.Type == models.EventSessionStopped || ev.Type == models.EventSessionError {
					c.engine.RequestReconcile()
				}
			}
		}(a.Name(), ch)
	}
	wg.Wait()
	return nil
}
