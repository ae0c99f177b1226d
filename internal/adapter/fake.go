package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/wardentools/warden/pkg/models"
)

// Fake is a scriptable Adapter for tracker and daemon tests. Zero value
// fields behave benignly: no sessions, everything dead, operations succeed.
type Fake struct {
	AdapterName string

	mu         sync.Mutex
	discovered []models.DiscoveredSession
	alive      map[string]bool

	// DiscoverErr makes Discover fail. DiscoverDelay makes it slow, for
	// timeout tests; the delay still honors ctx.
	DiscoverErr   error
	DiscoverDelay time.Duration

	LaunchResult *LaunchResult
	LaunchErr    error
	StopErr      error

	launches      []LaunchOptions
	stops         []string
	resumes       map[string]string
	discoverCalls int

	// EventsCh, when set, is returned by Events as-is.
	EventsCh chan SessionEvent
}

// NewFake creates a fake adapter with the given name.
func NewFake(name string) *Fake {
	return &Fake{
		AdapterName: name,
		alive:       make(map[string]bool),
		resumes:     make(map[string]string),
	}
}

func (f *Fake) Name() string { return f.AdapterName }

// SetDiscovered replaces the discovery report.
func (f *Fake) SetDiscovered(sessions ...models.DiscoveredSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovered = append([]models.DiscoveredSession(nil), sessions...)
}

// SetAlive scripts the liveness answer for a session id.
func (f *Fake) SetAlive(sessionID string, alive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alive == nil {
		f.alive = make(map[string]bool)
	}
	f.alive[sessionID] = alive
}

func (f *Fake) Discover(ctx context.Context) ([]models.DiscoveredSession, error) {
	f.mu.Lock()
	f.discoverCalls++
	delay := f.DiscoverDelay
	err := f.DiscoverErr
	sessions := append([]models.DiscoveredSession(nil), f.discovered...)
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// DiscoverCalls reports how many times Discover ran.
func (f *Fake) DiscoverCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoverCalls
}

func (f *Fake) IsAlive(ctx context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[sessionID], nil
}

func (f *Fake) Launch(ctx context.Context, opts LaunchOptions) (*LaunchResult, error) {
	f.mu.Lock()
	f.launches = append(f.launches, opts)
	res := f.LaunchResult
	err := f.LaunchErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if res != nil {
		r := *res
		return &r, nil
	}
	return &LaunchResult{ID: models.NewPlaceholderID(), PID: 0}, nil
}

// Launches returns every LaunchOptions passed to Launch.
func (f *Fake) Launches() []LaunchOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LaunchOptions(nil), f.launches...)
}

func (f *Fake) Stop(ctx context.Context, sessionID string, opts StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, sessionID)
	if f.StopErr != nil {
		return f.StopErr
	}
	f.alive[sessionID] = false
	return nil
}

// Stops returns the session ids Stop was called with.
func (f *Fake) Stops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stops...)
}

func (f *Fake) Resume(ctx context.Context, sessionID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resumes == nil {
		f.resumes = make(map[string]string)
	}
	f.resumes[sessionID] = message
	return nil
}

// Resumes returns the last message delivered per session id.
func (f *Fake) Resumes() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.resumes))
	for k, v := range f.resumes {
		out[k] = v
	}
	return out
}

func (f *Fake) Peek(ctx context.Context, sessionID string, opts PeekOptions) ([]string, error) {
	return []string{}, nil
}

func (f *Fake) Events(ctx context.Context) (<-chan SessionEvent, error) {
	if f.EventsCh != nil {
		return f.EventsCh, nil
	}
	ch := make(chan SessionEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
