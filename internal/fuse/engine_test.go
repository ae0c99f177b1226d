package fuse

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wardentools/warden/internal/event"
	"github.com/wardentools/warden/internal/state"
	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/util/pathutil"
)

func newTestEngine(t *testing.T) (*Engine, *state.Manager, *event.Bus) {
	t.Helper()
	st, err := state.Load(t.TempDir())
	if err != nil {
		t.Fatalf("state.Load failed: %v", err)
	}
	t.Cleanup(st.Flush)
	bus := event.NewBus()
	e := New(st, bus, 0)
	t.Cleanup(e.Stop)
	return e, st, bus
}

// eventRecorder collects bus events safely across goroutines; fuse timers
// fire on their own goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) record(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) snapshot() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func canonical(t *testing.T, dir string) string {
	t.Helper()
	key, err := pathutil.NormalizeForLookup(dir)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestSetArmsAndFires(t *testing.T) {
	e, st, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventFuseExpired, rec.record)

	timer, err := e.Set(SetParams{Directory: dir, SessionID: "sess-1", TTL: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if timer.TTL != 50*time.Millisecond {
		t.Errorf("unexpected ttl: %v", timer.TTL)
	}
	if len(e.List()) != 1 {
		t.Fatal("fuse should be persisted immediately")
	}

	waitFor(t, "fuse to fire", func() bool { return len(rec.snapshot()) > 0 })

	events := rec.snapshot()
	if events[0].Directory != canonical(t, dir) {
		t.Errorf("expired event names wrong directory: %q", events[0].Directory)
	}
	if events[0].SessionID != "sess-1" {
		t.Errorf("expired event lost session id: %+v", events[0])
	}

	// Bookkeeping completed: the entry is gone.
	if len(e.List()) != 0 {
		t.Error("fired fuse should be removed from state")
	}
	if _, ok := st.FuseFor(canonical(t, dir)); ok {
		t.Error("fired fuse entry should not remain persisted")
	}
}

func TestSetDefaultTTL(t *testing.T) {
	e, _, _ := newTestEngine(t)
	dir := t.TempDir()

	timer, err := e.Set(SetParams{Directory: dir})
	if err != nil {
		t.Fatal(err)
	}
	if timer.TTL != DefaultTTL {
		t.Errorf("expected default ttl %v, got %v", DefaultTTL, timer.TTL)
	}

	remaining := timer.Remaining(time.Now())
	if remaining > DefaultTTL || remaining < DefaultTTL-5*time.Second {
		t.Errorf("expires_at should sit one default ttl out, remaining %v", remaining)
	}
}

func TestSetReplacesExistingFuse(t *testing.T) {
	e, _, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventFuseExpired, rec.record)

	// Arm a short fuse, then immediately replace it with a long one.
	if _, err := e.Set(SetParams{Directory: dir, SessionID: "first", TTL: 60 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Set(SetParams{Directory: dir, SessionID: "second", TTL: time.Hour, Label: "replacement"}); err != nil {
		t.Fatal(err)
	}

	fuses := e.List()
	if len(fuses) != 1 {
		t.Fatalf("expected exactly one fuse after re-arm, got %d", len(fuses))
	}
	if fuses[0].SessionID != "second" || fuses[0].Label != "replacement" {
		t.Errorf("replacement should reflect the second call: %+v", fuses[0])
	}

	// The first timer is dead: nothing fires once its ttl passes.
	time.Sleep(200 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("replaced fuse must not fire, got %d expirations", len(got))
	}
	if len(e.List()) != 1 {
		t.Error("replacement fuse should still be armed")
	}
}

func TestExtendMissingFuse(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if _, ok := e.Extend(t.TempDir(), time.Minute); ok {
		t.Error("extending a directory with no fuse should report false")
	}
}

func TestExtendReusesPreviousTTL(t *testing.T) {
	e, _, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventFuseExtended, rec.record)

	if _, err := e.Set(SetParams{Directory: dir, TTL: 5 * time.Minute}); err != nil {
		t.Fatal(err)
	}

	updated, ok := e.Extend(dir, 0)
	if !ok {
		t.Fatal("extend should succeed")
	}
	if updated.TTL != 5*time.Minute {
		t.Errorf("zero ttl should reuse the previous one, got %v", updated.TTL)
	}

	remaining := updated.Remaining(time.Now())
	if remaining > 5*time.Minute || remaining < 5*time.Minute-5*time.Second {
		t.Errorf("extend should push expiry a full ttl out, remaining %v", remaining)
	}

	if len(rec.snapshot()) != 1 {
		t.Error("extend should announce itself")
	}
}

func TestExtendDefersExpiry(t *testing.T) {
	e, _, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventFuseExpired, rec.record)

	if _, err := e.Set(SetParams{Directory: dir, TTL: 80 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Extend(dir, time.Hour); !ok {
		t.Fatal("extend should succeed")
	}

	time.Sleep(200 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Error("extended fuse must not fire on the old schedule")
	}
	if len(e.List()) != 1 {
		t.Error("extended fuse should still be armed")
	}
}

func TestCancelRemovesFuse(t *testing.T) {
	e, _, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventFuseExpired, rec.record)

	if _, err := e.Set(SetParams{Directory: dir, TTL: 60 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if !e.Cancel(dir, true) {
		t.Error("cancel of an armed fuse should report true")
	}
	if len(e.List()) != 0 {
		t.Error("cancelled fuse should be removed from state")
	}

	time.Sleep(150 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Error("cancelled fuse must not fire")
	}

	if e.Cancel(dir, true) {
		t.Error("cancel with nothing armed should report false")
	}
}

func TestCancelWithoutPersistKeepsEntry(t *testing.T) {
	e, _, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventFuseExpired, rec.record)

	if _, err := e.Set(SetParams{Directory: dir, TTL: 50 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if !e.Cancel(dir, false) {
		t.Error("cancel should report the cleared timer")
	}

	// The timer is gone but the persisted entry survives; Resume would
	// pick it up again.
	time.Sleep(150 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Error("timer was cleared, nothing should fire")
	}
	if len(e.List()) != 1 {
		t.Error("persist=false must leave the stored entry in place")
	}
}

func TestResumeFiresOverdueInStoredOrder(t *testing.T) {
	e, st, bus := newTestEngine(t)
	dirA := t.TempDir()
	dirB := t.TempDir()
	dirC := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventFuseExpired, rec.record)

	now := time.Now()
	// Seed persisted fuses directly, as if a previous daemon wrote them.
	st.PutFuse(models.FuseTimer{Directory: canonical(t, dirA), TTL: time.Minute, ExpiresAt: now.Add(-2 * time.Minute)})
	st.PutFuse(models.FuseTimer{Directory: canonical(t, dirB), TTL: time.Minute, ExpiresAt: now.Add(-1 * time.Minute)})
	st.PutFuse(models.FuseTimer{Directory: canonical(t, dirC), TTL: time.Hour, ExpiresAt: now.Add(time.Hour)})

	fired, armed := e.Resume()
	if fired != 2 {
		t.Errorf("expected 2 overdue fuses fired, got %d", fired)
	}
	if armed != 1 {
		t.Errorf("expected 1 future fuse armed, got %d", armed)
	}

	events := rec.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 expirations during Resume, got %d", len(events))
	}
	if events[0].Directory != canonical(t, dirA) || events[1].Directory != canonical(t, dirB) {
		t.Errorf("overdue fuses should fire in stored order, got %q then %q",
			events[0].Directory, events[1].Directory)
	}

	fuses := e.List()
	if len(fuses) != 1 || fuses[0].Directory != canonical(t, dirC) {
		t.Errorf("only the future fuse should remain, got %+v", fuses)
	}
}

func TestFireRunsShellActionInDirectory(t *testing.T) {
	e, _, _ := newTestEngine(t)
	dir := t.TempDir()

	_, err := e.Set(SetParams{
		Directory: dir,
		TTL:       50 * time.Millisecond,
		OnExpire:  &models.FuseActions{Run: "touch fired.marker"},
	})
	if err != nil {
		t.Fatal(err)
	}

	marker := filepath.Join(canonical(t, dir), "fired.marker")
	waitFor(t, "shell action to run", func() bool {
		_, err := os.Stat(marker)
		return err == nil
	})
}

func TestFireDeliversWebhook(t *testing.T) {
	e, _, _ := newTestEngine(t)
	dir := t.TempDir()

	var mu sync.Mutex
	var got *models.FuseExpiredPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p models.FuseExpiredPayload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("webhook body is not valid JSON: %v", err)
		}
		mu.Lock()
		got = &p
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := e.Set(SetParams{
		Directory: dir,
		SessionID: "sess-9",
		Label:     "teardown",
		TTL:       50 * time.Millisecond,
		OnExpire:  &models.FuseActions{Webhook: srv.URL},
	})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "webhook delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	})

	mu.Lock()
	defer mu.Unlock()
	if got.Type != string(models.EventFuseExpired) {
		t.Errorf("payload type = %q", got.Type)
	}
	if got.Directory != canonical(t, dir) {
		t.Errorf("payload directory = %q", got.Directory)
	}
	if got.SessionID != "sess-9" || got.Label != "teardown" {
		t.Errorf("payload lost fields: %+v", got)
	}
	if got.ExpiredAt.IsZero() {
		t.Error("payload should carry the expiry time")
	}
}

func TestFirePublishesNamedEvent(t *testing.T) {
	e, _, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventType("workspace.teardown"), rec.record)

	_, err := e.Set(SetParams{
		Directory: dir,
		TTL:       50 * time.Millisecond,
		OnExpire:  &models.FuseActions{Event: "workspace.teardown"},
	})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "named event", func() bool { return len(rec.snapshot()) > 0 })
	if got := rec.snapshot()[0]; got.Directory != canonical(t, dir) {
		t.Errorf("named event should carry the directory, got %+v", got)
	}
}

func TestFailedActionsAreSwallowed(t *testing.T) {
	e, _, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventType("still.delivered"), rec.record)

	// Shell exits non-zero and the webhook points nowhere; the named
	// event must still go out and bookkeeping must already be done.
	_, err := e.Set(SetParams{
		Directory: dir,
		TTL:       50 * time.Millisecond,
		OnExpire: &models.FuseActions{
			Run:     "exit 1",
			Webhook: "http://127.0.0.1:1/unreachable",
			Event:   "still.delivered",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "named event despite failing actions", func() bool { return len(rec.snapshot()) > 0 })

	if len(e.List()) != 0 {
		t.Error("entry removal happens before actions, regardless of their outcome")
	}
}

func TestSetFuseEventPublished(t *testing.T) {
	e, _, bus := newTestEngine(t)
	dir := t.TempDir()

	rec := &eventRecorder{}
	bus.Subscribe(models.EventFuseSet, rec.record)

	if _, err := e.Set(SetParams{Directory: dir, TTL: time.Hour, Label: "window"}); err != nil {
		t.Fatal(err)
	}

	events := rec.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one fuse.set event, got %d", len(events))
	}
	if events[0].Data["label"] != "window" {
		t.Errorf("fuse.set should carry the label, got %+v", events[0].Data)
	}
}
