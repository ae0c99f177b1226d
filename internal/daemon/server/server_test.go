package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/internal/adapter"
	"github.com/wardentools/warden/internal/daemon/engine"
	"github.com/wardentools/warden/internal/event"
	"github.com/wardentools/warden/internal/fuse"
	"github.com/wardentools/warden/internal/locks"
	"github.com/wardentools/warden/internal/state"
	"github.com/wardentools/warden/internal/tracker"
	"github.com/wardentools/warden/pkg/models"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, fakes ...*adapter.Fake) (*Server, *engine.Engine, *state.Manager) {
	t.Helper()
	st, err := state.Load(t.TempDir())
	if err != nil {
		t.Fatalf("state.Load failed: %v", err)
	}
	t.Cleanup(st.Flush)

	reg := adapter.NewRegistry()
	for _, f := range fakes {
		reg.Register(f)
	}
	bus := event.NewBus()
	fe := fuse.New(st, bus, time.Hour)
	t.Cleanup(fe.Stop)
	tr := tracker.New(st, reg, bus, 0)
	eng := engine.New(&config.Config{}, st, reg, tr, locks.New(st, bus), fe, bus)

	return New(eng, "test"), eng, st
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out interface{}) *http.Response {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errors.ErrorCode {
	t.Helper()
	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if envelope.Error == nil {
		t.Fatal("error body missing error field")
	}
	return envelope.Error.Code
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	var health models.HealthResponse
	resp := getJSON(t, ts, "/health", &health)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if health.Status != "ok" || health.Version != "test" || health.PID != os.Getpid() {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestStateAndSessions(t *testing.T) {
	s, _, st := newTestServer(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	st.SetSession(&models.SessionRecord{
		ID: "native-1", Adapter: "claude", Status: models.StatusRunning, StartedAt: time.Now(),
	})

	var stateResp models.StateResponse
	getJSON(t, ts, "/api/state", &stateResp)
	if len(stateResp.Sessions) != 1 || stateResp.Sessions[0].ID != "native-1" {
		t.Errorf("unexpected state %+v", stateResp)
	}

	var sessions []models.SessionRecord
	getJSON(t, ts, "/api/sessions", &sessions)
	if len(sessions) != 1 || sessions[0].ID != "native-1" {
		t.Errorf("unexpected sessions %+v", sessions)
	}
}

func TestLaunchEndpoint(t *testing.T) {
	dir := t.TempDir()
	fake := adapter.NewFake("claude")
	fake.LaunchResult = &adapter.LaunchResult{ID: "pending-01HTEST", PID: 77}
	s, eng, _ := newTestServer(t, fake)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	var launched models.LaunchResponse
	resp := postJSON(t, ts, "/api/launch", models.LaunchRequest{Adapter: "claude", Directory: dir}, &launched)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if launched.Session.ID != "pending-01HTEST" || !launched.Session.DaemonLaunched {
		t.Errorf("unexpected session %+v", launched.Session)
	}

	other := t.TempDir()
	if _, err := eng.Locks().ManualLock(other, "ana", "freeze"); err != nil {
		t.Fatal(err)
	}
	resp = postJSON(t, ts, "/api/launch", models.LaunchRequest{Adapter: "claude", Directory: other}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestStopEndpointUnknownSession(t *testing.T) {
	s, _, _ := newTestServer(t, adapter.NewFake("claude"))
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	payload, _ := json.Marshal(models.StopRequest{SessionID: "ghost"})
	resp, err := ts.Client().Post(ts.URL+"/api/stop", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != errors.ErrCodeSessionNotFound {
		t.Errorf("expected SESSION_NOT_FOUND, got %s", code)
	}
}

func TestFuseEndpoints(t *testing.T) {
	dir := t.TempDir()
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	var timer models.FuseTimer
	resp := postJSON(t, ts, "/api/fuses", models.FuseSetRequest{Directory: dir, TTL: "45m", Label: "nightly"}, &timer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status %d", resp.StatusCode)
	}
	if timer.TTL != 45*time.Minute || timer.Label != "nightly" {
		t.Errorf("unexpected timer %+v", timer)
	}

	var fuses []models.FuseTimer
	getJSON(t, ts, "/api/fuses", &fuses)
	if len(fuses) != 1 {
		t.Fatalf("expected one fuse, got %+v", fuses)
	}

	resp = postJSON(t, ts, "/api/fuses/extend", models.FuseExtendRequest{Directory: dir}, &timer)
	if resp.StatusCode != http.StatusOK || timer.TTL != 45*time.Minute {
		t.Errorf("extend should reuse the previous TTL: status %d timer %+v", resp.StatusCode, timer)
	}

	resp = postJSON(t, ts, "/api/fuses/cancel", models.FuseCancelRequest{Directory: dir}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status %d", resp.StatusCode)
	}

	payload, _ := json.Marshal(models.FuseCancelRequest{Directory: dir})
	rawResp, err := ts.Client().Post(ts.URL+"/api/fuses/cancel", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer rawResp.Body.Close()
	if rawResp.StatusCode != http.StatusNotFound {
		t.Fatalf("second cancel should 404, got %d", rawResp.StatusCode)
	}

	resp = postJSON(t, ts, "/api/fuses", models.FuseSetRequest{Directory: dir, TTL: "bogus"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid ttl should 400, got %d", resp.StatusCode)
	}
}

func TestManualLockEndpoints(t *testing.T) {
	dir := t.TempDir()
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	var lock models.Lock
	resp := postJSON(t, ts, "/api/locks/manual", models.ManualLockRequest{Directory: dir, By: "ana", Reason: "freeze"}, &lock)
	if resp.StatusCode != http.StatusOK || lock.Type != models.LockManual || lock.By != "ana" {
		t.Fatalf("unexpected lock response: status %d lock %+v", resp.StatusCode, lock)
	}

	var lockList []models.Lock
	getJSON(t, ts, "/api/locks", &lockList)
	if len(lockList) != 1 {
		t.Fatalf("expected one lock, got %+v", lockList)
	}

	del := func() *http.Response {
		payload, _ := json.Marshal(models.ManualUnlockRequest{Directory: dir})
		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/locks/manual", bytes.NewReader(payload))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	resp = del()
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unlock status %d", resp.StatusCode)
	}

	resp = del()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second unlock should 404, got %d", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != errors.ErrCodeNoManualLock {
		t.Errorf("expected NO_MANUAL_LOCK, got %s", code)
	}
}

func TestMethodGuards(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	for _, path := range []string{"/api/launch", "/api/stop", "/api/resume", "/api/resolve", "/api/fuses/extend", "/api/fuses/cancel"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("GET %s should 405, got %d", path, resp.StatusCode)
		}
	}
}

func TestPeekValidation(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/peek")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing session should 400, got %d", resp.StatusCode)
	}

	resp, err = ts.Client().Get(ts.URL + "/api/peek?session=x&lines=many")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad lines should 400, got %d", resp.StatusCode)
	}
}

func TestResolveEndpoint(t *testing.T) {
	fake := adapter.NewFake("claude")
	s, _, st := newTestServer(t, fake)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	st.SetSession(&models.SessionRecord{
		ID: "native-1", Adapter: "claude", Status: models.StatusRunning, StartedAt: time.Now(),
	})

	var resolved models.ResolveResponse
	resp := postJSON(t, ts, "/api/resolve", models.ResolveRequest{SessionID: "native-1"}, &resolved)
	if resp.StatusCode != http.StatusOK || resolved.Resolved {
		t.Errorf("non-placeholder should report resolved=false: status %d resp %+v", resp.StatusCode, resolved)
	}

	resp = postJSON(t, ts, "/api/resolve", models.ResolveRequest{SessionID: "ghost"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id should 404, got %d", resp.StatusCode)
	}
}

func TestStreamSendsSnapshotThenEvents(t *testing.T) {
	s, eng, st := newTestServer(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	st.SetSession(&models.SessionRecord{
		ID: "native-1", Adapter: "claude", Status: models.StatusRunning, StartedAt: time.Now(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	readFrame := func() StreamUpdate {
		t.Helper()
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var update StreamUpdate
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update); err != nil {
				t.Fatalf("bad frame %q: %v", line, err)
			}
			return update
		}
		t.Fatalf("stream ended early: %v", scanner.Err())
		return StreamUpdate{}
	}

	snapshot := readFrame()
	if snapshot.Type != "snapshot" || snapshot.State == nil || len(snapshot.State.Sessions) != 1 {
		t.Fatalf("unexpected first frame %+v", snapshot)
	}

	eng.Bus().Publish(models.NewEvent(models.EventSessionStopped).WithSession("native-1"))
	frame := readFrame()
	if frame.Type != "event" || frame.Event == nil || frame.Event.SessionID != "native-1" {
		t.Fatalf("unexpected event frame %+v", frame)
	}
}

func TestEventsWebsocket(t *testing.T) {
	s, eng, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Subscription races the dial; give the handler a beat to register.
	time.Sleep(50 * time.Millisecond)
	eng.Bus().Publish(models.NewEvent(models.EventLockAcquired).WithDirectory("/work/a"))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev models.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != models.EventLockAcquired || ev.Directory != "/work/a" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestListenAndServeUnixSocket(t *testing.T) {
	s, _, _ := newTestServer(t)
	socketPath := filepath.Join(t.TempDir(), "wardend.sock")

	// A leftover socket from a dead daemon must not block startup.
	if err := os.WriteFile(socketPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(socketPath) }()

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return net.Dial("unix", socketPath)
			},
		},
	}

	var health models.HealthResponse
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.Get("http://wardend/health")
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			if err == nil {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if health.Status != "ok" {
		t.Errorf("unexpected health %+v", health)
	}

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("socket permissions = %o, want 600", perm)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("serve did not return after shutdown")
	}
}
