// Package server exposes the daemon engine over HTTP on a local unix socket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/internal/daemon/engine"
	"github.com/wardentools/warden/internal/fuse"
	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
)

// StreamUpdate is one frame of the /api/stream SSE feed. The first frame
// after connect is a full snapshot; every bus event follows as its own frame.
type StreamUpdate struct {
	Type  string                `json:"type"`
	State *models.StateResponse `json:"state,omitempty"`
	Event *models.Event         `json:"event,omitempty"`
}

// Server manages the daemon's HTTP server over a unix socket.
type Server struct {
	log       *logrus.Entry
	server    *http.Server
	engine    *engine.Engine
	version   string
	startedAt time.Time
	upgrader  websocket.Upgrader

	// done unblocks stream handlers on shutdown; their connections would
	// otherwise hold http.Server.Shutdown until the client goes away.
	done chan struct{}
}

// New creates a server around an engine. Version is reported by /health.
func New(eng *engine.Engine, version string) *Server {
	return &Server{
		log:       logging.NewLogger("server"),
		engine:    eng,
		version:   version,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The socket is 0600; anything that can connect is us.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ListenAndServe binds the daemon API to a unix socket and serves until
// Shutdown or a listener error.
func (s *Server) ListenAndServe(socketPath string) error {
	// A socket file left by a crashed daemon would refuse the bind.
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}

	// Owner-only. The API can launch processes as this user.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("restrict socket permissions: %w", err)
	}

	s.server = &http.Server{Handler: h2c.NewHandler(s.routes(), &http2.Server{})}

	s.log.WithField("socket", socketPath).Info("Daemon listening")
	return s.server.Serve(listener)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/locks", s.handleLocks)
	mux.HandleFunc("/api/locks/manual", s.handleManualLock)
	mux.HandleFunc("/api/fuses", s.handleFuses)
	mux.HandleFunc("/api/fuses/extend", s.handleFuseExtend)
	mux.HandleFunc("/api/fuses/cancel", s.handleFuseCancel)
	mux.HandleFunc("/api/metrics", s.handleMetrics)

	mux.HandleFunc("/api/launch", s.handleLaunch)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/resume", s.handleResume)
	mux.HandleFunc("/api/peek", s.handlePeek)
	mux.HandleFunc("/api/resolve", s.handleResolve)

	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/events", s.handleEvents)

	return mux
}

// Shutdown drains in-flight requests and wakes the SSE streams so they
// close instead of pinning the drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server...")
	close(s.done)
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Debug("Response write failed")
	}
}

// errorEnvelope is the error body shape; clients reconstruct the coded
// error from it.
type errorEnvelope struct {
	Error *errors.WardenError `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	werr, ok := err.(*errors.WardenError)
	if !ok {
		werr = errors.Wrap(err, errors.ErrCodeInternal, "internal error")
	}
	s.writeJSON(w, httpStatus(werr.Code), errorEnvelope{Error: werr})
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeSessionNotFound, errors.ErrCodeFuseNotFound,
		errors.ErrCodeNoManualLock, errors.ErrCodeAdapterUnknown:
		return http.StatusNotFound
	case errors.ErrCodeAlreadyLocked:
		return http.StatusConflict
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeAdapterUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	return nil
}

// requireDirectory rejects empty directories before they normalize to the
// daemon's own working directory.
func requireDirectory(dir string) error {
	if dir == "" {
		return errors.New(errors.ErrCodeInvalidInput, "missing directory")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Version:   s.version,
		PID:       os.Getpid(),
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleState returns the complete daemon state as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// handleSessions returns all tracked sessions, newest first.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Tracker().Sessions())
}

func (s *Server) handleLocks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Locks().List())
}

// handleManualLock acquires (POST) or releases (DELETE) an operator lock.
func (s *Server) handleManualLock(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req models.ManualLockRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if err := requireDirectory(req.Directory); err != nil {
			s.writeError(w, err)
			return
		}
		lock, err := s.engine.Locks().ManualLock(req.Directory, req.By, req.Reason)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, lock)

	case http.MethodDelete:
		var req models.ManualUnlockRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if err := requireDirectory(req.Directory); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.engine.Locks().ManualUnlock(req.Directory); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"unlocked": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFuses lists fuses (GET) or arms one (POST).
func (s *Server) handleFuses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.engine.Fuses().List())

	case http.MethodPost:
		var req models.FuseSetRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if err := requireDirectory(req.Directory); err != nil {
			s.writeError(w, err)
			return
		}
		ttl, err := parseTTL(req.TTL)
		if err != nil {
			s.writeError(w, err)
			return
		}
		timer, err := s.engine.Fuses().Set(fuse.SetParams{
			Directory: req.Directory,
			SessionID: req.SessionID,
			TTL:       ttl,
			Label:     req.Label,
			OnExpire:  req.OnExpire,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, timer)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFuseExtend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req models.FuseExtendRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := requireDirectory(req.Directory); err != nil {
		s.writeError(w, err)
		return
	}
	ttl, err := parseTTL(req.TTL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	timer, ok := s.engine.Fuses().Extend(req.Directory, ttl)
	if !ok {
		s.writeError(w, errors.FuseNotFound(req.Directory))
		return
	}
	s.writeJSON(w, http.StatusOK, timer)
}

func (s *Server) handleFuseCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req models.FuseCancelRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := requireDirectory(req.Directory); err != nil {
		s.writeError(w, err)
		return
	}
	if !s.engine.Fuses().Cancel(req.Directory, true) {
		s.writeError(w, errors.FuseNotFound(req.Directory))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"canceled": true})
}

func parseTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("invalid ttl %q", raw))
	}
	return ttl, nil
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Metrics())
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req models.LaunchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.engine.Launch(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.LaunchResponse{Session: *rec})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req models.StopRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.engine.Stop(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req models.ResumeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.engine.Resume(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// handlePeek returns the transcript tail: GET /api/peek?session=ID&lines=N.
func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "missing session parameter"))
		return
	}
	lines := 0
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid lines %q", raw)))
			return
		}
		lines = n
	}
	out, err := s.engine.Peek(r.Context(), id, lines)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.PeekResponse{SessionID: id, Lines: out})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req models.ResolveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.engine.Resolve(r.Context(), req.SessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStream provides Server-Sent Events for real-time updates. The first
// frame is a full state snapshot; bus events follow as they happen.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Bus handlers must not block the publisher; a slow client loses
	// events rather than stalling the daemon.
	updates := make(chan models.Event, 64)
	subID := s.engine.Bus().SubscribeAll(func(e models.Event) {
		select {
		case updates <- e:
		default:
		}
	})
	defer s.engine.Bus().Unsubscribe(subID)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.log.Debug("SSE client connected")

	snapshot := s.engine.Snapshot()
	s.writeFrame(w, flusher, StreamUpdate{Type: "snapshot", State: &snapshot})

	for {
		select {
		case <-r.Context().Done():
			s.log.Debug("SSE client disconnected")
			return
		case <-s.done:
			return
		case ev := <-updates:
			s.writeFrame(w, flusher, StreamUpdate{Type: "event", Event: &ev})
		}
	}
}

func (s *Server) writeFrame(w http.ResponseWriter, flusher http.Flusher, update StreamUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		s.log.WithError(err).Error("Failed to marshal update")
		return
	}
	// SSE format: "data: {json}\n\n"
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// handleEvents upgrades to a websocket and pushes every bus event to the
// client as a JSON message.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan models.Event, 64)
	subID := s.engine.Bus().SubscribeAll(func(e models.Event) {
		select {
		case events <- e:
		default:
		}
	})
	defer s.engine.Bus().Unsubscribe(subID)

	// The read side only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-s.done:
			return
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
