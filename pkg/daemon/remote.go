package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/pkg/models"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a
// unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) (*RemoteClient, error) {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}

	return &RemoteClient{
		httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		socketPath: socketPath,
	}, nil
}

// baseURL is the dummy host for unix socket HTTP requests. The connection
// goes through the socket, not this URL.
const baseURL = "http://wardend"

// do issues one request and decodes the response into out (when non-nil).
// Non-2xx responses decode the daemon's error envelope back into a coded
// error.
func (c *RemoteClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.DaemonUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error *errors.WardenError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != nil {
		return envelope.Error
	}
	return errors.New(errors.ErrCodeInternal,
		fmt.Sprintf("daemon returned status %d", resp.StatusCode))
}

func (c *RemoteClient) Health(ctx context.Context) (*models.HealthResponse, error) {
	var health models.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *RemoteClient) State(ctx context.Context) (*models.StateResponse, error) {
	var state models.StateResponse
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *RemoteClient) Sessions(ctx context.Context) ([]models.SessionRecord, error) {
	var sessions []models.SessionRecord
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *RemoteClient) Locks(ctx context.Context) ([]models.Lock, error) {
	var lockList []models.Lock
	if err := c.do(ctx, http.MethodGet, "/api/locks", nil, &lockList); err != nil {
		return nil, err
	}
	return lockList, nil
}

func (c *RemoteClient) Fuses(ctx context.Context) ([]models.FuseTimer, error) {
	var fuses []models.FuseTimer
	if err := c.do(ctx, http.MethodGet, "/api/fuses", nil, &fuses); err != nil {
		return nil, err
	}
	return fuses, nil
}

func (c *RemoteClient) Metrics(ctx context.Context) (*models.MetricsSnapshot, error) {
	var snap models.MetricsSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/metrics", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RemoteClient) Launch(ctx context.Context, req models.LaunchRequest) (*models.SessionRecord, error) {
	var resp models.LaunchResponse
	if err := c.do(ctx, http.MethodPost, "/api/launch", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

func (c *RemoteClient) Stop(ctx context.Context, req models.StopRequest) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	if err := c.do(ctx, http.MethodPost, "/api/stop", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *RemoteClient) Resume(ctx context.Context, req models.ResumeRequest) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	if err := c.do(ctx, http.MethodPost, "/api/resume", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *RemoteClient) Peek(ctx context.Context, sessionID string, lines int) ([]string, error) {
	path := "/api/peek?session=" + url.QueryEscape(sessionID)
	if lines > 0 {
		path += "&lines=" + strconv.Itoa(lines)
	}
	var resp models.PeekResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

func (c *RemoteClient) Resolve(ctx context.Context, sessionID string) (*models.ResolveResponse, error) {
	var resp models.ResolveResponse
	if err := c.do(ctx, http.MethodPost, "/api/resolve", models.ResolveRequest{SessionID: sessionID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RemoteClient) ManualLock(ctx context.Context, req models.ManualLockRequest) (*models.Lock, error) {
	var lock models.Lock
	if err := c.do(ctx, http.MethodPost, "/api/locks/manual", req, &lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

func (c *RemoteClient) ManualUnlock(ctx context.Context, directory string) error {
	return c.do(ctx, http.MethodDelete, "/api/locks/manual",
		models.ManualUnlockRequest{Directory: directory}, nil)
}

func (c *RemoteClient) SetFuse(ctx context.Context, req models.FuseSetRequest) (*models.FuseTimer, error) {
	var timer models.FuseTimer
	if err := c.do(ctx, http.MethodPost, "/api/fuses", req, &timer); err != nil {
		return nil, err
	}
	return &timer, nil
}

func (c *RemoteClient) ExtendFuse(ctx context.Context, req models.FuseExtendRequest) (*models.FuseTimer, error) {
	var timer models.FuseTimer
	if err := c.do(ctx, http.MethodPost, "/api/fuses/extend", req, &timer); err != nil {
		return nil, err
	}
	return &timer, nil
}

func (c *RemoteClient) CancelFuse(ctx context.Context, directory string) error {
	return c.do(ctx, http.MethodPost, "/api/fuses/cancel",
		models.FuseCancelRequest{Directory: directory}, nil)
}

// IsRunning reports whether a daemon answers on the socket right now.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamState subscribes to real-time updates via Server-Sent Events. The
// channel closes when the context is cancelled or the connection is lost.
func (c *RemoteClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}

	// A separate client with no timeout; the stream lives as long as the
	// context does.
	streamTransport := &http.Transport{
		DialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
	}
	streamClient := &http.Client{Transport: streamTransport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, errors.DaemonUnavailable(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint answered %d", resp.StatusCode)
	}

	ch := make(chan StateUpdate, 16)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()
		pumpStream(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// pumpStream decodes data: frames off an SSE body until it ends or ctx is
// done. Heartbeat comments, blank separators and undecodable frames are
// dropped silently.
func pumpStream(ctx context.Context, body io.Reader, ch chan<- StateUpdate) {
	scanner := bufio.NewScanner(body)
	// Snapshots grow with the session count; give frames room.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var update StateUpdate
		if err := json.Unmarshal([]byte(data), &update); err != nil {
			continue
		}
		select {
		case ch <- update:
		case <-ctx.Done():
			return
		}
	}
}

// Close drops pooled connections. Safe to call more than once.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Client = (*RemoteClient)(nil)
