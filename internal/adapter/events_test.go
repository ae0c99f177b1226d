package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/pkg/models"
)

func TestParseTranscriptLine(t *testing.T) {
	d := newTestDirScan(t, "claude", config.AdapterConfig{})

	tests := []struct {
		name       string
		line       string
		wantOK     bool
		wantType   models.EventType
		wantID     string
		wantDetail string
	}{
		{
			name:     "init record",
			line:     `{"type":"system","subtype":"init","session_id":"abc"}`,
			wantOK:   true,
			wantType: models.EventSessionStarted,
			wantID:   "abc",
		},
		{
			name:       "successful result",
			line:       `{"type":"result","subtype":"success","session_id":"abc"}`,
			wantOK:     true,
			wantType:   models.EventSessionStopped,
			wantID:     "abc",
			wantDetail: "success",
		},
		{
			name:       "error result",
			line:       `{"type":"result","subtype":"error_max_turns","is_error":true,"session_id":"abc"}`,
			wantOK:     true,
			wantType:   models.EventSessionError,
			wantID:     "abc",
			wantDetail: "error_max_turns",
		},
		{
			name:     "idle record",
			line:     `{"type":"idle","session_id":"abc"}`,
			wantOK:   true,
			wantType: models.EventSessionIdle,
			wantID:   "abc",
		},
		{
			name:     "missing session id falls back to directory name",
			line:     `{"type":"system","subtype":"init"}`,
			wantOK:   true,
			wantType: models.EventSessionStarted,
			wantID:   "dir-name",
		},
		{
			name:   "assistant chatter is skipped",
			line:   `{"type":"assistant","message":{"content":"hi"}}`,
			wantOK: false,
		},
		{
			name:   "plain text is skipped",
			line:   "agent starting up...",
			wantOK: false,
		},
		{
			name:   "empty line is skipped",
			line:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := d.parseTranscriptLine("dir-name", tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if ev.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", ev.Type, tt.wantType)
			}
			if ev.SessionID != tt.wantID {
				t.Errorf("SessionID = %q, want %q", ev.SessionID, tt.wantID)
			}
			if tt.wantDetail != "" && ev.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", ev.Detail, tt.wantDetail)
			}
			if ev.Adapter != "claude" {
				t.Errorf("Adapter = %q", ev.Adapter)
			}
		})
	}
}

func TestEventsStreamsTranscript(t *testing.T) {
	d := newTestDirScan(t, "claude", config.AdapterConfig{})

	dir := registerSession(t, d.Root(), "sess-1", os.Getpid(), nil)
	transcript := filepath.Join(dir, transcriptFileName)
	if err := os.WriteFile(transcript,
		[]byte(`{"type":"system","subtype":"init","session_id":"sess-1"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := d.Events(ctx)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != models.EventSessionStarted {
			t.Errorf("Type = %s, want %s", ev.Type, models.EventSessionStarted)
		}
		if ev.SessionID != "sess-1" {
			t.Errorf("SessionID = %q", ev.SessionID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("No event received for existing transcript")
	}

	// Lines appended while the stream is live are picked up too.
	f, err := os.OpenFile(transcript, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"type":"result","subtype":"success","session_id":"sess-1"}` + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case ev := <-events:
		if ev.Type != models.EventSessionStopped {
			t.Errorf("Type = %s, want %s", ev.Type, models.EventSessionStopped)
		}
		if ev.Detail != "success" {
			t.Errorf("Detail = %q", ev.Detail)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("No event received for appended record")
	}

	// Cancelling the context ends the stream.
	cancel()
	waitForClosed := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-waitForClosed:
			t.Fatal("Events channel never closed after cancel")
		}
	}
}
