package adapter

import (
	"context"
	"encoding/json"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	"github.com/wardentools/warden/pkg/models"
)

// rescanInterval is how often the event stream looks for new session
// transcripts under the adapter root.
const rescanInterval = 5 * time.Second

// transcriptRecord is the slice of an agent JSONL record warden understands.
type transcriptRecord struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	IsError   bool   `json:"is_error"`
	Error     string `json:"error"`
}

// Events tails every session transcript under the adapter root and maps
// agent JSONL records to lifecycle events. New sessions are picked up by
// periodic rescans. The channel closes when ctx is cancelled.
func (d *DirScan) Events(ctx context.Context) (<-chan SessionEvent, error) {
	out := make(chan SessionEvent, 64)
	w := &transcriptWatcher{
		adapter: d,
		out:     out,
		tails:   make(map[string]*tail.Tail),
	}
	go w.run(ctx)
	return out, nil
}

type transcriptWatcher struct {
	adapter *DirScan
	out     chan SessionEvent

	mu    sync.Mutex
	tails map[string]*tail.Tail
	wg    sync.WaitGroup
}

func (w *transcriptWatcher) run(ctx context.Context) {
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()

	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			w.stopAll()
			w.wg.Wait()
			close(w.out)
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan starts a tail for any session transcript not yet followed.
func (w *transcriptWatcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.adapter.root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(w.adapter.root, entry.Name(), transcriptFileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		w.follow(ctx, entry.Name(), path)
	}
}

func (w *transcriptWatcher) follow(ctx context.Context, dirName, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.tails[path]; ok {
		return
	}

	// Poll mode works on every filesystem, including mounts without
	// inotify support.
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:   stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return
	}
	w.tails[path] = t

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for line := range t.Lines {
			if line.Err != nil {
				continue
			}
			ev, ok := w.adapter.parseTranscriptLine(dirName, line.Text)
			if !ok {
				continue
			}
			select {
			case w.out <- ev:
			case <-ctx.Done():
				// Keep draining so Stop can finish; events after
				// cancellation are dropped.
			}
		}
	}()
}

func (w *transcriptWatcher) stopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.tails {
		_ = t.Stop()
	}
	w.tails = make(map[string]*tail.Tail)
}

// parseTranscriptLine maps one agent JSONL record to a lifecycle event.
// Records warden does not model are skipped.
func (d *DirScan) parseTranscriptLine(dirName, line string) (SessionEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '{' {
		return SessionEvent{}, false
	}

	var rec transcriptRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return SessionEvent{}, false
	}

	id := rec.SessionID
	if id == "" {
		id = dirName
	}

	ev := SessionEvent{
		Adapter:   d.name,
		SessionID: id,
		Timestamp: time.Now(),
	}

	switch {
	case rec.Type == "system" && (rec.Subtype == "" || rec.Subtype == "init"):
		ev.Type = models.EventSessionStarted
	case rec.Type == "result" && rec.IsError:
		ev.Type = models.EventSessionError
		ev.Detail = rec.Error
		if ev.Detail == "" {
			ev.Detail = rec.Subtype
		}
	case rec.Type == "result":
		ev.Type = models.EventSessionStopped
		ev.Detail = rec.Subtype
	case rec.Type == "idle":
		ev.Type = models.EventSessionIdle
	default:
		return SessionEvent{}, false
	}

	return ev, true
}
