// Package profiling provides opt-in pprof capture and a lightweight span
// timer for warden commands. Everything is off until a flag enables it, so
// the hooks cost nothing on normal runs.
package profiling

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stopper ends a timed span. Callers typically defer it.
type Stopper interface {
	Stop()
}

// span is one timed region. Children nest under the span that was open when
// Start ran.
type span struct {
	name     string
	start    time.Time
	duration time.Duration
	parent   *span
	children []*span
	timeline *timeline
	stopped  bool
}

func (s *span) Stop() {
	s.timeline.close(s)
}

// timeline tracks the open span chain for the process. Spans are meant for
// the CLI's sequential phases, not for daemon loops; a span opened on one
// goroutine and stopped on another will nest arbitrarily.
type timeline struct {
	mu      sync.Mutex
	enabled bool
	root    *span
	current *span
}

var global = &timeline{}

// Enable turns span collection on. Before this, Start returns a no-op.
func Enable() {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.enabled {
		return
	}
	global.enabled = true
	global.root = &span{name: "root", start: time.Now(), timeline: global}
	global.current = global.root
}

// Start opens a span nested under the innermost unfinished one.
func Start(name string) Stopper {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.enabled {
		return noop{}
	}
	s := &span{name: name, start: time.Now(), parent: global.current, timeline: global}
	global.current.children = append(global.current.children, s)
	global.current = s
	return s
}

func (tl *timeline) close(s *span) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.duration = time.Since(s.start)
	if tl.current == s {
		tl.current = s.parent
	}
}

// Summarize writes the collected span tree with durations and percentages
// of the total run.
func Summarize(w io.Writer) {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.enabled || global.root == nil {
		return
	}
	if global.root.duration == 0 {
		global.root.duration = time.Since(global.root.start)
	}

	fmt.Fprintln(w, "\n--- timing ---")
	writeSpan(w, global.root, 0, global.root.duration)
	fmt.Fprintln(w, "--------------")
}

func writeSpan(w io.Writer, s *span, depth int, total time.Duration) {
	if s.parent != nil {
		pct := 0.0
		if total > 0 {
			pct = float64(s.duration) / float64(total) * 100
		}
		fmt.Fprintf(w, "%s- %s (%v, %.1f%%)\n",
			strings.Repeat("  ", depth-1), s.name, s.duration.Round(100*time.Microsecond), pct)
	}

	sort.SliceStable(s.children, func(i, j int) bool {
		return s.children[i].start.Before(s.children[j].start)
	})
	for _, child := range s.children {
		writeSpan(w, child, depth+1, total)
	}
}

type noop struct{}

func (noop) Stop() {}
