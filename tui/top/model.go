// Package top implements the warden top TUI: a live table of supervised
// sessions with lock and fuse context, fed by the daemon's stream API and
// falling back to polling when no daemon is available.
package top

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wardentools/warden/pkg/daemon"
	"github.com/wardentools/warden/pkg/models"
)

// pollInterval paces snapshot refreshes while no stream is connected.
const pollInterval = 5 * time.Second

// Model represents the state of the warden top TUI.
type Model struct {
	client daemon.Client
	ctx    context.Context
	cancel context.CancelFunc

	state      *models.StateResponse
	updates    <-chan daemon.StateUpdate
	streaming  bool
	lastUpdate time.Time
	err        error

	keys         KeyMap
	cursor       int
	scrollOffset int
	width        int
	height       int
	lastKeyWasG  bool
}

// New creates a model reading from the given client. The client is closed
// when the TUI quits.
func New(client daemon.Client) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		client: client,
		ctx:    ctx,
		cancel: cancel,
		keys:   DefaultKeyMap,
	}
}

// Init connects the stream and requests the first snapshot.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.connectStream(),
		m.pollSnapshot(),
	)
}

// sessions returns the rows backing the table, newest first as served.
func (m *Model) sessions() []models.SessionRecord {
	if m.state == nil {
		return nil
	}
	return m.state.Sessions
}

// lockFor finds the lock covering a directory, preferring manual locks.
func (m *Model) lockFor(dir string) *models.Lock {
	if m.state == nil || dir == "" {
		return nil
	}
	var found *models.Lock
	for i := range m.state.Locks {
		l := &m.state.Locks[i]
		if l.Directory != dir {
			continue
		}
		if l.Type == models.LockManual {
			return l
		}
		if found == nil {
			found = l
		}
	}
	return found
}

// fuseFor finds the armed fuse for a directory.
func (m *Model) fuseFor(dir string) *models.FuseTimer {
	if m.state == nil || dir == "" {
		return nil
	}
	for i := range m.state.Fuses {
		if m.state.Fuses[i].Directory == dir {
			return &m.state.Fuses[i]
		}
	}
	return nil
}
