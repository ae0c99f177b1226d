package top

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wardentools/warden/pkg/daemon"
	"github.com/wardentools/warden/pkg/models"
)

// streamStartedMsg carries a freshly opened update stream.
type streamStartedMsg struct {
	ch <-chan daemon.StateUpdate
}

// streamClosedMsg signals the stream ended or could not be opened.
type streamClosedMsg struct{}

// updateMsg is one frame from the stream.
type updateMsg daemon.StateUpdate

// snapshotMsg carries a polled snapshot.
type snapshotMsg struct {
	state *models.StateResponse
}

// pollTickMsg paces the polling fallback.
type pollTickMsg time.Time

// errMsg carries a failed read.
type errMsg struct {
	err error
}

// connectStream opens the daemon stream. Against a local fallback client
// this fails immediately and the model stays on polling.
func (m *Model) connectStream() tea.Cmd {
	return func() tea.Msg {
		ch, err := m.client.StreamState(m.ctx)
		if err != nil {
			return streamClosedMsg{}
		}
		return streamStartedMsg{ch: ch}
	}
}

// waitForUpdate blocks on the stream until the next frame.
func (m *Model) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return updateMsg(update)
	}
}

// pollSnapshot reads one full snapshot.
func (m *Model) pollSnapshot() tea.Cmd {
	return func() tea.Msg {
		state, err := m.client.State(m.ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return snapshotMsg{state: state}
	}
}

// pollTick schedules the next polling round.
func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

// Update handles messages and updates the model accordingly.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case streamStartedMsg:
		m.updates = msg.ch
		m.streaming = true
		return m, m.waitForUpdate()

	case updateMsg:
		m.lastUpdate = time.Now()
		if msg.State != nil {
			m.state = msg.State
			m.err = nil
			m.clampCursor()
			return m, m.waitForUpdate()
		}
		// Event frames carry no state; re-read the snapshot so the
		// table reflects whatever the event changed.
		return m, tea.Batch(m.pollSnapshot(), m.waitForUpdate())

	case streamClosedMsg:
		m.streaming = false
		m.updates = nil
		return m, pollTick()

	case pollTickMsg:
		if m.streaming {
			return m, nil
		}
		// Keep polling and keep trying to get the stream back.
		return m, tea.Batch(m.pollSnapshot(), m.connectStream(), pollTick())

	case snapshotMsg:
		m.state = msg.state
		m.err = nil
		m.lastUpdate = time.Now()
		m.clampCursor()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		m.client.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		m.lastKeyWasG = false
		return m, m.pollSnapshot()

	case key.Matches(msg, m.keys.Top):
		// 'gg' jumps to the top
		if m.lastKeyWasG {
			m.cursor = 0
			m.ensureCursorVisible()
			m.lastKeyWasG = false
		} else {
			m.lastKeyWasG = true
		}

	case key.Matches(msg, m.keys.Bottom):
		if n := len(m.sessions()); n > 0 {
			m.cursor = n - 1
			m.ensureCursorVisible()
		}
		m.lastKeyWasG = false

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
		m.lastKeyWasG = false

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.sessions())-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
		m.lastKeyWasG = false

	case key.Matches(msg, m.keys.PageUp):
		m.cursor -= m.pageSize()
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureCursorVisible()
		m.lastKeyWasG = false

	case key.Matches(msg, m.keys.PageDown):
		m.cursor += m.pageSize()
		if n := len(m.sessions()); m.cursor >= n {
			m.cursor = n - 1
		}
		m.ensureCursorVisible()
		m.lastKeyWasG = false

	default:
		m.lastKeyWasG = false
	}

	return m, nil
}

func (m *Model) pageSize() int {
	if m.height > 0 {
		return m.height / 2
	}
	return 10
}

// clampCursor keeps the cursor valid after the session list shrinks.
func (m *Model) clampCursor() {
	if n := len(m.sessions()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// ensureCursorVisible adjusts the scroll offset so the cursor stays in view.
func (m *Model) ensureCursorVisible() {
	visible := m.visibleRows()
	if visible < 1 {
		visible = 1
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
}
