package top

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/tui/components/table"
	"github.com/wardentools/warden/tui/theme"
)

const headerHeight = 3
const footerHeight = 3
const topMargin = 1

// visibleRows returns how many session rows fit in the main area.
func (m *Model) visibleRows() int {
	mainAreaHeight := m.height - headerHeight - footerHeight - topMargin
	// Borders, padding, the table header row and its separator.
	return mainAreaHeight - 9
}

// View renders the TUI.
func (m *Model) View() string {
	if m.width < 40 || m.height < 10 {
		return "Terminal too small. Please resize."
	}

	mainAreaHeight := m.height - headerHeight - footerHeight - topMargin
	if mainAreaHeight < 5 {
		return "Terminal too small. Please resize."
	}

	headerStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.DefaultColors.Orange).
		Width(m.width - 4).
		Height(headerHeight - 2).
		Align(lipgloss.Center, lipgloss.Center).
		Bold(true)

	mainContentStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.DefaultColors.Border).
		Width(m.width - 4).
		Height(mainAreaHeight - 2).
		Padding(1)

	footerStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.DefaultColors.Orange).
		Width(m.width - 4).
		Height(footerHeight - 2).
		Align(lipgloss.Center, lipgloss.Center)

	header := headerStyle.Render(m.headerLine())
	mainContent := mainContentStyle.Render(m.buildTableView())
	footer := footerStyle.Render(m.footerLine())

	fullLayout := lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		mainContent,
		footer,
	)

	// Top margin prevents border cutoff on some terminals.
	return "\n" + fullLayout
}

// headerLine summarizes the daemon state: counts plus the feed mode.
func (m *Model) headerLine() string {
	t := theme.DefaultTheme

	running := 0
	for i := range m.sessions() {
		if m.sessions()[i].Status == models.StatusRunning {
			running++
		}
	}

	var locks, fuses int
	if m.state != nil {
		locks = len(m.state.Locks)
		fuses = len(m.state.Fuses)
	}

	feed := t.Warning.Render("polling")
	if m.streaming {
		feed = t.Success.Render("live")
	}

	return fmt.Sprintf("WARDEN  %d sessions (%d running)  %d locks  %d fuses  [%s]",
		len(m.sessions()), running, locks, fuses, feed)
}

// footerLine shows key hints, the last refresh time and any read error.
func (m *Model) footerLine() string {
	t := theme.DefaultTheme

	if m.err != nil {
		return t.Error.Render(fmt.Sprintf("read failed: %v", m.err))
	}

	hints := "j/k move  r refresh  q quit"
	if m.lastUpdate.IsZero() {
		return hints
	}
	return fmt.Sprintf("%s  %s", hints,
		t.Muted.Render("updated "+m.lastUpdate.Format("15:04:05")))
}

// buildTableView renders the session table with lock and fuse context.
func (m *Model) buildTableView() string {
	sessions := m.sessions()
	if len(sessions) == 0 {
		if m.state == nil {
			return "Waiting for daemon state..."
		}
		return "No sessions.\n\nTip: launch one with 'warden launch --adapter claude'"
	}

	availableHeight := m.visibleRows()
	if availableHeight < 1 {
		availableHeight = 1
	}

	allRows := m.buildTableRows(sessions)

	startIdx := m.scrollOffset
	if startIdx >= len(allRows) {
		startIdx = 0
	}
	endIdx := startIdx + availableHeight
	if endIdx > len(allRows) {
		endIdx = len(allRows)
	}

	visibleRows := allRows[startIdx:endIdx]

	relativeCursor := m.cursor - startIdx
	if relativeCursor < 0 {
		relativeCursor = 0
	}
	if relativeCursor >= len(visibleRows) {
		relativeCursor = len(visibleRows) - 1
	}

	mainContent := table.SelectableTable(
		[]string{"SESSION", "ADAPTER", "STATUS", "DIRECTORY", "AGE", "LOCK", "FUSE"},
		visibleRows,
		relativeCursor,
	)

	if len(allRows) > availableHeight {
		mainContent += "\n" + lipgloss.NewStyle().Faint(true).Render(
			fmt.Sprintf("Showing %d-%d of %d sessions", startIdx+1, endIdx, len(allRows)),
		)
	}

	return mainContent
}

// buildTableRows creates one row per session, merging in the lock and fuse
// state of the session's directory.
func (m *Model) buildTableRows(sessions []models.SessionRecord) [][]string {
	t := theme.DefaultTheme
	now := time.Now()

	rows := make([][]string, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]

		lockCell := "-"
		if l := m.lockFor(s.Directory); l != nil {
			if l.Type == models.LockManual {
				lockCell = t.Warning.Render(theme.IconLock + " manual")
			} else {
				lockCell = "auto"
			}
		}

		fuseCell := "-"
		if f := m.fuseFor(s.Directory); f != nil {
			remaining := f.Remaining(now)
			if remaining <= 0 {
				fuseCell = t.Error.Render("overdue")
			} else {
				fuseCell = remaining.Round(time.Second).String()
			}
		}

		rows = append(rows, []string{
			displayID(s.ID),
			s.Adapter,
			theme.StatusBadge(string(s.Status)),
			t.Muted.Render(displayPath(s.Directory)),
			displayAge(s.StartedAt, now),
			lockCell,
			fuseCell,
		})
	}
	return rows
}

// displayID shortens long ids for the table.
func displayID(id string) string {
	if len(id) > 20 {
		return id[:20] + "…"
	}
	return id
}

// displayPath shortens a directory for the table.
func displayPath(path string) string {
	if path == "" {
		return "-"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(path, home) {
		path = filepath.Join("~", strings.TrimPrefix(path, home))
	}
	if len(path) > 40 {
		path = "…" + path[len(path)-39:]
	}
	return path
}

// displayAge renders the time since start compactly.
func displayAge(started time.Time, now time.Time) string {
	if started.IsZero() {
		return "-"
	}
	d := now.Sub(started)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
