package theme

import (
	"os"

	"github.com/wardentools/warden/config"
)

// Icon glyphs used across the CLI and TUI. The package init picks the Nerd
// Font set unless WARDEN_ICONS=ascii or tui.icons asks for the plain
// fallback.
var (
	IconSuccess         string
	IconError           string
	IconWarning         string
	IconInfo            string
	IconRunning         string
	IconPending         string
	IconArrowRightBold  string
	IconBullet          string
	IconAgent           string
	IconLock            string
	IconFuse            string
	IconStatusRunning   string
	IconStatusStopped   string
	IconStatusFailed    string
	IconStatusCompleted string
	IconStatusIdle      string
)

// Each icon pairs a Nerd Font glyph with a plain-terminal fallback.
var iconTable = []struct {
	target *string
	nerd   string
	plain  string
}{
	{&IconSuccess, "󰄬", "✓"},         // md-check
	{&IconError, "", "✗"},           // cod-error
	{&IconWarning, "", "⚠"},         // fa-warning
	{&IconInfo, "󰋼", "ℹ"},            // md-information
	{&IconRunning, "", "◐"},         // fa-refresh
	{&IconPending, "󰦖", "…"},         // md-progress_clock
	{&IconArrowRightBold, "󰜴", "=>"}, // md-arrow_right_bold
	{&IconBullet, "", "•"},          // oct-dot_fill
	{&IconAgent, "", "⚙"},           // fa-robot
	{&IconLock, "", "⊠"},            // fa-lock
	{&IconFuse, "󰔛", "◷"},            // md-timer
	{&IconStatusRunning, "󰔟", "◐"},   // md-timer_sand
	{&IconStatusStopped, "󰓛", "■"},   // md-stop
	{&IconStatusFailed, "", "✗"},    // oct-x
	{&IconStatusCompleted, "󰄳", "●"}, // md-checkbox_marked_circle
	{&IconStatusIdle, "󰒲", "○"},      // md-sleep
}

func init() {
	plain := os.Getenv("WARDEN_ICONS") == "ascii"
	if !plain {
		if cfg, err := config.LoadDefault(); err == nil && cfg.TUI != nil && cfg.TUI.Icons == "ascii" {
			plain = true
		}
	}
	for _, row := range iconTable {
		if plain {
			*row.target = row.plain
		} else {
			*row.target = row.nerd
		}
	}
}

// StatusBadge renders a session status as its icon plus colored text.
func StatusBadge(status string) string {
	t := DefaultTheme
	switch status {
	case "running":
		return t.Success.Render(IconStatusRunning + " " + status)
	case "idle":
		return t.Warning.Render(IconStatusIdle + " " + status)
	case "pending":
		return t.Warning.Render(IconPending + " " + status)
	case "error", "failed":
		return t.Error.Render(IconStatusFailed + " " + status)
	case "completed":
		return t.Muted.Render(IconStatusCompleted + " " + status)
	case "stopped":
		return t.Muted.Render(IconStatusStopped + " " + status)
	default:
		return t.Muted.Render(status)
	}
}
