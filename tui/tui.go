// Package tui carries setup shared by warden's terminal interfaces. The
// theme and top subpackages hold the styling and the live dashboard.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Init applies terminal color settings before a bubbletea program starts.
// CLICOLOR_FORCE=1 or COLORTERM=truecolor force the true color profile,
// which keeps styling intact under CI and piped output where lipgloss
// would otherwise strip it. Without those variables it does nothing.
func Init() {
	if os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor" {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}
