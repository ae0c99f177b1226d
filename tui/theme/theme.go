package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wardentools/warden/config"
)

const defaultThemeName = "nord"

// --- Nord palette, dark terminals ---
const (
	nordDarkGreen    = "#A3BE8C"
	nordDarkYellow   = "#EBCB8B"
	nordDarkRed      = "#BF616A"
	nordDarkOrange   = "#D08770"
	nordDarkCyan     = "#88C0D0"
	nordDarkBlue     = "#81A1C1"
	nordDarkViolet   = "#B48EAD"
	nordDarkBorder   = "#4C566A"
	nordDarkRowShade = "#3B4252"
)

// --- Nord palette, darkened for light terminals ---
const (
	nordLightGreen    = "#4F7A5A"
	nordLightYellow   = "#A8833C"
	nordLightRed      = "#A54E56"
	nordLightOrange   = "#AD6844"
	nordLightCyan     = "#4E8CA2"
	nordLightBlue     = "#4A6E94"
	nordLightViolet   = "#8A6B99"
	nordLightBorder   = "#AEB7C4"
	nordLightRowShade = "#E5E9F0"
)

// --- Plain ANSI palette ---
const (
	terminalGreen    = "2"
	terminalYellow   = "3"
	terminalRed      = "1"
	terminalOrange   = "208"
	terminalCyan     = "6"
	terminalBlue     = "4"
	terminalViolet   = "5"
	terminalBorder   = "8"
	terminalRowShade = "0"
)

// Colors is the palette a theme draws from. lipgloss.TerminalColor
// admits both adaptive and fixed colors.
type Colors struct {
	Green  lipgloss.TerminalColor
	Yellow lipgloss.TerminalColor
	Red    lipgloss.TerminalColor
	Orange lipgloss.TerminalColor
	Cyan   lipgloss.TerminalColor
	Blue   lipgloss.TerminalColor
	Violet lipgloss.TerminalColor

	Border   lipgloss.TerminalColor
	RowShade lipgloss.TerminalColor
}

// Theme holds the pre-built styles shared by warden's CLI and TUI
// output.
type Theme struct {
	Colors Colors

	// Status styles
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Text hierarchy
	Italic lipgloss.Style
	Muted  lipgloss.Style

	// Emphasis
	Highlight lipgloss.Style
	Accent    lipgloss.Style

	// Tables
	TableHeader        lipgloss.Style
	UseAlternatingRows bool
}

var palettes = map[string]func() Colors{
	"nord":     nordColors,
	"terminal": terminalColors,
}

var paletteAliases = map[string]string{
	"nord-dark":  "nord",
	"nord-light": "nord",
	"ansi":       "terminal",
}

// DefaultColors is the palette resolved for this terminal and config.
var DefaultColors Colors

// DefaultTheme is the theme instance shared by all warden output.
var DefaultTheme = initTheme()

func initTheme() *Theme {
	name := configuredThemeName()
	DefaultColors = paletteFor(name)
	return build(DefaultColors, name)
}

func build(c Colors, name string) *Theme {
	// ANSI background colors render unpredictably across terminals, so
	// the terminal palette drops row shading.
	alternate := normalizeName(name) != "terminal"
	return &Theme{
		Colors: c,

		Success: lipgloss.NewStyle().Foreground(c.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(c.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(c.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(c.Cyan).Bold(true),

		Italic: lipgloss.NewStyle().Italic(true),
		Muted:  lipgloss.NewStyle().Faint(true),

		Highlight: lipgloss.NewStyle().Foreground(c.Orange).Bold(true),
		Accent:    lipgloss.NewStyle().Foreground(c.Violet).Bold(true),

		TableHeader: lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(c.Border),
		UseAlternatingRows: alternate,
	}
}

// paletteFor resolves a palette name, falling back to the default for
// anything unrecognized.
func paletteFor(name string) Colors {
	key := normalizeName(name)
	if alias, ok := paletteAliases[key]; ok {
		key = alias
	}
	if builder, ok := palettes[key]; ok {
		return builder()
	}
	return palettes[defaultThemeName]()
}

func normalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, " ", "-")
	return strings.ReplaceAll(n, "_", "-")
}

// configuredThemeName consults WARDEN_THEME first, then the tui section
// of the config.
func configuredThemeName() string {
	if name := normalizeName(os.Getenv("WARDEN_THEME")); name != "" {
		return name
	}

	cfg, err := config.LoadDefault()
	if err != nil || cfg == nil || cfg.TUI == nil {
		return defaultThemeName
	}
	if name := normalizeName(cfg.TUI.Theme); name != "" {
		return name
	}
	return defaultThemeName
}

func nordColors() Colors {
	return Colors{
		Green:    lipgloss.AdaptiveColor{Light: nordLightGreen, Dark: nordDarkGreen},
		Yellow:   lipgloss.AdaptiveColor{Light: nordLightYellow, Dark: nordDarkYellow},
		Red:      lipgloss.AdaptiveColor{Light: nordLightRed, Dark: nordDarkRed},
		Orange:   lipgloss.AdaptiveColor{Light: nordLightOrange, Dark: nordDarkOrange},
		Cyan:     lipgloss.AdaptiveColor{Light: nordLightCyan, Dark: nordDarkCyan},
		Blue:     lipgloss.AdaptiveColor{Light: nordLightBlue, Dark: nordDarkBlue},
		Violet:   lipgloss.AdaptiveColor{Light: nordLightViolet, Dark: nordDarkViolet},
		Border:   lipgloss.AdaptiveColor{Light: nordLightBorder, Dark: nordDarkBorder},
		RowShade: lipgloss.AdaptiveColor{Light: nordLightRowShade, Dark: nordDarkRowShade},
	}
}

func terminalColors() Colors {
	return Colors{
		Green:    lipgloss.Color(terminalGreen),
		Yellow:   lipgloss.Color(terminalYellow),
		Red:      lipgloss.Color(terminalRed),
		Orange:   lipgloss.Color(terminalOrange),
		Cyan:     lipgloss.Color(terminalCyan),
		Blue:     lipgloss.Color(terminalBlue),
		Violet:   lipgloss.Color(terminalViolet),
		Border:   lipgloss.Color(terminalBorder),
		RowShade: lipgloss.Color(terminalRowShade),
	}
}
