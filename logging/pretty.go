package logging

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/wardentools/warden/tui/theme"
)

// PrettyLogger renders user-facing console lines. It writes to the global
// output writer, so a TUI that redirects logging output silences pretty
// lines with the same call.
type PrettyLogger struct {
	writer io.Writer
	styles PrettyStyles
}

// PrettyStyles holds the lipgloss styles pretty output renders with.
type PrettyStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Path    lipgloss.Style
}

// DefaultPrettyStyles derives pretty styles from the active theme, so
// WARDEN_THEME applies to CLI output and TUI views alike.
func DefaultPrettyStyles() PrettyStyles {
	t := theme.DefaultTheme
	return PrettyStyles{
		Success: t.Success,
		Info:    t.Info,
		Warning: t.Warning,
		Error:   t.Error,
		Key:     t.Muted,
		Value:   t.Info.Bold(true),
		Path:    t.Info.Italic(true),
	}
}

// NewPrettyLogger returns a pretty logger on the global output writer with
// the active theme's styles.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{
		writer: GetGlobalOutput(),
		styles: DefaultPrettyStyles(),
	}
}

// WithWriter overrides the output writer.
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	return p
}

func (p *PrettyLogger) line(style lipgloss.Style, icon, message string) {
	if icon != "" {
		fmt.Fprintf(p.writer, "%s %s\n", style.Render(icon), style.Render(message))
		return
	}
	fmt.Fprintf(p.writer, "%s\n", style.Render(message))
}

// Success prints a completed-operation line.
func (p *PrettyLogger) Success(message string) {
	p.line(p.styles.Success, theme.IconSuccess, message)
}

// Info prints an informational line without an icon.
func (p *PrettyLogger) Info(message string) {
	p.line(p.styles.Info, "", message)
}

// Warn prints a warning line.
func (p *PrettyLogger) Warn(message string) {
	p.line(p.styles.Warning, theme.IconWarning, message)
}

// Error prints an error line, appending err's message when non-nil.
func (p *PrettyLogger) Error(message string, err error) {
	if err != nil {
		message = fmt.Sprintf("%s: %s", message, err.Error())
	}
	p.line(p.styles.Error, theme.IconError, message)
}

// Field prints an indented key-value detail line, the form the CLI uses
// under a headline (directory, pid, tmux target).
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "  %s: %s\n",
		p.styles.Key.Render(key),
		p.styles.Value.Render(fmt.Sprint(value)))
}

// Path prints an indented label and file path.
func (p *PrettyLogger) Path(label string, path string) {
	fmt.Fprintf(p.writer, "  %s: %s\n",
		p.styles.Key.Render(label),
		p.styles.Path.Render(path))
}
