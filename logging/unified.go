package logging

import (
	"context"
	"fmt"
	"regexp"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/tui/theme"
)

// ansiSeqRE strips terminal escape sequences out of the grep-friendly
// pretty_text field.
var ansiSeqRE = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// UnifiedLogger writes each message twice: a styled line for the person
// watching the CLI and a structured record for the audit log. Entries are
// built with the chainable LogEntry methods and written by Log.
type UnifiedLogger struct {
	component  string
	pretty     *PrettyLogger
	structured *logrus.Entry
}

// NewUnifiedLogger returns a unified logger for one component.
func NewUnifiedLogger(component string) *UnifiedLogger {
	structured := NewLogger(component)
	// logStructured records the real call site itself; logrus's caller
	// reporting would point at this wrapper instead.
	structured.Logger.SetReportCaller(false)

	return &UnifiedLogger{
		component:  component,
		pretty:     NewPrettyLogger(),
		structured: structured,
	}
}

func (u *UnifiedLogger) entry(level logrus.Level, msg, icon string, status string) *LogEntry {
	fields := logrus.Fields{}
	if status != "" {
		fields["status"] = status
	}
	return &LogEntry{
		logger: u,
		msg:    msg,
		level:  level,
		fields: fields,
		icon:   icon,
	}
}

// Debug starts a DEBUG entry. Debug lines stay out of pretty output unless
// the level allows them (WARDEN_LOG_LEVEL=debug or a components override).
func (u *UnifiedLogger) Debug(msg string) *LogEntry {
	return u.entry(logrus.DebugLevel, msg, "", "")
}

// Info starts an INFO entry.
func (u *UnifiedLogger) Info(msg string) *LogEntry {
	return u.entry(logrus.InfoLevel, msg, "", "")
}

// Warn starts a WARN entry with the warning icon.
func (u *UnifiedLogger) Warn(msg string) *LogEntry {
	return u.entry(logrus.WarnLevel, msg, theme.IconWarning, "")
}

// Error starts an ERROR entry with the error icon.
func (u *UnifiedLogger) Error(msg string) *LogEntry {
	return u.entry(logrus.ErrorLevel, msg, theme.IconError, "")
}

// Success starts an INFO entry with the success icon and status=success
// in the structured record.
func (u *UnifiedLogger) Success(msg string) *LogEntry {
	return u.entry(logrus.InfoLevel, msg, theme.IconSuccess, "success")
}

// Progress starts an INFO entry marking an operation still under way.
func (u *UnifiedLogger) Progress(msg string) *LogEntry {
	return u.entry(logrus.InfoLevel, msg, theme.IconRunning, "progress")
}

// Status starts an INFO entry carrying an informational update.
func (u *UnifiedLogger) Status(msg string) *LogEntry {
	return u.entry(logrus.InfoLevel, msg, theme.IconInfo, "info")
}

// LogEntry accumulates one message's options. Configure it with the
// chainable methods, then call Log to write.
type LogEntry struct {
	logger     *UnifiedLogger
	msg        string
	level      logrus.Level
	fields     logrus.Fields
	icon       string
	prettyMsg  string
	prettyOnly bool
	structOnly bool
	noIcon     bool
	err        error
}

// Field adds one structured field. Fields appear in the structured record
// only; put them in Pretty's string if the reader should see them.
func (e *LogEntry) Field(key string, value interface{}) *LogEntry {
	e.fields[key] = value
	return e
}

// Fields adds several structured fields.
func (e *LogEntry) Fields(fields map[string]interface{}) *LogEntry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// Err attaches an error, recorded as the "error" field.
func (e *LogEntry) Err(err error) *LogEntry {
	if err != nil {
		e.err = err
		e.fields["error"] = err.Error()
	}
	return e
}

// Icon overrides the level's default icon. Use the theme.Icon constants.
func (e *LogEntry) Icon(icon string) *LogEntry {
	e.icon = icon
	return e
}

// NoIcon drops the icon from pretty output.
func (e *LogEntry) NoIcon() *LogEntry {
	e.noIcon = true
	return e
}

// Pretty replaces the auto-styled pretty line with a custom lipgloss
// string. The plain msg still goes to the structured record, so the audit
// log stays free of ANSI noise:
//
//	ulog.Success("Session launched").
//	    Field("session_id", rec.ID).
//	    Pretty(theme.IconAgent + " " + theme.DefaultTheme.Success.Render(rec.ID)).
//	    Log(ctx)
func (e *LogEntry) Pretty(styled string) *LogEntry {
	e.prettyMsg = styled
	return e
}

// PrettyOnly skips the structured record. For lines that are purely
// presentation.
func (e *LogEntry) PrettyOnly() *LogEntry {
	e.prettyOnly = true
	return e
}

// StructuredOnly skips pretty output. For audit detail that would clutter
// the screen.
func (e *LogEntry) StructuredOnly() *LogEntry {
	e.structOnly = true
	return e
}

// Log writes the entry to both outputs, honoring PrettyOnly and
// StructuredOnly. It is the terminal call of every chain.
func (e *LogEntry) Log(ctx context.Context) {
	rendered := e.render()

	// The blank line keeps consecutive pretty entries readable.
	if !e.structOnly {
		fmt.Fprintf(GetWriter(ctx), "%s\n\n", rendered)
	}

	if !e.prettyOnly {
		e.logStructured(rendered)
	}
}

// render produces the styled pretty line.
func (e *LogEntry) render() string {
	if e.prettyMsg != "" {
		return e.prettyMsg
	}

	output := e.msg
	if !e.noIcon {
		icon := e.icon
		if icon == "" {
			icon = theme.IconBullet
		}
		output = icon + " " + e.msg
	}

	if style, ok := e.style(); ok {
		output = style.Render(output)
	}
	return output
}

// style resolves the lipgloss style for the entry's level and icon. Plain
// info entries render unstyled.
func (e *LogEntry) style() (lipgloss.Style, bool) {
	styles := DefaultPrettyStyles()
	switch e.level {
	case logrus.WarnLevel:
		return styles.Warning, true
	case logrus.ErrorLevel:
		return styles.Error, true
	case logrus.DebugLevel:
		// Muted, when the level lets a debug line through at all.
		return styles.Key, true
	}
	switch e.icon {
	case theme.IconSuccess:
		return styles.Success, true
	case theme.IconRunning, theme.IconInfo:
		return styles.Info, true
	}
	return lipgloss.Style{}, false
}

// logStructured writes the audit record.
func (e *LogEntry) logStructured(rendered string) {
	// Skip two frames (logStructured, Log) to land on the caller.
	if pc, file, line, ok := runtime.Caller(2); ok {
		funcName := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
		e.fields["file"] = fmt.Sprintf("%s:%d", file, line)
		e.fields["func"] = funcName
	}

	// Both renderings travel with the record: pretty_ansi replays in a
	// terminal, pretty_text greps clean.
	e.fields["pretty_ansi"] = rendered
	e.fields["pretty_text"] = ansiSeqRE.ReplaceAllString(rendered, "")

	e.logger.structured.WithFields(e.fields).Log(e.level, e.msg)
}

// Component returns the component name.
func (u *UnifiedLogger) Component() string {
	return u.component
}

// WithStructured exposes the underlying logrus entry for call sites that
// bypass the unified pattern.
func (u *UnifiedLogger) WithStructured() *logrus.Entry {
	return u.structured
}

// WithPretty exposes the underlying pretty logger.
func (u *UnifiedLogger) WithPretty() *PrettyLogger {
	return u.pretty
}
