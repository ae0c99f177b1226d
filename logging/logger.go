package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/pkg/paths"
	"github.com/wardentools/warden/util/pathutil"
)

var (
	loggersMu sync.Mutex
	loggers   = map[string]*logrus.Entry{}
)

// NewLogger returns the shared logger for a component, building it on first
// use. Every component logs to a date-stamped file under the state dir;
// stderr is added per the structured_to_stderr setting.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if entry, ok := loggers[component]; ok {
		return entry
	}

	logCfg := loadLoggingConfig()

	logger := logrus.New()
	logger.SetLevel(componentLevel(logCfg, component))
	if logCfg.ReportCaller || os.Getenv("WARDEN_LOG_CALLER") == "true" {
		logger.SetReportCaller(true)
	}
	logger.SetFormatter(formatterFor(logCfg.Format))

	var sinks []io.Writer
	if file := fileSink(logger, logCfg, component); file != nil {
		sinks = append(sinks, file)
	}
	if stderrWanted(logCfg, logger.GetLevel()) {
		sinks = append(sinks, os.Stderr)
	}
	switch len(sinks) {
	case 0:
		// Interactive terminals in auto mode get pretty output only.
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(sinks[0])
	default:
		logger.SetOutput(io.MultiWriter(sinks...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// loadLoggingConfig reads the logging extension section from warden.yml. A
// missing config or a malformed section falls back to defaults.
func loadLoggingConfig() Config {
	var logCfg Config
	cfg, err := config.LoadDefault()
	if err != nil {
		return logCfg
	}
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		logrus.Warnf("Failed to parse 'logging' config: %v", err)
	}
	return logCfg
}

// componentLevel resolves the level for one component. WARDEN_LOG_LEVEL
// beats a per-component override, which beats the base level.
func componentLevel(logCfg Config, component string) logrus.Level {
	levelStr := logCfg.Level
	if override, ok := logCfg.Components[component]; ok && override != "" {
		levelStr = override
	}
	if env := os.Getenv("WARDEN_LOG_LEVEL"); env != "" {
		levelStr = env
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func formatterFor(format FormatConfig) logrus.Formatter {
	switch format.Preset {
	case "json":
		return &logrus.JSONFormatter{}
	case "simple":
		return &TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}}
	default:
		return &TextFormatter{Config: format}
	}
}

// fileSink opens the component's log file, creating parent directories as
// needed. Failures only rate a warning when the user configured the path
// explicitly; a broken default location stays quiet.
func fileSink(logger *logrus.Logger, logCfg Config, component string) io.Writer {
	path := defaultLogPath(component)
	if logCfg.File.Enabled && logCfg.File.Path != "" {
		if expanded, err := pathutil.Expand(logCfg.File.Path); err == nil {
			path = expanded
		} else {
			path = logCfg.File.Path
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		if logCfg.File.Enabled {
			logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		}
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		if logCfg.File.Enabled {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		}
		return nil
	}
	return file
}

// defaultLogPath puts each component's log in a date-stamped file under the
// XDG state dir, so daemon and CLI logs land in one place regardless of
// working directory.
func defaultLogPath(component string) string {
	name := fmt.Sprintf("%s-%s.log", component, time.Now().Format("2006-01-02"))
	return filepath.Join(paths.LogDir(), name)
}

// stderrWanted decides whether structured records also go to stderr. Auto
// mode sends them when debugging or when stderr is not a terminal, as in a
// pipe or CI; interactive runs see pretty output alone.
func stderrWanted(logCfg Config, level logrus.Level) bool {
	switch logCfg.Format.StructuredToStderr {
	case "always":
		return true
	case "never":
		return false
	}
	debugging := os.Getenv("WARDEN_DEBUG") == "1" || level == logrus.DebugLevel
	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return debugging || !interactive
}
