package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/paths"
)

// ConfigWatcher watches the warden config directory and reports changes to
// the daemon so it can announce them. fsnotify does not follow symlinks,
// so symlinked config files (dotfiles setups) get their target directories
// watched explicitly.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	lastChange time.Time
	mu         sync.Mutex
	logger     *logrus.Entry
	onReload   func(file string)
	linkNames  map[string]string
	configDir  string
}

// NewConfigWatcher creates a watcher over the config directory. debounceMs
// coalesces rapid editor write bursts; onReload receives the changed file's
// base name.
func NewConfigWatcher(debounceMs int, onReload func(string)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("config-watcher")
	configDir := paths.ConfigDir()

	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, err
	}

	if debounceMs <= 0 {
		debounceMs = 100
	}

	return &ConfigWatcher{
		watcher:   watcher,
		debounce:  time.Duration(debounceMs) * time.Millisecond,
		logger:    logger,
		onReload:  onReload,
		linkNames: addSymlinkTargets(watcher, configDir, logger),
		configDir: configDir,
	}, nil
}

// addSymlinkTargets registers the directories behind symlinked config files
// with the watcher. The returned map translates a target path back to the
// link's name inside the config dir, which is the name worth reporting.
func addSymlinkTargets(watcher *fsnotify.Watcher, configDir string, logger *logrus.Entry) map[string]string {
	names := make(map[string]string)

	entries, err := os.ReadDir(configDir)
	if err != nil {
		return names
	}

	watchedDirs := map[string]bool{configDir: true}
	for _, entry := range entries {
		if !watchableConfigFile(entry.Name()) {
			continue
		}

		fullPath := filepath.Join(configDir, entry.Name())
		info, err := os.Lstat(fullPath)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}

		target, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			logger.WithError(err).Warnf("Could not resolve config symlink %s", entry.Name())
			continue
		}
		names[target] = entry.Name()

		targetDir := filepath.Dir(target)
		if watchedDirs[targetDir] {
			continue
		}
		if err := watcher.Add(targetDir); err != nil {
			logger.WithError(err).Warnf("Could not watch symlink target dir %s", targetDir)
			continue
		}
		watchedDirs[targetDir] = true
		logger.Debugf("Watching symlink target directory %s", targetDir)
	}
	return names
}

func watchableConfigFile(name string) bool {
	switch {
	case strings.HasSuffix(name, ".yml"), strings.HasSuffix(name, ".yaml"),
		strings.HasSuffix(name, ".toml"):
		return true
	}
	return false
}

// Start begins watching for config changes. It blocks until the context is
// cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify %v on %s", event.Op, event.Name)

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && watchableConfigFile(event.Name) {
				w.handleChange(w.displayName(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Config watch error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// displayName translates a symlink target path back to the link name users
// know; direct paths pass through.
func (w *ConfigWatcher) displayName(path string) string {
	if linkName, ok := w.linkNames[path]; ok {
		return filepath.Join(w.configDir, linkName)
	}
	return path
}

// handleChange reports one change, absorbing bursts inside the debounce
// window.
func (w *ConfigWatcher) handleChange(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	name := filepath.Base(file)
	if since := time.Since(w.lastChange); since < w.debounce {
		w.logger.Debugf("Change to %s debounced, %v since the last one", name, since)
		return
	}
	w.lastChange = time.Now()

	w.logger.Infof("Config file changed: %s", name)

	if w.onReload != nil {
		w.onReload(name)
	}
}

// Close stops the watcher. Start's loop also closes it on context
// cancellation; fsnotify tolerates the double close.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
