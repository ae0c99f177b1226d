// Package paths resolves warden's on-disk directories following the XDG
// base directory spec.
//
// WARDEN_HOME overrides everything and nests config, data, state and
// cache under one root. That is how tests and portable installs get an
// isolated tree. Otherwise the individual XDG variables apply, then the
// conventional defaults under the user's home.
package paths

import (
	"os"
	"path/filepath"
)

// appName namespaces warden's subdirectories under the shared XDG bases.
const appName = "warden"

// baseDir resolves one XDG base directory. sub is the subdirectory used
// under WARDEN_HOME, xdgVar the XDG environment variable, and fallback
// the home-relative default.
func baseDir(sub, xdgVar, fallback string) string {
	if root := os.Getenv("WARDEN_HOME"); root != "" {
		return filepath.Join(root, sub)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback)
}

// namespaced appends warden's own directory to a resolved base. An empty
// base stays empty so callers can tell resolution failed.
func namespaced(base string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns the directory holding warden.yml, conf.d fragments
// and adapters.toml.
func ConfigDir() string {
	return namespaced(baseDir("config", "XDG_CONFIG_HOME", ".config"))
}

// DataDir returns the directory for durable data such as session
// registrations.
func DataDir() string {
	return namespaced(baseDir("data", "XDG_DATA_HOME", filepath.Join(".local", "share")))
}

// StateDir returns the directory holding the persisted daemon state
// (state.json, locks.json, fuses.json) and logs.
func StateDir() string {
	return namespaced(baseDir("state", "XDG_STATE_HOME", filepath.Join(".local", "state")))
}

// CacheDir returns the directory for regenerable scratch data.
func CacheDir() string {
	return namespaced(baseDir("cache", "XDG_CACHE_HOME", ".cache"))
}

// SessionsDir returns the directory adapters register sessions under,
// one subdirectory per adapter.
func SessionsDir() string {
	if data := DataDir(); data != "" {
		return filepath.Join(data, "sessions")
	}
	return ""
}

// LogDir returns the directory daemon log files are written to.
func LogDir() string {
	if state := StateDir(); state != "" {
		return filepath.Join(state, "logs")
	}
	return ""
}

// RuntimeDir returns the directory for the daemon's unix socket.
// XDG_RUNTIME_DIR is preferred when present; macOS and other systems
// without it fall back to the state directory.
func RuntimeDir() string {
	if root := os.Getenv("WARDEN_HOME"); root != "" {
		return filepath.Join(root, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the daemon's unix socket path.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "wardend.sock")
}

// PidFilePath returns the daemon's pid file path.
func PidFilePath() string {
	return filepath.Join(StateDir(), "wardend.pid")
}

// EnsureDirs creates every warden directory that resolved. Entries that
// could not resolve at all are skipped rather than failed.
func EnsureDirs() error {
	for _, dir := range []string{
		ConfigDir(),
		DataDir(),
		StateDir(),
		CacheDir(),
		SessionsDir(),
		LogDir(),
		RuntimeDir(),
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
