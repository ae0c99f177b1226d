package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

//go:generate go run ../tools/schema-generator/

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	Icons string `yaml:"icons,omitempty" toml:"icons,omitempty" jsonschema:"description=Icon set to use: nerd or ascii,enum=nerd,enum=ascii"`
	Theme string `yaml:"theme,omitempty" toml:"theme,omitempty" jsonschema:"description=Color theme for terminal interfaces,enum=nord,enum=terminal"`
}

// DaemonConfig holds configuration for the warden daemon (wardend).
type DaemonConfig struct {
	ReconcileInterval string `yaml:"reconcile_interval,omitempty" toml:"reconcile_interval,omitempty" jsonschema:"description=How often to reconcile tracked sessions against adapter discovery (default: 10s)"`
	ResolveInterval   string `yaml:"resolve_interval,omitempty" toml:"resolve_interval,omitempty" jsonschema:"description=How often to try resolving pending session ids (default: 30s)"`
	CleanupInterval   string `yaml:"cleanup_interval,omitempty" toml:"cleanup_interval,omitempty" jsonschema:"description=How often to probe daemon-launched sessions for dead PIDs (default: 30s)"`
	AdapterTimeout    string `yaml:"adapter_timeout,omitempty" toml:"adapter_timeout,omitempty" jsonschema:"description=Per-adapter budget for a discovery call (default: 10s)"`
	ConfigWatch       *bool  `yaml:"config_watch,omitempty" toml:"config_watch,omitempty" jsonschema:"description=Reload config when its files change (default: true)"`
	ConfigDebounceMs  int    `yaml:"config_debounce_ms,omitempty" toml:"config_debounce_ms,omitempty" jsonschema:"description=Quiet window in milliseconds before a config change is acted on (default: 100)"`
}

// FuseActionsConfig defines default expiry actions applied to fuses the daemon
// arms on its own when a session stops.
type FuseActionsConfig struct {
	Run     string `yaml:"run,omitempty" toml:"run,omitempty" jsonschema:"description=Shell command to run in the fuse directory on expiry"`
	Webhook string `yaml:"webhook,omitempty" toml:"webhook,omitempty" jsonschema:"description=URL to POST a fuse.expired payload to"`
	Event   string `yaml:"event,omitempty" toml:"event,omitempty" jsonschema:"description=Named event to publish on the daemon event bus"`
}

// FusesConfig holds configuration for cleanup fuses.
type FusesConfig struct {
	DefaultTTL string             `yaml:"default_ttl,omitempty" toml:"default_ttl,omitempty" jsonschema:"description=TTL applied when a fuse is set without one (default: 30m)"`
	AutoArm    *bool              `yaml:"auto_arm,omitempty" toml:"auto_arm,omitempty" jsonschema:"description=Arm a fuse for a session's directory when the session stops (default: true)"`
	Exclude    []string           `yaml:"exclude,omitempty" toml:"exclude,omitempty" jsonschema:"description=Dockerignore-style directory patterns that never get auto-armed fuses"`
	OnExpire   *FuseActionsConfig `yaml:"on_expire,omitempty" toml:"on_expire,omitempty" jsonschema:"description=Default expiry actions for auto-armed fuses"`
}

// TmuxLaunchConfig controls launching agent sessions inside tmux.
type TmuxLaunchConfig struct {
	Enabled       bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Launch sessions in tmux instead of detached processes"`
	Socket        string `yaml:"socket,omitempty" toml:"socket,omitempty" jsonschema:"description=tmux socket name (-L flag)"`
	SessionPrefix string `yaml:"session_prefix,omitempty" toml:"session_prefix,omitempty" jsonschema:"description=Prefix for tmux session names (default: warden-)"`
}

// AdapterConfig describes one agent kind warden supervises.
type AdapterConfig struct {
	Kind        string                 `yaml:"kind,omitempty" toml:"kind,omitempty" jsonschema:"description=Discovery strategy for this adapter (default: dirscan)"`
	Command     string                 `yaml:"command,omitempty" toml:"command,omitempty" jsonschema:"description=Agent CLI binary to launch"`
	Args        []string               `yaml:"args,omitempty" toml:"args,omitempty" jsonschema:"description=Default arguments passed to the agent CLI"`
	SessionRoot string                 `yaml:"session_root,omitempty" toml:"session_root,omitempty" jsonschema:"description=Directory scanned for live session registrations"`
	Enabled     *bool                  `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Whether this adapter participates in discovery (default: true)"`
	Tmux        *TmuxLaunchConfig      `yaml:"tmux,omitempty" toml:"tmux,omitempty" jsonschema:"description=tmux launch settings for this adapter"`
	Options     map[string]interface{} `yaml:"options,omitempty" toml:"options,omitempty" jsonschema:"description=Kind-specific adapter options"`
}

// IsEnabled reports whether the adapter should be used. Enabled defaults to true.
func (a AdapterConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Config represents the warden.yml configuration.
type Config struct {
	Name    string `yaml:"name,omitempty" toml:"name,omitempty" jsonschema:"description=Name of the project or host configuration"`
	Version string `yaml:"version" toml:"version" jsonschema:"description=Configuration version (e.g. 1.0)"`

	TUI    *TUIConfig    `yaml:"tui,omitempty" toml:"tui,omitempty" jsonschema:"description=TUI appearance settings"`
	Daemon *DaemonConfig `yaml:"daemon,omitempty" toml:"daemon,omitempty" jsonschema:"description=Configuration for the warden daemon (wardend)"`
	Fuses  *FusesConfig  `yaml:"fuses,omitempty" toml:"fuses,omitempty" jsonschema:"description=Cleanup fuse defaults"`

	Adapters map[string]AdapterConfig `yaml:"adapters,omitempty" toml:"adapters,omitempty" jsonschema:"description=Agent adapters keyed by name (claude, codex, ...)"`

	// Extensions takes every top-level key that has no typed field above.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// Default interval and timeout values used when the config leaves them unset.
const (
	DefaultReconcileInterval = 10 * time.Second
	DefaultResolveInterval   = 30 * time.Second
	DefaultCleanupInterval   = 30 * time.Second
	DefaultAdapterTimeout    = 10 * time.Second
	DefaultFuseTTL           = 30 * time.Minute
	DefaultConfigDebounceMs  = 100
)

// SetDefaults sets default values for configuration.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	// A bare config still supervises the common agent CLIs.
	if len(c.Adapters) == 0 {
		c.Adapters = map[string]AdapterConfig{
			"claude": {Command: "claude"},
			"codex":  {Command: "codex"},
		}
	}

	for name, adapter := range c.Adapters {
		if adapter.Kind == "" {
			adapter.Kind = "dirscan"
		}
		if adapter.Command == "" {
			adapter.Command = name
		}
		c.Adapters[name] = adapter
	}
}

// parseDurationOr parses a duration string, returning fallback when the value
// is empty or malformed.
func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ReconcileIntervalOrDefault returns the reconcile interval as a duration.
func (d *DaemonConfig) ReconcileIntervalOrDefault() time.Duration {
	if d == nil {
		return DefaultReconcileInterval
	}
	return parseDurationOr(d.ReconcileInterval, DefaultReconcileInterval)
}

// ResolveIntervalOrDefault returns the pending-resolution interval as a duration.
func (d *DaemonConfig) ResolveIntervalOrDefault() time.Duration {
	if d == nil {
		return DefaultResolveInterval
	}
	return parseDurationOr(d.ResolveInterval, DefaultResolveInterval)
}

// CleanupIntervalOrDefault returns the dead-launch sweep interval as a duration.
func (d *DaemonConfig) CleanupIntervalOrDefault() time.Duration {
	if d == nil {
		return DefaultCleanupInterval
	}
	return parseDurationOr(d.CleanupInterval, DefaultCleanupInterval)
}

// AdapterTimeoutOrDefault returns the per-adapter discovery budget as a duration.
func (d *DaemonConfig) AdapterTimeoutOrDefault() time.Duration {
	if d == nil {
		return DefaultAdapterTimeout
	}
	return parseDurationOr(d.AdapterTimeout, DefaultAdapterTimeout)
}

// WatchEnabled reports whether config watching is on. Defaults to true.
func (d *DaemonConfig) WatchEnabled() bool {
	return d == nil || d.ConfigWatch == nil || *d.ConfigWatch
}

// DefaultTTLOrDefault returns the fallback fuse TTL as a duration.
func (f *FusesConfig) DefaultTTLOrDefault() time.Duration {
	if f == nil {
		return DefaultFuseTTL
	}
	return parseDurationOr(f.DefaultTTL, DefaultFuseTTL)
}

// AutoArmEnabled reports whether stopped sessions get a fuse armed automatically.
// Defaults to true.
func (f *FusesConfig) AutoArmEnabled() bool {
	return f == nil || f.AutoArm == nil || *f.AutoArm
}

// UnmarshalExtension decodes the extension section stored under key into
// target, which must be a pointer. Companion tools read their own warden.yml
// sections through this instead of digging in Extensions by hand:
//
//	var pager pagerSettings
//	err := cfg.UnmarshalExtension("pager", &pager)
//
// A missing key is not an error; target is left untouched.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	raw, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	// The section sits in Extensions as whatever map the yaml parser
	// produced. mapstructure bridges it into the typed target, reusing
	// the yaml tag names.
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("build extension decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode extension %q: %w", key, err)
	}
	return nil
}
