package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestConfigLayering walks one config through all four layers: global file,
// conf.d fragments, project file, local override.
func TestConfigLayering(t *testing.T) {
	tmpDir := t.TempDir()

	// Point XDG at a fake config home holding the global layer. WARDEN_HOME
	// would shadow it, so clear any ambient value.
	fakeXDG := filepath.Join(tmpDir, "xdg")
	wardenConfigDir := filepath.Join(fakeXDG, "warden")
	if err := os.MkdirAll(filepath.Join(wardenConfigDir, "conf.d"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WARDEN_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", fakeXDG)

	globalConfig := `
version: "1.0"
name: workstation

daemon:
  reconcile_interval: 5s
  resolve_interval: 45s

fuses:
  default_ttl: 1h

# Companion tool section, untyped.
telemetry:
  enabled: true
  flush_seconds: 60
`
	if err := os.WriteFile(filepath.Join(wardenConfigDir, "warden.yml"), []byte(globalConfig), 0644); err != nil {
		t.Fatal(err)
	}

	// A TOML fragment layered over the global file.
	fragment := `
[fuses]
default_ttl = "2h"

[adapters.claude]
command = "claude"
session_root = "~/.claude/sessions"
`
	if err := os.WriteFile(filepath.Join(wardenConfigDir, "conf.d", "10-claude.toml"), []byte(fragment), 0644); err != nil {
		t.Fatal(err)
	}

	// Project config overrides the daemon interval and adds an adapter.
	projectDir := filepath.Join(tmpDir, "project")
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		t.Fatal(err)
	}

	projectConfig := `
version: "1.2"

daemon:
  reconcile_interval: 3s

adapters:
  codex:
    command: codex

# Overrides one telemetry key, the rest deep-merge from the global layer.
telemetry:
  flush_seconds: 30
`
	if err := os.WriteFile(filepath.Join(projectDir, "warden.yml"), []byte(projectConfig), 0644); err != nil {
		t.Fatal(err)
	}

	// Local override wins over everything.
	overrideConfig := `
fuses:
  auto_arm: false
`
	if err := os.WriteFile(filepath.Join(projectDir, "warden.override.yml"), []byte(overrideConfig), 0644); err != nil {
		t.Fatal(err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg, err := LoadFromWithLogger(projectDir, logger)
	if err != nil {
		t.Fatalf("Failed to load merged config: %v", err)
	}

	// Project version wins.
	if cfg.Version != "1.2" {
		t.Errorf("Expected version '1.2', got '%s'", cfg.Version)
	}

	// Name comes from the global layer; nothing overrode it.
	if cfg.Name != "workstation" {
		t.Errorf("Expected name 'workstation', got '%s'", cfg.Name)
	}

	// Project overrides the reconcile interval, global's resolve interval survives.
	if cfg.Daemon == nil {
		t.Fatal("Expected daemon config to be present")
	}
	if cfg.Daemon.ReconcileInterval != "3s" {
		t.Errorf("Expected reconcile_interval '3s', got '%s'", cfg.Daemon.ReconcileInterval)
	}
	if cfg.Daemon.ResolveInterval != "45s" {
		t.Errorf("Expected resolve_interval '45s', got '%s'", cfg.Daemon.ResolveInterval)
	}

	// The fragment bumped the fuse TTL over the global value; the override
	// disabled auto-arm.
	if cfg.Fuses == nil {
		t.Fatal("Expected fuses config to be present")
	}
	if cfg.Fuses.DefaultTTL != "2h" {
		t.Errorf("Expected default_ttl '2h' from fragment, got '%s'", cfg.Fuses.DefaultTTL)
	}
	if cfg.Fuses.AutoArmEnabled() {
		t.Error("Expected auto_arm to be disabled by the override file")
	}

	// Both the fragment adapter and the project adapter are present.
	if _, ok := cfg.Adapters["claude"]; !ok {
		t.Error("Expected 'claude' adapter from fragment to survive the merge")
	}
	if _, ok := cfg.Adapters["codex"]; !ok {
		t.Error("Expected 'codex' adapter from project config")
	}

	// Extension maps deep-merge: the project flush wins, global enabled survives.
	var tel struct {
		Enabled      bool `yaml:"enabled"`
		FlushSeconds int  `yaml:"flush_seconds"`
	}
	if err := cfg.UnmarshalExtension("telemetry", &tel); err != nil {
		t.Fatalf("Failed to decode telemetry extension: %v", err)
	}
	if !tel.Enabled {
		t.Error("Expected telemetry.enabled from global layer to survive")
	}
	if tel.FlushSeconds != 30 {
		t.Errorf("Expected telemetry.flush_seconds 30 from project layer, got %d", tel.FlushSeconds)
	}
}

// TestMergeConfigsAdapterReplacement verifies that an override adapter entry
// replaces the base entry of the same name wholesale.
func TestMergeConfigsAdapterReplacement(t *testing.T) {
	base := &Config{
		Adapters: map[string]AdapterConfig{
			"claude": {Command: "claude", Args: []string{"--resume"}},
			"codex":  {Command: "codex"},
		},
	}
	override := &Config{
		Adapters: map[string]AdapterConfig{
			"claude": {Command: "claude-dev"},
		},
	}

	merged := mergeConfigs(base, override)

	claude := merged.Adapters["claude"]
	if claude.Command != "claude-dev" {
		t.Errorf("Expected override command 'claude-dev', got %q", claude.Command)
	}
	if len(claude.Args) != 0 {
		t.Errorf("Expected override entry to replace base args, got %v", claude.Args)
	}
	if _, ok := merged.Adapters["codex"]; !ok {
		t.Error("Expected untouched base adapter to survive")
	}

	// The base must not be mutated.
	if base.Adapters["claude"].Command != "claude" {
		t.Error("mergeConfigs mutated the base config")
	}
}

// TestMergeConfigsNilSections verifies nil section handling in both directions.
func TestMergeConfigsNilSections(t *testing.T) {
	base := &Config{Daemon: &DaemonConfig{ReconcileInterval: "5s"}}
	override := &Config{TUI: &TUIConfig{Theme: "terminal"}}

	merged := mergeConfigs(base, override)

	if merged.Daemon == nil || merged.Daemon.ReconcileInterval != "5s" {
		t.Error("Expected base daemon section to survive a nil override")
	}
	if merged.TUI == nil || merged.TUI.Theme != "terminal" {
		t.Error("Expected override TUI section to be adopted")
	}
}

// TestLoadWithOverrides verifies the single-file entry point picks up sibling
// override files.
func TestLoadWithOverrides(t *testing.T) {
	tmpDir := t.TempDir()

	basePath := filepath.Join(tmpDir, "warden.yml")
	baseConfig := `
version: "1.0"
fuses:
  default_ttl: 30m
`
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatal(err)
	}

	overrideConfig := `
fuses:
  default_ttl: 10m
`
	if err := os.WriteFile(filepath.Join(tmpDir, "warden.override.yml"), []byte(overrideConfig), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithOverrides(basePath)
	if err != nil {
		t.Fatalf("Failed to load config with overrides: %v", err)
	}

	if cfg.Fuses == nil || cfg.Fuses.DefaultTTL != "10m" {
		t.Errorf("Expected override TTL '10m', got %+v", cfg.Fuses)
	}
}
