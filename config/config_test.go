package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestExtensionCapture verifies that unrecognized top-level keys in warden.yml
// are kept around for companion tools to decode back out.
func TestExtensionCapture(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1.0"

# Keys owned by companion tools ride along untouched.
pager:
  rotation: weekly
  escalate_after: 15m

audit:
  retain_days: 90
  signed: true
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Extensions == nil {
		t.Fatal("expected unknown keys to land in Extensions")
	}

	type pagerSettings struct {
		Rotation      string `yaml:"rotation"`
		EscalateAfter string `yaml:"escalate_after"`
	}
	var pager pagerSettings
	if err := cfg.UnmarshalExtension("pager", &pager); err != nil {
		t.Fatalf("decode pager extension: %v", err)
	}
	if pager.Rotation != "weekly" || pager.EscalateAfter != "15m" {
		t.Errorf("pager decoded as %+v", pager)
	}

	type auditSettings struct {
		RetainDays int  `yaml:"retain_days"`
		Signed     bool `yaml:"signed"`
	}
	var audit auditSettings
	if err := cfg.UnmarshalExtension("audit", &audit); err != nil {
		t.Fatalf("decode audit extension: %v", err)
	}
	if audit.RetainDays != 90 || !audit.Signed {
		t.Errorf("audit decoded as %+v", audit)
	}

	// Absent keys are not an error; the target keeps its zero value.
	var absent auditSettings
	if err := cfg.UnmarshalExtension("billing", &absent); err != nil {
		t.Fatalf("decode of an absent extension errored: %v", err)
	}
	if absent != (auditSettings{}) {
		t.Errorf("absent extension wrote into the target: %+v", absent)
	}

	if _, ok := cfg.Extensions["pager"].(map[string]interface{}); !ok {
		t.Errorf("raw extension value is %T, want a map", cfg.Extensions["pager"])
	}
}

// TestExtensionsLeaveTypedSectionsAlone verifies that a config mixing typed
// sections with extension keys parses both without cross-talk.
func TestExtensionsLeaveTypedSectionsAlone(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1.0"
name: my-workstation

daemon:
  reconcile_interval: 5s

linter:
  ruleset: strict
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Version != "1.0" || cfg.Name != "my-workstation" {
		t.Errorf("core fields parsed as version=%q name=%q", cfg.Version, cfg.Name)
	}
	if cfg.Daemon == nil || cfg.Daemon.ReconcileInterval != "5s" {
		t.Error("daemon section did not survive alongside extensions")
	}
	if _, ok := cfg.Extensions["linter"]; !ok {
		t.Error("expected the linter key to be captured as an extension")
	}
	// Typed sections must not double up in the extension map.
	if _, ok := cfg.Extensions["daemon"]; ok {
		t.Error("daemon leaked into Extensions")
	}
}

// TestDefaultAdapters verifies that an empty config still supervises the
// common agent CLIs.
func TestDefaultAdapters(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`version: "1.0"`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	for _, name := range []string{"claude", "codex"} {
		adapter, ok := cfg.Adapters[name]
		if !ok {
			t.Fatalf("Expected default adapter %q to be present", name)
		}
		if adapter.Kind != "dirscan" {
			t.Errorf("Expected adapter %q kind 'dirscan', got %q", name, adapter.Kind)
		}
		if adapter.Command != name {
			t.Errorf("Expected adapter %q command %q, got %q", name, name, adapter.Command)
		}
		if !adapter.IsEnabled() {
			t.Errorf("Expected adapter %q to be enabled by default", name)
		}
	}
}

// TestExplicitAdaptersSuppressDefaults verifies that configuring any adapter
// replaces the built-in set rather than adding to it.
func TestExplicitAdaptersSuppressDefaults(t *testing.T) {
	yamlContent := []byte(`
version: "1.0"
adapters:
  aider:
    command: aider
    session_root: ~/.aider/sessions
`)

	cfg, err := LoadFromBytes(yamlContent)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.Adapters) != 1 {
		t.Fatalf("Expected exactly 1 adapter, got %d", len(cfg.Adapters))
	}

	adapter, ok := cfg.Adapters["aider"]
	if !ok {
		t.Fatal("Expected 'aider' adapter to be present")
	}
	if adapter.Kind != "dirscan" {
		t.Errorf("Expected kind to default to 'dirscan', got %q", adapter.Kind)
	}
	if adapter.Command != "aider" {
		t.Errorf("Expected command 'aider', got %q", adapter.Command)
	}
}

// TestDurationDefaults verifies the OrDefault duration helpers across nil,
// empty, malformed and valid values.
func TestDurationDefaults(t *testing.T) {
	var nilDaemon *DaemonConfig
	if got := nilDaemon.ReconcileIntervalOrDefault(); got != DefaultReconcileInterval {
		t.Errorf("nil daemon: expected %v, got %v", DefaultReconcileInterval, got)
	}
	if !nilDaemon.WatchEnabled() {
		t.Error("nil daemon: expected config watching to default on")
	}

	d := &DaemonConfig{
		ReconcileInterval: "2s",
		ResolveInterval:   "not-a-duration",
		AdapterTimeout:    "-5s",
	}
	if got := d.ReconcileIntervalOrDefault(); got != 2*time.Second {
		t.Errorf("Expected 2s, got %v", got)
	}
	if got := d.ResolveIntervalOrDefault(); got != DefaultResolveInterval {
		t.Errorf("Malformed value should fall back to default, got %v", got)
	}
	if got := d.AdapterTimeoutOrDefault(); got != DefaultAdapterTimeout {
		t.Errorf("Non-positive value should fall back to default, got %v", got)
	}
	if got := d.CleanupIntervalOrDefault(); got != DefaultCleanupInterval {
		t.Errorf("Unset value should fall back to default, got %v", got)
	}

	var nilFuses *FusesConfig
	if got := nilFuses.DefaultTTLOrDefault(); got != DefaultFuseTTL {
		t.Errorf("nil fuses: expected %v, got %v", DefaultFuseTTL, got)
	}
	if !nilFuses.AutoArmEnabled() {
		t.Error("nil fuses: expected auto-arm to default on")
	}

	f := &FusesConfig{DefaultTTL: "1h"}
	if got := f.DefaultTTLOrDefault(); got != time.Hour {
		t.Errorf("Expected 1h, got %v", got)
	}
}

// TestEnvVarExpansion verifies ${VAR} and ${VAR:-default} substitution in
// config content.
func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("WARDEN_TEST_ROOT", "/srv/agents")

	yamlContent := []byte(`
version: "1.0"
adapters:
  claude:
    command: claude
    session_root: ${WARDEN_TEST_ROOT}/claude
  codex:
    command: ${WARDEN_TEST_MISSING:-codex}
`)

	cfg, err := LoadFromBytes(yamlContent)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.Adapters["claude"].SessionRoot; got != "/srv/agents/claude" {
		t.Errorf("Expected expanded session_root, got %q", got)
	}
	if got := cfg.Adapters["codex"].Command; got != "codex" {
		t.Errorf("Expected default value for missing variable, got %q", got)
	}
}

// TestFindConfigFile verifies upward search from a nested directory.
func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "warden.yml")
	if err := os.WriteFile(configPath, []byte(`version: "1.0"`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	nested := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("Failed to create nested dirs: %v", err)
	}

	found, err := FindConfigFile(nested)
	if err != nil {
		t.Fatalf("Expected to find config, got error: %v", err)
	}
	if found != configPath {
		t.Errorf("Expected %s, got %s", configPath, found)
	}
}

// TestLoadMissingFile verifies that loading a non-existent path returns a
// structured not-found error.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatal("Expected an error for a missing config file")
	}
}
