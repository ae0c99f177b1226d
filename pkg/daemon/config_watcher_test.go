package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wardentools/warden/pkg/paths"
)

func TestConfigWatcherReportsChanges(t *testing.T) {
	t.Setenv("WARDEN_HOME", t.TempDir())
	configDir := paths.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 4)
	w, err := NewConfigWatcher(10, func(file string) { changed <- file })
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Give the watch loop a beat before generating events.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(configDir, "warden.yml"), []byte("daemon: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case file := <-changed:
		if file != "warden.yml" {
			t.Errorf("changed file = %q, want warden.yml", file)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the change")
	}
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	t.Setenv("WARDEN_HOME", t.TempDir())
	configDir := paths.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 4)
	w, err := NewConfigWatcher(10, func(file string) { changed <- file })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(configDir, "scratch.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "adapters.toml"), []byte("[adapters]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case file := <-changed:
		if file != "adapters.toml" {
			t.Errorf("first reported change = %q, want adapters.toml", file)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the toml change")
	}
}
