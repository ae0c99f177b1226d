package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeForLookupCollapsesEquivalentPaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "work")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	dotted := filepath.Join(dir, ".", "work", "..", "work")
	norm1, err := NormalizeForLookup(sub)
	if err != nil {
		t.Fatalf("NormalizeForLookup(%q): %v", sub, err)
	}
	norm2, err := NormalizeForLookup(dotted)
	if err != nil {
		t.Fatalf("NormalizeForLookup(%q): %v", dotted, err)
	}
	if norm1 != norm2 {
		t.Errorf("expected %q and %q to normalize identically, got %q vs %q", sub, dotted, norm1, norm2)
	}
}

func TestNormalizeForLookupResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "alias")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	same, err := ComparePaths(target, link)
	if err != nil {
		t.Fatalf("ComparePaths: %v", err)
	}
	if !same {
		t.Errorf("expected symlink %q to compare equal to %q", link, target)
	}
}

func TestCanonicalPathPreservesCase(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "MixedCase")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := CanonicalPath(sub)
	if err != nil {
		t.Fatalf("CanonicalPath: %v", err)
	}
	if filepath.Base(got) != "MixedCase" {
		t.Errorf("CanonicalPath = %q, want base MixedCase", got)
	}
}

func TestNormalizeForLookupMissingPath(t *testing.T) {
	// Paths that do not exist yet must still normalize (fall back to Abs).
	norm, err := NormalizeForLookup(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("NormalizeForLookup on missing path: %v", err)
	}
	if !filepath.IsAbs(norm) {
		t.Errorf("expected absolute path, got %q", norm)
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("PATHUTIL_TEST_DIR", "expanded")

	got, err := Expand("/tmp/${PATHUTIL_TEST_DIR}/x")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "/tmp/expanded/x" {
		t.Errorf("Expand env var = %q, want /tmp/expanded/x", got)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err = Expand("~/projects")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != filepath.Join(home, "projects") {
		t.Errorf("Expand home = %q, want %q", got, filepath.Join(home, "projects"))
	}
}
