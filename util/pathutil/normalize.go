package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// macOS and Windows ship case-insensitive filesystems by default, so two
// spellings of one directory must key the same lock entry there.
var caseInsensitiveFS = runtime.GOOS == "darwin" || runtime.GOOS == "windows"

// NormalizeForLookup returns a canonical, case-folded form of path for use
// as a map key. Lock and fuse tables are keyed this way so that "/a/b",
// "/a/./b" and a symlink to /a/b all land on the same entry.
func NormalizeForLookup(path string) (string, error) {
	resolved, err := resolve(path)
	if err != nil {
		return "", err
	}
	if caseInsensitiveFS {
		return strings.ToLower(resolved), nil
	}
	return resolved, nil
}

// ComparePaths reports whether two paths refer to the same location.
func ComparePaths(a, b string) (bool, error) {
	na, err := NormalizeForLookup(a)
	if err != nil {
		return false, err
	}
	nb, err := NormalizeForLookup(b)
	if err != nil {
		return false, err
	}
	return na == nb, nil
}

// CanonicalPath returns the absolute path spelled with the case the
// filesystem actually uses. NormalizeForLookup folds case away; this keeps
// it, which matters for paths handed to external tools such as agent CLIs
// and fuse shell commands. filepath.EvalSymlinks does not repair case on
// macOS, so each component is looked up in its parent directory.
func CanonicalPath(path string) (string, error) {
	resolved, err := resolve(path)
	if err != nil {
		return "", err
	}
	if !caseInsensitiveFS || resolved == "/" {
		return resolved, nil
	}

	result := ""
	if strings.HasPrefix(resolved, "/") {
		result = "/"
	}
	for _, part := range strings.Split(resolved, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		result = filepath.Join(result, matchCase(result, part))
	}
	return result, nil
}

// resolve makes path absolute and follows symlinks. Paths that do not exist
// yet resolve to their absolute form unchanged.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	return resolved, nil
}

// matchCase returns the entry of dir matching name without regard to case,
// or name itself when dir cannot be read or holds no match.
func matchCase(dir, name string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return name
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), name) {
			return entry.Name()
		}
	}
	return name
}
