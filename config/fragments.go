package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// loadFragments reads modular TOML drop-ins from ~/.config/warden/conf.d/*.toml
// and merges them in lexical order. Fragments let adapter definitions live in
// their own files (claude.toml, codex.toml) without touching warden.yml.
// Returns nil when the directory is absent or holds nothing usable.
func loadFragments(logger *logrus.Logger) *Config {
	dir := fragmentsDir()
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var merged *Config
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("Failed to read config fragment, skipping")
			continue
		}

		expanded := expandEnvVars(string(data))
		var fragment Config
		if err := toml.Unmarshal([]byte(expanded), &fragment); err != nil {
			logger.WithError(err).WithField("path", path).Warn("Failed to parse config fragment, skipping")
			continue
		}

		logger.WithField("path", path).Debug("Loaded config fragment")
		if merged == nil {
			merged = &fragment
		} else {
			merged = mergeConfigs(merged, &fragment)
		}
	}

	return merged
}

func fragmentsDir() string {
	globalPath := xdgConfigPath()
	if globalPath == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(globalPath), "conf.d")
}
