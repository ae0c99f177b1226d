package config

import (
	"fmt"
	"path/filepath"
)

// LoadWithOverrides loads one config file plus any sibling override files.
// Overrides are parsed unvalidated; the result inherits the validation
// Load already ran on the base.
func LoadWithOverrides(baseFile string) (*Config, error) {
	config, err := Load(baseFile)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(baseFile)
	for _, name := range overrideNames {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		override, err := readLayer(path)
		if err != nil {
			return nil, fmt.Errorf("load override %s: %w", path, err)
		}
		config = mergeConfigs(config, override)
	}
	return config, nil
}

// mergeConfigs layers override onto base and returns a fresh Config.
// Scalars and sections replace when the override sets them, adapters merge
// per-name, extension maps deep-merge one level.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Name != "" {
		result.Name = override.Name
	}
	if override.Version != "" {
		result.Version = override.Version
	}

	result.TUI = mergeTUI(result.TUI, override.TUI)
	result.Daemon = mergeDaemon(result.Daemon, override.Daemon)
	result.Fuses = mergeFuses(result.Fuses, override.Fuses)

	// Adapters merge per-name: an override entry replaces the base entry of the
	// same name but leaves other adapters alone.
	if len(override.Adapters) > 0 {
		merged := make(map[string]AdapterConfig, len(result.Adapters)+len(override.Adapters))
		for name, a := range result.Adapters {
			merged[name] = a
		}
		for name, a := range override.Adapters {
			merged[name] = a
		}
		result.Adapters = merged
	}

	if override.Extensions != nil {
		result.Extensions = mergeExtensions(result.Extensions, override.Extensions)
	}

	return &result
}

// mergeExtensions layers the unknown top-level keys. When both sides hold
// a map under the same key, the maps combine key by key so a project can
// adjust one setting of a globally configured extension. Anything else
// replaces wholesale.
func mergeExtensions(base, override map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range override {
		baseMap, haveBase := merged[key].(map[string]interface{})
		overMap, haveOver := value.(map[string]interface{})
		if haveBase && haveOver {
			combined := make(map[string]interface{}, len(baseMap)+len(overMap))
			for k, v := range baseMap {
				combined[k] = v
			}
			for k, v := range overMap {
				combined[k] = v
			}
			merged[key] = combined
			continue
		}
		merged[key] = value
	}
	return merged
}

func mergeTUI(base, override *TUIConfig) *TUIConfig {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}
	result := *base
	if override.Icons != "" {
		result.Icons = override.Icons
	}
	if override.Theme != "" {
		result.Theme = override.Theme
	}
	return &result
}

func mergeDaemon(base, override *DaemonConfig) *DaemonConfig {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}
	result := *base
	if override.ReconcileInterval != "" {
		result.ReconcileInterval = override.ReconcileInterval
	}
	if override.ResolveInterval != "" {
		result.ResolveInterval = override.ResolveInterval
	}
	if override.CleanupInterval != "" {
		result.CleanupInterval = override.CleanupInterval
	}
	if override.AdapterTimeout != "" {
		result.AdapterTimeout = override.AdapterTimeout
	}
	if override.ConfigWatch != nil {
		result.ConfigWatch = override.ConfigWatch
	}
	if override.ConfigDebounceMs != 0 {
		result.ConfigDebounceMs = override.ConfigDebounceMs
	}
	return &result
}

func mergeFuses(base, override *FusesConfig) *FusesConfig {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}
	result := *base
	if override.DefaultTTL != "" {
		result.DefaultTTL = override.DefaultTTL
	}
	if override.AutoArm != nil {
		result.AutoArm = override.AutoArm
	}
	if len(override.Exclude) > 0 {
		result.Exclude = override.Exclude
	}
	if override.OnExpire != nil {
		result.OnExpire = override.OnExpire
	}
	return &result
}
