package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/moby/patternmatcher"
	"github.com/wardentools/warden/errors"
)

var adapterNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// adapterKinds lists the discovery strategies warden knows how to build.
var adapterKinds = map[string]bool{
	"dirscan": true,
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for name, adapter := range c.Adapters {
		if err := validateAdapterName(name); err != nil {
			return err
		}
		if adapter.Kind != "" && !adapterKinds[adapter.Kind] {
			return errors.New(errors.ErrCodeConfigValidation,
				fmt.Sprintf("adapter '%s' has unknown kind '%s'", name, adapter.Kind)).
				WithDetail("adapter", name).
				WithDetail("kind", adapter.Kind)
		}
	}

	if c.Daemon != nil {
		for field, value := range map[string]string{
			"daemon.reconcile_interval": c.Daemon.ReconcileInterval,
			"daemon.resolve_interval":   c.Daemon.ResolveInterval,
			"daemon.cleanup_interval":   c.Daemon.CleanupInterval,
			"daemon.adapter_timeout":    c.Daemon.AdapterTimeout,
		} {
			if err := validateDuration(field, value); err != nil {
				return err
			}
		}
		if c.Daemon.ConfigDebounceMs < 0 {
			return errors.New(errors.ErrCodeConfigValidation, "daemon.config_debounce_ms cannot be negative")
		}
	}

	if c.Fuses != nil {
		if err := validateDuration("fuses.default_ttl", c.Fuses.DefaultTTL); err != nil {
			return err
		}
		if len(c.Fuses.Exclude) > 0 {
			if _, err := patternmatcher.New(c.Fuses.Exclude); err != nil {
				return errors.Wrap(err, errors.ErrCodeConfigValidation, "fuses.exclude patterns do not compile")
			}
		}
	}

	return nil
}

func validateAdapterName(name string) error {
	if !adapterNameRegex.MatchString(name) {
		return errors.New(errors.ErrCodeInvalidInput, "adapter name must start with a letter and contain only letters, numbers, underscores, and hyphens").
			WithDetail("name", name)
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation,
			fmt.Sprintf("%s is not a valid duration", field)).
			WithDetail("field", field).
			WithDetail("value", value)
	}
	if d <= 0 {
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("%s must be positive", field)).
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return nil
}
