package adapter

import (
	"sort"
	"sync"

	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/logging"
)

// Registry holds the adapters the daemon supervises, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the named adapter.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, errors.UnknownAdapter(name)
	}
	return a, nil
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered adapters in name order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		adapters = append(adapters, r.adapters[name])
	}
	return adapters
}

// FromConfig builds the adapter set warden.yml describes. Disabled adapters
// are skipped. Config validation already rejects unknown kinds, so one
// showing up here is a bug worth failing loudly on.
func FromConfig(cfg *config.Config) (*Registry, error) {
	reg := NewRegistry()
	log := logging.NewLogger("adapter")

	for name, ac := range cfg.Adapters {
		if !ac.IsEnabled() {
			log.WithField("adapter", name).Debug("Adapter disabled, skipping")
			continue
		}

		switch ac.Kind {
		case "", "dirscan":
			a, err := NewDirScan(name, ac)
			if err != nil {
				return nil, err
			}
			reg.Register(a)
		default:
			return nil, errors.New(errors.ErrCodeConfigValidation,
				"adapter '"+name+"' has unknown kind '"+ac.Kind+"'").
				WithDetail("adapter", name).
				WithDetail("kind", ac.Kind)
		}
	}

	return reg, nil
}
