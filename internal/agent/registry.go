package agent

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/hydra/internal/config"
)

// ErrUnknownProvider is returned when no constructor is registered for
// a provider name.
var ErrUnknownProvider = errors.New("unknown provider")

// Constructor builds a worker from a resolved agent configuration.
type Constructor func(cfg config.AgentConfig, opts BuildOptions) (Worker, error)

// Registry is a static mapping from provider name to constructor.
// Providers are registered once at startup and validated against the
// configuration before any run; there is no dynamic discovery.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under the given provider name.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if ctor == nil {
		return fmt.Errorf("provider %s: constructor is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("provider %s: already registered", name)
	}
	r.constructors[name] = ctor
	return nil
}

// Build constructs a worker for the configuration's provider.
// Construction failures propagate to the caller.
func (r *Registry) Build(cfg config.AgentConfig, opts BuildOptions) (Worker, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	return ctor(cfg, opts)
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every named provider has a constructor. Called
// once at startup against the providers the configuration references.
func (r *Registry) Validate(names ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		if _, ok := r.constructors[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}
	return nil
}

// DefaultRegistry returns a registry with the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of built-ins cannot collide.
	_ = r.Register("anthropic", NewAnthropicWorker)
	_ = r.Register("scripted", NewScriptedWorker)
	return r
}
