package adapter

import (
	"fmt"
	"sync"

	"github.com/BaSui01/videoflow/types"
)

// Registry is a thread-safe catalogue of live adapters. It only indexes
// adapter instances: registering or unregistering never disturbs work
// already in flight on an adapter obtained earlier, because callers hold
// the adapter by reference.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string // registration order, for deterministic iteration
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its name. Duplicate names are rejected;
// there is no silent overwrite.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return types.NewError(types.ErrAlreadyRegistered,
			fmt.Sprintf("adapter %q already registered", name))
	}
	r.adapters[name] = a
	r.order = append(r.order, name)
	return nil
}

// Unregister removes an adapter by name. It is idempotent and returns
// whether an entry was removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; !exists {
		return false
	}
	delete(r.adapters, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get retrieves an adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// List returns adapter names in registration order. With enabledOnly set,
// disabled adapters are skipped.
func (r *Registry) List(enabledOnly bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if enabledOnly && !r.adapters[name].Enabled() {
			continue
		}
		names = append(names, name)
	}
	return names
}

// All returns the adapters in registration order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// ByCapability returns the enabled adapters advertising the capability,
// in registration order.
func (r *Registry) ByCapability(cap types.ModelCapability) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Adapter
	for _, name := range r.order {
		a := r.adapters[name]
		if !a.Enabled() {
			continue
		}
		for _, have := range a.Capabilities() {
			if have == cap {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// BestFor returns the first enabled adapter whose validation passes for
// cfg. Ranking among multiple candidates is the engine's concern, not the
// registry's.
func (r *Registry) BestFor(cfg *types.GenerationConfig) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		a := r.adapters[name]
		if !a.Enabled() {
			continue
		}
		if ok, _ := Validate(a, cfg); ok {
			return a, true
		}
	}
	return nil, false
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Info returns a snapshot of every registered adapter.
func (r *Registry) Info() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Describe(r.adapters[name]))
	}
	return out
}
