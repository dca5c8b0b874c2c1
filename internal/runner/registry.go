package runner

import (
	"sort"
	"sync"

	"tradesim/internal/data"
)

// Registry maps asset ids to their bar providers. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]data.Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]data.Provider)}
}

// Register adds or replaces the provider for asset.
func (r *Registry) Register(asset string, p data.Provider) {
	r.mu.Lock()
	r.providers[asset] = p
	r.mu.Unlock()
}

func (r *Registry) Lookup(asset string) (data.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[asset]
	return p, ok
}

// Assets returns the registered asset ids, sorted.
func (r *Registry) Assets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for a := range r.providers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
