package agent

import (
	"fmt"
	"sync"
)

// Registry holds worker agent descriptors in registration order. It is an
// explicit value owned by the orchestrator, never a process-wide singleton.
type Registry struct {
	mu    sync.RWMutex
	order []string
	cards map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		cards: make(map[string]Descriptor),
	}
}

func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cards[d.Name]; exists {
		return fmt.Errorf("agent already registered: %s", d.Name)
	}
	r.cards[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.cards[name]
	return d, ok
}

// Snapshot returns all descriptors in registration order. Routing operates
// on such a snapshot so concurrent registry mutation cannot tear a phase.
func (r *Registry) Snapshot() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.cards[name])
	}
	return out
}

// SetLoad updates the reported load of an agent, ignoring unknown names.
func (r *Registry) SetLoad(name string, load int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.cards[name]; ok {
		d.Load = load
		r.cards[name] = d
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
