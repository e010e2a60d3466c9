// Package pause holds the set of conversations for which automated replies
// are suspended while a human handles them. State is in-memory only and is
// lost when the process restarts.
package pause

import (
	"sort"
	"sync"
)

// Registry is a concurrency-safe set of conversation identifiers.
// The zero value is not usable; use NewRegistry.
type Registry struct {
	mu     sync.RWMutex
	paused map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{paused: make(map[string]struct{})}
}

// Add pauses id. Adding an already paused id is a no-op.
func (r *Registry) Add(id string) {
	r.mu.Lock()
	r.paused[id] = struct{}{}
	r.mu.Unlock()
}

// Remove resumes id. Removing an id that is not paused is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.paused, id)
	r.mu.Unlock()
}

func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	_, ok := r.paused[id]
	r.mu.RUnlock()
	return ok
}

// List returns the paused identifiers in lexicographic order.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.paused))
	for id := range r.paused {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
