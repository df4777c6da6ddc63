// Package registry provides the name<->id registries the graph store uses
// for labels and relation types (spec §4.C). Grounded on the teacher's
// pkg/storage/schema.go registration pattern (name-keyed map behind a
// mutex, monotonically assigned ids), narrowed to the two lookups the
// spec's graph store actually needs.
package registry

import (
	"fmt"
	"sync"
)

// ErrUnknownName is returned by ID when name was never registered.
var ErrUnknownName = fmt.Errorf("registry: unknown name")

// ErrUnknownID is returned by Name when id was never assigned.
var ErrUnknownID = fmt.Errorf("registry: unknown id")

// Registry is a thread-safe bidirectional name<->int-id map. IDs are
// assigned densely starting at 0 and are never reused, even if the
// corresponding label or relation type is conceptually retired — the
// entries they tag in matrices simply go to zero.
type Registry struct {
	mu      sync.RWMutex
	nameID  map[string]int
	idName  []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{nameID: make(map[string]int)}
}

// GetOrCreate returns name's id, assigning the next free id if name hasn't
// been seen before.
func (r *Registry) GetOrCreate(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.nameID[name]; ok {
		return id
	}
	id := len(r.idName)
	r.nameID[name] = id
	r.idName = append(r.idName, name)
	return id
}

// ID looks up name's id without creating it.
func (r *Registry) ID(name string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameID[name]
	if !ok {
		return 0, ErrUnknownName
	}
	return id, nil
}

// Name looks up the name registered for id.
func (r *Registry) Name(id int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.idName) {
		return "", ErrUnknownID
	}
	return r.idName[id], nil
}

// Len reports how many names are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.idName)
}

// Names returns a snapshot of all registered names, ordered by id.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.idName))
	copy(out, r.idName)
	return out
}
