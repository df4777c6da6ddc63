// Package procedure implements the procedure registry contract spec §6
// names as an external collaborator ("Procedure registry (consumed)"): a
// name→handler map a CALL-style plan operator can look up and invoke,
// yielding records the way any other operator does.
//
// Grounded on the teacher's apoc/registry/registry.go FunctionRegistry
// (name→descriptor map, mutex-guarded registration, global + per-instance
// constructors), trimmed from APOC's reflection-based arbitrary-arity
// function wrapping down to a single typed Call signature — this package
// only needs to expose graph-store procedures to CALL, not wrap arbitrary
// Go functions for a scripting surface.
package procedure

import (
	"context"
	"fmt"
	"sync"

	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/record"
)

// Procedure describes one registered CALL target: its declared argument and
// yield names (for the planner to validate against, spec §6), and the
// handler itself.
type Procedure struct {
	Name   string
	Args   []string
	Yields []string
	Call   func(ctx context.Context, store *graphstore.Store, args []record.Value) ([]*record.Record, error)
}

// Registry is a name→Procedure map, safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]*Procedure
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{procs: make(map[string]*Procedure)}
}

// ErrAlreadyRegistered is returned by Register when name is already taken.
var ErrAlreadyRegistered = fmt.Errorf("procedure: already registered")

// ErrNotFound is returned by Get/Call when name has no registered procedure.
var ErrNotFound = fmt.Errorf("procedure: not found")

// Register adds p to the registry under p.Name.
func (r *Registry) Register(p *Procedure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.procs[p.Name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, p.Name)
	}
	r.procs[p.Name] = p
	return nil
}

// Get returns the procedure registered under name, if any.
func (r *Registry) Get(name string) (*Procedure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[name]
	return p, ok
}

// Call looks up name and invokes it against store with args.
func (r *Registry) Call(ctx context.Context, name string, store *graphstore.Store, args []record.Value) ([]*record.Record, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p.Call(ctx, store, args)
}

// Names returns every registered procedure name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.procs))
	for n := range r.procs {
		names = append(names, n)
	}
	return names
}
