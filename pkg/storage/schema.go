package storage

import (
	"fmt"
	"sync"

	"github.com/orneryd/deltagraph/pkg/convert"
)

// normalizeValue canonicalizes numeric property values to float64 before
// they are used as a uniqueness-registry map key, so a node created with
// an int property (age: 30) collides correctly with one created via a
// decoded JSON request body, where the same value arrives as float64.
func normalizeValue(v any) any {
	if f, ok := convert.ToFloat64(v); ok {
		if _, isString := v.(string); !isString {
			return f
		}
	}
	return v
}

// UniqueConstraint enforces that a given (label, property) pair holds at
// most one node per value — the one constraint kind spec's data model
// needs in order for attribute-table writes to stay consistent; richer
// constraint kinds (range/fulltext/vector indexes) belong to the teacher's
// product surface, not this module's domain (see DESIGN.md).
type UniqueConstraint struct {
	Name     string
	Label    string
	Property string
}

// SchemaManager tracks unique constraints and the values currently
// registered against them, keyed by (label, property, value).
//
// Grounded on the teacher's pkg/storage/schema.go registration pattern
// (name-keyed constraint map behind a mutex), trimmed of the vector/
// fulltext/range index machinery that file also carried.
type SchemaManager struct {
	mu          sync.RWMutex
	constraints map[string]UniqueConstraint
	values      map[string]map[any]NodeID // "label\x00property" -> value -> node
}

// NewSchemaManager returns an empty schema manager.
func NewSchemaManager() *SchemaManager {
	return &SchemaManager{
		constraints: make(map[string]UniqueConstraint),
		values:      make(map[string]map[any]NodeID),
	}
}

func constraintKey(label, property string) string {
	return label + "\x00" + property
}

// AddUniqueConstraint registers a uniqueness constraint on (label, property).
func (sm *SchemaManager) AddUniqueConstraint(name, label, property string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, exists := sm.constraints[name]; exists {
		return fmt.Errorf("%w: constraint %q already exists", ErrAlreadyExists, name)
	}
	sm.constraints[name] = UniqueConstraint{Name: name, Label: label, Property: property}
	sm.values[constraintKey(label, property)] = make(map[any]NodeID)
	return nil
}

// CheckUniqueConstraint returns ErrConstraint if value is already
// registered against (label, property) under a different node than
// excludeNode.
func (sm *SchemaManager) CheckUniqueConstraint(label, property string, value any, excludeNode NodeID) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	registry, ok := sm.values[constraintKey(label, property)]
	if !ok {
		return nil
	}
	value = normalizeValue(value)
	if owner, exists := registry[value]; exists && owner != excludeNode {
		return fmt.Errorf("%w: %s.%s=%v already used by node %d", ErrConstraint, label, property, value, owner)
	}
	return nil
}

// RegisterUniqueValue records that node now owns value for (label, property).
func (sm *SchemaManager) RegisterUniqueValue(label, property string, value any, node NodeID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	registry, ok := sm.values[constraintKey(label, property)]
	if !ok {
		return
	}
	registry[normalizeValue(value)] = node
}

// UnregisterUniqueValue releases value from (label, property), e.g. on
// node deletion or property update.
func (sm *SchemaManager) UnregisterUniqueValue(label, property string, value any) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if registry, ok := sm.values[constraintKey(label, property)]; ok {
		delete(registry, normalizeValue(value))
	}
}

// ConstraintsForLabel returns the constraints registered against label.
func (sm *SchemaManager) ConstraintsForLabel(label string) []UniqueConstraint {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	var out []UniqueConstraint
	for _, c := range sm.constraints {
		if c.Label == label {
			out = append(out, c)
		}
	}
	return out
}

// ValidateProperties checks props against every constraint on label before
// a node/edge with those properties is created or updated as node id.
func (sm *SchemaManager) ValidateProperties(label string, props Properties, node NodeID) error {
	for _, c := range sm.ConstraintsForLabel(label) {
		v, ok := props[c.Property]
		if !ok {
			continue
		}
		if err := sm.CheckUniqueConstraint(c.Label, c.Property, v, node); err != nil {
			return err
		}
	}
	return nil
}
