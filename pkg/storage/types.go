// Package storage holds the attribute-side persistence and schema
// machinery that the graph store (pkg/graphstore) layers its delta
// matrices on top of: per-entity property tables, uniqueness constraints,
// the write-transaction discipline of spec §5, and a Badger-backed
// persistence path for attributes and committed matrices only (spec §6).
package storage

import "errors"

// Common errors, mirroring the teacher's sentinel-error style.
var (
	ErrNotFound         = errors.New("storage: not found")
	ErrAlreadyExists    = errors.New("storage: already exists")
	ErrInvalidID        = errors.New("storage: invalid id")
	ErrConstraint       = errors.New("storage: constraint violation")
	ErrStorageClosed    = errors.New("storage: closed")
)

// NodeID and EdgeID are the 64-bit identifiers spec §3 assigns to nodes and
// edges. They are dense-but-not-compact: freed ids are reused by the
// allocator in pkg/graphstore (spec I5).
type NodeID uint64

// EdgeID identifies an edge.
type EdgeID uint64

// Properties is the arbitrary key/value attribute set spec §3 attaches to
// every node and edge.
type Properties map[string]any

// Clone returns a shallow copy, used whenever a property map is handed to
// a caller who must not be able to mutate storage's copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
