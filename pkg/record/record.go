// Package record implements the fixed-width tagged-value record (spec §3)
// that flows between execution-plan operators, and the per-plan-segment
// pool that leases and reclaims them (spec §4.F).
package record

import "github.com/orneryd/deltagraph/pkg/storage"

// Kind tags what a Value currently holds.
type Kind int

const (
	// Unresolved marks a slot that has not yet been bound by any operator.
	Unresolved Kind = iota
	Node
	Edge
	Scalar
)

// Value is one tagged entry in a Record's fixed-width slot array.
type Value struct {
	Kind   Kind
	NodeID storage.NodeID
	EdgeID storage.EdgeID
	Scalar any
}

// Record is a fixed-width array of slots assigned at plan-build time,
// addressed by integer index rather than name (spec §3). The zero Record
// is not usable; construct one via a Pool or New.
type Record struct {
	slots []Value
}

// New allocates a Record with width slots, all Unresolved.
func New(width int) *Record {
	return &Record{slots: make([]Value, width)}
}

// Width reports the number of slots.
func (r *Record) Width() int { return len(r.slots) }

// Get returns the value bound at slot i.
func (r *Record) Get(i int) Value { return r.slots[i] }

// SetNode binds slot i to a node handle.
func (r *Record) SetNode(i int, id storage.NodeID) {
	r.slots[i] = Value{Kind: Node, NodeID: id}
}

// SetEdge binds slot i to an edge handle.
func (r *Record) SetEdge(i int, id storage.EdgeID) {
	r.slots[i] = Value{Kind: Edge, EdgeID: id}
}

// SetScalar binds slot i to an arbitrary scalar value.
func (r *Record) SetScalar(i int, v any) {
	r.slots[i] = Value{Kind: Scalar, Scalar: v}
}

// Clear resets slot i back to Unresolved.
func (r *Record) Clear(i int) {
	r.slots[i] = Value{}
}

// Clone returns a deep copy, used whenever a downstream operator must hold
// onto a record's bindings past the point the upstream operator would
// otherwise overwrite or recycle it (spec §4.E CondTraverse.consume step 1:
// "return the cloned record").
func (r *Record) Clone() *Record {
	out := &Record{slots: make([]Value, len(r.slots))}
	copy(out.slots, r.slots)
	return out
}

// reset clears every slot, used by Pool before a Record is reused.
func (r *Record) reset() {
	for i := range r.slots {
		r.slots[i] = Value{}
	}
}
