// Package delta implements the delta matrix (spec §4.B): a mutable
// adjacency structure overlaying three sparse boolean matrices — the
// committed state M, pending additions M⁺, and pending deletions M⁻ — so
// that writes never disturb a frozen view already handed to a reader.
package delta

import (
	"fmt"
	"sync"

	"github.com/orneryd/deltagraph/pkg/matrix"
)

// ErrDimensionMismatch is returned when M, M⁺ and M⁻ would lose the shared
// dimensions invariant (spec I1).
var ErrDimensionMismatch = fmt.Errorf("delta: M, M+, M- dimension mismatch")

// DeltaMatrix is the triple (M, M⁺, M⁻) presenting a single logical
// adjacency matrix D = (M ∪ M⁺) \ M⁻.
//
// All three member matrices are updated under one lock, so Set/Clear leave
// no partial state (spec §4.B failure semantics). ReadView does not take
// the lock for its own accesses beyond a single pointer read — callers are
// expected to hold the graph-level read lock (§5) for the duration of their
// use of the returned matrix, exactly as the committed matrix is documented
// to require.
type DeltaMatrix struct {
	mu sync.RWMutex
	m  *matrix.Matrix
	mp *matrix.Matrix
	mn *matrix.Matrix
}

// New allocates a delta matrix of the given dimensions, all three
// constituent matrices starting empty.
func New(nrows, ncols int) *DeltaMatrix {
	return &DeltaMatrix{
		m:  matrix.New(nrows, ncols),
		mp: matrix.New(nrows, ncols),
		mn: matrix.New(nrows, ncols),
	}
}

// ReadView returns the committed matrix M without triggering
// synchronization. Valid as long as the caller holds the delta matrix
// read-locked (spec §4.B).
func (d *DeltaMatrix) ReadView() *matrix.Matrix {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.m
}

// RLock/RUnlock expose the delta matrix's read lock directly so a
// graph-level reader/writer lock (§5) can be composed with it: the graph
// store takes its own coarser lock, and callers that need to pin a
// particular delta matrix's state across several operations (e.g. a
// traversal operator evaluating the same expression repeatedly) can do so
// without re-deriving it from the graph store each time.
func (d *DeltaMatrix) RLock()   { d.mu.RLock() }
func (d *DeltaMatrix) RUnlock() { d.mu.RUnlock() }

// Set records that (i,j) should read as present.
//
//   - if (i,j) ∈ pattern(M⁻): undelete — remove from M⁻.
//   - else if (i,j) ∈ pattern(M): no-op.
//   - else: add to M⁺.
func (d *DeltaMatrix) Set(i, j int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inMinus, err := d.mn.Extract(i, j)
	if err != nil {
		return err
	}
	if inMinus {
		return d.mn.RemoveElement(i, j)
	}
	inM, err := d.m.Extract(i, j)
	if err != nil {
		return err
	}
	if inM {
		return nil
	}
	return d.mp.SetElement(i, j)
}

// Clear records that (i,j) should read as absent.
//
//   - if (i,j) ∈ pattern(M⁺): remove from M⁺.
//   - else if (i,j) ∈ pattern(M): add to M⁻.
//   - else: no-op.
func (d *DeltaMatrix) Clear(i, j int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inPlus, err := d.mp.Extract(i, j)
	if err != nil {
		return err
	}
	if inPlus {
		return d.mp.RemoveElement(i, j)
	}
	inM, err := d.m.Extract(i, j)
	if err != nil {
		return err
	}
	if inM {
		return d.mn.SetElement(i, j)
	}
	return nil
}

// Resize widens all three matrices to nrows x ncols. Never shrinks (spec
// §4.B).
func (d *DeltaMatrix) Resize(nrows, ncols int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.m.Resize(nrows, ncols); err != nil {
		return err
	}
	if err := d.mp.Resize(nrows, ncols); err != nil {
		return err
	}
	if err := d.mn.Resize(nrows, ncols); err != nil {
		return err
	}
	return nil
}

// Synchronize folds M⁺ and M⁻ into M and empties both, producing
// M' = (M ∪ M⁺) \ M⁻. Must be called under the graph's exclusive lock
// (spec §5); retry-safe — on failure the un-drained entries remain in
// M⁺/M⁻ so invariants I2-I4 still hold.
func (d *DeltaMatrix) Synchronize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mp.NVals() == 0 && d.mn.NVals() == 0 {
		return nil
	}
	folded := matrix.New(d.m.NRows(), d.m.NCols())
	if err := matrix.EWiseAdd(folded, nil, matrix.Descriptor{}, d.m, d.mp); err != nil {
		return err
	}
	if d.mn.NVals() > 0 {
		stripped := matrix.New(folded.NRows(), folded.NCols())
		if err := matrix.MaskComplementApply(stripped, folded, d.mn); err != nil {
			return err
		}
		folded = stripped
	}
	d.m = folded
	d.mp.Clear()
	d.mn.Clear()
	return nil
}

// NVals returns nvals(M) + nvals(M⁺) - nvals(M⁻); by invariants I2/I3 the
// three patterns are disjoint where it matters so this is exact, not an
// approximation.
func (d *DeltaMatrix) NVals() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.m.NVals() + d.mp.NVals() - d.mn.NVals()
}

// Pending reports whether there is unsynchronized work.
func (d *DeltaMatrix) Pending() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mp.NVals()+d.mn.NVals() > 0
}

// Dims returns the shared dimensions of M, M⁺, M⁻.
func (d *DeltaMatrix) Dims() (nrows, ncols int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.m.NRows(), d.m.NCols()
}
