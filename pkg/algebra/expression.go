// Package algebra builds and evaluates algebraic expression trees (spec
// §4.D): linear chains of (possibly transposed) delta matrices representing
// a query's path pattern, with the construction-time optimizations the
// spec calls for.
//
// Grounded on the teacher's pkg/cypher/traversal.go RelationshipPattern
// (direction/type parsing shape), rebuilt around graphstore.Store's delta
// matrices instead of in-memory node/edge scans.
package algebra

import (
	"fmt"

	"github.com/orneryd/deltagraph/pkg/delta"
	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/matrix"
)

// Direction mirrors the teacher's RelationshipPattern.Direction values,
// narrowed to the three traversal directions a path pattern can request.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// NodePattern is one node slot along a path: zero or more labels, ANDed.
type NodePattern struct {
	Labels []string
}

// EdgePattern is one relationship slot along a path: zero or more types
// (ORed — a union over T, per spec §4.D), and a traversal direction.
type EdgePattern struct {
	Types     []string
	Direction Direction
}

// PathPattern is an alternating node/edge path: len(Nodes) == len(Edges)+1.
type PathPattern struct {
	Nodes []NodePattern
	Edges []EdgePattern
}

type stepKind int

const (
	stepLabel stepKind = iota
	stepRelation
)

// step is one unit of the expression's left-to-right evaluation chain. A
// label step ANDs a node pattern's labels by chaining diagonal
// delta-multiplies; a relation step ORs a set of (possibly multi-type,
// possibly bidirectional) delta matrices by multiplying against each and
// unioning the results — valid because the any-pair boolean semiring
// distributes multiplication over pattern union.
type step struct {
	kind  stepKind
	label []*delta.DeltaMatrix
	rel   []*delta.DeltaMatrix
}

// Expression is a built algebraic expression: an ordered chain of steps
// ready to evaluate against a frontier matrix F.
type Expression struct {
	steps []step
	dims  int
}

// ErrEmptyPath is returned by Build when given a pattern with no node slots.
var ErrEmptyPath = fmt.Errorf("algebra: path has no node patterns")

// ErrUnknownLabel is returned by Build when a node pattern names a label the
// store has never registered — evaluating such an expression would always
// yield empty results, so Build rejects it early rather than silently
// dropping the filter.
var ErrUnknownLabel = fmt.Errorf("algebra: unknown label")

// ErrUnknownRelType is returned by Build when an edge pattern names a
// relation type the store has never registered.
var ErrUnknownRelType = fmt.Errorf("algebra: unknown relation type")

// BuildOptions controls the construction-time optimizations spec §4.D
// calls for.
type BuildOptions struct {
	// DropLeadingLabel skips emitting a diagonal filter step for the first
	// node pattern, used when the expression's caller (the planner) already
	// guarantees F is a labeled column vector matching that pattern — the
	// leading operand would be redundant (spec §4.D).
	DropLeadingLabel bool
}

// Build compiles path into an algebraic expression over store's delta
// matrices.
func Build(path PathPattern, store *graphstore.Store, opts BuildOptions) (*Expression, error) {
	if len(path.Nodes) == 0 {
		return nil, ErrEmptyPath
	}
	if len(path.Nodes) != len(path.Edges)+1 {
		return nil, fmt.Errorf("algebra: path has %d nodes and %d edges, want nodes = edges+1", len(path.Nodes), len(path.Edges))
	}

	e := &Expression{dims: store.Capacity()}

	leadingLabels := path.Nodes[0].Labels
	if !opts.DropLeadingLabel && len(leadingLabels) > 0 {
		s, err := labelStep(leadingLabels, store)
		if err != nil {
			return nil, err
		}
		e.steps = append(e.steps, s)
	}

	for i, edge := range path.Edges {
		rs, err := relationStep(edge, store)
		if err != nil {
			return nil, err
		}
		e.steps = append(e.steps, rs)

		nextLabels := path.Nodes[i+1].Labels
		if len(nextLabels) > 0 {
			s, err := labelStep(nextLabels, store)
			if err != nil {
				return nil, err
			}
			e.steps = append(e.steps, s)
		}
	}

	return e, nil
}

func labelStep(labels []string, store *graphstore.Store) (step, error) {
	s := step{kind: stepLabel}
	for _, l := range labels {
		dm := store.LabelMatrix(l)
		if dm == nil {
			return step{}, fmt.Errorf("%w: %q", ErrUnknownLabel, l)
		}
		s.label = append(s.label, dm)
	}
	return s, nil
}

func relationStep(edge EdgePattern, store *graphstore.Store) (step, error) {
	s := step{kind: stepRelation}
	for _, t := range edge.Types {
		fwd, rev := store.RelationMatrices(t)
		if fwd == nil {
			return step{}, fmt.Errorf("%w: %q", ErrUnknownRelType, t)
		}
		switch edge.Direction {
		case Outgoing:
			s.rel = append(s.rel, fwd)
		case Incoming:
			s.rel = append(s.rel, rev)
		case Both:
			s.rel = append(s.rel, fwd, rev)
		default:
			return step{}, fmt.Errorf("algebra: unknown direction %v", edge.Direction)
		}
	}
	return s, nil
}

// SwapSourceDest reverses the traversal direction by transposing the whole
// expression: the step order reverses and every relation operand swaps to
// its stored transpose (since R_tᵀ is already maintained as a sibling
// delta matrix, "transposing" a step is a lookup swap, not a matrix
// transpose call).
func (e *Expression) SwapSourceDest(store *graphstore.Store) error {
	reversed := make([]step, len(e.steps))
	for i, s := range e.steps {
		j := len(e.steps) - 1 - i
		if s.kind == stepLabel {
			reversed[j] = s
			continue
		}
		swapped := step{kind: stepRelation}
		for _, m := range s.rel {
			t, err := transposeOf(m, store)
			if err != nil {
				return err
			}
			swapped.rel = append(swapped.rel, t)
		}
		reversed[j] = swapped
	}
	e.steps = reversed
	return nil
}

// transposeOf finds the sibling delta matrix that is m's transpose among
// the store's registered relation matrix pairs.
func transposeOf(m *delta.DeltaMatrix, store *graphstore.Store) (*delta.DeltaMatrix, error) {
	for _, name := range store.RelationTypes().Names() {
		fwd, rev := store.RelationMatrices(name)
		if fwd == m {
			return rev, nil
		}
		if rev == m {
			return fwd, nil
		}
	}
	return nil, fmt.Errorf("algebra: matrix is not a registered relation matrix")
}

// Evaluate applies the expression left-to-right: F_0 = F; F_{k+1} = F_k · op_k;
// out = F_n. Each multiplication uses delta-multiply against the step's
// matrices, OR-ing results together for relation steps that union multiple
// types or directions.
func (e *Expression) Evaluate(f *matrix.Matrix, out *matrix.Matrix) error {
	cur := f
	for _, s := range e.steps {
		next := matrix.New(cur.NRows(), e.dims)
		switch s.kind {
		case stepLabel:
			acc := cur
			for _, dm := range s.label {
				stepOut := matrix.New(acc.NRows(), e.dims)
				if err := dm.Multiply(stepOut, acc); err != nil {
					return err
				}
				acc = stepOut
			}
			next = acc
		case stepRelation:
			for _, dm := range s.rel {
				partial := matrix.New(cur.NRows(), e.dims)
				if err := dm.Multiply(partial, cur); err != nil {
					return err
				}
				if err := matrix.EWiseAdd(next, nil, matrix.Descriptor{}, next, partial); err != nil {
					return err
				}
			}
		}
		cur = next
	}
	return matrix.Copy(out, cur)
}

// Free is a no-op: the expression only ever holds references into matrices
// the graph store owns; there is nothing for it to release on its own.
func (e *Expression) Free() {}
