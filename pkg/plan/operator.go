// Package plan implements the execution-plan skeleton (spec §4.F): a DAG of
// pull-based operators sharing a record pool per segment, with template/
// execution clone semantics and cooperative cancellation.
package plan

import (
	"context"

	"github.com/orneryd/deltagraph/pkg/record"
)

// Operator is one node in an execution plan. Planning builds a template
// tree; Clone produces the tree an actual execution runs against, so
// per-execution state (batch vectors, iterators) never bleeds across
// concurrent executions of the same template (spec §4.F).
type Operator interface {
	// Init prepares the operator for a run: acquiring the graph read lock
	// happens above this layer, at plan start, per spec §5's suspension
	// points; Init only sets up in-memory iteration state.
	Init(ctx context.Context) error
	// Consume pulls (or produces) the next record, or returns
	// (nil, false, nil) at end-of-stream. A non-nil error aborts the query
	// (spec §7: errors surface immediately, no local retry).
	Consume(ctx context.Context) (*record.Record, bool, error)
	// Reset returns the operator to its pre-Init state so it can be driven
	// again without re-cloning.
	Reset()
	// Free releases any records or resources the operator still owns,
	// returning records to the shared pool rather than leaking them.
	Free()
	// Clone returns a fresh operator with the same static configuration as
	// this one (its matrices, patterns, child pointers) but no
	// per-execution state — the template/execution split spec §4.F
	// requires.
	Clone() Operator
}

// Children is implemented by operators with one or more upstream operators,
// so generic plan-tree utilities (Reset/Free propagation, profiling wrap)
// don't need operator-specific switch statements.
type Children interface {
	Child() Operator
}

// ResetAll resets op and, if it has children, every operator beneath it.
func ResetAll(op Operator) {
	op.Reset()
	if c, ok := op.(Children); ok {
		if child := c.Child(); child != nil {
			ResetAll(child)
		}
	}
}

// FreeAll frees op and, if it has children, every operator beneath it.
func FreeAll(op Operator) {
	op.Free()
	if c, ok := op.(Children); ok {
		if child := c.Child(); child != nil {
			FreeAll(child)
		}
	}
}
