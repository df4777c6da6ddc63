// Package traversal implements the traversal operators (spec §4.E):
// CondTraverse, ExpandInto, and VarLenTraverse, each a plan.Operator that
// batches bound source nodes into a frontier matrix, evaluates an
// algebraic expression against it, and walks the result matrix's nonzeros
// to produce downstream records.
//
// Grounded on the teacher's pkg/cypher/traversal.go TraversalContext
// (visited-set-by-string idea), rebuilt around matrix.Matrix/algebra.Expression
// and a per-row roaring-bitmap visited set instead of a map[string]bool.
package traversal

import (
	"context"
	"fmt"

	"github.com/orneryd/deltagraph/pkg/matrix"
	"github.com/orneryd/deltagraph/pkg/plan"
	"github.com/orneryd/deltagraph/pkg/record"
)

// DefaultBatchCap is the source-row batch size spec §4.E's CondTraverse
// example uses ("up to a batch cap, e.g. 16").
const DefaultBatchCap = 16

// pullBatch drains upstream into up to batchCap records, binding a frontier
// matrix F from the node held in each record's srcSlot (spec §4.E step 2).
// An empty, nil batch (with nil err) means upstream is exhausted.
func pullBatch(ctx context.Context, upstream plan.Operator, srcSlot, cols, batchCap int) ([]*record.Record, *matrix.Matrix, error) {
	batch := make([]*record.Record, 0, batchCap)
	for len(batch) < batchCap {
		rec, ok, err := upstream.Consume(ctx)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		batch = append(batch, rec)
	}
	if len(batch) == 0 {
		return nil, nil, nil
	}

	f := matrix.New(len(batch), cols)
	for k, rec := range batch {
		v := rec.Get(srcSlot)
		if v.Kind != record.Node {
			return nil, nil, fmt.Errorf("traversal: slot %d is not bound to a node (kind=%v)", srcSlot, v.Kind)
		}
		if err := f.SetElement(k, int(v.NodeID)); err != nil {
			return nil, nil, err
		}
	}
	return batch, f, nil
}
