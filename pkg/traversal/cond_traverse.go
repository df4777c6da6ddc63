package traversal

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/orneryd/deltagraph/pkg/algebra"
	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/matrix"
	"github.com/orneryd/deltagraph/pkg/plan"
	"github.com/orneryd/deltagraph/pkg/record"
	"github.com/orneryd/deltagraph/pkg/storage"
)

// Binding describes which record slots a traversal operator reads and
// writes, and which relation types it should consult when materializing
// individual edge identities from a relation matrix's boolean cell.
type Binding struct {
	SrcSlot  int
	DstSlot  int
	EdgeSlot int      // -1 if edge ids are not requested
	RelTypes []string // relation types the expression's final hop covers
}

// CondTraverse is the canonical traversal operator (spec §4.E): it expects
// an upstream producing records with SrcSlot bound to a node, batches
// sources into a frontier matrix, evaluates expr, and iterates the result
// matrix's nonzeros to bind DstSlot (and, if requested, EdgeSlot) on cloned
// records.
type CondTraverse struct {
	Upstream plan.Operator
	Expr     *algebra.Expression
	Store    *graphstore.Store
	Binding  Binding
	BatchCap int

	batch   []*record.Record
	result  *matrix.Matrix
	curRow  int
	curIter roaring.IntPeekable

	edgeQueue    []storage.EdgeID
	edgeQueueRow int
	edgeQueueDst int

	exhausted bool
}

// NewCondTraverse returns a CondTraverse ready for Init, defaulting
// BatchCap to DefaultBatchCap when unset.
func NewCondTraverse(upstream plan.Operator, expr *algebra.Expression, store *graphstore.Store, binding Binding) *CondTraverse {
	return &CondTraverse{Upstream: upstream, Expr: expr, Store: store, Binding: binding, BatchCap: DefaultBatchCap}
}

func (c *CondTraverse) Init(ctx context.Context) error {
	if c.BatchCap <= 0 {
		c.BatchCap = DefaultBatchCap
	}
	return c.Upstream.Init(ctx)
}

func (c *CondTraverse) Child() plan.Operator { return c.Upstream }

// Consume implements spec §4.E's CondTraverse.consume() loop.
func (c *CondTraverse) Consume(ctx context.Context) (*record.Record, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, false, nil
		default:
		}

		if len(c.edgeQueue) > 0 {
			eid := c.edgeQueue[0]
			c.edgeQueue = c.edgeQueue[1:]
			out := c.batch[c.edgeQueueRow].Clone()
			out.SetNode(c.Binding.DstSlot, storage.NodeID(c.edgeQueueDst))
			out.SetEdge(c.Binding.EdgeSlot, eid)
			return out, true, nil
		}

		if c.curIter != nil && c.curIter.HasNext() {
			col := int(c.curIter.Next())
			rec, ok, err := c.bindDestination(c.curRow, col)
			if err != nil {
				return nil, false, err
			}
			if ok {
				return rec, true, nil
			}
			continue
		}

		if c.result != nil && c.curRow+1 < len(c.batch) {
			c.curRow++
			c.curIter = c.result.RowIterator(c.curRow)
			continue
		}

		if c.exhausted {
			return nil, false, nil
		}

		batch, f, err := pullBatch(ctx, c.Upstream, c.Binding.SrcSlot, c.Store.Capacity(), c.BatchCap)
		if err != nil {
			return nil, false, err
		}
		if len(batch) == 0 {
			c.exhausted = true
			return nil, false, nil
		}

		c.batch = batch
		c.result = matrix.New(len(batch), c.Store.Capacity())
		if err := c.Expr.Evaluate(f, c.result); err != nil {
			return nil, false, err
		}
		if len(batch) < c.BatchCap {
			// Upstream ran dry mid-pull; nothing left to pull next time.
			c.exhausted = true
		}
		c.curRow = 0
		c.curIter = c.result.RowIterator(0)
	}
}

// bindDestination produces the downstream record for cell (row, col),
// consulting the side table for edge identities when the binding requests
// them. If an edge binding is requested but no edge exists for any
// requested relation type (shouldn't happen given the cell came from those
// types' matrices, but defensive against stale reads), ok is false and the
// caller should move on to the next nonzero.
func (c *CondTraverse) bindDestination(row, col int) (*record.Record, bool, error) {
	src := c.batch[row]
	if c.Binding.EdgeSlot < 0 {
		out := src.Clone()
		out.SetNode(c.Binding.DstSlot, storage.NodeID(col))
		return out, true, nil
	}

	srcVal := src.Get(c.Binding.SrcSlot)
	if srcVal.Kind != record.Node {
		return nil, false, fmt.Errorf("traversal: source slot %d not bound to a node", c.Binding.SrcSlot)
	}

	var ids []storage.EdgeID
	for _, t := range c.Binding.RelTypes {
		found, err := c.Store.EdgesBetween(srcVal.NodeID, storage.NodeID(col), t)
		if err != nil {
			return nil, false, err
		}
		ids = append(ids, found...)
	}
	if len(ids) == 0 {
		return nil, false, nil
	}

	out := src.Clone()
	out.SetNode(c.Binding.DstSlot, storage.NodeID(col))
	out.SetEdge(c.Binding.EdgeSlot, ids[0])
	if len(ids) > 1 {
		c.edgeQueue = ids[1:]
		c.edgeQueueRow = row
		c.edgeQueueDst = col
	}
	return out, true, nil
}

func (c *CondTraverse) Reset() {
	c.batch = nil
	c.result = nil
	c.curRow = 0
	c.curIter = nil
	c.edgeQueue = nil
	c.exhausted = false
	c.Upstream.Reset()
}

func (c *CondTraverse) Free() {
	c.batch = nil
	c.result = nil
	c.curIter = nil
	c.edgeQueue = nil
	c.Upstream.Free()
}

func (c *CondTraverse) Clone() plan.Operator {
	return &CondTraverse{
		Upstream: c.Upstream.Clone(),
		Expr:     c.Expr,
		Store:    c.Store,
		Binding:  c.Binding,
		BatchCap: c.BatchCap,
	}
}
