package traversal

import (
	"context"
	"fmt"

	"github.com/orneryd/deltagraph/pkg/algebra"
	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/matrix"
	"github.com/orneryd/deltagraph/pkg/plan"
	"github.com/orneryd/deltagraph/pkg/record"
	"github.com/orneryd/deltagraph/pkg/storage"
)

// ExpandInto differs from CondTraverse only in that the destination node is
// already bound in the record: after evaluating the expression it checks
// the single cell (row, known_dst) and accepts or rejects the record
// (spec §4.E).
type ExpandInto struct {
	Upstream plan.Operator
	Expr     *algebra.Expression
	Store    *graphstore.Store
	Binding  Binding
	BatchCap int

	batch  []*record.Record
	result *matrix.Matrix
	cursor int

	edgeQueue    []storage.EdgeID
	edgeQueueRow int

	exhausted bool
}

// NewExpandInto returns an ExpandInto ready for Init.
func NewExpandInto(upstream plan.Operator, expr *algebra.Expression, store *graphstore.Store, binding Binding) *ExpandInto {
	return &ExpandInto{Upstream: upstream, Expr: expr, Store: store, Binding: binding, BatchCap: DefaultBatchCap}
}

func (e *ExpandInto) Init(ctx context.Context) error {
	if e.BatchCap <= 0 {
		e.BatchCap = DefaultBatchCap
	}
	return e.Upstream.Init(ctx)
}

func (e *ExpandInto) Child() plan.Operator { return e.Upstream }

func (e *ExpandInto) Consume(ctx context.Context) (*record.Record, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, false, nil
		default:
		}

		if len(e.edgeQueue) > 0 {
			eid := e.edgeQueue[0]
			e.edgeQueue = e.edgeQueue[1:]
			out := e.batch[e.edgeQueueRow].Clone()
			out.SetEdge(e.Binding.EdgeSlot, eid)
			return out, true, nil
		}

		if e.result != nil {
			for e.cursor < len(e.batch) {
				row := e.cursor
				e.cursor++
				rec, ok, err := e.checkRow(row)
				if err != nil {
					return nil, false, err
				}
				if ok {
					return rec, true, nil
				}
			}
			e.result = nil
		}

		if e.exhausted {
			return nil, false, nil
		}

		batch, f, err := pullBatch(ctx, e.Upstream, e.Binding.SrcSlot, e.Store.Capacity(), e.BatchCap)
		if err != nil {
			return nil, false, err
		}
		if len(batch) == 0 {
			e.exhausted = true
			return nil, false, nil
		}

		e.batch = batch
		e.result = matrix.New(len(batch), e.Store.Capacity())
		if err := e.Expr.Evaluate(f, e.result); err != nil {
			return nil, false, err
		}
		if len(batch) < e.BatchCap {
			e.exhausted = true
		}
		e.cursor = 0
	}
}

func (e *ExpandInto) checkRow(row int) (*record.Record, bool, error) {
	rec := e.batch[row]
	dstVal := rec.Get(e.Binding.DstSlot)
	if dstVal.Kind != record.Node {
		return nil, false, fmt.Errorf("traversal: dest slot %d not bound to a node", e.Binding.DstSlot)
	}
	set, err := e.result.Extract(row, int(dstVal.NodeID))
	if err != nil {
		return nil, false, err
	}
	if !set {
		return nil, false, nil
	}

	if e.Binding.EdgeSlot < 0 {
		return rec.Clone(), true, nil
	}

	srcVal := rec.Get(e.Binding.SrcSlot)
	var ids []storage.EdgeID
	for _, t := range e.Binding.RelTypes {
		found, err := e.Store.EdgesBetween(srcVal.NodeID, dstVal.NodeID, t)
		if err != nil {
			return nil, false, err
		}
		ids = append(ids, found...)
	}
	if len(ids) == 0 {
		return nil, false, nil
	}
	out := rec.Clone()
	out.SetEdge(e.Binding.EdgeSlot, ids[0])
	if len(ids) > 1 {
		e.edgeQueue = ids[1:]
		e.edgeQueueRow = row
	}
	return out, true, nil
}

func (e *ExpandInto) Reset() {
	e.batch = nil
	e.result = nil
	e.cursor = 0
	e.edgeQueue = nil
	e.exhausted = false
	e.Upstream.Reset()
}

func (e *ExpandInto) Free() {
	e.batch = nil
	e.result = nil
	e.edgeQueue = nil
	e.Upstream.Free()
}

func (e *ExpandInto) Clone() plan.Operator {
	return &ExpandInto{
		Upstream: e.Upstream.Clone(),
		Expr:     e.Expr,
		Store:    e.Store,
		Binding:  e.Binding,
		BatchCap: e.BatchCap,
	}
}
