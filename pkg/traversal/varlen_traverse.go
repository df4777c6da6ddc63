package traversal

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/orneryd/deltagraph/pkg/algebra"
	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/matrix"
	"github.com/orneryd/deltagraph/pkg/plan"
	"github.com/orneryd/deltagraph/pkg/record"
	"github.com/orneryd/deltagraph/pkg/storage"
)

// hopUnion computes ⋃_{h=minHops..maxHops} F·exprʰ (spec property P6),
// repeating the same one-hop step expr models but with an outer loop
// walking hop counts and unioning frontiers. Cycle avoidance is a per-row
// visited bitmap: a node already reached by an earlier, shorter hop from a
// given source row is excluded from that row's frontier at later hops, so
// a cycle in the underlying relation never causes the same destination to
// be re-expanded (spec §4.E).
func hopUnion(expr *algebra.Expression, f *matrix.Matrix, minHops, maxHops int) (*matrix.Matrix, error) {
	rows, cols := f.NRows(), f.NCols()

	visited := matrix.New(rows, cols)
	if err := matrix.Copy(visited, f); err != nil {
		return nil, err
	}
	result := matrix.New(rows, cols)
	cur := f

	for h := 1; h <= maxHops; h++ {
		next := matrix.New(rows, cols)
		if err := expr.Evaluate(cur, next); err != nil {
			return nil, err
		}
		fresh := matrix.New(rows, cols)
		if err := matrix.MaskComplementApply(fresh, next, visited); err != nil {
			return nil, err
		}
		if fresh.NVals() == 0 {
			break
		}
		if h >= minHops {
			if err := matrix.EWiseAdd(result, nil, matrix.Descriptor{}, result, fresh); err != nil {
				return nil, err
			}
		}
		if err := matrix.EWiseAdd(visited, nil, matrix.Descriptor{}, visited, fresh); err != nil {
			return nil, err
		}
		cur = fresh
	}
	return result, nil
}

// VarLenTraverse repeats CondTraverse's per-batch step but with an outer
// loop over hop counts, unioning frontiers (spec §4.E). It binds only the
// destination node per matched path; intermediate nodes and per-hop edge
// identities are not materialized, since neither the spec's public contract
// nor its testable properties (P6, S6) require recovering a full path —
// only the reachable destination set at each hop count.
type VarLenTraverse struct {
	Upstream       plan.Operator
	Expr           *algebra.Expression
	Store          *graphstore.Store
	Binding        Binding
	MinHops        int
	MaxHops        int
	BatchCap       int

	batch   []*record.Record
	result  *matrix.Matrix
	curRow  int
	curIter roaring.IntPeekable

	exhausted bool
}

// NewVarLenTraverse returns a VarLenTraverse ready for Init.
func NewVarLenTraverse(upstream plan.Operator, expr *algebra.Expression, store *graphstore.Store, binding Binding, minHops, maxHops int) *VarLenTraverse {
	return &VarLenTraverse{
		Upstream: upstream, Expr: expr, Store: store, Binding: binding,
		MinHops: minHops, MaxHops: maxHops, BatchCap: DefaultBatchCap,
	}
}

func (v *VarLenTraverse) Init(ctx context.Context) error {
	if v.BatchCap <= 0 {
		v.BatchCap = DefaultBatchCap
	}
	return v.Upstream.Init(ctx)
}

func (v *VarLenTraverse) Child() plan.Operator { return v.Upstream }

func (v *VarLenTraverse) Consume(ctx context.Context) (*record.Record, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, false, nil
		default:
		}

		if v.curIter != nil && v.curIter.HasNext() {
			col := int(v.curIter.Next())
			out := v.batch[v.curRow].Clone()
			out.SetNode(v.Binding.DstSlot, storage.NodeID(col))
			return out, true, nil
		}

		if v.result != nil && v.curRow+1 < len(v.batch) {
			v.curRow++
			v.curIter = v.result.RowIterator(v.curRow)
			continue
		}

		if v.exhausted {
			return nil, false, nil
		}

		batch, f, err := pullBatch(ctx, v.Upstream, v.Binding.SrcSlot, v.Store.Capacity(), v.BatchCap)
		if err != nil {
			return nil, false, err
		}
		if len(batch) == 0 {
			v.exhausted = true
			return nil, false, nil
		}

		result, err := hopUnion(v.Expr, f, v.MinHops, v.MaxHops)
		if err != nil {
			return nil, false, err
		}
		v.batch = batch
		v.result = result
		if len(batch) < v.BatchCap {
			v.exhausted = true
		}
		v.curRow = 0
		v.curIter = v.result.RowIterator(0)
	}
}

func (v *VarLenTraverse) Reset() {
	v.batch = nil
	v.result = nil
	v.curRow = 0
	v.curIter = nil
	v.exhausted = false
	v.Upstream.Reset()
}

func (v *VarLenTraverse) Free() {
	v.batch = nil
	v.result = nil
	v.curIter = nil
	v.Upstream.Free()
}

func (v *VarLenTraverse) Clone() plan.Operator {
	return &VarLenTraverse{
		Upstream: v.Upstream.Clone(),
		Expr:     v.Expr,
		Store:    v.Store,
		Binding:  v.Binding,
		MinHops:  v.MinHops,
		MaxHops:  v.MaxHops,
		BatchCap: v.BatchCap,
	}
}
