package traversal

import (
	"context"

	"github.com/orneryd/deltagraph/pkg/plan"
	"github.com/orneryd/deltagraph/pkg/record"
	"github.com/orneryd/deltagraph/pkg/storage"
)

// NodeScan is the leaf operator a compiled pattern starts from: it emits one
// record per id in IDs, bound at Slot, and nothing downstream of it. A
// labeled pattern start resolves IDs via graphstore.Store.NodesWithLabel; an
// anonymous pattern start resolves them via AllNodeIDs.
type NodeScan struct {
	IDs  []storage.NodeID
	Slot int

	pool  *record.Pool
	index int
}

// NewNodeScan returns a NodeScan ready for Init. width is the record width
// every downstream operator in the compiled chain expects.
func NewNodeScan(ids []storage.NodeID, slot, width int) *NodeScan {
	return &NodeScan{IDs: ids, Slot: slot, pool: record.NewPool(width, record.DefaultConfig)}
}

func (n *NodeScan) Init(ctx context.Context) error { return nil }

func (n *NodeScan) Consume(ctx context.Context) (*record.Record, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, nil
	default:
	}
	if n.index >= len(n.IDs) {
		return nil, false, nil
	}
	r := n.pool.Get()
	r.SetNode(n.Slot, n.IDs[n.index])
	n.index++
	return r, true, nil
}

func (n *NodeScan) Reset() { n.index = 0 }
func (n *NodeScan) Free()  {}
func (n *NodeScan) Clone() plan.Operator {
	return &NodeScan{IDs: n.IDs, Slot: n.Slot, pool: record.NewPool(n.pool.Width(), record.DefaultConfig)}
}
