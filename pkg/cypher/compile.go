package cypher

import (
	"fmt"

	"github.com/orneryd/deltagraph/pkg/algebra"
	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/plan"
	"github.com/orneryd/deltagraph/pkg/storage"
	"github.com/orneryd/deltagraph/pkg/traversal"
)

// Compiled is the result of compiling a path pattern: a plan.Operator ready
// for plan.Operator.Init, plus the record-width and per-variable slot
// assignments the caller needs to read results back out.
type Compiled struct {
	Root     plan.Operator
	Width    int
	NodeSlot map[string]int // variable name -> record slot, unnamed vars omitted
	EdgeSlot map[string]int
}

// Compile parses pattern and wires together a NodeScan start operator and a
// CondTraverse/VarLenTraverse chain evaluating it against store, one
// plan.Operator per relationship segment (spec §6: this is the planner's
// job in a complete system; here it is folded directly into compilation
// rather than an intermediate logical-plan representation, since the
// pattern language this package accepts has no WHERE/WITH/UNWIND/CALL
// clauses that would require one).
//
// Variable-length relationship segments are evaluated hop-by-hop as a
// whole (traversal.VarLenTraverse); any label on that segment's destination
// node is applied as a separate post-filter step rather than folded into
// each hop, since folding it in would incorrectly reject intermediate hops
// that haven't reached the destination label yet. Edge identities are only
// bound for fixed-length (single-hop) relationship segments that both name
// a variable and at least one type — a variable-length or untyped segment's
// EdgeSlot is left unrequested.
func Compile(pattern string, store *graphstore.Store) (*Compiled, error) {
	parsed, err := ParsePath(pattern)
	if err != nil {
		return nil, err
	}

	width := len(parsed.Nodes)
	for _, r := range parsed.Rels {
		if r.Variable != "" {
			width++
		}
	}

	c := &Compiled{Width: width, NodeSlot: map[string]int{}, EdgeSlot: map[string]int{}}
	nextEdgeSlot := len(parsed.Nodes)

	start := parsed.Nodes[0]
	var ids []storage.NodeID
	if len(start.Labels) > 0 {
		ids = store.NodesWithLabel(start.Labels[0])
	} else {
		ids = store.AllNodeIDs()
	}
	cur := plan.Operator(traversal.NewNodeScan(ids, 0, width))
	if start.Variable != "" {
		c.NodeSlot[start.Variable] = 0
	}

	for i, rel := range parsed.Rels {
		srcSlot, dstSlot := i, i+1
		dst := parsed.Nodes[dstSlot]

		edgeSlot := -1
		if rel.Variable != "" && len(rel.Types) > 0 {
			edgeSlot = nextEdgeSlot
			nextEdgeSlot++
			c.EdgeSlot[rel.Variable] = edgeSlot
		}
		if dst.Variable != "" {
			c.NodeSlot[dst.Variable] = dstSlot
		}

		if rel.FixedLength() {
			path := algebra.PathPattern{
				Nodes: []algebra.NodePattern{{}, {Labels: dst.Labels}},
				Edges: []algebra.EdgePattern{{Types: rel.Types, Direction: rel.Direction}},
			}
			expr, err := algebra.Build(path, store, algebra.BuildOptions{DropLeadingLabel: true})
			if err != nil {
				return nil, fmt.Errorf("cypher: compiling hop %d: %w", i, err)
			}
			cur = traversal.NewCondTraverse(cur, expr, store, traversal.Binding{
				SrcSlot: srcSlot, DstSlot: dstSlot, EdgeSlot: edgeSlot, RelTypes: rel.Types,
			})
			continue
		}

		hopPath := algebra.PathPattern{
			Nodes: []algebra.NodePattern{{}, {}},
			Edges: []algebra.EdgePattern{{Types: rel.Types, Direction: rel.Direction}},
		}
		hopExpr, err := algebra.Build(hopPath, store, algebra.BuildOptions{DropLeadingLabel: true})
		if err != nil {
			return nil, fmt.Errorf("cypher: compiling variable-length hop %d: %w", i, err)
		}
		vl := traversal.NewVarLenTraverse(cur, hopExpr, store, traversal.Binding{SrcSlot: srcSlot, DstSlot: dstSlot}, rel.MinHops, rel.MaxHops)
		cur = vl

		if len(dst.Labels) > 0 {
			labelPath := algebra.PathPattern{Nodes: []algebra.NodePattern{{Labels: dst.Labels}}}
			labelExpr, err := algebra.Build(labelPath, store, algebra.BuildOptions{})
			if err != nil {
				return nil, fmt.Errorf("cypher: compiling post-filter for hop %d: %w", i, err)
			}
			cur = traversal.NewExpandInto(cur, labelExpr, store, traversal.Binding{SrcSlot: dstSlot, DstSlot: dstSlot, EdgeSlot: -1})
		}
	}

	c.Root = cur
	return c, nil
}
