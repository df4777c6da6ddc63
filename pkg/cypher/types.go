// Package cypher parses path-pattern literals ("(a:Label)-[r:TYPE]->(b:Label)")
// into the shape a planner would hand the algebra/traversal layers (spec §6's
// Query AST consumed contract), and compiles them directly into a
// plan.Operator chain.
//
// Grounded on the teacher's pkg/cypher/pattern_parser.go and
// parseRelationshipPattern in traversal.go for the arrow/bracket parsing
// style, trimmed to path-pattern parsing only — WHERE/WITH/UNWIND/CALL
// clause handling is out of scope (spec's Query AST is consumed, not
// produced, here).
package cypher

import "github.com/orneryd/deltagraph/pkg/algebra"

// NodeSegment is one parenthesized node pattern along a path, e.g. the
// "a:Label" in "(a:Label)".
type NodeSegment struct {
	Variable string
	Labels   []string
}

// RelSegment is one "-[...]-"-style relationship pattern along a path.
type RelSegment struct {
	Variable  string
	Types     []string
	Direction algebra.Direction
	MinHops   int
	MaxHops   int
}

// FixedLength reports whether the segment is exactly one hop (MinHops and
// MaxHops both 1): a segment written without "*", or with "*1" or "*1..1".
func (r RelSegment) FixedLength() bool {
	return r.MinHops == 1 && r.MaxHops == 1
}

// ParsedPath is a fully parsed path pattern: an alternating chain of node
// and relationship segments, len(Nodes) == len(Rels)+1.
type ParsedPath struct {
	Nodes []NodeSegment
	Rels  []RelSegment
}
