package cypher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/orneryd/deltagraph/pkg/algebra"
)

var (
	nodeSegmentRe = regexp.MustCompile(`\(([^)]*)\)`)
	varLengthRe   = regexp.MustCompile(`\*(\d*)(?:\.\.(\d+))?`)
)

// ErrMalformedPath is returned when a pattern literal isn't a valid
// alternating node/relationship chain.
var ErrMalformedPath = fmt.Errorf("cypher: malformed path pattern")

// ParsePath parses a pattern literal like "(a:X)-[r:TYPE]->(b:Y)" into its
// node and relationship segments. Grounded on the teacher's
// parseNodePattern/parseRelationshipPattern (pattern_parser.go, traversal.go),
// rebuilt to walk an arbitrary-length chain rather than a single hop.
func ParsePath(pattern string) (*ParsedPath, error) {
	pattern = strings.TrimSpace(pattern)
	nodeMatches := nodeSegmentRe.FindAllStringSubmatchIndex(pattern, -1)
	if len(nodeMatches) == 0 {
		return nil, fmt.Errorf("%w: no node segments in %q", ErrMalformedPath, pattern)
	}

	path := &ParsedPath{}
	for _, m := range nodeMatches {
		inner := pattern[m[2]:m[3]]
		path.Nodes = append(path.Nodes, parseNodeSegment(inner))
	}

	for i := 0; i < len(nodeMatches)-1; i++ {
		start := nodeMatches[i][1]
		end := nodeMatches[i+1][0]
		relStr := strings.TrimSpace(pattern[start:end])
		rel, err := parseRelSegment(relStr)
		if err != nil {
			return nil, err
		}
		path.Rels = append(path.Rels, *rel)
	}

	return path, nil
}

// parseNodeSegment parses "a:Label1:Label2" (as found inside the
// parentheses of a node pattern) into variable + labels.
func parseNodeSegment(inner string) NodeSegment {
	seg := NodeSegment{}
	parts := strings.Split(strings.TrimSpace(inner), ":")
	if parts[0] != "" {
		seg.Variable = strings.TrimSpace(parts[0])
	}
	for _, l := range parts[1:] {
		if l = strings.TrimSpace(l); l != "" {
			seg.Labels = append(seg.Labels, l)
		}
	}
	return seg
}

// parseRelSegment parses a relationship segment like "-[r:TYPE|OTHER*1..3]->"
// (grounded on the teacher's parseRelationshipPattern).
func parseRelSegment(pattern string) (*RelSegment, error) {
	seg := &RelSegment{Direction: algebra.Both, MinHops: 1, MaxHops: 1}

	if strings.HasPrefix(pattern, "<-") {
		seg.Direction = algebra.Incoming
		pattern = pattern[2:]
	} else if strings.HasPrefix(pattern, "-") {
		pattern = pattern[1:]
	} else {
		return nil, fmt.Errorf("%w: relationship segment %q missing leading dash", ErrMalformedPath, pattern)
	}

	if strings.HasSuffix(pattern, "->") {
		seg.Direction = algebra.Outgoing
		pattern = pattern[:len(pattern)-2]
	} else if strings.HasSuffix(pattern, "-") {
		pattern = pattern[:len(pattern)-1]
	} else {
		return nil, fmt.Errorf("%w: relationship segment %q missing trailing dash", ErrMalformedPath, pattern)
	}

	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return seg, nil
	}
	if !strings.HasPrefix(pattern, "[") || !strings.HasSuffix(pattern, "]") {
		return nil, fmt.Errorf("%w: relationship segment body %q must be bracketed", ErrMalformedPath, pattern)
	}
	inner := pattern[1 : len(pattern)-1]

	if strings.Contains(inner, "*") {
		if m := varLengthRe.FindStringSubmatch(inner); m != nil {
			if m[1] != "" {
				seg.MinHops, _ = strconv.Atoi(m[1])
			} else {
				seg.MinHops = 1
			}
			if m[2] != "" {
				seg.MaxHops, _ = strconv.Atoi(m[2])
			} else if m[1] != "" {
				seg.MaxHops = seg.MinHops
			} else {
				seg.MaxHops = 10
			}
		}
		inner = varLengthRe.ReplaceAllString(inner, "")
	}

	if colon := strings.Index(inner, ":"); colon >= 0 {
		seg.Variable = strings.TrimSpace(inner[:colon])
		typesPart := inner[colon+1:]
		for _, t := range strings.Split(typesPart, "|") {
			if t = strings.TrimSpace(t); t != "" {
				seg.Types = append(seg.Types, t)
			}
		}
	} else if v := strings.TrimSpace(inner); v != "" {
		seg.Variable = v
	}

	return seg, nil
}
