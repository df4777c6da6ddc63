package plan

import (
	"context"
	"time"

	"github.com/orneryd/deltagraph/pkg/record"
)

// Stats accumulates one operator's self time and record count across a run.
type Stats struct {
	Records  int
	Self     time.Duration
	inclTime time.Duration
}

// Profiled wraps an operator with a timing/counter shim: each Consume call
// is timed, and on Finalize the wrapped child operators' inclusive time is
// subtracted from this operator's own total so Stats.Self reflects work
// done by this operator alone, not its subtree (spec §4.F).
type Profiled struct {
	Operator
	stats Stats
}

// Profile wraps op for profiling. If op has children, wrap them too (via
// Clone-time composition by the caller) so each level's Self excludes the
// levels below it.
func Profile(op Operator) *Profiled {
	return &Profiled{Operator: op}
}

// Consume times the wrapped operator's Consume call and counts produced
// records.
func (p *Profiled) Consume(ctx context.Context) (*record.Record, bool, error) {
	start := time.Now()
	rec, ok, err := p.Operator.Consume(ctx)
	elapsed := time.Since(start)
	p.stats.inclTime += elapsed
	if ok {
		p.stats.Records++
	}
	return rec, ok, err
}

// Finalize computes Self by subtracting the total inclusive time reported
// by any profiled children from this operator's own inclusive time.
func (p *Profiled) Finalize(childrenInclusive time.Duration) Stats {
	self := p.stats.inclTime - childrenInclusive
	if self < 0 {
		self = 0
	}
	p.stats.Self = self
	return p.stats
}

// Stats returns a snapshot of the accumulated counters without finalizing.
func (p *Profiled) Stats() Stats { return p.stats }

// Clone wraps a clone of the underlying operator in a fresh Profiled shim,
// so profiling composes correctly with the template/execution clone split.
func (p *Profiled) Clone() Operator {
	return &Profiled{Operator: p.Operator.Clone()}
}
