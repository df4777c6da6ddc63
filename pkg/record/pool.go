package record

import "sync"

// Config mirrors the Enabled switch of the teacher's pool.PoolConfig; it
// carries no size cap. It configures one fixed-width Record pool per plan
// segment instead of a set of global untyped-slice pools.
type Config struct {
	// Enabled controls whether Get/Put actually pool; when false, Get
	// always allocates and Put is a no-op, useful for tests that want to
	// inspect records without aliasing pooled state.
	Enabled bool
}

// DefaultConfig matches the teacher's default (pooling on).
var DefaultConfig = Config{Enabled: true}

// Pool leases and reclaims Records of a single fixed width, one per
// execution-plan segment (spec §4.F: "Record pool (one per plan segment,
// accessed only by the worker running that segment)").
type Pool struct {
	width  int
	cfg    Config
	sp     sync.Pool
	leased int
}

// NewPool returns a pool of width-wide Records.
func NewPool(width int, cfg Config) *Pool {
	p := &Pool{width: width, cfg: cfg}
	p.sp.New = func() any { return New(width) }
	return p
}

// Get leases a Record, all slots Unresolved.
func (p *Pool) Get() *Record {
	if !p.cfg.Enabled {
		return New(p.width)
	}
	p.leased++
	return p.sp.Get().(*Record)
}

// Put returns rec to the pool for reuse. rec must have been leased from
// this pool (same width) — records are owned by the execution plan that
// created them (spec §3) and must not cross pools.
func (p *Pool) Put(rec *Record) {
	if !p.cfg.Enabled || rec == nil {
		return
	}
	if rec.Width() != p.width {
		return
	}
	rec.reset()
	p.leased--
	p.sp.Put(rec)
}

// Width reports the fixed slot count of Records this pool leases.
func (p *Pool) Width() int { return p.width }

// Outstanding reports how many Records are currently leased and not yet
// returned. Only tests call it.
func (p *Pool) Outstanding() int { return p.leased }
