package plan

import (
	"context"
	"testing"

	"github.com/orneryd/deltagraph/pkg/record"
)

// producer is a minimal Operator used only to exercise the plan skeleton:
// it yields n records from a pool, then end-of-stream.
type producer struct {
	pool      *record.Pool
	n         int
	emitted   int
	freed     bool
	resetHits int
}

func newProducer(n int) *producer {
	return &producer{pool: record.NewPool(1, record.DefaultConfig), n: n}
}

func (p *producer) Init(ctx context.Context) error { return nil }

func (p *producer) Consume(ctx context.Context) (*record.Record, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, nil
	default:
	}
	if p.emitted >= p.n {
		return nil, false, nil
	}
	r := p.pool.Get()
	r.SetScalar(0, p.emitted)
	p.emitted++
	return r, true, nil
}

func (p *producer) Reset() { p.emitted = 0; p.resetHits++ }
func (p *producer) Free()  { p.freed = true }
func (p *producer) Clone() Operator {
	return &producer{pool: record.NewPool(1, record.DefaultConfig), n: p.n}
}

func TestProducerConsumeYieldsNThenEndOfStream(t *testing.T) {
	p := newProducer(3)
	ctx := context.Background()
	count := 0
	for {
		_, ok, err := p.Consume(ctx)
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}
}

func TestResetAllAndFreeAllPropagate(t *testing.T) {
	p := newProducer(1)
	ResetAll(p)
	if p.resetHits != 1 {
		t.Fatalf("expected Reset called once, got %d", p.resetHits)
	}
	FreeAll(p)
	if !p.freed {
		t.Fatal("expected Free to be called")
	}
}

func TestCooperativeCancellationEndsStreamCleanly(t *testing.T) {
	p := newProducer(100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := p.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if ok {
		t.Fatal("expected end-of-stream immediately after cancellation")
	}
}

func TestProfiledAccumulatesSelfTime(t *testing.T) {
	p := Profile(newProducer(2))
	ctx := context.Background()
	for {
		_, ok, err := p.Consume(ctx)
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if !ok {
			break
		}
	}
	stats := p.Finalize(0)
	if stats.Records != 2 {
		t.Fatalf("expected 2 records counted, got %d", stats.Records)
	}
	if stats.Self < 0 {
		t.Fatal("self time should never go negative")
	}
}

func TestProfiledFinalizeSubtractsChildrenInclusive(t *testing.T) {
	p := Profile(newProducer(1))
	_, _, _ = p.Consume(context.Background())
	childTime := p.stats.inclTime // pretend a child reported its own inclusive time
	stats := p.Finalize(childTime)
	if stats.Self != 0 {
		t.Fatalf("expected self time to net to 0 when a child reports the same inclusive time, got %v", stats.Self)
	}
}

func TestProfiledCloneWrapsClonedChild(t *testing.T) {
	p := Profile(newProducer(5))
	clone := p.Clone().(*Profiled)
	if clone == p {
		t.Fatal("Clone should return a distinct Profiled wrapper")
	}
	inner, ok := clone.Operator.(*producer)
	if !ok {
		t.Fatalf("expected wrapped operator to still be a *producer, got %T", clone.Operator)
	}
	if inner == p.Operator {
		t.Fatal("Clone should wrap a distinct clone of the underlying operator")
	}
}
