package session

import (
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/efreitasn/exchangesim/internal/queue"
	"github.com/efreitasn/exchangesim/internal/sink"
)

func testSymbols() domain.SymbolTable {
	return domain.SymbolTable{"X": 100, "Y": 20, "Z": 3}
}

func TestGenerator_SameSeedSameOrders(t *testing.T) {
	a := NewGenerator(0, 50, testSymbols(), 0, rand.New(rand.NewSource(7)))
	b := NewGenerator(0, 50, testSymbols(), 0, rand.New(rand.NewSource(7)))

	for i := 0; i < 50; i++ {
		oa, err := a.Next(i)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		ob, err := b.Next(i)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if oa.ID != ob.ID || oa.Side != ob.Side || oa.Symbol != ob.Symbol ||
			oa.Price != ob.Price || oa.Quantity != ob.Quantity {
			t.Fatalf("order %d differs: %s vs %s", i, oa, ob)
		}
	}
}

func TestGenerator_OrderBounds(t *testing.T) {
	table := testSymbols()
	g := NewGenerator(3, 500, table, 0, rand.New(rand.NewSource(1)))

	for i := 0; i < 500; i++ {
		o, err := g.Next(i)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if o.Seq != uint64(i) {
			t.Fatalf("seq = %d, want %d", o.Seq, i)
		}
		if o.Side != domain.SideBuy && o.Side != domain.SideSell {
			t.Fatalf("invalid side %q", o.Side)
		}
		base, err := table.BasePrice(o.Symbol)
		if err != nil {
			t.Fatalf("unknown symbol %q", o.Symbol)
		}
		if o.Quantity < 1 || o.Quantity > 10 {
			t.Fatalf("quantity %d out of [1,10]", o.Quantity)
		}
		if o.Price < 1 {
			t.Fatalf("price %d below 1", o.Price)
		}
		switch o.Side {
		case domain.SideBuy:
			if o.Price < base || o.Price > base+base*5/100+1 {
				t.Fatalf("buy price %d outside [%d, base*1.05]", o.Price, base)
			}
		case domain.SideSell:
			if o.Price > base || o.Price < base-base*5/100-1 {
				t.Fatalf("sell price %d outside [base*0.95, %d]", o.Price, base)
			}
		}
	}
}

func TestGenerator_OrderIDs(t *testing.T) {
	g := NewGenerator(2, 3, testSymbols(), 0, rand.New(rand.NewSource(1)))
	o, err := g.Next(4)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if o.ID != "P2-O4" {
		t.Errorf("ID = %q, want P2-O4", o.ID)
	}
}

func TestGenerator_RunPushesAll(t *testing.T) {
	q := queue.New()
	mem := sink.NewMemory(0)
	var generated atomic.Int64

	g := NewGenerator(0, 12, testSymbols(), 0, rand.New(rand.NewSource(1)))
	n, err := g.Run(make(chan struct{}), q, mem, &generated)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n != 12 || q.Len() != 12 || generated.Load() != 12 {
		t.Fatalf("emitted=%d queued=%d generated=%d, want 12 each", n, q.Len(), generated.Load())
	}
	lines := mem.Lines()
	if len(lines) != 12 {
		t.Fatalf("len(lines) = %d, want 12", len(lines))
	}
	for _, l := range lines {
		if sink.Classify(l) != sink.KindProducer {
			t.Errorf("line %q not classified as producer", l)
		}
	}

	first, _ := q.TryPop()
	if first.ID != "P0-O0" {
		t.Errorf("first queued = %s, want P0-O0", first.ID)
	}
}

func TestGenerator_RunStopsOnSignal(t *testing.T) {
	q := queue.New()
	stop := make(chan struct{})
	close(stop)

	g := NewGenerator(0, 10, testSymbols(), 0, rand.New(rand.NewSource(1)))
	if n, err := g.Run(stop, q, sink.Discard, nil); n != 0 || err != nil {
		t.Errorf("Run after stop = %d, %v; want 0, nil", n, err)
	}
	if !q.Empty() {
		t.Errorf("queue len = %d, want 0", q.Len())
	}
}

func TestGenerator_UnknownSymbol(t *testing.T) {
	table := domain.SymbolTable{"X": 100, "Y": 20}
	g := NewGenerator(0, 50, table, 0, rand.New(rand.NewSource(1)))
	delete(table, "Y")

	q := queue.New()
	n, err := g.Run(make(chan struct{}), q, sink.Discard, nil)
	if !errors.Is(err, domain.ErrUnknownSymbol) {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
	if n >= 50 || q.Len() != n {
		t.Errorf("emitted = %d queued = %d, want fewer than 50 and equal", n, q.Len())
	}
	for _, o := range q.Drain() {
		if o.Symbol != "X" {
			t.Errorf("queued order for removed symbol: %s", o)
		}
	}
}
