package session

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/efreitasn/exchangesim/internal/queue"
	"github.com/efreitasn/exchangesim/internal/sink"
)

// maxDeviation bounds how far a generated price strays from the base price.
var maxDeviation = decimal.NewFromFloat(0.05)

// Generator synthesizes random limit orders. It is not safe for concurrent
// use; each session runs a single generator.
type Generator struct {
	id      int
	total   int
	table   domain.SymbolTable
	symbols []string
	jitter  time.Duration
	rng     *rand.Rand
	now     func() time.Time
}

// NewGenerator creates generator id that will emit total orders drawn over
// table, pausing up to jitter between orders.
func NewGenerator(id, total int, table domain.SymbolTable, jitter time.Duration, rng *rand.Rand) *Generator {
	return &Generator{
		id:      id,
		total:   total,
		table:   table,
		symbols: table.Symbols(),
		jitter:  jitter,
		rng:     rng,
		now:     time.Now,
	}
}

// Next builds the i-th order: a uniform symbol and side, a price up to 5%
// above base for buys or below base for sells (truncated), and a quantity
// in [1,10]. It fails with domain.ErrUnknownSymbol when the drawn symbol
// has been removed from the table since the generator was built.
func (g *Generator) Next(i int) (*domain.Order, error) {
	side := domain.SideBuy
	if g.rng.Intn(2) == 1 {
		side = domain.SideSell
	}
	symbol := g.symbols[g.rng.Intn(len(g.symbols))]
	base, err := g.table.BasePrice(symbol)
	if err != nil {
		return nil, err
	}

	shift := decimal.NewFromFloat(g.rng.Float64()).Mul(maxDeviation)
	factor := decimal.NewFromInt(1)
	if side == domain.SideBuy {
		factor = factor.Add(shift)
	} else {
		factor = factor.Sub(shift)
	}
	price := decimal.NewFromInt(base).Mul(factor).IntPart()
	if price < 1 {
		price = 1
	}

	return &domain.Order{
		ID:        fmt.Sprintf("P%d-O%d", g.id, i),
		Seq:       uint64(i),
		Side:      side,
		Symbol:    symbol,
		Price:     price,
		Quantity:  int64(g.rng.Intn(10) + 1),
		CreatedAt: g.now(),
	}, nil
}

// Run pushes up to total orders onto q, checking stop before each one.
// It returns the number of orders emitted and stops at the first order it
// cannot build.
func (g *Generator) Run(stop <-chan struct{}, q *queue.OrderQueue, out sink.LogSink, generated *atomic.Int64) (int, error) {
	emitted := 0
	for i := 0; i < g.total; i++ {
		if stopped(stop) {
			break
		}
		o, err := g.Next(i)
		if err != nil {
			return emitted, fmt.Errorf("generating order %d: %w", i, err)
		}
		// Format before pushing: a worker may start filling o right away.
		line := fmt.Sprintf("[PROD %d] -> New order generated: %s", g.id, o)
		q.Push(o)
		emitted++
		if generated != nil {
			generated.Add(1)
		}
		out.Emit(line)

		if g.jitter > 0 {
			time.Sleep(time.Duration(g.rng.Float64() * float64(g.jitter)))
		}
	}
	return emitted, nil
}

// stopped reports whether stop has been closed without blocking.
func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
