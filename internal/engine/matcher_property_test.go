package engine

import (
	"fmt"
	"testing"

	"github.com/efreitasn/exchangesim/internal/domain"
	"pgregory.net/rapid"
)

var propSymbols = []string{"X", "Y"}

func genIncoming(i int) *rapid.Generator[*domain.Order] {
	return rapid.Custom(func(t *rapid.T) *domain.Order {
		side := domain.SideBuy
		if rapid.Bool().Draw(t, "sell") {
			side = domain.SideSell
		}
		return &domain.Order{
			ID:       fmt.Sprintf("o-%d", i),
			Seq:      uint64(i),
			Side:     side,
			Symbol:   rapid.SampledFrom(propSymbols).Draw(t, "symbol"),
			Price:    rapid.Int64Range(95, 105).Draw(t, "price"),
			Quantity: rapid.Int64Range(1, 10).Draw(t, "qty"),
		}
	})
}

// Every execution trades min(incoming, resting), only when the prices
// cross, in price-priority order, and leaves no crossed book behind.
func TestProperty_MatchingInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, books := newTestMatcher(LockGlobal)
		n := rapid.IntRange(1, 80).Draw(t, "n")

		var submitted, traded int64
		for i := 0; i < n; i++ {
			o := genIncoming(i).Draw(t, fmt.Sprintf("order-%d", i))
			submitted += o.Quantity
			incomingPrice := o.Price
			preQty := o.Quantity

			res := m.Process(o)

			var sum int64
			for j, tr := range res.Trades {
				if tr.Quantity <= 0 {
					t.Fatalf("trade with non-positive quantity %d", tr.Quantity)
				}
				if tr.Symbol != o.Symbol {
					t.Fatalf("trade symbol %s for order on %s", tr.Symbol, o.Symbol)
				}
				if o.Side == domain.SideBuy && tr.Price > incomingPrice {
					t.Fatalf("buy @%d traded against sell @%d", incomingPrice, tr.Price)
				}
				if o.Side == domain.SideSell && tr.Price < incomingPrice {
					t.Fatalf("sell @%d traded against buy @%d", incomingPrice, tr.Price)
				}
				if j > 0 {
					prev := res.Trades[j-1].Price
					if o.Side == domain.SideBuy && tr.Price < prev {
						t.Fatalf("buy consumed sell @%d after @%d", tr.Price, prev)
					}
					if o.Side == domain.SideSell && tr.Price > prev {
						t.Fatalf("sell consumed buy @%d after @%d", tr.Price, prev)
					}
				}
				sum += tr.Quantity
			}
			if o.Quantity != preQty-sum || o.Quantity < 0 {
				t.Fatalf("incoming quantity %d, want %d", o.Quantity, preQty-sum)
			}
			if res.Rested != (o.Quantity > 0) {
				t.Fatalf("Rested = %v with remaining %d", res.Rested, o.Quantity)
			}
			traded += sum

			for _, book := range books.Books() {
				if book.Crossed() {
					t.Fatalf("book %s crossed after pass %d", book.Symbol(), i)
				}
			}
		}

		buys, sells := m.Resting()
		var resting int64
		for _, o := range append(buys, sells...) {
			if o.Quantity <= 0 {
				t.Fatalf("resting order %s with quantity %d", o.ID, o.Quantity)
			}
			resting += o.Quantity
		}
		if submitted != 2*traded+resting {
			t.Fatalf("quantity not conserved: submitted %d, traded %d, resting %d", submitted, traded, resting)
		}
	})
}
