package engine

import (
	"fmt"
	"testing"

	"github.com/efreitasn/exchangesim/internal/domain"
	"pgregory.net/rapid"
)

// Resting orders are walked in price priority, sequence breaking ties.

func genOrder(id int, side domain.Side) *rapid.Generator[*domain.Order] {
	return rapid.Custom(func(t *rapid.T) *domain.Order {
		return &domain.Order{
			ID:       fmt.Sprintf("o-%d", id),
			Seq:      uint64(id),
			Side:     side,
			Symbol:   "X",
			Price:    rapid.Int64Range(90, 110).Draw(t, "price"),
			Quantity: rapid.Int64Range(1, 10).Draw(t, "qty"),
		}
	})
}

func TestProperty_BidSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewOrderBook("X")
		for i := 0; i < n; i++ {
			book.Insert(genOrder(i, domain.SideBuy).Draw(t, fmt.Sprintf("bid-%d", i)))
		}

		bids := book.orders(domain.SideBuy)
		for i := 1; i < len(bids); i++ {
			prev, cur := bids[i-1], bids[i]
			if cur.Price > prev.Price {
				t.Fatalf("bid side: price should be descending, got %d after %d", cur.Price, prev.Price)
			}
			if cur.Price == prev.Price && cur.Seq < prev.Seq {
				t.Fatalf("bid side: same price %d, seq should be ascending, got %d after %d",
					cur.Price, cur.Seq, prev.Seq)
			}
		}
		if book.BidCount() != n {
			t.Fatalf("BidCount() = %d, want %d", book.BidCount(), n)
		}
	})
}

func TestProperty_AskSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewOrderBook("X")
		for i := 0; i < n; i++ {
			book.Insert(genOrder(i, domain.SideSell).Draw(t, fmt.Sprintf("ask-%d", i)))
		}

		asks := book.orders(domain.SideSell)
		if len(asks) != n {
			t.Fatalf("len(asks) = %d, want %d", len(asks), n)
		}
		for i := 1; i < len(asks); i++ {
			prev, cur := asks[i-1], asks[i]
			if cur.Price < prev.Price {
				t.Fatalf("ask side: price should be ascending, got %d after %d", cur.Price, prev.Price)
			}
			if cur.Price == prev.Price && cur.Seq < prev.Seq {
				t.Fatalf("ask side: same price %d, seq should be ascending, got %d after %d",
					cur.Price, cur.Seq, prev.Seq)
			}
		}
	})
}
