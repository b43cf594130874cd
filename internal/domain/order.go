package domain

import (
	"fmt"
	"time"
)

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side an order of s matches against.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order is a limit order for a single symbol. Quantity is the remaining
// quantity and is decremented in place by the matching engine; an order
// with Quantity == 0 is filled.
type Order struct {
	ID        string
	Seq       uint64 // generation sequence, used as the time-priority tie-break
	Side      Side
	Symbol    string
	Price     int64
	Quantity  int64
	CreatedAt time.Time
}

// Filled reports whether the order has no remaining quantity.
func (o *Order) Filled() bool {
	return o.Quantity == 0
}

// Crosses reports whether o and a resting order on the opposite side of the
// same symbol satisfy buyPrice >= sellPrice.
func (o *Order) Crosses(resting *Order) bool {
	if o.Symbol != resting.Symbol || resting.Side != o.Side.Opposite() {
		return false
	}
	if o.Side == SideBuy {
		return resting.Price <= o.Price
	}
	return resting.Price >= o.Price
}

func (o *Order) String() string {
	return fmt.Sprintf("{id:%s side:%s symbol:%s price:%d qty:%d at:%s}",
		o.ID, o.Side, o.Symbol, o.Price, o.Quantity, o.CreatedAt.Format("15:04:05.000"))
}
