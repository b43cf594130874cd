package domain

import "time"

// Trade is a single execution between a buy and a sell order. Trades are
// emitted and counted, never stored.
type Trade struct {
	TradeID     string
	BuyOrderID  string
	SellOrderID string
	Symbol      string
	Price       int64 // resting order's price
	Quantity    int64
	Aggressor   Side // side of the incoming order
	ExecutedAt  time.Time
}
