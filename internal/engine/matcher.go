package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/exchangesim/internal/domain"
)

// LockMode selects how matching passes are serialized.
type LockMode string

const (
	// LockGlobal serializes every matching pass behind one mutex.
	LockGlobal LockMode = "global"
	// LockSymbol gives each symbol's book its own mutex. Matches never
	// span symbols, so crossing correctness is unchanged.
	LockSymbol LockMode = "symbol"
)

// ParseLockMode converts a configuration string into a LockMode.
func ParseLockMode(s string) (LockMode, error) {
	switch LockMode(s) {
	case LockGlobal, LockSymbol:
		return LockMode(s), nil
	}
	return "", fmt.Errorf("invalid lock mode %q, must be one of: global, symbol", s)
}

// Result describes the outcome of one matching pass.
type Result struct {
	Trades    []domain.Trade
	Remaining int64 // incoming quantity left when the pass ended
	Rested    bool  // remainder was added to the book
}

// Filled reports whether the pass left the incoming order with no quantity.
func (r Result) Filled() bool {
	return !r.Rested
}

// Matcher runs incoming orders against the resting books. All book reads
// and writes go through it so that the lock discipline lives in one place.
type Matcher struct {
	books      *BookManager
	mode       LockMode
	global     sync.Mutex
	matchDelay time.Duration
	now        func() time.Time
}

// NewMatcher creates a Matcher over books. matchDelay is slept after each
// execution while the lock is held to simulate exchange latency; zero
// disables it.
func NewMatcher(books *BookManager, mode LockMode, matchDelay time.Duration) *Matcher {
	if mode == "" {
		mode = LockGlobal
	}
	return &Matcher{
		books:      books,
		mode:       mode,
		matchDelay: matchDelay,
		now:        time.Now,
	}
}

// Mode returns the lock mode the matcher was built with.
func (m *Matcher) Mode() LockMode {
	return m.mode
}

func (m *Matcher) lockFor(book *OrderBook) sync.Locker {
	if m.mode == LockSymbol {
		return &book.mu
	}
	return &m.global
}

// Process runs one critical section for an incoming order: it crosses the
// order against the opposite side of its symbol's book and rests any
// remainder. The order's Quantity is decremented in place.
func (m *Matcher) Process(order *domain.Order) Result {
	book := m.books.GetOrCreate(order.Symbol)

	l := m.lockFor(book)
	l.Lock()
	defer l.Unlock()

	onTrade := func(domain.Trade) {
		if m.matchDelay > 0 {
			time.Sleep(m.matchDelay)
		}
	}

	var res Result
	if order.Side == domain.SideBuy {
		res.Trades = MatchBuy(book, order, m.now(), onTrade)
	} else {
		res.Trades = MatchSell(book, order, m.now(), onTrade)
	}

	res.Remaining = order.Quantity
	if order.Quantity > 0 {
		book.Insert(order)
		res.Rested = true
	}
	return res
}

// MatchBuy crosses an incoming buy against the resting sells of book,
// lowest price first, while the sell price does not exceed the buy price.
// Each execution trades min(buyQty, sellQty) at the resting price; filled
// sells are removed from the book. The caller must hold the book's lock.
func MatchBuy(book *OrderBook, buy *domain.Order, executedAt time.Time, onTrade func(domain.Trade)) []domain.Trade {
	var trades []domain.Trade
	for buy.Quantity > 0 {
		best, ok := book.BestAsk()
		if !ok || !buy.Crosses(best.Order) {
			break
		}
		sell := best.Order
		t := execute(buy, sell, sell.Price, executedAt)
		trades = append(trades, t)
		if sell.Quantity == 0 {
			book.Remove(sell.ID)
		}
		if onTrade != nil {
			onTrade(t)
		}
	}
	return trades
}

// MatchSell is the mirror of MatchBuy: it crosses an incoming sell against
// the resting buys of book, highest price first, while buyPrice >= sellPrice.
func MatchSell(book *OrderBook, sell *domain.Order, executedAt time.Time, onTrade func(domain.Trade)) []domain.Trade {
	var trades []domain.Trade
	for sell.Quantity > 0 {
		best, ok := book.BestBid()
		if !ok || !sell.Crosses(best.Order) {
			break
		}
		buy := best.Order
		t := execute(sell, buy, buy.Price, executedAt)
		trades = append(trades, t)
		if buy.Quantity == 0 {
			book.Remove(buy.ID)
		}
		if onTrade != nil {
			onTrade(t)
		}
	}
	return trades
}

// execute fills min(incoming, resting) on both orders and returns the trade.
func execute(incoming, resting *domain.Order, price int64, executedAt time.Time) domain.Trade {
	qty := min(incoming.Quantity, resting.Quantity)
	incoming.Quantity -= qty
	resting.Quantity -= qty

	t := domain.Trade{
		TradeID:    uuid.New().String(),
		Symbol:     incoming.Symbol,
		Price:      price,
		Quantity:   qty,
		Aggressor:  incoming.Side,
		ExecutedAt: executedAt,
	}
	if incoming.Side == domain.SideBuy {
		t.BuyOrderID, t.SellOrderID = incoming.ID, resting.ID
	} else {
		t.BuyOrderID, t.SellOrderID = resting.ID, incoming.ID
	}
	return t
}

// Resting returns copies of every resting buy and sell, grouped by symbol
// and in priority order within a symbol.
func (m *Matcher) Resting() (buys, sells []domain.Order) {
	buys, sells = []domain.Order{}, []domain.Order{}
	for _, book := range m.books.Books() {
		l := m.lockFor(book)
		l.Lock()
		buys = append(buys, book.orders(domain.SideBuy)...)
		sells = append(sells, book.orders(domain.SideSell)...)
		l.Unlock()
	}
	return buys, sells
}

// Depth returns up to n aggregated price levels per side for symbol.
func (m *Matcher) Depth(symbol string, n int) (bids, asks []PriceLevel, ok bool) {
	book, ok := m.books.Get(symbol)
	if !ok {
		return nil, nil, false
	}
	l := m.lockFor(book)
	l.Lock()
	defer l.Unlock()
	bids, asks = book.Depth(n)
	return bids, asks, true
}
