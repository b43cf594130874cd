package engine

import (
	"sort"
	"sync"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/google/btree"
)

// OrderBookEntry represents a single order resting on the book. Price, Seq
// and OrderID are the sort key and never change while the entry is in the
// tree; only Order.Quantity is mutated in place by matching.
type OrderBookEntry struct {
	Price   int64
	Seq     uint64
	OrderID string
	Order   *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// bidLess defines ordering for the buy side: price descending, then
// generation sequence ascending, then order_id ascending. Min() returns
// the best bid.
func bidLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.OrderID < b.OrderID
}

// askLess defines ordering for the sell side: price ascending, then
// generation sequence ascending, then order_id ascending.
func askLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.OrderID < b.OrderID
}

// OrderBook holds the resting buys and sells of a single symbol. It is not
// safe for concurrent use on its own; the Matcher serializes access.
type OrderBook struct {
	symbol string
	mu     sync.Mutex // used only in per-symbol lock mode
	bids   *btree.BTreeG[OrderBookEntry]
	asks   *btree.BTreeG[OrderBookEntry]
	index  map[string]OrderBookEntry // order_id → entry
}

// NewOrderBook creates an order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		bids:   btree.NewG[OrderBookEntry](degree, bidLess),
		asks:   btree.NewG[OrderBookEntry](degree, askLess),
		index:  make(map[string]OrderBookEntry),
	}
}

// Symbol returns the symbol this book holds orders for.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// Insert rests an order on its own side of the book. An order already on
// the book is not inserted twice.
func (ob *OrderBook) Insert(o *domain.Order) {
	if _, ok := ob.index[o.ID]; ok {
		return
	}
	entry := OrderBookEntry{
		Price:   o.Price,
		Seq:     o.Seq,
		OrderID: o.ID,
		Order:   o,
	}
	if o.Side == domain.SideBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[o.ID] = entry
}

// Remove deletes an order from the book by order ID.
func (ob *OrderBook) Remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	if entry.Order.Side == domain.SideBuy {
		ob.bids.Delete(entry)
	} else {
		ob.asks.Delete(entry)
	}
}

// BestBid returns the highest-priority bid.
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask.
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	return ob.asks.Min()
}

// Crossed reports whether the best bid is priced at or above the best ask.
// A book is never crossed after a matching pass completes.
func (ob *OrderBook) Crossed() bool {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	return okBid && okAsk && bid.Price >= ask.Price
}

// Depth returns up to n aggregated price levels for each side, bids by
// price descending and asks by price ascending.
func (ob *OrderBook) Depth(n int) (bids, asks []PriceLevel) {
	return topLevels(ob.bids, n), topLevels(ob.asks, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[OrderBookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry OrderBookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.Quantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.Quantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// BidCount returns the number of individual bid orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// orders returns copies of the resting orders on one side in priority order.
func (ob *OrderBook) orders(side domain.Side) []domain.Order {
	tree := ob.asks
	if side == domain.SideBuy {
		tree = ob.bids
	}
	out := make([]domain.Order, 0, tree.Len())
	tree.Ascend(func(entry OrderBookEntry) bool {
		out = append(out, *entry.Order)
		return true
	})
	return out
}

// BookManager is a thread-safe map of symbol → OrderBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given symbol, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol)
	bm.books[symbol] = book
	return book
}

// Get returns the order book for symbol if one has been created.
func (bm *BookManager) Get(symbol string) (*OrderBook, bool) {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	book, ok := bm.books[symbol]
	return book, ok
}

// Books returns every order book ordered by symbol.
func (bm *BookManager) Books() []*OrderBook {
	bm.mu.RLock()
	out := make([]*OrderBook, 0, len(bm.books))
	for _, b := range bm.books {
		out = append(out, b)
	}
	bm.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].symbol < out[j].symbol })
	return out
}
