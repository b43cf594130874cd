package queue

import (
	"sync"
	"time"

	"github.com/efreitasn/exchangesim/internal/domain"
)

// OrderQueue is an unbounded FIFO of pending orders shared by the
// generator and the worker pool. Push never blocks; Pop waits up to a
// caller-supplied timeout. Safe for concurrent use.
type OrderQueue struct {
	mu     sync.Mutex
	orders []*domain.Order
	ready  chan struct{} // capacity 1, signalled when orders may be available
}

// New creates an empty OrderQueue.
func New() *OrderQueue {
	return &OrderQueue{
		ready: make(chan struct{}, 1),
	}
}

// Push appends an order to the tail of the queue.
func (q *OrderQueue) Push(o *domain.Order) {
	q.mu.Lock()
	q.orders = append(q.orders, o)
	q.mu.Unlock()
	q.signal()
}

// TryPop removes and returns the head of the queue without waiting.
func (q *OrderQueue) TryPop() (*domain.Order, bool) {
	q.mu.Lock()
	if len(q.orders) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	o := q.orders[0]
	q.orders[0] = nil
	q.orders = q.orders[1:]
	more := len(q.orders) > 0
	q.mu.Unlock()

	// Pass the wakeup on so another waiter picks up the rest.
	if more {
		q.signal()
	}
	return o, true
}

// Pop removes and returns the head of the queue, waiting up to timeout for
// an order to arrive. It returns (nil, false) when the timeout elapses with
// the queue still empty; callers are expected to retry.
func (q *OrderQueue) Pop(timeout time.Duration) (*domain.Order, bool) {
	if o, ok := q.TryPop(); ok {
		return o, true
	}
	if timeout <= 0 {
		return nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.ready:
			if o, ok := q.TryPop(); ok {
				return o, true
			}
		case <-timer.C:
			return q.TryPop()
		}
	}
}

// Len returns the number of queued orders.
func (q *OrderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.orders)
}

// Empty reports whether the queue currently holds no orders.
func (q *OrderQueue) Empty() bool {
	return q.Len() == 0
}

// Drain removes and returns every queued order in FIFO order.
func (q *OrderQueue) Drain() []*domain.Order {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.orders
	q.orders = nil
	if out == nil {
		return []*domain.Order{}
	}
	return out
}

func (q *OrderQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
