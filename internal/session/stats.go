package session

import (
	"sync/atomic"
	"time"

	"github.com/efreitasn/exchangesim/internal/domain"
)

// Counters are the session totals shared by the generator and workers.
type Counters struct {
	Generated atomic.Int64
	Accepted  atomic.Int64
	Trades    atomic.Int64
}

// Stats is the final account of a closed session.
type Stats struct {
	SessionID      string
	OpenedAt       time.Time
	ClosedAt       time.Time
	TotalGenerated int
	Accepted       int
	TradesExecuted int
	PendingInQueue []domain.Order // drained from the queue without processing
	RestingBuys    []domain.Order
	RestingSells   []domain.Order
	Workers        []WorkerReport
	StoppedEarly   bool // the context was cancelled before the generator finished
}

// PendingCount is the number of orders that ended the session unfilled:
// still queued plus resting on either side of the book.
func (s *Stats) PendingCount() int {
	return len(s.PendingInQueue) + len(s.RestingBuys) + len(s.RestingSells)
}
