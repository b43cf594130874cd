package session

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/efreitasn/exchangesim/internal/engine"
	"github.com/efreitasn/exchangesim/internal/queue"
	"github.com/efreitasn/exchangesim/internal/sink"
)

// WorkerReport describes a worker's progress.
type WorkerReport struct {
	ID        int  `json:"id"`
	Quota     int  `json:"quota"`
	Processed int  `json:"processed"`
	Retired   bool `json:"retired"` // stopped after reaching its quota
}

// Worker consumes orders from the shared queue and runs them through the
// matcher until its quota is used up or the session stops.
type Worker struct {
	id           int
	quota        int
	queue        *queue.OrderQueue
	matcher      *engine.Matcher
	counters     *Counters
	out          sink.LogSink
	logger       *slog.Logger
	popTimeout   time.Duration
	processDelay time.Duration

	processed atomic.Int64
	retired   atomic.Bool
}

// NewWorker creates worker id with the given quota.
func NewWorker(
	id, quota int,
	q *queue.OrderQueue,
	matcher *engine.Matcher,
	counters *Counters,
	out sink.LogSink,
	logger *slog.Logger,
	popTimeout, processDelay time.Duration,
) *Worker {
	if popTimeout <= 0 {
		popTimeout = DefaultPopTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:           id,
		quota:        quota,
		queue:        q,
		matcher:      matcher,
		counters:     counters,
		out:          out,
		logger:       logger,
		popTimeout:   popTimeout,
		processDelay: processDelay,
	}
}

// Run is the worker loop. It returns once stop is closed and the queue is
// empty, or right after the worker pops an order beyond its quota; that
// order goes back on the queue untouched.
func (w *Worker) Run(stop <-chan struct{}) {
	for {
		if stopped(stop) && w.queue.Empty() {
			return
		}

		o, ok := w.queue.Pop(w.popTimeout)
		if !ok {
			continue
		}

		if int(w.processed.Load()) >= w.quota {
			w.queue.Push(o)
			w.retired.Store(true)
			w.out.Emit(fmt.Sprintf("[CONS %d] -> Quota of %d reached, returned %s to the queue and retired.", w.id, w.quota, o.ID))
			w.logger.Info("worker retired",
				slog.Int("worker", w.id),
				slog.Int("quota", w.quota),
				slog.String("requeued", o.ID),
			)
			return
		}

		w.process(o)
	}
}

func (w *Worker) process(o *domain.Order) {
	w.out.Emit(fmt.Sprintf("[CONS %d] -> Processing order: %s", w.id, o))
	w.pause()

	incomingPrice := o.Price
	res := w.matcher.Process(o)

	w.processed.Add(1)
	w.counters.Accepted.Add(1)
	w.counters.Trades.Add(int64(len(res.Trades)))

	for _, t := range res.Trades {
		w.out.Emit(matchLine(t, incomingPrice))
		w.logger.Debug("trade",
			slog.String("trade_id", t.TradeID),
			slog.String("symbol", t.Symbol),
			slog.String("buy_order", t.BuyOrderID),
			slog.String("sell_order", t.SellOrderID),
			slog.Int64("price", t.Price),
			slog.Int64("quantity", t.Quantity),
			slog.Time("executed_at", t.ExecutedAt),
		)
	}
	if res.Rested {
		w.out.Emit(fmt.Sprintf("[CONS %d] -> Remaining %s order %s added to resting %ss (qty %d).",
			w.id, o.Side, o.ID, o.Side, res.Remaining))
	}
	w.pause()
}

func (w *Worker) pause() {
	if w.processDelay > 0 {
		time.Sleep(w.processDelay)
	}
}

// Report returns the worker's current progress.
func (w *Worker) Report() WorkerReport {
	return WorkerReport{
		ID:        w.id,
		Quota:     w.quota,
		Processed: int(w.processed.Load()),
		Retired:   w.retired.Load(),
	}
}

// matchLine formats a trade with the incoming order first.
func matchLine(t domain.Trade, incomingPrice int64) string {
	if t.Aggressor == domain.SideBuy {
		return fmt.Sprintf("   [MATCH] Buy %s (%s @%d) <-> Sell %s (%s @%d) -> Quantity: %d",
			t.BuyOrderID, t.Symbol, incomingPrice, t.SellOrderID, t.Symbol, t.Price, t.Quantity)
	}
	return fmt.Sprintf("   [MATCH] Sell %s (%s @%d) <-> Buy %s (%s @%d) -> Quantity: %d",
		t.SellOrderID, t.Symbol, incomingPrice, t.BuyOrderID, t.Symbol, t.Price, t.Quantity)
}
