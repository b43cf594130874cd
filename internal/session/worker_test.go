package session

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/efreitasn/exchangesim/internal/engine"
	"github.com/efreitasn/exchangesim/internal/queue"
	"github.com/efreitasn/exchangesim/internal/sink"
)

func order(id string, side domain.Side, price, qty int64, seq uint64) *domain.Order {
	return &domain.Order{ID: id, Seq: seq, Side: side, Symbol: "X", Price: price, Quantity: qty}
}

func newTestWorker(id, quota int, q *queue.OrderQueue, m *engine.Matcher, c *Counters, out sink.LogSink) *Worker {
	return NewWorker(id, quota, q, m, c, out, slog.Default(), 5*time.Millisecond, 0)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorker_ZeroQuotaRequeuesAndRetires(t *testing.T) {
	q := queue.New()
	books := engine.NewBookManager()
	m := engine.NewMatcher(books, engine.LockGlobal, 0)
	var counters Counters
	mem := sink.NewMemory(0)

	o := order("B1", domain.SideBuy, 100, 5, 1)
	q.Push(o)

	w := newTestWorker(0, 0, q, m, &counters, mem)
	w.Run(make(chan struct{}))

	if q.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", q.Len())
	}
	got, _ := q.TryPop()
	if got != o || got.Quantity != 5 || got.Price != 100 {
		t.Errorf("requeued order changed: %s", got)
	}
	if counters.Accepted.Load() != 0 || counters.Trades.Load() != 0 {
		t.Errorf("counters touched: accepted=%d trades=%d", counters.Accepted.Load(), counters.Trades.Load())
	}
	if len(books.Books()) != 0 {
		t.Errorf("books created: %d", len(books.Books()))
	}

	r := w.Report()
	if !r.Retired || r.Processed != 0 {
		t.Errorf("report = %+v, want retired with 0 processed", r)
	}
	lines := mem.Lines()
	if len(lines) != 1 || !strings.Contains(lines[0], "returned B1 to the queue") {
		t.Errorf("lines = %q", lines)
	}
}

func TestWorker_ExitsOnStopWithEmptyQueue(t *testing.T) {
	q := queue.New()
	m := engine.NewMatcher(engine.NewBookManager(), engine.LockGlobal, 0)
	var counters Counters

	stop := make(chan struct{})
	close(stop)

	done := make(chan struct{})
	go func() {
		newTestWorker(0, 5, q, m, &counters, sink.Discard).Run(stop)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after stop")
	}
}

func TestWorker_DrainsQueueAfterStop(t *testing.T) {
	q := queue.New()
	m := engine.NewMatcher(engine.NewBookManager(), engine.LockGlobal, 0)
	var counters Counters

	for i := 0; i < 4; i++ {
		q.Push(order("S"+string(rune('0'+i)), domain.SideSell, 90, 1, uint64(i)))
	}
	stop := make(chan struct{})
	close(stop)

	w := newTestWorker(0, 10, q, m, &counters, sink.Discard)
	w.Run(stop)

	if !q.Empty() {
		t.Errorf("queue len = %d, want 0", q.Len())
	}
	if w.Report().Processed != 4 || counters.Accepted.Load() != 4 {
		t.Errorf("processed = %d accepted = %d, want 4", w.Report().Processed, counters.Accepted.Load())
	}
}

func TestWorker_EmitsProcessingAndMatchLines(t *testing.T) {
	q := queue.New()
	m := engine.NewMatcher(engine.NewBookManager(), engine.LockGlobal, 0)
	var counters Counters
	mem := sink.NewMemory(0)

	q.Push(order("S1", domain.SideSell, 90, 3, 1))
	q.Push(order("B1", domain.SideBuy, 100, 5, 2))
	stop := make(chan struct{})
	close(stop)

	newTestWorker(1, 10, q, m, &counters, mem).Run(stop)

	var match, rested []string
	for _, l := range mem.Lines() {
		switch {
		case sink.Classify(l) == sink.KindMatch:
			match = append(match, l)
		case strings.Contains(l, "added to resting"):
			rested = append(rested, l)
		}
	}
	if len(match) != 1 {
		t.Fatalf("match lines = %q, want 1", match)
	}
	want := "   [MATCH] Buy B1 (X @100) <-> Sell S1 (X @90) -> Quantity: 3"
	if match[0] != want {
		t.Errorf("match line = %q, want %q", match[0], want)
	}
	// S1 rests first, then the unfilled remainder of B1.
	if len(rested) != 2 || !strings.Contains(rested[1], "B1") || !strings.Contains(rested[1], "qty 2") {
		t.Errorf("rested lines = %q", rested)
	}
	if counters.Trades.Load() != 1 {
		t.Errorf("trades = %d, want 1", counters.Trades.Load())
	}
}

// Two quota-1 workers buying concurrently from one resting sell.
func TestWorker_ConcurrentBuysSingleSell(t *testing.T) {
	for _, mode := range []engine.LockMode{engine.LockGlobal, engine.LockSymbol} {
		t.Run(string(mode), func(t *testing.T) {
			books := engine.NewBookManager()
			m := engine.NewMatcher(books, mode, 0)
			m.Process(order("S1", domain.SideSell, 90, 10, 0))

			q := queue.New()
			var counters Counters
			q.Push(order("B1", domain.SideBuy, 100, 3, 1))
			q.Push(order("B2", domain.SideBuy, 100, 4, 2))

			stop := make(chan struct{})
			var wg sync.WaitGroup
			workers := []*Worker{
				newTestWorker(0, 1, q, m, &counters, sink.Discard),
				newTestWorker(1, 1, q, m, &counters, sink.Discard),
			}
			for _, w := range workers {
				wg.Add(1)
				go func(w *Worker) {
					defer wg.Done()
					w.Run(stop)
				}(w)
			}

			waitFor(t, func() bool { return counters.Accepted.Load() == 2 })
			close(stop)
			wg.Wait()

			_, sells := m.Resting()
			if len(sells) != 1 || sells[0].Quantity != 3 {
				t.Fatalf("resting sells = %v, want S1 qty 3", sells)
			}
			if counters.Trades.Load() != 2 {
				t.Errorf("trades = %d, want 2", counters.Trades.Load())
			}
			if workers[0].Report().Processed+workers[1].Report().Processed != 2 {
				t.Errorf("processed = %d + %d, want 2 total",
					workers[0].Report().Processed, workers[1].Report().Processed)
			}
		})
	}
}

func TestWorker_LogsTrades(t *testing.T) {
	q := queue.New()
	m := engine.NewMatcher(engine.NewBookManager(), engine.LockGlobal, 0)
	var counters Counters
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	q.Push(order("S1", domain.SideSell, 90, 3, 1))
	q.Push(order("B1", domain.SideBuy, 100, 3, 2))
	stop := make(chan struct{})
	close(stop)

	before := time.Now()
	NewWorker(0, 10, q, m, &counters, sink.Discard, logger, 5*time.Millisecond, 0).Run(stop)

	var trades []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode log: %v", err)
		}
		if rec["msg"] == "trade" {
			trades = append(trades, rec)
		}
	}
	if len(trades) != 1 {
		t.Fatalf("trade records = %d, want 1", len(trades))
	}
	rec := trades[0]
	id, _ := rec["trade_id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("trade_id = %q, want a uuid", id)
	}
	if rec["buy_order"] != "B1" || rec["sell_order"] != "S1" || rec["quantity"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
	at, err := time.Parse(time.RFC3339Nano, rec["executed_at"].(string))
	if err != nil || at.Before(before.Add(-time.Second)) {
		t.Errorf("executed_at = %v (%v)", rec["executed_at"], err)
	}
}
