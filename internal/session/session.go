// Package session runs one trading session: a generator feeding a shared
// queue, a pool of quota-bound workers matching orders against the book,
// and the shutdown protocol that drains and reports what is left.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/efreitasn/exchangesim/internal/engine"
	"github.com/efreitasn/exchangesim/internal/queue"
	"github.com/efreitasn/exchangesim/internal/sink"
)

// State is the lifecycle stage of a session.
type State int32

const (
	StateOpen State = iota
	StateTrading
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateTrading:
		return "trading"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Snapshot is a point-in-time view of a session, safe to take while it runs.
type Snapshot struct {
	SessionID   string         `json:"session_id"`
	State       string         `json:"state"`
	LockMode    string         `json:"lock_mode"`
	OpenedAt    *time.Time     `json:"opened_at"`
	ClosedAt    *time.Time     `json:"closed_at"`
	TotalOrders int            `json:"total_orders"`
	Generated   int64          `json:"generated"`
	Accepted    int64          `json:"accepted"`
	Trades      int64          `json:"trades"`
	Queued      int            `json:"queued"`
	Workers     []WorkerReport `json:"workers"`
}

// Session owns the shared state of one run: queue, books, matcher,
// counters and workers.
type Session struct {
	id      string
	cfg     Config
	out     sink.LogSink
	logger  *slog.Logger
	queue   *queue.OrderQueue
	books   *engine.BookManager
	matcher *engine.Matcher
	workers []*Worker

	counters Counters
	state    atomic.Int32

	mu       sync.Mutex // protects openedAt, closedAt
	openedAt time.Time
	closedAt time.Time
}

// New validates cfg and builds a session in the Open state. A nil sink
// discards event lines; a nil logger uses slog.Default().
func New(cfg Config, out sink.LogSink, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if out == nil {
		out = sink.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LockMode == "" {
		cfg.LockMode = engine.LockGlobal
	}

	id := uuid.New().String()
	s := &Session{
		id:     id,
		cfg:    cfg,
		out:    out,
		logger: logger.With(slog.String("session", id)),
		queue:  queue.New(),
		books:  engine.NewBookManager(),
	}
	s.matcher = engine.NewMatcher(s.books, cfg.LockMode, cfg.MatchDelay)

	s.workers = make([]*Worker, len(cfg.WorkerQuotas))
	for i, quota := range cfg.WorkerQuotas {
		s.workers[i] = NewWorker(i, quota, s.queue, s.matcher, &s.counters, out, s.logger,
			cfg.PopTimeout, cfg.ProcessDelay)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Depth returns up to n aggregated price levels per side for symbol.
func (s *Session) Depth(symbol string, n int) (bids, asks []engine.PriceLevel, ok bool) {
	return s.matcher.Depth(symbol, n)
}

// Snapshot returns the live counters and worker progress.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:   s.id,
		State:       s.State().String(),
		LockMode:    string(s.matcher.Mode()),
		TotalOrders: s.cfg.TotalOrders,
		Generated:   s.counters.Generated.Load(),
		Accepted:    s.counters.Accepted.Load(),
		Trades:      s.counters.Trades.Load(),
		Queued:      s.queue.Len(),
		Workers:     make([]WorkerReport, len(s.workers)),
	}
	for i, w := range s.workers {
		snap.Workers[i] = w.Report()
	}
	s.mu.Lock()
	if !s.openedAt.IsZero() {
		t := s.openedAt
		snap.OpenedAt = &t
	}
	if !s.closedAt.IsZero() {
		t := s.closedAt
		snap.ClosedAt = &t
	}
	s.mu.Unlock()
	return snap
}

// Run executes the session once: Open → Trading → Draining → Closed. It
// starts the generator and the worker pool, waits for the generator, lets
// the grace period elapse, raises the stop signal, joins every worker,
// drains the queue, and emits the final report. Cancelling ctx raises
// the stop signal early; the drain and report still happen. A generator
// failure also skips the grace period, and Run returns the stats together
// with the error.
func (s *Session) Run(ctx context.Context) (*Stats, error) {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateTrading)) {
		if s.State() == StateClosed {
			return nil, domain.ErrSessionClosed
		}
		return nil, domain.ErrSessionRunning
	}

	openedAt := time.Now()
	s.mu.Lock()
	s.openedAt = openedAt
	s.mu.Unlock()

	s.out.Emit(fmt.Sprintf("=== Exchange open at %s ===", openedAt.Format("15:04:05")))
	s.logger.Info("session opened",
		slog.Int("total_orders", s.cfg.TotalOrders),
		slog.Int("workers", s.cfg.WorkerCount()),
		slog.Any("quotas", s.cfg.WorkerQuotas),
		slog.String("lock_mode", string(s.matcher.Mode())),
	)

	stop := make(chan struct{})
	var stopOnce sync.Once
	raiseStop := func() { stopOnce.Do(func() { close(stop) }) }

	// Propagate cancellation as an early stop signal.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			raiseStop()
		case <-watchDone:
		}
	}()

	gen := NewGenerator(0, s.cfg.TotalOrders, s.cfg.Symbols, s.cfg.ArrivalJitter, s.rand())
	type genResult struct {
		emitted int
		err     error
	}
	genDone := make(chan genResult, 1)
	go func() {
		n, err := gen.Run(stop, s.queue, s.out, &s.counters.Generated)
		genDone <- genResult{n, err}
	}()

	var pool errgroup.Group
	for _, w := range s.workers {
		w := w
		pool.Go(func() error {
			w.Run(stop)
			return nil
		})
	}

	gres := <-genDone
	emitted := gres.emitted
	if gres.err != nil {
		s.logger.Error("generator failed", slog.String("error", gres.err.Error()), slog.Int("emitted", emitted))
	} else {
		s.logger.Debug("generator finished", slog.Int("emitted", emitted))
	}

	if ctx.Err() == nil && gres.err == nil && s.cfg.GracePeriod > 0 {
		timer := time.NewTimer(s.cfg.GracePeriod)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	s.state.Store(int32(StateDraining))
	raiseStop()
	_ = pool.Wait()

	s.state.Store(int32(StateClosed))
	closedAt := time.Now()
	s.mu.Lock()
	s.closedAt = closedAt
	s.mu.Unlock()

	stats := s.collect(openedAt, closedAt, ctx.Err() != nil && emitted < s.cfg.TotalOrders)
	EmitReport(s.out, stats)

	s.logger.Info("session closed",
		slog.Int("generated", stats.TotalGenerated),
		slog.Int("accepted", stats.Accepted),
		slog.Int("trades", stats.TradesExecuted),
		slog.Int("pending", stats.PendingCount()),
		slog.Bool("stopped_early", stats.StoppedEarly),
	)
	return stats, gres.err
}

// collect drains the queue and gathers the final statistics. Every
// worker must have exited.
func (s *Session) collect(openedAt, closedAt time.Time, stoppedEarly bool) *Stats {
	queued := s.queue.Drain()
	pending := make([]domain.Order, len(queued))
	for i, o := range queued {
		pending[i] = *o
	}
	buys, sells := s.matcher.Resting()

	workers := make([]WorkerReport, len(s.workers))
	for i, w := range s.workers {
		workers[i] = w.Report()
	}

	return &Stats{
		SessionID:      s.id,
		OpenedAt:       openedAt,
		ClosedAt:       closedAt,
		TotalGenerated: int(s.counters.Generated.Load()),
		Accepted:       int(s.counters.Accepted.Load()),
		TradesExecuted: int(s.counters.Trades.Load()),
		PendingInQueue: pending,
		RestingBuys:    buys,
		RestingSells:   sells,
		Workers:        workers,
		StoppedEarly:   stoppedEarly,
	}
}

func (s *Session) rand() *rand.Rand {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
