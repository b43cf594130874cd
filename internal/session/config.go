package session

import (
	"fmt"
	"time"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/efreitasn/exchangesim/internal/engine"
)

// DefaultPopTimeout is used when Config.PopTimeout is not positive.
const DefaultPopTimeout = 200 * time.Millisecond

// Config holds the parameters of one session. Delays are simulation
// artifacts; zero disables them without changing observable results.
type Config struct {
	TotalOrders   int
	WorkerQuotas  []int // one entry per worker
	Symbols       domain.SymbolTable
	LockMode      engine.LockMode
	Seed          int64
	GracePeriod   time.Duration // wait after the generator finishes before raising stop
	PopTimeout    time.Duration // how long a worker waits on an empty queue
	ArrivalJitter time.Duration // max random pause between generated orders
	ProcessDelay  time.Duration // worker pause before and after each matching pass
	MatchDelay    time.Duration // pause per execution, under the book lock
}

// WorkerCount returns the number of workers in the pool.
func (c Config) WorkerCount() int {
	return len(c.WorkerQuotas)
}

// Validate checks the configuration for values the session cannot run with.
func (c Config) Validate() error {
	if c.TotalOrders < 0 {
		return &domain.ValidationError{Message: "total_orders must be >= 0"}
	}
	if len(c.WorkerQuotas) == 0 {
		return &domain.ValidationError{Message: "worker_count must be >= 1"}
	}
	for i, q := range c.WorkerQuotas {
		if q < 0 {
			return &domain.ValidationError{Message: fmt.Sprintf("quota for worker %d must be >= 0", i)}
		}
	}
	if err := c.Symbols.Validate(); err != nil {
		return err
	}
	switch c.LockMode {
	case "", engine.LockGlobal, engine.LockSymbol:
	default:
		return &domain.ValidationError{Message: fmt.Sprintf("unknown lock mode %q", c.LockMode)}
	}
	if c.GracePeriod < 0 || c.PopTimeout < 0 || c.ArrivalJitter < 0 || c.ProcessDelay < 0 || c.MatchDelay < 0 {
		return &domain.ValidationError{Message: "durations must be >= 0"}
	}
	return nil
}
