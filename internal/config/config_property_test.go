package config

import (
	"math/rand"
	"testing"

	"pgregory.net/rapid"
)

// Drawn session parameters always fall inside the configured ranges.
func TestProperty_SessionDrawsWithinRanges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		workers := rapid.IntRange(0, 8).Draw(t, "workers")

		cfg := &Config{TotalOrders: -1, WorkerCount: workers}
		p := cfg.Session(rand.New(rand.NewSource(seed)))

		if p.TotalOrders < MinTotalOrders || p.TotalOrders > MaxTotalOrders {
			t.Fatalf("TotalOrders = %d out of range", p.TotalOrders)
		}
		if workers == 0 && (p.WorkerCount < MinWorkers || p.WorkerCount > MaxWorkers) {
			t.Fatalf("WorkerCount = %d out of range", p.WorkerCount)
		}
		if workers != 0 && p.WorkerCount != workers {
			t.Fatalf("WorkerCount = %d, want configured %d", p.WorkerCount, workers)
		}
		if len(p.WorkerQuotas) != p.WorkerCount {
			t.Fatalf("len(WorkerQuotas) = %d, want %d", len(p.WorkerQuotas), p.WorkerCount)
		}
		for _, q := range p.WorkerQuotas {
			if q < MinQuota || q > MaxQuota {
				t.Fatalf("quota %d out of range", q)
			}
		}
	})
}
