package config

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/efreitasn/exchangesim/internal/engine"
)

// Ranges used when session parameters are not configured explicitly.
const (
	MinTotalOrders = 50
	MaxTotalOrders = 100
	MinWorkers     = 2
	MaxWorkers     = 5
	MinQuota       = 20
	MaxQuota       = 40
)

// Config holds all runtime configuration for the exchange simulator.
// Session parameters left at their zero value (TotalOrders < 0,
// WorkerCount == 0, WorkerQuotas == nil) are drawn by Session.
type Config struct {
	LogLevel        string
	LogColor        bool
	Seed            int64
	TotalOrders     int
	WorkerCount     int
	WorkerQuotas    []int
	Symbols         domain.SymbolTable
	LockMode        engine.LockMode
	GracePeriod     time.Duration
	PopTimeout      time.Duration
	ArrivalJitter   time.Duration
	ProcessDelay    time.Duration
	MatchDelay      time.Duration
	StatusAddr      string
	ShutdownTimeout time.Duration
}

// SessionParams are the concrete order count and per-worker quotas of one
// session.
type SessionParams struct {
	TotalOrders  int
	WorkerCount  int
	WorkerQuotas []int
}

// Load reads an optional .env file (path from ENV_FILE, default ".env"),
// then configuration from environment variables, applies defaults, and
// validates values. Variables already set in the environment win over
// the file.
func Load() (*Config, error) {
	_ = godotenv.Load(getStr("ENV_FILE", ".env"))

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	logColor, err := getBool("LOG_COLOR", true)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_COLOR: %w", err)
	}

	seed, err := getInt64("SEED", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid SEED: %w", err)
	}

	totalOrders, err := getInt("TOTAL_ORDERS", -1)
	if err != nil {
		return nil, fmt.Errorf("invalid TOTAL_ORDERS: %w", err)
	}
	if os.Getenv("TOTAL_ORDERS") != "" && totalOrders < 0 {
		return nil, fmt.Errorf("invalid TOTAL_ORDERS: %w", &domain.ValidationError{Message: "must be >= 0"})
	}

	workerCount, err := getInt("WORKER_COUNT", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_COUNT: %w", err)
	}
	if os.Getenv("WORKER_COUNT") != "" && workerCount < 1 {
		return nil, fmt.Errorf("invalid WORKER_COUNT: %w", &domain.ValidationError{Message: "must be >= 1"})
	}

	quotas, err := getIntList("WORKER_QUOTAS")
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_QUOTAS: %w", err)
	}
	for _, q := range quotas {
		if q < 0 {
			return nil, fmt.Errorf("invalid WORKER_QUOTAS: %w", &domain.ValidationError{Message: "quotas must be >= 0"})
		}
	}
	if quotas != nil && workerCount != 0 && len(quotas) != workerCount {
		return nil, fmt.Errorf("invalid WORKER_QUOTAS: %w: %d quotas for %d workers", domain.ErrQuotaCount, len(quotas), workerCount)
	}

	symbols := domain.DefaultSymbols()
	if v := os.Getenv("SYMBOLS"); v != "" {
		symbols, err = domain.ParseSymbolTable(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SYMBOLS: %w", err)
		}
	}

	lockMode, err := engine.ParseLockMode(getStr("LOCK_MODE", string(engine.LockGlobal)))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_MODE: %w", err)
	}

	gracePeriod, err := getDuration("GRACE_PERIOD", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid GRACE_PERIOD: %w", err)
	}

	popTimeout, err := getDuration("POP_TIMEOUT", 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid POP_TIMEOUT: %w", err)
	}

	arrivalJitter, err := getDuration("ARRIVAL_JITTER", 300*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid ARRIVAL_JITTER: %w", err)
	}

	processDelay, err := getDuration("PROCESS_DELAY", 300*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESS_DELAY: %w", err)
	}

	matchDelay, err := getDuration("MATCH_DELAY", 400*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid MATCH_DELAY: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		LogLevel:        logLevel,
		LogColor:        logColor,
		Seed:            seed,
		TotalOrders:     totalOrders,
		WorkerCount:     workerCount,
		WorkerQuotas:    quotas,
		Symbols:         symbols,
		LockMode:        lockMode,
		GracePeriod:     gracePeriod,
		PopTimeout:      popTimeout,
		ArrivalJitter:   arrivalJitter,
		ProcessDelay:    processDelay,
		MatchDelay:      matchDelay,
		StatusAddr:      getStr("STATUS_ADDR", ""),
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// Rand returns a generator seeded from Seed, or from the clock when Seed is 0.
func (c *Config) Rand() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Session resolves the session parameters, drawing any that were not
// configured from rng: total orders in [50,100], workers in [2,5], and a
// quota in [20,40] per worker.
func (c *Config) Session(rng *rand.Rand) SessionParams {
	p := SessionParams{
		TotalOrders: c.TotalOrders,
		WorkerCount: c.WorkerCount,
	}
	if p.TotalOrders < 0 {
		p.TotalOrders = between(rng, MinTotalOrders, MaxTotalOrders)
	}
	if c.WorkerQuotas != nil {
		p.WorkerQuotas = append([]int(nil), c.WorkerQuotas...)
		p.WorkerCount = len(p.WorkerQuotas)
		return p
	}
	if p.WorkerCount == 0 {
		p.WorkerCount = between(rng, MinWorkers, MaxWorkers)
	}
	p.WorkerQuotas = make([]int, p.WorkerCount)
	for i := range p.WorkerQuotas {
		p.WorkerQuotas[i] = between(rng, MinQuota, MaxQuota)
	}
	return p
}

// between returns a uniform int in [lo, hi].
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

// getIntList parses a comma-separated list of ints. It returns nil when
// the variable is unset.
func getIntList(key string) ([]int, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// getDuration parses a non-negative duration.
func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, &domain.ValidationError{Message: "must be >= 0"}
	}
	return d, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
