package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/exchangesim/internal/config"
	"github.com/efreitasn/exchangesim/internal/handler"
	"github.com/efreitasn/exchangesim/internal/session"
	"github.com/efreitasn/exchangesim/internal/sink"
)

// logTail is how many event lines the status server keeps for /session/log.
const logTail = 2000

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against a running status server")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Handle -healthcheck flag: HTTP GET to STATUS_ADDR/healthz, exit 0/1.
	if *healthcheck {
		os.Exit(runHealthcheck(cfg.StatusAddr))
	}

	// Set up slog logger with configured level. The event stream owns
	// stdout, so structured logs go to stderr.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	params := cfg.Session(cfg.Rand())
	logger.Info("session parameters",
		slog.Int64("seed", cfg.Seed),
		slog.Int("total_orders", params.TotalOrders),
		slog.Any("quotas", params.WorkerQuotas),
	)

	// Sinks: terminal, in-memory tail, websocket viewers, debug log.
	memory := sink.NewMemory(logTail)
	hub := sink.NewHub(logger)
	defer hub.Close()
	out := sink.Multi(
		sink.NewWriter(os.Stdout, cfg.LogColor),
		memory,
		hub,
		sink.NewSlog(logger),
	)

	sess, err := session.New(session.Config{
		TotalOrders:   params.TotalOrders,
		WorkerQuotas:  params.WorkerQuotas,
		Symbols:       cfg.Symbols,
		LockMode:      cfg.LockMode,
		Seed:          cfg.Seed,
		GracePeriod:   cfg.GracePeriod,
		PopTimeout:    cfg.PopTimeout,
		ArrivalJitter: cfg.ArrivalJitter,
		ProcessDelay:  cfg.ProcessDelay,
		MatchDelay:    cfg.MatchDelay,
	}, out, logger)
	if err != nil {
		logger.Error("failed to create session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// SIGINT/SIGTERM raise the stop signal early; the session still drains
	// and reports.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.StatusAddr != "" {
		srv = &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           handler.NewRouter(sess, memory, hub, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server starting", slog.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", slog.String("error", err.Error()))
			}
		}()
	}

	if _, err := sess.Run(ctx); err != nil {
		logger.Error("session failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", slog.String("error", err.Error()))
		}
		logger.Info("status server stopped")
	}
}

func runHealthcheck(addr string) int {
	if addr == "" {
		return 1
	}
	host := addr
	if host[0] == ':' {
		host = "localhost" + host
	}
	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", host))
	if err != nil {
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
