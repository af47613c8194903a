// Command capsim runs the CAPSIM social interaction simulator.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"

	"capsim/internal/clock"
	"capsim/internal/config"
	"capsim/internal/engine"
	"capsim/internal/persistence"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("LOG_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	effects, err := config.LoadEffects(os.Getenv("CAPSIM_EFFECTS_PATH"))
	if err != nil {
		slog.Error("effects document invalid", "error", err)
		os.Exit(1)
	}

	dbPath := os.Getenv("CAPSIM_DB")
	if dbPath == "" {
		dbPath = "data/capsim.db"
	}
	os.MkdirAll(filepath.Dir(dbPath), 0755)

	store, err := persistence.Open(dbPath, persistence.Options{
		BatchSize:     cfg.BatchSize,
		BatchTimeout:  cfg.BatchTimeout(),
		RetryBackoffs: cfg.BatchRetryBackoffs,
		CacheTTL:      cfg.CacheTTL,
		CacheMaxSize:  cfg.CacheMaxSize,
	}, logger)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("database opened", "path", dbPath)

	var clk clock.Clock
	if cfg.Realtime {
		clk = clock.NewRealTimeClock(0, cfg.SimSpeedFactor)
		slog.Info("real-time mode", "speed_factor", cfg.SimSpeedFactor)
	} else {
		clk = clock.NewFastClock(0)
		slog.Info("fast mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, effects, store, clk, logger)
	runErr := eng.Run(ctx)

	stats := eng.Stats()
	slog.Info("run summary",
		"sim_id", eng.RunID(),
		"events_processed", humanize.Comma(int64(stats.EventsProcessed)),
		"sim_days", stats.SimTime/1440,
		"agents", humanize.Comma(int64(stats.ActiveAgents)),
		"active_trends", humanize.Comma(int64(stats.ActiveTrends)),
	)

	switch {
	case runErr == nil:
	case errors.Is(runErr, persistence.ErrActiveSimulationExists):
		slog.Error("another simulation is active", "error", runErr)
		os.Exit(2)
	case errors.Is(runErr, engine.ErrShutdownTimeout):
		slog.Error("force stopped", "error", runErr)
		os.Exit(3)
	default:
		slog.Error("simulation failed", "error", runErr)
		os.Exit(1)
	}
}
