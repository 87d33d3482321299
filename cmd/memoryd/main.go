// Command memoryd wires configuration, structured logging, metrics,
// and the memory engine together against a durable SQLite store. It
// has no CLI verb parser and no RPC listener — those surfaces are
// named as internal/engine.CLIFrontend and internal/engine.RPCFrontend
// but belong to a separate, out-of-scope process, the way the
// teacher keeps cmd/bd's command dispatch out of internal/tracker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memoryd/engine/internal/cache"
	"github.com/memoryd/engine/internal/config"
	"github.com/memoryd/engine/internal/effectiveness"
	"github.com/memoryd/engine/internal/engine"
	"github.com/memoryd/engine/internal/extraction"
	"github.com/memoryd/engine/internal/ratelimit"
	"github.com/memoryd/engine/internal/storage/sqlite"
	"github.com/memoryd/engine/internal/telemetry"
)

func main() {
	var (
		configPath = flag.String("config", "memoryd.yaml", "Path to YAML configuration file")
		shutdownTO = flag.Duration("shutdown-timeout", 10*time.Second, "Grace period for extraction workers to exit on shutdown")
	)
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: loading %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(telemetry.LogConfig{
		Level:  logLevel(cfg.Log.Level),
		Format: telemetry.LogFormat(cfg.Log.Format),
	})
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMetrics, err := telemetry.NewMeterProvider(ctx, telemetry.MeterProviderConfig{
		StdoutExport: cfg.Metrics.StdoutExport,
	})
	if err != nil {
		logger.Error("starting meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()

	store, err := sqlite.Open(ctx, cfg.Storage.DSN, sqlite.PoolConfig{
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxOpenConns,
		ConnMaxLifetime: time.Hour,
		StmtCacheSize:   cfg.Storage.PreparedLRUSize,
	})
	if err != nil {
		logger.Error("opening storage", "dsn", cfg.Storage.DSN, "error", err)
		os.Exit(1)
	}

	eff, err := effectiveness.New(
		effectiveness.Config{DecayIntervalDays: cfg.Engine.DecayIntervalDays, MinEffectiveness: cfg.Engine.MinEffectiveness},
		store,
		telemetry.Meter("memoryd.effectiveness"),
	)
	if err != nil {
		logger.Error("building effectiveness tracker", "error", err)
		os.Exit(1)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.CapacityPerFamily = cfg.Engine.CacheCapacity
	extractionCfg := extraction.DefaultConfig()
	extractionCfg.WorkerCount = cfg.Engine.ExtractionWorkers
	extractionCfg.MaxQueueSize = cfg.Engine.ExtractionQueueSize

	eng := engine.New(ctx, engine.Config{
		QualityThreshold: cfg.Engine.QualityThreshold,
		RelevanceWeights: engine.DefaultRelevanceWeights(),
		Cache:            cacheCfg,
		Effectiveness:    effectiveness.Config{DecayIntervalDays: cfg.Engine.DecayIntervalDays, MinEffectiveness: cfg.Engine.MinEffectiveness},
		Extraction:       extractionCfg,
	}, store, eff, engine.WithLogger(logger))

	if err := eng.RebuildIndex(ctx); err != nil {
		logger.Error("rebuilding spatiotemporal index", "error", err)
		os.Exit(1)
	}

	eng.EnableAsyncExtraction(extractionCfg)
	eng.StartWorkers(ctx)

	// A conservative default admission policy for whatever RPC/CLI
	// surface is eventually wired in front of this engine; memoryd
	// itself issues no requests through it.
	_ = ratelimit.New(ratelimit.Config{RequestsPerSecond: 50, Burst: 100})

	watchStop := make(chan struct{})
	if err := loader.Watch(func(updated config.Config) {
		// The reload is only logged: the running engine keeps the
		// settings it was constructed with until the next restart.
		logger.Info("configuration reloaded", "path", *configPath)
	}, watchStop); err != nil {
		logger.Warn("configuration watch disabled", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	logger.Info("memoryd started", "config", *configPath, "dsn", cfg.Storage.DSN)
	<-ctx.Done()
	close(watchStop)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTO)
	defer shutdownCancel()
	if err := eng.Shutdown(shutdownCtx, *shutdownTO); err != nil {
		logger.Error("shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("memoryd stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
