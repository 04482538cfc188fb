// Command server runs the backtest HTTP API: job submission and queries,
// websocket progress streams, Prometheus metrics and terminal-job retention.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/bootstrap"
	"backtest-lab/internal/config"
	"backtest-lab/internal/job"
	"backtest-lab/internal/server"
	"backtest-lab/internal/server/handler"
	"backtest-lab/internal/server/ws"
)

func main() {
	configPath := flag.String("config", envOr("BACKTEST_CONFIG", "backtest.toml"), "Path to TOML configuration file")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	bars, closeBars, err := bootstrap.OpenBarStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeBars()

	results, closeResults, err := bootstrap.OpenResultStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeResults()

	bus, closeBus, err := bootstrap.OpenProgressBus(ctx, cfg.Progress)
	if err != nil {
		return err
	}
	defer closeBus()

	sinks := map[string]job.ResultSink{cfg.Storage.ResultBackend: results}
	archiver, err := bootstrap.OpenArchiver(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	if archiver != nil {
		sinks["s3"] = archiver
	}

	registry := job.NewRegistry(job.RegistryOptions{
		Logger:          logger,
		Publisher:       bus,
		Sinks:           sinks,
		ProgressStep:    cfg.Progress.Step,
		MaxConcurrent:   cfg.Jobs.MaxConcurrent,
		RetentionTTL:    cfg.Jobs.Retention.Duration,
		CleanupInterval: cfg.Jobs.CleanupInterval.Duration,
	})
	svc := backtest.NewService(backtest.ServiceOptions{
		Registry:         registry,
		Bars:             bars,
		DefaultTimeframe: cfg.Jobs.DefaultTimeframe,
		Logger:           logger,
	})

	srv := server.NewServer(server.Config{
		Addr:         cfg.Server.Addr,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}, server.Handlers{
		Backtest: handler.NewBacktestHandler(svc, registry, results, logger),
		Data:     handler.NewDataHandler(svc, logger),
		Progress: ws.NewProgressStream(registry, bus, cfg.Server.CORSOrigins, logger),
	}, logger)

	logger.Info("backtest server configured",
		zap.String("bar_backend", cfg.Storage.BarBackend),
		zap.String("result_backend", cfg.Storage.ResultBackend),
		zap.String("progress_backend", cfg.Progress.Backend),
		zap.Bool("archive", archiver != nil),
		zap.Int("max_concurrent", cfg.Jobs.MaxConcurrent),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()

		// Jobs first: cancelling them ends open progress streams.
		regErr := registry.Shutdown(shutdownCtx)
		srvErr := srv.Shutdown(shutdownCtx)
		return errors.Join(regErr, srvErr)
	})
	return g.Wait()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
