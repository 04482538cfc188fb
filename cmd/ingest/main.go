// Command ingest loads OHLCV bar files into the configured bar store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"backtest-lab/internal/bootstrap"
	"backtest-lab/internal/config"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/storage/csvfile"
)

func main() {
	configPath := flag.String("config", envOr("BACKTEST_CONFIG", "backtest.toml"), "Path to TOML configuration file")
	backend := flag.String("backend", "", "Override storage.bar_backend: memory, csv, clickhouse")
	symbol := flag.String("symbol", "", "Symbol for all files (default: file name without extension)")
	dir := flag.String("dir", "", "Ingest every *.csv file in this directory")
	batchSize := flag.Int("batch", 5000, "Bars per insert batch")
	skipExisting := flag.Bool("skip-existing", true, "Drop bars whose timestamp is already stored instead of failing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Storage.BarBackend = *backend
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	files := flag.Args()
	if *dir != "" {
		matches, err := filepath.Glob(filepath.Join(*dir, "*.csv"))
		if err != nil {
			logger.Fatal("list directory", zap.String("dir", *dir), zap.Error(err))
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		logger.Fatal("no input files; pass paths as arguments or use --dir")
	}
	if *batchSize <= 0 {
		logger.Fatal("--batch must be positive", zap.Int("batch", *batchSize))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenBarStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("open bar store", zap.Error(err))
	}
	defer closeStore()

	var failed int
	for _, path := range files {
		sym := *symbol
		if sym == "" {
			sym = symbolFromPath(path)
		}
		n, err := ingestFile(ctx, store, path, sym, *batchSize, *skipExisting)
		if err != nil {
			failed++
			logger.Error("ingest failed", zap.String("file", path), zap.String("symbol", sym), zap.Error(err))
			continue
		}
		logger.Info("ingested", zap.String("file", path), zap.String("symbol", sym), zap.Int("bars", n))
		if ctx.Err() != nil {
			break
		}
	}

	if failed > 0 {
		logger.Error("ingest finished with errors", zap.Int("failed_files", failed), zap.Int("files", len(files)))
		os.Exit(1)
	}
	logger.Info("ingest complete", zap.Int("files", len(files)))
}

// ingestFile inserts the bars of one file and returns how many were written.
func ingestFile(ctx context.Context, store storage.PriceBarStore, path, symbol string, batchSize int, skipExisting bool) (int, error) {
	bars, err := csvfile.ReadBarsFile(path)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}
	sortBars(bars)

	if skipExisting {
		existing, err := store.GetRange(ctx, symbol, bars[0].Timestamp, bars[len(bars)-1].Timestamp)
		if err != nil {
			return 0, fmt.Errorf("read existing bars: %w", err)
		}
		bars = dropExisting(bars, existing)
	}

	written := 0
	for _, batch := range chunk(bars, batchSize) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := store.InsertBulk(ctx, symbol, batch); err != nil {
			return written, fmt.Errorf("insert batch at %s: %w", batch[0].Timestamp.Format(time.RFC3339), err)
		}
		written += len(batch)
	}
	return written, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
