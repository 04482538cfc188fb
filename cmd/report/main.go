// Command report renders archived backtest results: one job's report or a
// strategy comparison across all stored jobs of a symbol.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"backtest-lab/internal/bootstrap"
	"backtest-lab/internal/config"
	"backtest-lab/internal/metrics"
	"backtest-lab/internal/reporting"
	"backtest-lab/internal/storage"
)

func main() {
	configPath := flag.String("config", envOr("BACKTEST_CONFIG", "backtest.toml"), "Path to TOML configuration file")
	jobID := flag.String("job", "", "Render the report of this archived job")
	symbol := flag.String("symbol", "", "Compare strategies over archived jobs of this symbol")
	format := flag.String("format", "md", "Output format: md, json, csv (csv for --job only)")
	outputDir := flag.String("output-dir", "", "Write the report into this directory instead of stdout")
	flag.Parse()

	if (*jobID == "") == (*symbol == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of --job or --symbol is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, closeResults, err := bootstrap.OpenResultStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("open result store", zap.Error(err))
	}
	defer closeResults()

	gen := reporting.NewGenerator(results)

	var (
		body string
		name string
	)
	if *jobID != "" {
		body, err = renderJob(ctx, gen, *jobID, *format)
		name = "REPORT_" + *jobID
	} else {
		sym := strings.ToUpper(strings.TrimSpace(*symbol))
		body, err = renderComparison(ctx, gen, sym, *format)
		name = "COMPARISON_" + sym
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.Fatal("job not archived", zap.String("job_id", *jobID))
	case errors.Is(err, metrics.ErrNoTrades):
		logger.Fatal("no completed jobs for symbol", zap.String("symbol", *symbol))
	case err != nil:
		logger.Fatal("render report", zap.Error(err))
	}

	if *outputDir == "" {
		fmt.Print(body)
		return
	}
	path := filepath.Join(*outputDir, name+"."+extension(*format))
	if err := writeFile(path, body); err != nil {
		logger.Fatal("write report", zap.String("path", path), zap.Error(err))
	}
	logger.Info("report written", zap.String("path", path))
}

func renderJob(ctx context.Context, gen *reporting.Generator, id, format string) (string, error) {
	rep, err := gen.Generate(ctx, id)
	if err != nil {
		return "", err
	}
	switch format {
	case "md":
		return reporting.RenderMarkdown(rep), nil
	case "csv":
		return reporting.RenderCSV(rep)
	case "json":
		return renderJSON(rep)
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func renderComparison(ctx context.Context, gen *reporting.Generator, symbol, format string) (string, error) {
	rep, err := gen.Compare(ctx, symbol)
	if err != nil {
		return "", err
	}
	switch format {
	case "md":
		return reporting.RenderComparisonMarkdown(rep), nil
	case "json":
		return renderJSON(rep)
	default:
		return "", fmt.Errorf("format %q not supported for comparisons", format)
	}
}

func renderJSON(v any) (string, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func extension(format string) string {
	if format == "json" || format == "csv" {
		return format
	}
	return "md"
}

func writeFile(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
