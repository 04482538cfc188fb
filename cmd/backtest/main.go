// Command backtest runs a single backtest in-process and prints its report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backtest-lab/internal/backtest"
	"backtest-lab/internal/bootstrap"
	"backtest-lab/internal/config"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", envOr("BACKTEST_CONFIG", "backtest.toml"), "Path to TOML configuration file")

	symbol := flag.String("symbol", "", "Symbol to backtest (default: backtest.default_symbol)")
	start := flag.String("start", "", "Range start, RFC 3339 or YYYY-MM-DD (required)")
	end := flag.String("end", "", "Range end, RFC 3339 or YYYY-MM-DD (default: now)")
	timeframe := flag.String("timeframe", "", "Resample bars to this interval, e.g. 5m, 1h (default: jobs.default_timeframe)")
	quantity := flag.Float64("quantity", 0, "Quantity per entry (default: jobs.default_quantity)")

	strategyType := flag.String("strategy", domain.StrategyTypeMATouch, "Strategy: MA_TOUCH, MA_CROSS, TIME_EXIT, TRAILING_STOP")
	maWindow := flag.Int("ma-window", 0, "MA_TOUCH moving average window (0 = strategy default)")
	warmupBars := flag.Int("warmup-bars", -1, "MA_TOUCH warmup bars (-1 = strategy default)")
	fastWindow := flag.Int("fast-window", 5, "MA_CROSS fast window")
	slowWindow := flag.Int("slow-window", 20, "MA_CROSS slow window")
	allowShort := flag.Bool("allow-short", false, "MA_CROSS: go short on death cross")
	holdBars := flag.Int("hold-bars", 10, "TIME_EXIT holding period in bars")
	side := flag.String("side", "Long", "TIME_EXIT side: Long or Short")
	trailPct := flag.Float64("trail-pct", 0.10, "TRAILING_STOP trail from peak close")
	initialStopPct := flag.Float64("initial-stop-pct", 0.10, "TRAILING_STOP initial stop below entry")
	maxHoldBars := flag.Int("max-hold-bars", 100, "TRAILING_STOP maximum holding period in bars")

	stopLoss := flag.Float64("stop-loss", 0, "Engine stop loss as a fraction of entry (0 = off)")
	takeProfit := flag.Float64("take-profit", 0, "Engine take profit as a fraction of entry (0 = off)")

	format := flag.String("format", "table", "Output format: table, json, md, csv")
	persist := flag.Bool("persist", false, "Save the result to the configured result store")

	flag.Parse()

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

	if *symbol == "" {
		*symbol = cfg.Backtest.DefaultSymbol
	}
	if *timeframe == "" {
		*timeframe = cfg.Jobs.DefaultTimeframe
	}
	if !flagSet("quantity") {
		*quantity = cfg.Jobs.DefaultQuantity
	}
	if *start == "" {
		logger.Fatal("--start is required")
	}
	startTime, err := parseTime(*start)
	if err != nil {
		logger.Fatal("invalid --start", zap.Error(err))
	}
	var endTime time.Time
	if *end != "" {
		if endTime, err = parseTime(*end); err != nil {
			logger.Fatal("invalid --end", zap.Error(err))
		}
	}

	strategyCfg := buildStrategyConfig(strategyParams{
		Type:           *strategyType,
		MAWindow:       *maWindow,
		WarmupBars:     *warmupBars,
		FastWindow:     *fastWindow,
		SlowWindow:     *slowWindow,
		AllowShort:     *allowShort,
		HoldBars:       *holdBars,
		Side:           *side,
		TrailPct:       *trailPct,
		InitialStopPct: *initialStopPct,
		MaxHoldBars:    *maxHoldBars,
	})

	req := domain.BacktestRequest{
		Symbol:    strings.ToUpper(*symbol),
		StartDate: startTime,
		EndDate:   endTime,
		Quantity:  *quantity,
		Timeframe: *timeframe,
		Strategy:  strategyCfg,
		Risk:      buildRiskConfig(*stopLoss, *takeProfit),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bars, closeBars, err := bootstrap.OpenBarStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("open bar store", zap.Error(err))
	}
	defer closeBars()

	logger.Info("running backtest",
		zap.String("symbol", req.Symbol),
		zap.String("strategy", backtest.StrategyID(req.Strategy)),
		zap.Time("start", req.StartDate),
		zap.String("timeframe", req.Timeframe),
	)

	runner := backtest.NewRunner(bars)
	res := runner.Result(ctx, uuid.NewString(), req, func() time.Time { return time.Now().UTC() })

	if *persist {
		results, closeResults, err := bootstrap.OpenResultStore(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("open result store", zap.Error(err))
		}
		defer closeResults()
		if err := results.Save(ctx, res); err != nil {
			logger.Fatal("save result", zap.Error(err))
		}
		logger.Info("result saved", zap.String("job_id", res.JobID))
	}

	if err := writeOutput(os.Stdout, *format, reporting.NewGenerator(nil).Build(res)); err != nil {
		logger.Fatal("write output", zap.Error(err))
	}
	if res.Status == domain.StatusLabelFailed {
		os.Exit(2)
	}
}

func writeOutput(w io.Writer, format string, rep *reporting.Report) error {
	switch strings.ToLower(format) {
	case "table":
		printReport(w, rep)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "md", "markdown":
		_, err := fmt.Fprint(w, reporting.RenderMarkdown(rep))
		return err
	case "csv":
		return reporting.WriteTradesCSV(w, rep.Trades)
	default:
		return fmt.Errorf("unknown format %q (valid: table, json, md, csv)", format)
	}
}

// printReport outputs a human-readable result.
func printReport(w io.Writer, r *reporting.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Backtest Result ===")
	fmt.Fprintf(w, "Job ID:             %s\n", r.JobID)
	fmt.Fprintf(w, "Symbol:             %s\n", r.Symbol)
	fmt.Fprintf(w, "Strategy:           %s\n", r.StrategyID)
	fmt.Fprintf(w, "Status:             %s\n", r.Status)
	fmt.Fprintf(w, "Duration:           %v\n", r.FinishedAt.Sub(r.CreatedAt))
	fmt.Fprintln(w)

	if r.Error != "" {
		fmt.Fprintf(w, "Error:              %s\n", r.Error)
		return
	}

	s := r.Summary
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Trades:           %d (%d wins, %d losses)\n", s.TotalTrades, s.Wins, s.Losses)
	fmt.Fprintf(w, "  Win Rate:         %.2f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "  Total Profit:     %.4f\n", s.ProfitAbsTotal)
	fmt.Fprintf(w, "  Mean Profit:      %.2f%%\n", s.ProfitPctMean)
	fmt.Fprintf(w, "  Median Profit:    %.2f%%\n", s.ProfitPctMedian)
	fmt.Fprintf(w, "  Max Drawdown:     %.4f\n", s.MaxDrawdown)
	fmt.Fprintf(w, "  Max Loss Streak:  %d\n", s.MaxConsecutiveLosses)
	fmt.Fprintln(w)

	if len(r.ExitReasons) > 0 {
		fmt.Fprintln(w, "Exit Reasons:")
		for _, row := range r.ExitReasons {
			fmt.Fprintf(w, "  %-20s %d trades, %d wins, profit %.4f\n", row.ExitReason, row.Trades, row.Wins, row.ProfitAbs)
		}
	}
}

// flagSet reports whether the named flag was given on the command line.
func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
