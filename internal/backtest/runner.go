package backtest

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/job"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/strategy"
)

// BuildSpec turns a request into a job spec reading bars from the given store.
// Configuration errors are not reported here; they surface as the job's Failed status.
func BuildSpec(bars storage.PriceBarReader, req domain.BacktestRequest) job.Spec {
	cfg := req.Strategy
	return job.Spec{
		Symbol:     req.Symbol,
		StrategyID: StrategyID(cfg),
		Source: StoreSource{
			Bars:      bars,
			Symbol:    req.Symbol,
			Start:     req.StartDate,
			End:       req.EndDate,
			Timeframe: req.Timeframe,
		},
		Strategy: func() (strategy.Strategy, error) { return strategy.FromConfig(cfg) },
		Config: simulation.Config{
			Quantity: req.Quantity,
			Risk:     req.Risk,
		},
	}
}

// StrategyID returns the ID of the strategy cfg builds, or the bare type when cfg is invalid.
func StrategyID(cfg domain.StrategyConfig) string {
	s, err := strategy.FromConfig(cfg)
	if err != nil {
		return cfg.Type
	}
	return s.ID()
}

// Runner executes backtests synchronously in the calling goroutine.
type Runner struct {
	bars storage.PriceBarReader
}

// NewRunner creates a new backtest runner.
func NewRunner(bars storage.PriceBarReader) *Runner {
	return &Runner{bars: bars}
}

// Run executes the request to the end and returns its trades.
// onProgress is optional.
func (r *Runner) Run(ctx context.Context, req domain.BacktestRequest, onProgress simulation.ProgressFunc) ([]domain.Trade, error) {
	spec := BuildSpec(r.bars, req)
	if err := spec.Config.Validate(); err != nil {
		return nil, err
	}
	strat, err := spec.Strategy()
	if err != nil {
		return nil, err
	}
	series, err := spec.Source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load price series: %w", err)
	}

	loop := simulation.NewLoop(simulation.LoopOptions{
		Strategy:   strat,
		Config:     spec.Config,
		OnProgress: onProgress,
	})
	return loop.Run(ctx, series)
}

// Result runs the request and packs the outcome the way the registry archives it.
func (r *Runner) Result(ctx context.Context, id string, req domain.BacktestRequest, now func() time.Time) *domain.JobResult {
	res := &domain.JobResult{
		JobID:      id,
		Symbol:     req.Symbol,
		StrategyID: StrategyID(req.Strategy),
		CreatedAt:  now(),
	}
	trades, err := r.Run(ctx, req, nil)
	res.FinishedAt = now()
	if err != nil {
		res.Status = domain.StatusLabelFailed
		res.Error = err.Error()
		return res
	}
	res.Status = domain.StatusLabelCompleted
	res.Trades = trades
	return res
}
