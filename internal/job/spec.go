package job

import (
	"context"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/strategy"
)

// SeriesSource supplies the price series of a job.
// Load is called once, inside the job, before the simulation starts.
type SeriesSource interface {
	Load(ctx context.Context) (*domain.PriceSeries, error)
}

// StaticSeries is a SeriesSource over an already loaded series.
type StaticSeries struct {
	Series *domain.PriceSeries
}

// Load returns the wrapped series.
func (s StaticSeries) Load(context.Context) (*domain.PriceSeries, error) {
	return s.Series, nil
}

// StrategyFactory builds the strategy instance of one job.
type StrategyFactory func() (strategy.Strategy, error)

// Spec describes what a job runs.
type Spec struct {
	Symbol     string // informational; the series carries the traded symbol
	StrategyID string // informational
	Source     SeriesSource
	Strategy   StrategyFactory
	Config     simulation.Config
}

// ResultSink archives terminal jobs.
type ResultSink interface {
	Save(ctx context.Context, r *domain.JobResult) error
}
