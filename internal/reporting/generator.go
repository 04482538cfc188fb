package reporting

import (
	"context"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/metrics"
	"backtest-lab/internal/storage"
)

// Generator produces reports from job results.
type Generator struct {
	results storage.ResultStore // optional, for stored results
	now     func() time.Time    // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
// results may be nil when only in-memory results are rendered.
func NewGenerator(results storage.ResultStore) *Generator {
	return &Generator{
		results: results,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Build produces the report of a terminal job.
func (g *Generator) Build(r *domain.JobResult) *Report {
	rep := &Report{
		GeneratedAt: g.now(),
		JobID:       r.JobID,
		Symbol:      r.Symbol,
		StrategyID:  r.StrategyID,
		Status:      r.Status,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		FinishedAt:  r.FinishedAt,
		Trades:      r.Trades,
	}
	if r.Status == domain.StatusLabelCompleted {
		rep.Summary = metrics.Summarize(r.Trades)
		rep.ExitReasons = metrics.ByExitReason(r.Trades)
	}
	return rep
}

// Generate loads a stored result and builds its report.
// Returns storage.ErrNotFound if the job was never archived.
func (g *Generator) Generate(ctx context.Context, jobID string) (*Report, error) {
	if g.results == nil {
		return nil, storage.ErrNotFound
	}
	r, err := g.results.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return g.Build(r), nil
}

// Compare builds a strategy comparison over stored results of a symbol.
func (g *Generator) Compare(ctx context.Context, symbol string) (*ComparisonReport, error) {
	if g.results == nil {
		return nil, metrics.ErrNoTrades
	}
	rows, err := metrics.NewAggregator(g.results).CompareStrategies(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &ComparisonReport{
		GeneratedAt: g.now(),
		Symbol:      symbol,
		Strategies:  rows,
	}, nil
}
