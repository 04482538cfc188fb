package reporting

import (
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/metrics"
)

// Report represents the report of one finished backtest job.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	JobID       string
	Symbol      string
	StrategyID  string
	Status      string // completed | failed
	Error       string // set for failed jobs
	CreatedAt   time.Time
	FinishedAt  time.Time

	// Trade statistics (zero for failed jobs)
	Summary     domain.TradeSummary
	ExitReasons []metrics.ExitReasonRow

	// Trades in close order
	Trades []domain.Trade
}

// ComparisonReport compares strategies over archived jobs of one symbol.
type ComparisonReport struct {
	GeneratedAt time.Time
	Symbol      string
	Strategies  []metrics.StrategyRow
}
