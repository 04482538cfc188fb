package domain

import "time"

// BacktestRequest is a caller's description of one backtest job.
type BacktestRequest struct {
	Symbol    string         `json:"symbol"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Quantity  float64        `json:"quantity"`
	Timeframe string         `json:"timeframe,omitempty"` // e.g. "5m", "1h"; empty keeps stored resolution
	Strategy  StrategyConfig `json:"strategy"`
	Risk      RiskConfig     `json:"risk"`
}

// JobResult is the archived form of a terminal job.
// Corresponds to backtest_jobs and backtest_trades tables in PostgreSQL.
type JobResult struct {
	JobID      string
	Symbol     string
	StrategyID string
	Status     string // completed | failed
	Error      string // set when Status is failed
	Trades     []Trade
	CreatedAt  time.Time
	FinishedAt time.Time
}

// TradeSummary aggregates a completed job's trades.
type TradeSummary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // wins / total_trades

	ProfitAbsTotal float64 `json:"profit_abs_total"`

	// profit_pct distribution
	ProfitPctMean   float64 `json:"profit_pct_mean"`
	ProfitPctMedian float64 `json:"profit_pct_median"`
	ProfitPctP10    float64 `json:"profit_pct_p10"`
	ProfitPctP90    float64 `json:"profit_pct_p90"`
	ProfitPctMin    float64 `json:"profit_pct_min"`
	ProfitPctMax    float64 `json:"profit_pct_max"`
	ProfitPctStddev float64 `json:"profit_pct_stddev"`

	MaxDrawdown          float64 `json:"max_drawdown"` // on cumulative profit_abs
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}
