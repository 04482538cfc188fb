package domain

// StrategyConfig represents strategy configuration parameters.
// Unset parameters fall back to the strategy's defaults where it has one.
type StrategyConfig struct {
	Type string `json:"type"` // "MA_TOUCH" | "MA_CROSS" | "TIME_EXIT" | "TRAILING_STOP"

	// MA_TOUCH parameters
	MAWindow   *int `json:"ma_window,omitempty"`
	WarmupBars *int `json:"warmup_bars,omitempty"`

	// MA_CROSS parameters
	FastWindow *int  `json:"fast_window,omitempty"`
	SlowWindow *int  `json:"slow_window,omitempty"`
	AllowShort *bool `json:"allow_short,omitempty"`

	// TIME_EXIT parameters
	HoldBars *int   `json:"hold_bars,omitempty"`
	Side     string `json:"side,omitempty"` // "Long" | "Short", default Long

	// TRAILING_STOP parameters
	TrailPct       *float64 `json:"trail_pct,omitempty"`
	InitialStopPct *float64 `json:"initial_stop_pct,omitempty"`
	MaxHoldBars    *int     `json:"max_hold_bars,omitempty"`
}

// Strategy type constants
const (
	StrategyTypeMATouch      = "MA_TOUCH"
	StrategyTypeMACross      = "MA_CROSS"
	StrategyTypeTimeExit     = "TIME_EXIT"
	StrategyTypeTrailingStop = "TRAILING_STOP"
)

// RiskConfig holds optional engine-level stop-loss and take-profit levels.
// Percentages are fractions of the average entry price (0.02 = 2%).
type RiskConfig struct {
	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`
}
