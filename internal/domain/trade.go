package domain

import "time"

// ExitReason identifies why a position was closed.
type ExitReason string

// Exit reasons produced by the simulation loop and built-in strategies.
const (
	ExitReasonSignal            ExitReason = "signal_exit"
	ExitReasonStopLoss          ExitReason = "stop_loss"
	ExitReasonTakeProfit        ExitReason = "take_profit"
	ExitReasonEndOfData         ExitReason = "end_of_data"
	ExitReasonTakeProfitPartial ExitReason = "take_profit_partial"
	ExitReasonBreakevenStop     ExitReason = "breakeven_stop"
	ExitReasonTimeExit          ExitReason = "time_exit"
	ExitReasonTrailingStop      ExitReason = "trailing_stop"
)

// Trade is an immutable closed-trade record.
// JSON shape is consumed by external clients and must stay stable.
type Trade struct {
	Symbol     string     `json:"symbol" csv:"symbol"`
	Side       Side       `json:"side" csv:"side"`
	EntryPrice float64    `json:"entry_price" csv:"entry_price"`
	ExitPrice  float64    `json:"exit_price" csv:"exit_price"`
	Quantity   float64    `json:"quantity" csv:"quantity"`
	ProfitPct  float64    `json:"profit_pct" csv:"profit_pct"` // profit_abs / (entry_price*quantity) * 100
	ProfitAbs  float64    `json:"profit_abs" csv:"profit_abs"`
	EntryTime  time.Time  `json:"entry_time" csv:"entry_time"` // RFC 3339
	ExitTime   time.Time  `json:"exit_time" csv:"exit_time"`
	ExitReason ExitReason `json:"exit_reason" csv:"exit_reason"`
}

// IsWin reports whether the trade closed with a positive profit.
func (t *Trade) IsWin() bool {
	return t.ProfitAbs > 0
}
