package strategy

import (
	"context"
	"fmt"

	"backtest-lab/internal/domain"
)

// TrailingStopStrategy buys the first bar and exits when price drops from peak.
// It trades once per job.
type TrailingStopStrategy struct {
	TrailPct       float64 // trailing stop percentage (e.g., 0.10 = 10%)
	InitialStopPct float64 // initial stop loss percentage (e.g., 0.10 = 10%)
	MaxHoldBars    int     // maximum hold in bars

	entered    bool
	entryIndex int
	peak       float64
}

// NewTrailingStopStrategy creates a new TrailingStopStrategy.
func NewTrailingStopStrategy(trailPct, initialStopPct float64, maxHoldBars int) *TrailingStopStrategy {
	return &TrailingStopStrategy{
		TrailPct:       trailPct,
		InitialStopPct: initialStopPct,
		MaxHoldBars:    maxHoldBars,
	}
}

// ID returns the strategy identifier including parameters.
func (s *TrailingStopStrategy) ID() string {
	return fmt.Sprintf("TRAILING_STOP_trail%.0f_stop%.0f_%dbars",
		s.TrailPct*100,
		s.InitialStopPct*100,
		s.MaxHoldBars)
}

// Decide implements Strategy.
//   - initial_stop = entry_price * (1 - initial_stop_pct)
//   - trailing_stop = peak_close * (1 - trail_pct)
//   - exit checks in order: initial stop, trailing stop, max hold
func (s *TrailingStopStrategy) Decide(_ context.Context, in *Input) (Decision, error) {
	bar := in.Bar()

	if !s.entered {
		s.entered = true
		s.entryIndex = in.Index
		s.peak = bar.Close
		return Enter(domain.SideLong), nil
	}
	if in.Position == nil {
		return Hold(), nil
	}

	if bar.Close > s.peak {
		s.peak = bar.Close
	}

	if bar.Close <= in.Position.EntryPrice*(1-s.InitialStopPct) {
		return Exit(domain.ExitReasonStopLoss), nil
	}
	if bar.Close <= s.peak*(1-s.TrailPct) {
		return Exit(domain.ExitReasonTrailingStop), nil
	}
	if in.Index-s.entryIndex >= s.MaxHoldBars {
		return Exit(domain.ExitReasonTimeExit), nil
	}
	return Hold(), nil
}

// Ensure TrailingStopStrategy implements Strategy
var _ Strategy = (*TrailingStopStrategy)(nil)
