package strategy

import (
	"context"
	"fmt"

	"backtest-lab/internal/domain"
)

// TimeExitStrategy enters on the first bar and exits after a fixed number of bars.
// It trades once per job.
type TimeExitStrategy struct {
	Side     domain.Side
	HoldBars int

	entryIndex int
	entered    bool
}

// NewTimeExitStrategy creates a new TimeExitStrategy.
func NewTimeExitStrategy(side domain.Side, holdBars int) *TimeExitStrategy {
	return &TimeExitStrategy{Side: side, HoldBars: holdBars}
}

// ID returns the strategy identifier including parameters.
func (s *TimeExitStrategy) ID() string {
	return fmt.Sprintf("TIME_EXIT_%s_%dbars", s.Side, s.HoldBars)
}

// Decide implements Strategy.
//   - entry at bar 0 close
//   - exit at bar entry+HoldBars close, reason time_exit
func (s *TimeExitStrategy) Decide(_ context.Context, in *Input) (Decision, error) {
	if !s.entered {
		s.entered = true
		s.entryIndex = in.Index
		return Enter(s.Side), nil
	}
	if in.Position != nil && in.Index-s.entryIndex >= s.HoldBars {
		return Exit(domain.ExitReasonTimeExit), nil
	}
	return Hold(), nil
}

// Ensure TimeExitStrategy implements Strategy
var _ Strategy = (*TimeExitStrategy)(nil)
