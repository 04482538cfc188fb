package strategy

import (
	"context"
	"fmt"

	"backtest-lab/internal/domain"
)

// MACrossStrategy trades fast/slow moving-average crossovers.
// Golden cross enters Long (or exits a Short); death cross exits a Long
// (or enters Short when AllowShort is set).
type MACrossStrategy struct {
	FastWindow int
	SlowWindow int
	AllowShort bool
}

// NewMACrossStrategy creates a new MACrossStrategy.
func NewMACrossStrategy(fast, slow int, allowShort bool) *MACrossStrategy {
	return &MACrossStrategy{FastWindow: fast, SlowWindow: slow, AllowShort: allowShort}
}

// ID returns the strategy identifier including parameters.
func (s *MACrossStrategy) ID() string {
	id := fmt.Sprintf("MA_CROSS_%d_%d", s.FastWindow, s.SlowWindow)
	if s.AllowShort {
		id += "_ls"
	}
	return id
}

// Decide implements Strategy.
func (s *MACrossStrategy) Decide(_ context.Context, in *Input) (Decision, error) {
	// Need a full slow window on the previous bar to detect a cross.
	if len(in.History) <= s.SlowWindow {
		return Hold(), nil
	}

	prev := in.History[:len(in.History)-1]
	prevFast, prevSlow := sma(prev, s.FastWindow), sma(prev, s.SlowWindow)
	fast, slow := sma(in.History, s.FastWindow), sma(in.History, s.SlowWindow)

	golden := prevFast <= prevSlow && fast > slow
	death := prevFast >= prevSlow && fast < slow

	pos := in.Position
	switch {
	case golden && pos != nil && pos.Side == domain.SideShort:
		return Exit(domain.ExitReasonSignal), nil
	case golden && pos == nil:
		return Enter(domain.SideLong), nil
	case death && pos != nil && pos.Side == domain.SideLong:
		return Exit(domain.ExitReasonSignal), nil
	case death && pos == nil && s.AllowShort:
		return Enter(domain.SideShort), nil
	}
	return Hold(), nil
}

var _ Strategy = (*MACrossStrategy)(nil)
