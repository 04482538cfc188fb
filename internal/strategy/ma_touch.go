package strategy

import (
	"context"
	"fmt"

	"backtest-lab/internal/domain"
)

// MATouchStrategy is a short-only moving-average retest.
//
// Entry: price trades clearly above the MA, breaks below it, then a later bar's
// high touches the MA while the bar closes below it (rejection).
//
// Management of an open short:
//   - one scale-in when close >= first entry * (1 + AddPct)
//   - stop when close >= avg entry * (1 + StopPct)
//   - full target when profit >= TargetPct
//   - half exit when profit >= PartialPct, then stop moves to breakeven
type MATouchStrategy struct {
	MAWindow   int // moving average length
	WarmupBars int // bars ignored before trading

	AddPct     float64
	StopPct    float64
	TargetPct  float64
	PartialPct float64

	wasAboveMA   bool
	hadBreakdown bool
	partialTaken bool
}

// Defaults for MATouchStrategy.
const (
	DefaultMATouchWindow = 25
	DefaultMATouchWarmup = 400
)

// NewMATouchStrategy creates a new MATouchStrategy.
func NewMATouchStrategy(maWindow, warmupBars int) *MATouchStrategy {
	return &MATouchStrategy{
		MAWindow:   maWindow,
		WarmupBars: warmupBars,
		AddPct:     0.02,
		StopPct:    0.02,
		TargetPct:  0.03,
		PartialPct: 0.01,
	}
}

// ID returns the strategy identifier including parameters.
func (s *MATouchStrategy) ID() string {
	return fmt.Sprintf("MA_TOUCH_ma%d_warmup%d", s.MAWindow, s.WarmupBars)
}

// Decide implements Strategy.
func (s *MATouchStrategy) Decide(_ context.Context, in *Input) (Decision, error) {
	if in.Index < s.WarmupBars {
		return Hold(), nil
	}

	bar := in.Bar()
	ma := sma(in.History, s.MAWindow)

	if in.Position == nil {
		return s.decideFlat(bar, ma), nil
	}
	return s.decideOpen(bar, in.Position), nil
}

func (s *MATouchStrategy) decideFlat(bar domain.PriceBar, ma float64) Decision {
	s.partialTaken = false

	if bar.Close > ma && bar.Low > ma {
		s.wasAboveMA = true
		s.hadBreakdown = false
	}

	if s.wasAboveMA && bar.Close < ma {
		s.hadBreakdown = true
		s.wasAboveMA = false
	}

	if s.hadBreakdown && bar.High >= ma && bar.Close < ma {
		s.hadBreakdown = false
		return Enter(domain.SideShort)
	}

	// Trading clearly above the MA again invalidates the breakdown.
	if bar.Low > ma {
		s.hadBreakdown = false
	}
	return Hold()
}

func (s *MATouchStrategy) decideOpen(bar domain.PriceBar, pos *domain.Position) Decision {
	avg := pos.EntryPrice

	if pos.Entries < 2 && bar.Close >= pos.FirstPrice*(1+s.AddPct) {
		return Add()
	}

	if bar.Close >= avg*(1+s.StopPct) {
		return Exit(domain.ExitReasonStopLoss)
	}

	profit := (avg - bar.Close) / avg
	if profit >= s.TargetPct {
		return Exit(domain.ExitReasonTakeProfit)
	}

	if profit >= s.PartialPct && !s.partialTaken {
		s.partialTaken = true
		return Reduce(0.5, domain.ExitReasonTakeProfitPartial)
	}

	if s.partialTaken && bar.Close >= avg {
		return Exit(domain.ExitReasonBreakevenStop)
	}

	return Hold()
}

// Ensure MATouchStrategy implements Strategy
var _ Strategy = (*MATouchStrategy)(nil)
