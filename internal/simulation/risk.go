package simulation

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"backtest-lab/internal/domain"
)

// riskLevels are the absolute stop and target prices of an open position.
// A zero level is disabled.
type riskLevels struct {
	stop   float64
	target float64
}

func validateRisk(r domain.RiskConfig) error {
	if r.StopLossPct != nil {
		if v := *r.StopLossPct; !domain.IsFinite(v) || v <= 0 || v >= 1 {
			return fmt.Errorf("%w: stop_loss_pct %v must be in (0, 1)", ErrInvalidRisk, v)
		}
	}
	if r.TakeProfitPct != nil {
		if v := *r.TakeProfitPct; !domain.IsFinite(v) || v <= 0 {
			return fmt.Errorf("%w: take_profit_pct %v must be positive", ErrInvalidRisk, v)
		}
	}
	return nil
}

// levelsFor computes stop/target prices from the average entry price.
//
//	Long:  stop = entry*(1-sl), target = entry*(1+tp)
//	Short: stop = entry*(1+sl), target = entry*(1-tp)
func levelsFor(pos *domain.Position, r domain.RiskConfig) riskLevels {
	var lv riskLevels
	entry := decimal.NewFromFloat(pos.EntryPrice)
	one := decimal.NewFromInt(1)

	if r.StopLossPct != nil {
		sl := decimal.NewFromFloat(*r.StopLossPct)
		if pos.Side == domain.SideLong {
			lv.stop = entry.Mul(one.Sub(sl)).InexactFloat64()
		} else {
			lv.stop = entry.Mul(one.Add(sl)).InexactFloat64()
		}
	}
	if r.TakeProfitPct != nil {
		tp := decimal.NewFromFloat(*r.TakeProfitPct)
		if pos.Side == domain.SideLong {
			lv.target = entry.Mul(one.Add(tp)).InexactFloat64()
		} else if t := entry.Mul(one.Sub(tp)); t.IsPositive() {
			lv.target = t.InexactFloat64()
		}
	}
	return lv
}

// checkRisk reports whether bar triggers the stop or target of pos, with the fill price.
// The fill is the level itself, or the bar open when the bar gapped through it.
// Stop wins when both trigger on the same bar.
func checkRisk(pos *domain.Position, r domain.RiskConfig, bar domain.PriceBar) (domain.ExitReason, float64, bool) {
	lv := levelsFor(pos, r)

	if pos.Side == domain.SideLong {
		if lv.stop > 0 && bar.Low <= lv.stop {
			return domain.ExitReasonStopLoss, math.Min(bar.Open, lv.stop), true
		}
		if lv.target > 0 && bar.High >= lv.target {
			return domain.ExitReasonTakeProfit, math.Max(bar.Open, lv.target), true
		}
		return "", 0, false
	}

	if lv.stop > 0 && bar.High >= lv.stop {
		return domain.ExitReasonStopLoss, math.Max(bar.Open, lv.stop), true
	}
	if lv.target > 0 && bar.Low <= lv.target {
		return domain.ExitReasonTakeProfit, math.Min(bar.Open, lv.target), true
	}
	return "", 0, false
}
