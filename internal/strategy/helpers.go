package strategy

import (
	"github.com/montanaflynn/stats"

	"backtest-lab/internal/domain"
)

// sma returns the simple moving average of the last window closes ending at the
// end of bars. Fewer than window bars average what is available.
func sma(bars []domain.PriceBar, window int) float64 {
	if len(bars) == 0 || window <= 0 {
		return 0
	}
	if len(bars) > window {
		bars = bars[len(bars)-window:]
	}

	closes := make(stats.Float64Data, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	mean, err := stats.Mean(closes)
	if err != nil {
		return 0
	}
	return mean
}

// intOr returns *p, or def when p is nil.
func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
