package metrics

import (
	"sort"

	"github.com/montanaflynn/stats"

	"backtest-lab/internal/domain"
)

// Summarize computes the summary of a completed job's trades.
// Trades must be in close order; MaxDrawdown and MaxConsecutiveLosses depend on it.
func Summarize(trades []domain.Trade) domain.TradeSummary {
	n := len(trades)
	if n == 0 {
		return domain.TradeSummary{}
	}

	wins := 0
	profitAbs := make([]float64, n)
	profitPct := make([]float64, n)
	for i := range trades {
		if trades[i].IsWin() {
			wins++
		}
		profitAbs[i] = trades[i].ProfitAbs
		profitPct[i] = trades[i].ProfitPct
	}

	sortedPct := make([]float64, n)
	copy(sortedPct, profitPct)
	sort.Float64s(sortedPct)

	// stats only fails on empty input, excluded above.
	total, _ := stats.Sum(profitAbs)
	mean, _ := stats.Mean(profitPct)
	median, _ := stats.Median(profitPct)

	return domain.TradeSummary{
		TotalTrades: n,
		Wins:        wins,
		Losses:      n - wins,
		WinRate:     computeWinRate(wins, n),

		ProfitAbsTotal: total,

		ProfitPctMean:   mean,
		ProfitPctMedian: median,
		ProfitPctP10:    computePercentile(sortedPct, 0.10),
		ProfitPctP90:    computePercentile(sortedPct, 0.90),
		ProfitPctMin:    sortedPct[0],
		ProfitPctMax:    sortedPct[n-1],
		ProfitPctStddev: computeStddev(profitPct),

		MaxDrawdown:          computeMaxDrawdown(profitAbs),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(profitAbs),
	}
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return 0
	}
	return sd
}

// computePercentile uses linear interpolation between closest ranks.
// sorted must be pre-sorted ASC. p is a fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative profit.
// max_drawdown = MAX(peak_cumulative - trough_cumulative), peak starts at 0.
func computeMaxDrawdown(profits []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, p := range profits {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds longest streak of profit <= 0.
func computeMaxConsecutiveLosses(profits []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, p := range profits {
		if p <= 0 {
			currentStreak++
			maxStreak = max(maxStreak, currentStreak)
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
