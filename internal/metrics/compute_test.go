package metrics

import (
	"math"
	"testing"

	"backtest-lab/internal/domain"
)

func trade(profitAbs, profitPct float64) domain.Trade {
	return domain.Trade{ProfitAbs: profitAbs, ProfitPct: profitPct}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	if s != (domain.TradeSummary{}) {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestSummarize_Counts(t *testing.T) {
	trades := []domain.Trade{
		trade(10, 10),
		trade(-5, -5),
		trade(0, 0), // break-even is not a win
		trade(20, 20),
	}

	s := Summarize(trades)

	if s.TotalTrades != 4 || s.Wins != 2 || s.Losses != 2 {
		t.Errorf("expected 4 trades, 2 wins, 2 losses, got %d/%d/%d", s.TotalTrades, s.Wins, s.Losses)
	}
	if s.WinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %f", s.WinRate)
	}
	if s.ProfitAbsTotal != 25 {
		t.Errorf("expected total profit 25, got %f", s.ProfitAbsTotal)
	}
	if s.ProfitPctMin != -5 || s.ProfitPctMax != 20 {
		t.Errorf("expected min -5 max 20, got %f %f", s.ProfitPctMin, s.ProfitPctMax)
	}
	if s.ProfitPctMean != 6.25 {
		t.Errorf("expected mean 6.25, got %f", s.ProfitPctMean)
	}
	if s.ProfitPctMedian != 5 {
		t.Errorf("expected median 5, got %f", s.ProfitPctMedian)
	}
}

func TestSummarize_SingleTrade(t *testing.T) {
	s := Summarize([]domain.Trade{trade(-3, -1.5)})

	if s.ProfitPctStddev != 0 {
		t.Errorf("expected stddev 0 for one trade, got %f", s.ProfitPctStddev)
	}
	if s.ProfitPctP10 != -1.5 || s.ProfitPctP90 != -1.5 {
		t.Errorf("expected percentiles -1.5, got %f %f", s.ProfitPctP10, s.ProfitPctP90)
	}
	if s.MaxDrawdown != 3 {
		t.Errorf("expected drawdown 3, got %f", s.MaxDrawdown)
	}
	if s.MaxConsecutiveLosses != 1 {
		t.Errorf("expected 1 consecutive loss, got %d", s.MaxConsecutiveLosses)
	}
}

func TestComputeStddev_Sample(t *testing.T) {
	// Values 2,4,4,4,5,5,7,9: mean 5, sum of squares 32, sample variance 32/7
	got := computeStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := math.Sqrt(32.0 / 7.0)

	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestComputePercentile_Interpolates(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

	// idx = 0.1 * 10 = 1 → sorted[1]
	if got := computePercentile(sorted, 0.10); got != 2 {
		t.Errorf("p10: expected 2, got %f", got)
	}
	// idx = 0.9 * 10 = 9 → sorted[9]
	if got := computePercentile(sorted, 0.90); got != 10 {
		t.Errorf("p90: expected 10, got %f", got)
	}

	// idx = 0.5 * 3 = 1.5 → 2 + 0.5*(3-2)
	if got := computePercentile([]float64{1, 2, 3, 4}, 0.50); got != 2.5 {
		t.Errorf("p50: expected 2.5, got %f", got)
	}
}

func TestComputeMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		profits []float64
		want    float64
	}{
		{"empty", nil, 0},
		{"only gains", []float64{1, 2, 3}, 0},
		{"peak then trough", []float64{10, -4, -3, 5, -9}, 11},
		{"losses from start", []float64{-2, -3}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeMaxDrawdown(tt.profits); got != tt.want {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestComputeMaxConsecutiveLosses(t *testing.T) {
	got := computeMaxConsecutiveLosses([]float64{-1, 2, -1, 0, -3, 4, -1})

	if got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}
