package backtest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// StoreSource loads a job's series from a bar store.
// Implements job.SeriesSource.
type StoreSource struct {
	Bars      storage.PriceBarReader
	Symbol    string
	Start     time.Time
	End       time.Time
	Timeframe string // optional, see ParseTimeframe
}

// Load reads bars in [Start, End] and resamples them to Timeframe.
// A zero End reads up to now.
// A known symbol with no bars in range yields an empty series; a symbol the
// store has never seen is InvalidConfiguration.
func (s StoreSource) Load(ctx context.Context) (*domain.PriceSeries, error) {
	if s.Symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", domain.ErrInvalidConfiguration)
	}
	end := s.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if end.Before(s.Start) {
		return nil, fmt.Errorf("%w: end_date %s before start_date %s", domain.ErrInvalidConfiguration,
			end.Format(time.RFC3339), s.Start.Format(time.RFC3339))
	}
	tf, err := ParseTimeframe(s.Timeframe)
	if err != nil {
		return nil, err
	}

	bars, err := s.Bars.GetRange(ctx, s.Symbol, s.Start, end)
	if err != nil {
		return nil, fmt.Errorf("read bars %s: %w", s.Symbol, err)
	}
	if len(bars) == 0 {
		symbols, err := s.Bars.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
		if !slices.Contains(symbols, s.Symbol) {
			return nil, fmt.Errorf("%w: unknown symbol %q", domain.ErrInvalidConfiguration, s.Symbol)
		}
	}
	return &domain.PriceSeries{Symbol: s.Symbol, Bars: Resample(bars, tf)}, nil
}
