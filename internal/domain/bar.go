package domain

import (
	"fmt"
	"math"
	"time"
)

// PriceBar is one OHLCV bar.
// Corresponds to price_bars table in ClickHouse and one row of a bar CSV file.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp" csv:"timestamp"` // bar open time (UTC)
	Open      float64   `json:"open" csv:"open"`
	High      float64   `json:"high" csv:"high"`
	Low       float64   `json:"low" csv:"low"`
	Close     float64   `json:"close" csv:"close"`
	Volume    float64   `json:"volume" csv:"volume"`
}

// PriceSeries is an ordered, read-only sequence of bars for one symbol.
// Bars are sorted by Timestamp ascending with no duplicates.
type PriceSeries struct {
	Symbol string
	Bars   []PriceBar
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Validate checks ordering and price sanity of every bar.
// Returns an error wrapping ErrMalformedSeries that names the first offending bar.
func (s *PriceSeries) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil series", ErrMalformedSeries)
	}
	for i := range s.Bars {
		b := &s.Bars[i]
		if err := b.validate(); err != nil {
			return fmt.Errorf("%w: bar %d: %v", ErrMalformedSeries, i, err)
		}
		if i > 0 && !b.Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d: timestamp %s not after %s",
				ErrMalformedSeries, i, b.Timestamp.Format(time.RFC3339), s.Bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

func (b *PriceBar) validate() error {
	if b.Timestamp.IsZero() {
		return fmt.Errorf("zero timestamp")
	}
	for _, p := range []struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}} {
		if !IsFinite(p.v) || p.v <= 0 {
			return fmt.Errorf("%s price %v is not a positive finite number", p.name, p.v)
		}
	}
	if b.Low > math.Min(b.Open, b.Close) || b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("high/low %v/%v do not bound open/close %v/%v", b.High, b.Low, b.Open, b.Close)
	}
	if !IsFinite(b.Volume) || b.Volume < 0 {
		return fmt.Errorf("volume %v is negative or not finite", b.Volume)
	}
	return nil
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
