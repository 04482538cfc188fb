package main

import (
	"path/filepath"
	"sort"
	"strings"

	"backtest-lab/internal/domain"
)

// symbolFromPath derives a symbol from a file name: data/btcusdt.csv -> BTCUSDT.
func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

// dropExisting removes bars whose timestamp already appears in existing.
func dropExisting(bars, existing []domain.PriceBar) []domain.PriceBar {
	if len(existing) == 0 {
		return bars
	}
	seen := make(map[int64]struct{}, len(existing))
	for _, b := range existing {
		seen[b.Timestamp.UnixMilli()] = struct{}{}
	}
	out := make([]domain.PriceBar, 0, len(bars))
	for _, b := range bars {
		if _, ok := seen[b.Timestamp.UnixMilli()]; ok {
			continue
		}
		out = append(out, b)
	}
	return out
}

func chunk(bars []domain.PriceBar, size int) [][]domain.PriceBar {
	var out [][]domain.PriceBar
	for len(bars) > size {
		out = append(out, bars[:size])
		bars = bars[size:]
	}
	if len(bars) > 0 {
		out = append(out, bars)
	}
	return out
}

// sortBars orders bars by timestamp; files are not required to be sorted.
func sortBars(bars []domain.PriceBar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
}
