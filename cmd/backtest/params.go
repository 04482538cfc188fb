package main

import (
	"fmt"
	"strings"
	"time"

	"backtest-lab/internal/domain"
)

// strategyParams collects the strategy flags.
type strategyParams struct {
	Type           string
	MAWindow       int
	WarmupBars     int
	FastWindow     int
	SlowWindow     int
	AllowShort     bool
	HoldBars       int
	Side           string
	TrailPct       float64
	InitialStopPct float64
	MaxHoldBars    int
}

// buildStrategyConfig sets only the parameters of the selected strategy type.
func buildStrategyConfig(p strategyParams) domain.StrategyConfig {
	cfg := domain.StrategyConfig{Type: strings.ToUpper(p.Type)}

	switch cfg.Type {
	case domain.StrategyTypeMATouch:
		if p.MAWindow > 0 {
			cfg.MAWindow = &p.MAWindow
		}
		if p.WarmupBars >= 0 {
			cfg.WarmupBars = &p.WarmupBars
		}
	case domain.StrategyTypeMACross:
		cfg.FastWindow = &p.FastWindow
		cfg.SlowWindow = &p.SlowWindow
		cfg.AllowShort = &p.AllowShort
	case domain.StrategyTypeTimeExit:
		cfg.HoldBars = &p.HoldBars
		cfg.Side = p.Side
	case domain.StrategyTypeTrailingStop:
		cfg.TrailPct = &p.TrailPct
		cfg.InitialStopPct = &p.InitialStopPct
		cfg.MaxHoldBars = &p.MaxHoldBars
	}
	return cfg
}

// buildRiskConfig leaves a level unset when its flag is zero.
func buildRiskConfig(stopLoss, takeProfit float64) domain.RiskConfig {
	var r domain.RiskConfig
	if stopLoss != 0 {
		r.StopLossPct = &stopLoss
	}
	if takeProfit != 0 {
		r.TakeProfitPct = &takeProfit
	}
	return r
}

// parseTime accepts RFC 3339 timestamps and bare YYYY-MM-DD dates (UTC midnight).
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as RFC 3339 or YYYY-MM-DD", s)
}
