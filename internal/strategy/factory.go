package strategy

import (
	"errors"
	"fmt"
	"strings"

	"backtest-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType   = errors.New("unknown strategy type")
	ErrMissingHoldBars       = errors.New("TIME_EXIT requires HoldBars")
	ErrMissingTrailPct       = errors.New("TRAILING_STOP requires TrailPct")
	ErrMissingInitialStopPct = errors.New("TRAILING_STOP requires InitialStopPct")
	ErrMissingMaxHoldBars    = errors.New("TRAILING_STOP requires MaxHoldBars")
	ErrMissingWindows        = errors.New("MA_CROSS requires FastWindow and SlowWindow")
	ErrInvalidParameter      = errors.New("invalid strategy parameter")
)

// FromConfig creates a fresh Strategy from domain.StrategyConfig.
// Every call returns a new instance; strategies are stateful and serve one job.
// Returned errors wrap domain.ErrInvalidConfiguration.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	s, err := fromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return s, nil
}

func fromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch strings.ToUpper(cfg.Type) {
	case domain.StrategyTypeMATouch:
		return fromMATouchConfig(cfg)
	case domain.StrategyTypeMACross:
		return fromMACrossConfig(cfg)
	case domain.StrategyTypeTimeExit:
		return fromTimeExitConfig(cfg)
	case domain.StrategyTypeTrailingStop:
		return fromTrailingStopConfig(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

// fromMATouchConfig creates MATouchStrategy from config.
func fromMATouchConfig(cfg domain.StrategyConfig) (*MATouchStrategy, error) {
	window := intOr(cfg.MAWindow, DefaultMATouchWindow)
	warmup := intOr(cfg.WarmupBars, DefaultMATouchWarmup)
	if window <= 0 {
		return nil, fmt.Errorf("%w: ma_window must be positive", ErrInvalidParameter)
	}
	if warmup < 0 {
		return nil, fmt.Errorf("%w: warmup_bars must not be negative", ErrInvalidParameter)
	}
	return NewMATouchStrategy(window, warmup), nil
}

// fromMACrossConfig creates MACrossStrategy from config.
func fromMACrossConfig(cfg domain.StrategyConfig) (*MACrossStrategy, error) {
	if cfg.FastWindow == nil || cfg.SlowWindow == nil {
		return nil, ErrMissingWindows
	}
	fast, slow := *cfg.FastWindow, *cfg.SlowWindow
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("%w: need 0 < fast_window < slow_window, got %d/%d", ErrInvalidParameter, fast, slow)
	}
	allowShort := cfg.AllowShort != nil && *cfg.AllowShort
	return NewMACrossStrategy(fast, slow, allowShort), nil
}

// fromTimeExitConfig creates TimeExitStrategy from config.
func fromTimeExitConfig(cfg domain.StrategyConfig) (*TimeExitStrategy, error) {
	if cfg.HoldBars == nil {
		return nil, ErrMissingHoldBars
	}
	if *cfg.HoldBars <= 0 {
		return nil, fmt.Errorf("%w: hold_bars must be positive", ErrInvalidParameter)
	}

	side := domain.SideLong
	if cfg.Side != "" {
		parsed, err := domain.ParseSide(cfg.Side)
		if err != nil {
			return nil, fmt.Errorf("%w: side %q", ErrInvalidParameter, cfg.Side)
		}
		side = parsed
	}
	return NewTimeExitStrategy(side, *cfg.HoldBars), nil
}

// openUnit reports whether v is a finite value strictly between 0 and 1.
func openUnit(v float64) bool {
	return domain.IsFinite(v) && v > 0 && v < 1
}

// fromTrailingStopConfig creates TrailingStopStrategy from config.
func fromTrailingStopConfig(cfg domain.StrategyConfig) (*TrailingStopStrategy, error) {
	if cfg.TrailPct == nil {
		return nil, ErrMissingTrailPct
	}
	if cfg.InitialStopPct == nil {
		return nil, ErrMissingInitialStopPct
	}
	if cfg.MaxHoldBars == nil {
		return nil, ErrMissingMaxHoldBars
	}
	if !openUnit(*cfg.TrailPct) || !openUnit(*cfg.InitialStopPct) {
		return nil, fmt.Errorf("%w: percentages must be in (0, 1)", ErrInvalidParameter)
	}
	if *cfg.MaxHoldBars <= 0 {
		return nil, fmt.Errorf("%w: max_hold_bars must be positive", ErrInvalidParameter)
	}

	return NewTrailingStopStrategy(
		*cfg.TrailPct,
		*cfg.InitialStopPct,
		*cfg.MaxHoldBars,
	), nil
}
