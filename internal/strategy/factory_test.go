package strategy

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
)

func ptr[T any](v T) *T {
	return &v
}

func TestFromConfig_MATouchDefaults(t *testing.T) {
	s, err := FromConfig(domain.StrategyConfig{Type: domain.StrategyTypeMATouch})
	require.NoError(t, err)

	mt, ok := s.(*MATouchStrategy)
	require.True(t, ok, "expected *MATouchStrategy, got %T", s)
	assert.Equal(t, 25, mt.MAWindow)
	assert.Equal(t, 400, mt.WarmupBars)
	assert.Equal(t, "MA_TOUCH_ma25_warmup400", mt.ID())
}

func TestFromConfig_CaseInsensitiveType(t *testing.T) {
	s, err := FromConfig(domain.StrategyConfig{Type: "time_exit", HoldBars: ptr(3), Side: "short"})
	require.NoError(t, err)

	te, ok := s.(*TimeExitStrategy)
	require.True(t, ok)
	assert.Equal(t, domain.SideShort, te.Side)
	assert.Equal(t, 3, te.HoldBars)
}

func TestFromConfig_TrailingStop(t *testing.T) {
	s, err := FromConfig(domain.StrategyConfig{
		Type:           domain.StrategyTypeTrailingStop,
		TrailPct:       ptr(0.10),
		InitialStopPct: ptr(0.05),
		MaxHoldBars:    ptr(60),
	})
	require.NoError(t, err)
	assert.Equal(t, "TRAILING_STOP_trail10_stop5_60bars", s.ID())
}

func TestFromConfig_NewInstanceEachCall(t *testing.T) {
	cfg := domain.StrategyConfig{Type: domain.StrategyTypeMACross, FastWindow: ptr(2), SlowWindow: ptr(4)}
	a, err := FromConfig(cfg)
	require.NoError(t, err)
	b, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func trailingCfg(trail, stop float64, maxHold int) domain.StrategyConfig {
	return domain.StrategyConfig{
		Type:           domain.StrategyTypeTrailingStop,
		TrailPct:       ptr(trail),
		InitialStopPct: ptr(stop),
		MaxHoldBars:    ptr(maxHold),
	}
}

func TestFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.StrategyConfig
		want error
	}{
		{"unknown", domain.StrategyConfig{Type: "LIQUIDITY_GUARD"}, ErrUnknownStrategyType},
		{"time exit missing hold", domain.StrategyConfig{Type: domain.StrategyTypeTimeExit}, ErrMissingHoldBars},
		{"time exit bad side", domain.StrategyConfig{Type: domain.StrategyTypeTimeExit, HoldBars: ptr(1), Side: "up"}, ErrInvalidParameter},
		{"trailing missing trail", domain.StrategyConfig{Type: domain.StrategyTypeTrailingStop}, ErrMissingTrailPct},
		{"trailing missing stop", domain.StrategyConfig{Type: domain.StrategyTypeTrailingStop, TrailPct: ptr(0.1)}, ErrMissingInitialStopPct},
		{"trailing missing max hold", domain.StrategyConfig{Type: domain.StrategyTypeTrailingStop, TrailPct: ptr(0.1), InitialStopPct: ptr(0.1)}, ErrMissingMaxHoldBars},
		{"trailing zero max hold", trailingCfg(0.1, 0.1, 0), ErrInvalidParameter},
		{"trailing negative max hold", trailingCfg(0.1, 0.1, -3), ErrInvalidParameter},
		{"trailing NaN trail", trailingCfg(math.NaN(), 0.1, 10), ErrInvalidParameter},
		{"trailing NaN stop", trailingCfg(0.1, math.NaN(), 10), ErrInvalidParameter},
		{"trailing infinite trail", trailingCfg(math.Inf(1), 0.1, 10), ErrInvalidParameter},
		{"trailing trail of one", trailingCfg(1, 0.1, 10), ErrInvalidParameter},
		{"cross missing windows", domain.StrategyConfig{Type: domain.StrategyTypeMACross}, ErrMissingWindows},
		{"cross inverted windows", domain.StrategyConfig{Type: domain.StrategyTypeMACross, FastWindow: ptr(5), SlowWindow: ptr(3)}, ErrInvalidParameter},
		{"touch zero window", domain.StrategyConfig{Type: domain.StrategyTypeMATouch, MAWindow: ptr(0)}, ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration in chain, got %v", err)
			}
		})
	}
}
