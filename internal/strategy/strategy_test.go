package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
)

// makeBars builds flat bars (open=high=low=close) one minute apart.
func makeBars(closes ...float64) []domain.PriceBar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{Timestamp: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return bars
}

// drive feeds bars to s, applying Enter/Exit to a simple position so the
// strategy sees the position it asked for.
func drive(t *testing.T, s Strategy, bars []domain.PriceBar) []Decision {
	t.Helper()
	var pos *domain.Position
	out := make([]Decision, len(bars))
	for i := range bars {
		in := &Input{Index: i, History: bars[:i+1]}
		if pos != nil {
			cp := *pos
			in.Position = &cp
		}
		d, err := s.Decide(context.Background(), in)
		require.NoError(t, err)
		out[i] = d

		switch d.Action {
		case ActionEnter:
			if pos == nil {
				pos = &domain.Position{Side: d.Side, EntryPrice: bars[i].Close, FirstPrice: bars[i].Close, Quantity: 1, Entries: 1}
			}
		case ActionExit:
			pos = nil
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	bars := makeBars(1, 2, 3, 4, 5)
	assert.InDelta(t, 4.5, sma(bars, 2), 1e-12)
	assert.InDelta(t, 3.0, sma(bars, 5), 1e-12)
	// fewer bars than window averages what is available
	assert.InDelta(t, 3.0, sma(bars, 50), 1e-12)
	assert.Equal(t, 0.0, sma(nil, 3))
}

func TestTimeExitStrategy(t *testing.T) {
	s := NewTimeExitStrategy(domain.SideLong, 2)
	got := drive(t, s, makeBars(10, 11, 12, 13, 14))

	assert.Equal(t, Enter(domain.SideLong), got[0])
	assert.Equal(t, Hold(), got[1])
	assert.Equal(t, Exit(domain.ExitReasonTimeExit), got[2])
	// trades once
	assert.Equal(t, Hold(), got[3])
	assert.Equal(t, Hold(), got[4])
}

func TestTrailingStopStrategy_TrailingExit(t *testing.T) {
	s := NewTrailingStopStrategy(0.10, 0.20, 100)
	// entry 100, peak 120, trailing stop at 108
	got := drive(t, s, makeBars(100, 110, 120, 109, 107, 130))

	assert.Equal(t, ActionEnter, got[0].Action)
	assert.Equal(t, ActionHold, got[3].Action)
	assert.Equal(t, Exit(domain.ExitReasonTrailingStop), got[4])
	assert.Equal(t, ActionHold, got[5].Action)
}

func TestTrailingStopStrategy_InitialStopFirst(t *testing.T) {
	s := NewTrailingStopStrategy(0.05, 0.10, 100)
	got := drive(t, s, makeBars(100, 89))
	assert.Equal(t, Exit(domain.ExitReasonStopLoss), got[1])
}

func TestTrailingStopStrategy_MaxHold(t *testing.T) {
	s := NewTrailingStopStrategy(0.5, 0.5, 2)
	got := drive(t, s, makeBars(100, 100, 100, 100))
	assert.Equal(t, Exit(domain.ExitReasonTimeExit), got[2])
}

func TestMACrossStrategy(t *testing.T) {
	s := NewMACrossStrategy(1, 3, false)
	// falling then rising then falling
	got := drive(t, s, makeBars(10, 9, 8, 7, 12, 13, 14, 5, 4))

	var actions []Action
	for _, d := range got {
		actions = append(actions, d.Action)
	}
	assert.Equal(t, ActionEnter, got[4].Action, "golden cross at bar 4: %v", actions)
	assert.Equal(t, domain.SideLong, got[4].Side)
	assert.Equal(t, ActionExit, got[7].Action, "death cross at bar 7: %v", actions)
}

func TestMACrossStrategy_AllowShort(t *testing.T) {
	s := NewMACrossStrategy(1, 3, true)
	got := drive(t, s, makeBars(10, 11, 12, 13, 5))
	assert.Equal(t, Enter(domain.SideShort), got[4])
}

func TestMATouchStrategy_RetestEntry(t *testing.T) {
	s := NewMATouchStrategy(3, 0)

	bars := makeBars(100, 101, 102, 103)
	// breakdown bar: close well below the MA
	bars = append(bars, domain.PriceBar{Timestamp: bars[3].Timestamp.Add(time.Minute), Open: 99, High: 99, Low: 95, Close: 95, Volume: 1})
	// retest bar: high touches MA, close below it
	bars = append(bars, domain.PriceBar{Timestamp: bars[4].Timestamp.Add(time.Minute), Open: 96, High: 101, Low: 96, Close: 97, Volume: 1})

	got := drive(t, s, bars)
	for i := 0; i < 5; i++ {
		assert.Equal(t, ActionHold, got[i].Action, "bar %d", i)
	}
	assert.Equal(t, Enter(domain.SideShort), got[5])
}

func TestMATouchStrategy_Management(t *testing.T) {
	s := NewMATouchStrategy(3, 0)
	pos := &domain.Position{Side: domain.SideShort, EntryPrice: 100, FirstPrice: 100, Quantity: 1, Entries: 1}
	bar := func(c float64) *Input {
		return &Input{Index: 10, History: makeBars(c), Position: pos}
	}

	d, err := s.Decide(context.Background(), bar(102.5))
	require.NoError(t, err)
	assert.Equal(t, Add(), d, "scale in above +2%")

	pos.Entries = 2
	pos.EntryPrice = 101
	d, _ = s.Decide(context.Background(), bar(103.5))
	assert.Equal(t, Exit(domain.ExitReasonStopLoss), d)

	pos.EntryPrice = 100
	d, _ = s.Decide(context.Background(), bar(99))
	assert.Equal(t, Reduce(0.5, domain.ExitReasonTakeProfitPartial), d)

	d, _ = s.Decide(context.Background(), bar(100))
	assert.Equal(t, Exit(domain.ExitReasonBreakevenStop), d)

	d, _ = s.Decide(context.Background(), bar(96))
	assert.Equal(t, Exit(domain.ExitReasonTakeProfit), d)
}

func TestMATouchStrategy_Warmup(t *testing.T) {
	s := NewMATouchStrategy(3, 5)
	d, err := s.Decide(context.Background(), &Input{Index: 4, History: makeBars(1, 2, 3, 4, 5)})
	require.NoError(t, err)
	assert.Equal(t, Hold(), d)
}

func TestScriptedStrategy(t *testing.T) {
	boom := assert.AnError
	s := &ScriptedStrategy{
		Decisions: map[int]Decision{0: Enter(domain.SideLong)},
		Errors:    map[int]error{2: boom},
	}
	bars := makeBars(1, 2, 3)

	d, err := s.Decide(context.Background(), &Input{Index: 0, History: bars[:1]})
	require.NoError(t, err)
	assert.Equal(t, ActionEnter, d.Action)

	d, err = s.Decide(context.Background(), &Input{Index: 1, History: bars[:2]})
	require.NoError(t, err)
	assert.Equal(t, Hold(), d)

	_, err = s.Decide(context.Background(), &Input{Index: 2, History: bars})
	assert.ErrorIs(t, err, boom)
}
