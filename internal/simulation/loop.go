package simulation

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/strategy"
)

// Config holds caller-configured parameters of one simulation.
type Config struct {
	Quantity float64           // quantity of every entry and scale-in
	Risk     domain.RiskConfig // optional engine stop/target
}

// Validate checks the configuration before any bar is processed.
func (c Config) Validate() error {
	if !domain.IsFinite(c.Quantity) || c.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return validateRisk(c.Risk)
}

// ProgressFunc receives progress in (0, 1] after each processed bar.
type ProgressFunc func(progress float64)

// Loop walks a PriceSeries bar by bar and turns strategy decisions into trades.
type Loop struct {
	strategy   strategy.Strategy
	cfg        Config
	onProgress ProgressFunc
}

// LoopOptions contains configuration for creating a Loop.
type LoopOptions struct {
	Strategy   strategy.Strategy
	Config     Config
	OnProgress ProgressFunc // optional
}

// NewLoop creates a simulation loop.
func NewLoop(opts LoopOptions) *Loop {
	onProgress := opts.OnProgress
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	return &Loop{
		strategy:   opts.Strategy,
		cfg:        opts.Config,
		onProgress: onProgress,
	}
}

// run holds the state owned by a single Run call.
type run struct {
	symbol   string
	pos      *domain.Position
	openedAt int
	acc      Accumulator
}

// Run simulates the series and returns the closed trades in close order.
// Steps:
//  1. Validate config (quantity, risk) and the series
//  2. Empty series: report 1.0 and return no trades
//  3. For each bar: check cancellation, apply stop/target, ask the strategy,
//     apply its decision, report (i+1)/N
//  4. Force-close an open position at the last close with end_of_data
//
// Any error means no trades are returned. Cancellation returns ErrCancelled.
func (l *Loop) Run(ctx context.Context, series *domain.PriceSeries) ([]domain.Trade, error) {
	// 1. Validate
	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	if l.strategy == nil {
		return nil, fmt.Errorf("%w: no strategy", domain.ErrInvalidConfiguration)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	// 2. Empty series
	n := len(series.Bars)
	if n == 0 {
		l.onProgress(1)
		return []domain.Trade{}, nil
	}

	// 3. Walk bars
	r := &run{symbol: series.Symbol}
	for i := range series.Bars {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		if err := l.step(ctx, r, series.Bars, i); err != nil {
			return nil, err
		}
		l.onProgress(float64(i+1) / float64(n))
	}

	// 4. End of data
	if r.pos != nil {
		last := series.Bars[n-1]
		if err := r.closeAll(last.Close, last.Timestamp, domain.ExitReasonEndOfData); err != nil {
			return nil, err
		}
	}

	return r.acc.Trades(), nil
}

// step processes bar i.
func (l *Loop) step(ctx context.Context, r *run, bars []domain.PriceBar, i int) error {
	bar := bars[i]

	if r.pos != nil && i > r.openedAt {
		if reason, price, hit := checkRisk(r.pos, l.cfg.Risk, bar); hit {
			if err := r.closeAll(price, bar.Timestamp, reason); err != nil {
				return err
			}
		}
	}

	in := &strategy.Input{
		Index:   i,
		History: bars[: i+1 : i+1],
	}
	if r.pos != nil {
		cp := *r.pos
		in.Position = &cp
	}

	d, err := l.strategy.Decide(ctx, in)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStrategy, l.strategy.ID(), err)
	}

	return l.apply(r, d, bar, i)
}

// apply executes decision d at bar i's close.
func (l *Loop) apply(r *run, d strategy.Decision, bar domain.PriceBar, i int) error {
	switch d.Action {
	case strategy.ActionHold:
		return nil

	case strategy.ActionEnter:
		if d.Side != domain.SideLong && d.Side != domain.SideShort {
			return fmt.Errorf("%w: enter with side %v", ErrInvalidDecision, d.Side)
		}
		if r.pos != nil {
			return nil
		}
		r.pos = &domain.Position{
			Symbol:     r.symbol,
			Side:       d.Side,
			EntryPrice: bar.Close,
			EntryTime:  bar.Timestamp,
			Quantity:   l.cfg.Quantity,
			Entries:    1,
			FirstPrice: bar.Close,
		}
		r.openedAt = i
		return nil

	case strategy.ActionExit:
		if r.pos == nil {
			return nil
		}
		return r.closeAll(bar.Close, bar.Timestamp, exitReason(d.Reason))

	case strategy.ActionAdd:
		if r.pos == nil {
			return nil
		}
		next, err := AddToPosition(*r.pos, bar.Close, l.cfg.Quantity)
		if err != nil {
			return err
		}
		r.pos = &next
		return nil

	case strategy.ActionReduce:
		if !domain.IsFinite(d.Fraction) || d.Fraction <= 0 {
			return fmt.Errorf("%w: reduce fraction %v", ErrInvalidDecision, d.Fraction)
		}
		if r.pos == nil {
			return nil
		}
		if d.Fraction >= 1 {
			return r.closeAll(bar.Close, bar.Timestamp, exitReason(d.Reason))
		}
		return r.closePart(d.Fraction, bar.Close, bar.Timestamp, exitReason(d.Reason))

	default:
		return fmt.Errorf("%w: action %v", ErrInvalidDecision, d.Action)
	}
}

func exitReason(r domain.ExitReason) domain.ExitReason {
	if r == "" {
		return domain.ExitReasonSignal
	}
	return r
}

// closeAll closes the open position. The trade is recorded only if it is fully built.
func (r *run) closeAll(price float64, at time.Time, reason domain.ExitReason) error {
	trade, err := Close(*r.pos, price, at, reason)
	if err != nil {
		return err
	}
	r.acc.Append(trade)
	r.pos = nil
	return nil
}

// closePart closes fraction of the open position and keeps the remainder open.
func (r *run) closePart(fraction, price float64, at time.Time, reason domain.ExitReason) error {
	closed, remaining := reduceQuantity(r.pos.Quantity, fraction)
	if closed <= 0 {
		return nil
	}
	if remaining <= 0 {
		return r.closeAll(price, at, reason)
	}

	trade, err := CloseQuantity(*r.pos, closed, price, at, reason)
	if err != nil {
		return err
	}
	r.acc.Append(trade)
	r.pos.Quantity = remaining
	return nil
}
