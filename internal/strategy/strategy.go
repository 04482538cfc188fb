package strategy

import (
	"context"

	"backtest-lab/internal/domain"
)

// Strategy decides, bar by bar, what the simulation should do.
// Implementations may keep state between calls; one instance serves exactly one job.
type Strategy interface {
	// Decide is called once per bar, in order, with the history up to and including that bar.
	// A returned error fails the job.
	Decide(ctx context.Context, input *Input) (Decision, error)

	// ID returns strategy identifier (includes parameters).
	ID() string
}

// Input is the view of the simulation a strategy sees for one bar.
type Input struct {
	Index    int               // index of the current bar
	History  []domain.PriceBar // bars [0..Index]; read-only
	Position *domain.Position  // copy of the open position, nil when flat
}

// Bar returns the current bar.
func (in *Input) Bar() domain.PriceBar {
	return in.History[len(in.History)-1]
}

// Action is what a Decision asks the simulation to do.
type Action int

const (
	ActionHold Action = iota
	ActionEnter
	ActionExit
	ActionAdd
	ActionReduce
)

func (a Action) String() string {
	switch a {
	case ActionHold:
		return "hold"
	case ActionEnter:
		return "enter"
	case ActionExit:
		return "exit"
	case ActionAdd:
		return "add"
	case ActionReduce:
		return "reduce"
	default:
		return "unknown"
	}
}

// Decision is the result of one Decide call.
type Decision struct {
	Action   Action
	Side     domain.Side       // ActionEnter only
	Fraction float64           // ActionReduce only, in (0, 1]
	Reason   domain.ExitReason // ActionExit / ActionReduce; empty means signal_exit
}

// Hold leaves the simulation state unchanged.
func Hold() Decision { return Decision{Action: ActionHold} }

// Enter opens a position on side at the bar close.
func Enter(side domain.Side) Decision { return Decision{Action: ActionEnter, Side: side} }

// Exit closes the open position at the bar close.
func Exit(reason domain.ExitReason) Decision { return Decision{Action: ActionExit, Reason: reason} }

// Add scales into the open position with the configured quantity.
func Add() Decision { return Decision{Action: ActionAdd} }

// Reduce closes fraction of the open position.
func Reduce(fraction float64, reason domain.ExitReason) Decision {
	return Decision{Action: ActionReduce, Fraction: fraction, Reason: reason}
}

// Func adapts a plain function to Strategy.
type Func func(ctx context.Context, input *Input) (Decision, error)

// Decide calls f.
func (f Func) Decide(ctx context.Context, input *Input) (Decision, error) {
	return f(ctx, input)
}

// ID returns "FUNC".
func (f Func) ID() string {
	return "FUNC"
}

var _ Strategy = Func(nil)
