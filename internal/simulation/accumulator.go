package simulation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"backtest-lab/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Close builds the Trade for closing the whole position at exitPrice.
// pos is not modified.
//
//	profit_abs = (exit - entry) * qty   for Long
//	profit_abs = (entry - exit) * qty   for Short
//	profit_pct = profit_abs / (entry * qty) * 100
func Close(pos domain.Position, exitPrice float64, exitTime time.Time, reason domain.ExitReason) (domain.Trade, error) {
	return CloseQuantity(pos, pos.Quantity, exitPrice, exitTime, reason)
}

// CloseQuantity builds the Trade for closing qty of the position at exitPrice.
// qty must be in (0, pos.Quantity]. pos is not modified.
func CloseQuantity(pos domain.Position, qty, exitPrice float64, exitTime time.Time, reason domain.ExitReason) (domain.Trade, error) {
	if reason == "" {
		return domain.Trade{}, fmt.Errorf("%w: empty exit reason", ErrInvalidExit)
	}
	if exitTime.Before(pos.EntryTime) {
		return domain.Trade{}, fmt.Errorf("%w: exit time %s before entry time %s",
			ErrInvalidExit, exitTime.Format(time.RFC3339), pos.EntryTime.Format(time.RFC3339))
	}
	for _, v := range []float64{pos.EntryPrice, exitPrice, qty} {
		if !domain.IsFinite(v) {
			return domain.Trade{}, fmt.Errorf("%w: %v", ErrNonFinitePrice, v)
		}
	}
	if qty <= 0 || qty > pos.Quantity {
		return domain.Trade{}, fmt.Errorf("%w: close quantity %v of open %v", ErrInvalidExit, qty, pos.Quantity)
	}

	entry := decimal.NewFromFloat(pos.EntryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	q := decimal.NewFromFloat(qty)

	notional := entry.Mul(q)
	if notional.IsZero() {
		return domain.Trade{}, ErrInvalidQuantity
	}

	var move decimal.Decimal
	switch pos.Side {
	case domain.SideLong:
		move = exit.Sub(entry)
	case domain.SideShort:
		move = entry.Sub(exit)
	default:
		return domain.Trade{}, fmt.Errorf("%w: position side %v", ErrInvalidExit, pos.Side)
	}

	profitAbs := move.Mul(q)
	profitPct := profitAbs.Div(notional).Mul(hundred)

	trade := domain.Trade{
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   qty,
		ProfitPct:  profitPct.InexactFloat64(),
		ProfitAbs:  profitAbs.InexactFloat64(),
		EntryTime:  pos.EntryTime,
		ExitTime:   exitTime,
		ExitReason: reason,
	}
	if !domain.IsFinite(trade.ProfitAbs) || !domain.IsFinite(trade.ProfitPct) {
		return domain.Trade{}, fmt.Errorf("%w: profit for %s trade", ErrNonFinitePrice, pos.Symbol)
	}
	return trade, nil
}

// AddToPosition returns pos scaled in by qty at price.
// EntryPrice becomes the quantity-weighted average; EntryTime is kept.
func AddToPosition(pos domain.Position, price, qty float64) (domain.Position, error) {
	if !domain.IsFinite(price) || price <= 0 {
		return pos, fmt.Errorf("%w: add price %v", ErrNonFinitePrice, price)
	}
	if !domain.IsFinite(qty) || qty <= 0 {
		return pos, ErrInvalidQuantity
	}

	oldQty := decimal.NewFromFloat(pos.Quantity)
	addQty := decimal.NewFromFloat(qty)
	total := oldQty.Add(addQty)
	cost := decimal.NewFromFloat(pos.EntryPrice).Mul(oldQty).Add(decimal.NewFromFloat(price).Mul(addQty))

	pos.EntryPrice = cost.Div(total).InexactFloat64()
	pos.Quantity = total.InexactFloat64()
	pos.Entries++
	return pos, nil
}

// reduceQuantity returns qty*fraction and the remainder, computed exactly.
func reduceQuantity(qty, fraction float64) (closed, remaining float64) {
	q := decimal.NewFromFloat(qty)
	c := q.Mul(decimal.NewFromFloat(fraction))
	return c.InexactFloat64(), q.Sub(c).InexactFloat64()
}

// Accumulator is the append-only list of closed trades of one run.
type Accumulator struct {
	trades []domain.Trade
}

// Append records a closed trade.
func (a *Accumulator) Append(t domain.Trade) {
	a.trades = append(a.trades, t)
}

// Len returns the number of trades recorded so far.
func (a *Accumulator) Len() int {
	return len(a.trades)
}

// Trades returns the recorded trades in close order. Never nil.
func (a *Accumulator) Trades() []domain.Trade {
	out := make([]domain.Trade, len(a.trades))
	copy(out, a.trades)
	return out
}
