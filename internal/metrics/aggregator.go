package metrics

import (
	"context"
	"errors"
	"sort"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// ErrNoTrades is returned when no completed results are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// ExitReasonRow is the per-exit-reason slice of a job's trades.
type ExitReasonRow struct {
	ExitReason domain.ExitReason
	Trades     int
	Wins       int
	ProfitAbs  float64
}

// ByExitReason groups trades by exit reason, sorted by reason.
func ByExitReason(trades []domain.Trade) []ExitReasonRow {
	rows := make(map[domain.ExitReason]*ExitReasonRow)
	for i := range trades {
		t := &trades[i]
		row, ok := rows[t.ExitReason]
		if !ok {
			row = &ExitReasonRow{ExitReason: t.ExitReason}
			rows[t.ExitReason] = row
		}
		row.Trades++
		row.ProfitAbs += t.ProfitAbs
		if t.IsWin() {
			row.Wins++
		}
	}

	out := make([]ExitReasonRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExitReason < out[j].ExitReason })
	return out
}

// StrategyRow summarizes every archived completed job of one strategy.
type StrategyRow struct {
	StrategyID string
	Jobs       int
	Summary    domain.TradeSummary
}

// Aggregator computes summaries from archived results.
type Aggregator struct {
	results storage.ResultStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(results storage.ResultStore) *Aggregator {
	return &Aggregator{results: results}
}

// CompareStrategies summarizes archived completed jobs of a symbol per strategy.
// Trades of one strategy are concatenated in job creation order.
// Returns ErrNoTrades if no completed job exists for the symbol.
func (a *Aggregator) CompareStrategies(ctx context.Context, symbol string) ([]StrategyRow, error) {
	listed, err := a.results.ListBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// ListBySymbol is newest first; aggregate oldest first.
	sort.SliceStable(listed, func(i, j int) bool {
		return listed[i].CreatedAt.Before(listed[j].CreatedAt)
	})

	trades := make(map[string][]domain.Trade)
	jobs := make(map[string]int)
	for _, r := range listed {
		if r.Status != domain.StatusLabelCompleted {
			continue
		}
		full, err := a.results.GetByJobID(ctx, r.JobID)
		if err != nil {
			return nil, err
		}
		trades[r.StrategyID] = append(trades[r.StrategyID], full.Trades...)
		jobs[r.StrategyID]++
	}
	if len(jobs) == 0 {
		return nil, ErrNoTrades
	}

	rows := make([]StrategyRow, 0, len(jobs))
	for id, n := range jobs {
		rows = append(rows, StrategyRow{
			StrategyID: id,
			Jobs:       n,
			Summary:    Summarize(trades[id]),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StrategyID < rows[j].StrategyID })
	return rows, nil
}
