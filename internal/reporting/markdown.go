package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest %s\n\n", r.JobID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Symbol | %s |\n", r.Symbol))
	sb.WriteString(fmt.Sprintf("| Strategy | %s |\n", r.StrategyID))
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", r.Status))
	sb.WriteString(fmt.Sprintf("| Created | %s |\n", r.CreatedAt.UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Finished | %s |\n", r.FinishedAt.UTC().Format(time.RFC3339)))
	sb.WriteString("\n")

	if r.Error != "" {
		sb.WriteString("## Error\n\n")
		sb.WriteString(fmt.Sprintf("    %s\n\n", r.Error))
		return sb.String()
	}

	// Summary
	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", s.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", s.Wins, s.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", s.WinRate))
	sb.WriteString(fmt.Sprintf("| Total Profit | %.4f |\n", s.ProfitAbsTotal))
	sb.WriteString(fmt.Sprintf("| Profit %% Mean | %.4f |\n", s.ProfitPctMean))
	sb.WriteString(fmt.Sprintf("| Profit %% Median | %.4f |\n", s.ProfitPctMedian))
	sb.WriteString(fmt.Sprintf("| Profit %% P10 / P90 | %.4f / %.4f |\n", s.ProfitPctP10, s.ProfitPctP90))
	sb.WriteString(fmt.Sprintf("| Profit %% Min / Max | %.4f / %.4f |\n", s.ProfitPctMin, s.ProfitPctMax))
	sb.WriteString(fmt.Sprintf("| Profit %% Stddev | %.4f |\n", s.ProfitPctStddev))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f |\n", s.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", s.MaxConsecutiveLosses))
	sb.WriteString("\n")

	// Exit reasons
	sb.WriteString("## Exit Reasons\n\n")
	if len(r.ExitReasons) > 0 {
		sb.WriteString("| Reason | Trades | Wins | Profit |\n")
		sb.WriteString("|--------|--------|------|--------|\n")
		for _, e := range r.ExitReasons {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f |\n", e.ExitReason, e.Trades, e.Wins, e.ProfitAbs))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| # | Side | Entry | Exit | Qty | Profit | Profit % | Entry Time | Exit Time | Reason |\n")
		sb.WriteString("|---|------|-------|------|-----|--------|----------|------------|-----------|--------|\n")
		for i, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.4f | %.4f | %g | %.4f | %.4f | %s | %s | %s |\n",
				i+1, t.Side, t.EntryPrice, t.ExitPrice, t.Quantity, t.ProfitAbs, t.ProfitPct,
				t.EntryTime.UTC().Format(time.RFC3339), t.ExitTime.UTC().Format(time.RFC3339), t.ExitReason))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderComparisonMarkdown renders a strategy comparison as Markdown string.
func RenderComparisonMarkdown(r *ComparisonReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Strategy Comparison: %s\n\n", r.Symbol))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	if len(r.Strategies) == 0 {
		sb.WriteString("No completed jobs.\n")
		return sb.String()
	}

	sb.WriteString("| Strategy | Jobs | Trades | WinRate | Profit | Mean % | Median % | P10 % | P90 % | MaxDD | MaxLoss |\n")
	sb.WriteString("|----------|------|--------|---------|--------|--------|----------|-------|-------|-------|---------|\n")
	for _, row := range r.Strategies {
		s := row.Summary
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %d |\n",
			row.StrategyID, row.Jobs, s.TotalTrades, s.WinRate, s.ProfitAbsTotal,
			s.ProfitPctMean, s.ProfitPctMedian, s.ProfitPctP10, s.ProfitPctP90,
			s.MaxDrawdown, s.MaxConsecutiveLosses))
	}
	sb.WriteString("\n")

	return sb.String()
}
