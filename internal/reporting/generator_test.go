package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/storage/memory"
)

var (
	t0      = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fixedAt = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
)

func completedResult() *domain.JobResult {
	return &domain.JobResult{
		JobID:      "job-1",
		Symbol:     "BTCUSDT",
		StrategyID: "MA_CROSS_5_20",
		Status:     domain.StatusLabelCompleted,
		CreatedAt:  t0,
		FinishedAt: t0.Add(time.Second),
		Trades: []domain.Trade{
			{Symbol: "BTCUSDT", Side: domain.SideLong, EntryPrice: 100, ExitPrice: 110, Quantity: 2.5,
				ProfitPct: 10, ProfitAbs: 25, EntryTime: t0, ExitTime: t0.Add(time.Minute), ExitReason: domain.ExitReasonSignal},
			{Symbol: "BTCUSDT", Side: domain.SideShort, EntryPrice: 110, ExitPrice: 112, Quantity: 2.5,
				ProfitPct: -1.8181818181818181, ProfitAbs: -5, EntryTime: t0.Add(2 * time.Minute), ExitTime: t0.Add(3 * time.Minute), ExitReason: domain.ExitReasonStopLoss},
		},
	}
}

func TestGenerator_BuildCompleted(t *testing.T) {
	g := NewGenerator(nil).WithClock(func() time.Time { return fixedAt })

	rep := g.Build(completedResult())

	if rep.GeneratedAt != fixedAt {
		t.Errorf("GeneratedAt: got %v, want %v", rep.GeneratedAt, fixedAt)
	}
	if rep.Summary.TotalTrades != 2 || rep.Summary.Wins != 1 {
		t.Errorf("unexpected summary: %+v", rep.Summary)
	}
	if rep.Summary.ProfitAbsTotal != 20 {
		t.Errorf("expected total profit 20, got %f", rep.Summary.ProfitAbsTotal)
	}
	if len(rep.ExitReasons) != 2 {
		t.Errorf("expected 2 exit reasons, got %d", len(rep.ExitReasons))
	}
}

func TestGenerator_BuildFailed(t *testing.T) {
	g := NewGenerator(nil).WithClock(func() time.Time { return fixedAt })

	rep := g.Build(&domain.JobResult{JobID: "job-2", Status: domain.StatusLabelFailed, Error: "invalid quantity"})

	if rep.Summary.TotalTrades != 0 || rep.ExitReasons != nil {
		t.Errorf("failed job must not carry statistics: %+v", rep)
	}

	md := RenderMarkdown(rep)
	if !strings.Contains(md, "## Error") || !strings.Contains(md, "invalid quantity") {
		t.Errorf("markdown missing error section:\n%s", md)
	}
	if strings.Contains(md, "## Summary") {
		t.Errorf("failed job must not render summary:\n%s", md)
	}
}

func TestGenerator_GenerateFromStore(t *testing.T) {
	store := memory.NewResultStore()
	ctx := context.Background()
	if err := store.Save(ctx, completedResult()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	g := NewGenerator(store).WithClock(func() time.Time { return fixedAt })

	rep, err := g.Generate(ctx, "job-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(rep.Trades) != 2 {
		t.Errorf("expected 2 trades, got %d", len(rep.Trades))
	}

	_, err = g.Generate(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = NewGenerator(nil).Generate(ctx, "job-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound without store, got %v", err)
	}
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	g := NewGenerator(nil).WithClock(func() time.Time { return fixedAt })
	rep := g.Build(completedResult())

	md1 := RenderMarkdown(rep)
	md2 := RenderMarkdown(rep)
	if md1 != md2 {
		t.Error("markdown output not deterministic")
	}

	for _, want := range []string{
		"# Backtest job-1",
		"Generated: 2024-03-02T00:00:00Z",
		"| Strategy | MA_CROSS_5_20 |",
		"| Trades | 2 |",
		"| signal_exit | 1 | 1 | 25.0000 |",
		"| stop_loss | 1 | 0 | -5.0000 |",
		"| 1 | Long | 100.0000 | 110.0000 | 2.5 | 25.0000 | 10.0000 |",
	} {
		if !strings.Contains(md1, want) {
			t.Errorf("markdown missing %q:\n%s", want, md1)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	rep := NewGenerator(nil).Build(completedResult())

	out, err := RenderCSV(rep)
	if err != nil {
		t.Fatalf("RenderCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), out)
	}
	if lines[0] != "seq,symbol,side,entry_price,exit_price,quantity,profit_pct,profit_abs,entry_time,exit_time,exit_reason" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != "1,BTCUSDT,Long,100,110,2.5,10,25,2024-03-01T00:00:00Z,2024-03-01T00:01:00Z,signal_exit" {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2,BTCUSDT,Short,110,112,2.5,") || !strings.HasSuffix(lines[2], ",stop_loss") {
		t.Errorf("unexpected second row: %s", lines[2])
	}
}

func TestRenderComparisonMarkdown(t *testing.T) {
	store := memory.NewResultStore()
	ctx := context.Background()
	if err := store.Save(ctx, completedResult()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cmp, err := NewGenerator(store).WithClock(func() time.Time { return fixedAt }).Compare(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	md := RenderComparisonMarkdown(cmp)
	if !strings.Contains(md, "# Strategy Comparison: BTCUSDT") || !strings.Contains(md, "| MA_CROSS_5_20 | 1 | 2 |") {
		t.Errorf("unexpected comparison markdown:\n%s", md)
	}
}
