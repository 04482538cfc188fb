package reporting

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"backtest-lab/internal/domain"
)

// tradeRow is the CSV shape of a trade.
type tradeRow struct {
	Seq        int    `csv:"seq"`
	Symbol     string `csv:"symbol"`
	Side       string `csv:"side"`
	EntryPrice string `csv:"entry_price"`
	ExitPrice  string `csv:"exit_price"`
	Quantity   string `csv:"quantity"`
	ProfitPct  string `csv:"profit_pct"`
	ProfitAbs  string `csv:"profit_abs"`
	EntryTime  string `csv:"entry_time"`
	ExitTime   string `csv:"exit_time"`
	ExitReason string `csv:"exit_reason"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func newTradeRow(seq int, t domain.Trade) *tradeRow {
	return &tradeRow{
		Seq:        seq,
		Symbol:     t.Symbol,
		Side:       t.Side.String(),
		EntryPrice: formatFloat(t.EntryPrice),
		ExitPrice:  formatFloat(t.ExitPrice),
		Quantity:   formatFloat(t.Quantity),
		ProfitPct:  formatFloat(t.ProfitPct),
		ProfitAbs:  formatFloat(t.ProfitAbs),
		EntryTime:  t.EntryTime.UTC().Format(time.RFC3339),
		ExitTime:   t.ExitTime.UTC().Format(time.RFC3339),
		ExitReason: string(t.ExitReason),
	}
}

// WriteTradesCSV writes trades in close order with a header row.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	rows := make([]*tradeRow, len(trades))
	for i, t := range trades {
		rows[i] = newTradeRow(i+1, t)
	}
	return gocsv.Marshal(&rows, w)
}

// RenderCSV renders the report's trades as CSV string.
func RenderCSV(r *Report) (string, error) {
	var sb strings.Builder
	if err := WriteTradesCSV(&sb, r.Trades); err != nil {
		return "", err
	}
	return sb.String(), nil
}
