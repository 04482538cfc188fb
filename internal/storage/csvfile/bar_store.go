// Package csvfile stores OHLCV bars as one CSV file per symbol: <dir>/<SYMBOL>.csv.
package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// barRow is one CSV row. timestamp is RFC 3339, unix seconds or unix milliseconds.
type barRow struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

func (r *barRow) toModel() (domain.PriceBar, error) {
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return domain.PriceBar{}, err
	}
	return domain.PriceBar{
		Timestamp: ts,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}, nil
}

func newBarRow(b domain.PriceBar) *barRow {
	return &barRow{
		Timestamp: b.Timestamp.UTC().Format(time.RFC3339),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

// Unix values above this are milliseconds (year 2286 in seconds).
const msThreshold = 10_000_000_000

func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n >= msThreshold {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return ts.UTC(), nil
}

// ReadBars decodes bars from CSV. Rows are returned in file order.
func ReadBars(r io.Reader) ([]domain.PriceBar, error) {
	var rows []*barRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return []domain.PriceBar{}, nil
		}
		return nil, fmt.Errorf("decode bars csv: %w", err)
	}

	bars := make([]domain.PriceBar, 0, len(rows))
	for i, row := range rows {
		b, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// ReadBarsFile decodes the bars of one CSV file.
func ReadBarsFile(path string) ([]domain.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadBars(f)
}

// WriteBars encodes bars as CSV with a header row.
func WriteBars(w io.Writer, bars []domain.PriceBar) error {
	rows := make([]*barRow, len(bars))
	for i, b := range bars {
		rows[i] = newBarRow(b)
	}
	return gocsv.Marshal(&rows, w)
}

// BarStore implements storage.PriceBarStore over a directory of CSV files.
type BarStore struct {
	dir string
	mu  sync.RWMutex
}

// NewBarStore creates a store rooted at dir. The directory is created on first insert.
func NewBarStore(dir string) *BarStore {
	return &BarStore{dir: dir}
}

var _ storage.PriceBarStore = (*BarStore)(nil)

func (s *BarStore) path(symbol string) string {
	return filepath.Join(s.dir, symbol+".csv")
}

// validSymbol rejects names that would escape the store directory.
func validSymbol(symbol string) bool {
	return symbol != "" && !strings.ContainsAny(symbol, `/\`) && symbol != "." && symbol != ".."
}

// load reads a symbol file sorted by timestamp. A missing file holds no bars.
func (s *BarStore) load(symbol string) ([]domain.PriceBar, error) {
	bars, err := ReadBarsFile(s.path(symbol))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.PriceBar{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", symbol, err)
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

// InsertBulk merges bars into the symbol file. Fails entire batch on duplicate timestamp.
func (s *BarStore) InsertBulk(_ context.Context, symbol string, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	if !validSymbol(symbol) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(symbol)
	if err != nil {
		return err
	}

	seen := make(map[int64]struct{}, len(existing)+len(bars))
	for _, b := range existing {
		seen[b.Timestamp.Unix()] = struct{}{}
	}
	for _, b := range bars {
		key := b.Timestamp.Unix()
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	merged := append(existing, bars...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create bar dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, symbol+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteBars(tmp, merged); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", symbol, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(symbol)); err != nil {
		return fmt.Errorf("replace %s: %w", symbol, err)
	}
	return nil
}

// GetRange retrieves bars for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
func (s *BarStore) GetRange(_ context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	if !validSymbol(symbol) {
		return []domain.PriceBar{}, nil
	}

	s.mu.RLock()
	bars, err := s.load(symbol)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	from := sort.Search(len(bars), func(i int) bool { return !bars[i].Timestamp.Before(start) })
	to := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp.After(end) })
	if from >= to {
		return []domain.PriceBar{}, nil
	}
	return bars[from:to], nil
}

// ListSymbols returns the names of the CSV files in the store directory, sorted.
func (s *BarStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list bar dir: %w", err)
	}

	symbols := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(symbols)
	return symbols, nil
}
