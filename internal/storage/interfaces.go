package storage

import (
	"context"
	"time"

	"backtest-lab/internal/domain"
)

// PriceBarReader provides read access to OHLCV bars.
type PriceBarReader interface {
	// GetRange retrieves bars for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
	GetRange(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)

	// ListSymbols returns every symbol with at least one bar, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}

// PriceBarStore provides access to price_bars storage.
type PriceBarStore interface {
	PriceBarReader

	// InsertBulk adds bars for a symbol. Fails entire batch on duplicate (symbol, timestamp).
	InsertBulk(ctx context.Context, symbol string, bars []domain.PriceBar) error
}

// ResultStore provides access to archived backtest results.
type ResultStore interface {
	// Save stores a terminal job with its trades. Returns ErrDuplicateKey if job_id exists.
	Save(ctx context.Context, r *domain.JobResult) error

	// GetByJobID retrieves a result with its trades. Returns ErrNotFound if not exists.
	GetByJobID(ctx context.Context, jobID string) (*domain.JobResult, error)

	// ListBySymbol retrieves results for a symbol without trades, newest first.
	ListBySymbol(ctx context.Context, symbol string) ([]*domain.JobResult, error)
}
