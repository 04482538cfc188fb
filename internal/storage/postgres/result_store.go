package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// Save stores a terminal job and its trades atomically. Returns ErrDuplicateKey if job_id exists.
func (s *ResultStore) Save(ctx context.Context, r *domain.JobResult) (err error) {
	if r == nil || r.JobID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "save_result", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_jobs (
			job_id, symbol, strategy_id, status, error, trade_count, created_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		r.JobID, r.Symbol, r.StrategyID, r.Status, r.Error, len(r.Trades), r.CreatedAt, r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest job: %w", err)
	}

	query := `
		INSERT INTO backtest_trades (
			trade_id, job_id, seq, symbol, side,
			entry_price, exit_price, quantity, profit_pct, profit_abs,
			entry_time, exit_time, exit_reason
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13
		)
	`

	for i, t := range r.Trades {
		tradeID := idhash.ComputeTradeID(r.JobID, i, t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli())
		_, err = tx.Exec(ctx, query,
			tradeID, r.JobID, i, t.Symbol, t.Side.String(),
			t.EntryPrice, t.ExitPrice, t.Quantity, t.ProfitPct, t.ProfitAbs,
			t.EntryTime, t.ExitTime, string(t.ExitReason),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert backtest trade %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByJobID retrieves a result with its trades. Returns ErrNotFound if not exists.
func (s *ResultStore) GetByJobID(ctx context.Context, jobID string) (*domain.JobResult, error) {
	query := `
		SELECT job_id, symbol, strategy_id, status, error, created_at, finished_at
		FROM backtest_jobs
		WHERE job_id = $1
	`

	r, err := scanJobResult(s.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest job by id: %w", err)
	}

	trades, err := s.getTrades(ctx, jobID)
	if err != nil {
		return nil, err
	}
	r.Trades = trades
	return r, nil
}

// ListBySymbol retrieves results for a symbol without trades, newest first.
func (s *ResultStore) ListBySymbol(ctx context.Context, symbol string) ([]*domain.JobResult, error) {
	query := `
		SELECT job_id, symbol, strategy_id, status, error, created_at, finished_at
		FROM backtest_jobs
		WHERE symbol = $1
		ORDER BY created_at DESC, job_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query backtest jobs by symbol: %w", err)
	}
	defer rows.Close()

	var results []*domain.JobResult
	for rows.Next() {
		r, err := scanJobResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest job: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest jobs: %w", err)
	}

	return results, nil
}

func (s *ResultStore) getTrades(ctx context.Context, jobID string) ([]domain.Trade, error) {
	query := `
		SELECT symbol, side, entry_price, exit_price, quantity, profit_pct, profit_abs,
			entry_time, exit_time, exit_reason
		FROM backtest_trades
		WHERE job_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("query backtest trades: %w", err)
	}
	defer rows.Close()

	trades := []domain.Trade{}
	for rows.Next() {
		var t domain.Trade
		var side, reason string
		err := rows.Scan(
			&t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.ProfitPct, &t.ProfitAbs,
			&t.EntryTime, &t.ExitTime, &reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan backtest trade: %w", err)
		}
		if t.Side, err = domain.ParseSide(side); err != nil {
			return nil, fmt.Errorf("scan backtest trade: %w", err)
		}
		t.ExitReason = domain.ExitReason(reason)
		t.EntryTime = t.EntryTime.UTC()
		t.ExitTime = t.ExitTime.UTC()
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest trades: %w", err)
	}

	return trades, nil
}

// scanJobResult scans a single backtest_jobs row.
func scanJobResult(row pgx.Row) (*domain.JobResult, error) {
	var r domain.JobResult
	err := row.Scan(&r.JobID, &r.Symbol, &r.StrategyID, &r.Status, &r.Error, &r.CreatedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}
