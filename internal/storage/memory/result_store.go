package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.JobResult // keyed by job_id
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[string]*domain.JobResult),
	}
}

// Save stores a terminal job. Returns ErrDuplicateKey if job_id exists.
func (s *ResultStore) Save(_ context.Context, r *domain.JobResult) error {
	if r == nil || r.JobID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.JobID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.JobID] = cloneResult(r, true)
	return nil
}

// GetByJobID retrieves a result with its trades. Returns ErrNotFound if not exists.
func (s *ResultStore) GetByJobID(_ context.Context, jobID string) (*domain.JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[jobID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneResult(r, true), nil
}

// ListBySymbol retrieves results for a symbol without trades, newest first.
func (s *ResultStore) ListBySymbol(_ context.Context, symbol string) ([]*domain.JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.JobResult
	for _, r := range s.data {
		if r.Symbol == symbol {
			result = append(result, cloneResult(r, false))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	return result, nil
}

func cloneResult(r *domain.JobResult, withTrades bool) *domain.JobResult {
	c := *r
	c.Trades = nil
	if withTrades && r.Trades != nil {
		c.Trades = append([]domain.Trade(nil), r.Trades...)
	}
	return &c
}

var _ storage.ResultStore = (*ResultStore)(nil)
