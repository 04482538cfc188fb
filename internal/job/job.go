package job

import (
	"fmt"
	"math"
	"sync"
	"time"

	"backtest-lab/internal/domain"
)

// Job is the status state machine of one backtest.
//
//	Running(p) -> Running(p')   p' >= p
//	Running    -> Completed(trades)
//	Running    -> Failed(msg)
//
// Completed and Failed are final. All reads and transitions are serialized,
// so a reader sees either the old or the new status, never a mix.
type Job struct {
	id         string
	symbol     string
	strategyID string
	createdAt  time.Time

	mu         sync.RWMutex
	status     domain.BacktestStatus
	finishedAt time.Time
}

// NewJob creates a job in Running(0).
func NewJob(id, symbol, strategyID string, createdAt time.Time) *Job {
	return &Job{
		id:         id,
		symbol:     symbol,
		strategyID: strategyID,
		createdAt:  createdAt,
		status:     domain.Running{Progress: 0},
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Symbol returns the requested symbol.
func (j *Job) Symbol() string { return j.symbol }

// StrategyID returns the strategy identifier, if known at creation.
func (j *Job) StrategyID() string { return j.strategyID }

// CreatedAt returns the creation time.
func (j *Job) CreatedAt() time.Time { return j.createdAt }

// Status returns the current status.
func (j *Job) Status() domain.BacktestStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// FinishedAt returns the terminal transition time; zero while running.
func (j *Job) FinishedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finishedAt
}

// Progress returns the wire projection of the current status.
func (j *Job) Progress() domain.ProgressUpdate {
	return domain.NewProgressUpdate(j.id, j.Status())
}

// SetProgress moves Running(p) to Running(progress).
func (j *Job) SetProgress(progress float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	running, ok := j.status.(domain.Running)
	if !ok {
		return ErrJobAlreadyTerminal
	}
	if math.IsNaN(progress) || progress < running.Progress || progress > 1 {
		return fmt.Errorf("%w: %v after %v", ErrInvalidProgress, progress, running.Progress)
	}
	j.status = domain.Running{Progress: progress}
	return nil
}

// Complete moves the job to Completed. trades is copied and frozen.
func (j *Job) Complete(trades []domain.Trade, at time.Time) error {
	frozen := make([]domain.Trade, len(trades))
	copy(frozen, trades)
	return j.finish(domain.Completed{Trades: frozen}, at)
}

// Fail moves the job to Failed(message).
func (j *Job) Fail(message string, at time.Time) error {
	return j.finish(domain.Failed{Error: message}, at)
}

func (j *Job) finish(next domain.BacktestStatus, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return ErrJobAlreadyTerminal
	}
	j.status = next
	j.finishedAt = at
	return nil
}

// result builds the archived form of a terminal job.
func (j *Job) result() *domain.JobResult {
	j.mu.RLock()
	defer j.mu.RUnlock()

	r := &domain.JobResult{
		JobID:      j.id,
		Symbol:     j.symbol,
		StrategyID: j.strategyID,
		Status:     j.status.Label(),
		CreatedAt:  j.createdAt,
		FinishedAt: j.finishedAt,
	}
	switch s := j.status.(type) {
	case domain.Completed:
		r.Trades = s.Trades
	case domain.Failed:
		r.Error = s.Error
	}
	return r
}
