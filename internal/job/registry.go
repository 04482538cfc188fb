// Package job owns backtest jobs: their status state machine, the registry
// that runs them in the background, and retention of finished jobs.
package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/progress"
	"backtest-lab/internal/simulation"
)

const (
	// DefaultProgressStep is the minimum progress advance between two Running writes.
	DefaultProgressStep = 0.01

	// DefaultSinkTimeout bounds one archive sink call.
	DefaultSinkTimeout = 30 * time.Second
)

// RegistryOptions contains configuration for creating a Registry.
type RegistryOptions struct {
	Logger        *zap.Logger           // default: zap.NewNop()
	Publisher     progress.Publisher    // optional
	Sinks         map[string]ResultSink // optional, keyed by sink name for metrics
	ProgressStep  float64               // default: DefaultProgressStep
	MaxConcurrent int                   // 0 = unlimited
	SinkTimeout   time.Duration         // default: DefaultSinkTimeout

	// RetentionTTL evicts terminal jobs after this long. 0 keeps them until Evict.
	RetentionTTL    time.Duration
	CleanupInterval time.Duration // default: RetentionTTL / 2

	NewID func() string    // default: uuid.NewString
	Now   func() time.Time // default: time.Now
}

type entry struct {
	job    *Job
	cancel context.CancelFunc
	done   chan struct{}
	ticket chan struct{} // nil without a concurrency limit
}

// Registry maps job IDs to jobs and runs each job in its own goroutine.
type Registry struct {
	logger      *zap.Logger
	publisher   *asyncPublisher
	sinks       map[string]ResultSink
	step        float64
	sinkTimeout time.Duration
	slots       *slots
	newID       func() string
	now         func() time.Time
	retention   *retention

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*entry
	closed bool
}

// NewRegistry creates a job registry.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		logger:      opts.Logger,
		sinks:       opts.Sinks,
		step:        opts.ProgressStep,
		sinkTimeout: opts.SinkTimeout,
		newID:       opts.NewID,
		now:         opts.Now,
		jobs:        make(map[string]*entry),
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.step <= 0 {
		r.step = DefaultProgressStep
	}
	if r.sinkTimeout <= 0 {
		r.sinkTimeout = DefaultSinkTimeout
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.now == nil {
		r.now = time.Now
	}
	if opts.Publisher != nil {
		r.publisher = newAsyncPublisher(opts.Publisher, r.logger)
	}
	if opts.MaxConcurrent > 0 {
		r.slots = newSlots(opts.MaxConcurrent)
	}
	r.baseCtx, r.baseCancel = context.WithCancel(context.Background())

	if opts.RetentionTTL > 0 {
		r.retention = newRetention(opts.RetentionTTL, opts.CleanupInterval, r.evictExpired)
	}
	return r
}

// Create registers a job in Running(0) and starts it in the background.
// It returns as soon as the job is registered. With a concurrency limit,
// jobs start simulating in creation order.
func (r *Registry) Create(spec Spec) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRegistryClosed
	}

	id := r.newID()
	for _, taken := r.jobs[id]; taken; _, taken = r.jobs[id] {
		id = r.newID()
	}

	ctx, cancel := context.WithCancel(r.baseCtx)
	e := &entry{
		job:    NewJob(id, spec.Symbol, spec.StrategyID, r.now()),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if r.slots != nil {
		e.ticket = r.slots.take()
	}
	r.jobs[id] = e
	r.wg.Add(1)
	r.mu.Unlock()

	observability.RecordJobCreated()
	r.logger.Info("backtest job created",
		zap.String("job_id", id),
		zap.String("symbol", spec.Symbol),
		zap.String("strategy", spec.StrategyID),
	)
	r.publish(e.job.Progress())

	go r.run(ctx, e, spec)
	return id, nil
}

// Get returns the job with the given ID.
func (r *Registry) Get(id string) (*Job, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return e.job, nil
}

// Status returns the current status of a job.
func (r *Registry) Status(id string) (domain.BacktestStatus, error) {
	j, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return j.Status(), nil
}

// Progress returns the ProgressUpdate projection of a job.
func (r *Registry) Progress(id string) (domain.ProgressUpdate, error) {
	j, err := r.Get(id)
	if err != nil {
		return domain.ProgressUpdate{}, err
	}
	return j.Progress(), nil
}

// Result returns the trades of a completed job.
func (r *Registry) Result(id string) ([]domain.Trade, error) {
	s, err := r.Status(id)
	if err != nil {
		return nil, err
	}
	c, ok := s.(domain.Completed)
	if !ok {
		return nil, ErrNotCompleted
	}
	return c.Trades, nil
}

// Error returns the message of a failed job.
func (r *Registry) Error(id string) (string, error) {
	s, err := r.Status(id)
	if err != nil {
		return "", err
	}
	f, ok := s.(domain.Failed)
	if !ok {
		return "", ErrNotFailed
	}
	return f.Error, nil
}

// JobResult returns the archived form of a terminal job.
func (r *Registry) JobResult(id string) (*domain.JobResult, error) {
	j, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !j.Status().Terminal() {
		return nil, ErrNotCompleted
	}
	return j.result(), nil
}

// List returns the IDs of all registered jobs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// ListProgress returns the ProgressUpdate of every job, oldest first.
func (r *Registry) ListProgress() []domain.ProgressUpdate {
	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		jobs = append(jobs, e.job)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt().Equal(jobs[b].CreatedAt()) {
			return jobs[a].CreatedAt().Before(jobs[b].CreatedAt())
		}
		return jobs[a].ID() < jobs[b].ID()
	})

	out := make([]domain.ProgressUpdate, len(jobs))
	for i, j := range jobs {
		out[i] = j.Progress()
	}
	return out
}

// Cancel asks a running job to stop at the next bar boundary.
// The job becomes Failed("cancelled"); Cancel does not wait for it.
func (r *Registry) Cancel(id string) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	if e.job.Status().Terminal() {
		return ErrJobAlreadyTerminal
	}
	e.cancel()
	r.logger.Info("backtest job cancel requested", zap.String("job_id", id))
	return nil
}

// Wait blocks until the job is terminal or ctx is done.
func (r *Registry) Wait(ctx context.Context, id string) (domain.BacktestStatus, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-e.done:
		return e.job.Status(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Evict removes a terminal job. Running jobs cannot be evicted.
func (r *Registry) Evict(id string) error {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if !e.job.Status().Terminal() {
		r.mu.Unlock()
		return ErrJobRunning
	}
	delete(r.jobs, id)
	r.mu.Unlock()

	if r.retention != nil {
		r.retention.forget(id)
	}
	observability.RecordJobEvicted()
	r.logger.Debug("backtest job evicted", zap.String("job_id", id))
	return nil
}

// evictExpired is the retention callback. The job may already be gone.
func (r *Registry) evictExpired(id string) {
	if err := r.Evict(id); err != nil && !errors.Is(err, ErrNotFound) {
		r.logger.Warn("retention eviction failed", zap.String("job_id", id), zap.Error(err))
	}
}

// Shutdown rejects new jobs, cancels running ones and waits for every job
// to reach a terminal state and its progress to be published, or ctx to be done.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.baseCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("registry shutdown: %w", ctx.Err())
	}
	if r.publisher != nil {
		if perr := r.publisher.close(ctx); perr != nil && err == nil {
			err = fmt.Errorf("registry shutdown: flush progress: %w", perr)
		}
	}
	if r.retention != nil {
		r.retention.close()
	}
	return err
}

func (r *Registry) entry(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// run executes one job. Whatever happens, the job ends Completed or Failed.
func (r *Registry) run(ctx context.Context, e *entry, spec Spec) {
	defer r.wg.Done()
	defer close(e.done)
	defer e.cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("backtest job panicked",
				zap.String("job_id", e.job.ID()),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			r.finish(e, nil, fmt.Errorf("internal error: %v", rec))
		}
	}()

	if e.ticket != nil {
		select {
		case <-e.ticket:
			defer r.slots.release()
		case <-ctx.Done():
			r.slots.abandon(e.ticket)
			r.finish(e, nil, simulation.ErrCancelled)
			return
		}
	}

	trades, err := r.execute(ctx, e.job, spec)
	r.finish(e, trades, err)
}

func (r *Registry) execute(ctx context.Context, j *Job, spec Spec) ([]domain.Trade, error) {
	if err := spec.Config.Validate(); err != nil {
		return nil, err
	}
	if spec.Strategy == nil {
		return nil, fmt.Errorf("%w: no strategy", domain.ErrInvalidConfiguration)
	}
	strat, err := spec.Strategy()
	if err != nil {
		return nil, err
	}
	if spec.Source == nil {
		return nil, fmt.Errorf("%w: no price series", domain.ErrInvalidConfiguration)
	}
	series, err := spec.Source.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, simulation.ErrCancelled
		}
		return nil, fmt.Errorf("load price series: %w", err)
	}
	if series == nil {
		return nil, fmt.Errorf("%w: no price series", domain.ErrInvalidConfiguration)
	}

	rep := newReporter(j, r.step, r.publish, r.logger)
	loop := simulation.NewLoop(simulation.LoopOptions{
		Strategy:   strat,
		Config:     spec.Config,
		OnProgress: rep.report,
	})

	trades, err := loop.Run(ctx, series)
	if err != nil {
		if errors.Is(err, simulation.ErrStrategy) {
			observability.RecordStrategyError(strat.ID())
		}
		return nil, err
	}
	observability.RecordBarsProcessed(series.Len())
	return trades, nil
}

// finish moves the job to its terminal state, publishes it, then archives it.
func (r *Registry) finish(e *entry, trades []domain.Trade, runErr error) {
	j := e.job
	now := r.now()

	var err error
	if runErr == nil {
		err = j.Complete(trades, now)
	} else {
		err = j.Fail(runErr.Error(), now)
	}
	if err != nil {
		r.logger.Warn("backtest job already terminal",
			zap.String("job_id", j.ID()),
			zap.NamedError("run_error", runErr),
		)
		return
	}

	status := j.Status()
	duration := now.Sub(j.CreatedAt())
	observability.RecordJobFinished(status.Label(), duration.Seconds())
	for _, t := range trades {
		observability.RecordTradeClosed(string(t.ExitReason))
	}

	if runErr == nil {
		r.logger.Info("backtest job completed",
			zap.String("job_id", j.ID()),
			zap.Int("trades", len(trades)),
			zap.Duration("duration", duration),
		)
	} else {
		r.logger.Info("backtest job failed",
			zap.String("job_id", j.ID()),
			zap.String("error", runErr.Error()),
			zap.Duration("duration", duration),
		)
	}

	r.publish(j.Progress())
	r.archive(j.result())

	if r.retention != nil {
		r.retention.track(j.ID())
	}
}

func (r *Registry) publish(u domain.ProgressUpdate) {
	if r.publisher != nil {
		r.publisher.enqueue(u)
	}
}

// archive hands a terminal result to every sink. Failures never change the job.
func (r *Registry) archive(res *domain.JobResult) {
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(context.Background(), r.sinkTimeout)
		err := r.sinks[name].Save(ctx, res)
		cancel()

		observability.RecordArchive(name, err)
		if err != nil {
			r.logger.Error("archive job result failed",
				zap.String("job_id", res.JobID),
				zap.String("sink", name),
				zap.Error(err),
			)
		}
	}
}
