package job

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/progress"
)

// asyncPublisher delivers progress updates in order from its own goroutine,
// so a slow bus never stalls a simulation. The reporter's step coalescing
// bounds the queue to about 1/step updates per job.
type asyncPublisher struct {
	pub    progress.Publisher
	logger *zap.Logger

	mu     sync.Mutex
	queue  []domain.ProgressUpdate
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newAsyncPublisher(pub progress.Publisher, logger *zap.Logger) *asyncPublisher {
	p := &asyncPublisher{
		pub:    pub,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// enqueue never blocks. Updates after close are dropped.
func (p *asyncPublisher) enqueue(u domain.ProgressUpdate) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Debug("progress update after shutdown dropped", zap.String("job_id", u.ID))
		return
	}
	p.queue = append(p.queue, u)
	p.mu.Unlock()
	p.signal()
}

func (p *asyncPublisher) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *asyncPublisher) loop() {
	defer close(p.done)
	for {
		p.mu.Lock()
		batch := p.queue
		p.queue = nil
		closed := p.closed
		p.mu.Unlock()

		for _, u := range batch {
			p.send(u)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-p.wake
	}
}

func (p *asyncPublisher) send(u domain.ProgressUpdate) {
	// Publishing must not be cut short by job cancellation.
	err := p.pub.Publish(context.Background(), u)
	observability.RecordProgressPublished(err)
	if err != nil {
		p.logger.Warn("progress publish failed", zap.String("job_id", u.ID), zap.Error(err))
	}
}

// close stops accepting updates and waits for queued ones to be sent or ctx to end.
func (p *asyncPublisher) close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.signal()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
