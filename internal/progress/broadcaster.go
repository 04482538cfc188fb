package progress

import (
	"context"
	"sync"

	"backtest-lab/internal/domain"
)

type subscription struct {
	ch     chan domain.ProgressUpdate
	closed bool
}

// Broadcaster is an in-process Bus keyed by job ID.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[*subscription]struct{})}
}

// Publish delivers u to every subscriber of u.ID without blocking.
// A terminal update closes and removes the job's subscriptions.
func (b *Broadcaster) Publish(_ context.Context, u domain.ProgressUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[u.ID]
	for s := range subs {
		OfferLatest(s.ch, u)
		if u.Terminal() {
			s.closed = true
			close(s.ch)
		}
	}
	if u.Terminal() {
		delete(b.subs, u.ID)
	}
	return nil
}

// Subscribe registers for jobID's updates. The returned func unsubscribes;
// it is also called when ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, jobID string) (<-chan domain.ProgressUpdate, func(), error) {
	s := &subscription{ch: make(chan domain.ProgressUpdate, 1)}

	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[*subscription]struct{})
	}
	b.subs[jobID][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[jobID]; ok {
				delete(subs, s)
				if len(subs) == 0 {
					delete(b.subs, jobID)
				}
			}
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return s.ch, cancel, nil
}

// Subscribers returns the number of live subscriptions for jobID.
func (b *Broadcaster) Subscribers(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}

var _ Bus = (*Broadcaster)(nil)
