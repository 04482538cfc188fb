package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/progress"
)

// DefaultChannelPrefix prefixes the per-job Pub/Sub channel.
const DefaultChannelPrefix = "backtest:progress:"

// ProgressBus implements progress.Bus over Redis Pub/Sub.
// Each job publishes JSON ProgressUpdates on channel <prefix><job_id>.
type ProgressBus struct {
	rdb    *redis.Client
	prefix string
}

// NewProgressBus creates a ProgressBus. An empty prefix uses DefaultChannelPrefix.
func NewProgressBus(c *Client, prefix string) *ProgressBus {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &ProgressBus{rdb: c.rdb, prefix: prefix}
}

var _ progress.Bus = (*ProgressBus)(nil)

// Channel returns the Pub/Sub channel of a job.
func (b *ProgressBus) Channel(jobID string) string {
	return b.prefix + jobID
}

// Publish sends u to the job's channel.
func (b *ProgressBus) Publish(ctx context.Context, u domain.ProgressUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("redis: encode progress: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.Channel(u.ID), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", b.Channel(u.ID), err)
	}
	return nil
}

// Subscribe streams the job's updates into a single-slot latest-wins channel.
// The channel closes after a terminal update, on cancel, or when ctx is done.
func (b *ProgressBus) Subscribe(ctx context.Context, jobID string) (<-chan domain.ProgressUpdate, func(), error) {
	channel := b.Channel(jobID)
	pubsub := b.rdb.Subscribe(ctx, channel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan domain.ProgressUpdate, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var u domain.ProgressUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil || u.ID != jobID {
					continue
				}
				progress.OfferLatest(out, u)
				if u.Terminal() {
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
