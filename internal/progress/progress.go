// Package progress fans job progress updates out to subscribers.
package progress

import (
	"context"

	"backtest-lab/internal/domain"
)

// Publisher publishes progress updates of running jobs.
type Publisher interface {
	Publish(ctx context.Context, u domain.ProgressUpdate) error
}

// Subscriber streams the progress updates of one job.
// The channel delivers the latest update; intermediate updates may be skipped
// when the reader is slow. It is closed after a terminal update or on cancel.
type Subscriber interface {
	Subscribe(ctx context.Context, jobID string) (<-chan domain.ProgressUpdate, func(), error)
}

// Bus is a Publisher and Subscriber.
type Bus interface {
	Publisher
	Subscriber
}

// OfferLatest puts u into a single-slot channel, replacing any unread value.
// Callers must be the only sender on ch.
func OfferLatest(ch chan domain.ProgressUpdate, u domain.ProgressUpdate) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}
