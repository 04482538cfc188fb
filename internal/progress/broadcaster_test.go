package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
)

func TestBroadcaster_LatestWins(t *testing.T) {
	b := NewBroadcaster()
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer cancel()

	// slow reader: three publishes before any read
	for _, p := range []float64{0.1, 0.2, 0.3} {
		require.NoError(t, b.Publish(ctx, domain.ProgressUpdate{ID: "job-1", Progress: p, Status: "running"}))
	}

	got := <-ch
	assert.Equal(t, 0.3, got.Progress)
}

func TestBroadcaster_FiltersByJob(t *testing.T) {
	b := NewBroadcaster()
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(ctx, domain.ProgressUpdate{ID: "job-2", Progress: 0.5, Status: "running"}))

	select {
	case u := <-ch:
		t.Fatalf("unexpected update %+v", u)
	default:
	}
}

func TestBroadcaster_TerminalClosesStream(t *testing.T) {
	b := NewBroadcaster()
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(ctx, domain.ProgressUpdate{ID: "job-1", Progress: 1, Status: "completed"}))

	u, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "completed", u.Status)

	_, ok = <-ch
	assert.False(t, ok, "stream closed after terminal update")
	assert.Equal(t, 0, b.Subscribers("job-1"))

	// cancel after close must not panic
	cancel()
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())

	ch, _, err := b.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("job-1"))

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
	assert.Equal(t, 0, b.Subscribers("job-1"))
}
