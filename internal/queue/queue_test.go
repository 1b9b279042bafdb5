package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOfferPollFIFO(t *testing.T) {
	q := New(4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Offer(ctx, Batch{ProducerID: i}))
	}

	for i := 0; i < 3; i++ {
		b, ok := q.Poll()
		require.True(t, ok)
		require.Equal(t, i, b.ProducerID)
	}

	_, ok := q.Poll()
	require.False(t, ok, "poll on an empty queue must return ok=false, not block")
}

func TestOfferBlocksUntilSpaceOrCancel(t *testing.T) {
	q := New(1)
	ctx := context.Background()
	require.NoError(t, q.Offer(ctx, Batch{ProducerID: 1}))

	blockedCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- q.Offer(blockedCtx, Batch{ProducerID: 2})
	}()

	select {
	case <-done:
		t.Fatal("offer into a full queue must block")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("offer did not return promptly after cancellation")
	}
}

func TestStarvedWarningFiresAtCapacity(t *testing.T) {
	q := New(1)
	var mu sync.Mutex
	var fired int
	q.OnStarved(func(size, capacity int) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	ctx := context.Background()
	require.NoError(t, q.Offer(ctx, Batch{}))

	go func() { _ = q.Offer(ctx, Batch{}) }()
	time.Sleep(20 * time.Millisecond)
	_, _ = q.Poll()
	_, _ = q.Poll()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, fired, 1)
}
