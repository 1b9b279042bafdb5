package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dzita/keyhunter/internal/addressindex"
	"github.com/dzita/keyhunter/internal/consumer"
	"github.com/dzita/keyhunter/internal/queue"
)

// blockingProducer blocks in Offer until ctx is cancelled, simulating a
// producer stuck trying to enqueue into a full queue - scenario 6.
type blockingProducer struct {
	started chan struct{}
}

func (p *blockingProducer) Run(ctx context.Context, q *queue.BatchQueue) error {
	close(p.started)
	_ = q.Offer(ctx, queue.Batch{})
	<-ctx.Done()
	return nil
}

func TestShutdownDuringFullQueueExitsWithinAwaitQueueEmpty(t *testing.T) {
	q := queue.New(1)
	// Fill the queue so the producer's Offer call blocks.
	require.NoError(t, q.Offer(context.Background(), queue.Batch{}))

	idx := addressindex.NewMemoryIndex()
	w := &consumer.Worker{
		ID:       0,
		Index:    idx,
		Queue:    q,
		Counters: &consumer.Counters{},
		Config:   consumer.Config{DelayEmptyConsumer: time.Millisecond},
	}

	started := make(chan struct{})
	p := &blockingProducer{started: started}

	e := &Engine{
		Queue:           q,
		Index:           idx,
		Producers:       []Producer{p},
		Consumers:       []*consumer.Worker{w},
		AwaitQueueEmpty: 200 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	<-started
	time.Sleep(10 * time.Millisecond) // let the producer block in Offer
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not shut down within AwaitQueueEmpty + margin")
	}
}
