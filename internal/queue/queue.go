// Package queue implements the bounded multi-producer/multi-consumer
// FIFO that is the single synchronization point between producers and
// consumer workers (spec.md §4.4).
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dzita/keyhunter/internal/keyutil"
)

// Batch is an ordered, immutable sequence of derived public keys produced
// as one unit of work by a single producer.
type Batch struct {
	ProducerID int
	Keys       []keyutil.PublicKeyBytes
}

// BatchQueue is a bounded FIFO of batches from producers to consumers. A
// producer offering into a full queue blocks until space is available or
// ctx is cancelled; an empty poll returns ok=false without blocking.
type BatchQueue struct {
	ch       chan Batch
	capacity int

	warnOnce   sync.Once
	warnWindow int64 // unix nanos of the last capacity-starved warning
	onStarved  func(size, capacity int)
}

// New creates a BatchQueue with the given bounded capacity Q.
func New(capacity int) *BatchQueue {
	return &BatchQueue{
		ch:       make(chan Batch, capacity),
		capacity: capacity,
	}
}

// OnStarved registers a callback invoked (at most once per second) when
// Offer observes the queue at full capacity - the soft warning spec.md
// §4.4 calls for when the user should raise Q.
func (q *BatchQueue) OnStarved(fn func(size, capacity int)) {
	q.onStarved = fn
}

// Offer blocks until there is space in the queue or ctx is cancelled. It
// reports ctx.Err() on cancellation so a producer can exit its outer loop
// promptly, per spec.md §5's "must not be stuck in offer after shutdown".
func (q *BatchQueue) Offer(ctx context.Context, b Batch) error {
	if len(q.ch) >= q.capacity {
		q.warnStarved()
	}
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *BatchQueue) warnStarved() {
	if q.onStarved == nil {
		return
	}
	now := time.Now().UnixNano()
	last := atomic.LoadInt64(&q.warnWindow)
	if now-last < int64(time.Second) {
		return
	}
	if atomic.CompareAndSwapInt64(&q.warnWindow, last, now) {
		q.onStarved(len(q.ch), q.capacity)
	}
}

// Poll returns a batch and ok=true if one was immediately available, or
// ok=false if the queue is empty - it never blocks.
func (q *BatchQueue) Poll() (b Batch, ok bool) {
	select {
	case b = <-q.ch:
		return b, true
	default:
		return Batch{}, false
	}
}

// Len reports the current queue depth, used only by StatsReporter.
func (q *BatchQueue) Len() int { return len(q.ch) }

// Cap reports the configured capacity Q.
func (q *BatchQueue) Cap() int { return q.capacity }
