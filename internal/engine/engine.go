// Package engine implements the lifecycle and shutdown orchestration of
// spec.md §4.7: start consumers, then producers, then stats; on stop,
// signal producers, drain the queue with a bounded wait, stop stats, and
// release per-worker resources.
package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dzita/keyhunter/internal/addressindex"
	"github.com/dzita/keyhunter/internal/consumer"
	"github.com/dzita/keyhunter/internal/errs"
	"github.com/dzita/keyhunter/internal/klog"
	"github.com/dzita/keyhunter/internal/producer"
	"github.com/dzita/keyhunter/internal/queue"
	"github.com/dzita/keyhunter/internal/stats"
)

// Producer is the subset of producer.CPUProducer's contract the engine
// needs to run a producer to completion.
type Producer interface {
	Run(ctx context.Context, q *queue.BatchQueue) error
}

// Engine wires one shared stop token (a context.Context/cancel pair, per
// spec.md §9's design note reimplementing the Java Stoppable flag) across
// the consumer pool, the producer pool and the stats reporter.
type Engine struct {
	Queue     *queue.BatchQueue
	Index     addressindex.Index
	Producers []Producer
	Consumers []*consumer.Worker
	Stats     *stats.Reporter

	// AwaitQueueEmpty bounds how long shutdown waits for the consumer
	// pool to drain after producers have stopped.
	AwaitQueueEmpty time.Duration
}

// Run starts consumers, then producers, then the stats reporter (the
// startup order of spec.md §4.7), and blocks until every producer has
// returned: because ctx was cancelled, because a RunOnce producer
// finished, or because one returned an error. It then performs the
// shutdown sequence and returns the first producer error, if any.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var consumerWG sync.WaitGroup
	for _, w := range e.Consumers {
		consumerWG.Add(1)
		go func(w *consumer.Worker) {
			defer consumerWG.Done()
			w.Run(runCtx)
		}(w)
	}

	statsCtx, statsCancel := context.WithCancel(runCtx)
	if e.Stats != nil {
		go e.Stats.Run(statsCtx)
	}

	producerGroup, producerCtx := errgroup.WithContext(runCtx)
	for _, p := range e.Producers {
		p := p
		producerGroup.Go(func() error {
			return p.Run(producerCtx, e.Queue)
		})
	}

	fatal := producerGroup.Wait()

	// Step 1-2: stop flag has risen (via runCtx/producerCtx) and every
	// producer has returned - because ctx was cancelled, because each
	// finished under RunOnce, or because one of them returned an error.
	cancel()

	// Step 3: let consumers drain the queue, bounded by AwaitQueueEmpty.
	drained := make(chan struct{})
	go func() {
		consumerWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(e.AwaitQueueEmpty):
		klog.Log().Warnf("%s", (&errs.ShutdownTimeout{Waited: e.AwaitQueueEmpty.String()}).Error())
	}

	// Step 4: stop the stats reporter.
	statsCancel()

	// Step 5: release per-worker resources. Workers hold only stack-local
	// scratch arrays (see SPEC_FULL.md §5); the one shared resource to
	// release is the address index itself.
	if e.Index != nil {
		_ = e.Index.Close()
	}

	return fatal
}
