// Package stats implements the periodic throughput/latency/hit reporter
// of spec.md §4.6: one ticker-driven task that snapshots the shared
// counters and queue depth and emits one summary line, never blocking a
// worker.
package stats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dzita/keyhunter/internal/consumer"
	"github.com/dzita/keyhunter/internal/klog"
	"github.com/dzita/keyhunter/internal/queue"
)

// Reporter periodically logs a throughput summary.
type Reporter struct {
	Counters *consumer.Counters
	Queue    *queue.BatchQueue
	Period   time.Duration

	start       time.Time
	lastChecked uint64
	lastTick    time.Time
}

// NewReporter constructs a Reporter. period must be > 0 - a non-positive
// printStatisticsEveryNSeconds is a ConfigError at startup, enforced by
// internal/config, not here.
func NewReporter(counters *consumer.Counters, q *queue.BatchQueue, period time.Duration) *Reporter {
	return &Reporter{Counters: counters, Queue: q, Period: period}
}

// Run ticks every Period until ctx is cancelled, emitting one summary
// line per tick. It is safe to stop at any time - it only reads atomics
// and the queue's Len(), so it can never leave a worker waiting on it.
func (r *Reporter) Run(ctx context.Context) {
	r.start = time.Now()
	r.lastTick = r.start

	ticker := time.NewTicker(r.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.report(now)
		}
	}
}

func (r *Reporter) report(now time.Time) {
	checked := atomic.LoadUint64(&r.Counters.CheckedKeys)
	totalNanos := atomic.LoadUint64(&r.Counters.CheckedKeysTimeToContainsNanos)
	hits := atomic.LoadUint64(&r.Counters.Hits)
	vanityHits := atomic.LoadUint64(&r.Counters.VanityHits)

	uptime := now.Sub(r.start)
	intervalChecked := checked - r.lastChecked
	intervalSecs := now.Sub(r.lastTick).Seconds()

	var keysPerSec float64
	if intervalSecs > 0 {
		keysPerSec = float64(intervalChecked) / intervalSecs
	}

	var avgProbeNanos float64
	if checked > 0 {
		avgProbeNanos = float64(totalNanos) / float64(checked)
	}

	klog.Log().Infof(
		"stats: uptime=%s keys/s=%.0f avg_probe=%.0fns queue_depth=%d/%d hits=%d vanity_hits=%d",
		uptime.Round(time.Second), keysPerSec, avgProbeNanos, r.Queue.Len(), r.Queue.Cap(), hits, vanityHits,
	)

	r.lastChecked = checked
	r.lastTick = now
}
