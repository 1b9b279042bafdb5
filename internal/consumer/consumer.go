// Package consumer implements the consumer worker pool and the per-key
// verification pipeline (spec.md §4.5): drain batches from the queue,
// probe the address index for both compression forms, optionally
// self-check the derivation and match a vanity pattern, and log hits.
package consumer

import (
	"context"
	"encoding/hex"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/dzita/keyhunter/internal/addressindex"
	"github.com/dzita/keyhunter/internal/errs"
	"github.com/dzita/keyhunter/internal/keyutil"
	"github.com/dzita/keyhunter/internal/klog"
	"github.com/dzita/keyhunter/internal/queue"
)

// Log record prefixes - stable for testing, per spec.md §6. These exact
// strings, including the leading "hit:"/"miss:"/"vanity pattern match:"
// tags, are load-bearing: scenario tests in this package assert on them
// verbatim.
const (
	SafeLogPrefix   = "hit: safe log: "
	HitPrefix       = "hit: Found the address: "
	MissPrefix      = "miss: Could not find the address: "
	VanityHitPrefix = "vanity pattern match: "
)

// Counters are the process-wide atomics of spec.md §3. Every Worker in a
// pool shares one *Counters.
type Counters struct {
	CheckedKeys                    uint64
	CheckedKeysTimeToContainsNanos uint64
	EmptyConsumerRounds            uint64
	Hits                           uint64
	VanityHits                     uint64
}

// Config holds the consumer-side options of spec.md §6.
type Config struct {
	DelayEmptyConsumer time.Duration
	SelfCheck          bool
	EnableVanity       bool
	VanityPattern      *regexp.Regexp
	TraceLogMisses     bool
	Network            *chaincfg.Params
}

// Worker is one of the T consumer threads of spec.md §4.5. Each
// processKey call uses its own stack-local [20]byte scratch array, never a
// heap-pooled or shared buffer (see SPEC_FULL.md §5).
type Worker struct {
	ID       int
	Index    addressindex.Index
	Queue    *queue.BatchQueue
	Counters *Counters
	Config   Config
}

// Run executes the worker loop of spec.md §4.5 steps 1-3 until ctx is
// cancelled. On cancellation it drains whatever is left in the queue one
// last time before returning, so a batch enqueued in the window just
// before shutdown is never left behind - spec.md §9's "queue is empty or
// ShutdownTimeout was logged" invariant.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.drainOnce(context.Background())
			return
		}
		drained := w.drainOnce(ctx)
		if !drained {
			atomic.AddUint64(&w.Counters.EmptyConsumerRounds, 1)
			select {
			case <-time.After(w.Config.DelayEmptyConsumer):
			case <-ctx.Done():
				w.drainOnce(context.Background())
				return
			}
		}
	}
}

// drainOnce polls the queue until it is empty, running the per-batch
// pipeline on whatever it finds. It reports whether at least one batch
// was processed.
func (w *Worker) drainOnce(ctx context.Context) bool {
	any := false
	for {
		batch, ok := w.Queue.Poll()
		if !ok {
			return any
		}
		any = true
		w.processBatch(ctx, batch)
	}
}

// processBatch runs the per-key pipeline (spec.md §4.5 a-g) over every
// entry in batch, in order, so that the single consumer owning this batch
// emits its side effects in batch order.
func (w *Worker) processBatch(ctx context.Context, batch queue.Batch) {
	for i := range batch.Keys {
		w.processKey(&batch.Keys[i])
	}
}

func (w *Worker) processKey(pk *keyutil.PublicKeyBytes) {
	if pk.Invalid {
		return
	}

	var scratch [20]byte

	copy(scratch[:], pk.Hash160Uncompressed[:])
	uncompressedHit, err := w.probe(scratch)
	if err != nil {
		klog.Log().Errorf("%s", (&errs.ProbeError{Hash160Hex: hex.EncodeToString(scratch[:]), Err: err}).Error())
		return
	}

	copy(scratch[:], pk.Hash160Compressed[:])
	compressedHit, err := w.probe(scratch)
	if err != nil {
		klog.Log().Errorf("%s", (&errs.ProbeError{Hash160Hex: hex.EncodeToString(scratch[:]), Err: err}).Error())
		return
	}

	if w.Config.SelfCheck {
		w.selfCheck(pk)
	}

	if uncompressedHit || compressedHit {
		w.emitSafeLog(pk)
		if uncompressedHit {
			atomic.AddUint64(&w.Counters.Hits, 1)
			w.emitHit(pk, false)
		}
		if compressedHit {
			atomic.AddUint64(&w.Counters.Hits, 1)
			w.emitHit(pk, true)
		}
	}

	if w.Config.EnableVanity {
		w.vanityCheck(pk)
	}

	if !uncompressedHit && !compressedHit && w.Config.TraceLogMisses {
		w.emitMiss(pk, false)
		w.emitMiss(pk, true)
	}
}

// probe queries the address index for one HASH160, timing the call into
// CheckedKeysTimeToContainsNanos and incrementing CheckedKeys, per
// spec.md §4.5 steps b-c.
func (w *Worker) probe(hash160 [20]byte) (bool, error) {
	start := time.Now()
	found, err := w.Index.Contains(hash160)
	atomic.AddUint64(&w.Counters.CheckedKeysTimeToContainsNanos, uint64(time.Since(start).Nanoseconds()))
	atomic.AddUint64(&w.Counters.CheckedKeys, 1)
	return found, err
}

// selfCheck independently re-derives the public point from pk.Secret and
// compares HASH160s byte-for-byte against what the batch already carries.
// A mismatch is logged and never aborts the search - spec.md §4.5 step d.
func (w *Worker) selfCheck(pk *keyutil.PublicKeyBytes) {
	reference := keyutil.DeriveFromSecret(pk.Secret)
	if reference.Invalid {
		return
	}
	if reference.Uncompressed == pk.Uncompressed &&
		reference.Compressed == pk.Compressed &&
		reference.Hash160Uncompressed == pk.Hash160Uncompressed &&
		reference.Hash160Compressed == pk.Hash160Compressed {
		return
	}

	mismatch := &errs.SelfCheckMismatch{
		Secret:                  pk.Secret.String(),
		UncompressedWant:        hex.EncodeToString(reference.Uncompressed[:]),
		UncompressedGot:         hex.EncodeToString(pk.Uncompressed[:]),
		CompressedWant:          hex.EncodeToString(reference.Compressed[:]),
		CompressedGot:           hex.EncodeToString(pk.Compressed[:]),
		Hash160UncompressedWant: hex.EncodeToString(reference.Hash160Uncompressed[:]),
		Hash160UncompressedGot:  hex.EncodeToString(pk.Hash160Uncompressed[:]),
		Hash160CompressedWant:   hex.EncodeToString(reference.Hash160Compressed[:]),
		Hash160CompressedGot:    hex.EncodeToString(pk.Hash160Compressed[:]),
	}
	klog.Log().Errorf("%s", mismatch.Error())
}

// vanityCheck Base58-encodes each HASH160's address and tests it against
// the configured pattern, spec.md §4.5 step f. Hit and vanity-hit are
// independent: both counters may increment for the same key.
func (w *Worker) vanityCheck(pk *keyutil.PublicKeyBytes) {
	for _, compressed := range [2]bool{false, true} {
		var hash160 [20]byte
		if compressed {
			hash160 = pk.Hash160Compressed
		} else {
			hash160 = pk.Hash160Uncompressed
		}
		addr, err := keyutil.Hash160ToBase58Address(hash160, w.Config.Network)
		if err != nil {
			continue
		}
		if w.Config.VanityPattern.MatchString(addr) {
			w.emitSafeLog(pk)
			atomic.AddUint64(&w.Counters.VanityHits, 1)
			details, err := keyutil.FormatKeyDetails(pk.Secret, *pk, compressed, w.Config.Network)
			if err != nil {
				continue
			}
			klog.Log().Infof("%s%s", VanityHitPrefix, details)
		}
	}
}

// emitSafeLog is emitted first on any hit, before any fallible
// formatting, so the raw secret is already recorded even if subsequent
// formatting fails - spec.md §4.5's "safe log" edge case.
func (w *Worker) emitSafeLog(pk *keyutil.PublicKeyBytes) {
	fields := [][2]string{
		{"secret", pk.Secret.String()},
		{"uncompressed", hex.EncodeToString(pk.Uncompressed[:])},
		{"compressed", hex.EncodeToString(pk.Compressed[:])},
		{"hash160 uncompressed", hex.EncodeToString(pk.Hash160Uncompressed[:])},
		{"hash160 compressed", hex.EncodeToString(pk.Hash160Compressed[:])},
	}
	for _, f := range fields {
		klog.Log().Infof("%s%s: %s", SafeLogPrefix, f[0], f[1])
	}
}

func (w *Worker) emitHit(pk *keyutil.PublicKeyBytes, compressed bool) {
	details, err := keyutil.FormatKeyDetails(pk.Secret, *pk, compressed, w.Config.Network)
	if err != nil {
		klog.Log().Errorf("hit: failed to format key details for secret %s: %s", pk.Secret, err)
		return
	}
	klog.Log().Infof("%s%s", HitPrefix, details)
}

func (w *Worker) emitMiss(pk *keyutil.PublicKeyBytes, compressed bool) {
	details, err := keyutil.FormatKeyDetails(pk.Secret, *pk, compressed, w.Config.Network)
	if err != nil {
		return
	}
	klog.Log().Tracef("%s%s", MissPrefix, details)
}
