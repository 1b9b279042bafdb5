// Package producer implements the component that turns one seed secret
// into one batch of derived public keys and hands it to the BatchQueue
// (spec.md §4.3).
package producer

import (
	"context"
	"errors"
	"io"

	"github.com/dzita/keyhunter/internal/errs"
	"github.com/dzita/keyhunter/internal/keyutil"
	"github.com/dzita/keyhunter/internal/queue"
	"github.com/dzita/keyhunter/internal/secretsource"
)

// Grid holds one producer's grid parameters: gridNumBits and killBits, per
// spec.md §3.
type Grid struct {
	// NumBits is the number of low bits of the secret that are
	// enumerated rather than sampled. Must be in [0, 24].
	NumBits uint8
	// KillMask has bits set wherever the seed must be forced to zero to
	// form the grid base; it must cover at least the low NumBits bits.
	KillMask keyutil.Secret
}

// BatchSize returns 1 << NumBits.
func (g Grid) BatchSize() int { return 1 << g.NumBits }

// OnDerivationError is invoked (never fatal) whenever expanding or
// serialising one grid member fails - spec.md §7's DerivationError.
type OnDerivationError func(err *errs.DerivationError)

// OnComplete is the producerCompletionCallback of spec.md §4.3, invoked
// exactly once as the producer's loop exits, by any path (stop,
// exhaustion, error).
type OnComplete func()

// CPUProducer is the canonical producer variant of spec.md §4.3: for each
// seed, expand a 2^g grid via a GridExpander, serialise and hash every
// member, and submit the batch.
type CPUProducer struct {
	ID         int
	Source     secretsource.Source
	Expander   GridExpander
	Grid       Grid
	RunOnce    bool
	OnDerivErr OnDerivationError
	OnComplete OnComplete
}

// Run drives the producer loop until ctx is cancelled, the source is
// exhausted under RunOnce, or the source or grid expansion returns an
// error other than io.EOF or a *errs.SourceParseError, which Run returns.
// Offer fails only on cancellation, so a failed submit ends the loop with
// a nil error. OnComplete always fires before Run returns.
func (p *CPUProducer) Run(ctx context.Context, q *queue.BatchQueue) error {
	if p.OnComplete != nil {
		defer p.OnComplete()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		seed, err := p.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if p.RunOnce {
					return nil
				}
				continue
			}
			var parseErr *errs.SourceParseError
			if errors.As(err, &parseErr) {
				// A single bad line never breaks the producer loop.
				continue
			}
			return err
		}

		batch, err := p.buildBatch(seed)
		if err != nil {
			return err
		}

		if err := q.Offer(ctx, queue.Batch{ProducerID: p.ID, Keys: batch}); err != nil {
			// Stop was signalled while blocked offering; the producer
			// completes its current (already-built) batch's derivation
			// but must not keep trying to enqueue it.
			return nil
		}

		if p.RunOnce {
			return nil
		}
	}
}

// buildBatch expands one seed's grid and serialises every member,
// per spec.md §4.3 steps 2-3.
func (p *CPUProducer) buildBatch(seed keyutil.Secret) ([]keyutil.PublicKeyBytes, error) {
	base := keyutil.KillBits(seed, p.Grid.KillMask)
	points, err := p.Expander.ExpandGrid(base, p.Grid.NumBits)
	if err != nil {
		return nil, err
	}

	out := make([]keyutil.PublicKeyBytes, len(points))
	for k, point := range points {
		secret := keyutil.ComposeKey(base, uint32(k))
		if secret.IsZero() {
			out[k] = keyutil.PublicKeyBytes{Secret: secret, Invalid: true}
			if p.OnDerivErr != nil {
				p.OnDerivErr(&errs.DerivationError{Secret: secret.String(), Err: errZeroSecret})
			}
			continue
		}
		out[k] = serialize(secret, point)
	}
	return out, nil
}

var errZeroSecret = errors.New("secret is zero")

// serialize builds the PublicKeyBytes for one already-derived point,
// mirroring keyutil.DeriveFromSecret's serialisation but reusing a point
// that a GridExpander already computed instead of re-deriving it.
func serialize(secret keyutil.Secret, point interface {
	SerializeCompressed() []byte
	SerializeUncompressed() []byte
}) keyutil.PublicKeyBytes {
	out := keyutil.PublicKeyBytes{Secret: secret}
	copy(out.Uncompressed[:], point.SerializeUncompressed())
	copy(out.Compressed[:], point.SerializeCompressed())
	out.Hash160Uncompressed = keyutil.Hash160(out.Uncompressed[:])
	out.Hash160Compressed = keyutil.Hash160(out.Compressed[:])
	return out
}
