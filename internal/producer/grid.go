package producer

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/dzita/keyhunter/internal/keyutil"
)

// GridExpander is the dispatch contract spec.md §4.3 carves out so that a
// batched backend (GPU or SIMD) can replace per-key scalar multiplication
// with one call that amortises a single expensive scalar-multiply across
// all 2^g related points: P(base|k) = P(base) + k*G. Only a CPU
// implementation (PointAdditionExpander) is provided here; a GPU kernel
// satisfying the same interface is explicitly out of scope (spec.md §1).
type GridExpander interface {
	// ExpandGrid returns the 2^g public points P(base), P(base|1), ...,
	// P(base|2^g - 1), indexed by k. The caller is responsible for
	// serialisation and HASH160 (spec.md §4.3's "host post-processing").
	ExpandGrid(base keyutil.Secret, g uint8) ([]*btcec.PublicKey, error)
}

// PointAdditionExpander expands a grid on the CPU by computing P(base)
// with one scalar multiplication and then walking the remaining 2^g-1
// points by repeated point addition of G, exploiting the grid-expansion
// identity instead of performing 2^g independent scalar multiplies.
type PointAdditionExpander struct{}

// NewPointAdditionExpander returns the canonical CPU GridExpander.
func NewPointAdditionExpander() *PointAdditionExpander { return &PointAdditionExpander{} }

// ExpandGrid implements GridExpander. base is not itself required to be
// non-zero - grid member k=0 is simply P(base), which CPUProducer's
// buildBatch marks invalid only when the resulting secret is exactly zero.
func (PointAdditionExpander) ExpandGrid(base keyutil.Secret, g uint8) ([]*btcec.PublicKey, error) {
	size := 1 << g
	out := make([]*btcec.PublicKey, size)

	curve := btcec.S256()
	gx, gy := curve.ScalarBaseMult(base.BigInt().Bytes())

	out[0] = pointToPublicKey(gx, gy)

	x, y := gx, gy
	for k := 1; k < size; k++ {
		x, y = curve.Add(x, y, curve.Gx, curve.Gy)
		out[k] = pointToPublicKey(x, y)
	}
	return out, nil
}

// pointToPublicKey wraps affine coordinates as a *btcec.PublicKey,
// following the FieldVal construction used throughout this pack's
// btcec/v2 consumers.
func pointToPublicKey(x, y *big.Int) *btcec.PublicKey {
	var fx, fy btcec.FieldVal
	fx.SetByteSlice(x.Bytes())
	fy.SetByteSlice(y.Bytes())
	return btcec.NewPublicKey(&fx, &fy)
}
