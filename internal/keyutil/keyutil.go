// Package keyutil implements the pure scalar-arithmetic and encoding
// helpers shared by every producer and consumer: killing bits to build a
// grid base, composing a grid member secret, deriving both HASH160
// fingerprints for a candidate public key, and formatting the
// human-readable record logged on a hit.
//
// Everything here is side-effect free. The SIMD SHA256
// (github.com/minio/sha256-simd) and RIPEMD160 (golang.org/x/crypto/ripemd160)
// calls are the only "expensive" work, and they sit on the hot
// grid-expansion path exercised by every producer.
package keyutil

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"
	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // intentionally pinned per spec
)

// SecretSize is the byte length of a 256-bit secret.
const SecretSize = 32

// Secret is a 256-bit unsigned integer in [1, n-1], n being the secp256k1
// group order, represented big-endian. The zero value represents the
// invalid secret 0 and is never a valid signing key.
type Secret [SecretSize]byte

// String renders the secret as lowercase hex, matching the log formats
// spec.md fixes for hit records.
func (s Secret) String() string {
	return hex.EncodeToString(s[:])
}

// BigInt returns the secret as a *big.Int.
func (s Secret) BigInt() *big.Int {
	return new(big.Int).SetBytes(s[:])
}

// SecretFromBigInt truncates/pads v into a Secret. Values wider than 256
// bits are truncated to their low 32 bytes, mirroring how a BigInteger
// decimal input larger than the group order is still carried through as a
// byte pattern - validity against the curve order is checked at
// derivation time, not at parse time.
func SecretFromBigInt(v *big.Int) Secret {
	var out Secret
	b := v.Bytes()
	if len(b) > SecretSize {
		b = b[len(b)-SecretSize:]
	}
	copy(out[SecretSize-len(b):], b)
	return out
}

// IsZero reports whether the secret is the all-zero value.
func (s Secret) IsZero() bool {
	var zero Secret
	return subtle.ConstantTimeCompare(s[:], zero[:]) == 1
}

// KillBits returns secret AND NOT mask: the bits set in mask are forced to
// zero in the result. This is the grid-base construction of spec.md §4.1.
func KillBits(secret, mask Secret) Secret {
	var out Secret
	for i := range out {
		out[i] = secret[i] &^ mask[i]
	}
	return out
}

// ComposeKey returns base OR k: the grid member secret for low-bit pattern
// k. OR is preferred over ADD because, given that base's low g bits are
// zero (by construction of KillBits with a mask covering at least those g
// bits), OR and ADD are equivalent, but OR never carries - see the
// AddKey doc comment for the carry-bearing alternative.
func ComposeKey(base Secret, k uint32) Secret {
	out := base
	composeLowBits(&out, k)
	return out
}

// composeLowBits ORs the low 32 bits of k into out's trailing 4 bytes.
// batchSize is capped at 1<<24 (gridNumBits <= 24), so k never touches
// more than the low 4 bytes of the 32-byte secret.
func composeLowBits(out *Secret, k uint32) {
	n := len(out)
	out[n-1] |= byte(k)
	out[n-2] |= byte(k >> 8)
	out[n-3] |= byte(k >> 16)
	out[n-4] |= byte(k >> 24)
}

// AddKey returns base + k as a Secret. Present only as the documented
// alternative to ComposeKey: it produces identical results to ComposeKey
// whenever base's low bits covered by k are zero, but unlike OR it must
// propagate a carry, so it is never used on the hot grid-expansion path.
func AddKey(base Secret, k uint32) Secret {
	sum := new(big.Int).Add(base.BigInt(), new(big.Int).SetUint64(uint64(k)))
	return SecretFromBigInt(sum)
}

// PublicKeyBytes is the artifact a producer emits for one candidate
// secret: both serialisations of the derived public point and both
// HASH160 fingerprints, per spec.md §3.
type PublicKeyBytes struct {
	Secret              Secret
	Uncompressed        [65]byte
	Compressed          [33]byte
	Hash160Uncompressed [20]byte
	Hash160Compressed   [20]byte
	Invalid             bool
}

// DeriveFromSecret derives the public key serialisations and both HASH160
// fingerprints for secret. It reports invalid (no error) when the secret
// is zero or does not correspond to a point on the curve - btcec.PrivKeyFromBytes
// never itself errors, so the zero-secret check is the only derivation
// failure this path can observe; btcec normalises zero to a degenerate
// key, which DeriveFromSecret refuses to serialise.
func DeriveFromSecret(secret Secret) PublicKeyBytes {
	out := PublicKeyBytes{Secret: secret}
	if secret.IsZero() {
		out.Invalid = true
		return out
	}

	_, pub := btcec.PrivKeyFromBytes(secret[:])
	fillFromPoint(&out, pub)
	return out
}

// fillFromPoint serialises pub into both forms and computes both
// HASH160s, writing the results into out.
func fillFromPoint(out *PublicKeyBytes, pub *btcec.PublicKey) {
	copy(out.Uncompressed[:], pub.SerializeUncompressed())
	copy(out.Compressed[:], pub.SerializeCompressed())
	out.Hash160Uncompressed = Hash160(out.Uncompressed[:])
	out.Hash160Compressed = Hash160(out.Compressed[:])
}

// Hash160 computes RIPEMD160(SHA256(b)) using the SIMD SHA256
// implementation, matching the teacher repository's hot-path hashing
// choice. The 20-byte result is returned by value so callers never share
// or alias the backing array, per spec.md §3's invariant.
func Hash160(b []byte) [20]byte {
	sum := sha256simd.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hash160ToBase58Address encodes a HASH160 fingerprint as a Base58Check
// P2PKH address for the given network, used only for vanity matching and
// display (never for membership testing - the index is keyed by raw
// hash160 bytes).
func Hash160ToBase58Address(hash160 [20]byte, params *chaincfg.Params) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(hash160[:], params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// Base58Hash160 base58-encodes the raw hash160 bytes without the
// version/checksum wrapper a full address carries. Vanity matching in
// this engine matches against the full Base58Check address (see
// Hash160ToBase58Address); Base58Hash160 exists for log lines that want
// the bare fingerprint instead of a spendable-looking address string.
func Base58Hash160(hash160 [20]byte) string {
	return base58.Encode(hash160[:])
}

// FormatKeyDetails produces the human-readable record logged on a hit:
// WIF, public key hex and address, for one compression form of secret.
func FormatKeyDetails(secret Secret, pub PublicKeyBytes, compressed bool, params *chaincfg.Params) (string, error) {
	priv, _ := btcec.PrivKeyFromBytes(secret[:])
	wif, err := btcutil.NewWIF(priv.ToECDSA(), params, compressed)
	if err != nil {
		return "", err
	}

	var pubHex string
	var hash160 [20]byte
	if compressed {
		pubHex = hex.EncodeToString(pub.Compressed[:])
		hash160 = pub.Hash160Compressed
	} else {
		pubHex = hex.EncodeToString(pub.Uncompressed[:])
		hash160 = pub.Hash160Uncompressed
	}

	addr, err := Hash160ToBase58Address(hash160, params)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("secret=%s wif=%s pubkey=%s hash160=%s address=%s",
		secret, wif.String(), pubHex, hex.EncodeToString(hash160[:]), addr), nil
}
