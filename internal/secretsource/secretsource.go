// Package secretsource implements the lazy, restartable-or-finite sequence
// of seed secrets each producer draws from (spec.md §4.2): a
// cryptographically random source, or a file of lines decoded per a
// configured SecretFormat.
package secretsource

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"

	"github.com/dzita/keyhunter/internal/errs"
	"github.com/dzita/keyhunter/internal/keyutil"
)

// Format selects how a line of a file-driven source is decoded into a
// Secret, per spec.md §4.2.
type Format int

const (
	// BigIntegerDecimal parses the line as a base-10 integer.
	BigIntegerDecimal Format = iota
	// HexSha256 parses the line as hex and uses it directly as the secret.
	HexSha256
	// StringDoSha256 uses SHA256 of the line's UTF-8 bytes as the secret.
	StringDoSha256
	// DumpedPrivateKey decodes the line as a Base58Check WIF.
	DumpedPrivateKey
)

// Source yields a sequence of 256-bit seed secrets. A producer owns its
// Source exclusively - no cross-thread sharing.
type Source interface {
	// Next returns the next seed secret. It reports io.EOF when a
	// finite source (a file) is exhausted. It must return promptly
	// after ctx is cancelled, even mid-line.
	Next(ctx context.Context) (keyutil.Secret, error)
}

// Random is an infinite Source drawing 32 bytes from a CSPRNG per call.
// It holds no state of its own: every call reads from crypto/rand.
type Random struct{}

// NewRandom returns a Random source.
func NewRandom() *Random { return &Random{} }

// Next implements Source. crypto/rand.Read is safe for concurrent use
// across goroutines internally, but this engine never shares one Random
// value between producers regardless.
func (r *Random) Next(ctx context.Context) (keyutil.Secret, error) {
	if err := ctx.Err(); err != nil {
		return keyutil.Secret{}, err
	}
	var s keyutil.Secret
	if _, err := rand.Read(s[:]); err != nil {
		return keyutil.Secret{}, err
	}
	return s, nil
}

// File is a finite Source reading lines from a path, decoding each per
// format. A malformed line returns a *errs.SourceParseError and Next
// continues scanning on the next call - the bad line never blocks the
// producer loop.
type File struct {
	f       *os.File
	scanner *bufio.Scanner
	format  Format
	params  *chaincfg.Params
	line    int
}

// OpenFile opens path and returns a File source decoding each line as
// format. params selects the network for DumpedPrivateKey decoding.
func OpenFile(path string, format Format, params *chaincfg.Params) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{
		f:       f,
		scanner: bufio.NewScanner(f),
		format:  format,
		params:  params,
	}, nil
}

// Close releases the underlying file handle.
func (fs *File) Close() error { return fs.f.Close() }

// Next implements Source. It reports io.EOF once the file is exhausted.
func (fs *File) Next(ctx context.Context) (keyutil.Secret, error) {
	for {
		if err := ctx.Err(); err != nil {
			return keyutil.Secret{}, err
		}
		if !fs.scanner.Scan() {
			if err := fs.scanner.Err(); err != nil {
				return keyutil.Secret{}, err
			}
			return keyutil.Secret{}, io.EOF
		}
		fs.line++
		text := fs.scanner.Text()
		if text == "" {
			continue
		}

		secret, err := decodeLine(text, fs.format, fs.params)
		if err != nil {
			return keyutil.Secret{}, &errs.SourceParseError{Line: fs.line, Text: text, Err: err}
		}
		return secret, nil
	}
}

func decodeLine(text string, format Format, params *chaincfg.Params) (keyutil.Secret, error) {
	switch format {
	case BigIntegerDecimal:
		v, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return keyutil.Secret{}, fmt.Errorf("not a base-10 integer: %q", text)
		}
		return keyutil.SecretFromBigInt(v), nil

	case HexSha256:
		v, ok := new(big.Int).SetString(text, 16)
		if !ok {
			return keyutil.Secret{}, fmt.Errorf("not hex: %q", text)
		}
		return keyutil.SecretFromBigInt(v), nil

	case StringDoSha256:
		sum := sha256.Sum256([]byte(text))
		var s keyutil.Secret
		copy(s[:], sum[:])
		return s, nil

	case DumpedPrivateKey:
		wif, err := btcutil.DecodeWIF(text)
		if err != nil {
			return keyutil.Secret{}, err
		}
		if params != nil && !wif.IsForNet(params) {
			return keyutil.Secret{}, fmt.Errorf("WIF is not for the configured network")
		}
		var s keyutil.Secret
		copy(s[:], wif.PrivKey.Serialize())
		return s, nil

	default:
		return keyutil.Secret{}, fmt.Errorf("unknown secret format %d", format)
	}
}

// ParseFormat maps a configuration string to a Format, returning a
// *errs.ConfigError for anything else - an unknown secretSource.format is
// a fatal startup error per spec.md §7.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "BigIntegerDecimal":
		return BigIntegerDecimal, nil
	case "HexSha256":
		return HexSha256, nil
	case "StringDoSha256":
		return StringDoSha256, nil
	case "DumpedPrivateKey":
		return DumpedPrivateKey, nil
	default:
		return 0, &errs.ConfigError{Field: "secretSource.format", Value: s, Err: fmt.Errorf("unknown secret format")}
	}
}
