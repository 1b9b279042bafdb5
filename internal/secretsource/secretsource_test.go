package secretsource

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/dzita/keyhunter/internal/errs"
)

func TestRandomNextDiffers(t *testing.T) {
	r := NewRandom()
	ctx := context.Background()

	a, err := r.Next(ctx)
	require.NoError(t, err)
	b, err := r.Next(ctx)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestRandomRespectsCancellation(t *testing.T) {
	r := NewRandom()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFileBigIntegerDecimalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n256\n"), 0o644))

	src, err := OpenFile(path, BigIntegerDecimal, &chaincfg.MainNetParams)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	s1, err := src.Next(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, s1.BigInt().Int64())

	s2, err := src.Next(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 256, s2.BigInt().Int64())

	_, err = src.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestFileSkipsBadLineAndContinues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number\n42\n"), 0o644))

	src, err := OpenFile(path, BigIntegerDecimal, nil)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	_, err = src.Next(ctx)
	var parseErr *errs.SourceParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, 1, parseErr.Line)

	s, err := src.Next(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 42, s.BigInt().Int64())
}

func TestHexSha256RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("ff\n"), 0o644))

	src, err := OpenFile(path, HexSha256, nil)
	require.NoError(t, err)
	defer src.Close()

	s, err := src.Next(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0xff, s.BigInt().Int64())
}

func TestParseFormatUnknownIsConfigError(t *testing.T) {
	_, err := ParseFormat("NotAFormat")
	var cfgErr *errs.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}
