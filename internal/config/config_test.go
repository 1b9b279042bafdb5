package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dzita/keyhunter/internal/errs"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--addressindex", "/tmp/idx"})
	require.NoError(t, err)
	require.Equal(t, defaultThreads, cfg.Threads)
	require.Equal(t, defaultGridNumBits, int(cfg.GridNumBits))
	require.Equal(t, "random", cfg.SourceKind)
}

func TestParseRejectsOutOfRangeGridBits(t *testing.T) {
	_, err := Parse([]string{"--addressindex", "/tmp/idx", "--gridbits", "25"})
	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "gridbits", cfgErr.Field)
}

func TestParseRejectsNonPositiveStatsPeriod(t *testing.T) {
	_, err := Parse([]string{"--addressindex", "/tmp/idx", "--statsperiod", "0"})
	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "statsperiod", cfgErr.Field)
}

func TestParseRejectsInvalidVanityRegex(t *testing.T) {
	_, err := Parse([]string{"--addressindex", "/tmp/idx", "--enablevanity", "--vanitypattern", "("})
	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "vanitypattern", cfgErr.Field)
}

func TestParseFileSecretSourceRequiresFormat(t *testing.T) {
	_, err := Parse([]string{"--addressindex", "/tmp/idx", "--secretsource", "file:/tmp/seeds.txt"})
	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "secretSource.format", cfgErr.Field)
}

func TestParseKillBitsHex(t *testing.T) {
	cfg, err := Parse([]string{"--addressindex", "/tmp/idx", "--killbits", "0xFF"})
	require.NoError(t, err)
	require.Equal(t, byte(0xFF), cfg.KillBits[31])
}
