// Package config parses the recognised options of spec.md §6 using the
// two-layer INI-file-plus-CLI-flag-override convention this pack's
// btcd-family daemons use (github.com/jessevdk/go-flags).
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"

	"github.com/dzita/keyhunter/internal/errs"
	"github.com/dzita/keyhunter/internal/keyutil"
	"github.com/dzita/keyhunter/internal/secretsource"
)

const (
	defaultThreads                  = 4
	defaultQueueSize                 = 64
	defaultDelayEmptyConsumerMillis = 50
	defaultStatsPeriodSeconds        = 10
	defaultGridNumBits               = 8
	defaultAwaitQueueEmptySeconds    = 60
)

// Raw mirrors spec.md §6's recognised options exactly as go-flags binds
// them from an INI file and/or the command line. Field tags follow the
// same `long`/`description` convention used throughout this pack's
// btcd-family configs.
type Raw struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file" no-ini:"true"`

	// Consumer side.
	Threads                         int    `long:"threads" description:"Number of consumer worker threads"`
	QueueSize                       int    `long:"queuesize" description:"Bounded BatchQueue capacity"`
	DelayEmptyConsumerMillis        int    `long:"delayemptyconsumer" description:"Milliseconds a consumer sleeps after an empty poll"`
	RuntimePublicKeyCalculationCheck bool  `long:"selfcheck" description:"Re-derive each key independently and compare HASH160s"`
	EnableVanity                    bool   `long:"enablevanity" description:"Enable vanity address matching"`
	VanityPattern                   string `long:"vanitypattern" description:"Regex the Base58 address must match entirely"`
	PrintStatisticsEveryNSeconds    int    `long:"statsperiod" description:"Seconds between StatsReporter ticks"`
	AddressIndexPath                string `long:"addressindex" description:"Path to the address index (Badger dir or flat hash160 list)" required:"true"`
	TraceLogMisses                  bool   `long:"tracemisses" description:"Log a MISS line for every non-hit key (trace level)"`
	AwaitQueueEmptySeconds           int   `long:"awaitqueueempty" description:"Seconds to wait for the queue to drain on shutdown"`

	// Producer side.
	Producers      int    `long:"producers" description:"Number of producer goroutines"`
	GridNumBits    int    `long:"gridbits" description:"Grid size exponent g; batch size is 1<<g, g in [0,24]"`
	KillBitsHex    string `long:"killbits" description:"256-bit hex mask; set bits are forced to zero in a grid's seed (the low gridbits bits always are)"`
	RunOnce        bool   `long:"runonce" description:"Exit each producer after a single batch"`
	Network        string `long:"network" description:"mainnet or testnet" default:"mainnet"`
	SecretSource   string `long:"secretsource" description:"random, or file:<path>"`
	SecretFormat   string `long:"secretformat" description:"BigIntegerDecimal, HexSha256, StringDoSha256, or DumpedPrivateKey"`

	LogFile string `long:"logfile" description:"Path to the rotating log file"`
}

// Config is the parsed, validated configuration every component is wired
// from.
type Config struct {
	Threads                  int
	QueueSize                int
	DelayEmptyConsumerMillis int
	SelfCheck                bool
	EnableVanity             bool
	VanityPattern            *regexp.Regexp
	StatsPeriodSeconds       int
	AddressIndexPath         string
	TraceLogMisses           bool
	AwaitQueueEmptySeconds   int

	Producers    int
	GridNumBits  uint8
	KillBits     keyutil.Secret
	RunOnce      bool
	Network      *chaincfg.Params
	SourceKind   string // "random" or "file"
	SourcePath   string
	SecretFormat secretsource.Format

	LogFile string
}

// Parse reads args (typically os.Args[1:]) merged with an optional INI
// file named by -C/--configfile, applies defaults, and validates every
// field that spec.md §7 calls a ConfigError. Any validation failure is
// returned as a *errs.ConfigError naming the offending field, fatal at
// startup per spec.md §6's exit behaviour.
func Parse(args []string) (*Config, error) {
	raw := defaultRaw()

	parser := flags.NewParser(&raw, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, &errs.ConfigError{Field: "args", Err: err}
	}

	if raw.ConfigFile != "" {
		iniParser := flags.NewIniParser(parser)
		if err := iniParser.ParseFile(raw.ConfigFile); err != nil {
			return nil, &errs.ConfigError{Field: "configfile", Value: raw.ConfigFile, Err: err}
		}
		// Parse the command line again so its flags override the file.
		if _, err := parser.ParseArgs(args); err != nil {
			return nil, &errs.ConfigError{Field: "args", Err: err}
		}
	}

	return validate(&raw)
}

func defaultRaw() Raw {
	return Raw{
		Threads:                  defaultThreads,
		QueueSize:                defaultQueueSize,
		DelayEmptyConsumerMillis: defaultDelayEmptyConsumerMillis,
		PrintStatisticsEveryNSeconds: defaultStatsPeriodSeconds,
		Producers:                1,
		GridNumBits:              defaultGridNumBits,
		Network:                  "mainnet",
		SecretSource:             "random",
		AwaitQueueEmptySeconds:   defaultAwaitQueueEmptySeconds,
	}
}

func validate(raw *Raw) (*Config, error) {
	cfg := &Config{
		Threads:                  raw.Threads,
		QueueSize:                raw.QueueSize,
		DelayEmptyConsumerMillis: raw.DelayEmptyConsumerMillis,
		SelfCheck:                raw.RuntimePublicKeyCalculationCheck,
		EnableVanity:             raw.EnableVanity,
		StatsPeriodSeconds:       raw.PrintStatisticsEveryNSeconds,
		AddressIndexPath:         raw.AddressIndexPath,
		TraceLogMisses:           raw.TraceLogMisses,
		AwaitQueueEmptySeconds:   raw.AwaitQueueEmptySeconds,
		Producers:                raw.Producers,
		RunOnce:                  raw.RunOnce,
		LogFile:                  raw.LogFile,
	}

	if cfg.StatsPeriodSeconds <= 0 {
		return nil, &errs.ConfigError{Field: "statsperiod", Value: fmt.Sprint(cfg.StatsPeriodSeconds), Err: fmt.Errorf("must be positive")}
	}

	if raw.GridNumBits < 0 || raw.GridNumBits > 24 {
		return nil, &errs.ConfigError{Field: "gridbits", Value: fmt.Sprint(raw.GridNumBits), Err: fmt.Errorf("must be in [0,24]")}
	}
	cfg.GridNumBits = uint8(raw.GridNumBits)

	killBits, err := parseKillBits(raw.KillBitsHex)
	if err != nil {
		return nil, &errs.ConfigError{Field: "killbits", Value: raw.KillBitsHex, Err: err}
	}
	// The low gridbits bits are always killed, so every grid base has them
	// zero and base|k matches the point base+k the expander derives.
	for b := 0; b < raw.GridNumBits; b++ {
		killBits[keyutil.SecretSize-1-b/8] |= 1 << uint(b%8)
	}
	cfg.KillBits = killBits

	switch raw.Network {
	case "mainnet", "":
		cfg.Network = &chaincfg.MainNetParams
	case "testnet":
		cfg.Network = &chaincfg.TestNet3Params
	default:
		return nil, &errs.ConfigError{Field: "network", Value: raw.Network, Err: fmt.Errorf("must be mainnet or testnet")}
	}

	if raw.EnableVanity {
		pattern, err := compileVanityPattern(raw.VanityPattern)
		if err != nil {
			return nil, &errs.ConfigError{Field: "vanitypattern", Value: raw.VanityPattern, Err: err}
		}
		cfg.VanityPattern = pattern
	}

	kind, path, err := parseSecretSource(raw.SecretSource)
	if err != nil {
		return nil, &errs.ConfigError{Field: "secretsource", Value: raw.SecretSource, Err: err}
	}
	cfg.SourceKind = kind
	cfg.SourcePath = path

	if kind == "file" {
		format, err := secretsource.ParseFormat(raw.SecretFormat)
		if err != nil {
			return nil, err
		}
		cfg.SecretFormat = format
	}

	return cfg, nil
}

// compileVanityPattern anchors pattern to match-entire-string semantics,
// per spec.md §9's "only match-entire-string is required".
func compileVanityPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("vanitypattern is required when enablevanity is set")
	}
	return regexp.Compile("^(?:" + pattern + ")$")
}

func parseSecretSource(raw string) (kind, path string, err error) {
	if raw == "" || raw == "random" {
		return "random", "", nil
	}
	const prefix = "file:"
	if len(raw) > len(prefix) && raw[:len(prefix)] == prefix {
		return "file", raw[len(prefix):], nil
	}
	return "", "", fmt.Errorf("expected \"random\" or \"file:<path>\", got %q", raw)
}

func parseKillBits(hexStr string) (keyutil.Secret, error) {
	if hexStr == "" {
		return keyutil.Secret{}, nil
	}
	var out keyutil.Secret
	raw := hexStr
	if len(raw) > 2 && raw[:2] == "0x" {
		raw = raw[2:]
	}
	if len(raw)%2 != 0 {
		raw = "0" + raw
	}
	if len(raw) > keyutil.SecretSize*2 {
		return out, fmt.Errorf("killbits exceeds 256 bits")
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return out, err
	}
	copy(out[keyutil.SecretSize-len(decoded):], decoded)
	return out, nil
}

// Args returns os.Args[1:], a thin indirection kept so main.go never
// imports "os" just to slice Args.
func Args() []string { return os.Args[1:] }
