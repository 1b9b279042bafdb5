// Command keyhunter searches the secp256k1 secret-key space for secrets
// whose derived HASH160 fingerprints appear in a precomputed address
// index, using the pipelined producer/consumer engine described in
// SPEC_FULL.md. See internal/config for the full set of recognised
// options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog"

	"github.com/dzita/keyhunter/internal/addressindex"
	"github.com/dzita/keyhunter/internal/config"
	"github.com/dzita/keyhunter/internal/consumer"
	"github.com/dzita/keyhunter/internal/engine"
	"github.com/dzita/keyhunter/internal/errs"
	"github.com/dzita/keyhunter/internal/klog"
	"github.com/dzita/keyhunter/internal/producer"
	"github.com/dzita/keyhunter/internal/queue"
	"github.com/dzita/keyhunter/internal/secretsource"
	"github.com/dzita/keyhunter/internal/stats"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "keyhunter: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(config.Args())
	if err != nil {
		return err
	}

	if err := setupLogging(cfg.LogFile); err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	if cfg.TraceLogMisses {
		klog.Log().SetLevel(btclog.LevelTrace)
	}

	idx, err := openIndex(cfg.AddressIndexPath)
	if err != nil {
		return fmt.Errorf("opening address index %q: %w", cfg.AddressIndexPath, err)
	}

	q := queue.New(cfg.QueueSize)
	q.OnStarved(func(size, capacity int) {
		klog.Log().Warnf("queue capacity-starved: size=%d capacity=%d, consider raising queuesize", size, capacity)
	})

	counters := &consumer.Counters{}

	consumers := make([]*consumer.Worker, cfg.Threads)
	for i := range consumers {
		consumers[i] = &consumer.Worker{
			ID:       i,
			Index:    idx,
			Queue:    q,
			Counters: counters,
			Config: consumer.Config{
				DelayEmptyConsumer: time.Duration(cfg.DelayEmptyConsumerMillis) * time.Millisecond,
				SelfCheck:          cfg.SelfCheck,
				EnableVanity:       cfg.EnableVanity,
				VanityPattern:      cfg.VanityPattern,
				TraceLogMisses:     cfg.TraceLogMisses,
				Network:            cfg.Network,
			},
		}
	}

	producers, closeSources, err := buildProducers(cfg)
	if err != nil {
		return err
	}
	defer closeSources()

	eng := &engine.Engine{
		Queue:           q,
		Index:           idx,
		Producers:       producers,
		Consumers:       consumers,
		Stats:           stats.NewReporter(counters, q, time.Duration(cfg.StatsPeriodSeconds)*time.Second),
		AwaitQueueEmpty: time.Duration(cfg.AwaitQueueEmptySeconds) * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return eng.Run(ctx)
}

// buildProducers constructs one producer.CPUProducer per cfg.Producers,
// each owning its own SecretSource per spec.md §4.2's "no cross-thread
// sharing" requirement. It returns a cleanup func that closes every
// file-backed source.
func buildProducers(cfg *config.Config) ([]engine.Producer, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	producers := make([]engine.Producer, cfg.Producers)
	for i := range producers {
		src, closer, err := newSource(cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}

		producers[i] = &producer.CPUProducer{
			ID:       i,
			Source:   src,
			Expander: producer.NewPointAdditionExpander(),
			Grid: producer.Grid{
				NumBits:  cfg.GridNumBits,
				KillMask: cfg.KillBits,
			},
			RunOnce: cfg.RunOnce,
			OnDerivErr: func(e *errs.DerivationError) {
				klog.Log().Errorf("%s", e)
			},
			OnComplete: func() {
				klog.Log().Infof("producer %d exiting", i)
			},
		}
	}
	return producers, closeAll, nil
}

func newSource(cfg *config.Config) (secretsource.Source, func() error, error) {
	switch cfg.SourceKind {
	case "random":
		return secretsource.NewRandom(), nil, nil
	case "file":
		src, err := secretsource.OpenFile(cfg.SourcePath, cfg.SecretFormat, cfg.Network)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown secret source kind %q", cfg.SourceKind)
	}
}

// openIndex opens a Badger-backed index when addressIndexPath names a
// directory, or a flat-file MemoryIndex otherwise - spec.md §6's "opened
// once at startup from a configured path".
func openIndex(path string) (addressindex.Index, error) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return addressindex.OpenBadgerIndex(path)
	}
	return addressindex.LoadMemoryIndex(path)
}

func setupLogging(path string) error {
	if path == "" {
		klog.UseLogger(btclog.Disabled)
		return nil
	}
	fileWriter, err := klog.NewRotatingFileWriter(path, 10, 3)
	if err != nil {
		return err
	}
	backend := btclog.NewBackend(klog.NewConsoleAndFileWriter(fileWriter))
	klog.UseLogger(backend.Logger("KHNT"))
	return nil
}
