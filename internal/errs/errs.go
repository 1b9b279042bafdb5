// Package errs defines the error kinds carried through the search engine.
//
// Every kind maps to one of spec.md's §7 error kinds. None of them are
// fatal by construction - the call site decides whether a kind aborts
// startup (ConfigError) or is logged and skipped (everything else).
package errs

import "fmt"

// ConfigError reports an invalid configuration value. Fatal at startup.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: field %q value %q: %s", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SourceParseError reports one bad input line from a SecretSource. The
// source logs it and continues with the next line.
type SourceParseError struct {
	Line int
	Text string
	Err  error
}

func (e *SourceParseError) Error() string {
	return fmt.Sprintf("secret source: line %d (%q): %s", e.Line, e.Text, e.Err)
}

func (e *SourceParseError) Unwrap() error { return e.Err }

// DerivationError reports a secret that failed to derive a valid point
// (zero secret, or point at infinity). The entry is marked invalid and
// carried through the batch as a skip.
type DerivationError struct {
	Secret string
	Err    error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("derivation: secret %s: %s", e.Secret, e.Err)
}

func (e *DerivationError) Unwrap() error { return e.Err }

// ProbeError reports a failed AddressIndex.Contains call. The current key
// is skipped; the worker continues.
type ProbeError struct {
	Hash160Hex string
	Err        error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe: hash160 %s: %s", e.Hash160Hex, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// SelfCheckMismatch reports the runtime self-check finding a HASH160
// mismatch between the batch's derived bytes and an independent
// re-derivation. Never fatal.
type SelfCheckMismatch struct {
	Secret                    string
	UncompressedWant          string
	UncompressedGot           string
	CompressedWant            string
	CompressedGot             string
	Hash160UncompressedWant string
	Hash160UncompressedGot  string
	Hash160CompressedWant   string
	Hash160CompressedGot    string
}

func (e *SelfCheckMismatch) Error() string {
	return fmt.Sprintf(
		"self-check mismatch for secret %s: uncompressed want=%s got=%s, compressed want=%s got=%s, "+
			"hash160 uncompressed want=%s got=%s, hash160 compressed want=%s got=%s",
		e.Secret,
		e.UncompressedWant, e.UncompressedGot,
		e.CompressedWant, e.CompressedGot,
		e.Hash160UncompressedWant, e.Hash160UncompressedGot,
		e.Hash160CompressedWant, e.Hash160CompressedGot,
	)
}

// ShutdownTimeout reports that awaitQueueEmpty elapsed before the consumer
// pool drained. Logged at WARN; unprocessed batches are dropped.
type ShutdownTimeout struct {
	Waited string
}

func (e *ShutdownTimeout) Error() string {
	return fmt.Sprintf("shutdown: timed out after %s waiting for queue to drain", e.Waited)
}
