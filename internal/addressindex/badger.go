package addressindex

import (
	"github.com/dgraph-io/badger/v2"
)

// present is the value stored for every indexed key: Badger is a KV
// store, and this index only ever needs presence, so the value is a
// single byte and is never read back.
var present = []byte{1}

// BadgerIndex is the production Index implementation: a Badger-backed,
// memory-mapped, read-only (from this process's point of view) HASH160
// membership store. It is opened once from a configured path at startup
// and closed on shutdown, per spec.md §6.
//
// Populating the store (loading or computing the "interesting address"
// set) happens out of process, ahead of time - building the index is a
// Non-goal of this engine.
type BadgerIndex struct {
	db *badger.DB
}

// OpenBadgerIndex opens (but does not create the contents of) a Badger
// database rooted at path.
func OpenBadgerIndex(path string) (*BadgerIndex, error) {
	opts := badger.DefaultOptions(path).WithLogger(discardLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerIndex{db: db}, nil
}

// discardLogger silences Badger's own logging; this engine's log.go
// (internal/klog) is the single sink for everything search-related.
type discardLogger struct{}

func (discardLogger) Errorf(string, ...interface{})   {}
func (discardLogger) Warningf(string, ...interface{}) {}
func (discardLogger) Infof(string, ...interface{})    {}
func (discardLogger) Debugf(string, ...interface{})   {}

// Contains implements Index. Badger transactions are safe for concurrent
// readers, matching the "read-only, may be called concurrently by all
// consumers" requirement of spec.md §5.
func (b *BadgerIndex) Contains(hash160 [20]byte) (bool, error) {
	var found bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(hash160[:])
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Close implements Index.
func (b *BadgerIndex) Close() error { return b.db.Close() }

// Put inserts hash160 into the store. Exposed for test fixtures and
// offline index-population tooling; the search engine itself never calls
// Put - membership data enters the store out of process.
func (b *BadgerIndex) Put(hash160 [20]byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(hash160[:], present)
	})
}
