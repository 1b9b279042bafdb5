// Package addressindex provides the narrow membership-query collaborator
// spec.md §6 calls AddressIndex: a read-only, concurrency-safe
// contains(hash160) check over a precomputed set of "interesting"
// addresses. Building that set is out of scope (spec.md §1 Non-goals);
// this package only opens, queries and closes it.
package addressindex

// Index is the single narrow interface every consumer worker queries
// concurrently. Implementations must be safe for concurrent readers.
type Index interface {
	// Contains reports whether hash160 is present in the index.
	Contains(hash160 [20]byte) (bool, error)
	// Close releases any resources (file handles, memory-mapped files)
	// held by the index. Called once at shutdown.
	Close() error
}
