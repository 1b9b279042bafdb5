package addressindex

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
)

// MemoryIndex is an in-memory, read-only hash160 set. It is the small-scale
// and test-facing Index implementation: a thin loader over a flat file of
// hex-encoded hash160 values (Base58 addresses are not accepted), not an
// address-index builder - it never decides which
// addresses are "interesting", only indexes the list it is handed. This
// mirrors the teacher repository's readAddresses, generalised from a
// map[string]bool of address strings to a map of raw hash160 keys so
// lookups never pay for Base58 decoding on the hot path.
type MemoryIndex struct {
	set map[[20]byte]struct{}
}

// NewMemoryIndex builds a MemoryIndex directly from a set of hash160
// values, as used by the end-to-end test scenarios in spec.md §8.
func NewMemoryIndex(hashes ...[20]byte) *MemoryIndex {
	m := &MemoryIndex{set: make(map[[20]byte]struct{}, len(hashes))}
	for _, h := range hashes {
		m.set[h] = struct{}{}
	}
	return m
}

// LoadMemoryIndex reads one hex-encoded 20-byte hash160 per line from
// path, skipping blank lines. It is the file-backed counterpart to
// NewMemoryIndex, used when addressIndexPath names a flat file rather
// than a Badger directory.
func LoadMemoryIndex(path string) (*MemoryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &MemoryIndex{set: make(map[[20]byte]struct{})}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		raw, err := hex.DecodeString(text)
		if err != nil || len(raw) != 20 {
			return nil, fmt.Errorf("address index file %s line %d: expected 20-byte hex hash160, got %q", path, line, text)
		}
		var h [20]byte
		copy(h[:], raw)
		m.set[h] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Contains implements Index. The underlying map is never written to after
// construction, so concurrent reads require no locking.
func (m *MemoryIndex) Contains(hash160 [20]byte) (bool, error) {
	_, ok := m.set[hash160]
	return ok, nil
}

// Close is a no-op: MemoryIndex holds no external resources.
func (m *MemoryIndex) Close() error { return nil }

// Len reports the number of indexed hash160 values.
func (m *MemoryIndex) Len() int { return len(m.set) }
