// Package seed implements the process-wide seed registry: de-duplication
// by content digest and the per-seed counters the scheduler reads.
package seed

import (
	"crypto/sha1" //nolint:gosec // identity digest, not a security boundary
	"encoding/hex"
	"sync"
)

// ParseCache holds the parser stage's output for one seed, once parsed.
type ParseCache struct {
	ParsedText string
	IsParsed   bool
	MaskCount  int
}

// Seed is an immutable payload plus the mutable counters the bridge and
// pipeline update over the seed's lifetime. The mutable fields are guarded
// by the seed's own mutex and are written only through its methods (the
// registry's bump calls, the parser's SetParseCache, the fixer's
// NextMutatorID); readers get snapshots.
type Seed struct {
	ID     int
	Digest string // hex-encoded SHA-1, spec.md §3 "cryptographic digest (160-bit)"
	Bytes  []byte
	Text   string // UTF-8 view, invalid sequences replaced

	mu             sync.Mutex
	selectedCount  int
	mutatedCount   int
	nextMutatorID  int
	parseCache     ParseCache
}

func digestOf(b []byte) string {
	sum := sha1.Sum(b) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func newSeed(id int, b []byte) *Seed {
	buf := make([]byte, len(b))
	copy(buf, b)
	return &Seed{
		ID:     id,
		Digest: digestOf(buf),
		Bytes:  buf,
		Text:   toUTF8(buf),
	}
}

func toUTF8(b []byte) string {
	// decode lossily: invalid sequences become U+FFFD, mirroring
	// Python's bytes.decode(errors="ignore") intent (drop rather than
	// propagate an error for a byte-level payload).
	return string([]rune(string(b)))
}

// SelectedCount returns how many times this seed has been chosen by schedule.
func (s *Seed) SelectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedCount
}

// MutatedCount returns how many batches crediting a Mutator derived from
// this seed have closed (the bridge bumps it once per batch close).
func (s *Seed) MutatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutatedCount
}

// ParseCache returns a copy of the current parse cache.
func (s *Seed) ParseCacheSnapshot() ParseCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parseCache
}

// SetParseCache publishes the parser stage's result for this seed.
func (s *Seed) SetParseCache(pc ParseCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parseCache = pc
}

// NextMutatorID allocates the next seed-local mutator id, per spec.md §4.5
// "Allocate (seed_id, mutator_id) under a seed-local lock".
func (s *Seed) NextMutatorID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextMutatorID
	s.nextMutatorID++
	return id
}

func (s *Seed) bumpSelected() {
	s.mu.Lock()
	s.selectedCount++
	s.mu.Unlock()
}

func (s *Seed) bumpMutated() {
	s.mu.Lock()
	s.mutatedCount++
	s.mu.Unlock()
}
