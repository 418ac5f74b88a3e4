// Package bitmap implements the global coverage accumulator: three
// parallel arrays of fixed length M, updated from a shared-memory
// snapshot read by the bridge's post_execute path (spec.md §4.6).
package bitmap

import "fmt"

// Bitmap accumulates edge-coverage snapshots into sum/cumulative/bool
// arrays, per spec.md §3 invariants: bool[i]=1 => sum[i]>0 && cumulative[i]>0,
// sum[i] >= cumulative[i] always.
//
// Mutated only from the bridge's single post_execute caller (spec.md §5),
// which also drives the persister and any inline inspection synchronously
// under its own lock, so no internal locking is required here.
type Bitmap struct {
	size       int
	sum        []uint64
	cumulative []uint32
	boolHit    []uint8
	hitCount   int
}

// New creates a zeroed bitmap of the given map size (power of two,
// spec.md §3, typically 65536).
func New(size int) *Bitmap {
	return &Bitmap{
		size:       size,
		sum:        make([]uint64, size),
		cumulative: make([]uint32, size),
		boolHit:    make([]uint8, size),
	}
}

// Size returns M.
func (b *Bitmap) Size() int { return b.size }

// HitCount returns the scalar Σ bool[i].
func (b *Bitmap) HitCount() int { return b.hitCount }

// Add accumulates one execution's snapshot and returns the number of
// positions that transitioned 0->1 (spec.md §4.6 Accumulation, E7).
func (b *Bitmap) Add(snapshot []byte) (newEdges int, err error) {
	if len(snapshot) != b.size {
		return 0, fmt.Errorf("bitmap: snapshot size %d != map size %d", len(snapshot), b.size)
	}

	for i, v := range snapshot {
		if v == 0 {
			continue
		}
		b.sum[i] += uint64(v)
		b.cumulative[i]++
		if b.boolHit[i] == 0 {
			b.boolHit[i] = 1
			b.hitCount++
			newEdges++
		}
	}
	return newEdges, nil
}

// Sum returns the total-hit-count array. Callers must not mutate it.
func (b *Bitmap) Sum() []uint64 { return b.sum }

// Cumulative returns the per-execution hit-count array.
func (b *Bitmap) Cumulative() []uint32 { return b.cumulative }

// Bool returns the first-hit indicator array.
func (b *Bitmap) Bool() []uint8 { return b.boolHit }
