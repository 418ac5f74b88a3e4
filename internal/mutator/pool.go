package mutator

import (
	"math"
	"math/rand/v2"
	"sync"
)

const epsilon = 1e-9

// Selection is the result of one Thompson-sampling draw over the pool
// (spec.md §4.4): the winning Mutator plus the factors that produced it,
// stored as Current-Call State by the bridge.
type Selection struct {
	Mutator *Mutator
	Score   float64
	Ai, Bi, Ci float64
}

// Pool is the append-only, mutex-guarded collection of Mutators (spec.md
// §3 "Mutator Pool"). Index assignment and append happen under the pool
// lock, which is also taken briefly for snapshots, the select counter and
// identity lookups; bandit feedback itself is applied under each
// Mutator's own lock.
type Pool struct {
	mu                sync.Mutex
	mutators          []*Mutator
	nextIndex         int
	totalSelectCount  int64
	byIdentity        map[[2]int]int // (seed_id, mutator_id) -> slice index
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{byIdentity: make(map[[2]int]int)}
}

// Append publishes a new Mutator, assigning it the next dense pool index.
// Per spec.md §4.5, this must only be called after the artifact file has
// already been written (publish order: file write, then pool append, then
// ready-queue enqueue).
func (p *Pool) Append(m *Mutator) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	m.Index = p.nextIndex
	p.nextIndex++
	p.mutators = append(p.mutators, m)
	p.byIdentity[[2]int{m.ParentSeedID, m.MutatorID}] = len(p.mutators) - 1
	return m.Index
}

// Len returns the number of published mutators.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.mutators)
}

// snapshot returns the current slice of mutators and aggregate stats under
// the pool lock, for use by Select/RandomSelect without holding the lock
// across the (lock-free) sampling math.
func (p *Pool) snapshot() ([]*Mutator, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Mutator, len(p.mutators))
	copy(out, p.mutators)
	return out, p.totalSelectCount
}

// Select runs one round of Thompson sampling augmented by the Bi
// (historical efficiency) and Ci (diversity potential) factors, per
// spec.md §4.4. Returns ok=false if the pool is empty.
func (p *Pool) Select() (Selection, bool) {
	mutators, totalSelect := p.snapshot()
	n := len(mutators)
	if n == 0 {
		return Selection{}, false
	}

	maskAvg := 0.0
	for _, m := range mutators {
		maskAvg += float64(m.MaskCount)
	}
	maskAvg /= float64(n)

	var best Selection
	bestScore := math.Inf(-1)

	for _, m := range mutators {
		bandit := m.BanditSnapshot()

		ai := sampleBeta(bandit.Alpha, bandit.Beta)

		t := float64(totalSelect)
		timePressure := math.Log(t/float64(n) + 1)
		tries := float64(bandit.SuccessCount + bandit.FailureCount)
		efficiency := math.Log((float64(bandit.TotalNewEdges)+1)/(tries+1) + 1)
		bi := timePressure * efficiency

		denom := maskAvg
		if denom < epsilon {
			denom = epsilon
		}
		numerator := float64(m.MaskCount) * (1 - m.Similarity)
		ci := math.Log(numerator/denom + 1)

		score := ai * (1 + bi) * (1 + ci)

		// argmax, ties broken by index order (stable): strictly greater
		// replaces, so the first-seen (lowest index) mutator wins ties.
		if score > bestScore {
			bestScore = score
			best = Selection{Mutator: m, Score: score, Ai: ai, Bi: bi, Ci: ci}
		}
	}

	p.mu.Lock()
	p.totalSelectCount++
	p.mu.Unlock()

	return best, true
}

// RandomSelect uniformly samples one mutator from the current pool — the
// fallback used when a first-run batch exhausts the ready queue mid-batch,
// or when a sampled mutator fails at mutate time (spec.md §4.4, E5).
func (p *Pool) RandomSelect() (*Mutator, bool) {
	mutators, _ := p.snapshot()
	if len(mutators) == 0 {
		return nil, false
	}
	return mutators[rand.N(len(mutators))], true
}

// ApplyFeedback credits the mutator identified by (seedID, mutatorID) —
// used when the caller only has the identity, not the *Mutator pointer
// (e.g. reconstructing Current-Call State after a restart is out of scope,
// but tests exercise this path directly).
func (p *Pool) ApplyFeedback(seedID, mutatorID int, isSuccess bool, newEdges int64) bool {
	p.mu.Lock()
	idx, ok := p.byIdentity[[2]int{seedID, mutatorID}]
	var m *Mutator
	if ok {
		m = p.mutators[idx]
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	m.ApplyFeedback(isSuccess, newEdges)
	return true
}
