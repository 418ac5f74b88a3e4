// Package mutator implements the Mutator Pool: an append-only collection
// of concrete payload generators selected via Thompson sampling augmented
// by historical-efficiency (Bi) and diversity-potential (Ci) factors.
//
// No statistics/numerics library appears anywhere in the retrieved example
// pack, so the Beta(alpha, beta) draw used by Thompson sampling is
// implemented directly on math/rand/v2 via the standard Gamma-ratio
// construction (see beta.go) rather than imported.
package mutator

import (
	"sync"
)

// Generator produces one payload per invocation from a parsed seed. The
// repair package's evaluated expression tree is the concrete
// implementation; kept as an interface here to avoid a mutator<->repair
// import cycle.
type Generator interface {
	Generate() (string, error)
}

// BanditState is the Thompson-sampling state updated only at batch-end by
// the bridge's post_execute path (spec.md §4.4 Feedback).
type BanditState struct {
	Alpha          float64
	Beta           float64
	SuccessCount   int
	FailureCount   int
	TotalNewEdges  int64
}

// Mutator is a concrete, executable transformer produced from one parsed
// seed. Identity (ParentSeedID, MutatorID) is immutable once published;
// only Bandit and Failed mutate thereafter.
type Mutator struct {
	ParentSeedID int
	MutatorID    int // seed-local
	Index        int // globally dense, assignment order == pool append order
	ArtifactPath string
	MaskCount    int
	Similarity   float64 // 1 - unique/total, observed during repair sampling

	Gen Generator

	mu     sync.Mutex
	failed bool
	Bandit BanditState
}

// NewMutator constructs a Mutator with the bandit prior spec.md §3 implies
// (alpha=beta=1, i.e. a flat Beta(1,1) prior) — every mutator starts
// equally likely before any feedback arrives.
func NewMutator(parentSeedID, mutatorID, index int, artifactPath string, maskCount int, similarity float64, gen Generator) *Mutator {
	return &Mutator{
		ParentSeedID: parentSeedID,
		MutatorID:    mutatorID,
		Index:        index,
		ArtifactPath: artifactPath,
		MaskCount:    maskCount,
		Similarity:   similarity,
		Gen:          gen,
		Bandit:       BanditState{Alpha: 1, Beta: 1},
	}
}

// Generate invokes the underlying Generator, marking the mutator failed on
// error so the bridge can fall back to another pick (spec.md §4.1 mutate
// step 3, §7 "Mutator invocation errors").
func (m *Mutator) Generate() (string, error) {
	text, err := m.Gen.Generate()
	if err != nil {
		m.MarkFailed()
		return "", err
	}
	return text, nil
}

// MarkFailed sets the failure flag. Bandit state is untouched (spec.md
// E5: a runtime failure does not itself count as a bandit failure — only
// batch-end new-edge accounting does).
func (m *Mutator) MarkFailed() {
	m.mu.Lock()
	m.failed = true
	m.mu.Unlock()
}

// Failed reports whether this mutator has ever failed to generate.
func (m *Mutator) Failed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}

// ApplyFeedback updates bandit state at batch-end (spec.md §4.4 Feedback).
func (m *Mutator) ApplyFeedback(isSuccess bool, newEdges int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isSuccess {
		m.Bandit.SuccessCount++
		m.Bandit.Alpha++
	} else {
		m.Bandit.FailureCount++
		m.Bandit.Beta++
	}
	m.Bandit.TotalNewEdges += newEdges
}

// BanditSnapshot returns a copy of the current bandit state, for tests and
// CSV logging.
func (m *Mutator) BanditSnapshot() BanditState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Bandit
}
