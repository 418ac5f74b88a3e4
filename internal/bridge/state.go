package bridge

import "github.com/covfuzz/mutacore/internal/mutator"

// Strategy names which source a mutate() call was served from, recorded
// into Current-Call State so post_execute can credit the right mutator
// (spec.md §4.1).
type Strategy int

const (
	// StrategyNone means mutate has not yet been called for this batch.
	StrategyNone Strategy = iota
	// StrategyStructural served a structural-ready candidate directly.
	StrategyStructural
	// StrategyReadyQueue served a first-run Mutator popped off the ready
	// queue.
	StrategyReadyQueue
	// StrategyPoolSample served a Mutator chosen by Thompson sampling.
	StrategyPoolSample
	// StrategyWait means nothing was ready; energy=0 and the host skips
	// this slot with no following mutate()/post_execute() calls (spec.md
	// §4.1, E1).
	StrategyWait
)

func (s Strategy) String() string {
	switch s {
	case StrategyStructural:
		return "structural"
	case StrategyReadyQueue:
		return "ready_queue"
	case StrategyPoolSample:
		return "pool_sample"
	case StrategyWait:
		return "wait"
	default:
		return "none"
	}
}

// CallState is the bridge's per-batch bookkeeping (spec.md §3 "Current-Call
// State"): which strategy served the last mutate(), which Mutator was
// sampled (so post_execute can credit it even if a later mutate() in the
// same batch used a different mutator or failed), the bandit factors that
// produced the sample, the batch's accumulated new-edge count, and how
// many mutate() calls remain before the batch closes.
type CallState struct {
	LastStrategy    Strategy
	SampledSeedID   int
	SampledMutator  *mutator.Mutator
	Ai, Bi, Ci      float64
	BatchNewEdges   int64
	LeftFuzzCount   int
}

func (c *CallState) reset() {
	*c = CallState{}
}
