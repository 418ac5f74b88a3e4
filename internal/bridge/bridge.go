// Package bridge implements the Host Bridge (spec.md §4.1): the four
// entry points a host AFL-style fuzzer calls — init, schedule, mutate,
// post_execute — plus deinit and splice_optout, arbitrating between the
// structural side-channel, the first-run ready queue, and Thompson-sampled
// pool selection.
package bridge

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/covfuzz/mutacore/internal/bitmap"
	"github.com/covfuzz/mutacore/internal/crashlib"
	"github.com/covfuzz/mutacore/internal/csvlog"
	"github.com/covfuzz/mutacore/internal/mutator"
	"github.com/covfuzz/mutacore/internal/pipeline"
	"github.com/covfuzz/mutacore/internal/queue"
	"github.com/covfuzz/mutacore/internal/seed"
)

// MainCSVHeader is the bridge's own per-batch event-log column order
// (spec.md §6 "Per-stage CSV event logs" — the main/bridge sink).
var MainCSVHeader = []string{"timestamp", "seed_id", "strategy", "energy", "new_edges"}

// EnergyConfig bounds the pool-sample energy translation (spec.md §6
// ENERGY block).
type EnergyConfig struct {
	ExchangeRate float64
	MinEnergy    int
	MaxEnergy    int
}

// Bridge is the process-wide singleton the host fuzzer drives. The host
// entry points (Init, Schedule, Mutate, PostExecute, Deinit) take the
// bridge's single mutex, matching the teacher's single-writer daemon state
// pattern; SetLogger and SpliceOptOut do not lock.
type Bridge struct {
	mu sync.Mutex

	Registry  seed.Registry
	Pool      *mutator.Pool
	Ready     *queue.ReadyQueue[*mutator.Mutator]
	Pipeline  *pipeline.Pipeline
	Bitmap    *bitmap.Bitmap
	Reader    bitmap.Reader
	Persister *bitmap.Persister
	CrashLib  *crashlib.Library
	Energy    EnergyConfig
	Logger    *csvlog.Sink

	timesToStructural int
	selectSinceStructural map[int]int

	state          CallState
	structuralHead *pipeline.StructuralReadyItem
}

// New constructs a Bridge. TimesToStructuralMutator controls how often
// Init submits a seed into the structural side-channel (spec.md §6
// OTHERS.times_to_structural_mutator): every Nth Init call for the same
// seed.
func New(reg seed.Registry, pool *mutator.Pool, ready *queue.ReadyQueue[*mutator.Mutator],
	pl *pipeline.Pipeline, bm *bitmap.Bitmap, reader bitmap.Reader, persister *bitmap.Persister,
	crashLib *crashlib.Library, energy EnergyConfig, timesToStructuralMutator int) *Bridge {

	return &Bridge{
		Registry:              reg,
		Pool:                  pool,
		Ready:                 ready,
		Pipeline:              pl,
		Bitmap:                bm,
		Reader:                reader,
		Persister:             persister,
		CrashLib:              crashLib,
		Energy:                energy,
		timesToStructural:     timesToStructuralMutator,
		selectSinceStructural: make(map[int]int),
	}
}

// SetLogger attaches the bridge's own per-batch CSV event sink (spec.md
// §6). Optional: a nil Logger (the default) disables logging.
func (b *Bridge) SetLogger(s *csvlog.Sink) {
	b.Logger = s
}

func (b *Bridge) logBatch(seedID int, strategy Strategy, energy int, newEdges int64) {
	if b.Logger == nil {
		return
	}
	_ = b.Logger.Append([]string{
		time.Now().UTC().Format(time.RFC3339Nano),
		strconv.Itoa(seedID),
		strategy.String(),
		strconv.Itoa(energy),
		strconv.FormatInt(newEdges, 10),
	})
}

// Init registers a seed with the registry and, the first time its bytes
// are seen, submits it into the parser stage; every timesToStructural-th
// Init call for the same seed also submits it into the structural
// side-channel (spec.md §4.6).
func (b *Bridge) Init(buf []byte) (seedID int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existed, id := b.Registry.Insert(buf)
	if !existed {
		b.Pipeline.SubmitParse(id)
	}

	if b.timesToStructural > 0 {
		b.selectSinceStructural[id]++
		if b.selectSinceStructural[id]%b.timesToStructural == 0 {
			b.Pipeline.SubmitStructural(id)
		}
	}

	return id, nil
}

// Schedule arbitrates the next batch's source, in priority order:
// structural-ready candidates first, then the ready queue's leading run,
// then a Thompson-sampled pick from the pool, and finally strategy=wait
// with energy=0 when nothing is ready yet — the host skips this slot
// entirely, with no following mutate()/post_execute() calls (spec.md
// §4.1, E1; original_source/code/ChiloMutate.py's fuzz_count sets
// left_fuzz_count=0 and returns 0 in this case).
func (b *Bridge) Schedule(seedID int) (energy int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.reset()

	if item, ok := b.Pipeline.StructuralReadyQueue.TryPop(); ok {
		b.structuralHead = &item
		b.state.LastStrategy = StrategyStructural
		b.state.LeftFuzzCount = 1
		return 1, nil
	}

	if head, runLen, ok := b.Ready.LeadingRun(); ok {
		b.state.LastStrategy = StrategyReadyQueue
		b.state.SampledMutator = head
		b.state.SampledSeedID = head.ParentSeedID
		b.state.LeftFuzzCount = runLen
		b.Registry.BumpSelected(head.ParentSeedID)
		return runLen, nil
	}

	if sel, ok := b.Pool.Select(); ok {
		energy = b.energyFromSelection(sel)
		b.state.LastStrategy = StrategyPoolSample
		b.state.SampledMutator = sel.Mutator
		b.state.SampledSeedID = sel.Mutator.ParentSeedID
		b.state.Ai, b.state.Bi, b.state.Ci = sel.Ai, sel.Bi, sel.Ci
		b.state.LeftFuzzCount = energy
		b.Registry.BumpSelected(sel.Mutator.ParentSeedID)
		return energy, nil
	}

	b.state.LastStrategy = StrategyWait
	b.state.SampledSeedID = seedID
	b.state.LeftFuzzCount = 0
	return 0, nil
}

// energyFromSelection clips score x ExchangeRate to [MinEnergy, MaxEnergy]
// (spec.md §4.1, E3: "energy=clip(score x R, min, max)"), truncating like
// original_source/code/ChiloMutate.py's int(score * energy_exchange_rate)
// rather than rounding.
func (b *Bridge) energyFromSelection(sel mutator.Selection) int {
	raw := int(sel.Score * b.Energy.ExchangeRate)
	if raw < b.Energy.MinEnergy {
		raw = b.Energy.MinEnergy
	}
	if raw > b.Energy.MaxEnergy {
		raw = b.Energy.MaxEnergy
	}
	if raw < 1 {
		raw = 1
	}
	return raw
}

// Mutate produces one payload for the current batch, consuming one unit
// of its LeftFuzzCount. Truncation to maxLen is reported, not silently
// applied (spec.md §4.1 "the truncation flag must be recorded, not
// silently discarded").
func (b *Bridge) Mutate(maxLen int) (out []byte, truncated bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state.LeftFuzzCount <= 0 {
		return nil, false, fmt.Errorf("bridge: mutate called with no scheduled energy")
	}

	var text string
	switch b.state.LastStrategy {
	case StrategyStructural:
		if b.structuralHead != nil {
			out = append([]byte(nil), b.structuralHead.Bytes...)
		}
	case StrategyReadyQueue:
		m, ok := b.Ready.TryPop()
		if !ok {
			m = b.state.SampledMutator
		}
		text, err = b.generate(m)
	case StrategyPoolSample:
		text, err = b.generate(b.state.SampledMutator)
	}

	if out == nil {
		out = []byte(text)
	}
	if err != nil {
		out = b.generationFailureFallback(b.state.SampledSeedID)
	}

	b.state.LeftFuzzCount--

	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
		truncated = true
	}
	return out, truncated, nil
}

// generate invokes m.Generate(), falling back to a uniformly-sampled
// mutator when m fails mid-batch (spec.md E5: a mid-batch failure does
// not change which mutator is credited at batch close).
func (b *Bridge) generate(m *mutator.Mutator) (string, error) {
	if m == nil {
		return "", fmt.Errorf("bridge: no mutator available")
	}
	text, err := m.Generate()
	if err == nil {
		return text, nil
	}
	if fallback, ok := b.Pool.RandomSelect(); ok {
		if text2, err2 := fallback.Generate(); err2 == nil {
			return text2, nil
		}
	}
	return "", err
}

// generationFailureFallback produces a raw boundary mutation of the
// sampled seed's own bytes (or a crash-library example) when every
// mutator tried mid-batch failed to generate — this is a last-resort
// emission for a batch the host has already committed to via a non-wait
// strategy, not a substitute for strategy=wait (spec.md §7 "Mutator
// invocation errors at mutate time ... never surface to the host").
func (b *Bridge) generationFailureFallback(seedID int) []byte {
	if b.CrashLib != nil {
		if examples, err := b.CrashLib.RandomExamples(1); err == nil && len(examples) > 0 {
			return []byte(examples[0].Text)
		}
	}
	s := b.Registry.ByID(seedID)
	if s == nil {
		return nil
	}
	buf := append([]byte(nil), s.Bytes...)
	if len(buf) == 0 {
		return buf
	}
	i := rand.N(len(buf))
	bit := rand.N(8)
	buf[i] ^= 1 << bit
	return buf
}

// PostExecute reads the shared coverage snapshot, accumulates it into the
// global bitmap, and — once the current batch's LeftFuzzCount has reached
// zero — credits the originally-sampled mutator with the batch's total
// new-edge count, regardless of which mutator actually served the last
// mutate() call in the batch (spec.md E5).
func (b *Bridge) PostExecute(ctx context.Context) (newEdges int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot, err := b.Reader.Snapshot()
	if err != nil {
		return 0, fmt.Errorf("bridge: snapshot: %w", err)
	}

	newEdges, err = b.Bitmap.Add(snapshot)
	if err != nil {
		return 0, fmt.Errorf("bridge: accumulate: %w", err)
	}
	b.state.BatchNewEdges += int64(newEdges)

	if b.Persister != nil {
		_, _ = b.Persister.MaybeFlush(b.Bitmap)
	}

	if b.state.LeftFuzzCount == 0 {
		if b.state.SampledMutator != nil {
			isSuccess := b.state.BatchNewEdges > 0
			b.state.SampledMutator.ApplyFeedback(isSuccess, b.state.BatchNewEdges)
			b.Registry.BumpMutated(b.state.SampledSeedID)
		}
		b.logBatch(b.state.SampledSeedID, b.state.LastStrategy, 0, b.state.BatchNewEdges)
		b.state.reset()
		b.structuralHead = nil
	}

	return newEdges, nil
}

// Deinit flushes the bitmap through the persister's MaybeFlush and
// releases the shared-memory attachment (spec.md §4.6 persistence, §7
// teardown). MaybeFlush is throttled, so no final flush happens when the
// previous one was less than the persist interval ago.
func (b *Bridge) Deinit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Persister != nil {
		if _, err := b.Persister.MaybeFlush(b.Bitmap); err != nil {
			return err
		}
	}
	b.Pipeline.Close()
	if b.Reader != nil {
		return b.Reader.Close()
	}
	return nil
}

// SpliceOptOut reports that the host fuzzer's own splice stage should be
// skipped: the structural side-channel already supplies whole-statement
// diversity, so splicing raw seed bytes would only reintroduce invalid
// syntax the repair loop has no chance to fix.
func (b *Bridge) SpliceOptOut() bool {
	return true
}
