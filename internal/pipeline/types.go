// Package pipeline implements the async mutation pipeline (spec.md §4.3):
// four fixed-size worker pools connected by bounded queues, with
// backpressure as the sole flow-control mechanism, plus the structural
// side-channel. Each stage is a pool of goroutines managed by an
// errgroup.Group reading from a queue.Bounded[T] channel, the same shape
// the teacher uses for its own worker pools.
package pipeline

import (
	"github.com/covfuzz/mutacore/internal/csvlog"
	"github.com/covfuzz/mutacore/internal/repair"
)

// ParserCSVHeader, GeneratorCSVHeader, FixerCSVHeader and StructuralCSVHeader
// are the stable per-stage event-log column orders (spec.md §6 "Per-stage
// CSV event logs with documented column orders (stable schema)").
var (
	ParserCSVHeader     = []string{"timestamp", "seed_id", "mask_count", "status"}
	GeneratorCSVHeader  = []string{"timestamp", "seed_id", "mask_count", "status"}
	FixerCSVHeader      = []string{"timestamp", "seed_id", "mutator_id", "similarity", "status"}
	StructuralCSVHeader = []string{"timestamp", "source_seed_id", "new_seed_id", "status"}
)

// NewCSVSink is a small convenience wrapper so callers in session.go don't
// need to import csvlog directly just to build a stage sink; an empty path
// means "no sink" and returns (nil, nil).
func NewCSVSink(path string, header []string) (*csvlog.Sink, error) {
	if path == "" {
		return nil, nil
	}
	return csvlog.NewSink(path, header)
}

// ParseJob is one unit of work entering the parser stage: a seed awaiting
// mask annotation.
type ParseJob struct {
	SeedID int
}

// GenerateJob carries a parsed (annotated) seed into the generator stage.
type GenerateJob struct {
	SeedID        int
	AnnotatedText string
}

// FixJob carries a generator-produced tree into the repair loop.
type FixJob struct {
	SeedID int
	Tree   *repair.Tree
}

// ReadyItem is a fully repaired, ready-to-schedule mutator body.
type ReadyItem struct {
	SeedID     int
	Tree       *repair.Tree
	Similarity float64
}

// StructuralJob carries a seed into the structural mutator side-channel
// (spec.md §4.6), which produces whole-alternative seed candidates rather
// than masked rewrite rules.
type StructuralJob struct {
	SeedID int
}

// StructuralReadyItem is a structural mutator's output: new seed bytes
// that must be registered as a seed before being handed to the host
// fuzzer (spec.md §4.6 "re-registered as a seed prior to emission").
// NewSeedID is the id the registry assigned to Bytes; SourceSeedID is
// kept for provenance (the parent seed the rewrite was inspired by).
type StructuralReadyItem struct {
	SourceSeedID int
	NewSeedID    int
	Bytes        []byte
}
