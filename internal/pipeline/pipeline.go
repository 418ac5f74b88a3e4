package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/covfuzz/mutacore/internal/mutator"
	"github.com/covfuzz/mutacore/internal/queue"
	"github.com/covfuzz/mutacore/internal/repair"
	"github.com/covfuzz/mutacore/internal/seed"
)

// Config bundles the per-stage thread counts and queue capacities the
// pipeline is built from (spec.md §4.3 and §6 OTHERS/QUEUES blocks).
type Config struct {
	ParserThreads      int
	GeneratorThreads   int
	FixerThreads       int
	StructuralThreads  int
	ParserStackDepth   int
	LLMFormatMaxRetry  int

	ParseCapacity           int
	GenerateCapacity        int
	FixCapacity             int
	StructuralCapacity      int
	StructuralReadyCapacity int

	RepairCfg   repair.Config
	ArtifactDir string

	// CSV paths for the per-stage event sinks (spec.md §6); empty means
	// no sink for that stage.
	ParserCSVPath     string
	GeneratorCSVPath  string
	FixerCSVPath      string
	StructuralCSVPath string
}

// Pipeline owns the inter-stage queues and runs all four worker pools
// under a single errgroup.Group, the same construct the teacher uses for
// its own managed goroutine pools.
type Pipeline struct {
	ParseQueue           *queue.Bounded[ParseJob]
	GenerateQueue        *queue.Bounded[GenerateJob]
	FixQueue             *queue.Bounded[FixJob]
	StructuralQueue      *queue.Bounded[StructuralJob]
	StructuralReadyQueue *queue.Bounded[StructuralReadyItem]
	Ready                *queue.ReadyQueue[*mutator.Mutator]

	cfg        Config
	parser     *ParserStage
	generator  *GeneratorStage
	fixer      *FixerStage
	structural *StructuralStage
}

// New wires the four stages together over fresh bounded queues. CSV sink
// construction errors (bad directory permissions, say) are swallowed and
// leave that stage's Logger nil rather than failing pipeline construction,
// matching spec.md §7's "worker stages never surface errors upward."
func New(cfg Config, reg seed.Registry, pool *mutator.Pool, ready *queue.ReadyQueue[*mutator.Mutator],
	parseLLM ParseLLM, generateLLM GenerateLLM, fixLLM repair.LLMFix, structuralLLM StructuralLLM,
	energy func(alpha, beta float64) int) *Pipeline {

	parserSink, _ := NewCSVSink(cfg.ParserCSVPath, ParserCSVHeader)
	generatorSink, _ := NewCSVSink(cfg.GeneratorCSVPath, GeneratorCSVHeader)
	fixerSink, _ := NewCSVSink(cfg.FixerCSVPath, FixerCSVHeader)
	structuralSink, _ := NewCSVSink(cfg.StructuralCSVPath, StructuralCSVHeader)

	p := &Pipeline{
		ParseQueue:           queue.NewBounded[ParseJob](cfg.ParseCapacity),
		GenerateQueue:        queue.NewBounded[GenerateJob](cfg.GenerateCapacity),
		FixQueue:             queue.NewBounded[FixJob](cfg.FixCapacity),
		StructuralQueue:      queue.NewBounded[StructuralJob](cfg.StructuralCapacity),
		StructuralReadyQueue: queue.NewBounded[StructuralReadyItem](cfg.StructuralReadyCapacity),
		Ready:                ready,
		cfg:                  cfg,
	}

	p.parser = &ParserStage{
		Registry: reg,
		In:       p.ParseQueue,
		Out:      p.GenerateQueue,
		Cfg:      ParserConfig{StackDepth: cfg.ParserStackDepth, FormatMaxRetry: cfg.LLMFormatMaxRetry},
		LLM:      parseLLM,
		Logger:   parserSink,
	}
	p.generator = &GeneratorStage{
		In:     p.GenerateQueue,
		Out:    p.FixQueue,
		LLM:    generateLLM,
		Logger: generatorSink,
	}
	p.fixer = &FixerStage{
		Registry:    reg,
		Pool:        pool,
		Ready:       ready,
		In:          p.FixQueue,
		Cfg:         cfg.RepairCfg,
		FixLLM:      fixLLM,
		Energy:      energy,
		ArtifactDir: cfg.ArtifactDir,
		Logger:      fixerSink,
	}
	p.structural = &StructuralStage{
		Registry: reg,
		In:       p.StructuralQueue,
		Out:      p.StructuralReadyQueue,
		LLM:      structuralLLM,
		Logger:   structuralSink,
	}

	return p
}

// Start launches all worker pools under one errgroup.Group; Wait blocks
// until every pool has drained its (now-closed) input queue.
func (p *Pipeline) Start(ctx context.Context) *errgroup.Group {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.parser.Run(gctx, p.cfg.ParserThreads) })
	g.Go(func() error { return p.generator.Run(gctx, p.cfg.GeneratorThreads) })
	g.Go(func() error { return p.fixer.Run(gctx, p.cfg.FixerThreads) })
	g.Go(func() error { return p.structural.Run(gctx, p.cfg.StructuralThreads) })

	return g
}

// SubmitParse enqueues a seed for mask annotation (spec.md §4.3 entry
// point into the main pipeline).
func (p *Pipeline) SubmitParse(seedID int) {
	p.ParseQueue.Push(ParseJob{SeedID: seedID})
}

// SubmitStructural enqueues a seed into the structural side-channel
// (spec.md §4.6).
func (p *Pipeline) SubmitStructural(seedID int) {
	p.StructuralQueue.Push(StructuralJob{SeedID: seedID})
}

// Close signals no further work will be submitted; stages drain and exit.
func (p *Pipeline) Close() {
	p.ParseQueue.Close()
	p.GenerateQueue.Close()
	p.FixQueue.Close()
	p.StructuralQueue.Close()
}
