// Package session wires every component package together into one running
// bridge from a loaded config.Config, the composition root cmd/fuzzbridge
// builds on.
package session

import (
	"fmt"
	"os"

	"github.com/covfuzz/mutacore/internal/bitmap"
	"github.com/covfuzz/mutacore/internal/bridge"
	"github.com/covfuzz/mutacore/internal/config"
	"github.com/covfuzz/mutacore/internal/crashlib"
	"github.com/covfuzz/mutacore/internal/llmclient"
	"github.com/covfuzz/mutacore/internal/mutator"
	"github.com/covfuzz/mutacore/internal/pipeline"
	"github.com/covfuzz/mutacore/internal/queue"
	"github.com/covfuzz/mutacore/internal/repair"
	"github.com/covfuzz/mutacore/internal/seed"
)

// Session owns every long-lived component for one fuzzing campaign.
type Session struct {
	Config   *config.Config
	Bridge   *bridge.Bridge
	Registry seed.Registry
	Pool     *mutator.Pool
	Bitmap   *bitmap.Bitmap
	Pipeline *pipeline.Pipeline

	parserClient     *llmclient.Client
	generatorClient  *llmclient.Client
	structuralClient *llmclient.Client
	fixerClient      *llmclient.Client
}

// New builds a Session from a fully loaded and validated config.
func New(cfg *config.Config) (*Session, error) {
	reg := seed.NewRegistry()
	pool := mutator.NewPool()
	ready := queue.NewReadyQueue[*mutator.Mutator]()
	bm := bitmap.New(cfg.Bitmap.MapSize)

	handle := os.Getenv(cfg.Bitmap.ShmEnvVar)
	reader, err := bitmap.OpenFromHandle(handle, cfg.Bitmap.MapSize)
	if err != nil {
		return nil, fmt.Errorf("session: open coverage bitmap: %w", err)
	}
	persister := bitmap.NewPersister(cfg.Bitmap.PersistDir, cfg.Bitmap.PersistInterval)
	crashLib := crashlib.New(cfg.CrashLibrary.DynamicDir, cfg.CrashLibrary.StaticDir)

	s := &Session{Config: cfg, Registry: reg, Pool: pool, Bitmap: bm}

	s.parserClient = llmclient.New("parser", cfg.LLM.Parser.BaseURL, cfg.LLM.Parser.Model, cfg.LLM.Parser.APIKey)
	s.generatorClient = llmclient.New("mutator_generator", cfg.LLM.MutatorGenerator.BaseURL, cfg.LLM.MutatorGenerator.Model, cfg.LLM.MutatorGenerator.APIKey)
	s.structuralClient = llmclient.New("structural_mutator", cfg.LLM.StructuralMutator.BaseURL, cfg.LLM.StructuralMutator.Model, cfg.LLM.StructuralMutator.APIKey)
	s.fixerClient = llmclient.New("fixer", cfg.LLM.Fixer.BaseURL, cfg.LLM.Fixer.Model, cfg.LLM.Fixer.APIKey)

	pcfg := pipeline.Config{
		ParserThreads:     cfg.Others.ParserThreadCount,
		GeneratorThreads:  cfg.Others.MutatorGeneratorThreadCount,
		FixerThreads:      cfg.Others.FixerThreadCount,
		StructuralThreads: cfg.Others.StructuralMutatorThreadCount,
		ParserStackDepth:  cfg.Queues.ParserStackDepth,
		LLMFormatMaxRetry: cfg.Others.LLMFormatErrorMaxRetry,

		ParseCapacity:           cfg.Queues.ParseCapacity,
		GenerateCapacity:        cfg.Queues.GenerateCapacity,
		FixCapacity:             cfg.Queues.FixCapacity,
		StructuralCapacity:      cfg.Queues.StructuralCapacity,
		StructuralReadyCapacity: cfg.Queues.StructuralReadyCapacity,

		RepairCfg: repair.Config{
			TrySamples:          cfg.Others.FixMutatorTryTime,
			SyntaxErrorMaxRetry: cfg.Others.SyntaxErrorMaxRetry,
			SemanticFixMaxTime:  cfg.Others.SemanticFixMaxTime,
		},
		ArtifactDir: cfg.Files.MutatorDir,

		ParserCSVPath:     cfg.CSV.ParserPath,
		GeneratorCSVPath:  cfg.CSV.MutatorGeneratorPath,
		FixerCSVPath:      cfg.CSV.MutatorFixerPath,
		StructuralCSVPath: cfg.CSV.StructuralMutatorPath,
	}

	energyFn := func(alpha, beta float64) int {
		mean := alpha / (alpha + beta)
		est := int(mean * cfg.Energy.ExchangeRate)
		if est < cfg.Energy.MinEnergy {
			est = cfg.Energy.MinEnergy
		}
		if est > cfg.Energy.MaxEnergy {
			est = cfg.Energy.MaxEnergy
		}
		return est
	}

	s.Pipeline = pipeline.New(pcfg, reg, pool, ready,
		s.parserClient.Complete1,
		s.generatorClient.Complete1,
		repair.LLMFix(s.fixerClient.Complete1),
		s.structuralClient.Complete1,
		energyFn,
	)

	br := bridge.New(reg, pool, ready, s.Pipeline, bm, reader, persister, crashLib,
		bridge.EnergyConfig{
			ExchangeRate: cfg.Energy.ExchangeRate,
			MinEnergy:    cfg.Energy.MinEnergy,
			MaxEnergy:    cfg.Energy.MaxEnergy,
		},
		cfg.Others.TimesToStructuralMutator,
	)
	if mainSink, err := pipeline.NewCSVSink(cfg.CSV.MainPath, bridge.MainCSVHeader); err == nil {
		br.SetLogger(mainSink)
	}
	s.Bridge = br

	return s, nil
}
