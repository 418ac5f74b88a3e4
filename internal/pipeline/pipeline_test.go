package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covfuzz/mutacore/internal/mutator"
	"github.com/covfuzz/mutacore/internal/queue"
	"github.com/covfuzz/mutacore/internal/repair"
	"github.com/covfuzz/mutacore/internal/seed"
)

func fakeParseLLM(ctx context.Context, prompt string) (string, error) {
	return "SELECT * FROM t WHERE id = [CONSTANT, number:0, type:int, ori:1]", nil
}

func fakeGenerateLLM(ctx context.Context, prompt string) (string, error) {
	return "```json\n{\"rules\": [{\"candidates\": [\"99\"], \"allow_random\": false}]}\n```", nil
}

func fakeFixLLM(ctx context.Context, prompt string) (string, error) {
	return "```json\n{\"rules\": [{\"candidates\": [\"7\"], \"allow_random\": false}]}\n```", nil
}

func fakeStructuralLLM(ctx context.Context, prompt string) (string, error) {
	return "SELECT * FROM t2", nil
}

func TestPipelineEndToEndProducesAReadyMutator(t *testing.T) {
	reg := seed.NewRegistry()
	pool := mutator.NewPool()
	ready := queue.NewReadyQueue[*mutator.Mutator]()

	_, seedID := reg.Insert([]byte("SELECT * FROM t WHERE id = 1"))

	cfg := Config{
		ParserThreads: 1, GeneratorThreads: 1, FixerThreads: 1, StructuralThreads: 1,
		ParserStackDepth:  4,
		LLMFormatMaxRetry: 2,

		ParseCapacity: 4, GenerateCapacity: 4, FixCapacity: 4,
		StructuralCapacity: 4, StructuralReadyCapacity: 4,

		RepairCfg: repair.Config{TrySamples: 3, SyntaxErrorMaxRetry: 1, SemanticFixMaxTime: 1},
	}

	energyFn := func(alpha, beta float64) int { return 2 }

	p := New(cfg, reg, pool, ready, fakeParseLLM, fakeGenerateLLM, fakeFixLLM, fakeStructuralLLM, energyFn)
	ctx := context.Background()
	g := p.Start(ctx)

	p.SubmitParse(seedID)

	deadline := time.After(2 * time.Second)
	for ready.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a ready mutator")
		case <-time.After(5 * time.Millisecond):
		}
	}

	head, runLen, ok := ready.LeadingRun()
	require.True(t, ok)
	assert.NotNil(t, head)
	assert.Equal(t, 2, runLen)
	assert.Equal(t, 1, pool.Len())

	p.Close()
	_ = g.Wait()
}

func TestPipelineStructuralSideChannelRegistersNewSeed(t *testing.T) {
	reg := seed.NewRegistry()
	pool := mutator.NewPool()
	ready := queue.NewReadyQueue[*mutator.Mutator]()

	_, seedID := reg.Insert([]byte("SELECT * FROM t"))

	cfg := Config{
		ParserThreads: 1, GeneratorThreads: 1, FixerThreads: 1, StructuralThreads: 1,
		ParserStackDepth: 4, LLMFormatMaxRetry: 1,
		ParseCapacity: 4, GenerateCapacity: 4, FixCapacity: 4,
		StructuralCapacity: 4, StructuralReadyCapacity: 4,
		RepairCfg: repair.Config{TrySamples: 2, SyntaxErrorMaxRetry: 1, SemanticFixMaxTime: 1},
	}

	p := New(cfg, reg, pool, ready, fakeParseLLM, fakeGenerateLLM, fakeFixLLM, fakeStructuralLLM,
		func(alpha, beta float64) int { return 1 })
	ctx := context.Background()
	g := p.Start(ctx)

	p.SubmitStructural(seedID)

	deadline := time.After(2 * time.Second)
	for p.StructuralReadyQueue.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for structural output")
		case <-time.After(5 * time.Millisecond):
		}
	}

	item, ok := p.StructuralReadyQueue.TryPop()
	require.True(t, ok)
	assert.Equal(t, seedID, item.SourceSeedID)
	assert.NotEqual(t, seedID, item.NewSeedID)
	assert.Equal(t, 2, reg.Len()) // original + re-registered structural output

	p.Close()
	_ = g.Wait()
}

func TestPipelineCSVSinksLogEachStage(t *testing.T) {
	reg := seed.NewRegistry()
	pool := mutator.NewPool()
	ready := queue.NewReadyQueue[*mutator.Mutator]()

	_, seedID := reg.Insert([]byte("SELECT * FROM t WHERE id = 1"))

	dir := t.TempDir()
	cfg := Config{
		ParserThreads: 1, GeneratorThreads: 1, FixerThreads: 1, StructuralThreads: 1,
		ParserStackDepth: 4, LLMFormatMaxRetry: 1,
		ParseCapacity: 4, GenerateCapacity: 4, FixCapacity: 4,
		StructuralCapacity: 4, StructuralReadyCapacity: 4,
		RepairCfg: repair.Config{TrySamples: 2, SyntaxErrorMaxRetry: 1, SemanticFixMaxTime: 1},

		ParserCSVPath:    dir + "/parser.csv",
		GeneratorCSVPath: dir + "/generator.csv",
		FixerCSVPath:     dir + "/fixer.csv",
	}

	p := New(cfg, reg, pool, ready, fakeParseLLM, fakeGenerateLLM, fakeFixLLM, fakeStructuralLLM,
		func(alpha, beta float64) int { return 3 })
	ctx := context.Background()
	g := p.Start(ctx)

	p.SubmitParse(seedID)

	deadline := time.After(2 * time.Second)
	for ready.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a published mutator")
		case <-time.After(5 * time.Millisecond):
		}
	}

	p.Close()
	_ = g.Wait()

	for _, name := range []string{"parser.csv", "generator.csv", "fixer.csv"} {
		data, err := os.ReadFile(dir + "/" + name)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		assert.GreaterOrEqual(t, len(lines), 2, "%s should have a header plus at least one row", name)
	}
}
