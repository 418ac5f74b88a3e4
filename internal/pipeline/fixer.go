package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/covfuzz/mutacore/internal/csvlog"
	"github.com/covfuzz/mutacore/internal/mutator"
	"github.com/covfuzz/mutacore/internal/queue"
	"github.com/covfuzz/mutacore/internal/repair"
	"github.com/covfuzz/mutacore/internal/seed"
)

// FixerStage runs the repair loop (internal/repair) over each generator
// output and, on acceptance, registers a new Mutator and enqueues it onto
// the ready queue energy times contiguously (spec.md §4.5).
type FixerStage struct {
	Registry   seed.Registry
	Pool       *mutator.Pool
	Ready      *queue.ReadyQueue[*mutator.Mutator]
	In         *queue.Bounded[FixJob]
	Cfg        repair.Config
	FixLLM     repair.LLMFix
	Energy     func(alpha, beta float64) int
	ArtifactDir string
	Logger     *csvlog.Sink
}

func (f *FixerStage) log(seedID, mutatorID int, similarity float64, status string) {
	if f.Logger == nil {
		return
	}
	_ = f.Logger.Append([]string{
		time.Now().UTC().Format(time.RFC3339Nano),
		strconv.Itoa(seedID),
		strconv.Itoa(mutatorID),
		strconv.FormatFloat(similarity, 'f', 4, 64),
		status,
	})
}

// artifactPath names the file a fixed tree's rule set is persisted to,
// mirroring the original factory's one-file-per-mutator layout.
func (f *FixerStage) artifactPath(seedID, mutatorID int) string {
	return filepath.Join(f.ArtifactDir, fmt.Sprintf("seed_%d_mutator_%d.json", seedID, mutatorID))
}

// Run drains In until closed.
func (f *FixerStage) Run(ctx context.Context, n int) error {
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			for {
				job, ok := f.In.Pop()
				if !ok {
					break
				}
				f.process(ctx, job)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	return nil
}

func (f *FixerStage) process(ctx context.Context, job FixJob) {
	s := f.Registry.ByID(job.SeedID)
	if s == nil {
		return
	}

	result, err := repair.Run(ctx, f.Cfg, s.Text, job.Tree, f.FixLLM)
	if err != nil || !result.Accepted {
		f.log(job.SeedID, -1, 0, "dropped")
		return
	}

	mutatorID := s.NextMutatorID()
	artifactPath := f.artifactPath(job.SeedID, mutatorID)
	if f.ArtifactDir != "" {
		if err := os.MkdirAll(f.ArtifactDir, 0o755); err == nil {
			_ = os.WriteFile(artifactPath, []byte(artifactBody(job.Tree)), 0o644)
		}
	}

	m := mutator.NewMutator(job.SeedID, mutatorID, 0, artifactPath, job.Tree.MaskCount(), result.Similarity, job.Tree)
	f.Pool.Append(m)

	energy := 1
	if f.Energy != nil {
		bandit := m.BanditSnapshot()
		energy = f.Energy(bandit.Alpha, bandit.Beta)
	}
	if energy < 1 {
		energy = 1
	}
	f.log(job.SeedID, mutatorID, result.Similarity, "published")
	f.Ready.PushN(m, energy)
}

// artifactBody serializes a tree's repaired rule set for on-disk
// persistence, so a restarted bridge could in principle reload mutators
// without a fresh LLM round-trip (reload is out of scope here, but the
// artifact file is still written per spec.md's publish order).
func artifactBody(tree *repair.Tree) string {
	b, err := json.Marshal(tree.Rules)
	if err != nil {
		return "[]"
	}
	return string(b)
}
