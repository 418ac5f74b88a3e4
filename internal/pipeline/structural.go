package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/covfuzz/mutacore/internal/csvlog"
	"github.com/covfuzz/mutacore/internal/queue"
	"github.com/covfuzz/mutacore/internal/seed"
)

// StructuralLLM is the narrow capability the structural stage needs: a
// whole-alternative-statement completion, distinct from the masked-rule
// repair prompts the main pipeline uses (spec.md §4.6).
type StructuralLLM func(ctx context.Context, prompt string) (string, error)

// StructuralStage produces whole new candidate seeds from an existing
// seed's text, re-registering the result as a seed before emitting it to
// the structural-ready side channel (spec.md §4.6: "re-registered as a
// seed prior to emission").
type StructuralStage struct {
	Registry seed.Registry
	In       *queue.Bounded[StructuralJob]
	Out      *queue.Bounded[StructuralReadyItem]
	LLM      StructuralLLM
	Logger   *csvlog.Sink
}

func (s *StructuralStage) log(sourceSeedID, newSeedID int, status string) {
	if s.Logger == nil {
		return
	}
	_ = s.Logger.Append([]string{
		time.Now().UTC().Format(time.RFC3339Nano),
		strconv.Itoa(sourceSeedID),
		strconv.Itoa(newSeedID),
		status,
	})
}

// Run drains In until closed.
func (s *StructuralStage) Run(ctx context.Context, n int) error {
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			for {
				job, ok := s.In.Pop()
				if !ok {
					break
				}
				s.process(ctx, job)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	return nil
}

func (s *StructuralStage) process(ctx context.Context, job StructuralJob) {
	parent := s.Registry.ByID(job.SeedID)
	if parent == nil {
		return
	}

	resp, err := s.LLM(ctx, structuralPrompt(parent.Text))
	if err != nil || resp == "" {
		s.log(job.SeedID, -1, "dropped")
		return
	}

	// Re-register the candidate as a seed before it ever reaches the host
	// fuzzer, so the registry's digest de-duplication and seed_id
	// assignment apply uniformly to structural output too.
	_, newSeedID := s.Registry.Insert([]byte(resp))

	s.log(job.SeedID, newSeedID, "published")
	s.Out.Push(StructuralReadyItem{SourceSeedID: job.SeedID, NewSeedID: newSeedID, Bytes: []byte(resp)})
}

func structuralPrompt(seedText string) string {
	return `Produce a new, structurally different but still well-formed SQL
statement inspired by the one below — different clause shape, joins, or
subquery structure, not just different literal values. Return only the SQL.

` + seedText
}
