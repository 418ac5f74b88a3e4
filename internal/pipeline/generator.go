package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/covfuzz/mutacore/internal/csvlog"
	"github.com/covfuzz/mutacore/internal/queue"
	"github.com/covfuzz/mutacore/internal/repair"
)

// GenerateLLM is the narrow capability the generator stage needs: propose
// an initial Rules set for a freshly-parsed tree.
type GenerateLLM func(ctx context.Context, prompt string) (string, error)

// GeneratorStage turns an annotated seed into an initial repair.Tree with
// a first-pass Rules set, then hands it to the fixer stage (spec.md §4.4).
type GeneratorStage struct {
	In     *queue.Bounded[GenerateJob]
	Out    *queue.Bounded[FixJob]
	LLM    GenerateLLM
	Logger *csvlog.Sink
}

func (g *GeneratorStage) log(seedID, maskCount int, status string) {
	if g.Logger == nil {
		return
	}
	_ = g.Logger.Append([]string{
		time.Now().UTC().Format(time.RFC3339Nano),
		strconv.Itoa(seedID),
		strconv.Itoa(maskCount),
		status,
	})
}

// Run drains In until closed, one job at a time per worker.
func (g *GeneratorStage) Run(ctx context.Context, n int) error {
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			for {
				job, ok := g.In.Pop()
				if !ok {
					break
				}
				g.process(ctx, job)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	return nil
}

func (g *GeneratorStage) process(ctx context.Context, job GenerateJob) {
	tree, err := repair.ParseMasked(job.AnnotatedText)
	if err != nil {
		g.log(job.SeedID, 0, "unparseable")
		return
	}
	if tree.MaskCount() == 0 {
		g.log(job.SeedID, 0, "no_masks")
		g.Out.Push(FixJob{SeedID: job.SeedID, Tree: tree})
		return
	}

	resp, err := g.LLM(ctx, generatePrompt(job.AnnotatedText, tree.MaskCount()))
	status := "generated"
	if err == nil {
		if rules, ok := parseGeneratedRules(resp, tree.MaskCount()); ok {
			tree.Rules = rules
		} else {
			status = "format_error"
		}
	} else {
		status = "llm_error"
	}
	g.log(job.SeedID, tree.MaskCount(), status)
	g.Out.Push(FixJob{SeedID: job.SeedID, Tree: tree})
}

func generatePrompt(annotated string, maskCount int) string {
	return fmt.Sprintf(`Propose a mutation rule for each of the %d masks in this annotated
SQL statement. Return ONLY:

`+"```json"+`
{"rules": [{"candidates": ["..."], "allow_random": true}, ...]}
`+"```"+`

with exactly %d entries, in mask order.

%s`, maskCount, maskCount, annotated)
}

func parseGeneratedRules(resp string, want int) ([]repair.MaskRule, bool) {
	blocks := extractJSONFence(resp)
	if len(blocks) == 0 {
		return nil, false
	}
	var fix struct {
		Rules []repair.MaskRule `json:"rules"`
	}
	if err := json.Unmarshal([]byte(blocks[0]), &fix); err != nil {
		return nil, false
	}
	if len(fix.Rules) != want {
		return nil, false
	}
	return fix.Rules, true
}
