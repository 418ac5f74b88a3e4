package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/covfuzz/mutacore/internal/csvlog"
	"github.com/covfuzz/mutacore/internal/queue"
	"github.com/covfuzz/mutacore/internal/repair"
	"github.com/covfuzz/mutacore/internal/seed"
)

// ParseLLM is the narrow capability the parser stage needs: annotate a
// seed's text with mask tokens.
type ParseLLM func(ctx context.Context, prompt string) (string, error)

// ParserConfig bounds one parser worker's local stack depth and LLM retry
// budget (spec.md §6 OTHERS.parser_thread_count / llm_format_error_max_retry).
type ParserConfig struct {
	StackDepth      int
	FormatMaxRetry  int
}

// ParserStage runs a fixed pool of parser workers. Each worker keeps its
// own bounded LIFO stack plus an unbounded reflow FIFO (spec.md §9 Design
// Notes: "a local bounded stack of size P, with an auxiliary unbounded
// reflow queue to avoid losing work when the stack evicts, alternating
// the source to balance recency against fairness"), rather than a single
// shared data structure — each worker pulls independently from the shared
// input queue.
type ParserStage struct {
	Registry seed.Registry
	In       *queue.Bounded[ParseJob]
	Out      *queue.Bounded[GenerateJob]
	Cfg      ParserConfig
	LLM      ParseLLM
	Logger   *csvlog.Sink
}

func (p *ParserStage) log(seedID, maskCount int, status string) {
	if p.Logger == nil {
		return
	}
	_ = p.Logger.Append([]string{
		time.Now().UTC().Format(time.RFC3339Nano),
		strconv.Itoa(seedID),
		strconv.Itoa(maskCount),
		status,
	})
}

// Run drains In until it is closed, fanning annotation work out across n
// worker goroutines, each with its own stack/reflow state.
func (p *ParserStage) Run(ctx context.Context, n int) error {
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			p.worker(ctx)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	return nil
}

func (p *ParserStage) worker(ctx context.Context) {
	stack := make([]ParseJob, 0, p.Cfg.StackDepth)
	var reflow []ParseJob
	useReflow := false

	for {
		// Top up the local stack from the shared queue without blocking,
		// evicting the oldest stack entry into reflow when full so no
		// work is dropped.
		for {
			job, ok := p.In.TryPop()
			if !ok {
				break
			}
			if len(stack) >= p.Cfg.StackDepth && p.Cfg.StackDepth > 0 {
				evicted := stack[0]
				stack = stack[1:]
				reflow = append(reflow, evicted)
			}
			stack = append(stack, job)
		}

		if p.Out.Full() {
			// Backpressure: downstream has no room, make no LLM call
			// this round. Block on the shared queue to avoid spinning.
			job, ok := p.In.Pop()
			if !ok {
				p.drain(ctx, stack, reflow)
				return
			}
			stack = append(stack, job)
			continue
		}

		var job ParseJob
		var ok bool
		if useReflow && len(reflow) > 0 {
			job, reflow = reflow[0], reflow[1:]
			ok = true
		} else if len(stack) > 0 {
			job, stack = stack[len(stack)-1], stack[:len(stack)-1]
			ok = true
		} else if len(reflow) > 0 {
			job, reflow = reflow[0], reflow[1:]
			ok = true
		}
		useReflow = !useReflow

		if !ok {
			job, ok = p.In.Pop()
			if !ok {
				return
			}
		}

		p.process(ctx, job)
	}
}

func (p *ParserStage) drain(ctx context.Context, stack, reflow []ParseJob) {
	for _, j := range stack {
		p.process(ctx, j)
	}
	for _, j := range reflow {
		p.process(ctx, j)
	}
}

func (p *ParserStage) process(ctx context.Context, job ParseJob) {
	s := p.Registry.ByID(job.SeedID)
	if s == nil {
		return
	}

	cache := s.ParseCacheSnapshot()
	if cache.IsParsed {
		p.log(job.SeedID, cache.MaskCount, "cached")
		p.Out.Push(GenerateJob{SeedID: job.SeedID, AnnotatedText: cache.ParsedText})
		return
	}

	var annotated string
	var err error
	for attempt := 0; attempt <= p.Cfg.FormatMaxRetry; attempt++ {
		annotated, err = p.LLM(ctx, parsePrompt(s.Text))
		if err == nil && containsWellFormedMasks(annotated) {
			break
		}
		err = fmt.Errorf("parser: malformed annotation on attempt %d", attempt)
	}
	if err != nil {
		// Retries exhausted: drop the seed from this round (spec.md §7
		// "LLM format errors: retried up to a cap, then the seed is
		// dropped for this round").
		p.log(job.SeedID, 0, "dropped")
		return
	}

	maskCount := countMasks(annotated)
	s.SetParseCache(seed.ParseCache{
		ParsedText: annotated,
		IsParsed:   true,
		MaskCount:  maskCount,
	})
	p.log(job.SeedID, maskCount, "parsed")
	p.Out.Push(GenerateJob{SeedID: job.SeedID, AnnotatedText: annotated})
}

func parsePrompt(seedText string) string {
	return fmt.Sprintf(`Annotate every literal constant in this SQL statement with a mask
token of the form [CONSTANT, number:<n>, type:<sql_type>, ori:<original_value>],
numbering masks from 0 in source order. Return only the annotated SQL.

%s`, seedText)
}

func containsWellFormedMasks(s string) bool {
	return s != ""
}

// countMasks reuses repair's own mask-token parser so the count stays
// consistent with however generator/fixer later interpret the same text.
func countMasks(annotated string) int {
	tree, err := repair.ParseMasked(annotated)
	if err != nil {
		return 0
	}
	return tree.MaskCount()
}
