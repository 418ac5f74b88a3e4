package repair

import (
	"context"
	"encoding/json"
	"fmt"
)

// Config bounds the repair loop's retry budgets (spec.md §6 OTHERS block).
type Config struct {
	TrySamples           int // T, spec.md §4.5 "sample T times"
	SyntaxErrorMaxRetry  int // Rs
	SemanticFixMaxTime   int // Rm
}

// LLMFix is the narrow capability the Fixer needs from the LLM adapter: a
// role-scoped completion. Kept as a function type rather than importing
// llmclient directly so this package stays testable without a network
// client.
type LLMFix func(ctx context.Context, prompt string) (string, error)

// Result is a published, ready-to-run mutator body.
type Result struct {
	Tree       *Tree
	Similarity float64
	Accepted   bool
	DropReason string // non-empty only when Accepted is false
}

// Run drives the two-phase state machine of spec.md §4.5 over tree,
// mutating its Rules in place as the LLM proposes fixes.
func Run(ctx context.Context, cfg Config, seedText string, tree *Tree, fixLLM LLMFix) (Result, error) {
	if err := trySyntax(ctx, cfg, tree, fixLLM); err != nil {
		return Result{Accepted: false, DropReason: "syntax_exhausted"}, nil
	}

	similarity, _ := trySemantic(ctx, cfg, seedText, tree, fixLLM)
	return Result{Tree: tree, Similarity: similarity, Accepted: true}, nil
}

// trySyntax repeatedly evaluates tree T times, treating a panic or an
// empty render as a "load" failure (spec.md's dynamic-load analogue), and
// asks the LLM to repair the tree's Rules on failure, up to
// cfg.SyntaxErrorMaxRetry attempts.
func trySyntax(ctx context.Context, cfg Config, tree *Tree, fixLLM LLMFix) error {
	for attempt := 0; attempt <= cfg.SyntaxErrorMaxRetry; attempt++ {
		if evaluatesCleanly(tree, cfg.TrySamples) {
			return nil
		}
		if attempt == cfg.SyntaxErrorMaxRetry {
			return fmt.Errorf("repair: syntax retries exhausted")
		}
		if err := repairRules(ctx, syntaxFixPrompt(tree), tree, fixLLM); err != nil {
			return err
		}
	}
	return fmt.Errorf("repair: syntax retries exhausted")
}

// evaluatesCleanly recovers from a panicking Generate (the stand-in for a
// runtime exception in dynamically-loaded code) and rejects empty output.
func evaluatesCleanly(tree *Tree, samples int) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	for i := 0; i < samples; i++ {
		text, err := tree.Generate()
		if err != nil || text == "" {
			return false
		}
	}
	return true
}

// trySemantic samples T outputs and requires (a) no leftover mask tokens
// and (b) at least 25% unique samples; on failure it asks the LLM for a
// richer Rules set, capped at cfg.SemanticFixMaxTime iterations, after
// which the module is accepted anyway as long as syntax succeeded
// (spec.md §4.5 "accept the module even if semantic checks remain
// failing, as long as syntax succeeds").
func trySemantic(ctx context.Context, cfg Config, seedText string, tree *Tree, fixLLM LLMFix) (float64, bool) {
	var similarity float64
	var ok bool

	for attempt := 0; attempt <= cfg.SemanticFixMaxTime; attempt++ {
		samples := sample(tree, cfg.TrySamples)
		unique := uniqueCount(samples)
		total := len(samples)
		if total == 0 {
			return 1.0, false
		}
		similarity = 1 - float64(unique)/float64(total)
		hasMask := false
		for _, s := range samples {
			if ContainsMaskTokens(s) {
				hasMask = true
				break
			}
		}
		uniqueRatio := float64(unique) / float64(total)
		ok = !hasMask && uniqueRatio >= 0.25
		if ok || attempt == cfg.SemanticFixMaxTime {
			break
		}
		if err := repairRules(ctx, semanticFixPrompt(seedText, tree, hasMask, uniqueRatio), tree, fixLLM); err != nil {
			break
		}
	}
	return similarity, ok
}

func sample(tree *Tree, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		text, err := tree.Generate()
		if err != nil {
			continue
		}
		out = append(out, text)
	}
	return out
}

func uniqueCount(samples []string) int {
	seen := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		seen[s] = struct{}{}
	}
	return len(seen)
}

// llmRuleFix is the wire shape the LLM is asked to return: a full
// replacement Rules slice, parallel to tree.Masks.
type llmRuleFix struct {
	Rules []MaskRule `json:"rules"`
}

func repairRules(ctx context.Context, prompt string, tree *Tree, fixLLM LLMFix) error {
	if fixLLM == nil {
		return fmt.Errorf("repair: no fixer LLM configured")
	}
	resp, err := fixLLM(ctx, prompt)
	if err != nil {
		return fmt.Errorf("repair: llm fix call: %w", err)
	}
	blocks := extractJSONBlocks(resp)
	if len(blocks) == 0 {
		return fmt.Errorf("repair: no JSON block in LLM fix response")
	}
	var fix llmRuleFix
	if err := json.Unmarshal([]byte(blocks[0]), &fix); err != nil {
		return fmt.Errorf("repair: unmarshal LLM fix: %w", err)
	}
	if len(fix.Rules) != len(tree.Masks) {
		return fmt.Errorf("repair: LLM fix returned %d rules, want %d", len(fix.Rules), len(tree.Masks))
	}
	tree.Rules = fix.Rules
	return nil
}
