package repair

import (
	"fmt"
	"regexp"
)

var jsonFenceRE = regexp.MustCompile("(?is)```json\\s*\\n(.*?)```")

// extractJSONBlocks mirrors llmclient's fenced-block extractors but for
// the ```json tag the fix prompts request, kept local to avoid a
// repair->llmclient import purely for one regex.
func extractJSONBlocks(text string) []string {
	matches := jsonFenceRE.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// syntaxFixPrompt asks the LLM for a replacement Rules array when the tree
// fails to evaluate cleanly — the expression-tree analogue of the
// original factory's get_fix_syntax_prompt (mutator_fixer.py).
func syntaxFixPrompt(tree *Tree) string {
	return fmt.Sprintf(`You are repairing a mutation rule set for a SQL fuzzing mutator.
The mutator has %d masked positions. Its current rule set caused a generation
failure (empty output or a panic during evaluation).

Return ONLY a JSON object of the form:

`+"```json"+`
{"rules": [{"candidates": ["..."], "allow_random": true}, ...]}
`+"```"+`

with exactly %d entries in "rules", one per mask in order, each with a
non-empty "candidates" list or allow_random=true.`, len(tree.Masks), len(tree.Masks))
}

// semanticFixPrompt asks for richer rules when the current rule set either
// leaves mask placeholders unresolved or produces too-similar output,
// mirroring get_fix_semantics_prompt's contract (mask-not-replaced /
// insufficient-randomness) while targeting our Rules JSON shape instead of
// Python source.
func semanticFixPrompt(seedText string, tree *Tree, hasMask bool, uniqueRatio float64) string {
	issue := "insufficient diversity across samples"
	if hasMask {
		issue = "generated output still contains unresolved mask placeholders"
	}
	return fmt.Sprintf(`You are improving the diversity of a SQL mutation rule set.

Masked seed text:
%s

Detected issue: %s (observed unique ratio %.2f, required >= 0.25).

Return ONLY a JSON object of the form:

`+"```json"+`
{"rules": [{"candidates": ["..."], "allow_random": true}, ...]}
`+"```"+`

with exactly %d entries, improving candidate variety or enabling
allow_random so that repeated generation produces more distinct output.`,
		seedText, issue, uniqueRatio, len(tree.Masks))
}
