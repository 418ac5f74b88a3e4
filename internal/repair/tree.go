// Package repair implements the Repair Loop (spec.md §4.5) against the
// systems-language substitute for dynamic code loading that spec.md §9
// Design Notes calls for: an interpreted expression tree produced by the
// pipeline (parse masks -> tagged variants -> evaluate at mutate time)
// instead of a generated-and-compiled source module. The Repair Loop's
// role becomes validating the tree and resampling it, rather than
// syntax-checking source code.
package repair

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

// MaskSlot is one placeholder the parser stage found in a seed (spec.md
// §3 "Mask / placeholder"), in the wire shape the original mask-repair
// prompts use: "[CONSTANT, number:<n>, type:<type>, ori:<original_value>]".
type MaskSlot struct {
	Number   int
	Type     string
	Original string
}

// Segment is one piece of the rendered payload: either a literal run of
// text, or a reference to one of the tree's masks.
type Segment struct {
	Literal   string
	MaskIndex int // -1 for a literal segment
}

// Tree is the evaluated-at-mutate-time expression tree that stands in for
// a dynamically-loaded module's mutate() function.
type Tree struct {
	Segments []Segment
	Masks    []MaskSlot
	Rules    []MaskRule // parallel to Masks; may be nil before the generator stage runs
}

// MaskRule is the generator stage's mutation strategy for one mask: a
// deterministic candidate list to choose from, plus whether AFL-style
// random byte-level mutation of the original value is also applicable.
type MaskRule struct {
	Candidates    []string `json:"candidates"`
	AllowRandom   bool     `json:"allow_random"`
}

var maskTokenRE = regexp.MustCompile(`\[CONSTANT,\s*number:(\d+),\s*type:([^,]+),\s*ori:([^\]]*)\]`)

// ParseMasked splits LLM-annotated text (seed bytes with mask tokens
// inserted by the parser stage) into literal segments and MaskSlots.
// Returns mask_count as the number of masks found (spec.md §4.3 "counts
// `[`-opened placeholders as mask_count").
func ParseMasked(annotated string) (*Tree, error) {
	matches := maskTokenRE.FindAllStringSubmatchIndex(annotated, -1)
	t := &Tree{}

	cursor := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > cursor {
			t.Segments = append(t.Segments, Segment{Literal: annotated[cursor:start], MaskIndex: -1})
		}

		numStr := annotated[m[2]:m[3]]
		typ := strings.TrimSpace(annotated[m[4]:m[5]])
		ori := annotated[m[6]:m[7]]

		num, err := strconv.Atoi(numStr)
		if err != nil {
			return nil, fmt.Errorf("repair: bad mask number %q: %w", numStr, err)
		}

		maskIdx := len(t.Masks)
		t.Masks = append(t.Masks, MaskSlot{Number: num, Type: typ, Original: ori})
		t.Segments = append(t.Segments, Segment{MaskIndex: maskIdx})

		cursor = end
	}
	if cursor < len(annotated) {
		t.Segments = append(t.Segments, Segment{Literal: annotated[cursor:], MaskIndex: -1})
	}

	return t, nil
}

// MaskCount returns the number of masks found during parsing.
func (t *Tree) MaskCount() int { return len(t.Masks) }

// ContainsMaskTokens reports whether rendered text still has an
// unreplaced placeholder — the semantic-phase failure spec.md §4.5 checks
// for ("contains_mask").
func ContainsMaskTokens(text string) bool {
	return strings.Contains(text, "[CONSTANT,")
}

// Generate renders one payload: for each round, a random non-empty subset
// of masks is mutated (deterministic candidate pick or AFL-style random
// replacement of the original), the rest keep their ori value — matching
// the original factory's semantic-repair prompt contract exactly
// ("a subset of masks should be randomly selected for mutation, while
// unselected masks must retain their original values").
func (t *Tree) Generate() (string, error) {
	if len(t.Masks) == 0 {
		return t.render(nil), nil
	}

	values := make([]string, len(t.Masks))
	for i, m := range t.Masks {
		values[i] = m.Original
	}

	count := 1 + rand.N(len(t.Masks))
	perm := rand.Perm(len(t.Masks))
	for _, idx := range perm[:count] {
		rule := MaskRule{}
		if idx < len(t.Rules) {
			rule = t.Rules[idx]
		}
		values[idx] = mutateValue(t.Masks[idx], rule)
	}

	return t.render(values), nil
}

func (t *Tree) render(values []string) string {
	var sb strings.Builder
	for _, seg := range t.Segments {
		if seg.MaskIndex < 0 {
			sb.WriteString(seg.Literal)
			continue
		}
		if values != nil && seg.MaskIndex < len(values) {
			sb.WriteString(values[seg.MaskIndex])
		} else {
			sb.WriteString(t.Masks[seg.MaskIndex].Original)
		}
	}
	return sb.String()
}

// mutateValue picks either a deterministic candidate or an AFL-style
// random replacement for one mask.
func mutateValue(m MaskSlot, rule MaskRule) string {
	if len(rule.Candidates) == 0 || (rule.AllowRandom && rand.Float64() < 0.5) {
		return aflBoundaryValue(m)
	}
	return rule.Candidates[rand.N(len(rule.Candidates))]
}
