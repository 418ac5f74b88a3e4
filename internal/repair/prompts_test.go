package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONBlocksFindsFencedBlock(t *testing.T) {
	text := "Here:\n```json\n{\"rules\": []}\n```\ndone"
	blocks := extractJSONBlocks(text)
	assert.Len(t, blocks, 1)
	assert.Contains(t, blocks[0], "\"rules\"")
}

func TestExtractJSONBlocksNoneFound(t *testing.T) {
	assert.Empty(t, extractJSONBlocks("no fenced content"))
}

func TestSyntaxFixPromptNamesExactMaskCount(t *testing.T) {
	tree := &Tree{Masks: []MaskSlot{{}, {}}}
	prompt := syntaxFixPrompt(tree)
	assert.Contains(t, prompt, "2 masked positions")
	assert.Contains(t, prompt, "exactly 2 entries")
}

func TestSemanticFixPromptReportsMaskIssue(t *testing.T) {
	tree := &Tree{Masks: []MaskSlot{{}}}
	prompt := semanticFixPrompt("SELECT 1", tree, true, 0.1)
	assert.Contains(t, prompt, "unresolved mask placeholders")
}

func TestSemanticFixPromptReportsDiversityIssue(t *testing.T) {
	tree := &Tree{Masks: []MaskSlot{{}}}
	prompt := semanticFixPrompt("SELECT 1", tree, false, 0.1)
	assert.Contains(t, prompt, "insufficient diversity")
}
