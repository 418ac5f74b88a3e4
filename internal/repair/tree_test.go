package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMaskedSplitsLiteralAndMaskSegments(t *testing.T) {
	annotated := "SELECT * FROM t WHERE id = [CONSTANT, number:0, type:int, ori:1]"
	tree, err := ParseMasked(annotated)
	require.NoError(t, err)

	assert.Equal(t, 1, tree.MaskCount())
	assert.Equal(t, "int", tree.Masks[0].Type)
	assert.Equal(t, "1", tree.Masks[0].Original)
}

func TestParseMaskedWithNoMasks(t *testing.T) {
	tree, err := ParseMasked("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 0, tree.MaskCount())

	text, err := tree.Generate()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", text)
}

func TestParseMaskedMultipleMasksInOrder(t *testing.T) {
	annotated := "a=[CONSTANT, number:0, type:int, ori:1] b=[CONSTANT, number:1, type:varchar, ori:x]"
	tree, err := ParseMasked(annotated)
	require.NoError(t, err)
	require.Equal(t, 2, tree.MaskCount())
	assert.Equal(t, "1", tree.Masks[0].Original)
	assert.Equal(t, "x", tree.Masks[1].Original)
}

func TestContainsMaskTokens(t *testing.T) {
	assert.True(t, ContainsMaskTokens("x=[CONSTANT, number:0, type:int, ori:1]"))
	assert.False(t, ContainsMaskTokens("x=1"))
}

func TestGenerateKeepsUnselectedMasksAtOriginalValue(t *testing.T) {
	annotated := "a=[CONSTANT, number:0, type:int, ori:1] b=[CONSTANT, number:1, type:int, ori:2]"
	tree, err := ParseMasked(annotated)
	require.NoError(t, err)

	// With no Rules, mutateValue always falls back to AFL boundary values,
	// so at least one run should differ from the all-original rendering,
	// but whichever mask is NOT selected in a given round must retain its
	// ori value verbatim (spec.md's subset-selection contract).
	sawOriginalPreserved := false
	for i := 0; i < 50; i++ {
		text, err := tree.Generate()
		require.NoError(t, err)
		if text != "" {
			sawOriginalPreserved = sawOriginalPreserved || (contains(text, "a=1") || contains(text, "b=2"))
		}
	}
	assert.True(t, sawOriginalPreserved)
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
