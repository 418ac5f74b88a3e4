package repair

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTree(t *testing.T, annotated string) *Tree {
	t.Helper()
	tree, err := ParseMasked(annotated)
	require.NoError(t, err)
	return tree
}

func TestRunAcceptsATreeThatAlreadyEvaluatesCleanly(t *testing.T) {
	tree := mustTree(t, "SELECT [CONSTANT, number:0, type:int, ori:1]")
	cfg := Config{TrySamples: 4, SyntaxErrorMaxRetry: 2, SemanticFixMaxTime: 2}

	result, err := Run(context.Background(), cfg, "SELECT 1", tree, nil)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, tree, result.Tree)
}

func TestRunToleratesNilFixLLMWhenSemanticPhaseNeverNeedsIt(t *testing.T) {
	// SemanticFixMaxTime: 0 means the semantic loop runs exactly one
	// check-and-break iteration without ever calling repairRules, so a nil
	// fixLLM must not be fatal as long as syntax already passed.
	tree := mustTree(t, "SELECT [CONSTANT, number:0, type:int, ori:1]")
	cfg := Config{TrySamples: 2, SyntaxErrorMaxRetry: 1, SemanticFixMaxTime: 0}

	result, err := Run(context.Background(), cfg, "SELECT 1", tree, nil)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
}

func TestRepairRulesRejectsWrongRuleCount(t *testing.T) {
	tree := mustTree(t, "SELECT [CONSTANT, number:0, type:int, ori:1]")
	fixLLM := func(ctx context.Context, prompt string) (string, error) {
		return "```json\n{\"rules\": [{\"candidates\": [\"1\"]}, {\"candidates\": [\"2\"]}]}\n```", nil
	}
	err := repairRules(context.Background(), "prompt", tree, fixLLM)
	assert.Error(t, err)
}

func TestRepairRulesAppliesValidRuleSet(t *testing.T) {
	tree := mustTree(t, "SELECT [CONSTANT, number:0, type:int, ori:1]")
	fixLLM := func(ctx context.Context, prompt string) (string, error) {
		return "```json\n{\"rules\": [{\"candidates\": [\"99\"], \"allow_random\": false}]}\n```", nil
	}
	err := repairRules(context.Background(), "prompt", tree, fixLLM)
	require.NoError(t, err)
	require.Len(t, tree.Rules, 1)
	assert.Equal(t, []string{"99"}, tree.Rules[0].Candidates)
}

func TestUniqueCount(t *testing.T) {
	assert.Equal(t, 2, uniqueCount([]string{"a", "a", "b"}))
	assert.Equal(t, 0, uniqueCount(nil))
}
