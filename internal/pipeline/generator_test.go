package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGeneratedRulesRejectsWrongCount(t *testing.T) {
	resp := "```json\n{\"rules\": [{\"candidates\": [\"1\"]}]}\n```"
	_, ok := parseGeneratedRules(resp, 2)
	assert.False(t, ok)
}

func TestParseGeneratedRulesAcceptsMatchingCount(t *testing.T) {
	resp := "```json\n{\"rules\": [{\"candidates\": [\"1\"]}, {\"allow_random\": true}]}\n```"
	rules, ok := parseGeneratedRules(resp, 2)
	assert.True(t, ok)
	assert.Len(t, rules, 2)
	assert.True(t, rules[1].AllowRandom)
}

func TestParseGeneratedRulesNoFenceReturnsFalse(t *testing.T) {
	_, ok := parseGeneratedRules("no json here", 1)
	assert.False(t, ok)
}

func TestExtractJSONFence(t *testing.T) {
	out := extractJSONFence("```json\n{\"a\":1}\n```")
	assert.Equal(t, []string{"{\"a\":1}\n"}, out)
}
