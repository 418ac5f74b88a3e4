package mutator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGen struct {
	text string
	err  error
}

func (g *fakeGen) Generate() (string, error) { return g.text, g.err }

func TestPoolAppendAssignsDenseIndices(t *testing.T) {
	p := NewPool()
	m1 := NewMutator(0, 0, -1, "", 1, 0, &fakeGen{text: "a"})
	m2 := NewMutator(0, 1, -1, "", 1, 0, &fakeGen{text: "b"})

	assert.Equal(t, 0, p.Append(m1))
	assert.Equal(t, 1, p.Append(m2))
	assert.Equal(t, 2, p.Len())
}

func TestSelectReturnsFalseOnEmptyPool(t *testing.T) {
	p := NewPool()
	_, ok := p.Select()
	assert.False(t, ok)
}

func TestSelectPicksAMutatorAndIncrementsTotalSelectCount(t *testing.T) {
	p := NewPool()
	m := NewMutator(0, 0, -1, "", 3, 0.1, &fakeGen{text: "x"})
	p.Append(m)

	sel, ok := p.Select()
	require.True(t, ok)
	assert.Same(t, m, sel.Mutator)
	assert.GreaterOrEqual(t, sel.Score, 0.0)
	assert.EqualValues(t, 1, p.totalSelectCount)
}

func TestApplyFeedbackUpdatesBanditState(t *testing.T) {
	p := NewPool()
	m := NewMutator(5, 2, -1, "", 1, 0, &fakeGen{text: "x"})
	p.Append(m)

	ok := p.ApplyFeedback(5, 2, true, 10)
	require.True(t, ok)

	snap := m.BanditSnapshot()
	assert.Equal(t, 2.0, snap.Alpha)
	assert.Equal(t, 1.0, snap.Beta)
	assert.Equal(t, 1, snap.SuccessCount)
	assert.EqualValues(t, 10, snap.TotalNewEdges)
}

func TestApplyFeedbackUnknownIdentityReturnsFalse(t *testing.T) {
	p := NewPool()
	assert.False(t, p.ApplyFeedback(99, 99, true, 1))
}

func TestMutatorGenerateMarksFailedOnError(t *testing.T) {
	m := NewMutator(0, 0, -1, "", 1, 0, &fakeGen{err: errors.New("boom")})
	_, err := m.Generate()
	assert.Error(t, err)
	assert.True(t, m.Failed())
}

func TestRandomSelectUniformlyPicksFromPool(t *testing.T) {
	p := NewPool()
	for i := 0; i < 5; i++ {
		p.Append(NewMutator(0, i, -1, "", 1, 0, &fakeGen{text: "x"}))
	}
	m, ok := p.RandomSelect()
	require.True(t, ok)
	assert.NotNil(t, m)
}

func TestHigherTotalNewEdgesYieldsHigherEfficiencyFactor(t *testing.T) {
	// Sanity check on the Bi formula's monotonic behavior rather than an
	// exact value, since Ai is randomized per draw.
	p := NewPool()
	lazy := NewMutator(0, 0, -1, "", 1, 0, &fakeGen{text: "x"})
	lazy.Bandit.SuccessCount = 1
	lazy.Bandit.FailureCount = 1
	productive := NewMutator(0, 1, -1, "", 1, 0, &fakeGen{text: "y"})
	productive.Bandit.SuccessCount = 1
	productive.Bandit.FailureCount = 1
	productive.Bandit.TotalNewEdges = 1000

	p.Append(lazy)
	p.Append(productive)
	p.Append(NewMutator(0, 2, -1, "", 1, 0, &fakeGen{text: "z"}))

	// Run several selections; the productive mutator should win at least
	// once given its much higher Bi factor dominates the score formula.
	wins := map[int]int{}
	for i := 0; i < 200; i++ {
		sel, ok := p.Select()
		require.True(t, ok)
		wins[sel.Mutator.MutatorID]++
	}
	assert.Greater(t, wins[1], 0)
}
