package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsMismatchedSnapshotSize(t *testing.T) {
	b := New(8)
	_, err := b.Add(make([]byte, 4))
	assert.Error(t, err)
}

func TestAddCountsNewEdgesOnlyOnFirstHit(t *testing.T) {
	b := New(4)

	snap1 := []byte{1, 0, 0, 0}
	n1, err := b.Add(snap1)
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	snap2 := []byte{1, 1, 0, 0}
	n2, err := b.Add(snap2)
	require.NoError(t, err)
	assert.Equal(t, 1, n2) // only position 1 is new

	assert.Equal(t, 2, b.HitCount())
}

func TestAddAccumulatesSumAndCumulative(t *testing.T) {
	b := New(2)
	_, _ = b.Add([]byte{3, 0})
	_, _ = b.Add([]byte{2, 0})

	assert.EqualValues(t, 5, b.Sum()[0])
	assert.EqualValues(t, 2, b.Cumulative()[0])
	assert.EqualValues(t, 0, b.Sum()[1])
}

func TestBoolInvariantFollowsSumAndCumulative(t *testing.T) {
	b := New(3)
	_, _ = b.Add([]byte{5, 0, 1})

	for i := range b.Bool() {
		if b.Bool()[i] == 1 {
			assert.Greater(t, b.Sum()[i], uint64(0))
			assert.Greater(t, b.Cumulative()[i], uint32(0))
		}
	}
}

func TestSumNeverLessThanCumulative(t *testing.T) {
	b := New(2)
	_, _ = b.Add([]byte{7, 2})
	_, _ = b.Add([]byte{1, 0})

	for i := range b.Sum() {
		assert.GreaterOrEqual(t, b.Sum()[i], uint64(b.Cumulative()[i]))
	}
}
