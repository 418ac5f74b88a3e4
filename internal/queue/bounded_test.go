package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedTryPushRespectsCapacity(t *testing.T) {
	b := NewBounded[int](2)
	assert.True(t, b.TryPush(1))
	assert.True(t, b.TryPush(2))
	assert.False(t, b.TryPush(3))
	assert.True(t, b.Full())
}

func TestBoundedTryPopEmpty(t *testing.T) {
	b := NewBounded[int](1)
	_, ok := b.TryPop()
	assert.False(t, ok)
}

func TestBoundedPushPopFIFO(t *testing.T) {
	b := NewBounded[string](4)
	b.Push("a")
	b.Push("b")

	v1, ok1 := b.Pop()
	v2, ok2 := b.Pop()

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, "a", v1)
	assert.Equal(t, "b", v2)
}

func TestBoundedCloseUnblocksPop(t *testing.T) {
	b := NewBounded[int](1)
	b.Close()
	_, ok := b.Pop()
	assert.False(t, ok)
}

func TestBoundedLen(t *testing.T) {
	b := NewBounded[int](3)
	b.Push(1)
	b.Push(2)
	assert.Equal(t, 2, b.Len())
}
