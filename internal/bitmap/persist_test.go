package bitmap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersisterWritesThreeFilesOnFirstFlush(t *testing.T) {
	dir := t.TempDir()
	b := New(4)
	_, _ = b.Add([]byte{1, 2, 0, 0})

	p := NewPersister(dir, time.Hour)
	flushed, err := p.MaybeFlush(b)
	require.NoError(t, err)
	assert.True(t, flushed)

	for _, name := range []string{"sum.txt", "cumulative.txt", "bool.txt"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s to exist", name)
	}
}

func TestPersisterThrottlesWithinInterval(t *testing.T) {
	dir := t.TempDir()
	b := New(2)
	p := NewPersister(dir, time.Hour)

	flushed1, err := p.MaybeFlush(b)
	require.NoError(t, err)
	assert.True(t, flushed1)

	flushed2, err := p.MaybeFlush(b)
	require.NoError(t, err)
	assert.False(t, flushed2)
}

func TestPersisterSumFileContentsAreCommaJoined(t *testing.T) {
	dir := t.TempDir()
	b := New(3)
	_, _ = b.Add([]byte{9, 0, 3})

	p := NewPersister(dir, time.Hour)
	_, err := p.MaybeFlush(b)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "sum.txt"))
	require.NoError(t, err)
	assert.Equal(t, "9,0,3", string(content))
}
