package crashlib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, n int, prefix string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, prefix+string(rune('a'+i))+".sql")
		require.NoError(t, os.WriteFile(path, []byte(prefix), 0o644))
	}
}

func TestRandomExamplesReturnsZeroForNonPositiveN(t *testing.T) {
	lib := New(t.TempDir(), t.TempDir())
	out, err := lib.RandomExamples(0)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRandomExamplesToleratesMissingDirectories(t *testing.T) {
	lib := New(filepath.Join(t.TempDir(), "missing-dynamic"), filepath.Join(t.TempDir(), "missing-static"))
	out, err := lib.RandomExamples(4)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRandomExamplesBackfillsFromStaticWhenDynamicIsEmpty(t *testing.T) {
	dyn := t.TempDir()
	static := t.TempDir()
	writeFiles(t, static, 6, "s")

	lib := New(dyn, static)
	out, err := lib.RandomExamples(4)
	require.NoError(t, err)
	assert.Len(t, out, 4)
	for _, e := range out {
		assert.Equal(t, "static", e.Source)
	}
}

func TestRandomExamplesMixesDynamicAndStatic(t *testing.T) {
	dyn := t.TempDir()
	static := t.TempDir()
	writeFiles(t, dyn, 10, "d")
	writeFiles(t, static, 10, "s")

	lib := New(dyn, static)
	out, err := lib.RandomExamples(6)
	require.NoError(t, err)
	assert.Len(t, out, 6)

	sources := map[string]int{}
	for _, e := range out {
		sources[e.Source]++
	}
	assert.Equal(t, 3, sources["dynamic"])
	assert.Equal(t, 3, sources["static"])
}
