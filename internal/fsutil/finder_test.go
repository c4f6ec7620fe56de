package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := t.TempDir()
	nested := filepath.Join(root, "nested", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	for _, p := range []string{
		filepath.Join(root, "b.hcl"),
		filepath.Join(root, "notes.txt"),
		filepath.Join(nested, "a.hcl"),
	} {
		require.NoError(t, os.WriteFile(p, []byte("# test"), 0o644))
	}
	single := filepath.Join(root, "b.hcl")

	// --- Act ---
	files, err := FindFilesByExtension([]string{root, single, filepath.Join(root, "missing")}, ".hcl")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "b.hcl"),
		filepath.Join(nested, "a.hcl"),
	}, files)
}

func TestFindFilesByExtension_PanicsOnEmptyExtension(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { _, _ = FindFilesByExtension([]string{"."}, "") })
}
