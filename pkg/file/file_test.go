package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_CreatesParentAndReplaces(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	require.NoError(t, WriteAtomic(path, []byte("first"), 0o644))
	require.NoError(t, WriteAtomic(path, []byte("second"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.False(t, Exists(path+".tmp"))
}

func TestReadIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, ok, err := ReadIfExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	path := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	data, ok, err := ReadIfExists(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", string(data))
}

func TestRemoveIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.NoError(t, RemoveIfExists(filepath.Join(dir, "missing")))

	path := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, RemoveIfExists(path))
	assert.False(t, Exists(path))
}
