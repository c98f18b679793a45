package snapshot

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Noop{}.Snapshot(context.Background(), "anything"))
}

func TestMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `cycle 3: tool read_file {"path":"a.txt"}`, Message(3, `tool read_file {"path":"a.txt"}`))
}

func TestGit_SnapshotCommitsChanges(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	ctx := context.Background()

	g, err := NewGit(ctx, dir)
	require.NoError(t, err)

	ignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(ignore), "philby.db")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "task.txt"), []byte("task\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "philby.db"), []byte("binary"), 0o644))
	require.NoError(t, g.Snapshot(ctx, Message(1, "tool list_files {}")))

	first, err := g.Head(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	// nothing changed: no new commit
	require.NoError(t, g.Snapshot(ctx, Message(2, "noop")))
	same, err := g.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, same)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "task.txt"), []byte("other\n"), 0o644))
	require.NoError(t, g.Snapshot(ctx, Message(3, "tool write_file")))
	next, err := g.Head(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, next)

	out, err := g.run(ctx, "log", "--format=%s")
	require.NoError(t, err)
	assert.Equal(t, []string{"cycle 3: tool write_file", "cycle 1: tool list_files {}"}, strings.Split(strings.TrimSpace(out), "\n"))

	tracked, err := g.run(ctx, "ls-files")
	require.NoError(t, err)
	assert.NotContains(t, tracked, "philby.db")
}

func TestGit_ReopenKeepsIgnoreFile(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("node_modules"), 0o644))

	_, err := NewGit(context.Background(), dir)
	require.NoError(t, err)
	_, err = NewGit(context.Background(), dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), ".philby.lock"))
	assert.True(t, strings.HasPrefix(string(data), "node_modules\n"))
}
