package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MimeLyc/philby/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execTool(t *testing.T, tool Tool, args string) ToolResult {
	t.Helper()
	res, err := tool.Execute(context.Background(), json.RawMessage(args))
	require.NoError(t, err)
	return res
}

func TestFileTools_WriteReadList(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	res := execTool(t, NewWriteFileTool(root), `{"path":"notes/a.txt","content":"hello"}`)
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "wrote 5 bytes to notes/a.txt", res.Content)

	res = execTool(t, NewWriteFileTool(root), `{"path":"notes/a.txt","content":" world","append":true}`)
	require.False(t, res.IsError, res.Content)

	res = execTool(t, NewReadFileTool(root), `{"path":"notes/a.txt"}`)
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "hello world", res.Content)

	// file_path is accepted as a synonym
	res = execTool(t, NewReadFileTool(root), `{"file_path":"notes/a.txt"}`)
	assert.Equal(t, "hello world", res.Content)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), nil, 0o644))
	res = execTool(t, NewListFilesTool(root), `{}`)
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "b.txt\nnotes/", res.Content)

	res = execTool(t, NewReadFileTool(root), `{"path":"b.txt"}`)
	assert.Equal(t, "(empty file)", res.Content)
}

func TestFileTools_Errors(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	tests := []struct {
		name string
		tool Tool
		args string
		want string
	}{
		{name: "read missing", tool: NewReadFileTool(root), args: `{"path":"nope.txt"}`, want: "read nope.txt"},
		{name: "read no path", tool: NewReadFileTool(root), args: `{}`, want: "path is required"},
		{name: "read escape", tool: NewReadFileTool(root), args: `{"path":"../../etc/passwd"}`, want: "outside the workspace"},
		{name: "read absolute outside", tool: NewReadFileTool(root), args: `{"path":"/etc/passwd"}`, want: "outside the workspace"},
		{name: "write escape", tool: NewWriteFileTool(root), args: `{"path":"../x.txt","content":"x"}`, want: "outside the workspace"},
		{name: "list missing", tool: NewListFilesTool(root), args: `{"directory":"missing"}`, want: "list missing"},
		{name: "bad json", tool: NewReadFileTool(root), args: `{"path":`, want: "invalid arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execTool(t, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, res.Content, tt.want)
		})
	}
}

func TestSandbox_AbsoluteInsideRoot(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	s := sandbox{root: root}
	p, err := s.resolve(filepath.Join(root, "x", "..", "y.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(realRoot, "y.txt"), p)
}

func TestWriteFile_ControllerStateIsReadOnly(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, workspace.TaskFile), []byte("original task\n"), 0o644))

	for _, path := range []string{
		workspace.TaskFile,
		workspace.PurposeFile,
		"TASK.TXT",
		"./task.txt",
		"state/" + workspace.OutcomeFile,
		"state/notes.txt",
		workspace.DBFile,
		workspace.DBFile + "-wal",
		workspace.LockFile,
	} {
		for _, appendMode := range []bool{false, true} {
			args, err := json.Marshal(map[string]any{"path": path, "content": "rewritten by model", "append": appendMode})
			require.NoError(t, err)
			res := execTool(t, NewWriteFileTool(root), string(args))
			assert.True(t, res.IsError, "%s append=%v: %s", path, appendMode, res.Content)
			assert.Contains(t, res.Content, "managed by philby")
		}
	}

	data, err := os.ReadFile(filepath.Join(root, workspace.TaskFile))
	require.NoError(t, err)
	assert.Equal(t, "original task\n", string(data))
	assert.NoFileExists(t, filepath.Join(root, workspace.DBFile))

	// the stop marker and ordinary files stay writable, reads are unaffected
	res := execTool(t, NewWriteFileTool(root), `{"path":"STOP","content":""}`)
	assert.False(t, res.IsError, res.Content)
	res = execTool(t, NewWriteFileTool(root), `{"path":"statement.txt","content":"x"}`)
	assert.False(t, res.IsError, res.Content)
	res = execTool(t, NewReadFileTool(root), `{"path":"task.txt"}`)
	assert.Equal(t, "original task\n", res.Content)
}

func TestFileTools_SymlinksCannotEscape(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, workspace.TaskFile), []byte("task\n"), 0o644))

	if err := os.Symlink(outside, filepath.Join(root, "out")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, workspace.TaskFile), filepath.Join(root, "alias.txt")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing.txt"), filepath.Join(root, "dangling.txt")))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.txt"), []byte("inside"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "docs"), filepath.Join(root, "docs-link")))

	tests := []struct {
		name string
		tool Tool
		args string
		want string
	}{
		{name: "read through link", tool: NewReadFileTool(root), args: `{"path":"out/secret.txt"}`, want: "through a symlink"},
		{name: "write through link", tool: NewWriteFileTool(root), args: `{"path":"out/new.txt","content":"x"}`, want: "through a symlink"},
		{name: "list through link", tool: NewListFilesTool(root), args: `{"directory":"out"}`, want: "through a symlink"},
		{name: "write reserved alias", tool: NewWriteFileTool(root), args: `{"path":"alias.txt","content":"x"}`, want: "managed by philby"},
		{name: "append dangling", tool: NewWriteFileTool(root), args: `{"path":"dangling.txt","content":"x","append":true}`, want: "dangling symlink"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execTool(t, tt.tool, tt.args)
			assert.True(t, res.IsError, res.Content)
			assert.Contains(t, res.Content, tt.want)
		})
	}

	assert.NoFileExists(t, filepath.Join(outside, "new.txt"))
	assert.NoFileExists(t, filepath.Join(outside, "missing.txt"))

	// links that stay inside the workspace keep working
	res := execTool(t, NewReadFileTool(root), `{"path":"docs-link/a.txt"}`)
	assert.False(t, res.IsError, res.Content)
	assert.Equal(t, "inside", res.Content)
}
