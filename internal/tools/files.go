package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MimeLyc/philby/internal/workspace"
	"github.com/MimeLyc/philby/pkg/file"
)

// fileArgs covers the argument spellings models use for file tools
type fileArgs struct {
	Path      string `json:"path"`
	FilePath  string `json:"file_path"`
	Directory string `json:"directory"`
	Content   string `json:"content"`
	Append    bool   `json:"append"`
}

func (a fileArgs) target() string {
	for _, p := range []string{a.Path, a.FilePath, a.Directory} {
		if strings.TrimSpace(p) != "" {
			return strings.TrimSpace(p)
		}
	}
	return ""
}

// sandbox resolves model-supplied paths against a root directory and
// refuses paths that escape it, lexically or through a symlink.
type sandbox struct {
	root string
}

func (s sandbox) resolve(p string) (string, error) {
	path, _, err := s.locate(p)
	return path, err
}

// writable resolves p and refuses the state files the controller owns
func (s sandbox) writable(p string) (string, error) {
	path, rel, err := s.locate(p)
	if err != nil {
		return "", err
	}
	if workspace.Reserved(rel) {
		return "", fmt.Errorf("%s is managed by philby and cannot be written by tools; only %s may be created", filepath.ToSlash(rel), workspace.StopFile)
	}
	return path, nil
}

// locate returns the symlink-free absolute path of p and its path relative
// to the root
func (s sandbox) locate(p string) (string, string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", "", fmt.Errorf("resolve root: %w", err)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if _, err := within(root, p); err != nil {
		return "", "", err
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", "", fmt.Errorf("resolve root: %w", err)
	}
	real, err := evalExisting(p)
	if err != nil {
		return "", "", err
	}
	rel, err := within(realRoot, real)
	if err != nil {
		return "", "", fmt.Errorf("path %q leads outside the workspace through a symlink", p)
	}
	return real, rel, nil
}

func within(root, p string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", p)
	}
	return rel, nil
}

// evalExisting resolves symlinks in the longest existing prefix of p and
// keeps the missing tail as is, so paths about to be created resolve too.
func evalExisting(p string) (string, error) {
	cur, tail := p, ""
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(real, tail), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("resolve %s: %w", p, err)
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("path %q is a dangling symlink", cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = filepath.Join(filepath.Base(cur), tail)
		cur = parent
	}
}

// ReadFileTool returns the content of a file under the workspace root
type ReadFileTool struct{ sandbox }

func NewReadFileTool(root string) *ReadFileTool {
	return &ReadFileTool{sandbox{root: root}}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read a text file from the workspace and return its content."
}

func (t *ReadFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path, relative to the workspace"}
		},
		"required": ["path"]
	}`)
}

func (t *ReadFileTool) Execute(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args fileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("%v", err), nil
	}
	if args.target() == "" {
		return errorResult("path is required"), nil
	}
	path, err := t.resolve(args.target())
	if err != nil {
		return errorResult("%v", err), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errorResult("read %s: %v", args.target(), err), nil
	}
	if len(data) == 0 {
		return ToolResult{Content: "(empty file)"}, nil
	}
	return ToolResult{Content: string(data)}, nil
}

// WriteFileTool creates or replaces a file under the workspace root
type WriteFileTool struct{ sandbox }

func NewWriteFileTool(root string) *WriteFileTool {
	return &WriteFileTool{sandbox{root: root}}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Write text to a file in the workspace, creating parent directories. Set append to add to the end instead of replacing."
}

func (t *WriteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path, relative to the workspace"},
			"content": {"type": "string", "description": "Text to write"},
			"append": {"type": "boolean", "description": "Append instead of overwrite"}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFileTool) Execute(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args fileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("%v", err), nil
	}
	if args.target() == "" {
		return errorResult("path is required"), nil
	}
	path, err := t.writable(args.target())
	if err != nil {
		return errorResult("%v", err), nil
	}

	if args.Append {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errorResult("create directory: %v", err), nil
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errorResult("open %s: %v", args.target(), err), nil
		}
		defer f.Close()
		if _, err := f.WriteString(args.Content); err != nil {
			return errorResult("append %s: %v", args.target(), err), nil
		}
		return ToolResult{Content: fmt.Sprintf("appended %d bytes to %s", len(args.Content), args.target())}, nil
	}

	if err := file.WriteAtomic(path, []byte(args.Content), 0o644); err != nil {
		return errorResult("write %s: %v", args.target(), err), nil
	}
	return ToolResult{Content: fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.target())}, nil
}

// ListFilesTool lists the entries of a directory under the workspace root
type ListFilesTool struct{ sandbox }

func NewListFilesTool(root string) *ListFilesTool {
	return &ListFilesTool{sandbox{root: root}}
}

func (t *ListFilesTool) Name() string { return "list_files" }

func (t *ListFilesTool) Description() string {
	return "List files and directories in a workspace directory. Directories end with a slash."
}

func (t *ListFilesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"directory": {"type": "string", "description": "Directory relative to the workspace, defaults to the workspace root"}
		}
	}`)
}

func (t *ListFilesTool) Execute(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args fileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("%v", err), nil
	}
	target := args.target()
	if target == "" {
		target = "."
	}
	dir, err := t.resolve(target)
	if err != nil {
		return errorResult("%v", err), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errorResult("list %s: %v", target, err), nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ToolResult{Content: fmt.Sprintf("%s is empty", target)}, nil
	}
	return ToolResult{Content: strings.Join(names, "\n")}, nil
}
