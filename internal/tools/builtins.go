package tools

import (
	"path/filepath"
	"time"
)

// BuiltinOptions configures the default tool set
type BuiltinOptions struct {
	// Root confines file tools and is the working directory for commands
	Root           string
	CommandTimeout time.Duration
	// TodoPath defaults to todo.txt under Root
	TodoPath     string
	SearchAPIKey string
	SearchAPIURL string
}

// NewBuiltinRegistry returns a registry holding the built-in tools.
// web_search is only registered when a search API key is configured.
func NewBuiltinRegistry(opts BuiltinOptions) (*Registry, error) {
	todoPath := opts.TodoPath
	if todoPath == "" {
		todoPath = filepath.Join(opts.Root, "todo.txt")
	}
	todos := NewTodoList(todoPath)

	builtins := []Tool{
		NewReadFileTool(opts.Root),
		NewWriteFileTool(opts.Root),
		NewListFilesTool(opts.Root),
		NewCommandTool(opts.Root, opts.CommandTimeout),
		NewAddTodoTool(todos),
		NewListTodosTool(todos),
	}
	if opts.SearchAPIKey != "" {
		builtins = append(builtins, NewWebSearchTool(opts.SearchAPIKey, opts.SearchAPIURL))
	}

	reg := NewRegistry()
	for _, tool := range builtins {
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
