package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TodoList is a line-per-item text file shared by the todo tools
type TodoList struct {
	mu   sync.Mutex
	path string
}

func NewTodoList(path string) *TodoList {
	return &TodoList{path: path}
}

// Add appends one item
func (l *TodoList) Add(item string) error {
	item = strings.TrimSpace(strings.ReplaceAll(item, "\n", " "))
	if item == "" {
		return fmt.Errorf("item is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create todo directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open todo list: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, item); err != nil {
		return fmt.Errorf("write todo list: %w", err)
	}
	return nil
}

// Items returns the non-blank lines of the list
func (l *TodoList) Items() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read todo list: %w", err)
	}
	var items []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items, nil
}

type AddTodoTool struct{ list *TodoList }

func NewAddTodoTool(list *TodoList) *AddTodoTool { return &AddTodoTool{list: list} }

func (t *AddTodoTool) Name() string { return "add_todo" }

func (t *AddTodoTool) Description() string {
	return "Add an item to the persistent todo list."
}

func (t *AddTodoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"item": {"type": "string", "description": "Todo item text"}
		},
		"required": ["item"]
	}`)
}

func (t *AddTodoTool) Execute(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args struct {
		Item string `json:"item"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("%v", err), nil
	}
	if err := t.list.Add(args.Item); err != nil {
		return errorResult("add todo: %v", err), nil
	}
	return ToolResult{Content: fmt.Sprintf("Added %q to todo list", strings.TrimSpace(args.Item))}, nil
}

type ListTodosTool struct{ list *TodoList }

func NewListTodosTool(list *TodoList) *ListTodosTool { return &ListTodosTool{list: list} }

func (t *ListTodosTool) Name() string { return "list_todos" }

func (t *ListTodosTool) Description() string {
	return "Show the numbered todo list."
}

func (t *ListTodosTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ListTodosTool) Execute(_ context.Context, _ json.RawMessage) (ToolResult, error) {
	items, err := t.list.Items()
	if err != nil {
		return errorResult("%v", err), nil
	}
	if len(items) == 0 {
		return ToolResult{Content: "Todo list is empty"}, nil
	}
	var b strings.Builder
	b.WriteString("Todo List:")
	for i, item := range items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, item)
	}
	return ToolResult{Content: b.String()}, nil
}
