package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool defines the interface for actions the model can pick in a tool_call decision
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns a description of what the tool does
	Description() string

	// Parameters returns the JSON Schema for the tool's parameters
	Parameters() json.RawMessage

	// Execute runs the tool with the given arguments and returns the result.
	// A returned error means the tool could not run at all; failures the
	// model should read and react to are reported as ToolResult.IsError.
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

// errorResult builds a failed ToolResult with a formatted message
func errorResult(format string, args ...any) ToolResult {
	return ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

// decodeArgs unmarshals raw tool arguments into dst, treating empty input as {}
func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
