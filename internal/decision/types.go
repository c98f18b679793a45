package decision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies which branch a Decision carries.
type Kind int

const (
	KindNone Kind = iota
	KindToolCall
	KindAskHandler
)

func (k Kind) String() string {
	switch k {
	case KindToolCall:
		return "ToolCall"
	case KindAskHandler:
		return "AskHandler"
	default:
		return "None"
	}
}

// ToolCall asks the dispatcher to run a registered tool
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// AskHandler asks the dispatcher to put a question to the human operator
type AskHandler struct {
	Prompt string `json:"prompt"`
}

// Decision is the single action the model chose for one cycle.
// A validated Decision has exactly one of ToolCall and AskHandler set.
type Decision struct {
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	AskHandler *AskHandler `json:"ask_handler,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

func (d Decision) Kind() Kind {
	switch {
	case d.ToolCall != nil && d.AskHandler == nil:
		return KindToolCall
	case d.AskHandler != nil && d.ToolCall == nil:
		return KindAskHandler
	default:
		return KindNone
	}
}

// JSON returns the canonical indented encoding written to the decision slot.
func (d Decision) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Summary is a one-line description used in logs, commit messages and history.
func (d Decision) Summary() string {
	switch d.Kind() {
	case KindToolCall:
		args, err := json.Marshal(d.ToolCall.Args)
		if err != nil {
			return fmt.Sprintf("tool %s", d.ToolCall.Name)
		}
		return fmt.Sprintf("tool %s %s", d.ToolCall.Name, truncate(string(args), 120))
	case KindAskHandler:
		return fmt.Sprintf("ask %q", truncate(strings.TrimSpace(d.AskHandler.Prompt), 120))
	default:
		return "invalid decision"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
