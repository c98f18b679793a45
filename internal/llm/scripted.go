package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrScriptExhausted is returned once every scripted reply has been used
var ErrScriptExhausted = errors.New("scripted model has no replies left")

// ScriptSeparator splits replies in a script file
const ScriptSeparator = "\n---\n"

// ScriptedModel replays canned replies in order. It backs dry runs and tests.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []string
	next    int
	prompts []string
}

func NewScriptedModel(replies ...string) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// LoadScript reads replies from a file, separated by lines holding only "---"
func LoadScript(path string) (*ScriptedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var replies []string
	for _, part := range strings.Split("\n"+text+"\n", ScriptSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			replies = append(replies, part)
		}
	}
	if len(replies) == 0 {
		return nil, fmt.Errorf("script %s has no replies", path)
	}
	return NewScriptedModel(replies...), nil
}

// Complete returns the next reply. Cancellation is honoured so a scripted
// run stops like a real one.
func (m *ScriptedModel) Complete(ctx context.Context, prompt string, _ []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if m.next >= len(m.replies) {
		return "", ErrScriptExhausted
	}
	reply := m.replies[m.next]
	m.next++
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyCompletion
	}
	return reply, nil
}

// Prompts returns every prompt received so far
func (m *ScriptedModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Remaining reports how many replies are left
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies) - m.next
}
