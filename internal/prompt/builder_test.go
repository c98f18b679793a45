package prompt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MimeLyc/philby/internal/llm"
	"github.com/MimeLyc/philby/internal/persistence"
	"github.com/MimeLyc/philby/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echo the input back.\nSecond line is hidden." }
func (echoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {"text": {"type": "string"}}}`)
}
func (echoTool) Execute(context.Context, json.RawMessage) (tools.ToolResult, error) {
	return tools.ToolResult{Content: "echo"}, nil
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(echoTool{}))
	return reg
}

func entry(seq int64, reasoning, tool, outcome string) persistence.CycleEntry {
	kind := "ToolCall"
	decisionJSON := `{"tool_call":{"name":"` + tool + `","args":{}}}`
	if tool == "" {
		kind = "AskHandler"
		decisionJSON = `{"ask_handler":{"prompt":"which?"}}`
	}
	return persistence.CycleEntry{
		Sequence:     seq,
		Reasoning:    reasoning,
		DecisionJSON: decisionJSON,
		DecisionKind: kind,
		ToolName:     tool,
		Outcome:      outcome,
	}
}

func TestBuild_FirstCycle(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testRegistry(t), DefaultHistoryTurns)
	user, history := b.Build(Input{Task: "  Fix the failing test  "})

	require.Len(t, history, 1)
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Contains(t, history[0].Content, "DECISION_JSON:")
	assert.Contains(t, history[0].Content, `"tool_call"`)
	assert.Contains(t, history[0].Content, `"ask_handler"`)
	assert.Contains(t, history[0].Content, "- echo: Echo the input back.")
	assert.NotContains(t, history[0].Content, "Second line is hidden")
	assert.Contains(t, history[0].Content, `args schema: {"type":"object"`)

	assert.Contains(t, user, "=== TASK ===\nFix the failing test\n")
	assert.NotContains(t, user, "PURPOSE")
	assert.NotContains(t, user, "RECENT STEPS")
	assert.Contains(t, user, "(none, this is the first step)")
}

func TestBuild_PurposeAndOutcome(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testRegistry(t), DefaultHistoryTurns)
	user, _ := b.Build(Input{
		Purpose:     "Keep the build green",
		Task:        "Fix the failing test",
		LastOutcome: "main\n",
	})

	purpose := strings.Index(user, "=== PURPOSE ===\nKeep the build green")
	task := strings.Index(user, "=== TASK ===")
	outcome := strings.Index(user, "=== LAST OUTCOME ===\nmain")
	require.GreaterOrEqual(t, purpose, 0)
	assert.Less(t, purpose, task)
	assert.Less(t, task, outcome)
}

func TestBuild_HistoryIsBoundedAndOrdered(t *testing.T) {
	t.Parallel()

	var past []persistence.CycleEntry
	for i := int64(1); i <= 4; i++ {
		past = append(past, entry(i, "thinking about step\nsecond line\nthird line", "echo", "ok"))
	}
	past[3].IsError = true

	b := NewBuilder(testRegistry(t), 2)
	user, history := b.Build(Input{Task: "t", History: past})

	// system + two assistant/user pairs
	require.Len(t, history, 5)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, llm.RoleUser, history[2].Role)
	assert.Contains(t, history[2].Content, "Outcome of step 3:")
	assert.Contains(t, history[4].Content, "Outcome (error) of step 4:")
	assert.Contains(t, history[3].Content, `DECISION_JSON: {"tool_call":{"name":"echo","args":{}}}`)

	assert.NotContains(t, user, "Step 2:")
	assert.Contains(t, user, "Step 3: thinking about step / second line\n  Action: tool echo")
	assert.NotContains(t, user, "third line")
}

func TestBuild_HistoryDisabled(t *testing.T) {
	t.Parallel()

	b := NewBuilder(testRegistry(t), 0)
	user, history := b.Build(Input{Task: "t", History: []persistence.CycleEntry{entry(1, "r", "echo", "ok")}})
	assert.Len(t, history, 1)
	assert.NotContains(t, user, "RECENT STEPS")
}

func TestBuild_SystemPromptOverride(t *testing.T) {
	t.Parallel()

	b := &Builder{SystemPrompt: "Custom rules.", Tools: testRegistry(t)}
	_, history := b.Build(Input{Task: "t"})
	assert.True(t, strings.HasPrefix(history[0].Content, "Custom rules.\n"))
	assert.Contains(t, history[0].Content, "=== TOOLS ===\n- echo")
	assert.NotContains(t, history[0].Content, "HOW TO ANSWER")
}

func TestBuild_NoTools(t *testing.T) {
	t.Parallel()

	b := NewBuilder(nil, 1)
	_, history := b.Build(Input{Task: "t"})
	assert.Contains(t, history[0].Content, "no tools available")
}

func TestStepSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"Step 2: (no reasoning recorded)\n  Action: asked the operator",
		StepSummary(entry(2, "   ", "", "yes")),
	)
	assert.Equal(t,
		"Step 9: a / b\n  Action: tool read_file",
		StepSummary(entry(9, "\na\n\nb\nc", "read_file", "x")),
	)
}

func TestLoadSystemPrompt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "system.txt")
	require.NoError(t, os.WriteFile(path, []byte("\nBe careful.\n"), 0o644))

	text, err := LoadSystemPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "Be careful.", text)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte(" \n"), 0o644))
	_, err = LoadSystemPrompt(empty)
	assert.Error(t, err)

	_, err = LoadSystemPrompt(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
