package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/MimeLyc/philby/internal/llm"
	"github.com/MimeLyc/philby/internal/persistence"
	"github.com/MimeLyc/philby/internal/tools"
)

// DefaultHistoryTurns is how many past cycles are replayed into the context
const DefaultHistoryTurns = 5

// historyOutcomeLimit bounds each replayed outcome
const historyOutcomeLimit = 2000

// Input is everything the workspace contributes to one cycle's context
type Input struct {
	Purpose     string
	Task        string
	LastOutcome string
	History     []persistence.CycleEntry
}

// Builder assembles the context for a cycle
type Builder struct {
	// SystemPrompt replaces the built-in instructions when set. The tool
	// list is still appended.
	SystemPrompt string
	Tools        *tools.Registry
	HistoryTurns int
}

// NewBuilder creates a builder with the default instructions
func NewBuilder(registry *tools.Registry, historyTurns int) *Builder {
	return &Builder{Tools: registry, HistoryTurns: historyTurns}
}

// LoadSystemPrompt reads an instructions override from path
func LoadSystemPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("system prompt file %s is empty", path)
	}
	return text, nil
}

// Build returns the user prompt for this cycle and the conversation history
// preceding it. history[0] is always the system message.
func (b *Builder) Build(in Input) (string, []llm.Message) {
	history := []llm.Message{{Role: llm.RoleSystem, Content: b.system()}}

	replay := in.History
	if b.HistoryTurns <= 0 {
		replay = nil
	} else if len(replay) > b.HistoryTurns {
		replay = replay[len(replay)-b.HistoryTurns:]
	}
	for _, entry := range replay {
		history = append(history,
			llm.Message{Role: llm.RoleAssistant, Content: assistantTurn(entry)},
			llm.Message{Role: llm.RoleUser, Content: outcomeTurn(entry)},
		)
	}

	return b.user(in, replay), history
}

func (b *Builder) system() string {
	var prompt strings.Builder

	if b.SystemPrompt != "" {
		prompt.WriteString(b.SystemPrompt)
		prompt.WriteString("\n")
	} else {
		prompt.WriteString(defaultInstructions)
	}

	prompt.WriteString("\n=== TOOLS ===\n")
	if b.Tools == nil || b.Tools.Count() == 0 {
		prompt.WriteString("(no tools available; you can only ask the operator)\n")
	} else {
		prompt.WriteString(b.Tools.Describe())
	}
	return prompt.String()
}

func (b *Builder) user(in Input, replay []persistence.CycleEntry) string {
	var prompt strings.Builder

	if purpose := strings.TrimSpace(in.Purpose); purpose != "" {
		prompt.WriteString("=== PURPOSE ===\n")
		prompt.WriteString(purpose)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("=== TASK ===\n")
	prompt.WriteString(strings.TrimSpace(in.Task))
	prompt.WriteString("\n")

	if len(replay) > 0 {
		prompt.WriteString("\n=== RECENT STEPS ===\n")
		for _, entry := range replay {
			prompt.WriteString(StepSummary(entry))
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("\n=== LAST OUTCOME ===\n")
	if outcome := strings.TrimSpace(in.LastOutcome); outcome != "" {
		prompt.WriteString(tools.Truncate(outcome, historyOutcomeLimit))
	} else {
		prompt.WriteString("(none, this is the first step)")
	}
	prompt.WriteString("\n\nDecide the single next action. End your answer with DECISION_JSON: followed by the decision object.\n")
	return prompt.String()
}

// StepSummary condenses a cycle to its first two lines of reasoning and the
// first line of its action.
func StepSummary(entry persistence.CycleEntry) string {
	reasoning := firstLines(entry.Reasoning, 2)
	if reasoning == "" {
		reasoning = "(no reasoning recorded)"
	}
	action := firstLines(entry.DecisionJSON, 1)
	if entry.ToolName != "" {
		action = "tool " + entry.ToolName
	} else if entry.DecisionKind == "AskHandler" {
		action = "asked the operator"
	}
	return fmt.Sprintf("Step %d: %s\n  Action: %s", entry.Sequence, reasoning, action)
}

func assistantTurn(entry persistence.CycleEntry) string {
	return fmt.Sprintf("%s\n\nDECISION_JSON: %s", firstLines(entry.Reasoning, 2), entry.DecisionJSON)
}

func outcomeTurn(entry persistence.CycleEntry) string {
	label := "Outcome"
	if entry.IsError {
		label = "Outcome (error)"
	}
	return fmt.Sprintf("%s of step %d:\n%s", label, entry.Sequence, tools.Truncate(entry.Outcome, historyOutcomeLimit))
}

func firstLines(s string, n int) string {
	var kept []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == n {
			break
		}
	}
	return strings.Join(kept, " / ")
}
