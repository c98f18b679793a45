// Package dispatch executes a validated decision and turns whatever happens
// into an outcome for the next cycle. It never returns an error: failures
// are outcomes the model reads and reacts to.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/MimeLyc/philby/internal/decision"
	"github.com/MimeLyc/philby/internal/human"
	"github.com/MimeLyc/philby/internal/tools"
	"github.com/MimeLyc/philby/pkg/log"
)

// DefaultMaxOutcomeBytes bounds tool output recorded as an outcome
const DefaultMaxOutcomeBytes = 16 * 1024

// Outcome is the textual result of one dispatched decision
type Outcome struct {
	Text    string
	IsError bool
	// Tool is the executed tool's name, empty for operator questions
	Tool string
}

// Dispatcher routes tool calls to the registry and questions to the operator
type Dispatcher struct {
	Registry *tools.Registry
	Asker    human.Asker
	// MaxOutcomeBytes truncates tool output; <= 0 disables truncation
	MaxOutcomeBytes int
}

func New(registry *tools.Registry, asker human.Asker) *Dispatcher {
	return &Dispatcher{Registry: registry, Asker: asker, MaxOutcomeBytes: DefaultMaxOutcomeBytes}
}

// Dispatch executes d and always produces an outcome
func (d *Dispatcher) Dispatch(ctx context.Context, dec decision.Decision) Outcome {
	switch dec.Kind() {
	case decision.KindAskHandler:
		return d.ask(ctx, dec.AskHandler.Prompt)
	case decision.KindToolCall:
		return d.call(ctx, dec.ToolCall)
	default:
		return Outcome{Text: "invalid decision: neither tool_call nor ask_handler is set", IsError: true}
	}
}

func (d *Dispatcher) ask(ctx context.Context, prompt string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Operator channel panicked: %v\n%s", r, debug.Stack())
			out = Outcome{Text: fmt.Sprintf("operator channel failed: %v", r), IsError: true}
		}
	}()

	if d.Asker == nil {
		return Outcome{Text: "no operator channel is available to answer questions", IsError: true}
	}
	answer, err := d.Asker.Ask(ctx, prompt)
	if err != nil {
		log.Warn("Operator did not answer: %v", err)
		return Outcome{Text: fmt.Sprintf("operator did not answer: %v", err), IsError: true}
	}
	return Outcome{Text: answer}
}

func (d *Dispatcher) call(ctx context.Context, call *decision.ToolCall) (out Outcome) {
	out.Tool = call.Name

	var tool tools.Tool
	var ok bool
	if d.Registry != nil {
		tool, ok = d.Registry.Get(call.Name)
	}
	if !ok {
		out.Text = fmt.Sprintf("unknown tool %q; available tools: %s", call.Name, d.available())
		out.IsError = true
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Tool %s panicked: %v\n%s", call.Name, r, debug.Stack())
			out.Text = d.clean(fmt.Sprintf("tool %q failed: panic: %v", call.Name, r))
			out.IsError = true
		}
	}()

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		out.Text = fmt.Sprintf("tool %q failed: encode arguments: %v", call.Name, err)
		out.IsError = true
		return out
	}

	log.Debug("Executing tool %s %s", call.Name, raw)
	result, err := tool.Execute(ctx, raw)
	if err != nil {
		out.Text = d.clean(fmt.Sprintf("tool %q failed: %v", call.Name, err))
		out.IsError = true
		return out
	}

	out.Text = d.clean(result.Content)
	out.IsError = result.IsError
	return out
}

// clean scrubs credentials from tool text and bounds its size
func (d *Dispatcher) clean(text string) string {
	return tools.Truncate(tools.ScrubCredentials(text), d.MaxOutcomeBytes)
}

func (d *Dispatcher) available() string {
	if d.Registry == nil || d.Registry.Count() == 0 {
		return "(none)"
	}
	return strings.Join(d.Registry.List(), ", ")
}
