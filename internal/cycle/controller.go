// Package cycle runs the decision loop: assemble context, ask the model,
// extract one decision, dispatch it, record the outcome and decide whether
// to go again.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MimeLyc/philby/internal/decision"
	"github.com/MimeLyc/philby/internal/dispatch"
	"github.com/MimeLyc/philby/internal/human"
	"github.com/MimeLyc/philby/internal/llm"
	"github.com/MimeLyc/philby/internal/persistence"
	"github.com/MimeLyc/philby/internal/prompt"
	"github.com/MimeLyc/philby/internal/snapshot"
	"github.com/MimeLyc/philby/internal/workspace"
	"github.com/MimeLyc/philby/pkg/log"
)

// Model produces the raw reasoning text for one cycle
type Model interface {
	Complete(ctx context.Context, prompt string, history []llm.Message) (string, error)
}

// Store is the audit log the controller appends to and reads history from
type Store interface {
	AppendCycle(ctx context.Context, entry *persistence.CycleEntry) error
	RecentCycles(ctx context.Context, n int) ([]persistence.CycleEntry, error)
	LastSequence(ctx context.Context) (int64, error)
}

// Controller drives cycles until a halt condition is reached.
// Workspace, Model, Prompt and Dispatcher are required; the rest is optional.
type Controller struct {
	Workspace  *workspace.Workspace
	Model      Model
	Prompt     *prompt.Builder
	Dispatcher *dispatch.Dispatcher

	Store       Store
	Snapshotter snapshot.Snapshotter
	Confirmer   human.Confirmer
	Extractor   decision.Extractor

	Mode ContinueMode
	// MaxCycles stops the run after that many completed cycles, 0 is unlimited
	MaxCycles int
	RunID     string

	// OnTransition is called on every state change
	OnTransition func(from, to State)

	state State
}

// State returns the state the controller is currently in
func (c *Controller) State() State { return c.state }

// cycleRun carries the per-run counters
type cycleRun struct {
	task     string
	cycles   int
	sequence int64
}

// Run executes cycles until a halt. The returned error reports a run that
// could not start; how a started run ended is described by Result.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if err := c.check(); err != nil {
		return Result{}, err
	}
	task, err := c.Workspace.Task()
	if err != nil {
		return Result{}, err
	}

	run := &cycleRun{task: task}
	if c.Store != nil {
		if run.sequence, err = c.Store.LastSequence(ctx); err != nil {
			log.Warn("Could not read audit log sequence: %v", err)
		}
	}
	if c.Workspace.StopRequested() {
		log.Info("Removing stale stop marker from a previous run")
		if err := c.Workspace.ClearStop(); err != nil {
			return Result{}, fmt.Errorf("clear stop marker: %w", err)
		}
	}

	c.state = StateAssembling
	log.Info("Run started (mode=%s, max_cycles=%d, last_sequence=%d)", c.mode(), c.MaxCycles, run.sequence)

	for {
		if res, done := c.cycle(ctx, run); done {
			c.transition(StateHalted)
			if res.Reason.Fatal() {
				log.Error("Run halted: %s", res)
			} else {
				log.Info("Run halted: %s", res)
			}
			return res, nil
		}
	}
}

// cycle runs one full pass and reports whether the run is over
func (c *Controller) cycle(ctx context.Context, run *cycleRun) (Result, bool) {
	halt := func(reason HaltReason, err error) (Result, bool) {
		return Result{Reason: reason, Cycles: run.cycles, Err: err}, true
	}
	if err := ctx.Err(); err != nil {
		return halt(HaltCancelled, err)
	}

	c.transition(StateAssembling)
	userPrompt, history, err := c.assemble(ctx, run.task)
	if err != nil {
		return halt(HaltPersistence, err)
	}

	c.transition(StateReasoning)
	text, err := c.Model.Complete(ctx, userPrompt, history)
	if err != nil {
		if ctx.Err() != nil {
			return halt(HaltCancelled, ctx.Err())
		}
		return halt(HaltTransport, fmt.Errorf("model call: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		return halt(HaltTransport, fmt.Errorf("model call: %w", llm.ErrEmptyCompletion))
	}
	if err := c.Workspace.WriteReasoning(text); err != nil {
		return halt(HaltPersistence, fmt.Errorf("write reasoning: %w", err))
	}

	c.transition(StateExtracting)
	dec, err := c.Extractor.Extract(text)
	if err != nil {
		if decision.IsSchemaError(err) {
			return halt(HaltSchema, err)
		}
		return halt(HaltExtraction, err)
	}
	canonical, err := dec.JSON()
	if err != nil {
		return halt(HaltSchema, fmt.Errorf("encode decision: %w", err))
	}
	if err := c.Workspace.WriteDecision(canonical); err != nil {
		return halt(HaltPersistence, fmt.Errorf("write decision: %w", err))
	}
	log.Info("Cycle %d decision: %s", run.sequence+1, dec.Summary())

	c.transition(StateDispatching)
	outcome := c.Dispatcher.Dispatch(ctx, dec)
	// a dispatch cut short by cancellation leaves no outcome for this cycle
	if err := ctx.Err(); err != nil {
		return halt(HaltCancelled, err)
	}
	if outcome.IsError {
		log.Warn("Cycle %d outcome is an error: %s", run.sequence+1, firstLine(outcome.Text))
	}

	c.transition(StatePersisting)
	if err := c.Workspace.WriteOutcome(outcome.Text); err != nil {
		return halt(HaltPersistence, fmt.Errorf("write outcome: %w", err))
	}
	run.cycles++
	run.sequence++
	c.record(ctx, run, text, canonical, dec, outcome)

	c.transition(StateCheckingTermination)
	if c.Workspace.StopRequested() {
		return halt(HaltCompleted, nil)
	}
	if err := ctx.Err(); err != nil {
		return halt(HaltCancelled, err)
	}
	if err := c.Workspace.ClearCycle(); err != nil {
		log.Warn("Could not clear cycle slots: %v", err)
	}
	if c.MaxCycles > 0 && run.cycles >= c.MaxCycles {
		return halt(HaltMaxCycles, nil)
	}
	if c.mode() == ContinueConfirm {
		ok, err := c.Confirmer.Confirm(ctx, fmt.Sprintf("Cycle %d: %s", run.sequence, dec.Summary()))
		switch {
		case err != nil && ctx.Err() != nil:
			return halt(HaltCancelled, ctx.Err())
		case err != nil:
			log.Warn("No authorization to continue: %v", err)
			return halt(HaltDeclined, nil)
		case !ok:
			return halt(HaltDeclined, nil)
		}
	}
	return Result{}, false
}

func (c *Controller) assemble(ctx context.Context, task string) (string, []llm.Message, error) {
	purpose, err := c.Workspace.Purpose()
	if err != nil {
		return "", nil, fmt.Errorf("read purpose: %w", err)
	}
	lastOutcome, _, err := c.Workspace.Outcome()
	if err != nil {
		return "", nil, fmt.Errorf("read last outcome: %w", err)
	}

	var past []persistence.CycleEntry
	if c.Store != nil && c.Prompt.HistoryTurns > 0 {
		past, err = c.Store.RecentCycles(ctx, c.Prompt.HistoryTurns)
		if err != nil {
			log.Warn("Could not load history, continuing without it: %v", err)
			past = nil
		}
	}

	userPrompt, history := c.Prompt.Build(prompt.Input{
		Purpose:     purpose,
		Task:        task,
		LastOutcome: lastOutcome,
		History:     past,
	})
	return userPrompt, history, nil
}

// record appends the audit entry and takes a snapshot. Neither failure
// stops the run since the outcome slot already holds what the next cycle needs.
func (c *Controller) record(ctx context.Context, run *cycleRun, reasoning string, canonical []byte, dec decision.Decision, outcome dispatch.Outcome) {
	ctx = context.WithoutCancel(ctx)

	if c.Store != nil {
		entry := &persistence.CycleEntry{
			RunID:        c.RunID,
			Sequence:     run.sequence,
			Task:         run.task,
			Reasoning:    reasoning,
			DecisionJSON: string(canonical),
			DecisionKind: dec.Kind().String(),
			ToolName:     outcome.Tool,
			Outcome:      outcome.Text,
			IsError:      outcome.IsError,
		}
		if err := c.Store.AppendCycle(ctx, entry); err != nil {
			log.Warn("Could not append cycle %d to audit log: %v", run.sequence, err)
		}
	}

	if c.Snapshotter != nil {
		if err := c.Snapshotter.Snapshot(ctx, snapshot.Message(run.sequence, dec.Summary())); err != nil {
			log.Warn("Could not snapshot cycle %d: %v", run.sequence, err)
		}
	}
}

func (c *Controller) check() error {
	var missing []string
	if c.Workspace == nil {
		missing = append(missing, "workspace")
	}
	if c.Model == nil {
		missing = append(missing, "model")
	}
	if c.Prompt == nil {
		missing = append(missing, "prompt builder")
	}
	if c.Dispatcher == nil {
		missing = append(missing, "dispatcher")
	}
	if c.mode() == ContinueConfirm && c.Confirmer == nil {
		missing = append(missing, "confirmer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("controller is missing: %s", strings.Join(missing, ", "))
	}
	if c.MaxCycles < 0 {
		return errors.New("max cycles must not be negative")
	}
	return nil
}

func (c *Controller) mode() ContinueMode {
	if c.Mode == "" {
		return ContinueAuto
	}
	return c.Mode
}

func (c *Controller) transition(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	log.Debug("Cycle state %s -> %s", from, to)
	if c.OnTransition != nil {
		c.OnTransition(from, to)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
