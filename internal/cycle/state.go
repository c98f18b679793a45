package cycle

import (
	"fmt"
	"strings"
)

// State is a step of the decision cycle
type State int

const (
	StateAssembling State = iota
	StateReasoning
	StateExtracting
	StateDispatching
	StatePersisting
	StateCheckingTermination
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateAssembling:
		return "Assembling"
	case StateReasoning:
		return "Reasoning"
	case StateExtracting:
		return "Extracting"
	case StateDispatching:
		return "Dispatching"
	case StatePersisting:
		return "Persisting"
	case StateCheckingTermination:
		return "CheckingTermination"
	case StateHalted:
		return "Halted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// HaltReason says why the controller stopped
type HaltReason int

const (
	HaltCompleted HaltReason = iota
	HaltDeclined
	HaltMaxCycles
	HaltCancelled
	HaltExtraction
	HaltSchema
	HaltTransport
	HaltPersistence
)

func (r HaltReason) String() string {
	switch r {
	case HaltCompleted:
		return "completed"
	case HaltDeclined:
		return "declined"
	case HaltMaxCycles:
		return "max_cycles"
	case HaltCancelled:
		return "cancelled"
	case HaltExtraction:
		return "extraction"
	case HaltSchema:
		return "schema"
	case HaltTransport:
		return "transport"
	case HaltPersistence:
		return "persistence"
	default:
		return fmt.Sprintf("halt(%d)", int(r))
	}
}

// Fatal reports whether the halt means a cycle could not complete
func (r HaltReason) Fatal() bool {
	switch r {
	case HaltExtraction, HaltSchema, HaltTransport, HaltPersistence:
		return true
	default:
		return false
	}
}

// ContinueMode decides what happens between cycles
type ContinueMode string

const (
	// ContinueAuto starts the next cycle immediately
	ContinueAuto ContinueMode = "auto"
	// ContinueConfirm asks the operator before every further cycle
	ContinueConfirm ContinueMode = "confirm"
)

func ParseContinueMode(s string) (ContinueMode, error) {
	switch ContinueMode(strings.ToLower(strings.TrimSpace(s))) {
	case ContinueAuto, "":
		return ContinueAuto, nil
	case ContinueConfirm:
		return ContinueConfirm, nil
	default:
		return "", fmt.Errorf("unknown continue mode %q (want auto or confirm)", s)
	}
}

// Result is how a run ended
type Result struct {
	Reason HaltReason
	// Cycles counts cycles that recorded an outcome
	Cycles int
	// Err is the cause of a fatal halt, or the interruption behind a
	// cancelled one
	Err error
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("halted (%s) after %d cycle(s): %v", r.Reason, r.Cycles, r.Err)
	}
	return fmt.Sprintf("halted (%s) after %d cycle(s)", r.Reason, r.Cycles)
}
