package persistence

import (
	"time"
)

// CycleEntry is one row of the audit log: everything a completed cycle produced
type CycleEntry struct {
	ID           string `json:"id"`
	RunID        string `json:"run_id"`
	Sequence     int64  `json:"sequence"`
	Task         string `json:"task"`
	Reasoning    string `json:"reasoning"`
	DecisionJSON string `json:"decision_json"`
	// DecisionKind is "ToolCall" or "AskHandler"
	DecisionKind string    `json:"decision_kind"`
	ToolName     string    `json:"tool_name,omitempty"`
	Outcome      string    `json:"outcome"`
	IsError      bool      `json:"is_error"`
	CreatedAt    time.Time `json:"created_at"`
}

type Run struct {
	ID           string     `json:"id"`
	Task         string     `json:"task"`
	ContinueMode string     `json:"continue_mode"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	HaltReason   string     `json:"halt_reason,omitempty"`
	Cycles       int        `json:"cycles"`
	Error        string     `json:"error,omitempty"`
}
