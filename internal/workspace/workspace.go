// Package workspace owns the files that carry agent state across cycles
// and process restarts.
//
// Layout under the root directory:
//
//	task.txt             current task, set by the operator
//	purpose.txt          optional standing purpose
//	STOP                 termination marker
//	state/thinking.txt   raw model output of the current cycle
//	state/decision.json  canonical decision of the current cycle
//	state/outcome.txt    outcome of the last dispatched decision
//	philby.db            audit log
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/philby/pkg/file"
)

const (
	TaskFile     = "task.txt"
	PurposeFile  = "purpose.txt"
	StopFile     = "STOP"
	StateDir     = "state"
	ThinkingFile = "thinking.txt"
	DecisionFile = "decision.json"
	OutcomeFile  = "outcome.txt"
	DBFile       = "philby.db"
	LockFile     = ".philby.lock"
)

// ErrNoTask is returned when task.txt is missing or blank
var ErrNoTask = errors.New("no task set; run `philby task` first")

// Reserved reports whether rel, a path relative to the workspace root, names
// state that only the controller writes: the task, the purpose, the cycle
// slots under state/, the audit database and the lock. The STOP marker is
// not reserved. Names compare case-insensitively for case-folding filesystems.
func Reserved(rel string) bool {
	rel = strings.ToLower(filepath.ToSlash(filepath.Clean(rel)))
	first, _, _ := strings.Cut(rel, "/")
	switch {
	case first == strings.ToLower(StateDir):
		return true
	case rel == strings.ToLower(TaskFile), rel == strings.ToLower(PurposeFile), rel == strings.ToLower(LockFile):
		return true
	case rel == strings.ToLower(DBFile), strings.HasPrefix(rel, strings.ToLower(DBFile)+"-"):
		return true
	}
	return false
}

type Workspace struct {
	root string
}

// Open prepares root (and its state directory) for use
func Open(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %s: %w", root, err)
	}
	if err := os.MkdirAll(filepath.Join(abs, StateDir), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", abs, err)
	}
	return &Workspace{root: abs}, nil
}

func (w *Workspace) Root() string { return w.root }

func (w *Workspace) DBPath() string { return filepath.Join(w.root, DBFile) }

func (w *Workspace) path(name string) string { return filepath.Join(w.root, name) }

func (w *Workspace) statePath(name string) string {
	return filepath.Join(w.root, StateDir, name)
}

// Task returns the current task or ErrNoTask
func (w *Workspace) Task() (string, error) {
	text, ok, err := w.readText(w.path(TaskFile))
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(text) == "" {
		return "", ErrNoTask
	}
	return strings.TrimSpace(text), nil
}

// StartTask replaces the task and resets cycle state: the three cycle slots
// and the stop marker are removed. Purpose and audit log are kept.
func (w *Workspace) StartTask(task string) error {
	task = strings.TrimSpace(task)
	if task == "" {
		return fmt.Errorf("task is empty")
	}
	if err := w.writeText(w.path(TaskFile), task+"\n"); err != nil {
		return err
	}
	for _, p := range []string{
		w.statePath(ThinkingFile),
		w.statePath(DecisionFile),
		w.statePath(OutcomeFile),
		w.path(StopFile),
	} {
		if err := file.RemoveIfExists(p); err != nil {
			return fmt.Errorf("reset %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// Purpose returns the standing purpose, or "" when none is set
func (w *Workspace) Purpose() (string, error) {
	text, _, err := w.readText(w.path(PurposeFile))
	return strings.TrimSpace(text), err
}

func (w *Workspace) SetPurpose(purpose string) error {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return w.ClearPurpose()
	}
	return w.writeText(w.path(PurposeFile), purpose+"\n")
}

func (w *Workspace) ClearPurpose() error {
	return file.RemoveIfExists(w.path(PurposeFile))
}

// StopRequested reports whether the termination marker is present
func (w *Workspace) StopRequested() bool {
	return file.Exists(w.path(StopFile))
}

// RequestStop drops the termination marker
func (w *Workspace) RequestStop() error {
	return w.writeText(w.path(StopFile), "")
}

func (w *Workspace) ClearStop() error {
	return file.RemoveIfExists(w.path(StopFile))
}

func (w *Workspace) WriteReasoning(text string) error {
	return w.writeText(w.statePath(ThinkingFile), text)
}

func (w *Workspace) Reasoning() (string, bool, error) {
	return w.readText(w.statePath(ThinkingFile))
}

func (w *Workspace) WriteDecision(canonical []byte) error {
	if err := file.WriteAtomic(w.statePath(DecisionFile), canonical, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", DecisionFile, err)
	}
	return nil
}

func (w *Workspace) Decision() ([]byte, bool, error) {
	data, ok, err := file.ReadIfExists(w.statePath(DecisionFile))
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", DecisionFile, err)
	}
	return data, ok, nil
}

func (w *Workspace) WriteOutcome(text string) error {
	return w.writeText(w.statePath(OutcomeFile), text)
}

// Outcome returns the outcome of the last dispatched decision
func (w *Workspace) Outcome() (string, bool, error) {
	return w.readText(w.statePath(OutcomeFile))
}

// ClearCycle removes the cycle-scoped reasoning and decision slots. The
// outcome stays as the record carried into the next cycle.
func (w *Workspace) ClearCycle() error {
	for _, name := range []string{ThinkingFile, DecisionFile} {
		if err := file.RemoveIfExists(w.statePath(name)); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

func (w *Workspace) readText(path string) (string, bool, error) {
	data, ok, err := file.ReadIfExists(path)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(data), ok, nil
}

func (w *Workspace) writeText(path, text string) error {
	if err := file.WriteAtomic(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
