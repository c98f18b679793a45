// Package snapshot commits the workspace to git after each cycle so every
// step of a run can be inspected or rolled back.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Snapshotter records the workspace state under message
type Snapshotter interface {
	Snapshot(ctx context.Context, message string) error
}

// Noop is used when snapshots are disabled
type Noop struct{}

func (Noop) Snapshot(context.Context, string) error { return nil }

// ErrGitUnavailable is returned when the git binary cannot be found
var ErrGitUnavailable = errors.New("git executable not found")

// ignored keeps runtime files out of the history
var ignored = []string{"philby.db", "philby.db-*", ".philby.lock", "*.tmp"}

// Git snapshots a directory with the git CLI
type Git struct {
	dir    string
	binary string
}

// NewGit prepares dir as a git repository, initialising it when needed
func NewGit(ctx context.Context, dir string) (*Git, error) {
	binary, err := exec.LookPath("git")
	if err != nil {
		return nil, ErrGitUnavailable
	}
	g := &Git{dir: dir, binary: binary}

	if _, err := os.Stat(filepath.Join(dir, ".git")); errors.Is(err, os.ErrNotExist) {
		if _, err := g.run(ctx, "init", "--quiet"); err != nil {
			return nil, err
		}
	}
	if err := g.ensureIgnore(); err != nil {
		return nil, err
	}
	return g, nil
}

// Snapshot stages everything and commits. A clean tree is not an error.
func (g *Git) Snapshot(ctx context.Context, message string) error {
	if _, err := g.run(ctx, "add", "--all"); err != nil {
		return err
	}
	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return err
	}
	if strings.TrimSpace(status) == "" {
		return nil
	}
	_, err = g.run(ctx,
		"-c", "user.name=philby",
		"-c", "user.email=philby@localhost",
		"commit", "--quiet", "--no-verify", "-m", message,
	)
	return err
}

// Head returns the current commit hash
func (g *Git) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	return strings.TrimSpace(out), err
}

func (g *Git) ensureIgnore() error {
	path := filepath.Join(g.dir, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read .gitignore: %w", err)
	}
	have := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		have[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, pattern := range ignored {
		if !have[pattern] {
			missing = append(missing, pattern)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open .gitignore: %w", err)
	}
	defer f.Close()
	prefix := ""
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + strings.Join(missing, "\n") + "\n"); err != nil {
		return fmt.Errorf("write .gitignore: %w", err)
	}
	return nil
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = g.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Message builds the commit message for a cycle
func Message(sequence int64, summary string) string {
	return fmt.Sprintf("cycle %d: %s", sequence, summary)
}
