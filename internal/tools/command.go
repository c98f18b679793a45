package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

const defaultCommandTimeout = 60 * time.Second

// denyPatterns match command lines that are never executed
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+(/|~|\*)(\s|$)`),
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`\bdd\s+.*\bof=/dev/`),
	regexp.MustCompile(`\b(shutdown|reboot|halt|poweroff)\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\};:`),
	regexp.MustCompile(`\bchmod\s+(-R\s+)?[0-7]*777\s+/(\s|$)`),
}

var deniedPrograms = map[string]struct{}{
	"sudo": {},
	"su":   {},
	"doas": {},
}

// CommandTool runs a program in the workspace without a shell. The command
// line is split into argv with shell quoting rules, so pipes and redirects
// are passed through as literal arguments.
type CommandTool struct {
	dir     string
	timeout time.Duration
}

type commandArgs struct {
	Command string `json:"command"`
	Cmd     string `json:"cmd"`
}

// NewCommandTool runs commands in dir; timeout <= 0 uses the default
func NewCommandTool(dir string, timeout time.Duration) *CommandTool {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &CommandTool{dir: dir, timeout: timeout}
}

func (t *CommandTool) Name() string { return "run_command" }

func (t *CommandTool) Description() string {
	return "Run a program in the workspace and return its combined output and exit status. No shell: pipes, redirects and globbing are not interpreted."
}

func (t *CommandTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Command line, e.g. \"go test ./...\""}
		},
		"required": ["command"]
	}`)
}

func (t *CommandTool) Execute(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	var args commandArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("%v", err), nil
	}
	line := strings.TrimSpace(args.Command)
	if line == "" {
		line = strings.TrimSpace(args.Cmd)
	}
	if line == "" {
		return errorResult("command is required"), nil
	}

	argv, err := shellwords.Parse(line)
	if err != nil {
		return errorResult("parse command: %v", err), nil
	}
	if len(argv) == 0 {
		return errorResult("command is required"), nil
	}
	if reason := denied(line, argv); reason != "" {
		return errorResult("command denied by safety policy: %s", reason), nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = t.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var out strings.Builder
	out.WriteString(stdout.String())
	if stderr.Len() > 0 {
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString("STDERR:\n")
		out.WriteString(stderr.String())
	}

	if runErr == nil {
		if out.Len() == 0 {
			return ToolResult{Content: "(no output, exit status 0)"}, nil
		}
		return ToolResult{Content: out.String()}, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errorResult("command timed out after %s\n%s", t.timeout, out.String()), nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return errorResult("exit status %d\n%s", exitErr.ExitCode(), out.String()), nil
	}
	return errorResult("run %s: %v", argv[0], runErr), nil
}

func denied(line string, argv []string) string {
	if _, ok := deniedPrograms[filepath.Base(argv[0])]; ok {
		return fmt.Sprintf("program %q is not allowed", argv[0])
	}
	for _, pattern := range denyPatterns {
		if pattern.MatchString(line) {
			return fmt.Sprintf("matches pattern %s", pattern.String())
		}
	}
	return ""
}
