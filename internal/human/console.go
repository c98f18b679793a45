package human

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console reads answers line by line from a reader. A single goroutine
// owns the reader for the Console's lifetime; a read abandoned on
// cancellation hands its line to the next Ask or Confirm.
type Console struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer

	once  sync.Once
	lines chan lineResult
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Ask prints prompt and returns the next line without its line ending.
// A cancelled ctx returns immediately; the pending read stays queued.
func (c *Console) Ask(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n[question] %s\n> ", strings.TrimSpace(prompt))
	return c.readLine(ctx)
}

// Confirm prints message followed by "Proceed? [y/N]". Only y or yes
// (any case) count as approval.
func (c *Console) Confirm(ctx context.Context, message string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if message = strings.TrimSpace(message); message != "" {
		fmt.Fprintf(c.out, "\n%s\n", message)
	}
	fmt.Fprintf(c.out, "%s ", ConfirmPrompt)

	line, err := c.readLine(ctx)
	if err != nil {
		return false, err
	}
	return isYes(line), nil
}

type lineResult struct {
	line string
	err  error
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.once.Do(func() {
		c.lines = make(chan lineResult)
		go c.readLoop()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-c.lines:
		if !ok {
			return "", ErrNoAnswer
		}
		line := strings.TrimRight(res.line, "\r\n")
		if res.err != nil {
			if errors.Is(res.err, io.EOF) && line != "" {
				return line, nil
			}
			if errors.Is(res.err, io.EOF) {
				return "", ErrNoAnswer
			}
			return "", fmt.Errorf("read answer: %w", res.err)
		}
		return line, nil
	}
}

// readLoop feeds c.lines until the reader fails, then closes it
func (c *Console) readLoop() {
	defer close(c.lines)
	for {
		line, err := c.in.ReadString('\n')
		c.lines <- lineResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
