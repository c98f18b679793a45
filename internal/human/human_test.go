package human

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_AskReturnsLineVerbatim(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c := NewConsole(strings.NewReader("  main  \r\nsecond\n"), &out)

	got, err := c.Ask(context.Background(), "Which branch?")
	require.NoError(t, err)
	assert.Equal(t, "  main  ", got)
	assert.Contains(t, out.String(), "[question] Which branch?")

	got, err = c.Ask(context.Background(), "Again?")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = c.Ask(context.Background(), "More?")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestConsole_AskLastLineWithoutNewline(t *testing.T) {
	t.Parallel()

	c := NewConsole(strings.NewReader("main"), io.Discard)
	got, err := c.Ask(context.Background(), "Which branch?")
	require.NoError(t, err)
	assert.Equal(t, "main", got)
}

func TestConsole_Confirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: " Yes \n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "sure\n", want: false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		c := NewConsole(strings.NewReader(tt.input), &out)
		got, err := c.Confirm(context.Background(), "cycle 3 done")
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Contains(t, out.String(), "cycle 3 done")
		assert.Equal(t, 1, strings.Count(out.String(), ConfirmPrompt), out.String())
	}
}

func TestConsole_ConfirmEOF(t *testing.T) {
	t.Parallel()

	c := NewConsole(strings.NewReader(""), io.Discard)
	_, err := c.Confirm(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestConsole_AskCancelled(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()

	c := NewConsole(pr, io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Ask(ctx, "never answered")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsole_AskAfterCancelReusesReader(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()

	c := NewConsole(pr, io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Ask(ctx, "first")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		_, _ = io.WriteString(pw, "late answer\nsecond answer\n")
	}()

	got, err := c.Ask(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "late answer", got)

	got, err = c.Ask(context.Background(), "third")
	require.NoError(t, err)
	assert.Equal(t, "second answer", got)

	require.NoError(t, pw.Close())
	_, err = c.Ask(context.Background(), "fourth")
	assert.ErrorIs(t, err, ErrNoAnswer)
	_, err = c.Ask(context.Background(), "fifth")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestScripted(t *testing.T) {
	t.Parallel()

	s := NewScripted("main").WithApprovals(true, false)
	ctx := context.Background()

	got, err := s.Ask(ctx, "Which branch?")
	require.NoError(t, err)
	assert.Equal(t, "main", got)

	_, err = s.Ask(ctx, "Another?")
	assert.ErrorIs(t, err, ErrNoAnswer)
	assert.Equal(t, []string{"Which branch?", "Another?"}, s.Asked())

	ok, err := s.Confirm(ctx, "one")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.Confirm(ctx, "two")
	assert.False(t, ok)
	ok, _ = s.Confirm(ctx, "three")
	assert.False(t, ok)
	assert.Equal(t, []string{"one", "two", "three"}, s.Confirms())
}

func TestTerminal_NonTTYUsesConsole(t *testing.T) {
	t.Parallel()

	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Skip("no null device")
	}
	defer f.Close()

	_, ok := Terminal(f, io.Discard).(*Console)
	assert.True(t, ok)
}
