package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedModel_ReplaysInOrder(t *testing.T) {
	t.Parallel()

	m := NewScriptedModel("first", "second")
	ctx := context.Background()

	got, err := m.Complete(ctx, "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", got)
	assert.Equal(t, 1, m.Remaining())

	got, err = m.Complete(ctx, "p2", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = m.Complete(ctx, "p3", nil)
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Equal(t, []string{"p1", "p2", "p3"}, m.Prompts())
}

func TestScriptedModel_EmptyReplyAndCancel(t *testing.T) {
	t.Parallel()

	m := NewScriptedModel("  ")
	_, err := m.Complete(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewScriptedModel("x").Complete(ctx, "p", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "script.txt")
	script := "---\nI will look around.\nDECISION_JSON: {\"tool_call\":{\"name\":\"list_files\",\"args\":{}}}\n---\n\n---\r\nDone.\r\nDECISION_JSON: {\"ask_handler\":{\"prompt\":\"Anything else?\"}}\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	m, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Remaining())

	first, err := m.Complete(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "I will look around.\nDECISION_JSON: {\"tool_call\":{\"name\":\"list_files\",\"args\":{}}}", first)

	second, err := m.Complete(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Done.\nDECISION_JSON: {\"ask_handler\":{\"prompt\":\"Anything else?\"}}", second)
}

func TestLoadScript_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadScript(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n---\n   \n"), 0o644))
	_, err = LoadScript(empty)
	assert.ErrorContains(t, err, "no replies")
}

func TestChatResponseText(t *testing.T) {
	t.Parallel()

	var nilResp *ChatResponse
	assert.Equal(t, "", nilResp.Text())
	assert.Equal(t, "", (&ChatResponse{}).Text())

	resp := &ChatResponse{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: "\n ok \n"}}}}
	assert.Equal(t, "ok", resp.Text())
}

func TestErrorImplementation(t *testing.T) {
	t.Parallel()

	err := &Error{Message: "rate limited", Type: "rate_limit", Code: 429}
	assert.Equal(t, "LLM API Error: rate limited (type: rate_limit, code: 429)", err.Error())
}
