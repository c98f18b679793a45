package tools

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodoTools(t *testing.T) {
	t.Parallel()

	list := NewTodoList(filepath.Join(t.TempDir(), "state", "todo.txt"))
	add := NewAddTodoTool(list)
	show := NewListTodosTool(list)

	res := execTool(t, show, `{}`)
	assert.Equal(t, "Todo list is empty", res.Content)

	res = execTool(t, add, `{"item":"write the migration"}`)
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, `Added "write the migration" to todo list`, res.Content)

	execTool(t, add, `{"item":"  review\nthe diff "}`)

	res = execTool(t, show, ``)
	assert.Equal(t, "Todo List:\n1. write the migration\n2. review the diff", res.Content)

	res = execTool(t, add, `{"item":"   "}`)
	assert.True(t, res.IsError)
}
