package decision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireExtractionKind(t *testing.T, err error, want ExtractionKind) *ExtractionError {
	t.Helper()
	require.Error(t, err)
	var ee *ExtractionError
	require.True(t, errors.As(err, &ee), "expected *ExtractionError, got %T: %v", err, err)
	assert.Equal(t, want, ee.Kind, ee.Error())
	return ee
}

func TestExtract_MarkerThenToolCall(t *testing.T) {
	t.Parallel()

	text := "I will proceed.\nDECISION_JSON: {\"tool_call\":{\"name\":\"read_file\",\"args\":{\"path\":\"a.txt\"}}}"
	d, err := Extract(text)
	require.NoError(t, err)

	require.Equal(t, KindToolCall, d.Kind())
	assert.Equal(t, "read_file", d.ToolCall.Name)
	assert.Equal(t, map[string]any{"path": "a.txt"}, d.ToolCall.Args)
}

func TestExtract_TwoBlocksWithoutMarkerAreAmbiguous(t *testing.T) {
	t.Parallel()

	text := `Option one would be {"tool_call":{"name":"read_file","args":{"path":"a.txt"}}}
but maybe {"ask_handler":{"prompt":"Which file?"}} is better.`

	_, err := Extract(text)
	ee := requireExtractionKind(t, err, NoMarkerAndAmbiguous)
	assert.Equal(t, 2, ee.Candidates)
}

func TestExtract_RepeatedIdenticalBlockIsNotAmbiguous(t *testing.T) {
	t.Parallel()

	block := `{"ask_handler":{"prompt":"Which branch?"}}`
	d, err := Extract("First draft: " + block + "\nFinal: " + block)
	require.NoError(t, err)
	assert.Equal(t, "Which branch?", d.AskHandler.Prompt)
}

func TestExtract_AskHandlerWithoutMarker(t *testing.T) {
	t.Parallel()

	d, err := Extract(`I need to know where to commit. {"ask_handler":{"prompt":"Which branch?"}}`)
	require.NoError(t, err)
	require.Equal(t, KindAskHandler, d.Kind())
	assert.Equal(t, "Which branch?", d.AskHandler.Prompt)
}

func TestExtract_NestedBracesAreKept(t *testing.T) {
	t.Parallel()

	text := `DECISION_JSON: {"tool_call":{"name":"edit","args":{"patch":{"a":1,"b":{"c":[1,2]}}}}}`
	d, err := Extract(text)
	require.NoError(t, err)

	assert.Equal(t, "edit", d.ToolCall.Name)
	assert.Equal(t, map[string]any{
		"patch": map[string]any{
			"a": float64(1),
			"b": map[string]any{"c": []any{float64(1), float64(2)}},
		},
	}, d.ToolCall.Args)
}

func TestExtract_BracesInsideStrings(t *testing.T) {
	t.Parallel()

	text := `Writing a Go file.
DECISION_JSON: {"tool_call":{"name":"write_file","args":{"path":"main.go","content":"func main() { fmt.Println(\"}\") }"}}}`
	d, err := Extract(text)
	require.NoError(t, err)

	assert.Equal(t, "write_file", d.ToolCall.Name)
	assert.Equal(t, `func main() { fmt.Println("}") }`, d.ToolCall.Args["content"])
}

func TestExtract_ApostrophesInProseDoNotConfuseScan(t *testing.T) {
	t.Parallel()

	text := `I don't think it's "done" yet.
{"tool_call":{"name":"list_files","args":{"directory":"."}}}`
	d, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "list_files", d.ToolCall.Name)
}

func TestExtract_MarkerPicksLastObjectAfterLastMarker(t *testing.T) {
	t.Parallel()

	text := `Earlier I considered {"tool_call":{"name":"read_file","args":{"path":"old.txt"}}}.
DECISION_JSON: {"tool_call":{"name":"read_file","args":{"path":"draft.txt"}}}
Actually, correcting myself:
DECISION_JSON: {"tool_call":{"name":"read_file","args":{"path":"final.txt"}}}`

	d, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "final.txt", d.ToolCall.Args["path"])
}

func TestExtract_MarkerIgnoresMalformedEarlierBlocks(t *testing.T) {
	t.Parallel()

	text := `The set {a, b} is not JSON.
DECISION: {"ask_handler":{"prompt":"Proceed with the migration?"}}`
	d, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "Proceed with the migration?", d.AskHandler.Prompt)
}

func TestExtract_MarkerWithoutPayloadFallsBackToLastObject(t *testing.T) {
	t.Parallel()

	text := `{"tool_call":{"name":"list_todos","args":{}}}
DECISION_JSON: see above`
	d, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "list_todos", d.ToolCall.Name)
}

func TestExtract_MarkerIsCaseSensitive(t *testing.T) {
	t.Parallel()

	// "decision_json:" in lower case is prose, so the two blocks stay ambiguous
	text := `decision_json: {"tool_call":{"name":"a","args":{}}} or {"tool_call":{"name":"b","args":{}}}`
	_, err := Extract(text)
	requireExtractionKind(t, err, NoMarkerAndAmbiguous)
}

func TestExtract_StrayBraceInProse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		tool string
	}{
		{
			name: "prose brace before marker",
			text: "The handler opens with { but never closes in this excerpt.\nDECISION_JSON: {\"tool_call\":{\"name\":\"read_file\",\"args\":{\"path\":\"main.go\"}}}",
			tool: "read_file",
		},
		{
			name: "prose brace without marker",
			text: "Struct literals start with { so I will look first. {\"tool_call\":{\"name\":\"list_files\",\"args\":{}}}",
			tool: "list_files",
		},
		{
			name: "abandoned draft before marker",
			text: "Draft: {\"tool_call\": {\"name\": \"list_files\"\nDECISION_JSON: {\"tool_call\":{\"name\":\"read_file\",\"args\":{\"path\":\"main.go\"}}}",
			tool: "read_file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := Extract(tt.text)
			require.NoError(t, err)
			require.Equal(t, KindToolCall, d.Kind())
			assert.Equal(t, tt.tool, d.ToolCall.Name)
		})
	}
}

func TestExtract_StrayBraceWithTwoObjectsIsStillAmbiguous(t *testing.T) {
	t.Parallel()

	text := `It opens with { and then {"ask_handler":{"prompt":"a"}} or {"ask_handler":{"prompt":"b"}}`
	_, err := Extract(text)
	requireExtractionKind(t, err, NoMarkerAndAmbiguous)
}

func TestExtract_NoJSON(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"I have finished thinking but forgot the payload.",
		"DECISION_JSON: none",
		"closing brace only }",
	}
	for _, text := range tests {
		_, err := Extract(text)
		requireExtractionKind(t, err, NoJSONFound)
	}
}

func TestExtract_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{
			name: "missing comma",
			text: `DECISION_JSON: {"tool_call": {"name": "read_file" "args": {"file_path": "test.txt"}}}`,
		},
		{
			name: "unterminated",
			text: `DECISION_JSON: {"tool_call": {"name": "read_file", "args": {"path": "a.txt"}`,
		},
		{
			name: "single quotes",
			text: `{'ask_handler': {'prompt': 'hi'}}`,
		},
		{
			name: "trailing comma",
			text: `{"ask_handler": {"prompt": "hi",}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Extract(tt.text)
			ee := requireExtractionKind(t, err, MalformedJSON)
			assert.Error(t, ee.ParseError)
			assert.NotEmpty(t, ee.Snippet)
			assert.False(t, IsSchemaError(err))
		})
	}
}

func TestExtract_WellFormedButInvalidIsSchemaError(t *testing.T) {
	t.Parallel()

	_, err := Extract(`DECISION_JSON: {"tool_call":{"name":"x","args":{}},"ask_handler":{"prompt":"p"}}`)
	requireSchemaReason(t, err, ReasonAmbiguous)
	assert.False(t, IsExtractionError(err))

	_, err = Extract(`DECISION_JSON: {"plan":"read everything"}`)
	requireSchemaReason(t, err, ReasonWrongShape)
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"I will proceed.\nDECISION_JSON: {\"tool_call\":{\"name\":\"read_file\",\"args\":{\"path\":\"a.txt\"}}}",
		`{"a":1} {"b":2}`,
		`DECISION_JSON: {"broken": }`,
		"nothing here",
	}
	for _, in := range inputs {
		d1, err1 := fixedClockExtractor.Extract(in)
		d2, err2 := fixedClockExtractor.Extract(in)
		assert.Equal(t, d1, d2, in)
		if err1 == nil {
			assert.NoError(t, err2)
			continue
		}
		require.Error(t, err2)
		assert.Equal(t, err1.Error(), err2.Error(), in)
	}
}

var fixedClockExtractor = Extractor{Validator: fixedClock}

func TestExtract_SnippetIsBounded(t *testing.T) {
	t.Parallel()

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	_, err := Extract(string(long))
	ee := requireExtractionKind(t, err, NoJSONFound)
	assert.LessOrEqual(t, len(ee.Snippet), snippetLimit+3)
}
