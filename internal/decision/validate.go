package decision

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is the format assigned to decisions that arrive without one.
const TimestampLayout = "2006-01-02T15:04:05Z"

// askKeys are accepted spellings of the ask_handler branch, canonical first.
var askKeys = []string{"ask_handler", "ask_human", "ask_user", "ask", "human_input"}

// promptKeys are accepted spellings of the prompt inside an ask branch.
var promptKeys = []string{"prompt", "question", "message"}

// Validator checks decoded decision payloads and normalises legacy shapes.
// The zero value is ready to use.
type Validator struct {
	// Now overrides the clock used to default the timestamp
	Now func() time.Time
}

var defaultValidator Validator

// Validate checks a decoded JSON value using the default Validator.
func Validate(raw any) (Decision, error) {
	return defaultValidator.Validate(raw)
}

// ValidateJSON decodes data and validates it. A decode failure is reported
// as a MalformedJSON extraction error, never as a schema error.
func ValidateJSON(data []byte) (Decision, error) {
	return defaultValidator.ValidateJSON(data)
}

func (v Validator) ValidateJSON(data []byte) (Decision, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Decision{}, &ExtractionError{
			Kind:       MalformedJSON,
			ParseError: err,
			Candidates: 1,
			Snippet:    snippet(string(data)),
		}
	}
	return v.Validate(raw)
}

// Validate accepts the canonical shape
//
//	{"tool_call": {"name": "...", "args": {...}}}
//	{"ask_handler": {"prompt": "..."}}
//
// plus this fixed set of legacy shapes, all normalised to the canonical one:
//
//	{"tool_name": N, "parameters": A}               (also "tool_arguments", "args", "arguments")
//	{"decision_type": "Tool Call", "tool_name": N, "tool_arguments": A}
//	{"decision_type": "Ask Handler", "prompt": P}
//	{"name": N, "arguments": A}                     (also "args")
//	{"tool_call": "<JSON-encoded {name, arguments}>"}
//	{"tool_call": {"name": N, "arguments": A}}
//	{"ask_user"|"ask_human"|"ask"|"human_input": ...} in place of ask_handler
//
// Anything else is rejected with a *SchemaError.
func (v Validator) Validate(raw any) (Decision, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Decision{}, schemaErr(ReasonWrongShape, "decision must be a JSON object, got %s", jsonType(raw))
	}

	ts, err := v.timestamp(obj)
	if err != nil {
		return Decision{}, err
	}

	if dt, present := obj["decision_type"]; present && dt != nil {
		d, err := fromDecisionType(obj, dt)
		if err != nil {
			return Decision{}, err
		}
		d.Timestamp = ts
		return d, nil
	}

	toolRaw, hasTool, legacyTool := toolBranch(obj)
	askRaw, hasAsk := askBranch(obj)

	switch {
	case hasTool && hasAsk:
		return Decision{}, schemaErr(ReasonAmbiguous, "decision carries both a tool call and an ask_handler")
	case !hasTool && !hasAsk:
		return Decision{}, schemaErr(ReasonWrongShape, "expected exactly one of tool_call or ask_handler, got keys %v", sortedKeys(obj))
	}

	d := Decision{Timestamp: ts}
	if hasTool {
		tc, err := parseToolCall(toolRaw, legacyTool)
		if err != nil {
			return Decision{}, err
		}
		d.ToolCall = tc
		return d, nil
	}

	ah, err := parseAsk(askRaw)
	if err != nil {
		return Decision{}, err
	}
	d.AskHandler = ah
	return d, nil
}

func (v Validator) timestamp(obj map[string]any) (string, error) {
	raw, ok := obj["timestamp"]
	if !ok || raw == nil {
		return v.now(), nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", schemaErr(ReasonWrongShape, "timestamp must be a string, got %s", jsonType(raw))
	}
	if strings.TrimSpace(s) == "" {
		return v.now(), nil
	}
	return s, nil
}

func (v Validator) now() string {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return now().UTC().Format(TimestampLayout)
}

// toolBranch finds the tool call payload. legacy is true when the payload
// came from a flat or string-encoded shape, where args default to {}.
func toolBranch(obj map[string]any) (payload any, found bool, legacy bool) {
	if raw, ok := obj["tool_call"]; ok && raw != nil {
		if encoded, isString := raw.(string); isString {
			var inner map[string]any
			if err := json.Unmarshal([]byte(encoded), &inner); err == nil && inner != nil {
				return inner, true, true
			}
		}
		return raw, true, false
	}
	if name, ok := obj["tool_name"]; ok && name != nil {
		return map[string]any{"name": name, "args": firstPresent(obj, "parameters", "tool_arguments", "args", "arguments")}, true, true
	}
	if name, ok := obj["name"]; ok && name != nil {
		return map[string]any{"name": name, "args": firstPresent(obj, "arguments", "args")}, true, true
	}
	return nil, false, false
}

func askBranch(obj map[string]any) (any, bool) {
	for _, key := range askKeys {
		if raw, ok := obj[key]; ok && raw != nil {
			return raw, true
		}
	}
	return nil, false
}

func parseToolCall(raw any, legacy bool) (*ToolCall, error) {
	var payload map[string]any
	switch v := raw.(type) {
	case map[string]any:
		payload = v
	case string:
		return nil, schemaErr(ReasonWrongShape, "tool_call string does not contain a JSON object: %s", snippet(v))
	default:
		return nil, schemaErr(ReasonWrongShape, "tool_call must be an object, got %s", jsonType(raw))
	}

	nameRaw, ok := payload["name"]
	if !ok || nameRaw == nil {
		return nil, schemaErr(ReasonEmptyField, "tool_call.name is required")
	}
	name, ok := nameRaw.(string)
	if !ok {
		return nil, schemaErr(ReasonWrongShape, "tool_call.name must be a string, got %s", jsonType(nameRaw))
	}
	if strings.TrimSpace(name) == "" {
		return nil, schemaErr(ReasonEmptyField, "tool_call.name is empty")
	}

	argsRaw, present := payload["args"]
	if !present || argsRaw == nil {
		argsRaw, present = payload["arguments"]
	}
	if !present || argsRaw == nil {
		if !legacy {
			return nil, schemaErr(ReasonEmptyField, "tool_call.args is required")
		}
		argsRaw = map[string]any{}
	}
	args, ok := argsRaw.(map[string]any)
	if !ok {
		return nil, schemaErr(ReasonWrongShape, "tool_call.args must be a mapping, got %s", jsonType(argsRaw))
	}

	return &ToolCall{Name: name, Args: args}, nil
}

func parseAsk(raw any) (*AskHandler, error) {
	var prompt any
	switch v := raw.(type) {
	case string:
		prompt = v
	case map[string]any:
		prompt = firstPresent(v, promptKeys...)
		if prompt == nil {
			return nil, schemaErr(ReasonEmptyField, "ask_handler.prompt is required")
		}
	default:
		return nil, schemaErr(ReasonWrongShape, "ask_handler must be an object, got %s", jsonType(raw))
	}

	s, ok := prompt.(string)
	if !ok {
		return nil, schemaErr(ReasonWrongShape, "ask_handler.prompt must be a string, got %s", jsonType(prompt))
	}
	if strings.TrimSpace(s) == "" {
		return nil, schemaErr(ReasonEmptyField, "ask_handler.prompt is empty")
	}
	return &AskHandler{Prompt: s}, nil
}

func fromDecisionType(obj map[string]any, dt any) (Decision, error) {
	s, ok := dt.(string)
	if !ok {
		return Decision{}, schemaErr(ReasonWrongShape, "decision_type must be a string, got %s", jsonType(dt))
	}
	norm := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(s))
	switch norm {
	case "toolcall":
		payload := map[string]any{
			"name": firstPresent(obj, "tool_name", "name"),
			"args": firstPresent(obj, "tool_arguments", "parameters", "args", "arguments"),
		}
		tc, err := parseToolCall(payload, true)
		if err != nil {
			return Decision{}, err
		}
		return Decision{ToolCall: tc}, nil
	case "askhandler", "ask", "askhuman", "askuser":
		ah, err := parseAsk(obj)
		if err != nil {
			return Decision{}, err
		}
		return Decision{AskHandler: ah}, nil
	default:
		return Decision{}, schemaErr(ReasonWrongShape, "unknown decision_type %q", s)
	}
}

func firstPresent(obj map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
