package decision

import (
	"errors"
	"fmt"
)

// SchemaReason distinguishes the ways a decoded value can fail validation.
type SchemaReason int

const (
	// ReasonWrongShape: not an object, no recognised branch, or a field of the wrong type
	ReasonWrongShape SchemaReason = iota
	// ReasonAmbiguous: both tool_call and ask_handler present
	ReasonAmbiguous
	// ReasonEmptyField: a required field is missing, empty or whitespace
	ReasonEmptyField
)

func (r SchemaReason) String() string {
	switch r {
	case ReasonWrongShape:
		return "WrongShape"
	case ReasonAmbiguous:
		return "Ambiguous"
	case ReasonEmptyField:
		return "EmptyField"
	default:
		return "Unknown"
	}
}

type SchemaError struct {
	Reason SchemaReason
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("decision schema error [%s]: %s", e.Reason, e.Detail)
}

func schemaErr(reason SchemaReason, format string, args ...any) *SchemaError {
	return &SchemaError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ExtractionKind classifies why no decision payload could be recovered from text.
type ExtractionKind int

const (
	NoJSONFound ExtractionKind = iota
	MalformedJSON
	NoMarkerAndAmbiguous
)

func (k ExtractionKind) String() string {
	switch k {
	case NoJSONFound:
		return "NoJsonFound"
	case MalformedJSON:
		return "MalformedJson"
	case NoMarkerAndAmbiguous:
		return "NoMarkerAndAmbiguous"
	default:
		return "Unknown"
	}
}

type ExtractionError struct {
	Kind ExtractionKind
	// ParseError is set for MalformedJSON
	ParseError error
	// Candidates is the number of brace-balanced blocks found in the text
	Candidates int
	// Snippet holds part of the offending text for diagnosis
	Snippet string
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("decision extraction failed [%s]", e.Kind)
	switch e.Kind {
	case MalformedJSON:
		if e.ParseError != nil {
			msg += fmt.Sprintf(": %v", e.ParseError)
		}
	case NoMarkerAndAmbiguous:
		msg += fmt.Sprintf(": %d distinct JSON objects and no DECISION_JSON marker", e.Candidates)
	case NoJSONFound:
		msg += ": no JSON object in model output"
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" (near %q)", e.Snippet)
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.ParseError
}

// IsSchemaError reports whether err carries a *SchemaError
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsExtractionError reports whether err carries an *ExtractionError
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
