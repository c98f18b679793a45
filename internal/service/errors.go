package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MimeLyc/philby/internal/cycle"
	"github.com/MimeLyc/philby/pkg/log"
)

type ErrorType int

const (
	ErrConfig ErrorType = iota
	ErrWorkspace
	ErrLocked
	ErrModel
	ErrExtraction
	ErrSchema
	ErrPersistence
	ErrValidation
	ErrUnknown
)

type PhilbyError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *PhilbyError {
	return &PhilbyError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *PhilbyError {
	return &PhilbyError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *PhilbyError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *PhilbyError) Unwrap() error {
	return e.Cause
}

func (e *PhilbyError) WithContext(key string, value any) *PhilbyError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrConfig:
		return "Config"
	case ErrWorkspace:
		return "Workspace"
	case ErrLocked:
		return "Locked"
	case ErrModel:
		return "Model"
	case ErrExtraction:
		return "Extraction"
	case ErrSchema:
		return "Schema"
	case ErrPersistence:
		return "Persistence"
	case ErrValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// ExitCode maps an error type to the process exit status: 2 when the model
// output could not be turned into a decision, 1 for everything else.
func (t ErrorType) ExitCode() int {
	switch t {
	case ErrExtraction, ErrSchema:
		return 2
	default:
		return 1
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *PhilbyError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var philbyErr *PhilbyError
	if !errors.As(err, &philbyErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	advice := h.GetAdvice(philbyErr)
	log.Error("Error Detail: %v\n advice: %s", err, advice)

	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *PhilbyError) string {
	switch err.Type {
	case ErrConfig:
		return "Please check the .env file, the settings file and the LLM_*/PHILBY_* environment variables"
	case ErrWorkspace:
		return "Please check that the workspace directory exists and is writable, and that a task was set with `philby task`"
	case ErrLocked:
		return "Another run is using this workspace; wait for it to finish or remove the lock file if that process is gone"
	case ErrModel:
		return "The model call failed; check the API key, the endpoint URL and network connectivity, then run again"
	case ErrExtraction:
		return "Could not obtain a valid decision this cycle: the model output had no usable DECISION_JSON object. Inspect state/thinking.txt and consider tightening the system prompt"
	case ErrSchema:
		return "Could not obtain a valid decision this cycle: the decision object had the wrong shape. Inspect state/thinking.txt for the offending object"
	case ErrPersistence:
		return "The workspace state could not be written; check disk space and permissions before running again"
	case ErrValidation:
		return "Please verify the command arguments"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var philbyErr *PhilbyError
	if errors.As(err, &philbyErr) {
		return philbyErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *PhilbyError {
	return NewErrorWithCause(errorType, message, err)
}

// HaltError turns a fatal halt into a typed error, nil for normal halts
func HaltError(res cycle.Result) error {
	if !res.Reason.Fatal() {
		return nil
	}
	var errorType ErrorType
	switch res.Reason {
	case cycle.HaltExtraction:
		errorType = ErrExtraction
	case cycle.HaltSchema:
		errorType = ErrSchema
	case cycle.HaltTransport:
		errorType = ErrModel
	case cycle.HaltPersistence:
		errorType = ErrPersistence
	default:
		errorType = ErrUnknown
	}
	return NewErrorWithCause(errorType, fmt.Sprintf("run halted (%s)", res.Reason), res.Err).
		WithContext("cycles", res.Cycles)
}

// ExitCode returns the process exit status for err; 0 when err is nil
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var philbyErr *PhilbyError
	if errors.As(err, &philbyErr) {
		return philbyErr.Type.ExitCode()
	}
	return 1
}

func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
