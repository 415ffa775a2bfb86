package api

import (
	"errors"
	"fmt"
)

// Code identifies one kind of failure in the canonical error taxonomy.
// Codes are dotted `component.kind` strings and are stable across releases.
type Code string

const (
	CodeRequestValidation          Code = "request.validation"
	CodeFrameworkUnavailable       Code = "framework.unavailable"
	CodeFrameworkExecution         Code = "framework.execution"
	CodeFrameworkExecutionTimeout  Code = "framework.execution_timeout"
	CodeFrameworkRunnerMissing     Code = "framework.runner_missing"
	CodeAgentNotFound              Code = "agent.not_found"
	CodeSessionCleared             Code = "session.cleared"
	CodeSessionRecoveryMissing     Code = "session.recovery_missing"
	CodeSessionRecoveryFailed      Code = "session.recovery_failed"
	CodeSessionRecoveryRetry       Code = "session.recovery_retry"
	CodeSessionBusy                Code = "session.busy"
	CodeStreamInterrupted          Code = "stream.interrupted"
	CodeToolNotDeclared            Code = "tool.not_declared"
	CodeToolNotFound               Code = "tool.not_found"
	CodeToolInvalidParameters      Code = "tool.invalid_parameters"
	CodeToolExecution              Code = "tool.execution"
	CodeToolTimeout                Code = "tool.timeout"
	CodeToolUnauthorized           Code = "tool.unauthorized"
	CodeInteractionAlreadyResolved Code = "interaction.already_resolved"
	CodeInteractionAutoTimeout     Code = "interaction.auto_timeout"
	CodeRecoveryStoreUnavailable   Code = "recovery.store_unavailable"
)

// Error is the coded error payload shared across all layers. It implements
// the error interface and preserves the wrapped cause for errors.Is/As.
type Error struct {
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Source    string         `json:"source,omitempty"`
	Retriable bool           `json:"retriable,omitempty"`

	cause error
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to an underlying error. If the error already
// carries a code it is preserved as the cause, not overwritten.
func WrapError(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), cause: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail returns e with an extra detail entry. The receiver is mutated
// and returned for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

func (e *Error) WithRetriable(retriable bool) *Error {
	e.Retriable = retriable
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or the empty
// code when none is present.
func CodeOf(err error) Code {
	if apiErr, ok := errors.AsType[*Error](err); ok {
		return apiErr.Code
	}
	return ""
}

// AsError converts any error into an *Error, assigning fallback to errors
// that carry no code of their own.
func AsError(err error, fallback Code) *Error {
	if err == nil {
		return nil
	}
	if apiErr, ok := errors.AsType[*Error](err); ok {
		return apiErr
	}
	return WrapError(fallback, err)
}
