package domain

import (
	"time"

	"github.com/felixgeelhaar/drillpad/internal/value"
)

// ErrorKind classifies an execution failure.
type ErrorKind string

const (
	ErrorSyntax  ErrorKind = "syntax"
	ErrorRuntime ErrorKind = "runtime"
	ErrorTimeout ErrorKind = "timeout"
)

// ErrorDescriptor describes why a snippet did not produce a value.
type ErrorDescriptor struct {
	Kind    ErrorKind
	Name    string // thrown error's name, e.g. "TypeError"; may be empty
	Message string
}

// ExecutionResult is the outcome of one snippet execution. It is created
// once per call and owned by the caller.
type ExecutionResult struct {
	Success        bool
	Result         value.Value
	Error          *ErrorDescriptor
	DiagnosticsLog []string // captured print/console output, in call order
	Duration       time.Duration
}

// NewExecutionFailure builds a failed result.
func NewExecutionFailure(kind ErrorKind, name, message string, logs []string) *ExecutionResult {
	return &ExecutionResult{
		Error:          &ErrorDescriptor{Kind: kind, Name: name, Message: message},
		DiagnosticsLog: logs,
	}
}

// NewExecutionSuccess builds a successful result.
func NewExecutionSuccess(result value.Value, logs []string) *ExecutionResult {
	return &ExecutionResult{
		Success:        true,
		Result:         result,
		DiagnosticsLog: logs,
	}
}
