package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors are returned by loaders, repositories and the service
// surfaces. Evaluation failures are never errors; they are reported as
// ExecutionResult and ValidationResult values.
// -----------------------------------------------------------------------------

// Problem bank errors
var (
	ErrProblemNotFound = errors.New("problem not found")
	ErrPackNotFound    = errors.New("problem pack not found")
	ErrInvalidProblem  = errors.New("invalid problem")
	ErrInvalidPattern  = errors.New("invalid pattern")
)

// Language and runtime errors
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNoRuntime           = errors.New("no runtime registered for language")
	ErrRuntimeUnavailable  = errors.New("runtime unavailable")
)

// Run errors
var (
	ErrRunNotFound = errors.New("run not found")
)

// General errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternalError = errors.New("internal error")
)
