package domain

import (
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// FailureKind tells callers why a validation failed without parsing the
// feedback text.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureSyntax       FailureKind = "syntax"
	FailureRuntime      FailureKind = "runtime"
	FailureTimeout      FailureKind = "timeout"
	FailureMismatch     FailureKind = "mismatch"
	FailureStructural   FailureKind = "structural"
	FailureCheatFlagged FailureKind = "cheat_flagged"
)

// FailureKindFor maps an execution error kind to its validation failure.
func FailureKindFor(k ErrorKind) FailureKind {
	switch k {
	case ErrorSyntax:
		return FailureSyntax
	case ErrorTimeout:
		return FailureTimeout
	default:
		return FailureRuntime
	}
}

// Failure is a terminal validation failure with user-facing text.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Mode records how much confidence a verdict carries.
type Mode string

const (
	ModeExecuted    Mode = "executed"
	ModePatternOnly Mode = "pattern_only"
)

// FlagKind is the heuristic that raised an anti-cheat flag.
type FlagKind string

const (
	FlagLiteralHardcode FlagKind = "literal_hardcode"
	FlagTrivialEcho     FlagKind = "trivial_echo"
	FlagPatternBypass   FlagKind = "pattern_bypass"
	FlagSuspicious      FlagKind = "suspicious"
)

// AntiCheatFlag is an advisory signal that a submission looks like it
// bypassed the technique the problem teaches.
type AntiCheatFlag struct {
	Kind   FlagKind
	Detail string
}

// ValidationResult is the verdict for one submission.
type ValidationResult struct {
	Success        bool
	Feedback       string
	AntiCheatFlags []AntiCheatFlag
	FailureKind    FailureKind
	Mode           Mode
	Actual         value.Value // nil when nothing ran
	DiagnosticsLog []string
}

// HasFlag reports whether a flag of the given kind was raised.
func (r ValidationResult) HasFlag(kind FlagKind) bool {
	for _, f := range r.AntiCheatFlags {
		if f.Kind == kind {
			return true
		}
	}
	return false
}
