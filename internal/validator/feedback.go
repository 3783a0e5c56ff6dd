package validator

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// executionFeedback maps an execution error to a hint for the learner.
func executionFeedback(e *domain.ErrorDescriptor) string {
	if e == nil {
		return "Runtime error: your code did not produce a value."
	}

	switch e.Kind {
	case domain.ErrorSyntax:
		return fmt.Sprintf("Syntax error: %s. Check for missing brackets, parentheses or operators.", strings.TrimSuffix(e.Message, "."))
	case domain.ErrorTimeout:
		if strings.Contains(e.Message, "cancelled") {
			return "Execution was cancelled before your code finished."
		}
		return fmt.Sprintf("Time limit exceeded (%s). Look for an infinite loop or unbounded recursion.", e.Message)
	}

	msg := e.Message
	if e.Name != "" && !strings.HasPrefix(msg, e.Name) {
		msg = e.Name + ": " + msg
	}
	feedback := "Runtime error: " + msg
	if hint := runtimeHint(e); hint != "" {
		feedback += ". " + hint
	}
	return feedback
}

func runtimeHint(e *domain.ErrorDescriptor) string {
	switch {
	case strings.Contains(e.Message, "is not defined"):
		return "Check the spelling of your variable names; only the setup's variables are in scope."
	case strings.Contains(e.Message, "is not a function"):
		return "A method you called does not exist on that value."
	case strings.Contains(e.Message, "Cannot read propert"):
		return "You read a property of undefined or null."
	case strings.Contains(e.Message, "Maximum call stack"), e.Name == "RecursionError":
		return "Your recursion never reaches its base case."
	case e.Name == "NameError":
		return "Check the spelling of your variable names; only the setup's variables are in scope."
	case e.Name == "IndexError", e.Name == "KeyError":
		return "Check the indexes and keys you look up."
	case strings.HasPrefix(e.Message, "runtime unavailable"):
		return "The runtime for this language could not be started."
	}
	return ""
}

// mismatchFeedback shows both values and, when their kinds differ, what
// kind of value was expected.
func mismatchFeedback(expected, actual value.Value) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expected %s, but got %s.", value.Format(expected), value.Format(actual))

	switch {
	case value.KindOf(actual) == value.KindUndefined && value.KindOf(expected) != value.KindUndefined:
		b.WriteString(" Did you forget to return the result?")
	case value.KindOf(actual) != value.KindOf(expected):
		fmt.Fprintf(&b, " Expected %s, got %s.", value.Describe(expected), value.Describe(actual))
	}
	return b.String()
}

func cheatFeedback(f domain.AntiCheatFlag) string {
	switch f.Kind {
	case domain.FlagLiteralHardcode:
		return fmt.Sprintf("The output matches, but your code %s. Compute the answer from the setup variables.", f.Detail)
	case domain.FlagTrivialEcho:
		return fmt.Sprintf("The output matches, but your code %s. Transform the input to produce the answer.", f.Detail)
	}
	return fmt.Sprintf("The output matches, but the submission was flagged: %s.", f.Detail)
}

func advisoryNote(f domain.AntiCheatFlag) string {
	if f.Kind == domain.FlagPatternBypass {
		return "Note: try solving it with the technique this problem teaches."
	}
	return fmt.Sprintf("Note: %s.", f.Detail)
}

func displayLanguage(lang domain.Language) string {
	if lang == "" {
		return "This"
	}
	s := string(lang)
	return strings.ToUpper(s[:1]) + s[1:]
}
