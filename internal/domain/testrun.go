package domain

import "time"

// TestCaseResult is the outcome of one case in a test run.
type TestCaseResult struct {
	Index      int
	TestCase   TestCase
	Execution  *ExecutionResult // nil when execution was skipped
	Validation ValidationResult
	Duration   time.Duration
}

// TestRunResults folds the per-case results of a test run.
type TestRunResults struct {
	AllPassed     bool
	CaseResults   []TestCaseResult
	TotalDuration time.Duration
}

// Passed returns the number of passing cases
func (r *TestRunResults) Passed() int {
	n := 0
	for _, c := range r.CaseResults {
		if c.Validation.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failing cases
func (r *TestRunResults) Failed() int {
	return len(r.CaseResults) - r.Passed()
}
