// Package testrun runs a submission against a list of test cases and
// derives extra cases from a problem's setup.
package testrun

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/runner"
	"github.com/felixgeelhaar/drillpad/internal/validator"
)

// Runner aggregates per-case validations into a test run.
type Runner struct {
	validator *validator.Service
	executor  validator.Executor
	events    *domain.EventDispatcher
	logger    *slog.Logger
}

// NewRunner creates a test runner. executor is used by Materialize to run
// sample solutions.
func NewRunner(v *validator.Service, executor validator.Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{validator: v, executor: executor, logger: logger}
}

// SetEventDispatcher sets where test run events are published
func (r *Runner) SetEventDispatcher(d *domain.EventDispatcher) {
	r.events = d
}

// Suite is a submission and the cases to run it against.
type Suite struct {
	Run      *domain.Run // optional
	Language domain.Language
	Problem  *domain.Problem
	Code     string
	Cases    []domain.TestCase
}

// RunTestSuite validates code once per case, in order.
func (r *Runner) RunTestSuite(ctx context.Context, lang domain.Language, problem *domain.Problem, code string, cases []domain.TestCase) domain.TestRunResults {
	return r.Run(ctx, Suite{Language: lang, Problem: problem, Code: code, Cases: cases})
}

// Run executes the suite. Cases run sequentially and each gets its own
// copy of the problem and a fresh execution; AllPassed is true only when
// every case passes, and vacuously for no cases.
func (r *Runner) Run(ctx context.Context, s Suite) domain.TestRunResults {
	results := domain.TestRunResults{
		AllPassed:   true,
		CaseResults: make([]domain.TestCaseResult, 0, len(s.Cases)),
	}

	for i, tc := range s.Cases {
		start := time.Now()
		cr := domain.TestCaseResult{Index: i, TestCase: tc}
		if s.Problem == nil {
			cr.Validation = domain.ValidationResult{
				Feedback:    "No problem to validate against.",
				FailureKind: domain.FailureRuntime,
				Mode:        domain.ModeExecuted,
			}
		} else {
			ev := r.validator.Evaluate(ctx, validator.Request{
				Run:      s.Run,
				Language: s.Language,
				Problem:  s.Problem.WithCase(tc),
				Code:     s.Code,
			})
			cr.Validation = ev.Validation
			cr.Execution = ev.Execution
		}
		cr.Duration = time.Since(start)

		results.CaseResults = append(results.CaseResults, cr)
		results.AllPassed = results.AllPassed && cr.Validation.Success
		results.TotalDuration += cr.Duration
	}

	runID := uuid.Nil
	if s.Run != nil {
		runID = s.Run.ID
	}
	id := ""
	if s.Problem != nil {
		id = s.Problem.ID
	}
	r.events.Publish(domain.NewTestRunCompletedEvent(runID, id, &results))
	r.logger.Debug("test run completed",
		"problem_id", id,
		"cases", len(results.CaseResults),
		"passed", results.Passed(),
		"duration", results.TotalDuration,
	)
	return results
}

// Materialize runs the problem's sample solution against each variation's
// setup and records the result as the expected value. Variations whose
// sample run fails are dropped.
func (r *Runner) Materialize(ctx context.Context, lang domain.Language, problem *domain.Problem, variations []domain.TestCase) ([]domain.TestCase, error) {
	if problem == nil || problem.SampleSolution == "" {
		return nil, fmt.Errorf("%w: no sample solution to compute expected values", domain.ErrInvalidProblem)
	}
	if !r.executor.Supports(lang) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoRuntime, lang)
	}

	cases := make([]domain.TestCase, 0, len(variations))
	for i, v := range variations {
		if err := ctx.Err(); err != nil {
			return cases, err
		}
		exec, err := r.executor.Execute(ctx, runner.ExecuteRequest{
			Language: lang,
			Setup:    v.Setup,
			Body:     problem.SampleSolution,
		})
		if err != nil {
			return cases, err
		}
		if !exec.Success {
			msg := ""
			if exec.Error != nil {
				msg = exec.Error.Message
			}
			r.logger.Warn("dropping variation", "problem_id", problem.ID, "variation", i, "error", msg)
			continue
		}
		v.Expected = exec.Result
		cases = append(cases, v)
	}
	return cases, nil
}
