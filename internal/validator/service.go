// Package validator turns a submission into a verdict: it checks the
// required techniques, runs the snippet, compares the result with the
// expected value and applies the anti-cheat policy.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/drillpad/internal/anticheat"
	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/patterns"
	"github.com/felixgeelhaar/drillpad/internal/runner"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// Executor runs snippets. runner.Service implements it.
type Executor interface {
	Supports(lang domain.Language) bool
	Execute(ctx context.Context, req runner.ExecuteRequest) (*domain.ExecutionResult, error)
	ExecuteAsync(ctx context.Context, req runner.ExecuteRequest) <-chan *domain.ExecutionResult
}

var _ Executor = (*runner.Service)(nil)

// Service validates submissions against problems. It holds no per-request
// state, so one Service may validate different submissions concurrently.
type Service struct {
	executor Executor
	detector *anticheat.Detector
	policy   anticheat.Policy
	events   *domain.EventDispatcher
	logger   *slog.Logger
}

// NewService creates a validator using the default anti-cheat policy
func NewService(executor Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		executor: executor,
		detector: anticheat.NewDetector(),
		policy:   anticheat.DefaultPolicy(),
		logger:   logger,
	}
}

// SetPolicy replaces the anti-cheat policy
func (s *Service) SetPolicy(p anticheat.Policy) {
	s.policy = p
}

// SetDetector replaces the anti-cheat detector
func (s *Service) SetDetector(d *anticheat.Detector) {
	s.detector = d
}

// SetEventDispatcher sets where validation events are published
func (s *Service) SetEventDispatcher(d *domain.EventDispatcher) {
	s.events = d
}

// Policy returns the anti-cheat policy in use
func (s *Service) Policy() anticheat.Policy {
	return s.policy
}

// Request is one submission to validate.
type Request struct {
	Run      *domain.Run // optional; lets the execution be cancelled
	Language domain.Language
	Problem  *domain.Problem
	Code     string
}

// ValidateSubmission validates code for problem. It never panics and never
// fails: every outcome is a ValidationResult.
func (s *Service) ValidateSubmission(ctx context.Context, lang domain.Language, problem *domain.Problem, code string) domain.ValidationResult {
	return s.Validate(ctx, Request{Language: lang, Problem: problem, Code: code})
}

// ValidateSubmissionAsync validates in the background, awaiting the
// asynchronous executor. The channel delivers one result and is closed.
func (s *Service) ValidateSubmissionAsync(ctx context.Context, lang domain.Language, problem *domain.Problem, code string) <-chan domain.ValidationResult {
	ch := make(chan domain.ValidationResult, 1)
	go func() {
		defer close(ch)
		ch <- s.evaluate(ctx, Request{Language: lang, Problem: problem, Code: code}, s.awaitAsync).Validation
	}()
	return ch
}

// Validate runs the validation pipeline for req.
func (s *Service) Validate(ctx context.Context, req Request) domain.ValidationResult {
	return s.Evaluate(ctx, req).Validation
}

// Evaluation pairs a verdict with the execution behind it.
type Evaluation struct {
	Validation domain.ValidationResult
	Execution  *domain.ExecutionResult // nil when the code was not run
}

// Evaluate runs the validation pipeline for req and also returns the raw
// execution result.
func (s *Service) Evaluate(ctx context.Context, req Request) Evaluation {
	return s.evaluate(ctx, req, s.executeSync)
}

type executeFunc func(ctx context.Context, req runner.ExecuteRequest) *domain.ExecutionResult

func (s *Service) executeSync(ctx context.Context, req runner.ExecuteRequest) *domain.ExecutionResult {
	res, err := s.executor.Execute(ctx, req)
	if err != nil {
		return domain.NewExecutionFailure(domain.ErrorRuntime, "", fmt.Sprintf("runtime unavailable: %v", err), nil)
	}
	return res
}

func (s *Service) awaitAsync(ctx context.Context, req runner.ExecuteRequest) *domain.ExecutionResult {
	res, ok := <-s.executor.ExecuteAsync(ctx, req)
	if !ok || res == nil {
		return domain.NewExecutionFailure(domain.ErrorRuntime, "", "runtime returned no result", nil)
	}
	return res
}

func (s *Service) evaluate(ctx context.Context, req Request, execute executeFunc) (ev Evaluation) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("validation panicked", "problem_id", problemID(req.Problem), "panic", r)
			ev = Evaluation{Validation: failed(domain.FailureRuntime, "Internal error while validating your code. Please try again.", domain.ModeExecuted)}
		}
		s.publish(req, ev.Validation, time.Since(start))
	}()

	if req.Problem == nil {
		return Evaluation{Validation: failed(domain.FailureRuntime, "No problem to validate against.", domain.ModeExecuted)}
	}
	var exec *domain.ExecutionResult
	record := func(ctx context.Context, r runner.ExecuteRequest) *domain.ExecutionResult {
		exec = execute(ctx, r)
		return exec
	}
	res := s.run(ctx, req, record)
	return Evaluation{Validation: res, Execution: exec}
}

func (s *Service) run(ctx context.Context, req Request, execute executeFunc) domain.ValidationResult {
	p := req.Problem
	mode := domain.ModeExecuted
	if !s.executor.Supports(req.Language) {
		mode = domain.ModePatternOnly
	}

	if strings.TrimSpace(req.Code) == "" {
		return failed(domain.FailureStructural, "No code submitted.", mode)
	}

	if f := patterns.Check(req.Code, p.RequiredPatterns, p.PatternNote); f != nil {
		return failed(f.Kind, f.Message, mode)
	}

	if mode == domain.ModePatternOnly {
		res := domain.ValidationResult{
			Success:  true,
			Feedback: fmt.Sprintf("Structure looks right. %s code is checked by pattern only, so it was not run.", displayLanguage(req.Language)),
			Mode:     mode,
		}
		return s.applyAntiCheat(req, res)
	}

	exec := execute(ctx, runner.ExecuteRequest{
		Run:      req.Run,
		Language: req.Language,
		Setup:    p.Setup,
		Body:     req.Code,
	})
	if !exec.Success {
		kind := domain.ErrorRuntime
		if exec.Error != nil {
			kind = exec.Error.Kind
		}
		res := failed(domain.FailureKindFor(kind), executionFeedback(exec.Error), mode)
		res.DiagnosticsLog = exec.DiagnosticsLog
		return res
	}

	res := domain.ValidationResult{
		Mode:           mode,
		Actual:         exec.Result,
		DiagnosticsLog: exec.DiagnosticsLog,
	}
	if value.Equal(exec.Result, p.Expected) {
		res.Success = true
		res.Feedback = "Correct!"
	} else {
		res.FailureKind = domain.FailureMismatch
		res.Feedback = mismatchFeedback(p.Expected, exec.Result)
	}
	return s.applyAntiCheat(req, res)
}

// applyAntiCheat attaches flags to res and voids a pass when a flag the
// policy blocks was raised.
func (s *Service) applyAntiCheat(req Request, res domain.ValidationResult) domain.ValidationResult {
	p := req.Problem
	flags := s.detector.Detect(anticheat.Submission{
		Language:         req.Language,
		Code:             req.Code,
		Setup:            p.Setup,
		Expected:         p.Expected,
		RequiredPatterns: p.RequiredPatterns,
	})
	res.AntiCheatFlags = flags
	if len(flags) == 0 {
		return res
	}

	blocking := s.policy.Blocking(flags)
	if res.Success && len(blocking) > 0 {
		res.Success = false
		res.FailureKind = domain.FailureCheatFlagged
		res.Feedback = cheatFeedback(blocking[0])
		return res
	}
	if res.Success {
		res.Feedback += " " + advisoryNote(flags[0])
	}
	return res
}

func (s *Service) publish(req Request, res domain.ValidationResult, d time.Duration) {
	runID := uuid.Nil
	if req.Run != nil {
		runID = req.Run.ID
	}
	id := problemID(req.Problem)

	s.events.Publish(domain.NewSubmissionValidatedEvent(runID, id, req.Language, res, d))
	if len(res.AntiCheatFlags) > 0 {
		blocking := res.FailureKind == domain.FailureCheatFlagged
		s.events.Publish(domain.NewCheatFlaggedEvent(runID, id, res.AntiCheatFlags, blocking))
	}

	s.logger.Debug("submission validated",
		"problem_id", id,
		"language", req.Language,
		"success", res.Success,
		"failure_kind", res.FailureKind,
		"mode", res.Mode,
		"flags", len(res.AntiCheatFlags),
		"duration", d,
	)
}

func failed(kind domain.FailureKind, feedback string, mode domain.Mode) domain.ValidationResult {
	return domain.ValidationResult{
		Feedback:    feedback,
		FailureKind: kind,
		Mode:        mode,
	}
}

func problemID(p *domain.Problem) string {
	if p == nil {
		return ""
	}
	return p.ID
}
