package validator

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/drillpad/internal/anticheat"
	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/runner"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// fakeExecutor returns a canned result and counts calls.
type fakeExecutor struct {
	langs  []domain.Language
	result *domain.ExecutionResult
	err    error
	panic  bool
	calls  atomic.Int32
}

func (f *fakeExecutor) Supports(lang domain.Language) bool {
	for _, l := range f.langs {
		if l == lang {
			return true
		}
	}
	return false
}

func (f *fakeExecutor) Execute(_ context.Context, _ runner.ExecuteRequest) (*domain.ExecutionResult, error) {
	f.calls.Add(1)
	if f.panic {
		panic("evaluator exploded")
	}
	return f.result, f.err
}

func (f *fakeExecutor) ExecuteAsync(ctx context.Context, req runner.ExecuteRequest) <-chan *domain.ExecutionResult {
	ch := make(chan *domain.ExecutionResult, 1)
	res, _ := f.Execute(ctx, req)
	ch <- res
	close(ch)
	return ch
}

func jsOnly(res *domain.ExecutionResult) *fakeExecutor {
	return &fakeExecutor{langs: []domain.Language{domain.LanguageJavaScript}, result: res}
}

func newJSService(t *testing.T) *Service {
	t.Helper()
	reg := runner.NewRegistry()
	reg.Register(runner.NewJSRuntime(domain.LanguageJavaScript, nil))
	reg.Register(runner.NewJSRuntime(domain.LanguageTypeScript, nil))
	return NewService(runner.NewService(runner.DefaultConfig(), reg, nil), nil)
}

func TestValidateSubmission_Scenarios(t *testing.T) {
	svc := newJSService(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		problem     *domain.Problem
		code        string
		wantSuccess bool
		wantKind    domain.FailureKind
		wantFlag    domain.FlagKind
		contains    string
	}{
		{
			name:        "computed answer",
			problem:     &domain.Problem{ID: "a", Expected: value.Number(2)},
			code:        "return 1 + 1;",
			wantSuccess: true,
			contains:    "Correct",
		},
		{
			name: "hardcoded answer ignores setup",
			problem: &domain.Problem{
				ID:       "b",
				Setup:    "const nums = [1, 1];",
				Expected: value.Number(2),
			},
			code:     "return 2;",
			wantKind: domain.FailureCheatFlagged,
			wantFlag: domain.FlagLiteralHardcode,
		},
		{
			name:     "syntax error",
			problem:  &domain.Problem{ID: "c", Expected: value.Number(2)},
			code:     "return 1 +",
			wantKind: domain.FailureSyntax,
			contains: "Syntax error",
		},
		{
			name: "uses setup",
			problem: &domain.Problem{
				ID:       "sum",
				Setup:    "const nums = [1, 2, 3];",
				Expected: value.Number(6),
			},
			code:        "return nums.reduce((a, b) => a + b, 0);",
			wantSuccess: true,
		},
		{
			name: "wrong value",
			problem: &domain.Problem{
				ID:       "evens",
				Setup:    "const nums = [1, 2, 3, 4];",
				Expected: value.List{value.Number(2), value.Number(4)},
			},
			code:     "return nums.filter(n => n % 2 === 1);",
			wantKind: domain.FailureMismatch,
			contains: "Expected [2, 4], but got [1, 3]",
		},
		{
			name: "forgot to return",
			problem: &domain.Problem{
				ID:       "evens",
				Setup:    "const nums = [1, 2, 3, 4];",
				Expected: value.List{value.Number(2), value.Number(4)},
			},
			code:     "const out = nums.filter(n => n % 2 === 0);",
			wantKind: domain.FailureMismatch,
			contains: "forget to return",
		},
		{
			name:     "runtime error",
			problem:  &domain.Problem{ID: "r", Expected: value.Number(1)},
			code:     "return missing + 1;",
			wantKind: domain.FailureRuntime,
			contains: "is not defined",
		},
		{
			name:     "infinite loop",
			problem:  &domain.Problem{ID: "t", Expected: value.Number(1)},
			code:     "while (true) {}",
			wantKind: domain.FailureTimeout,
			contains: "Time limit exceeded",
		},
		{
			name: "typescript",
			problem: &domain.Problem{
				ID:       "ts",
				Language: domain.LanguageTypeScript,
				Setup:    "const words: string[] = ['b', 'a'];",
				Expected: value.List{value.String("a"), value.String("b")},
			},
			code:        "const sorted: string[] = [...words].sort();\nreturn sorted;",
			wantSuccess: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lang := tc.problem.Language
			if lang == "" {
				lang = domain.LanguageJavaScript
			}
			svc := svc
			if tc.wantKind == domain.FailureTimeout {
				svc = fastTimeoutService(t)
			}

			res := svc.ValidateSubmission(ctx, lang, tc.problem, tc.code)

			if res.Success != tc.wantSuccess {
				t.Fatalf("Success = %v, want %v (feedback %q)", res.Success, tc.wantSuccess, res.Feedback)
			}
			if res.FailureKind != tc.wantKind {
				t.Errorf("FailureKind = %q, want %q", res.FailureKind, tc.wantKind)
			}
			if tc.wantFlag != "" && !res.HasFlag(tc.wantFlag) {
				t.Errorf("flags = %+v, want %s", res.AntiCheatFlags, tc.wantFlag)
			}
			if tc.wantSuccess && len(res.AntiCheatFlags) != 0 {
				t.Errorf("unexpected flags %+v", res.AntiCheatFlags)
			}
			if !strings.Contains(res.Feedback, tc.contains) {
				t.Errorf("Feedback = %q, want it to contain %q", res.Feedback, tc.contains)
			}
			if res.Mode != domain.ModeExecuted {
				t.Errorf("Mode = %q, want executed", res.Mode)
			}
		})
	}
}

func fastTimeoutService(t *testing.T) *Service {
	t.Helper()
	reg := runner.NewRegistry()
	reg.Register(runner.NewJSRuntime(domain.LanguageJavaScript, nil))
	cfg := runner.DefaultConfig()
	cfg.TimeBudget = 50 * time.Millisecond
	return NewService(runner.NewService(cfg, reg, nil), nil)
}

func TestValidateSubmission_StructuralShortCircuit(t *testing.T) {
	exec := jsOnly(domain.NewExecutionSuccess(value.Number(6), nil))
	svc := NewService(exec, nil)

	problem := &domain.Problem{
		ID:               "sum",
		Setup:            "const nums = [1, 2, 3];",
		Expected:         value.Number(6),
		RequiredPatterns: []*regexp.Regexp{regexp.MustCompile(`\.reduce\(`)},
		PatternNote:      "Array.prototype.reduce",
	}

	res := svc.ValidateSubmission(context.Background(), domain.LanguageJavaScript, problem, "return 6;")

	if res.Success || res.FailureKind != domain.FailureStructural {
		t.Fatalf("result = %+v, want structural failure", res)
	}
	if !strings.Contains(res.Feedback, "expected method or pattern") || !strings.Contains(res.Feedback, "reduce") {
		t.Errorf("Feedback = %q", res.Feedback)
	}
	if n := exec.calls.Load(); n != 0 {
		t.Errorf("executor called %d times, want 0", n)
	}
	if len(res.AntiCheatFlags) != 0 {
		t.Errorf("flags = %+v, want none", res.AntiCheatFlags)
	}
}

func TestValidateSubmission_EmptyCode(t *testing.T) {
	exec := jsOnly(domain.NewExecutionSuccess(value.Number(1), nil))
	svc := NewService(exec, nil)

	res := svc.ValidateSubmission(context.Background(), domain.LanguageJavaScript, &domain.Problem{Expected: value.Number(1)}, "  \n\t")

	if res.Success || res.FailureKind != domain.FailureStructural {
		t.Errorf("result = %+v, want structural failure", res)
	}
	if exec.calls.Load() != 0 {
		t.Error("executor should not run for empty code")
	}
}

func TestValidateSubmission_PatternOnly(t *testing.T) {
	exec := jsOnly(nil)
	svc := NewService(exec, nil)

	problem := &domain.Problem{
		ID:               "go-sort",
		Language:         domain.LanguageGo,
		Setup:            "nums := []int{3, 1, 2}",
		Expected:         value.List{value.Number(1), value.Number(2), value.Number(3)},
		RequiredPatterns: []*regexp.Regexp{regexp.MustCompile(`sort\.Ints\(`)},
	}

	res := svc.ValidateSubmission(context.Background(), domain.LanguageGo, problem, "sort.Ints(nums)\nreturn nums")
	if !res.Success || res.Mode != domain.ModePatternOnly {
		t.Fatalf("result = %+v, want pattern-only pass", res)
	}
	if res.Actual != nil {
		t.Errorf("Actual = %v, want nil when nothing ran", res.Actual)
	}

	res = svc.ValidateSubmission(context.Background(), domain.LanguageGo, problem, "return nums")
	if res.Success || res.FailureKind != domain.FailureStructural || res.Mode != domain.ModePatternOnly {
		t.Errorf("result = %+v, want pattern-only structural failure", res)
	}

	if exec.calls.Load() != 0 {
		t.Error("executor should never run in pattern-only mode")
	}
}

func TestValidateSubmission_Policy(t *testing.T) {
	problem := &domain.Problem{
		ID:       "b",
		Setup:    "const nums = [1, 1];",
		Expected: value.Number(2),
	}
	exec := jsOnly(domain.NewExecutionSuccess(value.Number(2), nil))

	svc := NewService(exec, nil)
	svc.SetPolicy(anticheat.NewPolicy())

	res := svc.ValidateSubmission(context.Background(), domain.LanguageJavaScript, problem, "return 2;")
	if !res.Success {
		t.Fatalf("advisory-only policy should not fail: %+v", res)
	}
	if !res.HasFlag(domain.FlagLiteralHardcode) {
		t.Errorf("flag should still be attached: %+v", res.AntiCheatFlags)
	}
	if !strings.Contains(res.Feedback, "Note:") {
		t.Errorf("Feedback = %q, want an advisory note", res.Feedback)
	}
}

func TestValidateSubmission_FlagsOnMismatch(t *testing.T) {
	exec := jsOnly(domain.NewExecutionSuccess(value.Number(3), nil))
	svc := NewService(exec, nil)

	problem := &domain.Problem{ID: "x", Setup: "const x = 1;", Expected: value.Number(2)}
	res := svc.ValidateSubmission(context.Background(), domain.LanguageJavaScript, problem, `return eval("x + 2");`)

	if res.FailureKind != domain.FailureMismatch {
		t.Errorf("FailureKind = %q, want mismatch", res.FailureKind)
	}
	if !res.HasFlag(domain.FlagSuspicious) {
		t.Errorf("anti-cheat should run on a failing result too: %+v", res.AntiCheatFlags)
	}
}

func TestValidateSubmission_NeverPanics(t *testing.T) {
	svc := NewService(&fakeExecutor{langs: []domain.Language{domain.LanguageJavaScript}, panic: true}, nil)

	res := svc.ValidateSubmission(context.Background(), domain.LanguageJavaScript, &domain.Problem{Expected: value.Number(1)}, "return 1;")
	if res.Success || res.FailureKind != domain.FailureRuntime {
		t.Errorf("result = %+v, want runtime failure", res)
	}

	res = svc.ValidateSubmission(context.Background(), domain.LanguageJavaScript, nil, "return 1;")
	if res.Success {
		t.Error("nil problem should fail")
	}
}

func TestValidateSubmission_ExecutorError(t *testing.T) {
	exec := jsOnly(nil)
	exec.err = domain.ErrNoRuntime
	svc := NewService(exec, nil)

	res := svc.ValidateSubmission(context.Background(), domain.LanguageJavaScript, &domain.Problem{Expected: value.Number(1)}, "return 1;")
	if res.FailureKind != domain.FailureRuntime || !strings.Contains(res.Feedback, "runtime unavailable") {
		t.Errorf("result = %+v", res)
	}
}

func TestValidateSubmissionAsync(t *testing.T) {
	svc := newJSService(t)
	problem := &domain.Problem{ID: "a", Expected: value.Number(2)}

	res, ok := <-svc.ValidateSubmissionAsync(context.Background(), domain.LanguageJavaScript, problem, "return 1 + 1;")
	if !ok || !res.Success {
		t.Fatalf("async result = %+v, %v", res, ok)
	}

	direct := svc.ValidateSubmission(context.Background(), domain.LanguageJavaScript, problem, "return 1 + 1;")
	if direct.Success != res.Success || direct.Feedback != res.Feedback {
		t.Errorf("async %+v differs from sync %+v", res, direct)
	}
}

func TestValidate_Events(t *testing.T) {
	exec := jsOnly(domain.NewExecutionSuccess(value.Number(2), nil))
	svc := NewService(exec, nil)

	var mu sync.Mutex
	var types []string
	events := domain.NewEventDispatcher()
	events.SubscribeAll(func(e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.EventType())
	})
	svc.SetEventDispatcher(events)

	run := domain.NewRun(domain.RunKindValidate, "b", domain.LanguageJavaScript)
	var validated domain.SubmissionValidatedEvent
	events.Subscribe(domain.EventSubmissionValidated, func(e domain.Event) {
		validated = e.(domain.SubmissionValidatedEvent)
	})

	svc.Validate(context.Background(), Request{
		Run:      run,
		Language: domain.LanguageJavaScript,
		Problem:  &domain.Problem{ID: "b", Setup: "const a = 1;", Expected: value.Number(2)},
		Code:     "return 2;",
	})

	mu.Lock()
	defer mu.Unlock()
	want := []string{domain.EventSubmissionValidated, domain.EventCheatFlagged}
	if len(types) != len(want) || types[0] != want[0] || types[1] != want[1] {
		t.Errorf("events = %v, want %v", types, want)
	}
	if validated.RunID() != run.ID || validated.FailureKind != domain.FailureCheatFlagged {
		t.Errorf("validated event = %+v", validated)
	}
}

func TestEvaluate_Execution(t *testing.T) {
	exec := jsOnly(domain.NewExecutionSuccess(value.Number(1), []string{"hi"}))
	svc := NewService(exec, nil)
	problem := &domain.Problem{
		Expected:         value.Number(1),
		RequiredPatterns: []*regexp.Regexp{regexp.MustCompile(`x`)},
	}

	ev := svc.Evaluate(context.Background(), Request{Language: domain.LanguageJavaScript, Problem: problem, Code: "return x;"})
	if ev.Execution == nil || !ev.Validation.Success {
		t.Fatalf("Evaluate() = %+v", ev)
	}
	if len(ev.Validation.DiagnosticsLog) != 1 {
		t.Errorf("DiagnosticsLog = %v", ev.Validation.DiagnosticsLog)
	}

	ev = svc.Evaluate(context.Background(), Request{Language: domain.LanguageJavaScript, Problem: problem, Code: "return 1;"})
	if ev.Execution != nil {
		t.Errorf("Execution = %+v, want nil after a structural failure", ev.Execution)
	}
}
