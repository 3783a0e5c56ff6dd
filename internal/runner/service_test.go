package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// mockRuntime is a test implementation of Runtime
type mockRuntime struct {
	lang    domain.Language
	result  *domain.ExecutionResult
	block   bool
	gotOpts Options
}

func (m *mockRuntime) Language() domain.Language { return m.lang }

func (m *mockRuntime) Execute(ctx context.Context, setup, body string, opts Options) *domain.ExecutionResult {
	m.gotOpts = opts
	if m.block {
		<-ctx.Done()
		return timeoutFailure(ctx, opts.TimeBudget, nil)
	}
	if m.result != nil {
		return m.result
	}
	return domain.NewExecutionSuccess(value.String(setup+body), nil)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TimeBudget != 5*time.Second {
		t.Errorf("TimeBudget = %v, want 5s", cfg.TimeBudget)
	}
	if cfg.MaxCallStackSize != defaultMaxCallStack {
		t.Errorf("MaxCallStackSize = %d, want %d", cfg.MaxCallStackSize, defaultMaxCallStack)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockRuntime{lang: domain.LanguagePython})
	reg.Register(&mockRuntime{lang: domain.LanguageJavaScript})

	if !reg.Supports(domain.LanguagePython) {
		t.Error("python should be supported")
	}
	if reg.Supports(domain.LanguageRust) {
		t.Error("rust should not be supported")
	}

	if _, err := reg.Get(domain.LanguageRust); !errors.Is(err, domain.ErrNoRuntime) {
		t.Errorf("Get(rust) error = %v, want ErrNoRuntime", err)
	}

	langs := reg.Languages()
	if len(langs) != 2 || langs[0] != domain.LanguageJavaScript || langs[1] != domain.LanguagePython {
		t.Errorf("Languages() = %v", langs)
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	reg := NewDefaultRegistry(nil, nil)
	if !reg.Supports(domain.LanguageJavaScript) || !reg.Supports(domain.LanguageTypeScript) {
		t.Error("JavaScript and TypeScript should always be registered")
	}
	if reg.Supports(domain.LanguagePython) {
		t.Error("Python needs a backend")
	}

	reg = NewDefaultRegistry(NewLocalBackend(), nil)
	if !reg.Supports(domain.LanguagePython) {
		t.Error("Python should be registered with a backend")
	}
}

func TestService_Execute(t *testing.T) {
	rt := &mockRuntime{lang: domain.LanguageJavaScript}
	reg := NewRegistry()
	reg.Register(rt)
	svc := NewService(DefaultConfig(), reg, nil)

	res, err := svc.Execute(context.Background(), ExecuteRequest{
		Language: domain.LanguageJavaScript,
		Setup:    "a",
		Body:     "b",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(res.Result, value.String("ab")) {
		t.Errorf("Result = %s", value.Format(res.Result))
	}
	if rt.gotOpts.TimeBudget != 5*time.Second {
		t.Errorf("default time budget not applied: %v", rt.gotOpts.TimeBudget)
	}

	_, err = svc.Execute(context.Background(), ExecuteRequest{Language: domain.LanguageGo})
	if !errors.Is(err, domain.ErrNoRuntime) {
		t.Errorf("Execute(go) error = %v, want ErrNoRuntime", err)
	}
}

func TestService_ExecuteAsync(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockRuntime{lang: domain.LanguageJavaScript})
	svc := NewService(DefaultConfig(), reg, nil)

	ch := svc.ExecuteAsync(context.Background(), ExecuteRequest{Language: domain.LanguageJavaScript, Body: "x"})
	res, ok := <-ch
	if !ok || res == nil || !res.Success {
		t.Fatalf("expected one successful result, got %+v", res)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after the result")
	}

	res = <-svc.ExecuteAsync(context.Background(), ExecuteRequest{Language: domain.LanguageGo})
	if res.Success || res.Error.Kind != domain.ErrorRuntime {
		t.Errorf("unsupported language should yield a runtime failure, got %+v", res)
	}
}

func TestService_CancelRun(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockRuntime{lang: domain.LanguageJavaScript, block: true})
	svc := NewService(Config{TimeBudget: time.Minute}, reg, nil)

	run := domain.NewRun(domain.RunKindExecute, "", domain.LanguageJavaScript)
	ch := svc.ExecuteAsync(context.Background(), ExecuteRequest{Run: run, Language: domain.LanguageJavaScript})

	deadline := time.Now().Add(2 * time.Second)
	for !svc.IsRunning(run.ID) {
		if time.Now().After(deadline) {
			t.Fatal("run never registered")
		}
		time.Sleep(time.Millisecond)
	}
	if got := svc.Running(); len(got) != 1 || got[0].ID != run.ID {
		t.Errorf("Running() = %v", got)
	}

	if err := svc.Cancel(run.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	res := <-ch
	if res.Error == nil || res.Error.Kind != domain.ErrorTimeout {
		t.Errorf("cancelled run result = %+v", res)
	}

	if err := svc.Wait(context.Background(), run.ID); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if svc.IsRunning(run.ID) {
		t.Error("run should no longer be tracked")
	}
	if err := svc.Cancel(run.ID); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Cancel(finished) error = %v, want ErrRunNotFound", err)
	}
}
