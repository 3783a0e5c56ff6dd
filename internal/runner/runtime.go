package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/drillpad/internal/domain"
)

// Runtime evaluates snippets for one language.
//
// Execute never returns a Go error: every outcome, including syntax
// errors, thrown exceptions, timeouts and evaluator crashes, is reported in
// the ExecutionResult.
type Runtime interface {
	Language() domain.Language
	Execute(ctx context.Context, setup, body string, opts Options) *domain.ExecutionResult
}

// StripMode controls TypeScript annotation stripping.
type StripMode int

const (
	// StripAuto strips annotations for typed languages only.
	StripAuto StripMode = iota
	StripAlways
	StripNever
)

// Options tunes a single evaluation.
type Options struct {
	StripTypes StripMode
	// TimeBudget caps wall-clock evaluation time. Zero means no limit
	// beyond the caller's context.
	TimeBudget time.Duration
	// MaxCallStackSize bounds JavaScript recursion depth.
	MaxCallStackSize int
}

const defaultMaxCallStack = 4096

func (o Options) strip(lang domain.Language) bool {
	switch o.StripTypes {
	case StripAlways:
		return true
	case StripNever:
		return false
	}
	return lang.Typed()
}

func (o Options) callStack() int {
	if o.MaxCallStackSize > 0 {
		return o.MaxCallStackSize
	}
	return defaultMaxCallStack
}

// budget derives the evaluation context from opts.TimeBudget.
func (o Options) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.TimeBudget > 0 {
		return context.WithTimeout(ctx, o.TimeBudget)
	}
	return context.WithCancel(ctx)
}

// timeoutFailure reports a context that ended before evaluation finished.
func timeoutFailure(ctx context.Context, budget time.Duration, logs []string) *domain.ExecutionResult {
	msg := "execution cancelled"
	if ctx.Err() == context.DeadlineExceeded {
		msg = "execution timed out"
		if budget > 0 {
			msg = fmt.Sprintf("execution timed out after %s", budget)
		}
	}
	return domain.NewExecutionFailure(domain.ErrorTimeout, "", msg, logs)
}

// Registry manages the available runtimes.
type Registry struct {
	mu       sync.RWMutex
	runtimes map[domain.Language]Runtime
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runtimes: make(map[domain.Language]Runtime)}
}

// Register adds a runtime, replacing any previous one for its language.
func (r *Registry) Register(rt Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtimes[rt.Language()] = rt
}

// Get returns the runtime for lang.
func (r *Registry) Get(lang domain.Language) (Runtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.runtimes[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoRuntime, lang)
	}
	return rt, nil
}

// Supports reports whether a runtime is registered for lang.
func (r *Registry) Supports(lang domain.Language) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.runtimes[lang]
	return ok
}

// Languages returns the registered languages in sorted order.
func (r *Registry) Languages() []domain.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]domain.Language, 0, len(r.runtimes))
	for lang := range r.runtimes {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// NewDefaultRegistry registers the JavaScript and TypeScript runtimes,
// plus Python when a process backend is available.
func NewDefaultRegistry(backend Backend, logger *slog.Logger) *Registry {
	reg := NewRegistry()
	reg.Register(NewJSRuntime(domain.LanguageJavaScript, logger))
	reg.Register(NewJSRuntime(domain.LanguageTypeScript, logger))
	if backend != nil {
		reg.Register(NewPythonRuntime(backend, logger))
	}
	return reg
}
