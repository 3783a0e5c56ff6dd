package runner

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

//go:embed harness.py
var pythonHarness string

const resultMarker = "__DRILLPAD_RESULT__ "

// PythonRuntime evaluates Python snippets with a python3 interpreter
// reached through a Backend. Each call starts a fresh isolated
// interpreter process.
type PythonRuntime struct {
	backend Backend
	command []string
	nonce   func() string
	logger  *slog.Logger
}

// NewPythonRuntime creates a Python runtime on top of backend.
func NewPythonRuntime(backend Backend, logger *slog.Logger) *PythonRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &PythonRuntime{
		backend: backend,
		command: []string{"python3", "-I", "harness.py", "input.json"},
		nonce:   uuid.NewString,
		logger:  logger,
	}
}

func (r *PythonRuntime) Language() domain.Language {
	return domain.LanguagePython
}

// harnessInput is removed by the harness before user code runs. Only a
// result line carrying its Nonce is accepted, so snippet output cannot
// pose as the result.
type harnessInput struct {
	Setup string `json:"setup"`
	Body  string `json:"body"`
	Nonce string `json:"nonce"`
}

type harnessOutput struct {
	OK      bool            `json:"ok"`
	Result  json.RawMessage `json:"result"`
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Logs    []struct {
		Args []json.RawMessage `json:"args"`
		Sep  string            `json:"sep"`
	} `json:"logs"`
}

func (r *PythonRuntime) Execute(ctx context.Context, setup, body string, opts Options) *domain.ExecutionResult {
	start := time.Now()
	res := r.execute(ctx, setup, body, opts)
	res.Duration = time.Since(start)
	return res
}

func (r *PythonRuntime) execute(ctx context.Context, setup, body string, opts Options) *domain.ExecutionResult {
	ctx, cancel := opts.budget(ctx)
	defer cancel()

	nonce := r.nonce()
	input, err := json.Marshal(harnessInput{Setup: setup, Body: body, Nonce: nonce})
	if err != nil {
		return domain.NewExecutionFailure(domain.ErrorRuntime, "", fmt.Sprintf("encode snippet: %v", err), nil)
	}
	files := map[string]string{
		"harness.py": pythonHarness,
		"input.json": string(input),
	}

	proc, err := r.backend.Run(ctx, files, r.command)
	if ctx.Err() != nil {
		return timeoutFailure(ctx, opts.TimeBudget, nil)
	}
	if err != nil {
		r.logger.Warn("python backend failed", "backend", r.backend.Name(), "error", err)
		return domain.NewExecutionFailure(domain.ErrorRuntime, "", fmt.Sprintf("%v: %v", domain.ErrRuntimeUnavailable, err), nil)
	}

	out, ok := lastMarkedLine(proc.Stdout, resultMarker+nonce+" ")
	if !ok {
		msg := strings.TrimSpace(proc.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("interpreter exited with code %d", proc.ExitCode)
		}
		return domain.NewExecutionFailure(domain.ErrorRuntime, "", lastLine(msg), nil)
	}

	var hout harnessOutput
	if err := json.Unmarshal([]byte(out), &hout); err != nil {
		return domain.NewExecutionFailure(domain.ErrorRuntime, "", fmt.Sprintf("decode result: %v", err), nil)
	}

	logs := make([]string, 0, len(hout.Logs))
	for _, entry := range hout.Logs {
		parts := make([]string, len(entry.Args))
		for i, raw := range entry.Args {
			v, err := value.Unmarshal(raw)
			if err != nil {
				v = value.Opaque{Desc: string(raw)}
			}
			parts[i] = value.Display(v)
		}
		logs = append(logs, strings.Join(parts, entry.Sep))
	}

	if !hout.OK {
		kind := domain.ErrorRuntime
		if hout.Kind == string(domain.ErrorSyntax) {
			kind = domain.ErrorSyntax
		}
		return domain.NewExecutionFailure(kind, hout.Name, hout.Message, logs)
	}

	result, err := value.Unmarshal(hout.Result)
	if err != nil {
		return domain.NewExecutionFailure(domain.ErrorRuntime, "", fmt.Sprintf("decode result: %v", err), logs)
	}
	return domain.NewExecutionSuccess(result, logs)
}

// lastMarkedLine returns the payload of the last line in stdout that
// starts with marker.
func lastMarkedLine(stdout, marker string) (string, bool) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(lines[i], marker); ok {
			return rest, true
		}
	}
	return "", false
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
