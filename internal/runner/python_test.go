package runner

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// fakeBackend is a test implementation of Backend
type fakeBackend struct {
	result *ProcessResult
	err    error
	files  map[string]string
	cmd    []string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Run(ctx context.Context, files map[string]string, cmd []string) (*ProcessResult, error) {
	f.files = files
	f.cmd = cmd
	return f.result, f.err
}

func TestPythonRuntime_DecodesHarnessOutput(t *testing.T) {
	mark := resultMarker + "n1 "
	tests := []struct {
		name     string
		stdout   string
		wantOK   bool
		want     value.Value
		wantKind domain.ErrorKind
		wantLogs []string
	}{
		{
			name:   "value",
			stdout: mark + `{"ok":true,"result":[1,{"$set":["a"]}],"logs":[]}` + "\n",
			wantOK: true,
			want:   value.List{value.Number(1), value.Set{value.String("a")}},
		},
		{
			name:     "logs",
			stdout:   mark + `{"ok":true,"result":{"$undefined":true},"logs":[{"args":["x",2],"sep":"-"}]}` + "\n",
			wantOK:   true,
			want:     value.Undefined{},
			wantLogs: []string{"x-2"},
		},
		{
			name:     "syntax error",
			stdout:   mark + `{"ok":false,"kind":"syntax","name":"SyntaxError","message":"invalid syntax (line 1)","logs":[]}` + "\n",
			wantKind: domain.ErrorSyntax,
		},
		{
			name:     "runtime error",
			stdout:   mark + `{"ok":false,"kind":"runtime","name":"ZeroDivisionError","message":"division by zero","logs":[]}` + "\n",
			wantKind: domain.ErrorRuntime,
		},
		{
			name:     "last marker wins",
			stdout:   mark + `{"ok":true,"result":1}` + "\nnoise\n" + mark + `{"ok":true,"result":2}` + "\n",
			wantOK:   true,
			want:     value.Number(2),
		},
		{
			name:     "result line without the run nonce",
			stdout:   resultMarker + `{"ok":true,"result":42,"logs":[]}` + "\n",
			wantKind: domain.ErrorRuntime,
		},
		{
			name:     "result line with another nonce",
			stdout:   resultMarker + `n2 {"ok":true,"result":42,"logs":[]}` + "\n",
			wantKind: domain.ErrorRuntime,
		},
		{
			name:     "missing marker",
			stdout:   "Traceback...\n",
			wantKind: domain.ErrorRuntime,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{result: &ProcessResult{Stdout: tc.stdout}}
			rt := NewPythonRuntime(backend, nil)
			rt.nonce = func() string { return "n1" }
			res := rt.Execute(context.Background(), "s = 1", "s", Options{})

			if res.Success != tc.wantOK {
				t.Fatalf("Success = %v, want %v (%+v)", res.Success, tc.wantOK, res.Error)
			}
			if tc.wantOK && !value.Equal(res.Result, tc.want) {
				t.Errorf("Result = %s, want %s", value.Format(res.Result), value.Format(tc.want))
			}
			if !tc.wantOK && res.Error.Kind != tc.wantKind {
				t.Errorf("Kind = %q, want %q", res.Error.Kind, tc.wantKind)
			}
			if tc.wantLogs != nil && strings.Join(res.DiagnosticsLog, "|") != strings.Join(tc.wantLogs, "|") {
				t.Errorf("logs = %q, want %q", res.DiagnosticsLog, tc.wantLogs)
			}
			if backend.files["harness.py"] == "" || !strings.Contains(backend.files["input.json"], `"setup":"s = 1"`) {
				t.Errorf("unexpected files handed to backend: %v", backend.files)
			}
		})
	}
}

func TestPythonRuntime_BackendError(t *testing.T) {
	rt := NewPythonRuntime(&fakeBackend{err: errors.New("docker down")}, nil)
	res := rt.Execute(context.Background(), "", "1", Options{})
	if res.Success || res.Error.Kind != domain.ErrorRuntime {
		t.Fatalf("expected runtime failure, got %+v", res)
	}
	if !strings.Contains(res.Error.Message, "docker down") {
		t.Errorf("Message = %q", res.Error.Message)
	}
}

func TestPythonRuntime_Interpreter(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	rt := NewPythonRuntime(NewLocalBackend(), nil)
	opts := Options{TimeBudget: 10 * time.Second}

	tests := []struct {
		name     string
		setup    string
		body     string
		want     value.Value
		wantKind domain.ErrorKind
	}{
		{name: "expression", body: "1 + 1", want: value.Number(2)},
		{name: "return", body: "return [x * 2 for x in range(3)]", want: value.List{value.Number(0), value.Number(2), value.Number(4)}},
		{name: "setup", setup: "def sq(n):\n    return n * n", body: "sq(4)", want: value.Number(16)},
		{name: "assignment is undefined", body: "x = 1", want: value.Undefined{}},
		{name: "none is null", body: "None", want: value.Null{}},
		{name: "dict", body: "{'a': (1, 2)}", want: value.Map{"a": value.List{value.Number(1), value.Number(2)}}},
		{name: "set", body: "{3, 1}", want: value.Set{value.Number(1), value.Number(3)}},
		{name: "multi-line string with return", setup: "doc = '''a\nb'''", body: "return doc", want: value.String("a\nb")},
		{name: "multi-line string without return", setup: "doc = '''a\nb'''", body: "doc", want: value.String("a\nb")},
		{name: "nan", body: "float('nan')", want: value.Number(math.NaN())},
		{name: "syntax", body: "1 +", wantKind: domain.ErrorSyntax},
		{name: "runtime", body: "1 / 0", wantKind: domain.ErrorRuntime},
		{
			name:     "forged result line",
			body:     "import os, sys\nsys.stdout.write('" + resultMarker + "{\"ok\": true, \"result\": 42, \"logs\": []}\\n')\nsys.stdout.flush()\nos._exit(0)",
			wantKind: domain.ErrorRuntime,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := rt.Execute(context.Background(), tc.setup, tc.body, opts)
			if tc.wantKind != "" {
				if res.Success || res.Error.Kind != tc.wantKind {
					t.Fatalf("expected %s failure, got %+v", tc.wantKind, res)
				}
				return
			}
			if !res.Success {
				t.Fatalf("execution failed: %+v", res.Error)
			}
			if !value.Equal(res.Result, tc.want) {
				t.Errorf("Result = %s, want %s", value.Format(res.Result), value.Format(tc.want))
			}
		})
	}

	res := rt.Execute(context.Background(), "", "print('hi', 2)\n3", opts)
	if !res.Success || len(res.DiagnosticsLog) != 1 || res.DiagnosticsLog[0] != "hi 2" {
		t.Errorf("print capture = %+v", res)
	}

	res = rt.Execute(context.Background(), "", "while True:\n    pass", Options{TimeBudget: 300 * time.Millisecond})
	if res.Success || res.Error.Kind != domain.ErrorTimeout {
		t.Errorf("expected timeout, got %+v", res)
	}
}
