package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/drillpad/internal/app"
	"github.com/felixgeelhaar/drillpad/internal/config"
	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/problem"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

func testProblems() []*domain.Problem {
	return []*domain.Problem{
		{
			ID:             "js-arrays/filter-evens",
			PackID:         "js-arrays",
			Language:       domain.LanguageJavaScript,
			Category:       "arrays",
			Difficulty:     domain.DifficultyEasy,
			Title:          "Filter evens",
			Setup:          "const nums = [1, 2, 3, 4];",
			Expected:       value.List{value.Number(2), value.Number(4)},
			SampleSolution: "return nums.filter(n => n % 2 === 0);",
			RequiredPatterns: []*regexp.Regexp{
				regexp.MustCompile(`\.filter\(`),
			},
			Tags: []string{"filter"},
			TestCases: []domain.TestCase{
				{Setup: "const nums = [1, 2, 3, 4];", Expected: value.List{value.Number(2), value.Number(4)}, Description: "mixed"},
				{Setup: "const nums = [5, 6];", Expected: value.List{value.Number(6)}, Description: "short"},
			},
		},
		{
			ID:         "py-basics/double",
			PackID:     "py-basics",
			Language:   domain.LanguagePython,
			Difficulty: domain.DifficultyEasy,
			Title:      "Double",
			Setup:      "x = 21",
			Expected:   value.Number(42),
			RequiredPatterns: []*regexp.Regexp{
				regexp.MustCompile(`\*\s*2`),
			},
		},
	}
}

// setupTestServer creates a server over an in-memory bank with python
// disabled
func setupTestServer(t *testing.T, mutate ...func(*config.LocalConfig)) *Server {
	t.Helper()

	cfg := config.DefaultLocalConfig()
	cfg.Runner.Python = config.PythonNone
	cfg.Runner.TimeBudgetMS = 500
	cfg.Limits.RequestsPerSecond = 1000
	cfg.Limits.Burst = 1000
	for _, m := range mutate {
		m(cfg)
	}

	a, err := app.New(context.Background(), app.Options{
		Config: cfg,
		Source: problem.StaticSource{Problems: testProblems()},
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	s := NewServer(a)
	t.Cleanup(func() {
		s.limiter.Close()
		a.Close()
	})
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	s := setupTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get(CorrelationIDHeader) == "" {
		t.Error("missing correlation id header")
	}

	resp := decodeBody[map[string]any](t, rec)
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	if resp["problems"] != float64(2) {
		t.Errorf("problems = %v, want 2", resp["problems"])
	}
}

func TestLanguagesEndpoint(t *testing.T) {
	s := setupTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/languages", nil)
	resp := decodeBody[struct {
		Languages []struct {
			Name       string `json:"name"`
			Executable bool   `json:"executable"`
			Problems   int    `json:"problems"`
		} `json:"languages"`
	}](t, rec)

	got := make(map[string]bool)
	for _, l := range resp.Languages {
		got[l.Name] = l.Executable
	}
	if !got["javascript"] || !got["typescript"] {
		t.Errorf("javascript and typescript should be executable: %v", got)
	}
	if exec, ok := got["python"]; !ok || exec {
		t.Errorf("python should be listed and not executable: %v", got)
	}
}

func TestListProblems(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		query string
		want  int
		code  int
	}{
		{"", 2, http.StatusOK},
		{"?language=js", 1, http.StatusOK},
		{"?tag=filter", 1, http.StatusOK},
		{"?difficulty=hard", 0, http.StatusOK},
		{"?language=cobol", 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/problems"+tt.query, nil)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			resp := decodeBody[struct {
				Problems []problemSummary `json:"problems"`
			}](t, rec)
			if len(resp.Problems) != tt.want {
				t.Errorf("problems = %d, want %d", len(resp.Problems), tt.want)
			}
		})
	}
}

func TestGetProblem(t *testing.T) {
	s := setupTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/problems/javascript/js-arrays/filter-evens", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	p := decodeBody[problemDetail](t, rec)
	if p.Title != "Filter evens" || !p.Executable {
		t.Errorf("problem = %+v", p)
	}
	if p.ExpectedDisplay != "[2, 4]" {
		t.Errorf("expected_display = %q", p.ExpectedDisplay)
	}
	if strings.Contains(rec.Body.String(), "sample_solution") {
		t.Error("sample solution must not be served")
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/v1/problems/python/js-arrays/filter-evens", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("wrong language status = %d, want 404", rec.Code)
	}
}

func TestExecuteEndpoint(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name     string
		body     map[string]any
		code     int
		success  bool
		errKind  string
		wantLogs int
	}{
		{"value", map[string]any{"language": "javascript", "setup": "const a = 2;", "code": "console.log('hi'); return a * 21;"}, http.StatusOK, true, "", 1},
		{"typescript", map[string]any{"language": "ts", "code": "const n: number = 4; return n;"}, http.StatusOK, true, "", 0},
		{"syntax", map[string]any{"language": "javascript", "code": "return [1, 2"}, http.StatusOK, false, "syntax", 0},
		{"timeout", map[string]any{"language": "javascript", "code": "while (true) {}"}, http.StatusOK, false, "timeout", 0},
		{"no runtime", map[string]any{"language": "go", "code": "return 1"}, http.StatusUnprocessableEntity, false, "", 0},
		{"bad strip mode", map[string]any{"language": "javascript", "code": "return 1", "strip_types": "sometimes"}, http.StatusBadRequest, false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/execute", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.code, rec.Body.String())
			}
			if tt.code != http.StatusOK {
				return
			}
			v := decodeBody[executionView](t, rec)
			if v.Success != tt.success {
				t.Errorf("success = %v, want %v", v.Success, tt.success)
			}
			if tt.errKind != "" && (v.Error == nil || v.Error.Kind != tt.errKind) {
				t.Errorf("error = %+v, want kind %s", v.Error, tt.errKind)
			}
			if len(v.Logs) != tt.wantLogs {
				t.Errorf("logs = %v, want %d entries", v.Logs, tt.wantLogs)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name        string
		body        map[string]any
		code        int
		success     bool
		failureKind string
		mode        string
	}{
		{"correct", map[string]any{"problem_id": "js-arrays/filter-evens", "code": "return nums.filter(n => n % 2 === 0);"}, http.StatusOK, true, "", "executed"},
		{"hardcoded", map[string]any{"problem_id": "js-arrays/filter-evens", "code": "const seen = [2, 4].filter(x => x > 0); return [2, 4];"}, http.StatusOK, false, "cheat_flagged", "executed"},
		{"missing pattern", map[string]any{"problem_id": "js-arrays/filter-evens", "code": "const out = []; for (const n of nums) if (n % 2 === 0) out.push(n); return out;"}, http.StatusOK, false, "structural", "executed"},
		{"pattern only", map[string]any{"problem_id": "py-basics/double", "language": "python", "code": "return x * 2"}, http.StatusOK, true, "", "pattern_only"},
		{"unknown problem", map[string]any{"problem_id": "nope/nope", "code": "return 1"}, http.StatusNotFound, false, "", ""},
		{"unknown field", map[string]any{"problem_id": "js-arrays/filter-evens", "source": "x"}, http.StatusBadRequest, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/validate", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.code, rec.Body.String())
			}
			if tt.code != http.StatusOK {
				return
			}
			v := decodeBody[validationView](t, rec)
			if v.Success != tt.success {
				t.Errorf("success = %v, want %v (feedback %q)", v.Success, tt.success, v.Feedback)
			}
			if v.FailureKind != tt.failureKind {
				t.Errorf("failure_kind = %q, want %q", v.FailureKind, tt.failureKind)
			}
			if v.Mode != tt.mode {
				t.Errorf("mode = %q, want %q", v.Mode, tt.mode)
			}
			if v.RunID == uuid.Nil {
				t.Error("missing run id")
			}
		})
	}
}

func TestValidateBatchEndpoint(t *testing.T) {
	s := setupTestServer(t)

	body := map[string]any{
		"submissions": []map[string]any{
			{"problem_id": "js-arrays/filter-evens", "code": "return nums.filter(n => n % 2 === 0);"},
			{"problem_id": "missing/problem", "code": "return 1"},
			{"problem_id": "js-arrays/filter-evens", "code": "return nums.filter(n => n > 2);"},
		},
	}
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/validate/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeBody[struct {
		Results []batchEntry `json:"results"`
	}](t, rec)

	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(resp.Results))
	}
	if r := resp.Results[0].Result; r == nil || !r.Success {
		t.Errorf("result[0] = %+v, want success", resp.Results[0])
	}
	if resp.Results[1].Error == "" {
		t.Error("result[1] should carry an error")
	}
	if r := resp.Results[2].Result; r == nil || r.Success || r.FailureKind != "mismatch" {
		t.Errorf("result[2] = %+v, want mismatch", resp.Results[2])
	}
}

func TestValidateBatchEndpoint_Limits(t *testing.T) {
	s := setupTestServer(t, func(c *config.LocalConfig) { c.Limits.MaxBatchSize = 1 })

	subs := []map[string]any{
		{"problem_id": "js-arrays/filter-evens", "code": "return 1"},
		{"problem_id": "js-arrays/filter-evens", "code": "return 2"},
	}
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/validate/batch", map[string]any{"submissions": subs})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/v1/validate/batch", map[string]any{"submissions": []any{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", rec.Code)
	}
}

func TestTestRunEndpoint(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name       string
		code       string
		variations int
		allPassed  bool
		minCases   int
	}{
		{"declared cases", "return nums.filter(n => n % 2 === 0);", 0, true, 2},
		{"with variations", "return nums.filter(n => n % 2 === 0);", 3, true, 2},
		{"wrong", "return nums.filter(n => n > 2);", 0, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/testrun", map[string]any{
				"problem_id": "js-arrays/filter-evens",
				"code":       tt.code,
				"variations": tt.variations,
				"seed":       11,
			})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
			}
			v := decodeBody[testRunView](t, rec)
			if v.AllPassed != tt.allPassed {
				t.Errorf("all_passed = %v, want %v", v.AllPassed, tt.allPassed)
			}
			if len(v.Cases) < tt.minCases {
				t.Errorf("cases = %d, want at least %d", len(v.Cases), tt.minCases)
			}
			if v.Passed+v.Failed != len(v.Cases) {
				t.Errorf("passed %d + failed %d != %d cases", v.Passed, v.Failed, len(v.Cases))
			}
		})
	}

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/testrun", map[string]any{
		"problem_id": "js-arrays/filter-evens", "code": "return 1", "variations": 100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("too many variations status = %d, want 400", rec.Code)
	}
}

func TestRunsEndpoints(t *testing.T) {
	s := setupTestServer(t, func(c *config.LocalConfig) { c.Runner.TimeBudgetMS = 10000 })
	h := s.Handler()

	var wg sync.WaitGroup
	var rec *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec = doJSON(t, h, http.MethodPost, "/v1/execute", map[string]any{
			"language": "javascript",
			"code":     "while (true) {}",
		})
	}()

	var runID uuid.UUID
	deadline := time.Now().Add(5 * time.Second)
	for runID == uuid.Nil && time.Now().Before(deadline) {
		list := doJSON(t, h, http.MethodGet, "/v1/runs", nil)
		resp := decodeBody[struct {
			Runs []runView `json:"runs"`
		}](t, list)
		if len(resp.Runs) > 0 {
			runID = resp.Runs[0].ID
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if runID == uuid.Nil {
		t.Fatal("execution never showed up in /v1/runs")
	}

	del := doJSON(t, h, http.MethodDelete, "/v1/runs/"+runID.String(), nil)
	if del.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d, want 204", del.Code)
	}
	wg.Wait()

	v := decodeBody[executionView](t, rec)
	if v.Success || v.Error == nil || v.Error.Kind != string(domain.ErrorTimeout) {
		t.Errorf("cancelled execution = %+v, want timeout failure", v)
	}

	if code := doJSON(t, h, http.MethodDelete, "/v1/runs/"+runID.String(), nil).Code; code != http.StatusNotFound {
		t.Errorf("second cancel status = %d, want 404", code)
	}
	if code := doJSON(t, h, http.MethodDelete, "/v1/runs/not-a-uuid", nil).Code; code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", code)
	}
}
