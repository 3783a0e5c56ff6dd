package daemon

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// The wire shapes below keep the domain types free of JSON concerns.
// Values travel in their tagged JSON encoding next to a display string.

type problemSummary struct {
	ID         string   `json:"id"`
	PackID     string   `json:"pack_id"`
	Language   string   `json:"language"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags,omitempty"`
	TestCases  int      `json:"test_cases"`
}

type problemDetail struct {
	problemSummary
	Prompt          string          `json:"prompt"`
	Setup           string          `json:"setup"`
	Expected        json.RawMessage `json:"expected"`
	ExpectedDisplay string          `json:"expected_display"`
	Hints           []string        `json:"hints,omitempty"`
	Patterns        []string        `json:"required_patterns,omitempty"`
	PatternNote     string          `json:"pattern_note,omitempty"`
	Executable      bool            `json:"executable"`
}

func summarize(p *domain.Problem) problemSummary {
	return problemSummary{
		ID:         p.ID,
		PackID:     p.PackID,
		Language:   string(p.Language),
		Category:   p.Category,
		Difficulty: string(p.Difficulty),
		Title:      p.Title,
		Tags:       p.Tags,
		TestCases:  len(p.TestCases),
	}
}

func detail(p *domain.Problem, executable bool) problemDetail {
	return problemDetail{
		problemSummary:  summarize(p),
		Prompt:          p.Prompt,
		Setup:           p.Setup,
		Expected:        rawValue(p.Expected),
		ExpectedDisplay: value.Display(p.Expected),
		Hints:           p.Hints,
		Patterns:        p.PatternSources(),
		PatternNote:     p.PatternNote,
		Executable:      executable,
	}
}

type errorView struct {
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

type executionView struct {
	RunID      uuid.UUID       `json:"run_id"`
	Success    bool            `json:"success"`
	Result     json.RawMessage `json:"result,omitempty"`
	Display    string          `json:"display,omitempty"`
	Error      *errorView      `json:"error,omitempty"`
	Logs       []string        `json:"logs"`
	DurationMS int64           `json:"duration_ms"`
}

func viewExecution(runID uuid.UUID, res *domain.ExecutionResult) executionView {
	v := executionView{
		RunID:      runID,
		Success:    res.Success,
		Logs:       nonNil(res.DiagnosticsLog),
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Success {
		v.Result = rawValue(res.Result)
		v.Display = value.Display(res.Result)
	}
	if res.Error != nil {
		v.Error = &errorView{Kind: string(res.Error.Kind), Name: res.Error.Name, Message: res.Error.Message}
	}
	return v
}

type flagView struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

type validationView struct {
	RunID         uuid.UUID       `json:"run_id"`
	ProblemID     string          `json:"problem_id,omitempty"`
	Success       bool            `json:"success"`
	Feedback      string          `json:"feedback"`
	FailureKind   string          `json:"failure_kind,omitempty"`
	Mode          string          `json:"mode"`
	Flags         []flagView      `json:"anti_cheat_flags"`
	Actual        json.RawMessage `json:"actual,omitempty"`
	ActualDisplay string          `json:"actual_display,omitempty"`
	Logs          []string        `json:"logs"`
}

func viewValidation(runID uuid.UUID, problemID string, res domain.ValidationResult) validationView {
	v := validationView{
		RunID:       runID,
		ProblemID:   problemID,
		Success:     res.Success,
		Feedback:    res.Feedback,
		FailureKind: string(res.FailureKind),
		Mode:        string(res.Mode),
		Flags:       make([]flagView, 0, len(res.AntiCheatFlags)),
		Logs:        nonNil(res.DiagnosticsLog),
	}
	for _, f := range res.AntiCheatFlags {
		v.Flags = append(v.Flags, flagView{Kind: string(f.Kind), Detail: f.Detail})
	}
	if res.Actual != nil {
		v.Actual = rawValue(res.Actual)
		v.ActualDisplay = value.Display(res.Actual)
	}
	return v
}

type caseView struct {
	Index       int            `json:"index"`
	Description string         `json:"description,omitempty"`
	Validation  validationView `json:"validation"`
	DurationMS  int64          `json:"duration_ms"`
}

type testRunView struct {
	RunID           uuid.UUID  `json:"run_id"`
	ProblemID       string     `json:"problem_id"`
	AllPassed       bool       `json:"all_passed"`
	Passed          int        `json:"passed"`
	Failed          int        `json:"failed"`
	TotalDurationMS int64      `json:"total_duration_ms"`
	Cases           []caseView `json:"cases"`
}

func viewTestRun(runID uuid.UUID, problemID string, res domain.TestRunResults) testRunView {
	v := testRunView{
		RunID:           runID,
		ProblemID:       problemID,
		AllPassed:       res.AllPassed,
		Passed:          res.Passed(),
		Failed:          res.Failed(),
		TotalDurationMS: res.TotalDuration.Milliseconds(),
		Cases:           make([]caseView, 0, len(res.CaseResults)),
	}
	for _, c := range res.CaseResults {
		v.Cases = append(v.Cases, caseView{
			Index:       c.Index,
			Description: c.TestCase.Description,
			Validation:  viewValidation(uuid.Nil, "", c.Validation),
			DurationMS:  c.Duration.Milliseconds(),
		})
	}
	return v
}

type runView struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	ProblemID string    `json:"problem_id,omitempty"`
	Language  string    `json:"language"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

func viewRun(r *domain.Run) runView {
	return runView{
		ID:        r.ID,
		Kind:      string(r.Kind),
		ProblemID: r.ProblemID,
		Language:  string(r.Language),
		Status:    string(r.Status),
		StartedAt: r.StartedAt,
		ElapsedMS: r.Elapsed().Milliseconds(),
	}
}

func rawValue(v value.Value) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := value.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
