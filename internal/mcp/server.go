package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/drillpad/internal/app"
	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/problem"
	"github.com/felixgeelhaar/drillpad/internal/validator"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

const maxVariations = 20

// Server wraps the MCP server with drillpad functionality
type Server struct {
	mcpServer *server.Server
	app       *app.App
}

// NewServer creates a new MCP server over a wired application
func NewServer(a *app.App, version string) *Server {
	s := &Server{app: a}

	s.mcpServer = server.New(server.Info{
		Name:    "drillpad",
		Version: version,
	}, server.WithInstructions(`
drillpad checks short practice solutions against curated problems.
A solution is a function body: it reads the variables the problem's setup
declares and returns its answer.

Available tools:
- drill_list_problems: List problems, optionally filtered
- drill_get_problem: Show a problem's prompt, setup and expected value
- drill_validate: Check a solution against a problem
- drill_run_tests: Run a solution against every test case of a problem
`))

	s.registerTools()
	return s
}

// registerTools registers all drillpad MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("drill_list_problems").
		Description("List practice problems. Filter by language, pack, difficulty or tag.").
		Handler(s.handleListProblems)

	s.mcpServer.Tool("drill_get_problem").
		Description("Show a problem: prompt, setup, expected value and hints.").
		Handler(s.handleGetProblem)

	s.mcpServer.Tool("drill_validate").
		Description("Validate a solution body against a problem. Hardcoded answers are rejected.").
		Handler(s.handleValidate)

	s.mcpServer.Tool("drill_run_tests").
		Description("Run a solution body against every test case of a problem, plus optional generated variations.").
		Handler(s.handleRunTests)
}

// Input/Output types for tools

type ListInput struct {
	Language   string `json:"language,omitempty" jsonschema:"description=Language name or alias such as js or py"`
	Pack       string `json:"pack,omitempty" jsonschema:"description=Pack ID"`
	Difficulty string `json:"difficulty,omitempty" jsonschema:"description=Difficulty,enum=easy,enum=medium,enum=hard"`
	Tag        string `json:"tag,omitempty" jsonschema:"description=Tag"`
}

type ProblemSummary struct {
	ID         string `json:"id"`
	Language   string `json:"language"`
	Difficulty string `json:"difficulty"`
	Title      string `json:"title"`
}

type ListOutput struct {
	Problems []ProblemSummary `json:"problems"`
	Total    int              `json:"total"`
}

type ProblemInput struct {
	ProblemID string `json:"problem_id" jsonschema:"description=Problem ID in format pack/slug"`
	Language  string `json:"language,omitempty" jsonschema:"description=Require the problem to be in this language"`
}

type ProblemOutput struct {
	ID         string   `json:"id"`
	Language   string   `json:"language"`
	Title      string   `json:"title"`
	Prompt     string   `json:"prompt"`
	Setup      string   `json:"setup"`
	Expected   string   `json:"expected"`
	Hints      []string `json:"hints,omitempty"`
	Patterns   string   `json:"patterns,omitempty"`
	TestCases  int      `json:"test_cases"`
	Executable bool     `json:"executable"`
}

type ValidateInput struct {
	ProblemID string `json:"problem_id" jsonschema:"description=Problem ID in format pack/slug"`
	Language  string `json:"language,omitempty" jsonschema:"description=Require the problem to be in this language"`
	Code      string `json:"code" jsonschema:"description=Solution function body"`
}

type ValidateOutput struct {
	Success     bool     `json:"success"`
	Feedback    string   `json:"feedback"`
	FailureKind string   `json:"failure_kind,omitempty"`
	Mode        string   `json:"mode"`
	Actual      string   `json:"actual,omitempty"`
	Flags       []string `json:"anti_cheat_flags,omitempty"`
	Logs        []string `json:"logs,omitempty"`
}

type RunTestsInput struct {
	ProblemID  string `json:"problem_id" jsonschema:"description=Problem ID in format pack/slug"`
	Language   string `json:"language,omitempty" jsonschema:"description=Require the problem to be in this language"`
	Code       string `json:"code" jsonschema:"description=Solution function body"`
	Variations int    `json:"variations,omitempty" jsonschema:"description=Generated cases to add (0 to 20)"`
}

type CaseOutput struct {
	Index       int    `json:"index"`
	Description string `json:"description,omitempty"`
	Passed      bool   `json:"passed"`
	Feedback    string `json:"feedback"`
}

type RunTestsOutput struct {
	AllPassed bool         `json:"all_passed"`
	Passed    int          `json:"passed"`
	Failed    int          `json:"failed"`
	Cases     []CaseOutput `json:"cases"`
	Summary   string       `json:"summary"`
}

// Tool handlers

func (s *Server) handleListProblems(ctx context.Context, input ListInput) (ListOutput, error) {
	filter := problem.Filter{
		PackID:     input.Pack,
		Difficulty: domain.Difficulty(input.Difficulty),
		Tag:        input.Tag,
	}
	if input.Language != "" {
		lang, err := domain.ParseLanguage(input.Language)
		if err != nil {
			return ListOutput{}, err
		}
		filter.Language = lang
	}

	problems := s.app.Problems.List(filter)
	out := ListOutput{Problems: make([]ProblemSummary, 0, len(problems)), Total: len(problems)}
	for _, p := range problems {
		out.Problems = append(out.Problems, ProblemSummary{
			ID:         p.ID,
			Language:   string(p.Language),
			Difficulty: string(p.Difficulty),
			Title:      p.Title,
		})
	}
	return out, nil
}

func (s *Server) handleGetProblem(ctx context.Context, input ProblemInput) (ProblemOutput, error) {
	p, err := s.app.FindProblem(input.Language, input.ProblemID)
	if err != nil {
		return ProblemOutput{}, err
	}

	patterns := p.PatternNote
	if patterns == "" {
		patterns = strings.Join(p.PatternSources(), " or ")
	}
	return ProblemOutput{
		ID:         p.ID,
		Language:   string(p.Language),
		Title:      p.Title,
		Prompt:     p.Prompt,
		Setup:      p.Setup,
		Expected:   value.Display(p.Expected),
		Hints:      p.Hints,
		Patterns:   patterns,
		TestCases:  len(p.TestCases),
		Executable: s.app.Runner.Supports(p.Language),
	}, nil
}

func (s *Server) handleValidate(ctx context.Context, input ValidateInput) (ValidateOutput, error) {
	p, err := s.app.FindProblem(input.Language, input.ProblemID)
	if err != nil {
		return ValidateOutput{}, err
	}

	run := domain.NewRun(domain.RunKindValidate, p.ID, p.Language)
	res := s.app.Validator.Validate(ctx, validator.Request{
		Run:      run,
		Language: p.Language,
		Problem:  p,
		Code:     input.Code,
	})
	run.Finish(domain.RunStatusCompleted)

	return validateOutput(res), nil
}

func (s *Server) handleRunTests(ctx context.Context, input RunTestsInput) (RunTestsOutput, error) {
	if input.Variations < 0 || input.Variations > maxVariations {
		return RunTestsOutput{}, fmt.Errorf("%w: variations must be between 0 and %d", domain.ErrInvalidInput, maxVariations)
	}
	p, err := s.app.FindProblem(input.Language, input.ProblemID)
	if err != nil {
		return RunTestsOutput{}, err
	}

	run := domain.NewRun(domain.RunKindTestRun, p.ID, p.Language)
	res, err := s.app.RunSuite(ctx, app.SuiteRequest{
		Run:        run,
		Problem:    p,
		Code:       input.Code,
		Variations: input.Variations,
		Seed:       uint64(time.Now().UnixNano()),
	})
	if err != nil {
		run.Finish(domain.RunStatusCancelled)
		return RunTestsOutput{}, fmt.Errorf("run tests: %w", err)
	}
	run.Finish(domain.RunStatusCompleted)

	out := RunTestsOutput{
		AllPassed: res.AllPassed,
		Passed:    res.Passed(),
		Failed:    res.Failed(),
		Cases:     make([]CaseOutput, 0, len(res.CaseResults)),
	}
	for _, c := range res.CaseResults {
		out.Cases = append(out.Cases, CaseOutput{
			Index:       c.Index,
			Description: c.TestCase.Description,
			Passed:      c.Validation.Success,
			Feedback:    c.Validation.Feedback,
		})
	}
	out.Summary = fmt.Sprintf("%d/%d cases passed", out.Passed, len(out.Cases))
	return out, nil
}

func validateOutput(res domain.ValidationResult) ValidateOutput {
	out := ValidateOutput{
		Success:     res.Success,
		Feedback:    res.Feedback,
		FailureKind: string(res.FailureKind),
		Mode:        string(res.Mode),
		Logs:        res.DiagnosticsLog,
	}
	if res.Actual != nil {
		out.Actual = value.Display(res.Actual)
	}
	for _, f := range res.AntiCheatFlags {
		out.Flags = append(out.Flags, fmt.Sprintf("%s: %s", f.Kind, f.Detail))
	}
	return out
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
