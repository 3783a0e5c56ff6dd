package app

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/testrun"
)

// FindProblem looks a problem up by id. An empty lang means the problem's
// own language; otherwise the problem must be written in lang.
func (a *App) FindProblem(lang, id string) (*domain.Problem, error) {
	if lang == "" {
		return a.Problems.Get(id)
	}
	l, err := domain.ParseLanguage(lang)
	if err != nil {
		return nil, err
	}
	return a.Problems.Lookup(l, id)
}

// SuiteRequest selects the cases a submission is run against
type SuiteRequest struct {
	Run        *domain.Run
	Problem    *domain.Problem
	Code       string
	Variations int    // extra cases derived from the setup; 0 for none
	Seed       uint64 // variation seed
}

// Cases returns the problem's test cases, or its primary setup and
// expected value when it declares none, followed by up to req.Variations
// generated cases.
func (a *App) Cases(ctx context.Context, req SuiteRequest) ([]domain.TestCase, error) {
	p := req.Problem
	cases := append([]domain.TestCase(nil), p.TestCases...)
	if len(cases) == 0 {
		cases = append(cases, domain.TestCase{Setup: p.Setup, Expected: p.Expected, Description: "primary"})
	}
	if req.Variations <= 0 {
		return cases, nil
	}

	generated := testrun.GenerateVariations(p, req.Variations, req.Seed)
	if len(generated) == 0 {
		return cases, nil
	}
	extra, err := a.TestRuns.Materialize(ctx, p.Language, p, generated)
	if err != nil {
		return nil, fmt.Errorf("materialize variations: %w", err)
	}
	return append(cases, extra...), nil
}

// RunSuite runs code against the cases Cases selects.
func (a *App) RunSuite(ctx context.Context, req SuiteRequest) (domain.TestRunResults, error) {
	cases, err := a.Cases(ctx, req)
	if err != nil {
		return domain.TestRunResults{}, err
	}
	return a.TestRuns.Run(ctx, testrun.Suite{
		Run:      req.Run,
		Language: req.Problem.Language,
		Problem:  req.Problem,
		Code:     req.Code,
		Cases:    cases,
	}), nil
}
