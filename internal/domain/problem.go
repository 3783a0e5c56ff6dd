package domain

import (
	"regexp"
	"slices"

	"github.com/felixgeelhaar/drillpad/internal/value"
)

// Problem is a curated drill. Problems are loaded once at startup and
// never mutated afterwards; WithCase returns a copy.
type Problem struct {
	ID               string // "js-arrays/filter-evens"
	PackID           string // "js-arrays"
	Language         Language
	Category         string
	Difficulty       Difficulty
	Title            string
	Prompt           string
	Setup            string      // preamble defining the inputs
	Expected         value.Value // value the body must produce
	SampleSolution   string
	Hints            []string
	RequiredPatterns []*regexp.Regexp // OR-ed; empty means no constraint
	PatternNote      string           // human description of the patterns
	Tags             []string
	TestCases        []TestCase
}

// Difficulty represents problem difficulty level
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the difficulty is one of the known levels
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// TestCase is one (setup, expected) pair run against a submission.
type TestCase struct {
	Setup       string
	Expected    value.Value
	Description string
}

// ProblemPack is a collection of related problems
type ProblemPack struct {
	ID          string
	Name        string
	Version     string
	Description string
	Language    Language
	ProblemIDs  []string // ordered list of problem slugs
}

// WithCase returns a copy of the problem with the test case's setup and
// expected value substituted.
func (p *Problem) WithCase(tc TestCase) *Problem {
	cp := *p
	cp.Setup = tc.Setup
	cp.Expected = tc.Expected
	cp.Hints = slices.Clone(p.Hints)
	cp.RequiredPatterns = slices.Clone(p.RequiredPatterns)
	cp.Tags = slices.Clone(p.Tags)
	cp.TestCases = nil
	return &cp
}

// PatternSources returns the source text of the required patterns.
func (p *Problem) PatternSources() []string {
	out := make([]string, len(p.RequiredPatterns))
	for i, re := range p.RequiredPatterns {
		out[i] = re.String()
	}
	return out
}

// HasTag reports whether the problem is tagged with tag
func (p *Problem) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}
