package problem

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/patterns"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// PackFile represents the YAML structure for a problem pack
type PackFile struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Language    string   `yaml:"language"`
	Problems    []string `yaml:"problems"`
}

// ProblemFile represents the YAML structure for a problem. Expected values
// are given inline and may use the !set and !undefined tags; expected_json,
// the tagged JSON encoding, is accepted as an alternative.
type ProblemFile struct {
	ID               string         `yaml:"id"`
	Title            string         `yaml:"title"`
	Category         string         `yaml:"category"`
	Difficulty       string         `yaml:"difficulty"`
	Language         string         `yaml:"language"`
	Prompt           string         `yaml:"prompt"`
	Setup            string         `yaml:"setup"`
	SampleSolution   string         `yaml:"sample_solution"`
	Hints            []string       `yaml:"hints"`
	RequiredPatterns []string       `yaml:"required_patterns"`
	PatternNote      string         `yaml:"pattern_note"`
	Tags             []string       `yaml:"tags"`
	Expected         ExpectedValue  `yaml:"expected"`
	ExpectedJSON     string         `yaml:"expected_json"`
	TestCases        []TestCaseFile `yaml:"test_cases"`
}

// TestCaseFile is one entry of test_cases.
type TestCaseFile struct {
	Setup        string        `yaml:"setup"`
	Expected     ExpectedValue `yaml:"expected"`
	ExpectedJSON string        `yaml:"expected_json"`
	Description  string        `yaml:"description"`
}

// ExpectedValue holds an expected value as decoded from a problem file.
type ExpectedValue struct {
	Value value.Value
	set   bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *ExpectedValue) UnmarshalYAML(node *yaml.Node) error {
	v, err := value.FromYAML(node)
	if err != nil {
		return err
	}
	e.Value, e.set = v, true
	return nil
}

// tomlProblemFile is the TOML form of ProblemFile. TOML has no null, so a
// missing expected key means none was given; expected_json covers null,
// undefined and sets.
type tomlProblemFile struct {
	ID               string         `toml:"id"`
	Title            string         `toml:"title"`
	Category         string         `toml:"category"`
	Difficulty       string         `toml:"difficulty"`
	Language         string         `toml:"language"`
	Prompt           string         `toml:"prompt"`
	Setup            string         `toml:"setup"`
	SampleSolution   string         `toml:"sample_solution"`
	Hints            []string       `toml:"hints"`
	RequiredPatterns []string       `toml:"required_patterns"`
	PatternNote      string         `toml:"pattern_note"`
	Tags             []string       `toml:"tags"`
	Expected         any            `toml:"expected"`
	ExpectedJSON     string         `toml:"expected_json"`
	TestCases        []tomlTestCase `toml:"test_cases"`
}

type tomlTestCase struct {
	Setup        string `toml:"setup"`
	Expected     any    `toml:"expected"`
	ExpectedJSON string `toml:"expected_json"`
	Description  string `toml:"description"`
}

func tomlExpected(x any) ExpectedValue {
	if x == nil {
		return ExpectedValue{}
	}
	return ExpectedValue{Value: value.FromGo(x), set: true}
}

func (t *tomlProblemFile) problemFile() *ProblemFile {
	f := &ProblemFile{
		ID:               t.ID,
		Title:            t.Title,
		Category:         t.Category,
		Difficulty:       t.Difficulty,
		Language:         t.Language,
		Prompt:           t.Prompt,
		Setup:            t.Setup,
		SampleSolution:   t.SampleSolution,
		Hints:            t.Hints,
		RequiredPatterns: t.RequiredPatterns,
		PatternNote:      t.PatternNote,
		Tags:             t.Tags,
		Expected:         tomlExpected(t.Expected),
		ExpectedJSON:     t.ExpectedJSON,
	}
	for _, tc := range t.TestCases {
		f.TestCases = append(f.TestCases, TestCaseFile{
			Setup:        tc.Setup,
			Expected:     tomlExpected(tc.Expected),
			ExpectedJSON: tc.ExpectedJSON,
			Description:  tc.Description,
		})
	}
	return f
}

func resolveExpected(e ExpectedValue, encoded, where string) (value.Value, error) {
	if strings.TrimSpace(encoded) != "" {
		v, err := value.Unmarshal([]byte(encoded))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: expected_json: %v", domain.ErrInvalidProblem, where, err)
		}
		return v, nil
	}
	if !e.set {
		return nil, fmt.Errorf("%w: %s: missing expected value (use !undefined for none)", domain.ErrInvalidProblem, where)
	}
	return e.Value, nil
}

// toDomain builds the problem for slug in pack. Defaults come from the
// pack and the slug: the language from the pack, the category from the
// slug's directory.
func (f *ProblemFile) toDomain(pack *domain.ProblemPack, slug string) (*domain.Problem, error) {
	id := pack.ID + "/" + slug

	lang := pack.Language
	if f.Language != "" {
		l, err := domain.ParseLanguage(f.Language)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidProblem, id, err)
		}
		lang = l
	}

	difficulty := domain.Difficulty(strings.ToLower(f.Difficulty))
	if difficulty == "" {
		difficulty = domain.DifficultyEasy
	}

	category := f.Category
	if category == "" {
		if dir := path.Dir(slug); dir != "." {
			category = dir
		}
	}

	expected, err := resolveExpected(f.Expected, f.ExpectedJSON, id)
	if err != nil {
		return nil, err
	}

	res, err := patterns.CompileAll(f.RequiredPatterns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	p := &domain.Problem{
		ID:               id,
		PackID:           pack.ID,
		Language:         lang,
		Category:         category,
		Difficulty:       difficulty,
		Title:            f.Title,
		Prompt:           f.Prompt,
		Setup:            f.Setup,
		Expected:         expected,
		SampleSolution:   f.SampleSolution,
		Hints:            f.Hints,
		RequiredPatterns: res,
		PatternNote:      f.PatternNote,
		Tags:             f.Tags,
	}

	for i, tc := range f.TestCases {
		exp, err := resolveExpected(tc.Expected, tc.ExpectedJSON, fmt.Sprintf("%s test case %d", id, i+1))
		if err != nil {
			return nil, err
		}
		p.TestCases = append(p.TestCases, domain.TestCase{
			Setup:       tc.Setup,
			Expected:    exp,
			Description: tc.Description,
		})
	}

	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the invariants every loaded problem must hold.
func Validate(p *domain.Problem) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: missing id", domain.ErrInvalidProblem)
	case !p.Language.IsValid():
		return fmt.Errorf("%w: %s: unknown language %q", domain.ErrInvalidProblem, p.ID, p.Language)
	case !p.Difficulty.IsValid():
		return fmt.Errorf("%w: %s: unknown difficulty %q", domain.ErrInvalidProblem, p.ID, p.Difficulty)
	case p.Title == "":
		return fmt.Errorf("%w: %s: missing title", domain.ErrInvalidProblem, p.ID)
	case p.Expected == nil:
		return fmt.Errorf("%w: %s: missing expected value", domain.ErrInvalidProblem, p.ID)
	}
	return nil
}
