package domain

import (
	"errors"
	"regexp"
	"testing"

	"github.com/felixgeelhaar/drillpad/internal/value"
)

func TestProblem_WithCase(t *testing.T) {
	p := &Problem{
		ID:               "js/sum",
		Setup:            "const xs = [1, 2];",
		Expected:         value.Number(3),
		Tags:             []string{"arrays"},
		RequiredPatterns: []*regexp.Regexp{regexp.MustCompile(`\.reduce\(`)},
		TestCases:        []TestCase{{Setup: "const xs = [];", Expected: value.Number(0)}},
	}

	tc := TestCase{Setup: "const xs = [4, 5];", Expected: value.Number(9)}
	got := p.WithCase(tc)

	if got.Setup != tc.Setup {
		t.Errorf("Setup = %q, want %q", got.Setup, tc.Setup)
	}
	if !value.Equal(got.Expected, value.Number(9)) {
		t.Errorf("Expected = %v, want 9", got.Expected)
	}
	if got.TestCases != nil {
		t.Error("TestCases should not be carried into a case copy")
	}

	got.Tags[0] = "changed"
	if p.Tags[0] != "arrays" {
		t.Error("WithCase should not share the Tags slice")
	}
	if p.Setup != "const xs = [1, 2];" {
		t.Error("original problem was mutated")
	}
}

func TestProblem_PatternSources(t *testing.T) {
	p := &Problem{RequiredPatterns: []*regexp.Regexp{
		regexp.MustCompile(`\.filter\(`),
		regexp.MustCompile(`(?i)for\s*\(`),
	}}

	got := p.PatternSources()
	want := []string{`\.filter\(`, `(?i)for\s*\(`}
	if len(got) != len(want) {
		t.Fatalf("PatternSources() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PatternSources()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDifficulty_IsValid(t *testing.T) {
	tests := []struct {
		d    Difficulty
		want bool
	}{
		{DifficultyEasy, true},
		{DifficultyMedium, true},
		{DifficultyHard, true},
		{"beginner", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.d.IsValid(); got != tt.want {
			t.Errorf("Difficulty(%q).IsValid() = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"javascript", LanguageJavaScript, false},
		{"JS", LanguageJavaScript, false},
		{" ts ", LanguageTypeScript, false},
		{"py", LanguagePython, false},
		{"golang", LanguageGo, false},
		{"c++", LanguageCPP, false},
		{"cobol", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLanguage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLanguage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedLanguage) {
				t.Errorf("error should wrap ErrUnsupportedLanguage, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLanguage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFailureKindFor(t *testing.T) {
	tests := []struct {
		in   ErrorKind
		want FailureKind
	}{
		{ErrorSyntax, FailureSyntax},
		{ErrorRuntime, FailureRuntime},
		{ErrorTimeout, FailureTimeout},
	}
	for _, tt := range tests {
		if got := FailureKindFor(tt.in); got != tt.want {
			t.Errorf("FailureKindFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidationResult_HasFlag(t *testing.T) {
	r := ValidationResult{AntiCheatFlags: []AntiCheatFlag{{Kind: FlagSuspicious}}}
	if !r.HasFlag(FlagSuspicious) {
		t.Error("HasFlag(suspicious) = false, want true")
	}
	if r.HasFlag(FlagLiteralHardcode) {
		t.Error("HasFlag(literal_hardcode) = true, want false")
	}
}
