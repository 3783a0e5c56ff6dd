package anticheat

import (
	"regexp"
	"slices"
	"testing"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

func kinds(flags []domain.AntiCheatFlag) []domain.FlagKind {
	out := make([]domain.FlagKind, len(flags))
	for i, f := range flags {
		out[i] = f.Kind
	}
	return out
}

func TestDetector_Detect(t *testing.T) {
	reduce := []*regexp.Regexp{regexp.MustCompile(`\.reduce\(`)}

	tests := []struct {
		name string
		sub  Submission
		want []domain.FlagKind
	}{
		{
			name: "hardcoded return ignores inputs",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [1, 2, 3];",
				Code:     "return 6;",
				Expected: value.Number(6),
			},
			want: []domain.FlagKind{domain.FlagLiteralHardcode},
		},
		{
			name: "computed answer",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [1, 2, 3];",
				Code:     "return nums.reduce((a, b) => a + b, 0);",
				Expected: value.Number(6),
			},
		},
		{
			name: "literal but inputs referenced",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [];",
				Code:     "if (nums.length === 0) return 0;\nreturn nums[0];",
				Expected: value.Number(0),
			},
		},
		{
			name: "hardcoded console output without setup",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Code:     "console.log([2, 4])",
				Expected: value.List{value.Number(2), value.Number(4)},
			},
			want: []domain.FlagKind{domain.FlagLiteralHardcode},
		},
		{
			name: "hardcoded object with bare keys",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const word = 'aab';",
				Code:     "({ a: 2, b: 1 })",
				Expected: value.Map{"a": value.Number(2), "b": value.Number(1)},
			},
			want: []domain.FlagKind{domain.FlagLiteralHardcode},
		},
		{
			name: "python hardcoded string",
			sub: Submission{
				Language: domain.LanguagePython,
				Setup:    "s = 'cba'",
				Code:     "return 'abc'",
				Expected: value.String("abc"),
			},
			want: []domain.FlagKind{domain.FlagLiteralHardcode},
		},
		{
			name: "python hardcoded boolean",
			sub: Submission{
				Language: domain.LanguagePython,
				Setup:    "n = 7",
				Code:     "True",
				Expected: value.Bool(true),
			},
			want: []domain.FlagKind{domain.FlagLiteralHardcode},
		},
		{
			name: "echo of setup variable",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [3, 1, 2];",
				Code:     "return nums;",
				Expected: value.List{value.Number(1), value.Number(2), value.Number(3)},
			},
			want: []domain.FlagKind{domain.FlagTrivialEcho},
		},
		{
			name: "echo of setup literal",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [3, 1, 2];",
				Code:     "return [3, 1, 2];",
				Expected: value.List{value.Number(1), value.Number(2), value.Number(3)},
			},
			want: []domain.FlagKind{domain.FlagTrivialEcho},
		},
		{
			name: "transformed setup variable",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [3, 1, 2];",
				Code:     "return nums.slice().sort();",
				Expected: value.List{value.Number(1), value.Number(2), value.Number(3)},
			},
		},
		{
			name: "accumulated setup variable",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [1, 2, 3];\nlet total = 0;",
				Code:     "for (const n of nums) { total += n }\nreturn total;",
				Expected: value.Number(6),
			},
		},
		{
			name: "running max",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [1, 3, 2];\nlet best = -Infinity;",
				Code:     "for (const n of nums) { if (n > best) best = n; }\nreturn best;",
				Expected: value.Number(3),
			},
		},
		{
			name: "incremented counter",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [1, 2];\nlet count = 0;",
				Code:     "for (const n of nums) count++;\nreturn count;",
				Expected: value.Number(2),
			},
		},
		{
			name: "destructuring swap",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "let a = 1;\nlet b = 2;",
				Code:     "[a, b] = [b, a];\nreturn a;",
				Expected: value.Number(2),
			},
		},
		{
			name: "python accumulator",
			sub: Submission{
				Language: domain.LanguagePython,
				Setup:    "nums = [1, 2, 3]\ntotal = 0",
				Code:     "for n in nums:\n    total += n\nreturn total",
				Expected: value.Number(6),
			},
		},
		{
			name: "python tuple assignment",
			sub: Submission{
				Language: domain.LanguagePython,
				Setup:    "a = 1\nb = 2",
				Code:     "a, b = b, a\nreturn a",
				Expected: value.Number(2),
			},
		},
		{
			name: "indexed write still echoes",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const nums = [3, 1, 2];\nlet i = 0;",
				Code:     "nums[i] = 3;\nreturn nums;",
				Expected: value.List{value.Number(3), value.Number(1), value.Number(2)},
			},
			want: []domain.FlagKind{domain.FlagTrivialEcho},
		},
		{
			name: "python print echo",
			sub: Submission{
				Language: domain.LanguagePython,
				Setup:    "nums = [1]",
				Code:     "print(nums)",
				Expected: value.Undefined{},
			},
			want: []domain.FlagKind{domain.FlagTrivialEcho},
		},
		{
			name: "pattern only in comment",
			sub: Submission{
				Language:         domain.LanguageJavaScript,
				Setup:            "const nums = [1, 2, 3];",
				Code:             "// nums.reduce(\nreturn nums.length * 2;",
				Expected:         value.Number(6),
				RequiredPatterns: reduce,
			},
			want: []domain.FlagKind{domain.FlagPatternBypass},
		},
		{
			name: "pattern only in string",
			sub: Submission{
				Language:         domain.LanguageJavaScript,
				Setup:            "const nums = [1, 2, 3];",
				Code:             "const s = '.reduce(';\nnums.length * 2",
				Expected:         value.Number(6),
				RequiredPatterns: reduce,
			},
			want: []domain.FlagKind{domain.FlagPatternBypass},
		},
		{
			name: "pattern in code",
			sub: Submission{
				Language:         domain.LanguageJavaScript,
				Setup:            "const nums = [1, 2, 3];",
				Code:             "nums.reduce((a, b) => a + b)",
				Expected:         value.Number(6),
				RequiredPatterns: reduce,
			},
		},
		{
			name: "eval",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const x = 1;",
				Code:     `return eval("x + 1");`,
				Expected: value.Number(2),
			},
			want: []domain.FlagKind{domain.FlagSuspicious},
		},
		{
			name: "eval inside a string is ignored",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const x = 1;",
				Code:     `return "eval(" + x;`,
				Expected: value.String("eval(1"),
			},
		},
		{
			name: "python os import",
			sub: Submission{
				Language: domain.LanguagePython,
				Setup:    "n = 1",
				Code:     "import os\nn + 1",
				Expected: value.Number(2),
			},
			want: []domain.FlagKind{domain.FlagSuspicious},
		},
		{
			name: "python frame introspection",
			sub: Submission{
				Language: domain.LanguagePython,
				Setup:    "n = 1",
				Code:     "return n + len(sys._getframe(1).f_locals)",
				Expected: value.Number(2),
			},
			want: []domain.FlagKind{domain.FlagSuspicious},
		},
		{
			name: "empty code",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Setup:    "const x = 1;",
				Code:     "   ",
				Expected: value.Number(1),
			},
		},
		{
			name: "undefined expected has no literal",
			sub: Submission{
				Language: domain.LanguageJavaScript,
				Code:     "undefined",
				Expected: value.Undefined{},
			},
		},
	}

	d := NewDetector()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := kinds(d.Detect(tc.sub))
			if !slices.Equal(got, tc.want) {
				t.Errorf("Detect() kinds = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetector_AddRule(t *testing.T) {
	d := NewDetector()
	d.AddRule(Rule{
		ID:    "X001",
		Title: "uses Math.random",
		Regex: regexp.MustCompile(`Math\.random`),
	})

	flags := d.Detect(Submission{
		Language: domain.LanguageTypeScript,
		Setup:    "const n = 1;",
		Code:     "n + Math.random()",
		Expected: value.Number(1),
	})
	if len(flags) != 1 || flags[0].Detail != "uses Math.random" {
		t.Errorf("flags = %+v", flags)
	}
}

func TestRenderings(t *testing.T) {
	tests := []struct {
		name    string
		v       value.Value
		want    []string
		wantNot []string
	}{
		{
			name: "integer",
			v:    value.Number(3),
			want: []string{"3", "3.0"},
		},
		{
			name: "list",
			v:    value.List{value.Number(1), value.String("a")},
			want: []string{`[1,"a"]`, `[1,'a']`},
		},
		{
			name: "map",
			v:    value.Map{"a": value.Number(1), "b c": value.Bool(true)},
			want: []string{`{"a":1,"b c":true}`, `{a:1,"b c":true}`, `{'a':1,'b c':True}`},
		},
		{
			name: "set",
			v:    value.Set{value.Number(2), value.Number(1)},
			want: []string{"newSet([1,2])", "{1,2}"},
		},
		{
			name: "null",
			v:    value.Null{},
			want: []string{"null", "None"},
		},
		{
			name:    "string with quote",
			v:       value.String(`it's`),
			want:    []string{`"it's"`},
			wantNot: []string{`'it's'`},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := renderings(tc.v)
			for _, w := range tc.want {
				if !slices.Contains(got, w) {
					t.Errorf("renderings() = %q, missing %q", got, w)
				}
			}
			for _, w := range tc.wantNot {
				if slices.Contains(got, w) {
					t.Errorf("renderings() = %q, should not contain %q", got, w)
				}
			}
		})
	}

	if got := renderings(value.Undefined{}); len(got) != 0 {
		t.Errorf("renderings(undefined) = %q, want none", got)
	}
	if got := renderings(value.Opaque{Desc: "[Function]"}); len(got) != 0 {
		t.Errorf("renderings(opaque) = %q, want none", got)
	}
}
