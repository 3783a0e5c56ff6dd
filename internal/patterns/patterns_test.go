package patterns

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/felixgeelhaar/drillpad/internal/domain"
)

func TestCheck(t *testing.T) {
	required := []*regexp.Regexp{regexp.MustCompile(`required`)}

	tests := []struct {
		name     string
		src      string
		patterns []*regexp.Regexp
		note     string
		wantFail bool
		contains string
	}{
		{name: "no patterns", src: "anything at all", patterns: nil},
		{name: "empty patterns", src: "", patterns: []*regexp.Regexp{}},
		{name: "nil entries only", src: "x", patterns: []*regexp.Regexp{nil}},
		{name: "match", src: "required code", patterns: required},
		{
			name:     "no match",
			src:      "some code",
			patterns: required,
			wantFail: true,
			contains: "expected method or pattern",
		},
		{
			name: "any alternative matches",
			src:  "for (const x of xs) {}",
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\.forEach\(`),
				regexp.MustCompile(`for\s*\(`),
			},
		},
		{
			name:     "fallback note",
			src:      "return 1",
			patterns: []*regexp.Regexp{regexp.MustCompile(`\.map\(`)},
			note:     "Array.prototype.map",
			wantFail: true,
			contains: "Array.prototype.map",
		},
		{
			name:     "rendered pattern",
			src:      "return 1",
			patterns: []*regexp.Regexp{regexp.MustCompile(`\.map\(`)},
			wantFail: true,
			contains: ".map(",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Check(tc.src, tc.patterns, tc.note)
			if !tc.wantFail {
				if got != nil {
					t.Fatalf("Check() = %q, want nil", got.Message)
				}
				return
			}
			if got == nil {
				t.Fatal("Check() = nil, want failure")
			}
			if got.Kind != domain.FailureStructural {
				t.Errorf("Kind = %s, want %s", got.Kind, domain.FailureStructural)
			}
			if !strings.Contains(got.Message, tc.contains) {
				t.Errorf("Message = %q, want it to contain %q", got.Message, tc.contains)
			}
		})
	}
}

func TestCheck_EmptyPatternsAlwaysPass(t *testing.T) {
	for _, src := range []string{"", "x", "return 1 +", "\x00\xff"} {
		if got := Check(src, nil, "note"); got != nil {
			t.Errorf("Check(%q, nil) = %v, want nil", src, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		exprs []string
		want  string
	}{
		{[]string{`\.reduce\(`}, ".reduce("},
		{[]string{`\.map\(`, `\.filter\(`}, ".map( or .filter("},
		{[]string{`a`, `b`, `c`}, "a, b or c"},
		{[]string{`(?i)\bsorted\s*\(`}, "sorted("},
		{[]string{`^\.join\($`, `\.join\(`}, ".join("},
		{nil, "the technique this problem teaches"},
	}

	for _, tc := range tests {
		var res []*regexp.Regexp
		for _, e := range tc.exprs {
			res = append(res, regexp.MustCompile(e))
		}
		if got := Describe(res); got != tc.want {
			t.Errorf("Describe(%q) = %q, want %q", tc.exprs, got, tc.want)
		}
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		expr    string
		match   string
		noMatch string
		wantErr bool
	}{
		{expr: `\.map\(`, match: "xs.map(f)", noMatch: "xs.MAP(f)"},
		{expr: `/\.map\(/i`, match: "xs.MAP(f)", noMatch: "xs.filter(f)"},
		{expr: `/^return/m`, match: "x\nreturn 1", noMatch: "x return 1"},
		{expr: `/a.b/s`, match: "a\nb"},
		{expr: `/a/gi`, wantErr: true},
		{expr: `(`, wantErr: true},
		{expr: `/ /`, wantErr: true},
		{expr: ``, wantErr: true},
		{expr: `/a/b`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			re, err := Compile(tc.expr)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidPattern) {
					t.Fatalf("Compile(%q) error = %v, want ErrInvalidPattern", tc.expr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tc.expr, err)
			}
			if tc.match != "" && !re.MatchString(tc.match) {
				t.Errorf("%s should match %q", re, tc.match)
			}
			if tc.noMatch != "" && re.MatchString(tc.noMatch) {
				t.Errorf("%s should not match %q", re, tc.noMatch)
			}
		})
	}
}

func TestCompileAll(t *testing.T) {
	res, err := CompileAll([]string{`a`, `/b/i`})
	if err != nil || len(res) != 2 {
		t.Fatalf("CompileAll() = %v, %v", res, err)
	}
	if _, err := CompileAll([]string{`a`, `(`}); err == nil {
		t.Error("CompileAll() should fail on a bad pattern")
	}
}
