// Package patterns checks submitted source against the techniques a
// problem requires, by regular expression and without running anything.
package patterns

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/drillpad/internal/domain"
)

// Check returns nil when patterns is empty or at least one of them matches
// src. Otherwise it returns a structural failure naming the expected
// techniques, or fallbackNote when one is given.
func Check(src string, patterns []*regexp.Regexp, fallbackNote string) *domain.Failure {
	patterns = lo.Compact(patterns)
	if len(patterns) == 0 {
		return nil
	}
	for _, re := range patterns {
		if re.MatchString(src) {
			return nil
		}
	}

	expected := strings.TrimSpace(fallbackNote)
	if expected == "" {
		expected = Describe(patterns)
	}
	return &domain.Failure{
		Kind:    domain.FailureStructural,
		Message: fmt.Sprintf("Your solution does not use the expected method or pattern: %s", expected),
	}
}

// Describe renders patterns for people: regex escapes and anchors are
// dropped and alternatives are joined with "or".
func Describe(patterns []*regexp.Regexp) string {
	names := lo.Uniq(lo.FilterMap(patterns, func(re *regexp.Regexp, _ int) (string, bool) {
		if re == nil {
			return "", false
		}
		s := humanize(re.String())
		return s, s != ""
	}))
	switch len(names) {
	case 0:
		return "the technique this problem teaches"
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}

var (
	flagGroup  = regexp.MustCompile(`^\(\?[imsU]+\)`)
	whitespace = regexp.MustCompile(`\\s[*+?]?`)
	boundary   = regexp.MustCompile(`\\[bB]`)
)

func humanize(expr string) string {
	expr = flagGroup.ReplaceAllString(expr, "")
	expr = whitespace.ReplaceAllString(expr, "")
	expr = boundary.ReplaceAllString(expr, "")
	expr = strings.TrimPrefix(expr, "^")
	expr = strings.TrimSuffix(expr, "$")

	var b strings.Builder
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if c == '\\' && i+1 < len(expr) {
			i++
			b.WriteByte(expr[i])
			continue
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}

// Compile parses a required pattern. It accepts Go regular expression
// syntax or a JavaScript style literal such as "/\.map\(/i", whose i, m
// and s flags are honoured.
func Compile(expr string) (*regexp.Regexp, error) {
	body, flags, literal := splitLiteral(expr)
	if !literal {
		body = expr
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty pattern", domain.ErrInvalidPattern)
	}

	if flags != "" {
		for _, f := range flags {
			if !strings.ContainsRune("ims", f) {
				return nil, fmt.Errorf("%w: unsupported flag %q in %s", domain.ErrInvalidPattern, f, expr)
			}
		}
		body = "(?" + flags + ")" + body
	}

	re, err := regexp.Compile(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidPattern, expr, err)
	}
	return re, nil
}

// CompileAll compiles every expression, stopping at the first error.
func CompileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := Compile(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// splitLiteral splits "/body/flags". It reports false when expr is not in
// that form.
func splitLiteral(expr string) (body, flags string, ok bool) {
	if len(expr) < 3 || expr[0] != '/' {
		return "", "", false
	}
	end := strings.LastIndexByte(expr, '/')
	if end <= 0 {
		return "", "", false
	}
	flags = expr[end+1:]
	if strings.ContainsFunc(flags, func(r rune) bool { return r < 'a' || r > 'z' }) {
		return "", "", false
	}
	return expr[1:end], dedupe(flags), true
}

func dedupe(flags string) string {
	return string(lo.Uniq([]rune(flags)))
}
