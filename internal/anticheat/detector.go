package anticheat

import (
	"fmt"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/source"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// Submission is the input to Detect.
type Submission struct {
	Language         domain.Language
	Code             string
	Setup            string
	Expected         value.Value
	RequiredPatterns []*regexp.Regexp
}

// Detector inspects submitted source text for answers that were baked in
// rather than computed. All checks are static and best-effort: they never
// run the code.
type Detector struct {
	rules []Rule
}

// NewDetector creates a new detector with the default suspicious-code rules
func NewDetector() *Detector {
	return &Detector{rules: defaultRules()}
}

// AddRule registers an extra suspicious-code rule.
func (d *Detector) AddRule(r Rule) {
	d.rules = append(d.rules, r)
}

// Detect returns the flags raised by sub, in a stable order: literal
// hardcode, trivial echo, pattern bypass, then suspicious-code rules.
func (d *Detector) Detect(sub Submission) []domain.AntiCheatFlag {
	if strings.TrimSpace(sub.Code) == "" {
		return nil
	}

	dialect := dialectFor(sub.Language)
	toks := source.Significant(source.Tokenize(sub.Code, dialect))
	outs := outputs(toks, dialect)

	var flags []domain.AntiCheatFlag
	if f, ok := literalHardcode(sub, toks, outs, dialect); ok {
		flags = append(flags, f)
	}
	if f, ok := trivialEcho(sub, toks, outs, dialect); ok {
		flags = append(flags, f)
	}
	if f, ok := patternBypass(sub, dialect); ok {
		flags = append(flags, f)
	}
	flags = append(flags, d.suspicious(sub, dialect)...)
	return flags
}

func dialectFor(lang domain.Language) source.Dialect {
	if lang == domain.LanguagePython {
		return source.DialectPython
	}
	return source.DialectJS
}

// literalHardcode flags code whose output is a literal rendering of the
// expected value while ignoring every input the setup declares.
func literalHardcode(sub Submission, toks []source.Token, outs [][]source.Token, d source.Dialect) (domain.AntiCheatFlag, bool) {
	if sub.Expected == nil {
		return domain.AntiCheatFlag{}, false
	}
	renders := mapset.NewSet(renderings(sub.Expected)...)
	if renders.Cardinality() == 0 {
		return domain.AntiCheatFlag{}, false
	}

	hit, found := lo.Find(outs, func(out []source.Token) bool {
		return renders.Contains(compactOutput(out))
	})
	if !found {
		return domain.AntiCheatFlag{}, false
	}

	inputs := mapset.NewSet(source.DeclaredNames(sub.Setup, d)...)
	if inputs.Cardinality() > 0 && inputs.ContainsAny(source.Identifiers(toks)...) {
		return domain.AntiCheatFlag{}, false
	}

	return domain.AntiCheatFlag{
		Kind:   domain.FlagLiteralHardcode,
		Detail: fmt.Sprintf("returns the literal %s instead of computing it from the inputs", compactOutput(hit)),
	}, true
}

// trivialEcho flags code that hands back a setup variable, or a literal
// copied from the setup, without calling anything. A variable the code
// writes to is computed, not echoed.
func trivialEcho(sub Submission, toks []source.Token, outs [][]source.Token, d source.Dialect) (domain.AntiCheatFlag, bool) {
	if strings.TrimSpace(sub.Setup) == "" || hasCall(toks) {
		return domain.AntiCheatFlag{}, false
	}
	decls := source.Declarations(sub.Setup, d)
	names := mapset.NewSet(lo.Map(decls, func(decl source.Declaration, _ int) string { return decl.Name })...)
	names = names.Difference(mapset.NewSet(assignedNames(toks)...))
	inits := mapset.NewSet(lo.FilterMap(decls, func(decl source.Declaration, _ int) (string, bool) {
		return decl.Init, decl.Init != ""
	})...)

	for _, out := range outs {
		text := compactOutput(out)
		switch {
		case names.Contains(text):
			return domain.AntiCheatFlag{
				Kind:   domain.FlagTrivialEcho,
				Detail: fmt.Sprintf("returns the setup variable %s unchanged", text),
			}, true
		case inits.Contains(text):
			return domain.AntiCheatFlag{
				Kind:   domain.FlagTrivialEcho,
				Detail: fmt.Sprintf("returns %s copied from the setup", text),
			}, true
		}
	}
	return domain.AntiCheatFlag{}, false
}

// patternBypass flags code that only meets its required patterns from
// inside comments or string literals.
func patternBypass(sub Submission, d source.Dialect) (domain.AntiCheatFlag, bool) {
	if len(sub.RequiredPatterns) == 0 {
		return domain.AntiCheatFlag{}, false
	}
	code := source.StripLiterals(sub.Code, d)
	if lo.SomeBy(sub.RequiredPatterns, func(re *regexp.Regexp) bool { return re.MatchString(code) }) {
		return domain.AntiCheatFlag{}, false
	}
	return domain.AntiCheatFlag{
		Kind:   domain.FlagPatternBypass,
		Detail: "none of the expected techniques appear outside comments and strings",
	}, true
}

func (d *Detector) suspicious(sub Submission, dialect source.Dialect) []domain.AntiCheatFlag {
	code := source.StripLiterals(sub.Code, dialect)
	var flags []domain.AntiCheatFlag
	for _, r := range d.rules {
		if !r.appliesTo(sub.Language) || !r.Regex.MatchString(code) {
			continue
		}
		flags = append(flags, domain.AntiCheatFlag{
			Kind:   domain.FlagSuspicious,
			Detail: r.Title,
		})
	}
	return flags
}
