package anticheat

import (
	"regexp"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/drillpad/internal/domain"
)

// Rule is a suspicious-code pattern, matched against the submission with
// comments and string contents removed.
type Rule struct {
	ID        string
	Title     string
	Regex     *regexp.Regexp
	Languages []domain.Language // empty means all languages
}

func (r Rule) appliesTo(lang domain.Language) bool {
	return len(r.Languages) == 0 || lo.Contains(r.Languages, lang)
}

var (
	jsLanguages = []domain.Language{domain.LanguageJavaScript, domain.LanguageTypeScript}
	pyLanguages = []domain.Language{domain.LanguagePython}
)

func defaultRules() []Rule {
	return []Rule{
		// JavaScript
		{
			ID:        "JS001",
			Title:     "dynamic evaluation with eval",
			Regex:     regexp.MustCompile(`\beval\s*\(`),
			Languages: jsLanguages,
		},
		{
			ID:        "JS002",
			Title:     "code built with the Function constructor",
			Regex:     regexp.MustCompile(`\bFunction\s*\(`),
			Languages: jsLanguages,
		},
		{
			ID:        "JS003",
			Title:     "constructor chain escape",
			Regex:     regexp.MustCompile(`constructor\s*\.\s*constructor|\[\s*["'` + "`" + `]\s*["'` + "`" + `]\s*\]\s*\.\s*constructor`),
			Languages: jsLanguages,
		},
		{
			ID:        "JS004",
			Title:     "access to the global object",
			Regex:     regexp.MustCompile(`\bglobalThis\b`),
			Languages: jsLanguages,
		},
		{
			ID:        "JS005",
			Title:     "host process access",
			Regex:     regexp.MustCompile(`\bprocess\s*\.`),
			Languages: jsLanguages,
		},
		{
			ID:        "JS006",
			Title:     "module loading",
			Regex:     regexp.MustCompile(`\brequire\s*\(|\bimport\s*\(`),
			Languages: jsLanguages,
		},

		// Python
		{
			ID:        "PY001",
			Title:     "dynamic evaluation with eval or exec",
			Regex:     regexp.MustCompile(`\b(eval|exec|compile)\s*\(`),
			Languages: pyLanguages,
		},
		{
			ID:        "PY002",
			Title:     "dynamic import",
			Regex:     regexp.MustCompile(`__import__|\bimportlib\b`),
			Languages: pyLanguages,
		},
		{
			ID:        "PY003",
			Title:     "file access",
			Regex:     regexp.MustCompile(`\bopen\s*\(`),
			Languages: pyLanguages,
		},
		{
			ID:        "PY004",
			Title:     "host module import",
			Regex:     regexp.MustCompile(`(?m)^\s*(import|from)\s+(os|sys|subprocess|shutil|socket|ctypes|builtins)\b`),
			Languages: pyLanguages,
		},
		{
			ID:        "PY005",
			Title:     "interpreter internals",
			Regex:     regexp.MustCompile(`__builtins__|__globals__|__subclasses__|\bglobals\s*\(|_getframe|\.f_back\b|\.f_locals\b|\bgc\.get_(objects|referrers)\b`),
			Languages: pyLanguages,
		},
	}
}
