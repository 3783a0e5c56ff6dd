package domain

import (
	"fmt"
	"strings"
)

// Language identifies the language a problem is written in.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageRust       Language = "rust"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguageCSharp     Language = "csharp"
	LanguageKotlin     Language = "kotlin"
	LanguageSwift      Language = "swift"
	LanguageRuby       Language = "ruby"
	LanguagePHP        Language = "php"
	LanguageSQL        Language = "sql"
	LanguageBash       Language = "bash"
)

var languageAliases = map[string]Language{
	"js":      LanguageJavaScript,
	"node":    LanguageJavaScript,
	"ts":      LanguageTypeScript,
	"py":      LanguagePython,
	"python3": LanguagePython,
	"golang":  LanguageGo,
	"c++":     LanguageCPP,
	"cxx":     LanguageCPP,
	"c#":      LanguageCSharp,
	"cs":      LanguageCSharp,
	"kt":      LanguageKotlin,
	"rb":      LanguageRuby,
	"sh":      LanguageBash,
	"shell":   LanguageBash,
}

// IsValid checks if the language is known
func (l Language) IsValid() bool {
	switch l {
	case LanguageJavaScript, LanguageTypeScript, LanguagePython,
		LanguageGo, LanguageJava, LanguageRust, LanguageC, LanguageCPP,
		LanguageCSharp, LanguageKotlin, LanguageSwift, LanguageRuby,
		LanguagePHP, LanguageSQL, LanguageBash:
		return true
	default:
		return false
	}
}

// Typed reports whether source in this language carries type annotations
// that must be stripped before it can run on an untyped evaluator.
func (l Language) Typed() bool {
	return l == LanguageTypeScript
}

// String returns the language as a string
func (l Language) String() string {
	return string(l)
}

// ParseLanguage converts a name or common alias to a Language
func ParseLanguage(s string) (Language, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if lang, ok := languageAliases[name]; ok {
		return lang, nil
	}
	lang := Language(name)
	if !lang.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, s)
	}
	return lang, nil
}
