// Package source tokenizes JavaScript, TypeScript and Python snippets well
// enough to tell code apart from comments and literals. It is not a parser.
package source

// Dialect selects the lexical rules used by Tokenize.
type Dialect int

const (
	// DialectJS covers JavaScript and TypeScript.
	DialectJS Dialect = iota
	// DialectPython uses '#' comments, prefixed and triple-quoted strings,
	// and has no regex literals.
	DialectPython
)

// Kind identifies the type of a token.
type Kind int

const (
	KindIdent Kind = iota
	KindKeyword
	KindNumber
	KindString
	KindTemplate // one literal chunk of a template string, delimiters included
	KindRegex
	KindLineComment
	KindBlockComment
	KindPunct
)

var kindNames = [...]string{
	KindIdent:        "ident",
	KindKeyword:      "keyword",
	KindNumber:       "number",
	KindString:       "string",
	KindTemplate:     "template",
	KindRegex:        "regex",
	KindLineComment:  "line comment",
	KindBlockComment: "block comment",
	KindPunct:        "punct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Token is a lexeme with its byte offsets in the source.
type Token struct {
	Kind  Kind
	Text  string
	Start int // byte offset of the first byte
	End   int // byte offset one past the last byte
	Line  int // 1-based line of the first byte
}

// Is reports whether the token has the given kind and text.
func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// IsComment reports whether the token is a comment of either form.
func (t Token) IsComment() bool {
	return t.Kind == KindLineComment || t.Kind == KindBlockComment
}

// IsLiteral reports whether the token is a string, template chunk, regex or
// number literal.
func (t Token) IsLiteral() bool {
	switch t.Kind {
	case KindString, KindTemplate, KindRegex, KindNumber:
		return true
	}
	return false
}

// Contextual words such as "type", "of" and "async" are identifiers here;
// callers that care check their text.
var jsKeywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "let": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true,
	"throw": true, "true": true, "try": true, "typeof": true, "var": true,
	"void": true, "while": true, "with": true, "yield": true, "await": true,
	"enum": true, "undefined": true,
}

var pyKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,
}

// IsKeyword reports whether word is reserved in the dialect.
func IsKeyword(word string, d Dialect) bool {
	if d == DialectPython {
		return pyKeywords[word]
	}
	return jsKeywords[word]
}

// Multi-byte operators, longest first so the first match wins.
var jsOperators = []string{
	">>>=", "...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
}

var pyOperators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "==", "!=", "<=", ">=", "**", "//", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
}
