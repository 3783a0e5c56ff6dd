package source

import "strings"

// Significant drops comment tokens.
func Significant(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if !t.IsComment() {
			out = append(out, t)
		}
	}
	return out
}

// Blank replaces every byte of s except newlines with a space, so byte
// offsets and line numbers are preserved.
func Blank(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c != '\n' {
			b[i] = ' '
		}
	}
	return string(b)
}

// rewrite rebuilds src with each token's text replaced by fn(tok).
// Whitespace between tokens is kept as is.
func rewrite(src string, toks []Token, fn func(Token) string) string {
	var b strings.Builder
	b.Grow(len(src))
	prev := 0
	for _, t := range toks {
		b.WriteString(src[prev:t.Start])
		b.WriteString(fn(t))
		prev = t.End
	}
	b.WriteString(src[prev:])
	return b.String()
}

// StripComments blanks every comment in src.
func StripComments(src string, d Dialect) string {
	return rewrite(src, Tokenize(src, d), func(t Token) string {
		if t.IsComment() {
			return Blank(t.Text)
		}
		return t.Text
	})
}

// StripLiterals blanks comments and the contents of string, template and
// regex literals, keeping their delimiters. What remains is code only.
func StripLiterals(src string, d Dialect) string {
	return rewrite(src, Tokenize(src, d), func(t Token) string {
		switch t.Kind {
		case KindLineComment, KindBlockComment:
			return Blank(t.Text)
		case KindString, KindRegex:
			return blankInterior(t.Text, 1, 1)
		case KindTemplate:
			head, tail := 1, 0
			switch {
			case strings.HasSuffix(t.Text, "${") && len(t.Text) >= 3:
				tail = 2
			case strings.HasSuffix(t.Text, "`") && len(t.Text) >= 2:
				tail = 1
			}
			return blankInterior(t.Text, head, tail)
		}
		return t.Text
	})
}

func blankInterior(s string, head, tail int) string {
	if len(s) <= head+tail {
		return s
	}
	return s[:head] + Blank(s[head:len(s)-tail]) + s[len(s)-tail:]
}

// Compact concatenates the significant tokens of src with no whitespace
// between them. Two snippets that differ only in comments or layout
// compact to the same text.
func Compact(src string, d Dialect) string {
	return CompactTokens(Significant(Tokenize(src, d)))
}

// CompactTokens concatenates token texts.
func CompactTokens(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Identifiers returns the identifiers referenced in toks, in order, with
// property names after "." or "?." left out.
func Identifiers(toks []Token) []string {
	var out []string
	for i, t := range toks {
		if t.Kind != KindIdent {
			continue
		}
		if i > 0 && (toks[i-1].Is(KindPunct, ".") || toks[i-1].Is(KindPunct, "?.")) {
			continue
		}
		out = append(out, t.Text)
	}
	return out
}
