package source

import "strings"

// Tokenize splits src into tokens. It never fails: unterminated strings,
// comments and regexes extend to the end of their line or of the input,
// and unknown bytes become single-byte punctuation.
func Tokenize(src string, d Dialect) []Token {
	s := &scanner{source: src, dialect: d, line: 1}
	var toks []Token
	for {
		tok, ok := s.next()
		if !ok {
			return toks
		}
		toks = append(toks, tok)
		if !tok.IsComment() {
			s.last = tok
			s.hasLast = true
		}
	}
}

type scanner struct {
	source  string
	dialect Dialect
	pos     int
	line    int

	// templates holds the brace depth of every open "${" in a template
	// literal, innermost last.
	templates []int

	last    Token
	hasLast bool
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *scanner) peek() byte {
	return s.peekAt(0)
}

func (s *scanner) peekAt(offset int) byte {
	p := s.pos + offset
	if p >= len(s.source) {
		return 0
	}
	return s.source[p]
}

func (s *scanner) advance() byte {
	ch := s.source[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
	}
	return ch
}

func (s *scanner) skipWhitespace() {
	for !s.atEnd() {
		switch s.peek() {
		case ' ', '\t', '\r', '\n', '\f', '\v':
			s.advance()
		default:
			return
		}
	}
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '$' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func (s *scanner) next() (Token, bool) {
	s.skipWhitespace()
	if s.atEnd() {
		return Token{}, false
	}

	start, line := s.pos, s.line
	kind := s.scan()
	return Token{
		Kind:  kind,
		Text:  s.source[start:s.pos],
		Start: start,
		End:   s.pos,
		Line:  line,
	}, true
}

func (s *scanner) scan() Kind {
	ch := s.peek()
	js := s.dialect == DialectJS

	switch {
	case js && ch == '/' && s.peekAt(1) == '/':
		s.skipLine()
		return KindLineComment
	case !js && ch == '#':
		s.skipLine()
		return KindLineComment
	case js && ch == '/' && s.peekAt(1) == '*':
		s.scanBlockComment()
		return KindBlockComment
	case ch == '"' || ch == '\'':
		s.scanQuoted()
		return KindString
	case js && ch == '`':
		s.advance()
		s.scanTemplateChunk()
		return KindTemplate
	case js && ch == '}' && len(s.templates) > 0 && s.templates[len(s.templates)-1] == 0:
		s.templates = s.templates[:len(s.templates)-1]
		s.advance()
		s.scanTemplateChunk()
		return KindTemplate
	case isDigit(ch) || (ch == '.' && isDigit(s.peekAt(1))):
		s.scanNumber()
		return KindNumber
	case isIdentStart(ch) && !(ch == '$' && !js):
		return s.scanWord()
	case js && ch == '/' && s.regexAllowed():
		s.scanRegex()
		return KindRegex
	default:
		s.scanPunct()
		return KindPunct
	}
}

func (s *scanner) skipLine() {
	for !s.atEnd() && s.peek() != '\n' {
		s.advance()
	}
}

func (s *scanner) scanBlockComment() {
	s.advance()
	s.advance()
	for !s.atEnd() {
		if s.peek() == '*' && s.peekAt(1) == '/' {
			s.advance()
			s.advance()
			return
		}
		s.advance()
	}
}

// scanQuoted consumes a quoted string starting at the opening quote.
// Python triple-quoted strings may span lines; all others stop at an
// unescaped newline when unterminated.
func (s *scanner) scanQuoted() {
	q := s.advance()
	if s.dialect == DialectPython && s.peek() == q && s.peekAt(1) == q {
		s.advance()
		s.advance()
		for !s.atEnd() {
			if s.peek() == '\\' {
				s.advance()
				if !s.atEnd() {
					s.advance()
				}
				continue
			}
			if s.peek() == q && s.peekAt(1) == q && s.peekAt(2) == q {
				s.advance()
				s.advance()
				s.advance()
				return
			}
			s.advance()
		}
		return
	}

	for !s.atEnd() {
		ch := s.peek()
		if ch == '\n' {
			return
		}
		s.advance()
		if ch == '\\' {
			if !s.atEnd() {
				s.advance()
			}
			continue
		}
		if ch == q {
			return
		}
	}
}

// scanTemplateChunk consumes template text up to and including the closing
// backtick or the next "${".
func (s *scanner) scanTemplateChunk() {
	for !s.atEnd() {
		ch := s.advance()
		switch {
		case ch == '\\':
			if !s.atEnd() {
				s.advance()
			}
		case ch == '`':
			return
		case ch == '$' && s.peek() == '{':
			s.advance()
			s.templates = append(s.templates, 0)
			return
		}
	}
}

func (s *scanner) scanNumber() {
	hex := s.peek() == '0' && (s.peekAt(1) == 'x' || s.peekAt(1) == 'X')
	for !s.atEnd() {
		ch := s.peek()
		switch {
		case isIdentPart(ch) || ch == '.':
			s.advance()
		case (ch == '+' || ch == '-') && !hex && (s.source[s.pos-1] == 'e' || s.source[s.pos-1] == 'E'):
			s.advance()
		default:
			return
		}
	}
}

func (s *scanner) scanWord() Kind {
	start := s.pos
	for !s.atEnd() && isIdentPart(s.peek()) {
		if s.dialect == DialectPython && s.peek() == '$' {
			break
		}
		s.advance()
	}
	word := s.source[start:s.pos]

	if s.dialect == DialectPython && isStringPrefix(word) && (s.peek() == '"' || s.peek() == '\'') {
		s.scanQuoted()
		return KindString
	}
	if IsKeyword(word, s.dialect) {
		return KindKeyword
	}
	return KindIdent
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

// regexAllowed decides whether a '/' starts a regex literal or is the
// division operator, based on the previous significant token.
func (s *scanner) regexAllowed() bool {
	if !s.hasLast {
		return true
	}
	switch s.last.Kind {
	case KindIdent, KindNumber, KindString, KindRegex:
		return false
	case KindTemplate:
		return strings.HasSuffix(s.last.Text, "${")
	case KindKeyword:
		switch s.last.Text {
		case "this", "super", "true", "false", "null", "undefined":
			return false
		}
		return true
	case KindPunct:
		switch s.last.Text {
		case ")", "]", "}", "++", "--":
			return false
		}
		return true
	}
	return true
}

func (s *scanner) scanRegex() {
	s.advance()
	inClass := false
	for !s.atEnd() {
		ch := s.peek()
		if ch == '\n' {
			return
		}
		s.advance()
		switch {
		case ch == '\\':
			if !s.atEnd() && s.peek() != '\n' {
				s.advance()
			}
		case ch == '[':
			inClass = true
		case ch == ']':
			inClass = false
		case ch == '/' && !inClass:
			for !s.atEnd() && isIdentPart(s.peek()) {
				s.advance()
			}
			return
		}
	}
}

func (s *scanner) scanPunct() {
	ops := jsOperators
	if s.dialect == DialectPython {
		ops = pyOperators
	}
	rest := s.source[s.pos:]
	for _, op := range ops {
		if strings.HasPrefix(rest, op) {
			for range len(op) {
				s.advance()
			}
			return
		}
	}

	ch := s.advance()
	if len(s.templates) > 0 {
		top := len(s.templates) - 1
		switch ch {
		case '{':
			s.templates[top]++
		case '}':
			s.templates[top]--
		}
	}
}
