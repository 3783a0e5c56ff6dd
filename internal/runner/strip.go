package runner

import (
	"github.com/felixgeelhaar/drillpad/internal/source"
)

// StripTypeAnnotations removes TypeScript-only syntax so that a plain
// JavaScript evaluator can run src. It recognizes parameter, variable,
// field and return annotations, optional markers, interface and type
// declarations, "as"/"satisfies" casts, generic parameter and argument
// lists, access modifiers and non-null assertions.
//
// Removed text is replaced by spaces (newlines are kept) so byte offsets
// and line numbers in error messages still point at the original source.
// String, template, regex and comment contents are never modified.
func StripTypeAnnotations(src string) string {
	toks := source.Significant(source.Tokenize(src, source.DialectJS))
	if len(toks) == 0 {
		return src
	}
	st := &stripper{
		src:  []byte(src),
		toks: toks,
		dead: make([]bool, len(toks)),
	}
	st.run()
	return string(st.src)
}

type stripper struct {
	src  []byte
	toks []source.Token
	dead []bool

	depth        int   // current brace depth
	classBodies  []int // brace depth of each open class body
	pendingClass bool  // between "class" and its opening brace
}

func (st *stripper) tok(i int) source.Token {
	if i < 0 || i >= len(st.toks) {
		return source.Token{Kind: -1}
	}
	return st.toks[i]
}

func (st *stripper) punct(i int, text string) bool {
	return st.tok(i).Is(source.KindPunct, text)
}

func (st *stripper) ident(i int, text string) bool {
	return st.tok(i).Is(source.KindIdent, text)
}

// blank removes tokens from..to inclusive.
func (st *stripper) blank(from, to int) {
	if from > to || from < 0 || to >= len(st.toks) {
		return
	}
	for k := from; k <= to; k++ {
		st.dead[k] = true
	}
	for p := st.toks[from].Start; p < st.toks[to].End; p++ {
		if st.src[p] != '\n' {
			st.src[p] = ' '
		}
	}
}

func (st *stripper) run() {
	for i := 0; i < len(st.toks); i++ {
		if st.dead[i] {
			continue
		}
		t := st.toks[i]

		switch {
		case t.Is(source.KindPunct, "{"):
			st.depth++
			if st.pendingClass {
				st.classBodies = append(st.classBodies, st.depth)
				st.pendingClass = false
			}
			continue
		case t.Is(source.KindPunct, "}"):
			if n := len(st.classBodies); n > 0 && st.classBodies[n-1] == st.depth {
				st.classBodies = st.classBodies[:n-1]
			}
			st.depth--
			continue
		}

		if st.inClassBody() && st.memberStart(i) {
			st.classMember(i)
		}

		switch {
		case t.Kind == source.KindIdent && t.Text == "interface" && st.statementStart(i) && st.tok(i+1).Kind == source.KindIdent:
			st.interfaceDecl(i)
		case t.Kind == source.KindIdent && t.Text == "type" && st.statementStart(i) && st.tok(i+1).Kind == source.KindIdent &&
			(st.punct(i+2, "=") || st.punct(i+2, "<")):
			st.typeAlias(i)
		case t.Kind == source.KindIdent && t.Text == "abstract" && st.tok(i+1).Is(source.KindKeyword, "class"):
			st.blank(i, i)
		case t.Is(source.KindKeyword, "class"):
			st.pendingClass = true
		case t.Kind == source.KindIdent && t.Text == "implements" && st.pendingClass:
			st.blank(i, st.untilBrace(i+1)-1)
		case t.Is(source.KindKeyword, "const") || t.Is(source.KindKeyword, "let") || t.Is(source.KindKeyword, "var"):
			st.declaration(i + 1)
		case t.Is(source.KindPunct, "("):
			if st.isParamList(i) {
				st.params(i)
			}
		case t.Is(source.KindPunct, "<"):
			st.genericList(i)
		case t.Kind == source.KindIdent && (t.Text == "as" || t.Text == "satisfies") && st.castable(i):
			st.blank(i, st.skipType(i+1, false)-1)
		case t.Is(source.KindPunct, "!") && st.nonNull(i):
			st.blank(i, i)
		}
	}
}

func (st *stripper) inClassBody() bool {
	n := len(st.classBodies)
	return n > 0 && st.classBodies[n-1] == st.depth
}

// statementStart reports whether toks[i] begins a statement.
func (st *stripper) statementStart(i int) bool {
	if i == 0 {
		return true
	}
	prev := st.prevLive(i)
	if prev < 0 {
		return true
	}
	p := st.toks[prev]
	if p.Kind == source.KindPunct && (p.Text == ";" || p.Text == "{" || p.Text == "}") {
		return true
	}
	if p.Is(source.KindKeyword, "export") || p.Is(source.KindIdent, "declare") {
		return true
	}
	return p.Line < st.toks[i].Line && !continuesLine(p)
}

func (st *stripper) memberStart(i int) bool {
	prev := st.prevLive(i)
	if prev < 0 {
		return true
	}
	p := st.toks[prev]
	if p.Kind == source.KindPunct && (p.Text == "{" || p.Text == ";" || p.Text == "}") {
		return true
	}
	return p.Line < st.toks[i].Line
}

func (st *stripper) prevLive(i int) int {
	for k := i - 1; k >= 0; k-- {
		if !st.dead[k] {
			return k
		}
	}
	return -1
}

func continuesLine(t source.Token) bool {
	if t.Kind != source.KindPunct {
		return false
	}
	switch t.Text {
	case ")", "]", "}", "++", "--":
		return false
	}
	return true
}

// exprEnd reports whether t can end an expression.
func exprEnd(t source.Token) bool {
	switch t.Kind {
	case source.KindIdent, source.KindNumber, source.KindString, source.KindRegex:
		return true
	case source.KindTemplate:
		return t.Text[len(t.Text)-1] == '`'
	case source.KindKeyword:
		switch t.Text {
		case "this", "super", "null", "true", "false", "undefined":
			return true
		}
	case source.KindPunct:
		return t.Text == ")" || t.Text == "]" || t.Text == "}"
	}
	return false
}

var modifiers = map[string]bool{
	"public": true, "private": true, "protected": true, "readonly": true,
	"declare": true, "abstract": true, "override": true,
}

// classMember strips modifiers and a field annotation at the start of a
// class member.
func (st *stripper) classMember(i int) {
	j := i
	for st.tok(j).Kind == source.KindIdent && modifiers[st.tok(j).Text] {
		next := st.tok(j + 1)
		if next.Kind != source.KindIdent && next.Kind != source.KindKeyword && !next.Is(source.KindPunct, "[") {
			break
		}
		st.blank(j, j)
		j++
	}
	if st.tok(j).Is(source.KindIdent, "static") {
		j++
	}
	name := st.tok(j)
	if name.Kind != source.KindIdent && name.Kind != source.KindKeyword {
		return
	}
	k := j + 1
	if st.punct(k, "?") || st.punct(k, "!") {
		if st.punct(k+1, ":") {
			st.blank(k, k)
			k++
		}
	}
	if st.punct(k, ":") {
		st.blank(k, st.skipType(k+1, false)-1)
	}
}

// declaration strips binding annotations in a const/let/var list that
// starts at toks[i].
func (st *stripper) declaration(i int) {
	for i < len(st.toks) {
		switch t := st.tok(i); {
		case t.Kind == source.KindIdent:
			i++
		case t.Is(source.KindPunct, "[") || t.Is(source.KindPunct, "{"):
			i = st.matchClose(i) + 1
		default:
			return
		}
		if st.punct(i, "!") && st.punct(i+1, ":") {
			st.blank(i, i)
			i++
		}
		if st.punct(i, ":") {
			end := st.skipType(i+1, false)
			st.blank(i, end-1)
			i = end
		}
		if !st.punct(i, "=") {
			if st.punct(i, ",") {
				i++
				continue
			}
			return
		}
		i = st.initializerEnd(i + 1)
		if !st.punct(i, ",") {
			return
		}
		i++
	}
}

// initializerEnd finds the "," or ";" that ends an initializer, or the
// first token of the next line when the initializer cannot continue.
func (st *stripper) initializerEnd(i int) int {
	depth := 0
	start := i
	for ; i < len(st.toks); i++ {
		t := st.toks[i]
		if depth == 0 && i > start && t.Line != st.toks[i-1].Line && !continuesLine(st.toks[i-1]) {
			return i
		}
		if t.Kind != source.KindPunct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth == 0 {
				return i
			}
			depth--
		case ",", ";":
			if depth == 0 {
				return i
			}
		}
	}
	return i
}

// matchClose returns the index of the bracket closing the one at toks[i].
func (st *stripper) matchClose(i int) int {
	depth := 0
	for k := i; k < len(st.toks); k++ {
		t := st.toks[k]
		if t.Kind != source.KindPunct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return len(st.toks) - 1
}

func (st *stripper) untilBrace(i int) int {
	for ; i < len(st.toks); i++ {
		if st.punct(i, "{") {
			return i
		}
	}
	return i
}

// skipType returns the index of the first token after the type that
// starts at toks[i]. With arrowEnds set, a "=>" at the top level ends the
// type (it belongs to an arrow function rather than a function type).
func (st *stripper) skipType(i int, arrowEnds bool) int {
	depth := 0
	operand := true
	start := i
	for ; i < len(st.toks); i++ {
		t := st.toks[i]
		if depth == 0 && i > start && t.Line != st.toks[i-1].Line && !operand &&
			!t.Is(source.KindPunct, "|") && !t.Is(source.KindPunct, "&") {
			return i
		}

		if t.Kind != source.KindPunct {
			if depth == 0 && !operand {
				switch t.Text {
				case "extends", "is":
					operand = true
					continue
				}
				return i
			}
			switch t.Text {
			case "keyof", "typeof", "readonly", "unique", "infer", "new", "asserts":
				operand = true
			default:
				operand = false
			}
			continue
		}

		switch t.Text {
		case "(", "[", "<":
			depth++
			operand = true
		case "{":
			if depth == 0 && !operand {
				return i
			}
			depth++
			operand = true
		case ")", "]", "}", ">":
			if depth == 0 {
				return i
			}
			depth--
			operand = false
		case ">>":
			if depth < 2 {
				return i
			}
			depth -= 2
			operand = false
		case ">>>":
			if depth < 3 {
				return i
			}
			depth -= 3
			operand = false
		case "|", "&", ".", "?.":
			operand = true
		case "=>":
			if depth == 0 && arrowEnds {
				return i
			}
			operand = true
		case ",", ";", ":", "?", "=":
			if depth == 0 {
				return i
			}
			operand = true
		default:
			if depth == 0 {
				return i
			}
			operand = true
		}
	}
	return i
}

func (st *stripper) interfaceDecl(i int) {
	open := st.untilBrace(i)
	if open >= len(st.toks) {
		return
	}
	end := st.matchClose(open)
	if st.punct(end+1, ";") {
		end++
	}
	from := i
	if p := st.prevLive(i); p >= 0 && st.toks[p].Is(source.KindKeyword, "export") {
		from = p
	}
	st.blank(from, end)
}

func (st *stripper) typeAlias(i int) {
	eq := i + 2
	if st.punct(eq, "<") {
		eq = st.matchAngle(eq) + 1
	}
	if !st.punct(eq, "=") {
		return
	}
	end := st.skipType(eq+1, false)
	if st.punct(end, ";") {
		end++
	}
	from := i
	if p := st.prevLive(i); p >= 0 && st.toks[p].Is(source.KindKeyword, "export") {
		from = p
	}
	st.blank(from, end-1)
}

// matchAngle returns the index of the ">" closing the "<" at toks[i], or
// -1 when the tokens in between cannot form a type list.
func (st *stripper) matchAngle(i int) int {
	angle, nest := 0, 0
	for k := i; k < len(st.toks); k++ {
		t := st.toks[k]
		switch t.Kind {
		case source.KindIdent, source.KindString, source.KindNumber:
			continue
		case source.KindKeyword:
			switch t.Text {
			case "typeof", "null", "undefined", "void", "extends", "this", "true", "false", "new":
				continue
			}
			return -1
		case source.KindPunct:
		default:
			return -1
		}
		switch t.Text {
		case "<":
			angle++
		case ">":
			angle--
		case ">>":
			angle -= 2
		case ">>>":
			angle -= 3
		case "(", "[", "{":
			nest++
		case ")", "]", "}":
			nest--
			if nest < 0 {
				return -1
			}
		case ";", ":", "?":
			if nest == 0 {
				return -1
			}
		case ",", ".", "|", "&", "=>", "=":
		default:
			return -1
		}
		if angle <= 0 {
			if angle < 0 || nest != 0 {
				return -1
			}
			return k
		}
	}
	return -1
}

// genericList strips "<...>" type parameters or arguments: after a
// function, class or method name, in a generic call or "new" expression,
// and in front of a generic arrow function.
func (st *stripper) genericList(i int) {
	prev := st.tok(st.prevLive(i))
	named := prev.Kind == source.KindIdent || prev.Is(source.KindKeyword, "function")
	exprStart := prev.Kind == source.KindPunct && prev.Text != ")" && prev.Text != "]" && prev.Text != "}" ||
		prev.Is(source.KindKeyword, "return") || prev.Kind < 0
	if !named && !exprStart {
		return
	}

	end := st.matchAngle(i)
	if end < 0 {
		return
	}
	next := st.tok(end + 1)
	switch {
	case next.Is(source.KindPunct, "("):
	case named && st.pendingClass && (next.Is(source.KindPunct, "{") || next.Is(source.KindKeyword, "extends") || next.Is(source.KindIdent, "implements")):
	default:
		return
	}
	if exprStart && !named && !st.isParamList(end+1) {
		return
	}
	st.blank(i, end)
}

// isParamList decides whether the "(" at toks[i] opens a function's
// parameter list rather than a call or a grouping.
func (st *stripper) isParamList(i int) bool {
	close := st.matchClose(i)
	after := st.tok(close + 1)
	if after.Is(source.KindPunct, "=>") {
		return true
	}

	body := after.Is(source.KindPunct, "{")
	if after.Is(source.KindPunct, ":") {
		end := st.skipType(close+2, true)
		if st.punct(end, "=>") {
			return !st.punct(st.prevLive(i), "?")
		}
		body = st.punct(end, "{")
	}
	if !body {
		return false
	}

	prevIdx := st.prevLive(i)
	prev := st.tok(prevIdx)
	if prev.Kind == source.KindIdent {
		before := st.tok(st.prevLive(prevIdx))
		return !before.Is(source.KindPunct, "?") && !before.Is(source.KindPunct, ".") && !before.Is(source.KindPunct, "?.")
	}
	return prev.Is(source.KindKeyword, "function") || prev.Is(source.KindKeyword, "catch") ||
		prev.Is(source.KindPunct, "*") || prev.Is(source.KindPunct, ">")
}

// params strips annotations, optional markers and modifiers inside the
// parameter list at toks[open], plus the return type after it.
func (st *stripper) params(open int) {
	close := st.matchClose(open)
	depth := 0
	inDefault := false
	for k := open + 1; k < close; k++ {
		t := st.toks[k]
		if t.Kind == source.KindIdent && depth == 0 && !inDefault && modifiers[t.Text] {
			if n := st.tok(k + 1); n.Kind == source.KindIdent || n.Is(source.KindPunct, "{") || n.Is(source.KindPunct, "[") {
				st.blank(k, k)
				continue
			}
		}
		if t.Kind != source.KindPunct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=":
			if depth == 0 {
				inDefault = true
			}
		case ",":
			if depth == 0 {
				inDefault = false
			}
		case "?":
			if depth == 0 && !inDefault && (st.punct(k+1, ":") || st.punct(k+1, ",") || st.punct(k+1, ")") || st.punct(k+1, "=")) {
				st.blank(k, k)
			}
		case ":":
			if depth == 0 && !inDefault {
				end := min(st.skipType(k+1, false), close)
				st.blank(k, end-1)
				k = end - 1
			}
		}
	}

	if st.punct(close+1, ":") {
		end := st.skipType(close+2, true)
		st.blank(close+1, end-1)
	}
}

// castable reports whether the "as"/"satisfies" at toks[i] follows an
// expression on the same line.
func (st *stripper) castable(i int) bool {
	p := st.prevLive(i)
	if p < 0 || st.toks[p].Line != st.toks[i].Line || !exprEnd(st.toks[p]) {
		return false
	}
	next := st.tok(i + 1)
	return next.Kind == source.KindIdent || next.Kind == source.KindKeyword || next.Kind == source.KindString ||
		next.Is(source.KindPunct, "{") || next.Is(source.KindPunct, "[") || next.Is(source.KindPunct, "(")
}

// nonNull reports whether the "!" at toks[i] is a postfix non-null
// assertion.
func (st *stripper) nonNull(i int) bool {
	p := st.prevLive(i)
	if p < 0 || st.toks[p].Line != st.toks[i].Line {
		return false
	}
	prev := st.toks[p]
	if !(prev.Kind == source.KindIdent || prev.Is(source.KindPunct, ")") || prev.Is(source.KindPunct, "]")) {
		return false
	}
	next := st.tok(i + 1)
	if next.Kind < 0 || next.Line != st.toks[i].Line {
		return true
	}
	if next.Kind != source.KindPunct {
		return false
	}
	switch next.Text {
	case ".", "?.", "[", ")", "]", ",", ";", "=", "}", ":":
		return true
	}
	return false
}
