package source

// Declaration is a top-level name bound by a snippet, with the compacted
// text of its initializer when it has a simple one.
type Declaration struct {
	Name string
	Init string
}

// Declarations returns the names a snippet binds: const/let/var bindings
// (including destructuring), function and class names for JS, and
// assignment targets, def and class names for Python.
func Declarations(src string, d Dialect) []Declaration {
	toks := Significant(Tokenize(src, d))
	if d == DialectPython {
		return pyDeclarations(toks)
	}
	return jsDeclarations(toks)
}

// DeclaredNames returns just the names from Declarations.
func DeclaredNames(src string, d Dialect) []string {
	decls := Declarations(src, d)
	out := make([]string, len(decls))
	for i, decl := range decls {
		out[i] = decl.Name
	}
	return out
}

func jsDeclarations(toks []Token) []Declaration {
	var out []Declaration
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Is(KindKeyword, "function") || t.Is(KindKeyword, "class"):
			j := i + 1
			if j < len(toks) && toks[j].Is(KindPunct, "*") {
				j++
			}
			if j < len(toks) && toks[j].Kind == KindIdent {
				out = append(out, Declaration{Name: toks[j].Text})
			}
		case t.Is(KindKeyword, "const") || t.Is(KindKeyword, "let") || t.Is(KindKeyword, "var"):
			var decls []Declaration
			decls, i = jsBindingList(toks, i+1)
			out = append(out, decls...)
		}
	}
	return out
}

// jsBindingList parses "a = 1, [b, c] = xs, d" starting at toks[i] and
// returns the bindings and the index of the last token consumed.
func jsBindingList(toks []Token, i int) ([]Declaration, int) {
	var out []Declaration
	for i < len(toks) {
		var names []string
		switch t := toks[i]; {
		case t.Kind == KindIdent:
			names = []string{t.Text}
			i++
		case t.Is(KindPunct, "[") || t.Is(KindPunct, "{"):
			names, i = jsPattern(toks, i)
		default:
			return out, i - 1
		}

		// Skip a type annotation up to "=", "," or the end of the statement.
		for i < len(toks) && toks[i].Is(KindPunct, ":") {
			i = skipExpr(toks, i+1, true)
		}

		init := ""
		if i < len(toks) && toks[i].Is(KindPunct, "=") {
			end := skipExpr(toks, i+1, false)
			init = CompactTokens(toks[i+1 : end])
			i = end
		}
		for _, n := range names {
			decl := Declaration{Name: n}
			if len(names) == 1 {
				decl.Init = init
			}
			out = append(out, decl)
		}

		if i < len(toks) && toks[i].Is(KindPunct, ",") {
			i++
			continue
		}
		return out, i - 1
	}
	return out, i - 1
}

// jsPattern collects the bound names of a destructuring pattern starting at
// an opening bracket. In object patterns "key: name" binds name.
func jsPattern(toks []Token, i int) ([]string, int) {
	var names []string
	depth := 0
	for ; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Is(KindPunct, "[") || t.Is(KindPunct, "{"):
			depth++
		case t.Is(KindPunct, "]") || t.Is(KindPunct, "}"):
			depth--
			if depth == 0 {
				return names, i + 1
			}
		case t.Is(KindPunct, "="):
			// default value: skip it
			i = skipExpr(toks, i+1, true) - 1
		case t.Kind == KindIdent:
			if i+1 < len(toks) && toks[i+1].Is(KindPunct, ":") {
				continue
			}
			names = append(names, t.Text)
		}
	}
	return names, i
}

// skipExpr returns the index of the first token at bracket depth zero that
// ends the expression starting at toks[i]: a ",", a ";", a closing bracket,
// or (with stopAtAssign) a "=". A line break ends the expression when the
// previous token cannot continue it.
func skipExpr(toks []Token, i int, stopAtAssign bool) int {
	depth := 0
	start := i
	for ; i < len(toks); i++ {
		t := toks[i]
		if depth == 0 && i > start && t.Line != toks[i-1].Line && !continues(toks[i-1]) && !leadsContinuation(t) {
			return i
		}
		if t.Kind == KindTemplate {
			switch {
			case t.Text[0] != '}' && len(t.Text) >= 2 && t.Text[len(t.Text)-2:] == "${":
				depth++
			case t.Text[0] == '}' && t.Text[len(t.Text)-1] == '`':
				depth--
			}
			continue
		}
		if t.Kind != KindPunct {
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
		case "=":
			if depth == 0 && stopAtAssign {
				return i
			}
		}
	}
	return i
}

// continues reports whether t cannot end an expression, so the next line
// carries on the same one.
func continues(t Token) bool {
	if t.Kind != KindPunct {
		return t.Kind == KindKeyword && (t.Text == "new" || t.Text == "typeof" || t.Text == "in" || t.Text == "instanceof")
	}
	switch t.Text {
	case ")", "]", "}", "++", "--":
		return false
	}
	return true
}

// leadsContinuation reports whether a line starting with t continues the
// previous expression (method chains and binary operators).
func leadsContinuation(t Token) bool {
	if t.Kind != KindPunct {
		return false
	}
	switch t.Text {
	case ".", "?.", "+", "*", "/", "%", "&&", "||", "??", "?", ":", "==", "===", "!=", "!==", "<", ">", "<=", ">=", "|", "&", "^":
		return true
	}
	return false
}

func pyDeclarations(toks []Token) []Declaration {
	var out []Declaration
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		lineStart := i == 0 || toks[i-1].Line != t.Line
		if !lineStart {
			continue
		}

		if (t.Is(KindKeyword, "def") || t.Is(KindKeyword, "class")) && i+1 < len(toks) && toks[i+1].Kind == KindIdent {
			out = append(out, Declaration{Name: toks[i+1].Text})
			continue
		}
		if t.Kind != KindIdent {
			continue
		}

		// a, b = ... / x: int = ... / x = ...
		var names []string
		j := i
		for j < len(toks) && toks[j].Kind == KindIdent && toks[j].Line == t.Line {
			names = append(names, toks[j].Text)
			j++
			if j < len(toks) && toks[j].Is(KindPunct, ",") {
				j++
				continue
			}
			break
		}
		if j < len(toks) && toks[j].Is(KindPunct, ":") {
			j = pySkipLine(toks, j+1, true)
		}
		if j >= len(toks) || !toks[j].Is(KindPunct, "=") {
			continue
		}

		end := pySkipLine(toks, j+1, false)
		init := CompactTokens(toks[j+1 : end])
		for _, n := range names {
			decl := Declaration{Name: n}
			if len(names) == 1 {
				decl.Init = init
			}
			out = append(out, decl)
		}
		i = end - 1
	}
	return out
}

// pySkipLine returns the index of the first token after the logical line
// starting at toks[i]; brackets join physical lines. With stopAtAssign it
// stops at a top-level "=" instead.
func pySkipLine(toks []Token, i int, stopAtAssign bool) int {
	depth := 0
	start := i
	for ; i < len(toks); i++ {
		t := toks[i]
		if depth == 0 && i > start && t.Line != toks[i-1].Line {
			return i
		}
		if t.Kind != KindPunct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=":
			if depth == 0 && stopAtAssign {
				return i
			}
		case ";":
			if depth == 0 {
				return i
			}
		}
	}
	return i
}

// ExprEnd returns the index of the first token after the expression that
// starts at toks[i]. The expression ends at a top-level ",", ";" or
// closing bracket, or at a line break that cannot continue it.
func ExprEnd(toks []Token, i int, d Dialect) int {
	if d == DialectPython {
		return pySkipLine(toks, i, false)
	}
	return skipExpr(toks, i, false)
}

// LastStatement returns the bounds toks[start:end] of the final top-level
// statement, trailing semicolons left out. Both are zero for no tokens.
func LastStatement(toks []Token, d Dialect) (start, end int) {
	for i := 0; i < len(toks); {
		next := ExprEnd(toks, i, d)
		if next <= i {
			next = i + 1
		}
		if next < len(toks) && toks[next].Is(KindPunct, ";") {
			next++
		}
		start, i = i, next
	}
	end = len(toks)
	for end > start && toks[end-1].Is(KindPunct, ";") {
		end--
	}
	return start, end
}
