package anticheat

import (
	"github.com/felixgeelhaar/drillpad/internal/source"
)

// outputs collects the expressions a snippet hands back: return values,
// arguments of print and console output calls, and the final expression
// statement when it produces the completion value.
func outputs(toks []source.Token, d source.Dialect) [][]source.Token {
	var outs [][]source.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Is(source.KindKeyword, "return"):
			if i+1 < len(toks) && toks[i+1].Line == t.Line {
				end := source.ExprEnd(toks, i+1, d)
				if end > i+1 {
					outs = append(outs, toks[i+1:end])
				}
			}
		case isOutputCall(toks, i):
			open := i + 1
			if toks[i].Is(source.KindIdent, "console") {
				open = i + 3
			}
			if close := matchParen(toks, open); close > open+1 {
				outs = append(outs, toks[open+1:close])
			}
		}
	}
	if last := lastStatement(toks, d); len(last) > 0 && isExpressionStatement(last) {
		outs = append(outs, last)
	}
	return outs
}

func isOutputCall(toks []source.Token, i int) bool {
	at := func(k int, kind source.Kind, text string) bool {
		return k < len(toks) && toks[k].Is(kind, text)
	}
	if at(i, source.KindIdent, "print") && at(i+1, source.KindPunct, "(") {
		return i == 0 || !toks[i-1].Is(source.KindPunct, ".")
	}
	return at(i, source.KindIdent, "console") && at(i+1, source.KindPunct, ".") &&
		i+2 < len(toks) && toks[i+2].Kind == source.KindIdent && at(i+3, source.KindPunct, "(")
}

func matchParen(toks []source.Token, open int) int {
	depth := 0
	for k := open; k < len(toks); k++ {
		switch {
		case toks[k].Is(source.KindPunct, "("):
			depth++
		case toks[k].Is(source.KindPunct, ")"):
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// lastStatement returns the tokens of the final top-level statement.
func lastStatement(toks []source.Token, d source.Dialect) []source.Token {
	start, end := source.LastStatement(toks, d)
	return toks[start:end]
}

// isExpressionStatement rejects declarations, control flow and
// assignments, which produce no completion value worth inspecting.
func isExpressionStatement(toks []source.Token) bool {
	if toks[0].Kind == source.KindKeyword {
		switch toks[0].Text {
		case "true", "false", "null", "undefined", "this", "new", "typeof", "await",
			"True", "False", "None", "not", "lambda":
		default:
			return false
		}
	}
	for _, t := range toks {
		if t.Kind == source.KindPunct {
			switch t.Text {
			case "=", "+=", "-=", "*=", "/=":
				return false
			}
		}
	}
	return true
}

// hasCall reports whether toks contain a call other than print or a
// console method.
func hasCall(toks []source.Token) bool {
	for i := 1; i < len(toks); i++ {
		if !toks[i].Is(source.KindPunct, "(") {
			continue
		}
		prev := toks[i-1]
		callee := prev.Kind == source.KindIdent || prev.Is(source.KindPunct, ")") || prev.Is(source.KindPunct, "]")
		if !callee {
			continue
		}
		if prev.Is(source.KindIdent, "print") {
			continue
		}
		if i >= 3 && toks[i-3].Is(source.KindIdent, "console") && toks[i-2].Is(source.KindPunct, ".") {
			continue
		}
		return true
	}
	return false
}

// compactOutput compacts an output expression, dropping parentheses that
// wrap all of it.
func compactOutput(out []source.Token) string {
	for len(out) >= 2 && out[0].Is(source.KindPunct, "(") && matchParen(out, 0) == len(out)-1 {
		out = out[1 : len(out)-1]
	}
	return source.CompactTokens(out)
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "//=": true, "@=": true, "<<=": true, ">>=": true, ">>>=": true,
	"&=": true, "|=": true, "^=": true, "&&=": true, "||=": true, "??=": true,
	":=": true,
}

// assignedNames returns the variables toks write to: plain and compound
// assignment targets, increments and decrements, destructuring and tuple
// targets, and Python for-loop targets.
func assignedNames(toks []source.Token) []string {
	var out []string
	isOp := func(k int, ops ...string) bool {
		if k < 0 || k >= len(toks) || toks[k].Kind != source.KindPunct {
			return false
		}
		for _, op := range ops {
			if toks[k].Text == op {
				return true
			}
		}
		return false
	}

	for i, t := range toks {
		switch {
		case t.Kind == source.KindIdent:
			if isOp(i-1, ".", "?.") {
				continue
			}
			if isOp(i+1, "++", "--") || isOp(i-1, "++", "--") ||
				(i+1 < len(toks) && toks[i+1].Kind == source.KindPunct && assignOps[toks[i+1].Text]) {
				out = append(out, t.Text)
			}

		case t.Is(source.KindKeyword, "for"):
			for k := i + 1; k < len(toks) && !toks[k].Is(source.KindKeyword, "in"); k++ {
				if toks[k].Kind == source.KindIdent {
					out = append(out, toks[k].Text)
				} else if !isOp(k, ",", "(", ")") {
					break
				}
			}

		case t.Kind == source.KindPunct && assignOps[t.Text]:
			out = append(out, patternTargets(toks, i)...)
		}
	}
	return out
}

// patternTargets collects the names on the left of the assignment at
// toks[eq] when that side is a destructuring pattern or a bare tuple.
func patternTargets(toks []source.Token, eq int) []string {
	if eq == 0 {
		return nil
	}
	var out []string
	prev := toks[eq-1]
	if prev.Is(source.KindPunct, "]") || prev.Is(source.KindPunct, "}") || prev.Is(source.KindPunct, ")") {
		open, depth := -1, 0
		for k := eq - 1; k >= 0; k-- {
			switch toks[k].Text {
			case "]", "}", ")":
				if toks[k].Kind == source.KindPunct {
					depth++
				}
			case "[", "{", "(":
				if toks[k].Kind == source.KindPunct {
					depth--
				}
			}
			if depth == 0 {
				open = k
				break
			}
		}
		if open < 0 {
			return nil
		}
		// x[i] = ... and f(a) = ... index or call rather than destructure.
		if open > 0 {
			before := toks[open-1]
			if before.Kind == source.KindIdent || before.Is(source.KindPunct, ")") || before.Is(source.KindPunct, "]") {
				return nil
			}
		}
		for k := open + 1; k < eq-1; k++ {
			if toks[k].Kind == source.KindIdent && !toks[k-1].Is(source.KindPunct, ".") {
				out = append(out, toks[k].Text)
			}
		}
		return out
	}

	// Bare tuple targets: a, b = b, a
	line := toks[eq].Line
	for k := eq - 1; k >= 0 && toks[k].Line == line; k-- {
		switch {
		case toks[k].Kind == source.KindIdent:
			if k > 0 && toks[k-1].Is(source.KindPunct, ".") {
				return out
			}
			out = append(out, toks[k].Text)
		case toks[k].Is(source.KindPunct, ","):
		default:
			return out
		}
	}
	return out
}
