package anticheat

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/drillpad/internal/value"
)

// style is one way of writing a value as source text.
type style int

const (
	styleJSON         style = iota // "s", true, null, {"k":1}
	styleSingle                    // 's', {'k':1}
	styleBareKeys                  // {k:1}
	stylePython                    // 's', True, None, {1,2}
	stylePythonDouble              // "s", True, None
)

var allStyles = []style{styleJSON, styleSingle, styleBareKeys, stylePython, stylePythonDouble}

const maxRenderDepth = 32

var bareKey = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// renderings lists whitespace-free source spellings of v across JS, JSON
// and Python conventions. Values with no literal spelling yield none.
func renderings(v value.Value) []string {
	var out []string
	for _, s := range allStyles {
		if r, ok := render(v, s, 0); ok {
			out = append(out, r)
		}
	}
	if n, ok := v.(value.Number); ok {
		f := float64(n)
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
			out = append(out, value.FormatNumber(f)+".0")
		}
	}
	return lo.Uniq(out)
}

func (s style) python() bool {
	return s == stylePython || s == stylePythonDouble
}

func render(v value.Value, s style, depth int) (string, bool) {
	if depth > maxRenderDepth {
		return "", false
	}

	switch tv := v.(type) {
	case value.Null:
		if s.python() {
			return "None", true
		}
		return "null", true

	case value.Bool:
		switch {
		case s.python() && bool(tv):
			return "True", true
		case s.python():
			return "False", true
		case bool(tv):
			return "true", true
		}
		return "false", true

	case value.Number:
		f := float64(tv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		text := value.FormatNumber(f)
		if strings.ContainsAny(text, "eE") {
			return "", false
		}
		return text, true

	case value.String:
		q := `"`
		if s == styleSingle || s == stylePython {
			q = "'"
		}
		if strings.ContainsAny(string(tv), q+"\\\n\r") {
			return "", false
		}
		return q + string(tv) + q, true

	case value.List:
		items, ok := renderAll(tv, s, depth)
		if !ok {
			return "", false
		}
		return "[" + strings.Join(items, ",") + "]", true

	case value.Set:
		items, ok := renderAll(tv, s, depth)
		if !ok {
			return "", false
		}
		sort.Strings(items)
		switch {
		case s.python() && len(items) == 0:
			return "set()", true
		case s.python():
			return "{" + strings.Join(items, ",") + "}", true
		}
		return "newSet([" + strings.Join(items, ",") + "])", true

	case value.Map:
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			key, ok := renderKey(k, s)
			if !ok {
				return "", false
			}
			item, ok := render(tv[k], s, depth+1)
			if !ok {
				return "", false
			}
			parts = append(parts, key+":"+item)
		}
		return "{" + strings.Join(parts, ",") + "}", true
	}

	return "", false
}

func renderAll(items []value.Value, s style, depth int) ([]string, bool) {
	out := make([]string, len(items))
	for i, item := range items {
		r, ok := render(item, s, depth+1)
		if !ok {
			return nil, false
		}
		out[i] = r
	}
	return out, true
}

func renderKey(k string, s style) (string, bool) {
	if s == styleBareKeys && bareKey.MatchString(k) {
		return k, true
	}
	return render(value.String(k), s, 0)
}
