package value

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Format renders v for feedback messages. Strings are quoted and numbers
// and booleans are not, so "42" and 42 never print the same way. Map keys
// and set elements are sorted, which makes the output stable.
func Format(v Value) string {
	var b strings.Builder
	format(&b, v, 0)
	return b.String()
}

func format(b *strings.Builder, v Value, depth int) {
	if depth > maxDepth {
		b.WriteString("...")
		return
	}

	switch tv := v.(type) {
	case nil, Undefined:
		b.WriteString("undefined")
	case Null:
		b.WriteString("null")
	case Bool:
		b.WriteString(strconv.FormatBool(bool(tv)))
	case Number:
		b.WriteString(FormatNumber(float64(tv)))
	case String:
		b.WriteString(strconv.Quote(string(tv)))
	case List:
		b.WriteByte('[')
		for i, item := range tv {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, item, depth+1)
		}
		b.WriteByte(']')
	case Map:
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			format(b, tv[k], depth+1)
		}
		b.WriteByte('}')
	case Set:
		items := make([]string, len(tv))
		for i, item := range tv {
			var ib strings.Builder
			format(&ib, item, depth+1)
			items[i] = ib.String()
		}
		sort.Strings(items)
		b.WriteString("Set{")
		b.WriteString(strings.Join(items, ", "))
		b.WriteByte('}')
	case Opaque:
		b.WriteString(tv.Desc)
	}
}

// FormatNumber prints a float the way a JavaScript console would: integral
// values without a fraction, NaN and Infinity by name.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// Display is Format, except that a top-level string prints without quotes.
// Captured console output uses it.
func Display(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	return Format(v)
}

// Describe names the kind of v for hints such as "expected a list, got a
// string".
func Describe(v Value) string {
	switch k := KindOf(v); k {
	case KindUndefined, KindNull:
		return k.String()
	case KindMap:
		return "an object"
	default:
		return "a " + k.String()
	}
}
