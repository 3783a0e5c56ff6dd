package testrun

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/source"
)

const maxVariationAttempts = 10

// GenerateVariations derives up to n test cases from problem's setup by
// perturbing numeric literals that initialize a variable and perturbing
// and shuffling numeric array literals. It runs nothing, and the same
// seed always yields the same cases. Expected values are left nil; see
// Runner.Materialize. A setup with nothing numeric to vary yields none.
func GenerateVariations(problem *domain.Problem, n int, seed uint64) []domain.TestCase {
	if problem == nil || n <= 0 {
		return nil
	}
	d := source.DialectJS
	if problem.Language == domain.LanguagePython {
		d = source.DialectPython
	}
	sites := findSites(problem.Setup, d)
	if len(sites) == 0 {
		return nil
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	seen := map[string]bool{problem.Setup: true}
	var out []domain.TestCase
	for attempt := 0; len(out) < n && attempt < n*maxVariationAttempts; attempt++ {
		setup := applySites(problem.Setup, sites, rng)
		if seen[setup] {
			continue
		}
		seen[setup] = true
		out = append(out, domain.TestCase{
			Setup:       setup,
			Description: fmt.Sprintf("variation %d", len(out)+1),
		})
	}
	return out
}

// site is a span of the setup to rewrite: one number or the elements of
// a numeric array literal.
type site struct {
	start, end int
	numbers    []number
	array      bool
}

type number struct {
	value    float64
	decimals int
}

func findSites(setup string, d source.Dialect) []site {
	toks := source.Significant(source.Tokenize(setup, d))
	inits := jsInitializers(toks)
	if d == source.DialectPython {
		inits = pyInitializers(setup, toks)
	}
	var sites []site
	for i := 0; i < len(toks); i++ {
		if !inits[i] || i+1 >= len(toks) {
			continue
		}
		j := i + 1
		if toks[j].Is(source.KindPunct, "[") {
			if s, end, ok := arraySite(toks, j); ok {
				sites = append(sites, s)
				i = end
			}
			continue
		}
		if num, start, next, ok := numberAt(toks, j); ok && endsValue(toks, next) {
			sites = append(sites, site{start: start, end: toks[next-1].End, numbers: []number{num}})
			i = next - 1
		}
	}
	return sites
}

// jsInitializers returns the indexes of the "=" tokens that start the
// initializer of a top-level const, let or var binding. Declarations
// inside blocks, functions and for-loop headers are not inputs.
func jsInitializers(toks []source.Token) map[int]bool {
	inits := make(map[int]bool)
	depth := 0
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == source.KindPunct {
			switch t.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
			continue
		}
		if depth != 0 || !(t.Is(source.KindKeyword, "const") || t.Is(source.KindKeyword, "let") || t.Is(source.KindKeyword, "var")) {
			continue
		}
		i = bindingInitializers(toks, i+1, inits) - 1
	}
	return inits
}

// bindingInitializers walks the binding list starting at toks[i], marks
// each initializer's "=" and returns the index after the list.
func bindingInitializers(toks []source.Token, i int, inits map[int]bool) int {
	for i < len(toks) {
		// Target and type annotation, up to "=", "," or the statement end.
		depth := 0
		start := i
		for ; i < len(toks); i++ {
			t := toks[i]
			if depth == 0 && i > start && t.Line != toks[i-1].Line {
				return i
			}
			if t.Kind != source.KindPunct {
				continue
			}
			if depth == 0 && (t.Text == "=" || t.Text == "," || t.Text == ";") {
				break
			}
			switch t.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
		if i >= len(toks) || toks[i].Is(source.KindPunct, ";") {
			return i
		}
		if toks[i].Is(source.KindPunct, "=") {
			inits[i] = true
			i = source.ExprEnd(toks, i+1, source.DialectJS)
		}
		if i >= len(toks) || !toks[i].Is(source.KindPunct, ",") {
			return i
		}
		i++
	}
	return i
}

// pyInitializers returns the indexes of the "=" tokens of module-level
// assignments: lines that start in the first column.
func pyInitializers(setup string, toks []source.Token) map[int]bool {
	inits := make(map[int]bool)
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		lineStart := i == 0 || toks[i-1].Line != t.Line
		if !lineStart || t.Kind != source.KindIdent || (t.Start > 0 && setup[t.Start-1] != '\n') {
			continue
		}
		depth := 0
		for j := i; j < len(toks) && toks[j].Line == t.Line; j++ {
			if toks[j].Kind != source.KindPunct {
				continue
			}
			switch toks[j].Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			case "=":
				if depth == 0 {
					inits[j] = true
				}
			}
			if inits[j] {
				break
			}
		}
	}
	return inits
}

// arraySite matches "[n, -n, n]" at toks[open]. Empty arrays and arrays
// with anything but number literals are left alone.
func arraySite(toks []source.Token, open int) (site, int, bool) {
	var nums []number
	start := -1
	i := open + 1
	for i < len(toks) {
		num, s, next, ok := numberAt(toks, i)
		if !ok {
			return site{}, 0, false
		}
		if start < 0 {
			start = s
		}
		nums = append(nums, num)
		i = next
		if i < len(toks) && toks[i].Is(source.KindPunct, ",") {
			i++
			if i < len(toks) && toks[i].Is(source.KindPunct, "]") {
				break
			}
			continue
		}
		break
	}
	if len(nums) == 0 || i >= len(toks) || !toks[i].Is(source.KindPunct, "]") {
		return site{}, 0, false
	}
	end := toks[i].Start
	if toks[i-1].Is(source.KindPunct, ",") {
		end = toks[i-1].Start
	}
	return site{start: start, end: end, numbers: nums, array: true}, i, true
}

// numberAt reads an optionally negated decimal literal at toks[i].
func numberAt(toks []source.Token, i int) (number, int, int, bool) {
	if i >= len(toks) {
		return number{}, 0, 0, false
	}
	start := toks[i].Start
	neg := false
	if toks[i].Is(source.KindPunct, "-") {
		neg = true
		i++
	}
	if i >= len(toks) || toks[i].Kind != source.KindNumber {
		return number{}, 0, 0, false
	}
	text := toks[i].Text
	if strings.ContainsAny(text, "xXoObBeEn_jJ") {
		return number{}, 0, 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return number{}, 0, 0, false
	}
	if neg {
		f = -f
	}
	decimals := 0
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		decimals = len(text) - dot - 1
	}
	return number{value: f, decimals: decimals}, start, i + 1, true
}

// endsValue reports whether the initializer stops after the number, so
// "x = 2 * y" is not treated as a plain literal.
func endsValue(toks []source.Token, next int) bool {
	if next >= len(toks) {
		return true
	}
	t := toks[next]
	if t.Line != toks[next-1].Line {
		return true
	}
	return t.Is(source.KindPunct, ";") || t.Is(source.KindPunct, ",") || t.Is(source.KindPunct, ")")
}

func applySites(setup string, sites []site, rng *rand.Rand) string {
	var b strings.Builder
	prev := 0
	for _, s := range sites {
		b.WriteString(setup[prev:s.start])
		b.WriteString(rewriteSite(s, rng))
		prev = s.end
	}
	b.WriteString(setup[prev:])
	return b.String()
}

func rewriteSite(s site, rng *rand.Rand) string {
	parts := make([]string, len(s.numbers))
	for i, n := range s.numbers {
		parts[i] = formatNumber(perturb(n, rng), n.decimals)
	}
	if !s.array {
		return parts[0]
	}
	rng.Shuffle(len(parts), func(i, j int) { parts[i], parts[j] = parts[j], parts[i] })
	return strings.Join(parts, ", ")
}

// perturb moves n by a small nonzero step, keeping the sign of
// non-negative values.
func perturb(n number, rng *rand.Rand) float64 {
	step := math.Pow10(-n.decimals)
	spread := max(3, int(math.Abs(n.value)/step)/4)
	delta := rng.IntN(spread) + 1
	if rng.IntN(2) == 0 {
		delta = -delta
	}
	v := n.value + float64(delta)*step
	if n.value >= 0 && v < 0 {
		v = n.value + float64(-delta)*step
	}
	return v
}

func formatNumber(f float64, decimals int) string {
	return strconv.FormatFloat(f, 'f', decimals, 64)
}
