package value

import "math"

// maxDepth bounds recursion. Values built by this package are acyclic, but
// a hand-built Map can still contain itself.
const maxDepth = 256

// Equal reports whether a and b are structurally equal.
//
// Numbers follow IEEE equality (0 equals -0) except that NaN equals NaN.
// Lists compare element-wise, maps by key set and per-key value,
// sets as multisets. Values of different kinds are never equal. Equal is
// total: it never panics and always terminates.
func Equal(a, b Value) bool {
	return equal(a, b, 0)
}

func equal(a, b Value, depth int) bool {
	// Past maxDepth fall back to the depth-bounded rendering, which keeps
	// Equal reflexive for deeply nested values.
	if depth > maxDepth {
		return Format(a) == Format(b)
	}
	if KindOf(a) != KindOf(b) {
		return false
	}

	switch av := a.(type) {
	case nil, Undefined, Null:
		return true

	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv

	case Number:
		bv, ok := b.(Number)
		if !ok {
			return false
		}
		if math.IsNaN(float64(av)) && math.IsNaN(float64(bv)) {
			return true
		}
		return av == bv

	case String:
		bv, ok := b.(String)
		return ok && av == bv

	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i], depth+1) {
				return false
			}
		}
		return true

	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, aItem := range av {
			bItem, ok := bv[k]
			if !ok || !equal(aItem, bItem, depth+1) {
				return false
			}
		}
		return true

	case Set:
		bv, ok := b.(Set)
		return ok && setEqual(av, bv, depth)

	case Opaque:
		bv, ok := b.(Opaque)
		return ok && av.Desc == bv.Desc
	}

	return false
}

// setEqual matches every element of a with a distinct equal element of b.
func setEqual(a, b Set, depth int) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, item := range a {
		found := false
		for j, other := range b {
			if used[j] {
				continue
			}
			if equal(item, other, depth+1) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
