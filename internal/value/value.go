// Package value implements the data model shared by expected answers and
// evaluated snippet results, with deep equality and stable formatting.
package value

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
	KindSet
	KindOpaque
)

// String returns a short, user-facing name for the kind.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "object"
	case KindSet:
		return "set"
	case KindOpaque:
		return "host value"
	default:
		return "unknown"
	}
}

// Value is the sealed interface implemented by every variant in this package.
type Value interface {
	Kind() Kind
	sealed()
}

// Undefined is the absence of a value (a missing return, for example).
type Undefined struct{}

// Null is an explicit empty value.
type Null struct{}

// Bool is a boolean.
type Bool bool

// Number is an IEEE-754 double, NaN and infinities included.
type Number float64

// String is a text value.
type String string

// List is an ordered sequence.
type List []Value

// Map is a string-keyed mapping. Key order carries no meaning.
type Map map[string]Value

// Set is an unordered collection. Duplicates are not removed on
// construction; equality treats it as a multiset.
type Set []Value

// Opaque stands in for host values that are not plain data, such as
// functions or circular references. Desc is what gets printed.
type Opaque struct {
	Desc string
}

func (Undefined) Kind() Kind { return KindUndefined }
func (Null) Kind() Kind      { return KindNull }
func (Bool) Kind() Kind      { return KindBool }
func (Number) Kind() Kind    { return KindNumber }
func (String) Kind() Kind    { return KindString }
func (List) Kind() Kind      { return KindList }
func (Map) Kind() Kind       { return KindMap }
func (Set) Kind() Kind       { return KindSet }
func (Opaque) Kind() Kind    { return KindOpaque }

func (Undefined) sealed() {}
func (Null) sealed()      {}
func (Bool) sealed()      {}
func (Number) sealed()    {}
func (String) sealed()    {}
func (List) sealed()      {}
func (Map) sealed()       {}
func (Set) sealed()       {}
func (Opaque) sealed()    {}

// KindOf returns the kind of v, treating a nil interface as Undefined.
func KindOf(v Value) Kind {
	if v == nil {
		return KindUndefined
	}
	return v.Kind()
}

// IsNil reports whether v is nil, Undefined or Null.
func IsNil(v Value) bool {
	k := KindOf(v)
	return k == KindUndefined || k == KindNull
}
