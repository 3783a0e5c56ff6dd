package value

import (
	"math"
	"testing"
)

func sampleValues() []Value {
	return []Value{
		nil,
		Undefined{},
		Null{},
		Bool(true),
		Bool(false),
		Number(0),
		Number(math.Copysign(0, -1)),
		Number(42),
		Number(math.NaN()),
		Number(math.Inf(1)),
		Number(math.Inf(-1)),
		String(""),
		String("42"),
		List{},
		List{Number(1), Number(2)},
		List{Number(2), Number(1)},
		List{List{String("a")}, Map{"k": Null{}}},
		Map{},
		Map{"a": Number(1), "b": Number(2)},
		Map{"a": Number(1)},
		Set{},
		Set{Number(1), Number(2)},
		Set{Number(1), Number(1)},
		Opaque{Desc: "[Function: f]"},
	}
}

func TestEqual_Reflexive(t *testing.T) {
	for _, v := range sampleValues() {
		if !Equal(v, v) {
			t.Errorf("Equal(%s, %s) = false; want true", Format(v), Format(v))
		}
	}
}

func TestEqual_Symmetric(t *testing.T) {
	vals := sampleValues()
	for _, a := range vals {
		for _, b := range vals {
			if Equal(a, b) != Equal(b, a) {
				t.Errorf("Equal(%s, %s) != Equal(%s, %s)", Format(a), Format(b), Format(b), Format(a))
			}
		}
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"NaN equals NaN", Number(math.NaN()), Number(math.NaN()), true},
		{"zero equals negative zero", Number(0), Number(math.Copysign(0, -1)), true},
		{"string vs number", String("42"), Number(42), false},
		{"null vs undefined", Null{}, Undefined{}, false},
		{"nil is undefined", nil, Undefined{}, true},
		{"bool vs number", Bool(true), Number(1), false},
		{"list order matters", List{Number(1), Number(2)}, List{Number(2), Number(1)}, false},
		{"list length matters", List{Number(1)}, List{Number(1), Number(1)}, false},
		{"map key order irrelevant",
			Map{"a": Number(1), "b": List{Bool(true)}},
			Map{"b": List{Bool(true)}, "a": Number(1)}, true},
		{"map missing key", Map{"a": Number(1)}, Map{"b": Number(1)}, false},
		{"map undefined value vs missing", Map{"a": Undefined{}}, Map{}, false},
		{"list vs map", List{}, Map{}, false},
		{"list vs set", List{Number(1)}, Set{Number(1)}, false},
		{"set order irrelevant", Set{Number(1), String("x")}, Set{String("x"), Number(1)}, true},
		{"set multiplicity", Set{Number(1), Number(1)}, Set{Number(1), Number(2)}, false},
		{"nested", List{Map{"xs": List{Number(1)}}}, List{Map{"xs": List{Number(1)}}}, true},
		{"nested mismatch", List{Map{"xs": List{Number(1)}}}, List{Map{"xs": List{Number(2)}}}, false},
		{"opaque by description", Opaque{Desc: "f"}, Opaque{Desc: "g"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v; want %v", Format(tt.a), Format(tt.b), got, tt.want)
			}
		})
	}
}

func TestEqual_SelfReferentialMapTerminates(t *testing.T) {
	m := Map{}
	m["self"] = m
	// Must return rather than recurse forever.
	if !Equal(m, m) {
		t.Error("Equal(m, m) = false; want true")
	}
}

func TestEqual_DeeplyNested(t *testing.T) {
	nest := func(leaf Value) Value {
		v := leaf
		for range maxDepth + 50 {
			v = List{v}
		}
		return v
	}

	if !Equal(nest(Number(1)), nest(Number(1))) {
		t.Error("equal values nested past maxDepth compare unequal")
	}
	if Equal(nest(Number(1)), nest(Number(2))) {
		t.Error("different leaves nested past maxDepth compare equal")
	}
}
