package value

import (
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"undefined", Undefined{}, "undefined"},
		{"nil", nil, "undefined"},
		{"null", Null{}, "null"},
		{"bool", Bool(true), "true"},
		{"integer", Number(42), "42"},
		{"negative zero", Number(math.Copysign(0, -1)), "0"},
		{"fraction", Number(1.5), "1.5"},
		{"NaN", Number(math.NaN()), "NaN"},
		{"Infinity", Number(math.Inf(1)), "Infinity"},
		{"-Infinity", Number(math.Inf(-1)), "-Infinity"},
		{"string quoted", String("42"), `"42"`},
		{"string escapes", String("a\"b"), `"a\"b"`},
		{"list", List{Number(1), String("x")}, `[1, "x"]`},
		{"map sorted", Map{"b": Number(2), "a": Number(1)}, `{"a": 1, "b": 2}`},
		{"set sorted", Set{Number(3), Number(1)}, "Set{1, 3}"},
		{"opaque", Opaque{Desc: "[Function: f]"}, "[Function: f]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestFormat_DisambiguatesTypes(t *testing.T) {
	if Format(String("42")) == Format(Number(42)) {
		t.Error(`Format("42") should differ from Format(42)`)
	}
	if Format(String("true")) == Format(Bool(true)) {
		t.Error(`Format("true") should differ from Format(true)`)
	}
}

func TestDisplay(t *testing.T) {
	if got := Display(String("hello")); got != "hello" {
		t.Errorf("Display(string) = %q; want hello", got)
	}
	if got := Display(List{String("a")}); got != `["a"]` {
		t.Errorf("Display(list) = %q; want [\"a\"]", got)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{Number(1), "a number"},
		{String(""), "a string"},
		{List{}, "a list"},
		{Map{}, "an object"},
		{Null{}, "null"},
		{nil, "undefined"},
		{Bool(false), "a boolean"},
	}
	for _, tt := range tests {
		if got := Describe(tt.in); got != tt.want {
			t.Errorf("Describe(%s) = %q; want %q", Format(tt.in), got, tt.want)
		}
	}
}
