// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package values

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEquals(t *testing.T) {
	tests := []struct {
		name  string
		left  Value
		right Value
		want  bool
	}{
		{"undef equals undef", Undef{}, Undef{}, true},
		{"undef not equals false", Undef{}, Boolean(false), false},
		{"integer equals integer", Integer(42), Integer(42), true},
		{"integer equals float", Integer(1), Float(1.0), true},
		{"integer not equals float", Integer(1), Float(1.5), false},
		{"string is case-insensitive", String("Hello"), String("hELLO"), true},
		{"string mismatch", String("hello"), String("world"), false},
		{"string not equals integer", String("1"), Integer(1), false},
		{"regex by pattern", MustRegexp("a+"), MustRegexp("a+"), true},
		{"array elementwise", NewArray(Integer(1), String("A")), NewArray(Integer(1), String("a")), true},
		{"array length mismatch", NewArray(Integer(1)), NewArray(Integer(1), Integer(2)), false},
		{"variable dereferences", NewVariable("x", Integer(3)), Integer(3), true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Equals(test.left, test.right); got != test.want {
				t.Errorf("Equals(%v, %v) = %v, want %v", test.left, test.right, got, test.want)
			}
		})
	}
}

func TestHashEquals(t *testing.T) {
	a := NewHash()
	a.Set(String("one"), Integer(1))
	a.Set(String("two"), Integer(2))

	b := NewHash()
	b.Set(String("TWO"), Integer(2))
	b.Set(String("ONE"), Integer(1))

	if !Equals(a, b) {
		t.Error("hashes with the same entries in different orders should be equal")
	}

	b.Set(String("three"), Integer(3))
	if Equals(a, b) {
		t.Error("hashes of different sizes should not be equal")
	}
}

func TestHashOrderAndLookup(t *testing.T) {
	h := NewHash()
	h.Set(String("b"), Integer(1))
	h.Set(String("a"), Integer(2))
	h.Set(String("B"), Integer(3)) // case-insensitive replacement

	var keys []string
	for _, entry := range h.Entries() {
		keys = append(keys, entry.Key.String())
	}
	if diff := cmp.Diff([]string{"b", "a"}, keys); diff != "" {
		t.Fatalf("wrong key order (-want +got):\n%s", diff)
	}

	got, ok := h.Get(String("B"))
	if !ok || !Equals(got, Integer(3)) {
		t.Errorf("Get(B) = %v, %v; want 3, true", got, ok)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		value Value
		want  bool
	}{
		{Undef{}, false},
		{Boolean(false), false},
		{Boolean(true), true},
		{Integer(0), true},
		{String(""), true},
		{&Array{}, true},
	}
	for _, test := range tests {
		if got := Truthy(test.value); got != test.want {
			t.Errorf("Truthy(%#v) = %v, want %v", test.value, got, test.want)
		}
	}
}

func TestToArray(t *testing.T) {
	h := NewHash()
	h.Set(String("k"), Integer(1))

	tests := []struct {
		name        string
		value       Value
		convertHash bool
		want        string
	}{
		{"array unchanged", NewArray(Integer(1)), true, "[1]"},
		{"hash to pairs", h, true, "[[k, 1]]"},
		{"hash wrapped", h, false, "[{k => 1}]"},
		{"undef empty", Undef{}, true, "[]"},
		{"scalar wrapped", Integer(7), true, "[7]"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ToArray(test.value, test.convertHash).String(); got != test.want {
				t.Errorf("ToArray() = %s, want %s", got, test.want)
			}
		})
	}
}

func TestIsInstance(t *testing.T) {
	tests := []struct {
		typ   Type
		value Value
		want  bool
	}{
		{AnyType{}, Undef{}, true},
		{UndefType{}, Undef{}, true},
		{UndefType{}, Boolean(false), false},
		{BooleanType{}, Boolean(true), true},
		{NumericType{}, Float(1.5), true},
		{NumericType{}, String("1"), false},
		{IntegerType{From: 0, To: 10}, Integer(5), true},
		{IntegerType{From: 0, To: 10}, Integer(11), false},
		{StringType{MinLen: 2, MaxLen: 4}, String("abc"), true},
		{StringType{MinLen: 2, MaxLen: 4}, String("a"), false},
		{EnumType{Values: []string{"red", "green"}}, String("RED"), true},
		{EnumType{Values: []string{"red", "green"}}, String("blue"), false},
		{PatternType{Patterns: []*Regexp{MustRegexp("^a")}}, String("abc"), true},
		{PatternType{Patterns: []*Regexp{MustRegexp("^a")}}, String("xyz"), false},
		{NewArrayType(NewStringType()), NewArray(String("x")), true},
		{NewArrayType(NewStringType()), NewArray(Integer(1)), false},
		{TupleType{Types: []Type{NewStringType(), NewIntegerType()}}, NewArray(String("x"), Integer(1)), true},
		{TupleType{Types: []Type{NewStringType(), NewIntegerType()}}, NewArray(String("x")), false},
		{OptionalType{Type: NewStringType()}, Undef{}, true},
		{OptionalType{Type: NewStringType()}, String("x"), true},
		{OptionalType{Type: NewStringType()}, Integer(1), false},
		{VariantType{Types: []Type{NewStringType(), NewIntegerType()}}, Integer(1), true},
		{VariantType{Types: []Type{NewStringType()}}, Integer(1), false},
		{ScalarType{}, MustRegexp("x"), true},
		{DataType{}, NewArray(String("x"), Integer(1)), true},
		{DataType{}, NewArray(MustRegexp("x")), false},
		{CollectionType{}, NewHash(), true},
		{TypeType{}, NewStringType(), true},
		{CatalogEntryType{}, ResourceType{Name: "file", Title: "/x"}, true},
		{ResourceType{Name: "file"}, ResourceType{Name: "File", Title: "/x"}, true},
		{ResourceType{Name: "user"}, ResourceType{Name: "file", Title: "/x"}, false},
		{ClassType{}, ClassType{Title: "apt"}, true},
	}
	for _, test := range tests {
		t.Run(test.typ.String(), func(t *testing.T) {
			if got := test.typ.IsInstance(test.value); got != test.want {
				t.Errorf("%s.IsInstance(%v) = %v, want %v", test.typ, test.value, got, test.want)
			}
		})
	}
}

func TestIsSpecialization(t *testing.T) {
	tests := []struct {
		general  Type
		specific Type
		want     bool
	}{
		{AnyType{}, NewStringType(), true},
		{NumericType{}, NewIntegerType(), true},
		{NumericType{}, NewStringType(), false},
		{ScalarType{}, NewIntegerType(), true},
		{NewIntegerType(), IntegerType{From: 0, To: 5}, true},
		{IntegerType{From: 0, To: 5}, NewIntegerType(), false},
		{NewStringType(), EnumType{Values: []string{"a"}}, true},
		{DataType{}, NewArrayType(NewStringType()), true},
		{CollectionType{}, NewHashType(AnyType{}, AnyType{}), true},
		{NewArrayType(ScalarType{}), NewArrayType(NewStringType()), true},
		{NewArrayType(NewStringType()), NewArrayType(ScalarType{}), false},
		{VariantType{Types: []Type{NewStringType(), NewIntegerType()}}, NewIntegerType(), true},
		{OptionalType{Type: NewStringType()}, UndefType{}, true},
		{CatalogEntryType{}, ClassType{Title: "apt"}, true},
		{ResourceType{Name: "file"}, ResourceType{Name: "file", Title: "/x"}, true},
		{ResourceType{Name: "file", Title: "/x"}, ResourceType{Name: "file"}, false},
	}
	for _, test := range tests {
		t.Run(test.general.String()+" <- "+test.specific.String(), func(t *testing.T) {
			if got := test.general.IsSpecialization(test.specific); got != test.want {
				t.Errorf("%s.IsSpecialization(%s) = %v, want %v", test.general, test.specific, got, test.want)
			}
		})
	}
}

func TestParseResourceRef(t *testing.T) {
	tests := []struct {
		input string
		want  ResourceType
		ok    bool
	}{
		{"File[/tmp/x]", ResourceType{Name: "file", Title: "/tmp/x"}, true},
		{"User['bob']", ResourceType{Name: "user", Title: "bob"}, true},
		{"Apt::Source[main]", ResourceType{Name: "apt::source", Title: "main"}, true},
		{"no brackets", ResourceType{}, false},
		{"[oops]", ResourceType{}, false},
		{"File[]", ResourceType{}, false},
	}
	for _, test := range tests {
		got, ok := ParseResourceRef(test.input)
		if ok != test.ok || got != test.want {
			t.Errorf("ParseResourceRef(%q) = %v, %v; want %v, %v", test.input, got, ok, test.want, test.ok)
		}
	}
}

func TestTypeRendering(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{NewIntegerType(), "Integer"},
		{IntegerType{From: 0, To: 10}, "Integer[0, 10]"},
		{NewArrayType(NewStringType()), "Array[String]"},
		{ResourceType{Name: "file", Title: "/x"}, "File[/x]"},
		{ResourceType{Name: "apt::source", Title: "main"}, "Apt::Source[main]"},
		{ClassType{Title: "apt"}, "Class[apt]"},
		{OptionalType{Type: NewStringType()}, "Optional[String]"},
		{VariantType{Types: []Type{NewStringType(), NewIntegerType()}}, "Variant[String, Integer]"},
	}
	for _, test := range tests {
		if got := test.typ.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}
