// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"strings"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/values"
)

// evalAccess evaluates target[args...]: indexing for strings, arrays and
// hashes, and parameterization for types.
func (e *Evaluator) evalAccess(n *ast.AccessExpr) values.Value {
	target := values.Deref(e.eval(n.Target))
	args := e.evalUnfold(n.Args)
	if len(args) == 0 {
		e.evalErrorf(n.Rng, "expected at least one access argument")
	}

	switch t := target.(type) {
	case values.String:
		return e.accessString(n, t, args)
	case *values.Array:
		return e.accessArray(n, t, args)
	case *values.Hash:
		return e.accessHash(t, args)
	case values.Type:
		return e.parameterizeType(n, t, args)
	}
	e.evalErrorf(n.Target.Range(), "%s values do not support access expressions", values.TypeOf(target))
	return nil
}

func (e *Evaluator) accessIndex(n *ast.AccessExpr, arg values.Value, what string) int64 {
	i, ok := values.Deref(arg).(values.Integer)
	if !ok {
		e.evalErrorf(n.Rng, "expected %s for %s index but found %s",
			values.NewIntegerType().TypeName(), what, values.TypeOf(arg))
	}
	return int64(i)
}

func (e *Evaluator) accessString(n *ast.AccessExpr, s values.String, args []values.Value) values.Value {
	if len(args) > 2 {
		e.evalErrorf(n.Rng, "expected at most 2 access arguments for %s but %d were given",
			values.NewStringType().TypeName(), len(args))
	}
	runes := []rune(string(s))
	length := int64(len(runes))

	offset := e.accessIndex(n, args[0], "string")
	if offset < 0 {
		offset += length
	}
	count := int64(1)
	if len(args) == 2 {
		count = e.accessIndex(n, args[1], "string")
	}
	if offset < 0 || offset >= length || count <= 0 {
		return values.String("")
	}
	if offset+count > length {
		count = length - offset
	}
	return values.String(runes[offset : offset+count])
}

func (e *Evaluator) accessArray(n *ast.AccessExpr, a *values.Array, args []values.Value) values.Value {
	if len(args) > 2 {
		e.evalErrorf(n.Rng, "expected at most 2 access arguments for %s but %d were given",
			values.NewArrayType(values.AnyType{}).TypeName(), len(args))
	}
	length := int64(len(a.Elements))

	offset := e.accessIndex(n, args[0], "array")
	if offset < 0 {
		offset += length
	}
	if len(args) == 1 {
		if offset < 0 || offset >= length {
			return values.Undef{}
		}
		return a.Elements[offset]
	}

	count := e.accessIndex(n, args[1], "array")
	if offset < 0 || offset >= length || count <= 0 {
		return &values.Array{}
	}
	if offset+count > length {
		count = length - offset
	}
	slice := make([]values.Value, count)
	copy(slice, a.Elements[offset:offset+count])
	return &values.Array{Elements: slice}
}

func (e *Evaluator) accessHash(h *values.Hash, args []values.Value) values.Value {
	if len(args) == 1 {
		if v, ok := h.Get(args[0]); ok {
			return v
		}
		return values.Undef{}
	}
	result := make([]values.Value, 0, len(args))
	for _, key := range args {
		if v, ok := h.Get(key); ok {
			result = append(result, v)
		}
	}
	return &values.Array{Elements: result}
}

// parameterizeType builds parameterized types: Integer[0, 10],
// Array[String], File['/tmp/x'], Class['apt'] and the rest of the algebra.
func (e *Evaluator) parameterizeType(n *ast.AccessExpr, t values.Type, args []values.Value) values.Value {
	fail := func(format string, fa ...interface{}) {
		e.evalErrorf(n.Rng, format, fa...)
	}

	intArg := func(i int) int64 {
		v, ok := values.Deref(args[i]).(values.Integer)
		if !ok {
			fail("expected %s for type parameter %d but found %s",
				values.NewIntegerType().TypeName(), i+1, values.TypeOf(args[i]))
		}
		return int64(v)
	}
	floatArg := func(i int) float64 {
		switch v := values.Deref(args[i]).(type) {
		case values.Integer:
			return float64(v)
		case values.Float:
			return float64(v)
		}
		fail("expected %s for type parameter %d but found %s",
			values.NumericType{}.TypeName(), i+1, values.TypeOf(args[i]))
		return 0
	}
	stringArg := func(i int) string {
		v, ok := values.Deref(args[i]).(values.String)
		if !ok {
			fail("expected %s for type parameter %d but found %s",
				values.NewStringType().TypeName(), i+1, values.TypeOf(args[i]))
		}
		return string(v)
	}
	typeArg := func(i int) values.Type {
		v, ok := values.Deref(args[i]).(values.Type)
		if !ok {
			fail("expected %s for type parameter %d but found %s",
				values.TypeType{}.TypeName(), i+1, values.TypeOf(args[i]))
		}
		return v
	}

	switch t := t.(type) {
	case values.IntegerType:
		result := values.NewIntegerType()
		if len(args) > 2 {
			fail("expected at most 2 type parameters for %s but %d were given", t.TypeName(), len(args))
		}
		if !values.IsDefault(args[0]) {
			result.From = intArg(0)
		}
		if len(args) == 2 && !values.IsDefault(args[1]) {
			result.To = intArg(1)
		}
		return result

	case values.FloatType:
		result := values.NewFloatType()
		if len(args) > 2 {
			fail("expected at most 2 type parameters for %s but %d were given", t.TypeName(), len(args))
		}
		if !values.IsDefault(args[0]) {
			result.From = floatArg(0)
		}
		if len(args) == 2 && !values.IsDefault(args[1]) {
			result.To = floatArg(1)
		}
		return result

	case values.StringType:
		result := values.NewStringType()
		if len(args) > 2 {
			fail("expected at most 2 type parameters for %s but %d were given", t.TypeName(), len(args))
		}
		if !values.IsDefault(args[0]) {
			result.MinLen = intArg(0)
		}
		if len(args) == 2 && !values.IsDefault(args[1]) {
			result.MaxLen = intArg(1)
		}
		return result

	case values.RegexpType:
		if len(args) != 1 {
			fail("expected 1 type parameter for %s but %d were given", t.TypeName(), len(args))
		}
		switch v := values.Deref(args[0]).(type) {
		case *values.Regexp:
			return values.RegexpType{Pattern: v.Pattern}
		case values.String:
			if _, err := values.NewRegexp(string(v)); err != nil {
				fail("%s", err)
			}
			return values.RegexpType{Pattern: string(v)}
		}
		fail("expected %s or %s for type parameter but found %s",
			values.RegexpType{}.TypeName(), values.NewStringType().TypeName(), values.TypeOf(args[0]))

	case values.EnumType:
		enum := values.EnumType{Values: make([]string, len(args))}
		for i := range args {
			enum.Values[i] = stringArg(i)
		}
		return enum

	case values.PatternType:
		pattern := values.PatternType{Patterns: make([]*values.Regexp, len(args))}
		for i := range args {
			switch v := values.Deref(args[i]).(type) {
			case *values.Regexp:
				pattern.Patterns[i] = v
			case values.String:
				compiled, err := values.NewRegexp(string(v))
				if err != nil {
					fail("%s", err)
				}
				pattern.Patterns[i] = compiled
			default:
				fail("expected %s or %s for type parameter %d but found %s",
					values.RegexpType{}.TypeName(), values.NewStringType().TypeName(), i+1, values.TypeOf(args[i]))
			}
		}
		return pattern

	case values.ArrayType:
		result := values.NewArrayType(typeArg(0))
		if len(args) > 3 {
			fail("expected at most 3 type parameters for %s but %d were given", t.TypeName(), len(args))
		}
		if len(args) >= 2 && !values.IsDefault(args[1]) {
			result.Min = intArg(1)
		}
		if len(args) == 3 && !values.IsDefault(args[2]) {
			result.Max = intArg(2)
		}
		return result

	case values.HashType:
		if len(args) < 2 {
			fail("expected at least 2 type parameters for %s but %d were given", t.TypeName(), len(args))
		}
		if len(args) > 4 {
			fail("expected at most 4 type parameters for %s but %d were given", t.TypeName(), len(args))
		}
		result := values.NewHashType(typeArg(0), typeArg(1))
		if len(args) >= 3 && !values.IsDefault(args[2]) {
			result.Min = intArg(2)
		}
		if len(args) == 4 && !values.IsDefault(args[3]) {
			result.Max = intArg(3)
		}
		return result

	case values.TupleType:
		result := values.TupleType{}
		for i := range args {
			result.Types = append(result.Types, typeArg(i))
		}
		return result

	case values.StructType:
		if len(args) != 1 {
			fail("expected 1 type parameter for %s but %d were given", t.TypeName(), len(args))
		}
		schema, ok := values.Deref(args[0]).(*values.Hash)
		if !ok {
			fail("expected %s for type parameter but found %s",
				values.NewHashType(values.AnyType{}, values.AnyType{}).TypeName(), values.TypeOf(args[0]))
		}
		result := values.StructType{}
		for _, entry := range schema.Entries() {
			key, ok := values.Deref(entry.Key).(values.String)
			if !ok {
				fail("expected %s for struct key but found %s",
					values.NewStringType().TypeName(), values.TypeOf(entry.Key))
			}
			memberType, ok := values.Deref(entry.Value).(values.Type)
			if !ok {
				fail("expected %s for struct member but found %s",
					values.TypeType{}.TypeName(), values.TypeOf(entry.Value))
			}
			result.Schema = append(result.Schema, values.StructEntry{Key: string(key), Type: memberType})
		}
		return result

	case values.VariantType:
		result := values.VariantType{Types: make([]values.Type, len(args))}
		for i := range args {
			result.Types[i] = typeArg(i)
		}
		return result

	case values.OptionalType:
		if len(args) != 1 {
			fail("expected 1 type parameter for %s but %d were given", t.TypeName(), len(args))
		}
		return values.OptionalType{Type: typeArg(0)}

	case values.TypeType:
		if len(args) != 1 {
			fail("expected 1 type parameter for %s but %d were given", t.TypeName(), len(args))
		}
		return values.TypeType{Type: typeArg(0)}

	case values.ClassType:
		refs := make([]values.Value, len(args))
		for i := range args {
			refs[i] = values.ClassType{Title: strings.ToLower(stringArg(i))}
		}
		if len(refs) == 1 {
			return refs[0]
		}
		return &values.Array{Elements: refs}

	case values.ResourceType:
		if t.Title != "" {
			fail("%s is already fully qualified", t)
		}
		if t.Name == "" {
			// Resource[File] or Resource[File, '/tmp/x'].
			first := values.Deref(args[0])
			var name string
			switch v := first.(type) {
			case values.String:
				name = strings.ToLower(string(v))
			case values.ResourceType:
				name = v.Name
			default:
				fail("expected %s or %s for type parameter but found %s",
					values.NewStringType().TypeName(), values.ResourceType{}.TypeName(), values.TypeOf(args[0]))
			}
			if len(args) == 1 {
				return values.ResourceType{Name: name}
			}
			args = args[1:]
			t = values.ResourceType{Name: name}
		}
		refs := make([]values.Value, len(args))
		for i := range args {
			refs[i] = values.ResourceType{Name: t.Name, Title: stringArg(i)}
		}
		if len(refs) == 1 {
			return refs[0]
		}
		return &values.Array{Elements: refs}
	}
	fail("%s types cannot be parameterized", t.TypeName())
	return nil
}
