// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"math"
	"strings"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/values"
)

// evalOperator dispatches the non-short-circuiting binary operators over
// already evaluated operands.
func (e *Evaluator) evalOperator(n *ast.BinaryExpr, left, right values.Value) values.Value {
	switch n.Op {
	case ast.OpEqual:
		return values.Boolean(values.Equals(left, right))
	case ast.OpNotEqual:
		return values.Boolean(!values.Equals(left, right))
	case ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		return e.compare(n, left, right)
	case ast.OpPlus:
		return e.plus(n, left, right)
	case ast.OpMinus:
		return e.arithmetic(n, left, right)
	case ast.OpMultiply:
		return e.arithmetic(n, left, right)
	case ast.OpDivide:
		return e.arithmetic(n, left, right)
	case ast.OpModulo:
		return e.modulo(n, left, right)
	case ast.OpLeftShift:
		return e.leftShift(n, left, right)
	case ast.OpRightShift:
		return e.rightShift(n, left, right)
	case ast.OpMatch:
		return values.Boolean(e.evalMatch(n, left, right))
	case ast.OpNotMatch:
		return values.Boolean(!e.evalMatch(n, left, right))
	case ast.OpIn:
		return e.evalIn(left, right)
	}
	e.evalErrorf(n.OpRange, "unsupported binary operator '%s'", n.Op)
	return nil
}

// numericOperands extracts numeric operands, promoting integers to floats
// when the kinds are mixed. ok is false when either side is not numeric;
// the caller decides whether that is an error.
func numericOperands(left, right values.Value) (li, ri int64, lf, rf float64, isFloat, ok bool) {
	l := values.Deref(left)
	r := values.Deref(right)
	switch lv := l.(type) {
	case values.Integer:
		switch rv := r.(type) {
		case values.Integer:
			return int64(lv), int64(rv), 0, 0, false, true
		case values.Float:
			return 0, 0, float64(lv), float64(rv), true, true
		}
	case values.Float:
		switch rv := r.(type) {
		case values.Integer:
			return 0, 0, float64(lv), float64(rv), true, true
		case values.Float:
			return 0, 0, float64(lv), float64(rv), true, true
		}
	}
	return 0, 0, 0, 0, false, false
}

// numericError points at whichever operand is not numeric.
func (e *Evaluator) numericError(n *ast.BinaryExpr, left, right values.Value, what string) {
	if _, ok := values.Deref(left).(values.Integer); !ok {
		if _, ok := values.Deref(left).(values.Float); !ok {
			e.evalErrorf(n.Left.Range(), "expected %s for %s but found %s",
				values.NumericType{}.TypeName(), what, values.TypeOf(left))
		}
	}
	e.evalErrorf(n.Right.Range(), "expected %s for %s but found %s",
		values.NumericType{}.TypeName(), what, values.TypeOf(right))
}

// checkFloat converts an infinite float result (overflow) into an evaluation
// error. Underflow to zero or to a subnormal value is not reported.
func (e *Evaluator) checkFloat(n *ast.BinaryExpr, result float64, what string) values.Value {
	if math.IsInf(result, 0) {
		e.evalErrorf(n.Rng, "%s results in an arithmetic overflow", what)
	}
	return values.Float(result)
}

func (e *Evaluator) plus(n *ast.BinaryExpr, left, right values.Value) values.Value {
	l := values.Deref(left)
	r := values.Deref(right)

	switch lv := l.(type) {
	case *values.Array:
		switch rv := r.(type) {
		case *values.Array:
			merged := make([]values.Value, 0, len(lv.Elements)+len(rv.Elements))
			merged = append(merged, lv.Elements...)
			merged = append(merged, rv.Elements...)
			return &values.Array{Elements: merged}
		case *values.Hash:
			merged := make([]values.Value, 0, len(lv.Elements)+rv.Len())
			merged = append(merged, lv.Elements...)
			for _, entry := range rv.Entries() {
				merged = append(merged, values.NewArray(entry.Key, entry.Value))
			}
			return &values.Array{Elements: merged}
		}
		e.evalErrorf(n.Right.Range(), "expected %s or %s for concatenation but found %s",
			values.NewArrayType(values.AnyType{}).TypeName(), values.NewHashType(values.AnyType{}, values.AnyType{}).TypeName(), values.TypeOf(right))
	case *values.Hash:
		switch rv := r.(type) {
		case *values.Hash:
			return lv.Merge(rv)
		case *values.Array:
			// An array of [K, V] pairs merges entry-wise.
			merged := lv.Merge(values.NewHash())
			for _, element := range rv.Elements {
				pair, ok := values.Deref(element).(*values.Array)
				if !ok || len(pair.Elements) != 2 {
					e.evalErrorf(n.Right.Range(), "expected an array of [key, value] pairs for hash merge")
				}
				merged.Set(pair.Elements[0], pair.Elements[1])
			}
			return merged
		}
		e.evalErrorf(n.Right.Range(), "expected %s or %s for merge but found %s",
			values.NewHashType(values.AnyType{}, values.AnyType{}).TypeName(), values.NewArrayType(values.AnyType{}).TypeName(), values.TypeOf(right))
	}
	return e.arithmetic(n, left, right)
}

func (e *Evaluator) arithmetic(n *ast.BinaryExpr, left, right values.Value) values.Value {
	what := "arithmetic " + arithmeticName(n.Op)
	li, ri, lf, rf, isFloat, ok := numericOperands(left, right)
	if !ok {
		e.numericError(n, left, right, what)
	}

	if isFloat {
		switch n.Op {
		case ast.OpPlus:
			return e.checkFloat(n, lf+rf, what)
		case ast.OpMinus:
			return e.checkFloat(n, lf-rf, what)
		case ast.OpMultiply:
			return e.checkFloat(n, lf*rf, what)
		case ast.OpDivide:
			if rf == 0 {
				e.evalErrorf(n.Right.Range(), "cannot divide by zero")
			}
			return e.checkFloat(n, lf/rf, what)
		}
	}

	switch n.Op {
	case ast.OpPlus:
		result := li + ri
		if (li > 0 && ri > 0 && result < 0) || (li < 0 && ri < 0 && result >= 0) {
			e.evalErrorf(n.Rng, "addition of %d and %d results in an arithmetic overflow", li, ri)
		}
		return values.Integer(result)
	case ast.OpMinus:
		result := li - ri
		if (li >= 0 && ri < 0 && result < 0) || (li < 0 && ri > 0 && result >= 0) {
			e.evalErrorf(n.Rng, "subtraction of %d and %d results in an arithmetic overflow", li, ri)
		}
		return values.Integer(result)
	case ast.OpMultiply:
		if li != 0 && ri != 0 {
			result := li * ri
			if result/ri != li {
				e.evalErrorf(n.Rng, "multiplication of %d and %d results in an arithmetic overflow", li, ri)
			}
			return values.Integer(result)
		}
		return values.Integer(0)
	case ast.OpDivide:
		if ri == 0 {
			e.evalErrorf(n.Right.Range(), "cannot divide by zero")
		}
		if li == math.MinInt64 && ri == -1 {
			e.evalErrorf(n.Rng, "division of %d by %d results in an arithmetic overflow", li, ri)
		}
		return values.Integer(li / ri)
	}
	e.evalErrorf(n.OpRange, "unsupported arithmetic operator '%s'", n.Op)
	return nil
}

func arithmeticName(op ast.BinaryOp) string {
	switch op {
	case ast.OpPlus:
		return "addition"
	case ast.OpMinus:
		return "subtraction"
	case ast.OpMultiply:
		return "multiplication"
	case ast.OpDivide:
		return "division"
	}
	return "operation"
}

func (e *Evaluator) modulo(n *ast.BinaryExpr, left, right values.Value) values.Value {
	li, ok := values.Deref(left).(values.Integer)
	if !ok {
		e.evalErrorf(n.Left.Range(), "expected %s for modulo but found %s",
			values.NewIntegerType().TypeName(), values.TypeOf(left))
	}
	ri, ok := values.Deref(right).(values.Integer)
	if !ok {
		e.evalErrorf(n.Right.Range(), "expected %s for modulo but found %s",
			values.NewIntegerType().TypeName(), values.TypeOf(right))
	}
	if ri == 0 {
		e.evalErrorf(n.Right.Range(), "cannot divide by zero")
	}
	return values.Integer(int64(li) % int64(ri))
}

func (e *Evaluator) leftShift(n *ast.BinaryExpr, left, right values.Value) values.Value {
	l := values.Deref(left)
	if arr, ok := l.(*values.Array); ok {
		appended := make([]values.Value, len(arr.Elements), len(arr.Elements)+1)
		copy(appended, arr.Elements)
		appended = append(appended, values.Deref(right))
		return &values.Array{Elements: appended}
	}

	li, ok := l.(values.Integer)
	if !ok {
		e.evalErrorf(n.Left.Range(), "expected %s or %s for left shift but found %s",
			values.NewIntegerType().TypeName(), values.NewArrayType(values.AnyType{}).TypeName(), values.TypeOf(left))
	}
	ri, ok := values.Deref(right).(values.Integer)
	if !ok {
		e.evalErrorf(n.Right.Range(), "expected %s for bitwise left shift but found %s",
			values.NewIntegerType().TypeName(), values.TypeOf(right))
	}
	return values.Integer(shiftLeft(int64(li), int64(ri), n, e))
}

func (e *Evaluator) rightShift(n *ast.BinaryExpr, left, right values.Value) values.Value {
	li, ok := values.Deref(left).(values.Integer)
	if !ok {
		e.evalErrorf(n.Left.Range(), "expected %s for bitwise right shift but found %s",
			values.NewIntegerType().TypeName(), values.TypeOf(left))
	}
	ri, ok := values.Deref(right).(values.Integer)
	if !ok {
		e.evalErrorf(n.Right.Range(), "expected %s for bitwise right shift but found %s",
			values.NewIntegerType().TypeName(), values.TypeOf(right))
	}
	return values.Integer(shiftLeft(int64(li), -int64(ri), n, e))
}

// shiftLeft shifts left by amount bits (negative amounts shift right),
// preserving the sign of the value the way the language defines it.
func shiftLeft(value, amount int64, n *ast.BinaryExpr, e *Evaluator) int64 {
	if value == math.MinInt64 {
		e.evalErrorf(n.Rng, "shift of %d results in an arithmetic overflow", value)
	}
	negValue := value < 0
	if negValue {
		value = -value
	}
	var result int64
	if amount < 0 {
		if -amount >= 64 {
			result = 0
		} else {
			result = value >> uint(-amount)
		}
	} else {
		if amount >= 64 {
			e.evalErrorf(n.Rng, "left shift of %d by %d results in an arithmetic overflow", value, amount)
		}
		result = value << uint(amount)
		if result>>uint(amount) != value || result < 0 {
			e.evalErrorf(n.Rng, "left shift of %d by %d results in an arithmetic overflow", value, amount)
		}
	}
	if negValue {
		return -result
	}
	return result
}

// compare implements < <= > >=: numeric comparison, case-insensitive string
// comparison, and the subtype relation for types.
func (e *Evaluator) compare(n *ast.BinaryExpr, left, right values.Value) values.Value {
	le, ge := e.lessAndEqual(n, left, right)
	switch n.Op {
	case ast.OpLess:
		return values.Boolean(le && !ge)
	case ast.OpLessEqual:
		return values.Boolean(le)
	case ast.OpGreater:
		return values.Boolean(!le)
	case ast.OpGreaterEqual:
		return values.Boolean(!le || ge)
	}
	e.evalErrorf(n.OpRange, "unsupported comparison operator '%s'", n.Op)
	return nil
}

// lessAndEqual returns (left <= right, left == right) for the comparable
// kinds.
func (e *Evaluator) lessAndEqual(n *ast.BinaryExpr, left, right values.Value) (bool, bool) {
	if li, ri, lf, rf, isFloat, ok := numericOperands(left, right); ok {
		if isFloat {
			return lf <= rf, lf == rf
		}
		return li <= ri, li == ri
	}

	l := values.Deref(left)
	r := values.Deref(right)
	if ls, ok := l.(values.String); ok {
		rs, ok := r.(values.String)
		if !ok {
			e.evalErrorf(n.Right.Range(), "expected %s for comparison but found %s",
				values.NewStringType().TypeName(), values.TypeOf(right))
		}
		lf := strings.ToLower(string(ls))
		rf := strings.ToLower(string(rs))
		return lf <= rf, lf == rf
	}
	if lt, ok := l.(values.Type); ok {
		rt, ok := r.(values.Type)
		if !ok {
			e.evalErrorf(n.Right.Range(), "expected %s for comparison but found %s",
				values.TypeType{}.TypeName(), values.TypeOf(right))
		}
		equal := values.Equals(lt, rt)
		return equal || lt.IsSpecialization(rt), equal
	}
	e.evalErrorf(n.Left.Range(), "expected %s, %s, or %s for comparison but found %s",
		values.NumericType{}.TypeName(), values.NewStringType().TypeName(), values.TypeType{}.TypeName(), values.TypeOf(left))
	return false, false
}

// evalMatch implements =~ and the match half of !~. Successful matches set
// the match variables in the enclosing match scope.
func (e *Evaluator) evalMatch(n *ast.BinaryExpr, left, right values.Value) bool {
	s, ok := values.Deref(left).(values.String)
	if !ok {
		e.evalErrorf(n.Left.Range(), "expected %s for match but found %s",
			values.NewStringType().TypeName(), values.TypeOf(left))
	}

	var re *values.Regexp
	switch r := values.Deref(right).(type) {
	case *values.Regexp:
		re = r
	case values.String:
		compiled, err := values.NewRegexp(string(r))
		if err != nil {
			e.evalErrorf(n.Right.Range(), "%s", err)
		}
		re = compiled
	case values.Type:
		// Type[T] matching is an instance check; no match variables.
		return r.IsInstance(values.Deref(left))
	default:
		e.evalErrorf(n.Right.Range(), "expected %s for match but found %s",
			values.RegexpType{}.TypeName(), values.TypeOf(right))
	}

	captures := re.Match(string(s))
	if captures == nil {
		return false
	}
	e.ctx.SetMatches(captures)
	return true
}

// evalIn implements the in operator.
func (e *Evaluator) evalIn(left, right values.Value) values.Value {
	l := values.Deref(left)
	switch r := values.Deref(right).(type) {
	case values.String:
		if ls, ok := l.(values.String); ok {
			return values.Boolean(strings.Contains(strings.ToLower(string(r)), strings.ToLower(string(ls))))
		}
		if re, ok := l.(*values.Regexp); ok {
			if captures := re.Match(string(r)); captures != nil {
				e.ctx.SetMatches(captures)
				return values.Boolean(true)
			}
			return values.Boolean(false)
		}
	case *values.Array:
		for _, element := range r.Elements {
			switch lv := l.(type) {
			case *values.Regexp:
				if s, ok := values.Deref(element).(values.String); ok {
					if captures := lv.Match(string(s)); captures != nil {
						e.ctx.SetMatches(captures)
						return values.Boolean(true)
					}
				}
			case values.Type:
				if lv.IsInstance(element) {
					return values.Boolean(true)
				}
			default:
				if values.Equals(l, element) {
					return values.Boolean(true)
				}
			}
		}
		return values.Boolean(false)
	case *values.Hash:
		for _, entry := range r.Entries() {
			if t, ok := l.(values.Type); ok {
				if t.IsInstance(entry.Key) {
					return values.Boolean(true)
				}
				continue
			}
			if values.Equals(l, entry.Key) {
				return values.Boolean(true)
			}
		}
		return values.Boolean(false)
	}
	return values.Boolean(false)
}
