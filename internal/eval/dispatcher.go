// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"sort"

	"github.com/agext/levenshtein"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/values"
)

// Function is the implementation of a built-in function.
type Function func(*CallContext) values.Value

// CallContext carries everything a built-in function needs: the evaluator,
// the evaluated arguments with their source positions, and the optional
// lambda.
type CallContext struct {
	eval      *Evaluator
	name      string
	callRange diags.SourceRange
	args      []values.Value
	argRanges []diags.SourceRange
	lambda    *ast.Lambda
}

// Evaluator returns the calling evaluator.
func (c *CallContext) Evaluator() *Evaluator {
	return c.eval
}

// Name returns the name the function was called by.
func (c *CallContext) Name() string {
	return c.name
}

// Range returns the source range of the call itself.
func (c *CallContext) Range() diags.SourceRange {
	return c.callRange
}

// Args returns the evaluated argument values.
func (c *CallContext) Args() []values.Value {
	return c.args
}

// ArgRange returns the source range of argument i, falling back to the call
// range for synthesized arguments.
func (c *CallContext) ArgRange(i int) diags.SourceRange {
	if i >= 0 && i < len(c.argRanges) {
		return c.argRanges[i]
	}
	return c.callRange
}

// Errorf raises an argument/type error at the given range.
func (c *CallContext) Errorf(rng diags.SourceRange, format string, args ...interface{}) {
	c.eval.errorf(rng, diags.ArgumentError, format, args...)
}

// CheckArity raises an error unless the argument count is within
// [min, max]; max < 0 means unbounded.
func (c *CallContext) CheckArity(min, max int) {
	n := len(c.args)
	if n < min || (max >= 0 && n > max) {
		want := "argument"
		if min != 1 || max != 1 {
			want = "arguments"
		}
		switch {
		case max < 0:
			c.Errorf(c.callRange, "expected at least %d %s to '%s' function but %d were given", min, want, c.name, n)
		case min == max:
			c.Errorf(c.ArgRange(n-1), "expected %d %s to '%s' function but %d were given", min, want, c.name, n)
		default:
			c.Errorf(c.ArgRange(n-1), "expected between %d and %d %s to '%s' function but %d were given", min, max, want, c.name, n)
		}
	}
}

// LambdaGiven reports whether the call included a lambda.
func (c *CallContext) LambdaGiven() bool {
	return c.lambda != nil
}

// LambdaParameterCount returns the number of lambda parameters, 0 without a
// lambda.
func (c *CallContext) LambdaParameterCount() int {
	if c.lambda == nil {
		return 0
	}
	return len(c.lambda.Parameters)
}

// LambdaRange returns the lambda's source range, or the call range when no
// lambda was given.
func (c *CallContext) LambdaRange() diags.SourceRange {
	if c.lambda == nil {
		return c.callRange
	}
	return c.lambda.Rng
}

// RequireLambda raises an error unless a lambda with an accepted parameter
// count was given.
func (c *CallContext) RequireLambda(minParams, maxParams int) {
	if c.lambda == nil {
		c.Errorf(c.callRange, "expected a lambda to '%s' function but one was not given", c.name)
	}
	n := len(c.lambda.Parameters)
	if n < minParams || n > maxParams {
		if minParams == maxParams {
			c.Errorf(c.lambda.Rng, "expected %d lambda parameters but %d were given", minParams, n)
		}
		c.Errorf(c.lambda.Rng, "expected %d or %d lambda parameters but %d were given", minParams, maxParams, n)
	}
}

// Yield invokes the lambda with the given arguments and returns its value.
func (c *CallContext) Yield(args []values.Value) values.Value {
	if c.lambda == nil {
		c.Errorf(c.callRange, "function '%s' requires a lambda to yield to", c.name)
	}
	return c.eval.invokeLambda(c.lambda, args)
}

// registry holds the built-in functions. Statement functions and expression
// functions share one namespace.
var registry = map[string]Function{}

// RegisterFunction adds a built-in function to the dispatch table. It
// panics on duplicates; registration happens at init time.
func RegisterFunction(name string, fn Function) {
	if _, exists := registry[name]; exists {
		panic("function '" + name + "' is already registered")
	}
	registry[name] = fn
}

func (e *Evaluator) evalFunctionCall(n *ast.FunctionCallExpr) values.Value {
	return e.dispatch(n.Name, n.NameRange, n.Args, n.Lambda, nil, diags.SourceRange{})
}

func (e *Evaluator) evalMethodCall(n *ast.MethodCallExpr) values.Value {
	target := e.eval(n.Target)
	return e.dispatch(n.Name, n.NameRange, n.Args, n.Lambda, target, n.Target.Range())
}

// dispatch evaluates arguments and invokes a built-in function. For method
// calls, the receiver becomes the first argument.
func (e *Evaluator) dispatch(name string, nameRange diags.SourceRange, argExprs []ast.Expression, lambda *ast.Lambda, receiver values.Value, receiverRange diags.SourceRange) values.Value {
	fn, ok := registry[name]
	if !ok {
		if suggestion := suggestFunction(name); suggestion != "" {
			e.errorf(nameRange, diags.ArgumentError, "unknown function '%s'; did you mean '%s'?", name, suggestion)
		}
		e.errorf(nameRange, diags.ArgumentError, "unknown function '%s'", name)
	}

	ctx := &CallContext{
		eval:      e,
		name:      name,
		callRange: nameRange,
		lambda:    lambda,
	}
	if receiver != nil {
		ctx.args = append(ctx.args, values.Deref(receiver))
		ctx.argRanges = append(ctx.argRanges, receiverRange)
	}
	for _, argExpr := range argExprs {
		value := e.eval(argExpr)
		if unfolded, ok := e.unfold(argExpr, value); ok {
			for _, element := range unfolded.Elements {
				ctx.args = append(ctx.args, element)
				ctx.argRanges = append(ctx.argRanges, argExpr.Range())
			}
			continue
		}
		ctx.args = append(ctx.args, value)
		ctx.argRanges = append(ctx.argRanges, argExpr.Range())
	}
	return fn(ctx)
}

// suggestFunction proposes a close registered name for a typo, or "".
func suggestFunction(name string) string {
	names := make([]string, 0, len(registry))
	for candidate := range registry {
		names = append(names, candidate)
	}
	sort.Strings(names)

	best := ""
	bestDistance := 3 // suggestions beyond two edits read as noise
	for _, candidate := range names {
		if d := levenshtein.Distance(name, candidate, nil); d < bestDistance {
			best = candidate
			bestDistance = d
		}
	}
	return best
}
