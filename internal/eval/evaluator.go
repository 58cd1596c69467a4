// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"fmt"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/logging"
	"github.com/nomoslang/nomos/internal/values"
)

// Evaluator evaluates one manifest's syntax tree against a shared Context.
type Evaluator struct {
	ctx     *Context
	program *ast.Program
}

// New returns an evaluator for the given manifest.
func New(ctx *Context, program *ast.Program) *Evaluator {
	return &Evaluator{ctx: ctx, program: program}
}

// Context returns the shared evaluation context.
func (e *Evaluator) Context() *Context {
	return e.ctx
}

// evalAbort carries an evaluation error up to the API boundary. Evaluation
// errors are fatal for the compilation, so no intermediate recovery exists.
type evalAbort struct {
	diag *diags.Diagnostic
}

// Evaluate evaluates every top-level statement of the manifest. The top
// level follows the block rule: only the last expression may be
// unproductive.
func (e *Evaluator) Evaluate() diags.Diagnostics {
	return e.capture(func() {
		e.evalBlock(e.program.Body)
	})
}

// EvaluateNodeDefinition evaluates the matched node definition's body,
// converting evaluation errors into diagnostics.
func (e *Evaluator) EvaluateNodeDefinition(def *catalog.NodeDefinition, matchedName string) diags.Diagnostics {
	return e.capture(func() {
		e.EvaluateNode(def, matchedName)
	})
}

// DeclareClasses declares the given classes (by name), converting
// evaluation errors into diagnostics. The compiler uses it for
// automatically included classes.
func (e *Evaluator) DeclareClasses(names []string, rng diags.SourceRange) diags.Diagnostics {
	return e.capture(func() {
		for _, name := range names {
			e.DeclareClass(name, rng)
		}
	})
}

// capture runs fn, converting an evaluation abort into diagnostics.
func (e *Evaluator) capture(fn func()) (ds diags.Diagnostics) {
	defer func() {
		if r := recover(); r != nil {
			abort, ok := r.(evalAbort)
			if !ok {
				panic(r)
			}
			ds = ds.Append(abort.diag)
		}
	}()
	fn()
	return ds
}

// EvaluateBody is Evaluate for a nested body driven by another evaluator
// (class and defined type bodies). Errors propagate as panics.
func (e *Evaluator) EvaluateBody(body []ast.Expression) values.Value {
	return e.evalBlock(body)
}

func (e *Evaluator) errorf(rng diags.SourceRange, kind diags.Kind, format string, args ...interface{}) {
	panic(evalAbort{diag: &diags.Diagnostic{
		Severity:   diags.Error,
		Kind:       kind,
		Summary:    fmt.Sprintf(format, args...),
		Subject:    &rng,
		SourceLine: diags.SourceLine(e.program.Source, rng.Start),
	}})
}

func (e *Evaluator) evalErrorf(rng diags.SourceRange, format string, args ...interface{}) {
	e.errorf(rng, diags.EvalError, format, args...)
}

func (e *Evaluator) warn(rng diags.SourceRange, message string) {
	r := rng
	e.ctx.Sink.Log(logging.Record{
		Level:      logging.Warning,
		Subject:    &r,
		SourceLine: diags.SourceLine(e.program.Source, rng.Start),
		Message:    message,
	})
}

// evalStatement evaluates one statement. Statements other than the last of
// a block must be productive: they must do something besides producing a
// value.
func (e *Evaluator) evalStatement(expr ast.Expression, requireProductive bool) values.Value {
	if requireProductive && !isProductive(expr) {
		e.evalErrorf(expr.Range(), "unproductive expressions may only appear last in a block")
	}
	return e.eval(expr)
}

// evalBlock evaluates a body; the last expression's value is the block's
// value and is exempt from the productivity rule.
func (e *Evaluator) evalBlock(body []ast.Expression) values.Value {
	var result values.Value = values.Undef{}
	for i, expr := range body {
		result = e.evalStatement(expr, i < len(body)-1)
	}
	return result
}

func isProductive(expr ast.Expression) bool {
	switch n := expr.(type) {
	case *ast.BinaryExpr:
		if n.Op == ast.OpAssign || n.Op.IsEdge() {
			return true
		}
		return isProductive(n.Left)
	case *ast.UnaryExpr:
		return isProductive(n.Operand)
	case *ast.ParenExpr:
		return isProductive(n.Inner)
	case *ast.AccessExpr:
		return isProductive(n.Target)
	case *ast.SelectorExpr:
		return isProductive(n.Target)
	case *ast.MethodCallExpr:
		return true
	case *ast.IfExpr, *ast.UnlessExpr, *ast.CaseExpr, *ast.FunctionCallExpr:
		return true
	case *ast.ResourceExpr, *ast.ResourceDefaultsExpr, *ast.ResourceOverrideExpr,
		*ast.ClassDefinitionExpr, *ast.DefinedTypeExpr, *ast.NodeDefinitionExpr,
		*ast.CollectionExpr:
		return true
	}
	return false
}

// eval evaluates any expression to a value.
func (e *Evaluator) eval(expr ast.Expression) values.Value {
	switch n := expr.(type) {
	case *ast.UndefExpr:
		return values.Undef{}
	case *ast.DefaultExpr:
		return values.Default{}
	case *ast.BooleanExpr:
		return values.Boolean(n.Value)
	case *ast.NumberExpr:
		if n.IsFloat {
			return values.Float(n.Float)
		}
		return values.Integer(n.Int)
	case *ast.StringExpr:
		return values.String(e.interpolate(n))
	case *ast.RegexExpr:
		r, err := values.NewRegexp(n.Pattern)
		if err != nil {
			e.evalErrorf(n.Rng, "%s", err)
		}
		return r
	case *ast.VariableExpr:
		return e.evalVariable(n)
	case *ast.NameExpr:
		return values.String(n.Value)
	case *ast.BareWordExpr:
		return values.String(n.Value)
	case *ast.TypeExpr:
		return values.TypeByName(n.Name)
	case *ast.ArrayExpr:
		return &values.Array{Elements: e.evalUnfold(n.Elements)}
	case *ast.HashExpr:
		h := values.NewHash()
		for _, pair := range n.Entries {
			h.Set(e.eval(pair.Key), e.eval(pair.Value))
		}
		return h
	case *ast.ParenExpr:
		return e.eval(n.Inner)
	case *ast.UnaryExpr:
		return e.evalUnary(n)
	case *ast.BinaryExpr:
		return e.evalBinary(n)
	case *ast.AccessExpr:
		return e.evalAccess(n)
	case *ast.SelectorExpr:
		return e.evalSelector(n)
	case *ast.MethodCallExpr:
		return e.evalMethodCall(n)
	case *ast.FunctionCallExpr:
		return e.evalFunctionCall(n)
	case *ast.IfExpr:
		return e.evalIf(n)
	case *ast.UnlessExpr:
		return e.evalUnless(n)
	case *ast.CaseExpr:
		return e.evalCase(n)
	case *ast.ResourceExpr:
		return e.evalResource(n)
	case *ast.ResourceDefaultsExpr:
		return e.evalResourceDefaults(n)
	case *ast.ResourceOverrideExpr:
		return e.evalResourceOverride(n)
	case *ast.ClassDefinitionExpr:
		// Registered by the scanner; evaluating the definition just names
		// the class.
		return values.ClassType{Title: e.ctx.CurrentScope().Qualify(n.Name)}
	case *ast.DefinedTypeExpr:
		return values.ResourceType{Name: e.ctx.CurrentScope().Qualify(n.Name)}
	case *ast.NodeDefinitionExpr:
		return values.Undef{}
	case *ast.CollectionExpr:
		return e.evalCollection(n)
	}
	e.evalErrorf(expr.Range(), "unsupported expression")
	return nil
}

func (e *Evaluator) evalVariable(n *ast.VariableExpr) values.Value {
	if n.Name == "" {
		e.evalErrorf(n.Rng, "variable name cannot be empty")
	}
	if n.Name[0] >= '0' && n.Name[0] <= '9' {
		index := 0
		for _, c := range n.Name {
			index = index*10 + int(c-'0')
		}
		return values.NewVariable(n.Name, e.ctx.MatchVar(index))
	}
	value, ok := e.ctx.Lookup(n.Name, func(msg string) {
		e.warn(n.Rng, msg)
	})
	if !ok {
		value = values.Undef{}
	}
	return values.NewVariable(n.Name, value)
}

// evalUnfold evaluates an expression list, splicing splat-of-array elements
// into the result.
func (e *Evaluator) evalUnfold(exprs []ast.Expression) []values.Value {
	var result []values.Value
	for _, expr := range exprs {
		value := e.eval(expr)
		if unfolded, ok := e.unfold(expr, value); ok {
			result = append(result, unfolded.Elements...)
			continue
		}
		result = append(result, value)
	}
	return result
}

// unfold returns the elements to splice when expr is a unary splat whose
// value is an array.
func (e *Evaluator) unfold(expr ast.Expression, value values.Value) (*values.Array, bool) {
	switch n := expr.(type) {
	case *ast.UnaryExpr:
		if n.Op != ast.OpSplat {
			return nil, false
		}
		if arr, ok := values.Deref(value).(*values.Array); ok {
			return arr, true
		}
		return nil, false
	case *ast.ParenExpr:
		return e.unfold(n.Inner, value)
	}
	return nil, false
}

func (e *Evaluator) evalUnary(n *ast.UnaryExpr) values.Value {
	operand := e.eval(n.Operand)
	switch n.Op {
	case ast.OpNot:
		return values.Boolean(!values.Truthy(operand))
	case ast.OpSplat:
		return values.ToArray(operand, true)
	case ast.OpNegate:
		switch v := values.Deref(operand).(type) {
		case values.Integer:
			if int64(v) == -1<<63 {
				e.evalErrorf(n.Rng, "negation of %d results in an arithmetic overflow", int64(v))
			}
			return values.Integer(-int64(v))
		case values.Float:
			return values.Float(-float64(v))
		default:
			e.evalErrorf(n.Operand.Range(), "expected %s for unary negation but found %s",
				values.NumericType{}.TypeName(), values.TypeOf(operand))
		}
	}
	e.evalErrorf(n.Rng, "unsupported unary operator '%s'", n.Op)
	return nil
}

func (e *Evaluator) evalBinary(n *ast.BinaryExpr) values.Value {
	switch n.Op {
	case ast.OpAssign:
		return e.evalAssignment(n)
	case ast.OpAnd:
		if !values.Truthy(e.eval(n.Left)) {
			return values.Boolean(false)
		}
		return values.Boolean(values.Truthy(e.eval(n.Right)))
	case ast.OpOr:
		if values.Truthy(e.eval(n.Left)) {
			return values.Boolean(true)
		}
		return values.Boolean(values.Truthy(e.eval(n.Right)))
	}

	left := e.eval(n.Left)
	right := e.eval(n.Right)

	if n.Op.IsEdge() {
		return e.evalEdge(n, left, right)
	}
	return e.evalOperator(n, left, right)
}

func (e *Evaluator) evalAssignment(n *ast.BinaryExpr) values.Value {
	target, ok := n.Left.(*ast.VariableExpr)
	if !ok {
		left := e.eval(n.Left)
		e.evalErrorf(n.Left.Range(), "cannot assign to %s: assignment can only be performed on variables",
			values.TypeOf(left))
		return nil
	}
	if target.Name != "" && target.Name[0] >= '0' && target.Name[0] <= '9' {
		e.evalErrorf(n.Left.Range(), "cannot assign to $%s: the name is reserved as a match variable", target.Name)
	}
	if containsQualifier(target.Name) {
		e.evalErrorf(n.Left.Range(), "cannot assign to $%s: assignment can only be performed on variables local to the current scope", target.Name)
	}

	value := values.Deref(e.eval(n.Right))

	previous := e.ctx.CurrentScope().Set(target.Name, value, e.program.Filename, n.Left.Range().Start.Line)
	if previous != nil {
		if previous.File != "" {
			e.evalErrorf(n.Left.Range(), "cannot assign to $%s: variable was previously assigned at %s:%d",
				target.Name, previous.File, previous.Line)
		}
		e.evalErrorf(n.Left.Range(), "cannot assign to $%s: a fact or node parameter exists with the same name", target.Name)
	}
	return values.NewVariable(target.Name, value)
}

func containsQualifier(name string) bool {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == ':' && name[i+1] == ':' {
			return true
		}
	}
	return false
}

func (e *Evaluator) evalSelector(n *ast.SelectorExpr) values.Value {
	done := e.ctx.PushMatchScope()
	defer done()

	target := e.eval(n.Target)

	defaultIndex := -1
	for i, c := range n.Cases {
		selector := e.eval(c.Selector)
		if values.IsDefault(selector) {
			defaultIndex = i
			continue
		}
		if unfolded, ok := e.unfold(c.Selector, selector); ok {
			for _, element := range unfolded.Elements {
				if e.isMatch(target, element, n.Target.Range()) {
					return e.eval(c.Result)
				}
			}
			continue
		}
		if e.isMatch(target, selector, n.Target.Range()) {
			return e.eval(c.Result)
		}
	}
	if defaultIndex < 0 {
		e.evalErrorf(n.Rng, "no matching selector case for value '%s'", target)
	}
	return e.eval(n.Cases[defaultIndex].Result)
}

func (e *Evaluator) evalIf(n *ast.IfExpr) values.Value {
	done := e.ctx.PushMatchScope()
	defer done()

	if values.Truthy(e.eval(n.Condition)) {
		return e.evalBlock(n.Body)
	}
	for _, elsif := range n.Elsifs {
		if values.Truthy(e.eval(elsif.Condition)) {
			return e.evalBlock(elsif.Body)
		}
	}
	if n.Else != nil {
		return e.evalBlock(n.Else.Body)
	}
	return values.Undef{}
}

func (e *Evaluator) evalUnless(n *ast.UnlessExpr) values.Value {
	done := e.ctx.PushMatchScope()
	defer done()

	if !values.Truthy(e.eval(n.Condition)) {
		return e.evalBlock(n.Body)
	}
	if n.Else != nil {
		return e.evalBlock(n.Else.Body)
	}
	return values.Undef{}
}

func (e *Evaluator) evalCase(n *ast.CaseExpr) values.Value {
	done := e.ctx.PushMatchScope()
	defer done()

	subject := e.eval(n.Subject)

	defaultIndex := -1
	for i, prop := range n.Propositions {
		for _, option := range prop.Options {
			value := e.eval(option)
			if values.IsDefault(value) {
				defaultIndex = i
				continue
			}
			if unfolded, ok := e.unfold(option, value); ok {
				for _, element := range unfolded.Elements {
					if e.isMatch(subject, element, option.Range()) {
						return e.evalBlock(prop.Body)
					}
				}
				continue
			}
			if e.isMatch(subject, value, option.Range()) {
				return e.evalBlock(prop.Body)
			}
		}
	}
	if defaultIndex >= 0 {
		return e.evalBlock(n.Propositions[defaultIndex].Body)
	}
	return values.Undef{}
}

// isMatch implements case/selector matching: regexes match strings (setting
// the match variables), types match instances, everything else compares
// with Equals.
func (e *Evaluator) isMatch(actual, expected values.Value, rng diags.SourceRange) bool {
	switch exp := values.Deref(expected).(type) {
	case *values.Regexp:
		s, ok := values.Deref(actual).(values.String)
		if !ok {
			return false
		}
		captures := exp.Match(string(s))
		if captures == nil {
			return false
		}
		e.ctx.SetMatches(captures)
		return true
	case values.Type:
		if _, isType := values.Deref(actual).(values.Type); !isType {
			return exp.IsInstance(actual)
		}
	}
	return values.Equals(actual, expected)
}
