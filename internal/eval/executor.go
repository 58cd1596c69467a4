// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/scope"
	"github.com/nomoslang/nomos/internal/values"
)

// invokeLambda pushes a lambda scope, binds the parameters against the
// given arguments, and evaluates the body. The result is the body's last
// expression value.
func (e *Evaluator) invokeLambda(lambda *ast.Lambda, args []values.Value) values.Value {
	local := scope.NewChild(e.ctx.CurrentScope(), nil)
	done := e.ctx.PushScope(local)
	defer done()

	e.bindParameters(lambda.Parameters, args)
	return e.evalBlock(lambda.Body)
}

// bindParameters binds positional arguments to a parameter list in the
// current scope, evaluating defaults, enforcing ordering rules and checking
// declared types.
func (e *Evaluator) bindParameters(params []ast.Parameter, args []values.Value) {
	current := e.ctx.CurrentScope()

	sawOptional := false
	for i, param := range params {
		var value values.Value

		if param.Captures {
			if i != len(params)-1 {
				e.evalErrorf(param.Rng, "parameter $%s \"captures rest\" but is not the last parameter", param.Name)
			}
			var captured []values.Value
			if i < len(args) {
				captured = append(captured, args[i:]...)
			} else if param.Default != nil {
				captured = append(captured, e.eval(param.Default))
			}
			value = &values.Array{Elements: captured}
		} else {
			if sawOptional && param.Default == nil {
				e.evalErrorf(param.Rng, "parameter $%s is required but appears after optional parameters", param.Name)
			}
			sawOptional = param.Default != nil

			if i < len(args) {
				value = values.Deref(args[i])
			} else {
				if param.Default == nil {
					e.evalErrorf(param.Rng, "parameter $%s is required but no value was given", param.Name)
				}
				value = values.Deref(e.eval(param.Default))
			}
		}

		e.checkParameterType(param, value)
		if previous := current.Set(param.Name, value, e.program.Filename, param.Rng.Start.Line); previous != nil {
			e.evalErrorf(param.Rng, "parameter $%s already exists in the parameter list", param.Name)
		}
	}
}

// checkParameterType validates a value against a parameter's declared type,
// when one was written.
func (e *Evaluator) checkParameterType(param ast.Parameter, value values.Value) {
	if param.Type == nil {
		return
	}
	typeValue := e.eval(param.Type)
	declared, ok := values.Deref(typeValue).(values.Type)
	if !ok {
		e.evalErrorf(param.Type.Range(), "expected %s for parameter type but found %s",
			values.TypeType{}.TypeName(), values.TypeOf(typeValue))
	}
	if !declared.IsInstance(value) {
		e.evalErrorf(param.Rng, "parameter $%s has expected type %s but was given %s",
			param.Name, declared, values.TypeOf(value))
	}
}

// bindResourceParameters prepares the scope for a class or defined type
// body: defaults for parameters the resource didn't set, the resource's
// attributes as bindings, and the $title/$name built-ins.
func (e *Evaluator) bindResourceParameters(params []ast.Parameter, resource *catalog.Resource, bodyScope *scope.Scope, isClass bool) {
	current := e.ctx.CurrentScope()
	attrs := resource.Attributes()

	for _, param := range params {
		if param.Default == nil {
			if attrs.Get(param.Name) == nil {
				e.evalErrorf(param.Rng, "parameter $%s is required but no value was given", param.Name)
			}
			continue
		}
		if attrs.Get(param.Name) != nil {
			// The declaration supplied a value; it binds below.
			continue
		}
		value := values.Deref(e.eval(param.Default))
		e.checkParameterType(param, value)
		if previous := current.Set(param.Name, value, e.program.Filename, param.Rng.Start.Line); previous != nil {
			e.evalErrorf(param.Rng, "parameter $%s already exists in the parameter list", param.Name)
		}
	}

	title := values.String(resource.Ref.Title)
	var name values.Value = title

	var bindErr *ast.Parameter
	var badAttr string
	attrs.Each(func(attrName string, attrValue values.Value) bool {
		if attrName == "name" {
			name = attrValue
			return true
		}

		var param *ast.Parameter
		for i := range params {
			if params[i].Name == attrName {
				param = &params[i]
				break
			}
		}
		if param != nil {
			if param.Type != nil {
				typeValue := e.eval(param.Type)
				if declared, ok := values.Deref(typeValue).(values.Type); ok && !declared.IsInstance(attrValue) {
					bindErr = param
					return false
				}
			}
		} else if !catalog.IsMetaparameter(attrName) {
			badAttr = attrName
			return false
		}
		current.Set(attrName, attrValue, resource.DeclRange.Filename, resource.DeclRange.Start.Line)
		return true
	})
	if bindErr != nil {
		e.evalErrorf(resource.DeclRange, "parameter $%s has expected type %s but was given %s",
			bindErr.Name, ast.PrintExpr(bindErr.Type), values.TypeOf(attrs.Get(bindErr.Name)))
	}
	if badAttr != "" {
		if isClass {
			e.evalErrorf(resource.DeclRange, "'%s' is not a valid parameter for class '%s'", badAttr, resource.Ref.Title)
		}
		e.evalErrorf(resource.DeclRange, "'%s' is not a valid parameter for defined type '%s'", badAttr, resource.Ref.Name)
	}

	bodyScope.Set("title", title, e.program.Filename, resource.DeclRange.Start.Line)
	bodyScope.Set("name", name, e.program.Filename, resource.DeclRange.Start.Line)
}
