// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"fmt"
	"strings"

	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/logging"
	"github.com/nomoslang/nomos/internal/values"
)

func init() {
	RegisterFunction("include", includeFunction)
	RegisterFunction("require", requireFunction)
	RegisterFunction("contain", containFunction)
	RegisterFunction("realize", realizeFunction)
	RegisterFunction("tag", tagFunction)
	RegisterFunction("fail", failFunction)
	RegisterFunction("defined", definedFunction)
	RegisterFunction("split", splitFunction)
	RegisterFunction("filter", filterFunction)
	RegisterFunction("each", eachFunction)
	RegisterFunction("map", mapFunction)
	RegisterFunction("reduce", reduceFunction)
	RegisterFunction("with", withFunction)
	RegisterFunction("assert_type", assertTypeFunction)
	RegisterFunction("sprintf", sprintfFunction)
	RegisterFunction("shellquote", shellquoteFunction)

	for name, level := range map[string]logging.Level{
		"debug":   logging.Debug,
		"info":    logging.Info,
		"notice":  logging.Notice,
		"warning": logging.Warning,
		"err":     logging.Error,
		"alert":   logging.Alert,
		"emerg":   logging.Emergency,
		"crit":    logging.Critical,
	} {
		RegisterFunction(name, loggingFunction(level))
	}
}

// loggingFunction builds the debug/info/notice/... family: join the
// arguments into a message, emit it at the fixed level, and return it.
func loggingFunction(level logging.Level) Function {
	return func(c *CallContext) values.Value {
		parts := make([]string, len(c.Args()))
		for i, arg := range c.Args() {
			parts[i] = values.Deref(arg).String()
		}
		message := strings.Join(parts, " ")

		rng := c.Range()
		c.Evaluator().Context().Sink.Log(logging.Record{
			Level:   level,
			Subject: &rng,
			Message: message,
		})
		return values.String(message)
	}
}

// classArgs resolves include/require/contain arguments to class names.
func classArgs(c *CallContext) []string {
	c.CheckArity(1, -1)
	var names []string

	var resolve func(i int, v values.Value)
	resolve = func(i int, v values.Value) {
		switch v := values.Deref(v).(type) {
		case values.String:
			names = append(names, string(v))
		case values.ClassType:
			if v.Title == "" {
				c.Errorf(c.ArgRange(i), "cannot declare a class with an unspecified title")
			}
			names = append(names, v.Title)
		case values.ResourceType:
			if !v.IsClass() || v.Title == "" {
				c.Errorf(c.ArgRange(i), "expected Class %s for argument but found %s",
					values.ResourceType{}.TypeName(), v)
			}
			names = append(names, v.Title)
		case *values.Array:
			for _, element := range v.Elements {
				resolve(i, element)
			}
		default:
			c.Errorf(c.ArgRange(i), "expected %s, %s, %s, or Class %s for argument but found %s",
				values.NewStringType().TypeName(), values.NewArrayType(values.AnyType{}).TypeName(),
				values.ClassType{}.TypeName(), values.ResourceType{}.TypeName(), values.TypeOf(v))
		}
	}
	for i, arg := range c.Args() {
		resolve(i, arg)
	}
	return names
}

func includeFunction(c *CallContext) values.Value {
	for _, name := range classArgs(c) {
		c.Evaluator().DeclareClass(name, c.Range())
	}
	return values.Undef{}
}

// requireFunction declares the classes and makes the containing resource
// depend on them.
func requireFunction(c *CallContext) values.Value {
	e := c.Evaluator()
	container := e.containerResource()
	for _, name := range classArgs(c) {
		class := e.DeclareClass(name, c.Range())
		if container != nil && container != class {
			if err := container.Attributes().Append("require", values.NewArray(class.Ref), true); err != nil {
				c.Errorf(c.Range(), "%s", err)
			}
		}
	}
	return values.Undef{}
}

// containFunction declares the classes inside the containing class. With
// no containment edges in the relationship model, declaration order is the
// only additional guarantee.
func containFunction(c *CallContext) values.Value {
	for _, name := range classArgs(c) {
		c.Evaluator().DeclareClass(name, c.Range())
	}
	return values.Undef{}
}

func realizeFunction(c *CallContext) values.Value {
	c.CheckArity(1, -1)
	e := c.Evaluator()

	var refs []values.Value
	for i, arg := range c.Args() {
		err := catalog.EachResourceRef(arg, func(ref values.ResourceType) error {
			r := e.ctx.Catalog.Find(ref)
			if r == nil {
				return fmt.Errorf("resource %s does not exist in the catalog", ref)
			}
			if err := e.ctx.Catalog.Realize(r); err != nil {
				return err
			}
			refs = append(refs, ref)
			return nil
		})
		if err != nil {
			c.Errorf(c.ArgRange(i), "%s", err)
		}
	}
	return &values.Array{Elements: refs}
}

// tagFunction adds tags to the containing resource.
func tagFunction(c *CallContext) values.Value {
	c.CheckArity(1, -1)
	e := c.Evaluator()
	container := e.containerResource()
	if container == nil {
		return values.Undef{}
	}
	for i, arg := range c.Args() {
		s, ok := values.Deref(arg).(values.String)
		if !ok {
			c.Errorf(c.ArgRange(i), "expected %s for tag but found %s",
				values.NewStringType().TypeName(), values.TypeOf(arg))
		}
		if err := container.Attributes().Append("tag", s, true); err != nil {
			c.Errorf(c.ArgRange(i), "%s", err)
		}
	}
	return values.Undef{}
}

func failFunction(c *CallContext) values.Value {
	parts := make([]string, len(c.Args()))
	for i, arg := range c.Args() {
		parts[i] = values.Deref(arg).String()
	}
	c.Evaluator().evalErrorf(c.Range(), "%s", strings.Join(parts, " "))
	return nil
}

// definedFunction reports whether every argument names something known:
// a class or defined type by name, or a declared resource by reference.
func definedFunction(c *CallContext) values.Value {
	c.CheckArity(1, -1)
	e := c.Evaluator()
	cat := e.ctx.Catalog

	for i, arg := range c.Args() {
		known := false
		switch v := values.Deref(arg).(type) {
		case values.String:
			name := strings.ToLower(string(v))
			known = len(cat.FindClass(name)) > 0 || cat.FindDefinedType(name) != nil
		case values.ClassType:
			known = len(cat.FindClass(v.Title)) > 0
		case values.ResourceType:
			if v.FullyQualified() {
				known = cat.Find(v) != nil
			} else {
				known = cat.FindDefinedType(v.Name) != nil
			}
		default:
			c.Errorf(c.ArgRange(i), "expected %s, %s, or %s for argument but found %s",
				values.NewStringType().TypeName(), values.ClassType{}.TypeName(),
				values.ResourceType{}.TypeName(), values.TypeOf(arg))
		}
		if !known {
			return values.Boolean(false)
		}
	}
	return values.Boolean(true)
}

func splitFunction(c *CallContext) values.Value {
	c.CheckArity(2, 2)

	first, ok := values.Deref(c.Args()[0]).(values.String)
	if !ok {
		c.Errorf(c.ArgRange(0), "expected %s for first argument but found %s",
			values.NewStringType().TypeName(), values.TypeOf(c.Args()[0]))
	}

	splitChars := func() values.Value {
		result := &values.Array{}
		for _, r := range string(first) {
			result.Elements = append(result.Elements, values.String(r))
		}
		return result
	}

	switch second := values.Deref(c.Args()[1]).(type) {
	case values.String:
		if second == "" {
			return splitChars()
		}
		parts := strings.Split(string(first), string(second))
		result := &values.Array{Elements: make([]values.Value, len(parts))}
		for i, part := range parts {
			result.Elements[i] = values.String(part)
		}
		return result
	case *values.Regexp:
		if second.Pattern == "" {
			return splitChars()
		}
		return splitByPattern(string(first), second)
	case values.Type:
		regexpType, ok := second.(values.RegexpType)
		if !ok {
			c.Errorf(c.ArgRange(1), "expected %s or %s for second argument but found %s",
				values.NewStringType().TypeName(), values.RegexpType{}.TypeName(), values.TypeOf(c.Args()[1]))
		}
		if regexpType.Pattern == "" {
			return splitChars()
		}
		compiled, err := values.NewRegexp(regexpType.Pattern)
		if err != nil {
			c.Errorf(c.ArgRange(1), "%s", err)
		}
		return splitByPattern(string(first), compiled)
	}
	c.Errorf(c.ArgRange(1), "expected %s or %s for second argument but found %s",
		values.NewStringType().TypeName(), values.RegexpType{}.TypeName(), values.TypeOf(c.Args()[1]))
	return nil
}

func splitByPattern(s string, re *values.Regexp) values.Value {
	parts := re.Split(s)
	result := &values.Array{Elements: make([]values.Value, len(parts))}
	for i, part := range parts {
		result.Elements[i] = values.String(part)
	}
	return result
}

// enumerate yields (index, value) pairs for the enumerable argument kinds.
func enumerate(c *CallContext, arg values.Value, fn func(index, value values.Value) bool) {
	switch v := values.Deref(arg).(type) {
	case values.String:
		for i, r := range []rune(string(v)) {
			if !fn(values.Integer(i), values.String(r)) {
				return
			}
		}
	case values.Integer:
		for i := int64(0); i < int64(v); i++ {
			if !fn(values.Integer(i), values.Integer(i)) {
				return
			}
		}
	case *values.Array:
		for i, element := range v.Elements {
			if !fn(values.Integer(i), element) {
				return
			}
		}
	case *values.Hash:
		for _, entry := range v.Entries() {
			if !fn(entry.Key, entry.Value) {
				return
			}
		}
	case values.IntegerType:
		if !v.Enumerable() {
			c.Errorf(c.ArgRange(0), "%s is not enumerable", v)
		}
		v.Each(func(index, value int64) bool {
			return fn(values.Integer(index), values.Integer(value))
		})
	default:
		c.Errorf(c.ArgRange(0), "expected enumerable type for first argument but found %s", values.TypeOf(arg))
	}
}

// yieldArgs packs an (index, value) pair the way a 1- or 2-parameter
// lambda expects: hashes pass [key, value] to single-parameter lambdas,
// everything else passes the value alone.
func yieldArgs(c *CallContext, arg values.Value, index, value values.Value) []values.Value {
	if c.LambdaParameterCount() == 1 {
		if _, isHash := values.Deref(arg).(*values.Hash); isHash {
			return []values.Value{values.NewArray(index, value)}
		}
		return []values.Value{value}
	}
	return []values.Value{index, value}
}

func eachFunction(c *CallContext) values.Value {
	c.CheckArity(1, 1)
	c.RequireLambda(1, 2)

	arg := c.Args()[0]
	enumerate(c, arg, func(index, value values.Value) bool {
		c.Yield(yieldArgs(c, arg, index, value))
		return true
	})
	return values.Deref(arg)
}

func filterFunction(c *CallContext) values.Value {
	c.CheckArity(1, 1)
	c.RequireLambda(1, 2)

	arg := c.Args()[0]
	if h, isHash := values.Deref(arg).(*values.Hash); isHash {
		result := values.NewHash()
		for _, entry := range h.Entries() {
			if values.Truthy(c.Yield(yieldArgs(c, arg, entry.Key, entry.Value))) {
				result.Set(entry.Key, entry.Value)
			}
		}
		return result
	}

	result := &values.Array{}
	enumerate(c, arg, func(index, value values.Value) bool {
		if values.Truthy(c.Yield(yieldArgs(c, arg, index, value))) {
			result.Elements = append(result.Elements, value)
		}
		return true
	})
	return result
}

func mapFunction(c *CallContext) values.Value {
	c.CheckArity(1, 1)
	c.RequireLambda(1, 2)

	arg := c.Args()[0]
	result := &values.Array{}
	enumerate(c, arg, func(index, value values.Value) bool {
		result.Elements = append(result.Elements, values.Deref(c.Yield(yieldArgs(c, arg, index, value))))
		return true
	})
	return result
}

func reduceFunction(c *CallContext) values.Value {
	c.CheckArity(1, 2)
	c.RequireLambda(2, 2)

	arg := c.Args()[0]
	var memo values.Value
	if len(c.Args()) == 2 {
		memo = values.Deref(c.Args()[1])
	}

	enumerate(c, arg, func(index, value values.Value) bool {
		if memo == nil {
			memo = value
			return true
		}
		memo = values.Deref(c.Yield([]values.Value{memo, value}))
		return true
	})
	if memo == nil {
		return values.Undef{}
	}
	return memo
}

func withFunction(c *CallContext) values.Value {
	if !c.LambdaGiven() {
		c.Errorf(c.Range(), "expected a lambda to 'with' function but one was not given")
	}
	args := make([]values.Value, len(c.Args()))
	for i, arg := range c.Args() {
		args[i] = values.Deref(arg)
	}
	return c.Yield(args)
}

func assertTypeFunction(c *CallContext) values.Value {
	c.CheckArity(2, 2)

	expected, ok := values.Deref(c.Args()[0]).(values.Type)
	if !ok {
		c.Errorf(c.ArgRange(0), "expected %s for first argument but found %s",
			values.TypeType{}.TypeName(), values.TypeOf(c.Args()[0]))
	}
	value := values.Deref(c.Args()[1])
	if expected.IsInstance(value) {
		return value
	}
	if c.LambdaGiven() {
		return c.Yield([]values.Value{expected, values.TypeOf(value)})
	}
	c.Errorf(c.ArgRange(1), "expected %s but found %s", expected, values.TypeOf(value))
	return nil
}

func sprintfFunction(c *CallContext) values.Value {
	c.CheckArity(1, -1)
	format, ok := values.Deref(c.Args()[0]).(values.String)
	if !ok {
		c.Errorf(c.ArgRange(0), "expected %s for format but found %s",
			values.NewStringType().TypeName(), values.TypeOf(c.Args()[0]))
	}

	args := make([]interface{}, 0, len(c.Args())-1)
	for _, arg := range c.Args()[1:] {
		switch v := values.Deref(arg).(type) {
		case values.Integer:
			args = append(args, int64(v))
		case values.Float:
			args = append(args, float64(v))
		case values.String:
			args = append(args, string(v))
		case values.Boolean:
			args = append(args, bool(v))
		default:
			args = append(args, v.String())
		}
	}
	return values.String(fmt.Sprintf(string(format), args...))
}

const shellSafe = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-+=:,./"

func shellquoteFunction(c *CallContext) values.Value {
	var quoted []string

	var quote func(i int, v values.Value)
	quote = func(i int, v values.Value) {
		switch v := values.Deref(v).(type) {
		case *values.Array:
			for _, element := range v.Elements {
				quote(i, element)
			}
		default:
			s := v.String()
			switch {
			case s != "" && strings.Trim(s, shellSafe) == "":
				quoted = append(quoted, s)
			case !strings.Contains(s, "'"):
				quoted = append(quoted, "'"+s+"'")
			default:
				replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
				quoted = append(quoted, `"`+replacer.Replace(s)+`"`)
			}
		}
	}
	for i, arg := range c.Args() {
		quote(i, arg)
	}
	return values.String(strings.Join(quoted, " "))
}
