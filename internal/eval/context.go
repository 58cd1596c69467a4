// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package eval walks syntax trees and produces values, with side effects on
// the scope chain and the catalog. One Context spans the whole compilation;
// one Evaluator exists per manifest.
package eval

import (
	"strings"

	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/facts"
	"github.com/nomoslang/nomos/internal/logging"
	"github.com/nomoslang/nomos/internal/scope"
	"github.com/nomoslang/nomos/internal/values"
)

// Context is the shared evaluation state: the catalog, the scope stack, the
// named class scopes, and the regex match scopes.
type Context struct {
	Catalog *catalog.Catalog
	Sink    logging.Sink

	// Exported supplies exported resources published by other nodes for
	// <<| |>> collectors; nil disables importing.
	Exported catalog.ExportedStore

	scopeStack []*scope.Scope
	nodeScope  *scope.Scope
	scopes     map[string]*scope.Scope

	matchStack []*matchCell
}

type matchCell struct {
	captures []values.Value // nil means transparent to the next cell down
}

// NewContext builds the evaluation context, creating the top scope over the
// fact provider. main is the Class[main] resource when one exists.
func NewContext(cat *catalog.Catalog, provider facts.Provider, sink logging.Sink, main *catalog.Resource) *Context {
	top := scope.NewTop(provider, main)
	ctx := &Context{
		Catalog: cat,
		Sink:    sink,
		scopes:  map[string]*scope.Scope{"": top},
	}
	ctx.scopeStack = append(ctx.scopeStack, top)
	ctx.matchStack = append(ctx.matchStack, &matchCell{})
	return ctx
}

// CurrentScope returns the scope on top of the stack.
func (c *Context) CurrentScope() *scope.Scope {
	return c.scopeStack[len(c.scopeStack)-1]
}

// TopScope returns the top (fact-backed) scope.
func (c *Context) TopScope() *scope.Scope {
	return c.scopeStack[0]
}

// NodeOrTop returns the node scope when a node definition matched, and the
// top scope otherwise. Class scopes without an explicit parent hang off it.
func (c *Context) NodeOrTop() *scope.Scope {
	if c.nodeScope != nil {
		return c.nodeScope
	}
	return c.TopScope()
}

// PushNodeScope installs the node scope for the rest of the evaluation.
func (c *Context) PushNodeScope(s *scope.Scope) func() {
	c.nodeScope = s
	c.scopeStack = append(c.scopeStack, s)
	return func() {
		c.scopeStack = c.scopeStack[:len(c.scopeStack)-1]
		c.nodeScope = nil
	}
}

// PushScope makes s the current scope; the returned function restores the
// previous state.
func (c *Context) PushScope(s *scope.Scope) func() {
	c.scopeStack = append(c.scopeStack, s)
	c.matchStack = append(c.matchStack, &matchCell{})
	return func() {
		c.scopeStack = c.scopeStack[:len(c.scopeStack)-1]
		c.matchStack = c.matchStack[:len(c.matchStack)-1]
	}
}

// PushMatchScope opens a match-variable scope ($0..$n). If/unless/case and
// selector expressions each get one.
func (c *Context) PushMatchScope() func() {
	c.matchStack = append(c.matchStack, &matchCell{})
	return func() {
		c.matchStack = c.matchStack[:len(c.matchStack)-1]
	}
}

// SetMatches stores regex capture groups in the innermost match scope.
func (c *Context) SetMatches(captures []string) {
	cell := c.matchStack[len(c.matchStack)-1]
	cell.captures = make([]values.Value, len(captures))
	for i, s := range captures {
		cell.captures[i] = values.String(s)
	}
}

// MatchVar returns $<index>, walking match scopes innermost first.
func (c *Context) MatchVar(index int) values.Value {
	for i := len(c.matchStack) - 1; i >= 0; i-- {
		if caps := c.matchStack[i].captures; caps != nil {
			if index >= len(caps) {
				return values.Undef{}
			}
			return caps[index]
		}
	}
	return values.Undef{}
}

// AddNamedScope registers a class scope so qualified variable lookups
// ($apt::source) can find it.
func (c *Context) AddNamedScope(name string, s *scope.Scope) {
	c.scopes[strings.ToLower(name)] = s
}

// FindNamedScope returns a registered class scope, or nil.
func (c *Context) FindNamedScope(name string) *scope.Scope {
	return c.scopes[strings.ToLower(name)]
}

// Lookup resolves a variable name: unqualified names use the current scope
// chain, ::-anchored and ns::var names resolve through the named scopes.
// The second result is false when the variable is nowhere assigned; warn
// receives a diagnostic message for lookups into undeclared classes.
func (c *Context) Lookup(name string, warn func(string)) (values.Value, bool) {
	idx := strings.LastIndex(name, "::")
	if idx < 0 {
		if v := c.CurrentScope().Get(name); v != nil {
			return v.Value, true
		}
		return nil, false
	}

	ns := name[:idx]
	variable := name[idx+2:]
	ns = strings.TrimPrefix(ns, "::")

	if ns == "" {
		if v := c.TopScope().Get(variable); v != nil {
			return v.Value, true
		}
		return nil, false
	}

	if s := c.FindNamedScope(ns); s != nil {
		if v := s.Get(variable); v != nil {
			return v.Value, true
		}
		return nil, false
	}

	if warn != nil && c.Catalog != nil {
		if len(c.Catalog.FindClass(ns)) == 0 {
			warn("could not look up variable $" + name + " because class '" + ns + "' is not defined")
		} else if !c.Catalog.ClassDeclared(ns) {
			warn("could not look up variable $" + name + " because class '" + ns + "' has not been declared")
		}
	}
	return nil, false
}
