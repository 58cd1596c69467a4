// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package scope implements the variable binding chains of an evaluation:
// the top scope (backed by node facts), node and class scopes, and local
// scopes for lambdas, classes and defined types.
//
// Scopes are shared by reference up the parent chain and live for the
// duration of one compilation. Bindings hold immutable value snapshots.
package scope

import (
	"strings"

	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/facts"
	"github.com/nomoslang/nomos/internal/values"
)

// AssignedVariable records a variable binding and where it was assigned.
// Fact-derived bindings have an empty file.
type AssignedVariable struct {
	Value values.Value
	File  string
	Line  int
}

// DefaultAttribute is one attribute installed by a resource defaults
// expression (File { mode => ... }).
type DefaultAttribute struct {
	Name  string
	Value values.Value
}

// Scope is a node of the binding chain.
type Scope struct {
	parent   *Scope
	facts    facts.Provider
	resource *catalog.Resource

	variables map[string]*AssignedVariable

	// Resource defaults installed in this scope, keyed by lowercased type
	// name. Lookup walks the parent chain, nearest scope first.
	defaults map[string][]DefaultAttribute

	factsHash *values.Hash
}

// NewTop creates the top scope backed by a fact provider. resource is the
// "main" class resource, when a catalog is in play.
func NewTop(provider facts.Provider, resource *catalog.Resource) *Scope {
	return &Scope{
		facts:     provider,
		resource:  resource,
		variables: make(map[string]*AssignedVariable),
		defaults:  make(map[string][]DefaultAttribute),
	}
}

// NewChild creates a scope whose lookups fall back to parent. resource is
// the associated class/node/defined type resource, or nil.
func NewChild(parent *Scope, resource *catalog.Resource) *Scope {
	return &Scope{
		parent:    parent,
		resource:  resource,
		variables: make(map[string]*AssignedVariable),
		defaults:  make(map[string][]DefaultAttribute),
	}
}

// Parent returns the parent scope, nil at top.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Resource returns the associated resource, or nil.
func (s *Scope) Resource() *catalog.Resource {
	return s.resource
}

// Qualify resolves a relative name against the scope's resource: inside
// class apt, "source" qualifies to "apt::source". Leading :: anchors the
// name at top.
func (s *Scope) Qualify(name string) string {
	if strings.HasPrefix(name, "::") {
		return name[2:]
	}
	if s.resource == nil {
		return name
	}
	return s.resource.Ref.Title + "::" + name
}

// Set binds a variable in this scope. If the name is already bound here (or
// collides with a fact at top scope), the existing binding is returned and
// nothing changes; the caller reports the reassignment error.
func (s *Scope) Set(name string, value values.Value, file string, line int) *AssignedVariable {
	if existing, ok := s.variables[name]; ok {
		return existing
	}
	if s.facts != nil {
		if existing := s.Get(name); existing != nil {
			return existing
		}
	}
	s.variables[name] = &AssignedVariable{Value: value, File: file, Line: line}
	return nil
}

// Get looks up a variable in this scope and its ancestors. At top scope,
// unknown names fall back to the fact provider; fact values are memoized as
// bindings so later lookups are cheap.
func (s *Scope) Get(name string) *AssignedVariable {
	if v, ok := s.variables[name]; ok {
		return v
	}
	if s.parent != nil {
		return s.parent.Get(name)
	}
	if s.facts == nil {
		return nil
	}
	if name == "facts" {
		return &AssignedVariable{Value: s.FactsHash()}
	}
	value, ok := s.facts.Lookup(name)
	if !ok {
		return nil
	}
	v := &AssignedVariable{Value: value}
	s.variables[name] = v
	return v
}

// FactsHash returns the $facts hash, built lazily from the provider.
func (s *Scope) FactsHash() *values.Hash {
	if s.parent != nil {
		return s.parent.FactsHash()
	}
	if s.factsHash == nil {
		s.factsHash = values.NewHash()
		if s.facts != nil {
			for _, name := range s.facts.Names() {
				if value, ok := s.facts.Lookup(name); ok {
					s.factsHash.Set(values.String(name), value)
				}
			}
		}
	}
	return s.factsHash
}

// SetDefaults installs resource defaults for a type in this scope.
func (s *Scope) SetDefaults(typeName string, attrs []DefaultAttribute) {
	key := strings.ToLower(typeName)
	s.defaults[key] = append(s.defaults[key], attrs...)
}

// DefaultsFor collects the defaults visible for a type from the scope
// chain, outermost first so that inner scopes win when names repeat.
func (s *Scope) DefaultsFor(typeName string) []DefaultAttribute {
	key := strings.ToLower(typeName)
	var collected []DefaultAttribute
	if s.parent != nil {
		collected = s.parent.DefaultsFor(typeName)
	}
	return append(collected, s.defaults[key]...)
}

func (s *Scope) String() string {
	if s.resource == nil {
		return "Scope(top)"
	}
	return "Scope(" + s.resource.Ref.String() + ")"
}
