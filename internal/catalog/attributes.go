// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"fmt"

	"github.com/nomoslang/nomos/internal/values"
)

// Attributes is an ordered attribute collection with an optional parent.
// A resource expression with a `default:` body shares the default body's
// attributes as the parent of every declared resource's own collection.
//
// Setting an attribute to undef locally masks an inherited value.
type Attributes struct {
	parent *Attributes
	order  []string
	byName map[string]values.Value
}

// NewAttributes returns an empty attribute collection inheriting from
// parent, which may be nil.
func NewAttributes(parent *Attributes) *Attributes {
	return &Attributes{parent: parent, byName: make(map[string]values.Value)}
}

// Get returns the value for name, consulting the parent when the attribute
// is not set locally. Attributes set to undef read as absent.
func (a *Attributes) Get(name string) values.Value {
	return a.get(name, true)
}

// GetLocal is Get without parent lookup.
func (a *Attributes) GetLocal(name string) values.Value {
	return a.get(name, false)
}

func (a *Attributes) get(name string, checkParent bool) values.Value {
	if v, ok := a.byName[name]; ok {
		if values.IsUndef(v) {
			return nil
		}
		return v
	}
	if checkParent && a.parent != nil {
		return a.parent.Get(name)
	}
	return nil
}

// Set stores the value for name.
func (a *Attributes) Set(name string, value values.Value) {
	if _, ok := a.byName[name]; !ok {
		a.order = append(a.order, name)
	}
	a.byName[name] = value
}

// Append appends value (flattened to its elements when it is an array) to
// the existing array attribute. A missing attribute becomes a fresh array.
// Appending to a non-array attribute is an error. With dedup set, elements
// equal to an existing element are skipped.
func (a *Attributes) Append(name string, value values.Value, dedup bool) error {
	incoming := values.ToArray(value, false)

	existing := a.Get(name)
	if existing == nil {
		a.Set(name, incoming)
		return nil
	}
	existingArray, ok := values.Deref(existing).(*values.Array)
	if !ok {
		return fmt.Errorf("attribute '%s' is not an array", name)
	}

	merged := make([]values.Value, len(existingArray.Elements), len(existingArray.Elements)+len(incoming.Elements))
	copy(merged, existingArray.Elements)
outer:
	for _, element := range incoming.Elements {
		if dedup {
			for _, have := range merged {
				if values.Equals(have, element) {
					continue outer
				}
			}
		}
		merged = append(merged, element)
	}
	a.Set(name, &values.Array{Elements: merged})
	return nil
}

// Each visits every visible attribute: local ones first in insertion order,
// then inherited ones not shadowed locally. Undef-masked attributes are
// skipped. The callback returns false to stop early.
func (a *Attributes) Each(fn func(name string, value values.Value) bool) {
	for _, name := range a.order {
		v := a.byName[name]
		if values.IsUndef(v) {
			continue
		}
		if !fn(name, v) {
			return
		}
	}
	if a.parent != nil {
		a.parent.Each(func(name string, value values.Value) bool {
			if _, shadowed := a.byName[name]; shadowed {
				return true
			}
			return fn(name, value)
		})
	}
}
