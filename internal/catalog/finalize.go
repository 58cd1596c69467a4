// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"fmt"
	"strings"

	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/values"
)

// Finalize completes the catalog after all evaluation:
//
//  1. remaining queued overrides against concrete resources are an error
//     (overrides of never-realized virtual resources are dropped with them);
//  2. unrealized virtual and exported resources are culled;
//  3. relationship metaparameters become edges and every edge endpoint is
//     validated;
//  4. the edge set is checked for cycles.
//
// A finalized catalog with error diagnostics must be discarded.
func (c *Catalog) Finalize() diags.Diagnostics {
	var ds diags.Diagnostics

	// Overrides still queued against resources that never appeared (or were
	// never realized as concrete resources) are errors.
	for key, pending := range c.pendingOverrides {
		r := c.byKey[key]
		if r != nil && r.IsVirtual() {
			// Dies with the culled resource below.
			continue
		}
		for _, o := range pending {
			rng := o.Rng
			ds = ds.Append(&diags.Diagnostic{
				Severity: diags.Error,
				Kind:     diags.UnknownResource,
				Summary:  fmt.Sprintf("resource %s does not exist in the catalog", o.Ref),
				Subject:  &rng,
			})
		}
	}

	// Cull virtual resources that were never realized.
	kept := c.resources[:0]
	for _, r := range c.resources {
		if r.IsVirtual() {
			delete(c.byKey, r.Key())
			continue
		}
		kept = append(kept, r)
	}
	c.resources = kept

	ds = ds.Append(c.populateEdges())
	if ds.HasErrors() {
		return ds
	}
	ds = ds.Append(c.detectCycles())
	return ds
}

var relationshipParameters = []struct {
	name     string
	kind     RelationshipKind
	reversed bool
}{
	{"before", RelationshipBefore, false},
	{"notify", RelationshipNotify, false},
	{"require", RelationshipBefore, true},
	{"subscribe", RelationshipNotify, true},
}

func (c *Catalog) populateEdges() diags.Diagnostics {
	var ds diags.Diagnostics
	for _, source := range c.resources {
		for _, param := range relationshipParameters {
			value := source.Attributes().Get(param.name)
			if value == nil {
				continue
			}
			err := EachResourceRef(value, func(ref values.ResourceType) error {
				target := c.Find(ref)
				if target == nil {
					return fmt.Errorf(
						"resource %s (declared at %s) cannot form a '%s' relationship with resource %s: the resource does not exist in the catalog",
						source.Ref, source.DeclRange, param.name, ref)
				}
				if target == source {
					return fmt.Errorf(
						"resource %s (declared at %s) cannot form a '%s' relationship with resource %s: the relationship is self-referencing",
						source.Ref, source.DeclRange, param.name, ref)
				}
				if param.reversed {
					c.AddEdge(target, source, param.kind)
				} else {
					c.AddEdge(source, target, param.kind)
				}
				return nil
			})
			if err != nil {
				rng := source.DeclRange
				ds = ds.Append(&diags.Diagnostic{
					Severity: diags.Error,
					Kind:     diags.UnknownResource,
					Summary:  err.Error(),
					Subject:  &rng,
				})
			}
		}
	}
	return ds
}

// EachResourceRef resolves a value to resource references: a reference
// string ("File[/tmp/x]"), a qualified resource or class type, or an array
// of those. fn is called once per reference.
func EachResourceRef(value values.Value, fn func(values.ResourceType) error) error {
	switch v := values.Deref(value).(type) {
	case values.String:
		ref, ok := values.ParseResourceRef(string(v))
		if !ok {
			return fmt.Errorf("expected a resource string but found \"%s\"", v)
		}
		return fn(ref)
	case values.ResourceType:
		if !v.FullyQualified() {
			return fmt.Errorf("expected a qualified resource reference but found %s", v)
		}
		return fn(v)
	case values.ClassType:
		if v.Title == "" {
			return fmt.Errorf("expected a qualified class reference but found %s", v)
		}
		return fn(values.ResourceType{Name: "class", Title: strings.ToLower(v.Title)})
	case *values.Array:
		for _, element := range v.Elements {
			if err := EachResourceRef(element, fn); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("expected %s, %s, or an array of them for a resource reference but found %s",
			values.StringType{}.TypeName(), values.ResourceType{}.TypeName(), values.TypeOf(value))
	}
}

// detectCycles topologically sorts the resources over the edge set with a
// depth-first search and reports every cycle it runs into.
func (c *Catalog) detectCycles() diags.Diagnostics {
	out := make(map[*Resource][]*Resource, len(c.resources))
	for _, e := range c.edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[*Resource]int, len(c.resources))
	var stack []*Resource
	var cycles []string

	var visit func(r *Resource)
	visit = func(r *Resource) {
		switch state[r] {
		case done:
			return
		case visiting:
			// Walk back up the stack to recover the cycle members.
			var parts []string
			for i := len(stack) - 1; i >= 0; i-- {
				parts = append([]string{fmt.Sprintf("%s declared at %s", stack[i].Ref, stack[i].DeclRange)}, parts...)
				if stack[i] == r {
					break
				}
			}
			parts = append(parts, r.Ref.String())
			cycles = append(cycles, strings.Join(parts, " => "))
			return
		}
		state[r] = visiting
		stack = append(stack, r)
		for _, next := range out[r] {
			visit(next)
		}
		stack = stack[:len(stack)-1]
		state[r] = done
	}
	for _, r := range c.resources {
		visit(r)
	}

	if len(cycles) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "found %d resource dependency cycle", len(cycles))
	if len(cycles) == 1 {
		b.WriteString(":")
	} else {
		b.WriteString("s:")
	}
	for i, cycle := range cycles {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, cycle)
	}
	return diags.Diagnostics{{
		Severity: diags.Error,
		Kind:     diags.CycleError,
		Summary:  b.String(),
	}}
}
