// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package catalog implements the single writable store of a compilation:
// declared resources, the class/defined type/node definition registries,
// deferred overrides, and the relationship graph. Every mutation performed
// during evaluation goes through the Catalog.
package catalog

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xlab/treeprint"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/values"
)

// ClassDefinition is one registered `class` expression. A class may be
// defined in several places; all definitions evaluate when it is declared.
type ClassDefinition struct {
	Name   string // fully qualified, lowercased
	Parent string // inherited class name, or ""
	Expr   *ast.ClassDefinitionExpr
	File   string
	Source string // manifest text, for diagnostics raised during evaluation
}

// DefinedTypeDefinition is a registered `define` expression.
type DefinedTypeDefinition struct {
	Name   string
	Expr   *ast.DefinedTypeExpr
	File   string
	Source string
}

// NodeDefinition is a registered `node` expression.
type NodeDefinition struct {
	Expr   *ast.NodeDefinitionExpr
	File   string
	Source string
}

// OverrideAttribute is one attribute of a queued resource override.
type OverrideAttribute struct {
	Name   string
	Value  values.Value
	Append bool
	Rng    diags.SourceRange
}

// Override is a set of attribute changes targeted at a resource reference.
// Overrides against resources that do not exist yet are queued and applied
// when the resource appears (or rejected at finalization).
type Override struct {
	Ref        values.ResourceType
	Attributes []OverrideAttribute
	Rng        diags.SourceRange

	// FromParentScope allows re-setting attributes, which is otherwise an
	// error; it is set for overrides evaluated inside a class that inherits
	// from the class that declared the resource.
	FromParentScope bool
}

// RelationshipKind is the direction-resolved kind of a dependency edge.
type RelationshipKind int

const (
	// RelationshipBefore orders source before target.
	RelationshipBefore RelationshipKind = iota

	// RelationshipNotify orders source before target and signals target on
	// change.
	RelationshipNotify
)

func (k RelationshipKind) String() string {
	if k == RelationshipNotify {
		return "notify"
	}
	return "before"
}

// Edge is a resolved relationship between two resources in the catalog.
type Edge struct {
	Source *Resource
	Target *Resource
	Kind   RelationshipKind
}

// Catalog owns everything a compilation produces.
type Catalog struct {
	// ID uniquely identifies this compilation's output.
	ID string

	resources []*Resource
	byKey     map[string]*Resource

	classes      map[string][]*ClassDefinition
	definedTypes map[string]*DefinedTypeDefinition

	nodes        []*NodeDefinition
	namedNodes   map[string]*NodeDefinition
	regexNodes   []regexNode
	defaultNode  *NodeDefinition
	nodeDefRange map[*NodeDefinition]diags.SourceRange

	declaredClasses map[string]bool

	pendingOverrides map[string][]*Override

	edges   []Edge
	edgeSet map[[2]*Resource]bool
}

type regexNode struct {
	pattern *values.Regexp
	def     *NodeDefinition
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		ID:               uuid.NewString(),
		byKey:            make(map[string]*Resource),
		classes:          make(map[string][]*ClassDefinition),
		definedTypes:     make(map[string]*DefinedTypeDefinition),
		namedNodes:       make(map[string]*NodeDefinition),
		nodeDefRange:     make(map[*NodeDefinition]diags.SourceRange),
		declaredClasses:  make(map[string]bool),
		pendingOverrides: make(map[string][]*Override),
		edgeSet:          make(map[[2]*Resource]bool),
	}
}

// Resources returns the resources in declaration order.
func (c *Catalog) Resources() []*Resource {
	return c.resources
}

// Edges returns the resolved relationship edges.
func (c *Catalog) Edges() []Edge {
	return c.edges
}

// Find returns the resource with the given reference, or nil.
func (c *Catalog) Find(ref values.ResourceType) *Resource {
	if !ref.FullyQualified() {
		return nil
	}
	return c.byKey[resourceKey(ref)]
}

// Add declares a new resource. Declaring a second resource with the same
// (lowercased type, title) key is an error naming the first declaration.
func (c *Catalog) Add(ref values.ResourceType, declRange diags.SourceRange, attributes *Attributes, status Status, container *Resource) (*Resource, error) {
	if !ref.FullyQualified() {
		return nil, fmt.Errorf("resource reference %s is not fully qualified", ref)
	}
	if existing := c.byKey[resourceKey(ref)]; existing != nil {
		return nil, fmt.Errorf("resource %s was previously declared at %s", existing.Ref, existing.DeclRange)
	}
	if attributes == nil {
		attributes = NewAttributes(nil)
	}
	r := &Resource{
		Ref:        ref,
		DeclRange:  declRange,
		Container:  container,
		Status:     status,
		attributes: attributes,
	}
	c.byKey[r.Key()] = r
	c.resources = append(c.resources, r)

	if !r.IsVirtual() {
		if err := c.applyPendingOverrides(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Realize turns a virtual or exported resource into a real one and applies
// any overrides queued against it. Realizing a real resource is a no-op.
func (c *Catalog) Realize(r *Resource) error {
	if !r.IsVirtual() {
		return nil
	}
	r.Status = StatusRealized
	return c.applyPendingOverrides(r)
}

// DefineClass registers one class definition, validating that the declared
// parent is consistent with every earlier definition of the same class.
func (c *Catalog) DefineClass(def *ClassDefinition) error {
	name := strings.ToLower(def.Name)
	if def.Parent != "" {
		for _, existing := range c.classes[name] {
			if existing.Parent == "" {
				continue
			}
			if !strings.EqualFold(existing.Parent, def.Parent) {
				return fmt.Errorf(
					"class '%s' cannot inherit from '%s' because the class already inherits from '%s' at %s:%d",
					def.Name, def.Parent, existing.Parent, existing.File, existing.Expr.Rng.Start.Line)
			}
		}
	}
	c.classes[name] = append(c.classes[name], def)
	return nil
}

// FindClass returns the definitions of a class, or nil when undefined.
func (c *Catalog) FindClass(name string) []*ClassDefinition {
	return c.classes[strings.ToLower(name)]
}

// MarkClassDeclared records that the class body has been evaluated; a class
// evaluates at most once.
func (c *Catalog) MarkClassDeclared(name string) {
	c.declaredClasses[strings.ToLower(name)] = true
}

// ClassDeclared reports whether the class body has been evaluated.
func (c *Catalog) ClassDeclared(name string) bool {
	return c.declaredClasses[strings.ToLower(name)]
}

// DeclaredClasses returns the names of all declared classes.
func (c *Catalog) DeclaredClasses() []string {
	names := make([]string, 0, len(c.declaredClasses))
	for name := range c.declaredClasses {
		names = append(names, name)
	}
	return names
}

// DefineType registers a defined type. Redefinition is an error.
func (c *Catalog) DefineType(def *DefinedTypeDefinition) error {
	name := strings.ToLower(def.Name)
	if existing, ok := c.definedTypes[name]; ok {
		return fmt.Errorf("defined type '%s' was previously defined at %s:%d",
			existing.Name, existing.File, existing.Expr.Rng.Start.Line)
	}
	c.definedTypes[name] = def
	return nil
}

// FindDefinedType returns the defined type registration, or nil.
func (c *Catalog) FindDefinedType(name string) *DefinedTypeDefinition {
	return c.definedTypes[strings.ToLower(name)]
}

// DefineNode registers a node definition under each of its names,
// rejecting duplicate names, patterns and default definitions.
func (c *Catalog) DefineNode(def *NodeDefinition) error {
	c.nodes = append(c.nodes, def)
	c.nodeDefRange[def] = def.Expr.Rng

	for _, hostname := range def.Expr.Hostnames {
		switch hostname.Kind {
		case ast.HostnameDefault:
			if c.defaultNode != nil {
				return fmt.Errorf("a default node was previously defined at %s", c.nodeDefRange[c.defaultNode])
			}
			c.defaultNode = def
		case ast.HostnameRegex:
			for _, existing := range c.regexNodes {
				if existing.pattern.Pattern == hostname.Value {
					return fmt.Errorf("node /%s/ was previously defined at %s", hostname.Value, c.nodeDefRange[existing.def])
				}
			}
			pattern, err := values.NewRegexp(hostname.Value)
			if err != nil {
				return err
			}
			c.regexNodes = append(c.regexNodes, regexNode{pattern: pattern, def: def})
		default:
			name := strings.ToLower(hostname.Value)
			if existing, ok := c.namedNodes[name]; ok {
				return fmt.Errorf("node '%s' was previously defined at %s", hostname.Value, c.nodeDefRange[existing])
			}
			c.namedNodes[name] = def
		}
	}
	return nil
}

// HasNodes reports whether any node definition was registered.
func (c *Catalog) HasNodes() bool {
	return len(c.nodes) > 0
}

// MatchNode finds the node definition for a node with the given candidate
// names, most specific first. The names are tried in order; for each name a
// literal match wins over a regex match. When nothing matches, the default
// definition is used. The returned string is
// the matched display name.
func (c *Catalog) MatchNode(names []string) (*NodeDefinition, string, error) {
	for _, name := range names {
		if def, ok := c.namedNodes[strings.ToLower(name)]; ok {
			return def, strings.ToLower(name), nil
		}
		for _, rn := range c.regexNodes {
			if rn.pattern.Match(name) != nil {
				return rn.def, "/" + rn.pattern.Pattern + "/", nil
			}
		}
	}
	if c.defaultNode != nil {
		return c.defaultNode, "default", nil
	}
	return nil, "", fmt.Errorf("could not find a default node or a node with the following names: %s", strings.Join(names, ", "))
}

// QueueOverride applies an override to its target if the target exists, and
// queues it otherwise. Overrides of unrealized virtual resources stay queued
// until the resource is realized.
func (c *Catalog) QueueOverride(o *Override) error {
	key := resourceKey(o.Ref)
	if r := c.byKey[key]; r != nil && !r.IsVirtual() {
		return c.applyOverride(r, o)
	}
	c.pendingOverrides[key] = append(c.pendingOverrides[key], o)
	return nil
}

func (c *Catalog) applyPendingOverrides(r *Resource) error {
	key := r.Key()
	pending := c.pendingOverrides[key]
	delete(c.pendingOverrides, key)
	for _, o := range pending {
		if err := c.applyOverride(r, o); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) applyOverride(r *Resource, o *Override) error {
	attrs := r.Attributes()
	for _, attr := range o.Attributes {
		if attr.Append {
			if !o.FromParentScope && attrs.Get(attr.Name) != nil {
				return fmt.Errorf("attribute '%s' has already been set for resource %s and cannot be appended to", attr.Name, r.Ref)
			}
			if err := attrs.Append(attr.Name, attr.Value, false); err != nil {
				return err
			}
			continue
		}
		if !o.FromParentScope && attrs.Get(attr.Name) != nil {
			if values.IsUndef(attr.Value) {
				return fmt.Errorf("cannot remove attribute '%s' from resource %s", attr.Name, r.Ref)
			}
			return fmt.Errorf("attribute '%s' has already been set for resource %s", attr.Name, r.Ref)
		}
		attrs.Set(attr.Name, attr.Value)
	}
	return nil
}

// AddEdge records a dependency edge, ignoring exact duplicates.
func (c *Catalog) AddEdge(source, target *Resource, kind RelationshipKind) {
	key := [2]*Resource{source, target}
	if c.edgeSet[key] {
		return
	}
	c.edgeSet[key] = true
	c.edges = append(c.edges, Edge{Source: source, Target: target, Kind: kind})
}

// TreeString renders the catalog's resources and edges for human eyes.
func (c *Catalog) TreeString() string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("catalog %s", c.ID))
	for _, r := range c.resources {
		node := tree.AddBranch(r.Ref.String())
		r.Attributes().Each(func(name string, value values.Value) bool {
			node.AddNode(fmt.Sprintf("%s => %s", name, value))
			return true
		})
		for _, e := range c.edges {
			if e.Source == r {
				node.AddNode(fmt.Sprintf("%s -> %s", e.Kind, e.Target.Ref))
			}
		}
	}
	return tree.String()
}
