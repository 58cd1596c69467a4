// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"strings"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/scope"
	"github.com/nomoslang/nomos/internal/values"
)

// evalResource declares the resources of a resource expression and returns
// the array of their references.
func (e *Evaluator) evalResource(n *ast.ResourceExpr) values.Value {
	typeName, isClass := e.resourceTypeName(n)
	if isClass && n.Status != ast.StatusReal {
		e.evalErrorf(n.Rng, "classes cannot be virtual or exported")
	}
	isDefinedType := !isClass && e.ctx.Catalog.FindDefinedType(typeName) != nil

	defaultBody := e.findDefaultBody(n)
	var defaults *catalog.Attributes
	if defaultBody != nil {
		defaults = e.buildAttributes(e.evalBodyAttributes(defaultBody), nil)
	}

	var refs []values.Value
	for i := range n.Bodies {
		body := &n.Bodies[i]
		if body == defaultBody {
			continue
		}

		titleValue := e.eval(body.Title)
		titles := e.resourceTitles(body, titleValue)

		// Attribute values evaluate once per body; each title gets its own
		// collection over the shared values.
		evaluated := e.evalBodyAttributes(body)

		for _, title := range titles {
			attrs := e.buildAttributes(evaluated, defaults)
			e.applyScopeDefaults(typeName, attrs)

			ref := values.ResourceType{Name: typeName, Title: title}
			switch {
			case isClass:
				e.declareClassResource(title, attrs, body.Rng)
				ref = values.ResourceType{Name: "class", Title: strings.ToLower(title)}
			case isDefinedType:
				e.declareDefinedType(typeName, title, attrs, body.Rng, n.Status)
			default:
				status := catalog.StatusReal
				switch n.Status {
				case ast.StatusVirtual:
					status = catalog.StatusVirtual
				case ast.StatusExported:
					status = catalog.StatusExported
				}
				if _, err := e.ctx.Catalog.Add(ref, e.rangeIn(body.Rng), attrs, status, e.containerResource()); err != nil {
					e.evalErrorf(body.Rng, "%s", err)
				}
			}
			refs = append(refs, ref)
		}
	}
	return &values.Array{Elements: refs}
}

// resourceTypeName evaluates the type part of a resource expression to a
// lowercased type name.
func (e *Evaluator) resourceTypeName(n *ast.ResourceExpr) (string, bool) {
	typeValue := e.eval(n.Type)
	switch v := values.Deref(typeValue).(type) {
	case values.String:
		name := strings.ToLower(string(v))
		return name, name == "class"
	case values.ResourceType:
		if v.Title == "" && v.Name != "" {
			return v.Name, v.IsClass()
		}
	}
	e.evalErrorf(n.Type.Range(), "expected %s or qualified %s for resource type but found %s",
		values.NewStringType().TypeName(), values.ResourceType{}.TypeName(), values.TypeOf(typeValue))
	return "", false
}

// resourceTitles flattens a body's title expression into strings.
func (e *Evaluator) resourceTitles(body *ast.ResourceBody, titleValue values.Value) []string {
	collect := func(v values.Value) string {
		s, ok := values.Deref(v).(values.String)
		if !ok {
			e.evalErrorf(body.Title.Range(), "expected %s or %s for resource title",
				values.NewStringType().TypeName(), values.NewArrayType(values.NewStringType()))
		}
		if s == "" {
			e.evalErrorf(body.Title.Range(), "resource title cannot be empty")
		}
		return string(s)
	}

	switch v := values.Deref(titleValue).(type) {
	case *values.Array:
		titles := make([]string, len(v.Elements))
		for i, element := range v.Elements {
			titles[i] = collect(element)
		}
		return titles
	default:
		return []string{collect(titleValue)}
	}
}

// findDefaultBody locates the body titled `default`, which supplies
// attribute defaults for the expression's other bodies.
func (e *Evaluator) findDefaultBody(n *ast.ResourceExpr) *ast.ResourceBody {
	var found *ast.ResourceBody
	for i := range n.Bodies {
		if _, ok := n.Bodies[i].Title.(*ast.DefaultExpr); !ok {
			continue
		}
		if found != nil {
			e.evalErrorf(n.Bodies[i].Rng, "only one default body is supported in a resource expression")
		}
		found = &n.Bodies[i]
	}
	return found
}

type evaluatedAttribute struct {
	name      string
	nameRange diags.SourceRange
	appendOp  bool
	value     values.Value
}

// evalBodyAttributes evaluates a resource body's attribute values, checking
// for duplicates within the body.
func (e *Evaluator) evalBodyAttributes(body *ast.ResourceBody) []evaluatedAttribute {
	var evaluated []evaluatedAttribute
	seen := map[string]bool{}
	for i := range body.Attributes {
		attr := &body.Attributes[i]
		if seen[attr.Name] {
			e.evalErrorf(attr.NameRange, "attribute '%s' already exists in this resource body", attr.Name)
		}
		seen[attr.Name] = true
		evaluated = append(evaluated, evaluatedAttribute{
			name:      attr.Name,
			nameRange: attr.NameRange,
			appendOp:  attr.Op == ast.AttrAppend,
			value:     e.evalAttributeValue(attr),
		})
	}
	return evaluated
}

// buildAttributes materializes evaluated attributes into a collection with
// the default body's attributes as parent.
func (e *Evaluator) buildAttributes(evaluated []evaluatedAttribute, defaults *catalog.Attributes) *catalog.Attributes {
	attrs := catalog.NewAttributes(defaults)
	for _, attr := range evaluated {
		if attr.appendOp {
			if err := attrs.Append(attr.name, attr.value, false); err != nil {
				e.evalErrorf(attr.nameRange, "%s", err)
			}
			continue
		}
		attrs.Set(attr.name, attr.value)
	}
	return attrs
}

// applyScopeDefaults fills in attributes from resource defaults visible in
// the current scope chain.
func (e *Evaluator) applyScopeDefaults(typeName string, attrs *catalog.Attributes) {
	for _, def := range e.ctx.CurrentScope().DefaultsFor(typeName) {
		if attrs.Get(def.Name) == nil {
			attrs.Set(def.Name, def.Value)
		}
	}
}

var (
	metaStringArray  = values.NewArrayType(values.NewStringType())
	metaRelationship = values.NewArrayType(values.VariantType{Types: []values.Type{values.NewStringType(), values.CatalogEntryType{}}})
	metaLoglevel     = values.EnumType{Values: []string{"debug", "info", "notice", "warning", "err", "alert", "emerg", "crit", "verbose"}}
	metaAudit        = values.VariantType{Types: []values.Type{values.NewStringType(), values.NewArrayType(values.NewStringType())}}
)

// evalAttributeValue evaluates one attribute value and applies the
// metaparameter typing rules: relationship and tagging parameters coerce to
// arrays and every metaparameter is type-checked.
func (e *Evaluator) evalAttributeValue(attr *ast.AttributeExpr) values.Value {
	value := values.Deref(e.eval(attr.Value))

	var expected values.Type
	converted := false
	switch attr.Name {
	case "alias", "tag":
		expected = metaStringArray
		_, isArray := value.(*values.Array)
		converted = !isArray
		value = values.ToArray(value, false)
	case "before", "notify", "require", "subscribe":
		expected = metaRelationship
		_, isArray := value.(*values.Array)
		converted = !isArray
		value = values.ToArray(value, false)
	case "audit":
		expected = metaAudit
	case "loglevel":
		expected = metaLoglevel
	case "noop":
		expected = values.BooleanType{}
	case "schedule", "stage":
		expected = values.NewStringType()
	default:
		return value
	}

	if !expected.IsInstance(value) {
		reported := value
		if converted {
			if arr := value.(*values.Array); len(arr.Elements) > 0 {
				reported = arr.Elements[0]
			}
		}
		e.evalErrorf(attr.Value.Range(), "expected %s for attribute '%s' but found %s",
			expected, attr.Name, values.TypeOf(reported))
	}
	return value
}

// containerResource returns the class/node/defined type resource whose body
// is being evaluated, or nil at top level.
func (e *Evaluator) containerResource() *catalog.Resource {
	return e.ctx.CurrentScope().Resource()
}

// rangeIn rebinds a range to this evaluator's file. Ranges flowing through
// class bodies already carry the right file.
func (e *Evaluator) rangeIn(rng diags.SourceRange) diags.SourceRange {
	if rng.Filename == "" {
		rng.Filename = e.program.Filename
	}
	return rng
}

// declareClassResource declares class { 'title': ... }.
func (e *Evaluator) declareClassResource(title string, attrs *catalog.Attributes, rng diags.SourceRange) *catalog.Resource {
	name := strings.ToLower(title)
	if name == "" {
		e.evalErrorf(rng, "cannot declare a class with an unspecified title")
	}
	ref := values.ResourceType{Name: "class", Title: name}
	if existing := e.ctx.Catalog.Find(ref); existing != nil {
		e.evalErrorf(rng, "class '%s' was previously declared at %s", name, existing.DeclRange)
	}
	return e.declareClass(name, attrs, rng)
}

// DeclareClass declares a class by name if it is not already declared; the
// include/require/contain functions and class parent resolution use it.
// Declaring an already declared class is a no-op.
func (e *Evaluator) DeclareClass(name string, rng diags.SourceRange) *catalog.Resource {
	name = strings.ToLower(strings.TrimPrefix(name, "::"))
	if name == "" {
		e.evalErrorf(rng, "cannot include a class with an unspecified title")
	}
	ref := values.ResourceType{Name: "class", Title: name}
	if existing := e.ctx.Catalog.Find(ref); existing != nil {
		return existing
	}
	return e.declareClass(name, nil, rng)
}

// declareClass adds the Class[name] resource and evaluates every
// registered definition body exactly once.
func (e *Evaluator) declareClass(name string, attrs *catalog.Attributes, rng diags.SourceRange) *catalog.Resource {
	definitions := e.ctx.Catalog.FindClass(name)
	if len(definitions) == 0 {
		e.evalErrorf(rng, "cannot declare class '%s' because it has not been defined", name)
	}

	ref := values.ResourceType{Name: "class", Title: name}
	resource, err := e.ctx.Catalog.Add(ref, e.rangeIn(rng), attrs, catalog.StatusReal, e.containerResource())
	if err != nil {
		e.evalErrorf(rng, "%s", err)
	}

	for _, def := range definitions {
		e.evaluateClassBody(def, resource, rng)
	}
	e.ctx.Catalog.MarkClassDeclared(name)
	return resource
}

// evaluateClassBody runs one class definition body in a fresh class scope.
func (e *Evaluator) evaluateClassBody(def *catalog.ClassDefinition, resource *catalog.Resource, rng diags.SourceRange) {
	parentScope := e.ctx.NodeOrTop()
	if def.Parent != "" {
		parentRef := values.ResourceType{Name: "class", Title: def.Parent}
		if e.ctx.Catalog.Find(parentRef) == nil {
			e.DeclareClass(def.Parent, rng)
		}
		if s := e.ctx.FindNamedScope(def.Parent); s != nil {
			parentScope = s
		}
	}

	classScope := scope.NewChild(parentScope, resource)
	e.ctx.AddNamedScope(def.Name, classScope)

	// The body evaluates against the defining manifest so diagnostics point
	// into the right file.
	bodyEval := New(e.ctx, &ast.Program{Filename: def.File, Source: def.Source})
	done := e.ctx.PushScope(classScope)
	defer done()

	bodyEval.bindResourceParameters(def.Expr.Parameters, resource, classScope, true)
	bodyEval.evalBlock(def.Expr.Body)
}

// declareDefinedType declares one instance of a defined type and evaluates
// its body with $title and $name bound.
func (e *Evaluator) declareDefinedType(typeName, title string, attrs *catalog.Attributes, rng diags.SourceRange, status ast.ResourceStatus) *catalog.Resource {
	def := e.ctx.Catalog.FindDefinedType(typeName)
	if def == nil {
		e.evalErrorf(rng, "cannot declare defined type %s because it has not been defined", typeName)
	}

	resourceStatus := catalog.StatusReal
	switch status {
	case ast.StatusVirtual:
		resourceStatus = catalog.StatusVirtual
	case ast.StatusExported:
		resourceStatus = catalog.StatusExported
	}

	ref := values.ResourceType{Name: typeName, Title: title}
	resource, err := e.ctx.Catalog.Add(ref, e.rangeIn(rng), attrs, resourceStatus, e.containerResource())
	if err != nil {
		e.evalErrorf(rng, "%s", err)
	}

	instanceScope := scope.NewChild(e.ctx.NodeOrTop(), resource)
	bodyEval := New(e.ctx, &ast.Program{Filename: def.File, Source: def.Source})
	done := e.ctx.PushScope(instanceScope)
	defer done()

	bodyEval.bindResourceParameters(def.Expr.Parameters, resource, instanceScope, false)
	bodyEval.evalBlock(def.Expr.Body)
	return resource
}

// EvaluateNode declares the Node resource for the matched node definition
// and evaluates its body in the node scope.
func (e *Evaluator) EvaluateNode(def *catalog.NodeDefinition, matchedName string) {
	ref := values.ResourceType{Name: "node", Title: matchedName}
	resource, err := e.ctx.Catalog.Add(ref, def.Expr.Rng, nil, catalog.StatusReal, nil)
	if err != nil {
		e.evalErrorf(def.Expr.Rng, "%s", err)
	}

	nodeScope := scope.NewChild(e.ctx.TopScope(), resource)
	popNode := e.ctx.PushNodeScope(nodeScope)
	defer popNode()

	bodyEval := New(e.ctx, &ast.Program{Filename: def.File, Source: def.Source})
	bodyEval.evalBlock(def.Expr.Body)
}

// evalResourceDefaults installs Type { attrs } defaults in the current
// scope.
func (e *Evaluator) evalResourceDefaults(n *ast.ResourceDefaultsExpr) values.Value {
	typeName := strings.ToLower(n.Type.Name)
	if t, ok := values.TypeByName(n.Type.Name).(values.ResourceType); !ok || t.Name == "" {
		e.evalErrorf(n.Type.Rng, "expected a resource type but found %s", n.Type.Name)
	}

	var attrs []scope.DefaultAttribute
	for i := range n.Attributes {
		attr := &n.Attributes[i]
		value := e.evalAttributeValue(attr)
		if attr.Op == ast.AttrAppend {
			// Appending extends a default inherited from an outer scope.
			value = e.appendToDefault(typeName, attr, value)
		}
		attrs = append(attrs, scope.DefaultAttribute{Name: attr.Name, Value: value})
	}
	e.ctx.CurrentScope().SetDefaults(typeName, attrs)
	return values.ResourceType{Name: typeName}
}

func (e *Evaluator) appendToDefault(typeName string, attr *ast.AttributeExpr, value values.Value) values.Value {
	var existing values.Value
	for _, def := range e.ctx.CurrentScope().DefaultsFor(typeName) {
		if def.Name == attr.Name {
			existing = def.Value
		}
	}
	if existing == nil {
		return values.ToArray(value, false)
	}
	existingArray, ok := values.Deref(existing).(*values.Array)
	if !ok {
		e.evalErrorf(attr.NameRange, "attribute '%s' is not an array", attr.Name)
	}
	merged := make([]values.Value, 0, len(existingArray.Elements)+1)
	merged = append(merged, existingArray.Elements...)
	merged = append(merged, values.ToArray(value, false).Elements...)
	return &values.Array{Elements: merged}
}

// evalResourceOverride applies Ref { attrs } to one or more declared
// resources, queueing against resources that do not exist yet.
func (e *Evaluator) evalResourceOverride(n *ast.ResourceOverrideExpr) values.Value {
	reference := e.eval(n.Reference)

	var refs []values.ResourceType
	err := catalog.EachResourceRef(reference, func(ref values.ResourceType) error {
		if ref.IsClass() {
			e.evalErrorf(n.Reference.Range(), "cannot override attributes of a class resource")
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		e.evalErrorf(n.Reference.Range(), "%s", err)
	}

	for _, ref := range refs {
		override := &catalog.Override{
			Ref:             ref,
			Rng:             e.rangeIn(n.Rng),
			FromParentScope: e.overridesFromParentScope(ref),
		}
		for i := range n.Attributes {
			attr := &n.Attributes[i]
			override.Attributes = append(override.Attributes, catalog.OverrideAttribute{
				Name:   attr.Name,
				Value:  e.evalAttributeValue(attr),
				Append: attr.Op == ast.AttrAppend,
				Rng:    attr.Rng,
			})
		}
		if err := e.ctx.Catalog.QueueOverride(override); err != nil {
			e.evalErrorf(n.Rng, "%s", err)
		}
	}
	return reference
}

// overridesFromParentScope reports whether the current scope belongs to a
// class that inherits from the class containing the target resource, which
// permits re-setting already set attributes.
func (e *Evaluator) overridesFromParentScope(ref values.ResourceType) bool {
	target := e.ctx.Catalog.Find(ref)
	if target == nil || target.Container == nil || !target.Container.Ref.IsClass() {
		return false
	}
	containing := target.Container.Ref.Title

	current := e.containerResource()
	if current == nil || !current.Ref.IsClass() {
		return false
	}

	// Walk the inheritance chain of the current class.
	seen := map[string]bool{}
	name := current.Ref.Title
	for name != "" && !seen[name] {
		seen[name] = true
		parent := ""
		for _, def := range e.ctx.Catalog.FindClass(name) {
			if def.Parent != "" {
				parent = def.Parent
				break
			}
		}
		if parent == "" {
			return false
		}
		if strings.EqualFold(parent, containing) {
			return true
		}
		name = parent
	}
	return false
}

// evalEdge implements the relationship operators by appending to the
// corresponding relationship metaparameter of the left-hand resources.
func (e *Evaluator) evalEdge(n *ast.BinaryExpr, left, right values.Value) values.Value {
	var attrName string
	switch n.Op {
	case ast.OpInEdge:
		attrName = "before"
	case ast.OpInEdgeSub:
		attrName = "notify"
	case ast.OpOutEdge:
		attrName = "require"
	case ast.OpOutEdgeSub:
		attrName = "subscribe"
	}

	var targets []values.Value
	err := catalog.EachResourceRef(right, func(ref values.ResourceType) error {
		if e.ctx.Catalog.Find(ref) == nil {
			e.errorf(n.Right.Range(), diags.UnknownResource,
				"cannot create relationship: resource %s does not exist in the catalog", ref)
		}
		targets = append(targets, ref)
		return nil
	})
	if err != nil {
		e.evalErrorf(n.Right.Range(), "%s", err)
	}
	targetArray := &values.Array{Elements: targets}

	err = catalog.EachResourceRef(left, func(ref values.ResourceType) error {
		source := e.ctx.Catalog.Find(ref)
		if source == nil {
			e.errorf(n.Left.Range(), diags.UnknownResource,
				"cannot create relationship: resource %s does not exist in the catalog", ref)
		}
		return source.Attributes().Append(attrName, targetArray, true)
	})
	if err != nil {
		e.evalErrorf(n.Left.Range(), "%s", err)
	}
	return targetArray
}

// evalCollection realizes virtual resources matching a collector query and,
// for exported collectors, imports matching published resources.
func (e *Evaluator) evalCollection(n *ast.CollectionExpr) values.Value {
	typeName := strings.ToLower(n.Type.Name)
	if t, ok := values.TypeByName(n.Type.Name).(values.ResourceType); !ok || t.Name == "" {
		e.evalErrorf(n.Type.Rng, "expected a resource type for collection but found %s", n.Type.Name)
	}

	var collected []values.Value
	for _, r := range e.ctx.Catalog.Resources() {
		if !strings.EqualFold(r.Ref.Name, typeName) || !r.IsVirtual() {
			continue
		}
		if n.Exported != (r.Status == catalog.StatusExported) {
			continue
		}
		if n.Query != nil && !e.matchQuery(n.Query, r.Ref.Title, r.Attributes().Get) {
			continue
		}
		if err := e.ctx.Catalog.Realize(r); err != nil {
			e.evalErrorf(n.Rng, "%s", err)
		}
		collected = append(collected, r.Ref)
	}

	if n.Exported && e.ctx.Exported != nil {
		for _, imported := range e.ctx.Exported.Collect(typeName) {
			attrGet := func(name string) values.Value {
				for _, a := range imported.Attributes {
					if a.Name == name {
						return a.Value
					}
				}
				return nil
			}
			if n.Query != nil && !e.matchQuery(n.Query, imported.Ref.Title, attrGet) {
				continue
			}
			if e.ctx.Catalog.Find(imported.Ref) != nil {
				continue
			}
			attrs := catalog.NewAttributes(nil)
			for _, a := range imported.Attributes {
				attrs.Set(a.Name, a.Value)
			}
			if _, err := e.ctx.Catalog.Add(imported.Ref, e.rangeIn(n.Rng), attrs, catalog.StatusRealized, nil); err != nil {
				e.evalErrorf(n.Rng, "%s", err)
			}
			collected = append(collected, imported.Ref)
		}
	}
	return &values.Array{Elements: collected}
}

// matchQuery evaluates a collector query against a resource's title and
// attributes.
func (e *Evaluator) matchQuery(q ast.Query, title string, attr func(string) values.Value) bool {
	switch query := q.(type) {
	case *ast.BinaryQuery:
		left := e.matchQuery(query.Left, title, attr)
		if query.And {
			return left && e.matchQuery(query.Right, title, attr)
		}
		return left || e.matchQuery(query.Right, title, attr)
	case *ast.AttributeQuery:
		expected := e.eval(query.Value)
		var actual values.Value
		if query.Name == "title" {
			actual = values.String(title)
		} else {
			actual = attr(query.Name)
			if actual == nil {
				actual = values.Undef{}
			}
		}
		equal := values.Equals(actual, expected)
		if query.Op == ast.QueryNotEquals {
			return !equal
		}
		return equal
	}
	return false
}
