// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package ast

// Walk calls fn for node and then, if fn returns true, for each of its
// children in source order. The definition scanner and other pre-passes are
// built on it.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	walkChildren(node, fn)
}

func walkAll(exprs []Expression, fn func(Node) bool) {
	for _, e := range exprs {
		Walk(e, fn)
	}
}

func walkParameters(params []Parameter, fn func(Node) bool) {
	for _, p := range params {
		if p.Type != nil {
			Walk(p.Type, fn)
		}
		if p.Default != nil {
			Walk(p.Default, fn)
		}
	}
}

func walkLambda(l *Lambda, fn func(Node) bool) {
	if l == nil {
		return
	}
	walkParameters(l.Parameters, fn)
	walkAll(l.Body, fn)
}

func walkAttributes(attrs []AttributeExpr, fn func(Node) bool) {
	for _, a := range attrs {
		Walk(a.Value, fn)
	}
}

func walkChildren(node Node, fn func(Node) bool) {
	switch n := node.(type) {
	case *ArrayExpr:
		walkAll(n.Elements, fn)
	case *HashExpr:
		for _, pair := range n.Entries {
			Walk(pair.Key, fn)
			Walk(pair.Value, fn)
		}
	case *UnaryExpr:
		Walk(n.Operand, fn)
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *ParenExpr:
		Walk(n.Inner, fn)
	case *AccessExpr:
		Walk(n.Target, fn)
		walkAll(n.Args, fn)
	case *MethodCallExpr:
		Walk(n.Target, fn)
		walkAll(n.Args, fn)
		walkLambda(n.Lambda, fn)
	case *SelectorExpr:
		Walk(n.Target, fn)
		for _, c := range n.Cases {
			Walk(c.Selector, fn)
			Walk(c.Result, fn)
		}
	case *FunctionCallExpr:
		walkAll(n.Args, fn)
		walkLambda(n.Lambda, fn)
	case *IfExpr:
		Walk(n.Condition, fn)
		walkAll(n.Body, fn)
		for _, e := range n.Elsifs {
			Walk(e.Condition, fn)
			walkAll(e.Body, fn)
		}
		if n.Else != nil {
			walkAll(n.Else.Body, fn)
		}
	case *UnlessExpr:
		Walk(n.Condition, fn)
		walkAll(n.Body, fn)
		if n.Else != nil {
			walkAll(n.Else.Body, fn)
		}
	case *CaseExpr:
		Walk(n.Subject, fn)
		for _, p := range n.Propositions {
			walkAll(p.Options, fn)
			walkAll(p.Body, fn)
		}
	case *ResourceExpr:
		Walk(n.Type, fn)
		for _, b := range n.Bodies {
			Walk(b.Title, fn)
			walkAttributes(b.Attributes, fn)
		}
	case *ResourceDefaultsExpr:
		walkAttributes(n.Attributes, fn)
	case *ResourceOverrideExpr:
		Walk(n.Reference, fn)
		walkAttributes(n.Attributes, fn)
	case *ClassDefinitionExpr:
		walkParameters(n.Parameters, fn)
		walkAll(n.Body, fn)
	case *DefinedTypeExpr:
		walkParameters(n.Parameters, fn)
		walkAll(n.Body, fn)
	case *NodeDefinitionExpr:
		walkAll(n.Body, fn)
	case *CollectionExpr:
		if n.Query != nil {
			Walk(n.Query, fn)
		}
	case *BinaryQuery:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *AttributeQuery:
		Walk(n.Value, fn)
	}
}
