// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package scanner implements the definition pre-pass. Classes may be
// declared before the manifest that defines them is evaluated, so every
// class, defined type and node definition is registered with the catalog
// before any evaluation starts.
package scanner

import (
	"fmt"
	"strings"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/diags"
)

// Scan walks a parsed manifest and registers its definitions with the
// catalog, validating names, parameters and nesting. The first violation
// aborts the scan.
func Scan(cat *catalog.Catalog, program *ast.Program) diags.Diagnostics {
	s := &scanner{
		catalog: cat,
		program: program,
		scopes:  []string{"::"},
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(bailout); !ok {
					panic(r)
				}
			}
		}()
		for _, expr := range program.Body {
			s.scan(expr)
		}
	}()
	return s.diags
}

type bailout struct{}

type scanner struct {
	catalog *catalog.Catalog
	program *ast.Program

	// scopes tracks the class nesting for definition qualification. An
	// empty entry means the current construct cannot contain definitions.
	scopes []string

	diags diags.Diagnostics
}

func (s *scanner) fail(rng diags.SourceRange, format string, args ...interface{}) {
	s.diags = s.diags.Append(&diags.Diagnostic{
		Severity:   diags.Error,
		Kind:       diags.RedefinitionErr,
		Summary:    fmt.Sprintf(format, args...),
		Subject:    &rng,
		SourceLine: diags.SourceLine(s.program.Source, rng.Start),
	})
	panic(bailout{})
}

func (s *scanner) push(name string) {
	s.scopes = append(s.scopes, name)
}

func (s *scanner) pop() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *scanner) canDefine() bool {
	return s.scopes[len(s.scopes)-1] != ""
}

// qualify builds the fully qualified definition name from the class nesting.
func (s *scanner) qualify(name string) string {
	var parts []string
	for _, scope := range s.scopes[1:] {
		if scope != "" {
			parts = append(parts, scope)
		}
	}
	parts = append(parts, name)
	return strings.Join(parts, "::")
}

func (s *scanner) scanAll(exprs []ast.Expression) {
	for _, e := range exprs {
		s.scan(e)
	}
}

// scanNested scans child expressions in a position that cannot contain
// definitions (arguments, conditions, bodies of lambdas and the like).
func (s *scanner) scanNested(exprs ...ast.Expression) {
	s.push("")
	defer s.pop()
	s.scanAll(exprs)
}

func (s *scanner) scan(expr ast.Expression) {
	switch n := expr.(type) {
	case *ast.ClassDefinitionExpr:
		s.classDefinition(n)
	case *ast.DefinedTypeExpr:
		s.definedType(n)
	case *ast.NodeDefinitionExpr:
		s.nodeDefinition(n)

	case *ast.IfExpr:
		// Control flow keeps the class nesting: definitions are still
		// rejected inside, but their subexpressions must be scanned.
		s.scanNested(n.Condition)
		s.scanNested(n.Body...)
		for _, e := range n.Elsifs {
			s.scanNested(e.Condition)
			s.scanNested(e.Body...)
		}
		if n.Else != nil {
			s.scanNested(n.Else.Body...)
		}
	case *ast.UnlessExpr:
		s.scanNested(n.Condition)
		s.scanNested(n.Body...)
		if n.Else != nil {
			s.scanNested(n.Else.Body...)
		}
	case *ast.CaseExpr:
		s.scanNested(n.Subject)
		for _, prop := range n.Propositions {
			s.scanNested(prop.Options...)
			s.scanNested(prop.Body...)
		}

	default:
		// Everything else cannot introduce definitions directly; walk the
		// subtree with definition scope suppressed so that a stray nested
		// definition (inside a lambda, say) is still caught below when its
		// node is reached.
		s.push("")
		ast.Walk(expr, func(node ast.Node) bool {
			switch d := node.(type) {
			case *ast.ClassDefinitionExpr:
				s.fail(d.Rng, "classes can only be defined at top-level or inside a class")
			case *ast.DefinedTypeExpr:
				s.fail(d.Rng, "defined types can only be defined at top-level or inside a class")
			case *ast.NodeDefinitionExpr:
				s.fail(d.Rng, "node definitions can only be defined at top-level or inside a class")
			}
			return true
		})
		s.pop()
	}
}

func (s *scanner) validateName(isClass bool, name string, rng diags.SourceRange) string {
	what := "defined type"
	if isClass {
		what = "class"
	}
	if !s.canDefine() {
		s.fail(rng, "%ss can only be defined at top-level or inside a class", what)
	}
	if name == "" {
		s.fail(rng, "a %s cannot have an empty name", what)
	}
	if strings.HasPrefix(name, "::") {
		s.fail(rng, "'%s' is not a valid %s name", name, what)
	}

	qualified := strings.ToLower(s.qualify(name))
	if qualified == "main" || qualified == "settings" {
		s.fail(rng, "'%s' is the name of a built-in class and cannot be used", qualified)
	}

	if isClass {
		if existing := s.catalog.FindDefinedType(qualified); existing != nil {
			s.fail(rng, "'%s' was previously defined as a defined type at %s:%d",
				qualified, existing.File, existing.Expr.Rng.Start.Line)
		}
	} else {
		if definitions := s.catalog.FindClass(qualified); len(definitions) > 0 {
			first := definitions[0]
			s.fail(rng, "'%s' was previously defined as a class at %s:%d",
				qualified, first.File, first.Expr.Rng.Start.Line)
		}
	}
	return qualified
}

func (s *scanner) validateParameters(isClass bool, params []ast.Parameter) {
	what := "defined type"
	if isClass {
		what = "class"
	}
	for _, p := range params {
		if p.Name == "title" || p.Name == "name" {
			s.fail(p.NameRange, "parameter $%s is reserved and cannot be used", p.Name)
		}
		if p.Captures {
			s.fail(p.NameRange, "%s parameter $%s cannot \"captures rest\"", what, p.Name)
		}
		if catalog.IsMetaparameter(p.Name) {
			s.fail(p.NameRange, "parameter $%s is reserved for resource metaparameter '%s'", p.Name, p.Name)
		}
	}
}

func (s *scanner) scanParameters(params []ast.Parameter) {
	s.push("")
	defer s.pop()
	for _, p := range params {
		if p.Type != nil {
			s.scanAll([]ast.Expression{p.Type})
		}
		if p.Default != nil {
			s.scanAll([]ast.Expression{p.Default})
		}
	}
}

func (s *scanner) classDefinition(n *ast.ClassDefinitionExpr) {
	qualified := s.validateName(true, n.Name, n.NameRange)
	s.validateParameters(true, n.Parameters)

	def := &catalog.ClassDefinition{
		Name:   qualified,
		Parent: strings.ToLower(n.Parent),
		Expr:   n,
		File:   s.program.Filename,
		Source: s.program.Source,
	}
	if err := s.catalog.DefineClass(def); err != nil {
		rng := n.ParentRange
		if n.Parent == "" {
			rng = n.NameRange
		}
		s.fail(rng, "%s", err)
	}

	s.scanParameters(n.Parameters)

	// The body scans inside the class scope so nested definitions qualify.
	s.push(n.Name)
	defer s.pop()
	s.scanAll(n.Body)
}

func (s *scanner) definedType(n *ast.DefinedTypeExpr) {
	qualified := s.validateName(false, n.Name, n.NameRange)
	s.validateParameters(false, n.Parameters)

	def := &catalog.DefinedTypeDefinition{
		Name:   qualified,
		Expr:   n,
		File:   s.program.Filename,
		Source: s.program.Source,
	}
	if err := s.catalog.DefineType(def); err != nil {
		s.fail(n.NameRange, "%s", err)
	}

	s.scanParameters(n.Parameters)

	s.push("")
	defer s.pop()
	s.scanAll(n.Body)
}

func (s *scanner) nodeDefinition(n *ast.NodeDefinitionExpr) {
	if !s.canDefine() {
		s.fail(n.Rng, "node definitions can only be defined at top-level or inside a class")
	}
	def := &catalog.NodeDefinition{
		Expr:   n,
		File:   s.program.Filename,
		Source: s.program.Source,
	}
	if err := s.catalog.DefineNode(def); err != nil {
		s.fail(n.Rng, "%s", err)
	}

	s.push("")
	defer s.pop()
	s.scanAll(n.Body)
}
