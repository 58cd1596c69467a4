// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package ast

import (
	"fmt"
	"strings"
)

// Print renders a program back to source form. The output is canonical
// rather than byte-identical: whitespace and comments are normalized, but
// re-parsing the result yields an equivalent tree.
func Print(p *Program) string {
	var pr printer
	pr.statements(p.Body, false)
	return pr.b.String()
}

// PrintExpr renders a single expression to canonical source form.
func PrintExpr(e Expression) string {
	var pr printer
	pr.expr(e)
	return pr.b.String()
}

type printer struct {
	b      strings.Builder
	indent int
}

func (p *printer) nl() {
	p.b.WriteByte('\n')
	for i := 0; i < p.indent; i++ {
		p.b.WriteString("  ")
	}
}

func (p *printer) statements(body []Expression, indented bool) {
	for i, e := range body {
		if i > 0 || indented {
			p.nl()
		}
		p.expr(e)
	}
}

func (p *printer) block(body []Expression) {
	p.b.WriteString("{")
	if len(body) == 0 {
		p.b.WriteString("}")
		return
	}
	p.indent++
	p.statements(body, true)
	p.indent--
	p.nl()
	p.b.WriteString("}")
}

func (p *printer) exprList(exprs []Expression) {
	for i, e := range exprs {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.expr(e)
	}
}

func (p *printer) parameters(params []Parameter) {
	for i, param := range params {
		if i > 0 {
			p.b.WriteString(", ")
		}
		if param.Type != nil {
			p.expr(param.Type)
			p.b.WriteByte(' ')
		}
		if param.Captures {
			p.b.WriteByte('*')
		}
		p.b.WriteByte('$')
		p.b.WriteString(param.Name)
		if param.Default != nil {
			p.b.WriteString(" = ")
			p.expr(param.Default)
		}
	}
}

func (p *printer) lambda(l *Lambda) {
	p.b.WriteString(" |")
	p.parameters(l.Parameters)
	p.b.WriteString("| ")
	p.block(l.Body)
}

func (p *printer) attributes(attrs []AttributeExpr) {
	p.indent++
	for _, a := range attrs {
		p.nl()
		fmt.Fprintf(&p.b, "%s %s ", a.Name, a.Op)
		p.expr(a.Value)
		p.b.WriteByte(',')
	}
	p.indent--
	p.nl()
}

func (p *printer) expr(e Expression) {
	switch n := e.(type) {
	case *UndefExpr:
		p.b.WriteString("undef")
	case *DefaultExpr:
		p.b.WriteString("default")
	case *BooleanExpr:
		fmt.Fprintf(&p.b, "%v", n.Value)
	case *NumberExpr:
		p.b.WriteString(n.Text)
	case *StringExpr:
		p.printString(n)
	case *RegexExpr:
		fmt.Fprintf(&p.b, "/%s/", n.Pattern)
	case *VariableExpr:
		fmt.Fprintf(&p.b, "$%s", n.Name)
	case *NameExpr:
		p.b.WriteString(n.Value)
	case *BareWordExpr:
		p.b.WriteString(n.Value)
	case *TypeExpr:
		p.b.WriteString(n.Name)
	case *ArrayExpr:
		p.b.WriteByte('[')
		p.exprList(n.Elements)
		p.b.WriteByte(']')
	case *HashExpr:
		p.b.WriteByte('{')
		for i, pair := range n.Entries {
			if i > 0 {
				p.b.WriteString(", ")
			}
			p.expr(pair.Key)
			p.b.WriteString(" => ")
			p.expr(pair.Value)
		}
		p.b.WriteByte('}')
	case *UnaryExpr:
		p.b.WriteString(n.Op.String())
		p.expr(n.Operand)
	case *BinaryExpr:
		p.expr(n.Left)
		fmt.Fprintf(&p.b, " %s ", n.Op)
		p.expr(n.Right)
	case *ParenExpr:
		p.b.WriteByte('(')
		p.expr(n.Inner)
		p.b.WriteByte(')')
	case *AccessExpr:
		p.expr(n.Target)
		p.b.WriteByte('[')
		p.exprList(n.Args)
		p.b.WriteByte(']')
	case *MethodCallExpr:
		p.expr(n.Target)
		p.b.WriteByte('.')
		p.b.WriteString(n.Name)
		if len(n.Args) > 0 || n.HasParens {
			p.b.WriteByte('(')
			p.exprList(n.Args)
			p.b.WriteByte(')')
		}
		if n.Lambda != nil {
			p.lambda(n.Lambda)
		}
	case *SelectorExpr:
		p.expr(n.Target)
		p.b.WriteString(" ? {")
		p.indent++
		for _, c := range n.Cases {
			p.nl()
			p.expr(c.Selector)
			p.b.WriteString(" => ")
			p.expr(c.Result)
			p.b.WriteByte(',')
		}
		p.indent--
		p.nl()
		p.b.WriteByte('}')
	case *FunctionCallExpr:
		p.b.WriteString(n.Name)
		if n.StatementStyle {
			if len(n.Args) > 0 {
				p.b.WriteByte(' ')
				p.exprList(n.Args)
			}
		} else {
			p.b.WriteByte('(')
			p.exprList(n.Args)
			p.b.WriteByte(')')
		}
		if n.Lambda != nil {
			p.lambda(n.Lambda)
		}
	case *IfExpr:
		p.b.WriteString("if ")
		p.expr(n.Condition)
		p.b.WriteByte(' ')
		p.block(n.Body)
		for _, e := range n.Elsifs {
			p.b.WriteString(" elsif ")
			p.expr(e.Condition)
			p.b.WriteByte(' ')
			p.block(e.Body)
		}
		if n.Else != nil {
			p.b.WriteString(" else ")
			p.block(n.Else.Body)
		}
	case *UnlessExpr:
		p.b.WriteString("unless ")
		p.expr(n.Condition)
		p.b.WriteByte(' ')
		p.block(n.Body)
		if n.Else != nil {
			p.b.WriteString(" else ")
			p.block(n.Else.Body)
		}
	case *CaseExpr:
		p.b.WriteString("case ")
		p.expr(n.Subject)
		p.b.WriteString(" {")
		p.indent++
		for _, prop := range n.Propositions {
			p.nl()
			p.exprList(prop.Options)
			p.b.WriteString(": ")
			p.block(prop.Body)
		}
		p.indent--
		p.nl()
		p.b.WriteByte('}')
	case *ResourceExpr:
		switch n.Status {
		case StatusVirtual:
			p.b.WriteString("@")
		case StatusExported:
			p.b.WriteString("@@")
		}
		p.expr(n.Type)
		p.b.WriteString(" {")
		p.indent++
		for i, body := range n.Bodies {
			if i > 0 {
				p.b.WriteByte(';')
			}
			p.nl()
			p.expr(body.Title)
			p.b.WriteByte(':')
			p.indent++
			for _, a := range body.Attributes {
				p.nl()
				fmt.Fprintf(&p.b, "%s %s ", a.Name, a.Op)
				p.expr(a.Value)
				p.b.WriteByte(',')
			}
			p.indent--
		}
		p.indent--
		p.nl()
		p.b.WriteByte('}')
	case *ResourceDefaultsExpr:
		p.b.WriteString(n.Type.Name)
		p.b.WriteString(" {")
		p.attributes(n.Attributes)
		p.b.WriteByte('}')
	case *ResourceOverrideExpr:
		p.expr(n.Reference)
		p.b.WriteString(" {")
		p.attributes(n.Attributes)
		p.b.WriteByte('}')
	case *ClassDefinitionExpr:
		p.b.WriteString("class ")
		p.b.WriteString(n.Name)
		if len(n.Parameters) > 0 {
			p.b.WriteByte('(')
			p.parameters(n.Parameters)
			p.b.WriteByte(')')
		}
		if n.Parent != "" {
			p.b.WriteString(" inherits ")
			p.b.WriteString(n.Parent)
		}
		p.b.WriteByte(' ')
		p.block(n.Body)
	case *DefinedTypeExpr:
		p.b.WriteString("define ")
		p.b.WriteString(n.Name)
		if len(n.Parameters) > 0 {
			p.b.WriteByte('(')
			p.parameters(n.Parameters)
			p.b.WriteByte(')')
		}
		p.b.WriteByte(' ')
		p.block(n.Body)
	case *NodeDefinitionExpr:
		p.b.WriteString("node ")
		for i, h := range n.Hostnames {
			if i > 0 {
				p.b.WriteString(", ")
			}
			switch h.Kind {
			case HostnameDefault:
				p.b.WriteString("default")
			case HostnameRegex:
				fmt.Fprintf(&p.b, "/%s/", h.Value)
			default:
				p.b.WriteString(h.Value)
			}
		}
		p.b.WriteByte(' ')
		p.block(n.Body)
	case *CollectionExpr:
		p.b.WriteString(n.Type.Name)
		if n.Exported {
			p.b.WriteString(" <<| ")
		} else {
			p.b.WriteString(" <| ")
		}
		if n.Query != nil {
			p.query(n.Query)
			p.b.WriteByte(' ')
		}
		if n.Exported {
			p.b.WriteString("|>>")
		} else {
			p.b.WriteString("|>")
		}
	default:
		fmt.Fprintf(&p.b, "/* %T */", e)
	}
}

func (p *printer) query(q Query) {
	switch n := q.(type) {
	case *AttributeQuery:
		fmt.Fprintf(&p.b, "%s %s ", n.Name, n.Op)
		p.expr(n.Value)
	case *BinaryQuery:
		p.query(n.Left)
		if n.And {
			p.b.WriteString(" and ")
		} else {
			p.b.WriteString(" or ")
		}
		p.query(n.Right)
	}
}

func (p *printer) printString(s *StringExpr) {
	switch {
	case s.Quote == '\'':
		fmt.Fprintf(&p.b, "'%s'", s.Raw)
	case s.Quote == '"':
		// Raw still holds the original escape sequences, so it can be
		// emitted verbatim.
		fmt.Fprintf(&p.b, "\"%s\"", s.Raw)
	default:
		// Heredocs are re-emitted as an @(EOT) heredoc; the raw text is
		// preserved verbatim.
		fmt.Fprintf(&p.b, "@(EOT)\n%s| EOT", s.Raw)
	}
}
