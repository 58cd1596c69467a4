// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval

import (
	"strings"
	"unicode/utf8"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/parser"
	"github.com/nomoslang/nomos/internal/values"
)

// Tab stops count this many margin columns when stripping heredoc margins.
const tabWidth = 4

// interpolate renders a string literal: escape sequences, heredoc margin
// stripping, and (for interpolated strings) $name and ${expression}
// substitution. Embedded expressions re-enter the parser; the closing brace
// of the embedded block ends the parse.
func (e *Evaluator) interpolate(n *ast.StringExpr) string {
	text := n.Raw
	var b strings.Builder
	b.Grow(len(text))

	margin := n.Margin
	currentMargin := margin
	i := 0
	for i < len(text) {
		// Strip the heredoc margin at the start of each line.
		for currentMargin > 0 && i < len(text) {
			if text[i] == ' ' {
				currentMargin--
				i++
				continue
			}
			if text[i] == '\t' {
				if currentMargin > tabWidth {
					currentMargin -= tabWidth
				} else {
					currentMargin = 0
				}
				i++
				continue
			}
			break
		}
		if i >= len(text) {
			break
		}
		currentMargin = 0

		c := text[i]
		switch {
		case c == '\\' && n.Escapes != "":
			next := i + 1
			if next < len(text) && text[next] == '\r' {
				next++
			}
			if next < len(text) && strings.IndexByte(n.Escapes, text[next]) >= 0 {
				switch text[next] {
				case 'r':
					b.WriteByte('\r')
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 's':
					b.WriteByte(' ')
				case 'u':
					consumed, ok := e.writeUnicodeEscape(&b, text[next+1:], n.Rng)
					if !ok {
						b.WriteByte(c)
						i++
						continue
					}
					next += consumed
				case '\n':
					// Escaped line break: a continuation, restart the margin.
					currentMargin = margin
				case '$':
					b.WriteByte('$')
				default:
					b.WriteByte(text[next])
				}
				i = next + 1
				continue
			}
			if next < len(text) && n.Quote != '\'' {
				e.warn(n.Rng, "invalid escape sequence '\\"+string(text[next])+"'")
			}
			b.WriteByte(c)
			i++

		case c == '\n':
			currentMargin = margin
			b.WriteByte(c)
			i++

		case n.Interpolated && c == '$' && i+1 < len(text) && !isSpace(text[i+1]):
			consumed := e.interpolateAt(&b, text[i+1:], n)
			if consumed == 0 {
				b.WriteByte(c)
				i++
				continue
			}
			i += 1 + consumed

		default:
			b.WriteByte(c)
			i++
		}
	}

	result := b.String()
	if n.RemoveBreak {
		result = strings.TrimSuffix(result, "\n")
		result = strings.TrimSuffix(result, "\r")
	}
	return result
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// interpolateAt handles the text following a `$`, returning the number of
// bytes it consumed (zero when the text is not an interpolation).
func (e *Evaluator) interpolateAt(b *strings.Builder, rest string, n *ast.StringExpr) int {
	if rest == "" {
		return 0
	}
	if rest[0] != '{' {
		name, length := scanVariableName(rest)
		if length == 0 {
			return 0
		}
		b.WriteString(e.lookupInterpolated(name, n).String())
		return length
	}

	// ${name} and ${0} resolve as variable lookups without a full parse.
	if name, length, ok := simpleBracedName(rest); ok {
		b.WriteString(e.lookupInterpolated(name, n).String())
		return length
	}

	// ${expression}: re-enter the parser; positions inside the embedded
	// block are relative to it.
	program, consumed, ds := parser.ParseEmbedded(n.Rng.Filename, rest)
	if ds.HasErrors() {
		first := ds[0]
		rng := n.Rng
		panic(evalAbort{diag: &diags.Diagnostic{
			Severity:   diags.Error,
			Kind:       diags.ParseError,
			Summary:    first.Summary,
			Subject:    &rng,
			SourceLine: first.SourceLine,
		}})
	}

	var result values.Value = values.Undef{}
	for i, expr := range program.Body {
		if i == 0 {
			expr = variableTransform(expr)
		}
		result = e.eval(expr)
	}
	b.WriteString(values.Deref(result).String())
	return consumed
}

// lookupInterpolated resolves $name or $n inside a string.
func (e *Evaluator) lookupInterpolated(name string, n *ast.StringExpr) values.Value {
	if name[0] >= '0' && name[0] <= '9' {
		index := 0
		for _, c := range name {
			if c < '0' || c > '9' {
				e.evalErrorf(n.Rng, "'%s' is not a valid match variable name", name)
			}
			index = index*10 + int(c-'0')
		}
		return e.ctx.MatchVar(index)
	}
	value, ok := e.ctx.Lookup(name, func(msg string) { e.warn(n.Rng, msg) })
	if !ok {
		return values.Undef{}
	}
	return values.Deref(value)
}

// scanVariableName scans a $foo or $foo::bar or $0 reference.
func scanVariableName(s string) (string, int) {
	i := 0
	if i < len(s) && s[i] >= '0' && s[i] <= '9' {
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		return s[:i], i
	}
	if strings.HasPrefix(s, "::") {
		i = 2
	}
	for {
		segStart := i
		for i < len(s) && (isWordByte(s[i])) {
			i++
		}
		if i == segStart {
			return "", 0
		}
		if strings.HasPrefix(s[i:], "::") && i+2 < len(s) && isWordByte(s[i+2]) {
			i += 2
			continue
		}
		break
	}
	return s[:i], i
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// simpleBracedName matches ${name} and ${digits} forms.
func simpleBracedName(s string) (string, int, bool) {
	name, length := scanVariableName(s[1:])
	if length == 0 {
		return "", 0, false
	}
	if 1+length < len(s) && s[1+length] == '}' {
		return name, length + 2, true
	}
	return "", 0, false
}

// variableTransform rewrites ${foo[0]} and ${foo.bar} so the leading name
// is treated as a variable rather than a bare string.
func variableTransform(expr ast.Expression) ast.Expression {
	switch n := expr.(type) {
	case *ast.AccessExpr:
		n.Target = variableTransformBase(n.Target)
	case *ast.MethodCallExpr:
		n.Target = variableTransformBase(n.Target)
	case *ast.BinaryExpr:
		n.Left = variableTransform(n.Left)
	}
	return expr
}

func variableTransformBase(expr ast.Expression) ast.Expression {
	switch n := expr.(type) {
	case *ast.NameExpr:
		return &ast.VariableExpr{Rng: n.Rng, Name: n.Value}
	case *ast.BareWordExpr:
		return &ast.VariableExpr{Rng: n.Rng, Name: n.Value}
	case *ast.AccessExpr:
		n.Target = variableTransformBase(n.Target)
		return n
	case *ast.MethodCallExpr:
		n.Target = variableTransformBase(n.Target)
		return n
	}
	return expr
}

// writeUnicodeEscape handles \uXXXX and \u{X...} sequences, returning the
// number of bytes consumed after the 'u'.
func (e *Evaluator) writeUnicodeEscape(b *strings.Builder, s string, rng diags.SourceRange) (int, bool) {
	variable := false
	i := 0
	if i < len(s) && s[i] == '{' {
		variable = true
		i++
	}

	var digits []byte
	for i < len(s) {
		c := s[i]
		if variable && c == '}' {
			break
		}
		if !isHexByte(c) {
			if !variable && len(digits) == 4 {
				break
			}
			e.warn(rng, "unicode escape sequence contains non-hexadecimal character '"+string(c)+"'")
			return 0, false
		}
		digits = append(digits, c)
		i++
		if !variable && len(digits) == 4 {
			break
		}
	}

	if variable {
		if i >= len(s) || s[i] != '}' {
			e.warn(rng, "a closing '}' was not found for unicode escape sequence")
			return 0, false
		}
		i++
		if len(digits) == 0 || len(digits) > 6 {
			e.warn(rng, "expected at least 1 and at most 6 hexadecimal digits for unicode escape sequence")
			return 0, false
		}
	} else if len(digits) != 4 {
		e.warn(rng, "expected 4 hexadecimal digits for unicode escape sequence")
		return 0, false
	}

	var code rune
	for _, d := range digits {
		code = code*16 + rune(hexValue(d))
	}
	if !utf8.ValidRune(code) {
		e.warn(rng, "invalid unicode code point")
		return 0, false
	}
	b.WriteRune(code)
	return i, true
}

func isHexByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
