// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package parser turns a token stream into a syntax tree.
//
// The grammar is parsed by recursive descent with precedence climbing for
// binary expressions. Constructs that are only legal in statement position
// (resource expressions, defaults, overrides and definitions) are recognized
// by lookahead in the statement parser and never by the expression parser.
package parser

import (
	"fmt"

	"github.com/nomoslang/nomos/internal/ast"
	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/lexer"
)

// Parse lexes and parses a whole manifest.
func Parse(filename, src string) (*ast.Program, diags.Diagnostics) {
	tokens, ds := lexer.New(filename, src).Lex()
	if ds.HasErrors() {
		return nil, ds
	}
	p := &parser{filename: filename, src: src, tokens: tokens}
	program := &ast.Program{Filename: filename, Source: src}

	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(bailout); !ok {
					panic(r)
				}
			}
		}()
		program.Body = p.statements(lexer.TokenEOF)
	}()
	if p.diags.HasErrors() {
		return nil, p.diags
	}
	return program, p.diags
}

// ParseEmbedded parses an interpolated expression block. src must begin with
// the `{` that follows the `$` sigil; parsing stops at the matching `}`.
// The returned offset is the number of bytes consumed, including the closing
// brace. Positions in the returned tree are relative to src.
func ParseEmbedded(filename, src string) (*ast.Program, int, diags.Diagnostics) {
	tokens, ds := lexer.New(filename, src).Lex()
	if ds.HasErrors() {
		// A lexing failure beyond the closing brace must not fail the
		// interpolation, so try to recover by trimming to the brace match.
		if end := matchBrace(src); end > 0 {
			return ParseEmbedded(filename, src[:end])
		}
		return nil, 0, ds
	}
	p := &parser{filename: filename, src: src, tokens: tokens}
	program := &ast.Program{Filename: filename, Source: src}

	consumed := 0
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(bailout); !ok {
					panic(r)
				}
			}
		}()
		p.expect(lexer.TokenLeftBrace)
		program.Body = p.statements(lexer.TokenRightBrace)
		closing := p.expect(lexer.TokenRightBrace)
		consumed = closing.Range.End.Offset
	}()
	return program, consumed, p.diags
}

// matchBrace returns the offset just past the brace matching src[0], or -1.
// It is a raw scan used only to trim interpolation inputs whose tail is not
// lexable; quotes are honored so braces inside strings don't count.
func matchBrace(src string) int {
	if len(src) == 0 || src[0] != '{' {
		return -1
	}
	depth := 0
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

type bailout struct{}

type parser struct {
	filename string
	src      string
	tokens   []lexer.Token
	pos      int
	diags    diags.Diagnostics
}

func (p *parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != lexer.TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) at(kind lexer.TokenKind) bool {
	return p.cur().Kind == kind
}

func (p *parser) accept(kind lexer.TokenKind) (lexer.Token, bool) {
	if p.at(kind) {
		return p.next(), true
	}
	return lexer.Token{}, false
}

func (p *parser) expect(kind lexer.TokenKind) lexer.Token {
	if p.at(kind) {
		return p.next()
	}
	p.errorf("expected %s but found %s", kind, p.cur().Kind)
	panic(bailout{})
}

func (p *parser) errorf(format string, args ...interface{}) {
	tok := p.cur()
	rng := tok.Range
	p.diags = p.diags.Append(&diags.Diagnostic{
		Severity:   diags.Error,
		Kind:       diags.ParseError,
		Summary:    fmt.Sprintf(format, args...),
		Subject:    &rng,
		SourceLine: diags.SourceLine(p.src, rng.Start),
	})
}

func (p *parser) fail(format string, args ...interface{}) {
	p.errorf(format, args...)
	panic(bailout{})
}

// statements parses a statement list terminated by the given token kind,
// which is left unconsumed. Statements may be separated by `;`.
func (p *parser) statements(end lexer.TokenKind) []ast.Expression {
	var body []ast.Expression
	for {
		for {
			if _, ok := p.accept(lexer.TokenSemicolon); !ok {
				break
			}
		}
		if p.at(end) || p.at(lexer.TokenEOF) {
			return body
		}
		body = append(body, p.statement())
	}
}

// statement parses one statement-position expression, recognizing the
// statement-only constructs by lookahead.
func (p *parser) statement() ast.Expression {
	switch tok := p.cur(); tok.Kind {
	case lexer.TokenKwClass:
		if p.peek(1).Kind == lexer.TokenLeftBrace {
			return p.resourceExpr(ast.StatusReal)
		}
		return p.classDefinition()
	case lexer.TokenKwDefine:
		return p.definedType()
	case lexer.TokenKwNode:
		return p.nodeDefinition()
	case lexer.TokenAt:
		p.next()
		return p.resourceExpr(ast.StatusVirtual)
	case lexer.TokenAtAt:
		p.next()
		return p.resourceExpr(ast.StatusExported)
	case lexer.TokenName:
		if p.peek(1).Kind == lexer.TokenLeftBrace {
			return p.resourceExpr(ast.StatusReal)
		}
	case lexer.TokenStatementCall:
		if p.peek(1).Kind != lexer.TokenLeftParen {
			return p.statementCall()
		}
	case lexer.TokenTypeName:
		if p.peek(1).Kind == lexer.TokenLeftBrace {
			return p.resourceDefaults()
		}
		if p.isOverrideAhead() {
			return p.resourceOverride()
		}
	case lexer.TokenVariable:
		if p.peek(1).Kind == lexer.TokenLeftBrace || p.isOverrideAhead() {
			return p.resourceOverride()
		}
	}
	return p.expression()
}

// isOverrideAhead reports whether the cursor sits at a type name or variable
// followed by balanced `[...]` groups and then `{`, which is the shape of a
// resource override reference.
func (p *parser) isOverrideAhead() bool {
	i := 1
	if p.peek(i).Kind != lexer.TokenLeftBracket {
		return false
	}
	depth := 0
	for {
		switch p.peek(i).Kind {
		case lexer.TokenLeftBracket, lexer.TokenArrayStart:
			depth++
		case lexer.TokenRightBracket:
			depth--
			if depth == 0 {
				switch p.peek(i + 1).Kind {
				case lexer.TokenLeftBrace:
					return true
				case lexer.TokenLeftBracket:
					i++
					continue
				default:
					return false
				}
			}
		case lexer.TokenEOF:
			return false
		}
		i++
	}
}

// Expression parsing: precedence climbing.

const (
	precLowest   = 1  // -> ~> <- <~
	precAssign   = 2  // =
	precOr       = 3  // or
	precAnd      = 4  // and
	precCompare  = 5  // < <= > >=
	precEquality = 6  // == !=
	precShift    = 7  // << >>
	precAdditive = 8  // + -
	precMultiply = 9  // * / %
	precMatch    = 10 // =~ !~
	precIn       = 11 // in
)

var binaryPrecedence = map[lexer.TokenKind]struct {
	prec int
	op   ast.BinaryOp
}{
	lexer.TokenInEdge:       {precLowest, ast.OpInEdge},
	lexer.TokenInEdgeSub:    {precLowest, ast.OpInEdgeSub},
	lexer.TokenOutEdge:      {precLowest, ast.OpOutEdge},
	lexer.TokenOutEdgeSub:   {precLowest, ast.OpOutEdgeSub},
	lexer.TokenAssign:       {precAssign, ast.OpAssign},
	lexer.TokenKwOr:         {precOr, ast.OpOr},
	lexer.TokenKwAnd:        {precAnd, ast.OpAnd},
	lexer.TokenLess:         {precCompare, ast.OpLess},
	lexer.TokenLessEqual:    {precCompare, ast.OpLessEqual},
	lexer.TokenGreater:      {precCompare, ast.OpGreater},
	lexer.TokenGreaterEqual: {precCompare, ast.OpGreaterEqual},
	lexer.TokenEqual:        {precEquality, ast.OpEqual},
	lexer.TokenNotEqual:     {precEquality, ast.OpNotEqual},
	lexer.TokenLeftShift:    {precShift, ast.OpLeftShift},
	lexer.TokenRightShift:   {precShift, ast.OpRightShift},
	lexer.TokenPlus:         {precAdditive, ast.OpPlus},
	lexer.TokenMinus:        {precAdditive, ast.OpMinus},
	lexer.TokenStar:         {precMultiply, ast.OpMultiply},
	lexer.TokenSlash:        {precMultiply, ast.OpDivide},
	lexer.TokenPercent:      {precMultiply, ast.OpModulo},
	lexer.TokenMatch:        {precMatch, ast.OpMatch},
	lexer.TokenNotMatch:     {precMatch, ast.OpNotMatch},
	lexer.TokenKwIn:         {precIn, ast.OpIn},
}

func (p *parser) expression() ast.Expression {
	return p.binaryExpr(precLowest)
}

func (p *parser) binaryExpr(minPrec int) ast.Expression {
	left := p.unaryExpr()
	for {
		entry, ok := binaryPrecedence[p.cur().Kind]
		if !ok || entry.prec < minPrec {
			return left
		}
		opTok := p.next()

		// Assignment is right-associative, everything else associates left.
		nextMin := entry.prec + 1
		if entry.op == ast.OpAssign {
			nextMin = entry.prec
		}
		right := p.binaryExpr(nextMin)
		left = &ast.BinaryExpr{
			Rng:     diags.RangeBetween(left.Range(), right.Range()),
			Op:      entry.op,
			OpRange: opTok.Range,
			Left:    left,
			Right:   right,
		}
	}
}

func (p *parser) unaryExpr() ast.Expression {
	switch tok := p.cur(); tok.Kind {
	case lexer.TokenMinus:
		p.next()
		operand := p.unaryExpr()
		return &ast.UnaryExpr{Rng: diags.RangeBetween(tok.Range, operand.Range()), Op: ast.OpNegate, Operand: operand}
	case lexer.TokenNot:
		p.next()
		operand := p.unaryExpr()
		return &ast.UnaryExpr{Rng: diags.RangeBetween(tok.Range, operand.Range()), Op: ast.OpNot, Operand: operand}
	case lexer.TokenStar:
		p.next()
		operand := p.unaryExpr()
		return &ast.UnaryExpr{Rng: diags.RangeBetween(tok.Range, operand.Range()), Op: ast.OpSplat, Operand: operand}
	}
	return p.postfixExpr()
}

func (p *parser) postfixExpr() ast.Expression {
	expr := p.primaryExpr()
	for {
		switch p.cur().Kind {
		case lexer.TokenLeftBracket:
			p.next()
			args := p.expressionList(lexer.TokenRightBracket)
			closing := p.expect(lexer.TokenRightBracket)
			expr = &ast.AccessExpr{
				Rng:    diags.RangeBetween(expr.Range(), closing.Range),
				Target: expr,
				Args:   args,
			}
		case lexer.TokenDot:
			p.next()
			name := p.methodName()
			call := &ast.MethodCallExpr{
				Rng:       diags.RangeBetween(expr.Range(), name.Range),
				Target:    expr,
				Name:      name.Text,
				NameRange: name.Range,
			}
			if _, ok := p.accept(lexer.TokenLeftParen); ok {
				call.HasParens = true
				call.Args = p.expressionList(lexer.TokenRightParen)
				closing := p.expect(lexer.TokenRightParen)
				call.Rng = diags.RangeBetween(expr.Range(), closing.Range)
			}
			if p.at(lexer.TokenPipe) {
				call.Lambda = p.lambda()
				call.Rng = diags.RangeBetween(expr.Range(), call.Lambda.Rng)
			}
			expr = call
		case lexer.TokenQuestion:
			p.next()
			expr = p.selectorExpr(expr)
		default:
			return expr
		}
	}
}

func (p *parser) methodName() lexer.Token {
	switch p.cur().Kind {
	case lexer.TokenName, lexer.TokenStatementCall:
		return p.next()
	}
	p.fail("expected method name but found %s", p.cur().Kind)
	return lexer.Token{}
}

func (p *parser) selectorExpr(target ast.Expression) ast.Expression {
	p.expect(lexer.TokenLeftBrace)
	var cases []ast.SelectorCase
	for {
		if p.at(lexer.TokenRightBrace) {
			break
		}
		selector := p.expression()
		p.expect(lexer.TokenFatArrow)
		result := p.expression()
		cases = append(cases, ast.SelectorCase{Selector: selector, Result: result})
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	closing := p.expect(lexer.TokenRightBrace)
	if len(cases) == 0 {
		p.fail("expected at least one selector case")
	}
	return &ast.SelectorExpr{
		Rng:    diags.RangeBetween(target.Range(), closing.Range),
		Target: target,
		Cases:  cases,
	}
}

func (p *parser) primaryExpr() ast.Expression {
	switch tok := p.cur(); tok.Kind {
	case lexer.TokenKwUndef:
		p.next()
		return &ast.UndefExpr{Rng: tok.Range}
	case lexer.TokenKwDefault:
		p.next()
		return &ast.DefaultExpr{Rng: tok.Range}
	case lexer.TokenKwTrue:
		p.next()
		return &ast.BooleanExpr{Rng: tok.Range, Value: true}
	case lexer.TokenKwFalse:
		p.next()
		return &ast.BooleanExpr{Rng: tok.Range, Value: false}
	case lexer.TokenNumber:
		p.next()
		return &ast.NumberExpr{Rng: tok.Range, Text: tok.Text, IsFloat: tok.IsFloat, Int: tok.Int, Float: tok.Float}
	case lexer.TokenSingleQuotedString, lexer.TokenDoubleQuotedString, lexer.TokenHeredoc:
		p.next()
		return &ast.StringExpr{
			Rng:          tok.Range,
			Raw:          tok.Text,
			Quote:        tok.Quote,
			Escapes:      tok.Escapes,
			Interpolated: tok.Interpolated,
			Margin:       tok.Margin,
			RemoveBreak:  tok.RemoveBreak,
		}
	case lexer.TokenRegex:
		p.next()
		return &ast.RegexExpr{Rng: tok.Range, Pattern: tok.Text}
	case lexer.TokenVariable:
		p.next()
		return &ast.VariableExpr{Rng: tok.Range, Name: tok.Text}
	case lexer.TokenName, lexer.TokenStatementCall:
		p.next()
		if p.at(lexer.TokenLeftParen) {
			return p.functionCall(tok)
		}
		return &ast.NameExpr{Rng: tok.Range, Value: tok.Text}
	case lexer.TokenBareWord:
		p.next()
		return &ast.BareWordExpr{Rng: tok.Range, Value: tok.Text}
	case lexer.TokenTypeName:
		p.next()
		if p.at(lexer.TokenLeftCollect) || p.at(lexer.TokenLeftExport) {
			return p.collection(tok)
		}
		return &ast.TypeExpr{Rng: tok.Range, Name: tok.Text}
	case lexer.TokenArrayStart, lexer.TokenLeftBracket:
		p.next()
		elements := p.expressionList(lexer.TokenRightBracket)
		closing := p.expect(lexer.TokenRightBracket)
		return &ast.ArrayExpr{Rng: diags.RangeBetween(tok.Range, closing.Range), Elements: elements}
	case lexer.TokenLeftBrace:
		return p.hashExpr()
	case lexer.TokenLeftParen:
		p.next()
		inner := p.expression()
		closing := p.expect(lexer.TokenRightParen)
		return &ast.ParenExpr{Rng: diags.RangeBetween(tok.Range, closing.Range), Inner: inner}
	case lexer.TokenKwIf:
		return p.ifExpr()
	case lexer.TokenKwUnless:
		return p.unlessExpr()
	case lexer.TokenKwCase:
		return p.caseExpr()
	}
	p.fail("expected expression but found %s", p.cur().Kind)
	return nil
}

// expressionList parses comma-separated expressions up to (but not
// including) the end token. A trailing comma is allowed.
func (p *parser) expressionList(end lexer.TokenKind) []ast.Expression {
	var exprs []ast.Expression
	for {
		if p.at(end) {
			return exprs
		}
		exprs = append(exprs, p.expression())
		if _, ok := p.accept(lexer.TokenComma); !ok {
			return exprs
		}
	}
}

func (p *parser) hashExpr() ast.Expression {
	open := p.expect(lexer.TokenLeftBrace)
	var entries []ast.HashPair
	for {
		if p.at(lexer.TokenRightBrace) {
			break
		}
		key := p.expression()
		p.expect(lexer.TokenFatArrow)
		value := p.expression()
		entries = append(entries, ast.HashPair{Key: key, Value: value})
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	closing := p.expect(lexer.TokenRightBrace)
	return &ast.HashExpr{Rng: diags.RangeBetween(open.Range, closing.Range), Entries: entries}
}

func (p *parser) functionCall(name lexer.Token) ast.Expression {
	p.expect(lexer.TokenLeftParen)
	args := p.expressionList(lexer.TokenRightParen)
	closing := p.expect(lexer.TokenRightParen)
	call := &ast.FunctionCallExpr{
		Rng:       diags.RangeBetween(name.Range, closing.Range),
		Name:      name.Text,
		NameRange: name.Range,
		Args:      args,
	}
	if p.at(lexer.TokenPipe) {
		call.Lambda = p.lambda()
		call.Rng = diags.RangeBetween(name.Range, call.Lambda.Rng)
	}
	return call
}

// statementCall parses notice 'hi', include foo and friends: a statement
// function name followed by unparenthesized arguments.
func (p *parser) statementCall() ast.Expression {
	name := p.next()
	call := &ast.FunctionCallExpr{
		Rng:            name.Range,
		Name:           name.Text,
		NameRange:      name.Range,
		StatementStyle: true,
	}
	for {
		arg := p.expression()
		call.Args = append(call.Args, arg)
		call.Rng = diags.RangeBetween(name.Range, arg.Range())
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	if p.at(lexer.TokenPipe) {
		call.Lambda = p.lambda()
		call.Rng = diags.RangeBetween(name.Range, call.Lambda.Rng)
	}
	return call
}

func (p *parser) lambda() *ast.Lambda {
	open := p.expect(lexer.TokenPipe)
	var params []ast.Parameter
	for {
		if p.at(lexer.TokenPipe) {
			break
		}
		params = append(params, p.parameter())
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	p.expect(lexer.TokenPipe)
	p.expect(lexer.TokenLeftBrace)
	body := p.statements(lexer.TokenRightBrace)
	closing := p.expect(lexer.TokenRightBrace)
	return &ast.Lambda{
		Rng:        diags.RangeBetween(open.Range, closing.Range),
		Parameters: params,
		Body:       body,
	}
}

func (p *parser) parameter() ast.Parameter {
	var param ast.Parameter
	start := p.cur().Range

	if p.at(lexer.TokenTypeName) {
		param.Type = p.typeExpression()
	}
	if _, ok := p.accept(lexer.TokenStar); ok {
		param.Captures = true
	}
	name := p.expect(lexer.TokenVariable)
	param.Name = name.Text
	param.NameRange = name.Range
	param.Rng = diags.RangeBetween(start, name.Range)
	if _, ok := p.accept(lexer.TokenAssign); ok {
		param.Default = p.expression()
		param.Rng = diags.RangeBetween(start, param.Default.Range())
	}
	return param
}

// typeExpression parses a type name with optional access parameterization:
// Integer, Array[String], Hash[String, Integer].
func (p *parser) typeExpression() ast.Expression {
	name := p.expect(lexer.TokenTypeName)
	var expr ast.Expression = &ast.TypeExpr{Rng: name.Range, Name: name.Text}
	for p.at(lexer.TokenLeftBracket) {
		p.next()
		args := p.expressionList(lexer.TokenRightBracket)
		closing := p.expect(lexer.TokenRightBracket)
		expr = &ast.AccessExpr{
			Rng:    diags.RangeBetween(name.Range, closing.Range),
			Target: expr,
			Args:   args,
		}
	}
	return expr
}

func (p *parser) ifExpr() ast.Expression {
	start := p.expect(lexer.TokenKwIf)
	cond := p.expression()
	p.expect(lexer.TokenLeftBrace)
	body := p.statements(lexer.TokenRightBrace)
	closing := p.expect(lexer.TokenRightBrace)

	expr := &ast.IfExpr{
		Rng:       diags.RangeBetween(start.Range, closing.Range),
		Condition: cond,
		Body:      body,
	}
	for p.at(lexer.TokenKwElsif) {
		elsifTok := p.next()
		elsifCond := p.expression()
		p.expect(lexer.TokenLeftBrace)
		elsifBody := p.statements(lexer.TokenRightBrace)
		elsifClose := p.expect(lexer.TokenRightBrace)
		expr.Elsifs = append(expr.Elsifs, ast.ElsifClause{
			Rng:       diags.RangeBetween(elsifTok.Range, elsifClose.Range),
			Condition: elsifCond,
			Body:      elsifBody,
		})
		expr.Rng = diags.RangeBetween(start.Range, elsifClose.Range)
	}
	if clause := p.elseClause(); clause != nil {
		expr.Else = clause
		expr.Rng = diags.RangeBetween(start.Range, clause.Rng)
	}
	return expr
}

func (p *parser) unlessExpr() ast.Expression {
	start := p.expect(lexer.TokenKwUnless)
	cond := p.expression()
	p.expect(lexer.TokenLeftBrace)
	body := p.statements(lexer.TokenRightBrace)
	closing := p.expect(lexer.TokenRightBrace)

	expr := &ast.UnlessExpr{
		Rng:       diags.RangeBetween(start.Range, closing.Range),
		Condition: cond,
		Body:      body,
	}
	if clause := p.elseClause(); clause != nil {
		expr.Else = clause
		expr.Rng = diags.RangeBetween(start.Range, clause.Rng)
	}
	return expr
}

func (p *parser) elseClause() *ast.ElseClause {
	if !p.at(lexer.TokenKwElse) {
		return nil
	}
	start := p.next()
	p.expect(lexer.TokenLeftBrace)
	body := p.statements(lexer.TokenRightBrace)
	closing := p.expect(lexer.TokenRightBrace)
	return &ast.ElseClause{
		Rng:  diags.RangeBetween(start.Range, closing.Range),
		Body: body,
	}
}

func (p *parser) caseExpr() ast.Expression {
	start := p.expect(lexer.TokenKwCase)
	subject := p.expression()
	p.expect(lexer.TokenLeftBrace)

	var propositions []ast.CaseProposition
	for !p.at(lexer.TokenRightBrace) {
		optStart := p.cur().Range
		options := []ast.Expression{p.expression()}
		for {
			if _, ok := p.accept(lexer.TokenComma); !ok {
				break
			}
			options = append(options, p.expression())
		}
		p.expect(lexer.TokenColon)
		p.expect(lexer.TokenLeftBrace)
		body := p.statements(lexer.TokenRightBrace)
		propClose := p.expect(lexer.TokenRightBrace)
		propositions = append(propositions, ast.CaseProposition{
			Rng:     diags.RangeBetween(optStart, propClose.Range),
			Options: options,
			Body:    body,
		})
	}
	closing := p.expect(lexer.TokenRightBrace)
	if len(propositions) == 0 {
		p.fail("expected at least one case proposition")
	}
	return &ast.CaseExpr{
		Rng:          diags.RangeBetween(start.Range, closing.Range),
		Subject:      subject,
		Propositions: propositions,
	}
}

// resourceExpr parses file { 'title': attr => value; ... } and its virtual
// and exported variants. The cursor sits at the resource type.
func (p *parser) resourceExpr(status ast.ResourceStatus) ast.Expression {
	var typeExpr ast.Expression
	switch tok := p.cur(); tok.Kind {
	case lexer.TokenName:
		p.next()
		typeExpr = &ast.NameExpr{Rng: tok.Range, Value: tok.Text}
	case lexer.TokenKwClass:
		p.next()
		typeExpr = &ast.NameExpr{Rng: tok.Range, Value: "class"}
	case lexer.TokenTypeName:
		typeExpr = p.typeExpression()
	default:
		p.fail("expected resource type but found %s", tok.Kind)
	}

	p.expect(lexer.TokenLeftBrace)
	var bodies []ast.ResourceBody
	for {
		if p.at(lexer.TokenRightBrace) {
			break
		}
		bodies = append(bodies, p.resourceBody())
		if _, ok := p.accept(lexer.TokenSemicolon); !ok {
			break
		}
	}
	closing := p.expect(lexer.TokenRightBrace)
	if len(bodies) == 0 {
		p.fail("expected at least one resource body")
	}
	return &ast.ResourceExpr{
		Rng:    diags.RangeBetween(typeExpr.Range(), closing.Range),
		Type:   typeExpr,
		Status: status,
		Bodies: bodies,
	}
}

func (p *parser) resourceBody() ast.ResourceBody {
	title := p.expression()
	p.expect(lexer.TokenColon)
	attrs := p.attributeList()
	rng := title.Range()
	if len(attrs) > 0 {
		rng = diags.RangeBetween(rng, attrs[len(attrs)-1].Rng)
	}
	return ast.ResourceBody{Rng: rng, Title: title, Attributes: attrs}
}

// attributeList parses name => value pairs up to the enclosing } or ;.
func (p *parser) attributeList() []ast.AttributeExpr {
	var attrs []ast.AttributeExpr
	for {
		if p.at(lexer.TokenRightBrace) || p.at(lexer.TokenSemicolon) {
			return attrs
		}
		name := p.attributeName()
		var op ast.AttributeOp
		switch p.cur().Kind {
		case lexer.TokenFatArrow:
			p.next()
			op = ast.AttrAssign
		case lexer.TokenPlusArrow:
			p.next()
			op = ast.AttrAppend
		default:
			p.fail("expected %s or %s but found %s", lexer.TokenFatArrow, lexer.TokenPlusArrow, p.cur().Kind)
		}
		value := p.expression()
		attrs = append(attrs, ast.AttributeExpr{
			Rng:       diags.RangeBetween(name.Range, value.Range()),
			Name:      name.Text,
			NameRange: name.Range,
			Op:        op,
			Value:     value,
		})
		if _, ok := p.accept(lexer.TokenComma); !ok {
			return attrs
		}
	}
}

// attributeName accepts names, statement call names and keywords; attribute
// position un-reserves the keywords.
func (p *parser) attributeName() lexer.Token {
	tok := p.cur()
	if tok.Kind == lexer.TokenName || tok.Kind == lexer.TokenStatementCall || tok.Kind.IsKeyword() {
		return p.next()
	}
	p.fail("expected attribute name but found %s", tok.Kind)
	return lexer.Token{}
}

func (p *parser) resourceDefaults() ast.Expression {
	name := p.expect(lexer.TokenTypeName)
	p.expect(lexer.TokenLeftBrace)
	attrs := p.attributeList()
	closing := p.expect(lexer.TokenRightBrace)
	return &ast.ResourceDefaultsExpr{
		Rng:        diags.RangeBetween(name.Range, closing.Range),
		Type:       ast.TypeExpr{Rng: name.Range, Name: name.Text},
		Attributes: attrs,
	}
}

func (p *parser) resourceOverride() ast.Expression {
	var ref ast.Expression
	switch p.cur().Kind {
	case lexer.TokenTypeName:
		ref = p.typeExpression()
	case lexer.TokenVariable:
		tok := p.next()
		ref = &ast.VariableExpr{Rng: tok.Range, Name: tok.Text}
		for p.at(lexer.TokenLeftBracket) {
			p.next()
			args := p.expressionList(lexer.TokenRightBracket)
			closing := p.expect(lexer.TokenRightBracket)
			ref = &ast.AccessExpr{
				Rng:    diags.RangeBetween(tok.Range, closing.Range),
				Target: ref,
				Args:   args,
			}
		}
	default:
		p.fail("expected resource reference but found %s", p.cur().Kind)
	}

	p.expect(lexer.TokenLeftBrace)
	attrs := p.attributeList()
	closing := p.expect(lexer.TokenRightBrace)
	return &ast.ResourceOverrideExpr{
		Rng:        diags.RangeBetween(ref.Range(), closing.Range),
		Reference:  ref,
		Attributes: attrs,
	}
}

func (p *parser) definitionName() lexer.Token {
	switch p.cur().Kind {
	case lexer.TokenName, lexer.TokenStatementCall:
		return p.next()
	}
	p.fail("expected name but found %s", p.cur().Kind)
	return lexer.Token{}
}

func (p *parser) parameterList() []ast.Parameter {
	var params []ast.Parameter
	if _, ok := p.accept(lexer.TokenLeftParen); !ok {
		return nil
	}
	for {
		if p.at(lexer.TokenRightParen) {
			break
		}
		params = append(params, p.parameter())
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
	}
	p.expect(lexer.TokenRightParen)
	return params
}

func (p *parser) classDefinition() ast.Expression {
	start := p.expect(lexer.TokenKwClass)
	name := p.definitionName()
	params := p.parameterList()

	var parent lexer.Token
	if _, ok := p.accept(lexer.TokenKwInherits); ok {
		parent = p.definitionName()
	}

	p.expect(lexer.TokenLeftBrace)
	body := p.statements(lexer.TokenRightBrace)
	closing := p.expect(lexer.TokenRightBrace)
	return &ast.ClassDefinitionExpr{
		Rng:         diags.RangeBetween(start.Range, closing.Range),
		Name:        name.Text,
		NameRange:   name.Range,
		Parameters:  params,
		Parent:      parent.Text,
		ParentRange: parent.Range,
		Body:        body,
	}
}

func (p *parser) definedType() ast.Expression {
	start := p.expect(lexer.TokenKwDefine)
	name := p.definitionName()
	params := p.parameterList()
	p.expect(lexer.TokenLeftBrace)
	body := p.statements(lexer.TokenRightBrace)
	closing := p.expect(lexer.TokenRightBrace)
	return &ast.DefinedTypeExpr{
		Rng:        diags.RangeBetween(start.Range, closing.Range),
		Name:       name.Text,
		NameRange:  name.Range,
		Parameters: params,
		Body:       body,
	}
}

func (p *parser) nodeDefinition() ast.Expression {
	start := p.expect(lexer.TokenKwNode)
	var hostnames []ast.Hostname
	for {
		hostnames = append(hostnames, p.hostname())
		if _, ok := p.accept(lexer.TokenComma); !ok {
			break
		}
		if p.at(lexer.TokenLeftBrace) {
			break
		}
	}
	p.expect(lexer.TokenLeftBrace)
	body := p.statements(lexer.TokenRightBrace)
	closing := p.expect(lexer.TokenRightBrace)
	return &ast.NodeDefinitionExpr{
		Rng:       diags.RangeBetween(start.Range, closing.Range),
		Hostnames: hostnames,
		Body:      body,
	}
}

func (p *parser) hostname() ast.Hostname {
	switch tok := p.cur(); tok.Kind {
	case lexer.TokenKwDefault:
		p.next()
		return ast.Hostname{Rng: tok.Range, Kind: ast.HostnameDefault}
	case lexer.TokenRegex:
		p.next()
		return ast.Hostname{Rng: tok.Range, Kind: ast.HostnameRegex, Value: tok.Text}
	case lexer.TokenSingleQuotedString, lexer.TokenDoubleQuotedString:
		p.next()
		return ast.Hostname{Rng: tok.Range, Kind: ast.HostnameLiteral, Value: tok.Text}
	case lexer.TokenName, lexer.TokenBareWord, lexer.TokenNumber:
		// Dotted hostname parts: www1.example.com lexes as several tokens.
		start := p.next()
		value := start.Text
		end := start.Range
		for p.at(lexer.TokenDot) {
			p.next()
			part := p.cur()
			switch part.Kind {
			case lexer.TokenName, lexer.TokenBareWord, lexer.TokenNumber:
				p.next()
				value += "." + part.Text
				end = part.Range
			default:
				p.fail("expected hostname segment but found %s", part.Kind)
			}
		}
		return ast.Hostname{Rng: diags.RangeBetween(start.Range, end), Kind: ast.HostnameLiteral, Value: value}
	}
	p.fail("expected hostname but found %s", p.cur().Kind)
	return ast.Hostname{}
}

// collection parses Type <| query |> and Type <<| query |>>. The type token
// is already consumed.
func (p *parser) collection(typeTok lexer.Token) ast.Expression {
	exported := false
	var closeKind lexer.TokenKind
	switch p.cur().Kind {
	case lexer.TokenLeftCollect:
		closeKind = lexer.TokenRightCollect
	case lexer.TokenLeftExport:
		exported = true
		closeKind = lexer.TokenRightExport
	}
	p.next()

	var query ast.Query
	if !p.at(closeKind) {
		query = p.queryOr()
	}
	closing := p.expect(closeKind)
	return &ast.CollectionExpr{
		Rng:      diags.RangeBetween(typeTok.Range, closing.Range),
		Type:     ast.TypeExpr{Rng: typeTok.Range, Name: typeTok.Text},
		Exported: exported,
		Query:    query,
	}
}

func (p *parser) queryOr() ast.Query {
	left := p.queryAnd()
	for p.at(lexer.TokenKwOr) {
		p.next()
		right := p.queryAnd()
		left = &ast.BinaryQuery{
			Rng:   diags.RangeBetween(left.Range(), right.Range()),
			And:   false,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *parser) queryAnd() ast.Query {
	left := p.queryAtom()
	for p.at(lexer.TokenKwAnd) {
		p.next()
		right := p.queryAtom()
		left = &ast.BinaryQuery{
			Rng:   diags.RangeBetween(left.Range(), right.Range()),
			And:   true,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *parser) queryAtom() ast.Query {
	name := p.definitionName()
	var op ast.QueryOp
	switch p.cur().Kind {
	case lexer.TokenEqual:
		p.next()
		op = ast.QueryEquals
	case lexer.TokenNotEqual:
		p.next()
		op = ast.QueryNotEquals
	default:
		p.fail("expected %s or %s but found %s", lexer.TokenEqual, lexer.TokenNotEqual, p.cur().Kind)
	}

	var value ast.Expression
	switch tok := p.cur(); tok.Kind {
	case lexer.TokenVariable:
		p.next()
		value = &ast.VariableExpr{Rng: tok.Range, Name: tok.Text}
	case lexer.TokenSingleQuotedString, lexer.TokenDoubleQuotedString:
		p.next()
		value = &ast.StringExpr{
			Rng:          tok.Range,
			Raw:          tok.Text,
			Quote:        tok.Quote,
			Escapes:      tok.Escapes,
			Interpolated: tok.Interpolated,
		}
	case lexer.TokenKwTrue:
		p.next()
		value = &ast.BooleanExpr{Rng: tok.Range, Value: true}
	case lexer.TokenKwFalse:
		p.next()
		value = &ast.BooleanExpr{Rng: tok.Range, Value: false}
	case lexer.TokenNumber:
		p.next()
		value = &ast.NumberExpr{Rng: tok.Range, Text: tok.Text, IsFloat: tok.IsFloat, Int: tok.Int, Float: tok.Float}
	case lexer.TokenName:
		p.next()
		value = &ast.NameExpr{Rng: tok.Range, Value: tok.Text}
	default:
		p.fail("expected query value but found %s", tok.Kind)
	}
	return &ast.AttributeQuery{
		Rng:   diags.RangeBetween(name.Range, value.Range()),
		Name:  name.Text,
		Op:    op,
		Value: value,
	}
}
