// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package lexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nomoslang/nomos/internal/diags"
)

// Lexer scans a single manifest.
type Lexer struct {
	filename string
	src      string

	pos  int
	line int
	col  int

	// afterValue tracks whether the previous significant token could end a
	// value; it disambiguates `/` (division vs regex) and `[` (access vs
	// array literal).
	afterValue bool
	wsBefore   bool

	tokens  []Token
	pending []pendingHeredoc
	diags   diags.Diagnostics
}

type pendingHeredoc struct {
	tokenIndex int
	tag        string
}

// New returns a lexer over the given source text.
func New(filename, src string) *Lexer {
	return &Lexer{filename: filename, src: src, line: 1, col: 1}
}

// Lex tokenizes the entire input. A lexical error is fatal for the file: the
// token stream is cut short and the diagnostics describe the problem.
func (l *Lexer) Lex() ([]Token, diags.Diagnostics) {
	for l.diags == nil {
		tok, done := l.scan()
		if done || l.diags != nil {
			break
		}
		l.tokens = append(l.tokens, tok)
		switch tok.Kind {
		case TokenName, TokenBareWord, TokenTypeName, TokenVariable, TokenNumber,
			TokenSingleQuotedString, TokenDoubleQuotedString, TokenHeredoc, TokenRegex,
			TokenRightParen, TokenRightBracket, TokenKwTrue, TokenKwFalse,
			TokenKwUndef, TokenKwDefault:
			l.afterValue = true
		default:
			l.afterValue = false
		}
	}
	if l.diags == nil && len(l.pending) > 0 {
		h := l.pending[0]
		l.errorf(l.tokens[h.tokenIndex].Range.Start, "could not find a matching heredoc end tag '%s'", h.tag)
	}
	if l.diags == nil {
		l.tokens = append(l.tokens, Token{Kind: TokenEOF, Range: l.rangeFrom(l.position())})
	}
	return l.tokens, l.diags
}

// SourceLine returns the text of the line containing pos, for diagnostics.
func (l *Lexer) SourceLine(pos diags.Pos) string {
	return diags.SourceLine(l.src, pos)
}

func (l *Lexer) position() diags.Pos {
	return diags.Pos{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) rangeFrom(start diags.Pos) diags.SourceRange {
	return diags.SourceRange{Filename: l.filename, Start: start, End: l.position()}
}

func (l *Lexer) errorf(pos diags.Pos, format string, args ...interface{}) {
	l.diags = l.diags.Append(&diags.Diagnostic{
		Severity:   diags.Error,
		Kind:       diags.LexError,
		Summary:    fmt.Sprintf(format, args...),
		Subject:    &diags.SourceRange{Filename: l.filename, Start: pos, End: pos},
		SourceLine: diags.SourceLine(l.src, pos),
	})
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n; i++ {
		l.advance()
	}
}

// scan produces the next token, or reports completion.
func (l *Lexer) scan() (Token, bool) {
	l.skipTrivia()
	if l.diags != nil || l.eof() {
		return Token{}, true
	}

	start := l.position()
	c := l.peek()

	switch {
	case c >= '0' && c <= '9':
		return l.scanNumber(start), false
	case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		return l.scanIdentifier(start), false
	case c == '$':
		return l.scanVariable(start), false
	case c == '\'':
		return l.scanSingleQuoted(start), false
	case c == '"':
		return l.scanDoubleQuoted(start), false
	case c == '/':
		if !l.afterValue {
			return l.scanRegex(start), false
		}
		l.advance()
		return Token{Kind: TokenSlash, Text: "/", Range: l.rangeFrom(start)}, false
	case c == '@':
		if l.peekAt(1) == '(' {
			return l.scanHeredocOpen(start), false
		}
		if l.peekAt(1) == '@' {
			l.advanceN(2)
			return Token{Kind: TokenAtAt, Text: "@@", Range: l.rangeFrom(start)}, false
		}
		l.advance()
		return Token{Kind: TokenAt, Text: "@", Range: l.rangeFrom(start)}, false
	}

	return l.scanOperator(start)
}

// skipTrivia consumes whitespace and comments. Reaching the end of a line
// with heredoc tags outstanding consumes the heredoc bodies too.
func (l *Lexer) skipTrivia() {
	for !l.eof() {
		c := l.peek()
		switch {
		case c == '\n':
			l.wsBefore = true
			l.advance()
			if len(l.pending) > 0 {
				l.captureHeredocs()
			}
		case c == ' ' || c == '\t' || c == '\r':
			l.wsBefore = true
			l.advance()
		case c == '#':
			l.wsBefore = true
			for !l.eof() && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			l.wsBefore = true
			start := l.position()
			l.advanceN(2)
			for {
				if l.eof() {
					l.errorf(start, "unterminated block comment")
					return
				}
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advanceN(2)
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) scanOperator(start diags.Pos) (Token, bool) {
	// Longest match first.
	ops := []struct {
		text string
		kind TokenKind
	}{
		{"<<|", TokenLeftExport},
		{"|>>", TokenRightExport},
		{"<<", TokenLeftShift},
		{">>", TokenRightShift},
		{"<|", TokenLeftCollect},
		{"|>", TokenRightCollect},
		{"<=", TokenLessEqual},
		{">=", TokenGreaterEqual},
		{"==", TokenEqual},
		{"!=", TokenNotEqual},
		{"=~", TokenMatch},
		{"!~", TokenNotMatch},
		{"=>", TokenFatArrow},
		{"+>", TokenPlusArrow},
		{"->", TokenInEdge},
		{"~>", TokenInEdgeSub},
		{"<-", TokenOutEdge},
		{"<~", TokenOutEdgeSub},
		{"{", TokenLeftBrace},
		{"}", TokenRightBrace},
		{"]", TokenRightBracket},
		{"(", TokenLeftParen},
		{")", TokenRightParen},
		{",", TokenComma},
		{":", TokenColon},
		{";", TokenSemicolon},
		{".", TokenDot},
		{"?", TokenQuestion},
		{"|", TokenPipe},
		{"=", TokenAssign},
		{"+", TokenPlus},
		{"-", TokenMinus},
		{"*", TokenStar},
		{"%", TokenPercent},
		{"!", TokenNot},
		{"<", TokenLess},
		{">", TokenGreater},
	}

	if l.peek() == '[' {
		l.advance()
		kind := TokenArrayStart
		if l.afterValue && !l.wsBefore {
			kind = TokenLeftBracket
		}
		l.wsBefore = false
		return Token{Kind: kind, Text: "[", Range: l.rangeFrom(start)}, false
	}

	rest := l.src[l.pos:]
	for _, op := range ops {
		if strings.HasPrefix(rest, op.text) {
			l.advanceN(len(op.text))
			l.wsBefore = false
			return Token{Kind: op.kind, Text: op.text, Range: l.rangeFrom(start)}, false
		}
	}

	l.errorf(start, "unexpected character %q", string(l.peek()))
	return Token{}, true
}

func (l *Lexer) scanNumber(start diags.Pos) Token {
	l.wsBefore = false
	begin := l.pos

	isFloat := false
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advanceN(2)
		digits := 0
		for isHexDigit(l.peek()) {
			l.advance()
			digits++
		}
		text := l.src[begin:l.pos]
		if digits == 0 || isIdentChar(l.peek()) {
			l.malformedNumber(start)
			return Token{}
		}
		v, err := strconv.ParseInt(text[2:], 16, 64)
		if err != nil {
			l.malformedNumber(start)
			return Token{}
		}
		return Token{Kind: TokenNumber, Text: text, Int: v, Range: l.rangeFrom(start)}
	}

	octal := l.peek() == '0' && isDigit(l.peekAt(1))
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !isDigit(l.peek()) {
			l.malformedNumber(start)
			return Token{}
		}
		isFloat = true
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if isIdentChar(l.peek()) {
		l.malformedNumber(start)
		return Token{}
	}

	text := l.src[begin:l.pos]
	tok := Token{Kind: TokenNumber, Text: text, Range: l.rangeFrom(start)}
	switch {
	case isFloat:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			l.malformedNumber(start)
			return Token{}
		}
		tok.Float = v
		tok.IsFloat = true
	case octal:
		v, err := strconv.ParseInt(text, 8, 64)
		if err != nil {
			l.malformedNumber(start)
			return Token{}
		}
		tok.Int = v
	default:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			l.malformedNumber(start)
			return Token{}
		}
		tok.Int = v
	}
	return tok
}

func (l *Lexer) malformedNumber(start diags.Pos) {
	for isIdentChar(l.peek()) || l.peek() == '.' {
		l.advance()
	}
	l.errorf(start, "'%s' is not a valid number", l.src[start.Offset:l.pos])
}

func (l *Lexer) scanIdentifier(start diags.Pos) Token {
	l.wsBefore = false
	begin := l.pos

	hasDash := false
	for {
		for isIdentChar(l.peek()) || l.peek() == '-' {
			if l.peek() == '-' {
				hasDash = true
			}
			l.advance()
		}
		if l.peek() == ':' && l.peekAt(1) == ':' && isIdentStart(l.peekAt(2)) {
			l.advanceN(2)
			continue
		}
		break
	}

	text := l.src[begin:l.pos]
	rng := l.rangeFrom(start)

	first := text[0]
	switch {
	case first >= 'A' && first <= 'Z':
		return Token{Kind: TokenTypeName, Text: text, Range: rng}
	case hasDash:
		return Token{Kind: TokenBareWord, Text: text, Range: rng}
	}
	if kw, ok := keywords[text]; ok {
		return Token{Kind: kw, Text: text, Range: rng}
	}
	if statementCalls[text] {
		return Token{Kind: TokenStatementCall, Text: text, Range: rng}
	}
	return Token{Kind: TokenName, Text: text, Range: rng}
}

func (l *Lexer) scanVariable(start diags.Pos) Token {
	l.wsBefore = false
	l.advance() // $
	begin := l.pos

	if isDigit(l.peek()) {
		for isDigit(l.peek()) {
			l.advance()
		}
		return Token{Kind: TokenVariable, Text: l.src[begin:l.pos], Range: l.rangeFrom(start)}
	}

	if l.peek() == ':' && l.peekAt(1) == ':' {
		l.advanceN(2)
	}
	if !isIdentStart(l.peek()) {
		l.errorf(start, "expected a variable name after `$`")
		return Token{}
	}
	for {
		for isIdentChar(l.peek()) {
			l.advance()
		}
		if l.peek() == ':' && l.peekAt(1) == ':' && isIdentStart(l.peekAt(2)) {
			l.advanceN(2)
			continue
		}
		break
	}
	return Token{Kind: TokenVariable, Text: l.src[begin:l.pos], Range: l.rangeFrom(start)}
}

const (
	singleQuotedEscapes = `\'`
	doubleQuotedEscapes = "nrts$u\"\\"
	heredocEscapes      = "nrts$u\\\n"
)

func (l *Lexer) scanSingleQuoted(start diags.Pos) Token {
	l.wsBefore = false
	l.advance() // '
	begin := l.pos
	for {
		if l.eof() {
			l.errorf(start, "unterminated string literal")
			return Token{}
		}
		c := l.peek()
		if c == '\\' && (l.peekAt(1) == '\\' || l.peekAt(1) == '\'') {
			l.advanceN(2)
			continue
		}
		if c == '\'' {
			break
		}
		l.advance()
	}
	text := l.src[begin:l.pos]
	l.advance() // closing '
	return Token{
		Kind:    TokenSingleQuotedString,
		Text:    text,
		Range:   l.rangeFrom(start),
		Quote:   '\'',
		Escapes: singleQuotedEscapes,
	}
}

func (l *Lexer) scanDoubleQuoted(start diags.Pos) Token {
	l.wsBefore = false
	l.advance() // "
	begin := l.pos
	for {
		if l.eof() {
			l.errorf(start, "unterminated string literal")
			return Token{}
		}
		c := l.peek()
		if c == '\\' && !l.eofAt(1) {
			l.advanceN(2)
			continue
		}
		if c == '"' {
			break
		}
		l.advance()
	}
	text := l.src[begin:l.pos]
	l.advance() // closing "
	return Token{
		Kind:         TokenDoubleQuotedString,
		Text:         text,
		Range:        l.rangeFrom(start),
		Quote:        '"',
		Escapes:      doubleQuotedEscapes,
		Interpolated: true,
	}
}

func (l *Lexer) eofAt(n int) bool {
	return l.pos+n >= len(l.src)
}

func (l *Lexer) scanRegex(start diags.Pos) Token {
	l.wsBefore = false
	l.advance() // /
	begin := l.pos
	for {
		if l.eof() || l.peek() == '\n' {
			l.errorf(start, "unterminated regular expression")
			return Token{}
		}
		c := l.peek()
		if c == '\\' && !l.eofAt(1) {
			l.advanceN(2)
			continue
		}
		if c == '/' {
			break
		}
		l.advance()
	}
	text := l.src[begin:l.pos]
	l.advance() // closing /
	return Token{Kind: TokenRegex, Text: text, Range: l.rangeFrom(start)}
}

// scanHeredocOpen lexes the @(TAG[:SYNTAX]) introducer. The body is captured
// when the current line ends; until then the token's text is empty.
func (l *Lexer) scanHeredocOpen(start diags.Pos) Token {
	l.wsBefore = false
	l.advanceN(2) // @(

	for l.peek() == ' ' || l.peek() == '\t' {
		l.advance()
	}

	quoted := false
	if l.peek() == '"' {
		quoted = true
		l.advance()
	}
	tagBegin := l.pos
	for isIdentChar(l.peek()) {
		l.advance()
	}
	tag := l.src[tagBegin:l.pos]
	if tag == "" {
		l.errorf(start, "expected a heredoc end tag after `@(`")
		return Token{}
	}
	if quoted {
		if l.peek() != '"' {
			l.errorf(start, "expected `\"` to close the quoted heredoc tag")
			return Token{}
		}
		l.advance()
	}

	if l.peek() == ':' {
		// The syntax annotation is skipped; it is not stored on the token
		// and has no effect on lexing.
		l.advance()
		for isIdentChar(l.peek()) || l.peek() == '+' {
			l.advance()
		}
	}
	for l.peek() == ' ' || l.peek() == '\t' {
		l.advance()
	}
	if l.peek() != ')' {
		l.errorf(start, "expected `)` to close the heredoc tag")
		return Token{}
	}
	l.advance()

	tok := Token{
		Kind:         TokenHeredoc,
		Range:        l.rangeFrom(start),
		Interpolated: !quoted,
	}
	if tok.Interpolated {
		tok.Escapes = heredocEscapes
	}
	l.pending = append(l.pending, pendingHeredoc{tokenIndex: len(l.tokens), tag: tag})
	return tok
}

// captureHeredocs consumes the bodies of all outstanding heredocs, in the
// order their tags appeared on the line just ended.
func (l *Lexer) captureHeredocs() {
	pending := l.pending
	l.pending = nil

	for _, h := range pending {
		bodyStart := l.pos
		margin := 0
		removeBreak := false
		found := false

		for !l.eof() {
			lineStart := l.pos
			lineEnd := strings.IndexByte(l.src[l.pos:], '\n')
			var line string
			if lineEnd < 0 {
				line = l.src[l.pos:]
				lineEnd = len(l.src)
			} else {
				line = l.src[l.pos : l.pos+lineEnd]
				lineEnd = l.pos + lineEnd + 1
			}

			if m, rb, ok := matchHeredocEnd(line, h.tag); ok {
				body := l.src[bodyStart:lineStart]
				margin, removeBreak = m, rb
				l.advanceN(lineEnd - l.pos)
				tok := &l.tokens[h.tokenIndex]
				tok.Text = body
				tok.Margin = margin
				tok.RemoveBreak = removeBreak
				found = true
				break
			}
			l.advanceN(lineEnd - l.pos)
		}

		if !found {
			start := l.tokens[h.tokenIndex].Range.Start
			l.errorf(start, "could not find a matching heredoc end tag '%s'", h.tag)
			return
		}
	}
}

// matchHeredocEnd checks whether line terminates a heredoc with the given
// tag, returning the margin column and whether the trailing line break
// should be removed.
func matchHeredocEnd(line, tag string) (margin int, removeBreak bool, ok bool) {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	if i < len(line) && line[i] == '|' {
		margin = i
		i++
		if i < len(line) && line[i] == '-' {
			removeBreak = true
			i++
		}
	}
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	if !strings.HasPrefix(line[i:], tag) {
		return 0, false, false
	}
	rest := strings.TrimRight(line[i+len(tag):], " \t\r")
	if rest != "" {
		return 0, false, false
	}
	return margin, removeBreak, true
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' }

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
