// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package lexer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lexKinds(t *testing.T, src string) []TokenKind {
	t.Helper()
	tokens, ds := New("test.nom", src).Lex()
	if ds.HasErrors() {
		t.Fatalf("unexpected lex error: %s", ds.Err())
	}
	kinds := make([]TokenKind, 0, len(tokens))
	for _, tok := range tokens {
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func lexOne(t *testing.T, src string) Token {
	t.Helper()
	tokens, ds := New("test.nom", src).Lex()
	if ds.HasErrors() {
		t.Fatalf("unexpected lex error: %s", ds.Err())
	}
	if len(tokens) != 2 || tokens[1].Kind != TokenEOF {
		t.Fatalf("expected exactly one token, got %d", len(tokens)-1)
	}
	return tokens[0]
}

func TestLexTokenKinds(t *testing.T) {
	tests := []struct {
		src  string
		want []TokenKind
	}{
		{"class foo { }", []TokenKind{TokenKwClass, TokenName, TokenLeftBrace, TokenRightBrace, TokenEOF}},
		{"$x = 1 + 2", []TokenKind{TokenVariable, TokenAssign, TokenNumber, TokenPlus, TokenNumber, TokenEOF}},
		{"a -> b ~> c", []TokenKind{TokenName, TokenInEdge, TokenName, TokenInEdgeSub, TokenName, TokenEOF}},
		{"<<| |>> <| |>", []TokenKind{TokenLeftExport, TokenRightExport, TokenLeftCollect, TokenRightCollect, TokenEOF}},
		{"x =~ y !~ z", []TokenKind{TokenName, TokenMatch, TokenName, TokenNotMatch, TokenName, TokenEOF}},
		{"a => b +> c", []TokenKind{TokenName, TokenFatArrow, TokenName, TokenPlusArrow, TokenName, TokenEOF}},
		{"@@user @user", []TokenKind{TokenAtAt, TokenName, TokenAt, TokenName, TokenEOF}},
		{"notice File foo-bar", []TokenKind{TokenStatementCall, TokenTypeName, TokenBareWord, TokenEOF}},
		{"a <= b << c <|", []TokenKind{TokenName, TokenLessEqual, TokenName, TokenLeftShift, TokenName, TokenLeftCollect, TokenEOF}},
		{"# comment\nx /* block */ y", []TokenKind{TokenName, TokenName, TokenEOF}},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if diff := cmp.Diff(test.want, lexKinds(t, test.src)); diff != "" {
				t.Errorf("wrong tokens (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexNumbers(t *testing.T) {
	tests := []struct {
		src     string
		isFloat bool
		intVal  int64
		fltVal  float64
	}{
		{"42", false, 42, 0},
		{"0x1f", false, 31, 0},
		{"0X1F", false, 31, 0},
		{"0755", false, 493, 0},
		{"0", false, 0, 0},
		{"3.14", true, 0, 3.14},
		{"1e3", true, 0, 1000},
		{"2.5e-1", true, 0, 0.25},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			tok := lexOne(t, test.src)
			if tok.Kind != TokenNumber {
				t.Fatalf("kind = %v, want number", tok.Kind)
			}
			if tok.IsFloat != test.isFloat {
				t.Fatalf("IsFloat = %v, want %v", tok.IsFloat, test.isFloat)
			}
			if test.isFloat && tok.Float != test.fltVal {
				t.Errorf("Float = %v, want %v", tok.Float, test.fltVal)
			}
			if !test.isFloat && tok.Int != test.intVal {
				t.Errorf("Int = %v, want %v", tok.Int, test.intVal)
			}
		})
	}
}

func TestLexMalformedNumbers(t *testing.T) {
	for _, src := range []string{"0x", "0xZZ", "08", "123abc", "1e"} {
		t.Run(src, func(t *testing.T) {
			_, ds := New("test.nom", src).Lex()
			if !ds.HasErrors() {
				t.Fatalf("expected a lex error for %q", src)
			}
			if !strings.Contains(ds.Err().Error(), "is not a valid number") {
				t.Errorf("wrong error: %s", ds.Err())
			}
		})
	}
}

func TestLexStrings(t *testing.T) {
	tok := lexOne(t, `'it\'s'`)
	if tok.Kind != TokenSingleQuotedString || tok.Text != `it\'s` || tok.Interpolated {
		t.Errorf("single quoted: got %+v", tok)
	}

	tok = lexOne(t, `"hello $name\n"`)
	if tok.Kind != TokenDoubleQuotedString || !tok.Interpolated {
		t.Errorf("double quoted: got %+v", tok)
	}
	if tok.Text != `hello $name\n` {
		t.Errorf("raw text = %q", tok.Text)
	}
}

func TestLexVariables(t *testing.T) {
	tests := []struct {
		src  string
		text string
	}{
		{"$x", "x"},
		{"$foo::bar", "foo::bar"},
		{"$::top", "::top"},
		{"$0", "0"},
		{"$12", "12"},
	}
	for _, test := range tests {
		tok := lexOne(t, test.src)
		if tok.Kind != TokenVariable || tok.Text != test.text {
			t.Errorf("lex(%q) = %v %q, want variable %q", test.src, tok.Kind, tok.Text, test.text)
		}
	}
}

func TestLexRegexDisambiguation(t *testing.T) {
	// In value position a slash begins a regex.
	kinds := lexKinds(t, "$x =~ /a+b/")
	want := []TokenKind{TokenVariable, TokenMatch, TokenRegex, TokenEOF}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("regex position (-want +got):\n%s", diff)
	}

	// After a value a slash is division.
	kinds = lexKinds(t, "$x / 2")
	want = []TokenKind{TokenVariable, TokenSlash, TokenNumber, TokenEOF}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("division position (-want +got):\n%s", diff)
	}
}

func TestLexBracketDisambiguation(t *testing.T) {
	// Adjacent bracket after a value is an access expression.
	kinds := lexKinds(t, "$x[0]")
	want := []TokenKind{TokenVariable, TokenLeftBracket, TokenNumber, TokenRightBracket, TokenEOF}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("access (-want +got):\n%s", diff)
	}

	// A separated bracket begins an array literal.
	kinds = lexKinds(t, "$x [0]")
	want = []TokenKind{TokenVariable, TokenArrayStart, TokenNumber, TokenRightBracket, TokenEOF}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("array literal (-want +got):\n%s", diff)
	}
}

func TestLexHeredoc(t *testing.T) {
	src := "$x = @(EOT)\nline one\nline two\n| EOT\n$y = 2\n"
	tokens, ds := New("test.nom", src).Lex()
	if ds.HasErrors() {
		t.Fatalf("unexpected lex error: %s", ds.Err())
	}

	var heredoc *Token
	for i := range tokens {
		if tokens[i].Kind == TokenHeredoc {
			heredoc = &tokens[i]
		}
	}
	if heredoc == nil {
		t.Fatal("no heredoc token produced")
	}
	if heredoc.Text != "line one\nline two\n" {
		t.Errorf("heredoc body = %q", heredoc.Text)
	}
	if !heredoc.Interpolated {
		t.Error("unquoted tag should enable interpolation")
	}
	if heredoc.Margin != 0 {
		t.Errorf("margin = %d, want 0", heredoc.Margin)
	}

	// Lexing resumes after the end tag.
	kinds := make([]TokenKind, 0, len(tokens))
	for _, tok := range tokens {
		kinds = append(kinds, tok.Kind)
	}
	want := []TokenKind{TokenVariable, TokenAssign, TokenHeredoc, TokenVariable, TokenAssign, TokenNumber, TokenEOF}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("wrong tokens (-want +got):\n%s", diff)
	}
}

func TestLexHeredocQuotedTagAndMargin(t *testing.T) {
	src := "@(\"END\")\n  text\n  |- END\n"
	tokens, ds := New("test.nom", src).Lex()
	if ds.HasErrors() {
		t.Fatalf("unexpected lex error: %s", ds.Err())
	}
	tok := tokens[0]
	if tok.Kind != TokenHeredoc {
		t.Fatalf("kind = %v, want heredoc", tok.Kind)
	}
	if tok.Interpolated {
		t.Error("quoted tag should disable interpolation")
	}
	if tok.Margin != 2 {
		t.Errorf("margin = %d, want 2", tok.Margin)
	}
	if !tok.RemoveBreak {
		t.Error("|- should set RemoveBreak")
	}
}

func TestLexHeredocMissingEndTag(t *testing.T) {
	_, ds := New("test.nom", "@(EOT)\nno end in sight\n").Lex()
	if !ds.HasErrors() {
		t.Fatal("expected an error for a missing end tag")
	}
	if !strings.Contains(ds.Err().Error(), "heredoc end tag 'EOT'") {
		t.Errorf("wrong error: %s", ds.Err())
	}
}

func TestTokenPositions(t *testing.T) {
	tokens, ds := New("test.nom", "$a =\n  1").Lex()
	if ds.HasErrors() {
		t.Fatalf("unexpected lex error: %s", ds.Err())
	}
	num := tokens[2]
	if num.Kind != TokenNumber {
		t.Fatalf("kind = %v, want number", num.Kind)
	}
	if num.Range.Start.Line != 2 || num.Range.Start.Column != 3 {
		t.Errorf("number position = %d:%d, want 2:3", num.Range.Start.Line, num.Range.Start.Column)
	}
}
