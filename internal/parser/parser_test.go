// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nomoslang/nomos/internal/ast"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	program, ds := Parse("test.nom", src)
	if ds.HasErrors() {
		t.Fatalf("unexpected parse error: %s", ds.Err())
	}
	return program
}

func parseError(t *testing.T, src string) string {
	t.Helper()
	_, ds := Parse("test.nom", src)
	if !ds.HasErrors() {
		t.Fatalf("expected a parse error for %q", src)
	}
	return ds.Err().Error()
}

// roundTrip checks that printing and re-parsing is stable: the canonical
// rendering of a parse must re-parse to the same canonical rendering.
func roundTrip(t *testing.T, src string) {
	t.Helper()
	first := ast.Print(parse(t, src))
	second := ast.Print(parse(t, first))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("print/parse round trip is not stable (-first +second):\n%s", diff)
	}
}

func TestParseRoundTrip(t *testing.T) {
	sources := []string{
		"$x = 1 + 2 * 3",
		"$y = (1 + 2) * 3",
		"notice('hello')",
		"notice 'hello'",
		"if $x == 1 { notice('one') } elsif $x == 2 { notice('two') } else { notice('many') }",
		"unless $x { notice('no x') }",
		"case $os {\n  'linux': { include linux }\n  /bsd/: { include bsd }\n  default: { fail('unknown') }\n}",
		"$v = $enabled ? { true => 'on', false => 'off', default => 'unknown' }",
		"file { '/tmp/x':\n  ensure => present,\n  mode => '0644',\n}",
		"@user { 'bob': uid => 1000 }",
		"@@host { 'db': ip => '10.0.0.1' }",
		"File { mode => '0644' }",
		"File['/tmp/x'] { mode => '0600' }",
		"class foo($a, String $b = 'x') inherits bar { notice($a) }",
		"define mytype($ensure = present) { file { $title: ensure => $ensure } }",
		"node 'web01', /^db\\d+$/, default { include base }",
		"User <| title == 'bob' |>",
		"Sshkey <<| |>>",
		"[1, 2, 3].filter |$v| { $v > 1 }",
		"$h = { 'a' => 1, 'b' => 2 }",
		"$x = [1, 2.5, 'three', true, undef, /four/]",
		"File['/a'] -> File['/b'] ~> Service['x']",
		"$splat = [*$list, 4]",
		"include foo, bar",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			roundTrip(t, src)
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		// Multiplication binds tighter than addition.
		{"$_ = 1 + 2 * 3", "$_ = 1 + 2 * 3"},
		// Equality binds tighter than comparison.
		{"$_ = 1 == 2 < 3", "$_ = 1 == 2 < 3"},
		// and binds tighter than or.
		{"$_ = true or false and true", "$_ = true or false and true"},
		// in binds tightest of the binary operators.
		{"$_ = 'a' in $list == true", "$_ = 'a' in $list == true"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			got := ast.Print(parse(t, test.src))
			if got != test.want {
				t.Errorf("Print = %q, want %q", got, test.want)
			}
		})
	}
}

func TestParsePrecedenceShape(t *testing.T) {
	program := parse(t, "$_ = 1 + 2 * 3")
	assign := program.Body[0].(*ast.BinaryExpr)
	if assign.Op != ast.OpAssign {
		t.Fatalf("root op = %v, want assignment", assign.Op)
	}
	plus := assign.Right.(*ast.BinaryExpr)
	if plus.Op != ast.OpPlus {
		t.Fatalf("op = %v, want +", plus.Op)
	}
	times := plus.Right.(*ast.BinaryExpr)
	if times.Op != ast.OpMultiply {
		t.Fatalf("right op = %v, want *", times.Op)
	}
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	program := parse(t, "$a = $b = 1")
	outer := program.Body[0].(*ast.BinaryExpr)
	if outer.Op != ast.OpAssign {
		t.Fatalf("outer op = %v", outer.Op)
	}
	inner, ok := outer.Right.(*ast.BinaryExpr)
	if !ok || inner.Op != ast.OpAssign {
		t.Fatalf("assignment is not right-associative: %T", outer.Right)
	}
}

func TestParseResourceExpression(t *testing.T) {
	program := parse(t, "file { ['/tmp/a', '/tmp/b']:\n  ensure => present;\n  '/tmp/c':\n  ensure => absent,\n}")
	resource := program.Body[0].(*ast.ResourceExpr)
	if len(resource.Bodies) != 2 {
		t.Fatalf("bodies = %d, want 2", len(resource.Bodies))
	}
	if resource.Status != ast.StatusReal {
		t.Errorf("status = %v, want real", resource.Status)
	}
	if _, ok := resource.Bodies[0].Title.(*ast.ArrayExpr); !ok {
		t.Errorf("first title should parse as an array, got %T", resource.Bodies[0].Title)
	}
}

func TestParseVirtualAndExported(t *testing.T) {
	program := parse(t, "@user { 'a': }\n@@user { 'b': }")
	if program.Body[0].(*ast.ResourceExpr).Status != ast.StatusVirtual {
		t.Error("@ should parse as virtual")
	}
	if program.Body[1].(*ast.ResourceExpr).Status != ast.StatusExported {
		t.Error("@@ should parse as exported")
	}
}

func TestParseClassDefinition(t *testing.T) {
	program := parse(t, "class foo::bar(Integer $port = 80) inherits foo { notice($port) }")
	class := program.Body[0].(*ast.ClassDefinitionExpr)
	if class.Name != "foo::bar" || class.Parent != "foo" {
		t.Errorf("name = %q parent = %q", class.Name, class.Parent)
	}
	if len(class.Parameters) != 1 || class.Parameters[0].Name != "port" {
		t.Fatalf("parameters = %+v", class.Parameters)
	}
	if class.Parameters[0].Type == nil || class.Parameters[0].Default == nil {
		t.Error("parameter should have a type and a default")
	}
}

func TestParseNodeDefinition(t *testing.T) {
	program := parse(t, "node 'web01.example.com', /^db/, default { }")
	node := program.Body[0].(*ast.NodeDefinitionExpr)
	if len(node.Hostnames) != 3 {
		t.Fatalf("hostnames = %d, want 3", len(node.Hostnames))
	}
	if node.Hostnames[0].Kind != ast.HostnameLiteral || node.Hostnames[0].Value != "web01.example.com" {
		t.Errorf("first hostname = %+v", node.Hostnames[0])
	}
	if node.Hostnames[1].Kind != ast.HostnameRegex {
		t.Errorf("second hostname should be a regex")
	}
	if node.Hostnames[2].Kind != ast.HostnameDefault {
		t.Errorf("third hostname should be default")
	}
}

func TestParseDottedHostname(t *testing.T) {
	program := parse(t, "node web01.example.com { }")
	node := program.Body[0].(*ast.NodeDefinitionExpr)
	if len(node.Hostnames) != 1 || node.Hostnames[0].Value != "web01.example.com" {
		t.Errorf("hostnames = %+v", node.Hostnames)
	}
}

func TestParseCollector(t *testing.T) {
	program := parse(t, "User <| title == 'bob' and uid != 0 |>")
	collector := program.Body[0].(*ast.CollectionExpr)
	if collector.Exported {
		t.Error("<| |> should not be exported")
	}
	binary, ok := collector.Query.(*ast.BinaryQuery)
	if !ok || !binary.And {
		t.Fatalf("query = %#v, want an `and` query", collector.Query)
	}
}

func TestParseLambda(t *testing.T) {
	program := parse(t, "each([1, 2]) |Integer $i, $v = 1| { notice($v) }")
	call := program.Body[0].(*ast.FunctionCallExpr)
	if call.Lambda == nil {
		t.Fatal("missing lambda")
	}
	if len(call.Lambda.Parameters) != 2 {
		t.Fatalf("lambda parameters = %d, want 2", len(call.Lambda.Parameters))
	}
	if call.Lambda.Parameters[0].Type == nil {
		t.Error("first parameter should have a type")
	}
	if call.Lambda.Parameters[1].Default == nil {
		t.Error("second parameter should have a default")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"file { 'x': ensure => }", "expected expression"},
		{"if { }", "expected `{`"},
		{"class { }", "expected at least one resource body"},
		{"$x = ", "expected expression"},
		{"[1, 2", "expected `]`"},
		{"{ 'a' => }", "expected expression"},
		{"case $x { }", "expected at least one case proposition"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			got := parseError(t, test.src)
			if !strings.Contains(got, test.expected) {
				t.Errorf("error = %q, want it to contain %q", got, test.expected)
			}
		})
	}
}

func TestParseErrorMentionsFoundToken(t *testing.T) {
	got := parseError(t, "if $x \n notice('y')")
	if !strings.Contains(got, "expected `{`") {
		t.Errorf("error = %q, want expected `{`", got)
	}
	if !strings.Contains(got, "but found") {
		t.Errorf("error = %q, want it to name the found token", got)
	}
}

func TestParseEmbedded(t *testing.T) {
	program, consumed, ds := ParseEmbedded("test.nom", "{$x + 1} trailing")
	if ds.HasErrors() {
		t.Fatalf("unexpected error: %s", ds.Err())
	}
	if consumed != len("{$x + 1}") {
		t.Errorf("consumed = %d, want %d", consumed, len("{$x + 1}"))
	}
	if len(program.Body) != 1 {
		t.Fatalf("body = %d expressions, want 1", len(program.Body))
	}
	if _, ok := program.Body[0].(*ast.BinaryExpr); !ok {
		t.Errorf("expression = %T, want a binary expression", program.Body[0])
	}
}

func TestParseEmbeddedUnlexableTail(t *testing.T) {
	// The text after the closing brace is not lexable on its own; the
	// embedded parse must still succeed.
	program, consumed, ds := ParseEmbedded("test.nom", "{$x} 'unterminated")
	if ds.HasErrors() {
		t.Fatalf("unexpected error: %s", ds.Err())
	}
	if consumed != len("{$x}") {
		t.Errorf("consumed = %d, want %d", consumed, len("{$x}"))
	}
	if len(program.Body) != 1 {
		t.Fatalf("body = %d expressions, want 1", len(program.Body))
	}
}
