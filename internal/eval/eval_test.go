// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package eval_test

import (
	"strings"
	"testing"

	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/eval"
	"github.com/nomoslang/nomos/internal/facts"
	"github.com/nomoslang/nomos/internal/logging"
	"github.com/nomoslang/nomos/internal/parser"
	"github.com/nomoslang/nomos/internal/scanner"
	"github.com/nomoslang/nomos/internal/values"
)

type recordingSink struct {
	records []logging.Record
}

func (s *recordingSink) Log(r logging.Record) {
	s.records = append(s.records, r)
}

func (s *recordingSink) messages(level logging.Level) []string {
	var out []string
	for _, r := range s.records {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

type result struct {
	catalog *catalog.Catalog
	context *eval.Context
	sink    *recordingSink
	diags   diags.Diagnostics
}

// run compiles one source snippet through lex/parse/scan/evaluate without
// finalizing, so tests can inspect virtual resources before culling.
func run(t *testing.T, src string, provider facts.Provider) result {
	t.Helper()
	cat := catalog.New()
	generated := diags.SourceRange{Filename: "<generated>", Start: diags.InitialPos, End: diags.InitialPos}
	main, err := cat.Add(values.ResourceType{Name: "class", Title: "main"}, generated, nil, catalog.StatusReal, nil)
	if err != nil {
		t.Fatalf("bootstrap: %s", err)
	}
	cat.MarkClassDeclared("main")

	if provider == nil {
		provider = facts.Static{}
	}
	sink := &recordingSink{}
	ctx := eval.NewContext(cat, provider, sink, main)

	program, ds := parser.Parse("test.nom", src)
	if ds.HasErrors() {
		t.Fatalf("unexpected parse error: %s", ds.Err())
	}
	if ds := scanner.Scan(cat, program); ds.HasErrors() {
		t.Fatalf("unexpected scan error: %s", ds.Err())
	}

	evalDiags := eval.New(ctx, program).Evaluate()
	return result{catalog: cat, context: ctx, sink: sink, diags: evalDiags}
}

// value evaluates src (which must assign $result) and returns the binding.
func value(t *testing.T, src string) values.Value {
	t.Helper()
	res := run(t, src, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected evaluation error: %s", res.diags.Err())
	}
	binding := res.context.TopScope().Get("result")
	if binding == nil {
		t.Fatal("$result was not assigned")
	}
	return binding.Value
}

func valueString(t *testing.T, src string) string {
	t.Helper()
	return values.Deref(value(t, src)).String()
}

// evalErr evaluates src and returns the error message.
func evalErr(t *testing.T, src string) string {
	t.Helper()
	res := run(t, src, nil)
	if !res.diags.HasErrors() {
		t.Fatalf("expected an evaluation error for %q", src)
	}
	return res.diags.Err().Error()
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = 1 + 2", "3"},
		{"$result = 2 * 3 + 4", "10"},
		{"$result = 7 % 3", "1"},
		{"$result = 10 / 4", "2"},
		{"$result = 1 + 2.5", "3.5"},
		{"$result = 10.0 / 4", "2.5"},
		{"$result = -3", "-3"},
		{"$result = 1 << 4", "16"},
		{"$result = 16 >> 2", "4"},
		{"$result = [1, 2] + [3]", "[1, 2, 3]"},
		{"$result = [1] << 2", "[1, 2]"},
		{"$result = {'a' => 1} + {'b' => 2}", "{a => 1, b => 2}"},
		{"$result = {'a' => 1} + {'a' => 2}", "{a => 2}"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"$result = 1 / 0", "cannot divide by zero"},
		{"$result = 1.0 / 0.0", "cannot divide by zero"},
		{"$result = 1 % 0", "cannot divide by zero"},
		{"$result = (0 - 9223372036854775807 - 1) / -1", "arithmetic overflow"},
		{"$result = 9223372036854775807 + 1", "arithmetic overflow"},
		{"$result = 1 + 'nope'", "expected Numeric"},
		{"$result = 'a' * 2", "expected Numeric"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			got := evalErr(t, test.src)
			if !strings.Contains(got, test.expected) {
				t.Errorf("error = %q, want it to contain %q", got, test.expected)
			}
		})
	}
}

func TestComparison(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = 1 < 2", "true"},
		{"$result = 2 <= 2", "true"},
		{"$result = 3 > 2.5", "true"},
		{"$result = 'Apple' == 'apple'", "true"},
		{"$result = 'a' < 'B'", "true"}, // case-insensitive ordering
		{"$result = 1 == 1.0", "true"},
		{"$result = 1 != 2", "true"},
		{"$result = Numeric <= Integer", "true"},
		{"$result = Integer <= Numeric", "false"},
		{"$result = String <= String", "true"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestLogicalOperators(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = true and false", "false"},
		{"$result = true or false", "true"},
		{"$result = !true", "false"},
		{"$result = undef or 'fallback'", "true"},
		// Short circuiting: the right side would fail if evaluated.
		{"$result = false and (1 / 0)", "false"},
		{"$result = true or (1 / 0)", "true"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestInOperator(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = 'ell' in 'Hello'", "true"},
		{"$result = 'xyz' in 'hello'", "false"},
		{"$result = 2 in [1, 2, 3]", "true"},
		{"$result = 4 in [1, 2, 3]", "false"},
		{"$result = 'a' in {'a' => 1}", "true"},
		{"$result = 1 in {'a' => 1}", "false"},
		{"$result = /^h/ in ['x', 'hat']", "true"},
		{"$result = Integer in ['x', 3]", "true"},
		{"$result = Integer in ['x', 'y']", "false"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestMatchSetsCaptureVariables(t *testing.T) {
	src := `
if 'hello world' =~ /^(\w+) (\w+)$/ {
  $result = "$0|$1|$2"
}
`
	if got := valueString(t, src); got != "hello world|hello|world" {
		t.Errorf("captures = %q", got)
	}
}

func TestMatchVariablesScopedToBlock(t *testing.T) {
	src := `
if 'abc' =~ /(b)/ {
  $inner = $1
}
$result = "$1"
`
	// Outside the block the match variable is gone.
	if got := valueString(t, src); got != "" {
		t.Errorf("$1 outside the match block = %q, want empty", got)
	}
}

func TestNotMatch(t *testing.T) {
	if got := valueString(t, "$result = 'abc' !~ /z/"); got != "true" {
		t.Errorf("!~ = %s, want true", got)
	}
}

func TestSelector(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = 'prod' ? { 'dev' => 1, 'prod' => 2, default => 3 }", "2"},
		{"$result = 'other' ? { 'dev' => 1, default => 3 }", "3"},
		{"$result = 'db42' ? { /^db/ => 'database', default => 'other' }", "database"},
		{"$result = 42 ? { Integer => 'int', default => 'other' }", "int"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestSelectorWithoutMatchFails(t *testing.T) {
	got := evalErr(t, "$result = 'x' ? { 'y' => 1 }")
	if !strings.Contains(got, "no matching selector case") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestCase(t *testing.T) {
	src := `
case 'db42' {
  'web': { $result = 'web' }
  /^db/: { $result = 'database' }
  default: { $result = 'other' }
}
`
	if got := valueString(t, src); got != "database" {
		t.Errorf("value = %s, want database", got)
	}
}

func TestCaseTypeMatching(t *testing.T) {
	src := `
case 42 {
  String: { $result = 'string' }
  Integer: { $result = 'integer' }
}
`
	if got := valueString(t, src); got != "integer" {
		t.Errorf("value = %s, want integer", got)
	}
}

func TestCaseWithoutMatchIsUndef(t *testing.T) {
	res := run(t, "$result = case 'x' { 'y': { notice('nope') } }", nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	if got := res.context.TopScope().Get("result"); got == nil || !values.IsUndef(got.Value) {
		t.Errorf("result = %v, want undef", got)
	}
}

func TestAccess(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$a = [1, 2, 3] $result = $a[1]", "2"},
		{"$a = [1, 2, 3] $result = $a[-1]", "3"},
		{"$a = [1, 2, 3] $result = $a[5]", ""},
		{"$a = [1, 2, 3, 4] $result = $a[1, 2]", "[2, 3]"},
		{"$h = {'a' => 1} $result = $h['a']", "1"},
		{"$h = {'a' => 1} $result = $h['missing']", ""},
		{"$s = 'hello' $result = $s[1]", "e"},
		{"$s = 'hello' $result = $s[1, 3]", "ell"},
		{"$s = 'hello' $result = $s[-2, 2]", "lo"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %q, want %q", got, test.want)
			}
		})
	}
}

func TestTypeParameterization(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = Integer[1, 5]", "Integer[1, 5]"},
		{"$result = Array[String]", "Array[String]"},
		{"$result = Hash[String, Integer]", "Hash[String, Integer]"},
		{"$result = Optional[Boolean]", "Optional[Boolean]"},
		{"$result = Enum['a', 'b']", "Enum['a', 'b']"},
		{"$result = Variant[String, Integer]", "Variant[String, Integer]"},
		{"$result = File['/tmp/x']", "File[/tmp/x]"},
		{"$result = Class['apt']", "Class[apt]"},
		{"$result = Resource['file', '/x']", "File[/x]"},
	}
	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestInterpolation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"simple variable", `$name = 'world' $result = "hello $name"`, "hello world"},
		{"braced variable", `$name = 'world' $result = "hello ${name}"`, "hello world"},
		{"expression", `$result = "sum: ${1 + 2}"`, "sum: 3"},
		{"access transform", `$list = ['a', 'b'] $result = "${list[1]}"`, "b"},
		{"method transform", `$list = [1, 2, 3] $result = "${list.filter |$v| { $v > 1 }}"`, "[2, 3]"},
		{"escapes", `$result = "a\tb\nc\$d"`, "a\tb\nc$d"},
		{"unicode escape", `$result = "A\u{1F600}"`, "A\U0001F600"},
		{"undef renders empty", `$result = "x${undef}y"`, "xy"},
		{"single quotes do not interpolate", `$x = 1 $result = '$x'`, "$x"},
		{"dollar without name", `$result = "100$ extra"`, "100$ extra"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %q, want %q", got, test.want)
			}
		})
	}
}

func TestHeredocInterpolation(t *testing.T) {
	// The | column sets the margin stripped from each body line, and an
	// unquoted tag enables interpolation.
	src := "$name = 'world'\n$result = @(EOT)\n  hello $name\n  | EOT\n"
	if got := valueString(t, src); got != "hello world\n" {
		t.Errorf("heredoc = %q, want %q", got, "hello world\n")
	}
}

func TestHeredocRemoveBreak(t *testing.T) {
	src := "$result = @(\"EOT\")\ncontent\n|- EOT\n"
	if got := valueString(t, src); got != "content" {
		t.Errorf("heredoc = %q, want %q", got, "content")
	}
}

func TestAssignment(t *testing.T) {
	got := evalErr(t, "$x = 1 $x = 2")
	if !strings.Contains(got, "previously assigned") {
		t.Errorf("wrong error: %s", got)
	}

	got = evalErr(t, "$0 = 1")
	if !strings.Contains(got, "reserved as a match variable") {
		t.Errorf("wrong error: %s", got)
	}

	got = evalErr(t, "$foo::bar = 1")
	if !strings.Contains(got, "local to the current scope") {
		t.Errorf("wrong error: %s", got)
	}

	got = evalErr(t, "1 = 2")
	if !strings.Contains(got, "assignment can only be performed on variables") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestAssignmentOverFactFails(t *testing.T) {
	res := run(t, "$osfamily = 'x'", facts.Static{"osfamily": values.String("debian")})
	if !res.diags.HasErrors() || !strings.Contains(res.diags.Err().Error(), "a fact or node parameter exists") {
		t.Errorf("err = %v", res.diags.Err())
	}
}

func TestUnproductiveExpression(t *testing.T) {
	got := evalErr(t, "1 + 1 notice('x')")
	if !strings.Contains(got, "unproductive expressions may only appear last in a block") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestFactLookup(t *testing.T) {
	provider := facts.Static{"osfamily": values.String("debian")}
	res := run(t, `$result = "$osfamily/${facts['osfamily']}"`, provider)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	got := res.context.TopScope().Get("result").Value
	if !values.Equals(got, values.String("debian/debian")) {
		t.Errorf("result = %v", got)
	}
}

func TestIterationFunctions(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = [1, 2, 3].filter |$v| { $v > 1 }", "[2, 3]"},
		{"$result = [1, 2, 3].map |$v| { $v * 10 }", "[10, 20, 30]"},
		{"$result = [1, 2, 3].reduce |$memo, $v| { $memo + $v }", "6"},
		{"$result = [1, 2, 3].reduce(10) |$memo, $v| { $memo + $v }", "16"},
		{"$result = {'a' => 1, 'b' => 2}.filter |$k, $v| { $v > 1 }", "{b => 2}"},
		{"$result = 3.map |$v| { $v }", "[0, 1, 2]"},
		{"$result = Integer[2, 4].map |$v| { $v }", "[2, 3, 4]"},
		{"$result = with(1, 2) |$a, $b| { $a + $b }", "3"},
		{"$result = 'ab'.map |$c| { $c }", "[a, b]"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestEachReturnsReceiver(t *testing.T) {
	src := "$acc = [] $result = [1, 2].each |$v| { notice($v) }"
	if got := valueString(t, src); got != "[1, 2]" {
		t.Errorf("each = %s, want the receiver", got)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = 'a,b,,c'.split(',')", "[a, b, , c]"},
		{"$result = split('a b', ' ')", "[a, b]"},
		{"$result = 'a1b2c'.split(/\\d/)", "[a, b, c]"},
		{"$result = 'abc'.split('')", "[a, b, c]"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestSplatUnfolding(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$a = [2, 3] $result = [1, *$a, 4]", "[1, 2, 3, 4]"},
		{"$h = {'a' => 1} $result = *$h", "[[a, 1]]"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %s, want %s", got, test.want)
			}
		})
	}
}

func TestHashArrayRoundTrip(t *testing.T) {
	// A hash exploded to [K, V] pairs and merged back is unchanged.
	src := "$h = {'a' => 1, 'b' => 2} $result = {} + *$h == $h"
	if got := valueString(t, src); got != "true" {
		t.Errorf("round trip = %s, want true", got)
	}
}

func TestMiscFunctions(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"$result = sprintf('%s=%d', 'x', 42)", "x=42"},
		{"$result = assert_type(Integer, 5)", "5"},
		{"$result = shellquote('ab', 'a b', \"it's\")", `ab 'a b' "it's"`},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			if got := valueString(t, test.src); got != test.want {
				t.Errorf("value = %q, want %q", got, test.want)
			}
		})
	}
}

func TestAssertTypeFailure(t *testing.T) {
	got := evalErr(t, "$result = assert_type(Integer, 'x')")
	if !strings.Contains(got, "expected Integer but found String") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestFail(t *testing.T) {
	got := evalErr(t, "fail('something', 'broke')")
	if !strings.Contains(got, "something broke") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestUnknownFunctionSuggestion(t *testing.T) {
	got := evalErr(t, "notcie('typo')")
	if !strings.Contains(got, "unknown function 'notcie'") {
		t.Errorf("wrong error: %s", got)
	}
	if !strings.Contains(got, "did you mean 'notice'") {
		t.Errorf("expected a suggestion: %s", got)
	}
}

func TestLoggingFunctions(t *testing.T) {
	res := run(t, "notice('hello', 'there') debug('quiet')", nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	if got := res.sink.messages(logging.Notice); len(got) != 1 || got[0] != "hello there" {
		t.Errorf("notice messages = %v", got)
	}
	if got := res.sink.messages(logging.Debug); len(got) != 1 || got[0] != "quiet" {
		t.Errorf("debug messages = %v", got)
	}
}

func TestResourceDeclaration(t *testing.T) {
	res := run(t, `
file { '/tmp/x':
  ensure => present,
  mode   => '0644',
}
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	r := res.catalog.Find(values.ResourceType{Name: "file", Title: "/tmp/x"})
	if r == nil {
		t.Fatal("File[/tmp/x] was not declared")
	}
	if got := r.Attributes().Get("ensure"); !values.Equals(got, values.String("present")) {
		t.Errorf("ensure = %v", got)
	}
	if r.Container == nil || r.Container.Ref.Title != "main" {
		t.Errorf("container = %v, want Class[main]", r.Container)
	}
}

func TestResourceMultipleTitles(t *testing.T) {
	res := run(t, "file { ['/a', '/b']: ensure => present }", nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	for _, title := range []string{"/a", "/b"} {
		if res.catalog.Find(values.ResourceType{Name: "file", Title: title}) == nil {
			t.Errorf("File[%s] missing", title)
		}
	}
}

func TestResourceDefaultBody(t *testing.T) {
	res := run(t, `
file {
  default:
    mode => '0644';
  '/a':
    ensure => present;
  '/b':
    mode => '0600',
}
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	a := res.catalog.Find(values.ResourceType{Name: "file", Title: "/a"})
	if got := a.Attributes().Get("mode"); !values.Equals(got, values.String("0644")) {
		t.Errorf("default body mode = %v", got)
	}
	b := res.catalog.Find(values.ResourceType{Name: "file", Title: "/b"})
	if got := b.Attributes().Get("mode"); !values.Equals(got, values.String("0600")) {
		t.Errorf("own mode wins over default body: %v", got)
	}
}

func TestDuplicateResourceFails(t *testing.T) {
	got := evalErr(t, "file { '/x': }\nfile { '/x': }")
	if !strings.Contains(got, "previously declared") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestResourceDefaultsExpression(t *testing.T) {
	res := run(t, `
File { mode => '0644' }
file { '/a': }
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	a := res.catalog.Find(values.ResourceType{Name: "file", Title: "/a"})
	if got := a.Attributes().Get("mode"); !values.Equals(got, values.String("0644")) {
		t.Errorf("mode = %v, want scope default applied", got)
	}
}

func TestMetaparameterValidation(t *testing.T) {
	got := evalErr(t, "file { '/x': noop => 'yes' }")
	if !strings.Contains(got, "expected Boolean for attribute 'noop'") {
		t.Errorf("wrong error: %s", got)
	}

	res := run(t, "file { '/x': before => File['/y'] }\nfile { '/y': }", nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	x := res.catalog.Find(values.ResourceType{Name: "file", Title: "/x"})
	if _, ok := values.Deref(x.Attributes().Get("before")).(*values.Array); !ok {
		t.Error("relationship metaparameters should coerce to arrays")
	}
}

func TestVirtualAndCollector(t *testing.T) {
	res := run(t, "@user { 'bob': uid => 1000 }\nUser <| title == 'bob' |>", nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	bob := res.catalog.Find(values.ResourceType{Name: "user", Title: "bob"})
	if bob == nil || bob.Status != catalog.StatusRealized {
		t.Fatalf("User[bob] = %+v, want realized", bob)
	}
}

func TestCollectorQueryFiltering(t *testing.T) {
	res := run(t, `
@user { 'alice': uid => 1 }
@user { 'bob': uid => 2 }
User <| uid == 2 |>
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	if r := res.catalog.Find(values.ResourceType{Name: "user", Title: "alice"}); r.Status != catalog.StatusVirtual {
		t.Error("alice should stay virtual")
	}
	if r := res.catalog.Find(values.ResourceType{Name: "user", Title: "bob"}); r.Status != catalog.StatusRealized {
		t.Error("bob should be realized")
	}
}

func TestRealizeFunction(t *testing.T) {
	res := run(t, "@user { 'bob': }\nrealize(User['bob'])", nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	if r := res.catalog.Find(values.ResourceType{Name: "user", Title: "bob"}); r.Status != catalog.StatusRealized {
		t.Error("realize() should realize the virtual resource")
	}
}

func TestEdgeOperators(t *testing.T) {
	res := run(t, `
file { '/a': }
file { '/b': }
service { 'x': }
File['/a'] -> File['/b'] ~> Service['x']
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	a := res.catalog.Find(values.ResourceType{Name: "file", Title: "/a"})
	if a.Attributes().Get("before") == nil {
		t.Error("-> should append to before")
	}
	b := res.catalog.Find(values.ResourceType{Name: "file", Title: "/b"})
	if b.Attributes().Get("notify") == nil {
		t.Error("~> should append to notify")
	}

	if ds := res.catalog.Finalize(); ds.HasErrors() {
		t.Fatalf("Finalize: %s", ds.Err())
	}
	if got := len(res.catalog.Edges()); got != 2 {
		t.Errorf("edges = %d, want 2", got)
	}
}

func TestEdgeToMissingResourceFails(t *testing.T) {
	got := evalErr(t, "file { '/a': }\nFile['/a'] -> File['/missing']")
	if !strings.Contains(got, "does not exist in the catalog") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestClassDeclaration(t *testing.T) {
	res := run(t, `
class greeter {
  notice('hi')
}
include greeter
include greeter
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	// The body evaluated exactly once even though included twice.
	if got := res.sink.messages(logging.Notice); len(got) != 1 || got[0] != "hi" {
		t.Errorf("notices = %v, want exactly one 'hi'", got)
	}
	if !res.catalog.ClassDeclared("greeter") {
		t.Error("greeter should be marked declared")
	}
}

func TestClassParameters(t *testing.T) {
	res := run(t, `
class listener(Integer $port, String $bind = '0.0.0.0') {
  notice("$bind:$port")
}
class { 'listener': port => 8080 }
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	if got := res.sink.messages(logging.Notice); len(got) != 1 || got[0] != "0.0.0.0:8080" {
		t.Errorf("notices = %v", got)
	}
}

func TestClassParameterTypeError(t *testing.T) {
	got := evalErr(t, `
class listener(Integer $port) { }
class { 'listener': port => 'not-a-number' }
`)
	if !strings.Contains(got, "expected type Integer") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestClassInvalidParameterFails(t *testing.T) {
	got := evalErr(t, `
class simple { }
class { 'simple': bogus => 1 }
`)
	if !strings.Contains(got, "not a valid parameter for class 'simple'") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestClassInheritanceScoping(t *testing.T) {
	res := run(t, `
class base {
  $greeting = 'hello'
}
class child inherits base {
  notice($greeting)
}
include child
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	if got := res.sink.messages(logging.Notice); len(got) != 1 || got[0] != "hello" {
		t.Errorf("notices = %v, want hello from the parent scope", got)
	}
}

func TestQualifiedVariableLookup(t *testing.T) {
	res := run(t, `
class config {
  $port = 8080
}
include config
$result = $config::port
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	got := res.context.TopScope().Get("result").Value
	if !values.Equals(got, values.Integer(8080)) {
		t.Errorf("result = %v, want 8080", got)
	}
}

func TestUndeclaredClassLookupWarns(t *testing.T) {
	res := run(t, `
class config { $port = 1 }
$result = $config::port
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	warned := false
	for _, r := range res.sink.records {
		if r.Level == logging.Warning && strings.Contains(r.Message, "has not been declared") {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning for looking into an undeclared class")
	}
}

func TestDefinedType(t *testing.T) {
	res := run(t, `
define greeting($message = 'hello') {
  notice("$title: $message")
}
greeting { 'first': }
greeting { 'second': message => 'howdy' }
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	got := res.sink.messages(logging.Notice)
	want := []string{"first: hello", "second: howdy"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("notices = %v, want %v", got, want)
	}

	// Each instance is a resource in the catalog.
	if res.catalog.Find(values.ResourceType{Name: "greeting", Title: "first"}) == nil {
		t.Error("Greeting[first] missing from the catalog")
	}
}

func TestResourceOverrideAppend(t *testing.T) {
	res := run(t, `
file { '/x': }
File['/x'] { tag +> 'two' }
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	x := res.catalog.Find(values.ResourceType{Name: "file", Title: "/x"})
	if got := x.Attributes().Get("tag").String(); got != "[two]" {
		t.Errorf("tag = %s, want [two]", got)
	}
}

func TestResourceOverrideAppendToSetAttributeFails(t *testing.T) {
	got := evalErr(t, `
file { '/x': tag => 'one' }
File['/x'] { tag +> 'two' }
`)
	if !strings.Contains(got, "cannot be appended to") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestOverrideClassFails(t *testing.T) {
	got := evalErr(t, `
class c { }
include c
Class['c'] { noop => true }
`)
	if !strings.Contains(got, "cannot override attributes of a class resource") {
		t.Errorf("wrong error: %s", got)
	}
}

func TestDefinedFunction(t *testing.T) {
	src := `
class known { }
define knowntype { }
$result = [defined('known'), defined('knowntype'), defined('unknown')]
`
	if got := valueString(t, src); got != "[true, true, false]" {
		t.Errorf("defined = %s", got)
	}
}

func TestRequireFunctionAddsDependency(t *testing.T) {
	res := run(t, `
class dep { }
class app {
  require dep
}
include app
`, nil)
	if res.diags.HasErrors() {
		t.Fatalf("unexpected error: %s", res.diags.Err())
	}
	app := res.catalog.Find(values.ResourceType{Name: "class", Title: "app"})
	if app == nil || app.Attributes().Get("require") == nil {
		t.Error("require() should record a dependency on the included class")
	}
}
