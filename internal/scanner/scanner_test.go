// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"strings"
	"testing"

	"github.com/nomoslang/nomos/internal/catalog"
	"github.com/nomoslang/nomos/internal/parser"
)

func scan(t *testing.T, cat *catalog.Catalog, src string) error {
	t.Helper()
	program, ds := parser.Parse("test.nom", src)
	if ds.HasErrors() {
		t.Fatalf("unexpected parse error: %s", ds.Err())
	}
	return Scan(cat, program).Err()
}

func mustScan(t *testing.T, cat *catalog.Catalog, src string) {
	t.Helper()
	if err := scan(t, cat, src); err != nil {
		t.Fatalf("unexpected scan error: %s", err)
	}
}

func scanErr(t *testing.T, src string) string {
	t.Helper()
	err := scan(t, catalog.New(), src)
	if err == nil {
		t.Fatalf("expected a scan error for %q", src)
	}
	return err.Error()
}

func TestScanRegistersDefinitions(t *testing.T) {
	cat := catalog.New()
	mustScan(t, cat, `
class base { }
class base::users inherits base { }
define mytype($ensure) { }
node default { }
`)

	if defs := cat.FindClass("base"); len(defs) != 1 {
		t.Errorf("base definitions = %d, want 1", len(defs))
	}
	if defs := cat.FindClass("base::users"); len(defs) != 1 {
		t.Errorf("base::users definitions = %d, want 1", len(defs))
	} else if defs[0].Parent != "base" {
		t.Errorf("parent = %q, want base", defs[0].Parent)
	}
	if cat.FindDefinedType("mytype") == nil {
		t.Error("mytype was not registered")
	}
	if !cat.HasNodes() {
		t.Error("node definition was not registered")
	}
}

func TestScanNestedClassQualification(t *testing.T) {
	cat := catalog.New()
	mustScan(t, cat, "class outer { class inner { } }")
	if cat.FindClass("outer::inner") == nil {
		t.Error("nested class should register under its qualified name")
	}
}

func TestScanMultipleClassDefinitions(t *testing.T) {
	cat := catalog.New()
	mustScan(t, cat, "class a { }\nclass a { }")
	if defs := cat.FindClass("a"); len(defs) != 2 {
		t.Errorf("definitions = %d, want 2", len(defs))
	}
}

func TestScanInheritanceConflict(t *testing.T) {
	cat := catalog.New()
	mustScan(t, cat, "class b { }\nclass c { }\nclass a inherits b { }")
	err := scan(t, cat, "class a inherits c { }")
	if err == nil {
		t.Fatal("expected an inheritance conflict error")
	}
	if !strings.Contains(err.Error(), "already inherits from 'b'") {
		t.Errorf("wrong error: %s", err)
	}
}

func TestScanValidationErrors(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"class main { }", "built-in class"},
		{"class settings { }", "built-in class"},
		{"class foo($title) { }", "reserved and cannot be used"},
		{"class foo($name) { }", "reserved and cannot be used"},
		{"class foo(*$rest) { }", "captures rest"},
		{"define bar($before) { }", "reserved for resource metaparameter"},
		{"if true { class nested { } }", "top-level or inside a class"},
		{"each([1]) |$x| { define d { } }", "top-level or inside a class"},
		{"if true { node default { } }", "top-level or inside a class"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			got := scanErr(t, test.src)
			if !strings.Contains(got, test.expected) {
				t.Errorf("error = %q, want it to contain %q", got, test.expected)
			}
		})
	}
}

func TestScanClassAndDefinedTypeCollision(t *testing.T) {
	cat := catalog.New()
	mustScan(t, cat, "class dual { }")
	if err := scan(t, cat, "define dual { }"); err == nil || !strings.Contains(err.Error(), "previously defined as a class") {
		t.Errorf("wrong error: %v", err)
	}

	cat = catalog.New()
	mustScan(t, cat, "define dual { }")
	if err := scan(t, cat, "class dual { }"); err == nil || !strings.Contains(err.Error(), "previously defined as a defined type") {
		t.Errorf("wrong error: %v", err)
	}
}

func TestScanDuplicateNodes(t *testing.T) {
	cat := catalog.New()
	mustScan(t, cat, "node default { }\nnode 'web' { }\nnode /^db/ { }")

	for _, src := range []string{
		"node default { }",
		"node 'web' { }",
		"node /^db/ { }",
	} {
		if err := scan(t, cat, src); err == nil || !strings.Contains(err.Error(), "previously defined") {
			t.Errorf("scan(%q) error = %v, want previously defined", src, err)
		}
	}
}

func TestScanDuplicateDefinedType(t *testing.T) {
	cat := catalog.New()
	mustScan(t, cat, "define d { }")
	if err := scan(t, cat, "define d { }"); err == nil || !strings.Contains(err.Error(), "previously defined") {
		t.Errorf("wrong error: %v", err)
	}
}
