// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package scope

import (
	"testing"

	"github.com/nomoslang/nomos/internal/facts"
	"github.com/nomoslang/nomos/internal/values"
)

func TestSetAndGet(t *testing.T) {
	top := NewTop(facts.Static{}, nil)

	if previous := top.Set("x", values.Integer(1), "a.nom", 1); previous != nil {
		t.Fatalf("first Set returned %+v", previous)
	}
	if previous := top.Set("x", values.Integer(2), "a.nom", 2); previous == nil {
		t.Fatal("reassignment should return the existing binding")
	}
	if got := top.Get("x"); got == nil || !values.Equals(got.Value, values.Integer(1)) {
		t.Errorf("x = %v, want 1", got)
	}
}

func TestShadowingInChildScope(t *testing.T) {
	top := NewTop(facts.Static{}, nil)
	top.Set("x", values.Integer(1), "a.nom", 1)

	child := NewChild(top, nil)
	if previous := child.Set("x", values.Integer(2), "a.nom", 5); previous != nil {
		t.Fatal("shadowing in a nested scope should be allowed")
	}
	if got := child.Get("x"); !values.Equals(got.Value, values.Integer(2)) {
		t.Errorf("child x = %v, want 2", got.Value)
	}
	if got := top.Get("x"); !values.Equals(got.Value, values.Integer(1)) {
		t.Errorf("top x = %v, want 1", got.Value)
	}
}

func TestFactFallbackAtTop(t *testing.T) {
	provider := facts.Static{"osfamily": values.String("debian")}
	top := NewTop(provider, nil)
	child := NewChild(top, nil)

	got := child.Get("osfamily")
	if got == nil || !values.Equals(got.Value, values.String("debian")) {
		t.Fatalf("osfamily = %+v, want debian", got)
	}
	if got.File != "" {
		t.Error("fact bindings should have no assignment path")
	}

	// Assigning over a fact is rejected.
	if previous := top.Set("osfamily", values.String("redhat"), "a.nom", 1); previous == nil {
		t.Error("assigning over a fact should return the existing binding")
	}
}

func TestFactsHash(t *testing.T) {
	provider := facts.Static{
		"kernel": values.String("Linux"),
		"os":     values.String("ubuntu"),
	}
	top := NewTop(provider, nil)
	child := NewChild(top, nil)

	h := child.Get("facts").Value.(*values.Hash)
	if h.Len() != 2 {
		t.Fatalf("facts hash has %d entries, want 2", h.Len())
	}
	if got, ok := h.Get(values.String("kernel")); !ok || !values.Equals(got, values.String("Linux")) {
		t.Errorf("facts[kernel] = %v", got)
	}
}

func TestDefaults(t *testing.T) {
	top := NewTop(facts.Static{}, nil)
	top.SetDefaults("file", []DefaultAttribute{{Name: "mode", Value: values.String("0644")}})

	child := NewChild(top, nil)
	child.SetDefaults("file", []DefaultAttribute{{Name: "owner", Value: values.String("root")}})

	got := child.DefaultsFor("File")
	if len(got) != 2 {
		t.Fatalf("defaults = %d, want 2", len(got))
	}
	// Outermost first, so inner scopes win when applied in order.
	if got[0].Name != "mode" || got[1].Name != "owner" {
		t.Errorf("defaults order = %s, %s", got[0].Name, got[1].Name)
	}
}
