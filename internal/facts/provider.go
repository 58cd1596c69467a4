// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package facts defines the interface through which the compiler learns
// about the node it is compiling for. Fact acquisition (system inspection,
// fact files, remote services) lives behind the Provider interface and is
// not this module's concern.
package facts

import (
	"sort"

	"github.com/nomoslang/nomos/internal/values"
)

// Provider supplies node facts by name.
type Provider interface {
	// Lookup returns the fact value, or false when the fact is unknown.
	Lookup(name string) (values.Value, bool)

	// Names enumerates the known fact names.
	Names() []string
}

// Static is a fixed in-memory fact set, useful for tests and for callers
// that acquired facts elsewhere.
type Static map[string]values.Value

// Lookup implements Provider.
func (s Static) Lookup(name string) (values.Value, bool) {
	v, ok := s[name]
	return v, ok
}

// Names implements Provider.
func (s Static) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
