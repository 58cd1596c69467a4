// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"strings"

	"github.com/nomoslang/nomos/internal/diags"
	"github.com/nomoslang/nomos/internal/values"
)

// Status describes how a resource entered the catalog.
type Status int

const (
	// StatusReal resources were declared normally and will be part of the
	// final catalog.
	StatusReal Status = iota

	// StatusVirtual resources (@) are inert until realized; unrealized
	// virtual resources are culled at finalization.
	StatusVirtual

	// StatusExported resources (@@) are virtual locally and additionally
	// published for other nodes to collect.
	StatusExported

	// StatusRealized marks a virtual or exported resource that a collector
	// or the realize function has made real.
	StatusRealized
)

func (s Status) String() string {
	switch s {
	case StatusReal:
		return "real"
	case StatusVirtual:
		return "virtual"
	case StatusExported:
		return "exported"
	case StatusRealized:
		return "realized"
	}
	return "unknown"
}

// Resource is a declared resource instance.
type Resource struct {
	// Ref is the fully qualified (type, title) reference.
	Ref values.ResourceType

	// DeclRange is where the resource was declared.
	DeclRange diags.SourceRange

	// Container is the class or node resource whose body declared this one,
	// or nil for top-level declarations.
	Container *Resource

	Status Status

	attributes *Attributes
}

// Metaparameters fixed by the runtime. Reserved both as resource attribute
// semantics and as forbidden parameter names for classes and defined types.
var metaparameters = map[string]bool{
	"alias":     true,
	"audit":     true,
	"before":    true,
	"loglevel":  true,
	"noop":      true,
	"notify":    true,
	"require":   true,
	"schedule":  true,
	"stage":     true,
	"subscribe": true,
	"tag":       true,
}

// IsMetaparameter reports whether name is a resource metaparameter.
func IsMetaparameter(name string) bool {
	return metaparameters[name]
}

// Attributes returns the resource's attribute collection.
func (r *Resource) Attributes() *Attributes {
	return r.attributes
}

// IsVirtual reports whether the resource is still waiting to be realized.
func (r *Resource) IsVirtual() bool {
	return r.Status == StatusVirtual || r.Status == StatusExported
}

// Key returns the uniqueness key: lowercased type name plus title.
func (r *Resource) Key() string {
	return resourceKey(r.Ref)
}

func (r *Resource) String() string {
	return r.Ref.String()
}

func resourceKey(ref values.ResourceType) string {
	return strings.ToLower(ref.Name) + "[" + ref.Title + "]"
}
