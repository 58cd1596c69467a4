// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"github.com/nomoslang/nomos/internal/values"
)

// ExportedAttribute is one attribute of an exported resource as published
// by another node.
type ExportedAttribute struct {
	Name  string
	Value values.Value
}

// ExportedResource is a resource published by another node, as returned by
// an ExportedStore.
type ExportedResource struct {
	Ref        values.ResourceType
	Attributes []ExportedAttribute
}

// ExportedStore supplies exported resources for <<| |>> collectors. The
// storage and transport behind it are external concerns; compilation only
// reads.
type ExportedStore interface {
	// Collect returns the published resources of the given (lowercased)
	// type name.
	Collect(typeName string) []ExportedResource
}
