// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package tracing provides the OpenTelemetry tracer and the semantic
// attribute conventions used across the compiler. Exporter configuration
// belongs to the embedding process; with no SDK installed the tracer is a
// no-op.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nomoslang/nomos"

// Tracer returns the compiler's tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// NodeName returns the attribute naming the node a compilation targets.
func NodeName(name string) attribute.KeyValue {
	return attribute.String("nomos.node.name", name)
}

// ManifestPath returns the attribute naming the manifest a span works on.
func ManifestPath(path string) attribute.KeyValue {
	return attribute.String("nomos.manifest.path", path)
}

// ResourceCount returns the attribute carrying a compiled catalog's
// resource count.
func ResourceCount(n int) attribute.KeyValue {
	return attribute.Int("nomos.catalog.resources", n)
}
