// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package version holds the compiler's version string, set at build time
// via -ldflags for release builds.
package version

// Version is the current version of the compiler.
var Version = "0.1.0-dev"
