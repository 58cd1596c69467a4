// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package diags contains the diagnostics model shared by every stage of the
// compiler: source positions, severity-tagged messages, and helpers for
// accumulating them.
//
// Diagnostics are values, not errors. A stage that can produce more than one
// problem returns a Diagnostics collection and the caller decides whether the
// presence of errors aborts the compilation. This keeps warning-only paths
// (deprecations, suspicious constructs) flowing through the same plumbing as
// hard failures.
package diags

import (
	"fmt"
)

// Severity classifies a diagnostic.
type Severity rune

const (
	// Error diagnostics abort the compilation once the current stage returns.
	Error Severity = 'E'

	// Warning diagnostics are reported but do not affect the result.
	Warning Severity = 'W'
)

// Kind identifies which stage of the pipeline raised a diagnostic. It is
// deliberately coarse; messages carry the detail.
type Kind string

const (
	LexError        Kind = "lex error"
	ParseError      Kind = "parse error"
	EvalError       Kind = "evaluation error"
	ArgumentError   Kind = "argument error"
	RedefinitionErr Kind = "redefinition error"
	UnknownResource Kind = "unknown resource"
	CycleError      Kind = "dependency cycle"
	SettingsError   Kind = "settings error"
)

// Diagnostic is a single problem found during compilation. Subject is nil for
// problems with no particular source location (for example dependency cycles
// discovered during finalization).
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Summary  string
	Subject  *SourceRange

	// SourceLine is the text of the offending line, when the origin had it
	// available. Renderers print it beneath the message with a caret at the
	// subject column.
	SourceLine string
}

func (d *Diagnostic) Error() string {
	if d.Subject == nil {
		return d.Summary
	}
	return fmt.Sprintf("%s: %s", d.Subject, d.Summary)
}

// Diagnostics is a collection of diagnostics, in the order they were raised.
type Diagnostics []*Diagnostic

// Append adds the given diagnostics to the collection, flattening nested
// collections and plain errors. Nil entries are ignored so callers can append
// unconditionally.
func (ds Diagnostics) Append(more ...interface{}) Diagnostics {
	for _, item := range more {
		switch v := item.(type) {
		case nil:
		case *Diagnostic:
			if v != nil {
				ds = append(ds, v)
			}
		case Diagnostics:
			ds = append(ds, v...)
		case error:
			ds = append(ds, &Diagnostic{
				Severity: Error,
				Kind:     EvalError,
				Summary:  v.Error(),
			})
		default:
			panic(fmt.Sprintf("can't append %T to Diagnostics", item))
		}
	}
	return ds
}

// HasErrors returns true if any diagnostic in the collection is an error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// ErrCount returns the number of error diagnostics.
func (ds Diagnostics) ErrCount() int {
	n := 0
	for _, d := range ds {
		if d.Severity == Error {
			n++
		}
	}
	return n
}

// WarnCount returns the number of warning diagnostics.
func (ds Diagnostics) WarnCount() int {
	n := 0
	for _, d := range ds {
		if d.Severity == Warning {
			n++
		}
	}
	return n
}

// Err returns an error representing the collection, or nil if it contains no
// error diagnostics.
func (ds Diagnostics) Err() error {
	if !ds.HasErrors() {
		return nil
	}
	for _, d := range ds {
		if d.Severity == Error {
			return d
		}
	}
	return nil
}
