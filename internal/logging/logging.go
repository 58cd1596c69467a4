// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package logging carries the two logging surfaces of the compiler: the
// user-facing sink that receives evaluation records (what the notice/err
// family of functions produce), and the internal hclog logger used for
// debugging the compiler itself.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/nomoslang/nomos/internal/diags"
)

// Level is the severity of an evaluation log record.
type Level int

const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
	Alert
	Emergency
	Critical
)

var levelNames = []string{"Debug", "Info", "Notice", "Warning", "Error", "Alert", "Emergency", "Critical"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "Unknown"
}

// ParseLevel parses a level name, accepting the short spellings the
// language's logging functions use (err, emerg, crit).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return Debug, nil
	case "info", "verbose":
		return Info, nil
	case "notice":
		return Notice, nil
	case "warning":
		return Warning, nil
	case "err", "error":
		return Error, nil
	case "alert":
		return Alert, nil
	case "emerg", "emergency":
		return Emergency, nil
	case "crit", "critical":
		return Critical, nil
	}
	return Notice, fmt.Errorf("invalid log level '%s': expected debug, info, notice, warning, error, alert, emergency, or critical", s)
}

// Record is one log entry emitted during evaluation.
type Record struct {
	Level      Level
	Subject    *diags.SourceRange // nil when no source location applies
	SourceLine string
	Message    string
}

// Sink receives evaluation log records. Rendering and filtering are the
// sink's concern; the compiler only counts.
type Sink interface {
	Log(Record)
}

// Counter wraps a sink and counts warnings and errors as they pass
// through. It is safe for use from a single compilation goroutine only.
type Counter struct {
	Next Sink

	warnings int
	errors   int
}

// Log implements Sink.
func (c *Counter) Log(r Record) {
	switch {
	case r.Level == Warning:
		c.warnings++
	case r.Level >= Error:
		c.errors++
	}
	if c.Next != nil {
		c.Next.Log(r)
	}
}

// Warnings returns the number of warning records seen.
func (c *Counter) Warnings() int { return c.warnings }

// Errors returns the number of error-or-worse records seen.
func (c *Counter) Errors() int { return c.errors }

// Discard is a sink that drops every record.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Log(Record) {}

var (
	globalOnce   sync.Once
	globalLogger hclog.Logger
)

// NewLogger returns a named hclog logger for the compiler's own debugging
// output. The level comes from the NOMOS_LOG environment variable and
// defaults to off, matching how operators expect infrastructure tooling to
// stay quiet unless asked.
func NewLogger(name string) hclog.Logger {
	globalOnce.Do(func() {
		level := hclog.Off
		if raw := os.Getenv("NOMOS_LOG"); raw != "" {
			level = hclog.LevelFromString(raw)
			if level == hclog.NoLevel {
				level = hclog.Debug
			}
		}
		globalLogger = hclog.New(&hclog.LoggerOptions{
			Name:   "nomos",
			Level:  level,
			Output: os.Stderr,
		})
	})
	return globalLogger.Named(name)
}
