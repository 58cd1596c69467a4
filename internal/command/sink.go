// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

// Package command implements the command-line surface of the compiler. The
// compiler proper knows nothing about flags, exit codes or terminal colors;
// everything of that kind lives here.
package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/nomoslang/nomos/internal/logging"
)

// ConsoleSink renders evaluation log records to a pair of output streams:
// warnings and worse to stderr, everything else to stdout.
type ConsoleSink struct {
	Stdout io.Writer
	Stderr io.Writer

	// Level filters out records below it.
	Level logging.Level

	// Color enables ANSI coloring of the level prefix.
	Color bool
}

const (
	colorCyan     = "\x1b[0;36m"
	colorGreen    = "\x1b[0;32m"
	colorHiYellow = "\x1b[1;33m"
	colorHiRed    = "\x1b[1;31m"
	colorReset    = "\x1b[0m"
)

func (s *ConsoleSink) stream(level logging.Level) io.Writer {
	if level >= logging.Warning {
		return s.Stderr
	}
	return s.Stdout
}

func (s *ConsoleSink) color(level logging.Level) (string, string) {
	if !s.Color {
		return "", ""
	}
	switch {
	case level == logging.Debug:
		return colorCyan, colorReset
	case level == logging.Info:
		return colorGreen, colorReset
	case level == logging.Warning:
		return colorHiYellow, colorReset
	case level >= logging.Error:
		return colorHiRed, colorReset
	}
	return "", ""
}

// Log implements logging.Sink.
func (s *ConsoleSink) Log(r logging.Record) {
	if r.Level < s.Level {
		return
	}
	w := s.stream(r.Level)
	begin, end := s.color(r.Level)

	fmt.Fprintf(w, "%s%s:%s ", begin, r.Level, end)
	if r.Subject != nil {
		fmt.Fprintf(w, "%s: ", r.Subject)
	}
	fmt.Fprintln(w, r.Message)

	// Show the offending line with a caret under the subject column.
	if r.SourceLine != "" && r.Subject != nil && r.Subject.Start.Column > 0 {
		trimmed := strings.TrimLeft(r.SourceLine, " \t")
		removed := len(r.SourceLine) - len(trimmed)
		column := r.Subject.Start.Column - removed
		if column < 1 {
			column = 1
		}
		fmt.Fprintf(w, "    %s\n", trimmed)
		fmt.Fprintf(w, "    %s^\n", strings.Repeat(" ", column-1))
	}
}
