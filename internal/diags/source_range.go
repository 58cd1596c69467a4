// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package diags

import (
	"fmt"
	"strings"
)

// Pos is a position within a source file. Offset is the byte offset from the
// start of the file; Line and Column are 1-based and column counts bytes, not
// display cells.
type Pos struct {
	Offset int
	Line   int
	Column int
}

// InitialPos is the position of the first byte of a file.
var InitialPos = Pos{Offset: 0, Line: 1, Column: 1}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// SourceRange identifies a span of characters within a particular file.
// Filename uses whatever form the manifest loader was given.
type SourceRange struct {
	Filename string
	Start    Pos
	End      Pos
}

func (r SourceRange) String() string {
	return fmt.Sprintf("%s:%d:%d", r.Filename, r.Start.Line, r.Start.Column)
}

// RangeBetween returns a range spanning from the start of a to the end of b.
// Both must belong to the same file.
func RangeBetween(a, b SourceRange) SourceRange {
	return SourceRange{
		Filename: a.Filename,
		Start:    a.Start,
		End:      b.End,
	}
}

// SourceLine extracts the text of the line containing pos from the given
// source buffer, without its line terminator. It returns "" when pos is out
// of range.
func SourceLine(src string, pos Pos) string {
	if pos.Offset < 0 || pos.Offset > len(src) {
		return ""
	}
	start := strings.LastIndexByte(src[:pos.Offset], '\n') + 1
	end := strings.IndexByte(src[pos.Offset:], '\n')
	if end < 0 {
		end = len(src)
	} else {
		end += pos.Offset
	}
	return strings.TrimSuffix(src[start:end], "\r")
}
