// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"errors"
	"fmt"
)

// Kinds of assembly failure. Every error returned by the assembler wraps
// exactly one of them.
var (
	ErrSyntax     = errors.New("syntax error")
	ErrResolution = errors.New("resolution error")
	ErrRange      = errors.New("range error")
	ErrLayout     = errors.New("layout error")
)

var kindName = map[error]string{
	ErrSyntax:     "Syntax error",
	ErrResolution: "Undefined label",
	ErrRange:      "Range error",
	ErrLayout:     "Layout error",
}

// An Error describes a failure at a specific location in the source.
type Error struct {
	Kind   error  // ErrSyntax, ErrResolution, ErrRange or ErrLayout
	File   string // source file name
	Line   int    // 1-based line number, 0 if not tied to a line
	Column int    // 1-based column, 0 if not tied to a column
	Text   string // full text of the offending line
	Msg    string // error detail
}

func (e *Error) Error() string {
	kind := kindName[e.Kind]
	switch {
	case e.Line == 0:
		return fmt.Sprintf("%s in '%s': %s", kind, e.File, e.Msg)
	case e.Column == 0:
		return fmt.Sprintf("%s in '%s' line %d: %s", kind, e.File, e.Line, e.Msg)
	default:
		return fmt.Sprintf("%s in '%s' line %d, col %d: %s", kind, e.File, e.Line, e.Column, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Severity of a non-fatal diagnostic.
type Severity byte

const (
	Warning Severity = iota
	Notice
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Notice:
		return "notice"
	default:
		return "unknown"
	}
}

// A Diagnostic is a non-fatal message produced during assembly.
type Diagnostic struct {
	File     string
	Line     int
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Severity, d.Message)
}
