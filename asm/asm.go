// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements a one-pass 6502 assembler. Source lines are
// translated to bytes as they are read, with references to labels that are
// not yet defined patched as soon as the label appears. The result is a PRG
// image: a 2-byte little-endian load address followed by the program.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/prgasm/cpu"
)

var (
	errFinished = errors.New("assembly already finished")
)

// DefaultOutput is the image file written when no output path is given.
const DefaultOutput = "a.prg"

var modeFormat = []string{
	"#$%s",    // IMM
	"%s",      // IMP
	"$%s",     // REL
	"$%s",     // ZPG
	"$%s,X",   // ZPX
	"$%s,Y",   // ZPY
	"$%s",     // ABS
	"$%s,X",   // ABX
	"$%s,Y",   // ABY
	"($%s)",   // IND
	"($%s,X)", // IDX
	"($%s),Y", // IDY
	"%s",      // ACC
}

type directive func(s *State, head fstring, args []fstring) error

var directives = map[string]directive{
	".org": (*State).parseOrigin,
	".hex": (*State).parseHexString,
}

// An Assembly contains the program image produced by a successful
// assembly, along with the data associated with it.
type Assembly struct {
	Code        []byte       // load-address header followed by the program
	Origin      uint16       // load address
	Diagnostics []Diagnostic // non-fatal messages, in source order
	SourceMap   *SourceMap   // address to source line mappings
	Program     *Program     // the linked blocks and labels
}

// WriteTo writes the program image to an output writer.
func (a *Assembly) WriteTo(w io.Writer) (n int64, err error) {
	nn, err := w.Write(a.Code)
	return int64(nn), err
}

// NewState returns an assembler state ready to accept the first line of
// the named source.
func NewState(filename string, opts Options) *State {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &State{
		Program: newProgram(filename, opts.Origin),
		file:    filename,
		opts:    opts,
		out:     out,
		verbose: opts.Verbose,
	}
}

// AssembleFile assembles the source file at path and writes the resulting
// image to outPath, or to DefaultOutput if outPath is empty.
func AssembleFile(path, outPath string, opts Options) (*Assembly, error) {
	inFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer inFile.Close()

	assembly, err := Assemble(inFile, filepath.Base(path), opts)
	if err != nil {
		return nil, err
	}

	if outPath == "" {
		outPath = DefaultOutput
	}
	outFile, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	defer outFile.Close()

	if _, err := assembly.WriteTo(outFile); err != nil {
		return nil, err
	}
	return assembly, outFile.Close()
}

// Assemble reads source lines from r and assembles them into a program
// image. On failure no Assembly is returned. Syntax, range and layout
// errors stop assembly at the first one; every undefined label is reported
// together once the input is exhausted.
func Assemble(r io.Reader, filename string, opts Options) (*Assembly, error) {
	s := NewState(filename, opts)
	s.logSection("Parsing assembly code")

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := s.ParseLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return s.Finish()
}

// AssembleString assembles source code held in a string.
func AssembleString(src string, opts Options) (*Assembly, error) {
	return Assemble(strings.NewReader(src), "<string>", opts)
}

// ParseLine assembles the next line of source.
func (s *State) ParseLine(text string) error {
	if s.done {
		return errFinished
	}
	s.Line++

	line := newFstring(s.Line, text).stripComment()

	var label fstring
	if i := line.scanUntilChar(':'); i < len(line.str) {
		label, line = line.trunc(i).trim(), line.consume(i+1)
		if !isLabel(label.str) {
			return s.syntaxError(label, "invalid label '%s'", label.str)
		}
	}

	fields := line.fields()
	if len(fields) == 0 {
		if !label.isEmpty() {
			return s.define(label)
		}
		return nil
	}

	head, args := fields[0], fields[1:]
	if d, ok := directives[strings.ToLower(head.str)]; ok {
		return s.parseDirective(d, head, args, label)
	}

	if !label.isEmpty() {
		if err := s.define(label); err != nil {
			return err
		}
	}
	return s.parseInstruction(head, args)
}

// Run a directive. A label on a .ORG line names the start of the new
// block, so it is defined after the directive runs.
func (s *State) parseDirective(d directive, head fstring, args []fstring, label fstring) error {
	isOrigin := strings.EqualFold(head.str, ".org")
	if !label.isEmpty() && !isOrigin {
		if err := s.define(label); err != nil {
			return err
		}
	}
	if err := d(s, head, args); err != nil {
		return err
	}
	if !label.isEmpty() && isOrigin {
		return s.define(label)
	}
	return nil
}

// Finish completes the assembly, reporting undefined labels and laying
// out the program's blocks.
func (s *State) Finish() (*Assembly, error) {
	if s.done {
		return nil, errFinished
	}
	s.done = true

	if err := s.undefinedLabels(); err != nil {
		return nil, err
	}

	s.logSection("Laying out blocks")
	code, err := s.Program.Bytes()
	if err != nil {
		return nil, err
	}
	for _, b := range s.Program.sorted() {
		s.logBytes(int(b.Origin), b.Data)
	}

	origin := uint16(code[0]) | uint16(code[1])<<8
	return &Assembly{
		Code:        code,
		Origin:      origin,
		Diagnostics: s.Diagnostics,
		SourceMap:   s.sourceMap(origin, code[2:]),
		Program:     s.Program,
	}, nil
}

// Parse the .ORG directive, which opens a new block at an explicit
// origin.
func (s *State) parseOrigin(head fstring, args []fstring) error {
	if len(args) != 1 {
		return s.syntaxError(head, ".ORG requires exactly one address")
	}

	n, _, err := parseNumber(args[0].str)
	if err != nil {
		return s.syntaxError(args[0], "invalid origin '%s'", args[0].str)
	}
	if n > 0xffff {
		s.notice(args[0], "origin $%X masked to $%04X", n, n&0xffff)
	}

	s.Program.Blocks = append(s.Program.Blocks, &Block{
		Origin:   uint16(n & 0xffff),
		Explicit: true,
		Line:     head.row,
	})
	s.Current = len(s.Program.Blocks) - 1

	s.logLine(head, "origin=$%04X", n&0xffff)
	return nil
}

// Parse the .HEX directive, which appends raw bytes to the current block.
func (s *State) parseHexString(head fstring, args []fstring) error {
	if len(args) == 0 {
		return s.syntaxError(head, ".HEX requires at least one value")
	}

	b := s.block()
	start := len(b.Data)
	for _, arg := range args {
		bytes, err := parseHexToken(arg.str)
		if err != nil {
			return s.syntaxError(arg, "invalid hex value '%s'", arg.str)
		}
		b.Data = append(b.Data, bytes...)
	}

	s.addSpan(start, head.row)
	s.logLine(head, "bytes=%s", byteString(b.Data[start:]))
	return nil
}

// Parse an instruction and append its encoding to the current block.
func (s *State) parseInstruction(head fstring, args []fstring) error {
	if len(args) > 1 {
		return s.syntaxError(args[1], "unexpected '%s' after operand", args[1].str)
	}

	name, tag, _ := strings.Cut(head.str, ".")
	op, err := cpu.Lookup(name)
	if err != nil {
		return s.syntaxError(head, "unknown mnemonic '%s'", name)
	}
	width, err := cpu.ParseModeTag(tag)
	if err != nil {
		return s.syntaxError(head, "unknown mode suffix '.%s'", tag)
	}

	var operand fstring
	src := head
	if len(args) == 1 {
		operand, src = args[0], args[0]
	}

	shp, inner, err := parseShape(operand.str)
	if err != nil {
		return s.syntaxError(operand, "%v '%s'", err, operand.str)
	}

	// Branches take the whole operand as their target.
	relative := op.Supports(cpu.REL) && shp != shapeNone && shp != shapeAcc && shp != shapeImm
	if relative {
		inner = operand.str
	}

	var v value
	if shp != shapeNone && shp != shapeAcc {
		v, err = parseValue(inner)
		if err != nil {
			return s.syntaxError(operand, "%v", err)
		}
		if !v.isLabel() && v.n > 0xffff {
			return s.rangeError(operand, "value $%X exceeds $FFFF", v.n)
		}
	}

	mode, err := selectMode(op, shp, width, v.wide)
	if err != nil {
		return s.syntaxError(src, "%v", err)
	}
	if width != cpu.AutoWidth && (!shp.races() || mode == cpu.REL) {
		s.notice(head, "mode suffix '.%s' ignored for %s operand", tag, mode)
	}

	enc, _ := op.Encoding(mode)
	if s.opts.WarnIllegal && cpu.IsIllegal(enc) {
		s.warn(head, "%s opcode $%02X (%s %s)", cpu.Classify(enc), enc, op.Name, mode)
	}

	b := s.block()
	offset := len(b.Data)
	b.Data = append(b.Data, enc)
	b.Data = append(b.Data, make([]byte, operandSize(mode))...)

	switch {
	case mode == cpu.REL:
		err = s.reference(refRelative, offset, v, src)
	case operandSize(mode) == 1 && v.isLabel():
		err = s.reference(refByte, offset, v, src)
	case operandSize(mode) == 1:
		if v.n > 0xff {
			return s.rangeError(src, "value $%X does not fit in one byte", v.n)
		}
		b.Data[offset+1] = byte(v.n)
	case operandSize(mode) == 2 && v.isLabel():
		err = s.reference(refAbsolute, offset, v, src)
	case operandSize(mode) == 2:
		b.Data[offset+1] = byte(v.n)
		b.Data[offset+2] = byte(v.n >> 8)
	}
	if err != nil {
		return err
	}

	s.addSpan(offset, head.row)
	s.logLine(head, "op=%s mode=%s %s", op.Name, mode, operandString(mode, v))
	return nil
}

// Format an operand for verbose output.
func operandString(mode cpu.Mode, v value) string {
	if v.isLabel() {
		return fmt.Sprintf(strings.Replace(modeFormat[mode], "$", "", 1), v.label)
	}
	switch operandSize(mode) {
	case 0:
		return ""
	case 1:
		if mode == cpu.REL {
			return fmt.Sprintf(modeFormat[mode], fmt.Sprintf("%04X", v.n))
		}
		return fmt.Sprintf(modeFormat[mode], fmt.Sprintf("%02X", v.n))
	default:
		return fmt.Sprintf(modeFormat[mode], fmt.Sprintf("%04X", v.n))
	}
}

func (s *State) addSpan(offset, line int) {
	s.lines = append(s.lines, lineSpan{block: s.Current, offset: offset, line: line})
}

// Create an error at a source location. In verbose mode the error is also
// displayed with a marker under the offending column.
func (s *State) newError(kind error, l fstring, format string, args ...any) error {
	e := &Error{
		Kind:   kind,
		File:   s.file,
		Line:   l.row,
		Column: l.column + 1,
		Text:   l.full,
		Msg:    fmt.Sprintf(format, args...),
	}
	if s.verbose {
		fmt.Fprintln(s.out, e.Error())
		fmt.Fprintln(s.out, l.full)
		fmt.Fprintf(s.out, "%s^\n", strings.Repeat("-", l.column))
	}
	return e
}

func (s *State) syntaxError(l fstring, format string, args ...any) error {
	return s.newError(ErrSyntax, l, format, args...)
}

func (s *State) rangeError(l fstring, format string, args ...any) error {
	return s.newError(ErrRange, l, format, args...)
}

// Add a warning diagnostic for a source line.
func (s *State) warn(l fstring, format string, args ...any) {
	s.diagnose(Warning, l, format, args...)
}

func (s *State) notice(l fstring, format string, args ...any) {
	s.diagnose(Notice, l, format, args...)
}

func (s *State) diagnose(sev Severity, l fstring, format string, args ...any) {
	d := Diagnostic{
		File:     s.file,
		Line:     l.row,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	}
	s.Diagnostics = append(s.Diagnostics, d)
	s.log("%s", d)
}

// In verbose mode, log a string to the output.
func (s *State) log(format string, args ...any) {
	if s.verbose {
		fmt.Fprintf(s.out, format, args...)
		fmt.Fprintf(s.out, "\n")
	}
}

// In verbose mode, log a string and its associated line
// of assembly code.
func (s *State) logLine(line fstring, format string, args ...any) {
	if s.verbose {
		detail := fmt.Sprintf(format, args...)
		fmt.Fprintf(s.out, "%-3d %-3d | %-28s | %s\n", line.row, line.column+1, detail, line.full)
	}
}

// In verbose mode, log a series of bytes with starting address.
func (s *State) logBytes(addr int, b []byte) {
	if s.verbose {
		for i, n := 0, len(b); i < n; i += 3 {
			j := min(i+3, n)
			s.log("%04X-*  %s", addr+i, byteString(b[i:j]))
		}
	}
}

// In verbose mode, log a section header to the output.
func (s *State) logSection(name string) {
	if s.verbose {
		fmt.Fprintln(s.out, strings.Repeat("-", len(name)+6))
		fmt.Fprintf(s.out, "-- %s --\n", name)
		fmt.Fprintln(s.out, strings.Repeat("-", len(name)+6))
	}
}
