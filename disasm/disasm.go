// Copyright 2014 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a 6502 instruction set
// disassembler.
package disasm

import (
	"errors"
	"fmt"
	"io"

	"github.com/beevik/prgasm/cpu"
)

var errShortImage = errors.New("image has no load address")

// Disassembler formatting for addressing modes
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

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of the byte slice,
// interpreted as a little-endian number.
func hexString(b []byte) string {
	hexlen := len(b) * 2
	hexbuf := make([]byte, hexlen)
	j := hexlen - 1
	for _, n := range b {
		hexbuf[j] = hex[n&0xf]
		hexbuf[j-1] = hex[n>>4]
		j -= 2
	}
	return string(hexbuf)
}

// Return the bytes as space-separated hexadecimal pairs.
func codeString(b []byte) string {
	s := make([]byte, 0, len(b)*3)
	for i, n := range b {
		if i > 0 {
			s = append(s, ' ')
		}
		s = append(s, hex[n>>4], hex[n&0xf])
	}
	return string(s)
}

// Disassemble the instruction at the start of code, which is located at
// address addr. Return a 'line' string representing the disassembled
// instruction and the instruction's length in bytes. An instruction cut
// short by the end of code is shown as a .HEX line.
func Disassemble(code []byte, addr uint16) (line string, length int) {
	if len(code) == 0 {
		return "", 0
	}

	op, mode := cpu.Decode(code[0])
	length = mode.Length()
	if len(code) < length {
		return ".HEX " + codeString(code), len(code)
	}

	operand := code[1:length]
	if mode == cpu.REL {
		// Convert relative offset to absolute address.
		braddr := int(addr) + length + int(int8(operand[0]))
		operand = []byte{byte(braddr), byte(braddr >> 8)}
	}

	switch mode {
	case cpu.IMP, cpu.ACC:
		line = op.Name
	default:
		line = fmt.Sprintf("%s "+modeFormat[mode], op.Name, hexString(operand))
	}
	return line, length
}

// Listing writes a disassembly of a PRG image, one instruction per line.
// Addresses found in labels are annotated with the label name, and
// undocumented opcodes are flagged.
func Listing(w io.Writer, image []byte, labels map[uint16]string) error {
	if len(image) < 2 {
		return errShortImage
	}

	addr := uint16(image[0]) | uint16(image[1])<<8
	code := image[2:]
	for len(code) > 0 {
		line, n := Disassemble(code, addr)

		str := fmt.Sprintf("%04X-   %-8s    %-15s", addr, codeString(code[:n]), line)
		var notes []string
		if label, ok := labels[addr]; ok {
			notes = append(notes, label)
		}
		if c := cpu.Classify(code[0]); c != cpu.Documented && n == mode(code[0]).Length() {
			notes = append(notes, c.String())
		}
		for i, note := range notes {
			if i == 0 {
				str += " ; " + note
			} else {
				str += ", " + note
			}
		}

		if _, err := fmt.Fprintln(w, str); err != nil {
			return err
		}
		addr += uint16(n)
		code = code[n:]
	}
	return nil
}

func mode(b byte) cpu.Mode {
	_, m := cpu.Decode(b)
	return m
}
